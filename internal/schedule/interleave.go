package schedule

import (
	"fmt"
	"strings"

	"github.com/derekprior/seasongen/internal/league"
	"github.com/derekprior/seasongen/internal/strategy"
)

// InvariantError reports a weekly distribution that the interleaver should
// never produce. It signals a bug in pairing generation or interleaving, not
// bad input.
type InvariantError struct {
	DivisionID int64
	Problems   []string
}

func (e *InvariantError) Error() string {
	return fmt.Sprintf("weekly interleave invariant violated for division %d: %s",
		e.DivisionID, strings.Join(e.Problems, "; "))
}

// Distribution is the per-week target derived from games per team and the
// number of weeks.
type Distribution struct {
	Weeks        int
	GamesPerTeam int
	High         int // ceil(G / weeks)
	Low          int // floor(G / weeks)
	NumHighWeeks int // G mod weeks
	NumLowWeeks  int
}

func NewDistribution(gamesPerTeam, weeks int) Distribution {
	d := Distribution{Weeks: weeks, GamesPerTeam: gamesPerTeam}
	if weeks <= 0 {
		return d
	}
	d.Low = gamesPerTeam / weeks
	d.NumHighWeeks = gamesPerTeam % weeks
	d.High = d.Low
	if d.NumHighWeeks > 0 {
		d.High++
	}
	d.NumLowWeeks = weeks - d.NumHighWeeks
	return d
}

type teamWeek struct {
	team int64
	week int
}

// Interleaved is one division's pairings tagged with target weeks.
type Interleaved struct {
	Pairings     []strategy.Pairing
	Distribution Distribution
	Counts       map[int64]map[int]int // team -> week -> games
	Warnings     []string
}

// Interleave tags every pairing of one division with a target week so that
// each team's weekly game count is either Low or High.
//
// The saturating pass walks the weeks and, for each week, takes pairings from
// the front of the queue as long as neither team already plays that week.
// It is repeated once per guaranteed weekly game. The filling pass then walks
// the weeks again and places leftover pairings while both teams are below
// High for that week.
//
// Teams in odd divisions sit out a round now and then; the short weeks and
// season totals that follow are reported as warnings.
func Interleave(pairings []strategy.Pairing, totalWeeks, gamesPerTeam int, teams []league.Team) (*Interleaved, error) {
	dist := NewDistribution(gamesPerTeam, totalWeeks)
	result := &Interleaved{
		Distribution: dist,
		Counts:       make(map[int64]map[int]int, len(teams)),
	}
	if len(pairings) == 0 {
		return result, nil
	}
	divisionID := pairings[0].DivisionID
	if totalWeeks <= 0 {
		return nil, &InvariantError{DivisionID: divisionID, Problems: []string{"season has no weeks"}}
	}

	counts := make(map[teamWeek]int)
	tagged := make([]strategy.Pairing, 0, len(pairings))
	place := func(p strategy.Pairing, week int) {
		p.Week = week
		tagged = append(tagged, p)
		counts[teamWeek{p.Home.ID, week}]++
		counts[teamWeek{p.Away.ID, week}]++
	}

	queue := append([]strategy.Pairing(nil), pairings...)

	layers := dist.Low
	if layers < 1 {
		layers = 1
	}
	for layer := 0; layer < layers && len(queue) > 0; layer++ {
		for week := 1; week <= totalWeeks && len(queue) > 0; week++ {
			playing := make(map[int64]bool, len(teams))
			rest := queue[:0:0]
			for _, p := range queue {
				if len(playing) == len(teams) || playing[p.Home.ID] || playing[p.Away.ID] {
					rest = append(rest, p)
					continue
				}
				playing[p.Home.ID] = true
				playing[p.Away.ID] = true
				place(p, week)
			}
			queue = rest
		}
	}

	for week := 1; week <= totalWeeks && len(queue) > 0; week++ {
		rest := queue[:0:0]
		for _, p := range queue {
			if counts[teamWeek{p.Home.ID, week}] < dist.High && counts[teamWeek{p.Away.ID, week}] < dist.High {
				place(p, week)
				continue
			}
			rest = append(rest, p)
		}
		queue = rest
	}

	for k, c := range counts {
		if result.Counts[k.team] == nil {
			result.Counts[k.team] = make(map[int]int)
		}
		result.Counts[k.team][k.week] = c
	}
	result.Pairings = tagged

	problems, warnings := checkDistribution(dist, teams, result.Counts, len(queue), len(teams)%2 == 1)
	result.Warnings = warnings
	if len(problems) > 0 {
		return nil, &InvariantError{DivisionID: divisionID, Problems: problems}
	}
	return result, nil
}

func checkDistribution(dist Distribution, teams []league.Team, counts map[int64]map[int]int, leftover int, hasBye bool) (problems, warnings []string) {
	if leftover > 0 {
		problems = append(problems, fmt.Sprintf("%d pairings left without a week", leftover))
	}

	for _, team := range teams {
		weeks := counts[team.ID]
		total := 0
		var short []string
		for week := 1; week <= dist.Weeks; week++ {
			c := weeks[week]
			total += c
			switch {
			case c == dist.Low || c == dist.High:
			case c > dist.High:
				problems = append(problems, fmt.Sprintf("%s plays %d games in week %d, max %d", team.Name, c, week, dist.High))
			case hasBye:
				short = append(short, fmt.Sprint(week))
			default:
				problems = append(problems, fmt.Sprintf("%s plays %d games in week %d, want %d or %d", team.Name, c, week, dist.Low, dist.High))
			}
		}

		if len(short) > 0 {
			warnings = append(warnings, fmt.Sprintf("%s plays fewer than %d games in weeks %s (bye)",
				team.Name, dist.Low, strings.Join(short, ", ")))
		}

		switch {
		case total > dist.GamesPerTeam+2:
			problems = append(problems, fmt.Sprintf("%s plays %d games, max %d", team.Name, total, dist.GamesPerTeam+2))
		case total >= dist.GamesPerTeam:
		case hasBye && len(weeks) < dist.Weeks:
			warnings = append(warnings, fmt.Sprintf("%s plays %d of %d games after byes", team.Name, total, dist.GamesPerTeam))
		case hasBye:
			warnings = append(warnings, fmt.Sprintf("%s plays %d of %d games", team.Name, total, dist.GamesPerTeam))
		default:
			problems = append(problems, fmt.Sprintf("%s plays %d games, want at least %d", team.Name, total, dist.GamesPerTeam))
		}
	}
	return problems, warnings
}

// Merge concatenates the week-tagged pairings of every division into one
// pool. Division order is kept; balance is already per division.
func Merge(divisions ...[]strategy.Pairing) []strategy.Pairing {
	n := 0
	for _, d := range divisions {
		n += len(d)
	}
	pool := make([]strategy.Pairing, 0, n)
	for _, d := range divisions {
		pool = append(pool, d...)
	}
	return pool
}
