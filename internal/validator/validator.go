package validator

import (
	"fmt"
	"sort"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/derekprior/seasongen/internal/config"
	"github.com/derekprior/seasongen/internal/excel"
	"github.com/derekprior/seasongen/internal/league"
	"github.com/derekprior/seasongen/internal/schedule"
)

// Violation represents a rule broken by a schedule workbook.
type Violation struct {
	Row     int
	Type    string // "error" or "warning"
	Message string
}

// Validate reads a schedule workbook and checks it against the config.
func Validate(cfg *config.Config, path string) ([]Violation, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("opening file: %w", err)
	}
	defer f.Close()

	games, err := readAssignments(f)
	if err != nil {
		return nil, fmt.Errorf("reading assignments: %w", err)
	}
	season, err := cfg.League()
	if err != nil {
		return nil, err
	}
	return Check(cfg, season, games), nil
}

// Check runs every rule over games read from a master sheet. Errors are
// broken hard rules; warnings are placements made under relaxed matching or
// shortfalls caused by too few slots.
func Check(cfg *config.Config, season league.Season, games []ParsedGame) []Violation {
	teams := teamIndex(season)

	var violations []Violation
	violations = append(violations, checkKnownTeams(teams, games)...)
	violations = append(violations, checkDoubleBooking(games)...)
	violations = append(violations, checkSameDivision(teams, games)...)
	violations = append(violations, checkSeasonDates(cfg, games)...)
	violations = append(violations, checkBlacklistDays(teams, games)...)
	violations = append(violations, checkTimePreference(cfg, teams, games)...)
	violations = append(violations, checkGameCounts(cfg, season, games)...)
	violations = append(violations, checkHomeAwayBalance(season, games)...)
	return violations
}

type ParsedGame struct {
	Row   int
	Date  time.Time
	Time  string
	Field string
	Home  string
	Away  string
}

type teamInfo struct {
	team     league.Team
	division string
}

func teamIndex(season league.Season) map[string]teamInfo {
	m := make(map[string]teamInfo)
	for _, d := range season.Divisions {
		for _, t := range d.Teams {
			m[t.Name] = teamInfo{team: t, division: d.Name}
		}
	}
	return m
}

func readAssignments(f *excelize.File) ([]ParsedGame, error) {
	rows, err := f.GetRows(excel.MasterSheet)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", excel.MasterSheet, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%s is empty", excel.MasterSheet)
	}

	// Columns after Date, Day and Time are fields.
	header := rows[0]
	var games []ParsedGame
	for i, row := range rows[1:] {
		if len(row) < 3 || row[0] == "" {
			continue
		}
		date, err := time.Parse("01/02/2006", row[0])
		if err != nil {
			continue
		}
		for col := 3; col < len(row) && col < len(header); col++ {
			away, home, ok := excel.ParseGameCell(row[col])
			if !ok {
				continue
			}
			games = append(games, ParsedGame{
				Row:   i + 2,
				Date:  date,
				Time:  row[2],
				Field: header[col],
				Home:  home,
				Away:  away,
			})
		}
	}
	return games, nil
}

func checkKnownTeams(teams map[string]teamInfo, games []ParsedGame) []Violation {
	var violations []Violation
	for _, g := range games {
		for _, name := range []string{g.Home, g.Away} {
			if _, ok := teams[name]; !ok {
				violations = append(violations, Violation{
					Row:     g.Row,
					Type:    "error",
					Message: fmt.Sprintf("unknown team %q", name),
				})
			}
		}
	}
	return violations
}

func checkDoubleBooking(games []ParsedGame) []Violation {
	type teamDay struct {
		team string
		date time.Time
	}
	rows := make(map[teamDay][]int)
	for _, g := range games {
		rows[teamDay{g.Home, g.Date}] = append(rows[teamDay{g.Home, g.Date}], g.Row)
		rows[teamDay{g.Away, g.Date}] = append(rows[teamDay{g.Away, g.Date}], g.Row)
	}

	var violations []Violation
	for td, r := range rows {
		if len(r) > 1 {
			violations = append(violations, Violation{
				Row:     r[1],
				Type:    "error",
				Message: fmt.Sprintf("%s plays %d games on %s", td.team, len(r), td.date.Format("01/02")),
			})
		}
	}
	sortByRow(violations)
	return violations
}

func checkSameDivision(teams map[string]teamInfo, games []ParsedGame) []Violation {
	var violations []Violation
	for _, g := range games {
		home, okHome := teams[g.Home]
		away, okAway := teams[g.Away]
		if okHome && okAway && home.division != away.division {
			violations = append(violations, Violation{
				Row:  g.Row,
				Type: "error",
				Message: fmt.Sprintf("%s (%s) and %s (%s) are in different divisions",
					g.Away, away.division, g.Home, home.division),
			})
		}
	}
	return violations
}

func checkSeasonDates(cfg *config.Config, games []ParsedGame) []Violation {
	start, end := cfg.Season.StartDate.Time, cfg.Season.EndDate.Time
	days := cfg.SlotDays()
	var violations []Violation
	for _, g := range games {
		switch {
		case g.Date.Before(start) || g.Date.After(end):
			violations = append(violations, Violation{
				Row:     g.Row,
				Type:    "error",
				Message: fmt.Sprintf("game on %s is outside the season", g.Date.Format("01/02")),
			})
		case !days[g.Date.Weekday()]:
			violations = append(violations, Violation{
				Row:     g.Row,
				Type:    "error",
				Message: fmt.Sprintf("game on %s, which is not a game day", g.Date.Format("Mon 01/02")),
			})
		}
	}
	return violations
}

func checkBlacklistDays(teams map[string]teamInfo, games []ParsedGame) []Violation {
	var violations []Violation
	for _, g := range games {
		for _, name := range []string{g.Home, g.Away} {
			info, ok := teams[name]
			if ok && info.team.Blacklists(g.Date.Weekday()) {
				violations = append(violations, Violation{
					Row:     g.Row,
					Type:    "warning",
					Message: fmt.Sprintf("%s plays on a blacklisted %s (%s)", name, g.Date.Weekday(), g.Date.Format("01/02")),
				})
			}
		}
	}
	return violations
}

func checkTimePreference(cfg *config.Config, teams map[string]teamInfo, games []ParsedGame) []Violation {
	bands := make(map[string]int, len(cfg.Slots.TimeBands))
	for i, b := range cfg.Slots.TimeBands {
		bands[b] = i
	}

	var violations []Violation
	for _, g := range games {
		home, okHome := teams[g.Home]
		away, okAway := teams[g.Away]
		if !okHome || !okAway {
			continue
		}
		band, ok := bands[g.Time]
		if !ok {
			violations = append(violations, Violation{
				Row:     g.Row,
				Type:    "error",
				Message: fmt.Sprintf("%s is not a configured time band", g.Time),
			})
			continue
		}
		if score := schedule.PairingScore(home.team, away.team, band); score < schedule.PreferenceThreshold {
			violations = append(violations, Violation{
				Row:  g.Row,
				Type: "warning",
				Message: fmt.Sprintf("%s @ %s at %s scores %.2f against their time preferences (min %.2f)",
					g.Away, g.Home, g.Time, score, schedule.PreferenceThreshold),
			})
		}
	}
	return violations
}

// checkGameCounts compares each team's total and weekly counts with what the
// interleaver targets. Odd divisions lose a game per bye, so their shortfalls
// are warnings like any other shortfall.
func checkGameCounts(cfg *config.Config, season league.Season, games []ParsedGame) []Violation {
	dist := schedule.NewDistribution(season.GamesPerTeam, season.PlayableWeeks(cfg.SlotDays()))
	totals := make(map[string]int)
	weekly := make(map[string]map[int]int)
	for _, g := range games {
		week := league.WeekNumber(cfg.Season.StartDate.Time, g.Date)
		for _, name := range []string{g.Home, g.Away} {
			totals[name]++
			if weekly[name] == nil {
				weekly[name] = make(map[int]int)
			}
			weekly[name][week]++
		}
	}

	var violations []Violation
	for _, div := range season.Divisions {
		if len(div.Teams) < 2 {
			continue
		}
		for _, t := range div.Teams {
			n := totals[t.Name]
			switch {
			case n == 0:
				violations = append(violations, Violation{
					Type:    "error",
					Message: fmt.Sprintf("%s has no games scheduled", t.Name),
				})
				continue
			case n < season.GamesPerTeam:
				violations = append(violations, Violation{
					Type:    "warning",
					Message: fmt.Sprintf("%s has %d games (want %d)", t.Name, n, season.GamesPerTeam),
				})
			case n > season.GamesPerTeam:
				violations = append(violations, Violation{
					Type:    "error",
					Message: fmt.Sprintf("%s has %d games (want %d)", t.Name, n, season.GamesPerTeam),
				})
			}

			var heavy []int
			for week, c := range weekly[t.Name] {
				if c > dist.High {
					heavy = append(heavy, week)
				}
			}
			sort.Ints(heavy)
			for _, week := range heavy {
				violations = append(violations, Violation{
					Type: "error",
					Message: fmt.Sprintf("%s plays %d games in week %d (max %d)",
						t.Name, weekly[t.Name][week], week, dist.High),
				})
			}
		}
	}
	return violations
}

func checkHomeAwayBalance(season league.Season, games []ParsedGame) []Violation {
	home := make(map[string]int)
	away := make(map[string]int)
	for _, g := range games {
		home[g.Home]++
		away[g.Away]++
	}

	var violations []Violation
	for _, div := range season.Divisions {
		for _, t := range div.Teams {
			if d := home[t.Name] - away[t.Name]; d > 1 || d < -1 {
				violations = append(violations, Violation{
					Type:    "warning",
					Message: fmt.Sprintf("%s has %d home and %d away games", t.Name, home[t.Name], away[t.Name]),
				})
			}
		}
	}
	return violations
}

func sortByRow(v []Violation) {
	sort.SliceStable(v, func(i, j int) bool { return v[i].Row < v[j].Row })
}
