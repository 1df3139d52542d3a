package strategy

import (
	"github.com/derekprior/seasongen/internal/league"
)

// RoundRobin pairs teams with the circle method: the first team stays fixed
// while the others rotate one position per round. Rounds repeat until every
// team has been offered gamesPerTeam games.
//
// Odd divisions get a bye placeholder. Pairings against the bye are dropped,
// so a team in an odd division plays one game fewer for every round it sits
// out.
type RoundRobin struct{}

func (s *RoundRobin) Pairings(teams []league.Team, gamesPerTeam int) []Pairing {
	if len(teams) < 2 || gamesPerTeam <= 0 {
		return nil
	}

	// nil marks the bye
	circle := make([]*league.Team, 0, len(teams)+1)
	for i := range teams {
		circle = append(circle, &teams[i])
	}
	if len(circle)%2 == 1 {
		circle = append(circle, nil)
	}
	n := len(circle)
	target := gamesPerTeam * n / 2

	homeGames := make(map[int64]int, len(teams))
	pairings := make([]Pairing, 0, target)
	consumed := 0

	for consumed < target {
		for i := 0; i < n/2 && consumed < target; i++ {
			consumed++
			home, away := circle[i], circle[n-1-i]
			if home == nil || away == nil {
				continue
			}
			if homeGames[home.ID] > homeGames[away.ID] {
				home, away = away, home
			}
			homeGames[home.ID]++
			pairings = append(pairings, Pairing{
				DivisionID: home.DivisionID,
				Home:       *home,
				Away:       *away,
			})
		}
		rotate(circle)
	}

	balanceHomeAway(pairings)
	return pairings
}

// rotate moves every team but the first one position clockwise.
func rotate(circle []*league.Team) {
	if len(circle) <= 2 {
		return
	}
	last := circle[len(circle)-1]
	copy(circle[2:], circle[1:len(circle)-1])
	circle[1] = last
}

// balanceHomeAway flips the orientation of pairings until every team's home
// and away counts differ by at most one. Opponents and order are untouched.
//
// A team with a surplus of two or more home games follows a chain of
// pairings (team home vs x, x home vs y, ...) until it reaches a team short
// of home games, then reverses the whole chain. Only the two ends change, so
// the sum of squared surpluses falls on every flip and the loop terminates.
func balanceHomeAway(pairings []Pairing) {
	for {
		surplus := homeSurplus(pairings)
		var team int64
		found := false
		for _, p := range pairings {
			for _, id := range []int64{p.Home.ID, p.Away.ID} {
				if surplus[id] >= 2 || surplus[id] <= -2 {
					team, found = id, true
					break
				}
			}
			if found {
				break
			}
		}
		if !found {
			return
		}
		if !flipChain(pairings, surplus, team) {
			return
		}
	}
}

func homeSurplus(pairings []Pairing) map[int64]int {
	surplus := make(map[int64]int)
	for _, p := range pairings {
		surplus[p.Home.ID]++
		surplus[p.Away.ID]--
	}
	return surplus
}

type chainStep struct {
	from    int64
	pairing int
}

// flipChain runs a breadth-first search from start along pairings in the
// direction of its surplus and reverses the first chain that ends at a team
// with the opposite surplus.
func flipChain(pairings []Pairing, surplus map[int64]int, start int64) bool {
	sign := 1
	if surplus[start] < 0 {
		sign = -1
	}

	prev := map[int64]*chainStep{start: nil}
	queue := []int64{start}
	end := int64(0)
	reached := false

	for len(queue) > 0 && !reached {
		cur := queue[0]
		queue = queue[1:]
		for i, p := range pairings {
			from, to := p.Home.ID, p.Away.ID
			if sign < 0 {
				from, to = to, from
			}
			if from != cur {
				continue
			}
			if _, seen := prev[to]; seen {
				continue
			}
			prev[to] = &chainStep{from: cur, pairing: i}
			if surplus[to]*sign <= -1 {
				end, reached = to, true
				break
			}
			queue = append(queue, to)
		}
	}
	if !reached {
		return false
	}

	for id := end; prev[id] != nil; id = prev[id].from {
		p := &pairings[prev[id].pairing]
		p.Home, p.Away = p.Away, p.Home
	}
	return true
}
