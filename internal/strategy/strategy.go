package strategy

import (
	"fmt"

	"github.com/derekprior/seasongen/internal/league"
)

// Pairing is an unscheduled matchup between two teams of one division. Week
// is zero until the pairing has been tagged with a target week.
type Pairing struct {
	DivisionID int64
	Home       league.Team
	Away       league.Team
	Week       int
}

func (p Pairing) String() string {
	if p.Week > 0 {
		return fmt.Sprintf("%s vs %s (week %d)", p.Home.Name, p.Away.Name, p.Week)
	}
	return fmt.Sprintf("%s vs %s", p.Home.Name, p.Away.Name)
}

// Strategy generates the pairings for one division.
type Strategy interface {
	Pairings(teams []league.Team, gamesPerTeam int) []Pairing
}

// Get returns a Strategy by name.
func Get(name string) (Strategy, error) {
	switch name {
	case "round_robin", "":
		return &RoundRobin{}, nil
	default:
		return nil, fmt.Errorf("unknown strategy: %q", name)
	}
}
