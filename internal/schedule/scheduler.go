package schedule

import (
	"time"

	"github.com/derekprior/seasongen/internal/league"
	"github.com/derekprior/seasongen/internal/strategy"
)

// Assignment pairs a week-tagged pairing with a slot. Relaxed is set when the
// pairing only matched after blacklist and time preference were ignored.
type Assignment struct {
	Pairing strategy.Pairing
	Slot    league.Slot
	Relaxed bool
}

// TeamMetrics holds per-team statistics for one assignment run.
type TeamMetrics struct {
	Games   int
	Home    int
	Away    int
	Relaxed int
}

// Result is the output of the slot assignment walk.
type Result struct {
	Assignments []Assignment
	Unresolved  []strategy.Pairing
	TeamMetrics map[int64]*TeamMetrics
	Rejections  map[string]int
}

// rejectionReason categorizes why a pairing was passed over for a slot.
type rejectionReason int

const (
	rejectWrongWeek rejectionReason = iota
	rejectBusy
	rejectBlacklist
	rejectPreference
)

func (r rejectionReason) String() string {
	switch r {
	case rejectWrongWeek:
		return "wrong week"
	case rejectBusy:
		return "team busy"
	case rejectBlacklist:
		return "blacklisted day"
	case rejectPreference:
		return "time preference"
	default:
		return "unknown"
	}
}

// assignmentContext is the mutable state of one walk over the slots. It is
// created per call and passed by pointer; nothing is kept between runs.
type assignmentContext struct {
	bands      map[string]int
	pool       []strategy.Pairing
	busy       map[int64]map[time.Time]bool // team -> dates already playing
	result     *Result
	rejections map[rejectionReason]int
}

// Assign walks slots in chronological order and binds each one to the first
// pairing in pool order whose target week matches the slot's week, whose
// teams are both free that day, neither of which blacklists the weekday, and
// whose mean time preference for the slot's band is at least
// PreferenceThreshold. When nothing matches, the search is repeated with only
// the week and availability checks. Slots with no match stay empty.
//
// Pairings still in the pool when the slots run out are returned as
// Unresolved; that is an expected outcome, not an error.
func Assign(slots []league.Slot, pool []strategy.Pairing, seasonStart time.Time, bands []string) *Result {
	state := newAssignmentContext(pool, bands)

	ordered := append([]league.Slot(nil), slots...)
	league.SortSlots(ordered)

	for _, slot := range ordered {
		if len(state.pool) == 0 {
			break
		}
		if slot.Bound() {
			continue
		}
		week := league.WeekNumber(seasonStart, slot.Date)

		if i := state.find(slot, week, true); i >= 0 {
			state.bind(i, slot, false)
			continue
		}
		if i := state.find(slot, week, false); i >= 0 {
			state.bind(i, slot, true)
		}
	}

	state.result.Unresolved = state.pool
	for reason, n := range state.rejections {
		state.result.Rejections[reason.String()] = n
	}
	return state.result
}

func newAssignmentContext(pool []strategy.Pairing, bands []string) *assignmentContext {
	bandIndex := make(map[string]int, len(bands))
	for i, b := range bands {
		bandIndex[b] = i
	}
	return &assignmentContext{
		bands: bandIndex,
		pool:  append([]strategy.Pairing(nil), pool...),
		busy:  make(map[int64]map[time.Time]bool),
		result: &Result{
			TeamMetrics: make(map[int64]*TeamMetrics),
			Rejections:  make(map[string]int),
		},
		rejections: make(map[rejectionReason]int),
	}
}

// find returns the index of the first pool entry that fits slot, or -1.
func (c *assignmentContext) find(slot league.Slot, week int, strict bool) int {
	for i, p := range c.pool {
		if reason, ok := c.check(p, slot, week, strict); !ok {
			if strict {
				c.rejections[reason]++
			}
			continue
		}
		return i
	}
	return -1
}

func (c *assignmentContext) check(p strategy.Pairing, slot league.Slot, week int, strict bool) (rejectionReason, bool) {
	if p.Week != week {
		return rejectWrongWeek, false
	}
	if c.isBusy(p.Home.ID, slot.Date) || c.isBusy(p.Away.ID, slot.Date) {
		return rejectBusy, false
	}
	if !strict {
		return 0, true
	}
	day := slot.Date.Weekday()
	if p.Home.Blacklists(day) || p.Away.Blacklists(day) {
		return rejectBlacklist, false
	}
	band, ok := c.bands[slot.Time]
	if !ok || PairingScore(p.Home, p.Away, band) < PreferenceThreshold {
		return rejectPreference, false
	}
	return 0, true
}

func (c *assignmentContext) isBusy(team int64, d time.Time) bool {
	return c.busy[team][d]
}

func (c *assignmentContext) markBusy(team int64, d time.Time) {
	if c.busy[team] == nil {
		c.busy[team] = make(map[time.Time]bool)
	}
	c.busy[team][d] = true
}

func (c *assignmentContext) bind(i int, slot league.Slot, relaxed bool) {
	p := c.pool[i]
	c.pool = append(c.pool[:i], c.pool[i+1:]...)

	c.markBusy(p.Home.ID, slot.Date)
	c.markBusy(p.Away.ID, slot.Date)
	c.result.Assignments = append(c.result.Assignments, Assignment{Pairing: p, Slot: slot, Relaxed: relaxed})

	home := c.metrics(p.Home.ID)
	home.Games++
	home.Home++
	away := c.metrics(p.Away.ID)
	away.Games++
	away.Away++
	if relaxed {
		home.Relaxed++
		away.Relaxed++
	}
}

func (c *assignmentContext) metrics(team int64) *TeamMetrics {
	m, ok := c.result.TeamMetrics[team]
	if !ok {
		m = &TeamMetrics{}
		c.result.TeamMetrics[team] = m
	}
	return m
}

// RelaxedCount is the number of assignments made under relaxed matching.
func (r *Result) RelaxedCount() int {
	n := 0
	for _, a := range r.Assignments {
		if a.Relaxed {
			n++
		}
	}
	return n
}
