package league

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// TimePreference is the kickoff band a team would rather play in.
type TimePreference string

const (
	MostlyEarly TimePreference = "mostly_early"
	Balanced    TimePreference = "balanced"
	MostlyLate  TimePreference = "mostly_late"
)

// ParseTimePreference accepts the config spelling ("mostly_early") as well as
// the display spelling ("Mostly Early"). An empty value means Balanced.
func ParseTimePreference(s string) (TimePreference, error) {
	norm := strings.ToLower(strings.TrimSpace(s))
	norm = strings.NewReplacer(" ", "_", "-", "_").Replace(norm)
	switch TimePreference(norm) {
	case "":
		return Balanced, nil
	case MostlyEarly, Balanced, MostlyLate:
		return TimePreference(norm), nil
	default:
		return "", fmt.Errorf("unknown time preference %q", s)
	}
}

// ParseWeekday parses a weekday name ("Monday", "mon").
func ParseWeekday(s string) (time.Weekday, error) {
	norm := strings.ToLower(strings.TrimSpace(s))
	for d := time.Sunday; d <= time.Saturday; d++ {
		name := strings.ToLower(d.String())
		if norm == name || (len(norm) == 3 && strings.HasPrefix(name, norm)) {
			return d, nil
		}
	}
	return 0, fmt.Errorf("unknown weekday %q", s)
}

// Weekdays is a set of days of the week.
type Weekdays map[time.Weekday]bool

// ParseWeekdays builds a set from weekday names.
func ParseWeekdays(names []string) (Weekdays, error) {
	days := make(Weekdays, len(names))
	for _, n := range names {
		d, err := ParseWeekday(n)
		if err != nil {
			return nil, err
		}
		days[d] = true
	}
	return days, nil
}

// Names returns the weekday names in calendar order (Sunday first).
func (w Weekdays) Names() []string {
	var days []time.Weekday
	for d, ok := range w {
		if ok {
			days = append(days, d)
		}
	}
	sort.Slice(days, func(i, j int) bool { return days[i] < days[j] })
	names := make([]string, len(days))
	for i, d := range days {
		names[i] = d.String()
	}
	return names
}

type Team struct {
	ID            int64
	SeasonID      int64
	DivisionID    int64
	Name          string
	BlacklistDays Weekdays
	PreferredTime TimePreference
}

// Blacklists reports whether the team refuses to play on the given weekday.
func (t Team) Blacklists(d time.Weekday) bool {
	return t.BlacklistDays[d]
}

type Division struct {
	ID       int64
	SeasonID int64
	Name     string
	Teams    []Team
	GameIDs  []int64
}

type Season struct {
	ID           int64
	Name         string
	StartDate    time.Time
	EndDate      time.Time // inclusive
	GamesPerTeam int
	Divisions    []Division
}

// TotalWeeks is the number of (possibly partial) weeks between the start and
// end dates, counting both ends.
func (s Season) TotalWeeks() int {
	days := int(s.EndDate.Sub(s.StartDate).Hours()/24) + 1
	if days <= 0 {
		return 0
	}
	return (days + 6) / 7
}

// PlayableWeeks is TotalWeeks without the trailing weeks that contain none of
// days. Only the final partial week can lack a game day. An empty set leaves
// every week in play.
func (s Season) PlayableWeeks(days Weekdays) int {
	if len(days) == 0 {
		return s.TotalWeeks()
	}
	for d := s.EndDate; !d.Before(s.StartDate); d = d.AddDate(0, 0, -1) {
		if days[d.Weekday()] {
			return s.WeekOf(d)
		}
	}
	return 0
}

// WeekOf returns the 1-based week number of d relative to the season start.
func (s Season) WeekOf(d time.Time) int {
	return WeekNumber(s.StartDate, d)
}

// Teams returns every team across all divisions, indexed by id.
func (s Season) Teams() map[int64]Team {
	teams := make(map[int64]Team)
	for _, div := range s.Divisions {
		for _, t := range div.Teams {
			teams[t.ID] = t
		}
	}
	return teams
}

// WeekNumber is floor((d - start) / 7 days) + 1.
func WeekNumber(start, d time.Time) int {
	days := int(d.Sub(start).Hours() / 24)
	if days < 0 {
		return 0
	}
	return days/7 + 1
}

// Slot is a concrete (date, time band, field) opportunity to host a game.
type Slot struct {
	ID       int64
	SeasonID int64
	Date     time.Time
	Time     string // "18:00"
	Field    string
	GameID   *int64
}

// Bound reports whether a game currently occupies the slot.
func (s Slot) Bound() bool {
	return s.GameID != nil
}

type Game struct {
	ID         int64
	SeasonID   int64
	ScheduleID int64
	DivisionID int64
	Date       time.Time
	Time       string
	Field      string
	HomeTeamID int64
	AwayTeamID int64
	SlotID     int64
	HomeScore  *int
	AwayScore  *int
}

type Schedule struct {
	ID          int64
	SeasonID    int64
	RunID       string
	GeneratedAt time.Time
	GameIDs     []int64
}

// SortSlots orders slots by date, then time, then field.
func SortSlots(slots []Slot) {
	sort.Slice(slots, func(i, j int) bool {
		if !slots[i].Date.Equal(slots[j].Date) {
			return slots[i].Date.Before(slots[j].Date)
		}
		if slots[i].Time != slots[j].Time {
			return slots[i].Time < slots[j].Time
		}
		return slots[i].Field < slots[j].Field
	})
}

// SortGames orders games chronologically by (date, time), breaking ties on
// field so output is stable.
func SortGames(games []Game) {
	sort.SliceStable(games, func(i, j int) bool {
		if !games[i].Date.Equal(games[j].Date) {
			return games[i].Date.Before(games[j].Date)
		}
		if games[i].Time != games[j].Time {
			return games[i].Time < games[j].Time
		}
		return games[i].Field < games[j].Field
	})
}
