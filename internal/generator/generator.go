// Package generator runs schedule generation for a season: it replaces any
// existing schedule, builds pairings per division, spreads them over the
// season's weeks, binds them to slots and stores the resulting games.
package generator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/semaphore"

	"github.com/derekprior/seasongen/internal/league"
	"github.com/derekprior/seasongen/internal/schedule"
	"github.com/derekprior/seasongen/internal/strategy"
	"github.com/derekprior/seasongen/internal/store"
)

var (
	ErrSeasonNotFound      = errors.New("season not found")
	ErrNoEligibleDivisions = errors.New("no division has at least two teams")
)

// SlotLayout is the grid slots are generated from.
type SlotLayout struct {
	Days   league.Weekdays
	Bands  []string // earliest first
	Fields []string
}

// TeamSummary reports what one team received in a generation run.
type TeamSummary struct {
	TeamID   int64
	Name     string
	Division string
	Games    int
	Home     int
	Away     int
	Relaxed  int
}

// Result describes a finished generation run. Unresolved pairings are not an
// error; they are reported so an operator can add slots or loosen
// constraints and run again.
type Result struct {
	SeasonID     int64
	ScheduleID   int64
	RunID        string
	GeneratedAt  time.Time
	Pairings     int
	GamesCreated int
	GamesDeleted int64
	Relaxed      int
	Unresolved   []strategy.Pairing
	Skipped      []string
	Warnings     []string
	Rejections   map[string]int
	Teams        []TeamSummary
}

type Service struct {
	db       *store.DB
	layout   SlotLayout
	strategy strategy.Strategy
	clock    clockwork.Clock
	newRunID func() string

	mu    sync.Mutex
	locks map[int64]*semaphore.Weighted
}

type Option func(*Service)

// WithClock sets the clock generation timestamps are read from.
func WithClock(c clockwork.Clock) Option {
	return func(s *Service) { s.clock = c }
}

// WithStrategy replaces the default round robin pairing strategy.
func WithStrategy(st strategy.Strategy) Option {
	return func(s *Service) { s.strategy = st }
}

func New(db *store.DB, layout SlotLayout, opts ...Option) *Service {
	s := &Service{
		db:       db,
		layout:   layout,
		strategy: &strategy.RoundRobin{},
		clock:    clockwork.NewRealClock(),
		newRunID: uuid.NewString,
		locks:    make(map[int64]*semaphore.Weighted),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// seasonLock returns the semaphore serializing runs for one season.
func (s *Service) seasonLock(seasonID int64) *semaphore.Weighted {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[seasonID]
	if !ok {
		l = semaphore.NewWeighted(1)
		s.locks[seasonID] = l
	}
	return l
}

// EnsureSlots creates the season's missing slots from the layout and returns
// how many were added.
func (s *Service) EnsureSlots(ctx context.Context, seasonID int64) (int, error) {
	var created int
	err := s.db.RunInTx(ctx, func(q *store.Queries) error {
		season, err := q.GetSeason(ctx, seasonID)
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("season %d: %w", seasonID, ErrSeasonNotFound)
		}
		if err != nil {
			return err
		}
		want := schedule.GenerateSlots(season.ID, season.StartDate, season.EndDate, s.layout.Days, s.layout.Bands, s.layout.Fields)
		created, err = q.EnsureSlots(ctx, season.ID, want)
		return err
	})
	if err != nil {
		return 0, err
	}
	log.Info().Int64("season_id", seasonID).Int("created", created).Msg("slots ensured")
	return created, nil
}

// Generate replaces the season's schedule with a freshly generated one. Runs
// for the same season wait for each other; ctx bounds that wait. The delete
// of the previous schedule and the write of the new one share a single
// transaction.
func (s *Service) Generate(ctx context.Context, seasonID int64) (*Result, error) {
	lock := s.seasonLock(seasonID)
	if err := lock.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("waiting for season %d: %w", seasonID, err)
	}
	defer lock.Release(1)

	var result *Result
	err := s.db.RunInTx(ctx, func(q *store.Queries) error {
		var err error
		result, err = s.generate(ctx, q, seasonID)
		return err
	})
	if err != nil {
		log.Error().Err(err).Int64("season_id", seasonID).Msg("schedule generation failed")
		return nil, err
	}

	log.Info().
		Int64("season_id", seasonID).
		Str("run_id", result.RunID).
		Int("games", result.GamesCreated).
		Int64("replaced", result.GamesDeleted).
		Int("relaxed", result.Relaxed).
		Int("unresolved", len(result.Unresolved)).
		Msg("schedule generated")
	for _, w := range result.Warnings {
		log.Warn().Int64("season_id", seasonID).Msg(w)
	}
	return result, nil
}

func (s *Service) generate(ctx context.Context, q *store.Queries, seasonID int64) (*Result, error) {
	season, err := q.GetSeason(ctx, seasonID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("season %d: %w", seasonID, ErrSeasonNotFound)
	}
	if err != nil {
		return nil, err
	}

	result := &Result{
		SeasonID:    season.ID,
		RunID:       s.newRunID(),
		GeneratedAt: s.clock.Now().UTC(),
	}

	var eligible []league.Division
	for _, div := range season.Divisions {
		if len(div.Teams) < 2 {
			result.Skipped = append(result.Skipped, div.Name)
			continue
		}
		eligible = append(eligible, div)
	}
	if len(eligible) == 0 {
		return nil, fmt.Errorf("season %q: %w", season.Name, ErrNoEligibleDivisions)
	}

	// The old schedule goes before anything new is computed.
	sch, deleted, err := q.ReplaceSchedule(ctx, season.ID, result.RunID, result.GeneratedAt)
	if err != nil {
		return nil, err
	}
	result.ScheduleID = sch.ID
	result.GamesDeleted = deleted

	weeks := season.PlayableWeeks(s.layout.Days)
	switch total := season.TotalWeeks(); {
	case weeks+1 == total:
		result.Warnings = append(result.Warnings,
			fmt.Sprintf("week %d has no game days and is left unscheduled", total))
	case weeks < total:
		result.Warnings = append(result.Warnings,
			fmt.Sprintf("weeks %d-%d have no game days and are left unscheduled", weeks+1, total))
	}
	var tagged [][]strategy.Pairing
	for _, div := range eligible {
		pairings := s.strategy.Pairings(div.Teams, season.GamesPerTeam)
		interleaved, err := schedule.Interleave(pairings, weeks, season.GamesPerTeam, div.Teams)
		if err != nil {
			return nil, fmt.Errorf("division %q: %w", div.Name, err)
		}
		for _, w := range interleaved.Warnings {
			result.Warnings = append(result.Warnings, fmt.Sprintf("%s: %s", div.Name, w))
		}
		log.Debug().
			Str("division", div.Name).
			Int("pairings", len(interleaved.Pairings)).
			Int("low", interleaved.Distribution.Low).
			Int("high", interleaved.Distribution.High).
			Msg("division interleaved")
		tagged = append(tagged, interleaved.Pairings)
		result.Pairings += len(interleaved.Pairings)
	}
	pool := schedule.Merge(tagged...)

	stored, err := q.ListSlots(ctx, season.ID)
	if err != nil {
		return nil, err
	}
	slots, dropped := schedule.FilterSlots(stored, season.StartDate, season.EndDate, s.layout.Days, s.layout.Bands, s.layout.Fields)
	if dropped > 0 {
		result.Warnings = append(result.Warnings,
			fmt.Sprintf("%d stored slots are outside the current slot layout and were not used", dropped))
	}
	if len(slots) == 0 {
		result.Warnings = append(result.Warnings, "season has no slots; every pairing is unresolved")
	}

	assigned := schedule.Assign(slots, pool, season.StartDate, s.layout.Bands)
	games, err := Materialize(ctx, q, season, sch, assigned.Assignments)
	if err != nil {
		return nil, fmt.Errorf("materializing schedule: %w", err)
	}

	result.GamesCreated = len(games)
	result.Relaxed = assigned.RelaxedCount()
	result.Unresolved = assigned.Unresolved
	result.Rejections = assigned.Rejections
	if n := len(assigned.Unresolved); n > 0 {
		result.Warnings = append(result.Warnings, fmt.Sprintf("%d of %d pairings could not be placed in a slot", n, result.Pairings))
	}
	for _, div := range eligible {
		for _, t := range div.Teams {
			sum := TeamSummary{TeamID: t.ID, Name: t.Name, Division: div.Name}
			if m := assigned.TeamMetrics[t.ID]; m != nil {
				sum.Games, sum.Home, sum.Away, sum.Relaxed = m.Games, m.Home, m.Away, m.Relaxed
			}
			result.Teams = append(result.Teams, sum)
		}
	}
	return result, nil
}
