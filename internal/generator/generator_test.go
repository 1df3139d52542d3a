package generator_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/errgroup"

	"github.com/derekprior/seasongen/internal/generator"
	"github.com/derekprior/seasongen/internal/league"
	"github.com/derekprior/seasongen/internal/store"
	"github.com/derekprior/seasongen/internal/testutil"
)

func mustDate(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

var layout = generator.SlotLayout{
	Days: league.Weekdays{
		time.Monday: true, time.Tuesday: true, time.Wednesday: true,
		time.Thursday: true, time.Friday: true,
	},
	Bands:  []string{"18:00", "19:15", "20:30", "21:45"},
	Fields: []string{"North Rink", "South Rink"},
}

var now = time.Date(2026, 2, 20, 9, 30, 0, 0, time.UTC)

func teams(prefix string, n int) []league.Team {
	out := make([]league.Team, n)
	for i := range out {
		out[i] = league.Team{Name: fmt.Sprintf("%s %d", prefix, i+1), PreferredTime: league.Balanced}
	}
	return out
}

// setup stores a ten-week season with a four-team and a six-team division
// plus a division too small to schedule.
func setup(t *testing.T, withSlots bool) (*store.DB, *generator.Service, league.Season) {
	t.Helper()
	ctx := context.Background()
	db := testutil.NewTestDB(t)

	season, err := db.Queries.SyncSeason(ctx, league.Season{
		Name:         "Spring 2026",
		StartDate:    mustDate("2026-03-02"),
		EndDate:      mustDate("2026-05-08"),
		GamesPerTeam: 10,
		Divisions: []league.Division{
			{Name: "Upper", Teams: teams("Upper", 4)},
			{Name: "Lower", Teams: teams("Lower", 6)},
			{Name: "Solo", Teams: teams("Solo", 1)},
		},
	})
	if err != nil {
		t.Fatalf("SyncSeason error: %v", err)
	}

	svc := generator.New(db, layout, generator.WithClock(clockwork.NewFakeClockAt(now)))
	if withSlots {
		created, err := svc.EnsureSlots(ctx, season.ID)
		if err != nil {
			t.Fatalf("EnsureSlots error: %v", err)
		}
		if created != 400 {
			t.Fatalf("created %d slots, want 400", created)
		}
	}
	return db, svc, season
}

func TestGenerate(t *testing.T) {
	ctx := context.Background()
	db, svc, season := setup(t, true)

	result, err := svc.Generate(ctx, season.ID)
	if err != nil {
		t.Fatalf("Generate error: %v", err)
	}

	t.Run("result", func(t *testing.T) {
		// 4*10/2 + 6*10/2
		if result.Pairings != 50 || result.GamesCreated != 50 {
			t.Errorf("pairings = %d, games = %d, want 50 and 50", result.Pairings, result.GamesCreated)
		}
		if len(result.Unresolved) != 0 {
			t.Errorf("unresolved = %v", result.Unresolved)
		}
		if len(result.Skipped) != 1 || result.Skipped[0] != "Solo" {
			t.Errorf("skipped = %v, want [Solo]", result.Skipped)
		}
		if !result.GeneratedAt.Equal(now) {
			t.Errorf("generated at %s, want %s", result.GeneratedAt, now)
		}
		if result.RunID == "" {
			t.Error("run id is empty")
		}
		for _, tm := range result.Teams {
			if tm.Games != 10 {
				t.Errorf("%s plays %d games, want 10", tm.Name, tm.Games)
			}
			if d := tm.Home - tm.Away; d < -1 || d > 1 {
				t.Errorf("%s home %d away %d", tm.Name, tm.Home, tm.Away)
			}
		}
	})

	games, err := db.Queries.ListScheduleGames(ctx, result.ScheduleID)
	if err != nil {
		t.Fatal(err)
	}

	t.Run("schedule is chronological", func(t *testing.T) {
		if len(games) != 50 {
			t.Fatalf("schedule games = %d, want 50", len(games))
		}
		for i := 1; i < len(games); i++ {
			a, b := games[i-1], games[i]
			if b.Date.Before(a.Date) || (b.Date.Equal(a.Date) && b.Time < a.Time) {
				t.Fatalf("game %d (%s %s) sorted after %s %s", i, b.Date.Format("01/02"), b.Time, a.Date.Format("01/02"), a.Time)
			}
		}
	})

	t.Run("no team plays twice on a date", func(t *testing.T) {
		type teamDay struct {
			team int64
			date time.Time
		}
		seen := make(map[teamDay]bool)
		for _, g := range games {
			for _, id := range []int64{g.HomeTeamID, g.AwayTeamID} {
				k := teamDay{id, g.Date}
				if seen[k] {
					t.Errorf("team %d double booked on %s", id, g.Date.Format("2006-01-02"))
				}
				seen[k] = true
			}
		}
	})

	t.Run("slots and games reference each other", func(t *testing.T) {
		slots, err := db.Queries.ListSlots(ctx, season.ID)
		if err != nil {
			t.Fatal(err)
		}
		bound := make(map[int64]int64)
		for _, s := range slots {
			if s.Bound() {
				bound[s.ID] = *s.GameID
			}
		}
		if len(bound) != len(games) {
			t.Errorf("bound slots = %d, want %d", len(bound), len(games))
		}
		for _, g := range games {
			if bound[g.SlotID] != g.ID {
				t.Errorf("game %d uses slot %d, which points at game %d", g.ID, g.SlotID, bound[g.SlotID])
			}
		}
	})

	t.Run("divisions list their games", func(t *testing.T) {
		stored, err := db.Queries.GetSeason(ctx, season.ID)
		if err != nil {
			t.Fatal(err)
		}
		want := map[string]int{"Upper": 20, "Lower": 30, "Solo": 0}
		for _, div := range stored.Divisions {
			if len(div.GameIDs) != want[div.Name] {
				t.Errorf("%s games = %d, want %d", div.Name, len(div.GameIDs), want[div.Name])
			}
		}
	})
}

func TestRegenerateReplacesSchedule(t *testing.T) {
	ctx := context.Background()
	db, svc, season := setup(t, true)

	first, err := svc.Generate(ctx, season.ID)
	if err != nil {
		t.Fatalf("first Generate error: %v", err)
	}
	second, err := svc.Generate(ctx, season.ID)
	if err != nil {
		t.Fatalf("second Generate error: %v", err)
	}

	if second.GamesCreated != first.GamesCreated {
		t.Errorf("regenerated %d games, fresh run made %d", second.GamesCreated, first.GamesCreated)
	}
	if second.GamesDeleted != int64(first.GamesCreated) {
		t.Errorf("deleted %d games, want %d", second.GamesDeleted, first.GamesCreated)
	}
	if second.RunID == first.RunID {
		t.Error("run id was reused")
	}

	games, err := db.Queries.ListSeasonGames(ctx, season.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(games) != second.GamesCreated {
		t.Errorf("season has %d games, want %d", len(games), second.GamesCreated)
	}
	for _, g := range games {
		if g.ScheduleID != second.ScheduleID {
			t.Errorf("game %d belongs to schedule %d, want %d", g.ID, g.ScheduleID, second.ScheduleID)
		}
	}
	orphans, err := db.Queries.CountOrphanGames(ctx, season.ID)
	if err != nil {
		t.Fatal(err)
	}
	if orphans != 0 {
		t.Errorf("orphaned games = %d", orphans)
	}

	sch, err := db.Queries.GetSchedule(ctx, season.ID)
	if err != nil {
		t.Fatal(err)
	}
	if sch.ID != second.ScheduleID || len(sch.GameIDs) != second.GamesCreated {
		t.Errorf("schedule = %d with %d games, want %d with %d", sch.ID, len(sch.GameIDs), second.ScheduleID, second.GamesCreated)
	}
}

func TestGenerateConcurrentRunsForOneSeason(t *testing.T) {
	ctx := context.Background()
	db, svc, season := setup(t, true)

	var g errgroup.Group
	for i := 0; i < 4; i++ {
		g.Go(func() error {
			_, err := svc.Generate(ctx, season.ID)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatalf("concurrent Generate error: %v", err)
	}

	games, err := db.Queries.ListSeasonGames(ctx, season.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(games) != 50 {
		t.Errorf("season has %d games after concurrent runs, want 50", len(games))
	}
	slots, err := db.Queries.ListSlots(ctx, season.ID)
	if err != nil {
		t.Fatal(err)
	}
	bound := 0
	for _, s := range slots {
		if s.Bound() {
			bound++
		}
	}
	if bound != 50 {
		t.Errorf("bound slots = %d, want 50", bound)
	}
}

func TestGenerateWithoutSlots(t *testing.T) {
	_, svc, season := setup(t, false)

	result, err := svc.Generate(context.Background(), season.ID)
	if err != nil {
		t.Fatalf("Generate error: %v", err)
	}
	if result.GamesCreated != 0 {
		t.Errorf("games = %d, want 0", result.GamesCreated)
	}
	if len(result.Unresolved) != 50 {
		t.Errorf("unresolved = %d, want 50", len(result.Unresolved))
	}
	if len(result.Warnings) == 0 {
		t.Error("expected a warning about missing slots")
	}
}

func TestGenerateErrors(t *testing.T) {
	ctx := context.Background()

	t.Run("season not found", func(t *testing.T) {
		_, svc, _ := setup(t, false)
		if _, err := svc.Generate(ctx, 999); !errors.Is(err, generator.ErrSeasonNotFound) {
			t.Errorf("error = %v, want ErrSeasonNotFound", err)
		}
		if _, err := svc.EnsureSlots(ctx, 999); !errors.Is(err, generator.ErrSeasonNotFound) {
			t.Errorf("EnsureSlots error = %v, want ErrSeasonNotFound", err)
		}
	})

	t.Run("no eligible divisions", func(t *testing.T) {
		db := testutil.NewTestDB(t)
		season, err := db.Queries.SyncSeason(ctx, league.Season{
			Name:         "Tiny",
			StartDate:    mustDate("2026-03-02"),
			EndDate:      mustDate("2026-03-27"),
			GamesPerTeam: 4,
			Divisions:    []league.Division{{Name: "Solo", Teams: teams("Solo", 1)}},
		})
		if err != nil {
			t.Fatal(err)
		}
		svc := generator.New(db, layout)
		if _, err := svc.Generate(ctx, season.ID); !errors.Is(err, generator.ErrNoEligibleDivisions) {
			t.Errorf("error = %v, want ErrNoEligibleDivisions", err)
		}
		if _, err := db.Queries.GetSchedule(ctx, season.ID); !errors.Is(err, store.ErrNotFound) {
			t.Errorf("failed run left a schedule behind: %v", err)
		}
	})

	t.Run("canceled context", func(t *testing.T) {
		_, svc, season := setup(t, false)
		canceled, cancel := context.WithCancel(ctx)
		cancel()
		if _, err := svc.Generate(canceled, season.ID); !errors.Is(err, context.Canceled) {
			t.Errorf("error = %v, want context.Canceled", err)
		}
	})
}

func TestGenerateIgnoresSlotsOutsideLayout(t *testing.T) {
	ctx := context.Background()
	db, _, season := setup(t, true)

	moved := generator.SlotLayout{
		Days:   layout.Days,
		Bands:  []string{"17:00", "17:30", "18:05", "22:00"},
		Fields: []string{"East"},
	}
	svc := generator.New(db, moved, generator.WithClock(clockwork.NewFakeClockAt(now)))
	created, err := svc.EnsureSlots(ctx, season.ID)
	if err != nil {
		t.Fatalf("EnsureSlots error: %v", err)
	}
	// 50 weekdays x 4 bands x 1 field
	if created != 200 {
		t.Fatalf("created %d slots, want 200", created)
	}

	result, err := svc.Generate(ctx, season.ID)
	if err != nil {
		t.Fatalf("Generate error: %v", err)
	}
	if result.GamesCreated != 50 || len(result.Unresolved) != 0 {
		t.Errorf("games = %d, unresolved = %d, want 50 and 0", result.GamesCreated, len(result.Unresolved))
	}
	if result.Relaxed != 0 {
		t.Errorf("relaxed = %d, want 0", result.Relaxed)
	}
	found := false
	for _, w := range result.Warnings {
		if strings.Contains(w, "400 stored slots are outside the current slot layout") {
			found = true
		}
	}
	if !found {
		t.Errorf("warnings = %v, want one about unused slots", result.Warnings)
	}

	games, err := db.Queries.ListScheduleGames(ctx, result.ScheduleID)
	if err != nil {
		t.Fatal(err)
	}
	bands := map[string]bool{"17:00": true, "17:30": true, "18:05": true, "22:00": true}
	for _, g := range games {
		if g.Field != "East" || !bands[g.Time] {
			t.Errorf("game %d booked on %s at %s, outside the layout", g.ID, g.Field, g.Time)
		}
	}
}

func TestGenerateSkipsWeeksWithoutGameDays(t *testing.T) {
	ctx := context.Background()
	db := testutil.NewTestDB(t)

	// Saturday 03/07 to Sunday 05/17: eleven weeks, the last one a weekend.
	season, err := db.Queries.SyncSeason(ctx, league.Season{
		Name:         "Spring 2026",
		StartDate:    mustDate("2026-03-07"),
		EndDate:      mustDate("2026-05-17"),
		GamesPerTeam: 10,
		Divisions: []league.Division{
			{Name: "Upper", Teams: teams("Upper", 4)},
			{Name: "Lower", Teams: teams("Lower", 6)},
		},
	})
	if err != nil {
		t.Fatalf("SyncSeason error: %v", err)
	}
	if season.TotalWeeks() != 11 {
		t.Fatalf("total weeks = %d, want 11", season.TotalWeeks())
	}

	svc := generator.New(db, layout, generator.WithClock(clockwork.NewFakeClockAt(now)))
	if _, err := svc.EnsureSlots(ctx, season.ID); err != nil {
		t.Fatalf("EnsureSlots error: %v", err)
	}
	result, err := svc.Generate(ctx, season.ID)
	if err != nil {
		t.Fatalf("Generate error: %v", err)
	}
	if result.GamesCreated != 50 || len(result.Unresolved) != 0 {
		t.Errorf("games = %d, unresolved = %d, want 50 and 0", result.GamesCreated, len(result.Unresolved))
	}
	found := false
	for _, w := range result.Warnings {
		if w == "week 11 has no game days and is left unscheduled" {
			found = true
		}
	}
	if !found {
		t.Errorf("warnings = %v, want one about week 11", result.Warnings)
	}
}
