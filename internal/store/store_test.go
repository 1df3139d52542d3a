package store_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/derekprior/seasongen/internal/league"
	"github.com/derekprior/seasongen/internal/schedule"
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

var (
	bands    = []string{"18:00", "19:15", "20:30", "21:45"}
	fields   = []string{"North Rink", "South Rink"}
	weekdays = league.Weekdays{
		time.Monday: true, time.Tuesday: true, time.Wednesday: true,
		time.Thursday: true, time.Friday: true,
	}
)

func testSeason() league.Season {
	return league.Season{
		Name:         "Spring 2026",
		StartDate:    mustDate("2026-03-02"),
		EndDate:      mustDate("2026-03-13"),
		GamesPerTeam: 2,
		Divisions: []league.Division{
			{Name: "Upper", Teams: []league.Team{
				{Name: "Hawks", BlacklistDays: league.Weekdays{time.Friday: true}, PreferredTime: league.MostlyEarly},
				{Name: "Owls", PreferredTime: league.MostlyLate},
				{Name: "Falcons"},
			}},
			{Name: "Lower", Teams: []league.Team{
				{Name: "Wrens"},
				{Name: "Finches"},
			}},
		},
	}
}

func TestSyncSeason(t *testing.T) {
	ctx := context.Background()
	db := testutil.NewTestDB(t)

	got, err := db.Queries.SyncSeason(ctx, testSeason())
	if err != nil {
		t.Fatalf("SyncSeason error: %v", err)
	}

	t.Run("stores the season", func(t *testing.T) {
		if got.ID == 0 || got.Name != "Spring 2026" || got.GamesPerTeam != 2 {
			t.Errorf("season = %+v", got)
		}
		if !got.StartDate.Equal(mustDate("2026-03-02")) || !got.EndDate.Equal(mustDate("2026-03-13")) {
			t.Errorf("dates = %s..%s", got.StartDate, got.EndDate)
		}
		if len(got.Divisions) != 2 || got.Divisions[0].Name != "Upper" {
			t.Fatalf("divisions = %+v", got.Divisions)
		}
	})

	t.Run("keeps team order and attributes", func(t *testing.T) {
		upper := got.Divisions[0].Teams
		if len(upper) != 3 || upper[0].Name != "Hawks" || upper[2].Name != "Falcons" {
			t.Fatalf("Upper teams = %+v", upper)
		}
		if !upper[0].Blacklists(time.Friday) || upper[0].PreferredTime != league.MostlyEarly {
			t.Errorf("Hawks = %+v", upper[0])
		}
		if upper[2].PreferredTime != league.Balanced {
			t.Errorf("Falcons preference = %q, want balanced", upper[2].PreferredTime)
		}
		for _, tm := range upper {
			if tm.DivisionID != got.Divisions[0].ID || tm.SeasonID != got.ID {
				t.Errorf("%s ids = division %d season %d", tm.Name, tm.DivisionID, tm.SeasonID)
			}
		}
	})

	t.Run("resync is stable", func(t *testing.T) {
		again, err := db.Queries.SyncSeason(ctx, testSeason())
		if err != nil {
			t.Fatalf("SyncSeason error: %v", err)
		}
		if again.ID != got.ID || again.Divisions[0].Teams[1].ID != got.Divisions[0].Teams[1].ID {
			t.Errorf("ids changed on resync")
		}
	})

	t.Run("prunes removed teams", func(t *testing.T) {
		s := testSeason()
		s.Divisions[0].Teams = s.Divisions[0].Teams[:2]
		s.Divisions[0].Teams[1].BlacklistDays = league.Weekdays{time.Monday: true}
		pruned, err := db.Queries.SyncSeason(ctx, s)
		if err != nil {
			t.Fatalf("SyncSeason error: %v", err)
		}
		upper := pruned.Divisions[0].Teams
		if len(upper) != 2 {
			t.Fatalf("Upper teams = %d, want 2", len(upper))
		}
		if !upper[1].Blacklists(time.Monday) {
			t.Errorf("Owls blacklist = %v, want Monday", upper[1].BlacklistDays)
		}
	})
}

func TestGetSeasonNotFound(t *testing.T) {
	db := testutil.NewTestDB(t)
	_, err := db.Queries.GetSeason(context.Background(), 42)
	if !errors.Is(err, store.ErrNotFound) {
		t.Errorf("error = %v, want ErrNotFound", err)
	}
	_, err = db.Queries.GetSeasonByName(context.Background(), "nope")
	if !errors.Is(err, store.ErrNotFound) {
		t.Errorf("error = %v, want ErrNotFound", err)
	}
}

func TestEnsureSlotsIsIdempotent(t *testing.T) {
	ctx := context.Background()
	db := testutil.NewTestDB(t)
	season, err := db.Queries.SyncSeason(ctx, testSeason())
	if err != nil {
		t.Fatal(err)
	}
	want := schedule.GenerateSlots(season.ID, season.StartDate, season.EndDate, weekdays, bands, fields)

	created, err := db.Queries.EnsureSlots(ctx, season.ID, want)
	if err != nil {
		t.Fatalf("EnsureSlots error: %v", err)
	}
	if created != len(want) {
		t.Errorf("created = %d, want %d", created, len(want))
	}

	created, err = db.Queries.EnsureSlots(ctx, season.ID, want)
	if err != nil {
		t.Fatalf("EnsureSlots error: %v", err)
	}
	if created != 0 {
		t.Errorf("second run created %d slots", created)
	}

	slots, err := db.Queries.ListSlots(ctx, season.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(slots) != len(want) {
		t.Errorf("stored %d slots, want %d", len(slots), len(want))
	}
	seen := make(map[schedule.SlotKey]bool)
	for _, s := range slots {
		if seen[schedule.KeyOf(s)] {
			t.Errorf("duplicate slot %+v", schedule.KeyOf(s))
		}
		seen[schedule.KeyOf(s)] = true
		if s.Bound() {
			t.Errorf("new slot %d is bound", s.ID)
		}
	}
}

func TestSlotBinding(t *testing.T) {
	ctx := context.Background()
	db := testutil.NewTestDB(t)
	season, err := db.Queries.SyncSeason(ctx, testSeason())
	if err != nil {
		t.Fatal(err)
	}
	want := schedule.GenerateSlots(season.ID, season.StartDate, season.EndDate, weekdays, bands, fields)
	if _, err := db.Queries.EnsureSlots(ctx, season.ID, want); err != nil {
		t.Fatal(err)
	}
	slots, err := db.Queries.ListSlots(ctx, season.ID)
	if err != nil {
		t.Fatal(err)
	}

	sch, _, err := db.Queries.ReplaceSchedule(ctx, season.ID, "run-1", time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("ReplaceSchedule error: %v", err)
	}
	lower := season.Divisions[1]
	s := slots[3]
	ids, err := db.Queries.InsertGames(ctx, []league.Game{{
		SeasonID:   season.ID,
		ScheduleID: sch.ID,
		DivisionID: lower.ID,
		Date:       s.Date,
		Time:       s.Time,
		Field:      s.Field,
		HomeTeamID: lower.Teams[0].ID,
		AwayTeamID: lower.Teams[1].ID,
		SlotID:     s.ID,
	}})
	if err != nil {
		t.Fatalf("InsertGames error: %v", err)
	}

	if err := db.Queries.BindSlot(ctx, s.ID, ids[0]); err != nil {
		t.Fatalf("BindSlot error: %v", err)
	}
	if err := db.Queries.BindSlot(ctx, s.ID, ids[0]); !errors.Is(err, store.ErrSlotTaken) {
		t.Errorf("second bind error = %v, want ErrSlotTaken", err)
	}

	t.Run("replace releases slots and removes games", func(t *testing.T) {
		next, deleted, err := db.Queries.ReplaceSchedule(ctx, season.ID, "run-2", time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC))
		if err != nil {
			t.Fatalf("ReplaceSchedule error: %v", err)
		}
		if deleted != 1 {
			t.Errorf("deleted = %d, want 1", deleted)
		}
		if next.RunID != "run-2" {
			t.Errorf("run id = %q", next.RunID)
		}
		got, err := db.Queries.ListSlots(ctx, season.ID)
		if err != nil {
			t.Fatal(err)
		}
		for _, slot := range got {
			if slot.Bound() {
				t.Errorf("slot %d still bound to game %d", slot.ID, *slot.GameID)
			}
		}
		games, err := db.Queries.ListSeasonGames(ctx, season.ID)
		if err != nil {
			t.Fatal(err)
		}
		if len(games) != 0 {
			t.Errorf("games left = %d", len(games))
		}
		stored, err := db.Queries.GetSchedule(ctx, season.ID)
		if err != nil {
			t.Fatal(err)
		}
		if stored.ID != next.ID || !stored.GeneratedAt.Equal(next.GeneratedAt) {
			t.Errorf("schedule = %+v, want %+v", stored, next)
		}
	})
}

func TestRunInTxRollsBack(t *testing.T) {
	ctx := context.Background()
	db := testutil.NewTestDB(t)
	boom := errors.New("boom")

	err := db.RunInTx(ctx, func(q *store.Queries) error {
		if _, err := q.SyncSeason(ctx, testSeason()); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("RunInTx error = %v, want boom", err)
	}
	if _, err := db.Queries.GetSeasonByName(ctx, "Spring 2026"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("season survived rollback: %v", err)
	}
}
