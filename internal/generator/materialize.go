package generator

import (
	"context"
	"fmt"

	"github.com/derekprior/seasongen/internal/league"
	"github.com/derekprior/seasongen/internal/schedule"
	"github.com/derekprior/seasongen/internal/store"
)

// Materialize persists one game per assignment, binds each slot to its game,
// appends the games to the schedule and to their divisions, and finally sorts
// the schedule by date and time. It must run inside the generation
// transaction so a failure leaves no partial schedule behind.
func Materialize(ctx context.Context, q *store.Queries, season league.Season, sch league.Schedule, assignments []schedule.Assignment) ([]league.Game, error) {
	if len(assignments) == 0 {
		return nil, nil
	}

	games := make([]league.Game, len(assignments))
	for i, a := range assignments {
		games[i] = league.Game{
			SeasonID:   season.ID,
			ScheduleID: sch.ID,
			DivisionID: a.Pairing.DivisionID,
			Date:       a.Slot.Date,
			Time:       a.Slot.Time,
			Field:      a.Slot.Field,
			HomeTeamID: a.Pairing.Home.ID,
			AwayTeamID: a.Pairing.Away.ID,
			SlotID:     a.Slot.ID,
		}
	}

	ids, err := q.InsertGames(ctx, games)
	if err != nil {
		return nil, err
	}
	byDivision := make(map[int64][]int64)
	for i := range games {
		games[i].ID = ids[i]
		if err := q.BindSlot(ctx, games[i].SlotID, ids[i]); err != nil {
			return nil, err
		}
		byDivision[games[i].DivisionID] = append(byDivision[games[i].DivisionID], ids[i])
	}

	if err := q.AppendScheduleGames(ctx, sch.ID, ids); err != nil {
		return nil, err
	}
	for _, div := range season.Divisions {
		if len(byDivision[div.ID]) == 0 {
			continue
		}
		if err := q.AppendDivisionGames(ctx, div.ID, byDivision[div.ID]); err != nil {
			return nil, err
		}
		delete(byDivision, div.ID)
	}
	if len(byDivision) > 0 {
		return nil, fmt.Errorf("games reference %d divisions outside season %d", len(byDivision), season.ID)
	}

	if err := q.SortScheduleGames(ctx, sch.ID); err != nil {
		return nil, err
	}
	league.SortGames(games)
	return games, nil
}
