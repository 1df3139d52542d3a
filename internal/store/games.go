package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/derekprior/seasongen/internal/league"
)

// GetSchedule returns the season's schedule with its game ids in position
// order, or ErrNotFound when the season has never been generated.
func (q *Queries) GetSchedule(ctx context.Context, seasonID int64) (league.Schedule, error) {
	sch := league.Schedule{SeasonID: seasonID}
	var generatedAt string
	err := q.db.QueryRowContext(ctx,
		`SELECT id, run_id, generated_at FROM schedules WHERE season_id = ?`, seasonID,
	).Scan(&sch.ID, &sch.RunID, &generatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return league.Schedule{}, fmt.Errorf("schedule for season %d: %w", seasonID, ErrNotFound)
	}
	if err != nil {
		return league.Schedule{}, fmt.Errorf("loading schedule: %w", err)
	}
	if sch.GeneratedAt, err = time.Parse(time.RFC3339Nano, generatedAt); err != nil {
		return league.Schedule{}, fmt.Errorf("invalid generated_at %q: %w", generatedAt, err)
	}

	rows, err := q.db.QueryContext(ctx,
		`SELECT game_id FROM schedule_games WHERE schedule_id = ? ORDER BY position`, sch.ID)
	if err != nil {
		return league.Schedule{}, fmt.Errorf("listing schedule games: %w", err)
	}
	if sch.GameIDs, err = scanIDs(rows); err != nil {
		return league.Schedule{}, err
	}
	return sch, nil
}

// ReplaceSchedule deletes the season's games and schedule row and creates an
// empty schedule for a new generation run. Slots are released before their
// games are removed so no slot is left pointing at a deleted game.
func (q *Queries) ReplaceSchedule(ctx context.Context, seasonID int64, runID string, generatedAt time.Time) (league.Schedule, int64, error) {
	if _, err := q.ReleaseSlots(ctx, seasonID); err != nil {
		return league.Schedule{}, 0, err
	}
	res, err := q.db.ExecContext(ctx, `DELETE FROM games WHERE season_id = ?`, seasonID)
	if err != nil {
		return league.Schedule{}, 0, fmt.Errorf("deleting games: %w", err)
	}
	deleted, err := res.RowsAffected()
	if err != nil {
		return league.Schedule{}, 0, err
	}
	if _, err := q.db.ExecContext(ctx, `DELETE FROM schedules WHERE season_id = ?`, seasonID); err != nil {
		return league.Schedule{}, 0, fmt.Errorf("deleting schedule: %w", err)
	}

	sch := league.Schedule{SeasonID: seasonID, RunID: runID, GeneratedAt: generatedAt.UTC()}
	err = q.db.QueryRowContext(ctx,
		`INSERT INTO schedules (season_id, run_id, generated_at) VALUES (?, ?, ?) RETURNING id`,
		seasonID, runID, sch.GeneratedAt.Format(time.RFC3339Nano),
	).Scan(&sch.ID)
	if err != nil {
		return league.Schedule{}, 0, fmt.Errorf("creating schedule: %w", err)
	}
	return sch, deleted, nil
}

// InsertGames writes games in one prepared batch and returns their ids in
// input order.
func (q *Queries) InsertGames(ctx context.Context, games []league.Game) ([]int64, error) {
	if len(games) == 0 {
		return nil, nil
	}
	stmt, err := q.db.PrepareContext(ctx, `
		INSERT INTO games (season_id, schedule_id, division_id, game_date, game_time, field,
			home_team_id, away_team_id, slot_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id`)
	if err != nil {
		return nil, fmt.Errorf("preparing game insert: %w", err)
	}
	defer stmt.Close()

	ids := make([]int64, len(games))
	for i, g := range games {
		err := stmt.QueryRowContext(ctx,
			g.SeasonID, g.ScheduleID, g.DivisionID, g.Date.Format(dateLayout), g.Time, g.Field,
			g.HomeTeamID, g.AwayTeamID, g.SlotID,
		).Scan(&ids[i])
		if err != nil {
			return nil, fmt.Errorf("inserting game %d of %d: %w", i+1, len(games), err)
		}
	}
	return ids, nil
}

// AppendScheduleGames adds games to the end of a schedule's list.
func (q *Queries) AppendScheduleGames(ctx context.Context, scheduleID int64, gameIDs []int64) error {
	var next int
	err := q.db.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(position) + 1, 0) FROM schedule_games WHERE schedule_id = ?`, scheduleID,
	).Scan(&next)
	if err != nil {
		return fmt.Errorf("reading schedule position: %w", err)
	}
	for i, id := range gameIDs {
		if _, err := q.db.ExecContext(ctx,
			`INSERT INTO schedule_games (schedule_id, game_id, position) VALUES (?, ?, ?)`,
			scheduleID, id, next+i,
		); err != nil {
			return fmt.Errorf("appending game %d to schedule: %w", id, err)
		}
	}
	return nil
}

// AppendDivisionGames records games against their division.
func (q *Queries) AppendDivisionGames(ctx context.Context, divisionID int64, gameIDs []int64) error {
	for _, id := range gameIDs {
		if _, err := q.db.ExecContext(ctx,
			`INSERT INTO division_games (division_id, game_id) VALUES (?, ?)`, divisionID, id,
		); err != nil {
			return fmt.Errorf("appending game %d to division %d: %w", id, divisionID, err)
		}
	}
	return nil
}

// SortScheduleGames renumbers the schedule's positions chronologically by
// date and time, with field as the tiebreaker.
func (q *Queries) SortScheduleGames(ctx context.Context, scheduleID int64) error {
	games, err := q.ListScheduleGames(ctx, scheduleID)
	if err != nil {
		return err
	}
	league.SortGames(games)
	for i, g := range games {
		if _, err := q.db.ExecContext(ctx,
			`UPDATE schedule_games SET position = ? WHERE schedule_id = ? AND game_id = ?`,
			i, scheduleID, g.ID,
		); err != nil {
			return fmt.Errorf("sorting schedule: %w", err)
		}
	}
	return nil
}

const gameColumns = `g.id, g.season_id, g.schedule_id, g.division_id, g.game_date, g.game_time, g.field,
	g.home_team_id, g.away_team_id, g.slot_id, g.home_score, g.away_score`

// ListScheduleGames returns a schedule's games in position order.
func (q *Queries) ListScheduleGames(ctx context.Context, scheduleID int64) ([]league.Game, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT `+gameColumns+`
		FROM schedule_games sg JOIN games g ON g.id = sg.game_id
		WHERE sg.schedule_id = ?
		ORDER BY sg.position`, scheduleID)
	if err != nil {
		return nil, fmt.Errorf("listing schedule games: %w", err)
	}
	return scanGames(rows)
}

// ListSeasonGames returns every game stored for a season, chronologically.
func (q *Queries) ListSeasonGames(ctx context.Context, seasonID int64) ([]league.Game, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT `+gameColumns+`
		FROM games g WHERE g.season_id = ?
		ORDER BY g.game_date, g.game_time, g.field`, seasonID)
	if err != nil {
		return nil, fmt.Errorf("listing season games: %w", err)
	}
	return scanGames(rows)
}

// CountOrphanGames counts games whose schedule no longer exists or that are
// missing from their schedule's game list.
func (q *Queries) CountOrphanGames(ctx context.Context, seasonID int64) (int, error) {
	var n int
	err := q.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM games g
		LEFT JOIN schedules s ON s.id = g.schedule_id
		LEFT JOIN schedule_games sg ON sg.game_id = g.id AND sg.schedule_id = g.schedule_id
		WHERE g.season_id = ? AND (s.id IS NULL OR sg.game_id IS NULL)`, seasonID,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("counting orphan games: %w", err)
	}
	return n, nil
}

func scanGames(rows *sql.Rows) ([]league.Game, error) {
	defer rows.Close()
	var games []league.Game
	for rows.Next() {
		var g league.Game
		var date string
		var home, away sql.NullInt64
		if err := rows.Scan(&g.ID, &g.SeasonID, &g.ScheduleID, &g.DivisionID, &date, &g.Time, &g.Field,
			&g.HomeTeamID, &g.AwayTeamID, &g.SlotID, &home, &away); err != nil {
			return nil, err
		}
		d, err := parseDate(date)
		if err != nil {
			return nil, err
		}
		g.Date = d
		if home.Valid {
			v := int(home.Int64)
			g.HomeScore = &v
		}
		if away.Valid {
			v := int(away.Int64)
			g.AwayScore = &v
		}
		games = append(games, g)
	}
	return games, rows.Err()
}
