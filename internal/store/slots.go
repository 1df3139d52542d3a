package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/derekprior/seasongen/internal/league"
	"github.com/derekprior/seasongen/internal/schedule"
)

// ErrSlotTaken is returned when binding a slot that already holds a game.
var ErrSlotTaken = errors.New("slot already bound to a game")

// ListSlots returns the season's slots ordered by date, time and field.
func (q *Queries) ListSlots(ctx context.Context, seasonID int64) ([]league.Slot, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT id, slot_date, slot_time, field, game_id
		FROM slots WHERE season_id = ?
		ORDER BY slot_date, slot_time, field`, seasonID)
	if err != nil {
		return nil, fmt.Errorf("listing slots: %w", err)
	}
	defer rows.Close()

	var slots []league.Slot
	for rows.Next() {
		s := league.Slot{SeasonID: seasonID}
		var date string
		var gameID sql.NullInt64
		if err := rows.Scan(&s.ID, &date, &s.Time, &s.Field, &gameID); err != nil {
			return nil, err
		}
		if s.Date, err = parseDate(date); err != nil {
			return nil, err
		}
		if gameID.Valid {
			id := gameID.Int64
			s.GameID = &id
		}
		slots = append(slots, s)
	}
	return slots, rows.Err()
}

// EnsureSlots inserts the slots in want that the season does not have yet
// and returns how many were created. Running it again with the same input
// creates nothing; the unique (season, date, time, field) index makes
// concurrent callers safe as well.
func (q *Queries) EnsureSlots(ctx context.Context, seasonID int64, want []league.Slot) (int, error) {
	existing, err := q.ListSlots(ctx, seasonID)
	if err != nil {
		return 0, err
	}
	missing := schedule.MissingSlots(want, existing)
	if len(missing) == 0 {
		return 0, nil
	}

	stmt, err := q.db.PrepareContext(ctx, `
		INSERT OR IGNORE INTO slots (season_id, slot_date, slot_time, field)
		VALUES (?, ?, ?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("preparing slot insert: %w", err)
	}
	defer stmt.Close()

	created := 0
	for _, s := range missing {
		res, err := stmt.ExecContext(ctx, seasonID, s.Date.Format(dateLayout), s.Time, s.Field)
		if err != nil {
			return created, fmt.Errorf("inserting slot %s %s %s: %w", s.Date.Format(dateLayout), s.Time, s.Field, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return created, err
		}
		created += int(n)
	}
	return created, nil
}

// BindSlot points a free slot at a game.
func (q *Queries) BindSlot(ctx context.Context, slotID, gameID int64) error {
	res, err := q.db.ExecContext(ctx,
		`UPDATE slots SET game_id = ? WHERE id = ? AND game_id IS NULL`, gameID, slotID)
	if err != nil {
		return fmt.Errorf("binding slot %d: %w", slotID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n != 1 {
		return fmt.Errorf("binding slot %d to game %d: %w", slotID, gameID, ErrSlotTaken)
	}
	return nil
}

// ReleaseSlots clears every game reference on the season's slots.
func (q *Queries) ReleaseSlots(ctx context.Context, seasonID int64) (int64, error) {
	res, err := q.db.ExecContext(ctx,
		`UPDATE slots SET game_id = NULL WHERE season_id = ? AND game_id IS NOT NULL`, seasonID)
	if err != nil {
		return 0, fmt.Errorf("releasing slots: %w", err)
	}
	return res.RowsAffected()
}
