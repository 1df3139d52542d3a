package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/derekprior/seasongen/internal/league"
)

const dateLayout = "2006-01-02"

// ErrNotFound is returned when a looked-up record does not exist.
var ErrNotFound = errors.New("not found")

// SyncSeason upserts a season, its divisions and its teams by name, and
// removes divisions and teams that are no longer listed. Games involving a
// removed team are deleted with it. The stored season is returned with ids
// filled in.
func (q *Queries) SyncSeason(ctx context.Context, s league.Season) (league.Season, error) {
	var seasonID int64
	err := q.db.QueryRowContext(ctx, `
		INSERT INTO seasons (name, start_date, end_date, games_per_team)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (name) DO UPDATE SET
			start_date = excluded.start_date,
			end_date = excluded.end_date,
			games_per_team = excluded.games_per_team,
			updated_at = strftime('%Y-%m-%dT%H:%M:%SZ', 'now')
		RETURNING id`,
		s.Name, s.StartDate.Format(dateLayout), s.EndDate.Format(dateLayout), s.GamesPerTeam,
	).Scan(&seasonID)
	if err != nil {
		return league.Season{}, fmt.Errorf("upserting season %q: %w", s.Name, err)
	}

	var divisionIDs, teamIDs []int64
	teamPos := 0
	for i, div := range s.Divisions {
		var divisionID int64
		err := q.db.QueryRowContext(ctx, `
			INSERT INTO divisions (season_id, name, position)
			VALUES (?, ?, ?)
			ON CONFLICT (season_id, name) DO UPDATE SET position = excluded.position
			RETURNING id`,
			seasonID, div.Name, i,
		).Scan(&divisionID)
		if err != nil {
			return league.Season{}, fmt.Errorf("upserting division %q: %w", div.Name, err)
		}
		divisionIDs = append(divisionIDs, divisionID)

		for _, t := range div.Teams {
			var teamID int64
			err := q.db.QueryRowContext(ctx, `
				INSERT INTO teams (season_id, division_id, name, blacklist_days, preferred_time, position)
				VALUES (?, ?, ?, ?, ?, ?)
				ON CONFLICT (season_id, name) DO UPDATE SET
					division_id = excluded.division_id,
					blacklist_days = excluded.blacklist_days,
					preferred_time = excluded.preferred_time,
					position = excluded.position
				RETURNING id`,
				seasonID, divisionID, t.Name, strings.Join(t.BlacklistDays.Names(), ","), preferenceOrDefault(t.PreferredTime), teamPos,
			).Scan(&teamID)
			if err != nil {
				return league.Season{}, fmt.Errorf("upserting team %q: %w", t.Name, err)
			}
			teamIDs = append(teamIDs, teamID)
			teamPos++
		}
	}

	if err := q.deleteExcept(ctx, "teams", seasonID, teamIDs); err != nil {
		return league.Season{}, err
	}
	if err := q.deleteExcept(ctx, "divisions", seasonID, divisionIDs); err != nil {
		return league.Season{}, err
	}

	return q.GetSeason(ctx, seasonID)
}

func preferenceOrDefault(p league.TimePreference) string {
	if p == "" {
		return string(league.Balanced)
	}
	return string(p)
}

// deleteExcept removes the season's rows in table whose id is not in keep.
func (q *Queries) deleteExcept(ctx context.Context, table string, seasonID int64, keep []int64) error {
	query := fmt.Sprintf("DELETE FROM %s WHERE season_id = ?", table)
	args := []any{seasonID}
	if len(keep) > 0 {
		query += " AND id NOT IN (" + placeholders(len(keep)) + ")"
		for _, id := range keep {
			args = append(args, id)
		}
	}
	if _, err := q.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("pruning %s: %w", table, err)
	}
	return nil
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

// GetSeason loads a season with its divisions, teams and division game ids.
// It returns ErrNotFound when no season has the id.
func (q *Queries) GetSeason(ctx context.Context, id int64) (league.Season, error) {
	s := league.Season{ID: id}
	var start, end string
	err := q.db.QueryRowContext(ctx,
		`SELECT name, start_date, end_date, games_per_team FROM seasons WHERE id = ?`, id,
	).Scan(&s.Name, &start, &end, &s.GamesPerTeam)
	if errors.Is(err, sql.ErrNoRows) {
		return league.Season{}, fmt.Errorf("season %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return league.Season{}, fmt.Errorf("loading season %d: %w", id, err)
	}
	if s.StartDate, err = parseDate(start); err != nil {
		return league.Season{}, err
	}
	if s.EndDate, err = parseDate(end); err != nil {
		return league.Season{}, err
	}

	if s.Divisions, err = q.listDivisions(ctx, id); err != nil {
		return league.Season{}, err
	}
	return s, nil
}

// GetSeasonByName looks a season up by its unique name.
func (q *Queries) GetSeasonByName(ctx context.Context, name string) (league.Season, error) {
	var id int64
	err := q.db.QueryRowContext(ctx, `SELECT id FROM seasons WHERE name = ?`, name).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return league.Season{}, fmt.Errorf("season %q: %w", name, ErrNotFound)
	}
	if err != nil {
		return league.Season{}, fmt.Errorf("looking up season %q: %w", name, err)
	}
	return q.GetSeason(ctx, id)
}

func (q *Queries) listDivisions(ctx context.Context, seasonID int64) ([]league.Division, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT id, name FROM divisions WHERE season_id = ? ORDER BY position, id`, seasonID)
	if err != nil {
		return nil, fmt.Errorf("listing divisions: %w", err)
	}
	var divisions []league.Division
	for rows.Next() {
		d := league.Division{SeasonID: seasonID}
		if err := rows.Scan(&d.ID, &d.Name); err != nil {
			rows.Close()
			return nil, err
		}
		divisions = append(divisions, d)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	teams, err := q.listTeams(ctx, seasonID)
	if err != nil {
		return nil, err
	}
	for i := range divisions {
		for _, t := range teams {
			if t.DivisionID == divisions[i].ID {
				divisions[i].Teams = append(divisions[i].Teams, t)
			}
		}
		if divisions[i].GameIDs, err = q.divisionGameIDs(ctx, divisions[i].ID); err != nil {
			return nil, err
		}
	}
	return divisions, nil
}

func (q *Queries) listTeams(ctx context.Context, seasonID int64) ([]league.Team, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT id, division_id, name, blacklist_days, preferred_time
		FROM teams WHERE season_id = ? ORDER BY position, id`, seasonID)
	if err != nil {
		return nil, fmt.Errorf("listing teams: %w", err)
	}
	defer rows.Close()

	var teams []league.Team
	for rows.Next() {
		t := league.Team{SeasonID: seasonID}
		var blacklist, pref string
		if err := rows.Scan(&t.ID, &t.DivisionID, &t.Name, &blacklist, &pref); err != nil {
			return nil, err
		}
		var names []string
		if blacklist != "" {
			names = strings.Split(blacklist, ",")
		}
		if t.BlacklistDays, err = league.ParseWeekdays(names); err != nil {
			return nil, fmt.Errorf("team %q: %w", t.Name, err)
		}
		if t.PreferredTime, err = league.ParseTimePreference(pref); err != nil {
			return nil, fmt.Errorf("team %q: %w", t.Name, err)
		}
		teams = append(teams, t)
	}
	return teams, rows.Err()
}

func (q *Queries) divisionGameIDs(ctx context.Context, divisionID int64) ([]int64, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT dg.game_id FROM division_games dg
		JOIN games g ON g.id = dg.game_id
		WHERE dg.division_id = ?
		ORDER BY g.game_date, g.game_time, g.field`, divisionID)
	if err != nil {
		return nil, fmt.Errorf("listing division games: %w", err)
	}
	return scanIDs(rows)
}

func scanIDs(rows *sql.Rows) ([]int64, error) {
	defer rows.Close()
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func parseDate(s string) (time.Time, error) {
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid stored date %q: %w", s, err)
	}
	return t, nil
}
