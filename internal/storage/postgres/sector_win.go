package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cory-johannsen/fightloop/internal/game/world"
)

// SectorWin is the persisted win count of one locale of one sector.
type SectorWin struct {
	Position world.Position
	LocaleID string
	Wins     int
}

// SectorWinRepository persists sector control win counts.
type SectorWinRepository struct {
	db *pgxpool.Pool
}

// NewSectorWinRepository creates a SectorWinRepository backed by the given pool.
//
// Precondition: db must be a valid, open connection pool.
func NewSectorWinRepository(db *pgxpool.Pool) *SectorWinRepository {
	return &SectorWinRepository{db: db}
}

// AddWin increments the win count of localeID at pos, creating the row on
// the first win.
//
// Precondition: localeID must be non-empty.
// Postcondition: Returns the new win count.
func (r *SectorWinRepository) AddWin(ctx context.Context, pos world.Position, localeID string) (int, error) {
	if localeID == "" {
		return 0, fmt.Errorf("adding sector win at %s: locale id must not be empty", pos)
	}
	var wins int
	err := r.db.QueryRow(ctx,
		`INSERT INTO sector_wins (level, x, y, locale_id, wins)
		 VALUES ($1, $2, $3, $4, 1)
		 ON CONFLICT (level, x, y, locale_id)
		 DO UPDATE SET wins = sector_wins.wins + 1, updated_at = NOW()
		 RETURNING wins`,
		pos.Level, pos.X, pos.Y, localeID,
	).Scan(&wins)
	if err != nil {
		return 0, fmt.Errorf("adding sector win at %s: %w", pos, err)
	}
	return wins, nil
}

// Wins returns the win count of every locale recorded at pos.
//
// Postcondition: Returns a non-nil map (may be empty).
func (r *SectorWinRepository) Wins(ctx context.Context, pos world.Position) (map[string]int, error) {
	rows, err := r.db.Query(ctx,
		`SELECT locale_id, wins FROM sector_wins
		 WHERE level = $1 AND x = $2 AND y = $3`,
		pos.Level, pos.X, pos.Y,
	)
	if err != nil {
		return nil, fmt.Errorf("querying sector wins at %s: %w", pos, err)
	}
	defer rows.Close()

	out := make(map[string]int)
	for rows.Next() {
		var locale string
		var wins int
		if err := rows.Scan(&locale, &wins); err != nil {
			return nil, fmt.Errorf("scanning sector win at %s: %w", pos, err)
		}
		out[locale] = wins
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating sector wins at %s: %w", pos, err)
	}
	return out, nil
}

// All returns every persisted win count.
func (r *SectorWinRepository) All(ctx context.Context) ([]SectorWin, error) {
	rows, err := r.db.Query(ctx,
		`SELECT level, x, y, locale_id, wins FROM sector_wins
		 ORDER BY level, x, y, locale_id`,
	)
	if err != nil {
		return nil, fmt.Errorf("querying sector wins: %w", err)
	}
	defer rows.Close()

	var out []SectorWin
	for rows.Next() {
		var w SectorWin
		if err := rows.Scan(&w.Position.Level, &w.Position.X, &w.Position.Y, &w.LocaleID, &w.Wins); err != nil {
			return nil, fmt.Errorf("scanning sector win: %w", err)
		}
		out = append(out, w)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating sector wins: %w", err)
	}
	return out, nil
}
