package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cory-johannsen/fightloop/internal/game/reward"
)

// ErrResultExists is returned when inserting a result whose ID is already stored.
var ErrResultExists = errors.New("fight result already exists")

// ResultRepository persists the reward records of finished fights.
type ResultRepository struct {
	db *pgxpool.Pool
}

// NewResultRepository creates a ResultRepository backed by the given pool.
//
// Precondition: db must be a valid, open connection pool.
func NewResultRepository(db *pgxpool.Pool) *ResultRepository {
	return &ResultRepository{db: db}
}

// Insert stores res for playerID.
//
// Precondition: res must be non-nil with a non-empty ID.
// Postcondition: Returns ErrResultExists if res.ID is already stored.
func (r *ResultRepository) Insert(ctx context.Context, playerID string, res *reward.Result) error {
	if res == nil || res.ID == "" {
		return fmt.Errorf("inserting fight result: result must have an id")
	}
	items, err := json.Marshal(res.Items)
	if err != nil {
		return fmt.Errorf("encoding items of result %s: %w", res.ID, err)
	}
	_, err = r.db.Exec(ctx,
		`INSERT INTO fight_results (id, player_id, won, currency, items, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		res.ID, playerID, res.Won, res.Currency, items, res.CreatedAt,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return ErrResultExists
		}
		return fmt.Errorf("inserting fight result %s: %w", res.ID, err)
	}
	return nil
}

// ListByPlayer returns up to limit results of playerID, newest first.
//
// Precondition: limit > 0.
func (r *ResultRepository) ListByPlayer(ctx context.Context, playerID string, limit int) ([]*reward.Result, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id::text, won, currency, items, created_at FROM fight_results
		 WHERE player_id = $1
		 ORDER BY created_at DESC, id
		 LIMIT $2`,
		playerID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying fight results of %q: %w", playerID, err)
	}
	defer rows.Close()

	var out []*reward.Result
	for rows.Next() {
		var res reward.Result
		var items []byte
		if err := rows.Scan(&res.ID, &res.Won, &res.Currency, &items, &res.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning fight result: %w", err)
		}
		if err := json.Unmarshal(items, &res.Items); err != nil {
			return nil, fmt.Errorf("decoding items of result %s: %w", res.ID, err)
		}
		out = append(out, &res)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating fight results: %w", err)
	}
	return out, nil
}
