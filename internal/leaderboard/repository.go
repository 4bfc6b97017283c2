package leaderboard

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

type Repository interface {
	TopByBoard(ctx context.Context, board string, limit int) ([]Entry, error)
	GlobalStats(ctx context.Context) (*GlobalStats, error)
}

type postgresRepository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) Repository {
	return &postgresRepository{db: db}
}

func (r *postgresRepository) TopByBoard(ctx context.Context, board string, limit int) ([]Entry, error) {
	var query string
	switch board {
	case BoardOffsets:
		query = `
			SELECT u.first_name || ' ' || u.last_name AS name,
			       COALESCE(SUM(o.total_co2e_kg), 0) AS total_kg,
			       COUNT(o.id) AS count
			FROM users u
			JOIN offsets o ON o.user_id = u.id
			WHERE u.is_active = true
			GROUP BY u.id, name
			ORDER BY total_kg DESC
			LIMIT $1`
	case BoardEmissions:
		query = `
			SELECT u.first_name || ' ' || u.last_name AS name,
			       COALESCE(SUM(e.co2e_kg), 0) AS total_kg,
			       COUNT(e.id) AS count
			FROM users u
			JOIN emissions e ON e.user_id = u.id
			WHERE u.is_active = true
			GROUP BY u.id, name
			ORDER BY total_kg ASC
			LIMIT $1`
	case BoardNetPositive:
		query = `
			SELECT name, total_kg, count FROM (
				SELECT u.first_name || ' ' || u.last_name AS name,
				       COALESCE((SELECT SUM(o.total_co2e_kg) FROM offsets o WHERE o.user_id = u.id), 0)
				       - COALESCE((SELECT SUM(e.co2e_kg) FROM emissions e WHERE e.user_id = u.id), 0) AS total_kg,
				       (SELECT COUNT(*) FROM offsets o WHERE o.user_id = u.id) AS count
				FROM users u
				WHERE u.is_active = true
			) ranked
			WHERE total_kg > 0
			ORDER BY total_kg DESC
			LIMIT $1`
	default:
		return nil, fmt.Errorf("unknown leaderboard: %s", board)
	}

	var entries []Entry
	if err := r.db.SelectContext(ctx, &entries, query, limit); err != nil {
		return nil, err
	}
	for i := range entries {
		entries[i].Rank = i + 1
	}
	return entries, nil
}

func (r *postgresRepository) GlobalStats(ctx context.Context) (*GlobalStats, error) {
	var stats GlobalStats
	err := r.db.GetContext(ctx, &stats, `
		SELECT (SELECT COUNT(*) FROM users WHERE is_active = true) AS total_users,
		       (SELECT COALESCE(SUM(co2e_kg), 0) FROM emissions) AS total_emissions_kg,
		       (SELECT COALESCE(SUM(total_co2e_kg), 0) FROM offsets) AS total_offset_kg,
		       (SELECT COALESCE(SUM(total_co2e_kg), 0) FROM offsets
		        WHERE redemption_transaction_id IS NOT NULL) AS total_redeemed_kg`)
	if err != nil {
		return nil, err
	}
	return &stats, nil
}
