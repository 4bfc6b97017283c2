package transactions

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"soul-carbon/carbon-tracker-backend/internal/emissions"
	"soul-carbon/carbon-tracker-backend/internal/offsets"
)

type Repository interface {
	List(ctx context.Context, userID uuid.UUID, filters *Filters) ([]Transaction, int, error)
	FindEmissionByRef(ctx context.Context, userID uuid.UUID, ref string) (*emissions.Emission, error)
	FindOffsetByRef(ctx context.Context, userID uuid.UUID, ref string) (*offsets.Offset, string, error)
	DashboardStats(ctx context.Context, userID uuid.UUID) (*DashboardStats, error)
}

type postgresRepository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) Repository {
	return &postgresRepository{db: db}
}

// unifiedLog merges emissions and offsets into one stream. Redeemed offsets
// contribute a second row keyed on their burn reference.
const unifiedLog = `
	SELECT id, 'emission' AS kind, hedera_transaction_id AS transaction_id,
	       co2e_kg AS amount_kg, emission_type || '/' || category AS label, created_at
	FROM emissions WHERE user_id = $1
	UNION ALL
	SELECT id, 'offset_purchase' AS kind, hbar_transaction_id AS transaction_id,
	       total_co2e_kg AS amount_kg, project_name AS label, created_at
	FROM offsets WHERE user_id = $1
	UNION ALL
	SELECT id, 'offset_redemption' AS kind, redemption_transaction_id AS transaction_id,
	       total_co2e_kg AS amount_kg, project_name AS label, redeemed_at AS created_at
	FROM offsets WHERE user_id = $1 AND redemption_transaction_id IS NOT NULL`

func (r *postgresRepository) List(ctx context.Context, userID uuid.UUID, filters *Filters) ([]Transaction, int, error) {
	where := ""
	args := []interface{}{userID}
	if filters.Kind != nil {
		where = " WHERE kind = $2"
		args = append(args, *filters.Kind)
	}

	var total int
	err := r.db.GetContext(ctx, &total,
		fmt.Sprintf("SELECT COUNT(*) FROM (%s) log%s", unifiedLog, where), args...)
	if err != nil {
		return nil, 0, err
	}

	query := fmt.Sprintf("SELECT * FROM (%s) log%s ORDER BY created_at DESC LIMIT $%d OFFSET $%d",
		unifiedLog, where, len(args)+1, len(args)+2)
	args = append(args, filters.PageSize, (filters.Page-1)*filters.PageSize)

	var items []Transaction
	if err := r.db.SelectContext(ctx, &items, query, args...); err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

func (r *postgresRepository) FindEmissionByRef(ctx context.Context, userID uuid.UUID, ref string) (*emissions.Emission, error) {
	var emission emissions.Emission
	err := r.db.GetContext(ctx, &emission,
		"SELECT * FROM emissions WHERE user_id = $1 AND hedera_transaction_id = $2", userID, ref)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return &emission, err
}

// FindOffsetByRef resolves an offset by any of its external references and
// reports which reference matched.
func (r *postgresRepository) FindOffsetByRef(ctx context.Context, userID uuid.UUID, ref string) (*offsets.Offset, string, error) {
	var row struct {
		offsets.Offset
		MatchedKind string `db:"matched_kind"`
	}
	err := r.db.GetContext(ctx, &row, `
		SELECT *,
		       CASE WHEN redemption_transaction_id = $2 THEN 'offset_redemption'
		            ELSE 'offset_purchase' END AS matched_kind
		FROM offsets
		WHERE user_id = $1
		  AND (hbar_transaction_id = $2
		       OR token_mint_transaction_id = $2
		       OR redemption_transaction_id = $2)`, userID, ref)
	if err == sql.ErrNoRows {
		return nil, "", nil
	}
	if err != nil {
		return nil, "", err
	}
	return &row.Offset, row.MatchedKind, nil
}

func (r *postgresRepository) DashboardStats(ctx context.Context, userID uuid.UUID) (*DashboardStats, error) {
	var emissionAgg struct {
		TotalEmissionsKg float64 `db:"total_emissions_kg"`
		EmissionCount    int     `db:"emission_count"`
	}
	err := r.db.GetContext(ctx, &emissionAgg, `
		SELECT COALESCE(SUM(co2e_kg), 0) AS total_emissions_kg,
		       COUNT(*) AS emission_count
		FROM emissions WHERE user_id = $1`, userID)
	if err != nil {
		return nil, err
	}

	var offsetAgg struct {
		TotalOffsetKg   float64 `db:"total_offset_kg"`
		TotalRedeemedKg float64 `db:"total_redeemed_kg"`
		OffsetCount     int     `db:"offset_count"`
		TotalHbarSpent  float64 `db:"total_hbar_spent"`
	}
	err = r.db.GetContext(ctx, &offsetAgg, `
		SELECT COALESCE(SUM(total_co2e_kg), 0) AS total_offset_kg,
		       COALESCE(SUM(total_co2e_kg) FILTER (WHERE redemption_transaction_id IS NOT NULL), 0) AS total_redeemed_kg,
		       COUNT(*) AS offset_count,
		       COALESCE(SUM(total_hbar_cost), 0) AS total_hbar_spent
		FROM offsets WHERE user_id = $1`, userID)
	if err != nil {
		return nil, err
	}

	var stats DashboardStats
	stats.TotalEmissionsKg = emissionAgg.TotalEmissionsKg
	stats.EmissionCount = emissionAgg.EmissionCount
	stats.TotalOffsetKg = offsetAgg.TotalOffsetKg
	stats.TotalRedeemedKg = offsetAgg.TotalRedeemedKg
	stats.OffsetCount = offsetAgg.OffsetCount
	stats.TotalHbarSpent = offsetAgg.TotalHbarSpent
	stats.NetFootprintKg = stats.TotalEmissionsKg - stats.TotalOffsetKg
	return &stats, nil
}
