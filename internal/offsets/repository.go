package offsets

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"soul-carbon/carbon-tracker-backend/internal/database"
)

// ErrInsufficientCredits is returned by CommitPurchase when the conditional
// decrement matches no row, i.e. the project is gone, inactive, or its pool
// no longer covers the requested amount.
var ErrInsufficientCredits = errors.New("project credit pool cannot cover the purchase")

type Repository interface {
	CommitPurchase(ctx context.Context, offset *Offset) (*Offset, error)
	GetByPaymentRef(ctx context.Context, hbarTxID string) (*Offset, error)
	ListUnredeemed(ctx context.Context, userID uuid.UUID) ([]Offset, error)
	MarkRedeemed(ctx context.Context, userID uuid.UUID, burnTxID string, redeemedAt time.Time, ids []uuid.UUID) (int64, error)
	ListByBurnRef(ctx context.Context, userID uuid.UUID, burnTxID string) ([]Offset, error)
	List(ctx context.Context, userID uuid.UUID, filters *HistoryFilters) ([]Offset, int, float64, error)
}

type postgresRepository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) Repository {
	return &postgresRepository{db: db}
}

// CommitPurchase decrements the project pool and inserts the offset record in
// one transaction. The decrement is conditional: if another purchase drained
// the pool since the advisory check, zero rows match and the whole commit is
// rolled back with ErrInsufficientCredits. A unique violation on either
// external reference means this purchase was already committed; the existing
// row is returned unchanged.
func (r *postgresRepository) CommitPurchase(ctx context.Context, offset *Offset) (*Offset, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		UPDATE projects
		SET available_credits = available_credits - $1, updated_at = NOW()
		WHERE project_id = $2 AND is_active = true AND available_credits >= $1`,
		offset.TotalCo2eKg, offset.ProjectID)
	if err != nil {
		return nil, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, ErrInsufficientCredits
	}

	_, err = tx.NamedExecContext(ctx, `
		INSERT INTO offsets (
			id, user_id, project_id, project_name, quantity, total_co2e_kg,
			total_hbar_cost, user_hedera_address, hbar_transaction_id,
			token_mint_transaction_id, token_id, status
		) VALUES (
			:id, :user_id, :project_id, :project_name, :quantity, :total_co2e_kg,
			:total_hbar_cost, :user_hedera_address, :hbar_transaction_id,
			:token_mint_transaction_id, :token_id, :status
		)`, offset)
	if err != nil {
		if database.IsUniqueViolation(err) {
			tx.Rollback()
			existing, getErr := r.GetByPaymentRef(ctx, offset.HbarTransactionID)
			if getErr == nil && existing != nil {
				return existing, nil
			}
		}
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return offset, nil
}

func (r *postgresRepository) GetByPaymentRef(ctx context.Context, hbarTxID string) (*Offset, error) {
	var offset Offset
	err := r.db.GetContext(ctx, &offset, "SELECT * FROM offsets WHERE hbar_transaction_id = $1", hbarTxID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return &offset, err
}

// ListUnredeemed returns a user's completed, unredeemed lots oldest first,
// the order the redemption allocator consumes them in.
func (r *postgresRepository) ListUnredeemed(ctx context.Context, userID uuid.UUID) ([]Offset, error) {
	var items []Offset
	err := r.db.SelectContext(ctx, &items, `
		SELECT * FROM offsets
		WHERE user_id = $1 AND status = $2 AND redemption_transaction_id IS NULL
		ORDER BY created_at ASC`, userID, StatusCompleted)
	return items, err
}

// MarkRedeemed stamps the selected lots with the burn reference. The IS NULL
// guard makes the update a no-op for any lot a concurrent redemption claimed
// first; callers compare the affected count against len(ids).
func (r *postgresRepository) MarkRedeemed(ctx context.Context, userID uuid.UUID, burnTxID string, redeemedAt time.Time, ids []uuid.UUID) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE offsets
		SET redemption_transaction_id = $1, redeemed_at = $2
		WHERE user_id = $3 AND id = ANY($4) AND redemption_transaction_id IS NULL`,
		burnTxID, redeemedAt, userID, pq.Array(ids))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r *postgresRepository) ListByBurnRef(ctx context.Context, userID uuid.UUID, burnTxID string) ([]Offset, error) {
	var items []Offset
	err := r.db.SelectContext(ctx, &items, `
		SELECT * FROM offsets
		WHERE user_id = $1 AND redemption_transaction_id = $2
		ORDER BY created_at ASC`, userID, burnTxID)
	return items, err
}

func (r *postgresRepository) List(ctx context.Context, userID uuid.UUID, filters *HistoryFilters) ([]Offset, int, float64, error) {
	var summary struct {
		Total   int     `db:"total"`
		SumCo2e float64 `db:"sum_co2e"`
	}
	err := r.db.GetContext(ctx, &summary, `
		SELECT COUNT(*) AS total, COALESCE(SUM(total_co2e_kg), 0) AS sum_co2e
		FROM offsets WHERE user_id = $1`, userID)
	if err != nil {
		return nil, 0, 0, err
	}

	var items []Offset
	err = r.db.SelectContext(ctx, &items, `
		SELECT * FROM offsets
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`, userID, filters.PageSize, (filters.Page-1)*filters.PageSize)
	if err != nil {
		return nil, 0, 0, err
	}
	return items, summary.Total, summary.SumCo2e, nil
}
