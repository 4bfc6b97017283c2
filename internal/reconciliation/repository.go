package reconciliation

import (
	"context"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

type Repository interface {
	Insert(ctx context.Context, inc *Inconsistency) error
	ListUnresolved(ctx context.Context, limit int) ([]Inconsistency, error)
	MarkResolved(ctx context.Context, id uuid.UUID) error
}

type postgresRepository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) Repository {
	return &postgresRepository{db: db}
}

func (r *postgresRepository) Insert(ctx context.Context, inc *Inconsistency) error {
	query := `
		INSERT INTO settlement_inconsistencies (
			id, kind, user_id, project_id, transfer_transaction_id, mint_transaction_id,
			burn_transaction_id, submit_transaction_id, amount_kg, amount_hbar, detail,
			correlation_id, resolved
		) VALUES (
			:id, :kind, :user_id, :project_id, :transfer_transaction_id, :mint_transaction_id,
			:burn_transaction_id, :submit_transaction_id, :amount_kg, :amount_hbar, :detail,
			:correlation_id, :resolved
		)`
	_, err := r.db.NamedExecContext(ctx, query, inc)
	return err
}

func (r *postgresRepository) ListUnresolved(ctx context.Context, limit int) ([]Inconsistency, error) {
	var incs []Inconsistency
	err := r.db.SelectContext(ctx, &incs,
		"SELECT * FROM settlement_inconsistencies WHERE NOT resolved ORDER BY created_at ASC LIMIT $1", limit)
	return incs, err
}

func (r *postgresRepository) MarkResolved(ctx context.Context, id uuid.UUID) error {
	_, err := r.db.ExecContext(ctx,
		"UPDATE settlement_inconsistencies SET resolved = TRUE WHERE id = $1", id)
	return err
}
