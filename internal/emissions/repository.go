package emissions

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

type Repository interface {
	Insert(ctx context.Context, emission *Emission) error
	GetByTransactionID(ctx context.Context, txID string) (*Emission, error)
	List(ctx context.Context, userID uuid.UUID, filters *HistoryFilters) ([]Emission, int, float64, error)
	StatsByType(ctx context.Context, userID uuid.UUID) ([]TypeStat, error)
	MonthlyStats(ctx context.Context, userID uuid.UUID, months int) ([]MonthlyStat, error)
}

type postgresRepository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) Repository {
	return &postgresRepository{db: db}
}

func (r *postgresRepository) Insert(ctx context.Context, emission *Emission) error {
	query := `
		INSERT INTO emissions (
			id, user_id, emission_type, category, amount, unit, co2e_kg, date,
			description, hedera_transaction_id, consensus_timestamp, topic_id, calculation_method
		) VALUES (
			:id, :user_id, :emission_type, :category, :amount, :unit, :co2e_kg, :date,
			:description, :hedera_transaction_id, :consensus_timestamp, :topic_id, :calculation_method
		)`
	_, err := r.db.NamedExecContext(ctx, query, emission)
	return err
}

func (r *postgresRepository) GetByTransactionID(ctx context.Context, txID string) (*Emission, error) {
	var emission Emission
	err := r.db.GetContext(ctx, &emission, "SELECT * FROM emissions WHERE hedera_transaction_id = $1", txID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return &emission, err
}

func (r *postgresRepository) List(ctx context.Context, userID uuid.UUID, filters *HistoryFilters) ([]Emission, int, float64, error) {
	where := "WHERE user_id = $1"
	args := []interface{}{userID}
	argCount := 2

	if filters.StartDate != nil {
		where += fmt.Sprintf(" AND date >= $%d", argCount)
		args = append(args, *filters.StartDate)
		argCount++
	}
	if filters.EndDate != nil {
		where += fmt.Sprintf(" AND date <= $%d", argCount)
		args = append(args, *filters.EndDate)
		argCount++
	}
	if filters.EmissionType != nil {
		where += fmt.Sprintf(" AND emission_type = $%d", argCount)
		args = append(args, *filters.EmissionType)
		argCount++
	}

	var summary struct {
		Total   int     `db:"total"`
		SumCo2e float64 `db:"sum_co2e"`
	}
	err := r.db.GetContext(ctx, &summary,
		"SELECT COUNT(*) AS total, COALESCE(SUM(co2e_kg), 0) AS sum_co2e FROM emissions "+where, args...)
	if err != nil {
		return nil, 0, 0, err
	}

	query := fmt.Sprintf("SELECT * FROM emissions %s ORDER BY date DESC LIMIT $%d OFFSET $%d",
		where, argCount, argCount+1)
	args = append(args, filters.PageSize, (filters.Page-1)*filters.PageSize)

	var items []Emission
	if err := r.db.SelectContext(ctx, &items, query, args...); err != nil {
		return nil, 0, 0, err
	}
	return items, summary.Total, summary.SumCo2e, nil
}

func (r *postgresRepository) StatsByType(ctx context.Context, userID uuid.UUID) ([]TypeStat, error) {
	var stats []TypeStat
	err := r.db.SelectContext(ctx, &stats, `
		SELECT emission_type,
		       COALESCE(SUM(co2e_kg), 0) AS total_co2e,
		       COUNT(*) AS count,
		       COALESCE(AVG(co2e_kg), 0) AS avg_co2e
		FROM emissions
		WHERE user_id = $1
		GROUP BY emission_type
		ORDER BY total_co2e DESC`, userID)
	return stats, err
}

func (r *postgresRepository) MonthlyStats(ctx context.Context, userID uuid.UUID, months int) ([]MonthlyStat, error) {
	var stats []MonthlyStat
	err := r.db.SelectContext(ctx, &stats, `
		SELECT EXTRACT(YEAR FROM date)::int AS year,
		       EXTRACT(MONTH FROM date)::int AS month,
		       COALESCE(SUM(co2e_kg), 0) AS total_co2e,
		       COUNT(*) AS count
		FROM emissions
		WHERE user_id = $1
		GROUP BY year, month
		ORDER BY year DESC, month DESC
		LIMIT $2`, userID, months)
	return stats, err
}
