package projects

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"
)

type Repository interface {
	GetByProjectID(ctx context.Context, projectID string) (*Project, error)
	ListMarketplace(ctx context.Context, filters *MarketplaceFilters) ([]Project, int, error)
}

type postgresRepository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) Repository {
	return &postgresRepository{db: db}
}

func (r *postgresRepository) GetByProjectID(ctx context.Context, projectID string) (*Project, error) {
	var project Project
	err := r.db.GetContext(ctx, &project, "SELECT * FROM projects WHERE project_id = $1", projectID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return &project, err
}

func (r *postgresRepository) ListMarketplace(ctx context.Context, filters *MarketplaceFilters) ([]Project, int, error) {
	where := "WHERE is_active AND available_credits > 0"
	var args []interface{}
	argCount := 1

	if filters.ProjectType != nil {
		where += fmt.Sprintf(" AND project_type = $%d", argCount)
		args = append(args, *filters.ProjectType)
		argCount++
	}
	if filters.MinPrice != nil {
		where += fmt.Sprintf(" AND cost_per_kg >= $%d", argCount)
		args = append(args, *filters.MinPrice)
		argCount++
	}
	if filters.MaxPrice != nil {
		where += fmt.Sprintf(" AND cost_per_kg <= $%d", argCount)
		args = append(args, *filters.MaxPrice)
		argCount++
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM projects "+where, args...); err != nil {
		return nil, 0, err
	}

	query := fmt.Sprintf("SELECT * FROM projects %s ORDER BY cost_per_kg ASC LIMIT $%d OFFSET $%d",
		where, argCount, argCount+1)
	args = append(args, filters.PageSize, (filters.Page-1)*filters.PageSize)

	var projects []Project
	if err := r.db.SelectContext(ctx, &projects, query, args...); err != nil {
		return nil, 0, err
	}
	return projects, total, nil
}
