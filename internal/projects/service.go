package projects

import (
	"context"
	"fmt"

	"soul-carbon/carbon-tracker-backend/pkg/apperrors"
)

// Service provides read access to offset projects. Projects are provisioned
// administratively; the only mutation path is the settlement commit in the
// offsets package.
type Service struct {
	repo Repository
}

// NewService creates a new projects service
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// GetActive loads an active project by its public id.
func (s *Service) GetActive(ctx context.Context, projectID string) (*Project, error) {
	project, err := s.repo.GetByProjectID(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to load project %s: %w", projectID, err)
	}
	if project == nil || !project.IsActive {
		return nil, apperrors.NotFound("project not found or inactive")
	}
	return project, nil
}

// Marketplace lists purchasable projects.
func (s *Service) Marketplace(ctx context.Context, filters *MarketplaceFilters) ([]Project, int, error) {
	if filters.Page < 1 {
		filters.Page = 1
	}
	if filters.PageSize < 1 || filters.PageSize > 100 {
		filters.PageSize = 20
	}
	projects, total, err := s.repo.ListMarketplace(ctx, filters)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list marketplace: %w", err)
	}
	return projects, total, nil
}
