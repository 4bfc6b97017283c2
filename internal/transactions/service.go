package transactions

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"soul-carbon/carbon-tracker-backend/pkg/apperrors"
)

const explorerBase = "https://hashscan.io/testnet/transaction/"

// Service exposes the unified activity log over the emission and offset
// stores.
type Service struct {
	repo Repository
}

// NewService creates a new transactions service
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// List returns a page of the user's unified activity log.
func (s *Service) List(ctx context.Context, userID uuid.UUID, filters *Filters) ([]Transaction, int, error) {
	if filters.Page < 1 {
		filters.Page = 1
	}
	if filters.PageSize < 1 || filters.PageSize > 100 {
		filters.PageSize = 20
	}
	if filters.Kind != nil {
		switch *filters.Kind {
		case KindEmission, KindOffsetPurchase, KindOffsetRedemption:
		default:
			return nil, 0, apperrors.Validation("unknown transaction kind: " + *filters.Kind)
		}
	}
	items, total, err := s.repo.List(ctx, userID, filters)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list transactions: %w", err)
	}
	return items, total, nil
}

// Lookup resolves an external ledger reference to the record it anchors,
// whichever table owns it.
func (s *Service) Lookup(ctx context.Context, userID uuid.UUID, ref string) (*Detail, error) {
	emission, err := s.repo.FindEmissionByRef(ctx, userID, ref)
	if err != nil {
		return nil, fmt.Errorf("failed to look up transaction %s: %w", ref, err)
	}
	if emission != nil {
		return &Detail{Kind: KindEmission, Record: emission, Explorer: explorerBase + ref}, nil
	}

	offset, kind, err := s.repo.FindOffsetByRef(ctx, userID, ref)
	if err != nil {
		return nil, fmt.Errorf("failed to look up transaction %s: %w", ref, err)
	}
	if offset != nil {
		return &Detail{Kind: kind, Record: offset, Explorer: explorerBase + ref}, nil
	}

	return nil, apperrors.NotFound("no transaction found for reference " + ref)
}

// Dashboard returns the user's footprint summary.
func (s *Service) Dashboard(ctx context.Context, userID uuid.UUID) (*DashboardStats, error) {
	stats, err := s.repo.DashboardStats(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate dashboard stats: %w", err)
	}
	return stats, nil
}
