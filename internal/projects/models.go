package projects

import (
	"time"

	"github.com/google/uuid"
)

// Project is a capacity-bounded offset pool. AvailableCredits only decreases,
// via the settlement commit's conditional decrement; it never goes below zero
// and never exceeds TotalCapacity.
type Project struct {
	ID                   uuid.UUID `db:"id" json:"id"`
	ProjectID            string    `db:"project_id" json:"project_id"`
	Name                 string    `db:"name" json:"name"`
	Description          string    `db:"description" json:"description"`
	Location             string    `db:"location" json:"location"`
	ProjectType          string    `db:"project_type" json:"project_type"`
	CostPerKg            float64   `db:"cost_per_kg" json:"cost_per_kg"`
	TreasuryAccount      string    `db:"treasury_account" json:"treasury_account"`
	TotalCapacity        float64   `db:"total_capacity" json:"total_capacity"`
	AvailableCredits     float64   `db:"available_credits" json:"available_credits"`
	VerificationStandard string    `db:"verification_standard" json:"verification_standard"`
	IsActive             bool      `db:"is_active" json:"is_active"`
	CreatedAt            time.Time `db:"created_at" json:"created_at"`
	UpdatedAt            time.Time `db:"updated_at" json:"updated_at"`
}

// MarketplaceFilters narrows the marketplace listing.
type MarketplaceFilters struct {
	Page        int
	PageSize    int
	ProjectType *string
	MinPrice    *float64
	MaxPrice    *float64
}
