package transactions

import (
	"time"

	"github.com/google/uuid"
)

// Transaction kinds in the unified log.
const (
	KindEmission         = "emission"
	KindOffsetPurchase   = "offset_purchase"
	KindOffsetRedemption = "offset_redemption"
)

// Transaction is one row of the unified activity log. Every row carries the
// external ledger reference that anchors it; redemptions are the offset rows
// viewed through their burn reference.
type Transaction struct {
	ID            uuid.UUID `db:"id" json:"id"`
	Kind          string    `db:"kind" json:"kind"`
	TransactionID string    `db:"transaction_id" json:"transaction_id"`
	AmountKg      float64   `db:"amount_kg" json:"amount_kg"`
	Label         string    `db:"label" json:"label"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
}

// Detail is the full record behind a unified log row, resolved from whichever
// table owns the reference.
type Detail struct {
	Kind     string      `json:"kind"`
	Record   interface{} `json:"record"`
	Explorer string      `json:"explorer_url"`
}

// DashboardStats summarizes a user's footprint.
type DashboardStats struct {
	TotalEmissionsKg float64 `json:"total_emissions_kg"`
	TotalOffsetKg    float64 `json:"total_offset_kg"`
	TotalRedeemedKg  float64 `json:"total_redeemed_kg"`
	NetFootprintKg   float64 `json:"net_footprint_kg"`
	EmissionCount    int     `json:"emission_count"`
	OffsetCount      int     `json:"offset_count"`
	TotalHbarSpent   float64 `json:"total_hbar_spent"`
}

// Filters narrows the unified log listing.
type Filters struct {
	Page     int
	PageSize int
	Kind     *string
}
