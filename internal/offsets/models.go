package offsets

import (
	"time"

	"github.com/google/uuid"
)

// Offset lifecycle states.
const (
	StatusPending   = "pending"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// Offset is one committed purchase lot. It is created only after both the
// payment transfer and the token mint succeeded; both external references are
// unique. A non-null redemption reference means the whole lot was consumed by
// exactly one redemption; partially redeemed lots are not represented.
type Offset struct {
	ID                      uuid.UUID  `db:"id" json:"id"`
	UserID                  uuid.UUID  `db:"user_id" json:"user_id"`
	ProjectID               string     `db:"project_id" json:"project_id"`
	ProjectName             string     `db:"project_name" json:"project_name"`
	Quantity                int64      `db:"quantity" json:"quantity"`
	TotalCo2eKg             float64    `db:"total_co2e_kg" json:"total_co2e_kg"`
	TotalHbarCost           float64    `db:"total_hbar_cost" json:"total_hbar_cost"`
	UserHederaAddress       string     `db:"user_hedera_address" json:"user_hedera_address"`
	HbarTransactionID       string     `db:"hbar_transaction_id" json:"hbar_transaction_id"`
	TokenMintTransactionID  string     `db:"token_mint_transaction_id" json:"token_mint_transaction_id"`
	TokenID                 string     `db:"token_id" json:"token_id"`
	Status                  string     `db:"status" json:"status"`
	RedemptionTransactionID *string    `db:"redemption_transaction_id" json:"redemption_transaction_id,omitempty"`
	RedeemedAt              *time.Time `db:"redeemed_at" json:"redeemed_at,omitempty"`
	CreatedAt               time.Time  `db:"created_at" json:"created_at"`
}

// PurchaseRequest is the payload for POST /api/offsets/purchase
type PurchaseRequest struct {
	UserHederaAddress string  `json:"user_hedera_address" binding:"required"`
	ProjectID         string  `json:"project_id" binding:"required"`
	Quantity          int64   `json:"quantity" binding:"required,gte=1"`
	TotalCo2eKg       float64 `json:"total_co2e_kg" binding:"required,gt=0"`
	TotalHbarCost     float64 `json:"total_hbar_cost" binding:"required,gt=0"`
}

// RedeemRequest is the payload for POST /api/offsets/redeem
type RedeemRequest struct {
	TokenAmount int64 `json:"token_amount" binding:"required,gte=1"`
}

// RedeemedAllocation is one lot consumed by a redemption. Lots are always
// marked redeemed whole, so AmountKg is the lot's full size and the sum of
// allocations can exceed the requested amount by up to one lot's size minus
// one unit.
type RedeemedAllocation struct {
	OffsetID    uuid.UUID `json:"offset_id"`
	ProjectName string    `json:"project_name"`
	AmountKg    float64   `json:"amount_kg"`
}

// RedeemResult is the outcome of a redemption call.
type RedeemResult struct {
	BurnTransactionID string               `json:"burn_transaction_id"`
	RedeemedAmount    int64                `json:"redeemed_amount"`
	Allocations       []RedeemedAllocation `json:"redeemed_offsets"`
	Certificate       []byte               `json:"certificate_pdf,omitempty"`
}

// AccountBalance is the response for GET /api/offsets/balance
type AccountBalance struct {
	AccountID          string            `json:"account_id"`
	HbarBalance        float64           `json:"hbar_balance"`
	TokenBalances      map[string]uint64 `json:"token_balances"`
	CarbonOffsetTokens uint64            `json:"carbon_offset_tokens"`
}

// HistoryFilters narrows an offset history query.
type HistoryFilters struct {
	Page     int
	PageSize int
}
