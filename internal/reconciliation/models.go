package reconciliation

import (
	"time"

	"github.com/google/uuid"
)

// Inconsistency kinds. Each names a committed external side effect that has no
// corresponding local record.
const (
	KindPaidNotMinted        = "paid_not_minted"       // transfer committed, mint failed
	KindPurchaseUnrecorded   = "purchase_unrecorded"   // transfer + mint committed, local commit failed
	KindRedemptionUnrecorded = "redemption_unrecorded" // burn committed, lot marking failed
	KindEmissionUnrecorded   = "emission_unrecorded"   // consensus submit committed, local insert failed
)

// Inconsistency is a reconciliation breadcrumb: enough external references,
// accounts and amounts to re-derive the missing local state out of band.
type Inconsistency struct {
	ID                    uuid.UUID  `db:"id" json:"id"`
	Kind                  string     `db:"kind" json:"kind"`
	UserID                *uuid.UUID `db:"user_id" json:"user_id,omitempty"`
	ProjectID             *string    `db:"project_id" json:"project_id,omitempty"`
	TransferTransactionID *string    `db:"transfer_transaction_id" json:"transfer_transaction_id,omitempty"`
	MintTransactionID     *string    `db:"mint_transaction_id" json:"mint_transaction_id,omitempty"`
	BurnTransactionID     *string    `db:"burn_transaction_id" json:"burn_transaction_id,omitempty"`
	SubmitTransactionID   *string    `db:"submit_transaction_id" json:"submit_transaction_id,omitempty"`
	AmountKg              *float64   `db:"amount_kg" json:"amount_kg,omitempty"`
	AmountHbar            *float64   `db:"amount_hbar" json:"amount_hbar,omitempty"`
	Detail                string     `db:"detail" json:"detail"`
	CorrelationID         string     `db:"correlation_id" json:"correlation_id"`
	Resolved              bool       `db:"resolved" json:"resolved"`
	CreatedAt             time.Time  `db:"created_at" json:"created_at"`
}
