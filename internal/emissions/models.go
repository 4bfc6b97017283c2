package emissions

import (
	"time"

	"github.com/google/uuid"
)

// Calculation methods recorded on an emission.
const (
	MethodInternal    = "internal"
	MethodExternalAPI = "external_api"
	MethodProvided    = "provided"
)

// Emission is one logged activity event, anchored on the consensus topic.
// Exactly one row exists per Hedera transaction id; rows are immutable once
// written.
type Emission struct {
	ID                  uuid.UUID `db:"id" json:"id"`
	UserID              uuid.UUID `db:"user_id" json:"user_id"`
	EmissionType        string    `db:"emission_type" json:"emission_type"`
	Category            string    `db:"category" json:"category"`
	Amount              float64   `db:"amount" json:"amount"`
	Unit                string    `db:"unit" json:"unit"`
	Co2eKg              float64   `db:"co2e_kg" json:"co2e_kg"`
	Date                time.Time `db:"date" json:"date"`
	Description         string    `db:"description" json:"description"`
	HederaTransactionID string    `db:"hedera_transaction_id" json:"hedera_transaction_id"`
	ConsensusTimestamp  string    `db:"consensus_timestamp" json:"consensus_timestamp"`
	TopicID             string    `db:"topic_id" json:"topic_id"`
	CalculationMethod   string    `db:"calculation_method" json:"calculation_method"`
	CreatedAt           time.Time `db:"created_at" json:"created_at"`
}

// LogEmissionRequest is the payload for POST /api/emissions
type LogEmissionRequest struct {
	EmissionType string     `json:"emission_type" binding:"required,oneof=travel energy food other"`
	Category     string     `json:"category" binding:"required"`
	Amount       float64    `json:"amount" binding:"required,gt=0"`
	Unit         string     `json:"unit" binding:"required"`
	Co2eKg       *float64   `json:"co2e_kg" binding:"omitempty,gt=0"`
	Date         *time.Time `json:"date"`
	Description  string     `json:"description" binding:"max=500"`
}

// CalculateRequest is the payload for POST /api/emissions/calculate
type CalculateRequest struct {
	EmissionType string  `json:"emission_type" binding:"required,oneof=travel energy food other"`
	Category     string  `json:"category" binding:"required"`
	Amount       float64 `json:"amount" binding:"required,gt=0"`
	Unit         string  `json:"unit" binding:"required"`
}

// HistoryFilters narrows an emission history query.
type HistoryFilters struct {
	Page         int
	PageSize     int
	StartDate    *time.Time
	EndDate      *time.Time
	EmissionType *string
}

// TypeStat aggregates emissions by type.
type TypeStat struct {
	EmissionType string  `db:"emission_type" json:"emission_type"`
	TotalCo2e    float64 `db:"total_co2e" json:"total_co2e"`
	Count        int     `db:"count" json:"count"`
	AvgCo2e      float64 `db:"avg_co2e" json:"avg_co2e"`
}

// MonthlyStat aggregates emissions by calendar month.
type MonthlyStat struct {
	Year      int     `db:"year" json:"year"`
	Month     int     `db:"month" json:"month"`
	TotalCo2e float64 `db:"total_co2e" json:"total_co2e"`
	Count     int     `db:"count" json:"count"`
}

// eventPayload is the canonical message submitted to the consensus topic.
type eventPayload struct {
	UserID       string  `json:"user_id"`
	UserEmail    string  `json:"user_email"`
	EmissionType string  `json:"emission_type"`
	Category     string  `json:"category"`
	Amount       float64 `json:"amount"`
	Unit         string  `json:"unit"`
	Co2eKg       float64 `json:"co2e_kg"`
	Date         string  `json:"date"`
	Description  string  `json:"description,omitempty"`
	Timestamp    string  `json:"timestamp"`
}
