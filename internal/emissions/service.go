package emissions

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"soul-carbon/carbon-tracker-backend/internal/auth"
	"soul-carbon/carbon-tracker-backend/internal/database"
	"soul-carbon/carbon-tracker-backend/internal/reconciliation"
	"soul-carbon/carbon-tracker-backend/pkg/apperrors"
	"soul-carbon/carbon-tracker-backend/pkg/hedera"
	"soul-carbon/carbon-tracker-backend/pkg/metrics"
)

// Service is the emission ledger writer. It binds one emission event to
// exactly one consensus-topic submission and one local record.
type Service struct {
	repo     Repository
	ledger   hedera.Ledger
	recorder reconciliation.Recorder
	topicID  string
	logger   *zap.Logger
}

// NewService creates a new emissions service
func NewService(repo Repository, ledger hedera.Ledger, recorder reconciliation.Recorder, topicID string, logger *zap.Logger) *Service {
	return &Service{
		repo:     repo,
		ledger:   ledger,
		recorder: recorder,
		topicID:  topicID,
		logger:   logger,
	}
}

// LogEmission submits the event to the consensus topic, then persists the
// local record carrying the returned transaction id. Submission failure is
// terminal for the call and leaves no state anywhere. A persistence failure
// after a successful submission leaves the event anchored externally but not
// locally visible; that window is recorded as an inconsistency and surfaced
// as an error, never as silent success.
func (s *Service) LogEmission(ctx context.Context, user *auth.User, req *LogEmissionRequest) (*Emission, error) {
	co2e, method, err := s.resolveCo2e(req)
	if err != nil {
		return nil, err
	}

	date := time.Now()
	if req.Date != nil {
		date = *req.Date
	}

	payload, err := json.Marshal(eventPayload{
		UserID:       user.ID.String(),
		UserEmail:    user.Email,
		EmissionType: req.EmissionType,
		Category:     req.Category,
		Amount:       req.Amount,
		Unit:         req.Unit,
		Co2eKg:       co2e,
		Date:         date.UTC().Format(time.RFC3339),
		Description:  req.Description,
		Timestamp:    time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to serialize emission payload: %w", err)
	}

	// No retries here: a submit failure is surfaced immediately and the whole
	// call is safe to repeat.
	result, err := s.ledger.SubmitMessage(ctx, s.topicID, payload)
	if err != nil {
		return nil, apperrors.ExternalFailure("failed to log emission to consensus topic", err)
	}

	emission := &Emission{
		ID:                  uuid.New(),
		UserID:              user.ID,
		EmissionType:        req.EmissionType,
		Category:            req.Category,
		Amount:              req.Amount,
		Unit:                req.Unit,
		Co2eKg:              co2e,
		Date:                date,
		Description:         req.Description,
		HederaTransactionID: result.TransactionID,
		ConsensusTimestamp:  result.ConsensusTimestamp,
		TopicID:             s.topicID,
		CalculationMethod:   method,
		CreatedAt:           time.Now(),
	}

	if err := s.repo.Insert(ctx, emission); err != nil {
		if database.IsUniqueViolation(err) {
			// Replay of a local commit for an already-bound submission.
			existing, getErr := s.repo.GetByTransactionID(ctx, result.TransactionID)
			if getErr == nil && existing != nil {
				return existing, nil
			}
			return nil, fmt.Errorf("duplicate emission record for %s: %w", result.TransactionID, err)
		}

		correlationID := s.recorder.Record(ctx, &reconciliation.Inconsistency{
			Kind:                reconciliation.KindEmissionUnrecorded,
			UserID:              &user.ID,
			SubmitTransactionID: &result.TransactionID,
			AmountKg:            &co2e,
			Detail:              "emission anchored on consensus topic but local insert failed",
		})
		return nil, apperrors.Inconsistency("emission was anchored externally but could not be recorded", correlationID, err)
	}

	metrics.EmissionsLogged.Inc()
	s.logger.Info("emission logged",
		zap.String("user", user.Email),
		zap.Float64("co2e_kg", co2e),
		zap.String("transaction_id", result.TransactionID))

	return emission, nil
}

// History lists a user's emissions with totals.
func (s *Service) History(ctx context.Context, userID uuid.UUID, filters *HistoryFilters) ([]Emission, int, float64, error) {
	if filters.Page < 1 {
		filters.Page = 1
	}
	if filters.PageSize < 1 || filters.PageSize > 100 {
		filters.PageSize = 20
	}
	items, total, sum, err := s.repo.List(ctx, userID, filters)
	if err != nil {
		return nil, 0, 0, fmt.Errorf("failed to list emissions: %w", err)
	}
	return items, total, sum, nil
}

// Stats returns per-type and monthly aggregates for a user.
func (s *Service) Stats(ctx context.Context, userID uuid.UUID) ([]TypeStat, []MonthlyStat, error) {
	byType, err := s.repo.StatsByType(ctx, userID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to aggregate emissions by type: %w", err)
	}
	monthly, err := s.repo.MonthlyStats(ctx, userID, 12)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to aggregate monthly emissions: %w", err)
	}
	return byType, monthly, nil
}

func (s *Service) resolveCo2e(req *LogEmissionRequest) (float64, string, error) {
	if req.Co2eKg != nil {
		return *req.Co2eKg, MethodProvided, nil
	}
	calc, err := Calculate(req.EmissionType, req.Category, req.Amount)
	if err != nil {
		return 0, "", err
	}
	return calc.Co2eKg, calc.Method, nil
}
