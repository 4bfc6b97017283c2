package reconciliation

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"soul-carbon/carbon-tracker-backend/pkg/metrics"
)

// Recorder is the contract the settlement and emission services use to record
// inconsistency breadcrumbs. Record returns the correlation id to surface to
// the caller.
type Recorder interface {
	Record(ctx context.Context, inc *Inconsistency) string
}

// Service records settlement inconsistencies and periodically re-logs the
// unresolved ones so they cannot be lost while awaiting manual reconciliation.
type Service struct {
	repo   Repository
	logger *zap.Logger
	cron   *cron.Cron
}

// NewService creates a new reconciliation service
func NewService(repo Repository, logger *zap.Logger) *Service {
	return &Service{repo: repo, logger: logger}
}

// Record logs the inconsistency with its full external references and
// persists it. The log line comes first: if the store is the component that
// failed, the breadcrumb must still reach the operator.
func (s *Service) Record(ctx context.Context, inc *Inconsistency) string {
	if inc.ID == uuid.Nil {
		inc.ID = uuid.New()
	}
	if inc.CorrelationID == "" {
		inc.CorrelationID = uuid.NewString()
	}
	inc.CreatedAt = time.Now()

	s.logger.Error("settlement inconsistency recorded",
		zap.String("kind", inc.Kind),
		zap.String("correlation_id", inc.CorrelationID),
		zap.Any("user_id", inc.UserID),
		zap.Any("project_id", inc.ProjectID),
		zap.Any("transfer_transaction_id", inc.TransferTransactionID),
		zap.Any("mint_transaction_id", inc.MintTransactionID),
		zap.Any("burn_transaction_id", inc.BurnTransactionID),
		zap.Any("submit_transaction_id", inc.SubmitTransactionID),
		zap.Any("amount_kg", inc.AmountKg),
		zap.Any("amount_hbar", inc.AmountHbar),
		zap.String("detail", inc.Detail))

	metrics.InconsistenciesRecorded.WithLabelValues(inc.Kind).Inc()

	if err := s.repo.Insert(ctx, inc); err != nil {
		s.logger.Error("failed to persist inconsistency breadcrumb, log line is the only record",
			zap.Error(err),
			zap.String("correlation_id", inc.CorrelationID))
	}

	return inc.CorrelationID
}

// StartSweeper schedules a periodic sweep that re-logs unresolved
// inconsistencies. Returns the cron so the caller can stop it on shutdown.
func (s *Service) StartSweeper(schedule string) (*cron.Cron, error) {
	c := cron.New()
	if _, err := c.AddFunc(schedule, s.sweep); err != nil {
		return nil, err
	}
	c.Start()
	s.cron = c
	return c, nil
}

func (s *Service) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	incs, err := s.repo.ListUnresolved(ctx, 100)
	if err != nil {
		s.logger.Error("inconsistency sweep failed", zap.Error(err))
		return
	}
	if len(incs) == 0 {
		return
	}

	s.logger.Warn("unresolved settlement inconsistencies awaiting reconciliation",
		zap.Int("count", len(incs)))
	for _, inc := range incs {
		s.logger.Warn("unresolved inconsistency",
			zap.String("id", inc.ID.String()),
			zap.String("kind", inc.Kind),
			zap.String("correlation_id", inc.CorrelationID),
			zap.Time("created_at", inc.CreatedAt))
	}
}

// Resolve marks a breadcrumb as handled after out-of-band correction.
func (s *Service) Resolve(ctx context.Context, id uuid.UUID) error {
	return s.repo.MarkResolved(ctx, id)
}
