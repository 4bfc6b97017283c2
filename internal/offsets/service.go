package offsets

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"soul-carbon/carbon-tracker-backend/internal/auth"
	"soul-carbon/carbon-tracker-backend/internal/projects"
	"soul-carbon/carbon-tracker-backend/internal/reconciliation"
	"soul-carbon/carbon-tracker-backend/pkg/apperrors"
	"soul-carbon/carbon-tracker-backend/pkg/certificate"
	"soul-carbon/carbon-tracker-backend/pkg/hedera"
	"soul-carbon/carbon-tracker-backend/pkg/metrics"
)

// Service coordinates offset settlement: a purchase is a payment transfer, a
// token mint and a local commit executed strictly in that order, and a
// redemption is a token burn followed by oldest-first lot consumption. There
// is no cross-system transaction; any failure after an external side effect
// committed is recorded as an inconsistency and surfaced, never compensated
// automatically.
type Service struct {
	repo     Repository
	projects *projects.Service
	ledger   hedera.Ledger
	recorder reconciliation.Recorder
	certs    *certificate.Generator
	tokenID  string
	logger   *zap.Logger
}

// NewService creates a new offsets service
func NewService(repo Repository, projectsSvc *projects.Service, ledger hedera.Ledger, recorder reconciliation.Recorder, certs *certificate.Generator, tokenID string, logger *zap.Logger) *Service {
	return &Service{
		repo:     repo,
		projects: projectsSvc,
		ledger:   ledger,
		recorder: recorder,
		certs:    certs,
		tokenID:  tokenID,
		logger:   logger,
	}
}

// PurchaseOffset runs the settlement sequence.
//
// Failures before the payment transfer leave no state anywhere and the call
// is safe to retry. A mint failure after payment is the paid-not-minted
// window; a local commit failure after mint is the purchase-unrecorded
// window. Both are recorded with full external references before the error
// is returned. A replay carrying an already committed payment reference
// returns the existing record instead of double-counting.
func (s *Service) PurchaseOffset(ctx context.Context, user *auth.User, req *PurchaseRequest) (*Offset, error) {
	project, err := s.projects.GetActive(ctx, req.ProjectID)
	if err != nil {
		return nil, err
	}

	// Advisory check. The authoritative one is the conditional decrement at
	// commit time.
	if project.AvailableCredits < req.TotalCo2eKg {
		return nil, apperrors.PreconditionFailed(fmt.Sprintf(
			"project has %.2f kg of credits available, purchase requires %.2f kg",
			project.AvailableCredits, req.TotalCo2eKg))
	}

	balance, err := s.ledger.AccountBalance(ctx, req.UserHederaAddress)
	if err != nil {
		return nil, apperrors.ExternalFailure("failed to check account balance", err)
	}
	if balance.Hbars < req.TotalHbarCost {
		return nil, apperrors.PreconditionFailed(fmt.Sprintf(
			"account holds %.4f HBAR, purchase requires %.4f HBAR",
			balance.Hbars, req.TotalHbarCost))
	}

	transfer, err := s.ledger.TransferHbar(ctx, req.UserHederaAddress, project.TreasuryAccount, req.TotalHbarCost)
	if err != nil {
		// Nothing committed yet, the whole call is retryable.
		return nil, apperrors.ExternalFailure("payment transfer failed", err)
	}

	// One token represents one kg of CO2e.
	mint, err := s.ledger.MintTokens(ctx, s.tokenID, int64(math.Round(req.TotalCo2eKg)))
	if err != nil {
		correlationID := s.recorder.Record(ctx, &reconciliation.Inconsistency{
			Kind:                  reconciliation.KindPaidNotMinted,
			UserID:                &user.ID,
			ProjectID:             &req.ProjectID,
			TransferTransactionID: &transfer.TransactionID,
			AmountKg:              &req.TotalCo2eKg,
			AmountHbar:            &req.TotalHbarCost,
			Detail:                "payment transferred to project treasury but token mint failed",
		})
		return nil, apperrors.Inconsistency("payment succeeded but token mint failed", correlationID, err)
	}

	offset := &Offset{
		ID:                     uuid.New(),
		UserID:                 user.ID,
		ProjectID:              project.ProjectID,
		ProjectName:            project.Name,
		Quantity:               req.Quantity,
		TotalCo2eKg:            req.TotalCo2eKg,
		TotalHbarCost:          req.TotalHbarCost,
		UserHederaAddress:      req.UserHederaAddress,
		HbarTransactionID:      transfer.TransactionID,
		TokenMintTransactionID: mint.TransactionID,
		TokenID:                s.tokenID,
		Status:                 StatusCompleted,
		CreatedAt:              time.Now(),
	}

	committed, err := s.repo.CommitPurchase(ctx, offset)
	if err != nil {
		detail := "payment and mint committed but local purchase commit failed"
		if err == ErrInsufficientCredits {
			detail = "payment and mint committed but project pool was drained before commit"
		}
		correlationID := s.recorder.Record(ctx, &reconciliation.Inconsistency{
			Kind:                  reconciliation.KindPurchaseUnrecorded,
			UserID:                &user.ID,
			ProjectID:             &req.ProjectID,
			TransferTransactionID: &transfer.TransactionID,
			MintTransactionID:     &mint.TransactionID,
			AmountKg:              &req.TotalCo2eKg,
			AmountHbar:            &req.TotalHbarCost,
			Detail:                detail,
		})
		return nil, apperrors.Inconsistency("purchase settled externally but could not be recorded", correlationID, err)
	}

	metrics.OffsetsPurchased.Inc()
	s.logger.Info("offset purchase settled",
		zap.String("user", user.Email),
		zap.String("project_id", project.ProjectID),
		zap.Float64("co2e_kg", req.TotalCo2eKg),
		zap.Float64("hbar", req.TotalHbarCost),
		zap.String("transfer_transaction_id", transfer.TransactionID),
		zap.String("mint_transaction_id", mint.TransactionID))

	return committed, nil
}

// RedeemOffsets burns tokens and consumes the user's unredeemed lots oldest
// first. Lots are only ever marked whole: the last lot needed to cover the
// amount is redeemed in full even when that overshoots the request, and the
// overshoot is reported in the allocations. All selected lots are stamped
// with the burn reference in one statement keyed on not being redeemed yet,
// so a concurrent redemption can never double-spend a lot.
func (s *Service) RedeemOffsets(ctx context.Context, user *auth.User, req *RedeemRequest) (*RedeemResult, error) {
	burn, err := s.ledger.BurnTokens(ctx, s.tokenID, req.TokenAmount)
	if err != nil {
		// Nothing burned, nothing marked, the call is retryable.
		return nil, apperrors.ExternalFailure("token burn failed", err)
	}

	lots, err := s.repo.ListUnredeemed(ctx, user.ID)
	if err != nil {
		return nil, s.redemptionUnrecorded(ctx, user, burn.TransactionID, req.TokenAmount,
			"tokens burned but unredeemed lots could not be loaded", err)
	}

	remaining := float64(req.TokenAmount)
	var ids []uuid.UUID
	var allocations []RedeemedAllocation
	for _, lot := range lots {
		if remaining <= 0 {
			break
		}
		ids = append(ids, lot.ID)
		allocations = append(allocations, RedeemedAllocation{
			OffsetID:    lot.ID,
			ProjectName: lot.ProjectName,
			AmountKg:    lot.TotalCo2eKg,
		})
		remaining -= lot.TotalCo2eKg
	}

	now := time.Now()
	if len(ids) > 0 {
		marked, err := s.repo.MarkRedeemed(ctx, user.ID, burn.TransactionID, now, ids)
		if err != nil {
			return nil, s.redemptionUnrecorded(ctx, user, burn.TransactionID, req.TokenAmount,
				"tokens burned but lot marking failed", err)
		}
		if marked < int64(len(ids)) {
			// A concurrent redemption claimed part of the selection first.
			// Rebuild the allocations from what this burn actually stamped.
			s.logger.Warn("redemption raced a concurrent redemption, re-reading stamped lots",
				zap.String("burn_transaction_id", burn.TransactionID),
				zap.Int64("marked", marked),
				zap.Int("selected", len(ids)))
			stamped, listErr := s.repo.ListByBurnRef(ctx, user.ID, burn.TransactionID)
			if listErr != nil {
				return nil, s.redemptionUnrecorded(ctx, user, burn.TransactionID, req.TokenAmount,
					"tokens burned but stamped lots could not be re-read after a redemption race", listErr)
			}
			allocations = allocations[:0]
			for _, lot := range stamped {
				allocations = append(allocations, RedeemedAllocation{
					OffsetID:    lot.ID,
					ProjectName: lot.ProjectName,
					AmountKg:    lot.TotalCo2eKg,
				})
			}
		}
	}

	metrics.OffsetsRedeemed.Inc()
	s.logger.Info("offsets redeemed",
		zap.String("user", user.Email),
		zap.Int64("token_amount", req.TokenAmount),
		zap.Int("lots", len(allocations)),
		zap.String("burn_transaction_id", burn.TransactionID))

	result := &RedeemResult{
		BurnTransactionID: burn.TransactionID,
		RedeemedAmount:    req.TokenAmount,
		Allocations:       allocations,
	}

	if s.certs != nil && len(allocations) > 0 {
		certAllocs := make([]certificate.Allocation, 0, len(allocations))
		var totalKg float64
		for _, a := range allocations {
			certAllocs = append(certAllocs, certificate.Allocation{
				ProjectName: a.ProjectName,
				AmountKg:    a.AmountKg,
			})
			totalKg += a.AmountKg
		}
		pdf, certErr := s.certs.GenerateRedemption(&certificate.RedemptionData{
			HolderName:        user.FullName(),
			HolderEmail:       user.Email,
			BurnTransactionID: burn.TransactionID,
			TotalKg:           totalKg,
			RedeemedAt:        now,
			Allocations:       certAllocs,
		})
		if certErr != nil {
			s.logger.Warn("failed to generate redemption certificate", zap.Error(certErr))
		} else {
			result.Certificate = pdf
		}
	}

	return result, nil
}

func (s *Service) redemptionUnrecorded(ctx context.Context, user *auth.User, burnTxID string, tokenAmount int64, detail string, err error) error {
	amountKg := float64(tokenAmount)
	correlationID := s.recorder.Record(ctx, &reconciliation.Inconsistency{
		Kind:              reconciliation.KindRedemptionUnrecorded,
		UserID:            &user.ID,
		BurnTransactionID: &burnTxID,
		AmountKg:          &amountKg,
		Detail:            detail,
	})
	return apperrors.Inconsistency("tokens were burned but the redemption could not be recorded", correlationID, err)
}

// GetBalance reads the user's on-ledger balances.
func (s *Service) GetBalance(ctx context.Context, user *auth.User) (*AccountBalance, error) {
	if user.HederaAccountID == nil || *user.HederaAccountID == "" {
		return nil, apperrors.Validation("no hedera account is linked to this profile")
	}

	balance, err := s.ledger.AccountBalance(ctx, *user.HederaAccountID)
	if err != nil {
		return nil, apperrors.ExternalFailure("failed to query account balance", err)
	}

	return &AccountBalance{
		AccountID:          *user.HederaAccountID,
		HbarBalance:        balance.Hbars,
		TokenBalances:      balance.Tokens,
		CarbonOffsetTokens: balance.Tokens[s.tokenID],
	}, nil
}

// History lists a user's offset purchases with totals.
func (s *Service) History(ctx context.Context, userID uuid.UUID, filters *HistoryFilters) ([]Offset, int, float64, error) {
	if filters.Page < 1 {
		filters.Page = 1
	}
	if filters.PageSize < 1 || filters.PageSize > 100 {
		filters.PageSize = 20
	}
	items, total, sum, err := s.repo.List(ctx, userID, filters)
	if err != nil {
		return nil, 0, 0, fmt.Errorf("failed to list offsets: %w", err)
	}
	return items, total, sum, nil
}
