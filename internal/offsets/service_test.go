package offsets

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"

	"soul-carbon/carbon-tracker-backend/internal/auth"
	"soul-carbon/carbon-tracker-backend/internal/projects"
	"soul-carbon/carbon-tracker-backend/internal/reconciliation"
	"soul-carbon/carbon-tracker-backend/pkg/apperrors"
	"soul-carbon/carbon-tracker-backend/pkg/certificate"
	"soul-carbon/carbon-tracker-backend/pkg/hedera"
)

// MockRepository is a mock implementation of the Repository interface
type MockRepository struct {
	mock.Mock
}

// CommitPurchase echoes its argument when configured with Return(nil, nil),
// matching the real repository returning the row it just inserted.
func (m *MockRepository) CommitPurchase(ctx context.Context, offset *Offset) (*Offset, error) {
	args := m.Called(ctx, offset)
	ret, _ := args.Get(0).(*Offset)
	if ret == nil && args.Error(1) == nil {
		ret = offset
	}
	return ret, args.Error(1)
}

func (m *MockRepository) GetByPaymentRef(ctx context.Context, hbarTxID string) (*Offset, error) {
	args := m.Called(ctx, hbarTxID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Offset), args.Error(1)
}

func (m *MockRepository) ListUnredeemed(ctx context.Context, userID uuid.UUID) ([]Offset, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]Offset), args.Error(1)
}

func (m *MockRepository) MarkRedeemed(ctx context.Context, userID uuid.UUID, burnTxID string, redeemedAt time.Time, ids []uuid.UUID) (int64, error) {
	args := m.Called(ctx, userID, burnTxID, redeemedAt, ids)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockRepository) ListByBurnRef(ctx context.Context, userID uuid.UUID, burnTxID string) ([]Offset, error) {
	args := m.Called(ctx, userID, burnTxID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]Offset), args.Error(1)
}

func (m *MockRepository) List(ctx context.Context, userID uuid.UUID, filters *HistoryFilters) ([]Offset, int, float64, error) {
	args := m.Called(ctx, userID, filters)
	return args.Get(0).([]Offset), args.Int(1), args.Get(2).(float64), args.Error(3)
}

// MockLedger is a mock implementation of the hedera.Ledger interface
type MockLedger struct {
	mock.Mock
}

func (m *MockLedger) SubmitMessage(ctx context.Context, topicID string, message []byte) (*hedera.SubmitResult, error) {
	args := m.Called(ctx, topicID, message)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*hedera.SubmitResult), args.Error(1)
}

func (m *MockLedger) TransferHbar(ctx context.Context, fromAccount, toAccount string, amount float64) (*hedera.TxResult, error) {
	args := m.Called(ctx, fromAccount, toAccount, amount)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*hedera.TxResult), args.Error(1)
}

func (m *MockLedger) MintTokens(ctx context.Context, tokenID string, amount int64) (*hedera.TxResult, error) {
	args := m.Called(ctx, tokenID, amount)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*hedera.TxResult), args.Error(1)
}

func (m *MockLedger) BurnTokens(ctx context.Context, tokenID string, amount int64) (*hedera.TxResult, error) {
	args := m.Called(ctx, tokenID, amount)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*hedera.TxResult), args.Error(1)
}

func (m *MockLedger) AccountBalance(ctx context.Context, accountID string) (*hedera.Balance, error) {
	args := m.Called(ctx, accountID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*hedera.Balance), args.Error(1)
}

// MockRecorder is a mock implementation of the reconciliation.Recorder interface
type MockRecorder struct {
	mock.Mock
}

func (m *MockRecorder) Record(ctx context.Context, inc *reconciliation.Inconsistency) string {
	args := m.Called(ctx, inc)
	return args.String(0)
}

// MockProjectRepository is a mock implementation of the projects.Repository interface
type MockProjectRepository struct {
	mock.Mock
}

func (m *MockProjectRepository) GetByProjectID(ctx context.Context, projectID string) (*projects.Project, error) {
	args := m.Called(ctx, projectID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*projects.Project), args.Error(1)
}

func (m *MockProjectRepository) ListMarketplace(ctx context.Context, filters *projects.MarketplaceFilters) ([]projects.Project, int, error) {
	args := m.Called(ctx, filters)
	return args.Get(0).([]projects.Project), args.Int(1), args.Error(2)
}

const testTokenID = "0.0.77777"

func testUser() *auth.User {
	account := "0.0.12345"
	return &auth.User{
		ID:              uuid.New(),
		Email:           "buyer@example.com",
		FirstName:       "Ada",
		LastName:        "Nwosu",
		HederaAccountID: &account,
		IsActive:        true,
	}
}

func testProject(available float64) *projects.Project {
	return &projects.Project{
		ID:               uuid.New(),
		ProjectID:        "mangrove-restoration-01",
		Name:             "Mangrove Restoration",
		CostPerKg:        0.12,
		TreasuryAccount:  "0.0.55555",
		TotalCapacity:    1000,
		AvailableCredits: available,
		IsActive:         true,
	}
}

func newTestService(repo Repository, projectRepo projects.Repository, ledger hedera.Ledger, recorder reconciliation.Recorder) *Service {
	return NewService(repo, projects.NewService(projectRepo), ledger, recorder,
		certificate.NewGenerator(), testTokenID, zap.NewNop())
}

func purchaseRequest() *PurchaseRequest {
	return &PurchaseRequest{
		UserHederaAddress: "0.0.12345",
		ProjectID:         "mangrove-restoration-01",
		Quantity:          50,
		TotalCo2eKg:       50,
		TotalHbarCost:     6.0,
	}
}

func TestPurchaseOffset_Success(t *testing.T) {
	mockRepo := new(MockRepository)
	mockProjects := new(MockProjectRepository)
	mockLedger := new(MockLedger)
	mockRecorder := new(MockRecorder)
	service := newTestService(mockRepo, mockProjects, mockLedger, mockRecorder)

	ctx := context.Background()
	user := testUser()
	req := purchaseRequest()

	mockProjects.On("GetByProjectID", ctx, req.ProjectID).Return(testProject(100), nil)
	mockLedger.On("AccountBalance", ctx, req.UserHederaAddress).Return(&hedera.Balance{Hbars: 25.0}, nil)
	mockLedger.On("TransferHbar", ctx, req.UserHederaAddress, "0.0.55555", 6.0).
		Return(&hedera.TxResult{TransactionID: "0.0.12345@111.222", Status: "SUCCESS"}, nil)
	mockLedger.On("MintTokens", ctx, testTokenID, int64(50)).
		Return(&hedera.TxResult{TransactionID: "0.0.99999@333.444", Status: "SUCCESS"}, nil)
	mockRepo.On("CommitPurchase", ctx, mock.AnythingOfType("*offsets.Offset")).Return(nil, nil)

	offset, err := service.PurchaseOffset(ctx, user, req)

	assert.NoError(t, err)
	assert.NotNil(t, offset)
	assert.Equal(t, StatusCompleted, offset.Status)
	assert.Equal(t, "0.0.12345@111.222", offset.HbarTransactionID)
	assert.Equal(t, "0.0.99999@333.444", offset.TokenMintTransactionID)
	assert.Equal(t, "Mangrove Restoration", offset.ProjectName)
	assert.Equal(t, testTokenID, offset.TokenID)

	mockRepo.AssertExpectations(t)
	mockLedger.AssertExpectations(t)
	mockRecorder.AssertNotCalled(t, "Record", mock.Anything, mock.Anything)
}

func TestPurchaseOffset_ExactCreditsBoundary(t *testing.T) {
	mockRepo := new(MockRepository)
	mockProjects := new(MockProjectRepository)
	mockLedger := new(MockLedger)
	mockRecorder := new(MockRecorder)
	service := newTestService(mockRepo, mockProjects, mockLedger, mockRecorder)

	ctx := context.Background()
	req := purchaseRequest()

	mockProjects.On("GetByProjectID", ctx, req.ProjectID).Return(testProject(50), nil)
	mockLedger.On("AccountBalance", ctx, req.UserHederaAddress).Return(&hedera.Balance{Hbars: 10.0}, nil)
	mockLedger.On("TransferHbar", ctx, req.UserHederaAddress, "0.0.55555", 6.0).
		Return(&hedera.TxResult{TransactionID: "tx-transfer", Status: "SUCCESS"}, nil)
	mockLedger.On("MintTokens", ctx, testTokenID, int64(50)).
		Return(&hedera.TxResult{TransactionID: "tx-mint", Status: "SUCCESS"}, nil)
	mockRepo.On("CommitPurchase", ctx, mock.AnythingOfType("*offsets.Offset")).Return(nil, nil)

	offset, err := service.PurchaseOffset(ctx, testUser(), req)

	assert.NoError(t, err)
	assert.NotNil(t, offset)
	mockRepo.AssertExpectations(t)
}

func TestPurchaseOffset_InsufficientCredits(t *testing.T) {
	mockRepo := new(MockRepository)
	mockProjects := new(MockProjectRepository)
	mockLedger := new(MockLedger)
	mockRecorder := new(MockRecorder)
	service := newTestService(mockRepo, mockProjects, mockLedger, mockRecorder)

	ctx := context.Background()
	req := purchaseRequest()

	mockProjects.On("GetByProjectID", ctx, req.ProjectID).Return(testProject(49), nil)

	offset, err := service.PurchaseOffset(ctx, testUser(), req)

	assert.Nil(t, offset)
	assert.True(t, apperrors.IsCode(err, apperrors.CodePreconditionFailed))
	mockLedger.AssertNotCalled(t, "AccountBalance", mock.Anything, mock.Anything)
	mockLedger.AssertNotCalled(t, "TransferHbar", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	mockRepo.AssertNotCalled(t, "CommitPurchase", mock.Anything, mock.Anything)
}

func TestPurchaseOffset_InsufficientFunds(t *testing.T) {
	mockRepo := new(MockRepository)
	mockProjects := new(MockProjectRepository)
	mockLedger := new(MockLedger)
	mockRecorder := new(MockRecorder)
	service := newTestService(mockRepo, mockProjects, mockLedger, mockRecorder)

	ctx := context.Background()
	req := purchaseRequest()

	mockProjects.On("GetByProjectID", ctx, req.ProjectID).Return(testProject(100), nil)
	mockLedger.On("AccountBalance", ctx, req.UserHederaAddress).Return(&hedera.Balance{Hbars: 5.9}, nil)

	offset, err := service.PurchaseOffset(ctx, testUser(), req)

	assert.Nil(t, offset)
	assert.True(t, apperrors.IsCode(err, apperrors.CodePreconditionFailed))
	mockLedger.AssertNotCalled(t, "TransferHbar", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	mockLedger.AssertNotCalled(t, "MintTokens", mock.Anything, mock.Anything, mock.Anything)
}

func TestPurchaseOffset_TransferFails(t *testing.T) {
	mockRepo := new(MockRepository)
	mockProjects := new(MockProjectRepository)
	mockLedger := new(MockLedger)
	mockRecorder := new(MockRecorder)
	service := newTestService(mockRepo, mockProjects, mockLedger, mockRecorder)

	ctx := context.Background()
	req := purchaseRequest()

	mockProjects.On("GetByProjectID", ctx, req.ProjectID).Return(testProject(100), nil)
	mockLedger.On("AccountBalance", ctx, req.UserHederaAddress).Return(&hedera.Balance{Hbars: 25.0}, nil)
	mockLedger.On("TransferHbar", ctx, req.UserHederaAddress, "0.0.55555", 6.0).
		Return(nil, errors.New("network unavailable"))

	offset, err := service.PurchaseOffset(ctx, testUser(), req)

	assert.Nil(t, offset)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeExternalOperationFailed))
	mockLedger.AssertNotCalled(t, "MintTokens", mock.Anything, mock.Anything, mock.Anything)
	mockRepo.AssertNotCalled(t, "CommitPurchase", mock.Anything, mock.Anything)
	mockRecorder.AssertNotCalled(t, "Record", mock.Anything, mock.Anything)
}

func TestPurchaseOffset_MintFailsAfterPayment(t *testing.T) {
	mockRepo := new(MockRepository)
	mockProjects := new(MockProjectRepository)
	mockLedger := new(MockLedger)
	mockRecorder := new(MockRecorder)
	service := newTestService(mockRepo, mockProjects, mockLedger, mockRecorder)

	ctx := context.Background()
	user := testUser()
	req := purchaseRequest()

	mockProjects.On("GetByProjectID", ctx, req.ProjectID).Return(testProject(100), nil)
	mockLedger.On("AccountBalance", ctx, req.UserHederaAddress).Return(&hedera.Balance{Hbars: 25.0}, nil)
	mockLedger.On("TransferHbar", ctx, req.UserHederaAddress, "0.0.55555", 6.0).
		Return(&hedera.TxResult{TransactionID: "tx-transfer", Status: "SUCCESS"}, nil)
	mockLedger.On("MintTokens", ctx, testTokenID, int64(50)).
		Return(nil, errors.New("supply key rejected"))
	mockRecorder.On("Record", ctx, mock.MatchedBy(func(inc *reconciliation.Inconsistency) bool {
		return inc.Kind == reconciliation.KindPaidNotMinted &&
			inc.TransferTransactionID != nil && *inc.TransferTransactionID == "tx-transfer" &&
			inc.UserID != nil && *inc.UserID == user.ID
	})).Return("corr-123")

	offset, err := service.PurchaseOffset(ctx, user, req)

	assert.Nil(t, offset)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeSettlementInconsistency))
	var appErr *apperrors.AppError
	assert.ErrorAs(t, err, &appErr)
	assert.Equal(t, "corr-123", appErr.CorrelationID)
	mockRepo.AssertNotCalled(t, "CommitPurchase", mock.Anything, mock.Anything)
	mockRecorder.AssertExpectations(t)
}

func TestPurchaseOffset_CommitFailsAfterMint(t *testing.T) {
	mockRepo := new(MockRepository)
	mockProjects := new(MockProjectRepository)
	mockLedger := new(MockLedger)
	mockRecorder := new(MockRecorder)
	service := newTestService(mockRepo, mockProjects, mockLedger, mockRecorder)

	ctx := context.Background()
	req := purchaseRequest()

	mockProjects.On("GetByProjectID", ctx, req.ProjectID).Return(testProject(100), nil)
	mockLedger.On("AccountBalance", ctx, req.UserHederaAddress).Return(&hedera.Balance{Hbars: 25.0}, nil)
	mockLedger.On("TransferHbar", ctx, req.UserHederaAddress, "0.0.55555", 6.0).
		Return(&hedera.TxResult{TransactionID: "tx-transfer", Status: "SUCCESS"}, nil)
	mockLedger.On("MintTokens", ctx, testTokenID, int64(50)).
		Return(&hedera.TxResult{TransactionID: "tx-mint", Status: "SUCCESS"}, nil)
	mockRepo.On("CommitPurchase", ctx, mock.AnythingOfType("*offsets.Offset")).
		Return(nil, errors.New("connection reset"))
	mockRecorder.On("Record", ctx, mock.MatchedBy(func(inc *reconciliation.Inconsistency) bool {
		return inc.Kind == reconciliation.KindPurchaseUnrecorded &&
			inc.TransferTransactionID != nil && *inc.TransferTransactionID == "tx-transfer" &&
			inc.MintTransactionID != nil && *inc.MintTransactionID == "tx-mint"
	})).Return("corr-456")

	offset, err := service.PurchaseOffset(ctx, testUser(), req)

	assert.Nil(t, offset)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeSettlementInconsistency))
	mockRecorder.AssertExpectations(t)
}

func TestPurchaseOffset_PoolDrainedAtCommit(t *testing.T) {
	mockRepo := new(MockRepository)
	mockProjects := new(MockProjectRepository)
	mockLedger := new(MockLedger)
	mockRecorder := new(MockRecorder)
	service := newTestService(mockRepo, mockProjects, mockLedger, mockRecorder)

	ctx := context.Background()
	req := purchaseRequest()

	mockProjects.On("GetByProjectID", ctx, req.ProjectID).Return(testProject(100), nil)
	mockLedger.On("AccountBalance", ctx, req.UserHederaAddress).Return(&hedera.Balance{Hbars: 25.0}, nil)
	mockLedger.On("TransferHbar", ctx, req.UserHederaAddress, "0.0.55555", 6.0).
		Return(&hedera.TxResult{TransactionID: "tx-transfer", Status: "SUCCESS"}, nil)
	mockLedger.On("MintTokens", ctx, testTokenID, int64(50)).
		Return(&hedera.TxResult{TransactionID: "tx-mint", Status: "SUCCESS"}, nil)
	mockRepo.On("CommitPurchase", ctx, mock.AnythingOfType("*offsets.Offset")).
		Return(nil, ErrInsufficientCredits)
	mockRecorder.On("Record", ctx, mock.MatchedBy(func(inc *reconciliation.Inconsistency) bool {
		return inc.Kind == reconciliation.KindPurchaseUnrecorded
	})).Return("corr-789")

	offset, err := service.PurchaseOffset(ctx, testUser(), req)

	assert.Nil(t, offset)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeSettlementInconsistency))
	mockRecorder.AssertExpectations(t)
}

func TestPurchaseOffset_IdempotentReplay(t *testing.T) {
	mockRepo := new(MockRepository)
	mockProjects := new(MockProjectRepository)
	mockLedger := new(MockLedger)
	mockRecorder := new(MockRecorder)
	service := newTestService(mockRepo, mockProjects, mockLedger, mockRecorder)

	ctx := context.Background()
	req := purchaseRequest()
	existing := &Offset{
		ID:                uuid.New(),
		HbarTransactionID: "tx-transfer",
		Status:            StatusCompleted,
	}

	mockProjects.On("GetByProjectID", ctx, req.ProjectID).Return(testProject(100), nil)
	mockLedger.On("AccountBalance", ctx, req.UserHederaAddress).Return(&hedera.Balance{Hbars: 25.0}, nil)
	mockLedger.On("TransferHbar", ctx, req.UserHederaAddress, "0.0.55555", 6.0).
		Return(&hedera.TxResult{TransactionID: "tx-transfer", Status: "SUCCESS"}, nil)
	mockLedger.On("MintTokens", ctx, testTokenID, int64(50)).
		Return(&hedera.TxResult{TransactionID: "tx-mint", Status: "SUCCESS"}, nil)
	mockRepo.On("CommitPurchase", ctx, mock.AnythingOfType("*offsets.Offset")).Return(existing, nil)

	offset, err := service.PurchaseOffset(ctx, testUser(), req)

	assert.NoError(t, err)
	assert.Equal(t, existing.ID, offset.ID)
	mockRecorder.AssertNotCalled(t, "Record", mock.Anything, mock.Anything)
}

func TestRedeemOffsets_FIFOWithOvershoot(t *testing.T) {
	mockRepo := new(MockRepository)
	mockProjects := new(MockProjectRepository)
	mockLedger := new(MockLedger)
	mockRecorder := new(MockRecorder)
	service := newTestService(mockRepo, mockProjects, mockLedger, mockRecorder)

	ctx := context.Background()
	user := testUser()
	older := Offset{ID: uuid.New(), UserID: user.ID, ProjectName: "Mangrove Restoration", TotalCo2eKg: 30, Status: StatusCompleted, CreatedAt: time.Now().Add(-48 * time.Hour)}
	newer := Offset{ID: uuid.New(), UserID: user.ID, ProjectName: "Wind Farm", TotalCo2eKg: 50, Status: StatusCompleted, CreatedAt: time.Now().Add(-24 * time.Hour)}

	mockLedger.On("BurnTokens", ctx, testTokenID, int64(40)).
		Return(&hedera.TxResult{TransactionID: "tx-burn", Status: "SUCCESS"}, nil)
	mockRepo.On("ListUnredeemed", ctx, user.ID).Return([]Offset{older, newer}, nil)
	mockRepo.On("MarkRedeemed", ctx, user.ID, "tx-burn", mock.AnythingOfType("time.Time"), []uuid.UUID{older.ID, newer.ID}).
		Return(int64(2), nil)

	result, err := service.RedeemOffsets(ctx, user, &RedeemRequest{TokenAmount: 40})

	assert.NoError(t, err)
	assert.Equal(t, "tx-burn", result.BurnTransactionID)
	assert.Len(t, result.Allocations, 2)
	assert.Equal(t, older.ID, result.Allocations[0].OffsetID)
	assert.Equal(t, 30.0, result.Allocations[0].AmountKg)
	assert.Equal(t, newer.ID, result.Allocations[1].OffsetID)
	assert.Equal(t, 50.0, result.Allocations[1].AmountKg)
	assert.NotEmpty(t, result.Certificate)
	mockRepo.AssertExpectations(t)
}

func TestRedeemOffsets_StopsWhenCovered(t *testing.T) {
	mockRepo := new(MockRepository)
	mockProjects := new(MockProjectRepository)
	mockLedger := new(MockLedger)
	mockRecorder := new(MockRecorder)
	service := newTestService(mockRepo, mockProjects, mockLedger, mockRecorder)

	ctx := context.Background()
	user := testUser()
	first := Offset{ID: uuid.New(), UserID: user.ID, ProjectName: "Mangrove Restoration", TotalCo2eKg: 30, Status: StatusCompleted}
	second := Offset{ID: uuid.New(), UserID: user.ID, ProjectName: "Wind Farm", TotalCo2eKg: 50, Status: StatusCompleted}

	mockLedger.On("BurnTokens", ctx, testTokenID, int64(25)).
		Return(&hedera.TxResult{TransactionID: "tx-burn", Status: "SUCCESS"}, nil)
	mockRepo.On("ListUnredeemed", ctx, user.ID).Return([]Offset{first, second}, nil)
	mockRepo.On("MarkRedeemed", ctx, user.ID, "tx-burn", mock.AnythingOfType("time.Time"), []uuid.UUID{first.ID}).
		Return(int64(1), nil)

	result, err := service.RedeemOffsets(ctx, user, &RedeemRequest{TokenAmount: 25})

	assert.NoError(t, err)
	assert.Len(t, result.Allocations, 1)
	assert.Equal(t, first.ID, result.Allocations[0].OffsetID)
	assert.Equal(t, 30.0, result.Allocations[0].AmountKg)
	mockRepo.AssertExpectations(t)
}

func TestRedeemOffsets_NoLotsIsNoOp(t *testing.T) {
	mockRepo := new(MockRepository)
	mockProjects := new(MockProjectRepository)
	mockLedger := new(MockLedger)
	mockRecorder := new(MockRecorder)
	service := newTestService(mockRepo, mockProjects, mockLedger, mockRecorder)

	ctx := context.Background()
	user := testUser()

	mockLedger.On("BurnTokens", ctx, testTokenID, int64(10)).
		Return(&hedera.TxResult{TransactionID: "tx-burn", Status: "SUCCESS"}, nil)
	mockRepo.On("ListUnredeemed", ctx, user.ID).Return([]Offset{}, nil)

	result, err := service.RedeemOffsets(ctx, user, &RedeemRequest{TokenAmount: 10})

	assert.NoError(t, err)
	assert.Empty(t, result.Allocations)
	mockRepo.AssertNotCalled(t, "MarkRedeemed", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestRedeemOffsets_BurnFails(t *testing.T) {
	mockRepo := new(MockRepository)
	mockProjects := new(MockProjectRepository)
	mockLedger := new(MockLedger)
	mockRecorder := new(MockRecorder)
	service := newTestService(mockRepo, mockProjects, mockLedger, mockRecorder)

	ctx := context.Background()

	mockLedger.On("BurnTokens", ctx, testTokenID, int64(10)).
		Return(nil, errors.New("insufficient token balance"))

	result, err := service.RedeemOffsets(ctx, testUser(), &RedeemRequest{TokenAmount: 10})

	assert.Nil(t, result)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeExternalOperationFailed))
	mockRepo.AssertNotCalled(t, "ListUnredeemed", mock.Anything, mock.Anything)
	mockRecorder.AssertNotCalled(t, "Record", mock.Anything, mock.Anything)
}

func TestRedeemOffsets_MarkFailsAfterBurn(t *testing.T) {
	mockRepo := new(MockRepository)
	mockProjects := new(MockProjectRepository)
	mockLedger := new(MockLedger)
	mockRecorder := new(MockRecorder)
	service := newTestService(mockRepo, mockProjects, mockLedger, mockRecorder)

	ctx := context.Background()
	user := testUser()
	lot := Offset{ID: uuid.New(), UserID: user.ID, ProjectName: "Mangrove Restoration", TotalCo2eKg: 30, Status: StatusCompleted}

	mockLedger.On("BurnTokens", ctx, testTokenID, int64(20)).
		Return(&hedera.TxResult{TransactionID: "tx-burn", Status: "SUCCESS"}, nil)
	mockRepo.On("ListUnredeemed", ctx, user.ID).Return([]Offset{lot}, nil)
	mockRepo.On("MarkRedeemed", ctx, user.ID, "tx-burn", mock.AnythingOfType("time.Time"), []uuid.UUID{lot.ID}).
		Return(int64(0), errors.New("connection reset"))
	mockRecorder.On("Record", ctx, mock.MatchedBy(func(inc *reconciliation.Inconsistency) bool {
		return inc.Kind == reconciliation.KindRedemptionUnrecorded &&
			inc.BurnTransactionID != nil && *inc.BurnTransactionID == "tx-burn"
	})).Return("corr-burn")

	result, err := service.RedeemOffsets(ctx, user, &RedeemRequest{TokenAmount: 20})

	assert.Nil(t, result)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeSettlementInconsistency))
	mockRecorder.AssertExpectations(t)
}

func TestRedeemOffsets_ConcurrentRaceReloadsStampedLots(t *testing.T) {
	mockRepo := new(MockRepository)
	mockProjects := new(MockProjectRepository)
	mockLedger := new(MockLedger)
	mockRecorder := new(MockRecorder)
	service := newTestService(mockRepo, mockProjects, mockLedger, mockRecorder)

	ctx := context.Background()
	user := testUser()
	first := Offset{ID: uuid.New(), UserID: user.ID, ProjectName: "Mangrove Restoration", TotalCo2eKg: 30, Status: StatusCompleted}
	second := Offset{ID: uuid.New(), UserID: user.ID, ProjectName: "Wind Farm", TotalCo2eKg: 50, Status: StatusCompleted}

	mockLedger.On("BurnTokens", ctx, testTokenID, int64(60)).
		Return(&hedera.TxResult{TransactionID: "tx-burn", Status: "SUCCESS"}, nil)
	mockRepo.On("ListUnredeemed", ctx, user.ID).Return([]Offset{first, second}, nil)
	mockRepo.On("MarkRedeemed", ctx, user.ID, "tx-burn", mock.AnythingOfType("time.Time"), []uuid.UUID{first.ID, second.ID}).
		Return(int64(1), nil)
	mockRepo.On("ListByBurnRef", ctx, user.ID, "tx-burn").Return([]Offset{second}, nil)

	result, err := service.RedeemOffsets(ctx, user, &RedeemRequest{TokenAmount: 60})

	assert.NoError(t, err)
	assert.Len(t, result.Allocations, 1)
	assert.Equal(t, second.ID, result.Allocations[0].OffsetID)
	mockRepo.AssertExpectations(t)
}

func TestGetBalance_NoLinkedAccount(t *testing.T) {
	mockRepo := new(MockRepository)
	mockProjects := new(MockProjectRepository)
	mockLedger := new(MockLedger)
	mockRecorder := new(MockRecorder)
	service := newTestService(mockRepo, mockProjects, mockLedger, mockRecorder)

	user := testUser()
	user.HederaAccountID = nil

	balance, err := service.GetBalance(context.Background(), user)

	assert.Nil(t, balance)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeValidation))
}

func TestGetBalance_Success(t *testing.T) {
	mockRepo := new(MockRepository)
	mockProjects := new(MockProjectRepository)
	mockLedger := new(MockLedger)
	mockRecorder := new(MockRecorder)
	service := newTestService(mockRepo, mockProjects, mockLedger, mockRecorder)

	ctx := context.Background()
	user := testUser()

	mockLedger.On("AccountBalance", ctx, *user.HederaAccountID).
		Return(&hedera.Balance{Hbars: 12.5, Tokens: map[string]uint64{testTokenID: 80}}, nil)

	balance, err := service.GetBalance(ctx, user)

	assert.NoError(t, err)
	assert.Equal(t, 12.5, balance.HbarBalance)
	assert.Equal(t, uint64(80), balance.CarbonOffsetTokens)
}

// fakePoolRepo simulates the conditional decrement against an in-memory pool
// so concurrent purchases can race a real counter.
type fakePoolRepo struct {
	mu        sync.Mutex
	available float64
	committed []Offset
}

func (f *fakePoolRepo) CommitPurchase(ctx context.Context, offset *Offset) (*Offset, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.available < offset.TotalCo2eKg {
		return nil, ErrInsufficientCredits
	}
	f.available -= offset.TotalCo2eKg
	f.committed = append(f.committed, *offset)
	return offset, nil
}

func (f *fakePoolRepo) GetByPaymentRef(ctx context.Context, hbarTxID string) (*Offset, error) {
	return nil, nil
}

func (f *fakePoolRepo) ListUnredeemed(ctx context.Context, userID uuid.UUID) ([]Offset, error) {
	return nil, nil
}

func (f *fakePoolRepo) MarkRedeemed(ctx context.Context, userID uuid.UUID, burnTxID string, redeemedAt time.Time, ids []uuid.UUID) (int64, error) {
	return 0, nil
}

func (f *fakePoolRepo) ListByBurnRef(ctx context.Context, userID uuid.UUID, burnTxID string) ([]Offset, error) {
	return nil, nil
}

func (f *fakePoolRepo) List(ctx context.Context, userID uuid.UUID, filters *HistoryFilters) ([]Offset, int, float64, error) {
	return nil, 0, 0, nil
}

// countingRecorder tolerates concurrent Record calls.
type countingRecorder struct {
	mu    sync.Mutex
	count int
}

func (r *countingRecorder) Record(ctx context.Context, inc *reconciliation.Inconsistency) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.count++
	return uuid.NewString()
}

func TestPurchaseOffset_ConcurrentPurchasesNeverOverdraw(t *testing.T) {
	pool := &fakePoolRepo{available: 100}
	recorder := &countingRecorder{}
	mockProjects := new(MockProjectRepository)
	mockLedger := new(MockLedger)
	service := NewService(pool, projects.NewService(mockProjects), mockLedger, recorder,
		certificate.NewGenerator(), testTokenID, zap.NewNop())

	ctx := context.Background()
	req := purchaseRequest() // 50 kg each, pool holds 100

	mockProjects.On("GetByProjectID", ctx, req.ProjectID).Return(testProject(100), nil)
	mockLedger.On("AccountBalance", ctx, req.UserHederaAddress).Return(&hedera.Balance{Hbars: 1000.0}, nil)
	mockLedger.On("TransferHbar", ctx, req.UserHederaAddress, "0.0.55555", 6.0).
		Return(&hedera.TxResult{TransactionID: "tx-transfer", Status: "SUCCESS"}, nil)
	mockLedger.On("MintTokens", ctx, testTokenID, int64(50)).
		Return(&hedera.TxResult{TransactionID: "tx-mint", Status: "SUCCESS"}, nil)

	const callers = 4
	var wg sync.WaitGroup
	results := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, results[i] = service.PurchaseOffset(ctx, testUser(), req)
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range results {
		if err == nil {
			succeeded++
		}
	}

	// 100 kg pool, 50 kg per purchase: exactly two commits fit.
	assert.Equal(t, 2, succeeded)
	assert.Equal(t, 0.0, pool.available)
	assert.Len(t, pool.committed, 2)
	assert.Equal(t, callers-2, recorder.count)
}
