package transactions

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"soul-carbon/carbon-tracker-backend/internal/emissions"
	"soul-carbon/carbon-tracker-backend/internal/offsets"
	"soul-carbon/carbon-tracker-backend/pkg/apperrors"
)

// MockRepository is a mock implementation of the Repository interface
type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) List(ctx context.Context, userID uuid.UUID, filters *Filters) ([]Transaction, int, error) {
	args := m.Called(ctx, userID, filters)
	return args.Get(0).([]Transaction), args.Int(1), args.Error(2)
}

func (m *MockRepository) FindEmissionByRef(ctx context.Context, userID uuid.UUID, ref string) (*emissions.Emission, error) {
	args := m.Called(ctx, userID, ref)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*emissions.Emission), args.Error(1)
}

func (m *MockRepository) FindOffsetByRef(ctx context.Context, userID uuid.UUID, ref string) (*offsets.Offset, string, error) {
	args := m.Called(ctx, userID, ref)
	if args.Get(0) == nil {
		return nil, args.String(1), args.Error(2)
	}
	return args.Get(0).(*offsets.Offset), args.String(1), args.Error(2)
}

func (m *MockRepository) DashboardStats(ctx context.Context, userID uuid.UUID) (*DashboardStats, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*DashboardStats), args.Error(1)
}

func TestLookup_ResolvesEmissionFirst(t *testing.T) {
	mockRepo := new(MockRepository)
	service := NewService(mockRepo)

	ctx := context.Background()
	userID := uuid.New()
	emission := &emissions.Emission{ID: uuid.New(), HederaTransactionID: "tx-emission"}

	mockRepo.On("FindEmissionByRef", ctx, userID, "tx-emission").Return(emission, nil)

	detail, err := service.Lookup(ctx, userID, "tx-emission")

	assert.NoError(t, err)
	assert.Equal(t, KindEmission, detail.Kind)
	assert.Equal(t, emission, detail.Record)
	assert.Contains(t, detail.Explorer, "tx-emission")
	mockRepo.AssertNotCalled(t, "FindOffsetByRef", mock.Anything, mock.Anything, mock.Anything)
}

func TestLookup_ResolvesOffsetByAnyRef(t *testing.T) {
	mockRepo := new(MockRepository)
	service := NewService(mockRepo)

	ctx := context.Background()
	userID := uuid.New()
	offset := &offsets.Offset{ID: uuid.New(), HbarTransactionID: "tx-pay"}

	mockRepo.On("FindEmissionByRef", ctx, userID, "tx-burn").Return(nil, nil)
	mockRepo.On("FindOffsetByRef", ctx, userID, "tx-burn").Return(offset, KindOffsetRedemption, nil)

	detail, err := service.Lookup(ctx, userID, "tx-burn")

	assert.NoError(t, err)
	assert.Equal(t, KindOffsetRedemption, detail.Kind)
	assert.Equal(t, offset, detail.Record)
}

func TestLookup_UnknownRef(t *testing.T) {
	mockRepo := new(MockRepository)
	service := NewService(mockRepo)

	ctx := context.Background()
	userID := uuid.New()

	mockRepo.On("FindEmissionByRef", ctx, userID, "nope").Return(nil, nil)
	mockRepo.On("FindOffsetByRef", ctx, userID, "nope").Return(nil, "", nil)

	detail, err := service.Lookup(ctx, userID, "nope")

	assert.Nil(t, detail)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeNotFound))
}

func TestList_RejectsUnknownKind(t *testing.T) {
	service := NewService(new(MockRepository))

	kind := "refund"
	_, _, err := service.List(context.Background(), uuid.New(), &Filters{Kind: &kind})

	assert.True(t, apperrors.IsCode(err, apperrors.CodeValidation))
}

func TestDashboard(t *testing.T) {
	mockRepo := new(MockRepository)
	service := NewService(mockRepo)

	ctx := context.Background()
	userID := uuid.New()

	mockRepo.On("DashboardStats", ctx, userID).Return(&DashboardStats{
		TotalEmissionsKg: 120,
		TotalOffsetKg:    80,
		NetFootprintKg:   40,
	}, nil)

	stats, err := service.Dashboard(ctx, userID)

	assert.NoError(t, err)
	assert.Equal(t, 40.0, stats.NetFootprintKg)
}
