package ledger

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockStore struct {
	mock.Mock
}

func (m *mockStore) GetOrCreate(ctx context.Context, userID int) (*Ledger, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Ledger), args.Error(1)
}

func (m *mockStore) Append(ctx context.Context, userID int, e Entry) (*Transaction, error) {
	args := m.Called(ctx, userID, e)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Transaction), args.Error(1)
}

func (m *mockStore) Transactions(ctx context.Context, userID int, limit, offset int) ([]Transaction, error) {
	args := m.Called(ctx, userID, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]Transaction), args.Error(1)
}

func (m *mockStore) AllTransactions(ctx context.Context, userID int) ([]Transaction, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]Transaction), args.Error(1)
}

func TestService_PurchaseThenSpend(t *testing.T) {
	ctx := context.Background()
	svc := NewService(NewMemoryStore())

	_, err := svc.Purchase(ctx, 1, 25, "standard", "pay_abc")
	require.NoError(t, err)

	missionID := 9
	tx, err := svc.Debit(ctx, 1, 15, "featured mission", Link{MissionID: &missionID}, Metadata{"featured": true})
	require.NoError(t, err)
	assert.Equal(t, int64(25), tx.BalanceBefore)
	assert.Equal(t, int64(10), tx.BalanceAfter)

	_, err = svc.Debit(ctx, 1, 15, "featured mission", Link{}, nil)
	assert.ErrorIs(t, err, ErrInsufficientBalance)

	l, err := svc.Balance(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(10), l.Balance)
	assert.Equal(t, int64(25), l.TotalPurchased)
	assert.Equal(t, int64(15), l.TotalUsed)

	history, err := svc.History(ctx, 1, 10, 0)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, KindUsed, history[0].Kind)
	assert.Equal(t, "standard", history[1].Metadata["package"])
	assert.Equal(t, int64(2190), history[1].Metadata["price_cents"])
}

func TestService_PurchaseReplayIsRejected(t *testing.T) {
	ctx := context.Background()
	svc := NewService(NewMemoryStore())

	_, err := svc.Purchase(ctx, 1, 10, "starter", "pay_1")
	require.NoError(t, err)
	_, err = svc.Purchase(ctx, 1, 10, "starter", "pay_1")
	assert.ErrorIs(t, err, ErrDuplicateReference)

	l, _ := svc.Balance(ctx, 1)
	assert.Equal(t, int64(10), l.Balance)
}

func TestService_RefundAndExpire(t *testing.T) {
	ctx := context.Background()
	svc := NewService(NewMemoryStore())

	_, err := svc.Refund(ctx, 1, 5, "")
	require.NoError(t, err)
	tx, err := svc.Expire(ctx, 1, 2, "")
	require.NoError(t, err)
	assert.Equal(t, "tokens expired", tx.Reason)

	l, _ := svc.Balance(ctx, 1)
	assert.Equal(t, int64(3), l.Balance)
	assert.Equal(t, int64(5), l.TotalRefunded)
	assert.Equal(t, int64(2), l.TotalUsed)

	audit, err := svc.Verify(ctx, 1)
	require.NoError(t, err)
	assert.True(t, audit.Consistent)
	assert.Equal(t, 2, audit.Replayed.Transactions)
}

func TestService_RejectsNonPositiveAmountBeforeStore(t *testing.T) {
	store := new(mockStore)
	svc := NewService(store)

	_, err := svc.Purchase(context.Background(), 1, 0, "starter", "pay_1")
	assert.ErrorIs(t, err, ErrInvalidAmount)

	_, err = svc.Debit(context.Background(), 1, -2, "contact", Link{}, nil)
	assert.ErrorIs(t, err, ErrInvalidAmount)

	store.AssertNotCalled(t, "Append", mock.Anything, mock.Anything, mock.Anything)
}

func TestService_VerifyDetectsDrift(t *testing.T) {
	store := new(mockStore)
	svc := NewService(store)
	ctx := context.Background()

	store.On("GetOrCreate", ctx, 1).Return(&Ledger{ID: 1, UserID: 1, Balance: 30, TotalPurchased: 25}, nil)
	store.On("AllTransactions", ctx, 1).Return([]Transaction{
		{ID: 1, Kind: KindPurchase, Amount: 25, BalanceBefore: 0, BalanceAfter: 25},
	}, nil)

	audit, err := svc.Verify(ctx, 1)
	require.NoError(t, err)
	assert.False(t, audit.Consistent)
	assert.Contains(t, audit.Problem, "replayed balance 25, stored 30")
	store.AssertExpectations(t)
}

func TestService_VerifyReportsBrokenChain(t *testing.T) {
	store := new(mockStore)
	svc := NewService(store)
	ctx := context.Background()

	store.On("GetOrCreate", ctx, 1).Return(&Ledger{ID: 1, UserID: 1, Balance: 10}, nil)
	store.On("AllTransactions", ctx, 1).Return([]Transaction{
		{ID: 1, Kind: KindPurchase, Amount: 10, BalanceBefore: 3, BalanceAfter: 13},
	}, nil)

	audit, err := svc.Verify(ctx, 1)
	require.NoError(t, err)
	assert.False(t, audit.Consistent)
	assert.Contains(t, audit.Problem, ErrChainBroken.Error())
}

func TestService_StoreErrorsAreWrapped(t *testing.T) {
	store := new(mockStore)
	svc := NewService(store)
	ctx := context.Background()
	boom := errors.New("connection reset")

	store.On("GetOrCreate", ctx, 1).Return(nil, boom)
	store.On("Append", ctx, 1, mock.Anything).Return(nil, boom)

	_, err := svc.Balance(ctx, 1)
	assert.ErrorIs(t, err, boom)

	_, err = svc.Refund(ctx, 1, 5, "goodwill")
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "append refund")
}

func TestPackages(t *testing.T) {
	p, ok := FindPackage("pro")
	require.True(t, ok)
	assert.Equal(t, int64(60), p.Tokens)

	_, ok = FindPackage("mega")
	assert.False(t, ok)

	list := Packages()
	list[0].Tokens = 1000
	again, _ := FindPackage(list[0].Name)
	assert.NotEqual(t, int64(1000), again.Tokens)
}
