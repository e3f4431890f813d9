package payment

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/axegao/axegaoshop/internal/app/entity"
	"github.com/axegao/axegaoshop/internal/app/registry"
)

type fakeStore struct {
	orderStatus     map[int64]string
	replenishStatus map[int64]string
	items           []entity.OrderItem
	promoUses       map[int64]int
	cartsCleared    int
	balance         decimal.Decimal
	creditErr       error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		orderStatus:     make(map[int64]string),
		replenishStatus: make(map[int64]string),
		promoUses:       make(map[int64]int),
	}
}

func (f *fakeStore) FinishOrder(orderID int64) (bool, error) {
	if f.orderStatus[orderID] != entity.StatusWaitingPayment {
		return false, nil
	}
	f.orderStatus[orderID] = entity.StatusFinished
	return true, nil
}

func (f *fakeStore) CancelOrder(orderID int64) (bool, error) {
	if f.orderStatus[orderID] != entity.StatusWaitingPayment {
		return false, nil
	}
	f.orderStatus[orderID] = entity.StatusCanceled
	return true, nil
}

func (f *fakeStore) OrderStatus(orderID int64) (string, error) {
	return f.orderStatus[orderID], nil
}

func (f *fakeStore) OrderItems(int64) ([]entity.OrderItem, error) {
	return f.items, nil
}

func (f *fakeStore) UsePromocode(promocodeID int64) error {
	f.promoUses[promocodeID]++
	return nil
}

func (f *fakeStore) ClearCart(int64) error {
	f.cartsCleared++
	return nil
}

// FinishReplenish mirrors the repository's one-transaction semantics: a
// credit failure leaves the status untouched.
func (f *fakeStore) FinishReplenish(replenishID int64, _ int64, amount decimal.Decimal) (bool, error) {
	if f.replenishStatus[replenishID] != entity.StatusWaitingPayment {
		return false, nil
	}
	if f.creditErr != nil {
		return false, f.creditErr
	}
	f.replenishStatus[replenishID] = entity.StatusFinished
	f.balance = f.balance.Add(amount)
	return true, nil
}

type fakeBank struct {
	paidAmounts []decimal.Decimal
	err         error
	calls       int
}

func (f *fakeBank) HasPayment(_ context.Context, amount decimal.Decimal, _ time.Time) (bool, error) {
	f.calls++
	if f.err != nil {
		return false, f.err
	}
	for _, paid := range f.paidAmounts {
		if paid.Equal(amount) {
			return true, nil
		}
	}
	return false, nil
}

type fakeNotifier struct {
	confirmations []Confirmation
}

func (f *fakeNotifier) PaymentConfirmed(_ context.Context, c Confirmation) {
	f.confirmations = append(f.confirmations, c)
}

func pendingOrder(id int64, charge string) entity.Order {
	return entity.Order{
		ID:          id,
		Number:      "N-1",
		UserID:      7,
		Straight:    false,
		ResultPrice: decimal.NewNullDecimal(d(charge)),
		Status:      entity.StatusWaitingPayment,
		Email:       "buyer@example.com",
		PaymentType: entity.PaymentTypeSBP,
		CreatedAt:   time.Now().Add(-time.Minute),
	}
}

func TestSettleOrderPaid(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	store.orderStatus[1] = entity.StatusWaitingPayment
	store.items = []entity.OrderItem{{ParameterID: 3, Title: "key", Count: 1, Items: []string{"AAA-BBB"}}}

	reg := registry.NewMemory()
	ok, err := reg.Reserve(ctx, "0.23")
	require.NoError(t, err)
	require.True(t, ok)

	bank := &fakeBank{paidAmounts: []decimal.Decimal{d("500.23")}}
	notifier := &fakeNotifier{}
	promoID := int64(11)

	order := pendingOrder(1, "500.23")
	order.PromocodeID = &promoID

	settler := NewSettler(store, reg, bank, notifier)

	paid, items, err := settler.SettleOrder(ctx, order)
	require.NoError(t, err)
	assert.True(t, paid)
	assert.Len(t, items, 1)
	assert.Equal(t, entity.StatusFinished, store.orderStatus[1])
	assert.Equal(t, 1, store.promoUses[promoID])
	assert.Equal(t, 1, store.cartsCleared)
	require.Len(t, notifier.confirmations, 1)
	assert.Equal(t, "N-1", notifier.confirmations[0].Number)

	exists, err := reg.Exists(ctx, "0.23")
	require.NoError(t, err)
	assert.False(t, exists, "fingerprint must be released on settlement")

	// a second check is a no-op: no second fulfillment, promo decrement
	// or notification
	paid, _, err = settler.SettleOrder(ctx, order)
	require.NoError(t, err)
	assert.True(t, paid)
	assert.Equal(t, 1, store.promoUses[promoID])
	assert.Equal(t, 1, store.cartsCleared)
	assert.Len(t, notifier.confirmations, 1)
}

func TestSettleOrderNoPaymentYet(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	store.orderStatus[1] = entity.StatusWaitingPayment

	reg := registry.NewMemory()
	_, err := reg.Reserve(ctx, "0.23")
	require.NoError(t, err)

	settler := NewSettler(store, reg, &fakeBank{}, &fakeNotifier{})

	paid, _, err := settler.SettleOrder(ctx, pendingOrder(1, "500.23"))
	require.NoError(t, err)
	assert.False(t, paid)
	assert.Equal(t, entity.StatusWaitingPayment, store.orderStatus[1])

	exists, err := reg.Exists(ctx, "0.23")
	require.NoError(t, err)
	assert.True(t, exists, "fingerprint stays reserved while waiting")
}

func TestSettleOrderBankError(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	store.orderStatus[1] = entity.StatusWaitingPayment

	reg := registry.NewMemory()
	_, err := reg.Reserve(ctx, "0.23")
	require.NoError(t, err)

	bank := &fakeBank{err: fmt.Errorf("bank operations responded 500")}
	settler := NewSettler(store, reg, bank, &fakeNotifier{})

	paid, _, err := settler.SettleOrder(ctx, pendingOrder(1, "500.23"))
	assert.Error(t, err)
	assert.False(t, paid)
	assert.Equal(t, entity.StatusWaitingPayment, store.orderStatus[1])
}

func TestCancelOrderReleasesFingerprint(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	store.orderStatus[1] = entity.StatusWaitingPayment

	reg := registry.NewMemory()
	_, err := reg.Reserve(ctx, "0.23")
	require.NoError(t, err)

	settler := NewSettler(store, reg, &fakeBank{}, &fakeNotifier{})

	won, err := settler.CancelOrder(ctx, pendingOrder(1, "500.23"))
	require.NoError(t, err)
	assert.True(t, won)
	assert.Equal(t, entity.StatusCanceled, store.orderStatus[1])

	ok, err := reg.Reserve(ctx, "0.23")
	require.NoError(t, err)
	assert.True(t, ok, "canceled order's fingerprint is free again")

	// the terminal order must not release the now re-reserved value
	won, err = settler.CancelOrder(ctx, pendingOrder(1, "500.23"))
	require.NoError(t, err)
	assert.False(t, won)

	exists, err := reg.Exists(ctx, "0.23")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestSettleOrderCanceledUnderneath(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	// the sweeper got there first: the conditional update loses and the
	// payer must see a cancellation, not a finished order
	store.orderStatus[1] = entity.StatusCanceled
	store.items = []entity.OrderItem{}

	reg := registry.NewMemory()
	bank := &fakeBank{paidAmounts: []decimal.Decimal{d("500.23")}}
	notifier := &fakeNotifier{}

	settler := NewSettler(store, reg, bank, notifier)

	paid, _, err := settler.SettleOrder(ctx, pendingOrder(1, "500.23"))
	assert.ErrorIs(t, err, ErrOrderCanceled)
	assert.False(t, paid)
	assert.Equal(t, entity.StatusCanceled, store.orderStatus[1])
	assert.Empty(t, notifier.confirmations)
	assert.Equal(t, 0, store.cartsCleared)
}

func TestSettleReplenish(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	store.replenishStatus[5] = entity.StatusWaitingPayment

	reg := registry.NewMemory()
	_, err := reg.Reserve(ctx, "0.88")
	require.NoError(t, err)

	bank := &fakeBank{paidAmounts: []decimal.Decimal{d("1000.88")}}
	settler := NewSettler(store, reg, bank, &fakeNotifier{})

	replenish := entity.Replenish{
		ID:          5,
		Number:      "R-1",
		UserID:      7,
		ResultPrice: decimal.NewNullDecimal(d("1000.88")),
		Status:      entity.StatusWaitingPayment,
		PaymentType: entity.PaymentTypeSBP,
		CreatedAt:   time.Now().Add(-time.Minute),
	}

	paid, err := settler.SettleReplenish(ctx, replenish)
	require.NoError(t, err)
	assert.True(t, paid)
	assert.Equal(t, entity.StatusFinished, store.replenishStatus[5])
	assert.True(t, store.balance.Equal(d("1000.88")))

	exists, err := reg.Exists(ctx, "0.88")
	require.NoError(t, err)
	assert.False(t, exists)

	// repeated check does not double-credit
	paid, err = settler.SettleReplenish(ctx, replenish)
	require.NoError(t, err)
	assert.True(t, paid)
	assert.True(t, store.balance.Equal(d("1000.88")))
}

func TestSettleReplenishCreditFailureStaysPending(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	store.replenishStatus[5] = entity.StatusWaitingPayment
	store.creditErr = fmt.Errorf("connection reset")

	reg := registry.NewMemory()
	_, err := reg.Reserve(ctx, "0.88")
	require.NoError(t, err)

	bank := &fakeBank{paidAmounts: []decimal.Decimal{d("1000.88")}}
	settler := NewSettler(store, reg, bank, &fakeNotifier{})

	replenish := entity.Replenish{
		ID:          5,
		Number:      "R-1",
		UserID:      7,
		ResultPrice: decimal.NewNullDecimal(d("1000.88")),
		Status:      entity.StatusWaitingPayment,
		PaymentType: entity.PaymentTypeSBP,
		CreatedAt:   time.Now().Add(-time.Minute),
	}

	// a failed credit must not strand the top-up in a finished state with
	// nothing credited
	paid, err := settler.SettleReplenish(ctx, replenish)
	assert.Error(t, err)
	assert.False(t, paid)
	assert.Equal(t, entity.StatusWaitingPayment, store.replenishStatus[5])
	assert.True(t, store.balance.IsZero())

	exists, err := reg.Exists(ctx, "0.88")
	require.NoError(t, err)
	assert.True(t, exists, "fingerprint stays reserved until the credit lands")

	// the next check succeeds and credits exactly once
	store.creditErr = nil
	paid, err = settler.SettleReplenish(ctx, replenish)
	require.NoError(t, err)
	assert.True(t, paid)
	assert.Equal(t, entity.StatusFinished, store.replenishStatus[5])
	assert.True(t, store.balance.Equal(d("1000.88")))

	exists, err = reg.Exists(ctx, "0.88")
	require.NoError(t, err)
	assert.False(t, exists)
}
