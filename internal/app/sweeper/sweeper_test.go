package sweeper

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/axegao/axegaoshop/internal/app/registry"
)

type fakeStore struct {
	orderAmounts     []decimal.Decimal
	replenishAmounts []decimal.Decimal
	sweeps           int
}

func (f *fakeStore) CancelStaleOrders(time.Time) ([]decimal.Decimal, error) {
	f.sweeps++
	amounts := f.orderAmounts
	f.orderAmounts = nil
	return amounts, nil
}

func (f *fakeStore) CancelStaleReplenishes(time.Time) ([]decimal.Decimal, error) {
	amounts := f.replenishAmounts
	f.replenishAmounts = nil
	return amounts, nil
}

func TestSweepReleasesFingerprints(t *testing.T) {
	ctx := context.Background()
	reg := registry.NewMemory()

	for _, member := range []string{"0.23", "0.88", "0.05"} {
		ok, err := reg.Reserve(ctx, member)
		require.NoError(t, err)
		require.True(t, ok)
	}

	store := &fakeStore{
		orderAmounts:     []decimal.Decimal{decimal.RequireFromString("500.23")},
		replenishAmounts: []decimal.Decimal{decimal.RequireFromString("1000.88")},
	}

	s := New(store, reg, time.Second, 10*time.Minute)
	s.sweep(ctx)

	for _, member := range []string{"0.23", "0.88"} {
		exists, err := reg.Exists(ctx, member)
		require.NoError(t, err)
		assert.False(t, exists, "expired fingerprint %s must be released", member)
	}

	// a fingerprint belonging to a still-pending payment stays put
	exists, err := reg.Exists(ctx, "0.05")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestSweepCanceledAtMostOnce(t *testing.T) {
	ctx := context.Background()
	reg := registry.NewMemory()

	ok, err := reg.Reserve(ctx, "0.23")
	require.NoError(t, err)
	require.True(t, ok)

	store := &fakeStore{orderAmounts: []decimal.Decimal{decimal.RequireFromString("500.23")}}
	s := New(store, reg, time.Second, 10*time.Minute)

	s.sweep(ctx)

	// the value is free and may be taken by a new payment
	ok, err = reg.Reserve(ctx, "0.23")
	require.NoError(t, err)
	require.True(t, ok)

	// the store reports nothing on the second pass, so the re-reserved
	// value survives the sweeper
	s.sweep(ctx)
	exists, err := reg.Exists(ctx, "0.23")
	require.NoError(t, err)
	assert.True(t, exists)
	assert.Equal(t, 2, store.sweeps)
}

func TestRunStopsOnContextCancel(t *testing.T) {
	reg := registry.NewMemory()
	store := &fakeStore{}
	s := New(store, reg, 5*time.Millisecond, time.Minute)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	time.Sleep(25 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop on context cancel")
	}
	assert.GreaterOrEqual(t, store.sweeps, 1)
}
