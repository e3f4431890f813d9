package sweeper

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/axegao/axegaoshop/internal/app/logger"
	"github.com/axegao/axegaoshop/internal/app/payment"
	"github.com/axegao/axegaoshop/internal/app/registry"
)

// Store cancels pending payables past the window and reports the charge
// amounts of the rows it actually flipped. The conditional update inside
// keeps the sweeper from touching orders being settled at the same moment.
type Store interface {
	CancelStaleOrders(olderThan time.Time) ([]decimal.Decimal, error)
	CancelStaleReplenishes(olderThan time.Time) ([]decimal.Decimal, error)
}

// Sweeper expires unpaid orders and top-ups and releases their
// fingerprints back into circulation.
type Sweeper struct {
	store    Store
	reg      registry.Registry
	interval time.Duration
	window   time.Duration
}

func New(store Store, reg registry.Registry, interval time.Duration, window time.Duration) *Sweeper {
	return &Sweeper{
		store:    store,
		reg:      reg,
		interval: interval,
		window:   window,
	}
}

func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *Sweeper) sweep(ctx context.Context) {
	cutoff := time.Now().Add(-s.window)

	orderAmounts, err := s.store.CancelStaleOrders(cutoff)
	if err != nil {
		logger.Logger.Error().Err(err).Msg("stale order sweep failed")
	}
	replenishAmounts, err := s.store.CancelStaleReplenishes(cutoff)
	if err != nil {
		logger.Logger.Error().Err(err).Msg("stale replenish sweep failed")
	}

	pruned := 0
	for _, amount := range append(orderAmounts, replenishAmounts...) {
		fp := payment.FingerprintOf(amount)
		if err := s.reg.Release(ctx, fp.String()); err != nil {
			logger.Logger.Error().Err(err).Str("fingerprint", fp.String()).Msg("fingerprint release failed")
			continue
		}
		pruned++
	}

	if pruned != 0 {
		logger.Logger.Info().Int("count", pruned).Msg("pruned expired orders and replenishes")
	}
}
