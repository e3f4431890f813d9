package payment

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/axegao/axegaoshop/internal/app/entity"
	"github.com/axegao/axegaoshop/internal/app/logger"
	"github.com/axegao/axegaoshop/internal/app/registry"
)

// ErrOrderCanceled reports that the order reached the canceled state
// before settlement could finish it (the sweeper or an explicit cancel won
// the race).
var ErrOrderCanceled = errors.New("order is canceled")

// Store is the slice of persistence the settler needs. The storage
// repository satisfies it; tests plug in fakes.
type Store interface {
	FinishOrder(orderID int64) (bool, error)
	CancelOrder(orderID int64) (bool, error)
	OrderStatus(orderID int64) (string, error)
	OrderItems(orderID int64) ([]entity.OrderItem, error)
	UsePromocode(promocodeID int64) error
	ClearCart(userID int64) error
	FinishReplenish(replenishID int64, userID int64, amount decimal.Decimal) (bool, error)
}

// Bank is the polled payment rail.
type Bank interface {
	HasPayment(ctx context.Context, amount decimal.Decimal, notBefore time.Time) (bool, error)
}

type Confirmation struct {
	OrderID int64
	Number  string
	Email   string
	Amount  decimal.Decimal
	Items   []entity.OrderItem
}

// Notifier receives the payment-confirmed event exactly once per order.
type Notifier interface {
	PaymentConfirmed(ctx context.Context, c Confirmation)
}

// Settler drives pending payments to their terminal state. The race with
// the sweeper (and with concurrent checks) is settled by the store's
// conditional updates: only the caller whose update flipped the status runs
// the side effects.
type Settler struct {
	store    Store
	reg      registry.Registry
	bank     Bank
	notifier Notifier
}

func NewSettler(store Store, reg registry.Registry, bank Bank, notifier Notifier) *Settler {
	return &Settler{
		store:    store,
		reg:      reg,
		bank:     bank,
		notifier: notifier,
	}
}

// SettleOrder checks the bank for the order's exact charge amount and, on a
// match, finalizes the order. Bank errors are reported to operators via the
// log and returned; the payer-facing caller shows both "no match" and
// "could not check" as still waiting.
func (s *Settler) SettleOrder(ctx context.Context, o entity.Order) (bool, []entity.OrderItem, error) {
	paid, err := s.bank.HasPayment(ctx, o.ResultPrice.Decimal, o.CreatedAt)
	if err != nil {
		logger.Logger.Error().Err(err).Str("component", "bank").
			Int64("order_id", o.ID).Msg("payment check failed")
		return false, nil, err
	}
	if !paid {
		return false, nil, nil
	}

	items, err := s.Finalize(ctx, o)
	if err != nil {
		return false, nil, err
	}
	return true, items, nil
}

// Finalize flips the order to finished and runs the paid side effects.
// Safe to call on an already-finished order: the loser of the conditional
// update only reads the assigned items back. A loss against a cancel is
// reported as ErrOrderCanceled.
func (s *Settler) Finalize(ctx context.Context, o entity.Order) ([]entity.OrderItem, error) {
	won, err := s.store.FinishOrder(o.ID)
	if err != nil {
		return nil, err
	}

	if !won {
		status, err := s.store.OrderStatus(o.ID)
		if err != nil {
			return nil, err
		}
		if status != entity.StatusFinished {
			return nil, ErrOrderCanceled
		}
		return s.store.OrderItems(o.ID)
	}

	items, err := s.store.OrderItems(o.ID)
	if err != nil {
		return nil, err
	}

	if o.PaymentType == entity.PaymentTypeSBP && o.ResultPrice.Valid {
		s.releaseFingerprint(ctx, o.ResultPrice.Decimal)
	}
	if o.PromocodeID != nil {
		if err := s.store.UsePromocode(*o.PromocodeID); err != nil {
			logger.Logger.Error().Err(err).Int64("order_id", o.ID).Msg("promocode decrement failed")
		}
	}
	if !o.Straight {
		if err := s.store.ClearCart(o.UserID); err != nil {
			logger.Logger.Error().Err(err).Int64("order_id", o.ID).Msg("cart cleanup failed")
		}
	}

	s.notifier.PaymentConfirmed(ctx, Confirmation{
		OrderID: o.ID,
		Number:  o.Number,
		Email:   o.Email,
		Amount:  o.ResultPrice.Decimal,
		Items:   items,
	})

	return items, nil
}

// CancelOrder moves a pending order to canceled and frees its fingerprint.
// Canceling an already-terminal order is a no-op.
func (s *Settler) CancelOrder(ctx context.Context, o entity.Order) (bool, error) {
	won, err := s.store.CancelOrder(o.ID)
	if err != nil || !won {
		return false, err
	}
	if o.PaymentType == entity.PaymentTypeSBP && o.ResultPrice.Valid {
		s.releaseFingerprint(ctx, o.ResultPrice.Decimal)
	}
	return true, nil
}

// SettleReplenish is the top-up counterpart of SettleOrder: on a match the
// winner credits the user's balance with the full charge amount.
func (s *Settler) SettleReplenish(ctx context.Context, r entity.Replenish) (bool, error) {
	paid, err := s.bank.HasPayment(ctx, r.ResultPrice.Decimal, r.CreatedAt)
	if err != nil {
		logger.Logger.Error().Err(err).Str("component", "bank").
			Int64("replenish_id", r.ID).Msg("payment check failed")
		return false, err
	}
	if !paid {
		return false, nil
	}

	// status flip and balance credit commit together: a failed credit
	// leaves the replenish pending and retryable
	won, err := s.store.FinishReplenish(r.ID, r.UserID, r.ResultPrice.Decimal)
	if err != nil {
		return false, err
	}
	if !won {
		return true, nil
	}

	s.releaseFingerprint(ctx, r.ResultPrice.Decimal)
	return true, nil
}

func (s *Settler) releaseFingerprint(ctx context.Context, charge decimal.Decimal) {
	fp := FingerprintOf(charge)
	if err := s.reg.Release(ctx, fp.String()); err != nil {
		logger.Logger.Error().Err(err).Str("fingerprint", fp.String()).Msg("fingerprint release failed")
	}
}
