package notify

import (
	"context"

	"github.com/axegao/axegaoshop/internal/app/logger"
	"github.com/axegao/axegaoshop/internal/app/payment"
)

// Log records confirmed payments for the operators. Mail and chat-bot
// delivery hang off the same event at the deployment boundary.
type Log struct{}

func NewLog() *Log {
	return &Log{}
}

func (l *Log) PaymentConfirmed(_ context.Context, c payment.Confirmation) {
	logger.Logger.Info().
		Int64("order_id", c.OrderID).
		Str("number", c.Number).
		Str("amount", c.Amount.String()).
		Int("positions", len(c.Items)).
		Msg("payment confirmed")
}
