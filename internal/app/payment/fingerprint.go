package payment

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Fingerprint is the sub-unit postfix appended to a charge so the payment
// can be told apart in a bank ledger without reference numbers. Stored as
// kopecks, 0..99.
type Fingerprint int

func (f Fingerprint) String() string {
	return fmt.Sprintf("0.%02d", int(f))
}

func (f Fingerprint) Decimal() decimal.Decimal {
	return decimal.New(int64(f), -2)
}

// FingerprintOf recovers the fingerprint from a charge amount: the
// fractional two-decimal remainder.
func FingerprintOf(amount decimal.Decimal) Fingerprint {
	frac := amount.Sub(amount.Floor())
	return Fingerprint(frac.Mul(decimal.NewFromInt(100)).IntPart())
}
