package payment

import "github.com/shopspring/decimal"

// PricedItem is what the calculator needs to know about one order line.
type PricedItem struct {
	Price     decimal.Decimal
	SalePrice decimal.Decimal
	HasSale   bool
	Count     int
}

// OrderBase sums the line items (sale price wins when flagged) and applies
// the promo percentage to the subtotal. The discount lands strictly before
// any fingerprint is added.
func OrderBase(items []PricedItem, salePercent float64) decimal.Decimal {
	sum := decimal.Zero
	for _, it := range items {
		unit := it.Price
		if it.HasSale {
			unit = it.SalePrice
		}
		sum = sum.Add(unit.Mul(decimal.NewFromInt(int64(it.Count))))
	}

	if salePercent > 0 {
		discount := sum.Mul(decimal.NewFromFloat(salePercent)).Div(decimal.NewFromInt(100))
		sum = sum.Sub(discount)
	}

	return sum.Round(2)
}

// Charge is the amount the payer must actually transfer.
func Charge(base decimal.Decimal, fp Fingerprint) decimal.Decimal {
	return base.Add(fp.Decimal())
}
