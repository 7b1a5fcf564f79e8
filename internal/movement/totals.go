package movement

import "github.com/shopspring/decimal"

var hundred = decimal.NewFromInt(100)

// LineValue is quantity × unitPrice × (1 − discountPercent/100).
func LineValue(quantity int64, unitPrice, discountPercent decimal.Decimal) decimal.Decimal {
	gross := unitPrice.Mul(decimal.NewFromInt(quantity))
	return gross.Mul(hundred.Sub(discountPercent)).Div(hundred)
}

// TotalValue sums LineValue over import lines.
func (i Import) TotalValue() decimal.Decimal {
	total := decimal.Zero
	for _, l := range i.Lines {
		total = total.Add(LineValue(l.Quantity, l.UnitPrice, l.DiscountPercent))
	}
	return total
}

// TotalValue sums LineValue over export lines.
func (e Export) TotalValue() decimal.Decimal {
	total := decimal.Zero
	for _, l := range e.Lines {
		total = total.Add(LineValue(l.Quantity, l.UnitPrice, l.DiscountPercent))
	}
	return total
}

// DifferenceQuantity is actual minus system quantity.
func (l CheckLine) DifferenceQuantity() int64 {
	return l.ActualQuantity - l.SystemQuantity
}

// TotalValue is the difference valued at unit price.
func (l CheckLine) TotalValue() decimal.Decimal {
	return decimal.NewFromInt(l.DifferenceQuantity()).Mul(l.UnitPrice)
}

// TotalDifferenceValue sums line values.
func (c Check) TotalDifferenceValue() decimal.Decimal {
	total := decimal.Zero
	for _, l := range c.Lines {
		total = total.Add(l.TotalValue())
	}
	return total
}
