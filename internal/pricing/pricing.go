// Package pricing computes cart totals and the quantity bonus.
//
// Every unit is priced off the first lot of its option. Once a cart holds
// at least BonusThreshold units, one unit of the cheapest strictly positive
// priced line is free.
package pricing

import (
	"race-kart/internal/model"

	"github.com/shopspring/decimal"
)

// BonusThreshold is the number of units that unlocks one free unit ("10+1").
const BonusThreshold = 11

// Evaluate prices items. A threshold below 1 falls back to BonusThreshold.
func Evaluate(items []model.CartItem, threshold int) model.CartTotals {
	if threshold < 1 {
		threshold = BonusThreshold
	}

	totals := model.CartTotals{
		Subtotal:      decimal.Zero,
		TotalPrice:    decimal.Zero,
		FreeItemPrice: decimal.Zero,
	}

	free := -1
	for i, item := range items {
		totals.TotalItems += item.Quantity
		price := item.UnitPrice()
		totals.Subtotal = totals.Subtotal.Add(price.Mul(decimal.NewFromInt(int64(item.Quantity))))

		if !price.IsPositive() || item.Quantity < 1 {
			continue
		}
		// strict comparison keeps the first line on ties
		if free < 0 || price.LessThan(items[free].UnitPrice()) {
			free = i
		}
	}

	if totals.TotalItems == 0 {
		return totals
	}

	totals.TotalPrice = totals.Subtotal
	if totals.TotalItems < threshold {
		return totals
	}

	totals.BonusApplied = true
	if free < 0 {
		return totals
	}

	key := items[free].Key()
	totals.FreeItem = &key
	totals.FreeItemPrice = items[free].UnitPrice()

	// the donating line is charged for quantity-1 units
	totals.TotalPrice = decimal.Zero
	for i, item := range items {
		qty := item.Quantity
		if i == free {
			qty--
		}
		totals.TotalPrice = totals.TotalPrice.Add(item.UnitPrice().Mul(decimal.NewFromInt(int64(qty))))
	}

	return totals
}
