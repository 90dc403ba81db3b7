package services

import (
	"marketplace-service/config"
	"marketplace-service/models"

	"github.com/shopspring/decimal"
)

// OrderTotals is the result of pricing an order's items.
// TotalPrice == Subtotal + Tax to the cent.
type OrderTotals struct {
	Subtotal   decimal.Decimal
	Tax        decimal.Decimal
	TotalPrice decimal.Decimal
}

// FeeBreakdown is the financial split of a paid order.
// PlatformFee + ProcessorFee + VendorPayout == the order total; the payout
// is the remainder and absorbs any residual rounding cent.
type FeeBreakdown struct {
	PlatformFee  decimal.Decimal
	ProcessorFee decimal.Decimal
	VendorPayout decimal.Decimal
}

// round2 rounds half-up to two fractional digits. All amounts here are
// positive, so decimal's half-away-from-zero rounding is exactly half-up.
func round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// CalculateOrderTotals sums the item snapshots and applies the tax rate.
// Tax is rounded independently so it stays auditable on its own.
func CalculateOrderTotals(items []models.OrderItem, taxRate decimal.Decimal) OrderTotals {
	subtotal := decimal.Zero
	for _, item := range items {
		subtotal = subtotal.Add(item.UnitPrice.Mul(decimal.NewFromInt(int64(item.Quantity))))
	}
	tax := round2(subtotal.Mul(taxRate))
	return OrderTotals{
		Subtotal:   subtotal,
		Tax:        tax,
		TotalPrice: subtotal.Add(tax),
	}
}

// CalculateFeeBreakdown splits an order total between the platform, the
// payment processor and the vendor. Platform and processor fees are rounded
// independently, never derived by subtraction.
func CalculateFeeBreakdown(totalPrice decimal.Decimal, rates config.FeeRates) FeeBreakdown {
	platformFee := round2(totalPrice.Mul(rates.PlatformRate))
	processorFee := round2(totalPrice.Mul(rates.ProcessorRate).Add(rates.ProcessorFixedFee))
	return FeeBreakdown{
		PlatformFee:  platformFee,
		ProcessorFee: processorFee,
		VendorPayout: totalPrice.Sub(platformFee).Sub(processorFee),
	}
}

// ItemTotal prices a single line item.
func ItemTotal(unitPrice decimal.Decimal, quantity int) decimal.Decimal {
	return unitPrice.Mul(decimal.NewFromInt(int64(quantity)))
}
