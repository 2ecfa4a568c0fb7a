package cart

import (
	"encoding/json"
	"math"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/shopspring/decimal"
)

// ParsePrice normalizes a catalog price. It accepts numbers, decimals and
// strings with at most one leading currency symbol ("$12.99"). Anything
// absent or malformed is 0.
func ParsePrice(v interface{}) decimal.Decimal {
	switch p := v.(type) {
	case nil:
		return decimal.Zero
	case decimal.Decimal:
		return p
	case float64:
		if math.IsNaN(p) || math.IsInf(p, 0) {
			return decimal.Zero
		}
		return decimal.NewFromFloat(p)
	case float32:
		return ParsePrice(float64(p))
	case int:
		return decimal.NewFromInt(int64(p))
	case int64:
		return decimal.NewFromInt(p)
	case json.Number:
		return parsePriceString(p.String())
	case string:
		return parsePriceString(p)
	default:
		return decimal.Zero
	}
}

func parsePriceString(s string) decimal.Decimal {
	s = strings.TrimSpace(s)
	if r, size := utf8.DecodeRuneInString(s); size > 0 && unicode.Is(unicode.Sc, r) {
		s = strings.TrimSpace(s[size:])
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// Pricing holds the rates applied by Totals.
type Pricing struct {
	TaxRate     decimal.Decimal
	DeliveryFee decimal.Decimal
}

func DefaultPricing() Pricing {
	return Pricing{
		TaxRate:     decimal.RequireFromString("0.13"),
		DeliveryFee: decimal.RequireFromString("5.00"),
	}
}

func NewPricing(taxRate, deliveryFee float64) Pricing {
	return Pricing{TaxRate: decimal.NewFromFloat(taxRate), DeliveryFee: decimal.NewFromFloat(deliveryFee)}
}

type Totals struct {
	Subtotal    decimal.Decimal `json:"subtotal"`
	Tax         decimal.Decimal `json:"tax"`
	DeliveryFee decimal.Decimal `json:"deliveryFee"`
	Total       decimal.Decimal `json:"total"`
}

// PointsEarned is one point per whole currency unit of the total.
func (t Totals) PointsEarned() int64 {
	if t.Total.IsNegative() {
		return 0
	}
	return t.Total.Floor().IntPart()
}

// ComputeTotals derives totals from lines. Reward lines add nothing to the
// subtotal but still count toward a non-empty cart.
func ComputeTotals(lines []Line, p Pricing) Totals {
	subtotal := decimal.Zero
	for _, l := range lines {
		if l.IsReward() {
			continue
		}
		subtotal = subtotal.Add(l.Price().Mul(decimal.NewFromInt(int64(l.Quantity))))
	}
	tax := subtotal.Mul(p.TaxRate)
	fee := decimal.Zero
	if len(lines) > 0 {
		fee = p.DeliveryFee
	}
	return Totals{
		Subtotal:    subtotal,
		Tax:         tax,
		DeliveryFee: fee,
		Total:       subtotal.Add(tax).Add(fee),
	}
}
