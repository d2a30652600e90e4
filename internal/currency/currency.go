package currency

import (
	"context"
	"log/slog"
	"strings"

	"github.com/shopspring/decimal"
)

// Code is an ISO 4217 currency code offered by the converter menu.
type Code string

const (
	NGN Code = "NGN"
	USD Code = "USD"
	EUR Code = "EUR"
	GBP Code = "GBP"
)

// Supported lists the menu currencies in display order.
var Supported = []Code{NGN, USD, EUR, GBP}

// Parse maps a code string to a supported Code.
func Parse(s string) (Code, bool) {
	c := Code(strings.ToUpper(strings.TrimSpace(s)))
	for _, known := range Supported {
		if c == known {
			return c, true
		}
	}
	return "", false
}

// DefaultRate is used whenever the provider cannot supply a rate.
var DefaultRate = decimal.RequireFromString("1.0000")

const (
	ratePlaces   = 4
	amountPlaces = 2
)

// Provider fetches the exchange rate from base to target.
type Provider interface {
	Rate(ctx context.Context, base, target Code) (decimal.Decimal, error)
}

// Converter applies the rounding policy on top of a Provider. Provider
// failures degrade to DefaultRate and are never returned.
type Converter struct {
	provider Provider
	logger   *slog.Logger
}

// NewConverter builds a converter.
func NewConverter(provider Provider, logger *slog.Logger) *Converter {
	return &Converter{provider: provider, logger: logger}
}

// Rate returns the base->target rate rounded half-up to four places.
func (c *Converter) Rate(ctx context.Context, base, target Code) decimal.Decimal {
	if base == target {
		return decimal.NewFromInt(1)
	}
	if c.provider == nil {
		return DefaultRate
	}
	rate, err := c.provider.Rate(ctx, base, target)
	if err != nil || !rate.IsPositive() {
		c.logger.Warn("exchange rate unavailable, using default",
			"base", string(base), "target", string(target), "error", err)
		return DefaultRate
	}
	return rate.Round(ratePlaces)
}

// Convert returns amount expressed in target. Equal currencies return amount
// unchanged; otherwise the product of amount and the rounded rate is rounded
// half-up to two places.
func (c *Converter) Convert(ctx context.Context, base, target Code, amount decimal.Decimal) decimal.Decimal {
	if base == target {
		return amount
	}
	return amount.Mul(c.Rate(ctx, base, target)).Round(amountPlaces)
}
