package session

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"

	"github.com/leonardcser/imoney-mcp/internal/currency"
)

// DefaultAmount is the amount of the base currency shown when nothing was entered.
var DefaultAmount = decimal.NewFromInt(100)

// ErrNoSourceRate means the source currency has no usable rate.
var ErrNoSourceRate = errors.New("session: no rate for source currency")

// Conversion is one row of the calculator.
type Conversion struct {
	Code      string
	Amount    decimal.Decimal // rounded to 2 places
	Available bool            // false when the snapshot has no usable rate for Code
}

// Convert scales amount of source into every displayed currency:
// amount * rate(target) / rate(source).
func (s *Session) Convert(ctx context.Context, source string, amount decimal.Decimal) ([]Conversion, error) {
	snap, err := s.Rates(ctx)
	if err != nil {
		return nil, err
	}
	source = currency.Sanitize(source)
	if source == "" {
		source = currency.Base
	}
	sourceRate, ok := snap.Rate(source)
	if !ok {
		return nil, ErrNoSourceRate
	}
	src := decimal.NewFromFloat(sourceRate)

	codes := s.Currencies()
	out := make([]Conversion, 0, len(codes))
	for _, code := range codes {
		if code == source {
			out = append(out, Conversion{Code: code, Amount: amount.Round(2), Available: true})
			continue
		}
		r, ok := snap.Rate(code)
		if !ok {
			out = append(out, Conversion{Code: code})
			continue
		}
		ratio := decimal.NewFromFloat(r).Div(src)
		out = append(out, Conversion{Code: code, Amount: amount.Mul(ratio).Round(2), Available: true})
	}
	return out, nil
}
