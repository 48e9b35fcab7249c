// Package normalize converts raw upstream market documents into the
// canonical decimal odds triple, and canonicalizes participant names.
package normalize

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/ecarrasco/dropwatch/internal/upstream"
)

// minOdds is the minimum decimal quote accepted; anything below is
// discarded per §4.2.
var minOdds = decimal.NewFromFloat(1.001)

// ErrNoOdds is returned when no market matches the sport's arity.
var ErrNoOdds = fmt.Errorf("normalize: no matching market for sport arity")

// ParseFractional converts a fractional quote string ("n/d") to decimal
// via n/d + 1. Decimal-looking strings ("2.50") are also accepted as a
// tolerant fallback, since some upstream payloads mix representations.
func ParseFractional(raw string) (decimal.Decimal, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return decimal.Zero, fmt.Errorf("empty quote")
	}

	if num, den, ok := splitFraction(raw); ok {
		if den == 0 {
			return decimal.Zero, fmt.Errorf("zero denominator in %q", raw)
		}
		return decimal.NewFromInt(num).Div(decimal.NewFromInt(den)).Add(decimal.NewFromInt(1)), nil
	}

	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parse quote %q: %w", raw, err)
	}
	return d, nil
}

func splitFraction(raw string) (num, den int64, ok bool) {
	parts := strings.SplitN(raw, "/", 2)
	if len(parts) != 2 {
		return 0, 0, false
	}
	n, err1 := strconv.ParseInt(strings.TrimSpace(parts[0]), 10, 64)
	d, err2 := strconv.ParseInt(strings.TrimSpace(parts[1]), 10, 64)
	if err1 != nil || err2 != nil {
		return 0, 0, false
	}
	return n, d, true
}

// ValidateQuote reports whether a decimal quote is acceptable (>= 1.001).
func ValidateQuote(d decimal.Decimal) bool {
	return d.GreaterThanOrEqual(minOdds)
}

// SelectMarket locates the first market block whose outcome set matches
// the sport's arity — a draw ("x") key present iff hasDraw — discarding
// any market with a mismatched structure.
func SelectMarket(markets []upstream.MarketBlock, hasDraw bool) (*upstream.MarketBlock, bool) {
	for i := range markets {
		m := &markets[i]
		_, hasOne := m.Outcome["1"]
		_, hasTwo := m.Outcome["2"]
		_, hasX := m.Outcome["x"]
		if hasOne && hasTwo && hasX == hasDraw {
			return m, true
		}
	}
	return nil, false
}

// Triple is the canonical decimal odds for one market, truncated to 3
// fractional digits (the raw-odds rounding rule in §4.2).
type Triple struct {
	One decimal.Decimal
	X   *decimal.Decimal
	Two decimal.Decimal
}

// NormalizeTriple parses and validates the outcomes of market, returning
// ErrNoOdds if no market's arity matches hasDraw, and an error when any
// required quote is missing, unparsable, or below the minimum — callers
// treat either as a normalization error per §7, not a hard failure.
func NormalizeTriple(markets []upstream.MarketBlock, hasDraw bool) (*Triple, error) {
	market, ok := SelectMarket(markets, hasDraw)
	if !ok {
		return nil, ErrNoOdds
	}

	one, err := quoteOrNil(market.Outcome["1"])
	if err != nil || one == nil {
		return nil, fmt.Errorf("normalize: invalid '1' quote: %w", err)
	}
	two, err := quoteOrNil(market.Outcome["2"])
	if err != nil || two == nil {
		return nil, fmt.Errorf("normalize: invalid '2' quote: %w", err)
	}

	t := &Triple{One: one.Truncate(3), Two: two.Truncate(3)}

	if hasDraw {
		x, err := quoteOrNil(market.Outcome["x"])
		if err != nil || x == nil {
			return nil, fmt.Errorf("normalize: invalid 'x' quote: %w", err)
		}
		xt := x.Truncate(3)
		t.X = &xt
	}

	return t, nil
}

func quoteOrNil(raw string) (*decimal.Decimal, error) {
	if raw == "" {
		return nil, nil
	}
	d, err := ParseFractional(raw)
	if err != nil {
		return nil, err
	}
	if !ValidateQuote(d) {
		return nil, nil
	}
	return &d, nil
}

// AsColumns returns the triple as the three nullable column values of
// the opening or final half of an OddsRecord.
func (t *Triple) AsColumns() (one, x, two *decimal.Decimal) {
	one = &t.One
	two = &t.Two
	x = t.X
	return
}
