// Package currency converts amounts between currencies using a fixed rate table.
//
// Every rate is expressed relative to a single base currency (rate 1). The
// table is built once at start-up and never mutated, so it is safe to share
// between goroutines without locking.
package currency

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

// DefaultBase is the currency amounts are stored in.
const DefaultBase = "ZAR"

// divisionPrecision is the number of decimal places kept when dividing by a rate.
const divisionPrecision = 24

var (
	ErrUnknownCurrency = errors.New("unknown currency")
	ErrInvalidRate     = errors.New("invalid rate")
)

// UnknownCurrencyError reports a code that is not in the rate table.
type UnknownCurrencyError struct {
	Code string
}

func (e *UnknownCurrencyError) Error() string {
	return fmt.Sprintf("unknown currency %q", e.Code)
}

func (e *UnknownCurrencyError) Unwrap() error { return ErrUnknownCurrency }

// Table maps currency codes to their rate relative to the base currency.
type Table struct {
	base  string
	rates map[string]decimal.Decimal
}

// NewTable builds a table. The base must be present with rate 1 and every rate
// must be positive.
func NewTable(base string, rates map[string]decimal.Decimal) (*Table, error) {
	base = normalize(base)
	t := &Table{base: base, rates: make(map[string]decimal.Decimal, len(rates))}
	for code, rate := range rates {
		code = normalize(code)
		if code == "" {
			return nil, fmt.Errorf("%w: empty currency code", ErrInvalidRate)
		}
		if !rate.IsPositive() {
			return nil, fmt.Errorf("%w: %s rate must be positive, got %s", ErrInvalidRate, code, rate)
		}
		t.rates[code] = rate
	}
	r, ok := t.rates[base]
	if !ok {
		return nil, &UnknownCurrencyError{Code: base}
	}
	if !r.Equal(decimal.NewFromInt(1)) {
		return nil, fmt.Errorf("%w: base currency %s must have rate 1, got %s", ErrInvalidRate, base, r)
	}
	return t, nil
}

// DefaultTable is the built-in ZAR-based table.
func DefaultTable() *Table {
	t, err := NewTable(DefaultBase, map[string]decimal.Decimal{
		"ZAR": decimal.NewFromInt(1),
		"USD": decimal.RequireFromString("0.054"),
		"EUR": decimal.RequireFromString("0.050"),
		"GBP": decimal.RequireFromString("0.042"),
		"INR": decimal.RequireFromString("4.5"),
	})
	if err != nil {
		panic(err)
	}
	return t
}

// ParseRates parses "ZAR:1,USD:0.054" into a table with the given base.
func ParseRates(base, spec string) (*Table, error) {
	rates := make(map[string]decimal.Decimal)
	for _, pair := range strings.Split(spec, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		code, raw, ok := strings.Cut(pair, ":")
		if !ok {
			return nil, fmt.Errorf("%w: expected CODE:RATE, got %q", ErrInvalidRate, pair)
		}
		rate, err := decimal.NewFromString(strings.TrimSpace(raw))
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrInvalidRate, code, err)
		}
		rates[normalize(code)] = rate
	}
	if len(rates) == 0 {
		return nil, fmt.Errorf("%w: no rates given", ErrInvalidRate)
	}
	return NewTable(base, rates)
}

// Base returns the storage currency.
func (t *Table) Base() string { return t.base }

// Has reports whether code is in the table.
func (t *Table) Has(code string) bool {
	_, ok := t.rates[normalize(code)]
	return ok
}

// Validate returns an UnknownCurrencyError for codes missing from the table.
func (t *Table) Validate(code string) error {
	if !t.Has(code) {
		return &UnknownCurrencyError{Code: code}
	}
	return nil
}

// Rate returns the rate of code relative to the base.
func (t *Table) Rate(code string) (decimal.Decimal, error) {
	r, ok := t.rates[normalize(code)]
	if !ok {
		return decimal.Zero, &UnknownCurrencyError{Code: code}
	}
	return r, nil
}

// Codes returns the known currency codes, sorted.
func (t *Table) Codes() []string {
	codes := make([]string, 0, len(t.rates))
	for c := range t.rates {
		codes = append(codes, c)
	}
	sort.Strings(codes)
	return codes
}

// Convert converts amount from one currency to another: amount / rate[from] * rate[to].
func (t *Table) Convert(amount decimal.Decimal, from, to string) (decimal.Decimal, error) {
	rf, err := t.Rate(from)
	if err != nil {
		return decimal.Zero, err
	}
	rt, err := t.Rate(to)
	if err != nil {
		return decimal.Zero, err
	}
	if normalize(from) == normalize(to) {
		return amount, nil
	}
	return amount.Mul(rt).DivRound(rf, divisionPrecision), nil
}

// FromBase converts a stored amount into the display currency.
func (t *Table) FromBase(amount decimal.Decimal, to string) (decimal.Decimal, error) {
	return t.Convert(amount, t.base, to)
}

// ToBase converts an entered amount into the storage currency.
func (t *Table) ToBase(amount decimal.Decimal, from string) (decimal.Decimal, error) {
	return t.Convert(amount, from, t.base)
}

func normalize(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
