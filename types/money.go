// Package types provides common types used across the condominium ledger.
package types

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"math/big"
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
)

// Errors reported by NormalizeStrict.
var (
	ErrEmptyAmount       = errors.New("money: empty amount")
	ErrUnparseableAmount = errors.New("money: unparseable amount")
)

// Locale describes how monetary amounts are written by humans and how they
// are rendered back for display.
//
// The zero value is not usable; start from DefaultLocale.
type Locale struct {
	DecimalSeparator   rune   `json:"decimal_separator"`
	ThousandsSeparator rune   `json:"thousands_separator"` // 0 disables grouping
	CurrencyCode       string `json:"currency_code"`       // "" omits the suffix
	FractionDigits     int32  `json:"fraction_digits"`
}

// DefaultLocale returns the Angolan kwanza locale: "15.000,00 AOA".
func DefaultLocale() Locale {
	return Locale{
		DecimalSeparator:   ',',
		ThousandsSeparator: '.',
		CurrencyCode:       "AOA",
		FractionDigits:     2,
	}
}

// Validate reports whether the locale can round-trip amounts.
func (l Locale) Validate() error {
	if l.DecimalSeparator == 0 {
		return errors.New("money: decimal separator is required")
	}
	if l.DecimalSeparator == l.ThousandsSeparator {
		return fmt.Errorf("money: decimal and thousands separators are both %q", l.DecimalSeparator)
	}
	if unicode.IsDigit(l.DecimalSeparator) || unicode.IsDigit(l.ThousandsSeparator) {
		return errors.New("money: separators cannot be digits")
	}
	if l.FractionDigits < 0 {
		return fmt.Errorf("money: negative fraction digits %d", l.FractionDigits)
	}
	return nil
}

// Normalize converts human or numeric input into an exact decimal.
//
// Numbers are taken as-is. Strings are cleaned of whitespace, thousands
// separators and the currency code before the decimal separator is
// converted and the result parsed. Empty or unparseable input yields zero;
// use NormalizeStrict where a silent zero would be wrong.
func (l Locale) Normalize(v any) decimal.Decimal {
	d, err := l.NormalizeStrict(v)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// NormalizeStrict is Normalize with failures reported.
func (l Locale) NormalizeStrict(v any) (decimal.Decimal, error) {
	switch x := v.(type) {
	case nil:
		return decimal.Zero, ErrEmptyAmount
	case decimal.Decimal:
		return x, nil
	case *decimal.Decimal:
		if x == nil {
			return decimal.Zero, ErrEmptyAmount
		}
		return *x, nil
	case int:
		return decimal.NewFromInt(int64(x)), nil
	case int8:
		return decimal.NewFromInt(int64(x)), nil
	case int16:
		return decimal.NewFromInt(int64(x)), nil
	case int32:
		return decimal.NewFromInt(int64(x)), nil
	case int64:
		return decimal.NewFromInt(x), nil
	case uint:
		return fromUint64(uint64(x)), nil
	case uint8:
		return fromUint64(uint64(x)), nil
	case uint16:
		return fromUint64(uint64(x)), nil
	case uint32:
		return fromUint64(uint64(x)), nil
	case uint64:
		return fromUint64(x), nil
	case float32:
		return fromFloat(float64(x))
	case float64:
		return fromFloat(x)
	case json.Number:
		d, err := decimal.NewFromString(x.String())
		if err != nil {
			return decimal.Zero, fmt.Errorf("%w: %q", ErrUnparseableAmount, x.String())
		}
		return d, nil
	case string:
		return l.parse(x)
	case fmt.Stringer:
		return l.parse(x.String())
	default:
		return decimal.Zero, fmt.Errorf("%w: unsupported type %T", ErrUnparseableAmount, v)
	}
}

func (l Locale) parse(raw string) (decimal.Decimal, error) {
	s := strings.TrimSpace(raw)
	if l.CurrencyCode != "" {
		s = removeFold(s, l.CurrencyCode)
	}

	var b strings.Builder
	b.Grow(len(s))
	seenDecimal := false
	for _, r := range s {
		switch {
		case unicode.IsSpace(r):
		case l.ThousandsSeparator != 0 && r == l.ThousandsSeparator:
		case r == l.DecimalSeparator:
			if seenDecimal {
				return decimal.Zero, fmt.Errorf("%w: %q", ErrUnparseableAmount, raw)
			}
			seenDecimal = true
			b.WriteByte('.')
		default:
			b.WriteRune(r)
		}
	}

	cleaned := b.String()
	if cleaned == "" {
		return decimal.Zero, ErrEmptyAmount
	}
	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrUnparseableAmount, raw)
	}
	return d, nil
}

// Format renders d with exactly FractionDigits fraction digits, grouped
// thousands and the currency code suffix, e.g. "15.000,00 AOA".
func (l Locale) Format(d decimal.Decimal) string {
	plain := l.FormatPlain(d)
	if l.CurrencyCode == "" {
		return plain
	}
	return plain + " " + l.CurrencyCode
}

// FormatPlain is Format without the currency code.
func (l Locale) FormatPlain(d decimal.Decimal) string {
	fixed := d.Round(l.FractionDigits).StringFixed(l.FractionDigits)

	negative := strings.HasPrefix(fixed, "-")
	fixed = strings.TrimPrefix(fixed, "-")

	intPart, fracPart, _ := strings.Cut(fixed, ".")

	var b strings.Builder
	if negative {
		b.WriteByte('-')
	}
	b.WriteString(group(intPart, l.ThousandsSeparator))
	if l.FractionDigits > 0 {
		b.WriteRune(l.DecimalSeparator)
		b.WriteString(fracPart)
	}
	return b.String()
}

// Sum adds the given amounts.
func Sum(values ...decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, v := range values {
		total = total.Add(v)
	}
	return total
}

// group inserts sep every three digits from the right.
func group(digits string, sep rune) string {
	if sep == 0 || len(digits) <= 3 {
		return digits
	}

	var b strings.Builder
	lead := len(digits) % 3
	if lead > 0 {
		b.WriteString(digits[:lead])
	}
	for i := lead; i < len(digits); i += 3 {
		if b.Len() > 0 {
			b.WriteRune(sep)
		}
		b.WriteString(digits[i : i+3])
	}
	return b.String()
}

// removeFold removes every case-insensitive occurrence of sub from s.
func removeFold(s, sub string) string {
	upper := strings.ToUpper(s)
	target := strings.ToUpper(sub)
	if len(upper) != len(s) || !strings.Contains(upper, target) {
		return s
	}

	var b strings.Builder
	for {
		i := strings.Index(upper, target)
		if i < 0 {
			b.WriteString(s)
			return b.String()
		}
		b.WriteString(s[:i])
		s = s[i+len(target):]
		upper = upper[i+len(target):]
	}
}

func fromUint64(v uint64) decimal.Decimal {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(v), 0)
}

func fromFloat(v float64) (decimal.Decimal, error) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return decimal.Zero, fmt.Errorf("%w: %v", ErrUnparseableAmount, v)
	}
	return decimal.NewFromFloat(v), nil
}
