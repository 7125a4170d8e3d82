// Package money turns the textual amounts found in spreadsheets, invoices and command
// arguments into exact minor-unit integers, and renders them back for display.
//
// Source locale conventions (Colombian peso):
//   - "." groups thousands, "," separates decimals ("$1.234.567,89")
//   - amounts are frequently written without decimals ("$1.000.000")
//
// Parsing is heuristic and may lose information: a single separator followed by exactly three
// digits is always a thousands group, so "2.500" is two thousand five hundred and never
// two-point-five. Digits with no separator at all count whole pesos, not centavos, so
// "350000" is three hundred fifty thousand pesos (35000000 minor units).
package money

import (
	"fmt"
	"math"
	"strings"
	"unicode"

	"github.com/shopspring/decimal"

	"sqr/internal/logger"
)

// Amount is an exact count of minor currency units (centavos).
type Amount int64

// MinorPerUnit is the number of minor units in one currency unit.
const MinorPerUnit = 100

// FromUnits converts a whole number of currency units to an Amount.
func FromUnits(units int64) Amount {
	return Amount(units * MinorPerUnit)
}

// String renders the amount in display form.
func (a Amount) String() string {
	return Format(a)
}

// WarningKind classifies a normalization warning.
type WarningKind string

const (
	// WarnUnparseable means the text held no usable number; the result is zero.
	WarnUnparseable WarningKind = "unparseable"
	// WarnAmbiguous means the separator heuristic decided between grouping and decimals.
	WarnAmbiguous WarningKind = "ambiguous"
	// WarnNegativeClamped means a negative amount was replaced by zero.
	WarnNegativeClamped WarningKind = "negative_clamped"
	// WarnPrecisionLoss means a fraction finer than one minor unit was rounded.
	WarnPrecisionLoss WarningKind = "precision_loss"
)

// Warning describes a lossy or failed normalization. Warnings never block a caller.
type Warning struct {
	Kind   WarningKind
	Input  string
	Detail string
}

func (w Warning) String() string {
	return fmt.Sprintf("%s: %q: %s", w.Kind, w.Input, w.Detail)
}

// Longest tokens first so "COL$" is removed before "$".
var currencyTokens = []string{"COL$", "COP", "USD", "EUR", "$", "€"}

// Normalize converts text to an Amount. It never fails: unusable input yields zero and the
// problem is reported as a log warning. Ambiguity notices are logged at debug level since
// every single-separator cell of a spreadsheet triggers one.
func Normalize(text string) Amount {
	amount, warnings := Parse(text)
	if len(warnings) == 0 {
		return amount
	}

	log := logger.WithComponent("money")
	for _, w := range warnings {
		event := log.Warn()
		if w.Kind == WarnAmbiguous {
			event = log.Debug()
		}
		event.
			Str("kind", string(w.Kind)).
			Str("input", w.Input).
			Int64("result", int64(amount)).
			Msg(w.Detail)
	}
	return amount
}

// Parse converts text to an Amount and returns every warning raised on the way.
// Empty or whitespace-only input is a silent zero.
func Parse(text string) (Amount, []Warning) {
	var warnings []Warning
	warn := func(kind WarningKind, detail string) {
		warnings = append(warnings, Warning{Kind: kind, Input: text, Detail: detail})
	}

	s := strings.TrimSpace(text)
	if s == "" {
		return 0, nil
	}

	s = strings.ToUpper(s)
	for _, token := range currencyTokens {
		s = strings.ReplaceAll(s, token, "")
	}
	s = strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)

	negative := false
	switch {
	case strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")"):
		negative = true
		s = s[1 : len(s)-1]
	case strings.HasPrefix(s, "-"):
		negative = true
		s = s[1:]
	case strings.HasSuffix(s, "-"):
		negative = true
		s = s[:len(s)-1]
	}
	s = strings.TrimPrefix(s, "+")

	if !isNumeric(s) {
		warn(WarnUnparseable, "no numeric value after stripping currency symbols")
		return 0, warnings
	}

	whole, fraction, ambiguous := splitSeparators(s)
	if ambiguous {
		warn(WarnAmbiguous, fmt.Sprintf("separator heuristic applied, read as %s.%s", orZero(whole), fraction))
	}

	if whole == "" {
		whole = "0"
	}
	literal := whole
	if fraction != "" {
		literal += "." + fraction
	}

	value, err := decimal.NewFromString(literal)
	if err != nil {
		warn(WarnUnparseable, fmt.Sprintf("cleaned value %q is not a number", literal))
		return 0, warnings
	}

	minor := value.Shift(2)
	if rounded := minor.Round(0); !rounded.Equal(minor) {
		warn(WarnPrecisionLoss, fmt.Sprintf("fraction %q rounded to two digits", fraction))
		minor = rounded
	}

	if minor.GreaterThan(decimal.NewFromInt(math.MaxInt64)) {
		warn(WarnUnparseable, "value exceeds the representable range")
		return 0, warnings
	}

	if negative && minor.IsPositive() {
		warn(WarnNegativeClamped, "negative amounts are not allowed, using zero")
		return 0, warnings
	}

	return Amount(minor.IntPart()), warnings
}

// isNumeric reports whether s holds only digits and separators, with at least one digit.
func isNumeric(s string) bool {
	digits := 0
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
			digits++
		case r == '.' || r == ',':
		default:
			return false
		}
	}
	return digits > 0
}

// splitSeparators decides which separator, if any, is the decimal point. It returns the
// integer digits, the fraction digits and whether the one-separator heuristic was needed.
func splitSeparators(s string) (whole, fraction string, ambiguous bool) {
	lastDot := strings.LastIndexByte(s, '.')
	lastComma := strings.LastIndexByte(s, ',')

	switch {
	case lastDot < 0 && lastComma < 0:
		return s, "", false

	case lastDot >= 0 && lastComma >= 0:
		// Both classes present: the last one is the decimal point.
		last := max(lastDot, lastComma)
		sep := s[last : last+1]
		return stripSeparators(s[:last]), s[last+1:], strings.Count(s, sep) > 1

	default:
		last := max(lastDot, lastComma)
		sep := s[last : last+1]
		count := strings.Count(s, sep)
		trailing := s[last+1:]
		if len(trailing) == 3 {
			// Repeated separators with a final group of three cannot be decimals.
			return stripSeparators(s), "", count == 1
		}
		return stripSeparators(s[:last]), trailing, true
	}
}

func orZero(s string) string {
	if s == "" {
		return "0"
	}
	return s
}

func stripSeparators(s string) string {
	return strings.NewReplacer(".", "", ",", "").Replace(s)
}

// ParseCanonical parses a machine-formatted decimal ("190000.00", the xs:decimal form used
// by structured invoices) exactly. It reports false for anything else, including negative
// values, so callers can fall back to Normalize for human-formatted text.
func ParseCanonical(text string) (Amount, bool) {
	s := strings.TrimSpace(text)
	if s == "" || strings.ContainsAny(s, ",eE") || strings.HasPrefix(s, "-") {
		return 0, false
	}

	value, err := decimal.NewFromString(s)
	if err != nil {
		return 0, false
	}
	if value.Shift(2).GreaterThan(decimal.NewFromInt(math.MaxInt64)) {
		return 0, false
	}
	return FromDecimal(value), true
}
