package money

import (
	gomoney "github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

// Peso display conventions: "$" grapheme before the number, "." thousands, "," decimals.
var (
	wholeFormatter = gomoney.NewFormatter(0, ",", ".", "$", "$1")
	exactFormatter = gomoney.NewFormatter(2, ",", ".", "$", "$1")
)

// Format renders an amount the way the spreadsheet shows it. Whole amounts omit the
// decimals ("$1.000.000"), anything else keeps two ("$1.234,56"). For every non-negative
// amount Normalize(Format(a)) == a.
func Format(a Amount) string {
	if a%MinorPerUnit == 0 {
		return wholeFormatter.Format(int64(a) / MinorPerUnit)
	}
	return exactFormatter.Format(int64(a))
}

// Decimal returns the amount in currency units as an exact decimal.
func (a Amount) Decimal() decimal.Decimal {
	return decimal.New(int64(a), -2)
}

// FromDecimal rounds a currency-unit decimal to the nearest minor unit.
func FromDecimal(d decimal.Decimal) Amount {
	return Amount(d.Shift(2).Round(0).IntPart())
}

// VATPortion returns the tax included in a tax-inclusive gross amount at the given rate
// (0.19 for 19%), rounded to the nearest minor unit.
func VATPortion(gross Amount, rate decimal.Decimal) Amount {
	if rate.IsZero() || gross == 0 {
		return 0
	}
	divisor := decimal.NewFromInt(1).Add(rate)
	return FromDecimal(gross.Decimal().Mul(rate).Div(divisor))
}

// TaxOn returns the tax owed on a tax-exclusive base at the given rate.
func TaxOn(base Amount, rate decimal.Decimal) Amount {
	return FromDecimal(base.Decimal().Mul(rate))
}
