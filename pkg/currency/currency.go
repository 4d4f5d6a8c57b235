// Package currency converts between the canonical unit of account (USD) and
// the supported display currencies, and renders display amounts.
package currency

import (
	"errors"
	"fmt"
	"strings"

	"github.com/iwvelando/espp-forecast/pkg/constants"
	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Code identifies a display currency.
type Code string

// Supported currencies. USD is the canonical unit.
const (
	USD Code = "USD"
	EUR Code = "EUR"
	HUF Code = "HUF"
)

// Canonical is the currency all engine math is performed in.
const Canonical = USD

// ErrUnsupported is returned for a currency outside the fixed set.
var ErrUnsupported = errors.New("unsupported currency")

var rates = map[Code]float64{
	USD: 1,
	EUR: 0.92,
	HUF: 330,
}

var symbols = map[Code]string{
	USD: "$",
	EUR: "€",
	HUF: "Ft",
}

// Codes returns the supported currencies in display order.
func Codes() []Code {
	return []Code{USD, EUR, HUF}
}

// ParseCode parses a currency code case-insensitively.
func ParseCode(s string) (Code, error) {
	code := Code(strings.ToUpper(strings.TrimSpace(s)))
	if _, ok := rates[code]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnsupported, s)
	}
	return code, nil
}

// Valid reports whether c is one of the supported currencies.
func (c Code) Valid() bool {
	_, ok := rates[c]
	return ok
}

// Rate returns the static multiplier from canonical units to c.
func (c Code) Rate() float64 {
	return rates[c]
}

// Symbol returns the display symbol for c.
func (c Code) Symbol() string {
	return symbols[c]
}

// DefaultInvestment returns the default plan contribution expressed in c.
func DefaultInvestment(c Code) float64 {
	if c == HUF {
		return constants.DefaultInvestmentHUF
	}
	return constants.DefaultInvestment
}

// Converter multiplies canonical amounts into display amounts and back using
// the static rate table. It holds no state.
type Converter struct{}

// NewConverter returns a converter using the static rate table.
func NewConverter() Converter {
	return Converter{}
}

func (cv Converter) rate(c Code) (float64, error) {
	r, ok := rates[c]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnsupported, string(c))
	}
	return r, nil
}

// ToDisplay converts a canonical amount into c.
func (cv Converter) ToDisplay(canonical float64, c Code) (float64, error) {
	r, err := cv.rate(c)
	if err != nil {
		return 0, err
	}
	return canonical * r, nil
}

// FromDisplay converts an amount expressed in c into canonical units.
func (cv Converter) FromDisplay(display float64, c Code) (float64, error) {
	r, err := cv.rate(c)
	if err != nil {
		return 0, err
	}
	return display / r, nil
}

// WholeUnits converts a canonical amount into c and rounds it half away from
// zero to whole currency units.
func (cv Converter) WholeUnits(canonical float64, c Code) (decimal.Decimal, error) {
	r, err := cv.rate(c)
	if err != nil {
		return decimal.Zero, err
	}
	return decimal.NewFromFloat(canonical).Mul(decimal.NewFromFloat(r)).Round(0), nil
}

// Format renders a canonical amount in c with the currency symbol and
// thousands grouping, without fractional digits. Compact notation abbreviates
// thousands, millions and billions.
func (cv Converter) Format(canonical float64, c Code, compact bool) (string, error) {
	var amount decimal.Decimal
	if compact {
		r, err := cv.rate(c)
		if err != nil {
			return "", err
		}
		amount = decimal.NewFromFloat(canonical).Mul(decimal.NewFromFloat(r))
	} else {
		var err error
		amount, err = cv.WholeUnits(canonical, c)
		if err != nil {
			return "", err
		}
	}

	sign := ""
	if amount.IsNegative() {
		sign = "-"
		amount = amount.Abs()
	}

	var body string
	if compact {
		body = compactString(amount)
	} else {
		body = printerFor(c).Sprintf("%d", amount.IntPart())
	}

	if c == HUF {
		return sign + body + " " + c.Symbol(), nil
	}
	return sign + c.Symbol() + body, nil
}

// Format renders a canonical amount with the static rate table.
func Format(canonical float64, c Code, compact bool) (string, error) {
	return NewConverter().Format(canonical, c, compact)
}

// FormatPercentage renders a fraction as a whole percentage, e.g. 0.15 -> "15%".
func FormatPercentage(fraction float64) string {
	return decimal.NewFromFloat(fraction).Shift(2).Round(0).String() + "%"
}

func printerFor(c Code) *message.Printer {
	if c == HUF {
		return message.NewPrinter(language.Hungarian)
	}
	return message.NewPrinter(language.English)
}

var compactUnits = []struct {
	threshold decimal.Decimal
	suffix    string
}{
	{decimal.New(1, 3), "K"},
	{decimal.New(1, 6), "M"},
	{decimal.New(1, 9), "B"},
}

var compactStep = decimal.New(1, 3)

// compactString moves up a unit whenever the value rounded in the current
// unit reaches 1000, so 999,960 renders as 1M rather than 1000K.
func compactString(amount decimal.Decimal) string {
	value := amount.Round(0)
	suffix := ""
	for _, unit := range compactUnits {
		if value.LessThan(compactStep) {
			break
		}
		value = amount.Div(unit.threshold).Round(1)
		suffix = unit.suffix
	}
	return value.String() + suffix
}
