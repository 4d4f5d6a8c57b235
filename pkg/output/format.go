// Package output provides utilities for formatting and displaying projection results.
package output

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/iwvelando/espp-forecast/internal/animation"
	"github.com/iwvelando/espp-forecast/internal/scenario"
	"github.com/iwvelando/espp-forecast/internal/timeline"
	"github.com/iwvelando/espp-forecast/internal/valuation"
	"github.com/iwvelando/espp-forecast/pkg/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Report is everything printed by the report mode. Amounts are canonical.
type Report struct {
	Currency   currency.Code
	Investment float64
	Config     valuation.TaxDilutionConfig
	Scenarios  []scenario.Scenario
	Outcomes   map[scenario.ID]valuation.Outcome
	Frames     []timeline.Frame
}

// NewReport captures the current state of m.
func NewReport(m *scenario.Model) Report {
	return Report{
		Currency:   m.Currency(),
		Investment: m.Investment(),
		Config:     m.Config(),
		Scenarios:  m.Scenarios(),
		Outcomes:   m.Outcomes(),
		Frames:     m.Timeline(),
	}
}

// PrettyFormat outputs a human-readable rather than machine-readable table.
func PrettyFormat(w io.Writer, r Report) error {
	p := message.NewPrinter(language.English)
	money := moneyFormatter(r.Currency)

	var b strings.Builder
	fmt.Fprintf(&b, "--- ESPP projection (%s, investment %s", r.Currency, money(r.Investment, false))
	if r.Currency != currency.Canonical {
		fmt.Fprintf(&b, ", 1 %s = %g %s", currency.Canonical, r.Currency.Rate(), r.Currency)
	}
	fmt.Fprintf(&b, ") ---\n")
	fmt.Fprintf(&b, "Capital gains %s | Marginal %s | Dilution %s | Horizon %dy\n\n",
		currency.FormatPercentage(r.Config.CapGainRate),
		currency.FormatPercentage(r.Config.MarginalRate),
		currency.FormatPercentage(r.Config.Dilution),
		r.Config.HorizonYears,
	)

	fmt.Fprintf(&b, "%-20s | %-10s | %-11s | %-10s | %-10s | %-14s | %-14s | %-14s | %-6s | %s\n",
		"Scenario", "Valuation", "Price/share", "Shares", "Booster", "Gross", "Tax", "Net", "ROI", "CAGR")
	fmt.Fprintf(&b, "%s\n", strings.Repeat("_", 140))
	for _, s := range r.Scenarios {
		o := r.Outcomes[s.ID]
		_, _ = p.Fprintf(&b, "%-20s | %-10s | %-11s | %-10.1f | %-10.1f | %-14s | %-14s | %-14s | %-6s | %s\n",
			s.Label,
			money(s.Valuation, true),
			price(o.EffectivePricePerShare, r.Currency),
			o.SharesBought,
			o.BoosterShares,
			money(o.GrossValue, false),
			money(o.TotalTax, false),
			money(o.NetValue, false),
			fmt.Sprintf("%.2fx", o.ROI),
			currency.FormatPercentage(o.AnnualizedReturn),
		)
	}

	fmt.Fprintf(&b, "\n--- Vesting timeline ---\n")
	fmt.Fprintf(&b, "Month    | Purchased      | Booster        | Total\n")
	fmt.Fprintf(&b, "_____    | _________      | _______        | _____\n")
	for _, f := range r.Frames {
		fmt.Fprintf(&b, "%-8s | %-14s | %-14s | %s\n",
			f.Label, money(f.Purchased, false), money(f.Booster, false), money(f.Total(), false))
	}

	_, err := io.WriteString(w, b.String())
	return err
}

// CsvFormat outputs the scenario table and the timeline in comma-separated
// value format, separated by an empty line. Amounts are in the display currency.
func CsvFormat(w io.Writer, r Report) error {
	cv := currency.NewConverter()
	display := func(v float64) string {
		d, err := cv.ToDisplay(v, r.Currency)
		if err != nil {
			return ""
		}
		return fmt.Sprintf("%.2f", d)
	}

	cw := csv.NewWriter(w)
	records := [][]string{{
		"scenario", "valuation", "effective_price", "shares_bought", "booster_shares",
		"gross_value", "total_tax", "net_value", "roi", "annualized_return",
	}}
	for _, s := range r.Scenarios {
		o := r.Outcomes[s.ID]
		records = append(records, []string{
			string(s.ID),
			display(s.Valuation),
			display(o.EffectivePricePerShare),
			fmt.Sprintf("%.4f", o.SharesBought),
			fmt.Sprintf("%.4f", o.BoosterShares),
			display(o.GrossValue),
			display(o.TotalTax),
			display(o.NetValue),
			fmt.Sprintf("%.4f", o.ROI),
			fmt.Sprintf("%.4f", o.AnnualizedReturn),
		})
	}

	records = append(records, []string{}, []string{"month", "label", "purchased", "booster", "total"})
	for _, f := range r.Frames {
		records = append(records, []string{
			fmt.Sprintf("%d", f.Month),
			f.Label,
			display(f.Purchased),
			display(f.Booster),
			display(f.Total()),
		})
	}

	if err := cw.WriteAll(records); err != nil {
		return fmt.Errorf("failed to write csv: %w", err)
	}
	return nil
}

// FrameLine renders one animation snapshot as a single line.
func FrameLine(snap animation.Snapshot, code currency.Code) string {
	money := moneyFormatter(code)
	hud := snap.HUD

	label := hud.Label
	if label == "" {
		label = "start"
	}
	marker := ""
	if hud.FastForwarding {
		marker = " >>"
	}

	return fmt.Sprintf("[%-8s] %2d/%d %-12s | purchased %s (%s) | booster %s (%s) | total %s%s",
		label, snap.Step, len(snap.Frames), hud.Phase,
		money(hud.Purchased, false), hud.PurchasedStatus,
		money(hud.Booster, false), hud.BoosterStatus,
		money(hud.Total, false), marker,
	)
}

func price(v float64, code currency.Code) string {
	d, err := currency.NewConverter().ToDisplay(v, code)
	if err != nil {
		return "n/a"
	}
	return fmt.Sprintf("%.2f %s", d, code)
}

func moneyFormatter(code currency.Code) func(float64, bool) string {
	return func(v float64, compact bool) string {
		s, err := currency.Format(v, code, compact)
		if err != nil {
			return "n/a"
		}
		return s
	}
}
