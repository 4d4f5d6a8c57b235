// Package scenario holds the three valuation scenarios and the shared
// assumptions, and derives their outcomes on every read.
package scenario

import (
	"errors"
	"fmt"

	"github.com/iwvelando/espp-forecast/internal/timeline"
	"github.com/iwvelando/espp-forecast/internal/valuation"
	"github.com/iwvelando/espp-forecast/pkg/constants"
	"github.com/iwvelando/espp-forecast/pkg/currency"
	"github.com/iwvelando/espp-forecast/pkg/mathutil"
	"go.uber.org/zap"
)

// ID identifies one of the three scenarios.
type ID string

const (
	SeriesB           ID = "series-b"
	CurrentTrajectory ID = "current-trajectory"
	GrowthCase        ID = "growth-case"
)

var (
	ErrUnknownScenario     = errors.New("unknown scenario")
	ErrScenarioFixed       = errors.New("scenario valuation is fixed")
	ErrValuationOutOfRange = errors.New("valuation out of range")
	ErrConfigOutOfRange    = errors.New("configuration value out of range")
	ErrInvalidInvestment   = errors.New("investment must be a finite non-negative amount")
)

// Scenario is one comparison case.
type Scenario struct {
	ID        ID      `json:"id"`
	Label     string  `json:"label"`
	Valuation float64 `json:"valuation"`
	Editable  bool    `json:"editable"`
}

// Limits bounds the user-adjustable inputs.
type Limits struct {
	MinCapGainRate, MaxCapGainRate   float64
	MinMarginalRate, MaxMarginalRate float64
	MinDilution, MaxDilution         float64
	MinHorizonYears, MaxHorizonYears int
	MinValuation, MaxValuation       float64
}

// DefaultLimits returns the input ranges of the simulator.
func DefaultLimits() Limits {
	return Limits{
		MinCapGainRate:  constants.MinCapGainRate,
		MaxCapGainRate:  constants.MaxCapGainRate,
		MinMarginalRate: constants.MinMarginalRate,
		MaxMarginalRate: constants.MaxMarginalRate,
		MinDilution:     constants.MinDilution,
		MaxDilution:     constants.MaxDilution,
		MinHorizonYears: constants.MinHorizonYears,
		MaxHorizonYears: constants.MaxHorizonYears,
		MinValuation:    constants.MinEditableValuation,
		MaxValuation:    constants.MaxEditableValuation,
	}
}

// ConfigUpdate is a partial change to the shared assumptions. Nil fields are
// left as they are.
type ConfigUpdate struct {
	CapGainRate  *float64 `json:"capGainRate,omitempty"`
	MarginalRate *float64 `json:"marginalRate,omitempty"`
	Dilution     *float64 `json:"dilution,omitempty"`
	HorizonYears *int     `json:"horizonYears,omitempty"`
}

// Model owns the scenarios, the shared assumptions, the investment amount and
// the display currency. It is not safe for concurrent use.
type Model struct {
	logger     *zap.Logger
	offer      valuation.OfferParameters
	config     valuation.TaxDilutionConfig
	limits     Limits
	converter  currency.Converter
	display    currency.Code
	investment float64
	scenarios  []Scenario
}

// Options seeds a Model.
type Options struct {
	Offer             valuation.OfferParameters
	Config            valuation.TaxDilutionConfig
	Limits            Limits
	Currency          currency.Code
	Investment        float64
	CurrentTrajectory float64
	GrowthCase        float64
}

// DefaultOptions returns the out-of-the-box simulator state: the default
// contribution of the default display currency.
func DefaultOptions() Options {
	code := currency.Code(constants.DefaultDisplayCurrency)
	investment, _ := currency.NewConverter().FromDisplay(currency.DefaultInvestment(code), code)
	return Options{
		Offer:             valuation.DefaultOffer(),
		Config:            valuation.DefaultTaxDilutionConfig(),
		Limits:            DefaultLimits(),
		Currency:          code,
		Investment:        investment,
		CurrentTrajectory: constants.DefaultCurrentValuation,
		GrowthCase:        constants.DefaultGrowthValuation,
	}
}

// New validates opts and builds a model. The investment is in canonical units.
func New(logger *zap.Logger, opts Options) (*Model, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := opts.Offer.Validate(); err != nil {
		return nil, err
	}
	if err := opts.Config.Validate(); err != nil {
		return nil, err
	}
	if !opts.Currency.Valid() {
		return nil, fmt.Errorf("%w: %q", currency.ErrUnsupported, string(opts.Currency))
	}
	if err := checkInvestment(opts.Investment); err != nil {
		return nil, err
	}
	if opts.Limits == (Limits{}) {
		opts.Limits = DefaultLimits()
	}

	m := &Model{
		logger:     logger,
		offer:      opts.Offer,
		config:     opts.Config,
		limits:     opts.Limits,
		converter:  currency.NewConverter(),
		display:    opts.Currency,
		investment: opts.Investment,
		scenarios: []Scenario{
			{ID: SeriesB, Label: "Series B (2022)", Valuation: constants.SeriesBValuation},
			{ID: CurrentTrajectory, Label: "Current Trajectory", Editable: true},
			{ID: GrowthCase, Label: "Growth Case", Editable: true},
		},
	}
	if err := m.SetValuation(CurrentTrajectory, opts.CurrentTrajectory); err != nil {
		return nil, err
	}
	if err := m.SetValuation(GrowthCase, opts.GrowthCase); err != nil {
		return nil, err
	}
	return m, nil
}

// Scenarios returns a copy of the three scenarios in display order.
func (m *Model) Scenarios() []Scenario {
	out := make([]Scenario, len(m.scenarios))
	copy(out, m.scenarios)
	return out
}

// Config returns the shared assumptions.
func (m *Model) Config() valuation.TaxDilutionConfig {
	return m.config
}

// Offer returns the plan terms.
func (m *Model) Offer() valuation.OfferParameters {
	return m.offer
}

// Limits returns the input ranges.
func (m *Model) Limits() Limits {
	return m.limits
}

// Investment returns the contribution in canonical units.
func (m *Model) Investment() float64 {
	return m.investment
}

// Currency returns the display currency.
func (m *Model) Currency() currency.Code {
	return m.display
}

// Converter returns the currency converter used for display amounts.
func (m *Model) Converter() currency.Converter {
	return m.converter
}

// SetValuation updates an editable scenario. The baseline, unknown ids and
// values outside the editable range are rejected without any change.
func (m *Model) SetValuation(id ID, v float64) error {
	idx := m.indexOf(id)
	if idx < 0 {
		return fmt.Errorf("%w: %q", ErrUnknownScenario, string(id))
	}
	if !m.scenarios[idx].Editable {
		m.logger.Debug("rejected valuation change for fixed scenario",
			zap.String("op", "scenario.SetValuation"),
			zap.String("scenario", string(id)),
		)
		return fmt.Errorf("%w: %q", ErrScenarioFixed, string(id))
	}
	if !mathutil.IsFinite(v) || !mathutil.InRange(v, m.limits.MinValuation, m.limits.MaxValuation) {
		return fmt.Errorf("%w: %v not in [%v, %v]", ErrValuationOutOfRange, v, m.limits.MinValuation, m.limits.MaxValuation)
	}
	m.scenarios[idx].Valuation = v
	return nil
}

// SetConfig merges update into the shared assumptions. The merged result must
// respect both the input ranges and the valuation domain; otherwise nothing
// changes.
func (m *Model) SetConfig(update ConfigUpdate) error {
	next := m.config
	l := m.limits

	if update.CapGainRate != nil {
		if err := checkRange("capGainRate", *update.CapGainRate, l.MinCapGainRate, l.MaxCapGainRate); err != nil {
			return err
		}
		next.CapGainRate = *update.CapGainRate
	}
	if update.MarginalRate != nil {
		if err := checkRange("marginalRate", *update.MarginalRate, l.MinMarginalRate, l.MaxMarginalRate); err != nil {
			return err
		}
		next.MarginalRate = *update.MarginalRate
	}
	if update.Dilution != nil {
		if err := checkRange("dilution", *update.Dilution, l.MinDilution, l.MaxDilution); err != nil {
			return err
		}
		next.Dilution = *update.Dilution
	}
	if update.HorizonYears != nil {
		h := *update.HorizonYears
		if h < l.MinHorizonYears || h > l.MaxHorizonYears {
			return fmt.Errorf("%w: horizonYears %d not in [%d, %d]", ErrConfigOutOfRange, h, l.MinHorizonYears, l.MaxHorizonYears)
		}
		next.HorizonYears = h
	}

	if err := next.Validate(); err != nil {
		return err
	}
	m.config = next
	return nil
}

// SetInvestment sets the contribution in canonical units.
func (m *Model) SetInvestment(canonical float64) error {
	if err := checkInvestment(canonical); err != nil {
		return err
	}
	m.investment = canonical
	return nil
}

// SetInvestmentInDisplay sets the contribution from an amount in the display currency.
func (m *Model) SetInvestmentInDisplay(amount float64) error {
	canonical, err := m.converter.FromDisplay(amount, m.display)
	if err != nil {
		return err
	}
	return m.SetInvestment(canonical)
}

// InvestmentInDisplay returns the contribution in the display currency.
func (m *Model) InvestmentInDisplay() float64 {
	v, _ := m.converter.ToDisplay(m.investment, m.display)
	return v
}

// SetCurrency switches the display currency and resets the contribution to
// that currency's default amount.
func (m *Model) SetCurrency(code currency.Code) error {
	if !code.Valid() {
		return fmt.Errorf("%w: %q", currency.ErrUnsupported, string(code))
	}
	canonical, err := m.converter.FromDisplay(currency.DefaultInvestment(code), code)
	if err != nil {
		return err
	}
	m.display = code
	m.investment = canonical
	m.logger.Debug("display currency changed",
		zap.String("op", "scenario.SetCurrency"),
		zap.String("currency", string(code)),
		zap.Float64("investment", canonical),
	)
	return nil
}

// Outcome evaluates one scenario against the current state.
func (m *Model) Outcome(id ID) (valuation.Outcome, error) {
	idx := m.indexOf(id)
	if idx < 0 {
		return valuation.Outcome{}, fmt.Errorf("%w: %q", ErrUnknownScenario, string(id))
	}
	return valuation.Evaluate(m.investment, m.scenarios[idx].Valuation, m.config, m.offer), nil
}

// Outcomes evaluates every scenario. Nothing is cached.
func (m *Model) Outcomes() map[ID]valuation.Outcome {
	out := make(map[ID]valuation.Outcome, len(m.scenarios))
	for _, s := range m.scenarios {
		out[s.ID] = valuation.Evaluate(m.investment, s.Valuation, m.config, m.offer)
	}
	return out
}

// Projection is the headline outcome: the current trajectory scenario.
func (m *Model) Projection() valuation.Outcome {
	out, _ := m.Outcome(CurrentTrajectory)
	return out
}

// Timeline builds the vesting table from the projection.
func (m *Model) Timeline() []timeline.Frame {
	p := m.Projection()
	return timeline.Build(p.ValueBought, p.ValueBooster)
}

func (m *Model) indexOf(id ID) int {
	for i, s := range m.scenarios {
		if s.ID == id {
			return i
		}
	}
	return -1
}

func checkRange(name string, v, lo, hi float64) error {
	if !mathutil.IsFinite(v) || !mathutil.InRange(v, lo, hi) {
		return fmt.Errorf("%w: %s %v not in [%v, %v]", ErrConfigOutOfRange, name, v, lo, hi)
	}
	return nil
}

func checkInvestment(v float64) error {
	if !mathutil.IsFinite(v) || v < 0 {
		return fmt.Errorf("%w: %v", ErrInvalidInvestment, v)
	}
	return nil
}
