// Package valuation converts a plan contribution and a hypothetical company
// valuation into post-tax share value, ROI multiple and annualized return.
//
// All amounts are in the canonical currency. The functions here are pure and
// safe for concurrent use.
package valuation

import (
	"errors"
	"fmt"
	"math"

	"github.com/iwvelando/espp-forecast/pkg/constants"
)

var (
	// ErrInvalidOffer indicates offer parameters that would divide by zero.
	ErrInvalidOffer = errors.New("invalid offer parameters")

	// ErrInvalidConfig indicates tax or dilution values outside their domain.
	ErrInvalidConfig = errors.New("invalid tax/dilution configuration")
)

// OfferParameters holds the fixed terms of the purchase plan.
type OfferParameters struct {
	DiscountSharePrice     float64
	TotalOutstandingShares float64
	BoosterRatio           float64
}

// NewOfferParameters derives the outstanding share count from a baseline
// valuation and share price. Every input must be positive.
func NewOfferParameters(baselineValuation, baselineSharePrice, discountSharePrice float64) (OfferParameters, error) {
	if !(baselineValuation > 0) || !(baselineSharePrice > 0) || !(discountSharePrice > 0) {
		return OfferParameters{}, fmt.Errorf("%w: baseline valuation %v, baseline price %v, discount price %v",
			ErrInvalidOffer, baselineValuation, baselineSharePrice, discountSharePrice)
	}
	return OfferParameters{
		DiscountSharePrice:     discountSharePrice,
		TotalOutstandingShares: baselineValuation / baselineSharePrice,
		BoosterRatio:           constants.BoosterRatio,
	}, nil
}

// DefaultOffer returns the Series B derived offer.
func DefaultOffer() OfferParameters {
	offer, err := NewOfferParameters(constants.SeriesBValuation, constants.SeriesBSharePrice, constants.DiscountSharePrice)
	if err != nil {
		panic(err)
	}
	return offer
}

// Validate checks the offer can be evaluated without dividing by zero.
func (o OfferParameters) Validate() error {
	if !(o.DiscountSharePrice > 0) || !(o.TotalOutstandingShares > 0) || o.BoosterRatio < 0 {
		return fmt.Errorf("%w: %+v", ErrInvalidOffer, o)
	}
	return nil
}

// TaxDilutionConfig is the configuration shared by every scenario.
type TaxDilutionConfig struct {
	CapGainRate  float64 `json:"capGainRate"`
	MarginalRate float64 `json:"marginalRate"`
	Dilution     float64 `json:"dilution"`
	HorizonYears int     `json:"horizonYears"`
}

// DefaultTaxDilutionConfig returns the default assumptions.
func DefaultTaxDilutionConfig() TaxDilutionConfig {
	return TaxDilutionConfig{
		CapGainRate:  constants.DefaultCapGainRate,
		MarginalRate: constants.DefaultMarginalRate,
		Dilution:     constants.DefaultDilution,
		HorizonYears: constants.DefaultHorizonYears,
	}
}

// Validate enforces rates and dilution in [0,1) and a horizon of at least one year.
func (c TaxDilutionConfig) Validate() error {
	check := func(name string, v float64) error {
		if math.IsNaN(v) || v < 0 || v >= 1 {
			return fmt.Errorf("%w: %s %v must be in [0,1)", ErrInvalidConfig, name, v)
		}
		return nil
	}
	if err := check("capGainRate", c.CapGainRate); err != nil {
		return err
	}
	if err := check("marginalRate", c.MarginalRate); err != nil {
		return err
	}
	if err := check("dilution", c.Dilution); err != nil {
		return err
	}
	if c.HorizonYears < 1 {
		return fmt.Errorf("%w: horizonYears %d must be at least 1", ErrInvalidConfig, c.HorizonYears)
	}
	return nil
}

// Outcome is the derived result for one scenario. It is never cached.
type Outcome struct {
	Investment             float64 `json:"investment"`
	Valuation              float64 `json:"valuation"`
	EffectivePricePerShare float64 `json:"effectivePricePerShare"`
	SharesBought           float64 `json:"sharesBought"`
	BoosterShares          float64 `json:"boosterShares"`
	ValueBought            float64 `json:"valueBought"`
	ValueBooster           float64 `json:"valueBooster"`
	GrossValue             float64 `json:"grossValue"`
	TaxBought              float64 `json:"taxBought"`
	TaxBooster             float64 `json:"taxBooster"`
	TotalTax               float64 `json:"totalTax"`
	NetValue               float64 `json:"netValue"`
	ROI                    float64 `json:"roi"`
	AnnualizedReturn       float64 `json:"annualizedReturn"`
}

// TotalShares returns purchased plus booster shares.
func (o Outcome) TotalShares() float64 {
	return o.SharesBought + o.BoosterShares
}

// EffectivePricePerShare is the naive per-share value discounted linearly by
// dilution. It never clamps: a dilution of 1 yields zero.
func EffectivePricePerShare(valuation float64, cfg TaxDilutionConfig, offer OfferParameters) float64 {
	return (valuation / offer.TotalOutstandingShares) * (1 - cfg.Dilution)
}

// AnnualizedReturn is the compound annual growth from investment to net over
// horizonYears. A non-positive investment, net value or horizon yields 0.
func AnnualizedReturn(investment, netValue float64, horizonYears int) float64 {
	if investment > 0 && netValue > 0 && horizonYears > 0 {
		return math.Pow(netValue/investment, 1/float64(horizonYears)) - 1
	}
	return 0
}

// Evaluate computes the outcome of contributing investment at the discount
// price and exiting at valuation.
//
// The purchased lot is taxed on its gain only; its cost basis equals the
// investment because sharesBought * discountSharePrice == investment. Booster
// shares were granted, so their whole value is taxed as income.
//
// Inputs must be finite and non-negative; callers reject anything else.
func Evaluate(investment, valuation float64, cfg TaxDilutionConfig, offer OfferParameters) Outcome {
	price := EffectivePricePerShare(valuation, cfg, offer)

	sharesBought := investment / offer.DiscountSharePrice
	boosterShares := sharesBought * offer.BoosterRatio

	valueBought := sharesBought * price
	valueBooster := boosterShares * price
	gross := valueBought + valueBooster

	gainBought := math.Max(0, valueBought-investment)
	taxBought := gainBought * cfg.CapGainRate
	taxBooster := valueBooster * cfg.MarginalRate

	net := gross - taxBought - taxBooster

	roi := 0.0
	if investment > 0 {
		roi = net / investment
	}

	return Outcome{
		Investment:             investment,
		Valuation:              valuation,
		EffectivePricePerShare: price,
		SharesBought:           sharesBought,
		BoosterShares:          boosterShares,
		ValueBought:            valueBought,
		ValueBooster:           valueBooster,
		GrossValue:             gross,
		TaxBought:              taxBought,
		TaxBooster:             taxBooster,
		TotalTax:               taxBought + taxBooster,
		NetValue:               net,
		ROI:                    roi,
		AnnualizedReturn:       AnnualizedReturn(investment, net, cfg.HorizonYears),
	}
}
