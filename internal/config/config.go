// Package config defines the data structures related to configuration and
// includes functions for loading and validating the config.
package config

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/iwvelando/espp-forecast/internal/animation"
	"github.com/iwvelando/espp-forecast/internal/scenario"
	"github.com/iwvelando/espp-forecast/internal/valuation"
	"github.com/iwvelando/espp-forecast/pkg/constants"
	"github.com/iwvelando/espp-forecast/pkg/currency"
	"github.com/iwvelando/espp-forecast/pkg/mathutil"
	"github.com/spf13/viper"
)

// Configuration holds all configuration for espp-forecast.
type Configuration struct {
	Offer       OfferConfig       `yaml:"offer"`
	Assumptions AssumptionsConfig `yaml:"assumptions"`
	Investment  InvestmentConfig  `yaml:"investment"`
	Scenarios   ScenariosConfig   `yaml:"scenarios"`
	Animation   AnimationConfig   `yaml:"animation"`
	Logging     LoggingConfig     `yaml:"logging,omitempty"`
	Output      OutputConfig      `yaml:"output,omitempty"`
}

// OfferConfig holds the purchase plan terms.
type OfferConfig struct {
	BaselineValuation  float64 `yaml:"baselineValuation"`
	BaselineSharePrice float64 `yaml:"baselineSharePrice"`
	DiscountSharePrice float64 `yaml:"discountSharePrice"`
}

// AssumptionsConfig holds the shared tax, dilution and horizon assumptions.
type AssumptionsConfig struct {
	CapGainRate  float64 `yaml:"capGainRate"`
	MarginalRate float64 `yaml:"marginalRate"`
	Dilution     float64 `yaml:"dilution"`
	HorizonYears int     `yaml:"horizonYears"`
}

// InvestmentConfig holds the contribution. Amount is in Currency; leaving it
// unset selects the currency's default contribution.
type InvestmentConfig struct {
	Amount   *float64 `yaml:"amount"`
	Currency string   `yaml:"currency"`
}

// ScenariosConfig holds the editable scenario valuations.
type ScenariosConfig struct {
	CurrentTrajectory float64 `yaml:"currentTrajectory"`
	GrowthCase        float64 `yaml:"growthCase"`
}

// AnimationConfig holds the timeline delays in milliseconds.
type AnimationConfig struct {
	StandardMs    int `yaml:"standardMs"`
	FastForwardMs int `yaml:"fastForwardMs"`
	RevealMs      int `yaml:"revealMs"`
}

// LoggingConfig holds logging configuration options
type LoggingConfig struct {
	Level      string `yaml:"level,omitempty"`      // debug, info, warn, error
	Format     string `yaml:"format,omitempty"`     // json, console
	OutputFile string `yaml:"outputFile,omitempty"` // optional file output
	MaxSizeMB  int    `yaml:"maxSizeMB,omitempty"`  // rotate after this size
	MaxBackups int    `yaml:"maxBackups,omitempty"` // rotated files to keep
	MaxAgeDays int    `yaml:"maxAgeDays,omitempty"` // days to keep rotated files
}

// OutputConfig holds output format configuration options
type OutputConfig struct {
	Format string `yaml:"format,omitempty"` // pretty, csv
}

// LoadConfiguration takes a file path as input and loads the YAML-formatted
// configuration there. Environment variables prefixed with ESPP_ override
// file values, e.g. ESPP_ASSUMPTIONS_DILUTION.
func LoadConfiguration(configPath string) (*Configuration, error) {
	v := newViper()
	v.SetConfigFile(configPath)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error reading config file, %s", err)
	}
	return decode(v)
}

// LoadConfigurationFromReader loads YAML configuration from r.
func LoadConfigurationFromReader(r io.Reader) (*Configuration, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("error reading config, %s", err)
	}

	v := newViper()
	if err := v.ReadConfig(bytes.NewReader(data)); err != nil {
		return nil, fmt.Errorf("error parsing config, %s", err)
	}
	return decode(v)
}

// Default returns the configuration used when no file is given.
func Default() *Configuration {
	conf, err := decode(newViper())
	if err != nil {
		panic(fmt.Sprintf("default configuration does not decode: %v", err))
	}
	return conf
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yml")
	v.SetEnvPrefix(constants.EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("offer.baselineValuation", constants.SeriesBValuation)
	v.SetDefault("offer.baselineSharePrice", constants.SeriesBSharePrice)
	v.SetDefault("offer.discountSharePrice", constants.DiscountSharePrice)
	v.SetDefault("assumptions.capGainRate", constants.DefaultCapGainRate)
	v.SetDefault("assumptions.marginalRate", constants.DefaultMarginalRate)
	v.SetDefault("assumptions.dilution", constants.DefaultDilution)
	v.SetDefault("assumptions.horizonYears", constants.DefaultHorizonYears)
	// no default: an absent amount must stay distinguishable from zero
	_ = v.BindEnv("investment.amount")
	v.SetDefault("investment.currency", constants.DefaultDisplayCurrency)
	v.SetDefault("scenarios.currentTrajectory", constants.DefaultCurrentValuation)
	v.SetDefault("scenarios.growthCase", constants.DefaultGrowthValuation)
	v.SetDefault("animation.standardMs", constants.DefaultStandardDelayMs)
	v.SetDefault("animation.fastForwardMs", constants.DefaultFastForwardDelayMs)
	v.SetDefault("animation.revealMs", constants.DefaultRevealDelayMs)
	v.SetDefault("logging.level", "")
	v.SetDefault("logging.format", "")
	v.SetDefault("logging.outputFile", "")
	v.SetDefault("logging.maxSizeMB", 0)
	v.SetDefault("logging.maxBackups", 0)
	v.SetDefault("logging.maxAgeDays", 0)
	v.SetDefault("output.format", "")
	return v
}

func decode(v *viper.Viper) (*Configuration, error) {
	var configuration Configuration
	if err := v.Unmarshal(&configuration); err != nil {
		return nil, fmt.Errorf("unable to decode into struct, %s", err)
	}
	return &configuration, nil
}

// OfferParameters converts the offer section into engine parameters.
func (c *Configuration) OfferParameters() (valuation.OfferParameters, error) {
	return valuation.NewOfferParameters(c.Offer.BaselineValuation, c.Offer.BaselineSharePrice, c.Offer.DiscountSharePrice)
}

// TaxDilution converts the assumptions section.
func (c *Configuration) TaxDilution() (valuation.TaxDilutionConfig, error) {
	cfg := valuation.TaxDilutionConfig{
		CapGainRate:  c.Assumptions.CapGainRate,
		MarginalRate: c.Assumptions.MarginalRate,
		Dilution:     c.Assumptions.Dilution,
		HorizonYears: c.Assumptions.HorizonYears,
	}
	if err := cfg.Validate(); err != nil {
		return valuation.TaxDilutionConfig{}, err
	}
	return cfg, nil
}

// Pacing converts the animation section.
func (c *Configuration) Pacing() (animation.Pacing, error) {
	p := animation.Pacing{
		Standard:    time.Duration(c.Animation.StandardMs) * time.Millisecond,
		FastForward: time.Duration(c.Animation.FastForwardMs) * time.Millisecond,
		Reveal:      time.Duration(c.Animation.RevealMs) * time.Millisecond,
	}
	if err := p.Validate(); err != nil {
		return animation.Pacing{}, err
	}
	return p, nil
}

// DisplayCurrency parses the investment currency.
func (c *Configuration) DisplayCurrency() (currency.Code, error) {
	return currency.ParseCode(c.Investment.Currency)
}

// ModelOptions assembles the seed state of the scenario model.
func (c *Configuration) ModelOptions() (scenario.Options, error) {
	offer, err := c.OfferParameters()
	if err != nil {
		return scenario.Options{}, err
	}
	cfg, err := c.TaxDilution()
	if err != nil {
		return scenario.Options{}, err
	}
	code, err := c.DisplayCurrency()
	if err != nil {
		return scenario.Options{}, err
	}

	amount := currency.DefaultInvestment(code)
	if c.Investment.Amount != nil {
		amount = *c.Investment.Amount
	}
	investment, err := currency.NewConverter().FromDisplay(amount, code)
	if err != nil {
		return scenario.Options{}, err
	}

	return scenario.Options{
		Offer:             offer,
		Config:            cfg,
		Limits:            scenario.DefaultLimits(),
		Currency:          code,
		Investment:        investment,
		CurrentTrajectory: c.Scenarios.CurrentTrajectory,
		GrowthCase:        c.Scenarios.GrowthCase,
	}, nil
}

// ValidateConfiguration performs general validation of the configuration and returns warnings
func (c *Configuration) ValidateConfiguration() []string {
	var warnings []string
	limits := scenario.DefaultLimits()

	rate := func(name string, v, lo, hi float64) {
		if !mathutil.InRange(v, lo, hi) {
			warnings = append(warnings, fmt.Sprintf("assumptions.%s %.4g is outside the adjustable range [%.4g, %.4g]", name, v, lo, hi))
		}
	}
	rate("capGainRate", c.Assumptions.CapGainRate, limits.MinCapGainRate, limits.MaxCapGainRate)
	rate("marginalRate", c.Assumptions.MarginalRate, limits.MinMarginalRate, limits.MaxMarginalRate)
	rate("dilution", c.Assumptions.Dilution, limits.MinDilution, limits.MaxDilution)

	if h := c.Assumptions.HorizonYears; h < limits.MinHorizonYears || h > limits.MaxHorizonYears {
		warnings = append(warnings, fmt.Sprintf("assumptions.horizonYears %d is outside the adjustable range [%d, %d]", h, limits.MinHorizonYears, limits.MaxHorizonYears))
	}

	editable := map[string]float64{
		"currentTrajectory": c.Scenarios.CurrentTrajectory,
		"growthCase":        c.Scenarios.GrowthCase,
	}
	for _, name := range []string{"currentTrajectory", "growthCase"} {
		if v := editable[name]; !mathutil.InRange(v, limits.MinValuation, limits.MaxValuation) {
			warnings = append(warnings, fmt.Sprintf("scenarios.%s %.0f is outside the editable range [%.0f, %.0f]", name, v, limits.MinValuation, limits.MaxValuation))
		}
	}
	if c.Scenarios.GrowthCase < c.Scenarios.CurrentTrajectory {
		warnings = append(warnings, "scenarios.growthCase is below scenarios.currentTrajectory")
	}

	if c.Investment.Amount != nil && *c.Investment.Amount < 0 {
		warnings = append(warnings, fmt.Sprintf("investment.amount %.2f is negative", *c.Investment.Amount))
	}
	if _, err := c.DisplayCurrency(); err != nil {
		warnings = append(warnings, fmt.Sprintf("investment.currency: %v", err))
	}

	if c.Logging.OutputFile == "" && (c.Logging.MaxSizeMB != 0 || c.Logging.MaxBackups != 0 || c.Logging.MaxAgeDays != 0) {
		warnings = append(warnings, "logging rotation settings have no effect without logging.outputFile")
	}
	return warnings
}
