// Package constants provides shared constants for the espp-forecast application.
package constants

// Offer constants taken from the Series B round and the purchase plan terms.
const (
	// SeriesBValuation is the baseline company valuation in canonical currency (USD).
	SeriesBValuation = 100_000_000

	// SeriesBSharePrice is the per-share price of the Series B round.
	SeriesBSharePrice = 6.81

	// DiscountSharePrice is the plan purchase price (50% of the Series B price).
	DiscountSharePrice = 3.41

	// BoosterRatio is the number of matched booster shares per purchased share.
	BoosterRatio = 0.5
)

// Default assumptions.
const (
	DefaultDilution         = 0.20
	DefaultCapGainRate      = 0.15
	DefaultMarginalRate     = 0.20
	DefaultHorizonYears     = 5
	DefaultInvestment       = 5000.0
	DefaultInvestmentHUF    = 1_596_000.0
	DefaultCurrentValuation = 250_000_000
	DefaultGrowthValuation  = 1_000_000_000
	DefaultDisplayCurrency  = "EUR"
)

// Input bounds enforced on user-adjustable values.
const (
	MinCapGainRate  = 0.0
	MaxCapGainRate  = 0.5
	MinMarginalRate = 0.0
	MaxMarginalRate = 0.6
	MinDilution     = 0.0
	MaxDilution     = 0.5
	MinHorizonYears = 1
	MaxHorizonYears = 10

	// MinEditableValuation is the lower bound for an editable scenario valuation.
	MinEditableValuation = 100_000_000

	// MaxEditableValuation is the upper bound for an editable scenario valuation.
	MaxEditableValuation = 5_000_000_000
)

// Timeline constants
const (
	// MonthsPerYear is the number of months in a year
	MonthsPerYear = 12

	// TimelineMonths is the length of the vesting horizon in months.
	TimelineMonths = 36

	// AccumulationMonths is the number of monthly purchases.
	AccumulationMonths = 12

	// VestingMonth is the month the booster shares cliff-vest.
	VestingMonth = TimelineMonths

	// TimelineStartYear is the calendar year of month 1.
	TimelineStartYear = 2026
)

// Animation pacing defaults in milliseconds.
const (
	DefaultStandardDelayMs    = 400
	DefaultFastForwardDelayMs = 240
	DefaultRevealDelayMs      = 1500
)

// Output format constants
const (
	// OutputFormatPretty is the human-readable output format
	OutputFormatPretty = "pretty"

	// OutputFormatCSV is the CSV output format
	OutputFormatCSV = "csv"
)

// Run modes for the command line entrypoint.
const (
	ModeReport  = "report"
	ModeAnimate = "animate"
	ModeServe   = "serve"
)

// Configuration file constants
const (
	// DefaultConfigFile is the default configuration file name
	DefaultConfigFile = "config.yaml"

	// DefaultServerConfigFile is the default server configuration file name
	DefaultServerConfigFile = "server-config.yaml"

	// EnvPrefix is the prefix for environment overrides (ESPP_ASSUMPTIONS_DILUTION, ...).
	EnvPrefix = "ESPP"
)

// Server configuration defaults
const (
	// DefaultServerAddress is the default HTTP listen address for the API
	DefaultServerAddress = ":8080"

	// DefaultMaxBodySizeBytes caps JSON request bodies accepted by the API.
	DefaultMaxBodySizeBytes = 64 * 1024
)
