package timeline

import "github.com/iwvelando/espp-forecast/pkg/constants"

// Phase names the stretch of the vesting horizon a step falls in.
type Phase string

const (
	PhaseNotStarted   Phase = "not-started"
	PhaseAccumulation Phase = "accumulation"
	PhaseHolding      Phase = "holding"
	PhaseVesting      Phase = "vesting"
)

// PhaseOf classifies step: months 1-12 buy, 13-35 hold, 36 vests.
func PhaseOf(step int) Phase {
	switch {
	case step < 1:
		return PhaseNotStarted
	case step <= constants.AccumulationMonths:
		return PhaseAccumulation
	case step < constants.VestingMonth:
		return PhaseHolding
	default:
		return PhaseVesting
	}
}

// FastForwarding reports whether a running animation is in the sped-up
// holding stretch.
func FastForwarding(step int, running bool) bool {
	return running && step > constants.AccumulationMonths && step < constants.VestingMonth-1
}

// PurchasedStatus describes the purchased lot at step.
func PurchasedStatus(step int) string {
	if step >= constants.AccumulationMonths {
		return "100% Vested"
	}
	return "Accumulating..."
}

// BoosterStatus describes the booster lot at step.
func BoosterStatus(step int) string {
	if step >= constants.VestingMonth {
		return "VESTED"
	}
	return "UNVESTED"
}

// HUD is the live readout for the current step.
type HUD struct {
	Step            int     `json:"step"`
	Label           string  `json:"label"`
	Phase           Phase   `json:"phase"`
	Total           float64 `json:"total"`
	Purchased       float64 `json:"purchased"`
	Booster         float64 `json:"booster"`
	PurchasedStatus string  `json:"purchasedStatus"`
	BoosterStatus   string  `json:"boosterStatus"`
	FastForwarding  bool    `json:"fastForwarding"`
}

// NewHUD builds the readout for step from the unrevealed frame table.
func NewHUD(frames []Frame, step int, running bool) HUD {
	current := Current(frames, step)
	return HUD{
		Step:            step,
		Label:           current.Label,
		Phase:           PhaseOf(step),
		Total:           current.Total(),
		Purchased:       current.Purchased,
		Booster:         current.Booster,
		PurchasedStatus: PurchasedStatus(step),
		BoosterStatus:   BoosterStatus(step),
		FastForwarding:  FastForwarding(step, running),
	}
}
