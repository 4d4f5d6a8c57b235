package animation

import (
	"fmt"
	"time"

	"github.com/iwvelando/espp-forecast/pkg/constants"
)

// Pacing holds the delays between revealed steps.
type Pacing struct {
	// Standard paces the start and the accumulation months.
	Standard time.Duration `json:"standard"`
	// FastForward paces the holding months.
	FastForward time.Duration `json:"fastForward"`
	// Reveal is the pause before the vesting month.
	Reveal time.Duration `json:"reveal"`
}

// DefaultPacing returns 400ms / 240ms / 1500ms.
func DefaultPacing() Pacing {
	return Pacing{
		Standard:    constants.DefaultStandardDelayMs * time.Millisecond,
		FastForward: constants.DefaultFastForwardDelayMs * time.Millisecond,
		Reveal:      constants.DefaultRevealDelayMs * time.Millisecond,
	}
}

// Validate rejects non-positive delays.
func (p Pacing) Validate() error {
	if p.Standard <= 0 || p.FastForward <= 0 || p.Reveal <= 0 {
		return fmt.Errorf("animation delays must be positive, got %+v", p)
	}
	return nil
}

// DelayAfter returns the wait between revealing step and revealing step+1.
// Step 0 is the start of a run.
func (p Pacing) DelayAfter(step int) time.Duration {
	switch {
	case step == constants.VestingMonth-1:
		return p.Reveal
	case step > constants.AccumulationMonths && step < constants.VestingMonth-1:
		return p.FastForward
	default:
		return p.Standard
	}
}

// RunDuration is the time from Start to completion.
func (p Pacing) RunDuration() time.Duration {
	var total time.Duration
	for step := 0; step < constants.TimelineMonths; step++ {
		total += p.DelayAfter(step)
	}
	return total
}
