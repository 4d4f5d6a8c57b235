// Package timeline derives the 36-month vesting table from the purchased and
// booster totals of a valuation outcome, and exposes the reveal transformation
// used while the table is animated.
package timeline

import (
	"fmt"

	"github.com/iwvelando/espp-forecast/pkg/constants"
)

var monthNames = [...]string{"Jan", "Feb", "Mar", "Apr", "May", "Jun", "Jul", "Aug", "Sep", "Oct", "Nov", "Dec"}

// Frame is the state of the holding at the end of one month.
type Frame struct {
	Month         int     `json:"month"`
	Purchased     float64 `json:"purchased"`
	Booster       float64 `json:"booster"`
	Label         string  `json:"label"`
	AxisLabel     string  `json:"axisLabel,omitempty"`
	BoosterVested bool    `json:"boosterVested"`
}

// Total returns purchased plus booster value.
func (f Frame) Total() float64 {
	return f.Purchased + f.Booster
}

// Build returns the full table. Purchased value accrues linearly over the
// twelve monthly purchases and then holds flat; the booster cliff-vests at
// month 36. Any finite non-negative totals are accepted.
func Build(purchasedTotal, boosterTotal float64) []Frame {
	frames := make([]Frame, 0, constants.TimelineMonths)
	for month := 1; month <= constants.TimelineMonths; month++ {
		purchased := purchasedTotal
		if month <= constants.AccumulationMonths {
			purchased = purchasedTotal * (float64(month) / constants.AccumulationMonths)
		}

		booster := 0.0
		if month == constants.VestingMonth {
			booster = boosterTotal
		}

		frames = append(frames, Frame{
			Month:         month,
			Purchased:     purchased,
			Booster:       booster,
			Label:         Label(month),
			AxisLabel:     AxisLabel(month),
			BoosterVested: month == constants.VestingMonth,
		})
	}
	return frames
}

// Label returns the calendar label of a month, e.g. "Aug 2026".
func Label(month int) string {
	if month < 1 {
		return ""
	}
	year := constants.TimelineStartYear + (month-1)/constants.MonthsPerYear
	return fmt.Sprintf("%s %d", monthNames[(month-1)%constants.MonthsPerYear], year)
}

// AxisLabel returns the short chart axis label, set only on year boundaries.
func AxisLabel(month int) string {
	switch month {
	case 1:
		return "Jan 26"
	case 12:
		return "Dec 26"
	case 24:
		return "Dec 27"
	case 36:
		return "Dec 28"
	}
	return ""
}

// Reveal returns a copy of frames in which every month after upToStep has
// zero purchased and booster values, so a chart shows a filled lead-in.
func Reveal(frames []Frame, upToStep int) []Frame {
	revealed := make([]Frame, len(frames))
	copy(revealed, frames)
	for i := range revealed {
		if revealed[i].Month > upToStep {
			revealed[i].Purchased = 0
			revealed[i].Booster = 0
		}
	}
	return revealed
}

// Current returns the frame for step, or an all-zero frame at step 0.
func Current(frames []Frame, step int) Frame {
	if step < 1 || step > len(frames) {
		return Frame{}
	}
	return frames[step-1]
}
