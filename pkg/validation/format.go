// Package validation provides common validation utilities.
package validation

import (
	"fmt"
	"strings"

	"github.com/iwvelando/espp-forecast/pkg/constants"
	"github.com/iwvelando/espp-forecast/pkg/currency"
)

// ValidateOutputFormat checks if the output format is one of the supported formats.
func ValidateOutputFormat(format string) error {
	if format != constants.OutputFormatPretty && format != constants.OutputFormatCSV {
		return fmt.Errorf("expected output format of %s or %s, got %s",
			constants.OutputFormatPretty, constants.OutputFormatCSV, format)
	}
	return nil
}

// ValidateMode checks if the run mode is one of report, animate or serve.
func ValidateMode(mode string) error {
	switch mode {
	case constants.ModeReport, constants.ModeAnimate, constants.ModeServe:
		return nil
	}
	return fmt.Errorf("expected mode of %s, %s or %s, got %s",
		constants.ModeReport, constants.ModeAnimate, constants.ModeServe, mode)
}

// ValidateCurrency checks a display currency flag. An empty value is allowed
// and means the configured currency.
func ValidateCurrency(code string) error {
	if code == "" {
		return nil
	}
	if _, err := currency.ParseCode(code); err != nil {
		supported := make([]string, 0, len(currency.Codes()))
		for _, c := range currency.Codes() {
			supported = append(supported, string(c))
		}
		return fmt.Errorf("expected currency of %s: %w", strings.Join(supported, ", "), err)
	}
	return nil
}
