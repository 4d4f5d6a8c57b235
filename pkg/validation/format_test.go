package validation

import (
	"errors"
	"strings"
	"testing"

	"github.com/iwvelando/espp-forecast/pkg/currency"
)

func TestValidateOutputFormat(t *testing.T) {
	tests := []struct {
		name      string
		format    string
		expectErr bool
	}{
		{name: "Pretty", format: "pretty", expectErr: false},
		{name: "CSV", format: "csv", expectErr: false},
		{name: "Empty", format: "", expectErr: true},
		{name: "Uppercase", format: "CSV", expectErr: true},
		{name: "Padded", format: " pretty ", expectErr: true},
		{name: "JSON is served by the API only", format: "json", expectErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateOutputFormat(tt.format)
			if (err != nil) != tt.expectErr {
				t.Errorf("ValidateOutputFormat(%q) error = %v, expectErr %v", tt.format, err, tt.expectErr)
			}
		})
	}
}

func TestValidateErrorMessages(t *testing.T) {
	if err := ValidateOutputFormat("xml"); err == nil || !strings.Contains(err.Error(), "got xml") {
		t.Errorf("output format error should name the rejected value, got %v", err)
	}
	if err := ValidateMode("daemon"); err == nil || !strings.Contains(err.Error(), "report, animate or serve") {
		t.Errorf("mode error should list the modes, got %v", err)
	}
	err := ValidateCurrency("GBP")
	if err == nil || !strings.Contains(err.Error(), "USD, EUR, HUF") {
		t.Errorf("currency error should list the supported codes, got %v", err)
	}
	if !errors.Is(err, currency.ErrUnsupported) {
		t.Errorf("currency error should wrap ErrUnsupported, got %v", err)
	}
}

func TestValidateMode(t *testing.T) {
	tests := []struct {
		name      string
		mode      string
		expectErr bool
	}{
		{name: "Report", mode: "report", expectErr: false},
		{name: "Animate", mode: "animate", expectErr: false},
		{name: "Serve", mode: "serve", expectErr: false},
		{name: "Empty", mode: "", expectErr: true},
		{name: "Uppercase", mode: "SERVE", expectErr: true},
		{name: "Unknown", mode: "daemon", expectErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateMode(tt.mode)
			if (err != nil) != tt.expectErr {
				t.Errorf("ValidateMode(%q) error = %v, expectErr %v", tt.mode, err, tt.expectErr)
			}
		})
	}
}

func TestValidateCurrency(t *testing.T) {
	tests := []struct {
		name      string
		code      string
		expectErr bool
	}{
		{name: "Empty uses configured currency", code: "", expectErr: false},
		{name: "USD", code: "USD", expectErr: false},
		{name: "Lowercase EUR", code: "eur", expectErr: false},
		{name: "HUF", code: "HUF", expectErr: false},
		{name: "Unsupported", code: "GBP", expectErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateCurrency(tt.code)
			if (err != nil) != tt.expectErr {
				t.Errorf("ValidateCurrency(%q) error = %v, expectErr %v", tt.code, err, tt.expectErr)
			}
		})
	}
}
