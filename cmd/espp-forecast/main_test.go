package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/iwvelando/espp-forecast/internal/animation"
	"github.com/iwvelando/espp-forecast/internal/scenario"
	"github.com/iwvelando/espp-forecast/internal/server"
	"github.com/iwvelando/espp-forecast/pkg/constants"
	"go.uber.org/zap"
)

func TestLoadConfigurationFallsBackToDefaults(t *testing.T) {
	chdir(t, t.TempDir())

	conf, err := loadConfiguration(constants.DefaultConfigFile)
	if err != nil {
		t.Fatalf("loadConfiguration() error = %v", err)
	}
	if conf.Scenarios.CurrentTrajectory != constants.DefaultCurrentValuation {
		t.Fatalf("expected default configuration, got %+v", conf.Scenarios)
	}

	if _, err := loadConfiguration(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected error for an explicitly named missing file")
	}
}

func TestLoadConfigurationReadsDefaultFile(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)
	if err := os.WriteFile(filepath.Join(dir, constants.DefaultConfigFile), []byte("scenarios:\n  growthCase: 2000000000\n"), 0600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	conf, err := loadConfiguration(constants.DefaultConfigFile)
	if err != nil {
		t.Fatalf("loadConfiguration() error = %v", err)
	}
	if conf.Scenarios.GrowthCase != 2_000_000_000 {
		t.Fatalf("expected growth case from file, got %v", conf.Scenarios.GrowthCase)
	}
}

func TestAnimateRunsToCompletion(t *testing.T) {
	model, err := scenario.New(zap.NewNop(), scenario.DefaultOptions())
	if err != nil {
		t.Fatalf("scenario.New() error = %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	fast := animation.Pacing{Standard: time.Millisecond, FastForward: time.Millisecond, Reveal: time.Millisecond}
	if err := animate(ctx, zap.NewNop(), model, fast); err != nil {
		t.Fatalf("animate() error = %v", err)
	}
	if ctx.Err() != nil {
		t.Fatal("animation did not complete before the deadline")
	}
}

func TestAnimateWithCancelledContext(t *testing.T) {
	model, err := scenario.New(zap.NewNop(), scenario.DefaultOptions())
	if err != nil {
		t.Fatalf("scenario.New() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := animate(ctx, zap.NewNop(), model, animation.DefaultPacing()); err == nil {
		t.Fatal("expected an error when the context is already cancelled")
	}
}

func TestApplyBodySizeOverride(t *testing.T) {
	tests := []struct {
		name      string
		value     string
		want      int64
		wantError bool
	}{
		{name: "No override", value: "", want: constants.DefaultMaxBodySizeBytes},
		{name: "Kilobytes", value: "128K", want: 128 * 1024},
		{name: "Plain bytes", value: "2048", want: 2048},
		{name: "Invalid", value: "lots", wantError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srvConf, err := server.LoadConfig("")
			if err != nil {
				t.Fatalf("server.LoadConfig() error = %v", err)
			}
			err = applyBodySizeOverride(srvConf, tt.value)
			if tt.wantError {
				if err == nil {
					t.Fatal("expected error but got none")
				}
				return
			}
			if err != nil {
				t.Fatalf("applyBodySizeOverride() error = %v", err)
			}
			if srvConf.BodySizeBytes() != tt.want {
				t.Errorf("body size = %d, want %d", srvConf.BodySizeBytes(), tt.want)
			}
		})
	}
}

// chdir changes the working directory for the duration of the test and
// restores it on cleanup (equivalent of testing.T.Chdir, which needs Go 1.24).
func chdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("chdir: %v", err)
	}
	t.Cleanup(func() {
		if err := os.Chdir(prev); err != nil {
			t.Fatalf("restore cwd: %v", err)
		}
	})
}
