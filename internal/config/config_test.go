package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/crosslight-io/crosslight/engine/pkg/types"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestDefault_IsValid(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
}

func TestLoad_AppliesFields(t *testing.T) {
	path := writeConfig(t, `{
		"numRoads": 6,
		"baseGreenMs": 4000,
		"minGreenMs": 1500,
		"maxGreenMs": 15000,
		"emergencyGreenMs": 8000,
		"perVehicleExtensionMs": 250,
		"yellowDurationMs": 1800,
		"tickIntervalMs": 25
	}`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.NumRoads != 6 {
		t.Errorf("NumRoads = %d, want 6", cfg.NumRoads)
	}
	if cfg.BaseGreen != 4*time.Second {
		t.Errorf("BaseGreen = %v, want 4s", cfg.BaseGreen)
	}
	if cfg.Yellow != 1800*time.Millisecond {
		t.Errorf("Yellow = %v, want 1.8s", cfg.Yellow)
	}
	if cfg.TickInterval != 25*time.Millisecond {
		t.Errorf("TickInterval = %v, want 25ms", cfg.TickInterval)
	}
}

func TestLoad_PartialFileKeepsDefaults(t *testing.T) {
	path := writeConfig(t, `{"numRoads": 3}`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.NumRoads != 3 {
		t.Errorf("NumRoads = %d, want 3", cfg.NumRoads)
	}
	if cfg.BaseGreen != Default().BaseGreen {
		t.Errorf("BaseGreen = %v, want default %v", cfg.BaseGreen, Default().BaseGreen)
	}
}

func TestLoad_ExplicitZeroExtensionApplies(t *testing.T) {
	path := writeConfig(t, `{"perVehicleExtensionMs": 0}`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.PerVehicleExtension != 0 {
		t.Errorf("PerVehicleExtension = %v, want 0 (explicit zero must not fall back to the default)", cfg.PerVehicleExtension)
	}
}

func TestLoad_RejectsUnknownField(t *testing.T) {
	path := writeConfig(t, `{"numRoads": 4, "greenMs": 1000}`)

	_, err := Load(path)
	assertConfigError(t, err)
}

func TestLoad_RejectsWrongType(t *testing.T) {
	path := writeConfig(t, `{"numRoads": "four"}`)

	_, err := Load(path)
	assertConfigError(t, err)
}

func TestLoad_RejectsMalformedJSON(t *testing.T) {
	path := writeConfig(t, `{"numRoads": `)

	_, err := Load(path)
	assertConfigError(t, err)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.json"))
	if err == nil {
		t.Fatal("Load of missing file succeeded")
	}
}

func TestValidate_MinGreenAboveMaxGreen(t *testing.T) {
	cfg := Default()
	cfg.MinGreen = 30 * time.Second
	cfg.MaxGreen = 10 * time.Second

	assertConfigError(t, cfg.Validate())
}

func TestValidate_EmergencyBelowMinGreen(t *testing.T) {
	cfg := Default()
	cfg.EmergencyGreen = cfg.MinGreen - time.Millisecond

	assertConfigError(t, cfg.Validate())
}

func TestValidate_TooFewRoads(t *testing.T) {
	cfg := Default()
	cfg.NumRoads = 1

	assertConfigError(t, cfg.Validate())
}

func assertConfigError(t *testing.T, err error) {
	t.Helper()
	if err == nil {
		t.Fatal("expected CONFIGURATION_ERROR, got nil")
	}
	var typed *types.Error
	if !errors.As(err, &typed) || typed.Code != types.ErrConfiguration {
		t.Fatalf("error = %v, want code %d", err, types.ErrConfiguration)
	}
}
