// Package config loads and validates the immutable per-session engine
// configuration.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v6"
	"github.com/segmentio/encoding/json"

	"github.com/crosslight-io/crosslight/engine/pkg/types"
)

// Config holds the timing plan and road topology for one session. It is
// fixed at startup; a running session never observes a change.
type Config struct {
	NumRoads            int
	BaseGreen           time.Duration
	MinGreen            time.Duration
	MaxGreen            time.Duration
	EmergencyGreen      time.Duration
	PerVehicleExtension time.Duration
	Yellow              time.Duration
	TickInterval        time.Duration
}

// fileConfig is the on-disk shape. All durations are integer milliseconds.
// Fields are pointers so an explicit zero is distinguishable from an absent
// field: `"perVehicleExtensionMs": 0` means zero extension, not the default.
type fileConfig struct {
	NumRoads              *int   `json:"numRoads"`
	BaseGreenMS           *int64 `json:"baseGreenMs"`
	MinGreenMS            *int64 `json:"minGreenMs"`
	MaxGreenMS            *int64 `json:"maxGreenMs"`
	EmergencyGreenMS      *int64 `json:"emergencyGreenMs"`
	PerVehicleExtensionMS *int64 `json:"perVehicleExtensionMs"`
	YellowDurationMS      *int64 `json:"yellowDurationMs"`
	TickIntervalMS        *int64 `json:"tickIntervalMs"`
}

// schemaJSON structurally validates a config file before it is decoded.
const schemaJSON = `{
	"type": "object",
	"properties": {
		"numRoads":              {"type": "integer", "minimum": 2, "maximum": 16},
		"baseGreenMs":           {"type": "integer", "minimum": 1},
		"minGreenMs":            {"type": "integer", "minimum": 1},
		"maxGreenMs":            {"type": "integer", "minimum": 1},
		"emergencyGreenMs":      {"type": "integer", "minimum": 1},
		"perVehicleExtensionMs": {"type": "integer", "minimum": 0},
		"yellowDurationMs":      {"type": "integer", "minimum": 1},
		"tickIntervalMs":        {"type": "integer", "minimum": 1}
	},
	"additionalProperties": false
}`

// Default returns the timing plan used when no config file is given.
func Default() Config {
	return Config{
		NumRoads:            4,
		BaseGreen:           5 * time.Second,
		MinGreen:            2 * time.Second,
		MaxGreen:            20 * time.Second,
		EmergencyGreen:      10 * time.Second,
		PerVehicleExtension: 500 * time.Millisecond,
		Yellow:              2 * time.Second,
		TickInterval:        50 * time.Millisecond,
	}
}

// Load reads path, checks it against the embedded schema, and applies the
// file's fields on top of the defaults. Any failure is a configuration
// error and fatal to startup.
func Load(path string) (Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return Config{}, types.NewError(types.ErrConfiguration,
			fmt.Sprintf("config is not valid JSON: %v", err), types.ErrTypeConfiguration,
			false, "the config file must be a JSON object")
	}

	compiler := jsonschema.NewCompiler()
	var schemaDoc any
	if err := json.Unmarshal([]byte(schemaJSON), &schemaDoc); err != nil {
		return Config{}, fmt.Errorf("decode embedded schema: %w", err)
	}
	if err := compiler.AddResource("config.schema.json", schemaDoc); err != nil {
		return Config{}, fmt.Errorf("compile config schema: %w", err)
	}
	schema, err := compiler.Compile("config.schema.json")
	if err != nil {
		return Config{}, fmt.Errorf("compile config schema: %w", err)
	}
	if err := schema.Validate(doc); err != nil {
		return Config{}, types.NewError(types.ErrConfiguration,
			fmt.Sprintf("config failed schema validation: %v", err), types.ErrTypeConfiguration,
			false, "check field names and types against the documented config format")
	}

	var fc fileConfig
	if err := json.Unmarshal(raw, &fc); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}

	cfg := Default()
	if fc.NumRoads != nil {
		cfg.NumRoads = *fc.NumRoads
	}
	if fc.BaseGreenMS != nil {
		cfg.BaseGreen = time.Duration(*fc.BaseGreenMS) * time.Millisecond
	}
	if fc.MinGreenMS != nil {
		cfg.MinGreen = time.Duration(*fc.MinGreenMS) * time.Millisecond
	}
	if fc.MaxGreenMS != nil {
		cfg.MaxGreen = time.Duration(*fc.MaxGreenMS) * time.Millisecond
	}
	if fc.EmergencyGreenMS != nil {
		cfg.EmergencyGreen = time.Duration(*fc.EmergencyGreenMS) * time.Millisecond
	}
	if fc.PerVehicleExtensionMS != nil {
		cfg.PerVehicleExtension = time.Duration(*fc.PerVehicleExtensionMS) * time.Millisecond
	}
	if fc.YellowDurationMS != nil {
		cfg.Yellow = time.Duration(*fc.YellowDurationMS) * time.Millisecond
	}
	if fc.TickIntervalMS != nil {
		cfg.TickInterval = time.Duration(*fc.TickIntervalMS) * time.Millisecond
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate enforces the semantic constraints the schema cannot express.
func (c Config) Validate() error {
	fail := func(msg string) error {
		return types.NewError(types.ErrConfiguration, msg, types.ErrTypeConfiguration,
			false, "fix the config file and restart the engine")
	}
	if c.NumRoads < 2 {
		return fail(fmt.Sprintf("numRoads must be at least 2, got %d", c.NumRoads))
	}
	if c.MinGreen > c.MaxGreen {
		return fail(fmt.Sprintf("minGreenMs (%d) exceeds maxGreenMs (%d)",
			c.MinGreen.Milliseconds(), c.MaxGreen.Milliseconds()))
	}
	if c.BaseGreen <= 0 || c.Yellow <= 0 || c.TickInterval <= 0 {
		return fail("baseGreenMs, yellowDurationMs and tickIntervalMs must all be positive")
	}
	if c.EmergencyGreen < c.MinGreen {
		return fail(fmt.Sprintf("emergencyGreenMs (%d) is below minGreenMs (%d)",
			c.EmergencyGreen.Milliseconds(), c.MinGreen.Milliseconds()))
	}
	return nil
}
