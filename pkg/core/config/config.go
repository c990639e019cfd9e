// Package config loads service settings from a YAML file overlaid by
// environment variables (and an optional .env file).
package config

import (
	"fmt"
	"os"
	"strconv"

	"equity_valuation/pkg/core/assumption"
	"equity_valuation/pkg/core/projection"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v2"
)

// DefaultPath is read by the binaries when no --config flag is given.
const DefaultPath = "config/valuation.yaml"

type Config struct {
	Log         LogConfig        `yaml:"log" json:"log"`
	Server      ServerConfig     `yaml:"server" json:"server"`
	DatabaseURL string           `yaml:"database_url" json:"database_url"`
	CasesDir    string           `yaml:"cases_dir" json:"cases_dir"`
	Grid        GridConfig       `yaml:"grid" json:"grid"`
	Projection  ProjectionConfig `yaml:"projection" json:"projection"`
	Ranges      RangesConfig     `yaml:"ranges" json:"ranges"`
}

type LogConfig struct {
	Level  string `yaml:"level" json:"level" validate:"oneof=debug info warn error"`
	Pretty bool   `yaml:"pretty" json:"pretty"`
}

type ServerConfig struct {
	Port           int      `yaml:"port" json:"port" validate:"min=1,max=65535"`
	AllowedOrigins []string `yaml:"allowed_origins" json:"allowed_origins"`
}

// DefaultGridScale divides grid enterprise values by a thousand, so a case
// in millions reads in billions.
const DefaultGridScale = 1000

// GridConfig tunes the sensitivity sweep. Workers 0 means one per CPU.
type GridConfig struct {
	Workers int     `yaml:"workers" json:"workers" validate:"min=0"`
	Scale   float64 `yaml:"scale" json:"scale" validate:"gt=0"`
}

type ProjectionConfig struct {
	DecaySchedule string   `yaml:"decay_schedule" json:"decay_schedule" validate:"oneof=flat compounding"`
	MarginCap     *float64 `yaml:"margin_cap" json:"margin_cap,omitempty" validate:"omitempty,gt=0"`
}

// RangesConfig enables the ErrOutOfRange policy when Strict is set.
type RangesConfig struct {
	Strict bool                   `yaml:"strict" json:"strict"`
	Bounds assumption.RangePolicy `yaml:"bounds" json:"bounds"`
}

// Default returns the settings used when neither file nor environment say otherwise.
func Default() *Config {
	return &Config{
		Log:        LogConfig{Level: "info"},
		Server:     ServerConfig{Port: 8080, AllowedOrigins: []string{"*"}},
		CasesDir:   "config/cases",
		Grid:       GridConfig{Workers: 0, Scale: DefaultGridScale},
		Projection: ProjectionConfig{DecaySchedule: projection.ScheduleFlat},
		Ranges:     RangesConfig{Bounds: assumption.DefaultRangePolicy()},
	}
}

// Load reads path (skipped when empty or, for DefaultPath, missing), then
// applies environment overrides and validates the result.
func Load(path string) (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config %s: %w", path, err)
			}
		case os.IsNotExist(err) && path == DefaultPath:
		default:
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.Log.Level = getEnv("VALUATION_LOG_LEVEL", c.Log.Level)
	c.Log.Pretty = getEnvAsBool("VALUATION_LOG_PRETTY", c.Log.Pretty)
	c.Server.Port = getEnvAsInt("PORT", c.Server.Port)
	c.DatabaseURL = getEnv("DATABASE_URL", c.DatabaseURL)
	c.CasesDir = getEnv("VALUATION_CASES_DIR", c.CasesDir)
	c.Grid.Workers = getEnvAsInt("VALUATION_GRID_WORKERS", c.Grid.Workers)
	c.Grid.Scale = getEnvAsFloat("VALUATION_GRID_SCALE", c.Grid.Scale)
	c.Projection.DecaySchedule = getEnv("VALUATION_DECAY_SCHEDULE", c.Projection.DecaySchedule)
	c.Ranges.Strict = getEnvAsBool("VALUATION_STRICT_RANGES", c.Ranges.Strict)
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks the loaded values.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	b := c.Ranges.Bounds
	if b.MinGrowth > b.MaxGrowth || b.MinTerminalGrowth > b.MaxTerminalGrowth || b.MinWACC > b.MaxWACC {
		return fmt.Errorf("invalid config: ranges.bounds has min above max")
	}
	return nil
}

// ProjectionOptions turns the projection block into engine options.
func (c *Config) ProjectionOptions() ([]projection.Option, error) {
	schedule, err := projection.ScheduleByName(c.Projection.DecaySchedule)
	if err != nil {
		return nil, err
	}
	opts := []projection.Option{projection.WithDecaySchedule(schedule)}
	if c.Projection.MarginCap != nil {
		opts = append(opts, projection.WithMarginCap(*c.Projection.MarginCap))
	}
	return opts, nil
}

// RangePolicy returns the strict bounds, or nil when the policy is off.
func (c *Config) RangePolicy() *assumption.RangePolicy {
	if !c.Ranges.Strict {
		return nil
	}
	p := c.Ranges.Bounds
	return &p
}

// Redacted returns a copy safe to show to API clients.
func (c *Config) Redacted() Config {
	out := *c
	if out.DatabaseURL != "" {
		out.DatabaseURL = "********"
	}
	out.Server.AllowedOrigins = append([]string(nil), c.Server.AllowedOrigins...)
	return out
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}
