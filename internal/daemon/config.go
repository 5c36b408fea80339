// Package daemon loads configuration and wires the Arcana services together.
package daemon

import (
	"errors"
	"fmt"
	"io/fs"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"time"
	_ "time/tzdata" // rewards.timezone must resolve on hosts without zoneinfo

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"

	"github.com/arcana-app/arcana/internal/app/billing"
	"github.com/arcana-app/arcana/internal/app/engagement"
	"github.com/arcana-app/arcana/internal/app/reading"
	"github.com/arcana-app/arcana/internal/domain"
	"github.com/arcana-app/arcana/internal/infra/oracle"
)

// Environment variables that override the config file.
const (
	EnvHome     = "ARCANA_HOME"
	EnvDBPath   = "ARCANA_DB_PATH"
	EnvPort     = "ARCANA_PORT"
	EnvOpenAI   = "OPENAI_API_KEY"
	EnvLogLevel = "ARCANA_LOG_LEVEL"
)

// Config is the on-disk configuration (~/.arcana/config.toml).
type Config struct {
	API         APIConfig         `toml:"api"`
	Database    DatabaseConfig    `toml:"database"`
	Ledger      LedgerConfig      `toml:"ledger"`
	Rewards     RewardsConfig     `toml:"rewards"`
	Interpreter InterpreterConfig `toml:"interpreter"`
	Billing     BillingConfig     `toml:"billing"`
	Metrics     MetricsConfig     `toml:"metrics"`
	Log         LogConfig         `toml:"log"`
}

type APIConfig struct {
	Host           string `toml:"host"`
	Port           int    `toml:"port"`
	RequestTimeout string `toml:"request_timeout"`
}

type DatabaseConfig struct {
	Path string `toml:"path"` // empty = <home>/arcana.db
}

type LedgerConfig struct {
	SignupFreeReadings int64   `toml:"signup_free_readings"`
	ReversalChance     float64 `toml:"reversal_chance"`
	MaxAttempts        int     `toml:"max_attempts"`
}

type MilestoneConfig struct {
	Days  int   `toml:"days"`
	Bonus int64 `toml:"bonus"`
}

type RewardsConfig struct {
	GoldenChance float64           `toml:"golden_chance"`
	GoldenBonus  int64             `toml:"golden_bonus"`
	Timezone     string            `toml:"timezone"`
	Milestones   []MilestoneConfig `toml:"milestones"`
}

type InterpreterConfig struct {
	APIKey      string  `toml:"api_key"`
	BaseURL     string  `toml:"base_url"`
	Model       string  `toml:"model"`
	MaxTokens   int     `toml:"max_tokens"`
	Temperature float32 `toml:"temperature"`
	Timeout     string  `toml:"timeout"`
}

type PlanConfig struct {
	ID                string `toml:"id"`
	ReadingsPerPeriod int64  `toml:"readings_per_period"`
}

type BillingConfig struct {
	Plans []PlanConfig `toml:"plans"`
}

type MetricsConfig struct {
	Enabled bool `toml:"enabled"`
}

type LogConfig struct {
	Level  string `toml:"level"`  // debug, info, warn, error
	Format string `toml:"format"` // json, text
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	rd := reading.DefaultConfig()
	rw := engagement.DefaultConfig()
	oc := oracle.DefaultConfig()

	milestones := make([]MilestoneConfig, 0, len(rw.Milestones))
	for _, m := range rw.Milestones {
		milestones = append(milestones, MilestoneConfig{Days: m.Days, Bonus: m.Bonus})
	}
	var plans []PlanConfig
	for _, p := range billing.DefaultConfig().Plans {
		plans = append(plans, PlanConfig{ID: p.ID, ReadingsPerPeriod: p.ReadingsPerPeriod})
	}

	return Config{
		API: APIConfig{
			Host:           "127.0.0.1",
			Port:           8080,
			RequestTimeout: "60s",
		},
		Ledger: LedgerConfig{
			SignupFreeReadings: rd.SignupFreeReadings,
			ReversalChance:     rd.ReversalChance,
			MaxAttempts:        rd.MaxAttempts,
		},
		Rewards: RewardsConfig{
			GoldenChance: rw.GoldenChance,
			GoldenBonus:  rw.GoldenBonus,
			Timezone:     "UTC",
			Milestones:   milestones,
		},
		Interpreter: InterpreterConfig{
			Model:       oc.Model,
			MaxTokens:   oc.MaxTokens,
			Temperature: oc.Temperature,
			Timeout:     "20s",
		},
		Billing: BillingConfig{Plans: plans},
		Metrics: MetricsConfig{Enabled: true},
		Log:     LogConfig{Level: "info", Format: "json"},
	}
}

// Home returns the Arcana data directory ($ARCANA_HOME or ~/.arcana).
func Home() string {
	if h := os.Getenv(EnvHome); h != "" {
		return h
	}
	if h, err := os.UserHomeDir(); err == nil {
		return filepath.Join(h, ".arcana")
	}
	return ".arcana"
}

// Load reads the TOML file at path over DefaultConfig, then applies .env
// files and environment overrides. A missing config file is not an error.
func Load(path string, envFiles ...string) (Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return cfg, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	for _, f := range envFiles {
		// Existing environment variables win over .env entries.
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return cfg, fmt.Errorf("load env file %s: %w", f, err)
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

func (c *Config) applyEnv() error {
	if v := os.Getenv(EnvDBPath); v != "" {
		c.Database.Path = v
	}
	if v := os.Getenv(EnvPort); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvPort, err)
		}
		c.API.Port = port
	}
	if v := os.Getenv(EnvOpenAI); v != "" {
		c.Interpreter.APIKey = v
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		c.Log.Level = v
	}
	return nil
}

// Validate rejects values the services cannot run with.
func (c Config) Validate() error {
	if c.API.Port <= 0 || c.API.Port > 65535 {
		return fmt.Errorf("api.port %d out of range", c.API.Port)
	}
	if c.Ledger.SignupFreeReadings < 0 {
		return fmt.Errorf("ledger.signup_free_readings must not be negative")
	}
	if c.Ledger.ReversalChance < 0 || c.Ledger.ReversalChance > 1 {
		return fmt.Errorf("ledger.reversal_chance must be within [0, 1]")
	}
	if c.Rewards.GoldenChance < 0 || c.Rewards.GoldenChance > 1 {
		return fmt.Errorf("rewards.golden_chance must be within [0, 1]")
	}
	if _, err := time.LoadLocation(c.Rewards.Timezone); err != nil {
		return fmt.Errorf("rewards.timezone: %w", err)
	}
	prev := 0
	for _, m := range c.Rewards.Milestones {
		if m.Days <= prev {
			return fmt.Errorf("rewards.milestones must be strictly ascending by days")
		}
		prev = m.Days
	}
	seen := make(map[string]bool, len(c.Billing.Plans))
	for _, p := range c.Billing.Plans {
		if p.ID == "" || seen[p.ID] {
			return fmt.Errorf("billing.plans: empty or duplicate id %q", p.ID)
		}
		seen[p.ID] = true
	}
	return nil
}

// Addr returns the API listen address.
func (c Config) Addr() string {
	return net.JoinHostPort(c.API.Host, strconv.Itoa(c.API.Port))
}

// DBPath returns the database file path.
func (c Config) DBPath() string {
	if c.Database.Path != "" {
		return c.Database.Path
	}
	return filepath.Join(Home(), "arcana.db")
}

// ─── Service Configs ────────────────────────────────────────────────────────

func (c Config) readingConfig() reading.Config {
	rc := reading.DefaultConfig()
	rc.SignupFreeReadings = c.Ledger.SignupFreeReadings
	rc.ReversalChance = c.Ledger.ReversalChance
	rc.MaxAttempts = c.Ledger.MaxAttempts
	// The orchestrator bound sits just above the client's own timeout.
	rc.InterpretTimeout = parseDuration(c.Interpreter.Timeout, 20*time.Second) + 5*time.Second
	return rc
}

func (c Config) rewardsConfig() engagement.Config {
	rc := engagement.DefaultConfig()
	rc.GoldenChance = c.Rewards.GoldenChance
	rc.GoldenBonus = c.Rewards.GoldenBonus
	if loc, err := time.LoadLocation(c.Rewards.Timezone); err == nil {
		rc.Location = loc
	}
	rc.Milestones = make([]domain.StreakMilestone, 0, len(c.Rewards.Milestones))
	for _, m := range c.Rewards.Milestones {
		rc.Milestones = append(rc.Milestones, domain.StreakMilestone{Days: m.Days, Bonus: m.Bonus})
	}
	return rc
}

func (c Config) oracleConfig() oracle.Config {
	oc := oracle.DefaultConfig()
	oc.APIKey = c.Interpreter.APIKey
	oc.BaseURL = c.Interpreter.BaseURL
	if c.Interpreter.Model != "" {
		oc.Model = c.Interpreter.Model
	}
	if c.Interpreter.MaxTokens > 0 {
		oc.MaxTokens = c.Interpreter.MaxTokens
	}
	oc.Temperature = c.Interpreter.Temperature
	oc.Timeout = parseDuration(c.Interpreter.Timeout, oc.Timeout)
	return oc
}

func (c Config) billingConfig() billing.Config {
	bc := billing.Config{}
	for _, p := range c.Billing.Plans {
		bc.Plans = append(bc.Plans, billing.Plan{ID: p.ID, ReadingsPerPeriod: p.ReadingsPerPeriod})
	}
	return bc
}

// parseDuration parses a duration string like "20s" or "5m".
func parseDuration(s string, def time.Duration) time.Duration {
	if s == "" {
		return def
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return def
	}
	return d
}
