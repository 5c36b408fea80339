package daemon

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.API.Host != "127.0.0.1" {
		t.Errorf("API.Host = %q, want %q", cfg.API.Host, "127.0.0.1")
	}
	if cfg.API.Port != 8080 {
		t.Errorf("API.Port = %d, want %d", cfg.API.Port, 8080)
	}
	if cfg.Ledger.SignupFreeReadings != 3 {
		t.Errorf("Ledger.SignupFreeReadings = %d, want 3", cfg.Ledger.SignupFreeReadings)
	}
	if cfg.Ledger.ReversalChance != 0.30 {
		t.Errorf("Ledger.ReversalChance = %v, want 0.30", cfg.Ledger.ReversalChance)
	}
	if cfg.Rewards.GoldenChance != 0.01 {
		t.Errorf("Rewards.GoldenChance = %v, want 0.01", cfg.Rewards.GoldenChance)
	}
	if len(cfg.Rewards.Milestones) != 6 || cfg.Rewards.Milestones[1].Days != 7 {
		t.Errorf("Rewards.Milestones = %+v", cfg.Rewards.Milestones)
	}
	if len(cfg.Billing.Plans) != 2 {
		t.Errorf("Billing.Plans = %+v", cfg.Billing.Plans)
	}
	if !cfg.Metrics.Enabled {
		t.Error("Metrics.Enabled should be true by default")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config invalid: %v", err)
	}
}

func TestLoad_File(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	data := `
[api]
port = 9090

[ledger]
signup_free_readings = 5

[rewards]
timezone = "Europe/Berlin"
milestones = [{days = 2, bonus = 1}, {days = 10, bonus = 4}]

[[billing.plans]]
id = "oracle_yearly"
readings_per_period = 500
`
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.API.Port != 9090 {
		t.Errorf("API.Port = %d, want 9090", cfg.API.Port)
	}
	if cfg.API.Host != "127.0.0.1" {
		t.Errorf("unset keys should keep defaults, Host = %q", cfg.API.Host)
	}
	if cfg.Ledger.SignupFreeReadings != 5 {
		t.Errorf("SignupFreeReadings = %d, want 5", cfg.Ledger.SignupFreeReadings)
	}
	if len(cfg.Billing.Plans) != 1 || cfg.Billing.Plans[0].ID != "oracle_yearly" {
		t.Errorf("Billing.Plans = %+v", cfg.Billing.Plans)
	}

	rc := cfg.rewardsConfig()
	if rc.Location.String() != "Europe/Berlin" {
		t.Errorf("Location = %v", rc.Location)
	}
	if len(rc.Milestones) != 2 || rc.Milestones[1].Bonus != 4 {
		t.Errorf("Milestones = %+v", rc.Milestones)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.API.Port != 8080 {
		t.Errorf("API.Port = %d, want default", cfg.API.Port)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, ".env")
	if err := os.WriteFile(envFile, []byte("OPENAI_API_KEY=sk-from-dotenv\nARCANA_PORT=7070\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv(EnvDBPath, filepath.Join(dir, "ledger.db"))
	t.Setenv(EnvPort, "7171") // process env wins over .env
	t.Setenv(EnvOpenAI, "")
	os.Unsetenv(EnvOpenAI)

	cfg, err := Load("", envFile)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.API.Port != 7171 {
		t.Errorf("API.Port = %d, want 7171", cfg.API.Port)
	}
	if cfg.Interpreter.APIKey != "sk-from-dotenv" {
		t.Errorf("APIKey = %q, want value from .env", cfg.Interpreter.APIKey)
	}
	if cfg.DBPath() != filepath.Join(dir, "ledger.db") {
		t.Errorf("DBPath() = %q", cfg.DBPath())
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"port", func(c *Config) { c.API.Port = 0 }},
		{"negative allowance", func(c *Config) { c.Ledger.SignupFreeReadings = -1 }},
		{"reversal chance", func(c *Config) { c.Ledger.ReversalChance = 1.5 }},
		{"golden chance", func(c *Config) { c.Rewards.GoldenChance = -0.1 }},
		{"timezone", func(c *Config) { c.Rewards.Timezone = "Mars/Olympus" }},
		{"milestones order", func(c *Config) {
			c.Rewards.Milestones = []MilestoneConfig{{Days: 7, Bonus: 1}, {Days: 3, Bonus: 1}}
		}},
		{"duplicate plan", func(c *Config) {
			c.Billing.Plans = []PlanConfig{{ID: "a"}, {ID: "a"}}
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("Validate() should fail")
			}
		})
	}
}

func TestParseDuration(t *testing.T) {
	tests := []struct {
		input string
		want  time.Duration
	}{
		{"20s", 20 * time.Second},
		{"5m", 5 * time.Minute},
		{"garbage", time.Minute},
		{"-1s", time.Minute},
		{"", time.Minute}, // Default
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got := parseDuration(tt.input, time.Minute)
			if got != tt.want {
				t.Errorf("parseDuration(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestReadingConfig_TimeoutAboveClient(t *testing.T) {
	cfg := DefaultConfig()
	if rc, oc := cfg.readingConfig(), cfg.oracleConfig(); rc.InterpretTimeout <= oc.Timeout {
		t.Errorf("orchestrator timeout %v should exceed client timeout %v", rc.InterpretTimeout, oc.Timeout)
	}
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	log := NewLogger(LogConfig{Level: "warn", Format: "json"}, &buf)
	log.Info("hidden")
	log.Warn("shown", "k", "v")
	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Error("info should be filtered at warn level")
	}
	if !strings.Contains(out, `"msg":"shown"`) {
		t.Errorf("expected JSON warn line, got %q", out)
	}
}

func TestNew_Wiring(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Database.Path = filepath.Join(t.TempDir(), "data", "arcana.db")
	var buf bytes.Buffer
	d, err := New(cfg, NewLogger(cfg.Log, &buf))
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	defer d.Close()

	h := d.Server.Handler()
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("/health = %d", w.Code)
	}

	ent, err := d.Readings.GetEntitlement(context.Background(), "acct-1")
	if err != nil {
		t.Fatal(err)
	}
	if ent.FreeReadingsLeft != cfg.Ledger.SignupFreeReadings {
		t.Errorf("FreeReadingsLeft = %d, want %d", ent.FreeReadingsLeft, cfg.Ledger.SignupFreeReadings)
	}
}
