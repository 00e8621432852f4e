// Package config loads the engine's runtime configuration from JSON or TOML,
// with .env and environment overrides.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"

	"github.com/binjactl/uiengine/internal/domain"
	"github.com/binjactl/uiengine/internal/guard"
	"github.com/binjactl/uiengine/internal/workflow"
)

// Environment variables that override file values.
const (
	EnvConfig     = "UIENGINE_CONFIG"
	EnvListenAddr = "UIENGINE_LISTEN_ADDR"
	EnvDBPath     = "UIENGINE_DB_PATH"
	EnvLogLevel   = "UIENGINE_LOG_LEVEL"
	EnvHeadless   = "UIENGINE_HEADLESS"
)

// Timeouts bound how long a request waits for each workflow.
type Timeouts struct {
	InspectMs           int `json:"inspect_ms" toml:"inspect_ms"`
	OpenMs              int `json:"open_ms" toml:"open_ms"`
	StatusbarMs         int `json:"statusbar_ms" toml:"statusbar_ms"`
	QuitInspectMarginMs int `json:"quit_inspect_margin_ms" toml:"quit_inspect_margin_ms"`
	QuitMarginMs        int `json:"quit_margin_ms" toml:"quit_margin_ms"`
	QuitSaveMarginMs    int `json:"quit_save_margin_ms" toml:"quit_save_margin_ms"`
}

// Polling tunes the dialog polling loops that run on the UI thread.
type Polling struct {
	OptionsDialogWaitMs int `json:"options_dialog_wait_ms" toml:"options_dialog_wait_ms"`
	FinalPassWaitMs     int `json:"final_pass_wait_ms" toml:"final_pass_wait_ms"`
	PollIntervalMs      int `json:"poll_interval_ms" toml:"poll_interval_ms"`
	QuitPollIntervalMs  int `json:"quit_poll_interval_ms" toml:"quit_poll_interval_ms"`
	QuietTicks          int `json:"quiet_ticks" toml:"quiet_ticks"`
	PumpCycles          int `json:"pump_cycles" toml:"pump_cycles"`
	PumpIntervalMs      int `json:"pump_interval_ms" toml:"pump_interval_ms"`
}

// Config holds the engine's runtime configuration.
type Config struct {
	ListenAddr         string   `json:"listen_addr" toml:"listen_addr"`
	DBPath             string   `json:"db_path" toml:"db_path"`
	LogLevel           string   `json:"log_level" toml:"log_level"`
	LogFormat          string   `json:"log_format" toml:"log_format"`
	Headless           bool     `json:"headless" toml:"headless"`
	DatabaseExtension  string   `json:"database_extension" toml:"database_extension"`
	SerializeWorkflows *bool    `json:"serialize_workflows" toml:"serialize_workflows"`
	LockWaitMs         int      `json:"lock_wait_ms" toml:"lock_wait_ms"`
	RateLimitPerMinute int      `json:"rate_limit_per_minute" toml:"rate_limit_per_minute"`
	Preload            []string `json:"preload" toml:"preload"`
	Timeouts           Timeouts `json:"timeouts" toml:"timeouts"`
	Polling            Polling  `json:"polling" toml:"polling"`
}

// Default returns the configuration used when no file is found.
func Default() *Config {
	var cfg Config
	cfg.applyDefaults()
	return &cfg
}

// Load reads a config file, applies defaults and environment overrides, and
// validates. Files ending in .toml are parsed as TOML, anything else as JSON.
// An empty path skips the file.
func Load(path string) (*Config, error) {
	var cfg Config
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if strings.EqualFold(filepath.Ext(path), ".toml") {
			if err := toml.Unmarshal(data, &cfg); err != nil {
				return nil, fmt.Errorf("parse config TOML: %w", err)
			}
		} else if err := json.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config JSON: %w", err)
		}
	}

	cfg.applyDefaults()

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Discover picks the config file to load: explicit, then $UIENGINE_CONFIG,
// then config.toml or config.json next to the executable, then in the working
// directory. It returns "" when none exists.
func Discover(explicit string) string {
	if explicit != "" {
		return explicit
	}
	if p := strings.TrimSpace(os.Getenv(EnvConfig)); p != "" {
		return p
	}
	var dirs []string
	if exe, err := os.Executable(); err == nil {
		dirs = append(dirs, filepath.Dir(exe))
	}
	if wd, err := os.Getwd(); err == nil {
		dirs = append(dirs, wd)
	}
	for _, dir := range dirs {
		for _, name := range []string{"config.toml", "config.json"} {
			p := filepath.Join(dir, name)
			if st, err := os.Stat(p); err == nil && !st.IsDir() {
				return p
			}
		}
	}
	return ""
}

func (c *Config) applyDefaults() {
	if c.ListenAddr == "" {
		c.ListenAddr = "127.0.0.1:9009"
	}
	if c.DBPath == "" {
		c.DBPath = "uiengine.db"
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.LogFormat == "" {
		c.LogFormat = "json"
	}
	if c.DatabaseExtension == "" {
		c.DatabaseExtension = ".bndb"
	}
	if c.SerializeWorkflows == nil {
		serialize := true
		c.SerializeWorkflows = &serialize
	}
	if c.LockWaitMs == 0 {
		c.LockWaitMs = 5000
	}
	if c.RateLimitPerMinute == 0 {
		c.RateLimitPerMinute = 120
	}

	t := &c.Timeouts
	defaultInt(&t.InspectMs, 15000)
	defaultInt(&t.OpenMs, 45000)
	defaultInt(&t.StatusbarMs, 15000)
	defaultInt(&t.QuitInspectMarginMs, 5000)
	defaultInt(&t.QuitMarginMs, 20000)
	defaultInt(&t.QuitSaveMarginMs, 180000)

	p := &c.Polling
	defaultInt(&p.OptionsDialogWaitMs, 6000)
	defaultInt(&p.FinalPassWaitMs, 8000)
	defaultInt(&p.PollIntervalMs, 50)
	defaultInt(&p.QuitPollIntervalMs, 30)
	defaultInt(&p.QuietTicks, 5)
	defaultInt(&p.PumpCycles, 10)
	defaultInt(&p.PumpIntervalMs, 20)
}

func defaultInt(v *int, def int) {
	if *v == 0 {
		*v = def
	}
}

// applyEnv loads .env from the working directory, if any, then applies
// UIENGINE_* overrides.
func (c *Config) applyEnv() error {
	_ = godotenv.Load()

	if v := strings.TrimSpace(os.Getenv(EnvListenAddr)); v != "" {
		c.ListenAddr = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvDBPath)); v != "" {
		c.DBPath = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogLevel)); v != "" {
		c.LogLevel = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvHeadless)); v != "" {
		headless, err := strconv.ParseBool(v)
		if err != nil {
			return domain.NewEngineError(domain.ErrConfigInvalid.Code,
				fmt.Sprintf("%s: %s=%q is not a boolean", domain.ErrConfigInvalid.Message, EnvHeadless, v))
		}
		c.Headless = headless
	}
	return nil
}

func (c *Config) validate() error {
	var problems []string

	if c.ListenAddr == "" {
		problems = append(problems, "listen_addr is required")
	}
	if c.DBPath == "" {
		problems = append(problems, "db_path is required")
	}
	if f := strings.ToLower(c.LogFormat); f != "json" && f != "console" {
		problems = append(problems, "log_format must be json or console")
	}
	if !strings.HasPrefix(c.DatabaseExtension, ".") {
		problems = append(problems, "database_extension must start with a dot")
	}
	if c.LockWaitMs < 0 {
		problems = append(problems, "lock_wait_ms must not be negative")
	}
	if c.RateLimitPerMinute < 0 {
		problems = append(problems, "rate_limit_per_minute must not be negative")
	}

	positive := []struct {
		key string
		val int
	}{
		{"timeouts.inspect_ms", c.Timeouts.InspectMs},
		{"timeouts.open_ms", c.Timeouts.OpenMs},
		{"timeouts.statusbar_ms", c.Timeouts.StatusbarMs},
		{"timeouts.quit_inspect_margin_ms", c.Timeouts.QuitInspectMarginMs},
		{"polling.options_dialog_wait_ms", c.Polling.OptionsDialogWaitMs},
		{"polling.final_pass_wait_ms", c.Polling.FinalPassWaitMs},
		{"polling.poll_interval_ms", c.Polling.PollIntervalMs},
		{"polling.quit_poll_interval_ms", c.Polling.QuitPollIntervalMs},
		{"polling.quiet_ticks", c.Polling.QuietTicks},
		{"polling.pump_cycles", c.Polling.PumpCycles},
		{"polling.pump_interval_ms", c.Polling.PumpIntervalMs},
	}
	for _, p := range positive {
		if p.val < 0 {
			problems = append(problems, p.key+" must be positive")
		}
	}

	t := c.Timeouts
	if !(t.QuitInspectMarginMs < t.QuitMarginMs && t.QuitMarginMs < t.QuitSaveMarginMs) {
		problems = append(problems, "quit margins must satisfy quit_inspect_margin_ms < quit_margin_ms < quit_save_margin_ms")
	}

	if len(problems) > 0 {
		return &domain.EngineError{
			Code:    domain.ErrConfigInvalid.Code,
			Message: fmt.Sprintf("%s: %v", domain.ErrConfigInvalid.Message, problems),
		}
	}
	return nil
}

// Serialize reports whether workflows hold the host lock.
func (c *Config) Serialize() bool {
	return c.SerializeWorkflows == nil || *c.SerializeWorkflows
}

// ToTiming converts the timeout and polling blocks for the workflow engine.
func (c *Config) ToTiming() workflow.Timing {
	return workflow.Timing{
		InspectTimeout:    ms(c.Timeouts.InspectMs),
		OpenTimeout:       ms(c.Timeouts.OpenMs),
		StatusbarTimeout:  ms(c.Timeouts.StatusbarMs),
		QuitInspectMargin: ms(c.Timeouts.QuitInspectMarginMs),
		QuitMargin:        ms(c.Timeouts.QuitMarginMs),
		QuitSaveMargin:    ms(c.Timeouts.QuitSaveMarginMs),
		OptionsDialogWait: ms(c.Polling.OptionsDialogWaitMs),
		FinalPassWait:     ms(c.Polling.FinalPassWaitMs),
		PollInterval:      ms(c.Polling.PollIntervalMs),
		QuitPollInterval:  ms(c.Polling.QuitPollIntervalMs),
		QuietTicks:        c.Polling.QuietTicks,
		PumpCycles:        c.Polling.PumpCycles,
		PumpInterval:      ms(c.Polling.PumpIntervalMs),
	}
}

// GuardConfig converts the lock and rate settings for the guard.
func (c *Config) GuardConfig() guard.GuardConfig {
	return guard.GuardConfig{
		Serialize:          c.Serialize(),
		LockWait:           ms(c.LockWaitMs),
		RateLimitPerMinute: c.RateLimitPerMinute,
	}
}

func ms(v int) time.Duration { return time.Duration(v) * time.Millisecond }
