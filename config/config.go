// Package config loads agent and host settings from JSON, YAML and the environment.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"pilot/core"
	"pilot/protocol"
)

// ErrInvalidConfig is wrapped by every validation failure
var ErrInvalidConfig = errors.New("invalid config")

// Serial backends
const (
	BackendTarm  = "tarm"
	BackendBugST = "bugst"
)

// Config is the complete settings file
type Config struct {
	Agent AgentConfig `json:"agent" yaml:"agent"`
	Host  HostConfig  `json:"host" yaml:"host"`
}

// AgentConfig tunes the on-robot agent
type AgentConfig struct {
	Telemetry TelemetryConfig `json:"telemetry" yaml:"telemetry"`
	Menu      MenuConfig      `json:"menu" yaml:"menu"`
	Commands  CommandConfig   `json:"commands" yaml:"commands"`
}

type TelemetryConfig struct {
	Enabled    *bool `json:"enabled,omitempty" yaml:"enabled,omitempty"`
	IntervalMS int64 `json:"interval_ms" yaml:"interval_ms"`
}

type MenuConfig struct {
	DebounceMS   int64 `json:"debounce_ms" yaml:"debounce_ms"`
	LoopDelayMS  int64 `json:"loop_delay_ms" yaml:"loop_delay_ms"`
	ErrorPauseMS int64 `json:"error_pause_ms" yaml:"error_pause_ms"`
	StartBeepHz  int   `json:"start_beep_hz" yaml:"start_beep_hz"`
	StartBeepMS  int   `json:"start_beep_ms" yaml:"start_beep_ms"`
}

type CommandConfig struct {
	ByteBudget     int   `json:"byte_budget" yaml:"byte_budget"`
	PollIntervalMS int64 `json:"poll_interval_ms" yaml:"poll_interval_ms"`
}

// HostConfig tunes the host tool's connection to a hub
type HostConfig struct {
	Device        string `json:"device" yaml:"device"`
	Baud          int    `json:"baud" yaml:"baud"`
	Backend       string `json:"backend" yaml:"backend"`
	ReadTimeoutMS int    `json:"read_timeout_ms" yaml:"read_timeout_ms"`
	BridgeAddr    string `json:"bridge_addr" yaml:"bridge_addr"`
	LogLevel      string `json:"log_level" yaml:"log_level"`
	AutoDiscover  bool   `json:"auto_discover" yaml:"auto_discover"`
}

// LoadConfig parses a JSON configuration and applies defaults
func LoadConfig(jsonData []byte) (*Config, error) {
	var config Config

	if err := json.Unmarshal(jsonData, &config); err != nil {
		return nil, err
	}

	applyDefaults(&config)
	return &config, nil
}

// LoadYAML parses a YAML configuration and applies defaults
func LoadYAML(yamlData []byte) (*Config, error) {
	var config Config

	if err := yaml.Unmarshal(yamlData, &config); err != nil {
		return nil, err
	}

	applyDefaults(&config)
	return &config, nil
}

// LoadFile reads path as YAML or JSON by extension
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return LoadYAML(data)
	}
	return LoadConfig(data)
}

// Default returns a configuration with every default applied
func Default() *Config {
	var config Config
	applyDefaults(&config)
	return &config
}

// applyDefaults fills in missing configuration values
func applyDefaults(config *Config) {
	t := &config.Agent.Telemetry
	if t.Enabled == nil {
		enabled := true
		t.Enabled = &enabled
	}
	if t.IntervalMS == 0 {
		t.IntervalMS = core.DefaultTelemetryInterval
	}
	if t.IntervalMS > 0 && t.IntervalMS < core.MinTelemetryInterval {
		t.IntervalMS = core.MinTelemetryInterval
	}

	m := &config.Agent.Menu
	if m.DebounceMS == 0 {
		m.DebounceMS = core.DefaultDebounce
	}
	if m.LoopDelayMS == 0 {
		m.LoopDelayMS = core.DefaultLoopDelay
	}
	if m.ErrorPauseMS == 0 {
		m.ErrorPauseMS = core.DefaultErrorPause
	}
	if m.StartBeepHz == 0 {
		m.StartBeepHz = core.DefaultStartBeepHz
	}
	if m.StartBeepMS == 0 {
		m.StartBeepMS = core.DefaultStartBeepMS
	}

	c := &config.Agent.Commands
	if c.ByteBudget == 0 {
		c.ByteBudget = protocol.DefaultByteBudget
	}
	if c.PollIntervalMS == 0 {
		c.PollIntervalMS = core.DefaultPollInterval
	}

	h := &config.Host
	if h.Baud == 0 {
		h.Baud = 115200
	}
	if h.Backend == "" {
		h.Backend = BackendBugST
	}
	if h.ReadTimeoutMS == 0 {
		h.ReadTimeoutMS = 100
	}
	if h.BridgeAddr == "" {
		h.BridgeAddr = ":8080"
	}
	if h.LogLevel == "" {
		h.LogLevel = "info"
	}
}

// Validate reports every invalid field, each wrapping ErrInvalidConfig
func (c *Config) Validate() error {
	var errs []error
	bad := func(format string, args ...interface{}) {
		errs = append(errs, fmt.Errorf("%w: "+format, append([]interface{}{ErrInvalidConfig}, args...)...))
	}

	if c.Agent.Telemetry.IntervalMS < 0 {
		bad("telemetry.interval_ms must not be negative, got %d", c.Agent.Telemetry.IntervalMS)
	}
	if c.Agent.Menu.DebounceMS < 0 {
		bad("menu.debounce_ms must not be negative, got %d", c.Agent.Menu.DebounceMS)
	}
	if c.Agent.Menu.LoopDelayMS < 0 {
		bad("menu.loop_delay_ms must not be negative, got %d", c.Agent.Menu.LoopDelayMS)
	}
	if c.Agent.Commands.ByteBudget < 0 {
		bad("commands.byte_budget must not be negative, got %d", c.Agent.Commands.ByteBudget)
	}
	if c.Host.Baud <= 0 {
		bad("host.baud must be positive, got %d", c.Host.Baud)
	}
	switch c.Host.Backend {
	case BackendTarm, BackendBugST:
	default:
		bad("host.backend must be %q or %q, got %q", BackendTarm, BackendBugST, c.Host.Backend)
	}
	switch strings.ToLower(c.Host.LogLevel) {
	case "debug", "info", "warn", "warning", "error":
	default:
		bad("host.log_level %q is not a log level", c.Host.LogLevel)
	}

	return errors.Join(errs...)
}

// Options converts the agent settings for core.NewAgent
func (c AgentConfig) Options() core.Options {
	opts := core.DefaultOptions()
	if c.Telemetry.Enabled != nil {
		opts.TelemetryEnabled = *c.Telemetry.Enabled
	}
	if c.Telemetry.IntervalMS > 0 {
		opts.TelemetryInterval = c.Telemetry.IntervalMS
	}
	if c.Commands.ByteBudget > 0 {
		opts.ByteBudget = c.Commands.ByteBudget
	}
	if c.Commands.PollIntervalMS > 0 {
		opts.PollInterval = c.Commands.PollIntervalMS
	}
	if c.Menu.DebounceMS > 0 {
		opts.Menu.Debounce = c.Menu.DebounceMS
	}
	if c.Menu.LoopDelayMS > 0 {
		opts.Menu.LoopDelay = c.Menu.LoopDelayMS
	}
	if c.Menu.ErrorPauseMS > 0 {
		opts.Menu.ErrorPause = c.Menu.ErrorPauseMS
	}
	if c.Menu.StartBeepHz > 0 {
		opts.Menu.StartBeepHz = c.Menu.StartBeepHz
	}
	if c.Menu.StartBeepMS > 0 {
		opts.Menu.StartBeepMS = c.Menu.StartBeepMS
	}
	return opts
}

// LoadDotEnv loads KEY=value pairs from the given files (default .env)
// into the process environment. Missing files are not an error.
func LoadDotEnv(paths ...string) error {
	err := godotenv.Load(paths...)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

// ApplyEnv overlays PILOT_* environment variables onto c
func (c *Config) ApplyEnv() error {
	var errs []error
	collect := func(err error) {
		if err != nil {
			errs = append(errs, err)
		}
	}

	if v, ok, err := envBool("PILOT_TELEMETRY_ENABLED"); ok {
		c.Agent.Telemetry.Enabled = &v
	} else {
		collect(err)
	}
	collect(envInt64("PILOT_TELEMETRY_INTERVAL_MS", &c.Agent.Telemetry.IntervalMS))
	collect(envInt64("PILOT_DEBOUNCE_MS", &c.Agent.Menu.DebounceMS))
	collect(envInt("PILOT_BYTE_BUDGET", &c.Agent.Commands.ByteBudget))

	envStr("PILOT_DEVICE", &c.Host.Device)
	collect(envInt("PILOT_BAUD", &c.Host.Baud))
	envStr("PILOT_BACKEND", &c.Host.Backend)
	envStr("PILOT_BRIDGE_ADDR", &c.Host.BridgeAddr)
	envStr("PILOT_LOG_LEVEL", &c.Host.LogLevel)
	if v, ok, err := envBool("PILOT_AUTO_DISCOVER"); ok {
		c.Host.AutoDiscover = v
	} else {
		collect(err)
	}

	return errors.Join(errs...)
}

func envStr(key string, dst *string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func envInt(key string, dst *int) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("%w: %s=%q is not a valid integer", ErrInvalidConfig, key, v)
	}
	*dst = n
	return nil
}

func envInt64(key string, dst *int64) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return fmt.Errorf("%w: %s=%q is not a valid integer", ErrInvalidConfig, key, v)
	}
	*dst = n
	return nil
}

func envBool(key string) (value, ok bool, err error) {
	v := os.Getenv(key)
	if v == "" {
		return false, false, nil
	}
	b, perr := strconv.ParseBool(v)
	if perr != nil {
		return false, false, fmt.Errorf("%w: %s=%q is not a valid boolean", ErrInvalidConfig, key, v)
	}
	return b, true, nil
}
