package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pilot/core"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig([]byte(`{}`))
	require.NoError(t, err)

	require.NotNil(t, cfg.Agent.Telemetry.Enabled)
	assert.True(t, *cfg.Agent.Telemetry.Enabled)
	assert.EqualValues(t, core.DefaultTelemetryInterval, cfg.Agent.Telemetry.IntervalMS)
	assert.EqualValues(t, core.DefaultDebounce, cfg.Agent.Menu.DebounceMS)
	assert.Equal(t, 50, cfg.Agent.Commands.ByteBudget)
	assert.Equal(t, 115200, cfg.Host.Baud)
	assert.Equal(t, BackendBugST, cfg.Host.Backend)
	assert.Equal(t, ":8080", cfg.Host.BridgeAddr)
	assert.Equal(t, "info", cfg.Host.LogLevel)
	assert.NoError(t, cfg.Validate())
}

func TestLoadConfigJSON(t *testing.T) {
	cfg, err := LoadConfig([]byte(`{
		"agent": {"telemetry": {"enabled": false, "interval_ms": 20}, "commands": {"byte_budget": 200}},
		"host": {"device": "/dev/ttyACM0", "backend": "tarm", "baud": 9600}
	}`))
	require.NoError(t, err)

	assert.False(t, *cfg.Agent.Telemetry.Enabled)
	assert.EqualValues(t, core.MinTelemetryInterval, cfg.Agent.Telemetry.IntervalMS, "interval is clamped to the floor")
	assert.Equal(t, 200, cfg.Agent.Commands.ByteBudget)
	assert.Equal(t, "/dev/ttyACM0", cfg.Host.Device)
	assert.Equal(t, BackendTarm, cfg.Host.Backend)
	assert.Equal(t, 9600, cfg.Host.Baud)
}

func TestLoadConfigInvalidJSON(t *testing.T) {
	_, err := LoadConfig([]byte(`{"agent":`))
	assert.Error(t, err)
}

func TestLoadYAML(t *testing.T) {
	cfg, err := LoadYAML([]byte(`
agent:
  telemetry:
    interval_ms: 250
  menu:
    debounce_ms: 150
    error_pause_ms: 500
host:
  auto_discover: true
  log_level: debug
`))
	require.NoError(t, err)

	assert.EqualValues(t, 250, cfg.Agent.Telemetry.IntervalMS)
	assert.EqualValues(t, 150, cfg.Agent.Menu.DebounceMS)
	assert.EqualValues(t, 500, cfg.Agent.Menu.ErrorPauseMS)
	assert.EqualValues(t, core.DefaultLoopDelay, cfg.Agent.Menu.LoopDelayMS)
	assert.True(t, cfg.Host.AutoDiscover)
	assert.Equal(t, "debug", cfg.Host.LogLevel)
}

func TestLoadFileByExtension(t *testing.T) {
	dir := t.TempDir()
	yamlPath := filepath.Join(dir, "pilot.yaml")
	jsonPath := filepath.Join(dir, "pilot.json")
	require.NoError(t, os.WriteFile(yamlPath, []byte("host:\n  baud: 57600\n"), 0o644))
	require.NoError(t, os.WriteFile(jsonPath, []byte(`{"host":{"baud":19200}}`), 0o644))

	cfg, err := LoadFile(yamlPath)
	require.NoError(t, err)
	assert.Equal(t, 57600, cfg.Host.Baud)

	cfg, err = LoadFile(jsonPath)
	require.NoError(t, err)
	assert.Equal(t, 19200, cfg.Host.Baud)

	_, err = LoadFile(filepath.Join(dir, "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestValidate(t *testing.T) {
	cfg := Default()
	cfg.Host.Backend = "usb"
	cfg.Host.Baud = -1
	cfg.Host.LogLevel = "loud"
	cfg.Agent.Commands.ByteBudget = -5

	err := cfg.Validate()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidConfig))
	for _, sub := range []string{"host.backend", "host.baud", "host.log_level", "commands.byte_budget"} {
		assert.Contains(t, err.Error(), sub)
	}
}

func TestApplyEnv(t *testing.T) {
	t.Setenv("PILOT_TELEMETRY_ENABLED", "false")
	t.Setenv("PILOT_TELEMETRY_INTERVAL_MS", "400")
	t.Setenv("PILOT_BYTE_BUDGET", "128")
	t.Setenv("PILOT_DEVICE", "/dev/ttyUSB1")
	t.Setenv("PILOT_BACKEND", "tarm")
	t.Setenv("PILOT_AUTO_DISCOVER", "1")

	cfg := Default()
	require.NoError(t, cfg.ApplyEnv())

	assert.False(t, *cfg.Agent.Telemetry.Enabled)
	assert.EqualValues(t, 400, cfg.Agent.Telemetry.IntervalMS)
	assert.Equal(t, 128, cfg.Agent.Commands.ByteBudget)
	assert.Equal(t, "/dev/ttyUSB1", cfg.Host.Device)
	assert.Equal(t, BackendTarm, cfg.Host.Backend)
	assert.True(t, cfg.Host.AutoDiscover)
	assert.Equal(t, 115200, cfg.Host.Baud, "unset variables keep their value")
}

func TestApplyEnvInvalid(t *testing.T) {
	t.Setenv("PILOT_BAUD", "fast")
	t.Setenv("PILOT_TELEMETRY_ENABLED", "maybe")

	cfg := Default()
	err := cfg.ApplyEnv()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidConfig)
	assert.Contains(t, err.Error(), `PILOT_BAUD="fast" is not a valid integer`)
	assert.Contains(t, err.Error(), `PILOT_TELEMETRY_ENABLED="maybe" is not a valid boolean`)
	assert.Equal(t, 115200, cfg.Host.Baud)
}

func TestLoadDotEnv(t *testing.T) {
	const key = "PILOT_DOTENV_TEST_DEVICE"
	t.Cleanup(func() { os.Unsetenv(key) })

	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte(key+"=/dev/ttyACM7\n"), 0o644))

	require.NoError(t, LoadDotEnv(path))
	assert.Equal(t, "/dev/ttyACM7", os.Getenv(key))

	assert.NoError(t, LoadDotEnv(filepath.Join(t.TempDir(), "absent.env")))
}

func TestAgentOptions(t *testing.T) {
	cfg, err := LoadYAML([]byte(`
agent:
  telemetry:
    enabled: false
    interval_ms: 300
  commands:
    poll_interval_ms: 10
  menu:
    start_beep_hz: 880
`))
	require.NoError(t, err)

	opts := cfg.Agent.Options()
	assert.False(t, opts.TelemetryEnabled)
	assert.EqualValues(t, 300, opts.TelemetryInterval)
	assert.EqualValues(t, 10, opts.PollInterval)
	assert.Equal(t, 880, opts.Menu.StartBeepHz)
	assert.EqualValues(t, core.DefaultDebounce, opts.Menu.Debounce)
	assert.Equal(t, core.DefaultOptions().ByteBudget, opts.ByteBudget)
}
