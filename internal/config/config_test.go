package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func validConfig() Config {
	return Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            3000,
			WSPath:          "/ws",
			ShutdownTimeout: 10 * time.Second,
		},
		Transport: TransportConfig{
			ReadTimeout:  time.Minute,
			WriteTimeout: 10 * time.Second,
			SendBuffer:   64,
		},
		Game: GameConfig{
			Duration:     120 * time.Second,
			TickInterval: time.Second,
			CodeLength:   6,
		},
		Health: HealthConfig{
			Enabled: true,
			Host:    "127.0.0.1",
			Port:    50051,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

func TestValidConfig(t *testing.T) {
	cfg := validConfig()
	assert.NoError(t, cfg.Validate())
}

func TestServerAddr(t *testing.T) {
	cfg := validConfig()
	assert.Equal(t, "0.0.0.0:3000", cfg.Server.Addr())
}

func TestHealthAddr(t *testing.T) {
	cfg := validConfig()
	assert.Equal(t, "127.0.0.1:50051", cfg.Health.Addr())
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.yaml")
	err := os.WriteFile(path, []byte(`
server:
  host: 127.0.0.1
  port: 3001
  ws_path: /game
transport:
  send_buffer: 16
game:
  duration: 90s
  tick_interval: 500ms
logging:
  level: debug
  format: console
`), 0644)
	require.NoError(t, err)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 3001, cfg.Server.Port)
	assert.Equal(t, "/game", cfg.Server.WSPath)
	assert.Equal(t, 16, cfg.Transport.SendBuffer)
	assert.Equal(t, 90*time.Second, cfg.Game.Duration)
	assert.Equal(t, 500*time.Millisecond, cfg.Game.TickInterval)
	assert.Equal(t, 6, cfg.Game.CodeLength)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoadDefaultsWithoutFile(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 120*time.Second, cfg.Game.Duration)
	assert.Equal(t, time.Second, cfg.Game.TickInterval)
	assert.Equal(t, "/ws", cfg.Server.WSPath)
	assert.Equal(t, 64, cfg.Transport.SendBuffer)
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("LASERTAG_SERVER_PORT", "4242")
	t.Setenv("LASERTAG_GAME_DURATION", "30s")
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 4242, cfg.Server.Port)
	assert.Equal(t, 30*time.Second, cfg.Game.Duration)
}

func TestLoadInvalidPath(t *testing.T) {
	_, err := Load("/nonexistent/path.yaml")
	assert.Error(t, err)
}

func TestValidateServerPort(t *testing.T) {
	cfg := validConfig()
	cfg.Server.Port = 0
	assert.Error(t, cfg.Validate())

	cfg = validConfig()
	cfg.Server.Port = 65536
	assert.Error(t, cfg.Validate())
}

func TestValidateWSPath(t *testing.T) {
	cfg := validConfig()
	cfg.Server.WSPath = "ws"
	assert.Error(t, cfg.Validate())
}

func TestValidateTransport(t *testing.T) {
	cfg := validConfig()
	cfg.Transport.SendBuffer = 0
	assert.Error(t, cfg.Validate())

	cfg = validConfig()
	cfg.Transport.WriteTimeout = 0
	assert.Error(t, cfg.Validate())

	cfg = validConfig()
	cfg.Transport.ReadTimeout = -time.Second
	assert.Error(t, cfg.Validate())
}

func TestValidateGameDurationShorterThanTick(t *testing.T) {
	cfg := validConfig()
	cfg.Game.Duration = 500 * time.Millisecond
	assert.Error(t, cfg.Validate())
}

func TestValidateGameCodeLength(t *testing.T) {
	cfg := validConfig()
	cfg.Game.CodeLength = 3
	assert.Error(t, cfg.Validate())
}

func TestValidateHealthDisabledIgnoresPort(t *testing.T) {
	cfg := validConfig()
	cfg.Health.Enabled = false
	cfg.Health.Port = 0
	assert.NoError(t, cfg.Validate())

	cfg.Health.Enabled = true
	assert.Error(t, cfg.Validate())
}

func TestValidateLoggingLevel(t *testing.T) {
	for _, level := range []string{"debug", "info", "warn", "error"} {
		cfg := validConfig()
		cfg.Logging.Level = level
		assert.NoError(t, cfg.Validate(), "level %q should be valid", level)
	}
	cfg := validConfig()
	cfg.Logging.Level = "trace"
	assert.Error(t, cfg.Validate())
}

func TestValidateLoggingFormat(t *testing.T) {
	for _, format := range []string{"json", "console"} {
		cfg := validConfig()
		cfg.Logging.Format = format
		assert.NoError(t, cfg.Validate(), "format %q should be valid", format)
	}
	cfg := validConfig()
	cfg.Logging.Format = "xml"
	assert.Error(t, cfg.Validate())
}

func TestValidateReportsAllViolations(t *testing.T) {
	cfg := validConfig()
	cfg.Server.Port = 0
	cfg.Logging.Format = "xml"
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "server.port")
	assert.Contains(t, err.Error(), "logging.format")
}

// Property-based tests

func TestPropertyValidPortRange(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		port := rapid.IntRange(1, 65535).Draw(t, "port")
		cfg := validConfig()
		cfg.Server.Port = port
		if err := cfg.Validate(); err != nil {
			t.Fatalf("valid port %d rejected: %v", port, err)
		}
	})
}

func TestPropertyInvalidPortRange(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		port := rapid.OneOf(
			rapid.IntRange(-1000, 0),
			rapid.IntRange(65536, 100000),
		).Draw(t, "port")
		cfg := validConfig()
		cfg.Server.Port = port
		if err := cfg.Validate(); err == nil {
			t.Fatalf("invalid port %d accepted", port)
		}
	})
}

func TestPropertyDurationAtLeastOneTick(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		tick := time.Duration(rapid.IntRange(1, 5000).Draw(t, "tick_ms")) * time.Millisecond
		ticks := rapid.IntRange(0, 300).Draw(t, "ticks")
		cfg := validConfig()
		cfg.Game.TickInterval = tick
		cfg.Game.Duration = tick * time.Duration(ticks)
		err := cfg.Validate()
		if ticks == 0 && err == nil {
			t.Fatalf("zero-length game accepted")
		}
		if ticks > 0 && err != nil {
			t.Fatalf("duration of %d ticks rejected: %v", ticks, err)
		}
	})
}
