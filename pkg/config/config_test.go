package config

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewConfigDefaults(t *testing.T) {
	conf, err := NewConfig("")
	require.NoError(t, err)
	require.Equal(t, uint32(DefaultHTTPPort), conf.Port)
	require.Equal(t, uint32(DefaultRTCMinPort), conf.RTC.MinPort)
	require.Equal(t, uint32(DefaultRTCMaxPort), conf.RTC.MaxPort)
	require.Equal(t, "127.0.0.1", conf.RTC.AnnouncedIP)
	require.Equal(t, uint32(DefaultSignalTimeout), conf.SignalTimeout)
	require.False(t, conf.Store.UseRedis())
	require.Equal(t, ":3000", conf.HTTPAddr())
}

func TestNewConfigFromYAML(t *testing.T) {
	conf, err := NewConfig(`
port: 8080
frontend_url: https://chat.example.com
signal_timeout: 10
rtc:
  min_port: 42000
  max_port: 42100
  announced_ip: 10.1.2.3
  worker_count: 2
store:
  redis:
    address: localhost:6379
logging:
  level: debug
  json: true
`)
	require.NoError(t, err)
	require.Equal(t, uint32(8080), conf.Port)
	require.Equal(t, "https://chat.example.com", conf.FrontendURL)
	require.Equal(t, uint32(10), conf.SignalTimeout)
	require.Equal(t, uint32(42000), conf.RTC.MinPort)
	require.Equal(t, "10.1.2.3", conf.RTC.AnnouncedIP)
	require.Equal(t, 2, conf.WorkerCount())
	require.True(t, conf.Store.UseRedis())
	require.Equal(t, "debug", conf.Logging.Level)
	require.Contains(t, conf.AllowedOrigins(), "https://chat.example.com")
	require.Contains(t, conf.AllowedOrigins(), "http://localhost:5173")
}

func TestEnvOverridesYAML(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("FRONTEND_URL", "https://front.example.com")
	t.Setenv("RTC_MIN_PORT", "45000")
	t.Setenv("RTC_MAX_PORT", "46000")
	t.Setenv("ANNOUNCED_IP", "192.0.2.7")

	conf, err := NewConfig("port: 8080")
	require.NoError(t, err)
	require.Equal(t, uint32(9090), conf.Port)
	require.Equal(t, "https://front.example.com", conf.FrontendURL)
	require.Equal(t, uint32(45000), conf.RTC.MinPort)
	require.Equal(t, uint32(46000), conf.RTC.MaxPort)
	require.Equal(t, "192.0.2.7", conf.RTC.AnnouncedIP)
}

func TestUseConsoleLogger(t *testing.T) {
	t.Run("production defaults to json", func(t *testing.T) {
		conf, err := NewConfig("")
		require.NoError(t, err)
		require.False(t, conf.UseConsoleLogger())
	})

	t.Run("development uses console", func(t *testing.T) {
		conf, err := NewConfig("development: true")
		require.NoError(t, err)
		require.True(t, conf.UseConsoleLogger())
	})

	t.Run("json wins even in development", func(t *testing.T) {
		conf, err := NewConfig("development: true\nlogging:\n  json: true\n")
		require.NoError(t, err)
		require.False(t, conf.UseConsoleLogger())
	})
}

func TestValidate(t *testing.T) {
	t.Run("inverted port range", func(t *testing.T) {
		_, err := NewConfig("rtc:\n  min_port: 50000\n  max_port: 40000\n")
		require.ErrorIs(t, err, ErrInvalidPortRange)
	})

	t.Run("range too small for workers", func(t *testing.T) {
		_, err := NewConfig("rtc:\n  min_port: 40000\n  max_port: 40001\n  worker_count: 4\n")
		require.ErrorIs(t, err, ErrInvalidPortRange)
	})

	t.Run("zero signal timeout", func(t *testing.T) {
		conf := &Config{Port: 3000, RTC: RTCConfig{MinPort: 40000, MaxPort: 49999}}
		require.Error(t, conf.Validate())
	})
}
