package config

import (
	"fmt"
	"os"
	"runtime"
	"strconv"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

const (
	DefaultHTTPPort   = 3000
	DefaultRTCMinPort = 40000
	DefaultRTCMaxPort = 49999

	// per-request budget for acked signaling operations, in seconds
	DefaultSignalTimeout = 5

	maxDefaultWorkers = 4
)

var ErrInvalidPortRange = errors.New("rtc port range is invalid")

type Config struct {
	Port        uint32 `yaml:"port,omitempty"`
	FrontendURL string `yaml:"frontend_url,omitempty"`
	// seconds an acked signaling request may take before it fails with an
	// error ack
	SignalTimeout uint32        `yaml:"signal_timeout,omitempty"`
	RTC           RTCConfig     `yaml:"rtc,omitempty"`
	Store         StoreConfig   `yaml:"store,omitempty"`
	Logging       LoggingConfig `yaml:"logging,omitempty"`
	Development   bool          `yaml:"development,omitempty"`
}

type RTCConfig struct {
	MinPort     uint32 `yaml:"min_port,omitempty"`
	MaxPort     uint32 `yaml:"max_port,omitempty"`
	AnnouncedIP string `yaml:"announced_ip,omitempty"`
	// number of media workers; 0 means min(NumCPU, 4)
	WorkerCount int `yaml:"worker_count,omitempty"`
}

type StoreConfig struct {
	Path  string      `yaml:"path,omitempty"`
	Redis RedisConfig `yaml:"redis,omitempty"`
}

type RedisConfig struct {
	Address  string `yaml:"address,omitempty"`
	Username string `yaml:"username,omitempty"`
	Password string `yaml:"password,omitempty"`
	DB       int    `yaml:"db,omitempty"`
}

type LoggingConfig struct {
	Level string `yaml:"level,omitempty"`
	JSON  bool   `yaml:"json,omitempty"`
}

func NewConfig(confString string) (*Config, error) {
	conf := &Config{
		Port:          DefaultHTTPPort,
		SignalTimeout: DefaultSignalTimeout,
		RTC: RTCConfig{
			MinPort:     DefaultRTCMinPort,
			MaxPort:     DefaultRTCMaxPort,
			AnnouncedIP: "127.0.0.1",
		},
		Store: StoreConfig{
			Path: "data/harmony.json",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
	if confString != "" {
		if err := yaml.Unmarshal([]byte(confString), conf); err != nil {
			return nil, errors.Wrap(err, "could not parse config")
		}
	}
	conf.applyEnv()

	if err := conf.Validate(); err != nil {
		return nil, err
	}
	return conf, nil
}

// applyEnv overlays the deployment environment variables onto the config.
func (c *Config) applyEnv() {
	if v := os.Getenv("PORT"); v != "" {
		if port, err := strconv.ParseUint(v, 10, 32); err == nil {
			c.Port = uint32(port)
		}
	}
	if v := os.Getenv("FRONTEND_URL"); v != "" {
		c.FrontendURL = v
	}
	if v := os.Getenv("RTC_MIN_PORT"); v != "" {
		if port, err := strconv.ParseUint(v, 10, 32); err == nil {
			c.RTC.MinPort = uint32(port)
		}
	}
	if v := os.Getenv("RTC_MAX_PORT"); v != "" {
		if port, err := strconv.ParseUint(v, 10, 32); err == nil {
			c.RTC.MaxPort = uint32(port)
		}
	}
	if v := os.Getenv("ANNOUNCED_IP"); v != "" {
		c.RTC.AnnouncedIP = v
	}
}

func (c *Config) Validate() error {
	if c.Port == 0 {
		return errors.New("port must be set")
	}
	if c.RTC.MinPort == 0 || c.RTC.MaxPort > 65535 || c.RTC.MinPort > c.RTC.MaxPort {
		return errors.Wrapf(ErrInvalidPortRange, "min %d, max %d", c.RTC.MinPort, c.RTC.MaxPort)
	}
	if c.RTC.WorkerCount < 0 {
		return errors.New("rtc.worker_count cannot be negative")
	}
	if count := uint32(c.WorkerCount()); c.RTC.MinPort+count-1 > c.RTC.MaxPort {
		return errors.Wrapf(ErrInvalidPortRange, "range cannot host %d workers", count)
	}
	if c.SignalTimeout == 0 {
		return errors.New("signal_timeout must be positive")
	}
	return nil
}

// WorkerCount resolves the configured media worker count, defaulting to
// min(NumCPU, 4).
func (c *Config) WorkerCount() int {
	if c.RTC.WorkerCount > 0 {
		return c.RTC.WorkerCount
	}
	return min(runtime.NumCPU(), maxDefaultWorkers)
}

// UseConsoleLogger reports whether logs use the development console
// encoder. Production runs stay on the JSON encoder; development mode
// switches to console unless logging.json explicitly forces JSON.
func (c *Config) UseConsoleLogger() bool {
	return c.Development && !c.Logging.JSON
}

// AllowedOrigins lists CORS origins for the HTTP and websocket surfaces.
func (c *Config) AllowedOrigins() []string {
	origins := []string{"http://localhost:5173"}
	if c.FrontendURL != "" {
		origins = append(origins, c.FrontendURL)
	}
	return origins
}

func (s *StoreConfig) UseRedis() bool {
	return s.Redis.Address != ""
}

func (c *Config) HTTPAddr() string {
	return fmt.Sprintf(":%d", c.Port)
}
