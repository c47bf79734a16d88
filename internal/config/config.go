// Package config loads service configuration from defaults, an optional YAML
// file and environment variables, in that order.
package config

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	WebSocket WebSocketConfig `yaml:"websocket"`
	Agent     AgentConfig     `yaml:"agent"`
	Upload    UploadConfig    `yaml:"upload"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port         string        `yaml:"port" env:"PORT"`
	Interface    string        `yaml:"interface" env:"SERVER_INTERFACE"`
	ReadTimeout  time.Duration `yaml:"read_timeout" env:"SERVER_READ_TIMEOUT"`
	WriteTimeout time.Duration `yaml:"write_timeout" env:"SERVER_WRITE_TIMEOUT"`
	IdleTimeout  time.Duration `yaml:"idle_timeout" env:"SERVER_IDLE_TIMEOUT"`
}

// DatabaseConfig selects the database/sql driver and its DSN.
type DatabaseConfig struct {
	Driver string `yaml:"driver" env:"DB_DRIVER"`
	DSN    string `yaml:"dsn" env:"DB_DSN"`
}

// RedisConfig holds Redis configuration. Redis backs the cross-instance
// event relay and the shared rate limit window. When Enabled is false
// events stay on this instance and the rate limit window is kept in process.
type RedisConfig struct {
	Enabled      bool   `yaml:"enabled" env:"REDIS_ENABLED"`
	Addr         string `yaml:"addr" env:"REDIS_ADDR"`
	Password     string `yaml:"password" env:"REDIS_PASSWORD"`
	DB           int    `yaml:"db" env:"REDIS_DB"`
	EventChannel string `yaml:"event_channel" env:"REDIS_EVENT_CHANNEL"`
}

// WebSocketConfig holds per-connection transport settings.
type WebSocketConfig struct {
	MaxMessageSize int64         `yaml:"max_message_size" env:"WS_MAX_MESSAGE_SIZE"`
	SendBuffer     int           `yaml:"send_buffer" env:"WS_SEND_BUFFER"`
	WriteWait      time.Duration `yaml:"write_wait" env:"WS_WRITE_WAIT"`
	PongWait       time.Duration `yaml:"pong_wait" env:"WS_PONG_WAIT"`
	// InitTimeout closes connections that never complete the init handshake.
	// Zero leaves them open indefinitely.
	InitTimeout       time.Duration `yaml:"init_timeout" env:"WS_INIT_TIMEOUT"`
	ValidationTimeout time.Duration `yaml:"validation_timeout" env:"WS_VALIDATION_TIMEOUT"`
	AllowedOrigins    []string      `yaml:"allowed_origins" env:"WS_ALLOWED_ORIGINS"`
}

// AgentConfig configures the LLM provider.
type AgentConfig struct {
	Provider    string        `yaml:"provider" env:"AGENT_PROVIDER"`
	APIKey      string        `yaml:"api_key" env:"MISTRAL_API_KEY"`
	Model       string        `yaml:"model" env:"AGENT_MODEL"`
	Temperature float64       `yaml:"temperature" env:"AGENT_TEMPERATURE"`
	Timeout     time.Duration `yaml:"timeout" env:"AGENT_TIMEOUT"`
}

// UploadConfig bounds resource uploads.
type UploadConfig struct {
	MaxBytes int64 `yaml:"max_bytes" env:"UPLOAD_MAX_BYTES"`
}

// RateLimitConfig configures the per-IP sliding window on study endpoints.
type RateLimitConfig struct {
	Enabled  bool          `yaml:"enabled" env:"RATE_LIMIT_ENABLED"`
	Requests int           `yaml:"requests" env:"RATE_LIMIT_REQUESTS"`
	Window   time.Duration `yaml:"window" env:"RATE_LIMIT_WINDOW"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level            string `yaml:"level" env:"LOGGING_LEVEL"`
	IsDev            bool   `yaml:"is_dev" env:"LOGGING_IS_DEV"`
	LogDir           string `yaml:"log_dir" env:"LOGGING_LOG_DIR"`
	MaxAgeDays       int    `yaml:"max_age_days" env:"LOGGING_MAX_AGE_DAYS"`
	MaxSizeMB        int    `yaml:"max_size_mb" env:"LOGGING_MAX_SIZE_MB"`
	MaxBackups       int    `yaml:"max_backups" env:"LOGGING_MAX_BACKUPS"`
	AlsoLogToConsole bool   `yaml:"also_log_to_console" env:"LOGGING_ALSO_LOG_TO_CONSOLE"`
}

// Load loads configuration from a YAML file with environment variable overrides.
func Load(configFile string) (*Config, error) {
	config := Default()

	if configFile != "" {
		if err := loadFromYAML(config, configFile); err != nil {
			return nil, fmt.Errorf("failed to load config from YAML: %w", err)
		}
	}

	if err := overrideStructWithEnv(reflect.ValueOf(config).Elem()); err != nil {
		return nil, fmt.Errorf("failed to override with environment variables: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}

// Default returns a configuration with default values.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         "8080",
			Interface:    "0.0.0.0",
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 2 * time.Minute,
			IdleTimeout:  60 * time.Second,
		},
		Database: DatabaseConfig{
			Driver: "sqlite3",
			DSN:    "data/study.db",
		},
		Redis: RedisConfig{
			Enabled:      false,
			Addr:         "localhost:6379",
			EventChannel: "study:events",
		},
		WebSocket: WebSocketConfig{
			MaxMessageSize:    8192,
			SendBuffer:        256,
			WriteWait:         10 * time.Second,
			PongWait:          60 * time.Second,
			InitTimeout:       0,
			ValidationTimeout: 5 * time.Second,
		},
		Agent: AgentConfig{
			Provider:    "mistral",
			Model:       "mistral-small-latest",
			Temperature: 0.3,
			Timeout:     90 * time.Second,
		},
		Upload: UploadConfig{
			MaxBytes: 5 << 20,
		},
		RateLimit: RateLimitConfig{
			Enabled:  true,
			Requests: 15,
			Window:   24 * time.Hour,
		},
		Logging: LoggingConfig{
			Level:            "info",
			IsDev:            true,
			LogDir:           "logs",
			MaxAgeDays:       7,
			MaxSizeMB:        100,
			MaxBackups:       10,
			AlsoLogToConsole: true,
		},
	}
}

// Validate checks the configuration for values the server cannot run with.
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Port == "" {
		errs = append(errs, errors.New("server.port is required"))
	}
	switch c.Database.Driver {
	case "sqlite3", "pgx":
	default:
		errs = append(errs, fmt.Errorf("database.driver must be sqlite3 or pgx, got %q", c.Database.Driver))
	}
	if c.Database.DSN == "" {
		errs = append(errs, errors.New("database.dsn is required"))
	}
	if c.Redis.Enabled && c.Redis.Addr == "" {
		errs = append(errs, errors.New("redis.addr is required when redis is enabled"))
	}
	if c.WebSocket.SendBuffer <= 0 {
		errs = append(errs, errors.New("websocket.send_buffer must be positive"))
	}
	if c.WebSocket.PongWait <= 0 || c.WebSocket.WriteWait <= 0 {
		errs = append(errs, errors.New("websocket.pong_wait and websocket.write_wait must be positive"))
	}
	if c.WebSocket.InitTimeout < 0 {
		errs = append(errs, errors.New("websocket.init_timeout must not be negative"))
	}
	if c.Upload.MaxBytes <= 0 {
		errs = append(errs, errors.New("upload.max_bytes must be positive"))
	}
	if c.RateLimit.Enabled && (c.RateLimit.Requests <= 0 || c.RateLimit.Window <= 0) {
		errs = append(errs, errors.New("rate_limit.requests and rate_limit.window must be positive"))
	}

	return errors.Join(errs...)
}

// ListenAddr returns the host:port the HTTP server binds to.
func (c *Config) ListenAddr() string {
	return c.Server.Interface + ":" + c.Server.Port
}

func loadFromYAML(config *Config, filename string) error {
	data, err := os.ReadFile(filename) // #nosec G304
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", filename, err)
	}

	if err := yaml.Unmarshal(data, config); err != nil {
		return fmt.Errorf("failed to parse YAML config: %w", err)
	}

	return nil
}

// overrideStructWithEnv recursively overrides struct fields from the
// environment variable named in their env tag.
func overrideStructWithEnv(v reflect.Value) error {
	t := v.Type()

	for i := 0; i < v.NumField(); i++ {
		field := v.Field(i)
		fieldType := t.Field(i)

		if !field.CanSet() {
			continue
		}

		if field.Kind() == reflect.Struct {
			if err := overrideStructWithEnv(field); err != nil {
				return err
			}
			continue
		}

		envTag := fieldType.Tag.Get("env")
		if envTag == "" {
			continue
		}

		envValue := os.Getenv(envTag)
		if envValue == "" {
			continue
		}

		if err := setFieldFromString(field, envValue); err != nil {
			return fmt.Errorf("failed to set field %s from env %s: %w", fieldType.Name, envTag, err)
		}
	}

	return nil
}

func setFieldFromString(field reflect.Value, value string) error {
	switch field.Kind() {
	case reflect.String:
		field.SetString(value)
	case reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return err
		}
		field.SetBool(b)
	case reflect.Int, reflect.Int64:
		if field.Type() == reflect.TypeOf(time.Duration(0)) {
			d, err := time.ParseDuration(value)
			if err != nil {
				return err
			}
			field.SetInt(int64(d))
			return nil
		}
		n, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return err
		}
		field.SetInt(n)
	case reflect.Float64:
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return err
		}
		field.SetFloat(f)
	case reflect.Slice:
		if field.Type().Elem().Kind() != reflect.String {
			return fmt.Errorf("unsupported slice type %s", field.Type())
		}
		var items []string
		for _, item := range strings.Split(value, ",") {
			if item = strings.TrimSpace(item); item != "" {
				items = append(items, item)
			}
		}
		field.Set(reflect.ValueOf(items))
	default:
		return fmt.Errorf("unsupported field type %s", field.Kind())
	}
	return nil
}
