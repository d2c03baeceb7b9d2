// Package config provides configuration structures and loading logic for jaegerds.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

var validate = validator.New()

// Config represents the root configuration structure for the jaegerds service.
type Config struct {
	App        AppConfig        `mapstructure:"app"`
	Jaeger     JaegerConfig     `mapstructure:"jaeger"`
	Datasource DatasourceConfig `mapstructure:"datasource"`
	TimeRange  TimeRangeConfig  `mapstructure:"time_range"`
	History    HistoryConfig    `mapstructure:"history"`
}

// AppConfig defines application-level settings such as host and port.
type AppConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port" validate:"min=1,max=65535"`
	LogLevel string `mapstructure:"log_level" validate:"oneof=debug info warn error"`
}

// JaegerConfig defines connection settings for the Jaeger query service.
type JaegerConfig struct {
	URL     string `mapstructure:"url" validate:"required,url"`
	Timeout string `mapstructure:"timeout"`
}

// DatasourceConfig mirrors the per-instance settings of the data source.
type DatasourceConfig struct {
	UID  string `mapstructure:"uid"`
	Name string `mapstructure:"name" validate:"required"`

	// TraceIDTimeParams bounds trace id lookups with the current time window.
	TraceIDTimeParams bool `mapstructure:"trace_id_time_params"`
	// NodeGraph enables node graph frames next to the trace frame.
	NodeGraph bool `mapstructure:"node_graph"`
}

// TimeRangeConfig is the range used when a request does not carry one.
type TimeRangeConfig struct {
	From string `mapstructure:"from" validate:"required"`
	To   string `mapstructure:"to" validate:"required"`
	// UseRequestRange makes the adapter prefer a range attached to the request.
	UseRequestRange bool `mapstructure:"use_request_range"`
}

// HistoryConfig defines where executed queries are recorded.
type HistoryConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path" validate:"required_if=Enabled true"`
}

// GetTimeoutDuration parses the configured string timeout into a time.Duration.
func (c *JaegerConfig) GetTimeoutDuration() time.Duration {
	d, _ := time.ParseDuration(c.Timeout)
	if d == 0 {
		return 30 * time.Second
	}
	return d
}

// Load loads configuration from config.yaml or environment variables
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/jaegerds")

	return load(v)
}

// LoadFile loads configuration from an explicit file path.
func LoadFile(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)

	return load(v)
}

func load(v *viper.Viper) (*Config, error) {
	// Allow environment variables to override config
	v.SetEnvPrefix("JAEGERDS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.host", "0.0.0.0")
	v.SetDefault("app.port", 8080)
	v.SetDefault("app.log_level", "info")
	v.SetDefault("jaeger.url", "http://localhost:16686")
	v.SetDefault("jaeger.timeout", "30s")
	v.SetDefault("datasource.name", "Jaeger")
	v.SetDefault("datasource.trace_id_time_params", false)
	v.SetDefault("datasource.node_graph", false)
	v.SetDefault("time_range.from", "now-6h")
	v.SetDefault("time_range.to", "now")
	v.SetDefault("time_range.use_request_range", true)
	v.SetDefault("history.enabled", false)
	v.SetDefault("history.path", "./data/history.db")
}

// Validate checks the struct tags and the fields tags cannot express.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}
	if c.Jaeger.Timeout != "" {
		if _, err := time.ParseDuration(c.Jaeger.Timeout); err != nil {
			return fmt.Errorf("invalid jaeger timeout: %w", err)
		}
	}
	return nil
}

// Addr returns the listen address of the HTTP API.
func (c *AppConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
