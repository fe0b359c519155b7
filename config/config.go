package config

import (
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

// DotEnvFile is loaded into the process environment before configuration is
// read. Variables already present in the environment win.
var DotEnvFile = ".env"

// Config holds all configuration for the search service
type Config struct {
	General   GeneralConfig   `mapstructure:"general"`
	Server    ServerConfig    `mapstructure:"server"`
	Gemini    GeminiConfig    `mapstructure:"gemini"`
	Session   SessionConfig   `mapstructure:"session"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

// GeneralConfig contains general application settings
type GeneralConfig struct {
	Environment string `mapstructure:"environment"` // development | production
	LogLevel    string `mapstructure:"log_level"`
	LogFormat   string `mapstructure:"log_format"` // console | json
}

// IsDevelopment reports whether the service runs in development mode.
func (g GeneralConfig) IsDevelopment() bool {
	return g.Environment != "production"
}

func (g GeneralConfig) Validate() error {
	switch g.LogFormat {
	case "console", "json":
	default:
		return errors.Errorf("general.log_format must be console or json, got %q", g.LogFormat)
	}
	return nil
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	Host             string        `mapstructure:"host"`
	Port             int           `mapstructure:"port"`
	StaticDir        string        `mapstructure:"static_dir"`
	CORSAllowOrigins []string      `mapstructure:"cors_allow_origins"`
	ShutdownTimeout  time.Duration `mapstructure:"shutdown_timeout"`
}

// Address is the host:port the HTTP server listens on.
func (s ServerConfig) Address() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}

func (s ServerConfig) Validate() error {
	if s.Port <= 0 || s.Port > 65535 {
		return errors.Errorf("server.port must be between 1 and 65535, got %d", s.Port)
	}
	if s.StaticDir != "" {
		index := filepath.Join(s.StaticDir, "index.html")
		if _, err := os.Stat(index); err != nil {
			return errors.Errorf("server.static_dir: %s not found, build the client first", index)
		}
	}
	return nil
}

// GeminiConfig contains the upstream model settings
type GeminiConfig struct {
	Provider        string        `mapstructure:"provider"`
	APIKey          string        `mapstructure:"api_key"`
	Model           string        `mapstructure:"model"`
	Temperature     float32       `mapstructure:"temperature"`
	TopP            float32       `mapstructure:"top_p"`
	TopK            float32       `mapstructure:"top_k"`
	MaxOutputTokens int32         `mapstructure:"max_output_tokens"`
	RequestTimeout  time.Duration `mapstructure:"request_timeout"` // 0 disables
}

func (g GeminiConfig) Validate() error {
	if strings.TrimSpace(g.APIKey) == "" {
		return errors.New("GOOGLE_API_KEY environment variable must be set")
	}
	if strings.TrimSpace(g.Model) == "" {
		return errors.New("gemini.model required")
	}
	if g.RequestTimeout < 0 {
		return errors.New("gemini.request_timeout cannot be negative")
	}
	return nil
}

// SessionConfig bounds the in-memory conversation registry.
type SessionConfig struct {
	TTL              time.Duration `mapstructure:"ttl"`          // idle lifetime, 0 disables
	MaxSessions      int           `mapstructure:"max_sessions"` // 0 means unbounded
	EvictionInterval time.Duration `mapstructure:"eviction_interval"`
}

func (s SessionConfig) Validate() error {
	if s.TTL < 0 {
		return errors.New("session.ttl cannot be negative")
	}
	if s.MaxSessions < 0 {
		return errors.New("session.max_sessions cannot be negative")
	}
	if s.TTL > 0 && s.EvictionInterval <= 0 {
		return errors.New("session.eviction_interval must be > 0 when session.ttl is set")
	}
	return nil
}

// TelemetryConfig contains metrics settings
type TelemetryConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("general.environment", "development")
	v.SetDefault("general.log_level", "info")
	v.SetDefault("general.log_format", "")
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 3000)
	v.SetDefault("server.static_dir", "")
	v.SetDefault("server.cors_allow_origins", []string{"*"})
	v.SetDefault("server.shutdown_timeout", 10*time.Second)
	v.SetDefault("gemini.provider", "gemini")
	v.SetDefault("gemini.api_key", "")
	v.SetDefault("gemini.model", "gemini-2.0-flash-exp")
	v.SetDefault("gemini.temperature", 0.9)
	v.SetDefault("gemini.top_p", 1)
	v.SetDefault("gemini.top_k", 1)
	v.SetDefault("gemini.max_output_tokens", 2048)
	v.SetDefault("gemini.request_timeout", 0)
	v.SetDefault("session.ttl", time.Hour)
	v.SetDefault("session.max_sessions", 10000)
	v.SetDefault("session.eviction_interval", time.Minute)
	v.SetDefault("telemetry.enabled", true)
}

// Load reads configuration from the optional config file, the .env file and
// the environment, then validates it. An empty path searches the usual
// locations; a missing file there is not an error.
func Load(path string) (*Config, error) {
	if err := loadDotEnv(DotEnvFile); err != nil {
		return nil, err
	}

	v := viper.New()
	setDefaults(v)
	v.SetConfigType("json")
	if path == "" {
		v.SetConfigName("config")
		v.AddConfigPath("./config")
		v.AddConfigPath(".")
		if exe, err := os.Executable(); err == nil {
			v.AddConfigPath(filepath.Dir(exe))
		}
	} else {
		v.SetConfigFile(path)
	}

	v.SetEnvPrefix("GEMSEARCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv() // GEMSEARCH_*
	// legacy variable names
	_ = v.BindEnv("gemini.api_key", "GEMSEARCH_GEMINI_API_KEY", "GOOGLE_API_KEY")
	_ = v.BindEnv("server.port", "GEMSEARCH_SERVER_PORT", "PORT")
	_ = v.BindEnv("general.environment", "GEMSEARCH_GENERAL_ENVIRONMENT", "NODE_ENV")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, errors.Wrap(err, "read config file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(err, "decode config")
	}
	if cfg.General.LogFormat == "" {
		cfg.General.LogFormat = "json"
		if cfg.General.IsDevelopment() {
			cfg.General.LogFormat = "console"
		}
	}

	for _, validate := range []func() error{
		cfg.General.Validate,
		cfg.Server.Validate,
		cfg.Gemini.Validate,
		cfg.Session.Validate,
	} {
		if err := validate(); err != nil {
			return nil, err
		}
	}
	return &cfg, nil
}

// LoadConfig loads config and panics when it is unusable.
func LoadConfig(path string) *Config {
	cfg, err := Load(path)
	if err != nil {
		panic(errors.Wrap(err, "fatal error config"))
	}
	return cfg
}

func loadDotEnv(path string) error {
	if path == "" {
		return nil
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return errors.Wrapf(err, "stat %s", path)
	}
	env := viper.New()
	env.SetConfigFile(path)
	env.SetConfigType("env")
	if err := env.ReadInConfig(); err != nil {
		return errors.Wrapf(err, "failed to load %s", path)
	}
	for _, key := range env.AllKeys() {
		name := strings.ToUpper(key)
		if _, set := os.LookupEnv(name); set {
			continue
		}
		if err := os.Setenv(name, env.GetString(key)); err != nil {
			return errors.Wrapf(err, "set %s", name)
		}
	}
	return nil
}
