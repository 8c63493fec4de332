package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
	EnvTest        = "test"

	// DefaultFile is read from the working directory when no --config is given.
	DefaultFile = "serverportal.yaml"

	devJWTSecret = "dev-secret-change-me"
	defaultPort  = "3000"
)

// Config holds all application configuration.
type Config struct {
	Env      string         `mapstructure:"env" yaml:"env"`
	Database DatabaseConfig `mapstructure:"database" yaml:"database"`
	HTTP     HTTPConfig     `mapstructure:"http" yaml:"http"`
	GRPC     GRPCConfig     `mapstructure:"grpc" yaml:"grpc"`
	Auth     AuthConfig     `mapstructure:"auth" yaml:"auth"`
	Log      LogConfig      `mapstructure:"log" yaml:"log"`
}

// DatabaseConfig contains database-related settings.
type DatabaseConfig struct {
	Type string `mapstructure:"type" yaml:"type"` // sqlite, sqlite-purego, postgres, mysql
	DSN  string `mapstructure:"dsn" yaml:"dsn"`
}

// HTTPConfig contains HTTP server settings.
type HTTPConfig struct {
	Address    string `mapstructure:"address" yaml:"address"`
	StaticDir  string `mapstructure:"static_dir" yaml:"static_dir,omitempty"`
	CORSOrigin string `mapstructure:"cors_origin" yaml:"cors_origin"`
}

// GRPCConfig contains gRPC server settings. An empty address disables the server.
type GRPCConfig struct {
	Address string `mapstructure:"address" yaml:"address"`
}

// AuthConfig contains authentication settings.
type AuthConfig struct {
	JWTSecret string `mapstructure:"jwt_secret" yaml:"jwt_secret,omitempty"`
	TokenTTL  string `mapstructure:"token_ttl" yaml:"token_ttl"` // Go duration or "<n>d"
}

type LogConfig struct {
	Level string `mapstructure:"level" yaml:"level"`
}

var defaults = map[string]any{
	"env":              EnvDevelopment,
	"database.type":    "sqlite",
	"database.dsn":     "app.db",
	"http.cors_origin": "*",
	"grpc.address":     "",
	"auth.token_ttl":   "7d",
	"log.level":        "info",
}

// envNames maps config keys to the environment variables of the deployment.
var envNames = map[string][]string{
	"env":              {"APP_ENV", "NODE_ENV"},
	"database.type":    {"DATABASE_TYPE"},
	"database.dsn":     {"DATABASE_URL"},
	"http.address":     {"HTTP_ADDRESS"},
	"http.static_dir":  {"STATIC_DIR"},
	"http.cors_origin": {"CORS_ORIGIN"},
	"grpc.address":     {"GRPC_ADDRESS"},
	"auth.jwt_secret":  {"JWT_SECRET"},
	"auth.token_ttl":   {"JWT_EXPIRES_IN"},
	"log.level":        {"LOG_LEVEL"},
	"port":             {"PORT"},
}

// RegisterFlags adds the overridable settings to fs. Flag names equal config keys.
func RegisterFlags(fs *pflag.FlagSet) {
	if fs.Lookup("config") == nil {
		fs.String("config", "", "Path to a YAML config file")
	}
	flags := []struct{ name, usage string }{
		{"env", "Environment (development, production, test)"},
		{"database.type", "Database type (sqlite, sqlite-purego, postgres, mysql)"},
		{"database.dsn", "Database connection string (DSN)"},
		{"http.address", "HTTP listen address"},
		{"http.static_dir", "Directory served for non-API paths"},
		{"grpc.address", "gRPC health listen address (empty disables)"},
		{"log.level", "Log level (debug, info, warn, error)"},
	}
	for _, f := range flags {
		if fs.Lookup(f.name) == nil {
			fs.String(f.name, "", f.usage)
		}
	}
}

// Load reads configuration with precedence flags > env > YAML file > defaults.
// fs may be nil. Outside development JWT_SECRET is mandatory.
func Load(fs *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	for key, names := range envNames {
		if err := v.BindEnv(append([]string{key}, names...)...); err != nil {
			return nil, err
		}
	}

	file := ""
	if fs != nil {
		if f := fs.Lookup("config"); f != nil {
			file = f.Value.String()
		}
		// Unchanged flags only fill keys nothing else set, and they are registered empty.
		if err := v.BindPFlags(fs); err != nil {
			return nil, err
		}
	}
	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", file, err)
		}
	} else if _, err := os.Stat(DefaultFile); err == nil {
		v.SetConfigFile(DefaultFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", DefaultFile, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if cfg.HTTP.Address == "" {
		port := v.GetString("port")
		if port == "" {
			port = defaultPort
		}
		cfg.HTTP.Address = ":" + port
	}
	cfg.Env = strings.ToLower(strings.TrimSpace(cfg.Env))
	if cfg.Env == "" {
		cfg.Env = EnvDevelopment
	}
	if cfg.Auth.JWTSecret == "" && cfg.Env == EnvDevelopment {
		cfg.Auth.JWTSecret = devJWTSecret
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks settings that would otherwise fail late at runtime.
func (c *Config) Validate() error {
	if c.Auth.JWTSecret == "" {
		return errors.New("JWT_SECRET environment variable is not set; required outside development")
	}
	if _, err := ParseTTL(c.Auth.TokenTTL); err != nil {
		return err
	}
	switch c.Env {
	case EnvDevelopment, EnvProduction, EnvTest:
	default:
		return fmt.Errorf("unknown env %q", c.Env)
	}
	return nil
}

// IsDevelopment reports whether internal error details may be shown to clients.
func (c *Config) IsDevelopment() bool { return c.Env == EnvDevelopment }

// TokenTTL returns the parsed token lifetime. Load has already validated it.
func (c *Config) TokenTTL() time.Duration {
	d, _ := ParseTTL(c.Auth.TokenTTL)
	return d
}

// ParseTTL accepts Go durations ("36h") and whole days ("7d").
func ParseTTL(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 7 * 24 * time.Hour, nil
	}
	if days, ok := strings.CutSuffix(s, "d"); ok {
		n, err := strconv.Atoi(days)
		if err != nil || n <= 0 {
			return 0, fmt.Errorf("invalid token ttl %q", s)
		}
		return time.Duration(n) * 24 * time.Hour, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid token ttl %q", s)
	}
	return d, nil
}

// WriteFile stores the configuration as YAML. The JWT secret is never written.
func (c *Config) WriteFile(path string) error {
	out := *c
	out.Auth.JWTSecret = ""
	data, err := yaml.Marshal(&out)
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("could not create config directory %s: %w", dir, err)
		}
	}
	return os.WriteFile(path, data, 0o600)
}

// String returns a string representation of the config (sensitive values are masked).
func (c *Config) String() string {
	return fmt.Sprintf("Config{Env: %s, DB: %s %s, HTTP: %s, gRPC: %s, Auth: *** (masked) ***, TTL: %s, Log: %s}",
		c.Env, c.Database.Type, maskDSN(c.Database.DSN), c.HTTP.Address, c.GRPC.Address, c.Auth.TokenTTL, c.Log.Level)
}

// maskDSN hides the password in URL DSNs and in user:pass@ style DSNs.
func maskDSN(dsn string) string {
	if strings.Contains(dsn, "://") {
		if u, err := url.Parse(dsn); err == nil {
			return u.Redacted()
		}
	}
	at := strings.LastIndex(dsn, "@")
	if at < 0 {
		return dsn
	}
	colon := strings.Index(dsn[:at], ":")
	if colon < 0 {
		return dsn
	}
	return dsn[:colon+1] + "xxxxx" + dsn[at:]
}
