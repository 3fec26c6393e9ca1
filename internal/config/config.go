// Package config loads the client configuration from flags, environment,
// an optional .env file and a YAML config file, in that order of precedence.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/clive/intake-tui/internal/storage"
)

// EnvPrefix is prepended to every environment override, e.g. INTAKE_API_BASE_URL
const EnvPrefix = "INTAKE"

// Config represents the user's configuration
type Config struct {
	API     APIConfig     `mapstructure:"api"`
	Storage StorageConfig `mapstructure:"storage"`
	Log     LogConfig     `mapstructure:"log"`
	Intake  IntakeConfig  `mapstructure:"intake"`
	Debug   bool          `mapstructure:"debug"`
	Start   string        `mapstructure:"start"` // first screen to open

	// File is the config file that was read, empty if none
	File string `mapstructure:"-"`
}

// APIConfig holds the backend connection settings
type APIConfig struct {
	BaseURL string        `mapstructure:"base_url" validate:"required"`
	Timeout time.Duration `mapstructure:"timeout"` // 0 means no timeout
}

// StorageConfig selects where the session token is kept
type StorageConfig struct {
	Driver        string `mapstructure:"driver"`
	Path          string `mapstructure:"path"`
	RedisAddr     string `mapstructure:"redis_addr"`
	RedisPassword string `mapstructure:"redis_password"`
	RedisDB       int    `mapstructure:"redis_db" validate:"gte=0"`
	RedisPrefix   string `mapstructure:"redis_prefix"`
	Key           string `mapstructure:"key" validate:"required"`
}

// LogConfig controls the log file
type LogConfig struct {
	Level string `mapstructure:"level" validate:"oneof=debug info warn error"`
	File  string `mapstructure:"file"`
}

// IntakeConfig points at an optional form schema
type IntakeConfig struct {
	Schema string `mapstructure:"schema"`
}

// LoadOptions tells Load where to look besides the defaults
type LoadOptions struct {
	ConfigFile string         // explicit config file; must exist when set
	EnvFile    string         // dotenv file, ".env" when empty
	Flags      *pflag.FlagSet // parsed flags from RegisterFlags, may be nil
}

// flag name -> config key
var flagKeys = map[string]string{
	"base-url":  "api.base_url",
	"storage":   "storage.driver",
	"debug":     "debug",
	"log-level": "log.level",
	"start":     "start",
	"schema":    "intake.schema",
}

// RegisterFlags defines the command-line flags Load understands
func RegisterFlags(fs *pflag.FlagSet) {
	fs.String("config", "", "path to config file (default .intake/config.yaml or ~/.intake/config.yaml)")
	fs.String("base-url", "", "backend base URL")
	fs.String("storage", "", "session storage driver: file, sqlite, redis, keychain")
	fs.Bool("debug", false, "show the debug panel")
	fs.String("log-level", "", "log level: debug, info, warn, error")
	fs.String("start", "", "screen to open first, e.g. /login")
	fs.String("schema", "", "path to an intake form schema (YAML)")
}

// DefaultDir returns the global config directory path (~/.intake)
func DefaultDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".intake"), nil
}

// projectDir returns the project-level config directory (.intake in cwd)
func projectDir() string {
	return ".intake"
}

var validate = newValidator()

// newValidator reports fields by their config key rather than the Go name
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("mapstructure"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Load builds the configuration. Missing config and .env files are not errors.
func Load(opts LoadOptions) (*Config, error) {
	envFile := opts.EnvFile
	if envFile == "" {
		envFile = ".env"
	}
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("config: load %s: %w", envFile, err)
	}

	dir, err := DefaultDir()
	if err != nil {
		return nil, fmt.Errorf("config: resolve home directory: %w", err)
	}

	v := viper.New()
	setDefaults(v, dir)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if opts.Flags != nil {
		for name, key := range flagKeys {
			if f := opts.Flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("config: bind flag %s: %w", name, err)
				}
			}
		}
	}

	configFile := opts.ConfigFile
	if configFile == "" && opts.Flags != nil {
		if f := opts.Flags.Lookup("config"); f != nil {
			configFile = f.Value.String()
		}
	}

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: read %s: %w", configFile, err)
		}
	} else {
		// Project config first, then global
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(projectDir())
		v.AddConfigPath(dir)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	cfg.File = v.ConfigFileUsed()

	cfg.normalize(dir)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper, dir string) {
	v.SetDefault("api.base_url", "https://your-backend-api.com")
	v.SetDefault("api.timeout", "0s")
	v.SetDefault("storage.driver", "file")
	v.SetDefault("storage.path", "")
	v.SetDefault("storage.redis_addr", "localhost:6379")
	v.SetDefault("storage.redis_password", "")
	v.SetDefault("storage.redis_db", 0)
	v.SetDefault("storage.redis_prefix", "intake")
	v.SetDefault("storage.key", "token")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.file", filepath.Join(dir, "logs", "intake-tui.log"))
	v.SetDefault("intake.schema", "")
	v.SetDefault("debug", false)
	v.SetDefault("start", "/intake-form")
}

// normalize lowercases enum-like values and fills path defaults that depend on the driver
func (c *Config) normalize(dir string) {
	c.Storage.Driver = strings.ToLower(strings.TrimSpace(c.Storage.Driver))
	c.Log.Level = strings.ToLower(strings.TrimSpace(c.Log.Level))

	if c.Storage.Path == "" {
		switch c.Storage.Driver {
		case "sqlite":
			c.Storage.Path = filepath.Join(dir, "session.db")
		case "file":
			c.Storage.Path = filepath.Join(dir, "session.json")
		}
	}
	c.Storage.Path = expandHome(c.Storage.Path)
	c.Log.File = expandHome(c.Log.File)
	c.Intake.Schema = expandHome(c.Intake.Schema)
}

// Validate reports the first invalid setting
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			fe := fieldErrs[0]
			_, key, _ := strings.Cut(fe.Namespace(), ".")
			return fmt.Errorf("config: invalid %s %q", key, fmt.Sprint(fe.Value()))
		}
		return fmt.Errorf("config: %w", err)
	}

	driver := storage.Driver(c.Storage.Driver)
	if !storage.IsKnownDriver(driver) {
		return fmt.Errorf("config: invalid storage.driver %q", c.Storage.Driver)
	}

	u, err := url.Parse(c.API.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("config: api.base_url must be an http or https URL, got %q", c.API.BaseURL)
	}
	if c.API.Timeout < 0 {
		return errors.New("config: api.timeout must not be negative")
	}
	if (driver == storage.DriverFile || driver == storage.DriverSQLite) && c.Storage.Path == "" {
		return fmt.Errorf("config: storage.path is required for the %s driver", c.Storage.Driver)
	}
	if driver == storage.DriverRedis && c.Storage.RedisAddr == "" {
		return errors.New("config: storage.redis_addr is required for the redis driver")
	}
	return nil
}

func expandHome(path string) string {
	rest, ok := strings.CutPrefix(path, "~/")
	if !ok {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, rest)
}
