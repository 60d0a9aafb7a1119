package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"gopkg.in/ini.v1"
)

// ErrMissingPath is returned by Validate when a required path is empty.
var ErrMissingPath = errors.New("required path is not set")

// DefaultFile is the INI file the launcher settings are kept in.
const DefaultFile = "config.ini"

// Store drivers.
const (
	DriverPGX      = "pgx"
	DriverPostgres = "postgres"
)

type Config struct {
	XMLDirectory            string        `mapstructure:"XML_DIRECTORY"`
	DatabasePath            string        `mapstructure:"DATABASE_PATH"`
	TransitiveClosureDBPath string        `mapstructure:"TRANSITIVE_CLOSURE_DB_PATH"`
	HistoryDBPath           string        `mapstructure:"HISTORY_DB_PATH"`
	OutputDir               string        `mapstructure:"OUTPUT_DIR"`
	StoreDriver             string        `mapstructure:"STORE_DRIVER"`
	DBMaxConns              int32         `mapstructure:"DB_MAX_CONNS"`
	DBMinConns              int32         `mapstructure:"DB_MIN_CONNS"`
	Env                     string        `mapstructure:"ENV"`
	LogLevel                string        `mapstructure:"LOG_LEVEL"`
	Port                    string        `mapstructure:"PORT"`
	BodyLimit               string        `mapstructure:"BODY_LIMIT"`
	RequestTimeout          time.Duration `mapstructure:"REQUEST_TIMEOUT"`
}

// pathKeys maps each path setting to its key in the INI file's DEFAULT
// section.
var pathKeys = []struct{ env, ini string }{
	{"XML_DIRECTORY", "xml_directory"},
	{"DATABASE_PATH", "database_path"},
	{"TRANSITIVE_CLOSURE_DB_PATH", "transitive_closure_db_path"},
	{"HISTORY_DB_PATH", "history_db_path"},
	{"OUTPUT_DIR", "output_dir"},
}

// FlagKeys maps command-line flag names to configuration keys.
var FlagKeys = map[string]string{
	"xml-dir":         "XML_DIRECTORY",
	"database":        "DATABASE_PATH",
	"closure-db":      "TRANSITIVE_CLOSURE_DB_PATH",
	"history-db":      "HISTORY_DB_PATH",
	"output-dir":      "OUTPUT_DIR",
	"driver":          "STORE_DRIVER",
	"port":            "PORT",
	"log-level":       "LOG_LEVEL",
	"body-limit":      "BODY_LIMIT",
	"request-timeout": "REQUEST_TIMEOUT",
}

// Load reads settings from, lowest precedence first: defaults, the INI file
// at path, environment variables, then any flags of flags that were set.
// A missing INI file is not an error.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()

	v.SetDefault("STORE_DRIVER", DriverPGX)
	v.SetDefault("DB_MAX_CONNS", 10)
	v.SetDefault("DB_MIN_CONNS", 1)
	v.SetDefault("ENV", "development")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("PORT", "8000")
	v.SetDefault("BODY_LIMIT", "32M")
	v.SetDefault("REQUEST_TIMEOUT", "5m")

	if path != "" {
		file := viper.New()
		file.SetConfigFile(path)
		file.SetConfigType("ini")
		if err := file.ReadInConfig(); err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("read config %s: %w", path, err)
			}
		}
		for _, k := range pathKeys {
			if val := file.GetString("default." + k.ini); val != "" {
				v.SetDefault(k.env, val)
			}
		}
	}

	for _, k := range []string{
		"XML_DIRECTORY", "DATABASE_PATH", "TRANSITIVE_CLOSURE_DB_PATH", "HISTORY_DB_PATH",
		"OUTPUT_DIR", "STORE_DRIVER", "DB_MAX_CONNS", "DB_MIN_CONNS", "ENV", "LOG_LEVEL",
		"PORT", "BODY_LIMIT", "REQUEST_TIMEOUT",
	} {
		if err := v.BindEnv(k); err != nil {
			return nil, fmt.Errorf("bind env %s: %w", k, err)
		}
	}

	if flags != nil {
		for name, key := range FlagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("bind flag %s: %w", name, err)
				}
			}
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.StoreDriver = strings.ToLower(strings.TrimSpace(cfg.StoreDriver))
	return cfg, nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// Paths returns the five path settings keyed by their INI name.
func (c *Config) Paths() map[string]string {
	return map[string]string{
		"xml_directory":              c.XMLDirectory,
		"database_path":              c.DatabasePath,
		"transitive_closure_db_path": c.TransitiveClosureDBPath,
		"history_db_path":            c.HistoryDBPath,
		"output_dir":                 c.OutputDir,
	}
}

// ValidateStores checks the store settings needed by every command that
// talks to the database.
func (c *Config) ValidateStores() error {
	var missing []string
	for _, k := range []struct{ name, val string }{
		{"database_path", c.DatabasePath},
		{"transitive_closure_db_path", c.TransitiveClosureDBPath},
		{"history_db_path", c.HistoryDBPath},
	} {
		if strings.TrimSpace(k.val) == "" {
			missing = append(missing, k.name)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrMissingPath, strings.Join(missing, ", "))
	}
	if c.StoreDriver != DriverPGX && c.StoreDriver != DriverPostgres {
		return fmt.Errorf("STORE_DRIVER must be %q or %q, got %q", DriverPGX, DriverPostgres, c.StoreDriver)
	}
	return nil
}

// Validate checks that all five paths are set and the store driver is known.
func (c *Config) Validate() error {
	var missing []string
	for _, k := range pathKeys {
		if strings.TrimSpace(c.Paths()[k.ini]) == "" {
			missing = append(missing, k.ini)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrMissingPath, strings.Join(missing, ", "))
	}
	return c.ValidateStores()
}

// Save writes the five paths to the DEFAULT section of the INI file at path,
// keeping any other keys already there.
func Save(path string, c *Config) error {
	f, err := ini.LooseLoad(path)
	if err != nil {
		return fmt.Errorf("load %s: %w", path, err)
	}
	sec := f.Section(ini.DefaultSection)
	paths := c.Paths()
	for _, k := range pathKeys {
		sec.Key(k.ini).SetValue(paths[k.ini])
	}
	if err := f.SaveTo(path); err != nil {
		return fmt.Errorf("save %s: %w", path, err)
	}
	return nil
}

// Clear blanks the five paths in the INI file at path.
func Clear(path string) error {
	return Save(path, &Config{})
}
