package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	EnvPrefix      = "PROTECT"
	DefaultDelay   = 2
	configFileName = ".protect-dl"
)

// Keys understood in the config file and as PROTECT_* environment variables.
const (
	KeyHost        = "host"
	KeyUser        = "user"
	KeyPass        = "pass"
	KeyOutput      = "output"
	KeyDelay       = "delay"
	KeyLogLevel    = "log_level"
	KeyMetricsFile = "metrics_file"
	KeyTimezone    = "timezone"
)

type Config struct {
	Host        string
	User        string
	Pass        string
	Output      string
	Delay       int
	LogLevel    string
	MetricsFile string
	Timezone    string
}

// NewViper returns a viper instance with defaults and environment lookup set
// up. Flags are bound by the caller.
func NewViper() *viper.Viper {
	v := viper.New()
	v.SetDefault(KeyOutput, ".")
	v.SetDefault(KeyDelay, DefaultDelay)
	v.SetDefault(KeyLogLevel, "info")

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	return v
}

// ReadFile loads cfgFile, or $HOME/.protect-dl.yaml when cfgFile is empty.
// A missing default file is not an error; a missing explicit file is.
func ReadFile(v *viper.Viper, cfgFile string) error {
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("read config %s: %w", cfgFile, err)
		}
		return nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return nil
	}
	v.AddConfigPath(home)
	v.SetConfigType("yaml")
	v.SetConfigName(configFileName)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("read config %s: %w", filepath.Join(home, configFileName+".yaml"), err)
	}
	return nil
}

// Decode resolves every key through viper's precedence: flag, env, file, default.
func Decode(v *viper.Viper) Config {
	return Config{
		Host:        strings.TrimSpace(v.GetString(KeyHost)),
		User:        v.GetString(KeyUser),
		Pass:        v.GetString(KeyPass),
		Output:      v.GetString(KeyOutput),
		Delay:       v.GetInt(KeyDelay),
		LogLevel:    v.GetString(KeyLogLevel),
		MetricsFile: v.GetString(KeyMetricsFile),
		Timezone:    v.GetString(KeyTimezone),
	}
}

// Validate checks the settings every command needs.
func (c Config) Validate() error {
	var missing []string
	if c.Host == "" {
		missing = append(missing, "--host")
	}
	if c.User == "" {
		missing = append(missing, "--user")
	}
	if c.Pass == "" {
		missing = append(missing, "--pass")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required option(s): %s", strings.Join(missing, ", "))
	}
	if c.Delay < 0 {
		return fmt.Errorf("delay must not be negative, got %d", c.Delay)
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	return nil
}

// Location is the zone used to interpret times and lay out files.
func (c Config) Location() (*time.Location, error) {
	tz := strings.TrimSpace(c.Timezone)
	if tz == "" || strings.EqualFold(tz, "local") {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

func (c Config) MinDelay() time.Duration {
	return time.Duration(c.Delay) * time.Second
}
