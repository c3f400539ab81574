// Package config loads gary settings from defaults, config.yaml, .env files
// and the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cast"
	"github.com/spf13/viper"

	garyerrors "github.com/lepinkainen/gary/internal/errors"
	"github.com/lepinkainen/gary/internal/ratelimit"
)

// Configuration keys.
const (
	KeyDBFile      = "db.file"
	KeyLockFile    = "db.lockfile"
	KeyURLTemplate = "isbndb.url_template"
	KeyAPIKey      = "isbndb.api_key"
	KeyIntervalUS  = "isbndb.interval_us"
	KeyPauseUS     = "isbndb.pause_us"
	KeyTimeout     = "isbndb.timeout"
	KeyCoverRate   = "covers.rate"
)

// EnvPrefix is prepended to environment variable names, so db.file is read
// from GARY_DB_FILE.
const EnvPrefix = "GARY"

// Settings is the validated configuration.
type Settings struct {
	DBFile         string
	LockFile       string
	URLTemplate    string
	APIKey         string
	IntervalMicros int64
	PauseMicros    int64
	Timeout        time.Duration
	CoverRate      float64
}

// SetDefaults registers the default value of every key on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault(KeyDBFile, "./gary.db")
	v.SetDefault(KeyLockFile, "")
	v.SetDefault(KeyURLTemplate, "https://api2.isbndb.com/book/%s")
	v.SetDefault(KeyAPIKey, "")
	v.SetDefault(KeyIntervalUS, 1_000_000)
	v.SetDefault(KeyPauseUS, 50_000)
	v.SetDefault(KeyTimeout, "30s")
	v.SetDefault(KeyCoverRate, 2.0)
}

// Setup wires v to the environment and reads the config file. configFile
// names an explicit file; when empty, config.yaml in the working directory is
// read if present.
func Setup(v *viper.Viper, configFile string) error {
	SetDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.BindEnv(KeyAPIKey, EnvPrefix+"_ISBNDB_API_KEY", "ISBNDB_API_KEY"); err != nil {
		return fmt.Errorf("bind environment: %w", err)
	}

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile == "" && errors.As(err, &notFound) {
			slog.Debug("No config file found, using defaults")
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	slog.Debug("Loaded config file", "path", v.ConfigFileUsed())
	return nil
}

// LoadDotEnv loads variables from the given .env files into the process
// environment without overriding variables that are already set. Missing
// files are ignored.
func LoadDotEnv(files ...string) error {
	for _, f := range files {
		if err := godotenv.Load(f); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("load %s: %w", f, err)
		}
		slog.Debug("Loaded environment file", "path", f)
	}
	return nil
}

// Load reads and validates the settings from v. Malformed or out-of-range
// values are reported as a *errors.ConfigError.
func Load(v *viper.Viper) (Settings, error) {
	var s Settings

	s.DBFile = strings.TrimSpace(v.GetString(KeyDBFile))
	if s.DBFile == "" {
		return s, garyerrors.NewConfigError(KeyDBFile, s.DBFile, "must not be empty")
	}
	s.LockFile = strings.TrimSpace(v.GetString(KeyLockFile))
	if s.LockFile == "" {
		s.LockFile = s.DBFile + ".lock"
	}

	s.URLTemplate = v.GetString(KeyURLTemplate)
	if err := ValidateURLTemplate(s.URLTemplate); err != nil {
		return s, garyerrors.NewConfigError(KeyURLTemplate, s.URLTemplate, err.Error())
	}
	s.APIKey = strings.TrimSpace(v.GetString(KeyAPIKey))

	var err error
	if s.IntervalMicros, err = micros(v, KeyIntervalUS); err != nil {
		return s, err
	}
	if s.PauseMicros, err = micros(v, KeyPauseUS); err != nil {
		return s, err
	}

	raw := v.Get(KeyTimeout)
	s.Timeout, err = cast.ToDurationE(raw)
	if err != nil || s.Timeout <= 0 {
		return s, garyerrors.NewConfigError(KeyTimeout, raw, "must be a positive duration")
	}

	raw = v.Get(KeyCoverRate)
	s.CoverRate, err = cast.ToFloat64E(raw)
	if err != nil || s.CoverRate <= 0 {
		return s, garyerrors.NewConfigError(KeyCoverRate, raw, "must be a positive number of requests per second")
	}

	return s, nil
}

// RequireAPIKey returns a ConfigError when no API key is configured.
func (s Settings) RequireAPIKey() error {
	if s.APIKey == "" {
		return garyerrors.NewConfigError(KeyAPIKey, "", "required for remote lookups (set ISBNDB_API_KEY)")
	}
	return nil
}

// ValidateURLTemplate checks that tmpl has exactly one %s placeholder and no
// other formatting verbs.
func ValidateURLTemplate(tmpl string) error {
	if tmpl == "" {
		return errors.New("must not be empty")
	}
	if n := strings.Count(tmpl, "%s"); n != 1 {
		return fmt.Errorf("must contain exactly one %%s placeholder, found %d", n)
	}
	if strings.Count(tmpl, "%") != 1 {
		return errors.New("must not contain formatting verbs other than %s")
	}
	return nil
}

func micros(v *viper.Viper, key string) (int64, error) {
	raw := v.Get(key)
	n, err := wholeInt64(raw)
	if err != nil {
		return 0, garyerrors.NewConfigError(key, raw, "must be an integer number of microseconds")
	}
	if n < ratelimit.MinMicros || n > ratelimit.MaxMicros {
		return 0, garyerrors.NewConfigError(key, raw,
			fmt.Sprintf("must be between %d and %d", ratelimit.MinMicros, ratelimit.MaxMicros))
	}
	return n, nil
}

// wholeInt64 reads a base-10 integer. Strings in other bases and floats with
// a fractional part are rejected.
func wholeInt64(raw any) (int64, error) {
	switch x := raw.(type) {
	case string:
		return strconv.ParseInt(strings.TrimSpace(x), 10, 64)
	case float32:
		return wholeFloat(float64(x))
	case float64:
		return wholeFloat(x)
	}
	return cast.ToInt64E(raw)
}

func wholeFloat(f float64) (int64, error) {
	if f != math.Trunc(f) || f < math.MinInt64 || f >= math.MaxInt64 {
		return 0, fmt.Errorf("%v is not a whole number", f)
	}
	return int64(f), nil
}
