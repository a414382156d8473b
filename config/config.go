/*
Package config loads server configuration from the environment.

SOURCES (later wins):
  1. defaults below
  2. a .env file in the working directory, if present
  3. process environment

cmd/server applies its -port and -db flags on top.

SEE ALSO:
  - cmd/server/main.go: wiring
*/
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"

	"github.com/warp/worktrack/balance"
	"github.com/warp/worktrack/core"
	"github.com/warp/worktrack/store/resilient"
)

type Config struct {
	HTTPPort string `mapstructure:"HTTP_PORT"`
	DBPath   string `mapstructure:"DB_PATH"`

	LogLevel  string `mapstructure:"LOG_LEVEL"`
	LogFormat string `mapstructure:"LOG_FORMAT"`

	JWTSecret   string   `mapstructure:"JWT_SECRET"`
	CORSOrigins []string `mapstructure:"CORS_ORIGINS"`

	StandardWorkHours string `mapstructure:"STANDARD_WORK_HOURS"`
	NightStart        string `mapstructure:"NIGHT_START"`
	NightEnd          string `mapstructure:"NIGHT_END"`
	HolidayPolicy     string `mapstructure:"HOLIDAY_POLICY"`
	SplitAtMidnight   bool   `mapstructure:"SPLIT_AT_MIDNIGHT"`
	HolidayCountry    string `mapstructure:"HOLIDAY_COUNTRY"`
	HolidaysFile      string `mapstructure:"HOLIDAYS_FILE"`
	CatalogSeedFile   string `mapstructure:"CATALOG_SEED_FILE"`

	StoreTimeout       time.Duration `mapstructure:"STORE_TIMEOUT"`
	BreakerFailures    uint32        `mapstructure:"BREAKER_FAILURES"`
	BreakerMaxRequests uint32        `mapstructure:"BREAKER_MAX_REQUESTS"`
	BreakerInterval    time.Duration `mapstructure:"BREAKER_INTERVAL"`
	BreakerOpenTimeout time.Duration `mapstructure:"BREAKER_OPEN_TIMEOUT"`

	CopyWorkers          int           `mapstructure:"COPY_WORKERS"`
	MissingCheckInterval time.Duration `mapstructure:"MISSING_CHECK_INTERVAL"`

	OTLPEndpoint string `mapstructure:"OTLP_ENDPOINT"`
	TraceStdout  bool   `mapstructure:"TRACE_STDOUT"`

	SQSQueueURL string `mapstructure:"SQS_QUEUE_URL"`
	AWSRegion   string `mapstructure:"AWS_REGION"`
	AWSEndpoint string `mapstructure:"AWS_ENDPOINT"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("HTTP_PORT", "8080")
	v.SetDefault("DB_PATH", "./data/worktrack.db")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "text")
	v.SetDefault("JWT_SECRET", "")
	v.SetDefault("CORS_ORIGINS", []string{"http://localhost:3000", "http://localhost:5173"})
	v.SetDefault("STANDARD_WORK_HOURS", core.DefaultStandardWorkHours.String())
	v.SetDefault("NIGHT_START", "22:00")
	v.SetDefault("NIGHT_END", "06:00")
	v.SetDefault("HOLIDAY_POLICY", string(balance.HolidayReduceUnlessScheduled))
	v.SetDefault("SPLIT_AT_MIDNIGHT", false)
	v.SetDefault("HOLIDAY_COUNTRY", "SK")
	v.SetDefault("HOLIDAYS_FILE", "")
	v.SetDefault("CATALOG_SEED_FILE", "")
	v.SetDefault("STORE_TIMEOUT", "5s")
	v.SetDefault("BREAKER_FAILURES", 5)
	v.SetDefault("BREAKER_MAX_REQUESTS", 1)
	v.SetDefault("BREAKER_INTERVAL", "60s")
	v.SetDefault("BREAKER_OPEN_TIMEOUT", "30s")
	v.SetDefault("COPY_WORKERS", 4)
	v.SetDefault("MISSING_CHECK_INTERVAL", "1h")
	v.SetDefault("OTLP_ENDPOINT", "")
	v.SetDefault("TRACE_STDOUT", false)
	v.SetDefault("SQS_QUEUE_URL", "")
	v.SetDefault("AWS_REGION", "eu-central-1")
	v.SetDefault("AWS_ENDPOINT", "")
}

// Load reads .env (when present) and the environment.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}
	return FromEnv()
}

// FromEnv reads the environment only.
func FromEnv() (cfg Config, err error) {
	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()

	if err = v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if _, err = cfg.BalanceRules(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// BalanceRules converts the hour-counting settings.
func (c Config) BalanceRules() (balance.Rules, error) {
	hours, err := decimal.NewFromString(c.StandardWorkHours)
	if err != nil || !hours.IsPositive() {
		return balance.Rules{}, core.Invalid("STANDARD_WORK_HOURS", "must be a positive number, got %q", c.StandardWorkHours)
	}
	start, err := core.ParseClockField("NIGHT_START", c.NightStart)
	if err != nil {
		return balance.Rules{}, err
	}
	end, err := core.ParseClockField("NIGHT_END", c.NightEnd)
	if err != nil {
		return balance.Rules{}, err
	}
	policy, err := balance.ParseHolidayPolicy(c.HolidayPolicy)
	if err != nil {
		return balance.Rules{}, err
	}
	return balance.Rules{
		StandardHours:   hours,
		NightStart:      start,
		NightEnd:        end,
		HolidayPolicy:   policy,
		SplitAtMidnight: c.SplitAtMidnight,
	}, nil
}

func (c Config) StandardHours() decimal.Decimal {
	h, err := decimal.NewFromString(c.StandardWorkHours)
	if err != nil {
		return core.DefaultStandardWorkHours
	}
	return h
}

func (c Config) Breaker() resilient.Settings {
	return resilient.Settings{
		Timeout:     c.StoreTimeout,
		MaxRequests: c.BreakerMaxRequests,
		Interval:    c.BreakerInterval,
		OpenTimeout: c.BreakerOpenTimeout,
		Failures:    c.BreakerFailures,
	}
}
