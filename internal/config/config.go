// Package config loads process-wide settings from ANAMNESIS_* environment
// variables and an optional .env file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/abhisek/anamnesis/internal/evaluation"
	"github.com/abhisek/anamnesis/internal/llm"
	"github.com/abhisek/anamnesis/internal/store"
)

const envPrefix = "ANAMNESIS"

// Config is built once at startup and passed to every component.
type Config struct {
	Env      string        `mapstructure:"ENV"`
	Addr     string        `mapstructure:"ADDR"`
	DB       string        `mapstructure:"DB"`
	LogLevel string        `mapstructure:"LOG_LEVEL"`
	RedisURL string        `mapstructure:"REDIS_URL"`
	CacheTTL time.Duration `mapstructure:"CACHE_TTL"`

	JWTSecret string        `mapstructure:"JWT_SECRET"`
	TokenTTL  time.Duration `mapstructure:"TOKEN_TTL"`

	AllowMessagesAfterFinish bool          `mapstructure:"ALLOW_MESSAGES_AFTER_FINISH"`
	HistoryTurns             int           `mapstructure:"HISTORY_TURNS"`
	EvaluationLease          time.Duration `mapstructure:"EVALUATION_LEASE"`
	EvaluationTranscript     string        `mapstructure:"EVALUATION_TRANSCRIPT"`

	LLM llm.Config `mapstructure:"-"`
}

var keys = []string{
	"ENV", "ADDR", "DB", "LOG_LEVEL", "REDIS_URL", "CACHE_TTL",
	"JWT_SECRET", "TOKEN_TTL",
	"ALLOW_MESSAGES_AFTER_FINISH", "HISTORY_TURNS", "EVALUATION_LEASE", "EVALUATION_TRANSCRIPT",
}

// Load reads the environment. Variables from envFile fill in whatever the
// environment leaves unset; a missing file is not an error.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if err := loadEnvFile(envFile); err != nil {
			return nil, err
		}
	}

	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()

	v.SetDefault("ENV", "production")
	v.SetDefault("ADDR", ":8080")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("CACHE_TTL", 10*time.Minute)
	v.SetDefault("TOKEN_TTL", 24*time.Hour)
	v.SetDefault("ALLOW_MESSAGES_AFTER_FINISH", true)
	v.SetDefault("HISTORY_TURNS", 10)
	v.SetDefault("EVALUATION_LEASE", 5*time.Minute)
	v.SetDefault("EVALUATION_TRANSCRIPT", string(evaluation.TranscriptFull))

	for _, k := range keys {
		if err := v.BindEnv(k); err != nil {
			return nil, fmt.Errorf("bind %s: %w", k, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if cfg.DB == "" {
		path, err := store.DefaultDBPath()
		if err != nil {
			return nil, fmt.Errorf("resolve database path: %w", err)
		}
		cfg.DB = path
	}

	cfg.LLM = llm.ConfigFromEnv()
	return cfg, nil
}

// loadEnvFile copies keys from a dotenv file into the process environment
// without overriding variables that are already set.
func loadEnvFile(path string) error {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("env")
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}

	for _, k := range v.AllKeys() {
		name := strings.ToUpper(k)
		if _, set := os.LookupEnv(name); set {
			continue
		}
		if err := os.Setenv(name, v.GetString(k)); err != nil {
			return fmt.Errorf("set %s: %w", name, err)
		}
	}
	return nil
}

// IsDev reports whether the process runs in development mode.
func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// Validate checks settings needed by the HTTP server.
func (c *Config) Validate() error {
	var errs []error
	if len(c.JWTSecret) < 32 {
		errs = append(errs, errors.New("ANAMNESIS_JWT_SECRET must be at least 32 characters"))
	}
	if c.TokenTTL <= 0 {
		errs = append(errs, errors.New("ANAMNESIS_TOKEN_TTL must be positive"))
	}
	if c.HistoryTurns < 0 {
		errs = append(errs, errors.New("ANAMNESIS_HISTORY_TURNS must not be negative"))
	}
	if c.EvaluationLease <= c.LLM.Timeout {
		errs = append(errs, fmt.Errorf("ANAMNESIS_EVALUATION_LEASE (%s) must exceed the LLM timeout (%s)", c.EvaluationLease, c.LLM.Timeout))
	}
	switch evaluation.TranscriptMode(c.EvaluationTranscript) {
	case evaluation.TranscriptFull, evaluation.TranscriptDoctorQuestions:
	default:
		errs = append(errs, fmt.Errorf("ANAMNESIS_EVALUATION_TRANSCRIPT must be %q or %q", evaluation.TranscriptFull, evaluation.TranscriptDoctorQuestions))
	}
	if err := c.LLM.Validate(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
