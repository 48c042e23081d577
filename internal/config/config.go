package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds runtime configuration values for the API service.
type Config struct {
	AppName              string
	AppEnv               string
	AppPort              string
	DatabaseURL          string
	RedisURL             string
	NATSURL              string
	JWTSecret            string
	AllowOrigins         string
	SubmissionLockTTL    time.Duration
	SubmissionRateLimit  int
	SubmissionRateWindow time.Duration
	EventsSubject        string
}

// HTTPAddress returns the address the HTTP server should listen on.
func (c Config) HTTPAddress() string {
	if strings.HasPrefix(c.AppPort, ":") {
		return c.AppPort
	}

	return fmt.Sprintf(":%s", c.AppPort)
}

// Load reads configuration values from environment variables and optional .env file.
func Load() (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("LMS")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("app.name", "LMS API")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.port", "8080")
	v.SetDefault("cors.allow_origins", "*")
	v.SetDefault("submission.lock_ttl", "10s")
	v.SetDefault("submission.rate_limit", 10)
	v.SetDefault("submission.rate_window", "1m")
	v.SetDefault("events.subject", "lms.submissions.recorded")

	lockTTL, err := parseDuration(v, "submission.lock_ttl", 10*time.Second)
	if err != nil {
		return Config{}, fmt.Errorf("invalid submission lock ttl: %w", err)
	}

	rateWindow, err := parseDuration(v, "submission.rate_window", time.Minute)
	if err != nil {
		return Config{}, fmt.Errorf("invalid submission rate window: %w", err)
	}

	cfg := Config{
		AppName:              v.GetString("app.name"),
		AppEnv:               v.GetString("app.env"),
		AppPort:              v.GetString("app.port"),
		DatabaseURL:          v.GetString("database.url"),
		RedisURL:             v.GetString("redis.url"),
		NATSURL:              v.GetString("nats.url"),
		JWTSecret:            v.GetString("jwt.secret"),
		AllowOrigins:         v.GetString("cors.allow_origins"),
		SubmissionLockTTL:    lockTTL,
		SubmissionRateLimit:  v.GetInt("submission.rate_limit"),
		SubmissionRateWindow: rateWindow,
		EventsSubject:        strings.TrimSpace(v.GetString("events.subject")),
	}

	if cfg.JWTSecret == "" {
		return Config{}, fmt.Errorf("jwt secret must be provided")
	}

	if cfg.SubmissionRateLimit <= 0 {
		cfg.SubmissionRateLimit = 10
	}

	return cfg, nil
}

func parseDuration(v *viper.Viper, key string, fallback time.Duration) (time.Duration, error) {
	raw := strings.TrimSpace(v.GetString(key))
	if raw == "" {
		return fallback, nil
	}
	return time.ParseDuration(raw)
}
