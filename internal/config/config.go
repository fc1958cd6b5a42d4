// Package config loads server settings from the environment. Command-line
// flags in cmd/verifmatos take precedence over these values.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Problem describes an environment value that was rejected and replaced by
// its default.
type Problem struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Config holds the server settings.
type Config struct {
	DBPath    string
	Addr      string
	AdminUser string
	LogPath   string

	// Realtime fan-out. An empty RedisAddr keeps fan-out in-process.
	RedisAddr          string
	RedisPassword      string
	RedisDB            int
	RedisChannelPrefix string
	FanoutTimeoutMS    int
	FanoutTimeout      time.Duration

	// Per client IP limits on the public write and login endpoints.
	PublicRateRPS   float64
	PublicRateBurst int
	LoginRatePerMin int
}

// Load reads the configuration from the environment, falling back to
// defaults for unset or invalid values.
func Load() (Config, []Problem) {
	cfg := Config{
		DBPath:             "verifmatos.sqlite3",
		Addr:               ":8080",
		AdminUser:          "Admin",
		RedisChannelPrefix: "verifmatos:checklist:",
		FanoutTimeoutMS:    500,
		PublicRateRPS:      5,
		PublicRateBurst:    20,
		LoginRatePerMin:    5,
	}
	problems := make([]Problem, 0, 2)

	setString(&cfg.DBPath, "VERIFMATOS_DB")
	setString(&cfg.Addr, "VERIFMATOS_ADDR")
	setString(&cfg.AdminUser, "VERIFMATOS_ADMIN")
	setString(&cfg.LogPath, "VERIFMATOS_LOG")
	setString(&cfg.RedisAddr, "REDIS_ADDR")
	setString(&cfg.RedisPassword, "REDIS_PASSWORD")
	setString(&cfg.RedisChannelPrefix, "REDIS_CHANNEL_PREFIX")

	setInt(&cfg.RedisDB, "REDIS_DB", 0, &problems)
	setInt(&cfg.FanoutTimeoutMS, "FANOUT_TIMEOUT_MS", 1, &problems)
	setInt(&cfg.PublicRateBurst, "PUBLIC_RATE_BURST", 1, &problems)
	setInt(&cfg.LoginRatePerMin, "LOGIN_RATE_PER_MIN", 1, &problems)

	if raw := strings.TrimSpace(os.Getenv("PUBLIC_RATE_RPS")); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil || v <= 0 {
			problems = append(problems, Problem{Field: "PUBLIC_RATE_RPS", Message: "PUBLIC_RATE_RPS must be a number > 0"})
		} else {
			cfg.PublicRateRPS = v
		}
	}

	// The fan-out must stay well under a second so it never holds a viewer back.
	if cfg.FanoutTimeoutMS >= 1000 {
		problems = append(problems, Problem{Field: "FANOUT_TIMEOUT_MS", Message: "FANOUT_TIMEOUT_MS must be < 1000"})
		cfg.FanoutTimeoutMS = 500
	}
	cfg.FanoutTimeout = time.Duration(cfg.FanoutTimeoutMS) * time.Millisecond

	return cfg, problems
}

func setString(dst *string, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string, minValue int, problems *[]Problem) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < minValue {
		*problems = append(*problems, Problem{Field: key, Message: key + " must be an integer >= " + strconv.Itoa(minValue)})
		return
	}
	*dst = v
}
