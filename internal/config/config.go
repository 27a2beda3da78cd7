package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	BotToken    string
	Locale      string
	DatabaseURL string

	NATSURL         string // empty disables the event publisher
	LogNATSSubjects bool

	S3Bucket string // empty disables raw-track archival
	S3Region string

	MetricsAddr string // empty disables the metrics server
	VideoPath   string

	SimplifyTolerance float64
	WriteTimeout      time.Duration
	SessionTTL        time.Duration // zero disables the idle sweep
}

func Load() (*Config, error) {
	// Load .env into environment (ignore if missing)
	_ = godotenv.Load()

	cfg := &Config{}

	cfg.BotToken = os.Getenv("BOT_TOKEN")
	if cfg.BotToken == "" {
		return nil, errors.New("BOT_TOKEN must be set")
	}

	cfg.Locale = strings.ToLower(getenvDefault("BOT_LOCALE", "en"))
	switch cfg.Locale {
	case "en", "ar":
	default:
		return nil, fmt.Errorf("invalid BOT_LOCALE: %q", cfg.Locale)
	}

	// Database URL: prefer DATABASE_URL / PG_DSN, else build from PG* vars
	dsn := firstNonEmpty(
		os.Getenv("DATABASE_URL"),
		os.Getenv("PG_DSN"),
	)
	if dsn == "" {
		host := getenvDefault("PGHOST", "127.0.0.1")
		port := getenvDefault("PGPORT", "5432")
		user := getenvDefault("PGUSER", "postgres")
		pass := os.Getenv("PGPASSWORD")
		db := os.Getenv("PGDATABASE")
		if db == "" {
			return nil, errors.New("PGDATABASE or DATABASE_URL must be set")
		}
		sslmode := getenvDefault("PGSSLMODE", "disable")
		if pass != "" {
			cfg.DatabaseURL = fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s", urlEscape(user), urlEscape(pass), host, port, db, sslmode)
		} else {
			cfg.DatabaseURL = fmt.Sprintf("postgres://%s@%s:%s/%s?sslmode=%s", urlEscape(user), host, port, db, sslmode)
		}
	} else {
		cfg.DatabaseURL = dsn
	}

	// Survey-event publishing is opt-in: no NATS_URL, no publisher.
	cfg.NATSURL = os.Getenv("NATS_URL")
	if v := os.Getenv("LOG_NATS_SUBJECTS"); v != "" {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "true", "t", "yes", "y", "on":
			cfg.LogNATSSubjects = true
		default:
			cfg.LogNATSSubjects = false
		}
	}

	cfg.S3Bucket = os.Getenv("S3_BUCKET")
	cfg.S3Region = os.Getenv("S3_REGION")

	// Metrics listen address (e.g., ":9102"). Empty disables the metrics server.
	cfg.MetricsAddr = os.Getenv("METRICS_ADDR")

	cfg.VideoPath = getenvDefault("VIDEO_PATH", "intro_480p.mp4")

	// Simplification tolerance in squared degrees
	if v := os.Getenv("SIMPLIFY_TOLERANCE"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil || f <= 0 {
			return nil, fmt.Errorf("invalid SIMPLIFY_TOLERANCE: %q", v)
		}
		cfg.SimplifyTolerance = f
	} else {
		cfg.SimplifyTolerance = 1e-9
	}

	// Data-store write timeout (seconds)
	if v := os.Getenv("WRITE_TIMEOUT_SEC"); v != "" {
		sec, err := strconv.Atoi(v)
		if err != nil || sec <= 0 {
			return nil, fmt.Errorf("invalid WRITE_TIMEOUT_SEC: %q", v)
		}
		cfg.WriteTimeout = time.Duration(sec) * time.Second
	} else {
		cfg.WriteTimeout = 10 * time.Second
	}

	// Idle-session TTL (minutes); 0 keeps sessions until completion or cancel
	if v := os.Getenv("SESSION_TTL_MIN"); v != "" {
		min, err := strconv.Atoi(v)
		if err != nil || min < 0 {
			return nil, fmt.Errorf("invalid SESSION_TTL_MIN: %q", v)
		}
		cfg.SessionTTL = time.Duration(min) * time.Minute
	}

	return cfg, nil
}

func getenvDefault(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func urlEscape(s string) string {
	// Minimal escape for DSN user/pass with special chars
	r := strings.NewReplacer("@", "%40", ":", "%3A", "/", "%2F", "?", "%3F", "#", "%23")
	return r.Replace(s)
}
