package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
)

// Supported database/sql drivers underneath gorm.
const (
	DriverPgx = "pgx"
	DriverPQ  = "postgres"
)

type Config struct {
	Port            int
	DatabaseURL     string
	DBDriver        string
	DBMaxOpenConns  int
	DBMaxIdleConns  int
	DBConnLifetime  time.Duration
	DBSlowThreshold time.Duration

	CORSAllowedOrigins []string
	CookieSecure       bool
	VisitorTokenSecret string

	LogLevel  string
	LogFormat string

	Seed bool
}

// Load reads configuration from flags, then the environment (optionally
// populated from a .env file). Flags win over the environment.
func Load(args []string) (Config, error) {
	flags := pflag.NewFlagSet("api", pflag.ContinueOnError)
	envFile := flags.String("env-file", ".env", "dotenv file to load before reading the environment")
	port := flags.IntP("port", "p", 0, "HTTP port")
	dsn := flags.StringP("database-url", "d", "", "PostgreSQL connection string")
	seed := flags.Bool("seed", false, "insert development votes on startup")
	if err := flags.Parse(args); err != nil {
		return Config{}, err
	}

	if err := loadEnvFile(*envFile); err != nil {
		return Config{}, err
	}

	cfg, err := FromEnv()
	if err != nil {
		return Config{}, err
	}

	if flags.Changed("port") {
		cfg.Port = *port
	}
	if flags.Changed("database-url") {
		cfg.DatabaseURL = *dsn
	}
	if flags.Changed("seed") {
		cfg.Seed = *seed
	}

	return cfg, cfg.Validate()
}

func loadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	err := godotenv.Load(path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("loading %s: %w", path, err)
	}
	return nil
}

// FromEnv builds a Config from environment variables only.
func FromEnv() (Config, error) {
	var err error
	cfg := Config{
		DatabaseURL:        os.Getenv("DATABASE_URL"),
		DBDriver:           envString("DB_DRIVER", DriverPgx),
		CORSAllowedOrigins: envList("CORS_ALLOWED_ORIGINS", []string{"*"}),
		VisitorTokenSecret: os.Getenv("VISITOR_TOKEN_SECRET"),
		LogLevel:           envString("LOG_LEVEL", "info"),
		LogFormat:          envString("LOG_FORMAT", "text"),
	}

	if cfg.DatabaseURL == "" && os.Getenv("DB_HOST") != "" {
		cfg.DatabaseURL = fmt.Sprintf(
			"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s TimeZone=UTC",
			os.Getenv("DB_HOST"),
			envString("DB_PORT", "5432"),
			os.Getenv("DB_USER"),
			os.Getenv("DB_PASSWORD"),
			os.Getenv("DB_NAME"),
			envString("DB_SSLMODE", "disable"),
		)
	}

	if cfg.Port, err = envInt("PORT", 8080); err != nil {
		return Config{}, err
	}
	if cfg.DBMaxOpenConns, err = envInt("DB_MAX_OPEN_CONNS", 100); err != nil {
		return Config{}, err
	}
	if cfg.DBMaxIdleConns, err = envInt("DB_MAX_IDLE_CONNS", 10); err != nil {
		return Config{}, err
	}
	if cfg.DBConnLifetime, err = envDuration("DB_CONN_MAX_LIFETIME", time.Hour); err != nil {
		return Config{}, err
	}
	if cfg.DBSlowThreshold, err = envDuration("DB_SLOW_THRESHOLD", time.Second); err != nil {
		return Config{}, err
	}
	if cfg.CookieSecure, err = envBool("COOKIE_SECURE", true); err != nil {
		return Config{}, err
	}
	if cfg.Seed, err = envBool("SEED_DATA", false); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func (c Config) Validate() error {
	if c.DatabaseURL == "" {
		return errors.New("database URL required (use --database-url, DATABASE_URL or DB_HOST)")
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	switch c.DBDriver {
	case DriverPgx, DriverPQ:
	default:
		return fmt.Errorf("unsupported DB_DRIVER %q (want %q or %q)", c.DBDriver, DriverPgx, DriverPQ)
	}
	return nil
}

func envString(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func envBool(key string, def bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("invalid %s: %w", key, err)
	}
	return b, nil
}

func envDuration(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

func envList(key string, def []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	if len(out) == 0 {
		return def
	}
	return out
}
