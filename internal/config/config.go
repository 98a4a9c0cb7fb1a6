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

const environmentProduction = "production"

// Config aggregates all runtime settings required by the application.
type Config struct {
	AppName     string
	Environment string
	HTTP        HTTPConfig
	Database    DatabaseConfig
	Redis       RedisConfig
	Auth        AuthConfig
	Sync        SyncConfig
	Context     ContextConfig
	Logger      LoggerConfig
	Migrations  MigrationsConfig
	RateLimit   RateLimitConfig
	Providers   ProvidersConfig
}

type HTTPConfig struct {
	Host         string
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
	MaxBodySize  int
}

type DatabaseConfig struct {
	URL             string
	Host            string
	Port            string
	Name            string
	User            string
	Password        string
	MaxOpenConns    int
	MaxIdleConns    int
	MaxConnLifetime time.Duration
	ConnectAttempts int
	SSLMode         string
}

type RedisConfig struct {
	Enabled    bool
	URL        string
	Password   string
	DB         int
	SessionTTL time.Duration
}

// AuthConfig describes how bearer tokens issued by the identity provider are
// verified. At least one of Secret (HS256) or PublicKeyPEM (RS256) is required.
type AuthConfig struct {
	Secret       string
	PublicKeyPEM string
	Issuer       string
}

// SyncConfig controls the durable queue of profile upserts awaiting retry.
type SyncConfig struct {
	Path      string
	Interval  time.Duration
	BatchSize int
	MaxRetry  int
	Retention time.Duration
}

type ContextConfig struct {
	RequestTimeout  time.Duration
	UpstreamTimeout time.Duration
	ShutdownTimeout time.Duration
}

type LoggerConfig struct {
	Level    string
	Encoding string
	Output   string
}

type MigrationsConfig struct {
	Enabled bool
	Path    string
}

// Limit is a request budget per identity per window.
type Limit struct {
	Requests int
	Window   time.Duration
}

type RateLimitConfig struct {
	Suggest       Limit
	Image         Limit
	Voice         Limit
	TaskCreate    Limit
	SweepInterval time.Duration
}

type ProvidersConfig struct {
	OpenAIKey       string
	OpenAIModel     string
	FalKey          string
	FalBaseURL      string
	FalModel        string
	ElevenLabsKey   string
	ElevenLabsURL   string
	ElevenLabsModel string
}

// Load reads configuration from environment variables (optionally .env)
// and applies defaults suitable for local development.
func Load() (*Config, error) {
	_ = godotenv.Load(".env")

	cfg := &Config{
		AppName:     getString("APP_NAME", "taskflow"),
		Environment: getString("APP_ENV", "development"),
		HTTP: HTTPConfig{
			Host:         getString("SERVER_HOST", "0.0.0.0"),
			Port:         getString("SERVER_PORT", "8080"),
			ReadTimeout:  getDuration("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout: getDuration("SERVER_WRITE_TIMEOUT", 90*time.Second),
			IdleTimeout:  getDuration("SERVER_IDLE_TIMEOUT", 120*time.Second),
			MaxBodySize:  getInt("SERVER_MAX_BODY_SIZE", 25<<20),
		},
		Database: DatabaseConfig{
			URL:             getString("DATABASE_URL", os.Getenv("NEON_DATABASE_URL")),
			Host:            getString("DB_HOST", "localhost"),
			Port:            getString("DB_PORT", "5432"),
			Name:            getString("DB_NAME", "taskflow"),
			User:            getString("DB_USER", "taskflow"),
			Password:        os.Getenv("DB_PASSWORD"),
			MaxOpenConns:    getInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getInt("DB_MAX_IDLE_CONNS", 2),
			MaxConnLifetime: getDuration("DB_CONN_LIFETIME", time.Hour),
			ConnectAttempts: getInt("DB_CONNECT_ATTEMPTS", 5),
			SSLMode:         getString("DB_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			Enabled:    getBool("REDIS_ENABLED", true),
			URL:        getString("REDIS_URL", "redis://localhost:6379"),
			Password:   os.Getenv("REDIS_PASSWORD"),
			DB:         getInt("REDIS_DB", 0),
			SessionTTL: getDuration("SESSION_TTL", 24*time.Hour),
		},
		Auth: AuthConfig{
			Secret:       os.Getenv("JWT_SECRET"),
			PublicKeyPEM: strings.ReplaceAll(os.Getenv("JWT_PUBLIC_KEY"), `\n`, "\n"),
			Issuer:       os.Getenv("JWT_ISSUER"),
		},
		Sync: SyncConfig{
			Path:      getString("BOLTDB_PATH", "./data/sync.db"),
			Interval:  getDuration("SYNC_INTERVAL", 30*time.Second),
			BatchSize: getInt("SYNC_BATCH_SIZE", 50),
			MaxRetry:  getInt("MAX_RETRY_ATTEMPTS", 5),
			Retention: getDuration("SYNC_RETENTION", 24*time.Hour),
		},
		Context: ContextConfig{
			RequestTimeout:  getDuration("REQUEST_TIMEOUT", 5*time.Second),
			UpstreamTimeout: getDuration("UPSTREAM_TIMEOUT", 60*time.Second),
			ShutdownTimeout: getDuration("SHUTDOWN_TIMEOUT", 15*time.Second),
		},
		Logger: LoggerConfig{
			Level:    getString("LOG_LEVEL", "info"),
			Encoding: getString("LOG_ENCODING", "json"),
			Output:   getString("LOG_OUTPUT", "stdout"),
		},
		Migrations: MigrationsConfig{
			Enabled: getBool("RUN_MIGRATIONS", true),
			Path:    getString("MIGRATIONS_PATH", "./assets/migrations"),
		},
		RateLimit: RateLimitConfig{
			Suggest: Limit{
				Requests: getInt("RATE_LIMIT_SUGGEST", 5),
				Window:   getDuration("RATE_LIMIT_SUGGEST_WINDOW", time.Minute),
			},
			Image: Limit{
				Requests: getInt("RATE_LIMIT_IMAGE", 5),
				Window:   getDuration("RATE_LIMIT_IMAGE_WINDOW", time.Minute),
			},
			Voice: Limit{
				Requests: getInt("RATE_LIMIT_VOICE", 10),
				Window:   getDuration("RATE_LIMIT_VOICE_WINDOW", time.Minute),
			},
			TaskCreate: Limit{
				Requests: getInt("RATE_LIMIT_TASK_CREATE", 20),
				Window:   getDuration("RATE_LIMIT_TASK_CREATE_WINDOW", time.Hour),
			},
			SweepInterval: getDuration("RATE_LIMIT_SWEEP_INTERVAL", 5*time.Minute),
		},
		Providers: ProvidersConfig{
			OpenAIKey:       os.Getenv("OPENAI_API_KEY"),
			OpenAIModel:     getString("OPENAI_MODEL", "gpt-4.1-nano"),
			FalKey:          os.Getenv("FAL_KEY"),
			FalBaseURL:      getString("FAL_BASE_URL", "https://fal.run"),
			FalModel:        getString("FAL_MODEL", "fal-ai/flux/dev"),
			ElevenLabsKey:   os.Getenv("ELEVENLABS_API_KEY"),
			ElevenLabsURL:   getString("ELEVENLABS_BASE_URL", "https://api.elevenlabs.io"),
			ElevenLabsModel: getString("ELEVENLABS_MODEL", "scribe_v1"),
		},
	}

	if cfg.Database.URL == "" {
		cfg.Database.URL = buildPostgresURL(cfg)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// MustLoad panics if configuration cannot be loaded.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// Validate reports settings the service cannot start without.
func (c *Config) Validate() error {
	var errs []error
	if c.Auth.Secret == "" && c.Auth.PublicKeyPEM == "" {
		errs = append(errs, errors.New("one of JWT_SECRET or JWT_PUBLIC_KEY is required"))
	}
	for name, limit := range map[string]Limit{
		"suggest":     c.RateLimit.Suggest,
		"image":       c.RateLimit.Image,
		"voice":       c.RateLimit.Voice,
		"task create": c.RateLimit.TaskCreate,
	} {
		if limit.Requests <= 0 || limit.Window <= 0 {
			errs = append(errs, fmt.Errorf("%s rate limit must be positive", name))
		}
	}
	return errors.Join(errs...)
}

// IsProduction reports whether validation details must be hidden from clients.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Environment, environmentProduction)
}

// Address returns the HTTP listen address for the fasthttp server.
func (c *Config) Address() string {
	return fmt.Sprintf("%s:%s", c.HTTP.Host, c.HTTP.Port)
}

func buildPostgresURL(cfg *Config) string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		cfg.Database.User,
		cfg.Database.Password,
		cfg.Database.Host,
		cfg.Database.Port,
		cfg.Database.Name,
		cfg.Database.SSLMode,
	)
}

func getString(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil {
			return parsed
		}
	}
	return fallback
}

func getBool(key string, fallback bool) bool {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.ParseBool(val); err == nil {
			return parsed
		}
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if parsed, err := time.ParseDuration(val); err == nil {
			return parsed
		}
		if seconds, err := strconv.Atoi(val); err == nil {
			return time.Duration(seconds) * time.Second
		}
	}
	return fallback
}
