package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server   ServerConfig
	Store    StoreConfig
	Database DatabaseConfig
	Redis    RedisConfig
	NATS     NATSConfig
	Auth     AuthConfig
	Email    EmailConfig
	Waitlist WaitlistConfig
}

type ServerConfig struct {
	Port           string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
	AllowedOrigins []string
}

const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
	StoreRedis    = "redis"
)

type StoreConfig struct {
	Driver  string
	Timeout time.Duration
}

type DatabaseConfig struct {
	URL           string
	MaxConns      int
	MinConns      int
	MaxLifetime   time.Duration
	RunMigrations bool
}

type RedisConfig struct {
	URL       string
	Password  string
	DB        int
	KeyPrefix string
}

// NATSConfig with an empty URL selects the in-process event bus.
type NATSConfig struct {
	URL   string
	Queue string
}

type AuthConfig struct {
	JWTSecret string
}

const (
	EmailProviderDev        = "dev"
	EmailProviderSMTP       = "smtp"
	EmailProviderMailerSend = "mailersend"
)

type EmailConfig struct {
	Provider      string
	SMTPHost      string
	SMTPPort      int
	SMTPUser      string
	SMTPPass      string
	SMTPUseTLS    bool
	MailerSendKey string
	From          string
	FromName      string
}

type WaitlistConfig struct {
	BaseURL          string
	RecentLimit      int
	LeaderboardLimit int
	CodePrefix       string
	CodeLength       int
	DefaultSource    string
}

// MinCodeLength keeps referral-code collisions negligible (36^6 ≈ 2.2e9).
const MinCodeLength = 6

// Load reads configuration from the environment. A .env file is optional.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		Server: ServerConfig{
			Port:           getEnv("PORT", "8080"),
			ReadTimeout:    getDuration("SERVER_READ_TIMEOUT", 5*time.Second),
			WriteTimeout:   getDuration("SERVER_WRITE_TIMEOUT", 10*time.Second),
			IdleTimeout:    getDuration("SERVER_IDLE_TIMEOUT", 60*time.Second),
			AllowedOrigins: getList("CORS_ALLOWED_ORIGINS", []string{"*"}),
		},
		Store: StoreConfig{
			Driver:  strings.ToLower(getEnv("STORE_DRIVER", StoreMemory)),
			Timeout: getDuration("STORE_TIMEOUT", 3*time.Second),
		},
		Database: DatabaseConfig{
			URL:           getEnv("DATABASE_URL", ""),
			MaxConns:      getInt("DB_MAX_CONNS", 10),
			MinConns:      getInt("DB_MIN_CONNS", 1),
			MaxLifetime:   getDuration("DB_MAX_LIFETIME", time.Hour),
			RunMigrations: getBool("DB_RUN_MIGRATIONS", true),
		},
		Redis: RedisConfig{
			URL:       getEnv("REDIS_URL", "redis://localhost:6379"),
			Password:  getEnv("REDIS_PASSWORD", ""),
			DB:        getInt("REDIS_DB", 0),
			KeyPrefix: getEnv("REDIS_KEY_PREFIX", "waitlist"),
		},
		NATS: NATSConfig{
			URL:   getEnv("NATS_URL", ""),
			Queue: getEnv("NATS_QUEUE", "notify"),
		},
		Auth: AuthConfig{
			JWTSecret: getEnv("JWT_SECRET", "dev-only-secret-change-in-prod"),
		},
		Email: EmailConfig{
			Provider:      strings.ToLower(getEnv("EMAIL_PROVIDER", EmailProviderDev)),
			SMTPHost:      getEnv("SMTP_HOST", "localhost"),
			SMTPPort:      getInt("SMTP_PORT", 1025),
			SMTPUser:      getEnv("SMTP_USER", ""),
			SMTPPass:      getEnv("SMTP_PASS", ""),
			SMTPUseTLS:    getBool("SMTP_USE_TLS", false),
			MailerSendKey: getEnv("MAILERSEND_API_KEY", ""),
			From:          getEnv("EMAIL_FROM", "noreply@dynaprizes.com"),
			FromName:      getEnv("EMAIL_FROM_NAME", "Dynaprizes Store"),
		},
		Waitlist: WaitlistConfig{
			BaseURL:          getEnv("WAITLIST_BASE_URL", "https://dynaprizes.com/"),
			RecentLimit:      getInt("WAITLIST_RECENT_LIMIT", 10),
			LeaderboardLimit: getInt("WAITLIST_LEADERBOARD_LIMIT", 20),
			CodePrefix:       getEnv("REFERRAL_CODE_PREFIX", "DYN"),
			CodeLength:       getInt("REFERRAL_CODE_LENGTH", MinCodeLength),
			DefaultSource:    getEnv("WAITLIST_DEFAULT_SOURCE", "website"),
		},
	}
}

// Validate rejects combinations the services cannot start with.
func (c *Config) Validate() error {
	switch c.Store.Driver {
	case StoreMemory, StoreRedis:
	case StorePostgres:
		if strings.TrimSpace(c.Database.URL) == "" {
			return fmt.Errorf("config: DATABASE_URL is required when STORE_DRIVER=postgres")
		}
	default:
		return fmt.Errorf("config: unknown STORE_DRIVER %q", c.Store.Driver)
	}

	if c.Store.Timeout <= 0 {
		return fmt.Errorf("config: STORE_TIMEOUT must be positive")
	}
	if c.Waitlist.CodeLength < MinCodeLength {
		return fmt.Errorf("config: REFERRAL_CODE_LENGTH must be at least %d", MinCodeLength)
	}
	if c.Waitlist.RecentLimit <= 0 || c.Waitlist.LeaderboardLimit <= 0 {
		return fmt.Errorf("config: waitlist limits must be positive")
	}

	switch c.Email.Provider {
	case EmailProviderDev, EmailProviderSMTP:
	case EmailProviderMailerSend:
		if c.Email.MailerSendKey == "" {
			return fmt.Errorf("config: MAILERSEND_API_KEY is required when EMAIL_PROVIDER=mailersend")
		}
	default:
		return fmt.Errorf("config: unknown EMAIL_PROVIDER %q", c.Email.Provider)
	}
	return nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return fallback
}

func getBool(key string, fallback bool) bool {
	if value, ok := os.LookupEnv(key); ok {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	if value, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}

func getList(key string, fallback []string) []string {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}
