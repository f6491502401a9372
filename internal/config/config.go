package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	AppHost  string `env:"APP_HOST" envDefault:"0.0.0.0"`
	HTTPPort string
	AppEnv   string `env:"APP_ENV" envDefault:"development"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	DiscordToken   string   `env:"DISCORD_BOT_TOKEN"`
	GuildID        string   `env:"DISCORD_GUILD_ID"`
	WebsiteURL     string   `env:"WEBSITE_URL"`
	APISecret      string   `env:"BOT_API_SECRET"`
	AdminIDs       []string `env:"ADMIN_IDS" envSeparator:","`
	CustomerRoleID string   `env:"CUSTOMER_ROLE_ID"`
	TicketCategory string   `env:"TICKET_CATEGORY" envDefault:"TICKETS"`

	PollInterval      time.Duration `env:"POLL_INTERVAL" envDefault:"5s"`
	PollRetryAttempts uint64        `env:"POLL_RETRY_ATTEMPTS" envDefault:"2"`
	HTTPTimeout       time.Duration `env:"HTTP_TIMEOUT" envDefault:"10s"`
	CloseGracePeriod  time.Duration `env:"CLOSE_GRACE_PERIOD" envDefault:"5s"`

	// MemberCacheTTL > 0 — свежий результат проверки отвечает без запроса к серверу.
	// Ноль — каждая проверка живая.
	MemberCacheTTL time.Duration `env:"MEMBER_CACHE_TTL" envDefault:"0s"`

	// RedisURL — если задан, кэш проверок участников общий для всех инстансов.
	RedisURL string `env:"REDIS_URL"`

	KafkaBrokers     []string `env:"KAFKA_BROKERS" envSeparator:","`
	KafkaTopicTicket string   `env:"KAFKA_TOPIC_TICKET"`

	// DB хранит реестр тикетов. Пустой Host — реестр только в памяти.
	DB struct {
		Host     string `env:"DB_HOST"`
		Port     string `env:"DB_PORT" envDefault:"5432"`
		User     string `env:"DB_USER" envDefault:"postgres"`
		Password string `env:"DB_PASSWORD"`
		Database string `env:"DB_DATABASE" envDefault:"ticket_bot"`
		SSLMode  string `env:"DB_SSLMODE" envDefault:"disable"`
	}
}

func Load() (*Config, error) {
	_ = godotenv.Load(".env")
	_ = godotenv.Load("../.env")

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	cfg.HTTPPort = firstEnv("PORT", "BOT_PORT", "3001")
	cfg.WebsiteURL = strings.TrimRight(cfg.WebsiteURL, "/")
	cfg.AdminIDs = compact(cfg.AdminIDs)
	cfg.KafkaBrokers = compact(cfg.KafkaBrokers)
	return cfg, nil
}

func (c *Config) Validate() error {
	var missing []string
	if c.DiscordToken == "" {
		missing = append(missing, "DISCORD_BOT_TOKEN")
	}
	if c.GuildID == "" {
		missing = append(missing, "DISCORD_GUILD_ID")
	}
	if c.WebsiteURL == "" {
		missing = append(missing, "WEBSITE_URL")
	}
	if c.APISecret == "" {
		missing = append(missing, "BOT_API_SECRET")
	}
	if len(c.AdminIDs) == 0 {
		missing = append(missing, "ADMIN_IDS")
	}
	if len(missing) > 0 {
		return fmt.Errorf("config: missing required %s", strings.Join(missing, ", "))
	}
	u, err := url.Parse(c.WebsiteURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("config: WEBSITE_URL must be an absolute http(s) url, got %q", c.WebsiteURL)
	}
	if c.PollInterval <= 0 {
		return errors.New("config: POLL_INTERVAL must be positive")
	}
	if c.CloseGracePeriod < 0 {
		return errors.New("config: CLOSE_GRACE_PERIOD must not be negative")
	}
	if c.AppEnv == "production" && c.DB.Host != "" && c.DB.Password == "" {
		return errors.New("config: in production DB_PASSWORD is required")
	}
	return nil
}

// PersistenceEnabled сообщает, хранится ли реестр тикетов в Postgres.
func (c *Config) PersistenceEnabled() bool {
	return c.DB.Host != ""
}

func (c *Config) DSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.DB.Host, c.DB.Port, c.DB.User, c.DB.Password, c.DB.Database, c.DB.SSLMode)
}

func (c *Config) DatabaseURL() string {
	pass := url.QueryEscape(c.DB.Password)
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.DB.User, pass, c.DB.Host, c.DB.Port, c.DB.Database, c.DB.SSLMode)
}

func (c *Config) Addr() string {
	return c.AppHost + ":" + c.HTTPPort
}

func firstEnv(keysAndDef ...string) string {
	if len(keysAndDef) == 0 {
		return ""
	}
	def := keysAndDef[len(keysAndDef)-1]
	for _, k := range keysAndDef[:len(keysAndDef)-1] {
		if v := os.Getenv(k); v != "" {
			return v
		}
	}
	return def
}

func compact(in []string) []string {
	var out []string
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
