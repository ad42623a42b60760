package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	// this will automatically load your .env file:
	_ "github.com/joho/godotenv/autoload"
)

const DefaultFreeMonthlyLimit = 20

type Config struct {
	Logs     LogConfig
	Server   ServerConfig
	DB       PostgresConfig
	Auth     AuthConfig
	OpenAI   OpenAIConfig
	Stripe   StripeConfig
	Quota    QuotaConfig
	QueueURL string
}

type LogConfig struct {
	Style string // "text" or "json"
	Level string
}

type ServerConfig struct {
	Port        string
	CORSOrigins []string
}

type PostgresConfig struct {
	Username string
	Password string
	URL      string
	Port     string
	Name     string
	SSLMode  string
}

// DSN builds a lib/pq connection string.
func (c PostgresConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.Username,
		c.Password,
		c.URL,
		c.Port,
		c.Name,
		c.SSLMode,
	)
}

type AuthConfig struct {
	JWTSecret string
	TokenTTL  time.Duration
	Issuer    string

	// Optional external identity provider (RS256 via JWKS).
	JWKSURL    string
	JWKSIssuer string
	Audience   string
}

type OpenAIConfig struct {
	APIKey             string
	BaseURL            string
	TranscriptionModel string
	GenerationModel    string
	MaxTokens          int
}

type StripeConfig struct {
	SecretKey         string
	WebhookSecret     string
	PriceIDProMonthly string
	FrontendURL       string
}

type QuotaConfig struct {
	FreeMonthlyLimit int
}

func newViper() *viper.Viper {
	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("PORT", "1234")
	v.SetDefault("CORS_ORIGINS", "http://localhost:5173")
	v.SetDefault("LOG_STYLE", "text")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("POSTGRES_PORT", "5432")
	v.SetDefault("POSTGRES_DB", "syntaxvoice")
	v.SetDefault("POSTGRES_SSLMODE", "disable")
	v.SetDefault("JWT_TTL", "168h")
	v.SetDefault("JWT_ISSUER", "syntaxvoice")
	v.SetDefault("TRANSCRIPTION_MODEL", "whisper-1")
	v.SetDefault("GENERATION_MODEL", "gpt-4")
	v.SetDefault("GENERATION_MAX_TOKENS", 1000)
	v.SetDefault("FREE_MONTHLY_LIMIT", DefaultFreeMonthlyLimit)
	return v
}

// LoadConfig reads the process environment (after .env autoload) into a Config.
func LoadConfig() (*Config, error) {
	v := newViper()

	cfg := &Config{
		QueueURL: v.GetString("QUEUE_URL"),
		Logs: LogConfig{
			Style: v.GetString("LOG_STYLE"),
			Level: v.GetString("LOG_LEVEL"),
		},
		Server: ServerConfig{
			Port:        v.GetString("PORT"),
			CORSOrigins: splitList(v.GetString("CORS_ORIGINS")),
		},
		DB: PostgresConfig{
			Username: v.GetString("POSTGRES_USER"),
			Password: v.GetString("POSTGRES_PWD"),
			URL:      v.GetString("POSTGRES_URL"),
			Port:     v.GetString("POSTGRES_PORT"),
			Name:     v.GetString("POSTGRES_DB"),
			SSLMode:  v.GetString("POSTGRES_SSLMODE"),
		},
		Auth: AuthConfig{
			JWTSecret:  v.GetString("JWT_SECRET"),
			TokenTTL:   v.GetDuration("JWT_TTL"),
			Issuer:     v.GetString("JWT_ISSUER"),
			JWKSURL:    v.GetString("AUTH_JWKS_URL"),
			JWKSIssuer: v.GetString("AUTH_JWKS_ISSUER"),
			Audience:   v.GetString("AUTH_AUDIENCE"),
		},
		OpenAI: OpenAIConfig{
			APIKey:             v.GetString("OPENAI_API_KEY"),
			BaseURL:            v.GetString("OPENAI_BASE_URL"),
			TranscriptionModel: v.GetString("TRANSCRIPTION_MODEL"),
			GenerationModel:    v.GetString("GENERATION_MODEL"),
			MaxTokens:          v.GetInt("GENERATION_MAX_TOKENS"),
		},
		Stripe: StripeConfig{
			SecretKey:         v.GetString("STRIPE_SECRET_KEY"),
			WebhookSecret:     v.GetString("STRIPE_WEBHOOK_SECRET"),
			PriceIDProMonthly: v.GetString("STRIPE_PRICE_ID_PRO_MONTHLY"),
			FrontendURL:       v.GetString("FRONTEND_URL"),
		},
		Quota: QuotaConfig{
			FreeMonthlyLimit: v.GetInt("FREE_MONTHLY_LIMIT"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the settings the server cannot start without.
func (c *Config) Validate() error {
	if c.Quota.FreeMonthlyLimit <= 0 {
		return fmt.Errorf("FREE_MONTHLY_LIMIT must be a positive integer, got %d", c.Quota.FreeMonthlyLimit)
	}
	if c.Auth.JWTSecret == "" {
		return errors.New("JWT_SECRET must be set")
	}
	if c.Auth.TokenTTL <= 0 {
		return errors.New("JWT_TTL must be a positive duration")
	}
	if c.Auth.JWKSURL != "" && (c.Auth.JWKSIssuer == "" || c.Auth.Audience == "") {
		return errors.New("AUTH_JWKS_ISSUER and AUTH_AUDIENCE must be set with AUTH_JWKS_URL")
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
