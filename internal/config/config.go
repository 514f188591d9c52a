package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"

	"biopaper-tutor/internal/domain"
)

// Backends soportados para el store de conversaciones.
const (
	StoreMongo    = "mongo"
	StorePostgres = "postgres"
	StoreMemory   = "memory"
)

// Config centraliza la configuración del servicio.
type Config struct {
	HTTPPort   string `env:"HTTP_PORT" envDefault:"8080"`
	AppBaseURL string `env:"APP_BASE_URL" envDefault:"http://localhost:8080"`
	AppEnv     string `env:"APP_ENV" envDefault:"development"`

	SessionSecret   string `env:"SESSION_SECRET,required,notEmpty"`
	SessionTTLHours int    `env:"SESSION_TTL_HOURS" envDefault:"168"`

	OAuthBaseURL      string   `env:"OAUTH_BASE_URL" envDefault:"https://www.opensii.ai"`
	OAuthClientID     string   `env:"OAUTH_CLIENT_ID"`
	OAuthClientSecret string   `env:"OAUTH_CLIENT_SECRET"`
	OAuthPreauthKey   string   `env:"OAUTH_PREAUTH_KEY"`
	OAuthScopes       []string `env:"OAUTH_SCOPES" envSeparator:"," envDefault:"read,write"`
	OAuthVerifyState  bool     `env:"OAUTH_VERIFY_STATE" envDefault:"false"`

	LLMAPIKey      string  `env:"LLM_API_KEY"`
	LLMBaseURL     string  `env:"LLM_BASE_URL" envDefault:"https://openrouter.ai/api/v1"`
	LLMModel       string  `env:"LLM_MODEL" envDefault:"anthropic/claude-3.5-sonnet"`
	LLMTemperature float32 `env:"LLM_TEMPERATURE" envDefault:"0.7"`
	LLMMaxTokens   int     `env:"LLM_MAX_TOKENS" envDefault:"4000"`
	LLMMock        bool    `env:"LLM_MOCK" envDefault:"false"`

	ConversationStore string `env:"CONVERSATION_STORE" envDefault:"mongo"`
	MongoURI          string `env:"MONGODB_URI"`
	MongoDatabase     string `env:"MONGODB_DATABASE" envDefault:"biopaper"`
	DatabaseURL       string `env:"DATABASE_URL"`

	RedisAddr     string `env:"REDIS_ADDR"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`

	PDFMaxBytes int64 `env:"PDF_MAX_BYTES" envDefault:"20971520"`
}

// LoadConfig carga la configuración desde variables de entorno.
func LoadConfig() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate revisa combinaciones que env no puede expresar con tags.
func (c *Config) Validate() error {
	c.ConversationStore = strings.ToLower(strings.TrimSpace(c.ConversationStore))
	switch c.ConversationStore {
	case StoreMongo:
		if c.MongoURI == "" {
			return domain.Configuration("config: MONGODB_URI is required when CONVERSATION_STORE=mongo")
		}
	case StorePostgres:
		if c.DatabaseURL == "" {
			return domain.Configuration("config: DATABASE_URL is required when CONVERSATION_STORE=postgres")
		}
	case StoreMemory:
	default:
		return domain.Configuration(fmt.Sprintf("config: unknown CONVERSATION_STORE %q", c.ConversationStore))
	}
	if !c.LLMMock && c.LLMAPIKey == "" {
		return domain.Configuration("config: LLM_API_KEY is required unless LLM_MOCK=true")
	}
	if c.SessionTTLHours <= 0 {
		return domain.Configuration("config: SESSION_TTL_HOURS must be positive")
	}
	return nil
}

// IsProduction indica si las cookies deben marcarse Secure.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.AppEnv, "production")
}

func (c *Config) SessionTTL() time.Duration {
	return time.Duration(c.SessionTTLHours) * time.Hour
}

// RedirectURI es la URI registrada en el proveedor OAuth.
func (c *Config) RedirectURI() string {
	return strings.TrimRight(c.AppBaseURL, "/") + "/api/auth/callback/oauth"
}
