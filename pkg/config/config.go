package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"contract-flow/pkg/apperr"
)

// Config holds all application configuration
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	LLM      LLMConfig
	Signing  SigningConfig
	DocuSign DocuSignConfig
	Mail     MailConfig
	OCR      OCRConfig
	Log      LogConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port             string
	AppURL           string
	SessionSecret    string
	CORSOrigins      []string
	DefaultUserEmail string
	PolicyFile       string
	MaxUploadBytes   int64
}

// DatabaseConfig holds database-related configuration
type DatabaseConfig struct {
	URL             string
	MaxConns        int32
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
	DialTimeout     time.Duration
}

// LLMConfig holds LLM-related configuration
type LLMConfig struct {
	Provider      string // "openai" or "gemini"
	APIKey        string
	BaseURL       string
	Model         string
	GeminiAPIKey  string
	GeminiModel   string
	Timeout       time.Duration
	RatePerMinute int
}

// SigningConfig controls signature placement
type SigningConfig struct {
	Schema     string // "json" or "block"
	SlotPolicy string // "reuse" or "wrap"
}

// DocuSignConfig holds e-signature provider configuration
type DocuSignConfig struct {
	IntegrationKey string
	UserID         string
	AccountID      string
	PrivateKeyPath string
	AuthHost       string
	BasePath       string
	RedirectURI    string
	Timeout        time.Duration
}

// MailConfig holds SMTP configuration
type MailConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	Timeout  time.Duration
}

// OCRConfig holds Azure Computer Vision configuration
type OCRConfig struct {
	Endpoint string
	APIKey   string
}

// LogConfig holds logger configuration
type LogConfig struct {
	Level  string
	Format string // "json" or "console"
}

// Load reads an optional .env file and then the environment.
func Load() *Config {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()
	return FromEnv()
}

// FromEnv builds the configuration from environment variables only
func FromEnv() *Config {
	return &Config{
		Server: ServerConfig{
			Port:             getEnv("PORT", "8080"),
			AppURL:           strings.TrimRight(getEnv("APP_URL", "http://localhost:8080"), "/"),
			SessionSecret:    getEnv("SESSION_SECRET", ""),
			CORSOrigins:      getEnvAsList("CORS_ORIGINS", []string{"http://localhost:5000"}),
			DefaultUserEmail: getEnv("DEFAULT_USER_EMAIL", "owner@localhost"),
			PolicyFile:       getEnv("POLICY_FILE", ""),
			MaxUploadBytes:   getEnvAsInt64("MAX_UPLOAD_BYTES", 20<<20),
		},
		Database: DatabaseConfig{
			URL:             getEnv("DATABASE_URL", "sqlite://contracts.db"),
			MaxConns:        getEnvAsInt32("DB_MAX_CONNS", 10),
			MaxConnLifetime: getEnvAsDuration("DB_MAX_CONN_LIFETIME", 30*time.Minute),
			MaxConnIdleTime: getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", 5*time.Minute),
			DialTimeout:     getEnvAsDuration("DB_DIAL_TIMEOUT", 5*time.Second),
		},
		LLM: LLMConfig{
			Provider:      strings.ToLower(getEnv("LLM_PROVIDER", "openai")),
			APIKey:        getEnv("OPENAI_API_KEY", ""),
			BaseURL:       getEnv("OPENAI_BASE_URL", ""),
			Model:         getEnv("OPENAI_MODEL", "gpt-4o-mini"),
			GeminiAPIKey:  getEnv("GEMINI_API_KEY", ""),
			GeminiModel:   getEnv("GEMINI_MODEL", "gemini-2.0-flash"),
			Timeout:       getEnvAsDuration("LLM_TIMEOUT", 60*time.Second),
			RatePerMinute: getEnvAsInt("LLM_RATE_PER_MINUTE", 60),
		},
		Signing: SigningConfig{
			Schema:     strings.ToLower(getEnv("SIGNATURE_SCHEMA", "json")),
			SlotPolicy: strings.ToLower(getEnv("SIGNATURE_SLOT_POLICY", "reuse")),
		},
		DocuSign: DocuSignConfig{
			IntegrationKey: getEnv("DOCUSIGN_INTEGRATION_KEY", ""),
			UserID:         getEnv("DOCUSIGN_USER_ID", ""),
			AccountID:      getEnv("DOCUSIGN_ACCOUNT_ID", ""),
			PrivateKeyPath: getEnv("DOCUSIGN_PRIVATE_KEY_PATH", "private.key"),
			AuthHost:       getEnv("DOCUSIGN_AUTH_HOST", "account-d.docusign.com"),
			BasePath:       getEnv("DOCUSIGN_BASE_PATH", "https://demo.docusign.net/restapi"),
			RedirectURI:    getEnv("DOCUSIGN_REDIRECT_URI", ""),
			Timeout:        getEnvAsDuration("DOCUSIGN_TIMEOUT", 30*time.Second),
		},
		Mail: MailConfig{
			Host:     getEnv("SMTP_HOST", "smtp.gmail.com"),
			Port:     getEnvAsInt("SMTP_PORT", 587),
			Username: getEnv("GMAIL_USER", ""),
			Password: getEnv("GMAIL_APP_PASSWORD", ""),
			Timeout:  getEnvAsDuration("SMTP_TIMEOUT", 15*time.Second),
		},
		OCR: OCRConfig{
			Endpoint: getEnv("AZURE_VISION_ENDPOINT", ""),
			APIKey:   getEnv("AZURE_VISION_KEY", ""),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
	}
}

// Validate checks the settings the server cannot start without.
func (c *Config) Validate() error {
	if c.Database.URL == "" {
		return apperr.New("CONFIG_ERROR", "DATABASE_URL is required", apperr.ErrInvalidInput)
	}
	if c.Server.SessionSecret == "" {
		return apperr.New("CONFIG_ERROR", "SESSION_SECRET is required", apperr.ErrInvalidInput)
	}
	switch c.LLM.Provider {
	case "openai", "gemini":
	default:
		return apperr.New("CONFIG_ERROR", "LLM_PROVIDER must be openai or gemini", apperr.ErrInvalidInput)
	}
	switch c.Signing.Schema {
	case "json", "block":
	default:
		return apperr.New("CONFIG_ERROR", "SIGNATURE_SCHEMA must be json or block", apperr.ErrInvalidInput)
	}
	switch c.Signing.SlotPolicy {
	case "reuse", "wrap":
	default:
		return apperr.New("CONFIG_ERROR", "SIGNATURE_SLOT_POLICY must be reuse or wrap", apperr.ErrInvalidInput)
	}
	return nil
}

// OCREnabled reports whether image uploads can be sent to Azure.
func (c *Config) OCREnabled() bool {
	return c.OCR.Endpoint != "" && c.OCR.APIKey != ""
}

// Request is the configuration a single HTTP request runs with: the process-wide
// settings plus any keys the caller stored in its session.
type Request struct {
	LLM      LLMConfig
	DocuSign DocuSignConfig
}

// ForRequest derives a per-request configuration. Empty overrides keep the defaults.
func (c *Config) ForRequest(llmKey, docuSignKey string) Request {
	rc := Request{LLM: c.LLM, DocuSign: c.DocuSign}
	if llmKey = strings.TrimSpace(llmKey); llmKey != "" {
		if rc.LLM.Provider == "gemini" {
			rc.LLM.GeminiAPIKey = llmKey
		} else {
			rc.LLM.APIKey = llmKey
		}
	}
	if docuSignKey = strings.TrimSpace(docuSignKey); docuSignKey != "" {
		rc.DocuSign.IntegrationKey = docuSignKey
	}
	return rc
}

// ErrDocuSignNotConfigured is returned when an envelope is requested without credentials.
var ErrDocuSignNotConfigured = errors.New("docusign is not configured")

// CheckDocuSign verifies the settings needed for the JWT grant.
func (d DocuSignConfig) CheckDocuSign() error {
	if d.IntegrationKey == "" || d.UserID == "" || d.AccountID == "" || d.PrivateKeyPath == "" {
		return ErrDocuSignNotConfigured
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsInt32(key string, defaultValue int32) int32 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 32); err == nil {
			return int32(intVal)
		}
	}
	return defaultValue
}

func getEnvAsInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getEnvAsList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
