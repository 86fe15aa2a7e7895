package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromEnvDefaults(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("SIGNATURE_SCHEMA", "")
	t.Setenv("LLM_TIMEOUT", "")

	cfg := FromEnv()

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "json", cfg.Signing.Schema)
	assert.Equal(t, "reuse", cfg.Signing.SlotPolicy)
	assert.Equal(t, 60*time.Second, cfg.LLM.Timeout)
	assert.Equal(t, "account-d.docusign.com", cfg.DocuSign.AuthHost)
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("LLM_TIMEOUT", "5s")
	t.Setenv("CORS_ORIGINS", "https://a.example, https://b.example")
	t.Setenv("SMTP_PORT", "not-a-number")

	cfg := FromEnv()

	assert.Equal(t, "9090", cfg.Server.Port)
	assert.Equal(t, 5*time.Second, cfg.LLM.Timeout)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Server.CORSOrigins)
	assert.Equal(t, 587, cfg.Mail.Port)
}

func TestValidate(t *testing.T) {
	cfg := FromEnv()
	cfg.Server.SessionSecret = "secret"
	require.NoError(t, cfg.Validate())

	cfg.Signing.Schema = "xml"
	assert.Error(t, cfg.Validate())

	cfg.Signing.Schema = "block"
	cfg.Server.SessionSecret = ""
	assert.Error(t, cfg.Validate())
}

func TestForRequest(t *testing.T) {
	cfg := FromEnv()
	cfg.LLM.Provider = "openai"
	cfg.LLM.APIKey = "base"
	cfg.DocuSign.IntegrationKey = "ik"

	rc := cfg.ForRequest("", "  ")
	assert.Equal(t, "base", rc.LLM.APIKey)
	assert.Equal(t, "ik", rc.DocuSign.IntegrationKey)

	rc = cfg.ForRequest("session-key", "session-ik")
	assert.Equal(t, "session-key", rc.LLM.APIKey)
	assert.Equal(t, "session-ik", rc.DocuSign.IntegrationKey)
	assert.Equal(t, "base", cfg.LLM.APIKey, "base config must not change")

	cfg.LLM.Provider = "gemini"
	rc = cfg.ForRequest("g-key", "")
	assert.Equal(t, "g-key", rc.LLM.GeminiAPIKey)
}
