package esign

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"encoding/pem"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"contract-flow/pkg/config"
	"contract-flow/pkg/signing"
)

type fakeDocuSign struct {
	t           *testing.T
	key         *rsa.PrivateKey
	tokenCalls  atomic.Int32
	envCalls    atomic.Int32
	envStatus   int
	envResponse string
	lastDef     envelopeDefinition
	lastAuth    string
}

func (f *fakeDocuSign) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth/token", func(w http.ResponseWriter, r *http.Request) {
		n := f.tokenCalls.Add(1)
		assert.NoError(f.t, r.ParseForm())
		assert.Equal(f.t, jwtGrantType, r.PostForm.Get("grant_type"))

		claims := jwt.MapClaims{}
		_, err := jwt.ParseWithClaims(r.PostForm.Get("assertion"), claims, func(tok *jwt.Token) (any, error) {
			return &f.key.PublicKey, nil
		}, jwt.WithoutClaimsValidation())
		assert.NoError(f.t, err)
		assert.Equal(f.t, "ik", claims["iss"])
		assert.Equal(f.t, "user-guid", claims["sub"])
		assert.Equal(f.t, Scope, claims["scope"])
		assert.Equal(f.t, float64(3600), claims["exp"].(float64)-claims["iat"].(float64))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"tok-` + string(rune('0'+n)) + `","token_type":"Bearer","expires_in":3600}`))
	})
	mux.HandleFunc("/restapi/v2.1/accounts/acc-1/envelopes", func(w http.ResponseWriter, r *http.Request) {
		f.envCalls.Add(1)
		f.lastAuth = r.Header.Get("Authorization")
		assert.NoError(f.t, json.NewDecoder(r.Body).Decode(&f.lastDef))
		status := f.envStatus
		if status == 0 {
			status = http.StatusCreated
		}
		w.WriteHeader(status)
		_, _ = w.Write([]byte(f.envResponse))
	})
	return mux
}

func newFixture(t *testing.T) (*fakeDocuSign, *Client, config.DocuSignConfig) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	pemBytes := pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(key)})

	fake := &fakeDocuSign{t: t, key: key, envResponse: `{"envelopeId":"env-42","status":"sent"}`}
	srv := httptest.NewServer(fake.handler())
	t.Cleanup(srv.Close)

	client := New(zap.NewNop())
	client.readFile = func(string) ([]byte, error) { return pemBytes, nil }

	cfg := config.DocuSignConfig{
		IntegrationKey: "ik",
		UserID:         "user-guid",
		AccountID:      "acc-1",
		PrivateKeyPath: "private.key",
		AuthHost:       srv.URL,
		BasePath:       srv.URL + "/restapi",
		Timeout:        5 * time.Second,
	}
	return fake, client, cfg
}

func testEnvelope() signing.Envelope {
	signers := signing.Assign([]signing.Signer{{Email: "ann@example.com", Name: "Ann"}}, []signing.Placement{{
		Position:         signing.DefaultPlacements()[0].Position,
		AdditionalFields: []string{"Date"},
	}}, signing.SlotReuse)
	return signing.Envelope{
		Subject:      signing.DefaultSubject,
		DocumentName: signing.DefaultDocumentName,
		Document:     []byte("%PDF-1.3"),
		Signers:      signers,
		Status:       signing.StatusSent,
	}
}

func TestCreateEnvelope(t *testing.T) {
	fake, client, cfg := newFixture(t)

	id, err := client.CreateEnvelope(context.Background(), cfg, testEnvelope())
	require.NoError(t, err)
	assert.Equal(t, "env-42", id)
	assert.Equal(t, "Bearer tok-1", fake.lastAuth)

	def := fake.lastDef
	assert.Equal(t, "Please sign this document", def.EmailSubject)
	assert.Equal(t, "sent", def.Status)
	require.Len(t, def.Documents, 1)
	assert.Equal(t, "Contract.pdf", def.Documents[0].Name)
	assert.Equal(t, base64.StdEncoding.EncodeToString([]byte("%PDF-1.3")), def.Documents[0].DocumentBase64)

	require.Len(t, def.Recipients.Signers, 1)
	s := def.Recipients.Signers[0]
	assert.Equal(t, "1", s.RecipientID)
	assert.Equal(t, "1", s.RoutingOrder)
	assert.Equal(t, signHere{DocumentID: "1", PageNumber: "1", RecipientID: "1", XPosition: "50", YPosition: "650"}, s.Tabs.SignHereTabs[0])
	require.Len(t, s.Tabs.TextTabs, 2)
	assert.Equal(t, "Ann", s.Tabs.TextTabs[0].Value)
	assert.Equal(t, "70", s.Tabs.TextTabs[0].XPosition)
	assert.Equal(t, "620", s.Tabs.TextTabs[0].YPosition)
	assert.Equal(t, "date", s.Tabs.TextTabs[1].TabLabel)
	assert.Equal(t, "680", s.Tabs.TextTabs[1].YPosition)
	assert.Equal(t, "200", s.Tabs.TextTabs[1].Width)
}

func TestTokenIsCached(t *testing.T) {
	fake, client, cfg := newFixture(t)

	for i := 0; i < 3; i++ {
		_, err := client.CreateEnvelope(context.Background(), cfg, testEnvelope())
		require.NoError(t, err)
	}
	assert.EqualValues(t, 1, fake.tokenCalls.Load())
	assert.EqualValues(t, 3, fake.envCalls.Load())
}

func TestUnauthorizedInvalidatesTokenWithoutRetry(t *testing.T) {
	fake, client, cfg := newFixture(t)
	fake.envStatus = http.StatusUnauthorized
	fake.envResponse = `{"errorCode":"AUTHORIZATION_INVALID_TOKEN","message":"The access token provided is expired, revoked or malformed."}`

	_, err := client.CreateEnvelope(context.Background(), cfg, testEnvelope())
	var de *DispatchError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, http.StatusUnauthorized, de.StatusCode)
	assert.Equal(t, "AUTHORIZATION_INVALID_TOKEN", de.Code)
	assert.EqualValues(t, 1, fake.envCalls.Load())

	fake.envStatus = 0
	fake.envResponse = `{"envelopeId":"env-43"}`
	id, err := client.CreateEnvelope(context.Background(), cfg, testEnvelope())
	require.NoError(t, err)
	assert.Equal(t, "env-43", id)
	assert.EqualValues(t, 2, fake.tokenCalls.Load())
	assert.Equal(t, "Bearer tok-2", fake.lastAuth)
}

func TestDispatchErrorWithoutJSON(t *testing.T) {
	fake, client, cfg := newFixture(t)
	fake.envStatus = http.StatusBadGateway
	fake.envResponse = "upstream down"

	_, err := client.CreateEnvelope(context.Background(), cfg, testEnvelope())
	var de *DispatchError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, "upstream down", de.Message)
	assert.Contains(t, de.Error(), "502")
}

func TestPerKeyTokenCache(t *testing.T) {
	fake, client, cfg := newFixture(t)

	_, err := client.Token(cfg)
	require.NoError(t, err)
	_, err = client.Token(cfg)
	require.NoError(t, err)
	assert.EqualValues(t, 1, fake.tokenCalls.Load())

	client.invalidate(cfg)
	_, err = client.Token(cfg)
	require.NoError(t, err)
	assert.EqualValues(t, 2, fake.tokenCalls.Load())
}

func TestTokenSourcesAreBounded(t *testing.T) {
	fake, client, cfg := newFixture(t)

	for i := 0; i < 3*maxSources; i++ {
		override := cfg
		override.PrivateKeyPath = fmt.Sprintf("session-%d.key", i)
		_, err := client.tokenSource(override)
		require.NoError(t, err)
		assert.LessOrEqual(t, client.sources.Len(), maxSources)
	}
	assert.EqualValues(t, 0, fake.tokenCalls.Load())

	_, ok := client.sources.Get(sourceKey(cfg))
	assert.False(t, ok)
	_, err := client.Token(cfg)
	require.NoError(t, err)
	assert.EqualValues(t, 1, fake.tokenCalls.Load())
}

func TestNotConfigured(t *testing.T) {
	client := New(zap.NewNop())
	_, err := client.CreateEnvelope(context.Background(), config.DocuSignConfig{}, testEnvelope())
	assert.ErrorIs(t, err, config.ErrDocuSignNotConfigured)
}

func TestConsentURL(t *testing.T) {
	u := ConsentURL(config.DocuSignConfig{IntegrationKey: "ik", AuthHost: "account-d.docusign.com", RedirectURI: "https://app.example/callback"})
	assert.True(t, strings.HasPrefix(u, "https://account-d.docusign.com/oauth/auth?"))
	assert.Contains(t, u, "client_id=ik")
	assert.Contains(t, u, "scope=signature+impersonation")
	assert.Contains(t, u, "redirect_uri=https%3A%2F%2Fapp.example%2Fcallback")
}

func TestAuthURI(t *testing.T) {
	assert.Equal(t, "https://account-d.docusign.com/oauth/auth", AuthURI("account-d.docusign.com"))
	assert.Equal(t, "https://account.docusign.com/oauth/auth", AuthURI("https://account.docusign.com/"))
	assert.Equal(t, "http://127.0.0.1:8080/oauth/auth", AuthURI("http://127.0.0.1:8080"))
}
