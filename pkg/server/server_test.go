package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"contract-flow/pkg/config"
	"contract-flow/pkg/database"
	"contract-flow/pkg/llm"
	"contract-flow/pkg/mailer"
	"contract-flow/pkg/pdfdoc"
	"contract-flow/pkg/services/analysis"
	"contract-flow/pkg/services/contracts"
	"contract-flow/pkg/services/extract"
	"contract-flow/pkg/services/policy"
	"contract-flow/pkg/signing"
)

type fakeLLM struct{ reply string }

func (f *fakeLLM) Complete(context.Context, llm.Request) (string, error) { return f.reply, nil }

type fakeSource struct{ client llm.Client }

func (f fakeSource) For(context.Context, config.LLMConfig) (llm.Client, error) { return f.client, nil }

type fakeProvider struct {
	calls []signing.Envelope
	keys  []string
}

func (f *fakeProvider) CreateEnvelope(_ context.Context, cfg config.DocuSignConfig, env signing.Envelope) (string, error) {
	f.calls = append(f.calls, env)
	f.keys = append(f.keys, cfg.IntegrationKey)
	return "env-123", nil
}

type harness struct {
	srv      *Server
	llm      *fakeLLM
	provider *fakeProvider
	mail     *mailer.Recorder
	cookies  []*http.Cookie
}

func init() {
	gin.SetMode(gin.TestMode)
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	ctx := context.Background()
	url := fmt.Sprintf("sqlite://file:%s?mode=memory&cache=shared", uuid.NewString())
	db, closeFn, err := database.Open(ctx, config.DatabaseConfig{URL: url}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(closeFn)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, database.Migrate(db))

	cfg := config.FromEnv()
	cfg.Server.SessionSecret = "test-secret"
	cfg.Server.CORSOrigins = []string{"http://localhost:5000"}
	cfg.Server.DefaultUserEmail = "owner@example.com"
	cfg.Server.AppURL = "http://app.test"
	cfg.DocuSign.IntegrationKey = "base-ik"
	cfg.DocuSign.AuthHost = "https://account-d.docusign.com"

	h := &harness{llm: &fakeLLM{}, provider: &fakeProvider{}, mail: &mailer.Recorder{}}
	llms := fakeSource{client: h.llm}
	pdf := pdfdoc.NewExtractor()
	h.srv = New(Deps{
		Config:    cfg,
		DB:        db,
		Extract:   extract.NewService(pdf, nil, zap.NewNop()),
		Analysis:  analysis.NewService(llms, zap.NewNop()),
		Policy:    policy.New(policy.Default()),
		Signing:   signing.NewService(signing.RendererFunc(pdfdoc.Render), pdf, h.provider, llms, cfg.Signing, zap.NewNop()),
		Contracts: contracts.NewService(db, h.mail, cfg.Server.AppURL, zap.NewNop()),
		Logger:    zap.NewNop(),
	})
	return h
}

func (h *harness) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var r *http.Request
	if body == nil {
		r = httptest.NewRequest(method, path, nil)
	} else {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		r = httptest.NewRequest(method, path, bytes.NewReader(b))
		r.Header.Set("Content-Type", "application/json")
	}
	for _, c := range h.cookies {
		r.AddCookie(c)
	}
	w := httptest.NewRecorder()
	h.srv.Handler().ServeHTTP(w, r)
	if cs := w.Result().Cookies(); len(cs) > 0 {
		h.cookies = cs
	}
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func TestHealthAndRequestID(t *testing.T) {
	h := newHarness(t)
	w := h.do(t, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get(headerRequestID))

	r := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	r.Header.Set(headerRequestID, "abc")
	w = httptest.NewRecorder()
	h.srv.Handler().ServeHTTP(w, r)
	assert.Equal(t, "abc", w.Header().Get(headerRequestID))
}

func TestSettingsOverrideDocuSignKey(t *testing.T) {
	h := newHarness(t)

	cfg := decode[map[string]any](t, h.do(t, http.MethodGet, "/api/auth/docusign-config", nil))
	assert.Equal(t, "base-ik", cfg["clientId"])
	assert.Equal(t, "https://account-d.docusign.com/oauth/auth", cfg["authUri"])
	assert.Contains(t, cfg["consentUrl"], "client_id=base-ik")

	w := h.do(t, http.MethodPost, "/api/settings", map[string]string{"docusignKey": "session-ik"})
	require.Equal(t, http.StatusOK, w.Code)
	require.NotEmpty(t, h.cookies)

	cfg = decode[map[string]any](t, h.do(t, http.MethodGet, "/api/auth/docusign-config", nil))
	assert.Equal(t, "session-ik", cfg["clientId"])

	w = h.do(t, http.MethodPost, "/api/send", map[string]any{
		"contract": "Agreement text",
		"signers":  []map[string]string{{"email": "a@example.com", "name": "A"}},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, []string{"session-ik"}, h.provider.keys)
}

func TestFrontEndRouteAliases(t *testing.T) {
	h := newHarness(t)

	w := h.do(t, http.MethodPost, "/api/settings/save", map[string]string{"docusignKey": "alias-ik"})
	require.Equal(t, http.StatusOK, w.Code)
	cfg := decode[map[string]any](t, h.do(t, http.MethodGet, "/api/auth/docusign-config", nil))
	assert.Equal(t, "alias-ik", cfg["clientId"])

	h.llm.reply = `[{"role": "Tenant", "anchor_text": "By:", "context": "By: ____", "is_primary": true}]`
	w = h.do(t, http.MethodPost, "/api/analyze-signature-positions", map[string]string{"contract_text": "By: ____"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	locs := decode[map[string]any](t, w)["locations"].([]any)
	require.Len(t, locs, 1)
	assert.Equal(t, "Tenant", locs[0].(map[string]any)["role"])

	w = h.do(t, http.MethodPost, "/api/contracts", map[string]string{"title": "Lease", "content": "terms"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	id := decode[map[string]any](t, w)["id"].(string)
	w = h.do(t, http.MethodPost, "/api/contracts/"+id+"/invitations", map[string]string{"email": "sam@example.com", "role": "viewer"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	require.Len(t, h.mail.Sent, 1)
	body := h.mail.Sent[0].Body
	link := strings.Fields(body[strings.Index(body, "http://app.test/invitations/"):])[0]
	token := strings.TrimSuffix(strings.TrimPrefix(link, "http://app.test/invitations/"), "/accept")

	w = h.do(t, http.MethodGet, "/docusign/accept-invitation/"+token, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Invitation Accepted!")

	w = h.do(t, http.MethodGet, "/docusign/accept-invitation/"+token, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestUpload(t *testing.T) {
	h := newHarness(t)

	upload := func(path, name string, data []byte) *httptest.ResponseRecorder {
		var buf bytes.Buffer
		mw := multipart.NewWriter(&buf)
		fw, err := mw.CreateFormFile("file", name)
		require.NoError(t, err)
		_, err = fw.Write(data)
		require.NoError(t, err)
		require.NoError(t, mw.Close())
		r := httptest.NewRequest(http.MethodPost, path, &buf)
		r.Header.Set("Content-Type", mw.FormDataContentType())
		w := httptest.NewRecorder()
		h.srv.Handler().ServeHTTP(w, r)
		return w
	}

	w := upload("/api/upload", "contract.txt", []byte("  Plain agreement  "))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "Plain agreement", decode[map[string]string](t, w)["content"])

	pdf, err := pdfdoc.Render("Rendered agreement")
	require.NoError(t, err)
	w = upload("/api/contracts/upload", "contract.pdf", pdf)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "Rendered agreement", decode[map[string]string](t, w)["text"])

	w = upload("/api/upload", "contract.exe", []byte("MZ"))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = h.do(t, http.MethodPost, "/api/upload", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "No file provided", decode[map[string]string](t, w)["error"])
}

func TestAnalyzeEndpoints(t *testing.T) {
	h := newHarness(t)

	h.llm.reply = "SECTION: Payment\n- Fee: monthly"
	w := h.do(t, http.MethodPost, "/api/analyze", map[string]string{"content": "text"})
	require.Equal(t, http.StatusOK, w.Code)
	body := decode[map[string]any](t, w)
	assert.Equal(t, true, body["success"])
	assert.Len(t, body["sections"], 1)

	h.llm.reply = "not json"
	w = h.do(t, http.MethodPost, "/api/analyze/risks", map[string]string{"content": "text"})
	require.Equal(t, http.StatusOK, w.Code)
	risks := decode[map[string]any](t, w)
	assert.Equal(t, float64(0), risks["overall_risk_score"])
	assert.Contains(t, risks["error"], "Failed to analyze risks")

	w = h.do(t, http.MethodPost, "/api/analyze/compliance", map[string]string{"content": "This has automatic renewal."})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, false, decode[map[string]any](t, w)["compliant"])

	h.llm.reply = "Rewritten."
	w = h.do(t, http.MethodPost, "/api/rewrite", map[string]string{"content": "text", "instructions": "shorter"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Rewritten.", decode[map[string]any](t, w)["rewritten"])

	w = h.do(t, http.MethodPost, "/api/analyze", map[string]string{"content": ""})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "INVALID_INPUT", decode[map[string]string](t, w)["code"])

	h.llm.reply = `[{"role": "Client", "anchor_text": "By:", "context": "By: ____", "additional_fields": ["Date"], "is_primary": true}]`
	w = h.do(t, http.MethodPost, "/api/analyze/signature-positions", map[string]string{"contract_text": "By: ____"})
	require.Equal(t, http.StatusOK, w.Code)
	locs := decode[map[string]any](t, w)["locations"].([]any)
	require.Len(t, locs, 1)
	assert.Equal(t, "Client", locs[0].(map[string]any)["role"])
}

func TestSend(t *testing.T) {
	h := newHarness(t)

	created := decode[map[string]any](t, h.do(t, http.MethodPost, "/api/contracts", map[string]string{"title": "MSA", "content": "Agreement"}))
	id := created["id"].(string)

	w := h.do(t, http.MethodPost, "/api/send", map[string]any{
		"contract":    "Agreement",
		"contract_id": id,
		"signers": []map[string]string{
			{"email": "a@example.com", "name": "A"},
			{"email": "b@example.com", "name": "B"},
			{"email": "c@example.com", "name": "C"},
		},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body := decode[map[string]any](t, w)
	assert.Equal(t, "env-123", body["envelope_id"])
	assert.Equal(t, "Contract sent successfully to 3 signers", body["message"])

	require.Len(t, h.provider.calls, 1)
	env := h.provider.calls[0]
	require.Len(t, env.Signers, 3)
	assert.Equal(t, 350, env.Signers[2].SignHere.X, "third signer reuses the last default slot")

	got := decode[map[string]any](t, h.do(t, http.MethodGet, "/api/contracts/"+id, nil))
	assert.Equal(t, "env-123", got["envelope_id"])

	w = h.do(t, http.MethodPost, "/api/send", map[string]any{"contract": "x"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Len(t, h.provider.calls, 1)
}

func TestContractCollaborationFlow(t *testing.T) {
	h := newHarness(t)

	w := h.do(t, http.MethodPost, "/api/contracts", map[string]string{"title": "NDA", "content": "a\nb"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	id := decode[map[string]any](t, w)["id"].(string)

	w = h.do(t, http.MethodPost, "/api/contracts/"+id+"/comments", map[string]string{"content": "Looks fine"})
	require.Equal(t, http.StatusCreated, w.Code)
	commentID := decode[map[string]any](t, w)["id"].(float64)

	w = h.do(t, http.MethodPost, fmt.Sprintf("/api/comments/%d/resolve", int(commentID)), nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, decode[[]any](t, h.do(t, http.MethodGet, "/api/contracts/"+id+"/comments", nil)))
	assert.Len(t, decode[[]any](t, h.do(t, http.MethodGet, "/api/contracts/"+id+"/comments?include_resolved=true", nil)), 1)

	w = h.do(t, http.MethodPost, "/api/contracts/"+id+"/versions", map[string]string{"content": "a\nc"})
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, float64(2), decode[map[string]any](t, w)["version"])

	cmp := decode[map[string]any](t, h.do(t, http.MethodGet, "/api/contracts/"+id+"/versions/compare?v1=1&v2=2", nil))
	assert.Equal(t, float64(1), cmp["added"])
	assert.Equal(t, float64(1), cmp["removed"])
	w = h.do(t, http.MethodGet, "/api/contracts/"+id+"/versions/compare?v1=1", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = h.do(t, http.MethodPost, "/api/contracts/"+id+"/invitations", map[string]string{"email": "jane@example.com", "role": "editor"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	require.Len(t, h.mail.Sent, 1)
	link := h.mail.Sent[0].Body[strings.Index(h.mail.Sent[0].Body, "http://app.test/invitations/"):]
	link = strings.TrimPrefix(strings.Fields(link)[0], "http://app.test")

	w = h.do(t, http.MethodGet, link, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Invitation Accepted!")

	w = h.do(t, http.MethodGet, link, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "Invalid or Expired Invitation")

	collabs := decode[[]map[string]any](t, h.do(t, http.MethodGet, "/api/contracts/"+id+"/collaborators", nil))
	require.Len(t, collabs, 1)
	assert.Equal(t, "editor", collabs[0]["role"])
	userID := collabs[0]["user"].(map[string]any)["id"].(float64)
	w = h.do(t, http.MethodDelete, fmt.Sprintf("/api/contracts/%s/collaborators/%d", id, int(userID)), nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = h.do(t, http.MethodPost, "/api/contracts/"+id+"/events", map[string]string{"title": "Renewal", "date": "2027-01-01T00:00:00Z"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Len(t, decode[[]any](t, h.do(t, http.MethodGet, "/api/contracts/"+id+"/events", nil)), 1)

	w = h.do(t, http.MethodGet, "/api/contracts/export", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Disposition"), ".xlsx")
	assert.NotEmpty(t, w.Body.Bytes())

	w = h.do(t, http.MethodGet, "/api/contracts/missing", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "NOT_FOUND", decode[map[string]string](t, w)["code"])
}

func TestTemplateEndpoints(t *testing.T) {
	h := newHarness(t)

	w := h.do(t, http.MethodPost, "/api/templates", map[string]any{
		"name": "NDA", "content": "Body", "category": "Legal", "tags": []string{"legal"},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	id := int(decode[map[string]any](t, w)["id"].(float64))

	list := decode[[]map[string]any](t, h.do(t, http.MethodGet, "/api/templates?tag=legal", nil))
	require.Len(t, list, 1)
	assert.NotContains(t, list[0], "content")
	assert.Empty(t, decode[[]any](t, h.do(t, http.MethodGet, "/api/templates?category=HR", nil)))

	w = h.do(t, http.MethodPut, fmt.Sprintf("/api/templates/%d", id), map[string]any{"description": "Updated"})
	require.Equal(t, http.StatusOK, w.Code)
	got := decode[map[string]any](t, w)
	assert.Equal(t, "Updated", got["description"])
	assert.Equal(t, "Body", got["content"])

	w = h.do(t, http.MethodPost, "/api/contracts", map[string]any{"title": "From template", "template_id": id})
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "Body", decode[map[string]any](t, w)["content"])

	assert.Equal(t, http.StatusNoContent, h.do(t, http.MethodDelete, fmt.Sprintf("/api/templates/%d", id), nil).Code)
	assert.Equal(t, http.StatusNotFound, h.do(t, http.MethodGet, fmt.Sprintf("/api/templates/%d", id), nil).Code)
	assert.Equal(t, http.StatusBadRequest, h.do(t, http.MethodGet, "/api/templates/abc", nil).Code)
}
