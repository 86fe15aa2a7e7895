package esign

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"contract-flow/pkg/config"
	"contract-flow/pkg/logging"
	"contract-flow/pkg/lru"
	"contract-flow/pkg/signing"
)

// DispatchError is a rejected or failed envelope submission.
type DispatchError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *DispatchError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("docusign %d %s: %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("docusign %d: %s", e.StatusCode, e.Message)
}

// maxSources bounds the cached token sources across session overrides.
const maxSources = 32

// Client creates DocuSign envelopes over the REST API. Tokens are cached per
// integration key and user so session overrides do not share credentials.
type Client struct {
	mu         sync.Mutex
	sources    *lru.Cache[string, oauth2.TokenSource]
	httpClient *http.Client
	readFile   func(string) ([]byte, error)
	now        func() time.Time
	logger     *zap.Logger
}

func New(logger *zap.Logger) *Client {
	return &Client{
		sources:    lru.New[string, oauth2.TokenSource](maxSources),
		httpClient: &http.Client{},
		readFile:   os.ReadFile,
		now:        time.Now,
		logger:     logger,
	}
}

func sourceKey(cfg config.DocuSignConfig) string {
	return strings.Join([]string{cfg.IntegrationKey, cfg.UserID, cfg.AuthHost, cfg.PrivateKeyPath}, "|")
}

func (c *Client) tokenSource(cfg config.DocuSignConfig) (oauth2.TokenSource, error) {
	key := sourceKey(cfg)

	c.mu.Lock()
	defer c.mu.Unlock()
	if ts, ok := c.sources.Get(key); ok {
		return ts, nil
	}

	pem, err := c.readFile(cfg.PrivateKeyPath)
	if err != nil {
		return nil, fmt.Errorf("read docusign private key: %w", err)
	}
	rsaKey, err := jwt.ParseRSAPrivateKeyFromPEM(pem)
	if err != nil {
		return nil, fmt.Errorf("parse docusign private key: %w", err)
	}
	ts := oauth2.ReuseTokenSource(nil, &jwtSource{
		cfg:        cfg,
		key:        rsaKey,
		httpClient: c.httpClient,
		now:        c.now,
	})
	c.sources.Add(key, ts)
	return ts, nil
}

// invalidate drops the cached token so the next call performs a fresh grant.
func (c *Client) invalidate(cfg config.DocuSignConfig) {
	c.mu.Lock()
	c.sources.Remove(sourceKey(cfg))
	c.mu.Unlock()
}

// Token returns a bearer token for cfg, from cache when still valid.
func (c *Client) Token(cfg config.DocuSignConfig) (*oauth2.Token, error) {
	if err := cfg.CheckDocuSign(); err != nil {
		return nil, err
	}
	ts, err := c.tokenSource(cfg)
	if err != nil {
		return nil, err
	}
	return ts.Token()
}

type envelopeSummary struct {
	EnvelopeID     string `json:"envelopeId"`
	Status         string `json:"status"`
	StatusDateTime string `json:"statusDateTime"`
	URI            string `json:"uri"`
}

type apiError struct {
	ErrorCode string `json:"errorCode"`
	Message   string `json:"message"`
}

// CreateEnvelope submits env once. Any failure, including a rejected token,
// is returned as is; a 401 also clears the cached token.
func (c *Client) CreateEnvelope(ctx context.Context, cfg config.DocuSignConfig, env signing.Envelope) (string, error) {
	if err := cfg.CheckDocuSign(); err != nil {
		return "", err
	}
	log := logging.FromContext(ctx, c.logger)

	ts, err := c.tokenSource(cfg)
	if err != nil {
		return "", err
	}

	body, err := json.Marshal(buildDefinition(env))
	if err != nil {
		return "", fmt.Errorf("marshal envelope: %w", err)
	}

	if cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Timeout)
		defer cancel()
	}
	endpoint := fmt.Sprintf("%s/v2.1/accounts/%s/envelopes", strings.TrimRight(cfg.BasePath, "/"), url.PathEscape(cfg.AccountID))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create envelope request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	hc := &http.Client{Transport: &oauth2.Transport{Source: ts, Base: c.httpClient.Transport}}
	resp, err := hc.Do(req)
	if err != nil {
		return "", fmt.Errorf("envelope request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read envelope response: %w", err)
	}

	if resp.StatusCode == http.StatusUnauthorized {
		c.invalidate(cfg)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		de := &DispatchError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(respBody))}
		var ae apiError
		if json.Unmarshal(respBody, &ae) == nil && ae.ErrorCode != "" {
			de.Code, de.Message = ae.ErrorCode, ae.Message
		}
		log.Warn("envelope rejected", zap.Int("status", de.StatusCode), zap.String("code", de.Code))
		return "", de
	}

	var summary envelopeSummary
	if err := json.Unmarshal(respBody, &summary); err != nil {
		return "", fmt.Errorf("failed to parse envelope response: %w", err)
	}
	if summary.EnvelopeID == "" {
		return "", fmt.Errorf("no envelope id in response")
	}
	log.Info("envelope submitted", zap.String("envelope_id", summary.EnvelopeID), zap.String("status", summary.Status))
	return summary.EnvelopeID, nil
}

// Wire types for POST /envelopes. Numbers travel as strings.
type envelopeDefinition struct {
	EmailSubject string     `json:"emailSubject"`
	Documents    []document `json:"documents"`
	Recipients   recipients `json:"recipients"`
	Status       string     `json:"status"`
}

type document struct {
	DocumentBase64 string `json:"documentBase64"`
	Name           string `json:"name"`
	FileExtension  string `json:"fileExtension"`
	DocumentID     string `json:"documentId"`
}

type recipients struct {
	Signers []signer `json:"signers"`
}

type signer struct {
	Email        string `json:"email"`
	Name         string `json:"name"`
	RecipientID  string `json:"recipientId"`
	RoutingOrder string `json:"routingOrder"`
	Tabs         tabs   `json:"tabs"`
}

type tabs struct {
	SignHereTabs []signHere `json:"signHereTabs"`
	TextTabs     []textTab  `json:"textTabs,omitempty"`
}

type signHere struct {
	DocumentID  string `json:"documentId"`
	PageNumber  string `json:"pageNumber"`
	RecipientID string `json:"recipientId"`
	XPosition   string `json:"xPosition"`
	YPosition   string `json:"yPosition"`
}

type textTab struct {
	DocumentID  string `json:"documentId"`
	PageNumber  string `json:"pageNumber"`
	RecipientID string `json:"recipientId"`
	XPosition   string `json:"xPosition"`
	YPosition   string `json:"yPosition"`
	Font        string `json:"font"`
	FontSize    string `json:"fontSize"`
	Value       string `json:"value,omitempty"`
	TabLabel    string `json:"tabLabel,omitempty"`
	Width       string `json:"width,omitempty"`
}

const documentID = "1"

func buildDefinition(env signing.Envelope) envelopeDefinition {
	def := envelopeDefinition{
		EmailSubject: env.Subject,
		Documents: []document{{
			DocumentBase64: base64.StdEncoding.EncodeToString(env.Document),
			Name:           env.DocumentName,
			FileExtension:  "pdf",
			DocumentID:     documentID,
		}},
		Status: string(env.Status),
	}
	for _, a := range env.Signers {
		rid := strconv.Itoa(a.RecipientID)
		s := signer{
			Email:        a.Email,
			Name:         a.Name,
			RecipientID:  rid,
			RoutingOrder: strconv.Itoa(a.RoutingOrder),
			Tabs: tabs{
				SignHereTabs: []signHere{{
					DocumentID:  documentID,
					PageNumber:  strconv.Itoa(a.SignHere.Page),
					RecipientID: rid,
					XPosition:   strconv.Itoa(a.SignHere.X),
					YPosition:   strconv.Itoa(a.SignHere.Y),
				}},
			},
		}
		s.Tabs.TextTabs = append(s.Tabs.TextTabs, toTextTab(rid, a.NameTab))
		for _, t := range a.AdditionalTabs {
			s.Tabs.TextTabs = append(s.Tabs.TextTabs, toTextTab(rid, t))
		}
		def.Recipients.Signers = append(def.Recipients.Signers, s)
	}
	return def
}

func toTextTab(rid string, t signing.TextTab) textTab {
	tt := textTab{
		DocumentID:  documentID,
		PageNumber:  strconv.Itoa(t.Page),
		RecipientID: rid,
		XPosition:   strconv.Itoa(t.X),
		YPosition:   strconv.Itoa(t.Y),
		Font:        "helvetica",
		FontSize:    "size11",
		Value:       t.Value,
		TabLabel:    t.Label,
	}
	if t.Width > 0 {
		tt.Width = strconv.Itoa(t.Width)
	}
	return tt
}

// ConsentURL is where an administrator grants the impersonation consent the
// JWT grant depends on.
func ConsentURL(cfg config.DocuSignConfig) string {
	q := url.Values{
		"response_type": {"code"},
		"scope":         {Scope},
		"client_id":     {cfg.IntegrationKey},
		"redirect_uri":  {cfg.RedirectURI},
	}
	return AuthURI(cfg.AuthHost) + "?" + q.Encode()
}

// AuthURI is the OAuth authorization endpoint for an auth host given either
// as a bare host name or a full URL.
func AuthURI(host string) string {
	return authBase(host) + "/oauth/auth"
}
