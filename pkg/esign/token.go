package esign

import (
	"context"
	"crypto/rsa"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/oauth2"

	"contract-flow/pkg/config"
)

const (
	jwtGrantType  = "urn:ietf:params:oauth:grant-type:jwt-bearer"
	tokenLifetime = time.Hour
	// Scope requested for the impersonated user.
	Scope = "signature impersonation"
)

type tokenError struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}

// jwtSource exchanges a signed assertion for an access token. Wrap it in
// oauth2.ReuseTokenSource to cache the token for its lifetime.
type jwtSource struct {
	cfg        config.DocuSignConfig
	key        *rsa.PrivateKey
	httpClient *http.Client
	now        func() time.Time
}

// authBase returns the OAuth server base URL. AuthHost is normally a bare
// host name; a full URL is accepted for sandboxes and tests.
func authBase(host string) string {
	if strings.HasPrefix(host, "http://") || strings.HasPrefix(host, "https://") {
		return strings.TrimRight(host, "/")
	}
	return "https://" + host
}

func audience(host string) string {
	if u, err := url.Parse(authBase(host)); err == nil && u.Host != "" {
		return u.Host
	}
	return host
}

func (s *jwtSource) assertion(now time.Time) (string, error) {
	claims := jwt.MapClaims{
		"iss":   s.cfg.IntegrationKey,
		"sub":   s.cfg.UserID,
		"aud":   audience(s.cfg.AuthHost),
		"iat":   now.Unix(),
		"exp":   now.Add(tokenLifetime).Unix(),
		"scope": Scope,
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(s.key)
	if err != nil {
		return "", fmt.Errorf("sign jwt assertion: %w", err)
	}
	return signed, nil
}

// Token implements oauth2.TokenSource.
func (s *jwtSource) Token() (*oauth2.Token, error) {
	now := s.now()
	assertion, err := s.assertion(now)
	if err != nil {
		return nil, err
	}

	ctx := context.Background()
	if s.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.Timeout)
		defer cancel()
	}

	data := url.Values{
		"grant_type": {jwtGrantType},
		"assertion":  {assertion},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, authBase(s.cfg.AuthHost)+"/oauth/token", strings.NewReader(data.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to request token: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read token response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		var oauthErr tokenError
		if err := json.Unmarshal(body, &oauthErr); err == nil && oauthErr.Error != "" {
			return nil, fmt.Errorf("oauth error: %s - %s", oauthErr.Error, oauthErr.ErrorDescription)
		}
		return nil, fmt.Errorf("token request failed with status %d: %s", resp.StatusCode, string(body))
	}

	var tr tokenResponse
	if err := json.Unmarshal(body, &tr); err != nil {
		return nil, fmt.Errorf("failed to parse token response: %w", err)
	}
	if tr.AccessToken == "" {
		return nil, fmt.Errorf("no access token in response")
	}
	if tr.TokenType == "" {
		tr.TokenType = "Bearer"
	}
	expiresIn := time.Duration(tr.ExpiresIn) * time.Second
	if expiresIn <= 0 {
		expiresIn = tokenLifetime
	}
	return &oauth2.Token{
		AccessToken: tr.AccessToken,
		TokenType:   tr.TokenType,
		Expiry:      now.Add(expiresIn),
	}, nil
}
