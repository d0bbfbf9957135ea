package anaf

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/tradeco/backoffice/internal/domain/shared"
)

// expirySkew renews the cached token this long before it actually expires
const expirySkew = 60 * time.Second

// tokenSource hands out OAuth2 access tokens for the e-Factura API. A static
// token short-circuits the whole flow; otherwise tokens are obtained with the
// refresh-token grant and cached until shortly before expiry.
type tokenSource struct {
	config     *Config
	httpClient *http.Client

	mu          sync.Mutex
	accessToken string
	expiresAt   time.Time
}

func newTokenSource(config *Config, httpClient *http.Client) *tokenSource {
	return &tokenSource{config: config, httpClient: httpClient}
}

// tokenResponse is the OAuth2 token endpoint payload
type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}

// Token returns a valid access token, refreshing if the cached one expired
func (ts *tokenSource) Token(ctx context.Context) (string, error) {
	if ts.config.StaticToken != "" {
		return ts.config.StaticToken, nil
	}

	ts.mu.Lock()
	defer ts.mu.Unlock()

	if ts.accessToken != "" && time.Now().Before(ts.expiresAt) {
		return ts.accessToken, nil
	}

	token, expiresIn, err := ts.refresh(ctx)
	if err != nil {
		return "", err
	}

	ts.accessToken = token
	ts.expiresAt = time.Now().Add(time.Duration(expiresIn)*time.Second - expirySkew)
	return token, nil
}

// refresh performs the refresh-token grant against the token endpoint
func (ts *tokenSource) refresh(ctx context.Context) (string, int64, error) {
	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", ts.config.RefreshToken)
	form.Set("client_id", ts.config.ClientID)
	form.Set("client_secret", ts.config.ClientSecret)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, ts.config.TokenURL,
		strings.NewReader(form.Encode()))
	if err != nil {
		return "", 0, fmt.Errorf("anaf: failed to create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := ts.httpClient.Do(req)
	if err != nil {
		return "", 0, shared.NewExternalServiceError(fmt.Sprintf("Token refresh failed: %v", err))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return "", 0, shared.NewExternalServiceError(fmt.Sprintf("Token response read failed: %v", err))
	}
	if resp.StatusCode >= 400 {
		return "", 0, shared.NewExternalServiceError(fmt.Sprintf(
			"Token endpoint returned HTTP %d", resp.StatusCode))
	}

	var token tokenResponse
	if err := json.Unmarshal(body, &token); err != nil {
		return "", 0, shared.NewExternalServiceError(fmt.Sprintf("Token response parse failed: %v", err))
	}
	if token.AccessToken == "" {
		return "", 0, shared.NewExternalServiceError("Token endpoint returned no access token")
	}
	if token.ExpiresIn <= 0 {
		token.ExpiresIn = 300
	}
	return token.AccessToken, token.ExpiresIn, nil
}
