package httpx

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/tidwall/gjson"
)

const (
	// defaultTokenDuration is used when the API doesn't return an expiry time.
	defaultTokenDuration = 60 * time.Minute

	// tokenExpiryBuffer is the time before expiry to trigger a refresh.
	tokenExpiryBuffer = 5 * time.Minute
)

// oauthAuthenticator performs OAuth2 client-credentials token exchange and
// caches the access token. Some wholesalers accept only a JSON token request,
// others only form-encoded; the exchange tries JSON first and falls back.
type oauthAuthenticator struct {
	creds      *Credentials
	httpClient *http.Client

	mu          sync.RWMutex
	accessToken string
	expiresAt   time.Time
}

func newOAuthAuthenticator(creds *Credentials, httpClient *http.Client) (*oauthAuthenticator, error) {
	if creds.TokenURL == "" || creds.ClientID == "" {
		return nil, fmt.Errorf("oauth2 auth requires token_url and client_id")
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &oauthAuthenticator{creds: creds, httpClient: httpClient}, nil
}

// Apply sets the Authorization header, exchanging credentials for a token
// when the cached one is absent or near expiry.
func (a *oauthAuthenticator) Apply(ctx context.Context, req *http.Request) error {
	token, err := a.token(ctx)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	return nil
}

func (a *oauthAuthenticator) token(ctx context.Context) (string, error) {
	a.mu.RLock()
	if a.tokenValid() {
		token := a.accessToken
		a.mu.RUnlock()
		return token, nil
	}
	a.mu.RUnlock()

	a.mu.Lock()
	defer a.mu.Unlock()

	// Double-check after acquiring the write lock.
	if a.tokenValid() {
		return a.accessToken, nil
	}

	body, err := a.exchange(ctx)
	if err != nil {
		return "", err
	}

	field := a.creds.TokenField
	if field == "" {
		field = "access_token"
	}
	token := gjson.GetBytes(body, field).String()
	if token == "" {
		return "", fmt.Errorf("token response missing field %q", field)
	}

	a.accessToken = token
	if expires := gjson.GetBytes(body, "expires_in").Int(); expires > 0 {
		a.expiresAt = time.Now().Add(time.Duration(expires) * time.Second)
	} else {
		a.expiresAt = time.Now().Add(defaultTokenDuration)
	}

	return token, nil
}

// tokenValid must be called with at least a read lock held.
func (a *oauthAuthenticator) tokenValid() bool {
	return a.accessToken != "" && time.Now().Before(a.expiresAt.Add(-tokenExpiryBuffer))
}

// exchange requests a token, preferring JSON and falling back to
// form-encoded when the endpoint rejects it.
func (a *oauthAuthenticator) exchange(ctx context.Context) ([]byte, error) {
	jsonBody := fmt.Sprintf(
		`{"grant_type":"client_credentials","client_id":%q,"client_secret":%q`,
		a.creds.ClientID, a.creds.ClientSecret)
	if a.creds.Scope != "" {
		jsonBody += fmt.Sprintf(`,"scope":%q`, a.creds.Scope)
	}
	jsonBody += "}"

	body, jsonErr := a.postToken(ctx, "application/json", strings.NewReader(jsonBody))
	if jsonErr == nil {
		return body, nil
	}

	form := url.Values{}
	form.Set("grant_type", "client_credentials")
	form.Set("client_id", a.creds.ClientID)
	form.Set("client_secret", a.creds.ClientSecret)
	if a.creds.Scope != "" {
		form.Set("scope", a.creds.Scope)
	}

	body, formErr := a.postToken(ctx, "application/x-www-form-urlencoded", strings.NewReader(form.Encode()))
	if formErr != nil {
		return nil, fmt.Errorf("token exchange failed (json: %v): %w", jsonErr, formErr)
	}
	return body, nil
}

func (a *oauthAuthenticator) postToken(ctx context.Context, contentType string, body io.Reader) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.creds.TokenURL, body)
	if err != nil {
		return nil, fmt.Errorf("creating token request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("executing token request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading token response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("token request failed with status %d: %s", resp.StatusCode, string(data))
	}

	return data, nil
}
