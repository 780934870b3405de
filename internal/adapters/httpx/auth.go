package httpx

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

// Auth schemes stored on WholesalerConfig.
const (
	AuthNone          = "none"
	AuthAPIKey        = "api_key"
	AuthBearer        = "bearer"
	AuthBasic         = "basic"
	AuthCustomHeaders = "custom_headers"
	AuthOAuth2        = "oauth2"
)

// Credentials is the decoded shape of a wholesaler's credentials blob.
// Which fields matter depends on the auth scheme.
type Credentials struct {
	// api_key
	APIKey       string `json:"api_key,omitempty"`
	APIKeyHeader string `json:"api_key_header,omitempty"` // default X-API-Key

	// bearer
	BearerToken string `json:"bearer_token,omitempty"`

	// basic
	Username string `json:"username,omitempty"`
	Password string `json:"password,omitempty"`

	// custom_headers
	Headers map[string]string `json:"headers,omitempty"`

	// oauth2 client-credentials
	TokenURL     string `json:"token_url,omitempty"`
	ClientID     string `json:"client_id,omitempty"`
	ClientSecret string `json:"client_secret,omitempty"`
	Scope        string `json:"scope,omitempty"`
	// TokenField names the response field holding the access token.
	// Defaults to "access_token".
	TokenField string `json:"token_field,omitempty"`
}

// ParseCredentials decodes a credentials JSON blob.
func ParseCredentials(raw string) (*Credentials, error) {
	creds := &Credentials{}
	if raw == "" {
		return creds, nil
	}
	if err := json.Unmarshal([]byte(raw), creds); err != nil {
		return nil, fmt.Errorf("invalid credentials blob: %w", err)
	}
	return creds, nil
}

// Authenticator injects credentials into an outgoing request.
type Authenticator interface {
	Apply(ctx context.Context, req *http.Request) error
}

// NewAuthenticator builds the Authenticator for a scheme. OAuth2 returns a
// token-exchanging authenticator backed by the provided HTTP client.
func NewAuthenticator(scheme string, creds *Credentials, httpClient *http.Client) (Authenticator, error) {
	switch scheme {
	case "", AuthNone:
		return nil, nil
	case AuthAPIKey:
		header := creds.APIKeyHeader
		if header == "" {
			header = "X-API-Key"
		}
		return headerAuth{header: header, value: creds.APIKey}, nil
	case AuthBearer:
		return headerAuth{header: "Authorization", value: "Bearer " + creds.BearerToken}, nil
	case AuthBasic:
		return basicAuth{username: creds.Username, password: creds.Password}, nil
	case AuthCustomHeaders:
		return customHeaderAuth{headers: creds.Headers}, nil
	case AuthOAuth2:
		return newOAuthAuthenticator(creds, httpClient)
	}
	return nil, fmt.Errorf("unknown auth scheme %q", scheme)
}

type headerAuth struct {
	header, value string
}

func (a headerAuth) Apply(_ context.Context, req *http.Request) error {
	req.Header.Set(a.header, a.value)
	return nil
}

type basicAuth struct {
	username, password string
}

func (a basicAuth) Apply(_ context.Context, req *http.Request) error {
	req.SetBasicAuth(a.username, a.password)
	return nil
}

type customHeaderAuth struct {
	headers map[string]string
}

func (a customHeaderAuth) Apply(_ context.Context, req *http.Request) error {
	for k, v := range a.headers {
		req.Header.Set(k, v)
	}
	return nil
}
