package httpx

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func applyToRequest(t *testing.T, auth Authenticator) *http.Request {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, "http://example.com", nil)
	require.NoError(t, err)
	require.NoError(t, auth.Apply(context.Background(), req))
	return req
}

func TestNewAuthenticator_None(t *testing.T) {
	auth, err := NewAuthenticator(AuthNone, &Credentials{}, nil)
	require.NoError(t, err)
	assert.Nil(t, auth)

	auth, err = NewAuthenticator("", &Credentials{}, nil)
	require.NoError(t, err)
	assert.Nil(t, auth)
}

func TestNewAuthenticator_APIKey(t *testing.T) {
	auth, err := NewAuthenticator(AuthAPIKey, &Credentials{APIKey: "secret"}, nil)
	require.NoError(t, err)

	req := applyToRequest(t, auth)
	assert.Equal(t, "secret", req.Header.Get("X-API-Key"))
}

func TestNewAuthenticator_APIKeyCustomHeader(t *testing.T) {
	auth, err := NewAuthenticator(AuthAPIKey,
		&Credentials{APIKey: "secret", APIKeyHeader: "X-Auth-Token"}, nil)
	require.NoError(t, err)

	req := applyToRequest(t, auth)
	assert.Equal(t, "secret", req.Header.Get("X-Auth-Token"))
}

func TestNewAuthenticator_Bearer(t *testing.T) {
	auth, err := NewAuthenticator(AuthBearer, &Credentials{BearerToken: "tok"}, nil)
	require.NoError(t, err)

	req := applyToRequest(t, auth)
	assert.Equal(t, "Bearer tok", req.Header.Get("Authorization"))
}

func TestNewAuthenticator_Basic(t *testing.T) {
	auth, err := NewAuthenticator(AuthBasic, &Credentials{Username: "u", Password: "p"}, nil)
	require.NoError(t, err)

	req := applyToRequest(t, auth)
	user, pass, ok := req.BasicAuth()
	require.True(t, ok)
	assert.Equal(t, "u", user)
	assert.Equal(t, "p", pass)
}

func TestNewAuthenticator_CustomHeaders(t *testing.T) {
	auth, err := NewAuthenticator(AuthCustomHeaders,
		&Credentials{Headers: map[string]string{"X-Partner": "abc", "X-Sig": "def"}}, nil)
	require.NoError(t, err)

	req := applyToRequest(t, auth)
	assert.Equal(t, "abc", req.Header.Get("X-Partner"))
	assert.Equal(t, "def", req.Header.Get("X-Sig"))
}

func TestNewAuthenticator_UnknownScheme(t *testing.T) {
	_, err := NewAuthenticator("voodoo", &Credentials{}, nil)
	assert.Error(t, err)
}

func TestParseCredentials(t *testing.T) {
	creds, err := ParseCredentials(`{"api_key":"k","username":"u"}`)
	require.NoError(t, err)
	assert.Equal(t, "k", creds.APIKey)
	assert.Equal(t, "u", creds.Username)

	creds, err = ParseCredentials("")
	require.NoError(t, err)
	assert.Empty(t, creds.APIKey)

	_, err = ParseCredentials("{broken")
	assert.Error(t, err)
}

func TestOAuth_JSONExchangeAndCache(t *testing.T) {
	exchanges := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		exchanges++
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "client_credentials", body["grant_type"])
		assert.Equal(t, "cid", body["client_id"])
		_, _ = w.Write([]byte(`{"access_token":"tok-1","expires_in":3600}`))
	}))
	defer server.Close()

	auth, err := NewAuthenticator(AuthOAuth2, &Credentials{
		TokenURL: server.URL,
		ClientID: "cid",
	}, server.Client())
	require.NoError(t, err)

	req := applyToRequest(t, auth)
	assert.Equal(t, "Bearer tok-1", req.Header.Get("Authorization"))

	// Second request reuses the cached token.
	applyToRequest(t, auth)
	assert.Equal(t, 1, exchanges)
}

func TestOAuth_FallsBackToFormEncoded(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Content-Type") == "application/json" {
			w.WriteHeader(http.StatusUnsupportedMediaType)
			return
		}
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "client_credentials", r.PostForm.Get("grant_type"))
		_, _ = w.Write([]byte(`{"access_token":"form-tok"}`))
	}))
	defer server.Close()

	auth, err := NewAuthenticator(AuthOAuth2, &Credentials{
		TokenURL:     server.URL,
		ClientID:     "cid",
		ClientSecret: "sec",
	}, server.Client())
	require.NoError(t, err)

	req := applyToRequest(t, auth)
	assert.Equal(t, "Bearer form-tok", req.Header.Get("Authorization"))
}

func TestOAuth_CustomTokenField(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"result":{"token":"nested-tok"}}`))
	}))
	defer server.Close()

	auth, err := NewAuthenticator(AuthOAuth2, &Credentials{
		TokenURL:   server.URL,
		ClientID:   "cid",
		TokenField: "result.token",
	}, server.Client())
	require.NoError(t, err)

	req := applyToRequest(t, auth)
	assert.Equal(t, "Bearer nested-tok", req.Header.Get("Authorization"))
}

func TestOAuth_MissingConfigFails(t *testing.T) {
	_, err := NewAuthenticator(AuthOAuth2, &Credentials{}, nil)
	assert.Error(t, err)
}
