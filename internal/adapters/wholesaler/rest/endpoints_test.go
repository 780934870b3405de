package rest

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anucha1993/tour-api-sub001/internal/errs"
)

func TestResolveTemplate_DirectField(t *testing.T) {
	anchor := json.RawMessage(`{"id": 42}`)

	resolved, err := ResolveTemplate("/tours/{id}/periods", anchor)

	require.NoError(t, err)
	assert.Equal(t, "/tours/42/periods", resolved)
}

func TestResolveTemplate_FallbackFields(t *testing.T) {
	// No tour_id field; falls through to id, then code.
	anchor := json.RawMessage(`{"code": "TKY-001"}`)

	resolved, err := ResolveTemplate("/tours/{tour_id}/days", anchor)

	require.NoError(t, err)
	assert.Equal(t, "/tours/TKY-001/days", resolved)
}

func TestResolveTemplate_MultipleTokens(t *testing.T) {
	anchor := json.RawMessage(`{"id": 7, "season": "2026"}`)

	resolved, err := ResolveTemplate("/seasons/{season}/tours/{id}", anchor)

	require.NoError(t, err)
	assert.Equal(t, "/seasons/2026/tours/7", resolved)
}

func TestResolveTemplate_UnresolvedFailsExplicitly(t *testing.T) {
	anchor := json.RawMessage(`{"name": "no identifiers here"}`)

	_, err := ResolveTemplate("/tours/{id}/periods", anchor)

	require.Error(t, err)
	assert.True(t, errs.IsKind(err, errs.KindEndpointTemplate))
	assert.NotContains(t, err.Error(), "http", "must not produce a usable URL")
}

func TestResolveTemplate_NoTokens(t *testing.T) {
	resolved, err := ResolveTemplate("/tours", json.RawMessage(`{}`))

	require.NoError(t, err)
	assert.Equal(t, "/tours", resolved)
}

func TestJoinURL(t *testing.T) {
	assert.Equal(t, "https://api.example.com/tours", JoinURL("https://api.example.com", "tours"))
	assert.Equal(t, "https://api.example.com/tours", JoinURL("https://api.example.com/", "/tours"))
	// Empty path means the base URL is the collection endpoint.
	assert.Equal(t, "https://api.example.com", JoinURL("https://api.example.com", ""))
}
