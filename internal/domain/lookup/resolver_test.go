package lookup

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anucha1993/tour-api-sub001/internal/domain/mapping"
	"github.com/anucha1993/tour-api-sub001/internal/errs"
	"github.com/anucha1993/tour-api-sub001/internal/infrastructure/storage"
)

func seededRepo(t *testing.T) *storage.MockRepository {
	t.Helper()
	repo := storage.NewMockRepository()
	_, err := repo.FindOrCreateCountry(&storage.Country{Code: "JP", ISO3: "JPN", Name: "Japan"})
	require.NoError(t, err)
	_, err = repo.FindOrCreateTransport(&storage.Transport{Code: "TG", Name: "Thai Airways"})
	require.NoError(t, err)
	return repo
}

func TestResolve_CountryByCode(t *testing.T) {
	resolver := NewResolver(seededRepo(t), nil)

	id, err := resolver.Resolve(mapping.LookupCountry, "JP", false)
	require.NoError(t, err)
	assert.NotZero(t, id)

	iso3ID, err := resolver.Resolve(mapping.LookupCountry, "JPN", false)
	require.NoError(t, err)
	assert.Equal(t, id, iso3ID)
}

func TestResolve_CountryByNameCaseInsensitive(t *testing.T) {
	resolver := NewResolver(seededRepo(t), nil)

	id, err := resolver.Resolve(mapping.LookupCountry, "japan", false)

	require.NoError(t, err)
	assert.NotZero(t, id)
}

func TestResolve_UnknownWithoutAutoCreate(t *testing.T) {
	resolver := NewResolver(seededRepo(t), nil)

	_, err := resolver.Resolve(mapping.LookupCountry, "Narnia", false)

	require.Error(t, err)
	assert.True(t, errs.IsKind(err, errs.KindLookupUnresolved))
}

func TestResolve_AutoCreateEnrichesFromISORegistry(t *testing.T) {
	repo := seededRepo(t)
	resolver := NewResolver(repo, nil)

	id, err := resolver.Resolve(mapping.LookupCountry, "Thailand", true)
	require.NoError(t, err)
	assert.NotZero(t, id)

	created, err := repo.FindCountryByCode("TH")
	require.NoError(t, err)
	require.NotNil(t, created)
	assert.Equal(t, "THA", created.ISO3)
}

func TestResolve_AutoCreateIsIdempotent(t *testing.T) {
	repo := seededRepo(t)
	resolver := NewResolver(repo, nil)

	first, err := resolver.Resolve(mapping.LookupCountry, "Vietnam", true)
	require.NoError(t, err)
	second, err := resolver.Resolve(mapping.LookupCountry, "Vietnam", true)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestResolve_TransportByCodeAndName(t *testing.T) {
	resolver := NewResolver(seededRepo(t), nil)

	byCode, err := resolver.Resolve(mapping.LookupTransport, "TG", false)
	require.NoError(t, err)
	byName, err := resolver.Resolve(mapping.LookupTransport, "thai airways", false)
	require.NoError(t, err)

	assert.Equal(t, byCode, byName)
}

func TestResolve_TransportAutoCreateShortCodeToken(t *testing.T) {
	repo := seededRepo(t)
	resolver := NewResolver(repo, nil)

	_, err := resolver.Resolve(mapping.LookupTransport, "JL", true)
	require.NoError(t, err)

	created, err := repo.FindTransportByCode("JL")
	require.NoError(t, err)
	assert.NotNil(t, created)
}

func TestResolve_EmptyToken(t *testing.T) {
	resolver := NewResolver(seededRepo(t), nil)

	_, err := resolver.Resolve(mapping.LookupCountry, "  ", true)

	require.Error(t, err)
	assert.True(t, errs.IsKind(err, errs.KindLookupUnresolved))
}

func TestResolve_UnknownKind(t *testing.T) {
	resolver := NewResolver(seededRepo(t), nil)

	_, err := resolver.Resolve("starship", "X", false)

	require.Error(t, err)
	assert.True(t, errs.IsKind(err, errs.KindConfiguration))
}
