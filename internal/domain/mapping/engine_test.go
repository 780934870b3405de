package mapping

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anucha1993/tour-api-sub001/internal/errs"
	"github.com/anucha1993/tour-api-sub001/internal/infrastructure/storage"
)

// stubResolver records lookups and returns canned IDs.
type stubResolver struct {
	ids   map[string]int64
	calls []string
}

func (s *stubResolver) Resolve(kind, token string, autoCreate bool) (int64, error) {
	s.calls = append(s.calls, kind+"/"+token)
	if id, ok := s.ids[token]; ok {
		return id, nil
	}
	return 0, errs.Newf(errs.KindLookupUnresolved, "%s %q not found", kind, token)
}

func mustParse(t *testing.T, rows []storage.FieldMapping) *Spec {
	t.Helper()
	spec, err := Parse(rows)
	require.NoError(t, err)
	return spec
}

func TestParse_ExactlyOneSource(t *testing.T) {
	_, err := Parse([]storage.FieldMapping{
		{Section: SectionTour, TargetField: "name", APIPath: "title", FixedValue: "both"},
	})
	require.Error(t, err)
	assert.True(t, errs.IsKind(err, errs.KindMapping))

	_, err = Parse([]storage.FieldMapping{
		{Section: SectionTour, TargetField: "name"},
	})
	require.Error(t, err)
}

func TestParse_SplitRequiresMode(t *testing.T) {
	_, err := Parse([]storage.FieldMapping{
		{Section: SectionTour, TargetField: "x", APIPath: "y", Transform: TransformSplit,
			TransformCfg: `{"separator":"-"}`},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mode")
}

func TestParse_InvalidConfigBlob(t *testing.T) {
	_, err := Parse([]storage.FieldMapping{
		{Section: SectionTour, TargetField: "x", APIPath: "y", Transform: TransformValueMap,
			TransformCfg: `{not json`},
	})
	require.Error(t, err)
}

func TestEngine_DirectExtraction(t *testing.T) {
	spec := mustParse(t, []storage.FieldMapping{
		{Section: SectionTour, TargetField: "name", APIPath: "title"},
		{Section: SectionTour, TargetField: "duration_days", APIPath: "details.days"},
	})
	engine := NewEngine(spec, nil)

	result, err := engine.Apply(json.RawMessage(`{"title":"Tokyo Lights","details":{"days":5}}`))

	require.NoError(t, err)
	assert.Equal(t, "Tokyo Lights", result.Field(SectionTour, "name").String())
	assert.Equal(t, int64(5), result.Field(SectionTour, "duration_days").Int())
	assert.Empty(t, result.Warnings)
}

func TestEngine_ArrayFlatteningTakesFirst(t *testing.T) {
	spec := mustParse(t, []storage.FieldMapping{
		{Section: SectionTour, TargetField: "city", APIPath: "destinations[].city"},
	})
	engine := NewEngine(spec, nil)

	result, err := engine.Apply(json.RawMessage(`{"destinations":[{"city":"Osaka"},{"city":"Kyoto"}]}`))

	require.NoError(t, err)
	assert.Equal(t, "Osaka", result.Field(SectionTour, "city").String())
}

func TestEngine_FixedValueAndDefault(t *testing.T) {
	spec := mustParse(t, []storage.FieldMapping{
		{Section: SectionTour, TargetField: "source", FixedValue: "wholesale-feed"},
		{Section: SectionTour, TargetField: "status", APIPath: "missing_field",
			TransformCfg: `{"default":"active"}`},
	})
	engine := NewEngine(spec, nil)

	result, err := engine.Apply(json.RawMessage(`{}`))

	require.NoError(t, err)
	assert.Equal(t, "wholesale-feed", result.Field(SectionTour, "source").String())
	assert.Equal(t, "active", result.Field(SectionTour, "status").String())
}

func TestEngine_ValueMapPassthroughOnMiss(t *testing.T) {
	spec := mustParse(t, []storage.FieldMapping{
		{Section: SectionDeparture, TargetField: "status", APIPath: "state",
			Transform:    TransformValueMap,
			TransformCfg: `{"table":{"O":"open","F":"full"}}`},
	})
	engine := NewEngine(spec, nil)

	result, err := engine.Apply(json.RawMessage(`{"state":"O"}`))
	require.NoError(t, err)
	assert.Equal(t, "open", result.Field(SectionDeparture, "status").String())

	result, err = engine.Apply(json.RawMessage(`{"state":"weird"}`))
	require.NoError(t, err)
	assert.Equal(t, "weird", result.Field(SectionDeparture, "status").String())
}

func TestEngine_LookupDelegatesToResolver(t *testing.T) {
	resolver := &stubResolver{ids: map[string]int64{"JP": 7}}
	spec := mustParse(t, []storage.FieldMapping{
		{Section: SectionTour, TargetField: "country_id", APIPath: "country",
			Transform:    TransformLookup,
			TransformCfg: `{"ref":"country"}`},
	})
	engine := NewEngine(spec, resolver)

	result, err := engine.Apply(json.RawMessage(`{"country":"JP"}`))

	require.NoError(t, err)
	assert.Equal(t, int64(7), result.Field(SectionTour, "country_id").Int())
	assert.Equal(t, []string{"country/JP"}, resolver.calls)
}

func TestEngine_UnresolvedLookupIsWarningNotError(t *testing.T) {
	resolver := &stubResolver{ids: map[string]int64{}}
	spec := mustParse(t, []storage.FieldMapping{
		{Section: SectionTour, TargetField: "country_id", APIPath: "country",
			Transform:    TransformLookup,
			TransformCfg: `{"ref":"country"}`},
		{Section: SectionTour, TargetField: "name", APIPath: "title"},
	})
	engine := NewEngine(spec, resolver)

	result, err := engine.Apply(json.RawMessage(`{"country":"ATLANTIS","title":"Lost City"}`))

	require.NoError(t, err)
	assert.False(t, result.Field(SectionTour, "country_id").Exists())
	assert.Equal(t, "Lost City", result.Field(SectionTour, "name").String())
	require.Len(t, result.Warnings, 1)
	assert.Contains(t, result.Warnings[0], "ATLANTIS")
}

func TestEngine_TemplateInterpolation(t *testing.T) {
	spec := mustParse(t, []storage.FieldMapping{
		{Section: SectionSEO, TargetField: "title", APIPath: "name",
			Transform:    TransformTemplate,
			TransformCfg: `{"template":"{name} ({days} days)"}`},
	})
	engine := NewEngine(spec, nil)

	result, err := engine.Apply(json.RawMessage(`{"name":"Tokyo Lights","days":5}`))

	require.NoError(t, err)
	assert.Equal(t, "Tokyo Lights (5 days)", result.Field(SectionSEO, "title").String())
}

func TestEngine_TemplateMissingFieldIsWarning(t *testing.T) {
	spec := mustParse(t, []storage.FieldMapping{
		{Section: SectionSEO, TargetField: "title", APIPath: "name",
			Transform:    TransformTemplate,
			TransformCfg: `{"template":"{name} - {absent}"}`},
	})
	engine := NewEngine(spec, nil)

	result, err := engine.Apply(json.RawMessage(`{"name":"Tokyo"}`))

	require.NoError(t, err)
	assert.False(t, result.Field(SectionSEO, "title").Exists())
	assert.Len(t, result.Warnings, 1)
}

func TestEngine_SplitModes(t *testing.T) {
	spec := mustParse(t, []storage.FieldMapping{
		{Section: SectionTour, TargetField: "first_tag", APIPath: "tags_csv",
			Transform:    TransformSplit,
			TransformCfg: `{"mode":"split","separator":","}`},
		{Section: SectionTour, TargetField: "second_tag", APIPath: "tags_csv",
			Transform:    TransformSplit,
			TransformCfg: `{"mode":"split","separator":",","index":1}`},
		{Section: SectionTour, TargetField: "tags", APIPath: "tag_list",
			Transform:    TransformSplit,
			TransformCfg: `{"mode":"join","separator":" / "}`},
		{Section: SectionTour, TargetField: "slug", APIPath: "name",
			Transform:    TransformSplit,
			TransformCfg: `{"mode":"replace","old":" ","new":"-"}`},
	})
	engine := NewEngine(spec, nil)

	result, err := engine.Apply(json.RawMessage(
		`{"tags_csv":"beach, family","tag_list":["sea","sun"],"name":"Phuket Escape"}`))

	require.NoError(t, err)
	assert.Equal(t, "beach", result.Field(SectionTour, "first_tag").String())
	assert.Equal(t, "family", result.Field(SectionTour, "second_tag").String())
	assert.Equal(t, "sea / sun", result.Field(SectionTour, "tags").String())
	assert.Equal(t, "Phuket-Escape", result.Field(SectionTour, "slug").String())
}

func TestEngine_NestedTargetFields(t *testing.T) {
	spec := mustParse(t, []storage.FieldMapping{
		{Section: SectionContent, TargetField: "highlights.summary", APIPath: "blurb"},
	})
	engine := NewEngine(spec, nil)

	result, err := engine.Apply(json.RawMessage(`{"blurb":"city and sea"}`))

	require.NoError(t, err)
	assert.Equal(t, "city and sea", result.Field(SectionContent, "highlights.summary").String())
}

func TestEngine_ApplySectionFiltersRules(t *testing.T) {
	spec := mustParse(t, []storage.FieldMapping{
		{Section: SectionTour, TargetField: "name", APIPath: "title"},
		{Section: SectionDeparture, TargetField: "start_date", APIPath: "departs"},
	})
	engine := NewEngine(spec, nil)

	result, err := engine.ApplySection(json.RawMessage(`{"departs":"2026-04-01","title":"noise"}`), SectionDeparture)

	require.NoError(t, err)
	assert.Equal(t, "2026-04-01", result.Field(SectionDeparture, "start_date").String())
	assert.Nil(t, result.Section(SectionTour))
}

func TestEngine_NonObjectRecordFails(t *testing.T) {
	spec := mustParse(t, []storage.FieldMapping{
		{Section: SectionTour, TargetField: "name", APIPath: "title"},
	})
	engine := NewEngine(spec, nil)

	_, err := engine.Apply(json.RawMessage(`[1,2,3]`))

	require.Error(t, err)
	assert.True(t, errs.IsKind(err, errs.KindMapping))
}
