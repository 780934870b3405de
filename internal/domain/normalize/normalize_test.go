package normalize

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPeriodStatus_KnownValues(t *testing.T) {
	assert.Equal(t, StatusAvailable, PeriodStatus("open"))
	assert.Equal(t, StatusSoldOut, PeriodStatus("full"))
	assert.Equal(t, StatusSoldOut, PeriodStatus("soldout"))
	assert.Equal(t, StatusGuaranteed, PeriodStatus("guarantee"))
	assert.Equal(t, StatusClosed, PeriodStatus("close"))
	assert.Equal(t, StatusClosed, PeriodStatus("cancelled"))
}

func TestPeriodStatus_CaseAndWhitespace(t *testing.T) {
	assert.Equal(t, StatusSoldOut, PeriodStatus(" FULL "))
	assert.Equal(t, StatusAvailable, PeriodStatus("Open"))
}

func TestPeriodStatus_UnknownDefaultsToAvailable(t *testing.T) {
	assert.Equal(t, StatusAvailable, PeriodStatus("unrecognized"))
	assert.Equal(t, StatusAvailable, PeriodStatus(""))
}

func TestToBoolean_Strings(t *testing.T) {
	assertTrue := func(v any) {
		value, known := ToBoolean(v).Bool()
		require.True(t, known, "expected %v to be known", v)
		assert.True(t, value, "expected %v to be true", v)
	}
	assertFalse := func(v any) {
		value, known := ToBoolean(v).Bool()
		require.True(t, known, "expected %v to be known", v)
		assert.False(t, value, "expected %v to be false", v)
	}

	assertTrue("Y")
	assertTrue("yes")
	assertTrue("TRUE")
	assertTrue("1")
	assertTrue("P")
	assertFalse("N")
	assertFalse("no")
	assertFalse("false")
	assertFalse("0")
	assertFalse("")
}

func TestToBoolean_NullStaysUnknown(t *testing.T) {
	_, known := ToBoolean(nil).Bool()
	assert.False(t, known)

	_, known = ToBoolean("maybe").Bool()
	assert.False(t, known)
}

func TestToBoolean_NativeTypes(t *testing.T) {
	value, known := ToBoolean(true).Bool()
	require.True(t, known)
	assert.True(t, value)

	value, known = ToBoolean(float64(0)).Bool()
	require.True(t, known)
	assert.False(t, value)

	value, known = ToBoolean(float64(1)).Bool()
	require.True(t, known)
	assert.True(t, value)
}

func TestParseDate_Layouts(t *testing.T) {
	want := time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)

	for _, raw := range []string{"2026-03-15", "15/03/2026", "2026/03/15"} {
		got, err := ParseDate(raw)
		require.NoError(t, err, raw)
		assert.Equal(t, want.Year(), got.Year(), raw)
		assert.Equal(t, want.Month(), got.Month(), raw)
		assert.Equal(t, want.Day(), got.Day(), raw)
	}
}

func TestParseDate_Invalid(t *testing.T) {
	_, err := ParseDate("not a date")
	assert.Error(t, err)

	_, err = ParseDate("")
	assert.Error(t, err)
}
