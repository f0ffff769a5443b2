package currency

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	code, err := Normalize(" ngn ")
	require.NoError(t, err)
	assert.Equal(t, "NGN", code)

	_, err = Normalize("XYZ")
	assert.ErrorIs(t, err, ErrUnsupported)
}

func TestToMinorTruncates(t *testing.T) {
	minor, err := ToMinor(decimal.RequireFromString("500"), "NGN")
	require.NoError(t, err)
	assert.Equal(t, int64(50000), minor)

	// Sub-kobo precision is dropped, never rounded up.
	minor, err = ToMinor(decimal.RequireFromString("10.999"), "USD")
	require.NoError(t, err)
	assert.Equal(t, int64(1099), minor)
}

func TestFromMinorRoundTrip(t *testing.T) {
	major, err := FromMinor(250075, "NGN")
	require.NoError(t, err)
	assert.True(t, major.Equal(decimal.RequireFromString("2500.75")), "got %s", major)

	back, err := ToMinor(major, "NGN")
	require.NoError(t, err)
	assert.Equal(t, int64(250075), back)
}

func TestUnsupportedCurrency(t *testing.T) {
	_, err := ToMinor(decimal.NewFromInt(1), "XYZ")
	assert.ErrorIs(t, err, ErrUnsupported)
	_, err = FromMinor(1, "XYZ")
	assert.ErrorIs(t, err, ErrUnsupported)
}
