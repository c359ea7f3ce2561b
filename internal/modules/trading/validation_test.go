package trading

import (
	"testing"

	"github.com/aristath/stockfolio/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseQuantity(t *testing.T) {
	valid := map[string]int64{
		"1":          1,
		" 25 ":       25,
		"1000000000": MaxQuantity,
	}
	for raw, want := range valid {
		got, err := ParseQuantity(raw)
		require.NoError(t, err, raw)
		assert.Equal(t, want, got)
	}

	for _, raw := range []string{"", "   ", "0", "-3", "1.5", "abc", "1e3", "0x10", "1000000001", "99999999999999999999"} {
		_, err := ParseQuantity(raw)
		assert.ErrorIs(t, err, domain.ErrInvalidInput, "%q", raw)
	}
}

func TestParseSymbol(t *testing.T) {
	symbol, err := ParseSymbol("  nflx ")
	require.NoError(t, err)
	assert.Equal(t, "NFLX", symbol)

	_, err = ParseSymbol(" \t")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}
