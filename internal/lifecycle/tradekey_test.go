package lifecycle

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradewatch/internal/models"
)

func TestParseTimeframe(t *testing.T) {
	for token, want := range map[string]int{
		"1":   1,
		"15":  15,
		"240": 240,
		"1D":  1440,
		"3d":  4320,
		"2W":  20160,
	} {
		got, err := ParseTimeframe(token)
		require.NoError(t, err, token)
		assert.Equal(t, want, got, token)
	}

	for _, bad := range []string{"", "W", "0", "-5", "15m", "abc", "1000000000000000W", "999999999999999999D", "99999999999"} {
		_, err := ParseTimeframe(bad)
		assert.Error(t, err, bad)
	}
}

func TestResolveTradeKey(t *testing.T) {
	t.Run("plain identifier", func(t *testing.T) {
		key, err := ResolveTradeKey("BTCUSDT_15_42")
		require.NoError(t, err)
		assert.Equal(t, TradeKey{Symbol: "BTCUSDT", TimeframeMinutes: 15, RawToken: "15", Sequence: "42"}, key)
	})

	t.Run("underscore in symbol", func(t *testing.T) {
		key, err := ResolveTradeKey("BTC_PERP_1D_7")
		require.NoError(t, err)
		assert.Equal(t, "BTC_PERP", key.Symbol)
		assert.Equal(t, 1440, key.TimeframeMinutes)
		assert.Equal(t, "1D", key.RawToken)
	})

	t.Run("rejects malformed identifiers", func(t *testing.T) {
		for _, id := range []string{"", "   ", "BTC_15", "BTC__1", "undefined_15_1", "BTC_undefined_1", "BTC_xx_1"} {
			_, err := ResolveTradeKey(id)
			assert.ErrorIs(t, err, ErrInvalidTradeKey, id)
		}
	})
}

func TestParseDirection(t *testing.T) {
	for in, want := range map[string]models.Direction{
		"LONG": models.DirectionLong, "long": models.DirectionLong, "buy": models.DirectionLong,
		"SHORT": models.DirectionShort, "Sell": models.DirectionShort, "bear": models.DirectionShort,
	} {
		got, err := ParseDirection(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseDirection("sideways")
	assert.ErrorIs(t, err, ErrInvalidAlert)
}
