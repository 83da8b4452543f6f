package lifecycle

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"tradewatch/internal/models"
)

var (
	// ErrInvalidTradeKey is returned for malformed trade identifiers.
	ErrInvalidTradeKey = errors.New("invalid trade id")

	// ErrInvalidAlert is returned for alerts missing or carrying malformed fields.
	ErrInvalidAlert = errors.New("invalid alert")

	// ErrTradeNotFound is returned when an exit update names an unknown trade.
	ErrTradeNotFound = errors.New("trade not found")
)

const (
	minutesPerDay  = 24 * 60
	minutesPerWeek = 7 * minutesPerDay
)

// TradeKey is the canonical identity parsed from a trade identifier.
type TradeKey struct {
	Symbol           string
	TimeframeMinutes int
	RawToken         string
	Sequence         string
}

// ResolveTradeKey parses an identifier of the form <symbol>_<timeframe>_<sequence>.
// The symbol may itself contain underscores; the last two parts are always
// timeframe and sequence.
func ResolveTradeKey(id string) (TradeKey, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return TradeKey{}, fmt.Errorf("%w: missing id", ErrInvalidTradeKey)
	}
	if strings.Contains(strings.ToLower(id), "undefined") {
		return TradeKey{}, fmt.Errorf("%w: %q contains undefined", ErrInvalidTradeKey, id)
	}

	parts := strings.Split(id, "_")
	if len(parts) < 3 {
		return TradeKey{}, fmt.Errorf("%w: %q is not symbol_timeframe_sequence", ErrInvalidTradeKey, id)
	}
	for _, p := range parts {
		if p == "" {
			return TradeKey{}, fmt.Errorf("%w: %q has an empty part", ErrInvalidTradeKey, id)
		}
	}

	n := len(parts)
	token := parts[n-2]
	minutes, err := ParseTimeframe(token)
	if err != nil {
		return TradeKey{}, fmt.Errorf("%w: %q: %v", ErrInvalidTradeKey, id, err)
	}

	return TradeKey{
		Symbol:           strings.Join(parts[:n-2], "_"),
		TimeframeMinutes: minutes,
		RawToken:         token,
		Sequence:         parts[n-1],
	}, nil
}

// ParseTimeframe normalizes a timeframe token to minutes: "2W" -> 20160,
// "1D" -> 1440, "15" -> 15.
func ParseTimeframe(token string) (int, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return 0, errors.New("empty timeframe")
	}

	multiplier := 1
	digits := token
	switch token[len(token)-1] {
	case 'W', 'w':
		multiplier = minutesPerWeek
		digits = token[:len(token)-1]
	case 'D', 'd':
		multiplier = minutesPerDay
		digits = token[:len(token)-1]
	}

	n, err := strconv.Atoi(digits)
	if err != nil || n <= 0 || n > math.MaxInt32/multiplier {
		return 0, fmt.Errorf("bad timeframe %q", token)
	}
	return n * multiplier, nil
}

// ParseDirection accepts LONG/SHORT and the BUY/SELL, BULL/BEAR aliases.
func ParseDirection(s string) (models.Direction, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "LONG", "BUY", "BULL", "BULLISH":
		return models.DirectionLong, nil
	case "SHORT", "SELL", "BEAR", "BEARISH":
		return models.DirectionShort, nil
	}
	return "", fmt.Errorf("%w: direction %q", ErrInvalidAlert, s)
}
