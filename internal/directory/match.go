package directory

import (
	"strings"

	"tradewatch/internal/models"
)

// Event is the part of a notification preferences are matched against.
type Event struct {
	Symbol    string
	Timeframe string
	Tier      string
}

// Matches reports whether pref lets ev through. An empty allow-list admits
// every value; comparisons ignore case.
func Matches(pref *models.RecipientPreference, ev Event) bool {
	if pref == nil {
		return true
	}
	if !pref.ChannelEnabled {
		return false
	}
	return allowed(pref.Symbols, ev.Symbol) &&
		allowed(pref.Timeframes, ev.Timeframe) &&
		allowed(pref.Tiers, ev.Tier)
}

func allowed(list []string, v string) bool {
	if len(list) == 0 {
		return true
	}
	for _, item := range list {
		if strings.EqualFold(strings.TrimSpace(item), strings.TrimSpace(v)) {
			return true
		}
	}
	return false
}
