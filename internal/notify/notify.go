// Package notify fans prerendered trade notifications out to linked
// recipients. Delivery is at-most-once per (trade, recipient, alert type):
// the notification record is inserted before the send, and a failed send
// is recorded but never retried.
package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"tradewatch/internal/directory"
)

var ErrInvalidNotification = errors.New("invalid notification")

// Column widths of notification_records.
const (
	maxTradeIDLen        = 128
	maxAlertTypeLen      = 32
	maxIdempotencyKeyLen = 255
)

// Sender delivers text to one chat.
type Sender interface {
	Send(ctx context.Context, chatHandle, text string) error
}

// KeyGuard is a process-wide advisory idempotency check. Reserve reports
// false when key was already taken.
type KeyGuard interface {
	Reserve(ctx context.Context, key string) (bool, error)
}

// RecipientSource lists verified recipients with their preferences.
type RecipientSource interface {
	VerifiedRecipients(ctx context.Context) ([]directory.Recipient, error)
}

// EntryNotification announces a new trade.
type EntryNotification struct {
	TradeID        string `json:"tradeId"`
	IdempotencyKey string `json:"idempotencyKey"`
	Title          string `json:"title"`
	Body           string `json:"body"`
	Symbol         string `json:"symbol"`
	Timeframe      string `json:"timeframe"`
	Tier           string `json:"tier"`
}

func (n EntryNotification) validate() error {
	switch {
	case strings.TrimSpace(n.TradeID) == "":
		return fmt.Errorf("%w: tradeId is required", ErrInvalidNotification)
	case len(n.TradeID) > maxTradeIDLen:
		return fmt.Errorf("%w: tradeId longer than %d characters", ErrInvalidNotification, maxTradeIDLen)
	case strings.TrimSpace(n.IdempotencyKey) == "":
		return fmt.Errorf("%w: idempotencyKey is required", ErrInvalidNotification)
	case len(n.IdempotencyKey) > maxIdempotencyKeyLen:
		return fmt.Errorf("%w: idempotencyKey longer than %d characters", ErrInvalidNotification, maxIdempotencyKeyLen)
	}
	return validateText(n.Title, n.Body)
}

// FollowUpNotification reports a later event (TP1, TP2, SL, ...) of a trade.
type FollowUpNotification struct {
	TradeID string `json:"tradeId"`
	Type    string `json:"type"`
	Title   string `json:"title"`
	Body    string `json:"body"`
}

func (n FollowUpNotification) validate() error {
	switch {
	case strings.TrimSpace(n.TradeID) == "":
		return fmt.Errorf("%w: tradeId is required", ErrInvalidNotification)
	case len(n.TradeID) > maxTradeIDLen:
		return fmt.Errorf("%w: tradeId longer than %d characters", ErrInvalidNotification, maxTradeIDLen)
	case strings.TrimSpace(n.Type) == "":
		return fmt.Errorf("%w: type is required", ErrInvalidNotification)
	case len(alertType(n.Type)) > maxAlertTypeLen:
		return fmt.Errorf("%w: type longer than %d characters", ErrInvalidNotification, maxAlertTypeLen)
	case alertType(n.Type) == "ENTRY":
		return fmt.Errorf("%w: type ENTRY is reserved for entry notifications", ErrInvalidNotification)
	}
	return validateText(n.Title, n.Body)
}

func validateText(title, body string) error {
	if strings.TrimSpace(title) == "" {
		return fmt.Errorf("%w: title is required", ErrInvalidNotification)
	}
	if strings.TrimSpace(body) == "" {
		return fmt.Errorf("%w: body is required", ErrInvalidNotification)
	}
	return nil
}

func alertType(t string) string {
	return strings.ToUpper(strings.TrimSpace(t))
}

// Report summarizes one dispatch.
type Report struct {
	Delivered    int  `json:"delivered"`
	Skipped      int  `json:"skipped"`
	Duplicates   int  `json:"duplicates"`
	Failed       int  `json:"failed"`
	Suppressed   bool `json:"suppressed,omitempty"`
	DuplicateKey bool `json:"duplicateKey,omitempty"`
	Burst        bool `json:"burst,omitempty"`
}

// Options tunes a Dispatcher.
type Options struct {
	// BlockedMarker suppresses any notification whose body contains it, ignoring case.
	BlockedMarker string
	// BurstTTL is how long a follow-up key is remembered in process. Zero uses DefaultBurstTTL.
	BurstTTL time.Duration
	// KeyGuard is optional.
	KeyGuard KeyGuard
}
