// Package directory maps recipients to their Telegram chat and delivery
// preferences. A recipient proves control of a chat by sending a one-time
// code from it.
package directory

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"tradewatch/internal/models"
	"tradewatch/internal/storage"
)

var (
	ErrCodeUnknown       = errors.New("link code unknown")
	ErrCodeExpired       = errors.New("link code expired")
	ErrInvalidRecipient  = errors.New("invalid recipient")
	ErrInvalidPreference = errors.New("invalid preference")
)

// DefaultCodeTTL is how long a link code can be claimed.
const DefaultCodeTTL = 10 * time.Minute

const (
	codeSpace       = 1000000
	maxCodeAttempts = 5
)

// Recipient is a verified link together with its effective preferences.
type Recipient struct {
	ID         string
	ChatHandle string
	Preference *models.RecipientPreference
}

// LinkStatus is the externally visible state of a recipient's link.
type LinkStatus struct {
	RecipientID   string     `json:"recipientId"`
	Linked        bool       `json:"linked"`
	ChatHandle    string     `json:"chatHandle,omitempty"`
	LinkedAt      *time.Time `json:"linkedAt,omitempty"`
	Pending       bool       `json:"pending"`
	CodeExpiresAt *time.Time `json:"codeExpiresAt,omitempty"`
}

// Directory manages channel links and recipient preferences.
type Directory struct {
	store   storage.RecipientStore
	codeTTL time.Duration
	log     *logrus.Entry
	now     func() time.Time
	newCode func() (string, error)
}

// New creates a directory. A non-positive codeTTL uses DefaultCodeTTL.
func New(store storage.RecipientStore, log *logrus.Entry, codeTTL time.Duration) *Directory {
	if codeTTL <= 0 {
		codeTTL = DefaultCodeTTL
	}
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Directory{
		store:   store,
		codeTTL: codeTTL,
		log:     log.WithField("component", "directory"),
		now:     time.Now,
		newCode: randomCode,
	}
}

// SetClock replaces the directory's time source.
func (d *Directory) SetClock(now func() time.Time) {
	d.now = now
}

// RequestCode issues a fresh one-time code for recipientID. An existing
// verified chat keeps receiving notifications until the new code is claimed.
func (d *Directory) RequestCode(ctx context.Context, recipientID string) (string, time.Time, error) {
	recipientID = strings.TrimSpace(recipientID)
	if recipientID == "" {
		return "", time.Time{}, ErrInvalidRecipient
	}

	link, err := d.store.GetLink(ctx, recipientID)
	if errors.Is(err, storage.ErrNotFound) {
		link = &models.ChannelLink{RecipientID: recipientID}
	} else if err != nil {
		return "", time.Time{}, fmt.Errorf("load link %s: %w", recipientID, err)
	}

	expires := d.now().Add(d.codeTTL)
	link.CodeExpiresAt = &expires

	for attempt := 1; attempt <= maxCodeAttempts; attempt++ {
		code, err := d.newCode()
		if err != nil {
			return "", time.Time{}, fmt.Errorf("generate link code: %w", err)
		}
		link.Code = code

		err = d.store.SaveLink(ctx, link)
		if errors.Is(err, storage.ErrDuplicateKey) {
			d.log.WithFields(logrus.Fields{"recipient_id": recipientID, "attempt": attempt}).Warn("Link code collision, regenerating")
			continue
		}
		if err != nil {
			return "", time.Time{}, fmt.Errorf("save link %s: %w", recipientID, err)
		}

		d.log.WithFields(logrus.Fields{"recipient_id": recipientID, "expires_at": expires}).Info("Link code issued")
		return code, expires, nil
	}
	return "", time.Time{}, fmt.Errorf("no free link code after %d attempts", maxCodeAttempts)
}

// ClaimCode binds the recipient holding code to chatHandle and marks the link verified.
func (d *Directory) ClaimCode(ctx context.Context, code, chatHandle string) (*models.ChannelLink, error) {
	code = strings.TrimSpace(code)
	chatHandle = strings.TrimSpace(chatHandle)
	if code == "" {
		return nil, ErrCodeUnknown
	}
	if chatHandle == "" {
		return nil, fmt.Errorf("%w: empty chat handle", ErrInvalidRecipient)
	}

	link, err := d.store.GetLinkByCode(ctx, code)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrCodeUnknown
	}
	if err != nil {
		return nil, fmt.Errorf("find link code: %w", err)
	}

	now := d.now()
	if link.CodeExpiresAt != nil && now.After(*link.CodeExpiresAt) {
		return nil, ErrCodeExpired
	}

	link.ChatHandle = chatHandle
	link.Verified = true
	link.Code = ""
	link.CodeExpiresAt = nil
	link.LinkedAt = &now
	if err := d.store.SaveLink(ctx, link); err != nil {
		return nil, fmt.Errorf("save link %s: %w", link.RecipientID, err)
	}

	d.log.WithFields(logrus.Fields{"recipient_id": link.RecipientID, "chat_handle": chatHandle}).Info("Channel linked")
	return link, nil
}

// LinkStatus reports whether recipientID has a verified link.
func (d *Directory) LinkStatus(ctx context.Context, recipientID string) (*LinkStatus, error) {
	status := &LinkStatus{RecipientID: recipientID}

	link, err := d.store.GetLink(ctx, recipientID)
	if errors.Is(err, storage.ErrNotFound) {
		return status, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load link %s: %w", recipientID, err)
	}

	status.Linked = link.Verified && link.ChatHandle != ""
	if status.Linked {
		status.ChatHandle = link.ChatHandle
		status.LinkedAt = link.LinkedAt
	}
	if link.Code != "" && (link.CodeExpiresAt == nil || !d.now().After(*link.CodeExpiresAt)) {
		status.Pending = true
		status.CodeExpiresAt = link.CodeExpiresAt
	}
	return status, nil
}

// Preferences returns the stored preferences, or the defaults when none were saved.
func (d *Directory) Preferences(ctx context.Context, recipientID string) (*models.RecipientPreference, error) {
	pref, err := d.store.GetPreference(ctx, recipientID)
	if errors.Is(err, storage.ErrNotFound) {
		return models.DefaultPreference(recipientID), nil
	}
	if err != nil {
		return nil, fmt.Errorf("load preferences %s: %w", recipientID, err)
	}
	return pref, nil
}

// SetPreferences normalizes and stores pref.
func (d *Directory) SetPreferences(ctx context.Context, pref *models.RecipientPreference) error {
	if pref == nil || strings.TrimSpace(pref.RecipientID) == "" {
		return ErrInvalidRecipient
	}
	pref.Symbols = cleanList(pref.Symbols)
	pref.Timeframes = cleanList(pref.Timeframes)
	pref.Tiers = cleanList(pref.Tiers)
	for _, tier := range pref.Tiers {
		if !knownTier(tier) {
			return fmt.Errorf("%w: unknown tier %q", ErrInvalidPreference, tier)
		}
	}

	if err := d.store.SavePreference(ctx, pref); err != nil {
		return fmt.Errorf("save preferences %s: %w", pref.RecipientID, err)
	}
	return nil
}

// VerifiedRecipients lists every verified link with its effective preferences.
func (d *Directory) VerifiedRecipients(ctx context.Context) ([]Recipient, error) {
	links, err := d.store.ListVerifiedLinks(ctx)
	if err != nil {
		return nil, fmt.Errorf("list verified links: %w", err)
	}

	out := make([]Recipient, 0, len(links))
	for _, link := range links {
		pref, err := d.Preferences(ctx, link.RecipientID)
		if err != nil {
			return nil, err
		}
		out = append(out, Recipient{ID: link.RecipientID, ChatHandle: link.ChatHandle, Preference: pref})
	}
	return out, nil
}

// PurgeExpiredCodes clears unclaimed codes whose expiry has passed.
func (d *Directory) PurgeExpiredCodes(ctx context.Context) (int64, error) {
	n, err := d.store.ClearExpiredCodes(ctx, d.now())
	if err != nil {
		return 0, fmt.Errorf("purge expired link codes: %w", err)
	}
	return n, nil
}

func randomCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(codeSpace))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}

func cleanList(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]bool, len(in))
	for _, v := range in {
		v = strings.TrimSpace(v)
		key := strings.ToLower(v)
		if v == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, v)
	}
	return out
}

func knownTier(tier string) bool {
	switch models.Tier(strings.ToLower(tier)) {
	case models.TierBase, models.TierGood, models.TierGreat, models.TierElite:
		return true
	}
	return false
}
