package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"tradewatch/internal/models"
	"tradewatch/internal/storage"
)

// RecipientStore is an in-memory implementation of storage.RecipientStore.
type RecipientStore struct {
	mu    sync.RWMutex
	links map[string]*models.ChannelLink
	prefs map[string]*models.RecipientPreference
}

// NewRecipientStore creates a new in-memory recipient store.
func NewRecipientStore() *RecipientStore {
	return &RecipientStore{
		links: make(map[string]*models.ChannelLink),
		prefs: make(map[string]*models.RecipientPreference),
	}
}

// GetLink returns the link for recipientID.
func (s *RecipientStore) GetLink(_ context.Context, recipientID string) (*models.ChannelLink, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	link, ok := s.links[recipientID]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return cloneLink(link), nil
}

// GetLinkByCode returns the link holding code.
func (s *RecipientStore) GetLinkByCode(_ context.Context, code string) (*models.ChannelLink, error) {
	if code == "" {
		return nil, storage.ErrNotFound
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, link := range s.links {
		if link.Code == code {
			return cloneLink(link), nil
		}
	}
	return nil, storage.ErrNotFound
}

// SaveLink inserts or replaces the link keyed by RecipientID.
func (s *RecipientStore) SaveLink(_ context.Context, link *models.ChannelLink) error {
	if link == nil || link.RecipientID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if link.Code != "" {
		for id, other := range s.links {
			if id != link.RecipientID && other.Code == link.Code {
				return storage.ErrDuplicateKey
			}
		}
	}

	now := time.Now()
	if existing, ok := s.links[link.RecipientID]; ok {
		link.CreatedAt = existing.CreatedAt
	} else if link.CreatedAt.IsZero() {
		link.CreatedAt = now
	}
	link.UpdatedAt = now
	s.links[link.RecipientID] = cloneLink(link)
	return nil
}

// ListVerifiedLinks returns verified links with a chat handle, ordered by recipient.
func (s *RecipientStore) ListVerifiedLinks(_ context.Context) ([]*models.ChannelLink, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*models.ChannelLink
	for _, link := range s.links {
		if link.Verified && link.ChatHandle != "" {
			out = append(out, cloneLink(link))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RecipientID < out[j].RecipientID })
	return out, nil
}

// ClearExpiredCodes removes unclaimed codes that expired before t.
func (s *RecipientStore) ClearExpiredCodes(_ context.Context, t time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for _, link := range s.links {
		if link.Code != "" && link.CodeExpiresAt != nil && link.CodeExpiresAt.Before(t) {
			link.Code = ""
			link.CodeExpiresAt = nil
			n++
		}
	}
	return n, nil
}

// GetPreference returns the preference row.
func (s *RecipientStore) GetPreference(_ context.Context, recipientID string) (*models.RecipientPreference, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	pref, ok := s.prefs[recipientID]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return clonePreference(pref), nil
}

// SavePreference inserts or replaces the preference row.
func (s *RecipientStore) SavePreference(_ context.Context, pref *models.RecipientPreference) error {
	if pref == nil || pref.RecipientID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	pref.UpdatedAt = time.Now()
	s.prefs[pref.RecipientID] = clonePreference(pref)
	return nil
}

func cloneLink(l *models.ChannelLink) *models.ChannelLink {
	c := *l
	if l.CodeExpiresAt != nil {
		v := *l.CodeExpiresAt
		c.CodeExpiresAt = &v
	}
	if l.LinkedAt != nil {
		v := *l.LinkedAt
		c.LinkedAt = &v
	}
	return &c
}

func clonePreference(p *models.RecipientPreference) *models.RecipientPreference {
	c := *p
	c.Symbols = append([]string(nil), p.Symbols...)
	c.Timeframes = append([]string(nil), p.Timeframes...)
	c.Tiers = append([]string(nil), p.Tiers...)
	return &c
}
