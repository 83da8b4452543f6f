package notify

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/lib/pq"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradewatch/internal/directory"
	"tradewatch/internal/models"
	"tradewatch/internal/storage/memory"
)

type sentMessage struct {
	chat string
	text string
}

type fakeSender struct {
	mu   sync.Mutex
	sent []sentMessage
	fail map[string]error
}

func (s *fakeSender) Send(_ context.Context, chat, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail[chat]; err != nil {
		return err
	}
	s.sent = append(s.sent, sentMessage{chat, text})
	return nil
}

func (s *fakeSender) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sent)
}

type staticRecipients struct {
	list []directory.Recipient
	err  error
}

func (s *staticRecipients) VerifiedRecipients(context.Context) ([]directory.Recipient, error) {
	return s.list, s.err
}

type stubGuard struct {
	seen map[string]bool
	err  error
}

func (g *stubGuard) Reserve(_ context.Context, key string) (bool, error) {
	if g.err != nil {
		return false, g.err
	}
	if g.seen[key] {
		return false, nil
	}
	g.seen[key] = true
	return true, nil
}

func quietLog() *logrus.Entry {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logrus.NewEntry(logger)
}

func recipient(id string, pref *models.RecipientPreference) directory.Recipient {
	if pref == nil {
		pref = models.DefaultPreference(id)
	}
	return directory.Recipient{ID: id, ChatHandle: "chat-" + id, Preference: pref}
}

func entryNote() EntryNotification {
	return EntryNotification{
		TradeID:        "BTC_15_1",
		IdempotencyKey: "entry-BTC_15_1",
		Title:          "BTC LONG",
		Body:           "Entry 100, stop 95",
		Symbol:         "BTC",
		Timeframe:      "15",
		Tier:           "elite",
	}
}

type dispatchFixture struct {
	d          *Dispatcher
	records    *memory.NotificationStore
	sender     *fakeSender
	recipients *staticRecipients
}

func newDispatchFixture(opts Options, recipients ...directory.Recipient) *dispatchFixture {
	f := &dispatchFixture{
		records:    memory.NewNotificationStore(),
		sender:     &fakeSender{fail: map[string]error{}},
		recipients: &staticRecipients{list: recipients},
	}
	f.d = NewDispatcher(f.records, f.recipients, f.sender, quietLog(), opts)
	return f
}

func TestDispatchEntry(t *testing.T) {
	ctx := context.Background()

	t.Run("delivers to matching recipients once", func(t *testing.T) {
		f := newDispatchFixture(Options{},
			recipient("alice", nil),
			recipient("bob", &models.RecipientPreference{ChannelEnabled: true, Symbols: pq.StringArray{"ETH"}}),
			recipient("carol", &models.RecipientPreference{ChannelEnabled: false}),
		)

		report, err := f.d.DispatchEntry(ctx, entryNote())
		require.NoError(t, err)
		assert.Equal(t, 1, report.Delivered)
		assert.Equal(t, 2, report.Skipped)
		require.Len(t, f.sender.sent, 1)
		assert.Equal(t, "chat-alice", f.sender.sent[0].chat)
		assert.Equal(t, "BTC LONG\n\nEntry 100, stop 95", f.sender.sent[0].text)

		rec, ok := f.records.Record("BTC_15_1", "alice", models.AlertTypeEntry)
		require.True(t, ok)
		assert.Equal(t, models.NotificationStatusSent, rec.Status)
		assert.Equal(t, "entry-BTC_15_1", rec.IdempotencyKey)

		report, err = f.d.DispatchEntry(ctx, entryNote())
		require.NoError(t, err)
		assert.Equal(t, 0, report.Delivered)
		assert.Equal(t, 1, report.Duplicates)
		assert.Equal(t, 1, f.sender.count())
	})

	t.Run("rejects incomplete notifications", func(t *testing.T) {
		f := newDispatchFixture(Options{}, recipient("alice", nil))
		for _, mutate := range []func(*EntryNotification){
			func(n *EntryNotification) { n.TradeID = "" },
			func(n *EntryNotification) { n.IdempotencyKey = " " },
			func(n *EntryNotification) { n.Title = "" },
			func(n *EntryNotification) { n.Body = "" },
			func(n *EntryNotification) { n.IdempotencyKey = strings.Repeat("k", maxIdempotencyKeyLen+1) },
			func(n *EntryNotification) { n.TradeID = strings.Repeat("t", maxTradeIDLen+1) },
		} {
			n := entryNote()
			mutate(&n)
			_, err := f.d.DispatchEntry(ctx, n)
			assert.ErrorIs(t, err, ErrInvalidNotification)
		}
		assert.Zero(t, f.sender.count())
	})

	t.Run("content filter suppresses without sending", func(t *testing.T) {
		f := newDispatchFixture(Options{BlockedMarker: "[Internal]"}, recipient("alice", nil))
		n := entryNote()
		n.Body = "debug [INTERNAL] payload"

		report, err := f.d.DispatchEntry(ctx, n)
		require.NoError(t, err)
		assert.True(t, report.Suppressed)
		assert.Zero(t, f.sender.count())
		_, ok := f.records.Record("BTC_15_1", "alice", models.AlertTypeEntry)
		assert.False(t, ok)
	})

	t.Run("failed send is recorded and not retried", func(t *testing.T) {
		f := newDispatchFixture(Options{}, recipient("alice", nil), recipient("bob", nil))
		f.sender.fail["chat-bob"] = errors.New("chat not found")

		report, err := f.d.DispatchEntry(ctx, entryNote())
		require.NoError(t, err)
		assert.Equal(t, 1, report.Delivered)
		assert.Equal(t, 1, report.Failed)

		rec, ok := f.records.Record("BTC_15_1", "bob", models.AlertTypeEntry)
		require.True(t, ok)
		assert.Equal(t, models.NotificationStatusFailed, rec.Status)
		assert.Equal(t, "chat not found", rec.Error)

		delete(f.sender.fail, "chat-bob")
		report, err = f.d.DispatchEntry(ctx, entryNote())
		require.NoError(t, err)
		assert.Equal(t, 2, report.Duplicates)
		assert.Equal(t, 1, f.sender.count())
	})

	t.Run("advisory key duplicates still consult records", func(t *testing.T) {
		guard := &stubGuard{seen: map[string]bool{"entry:entry-BTC_15_1": true}}
		f := newDispatchFixture(Options{KeyGuard: guard}, recipient("alice", nil))

		report, err := f.d.DispatchEntry(ctx, entryNote())
		require.NoError(t, err)
		assert.True(t, report.DuplicateKey)
		assert.Equal(t, 1, report.Delivered)
	})

	t.Run("advisory key errors are not fatal", func(t *testing.T) {
		f := newDispatchFixture(Options{KeyGuard: &stubGuard{err: errors.New("redis down")}}, recipient("alice", nil))

		report, err := f.d.DispatchEntry(ctx, entryNote())
		require.NoError(t, err)
		assert.Equal(t, 1, report.Delivered)
	})

	t.Run("recipient listing failure is an error", func(t *testing.T) {
		f := newDispatchFixture(Options{})
		f.recipients.err = errors.New("db down")

		_, err := f.d.DispatchEntry(ctx, entryNote())
		require.Error(t, err)
		assert.NotErrorIs(t, err, ErrInvalidNotification)
	})

	t.Run("concurrent duplicates deliver once per recipient", func(t *testing.T) {
		f := newDispatchFixture(Options{}, recipient("alice", nil), recipient("bob", nil))

		var wg sync.WaitGroup
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := f.d.DispatchEntry(ctx, entryNote())
				assert.NoError(t, err)
			}()
		}
		wg.Wait()

		assert.Equal(t, 2, f.sender.count())
	})
}

func TestDispatchFollowUp(t *testing.T) {
	ctx := context.Background()
	followUp := FollowUpNotification{TradeID: "BTC_15_1", Type: "tp1", Title: "BTC TP1", Body: "TP1 hit at 105"}

	t.Run("goes only to entry recipients", func(t *testing.T) {
		f := newDispatchFixture(Options{}, recipient("alice", nil), recipient("bob", nil))
		require.NoError(t, f.records.InsertRecord(ctx, &models.NotificationRecord{TradeID: "BTC_15_1", RecipientID: "alice", AlertType: models.AlertTypeEntry}))

		report, err := f.d.DispatchFollowUp(ctx, followUp)
		require.NoError(t, err)
		assert.Equal(t, 1, report.Delivered)
		require.Len(t, f.sender.sent, 1)
		assert.Equal(t, "chat-alice", f.sender.sent[0].chat)

		_, ok := f.records.Record("BTC_15_1", "alice", "TP1")
		assert.True(t, ok)
	})

	t.Run("recipients whose entry send failed get no follow-up", func(t *testing.T) {
		f := newDispatchFixture(Options{}, recipient("alice", nil), recipient("bob", nil))
		f.sender.fail["chat-bob"] = errors.New("chat not found")

		report, err := f.d.DispatchEntry(ctx, entryNote())
		require.NoError(t, err)
		require.Equal(t, 1, report.Failed)

		report, err = f.d.DispatchFollowUp(ctx, followUp)
		require.NoError(t, err)
		assert.Equal(t, 1, report.Delivered)
		assert.Zero(t, report.Failed)
		require.Len(t, f.sender.sent, 2)
		assert.Equal(t, "chat-alice", f.sender.sent[1].chat)

		_, ok := f.records.Record("BTC_15_1", "bob", "TP1")
		assert.False(t, ok)
	})

	t.Run("burst duplicates are absorbed in process", func(t *testing.T) {
		f := newDispatchFixture(Options{}, recipient("alice", nil))
		require.NoError(t, f.records.InsertRecord(ctx, &models.NotificationRecord{TradeID: "BTC_15_1", RecipientID: "alice", AlertType: models.AlertTypeEntry}))

		_, err := f.d.DispatchFollowUp(ctx, followUp)
		require.NoError(t, err)
		report, err := f.d.DispatchFollowUp(ctx, followUp)
		require.NoError(t, err)
		assert.True(t, report.Burst)
		assert.Equal(t, 1, f.sender.count())
	})

	t.Run("durable record catches repeats after the burst window", func(t *testing.T) {
		f := newDispatchFixture(Options{BurstTTL: time.Minute}, recipient("alice", nil))
		now := time.Now()
		f.d.burst.now = func() time.Time { return now }
		require.NoError(t, f.records.InsertRecord(ctx, &models.NotificationRecord{TradeID: "BTC_15_1", RecipientID: "alice", AlertType: models.AlertTypeEntry}))

		_, err := f.d.DispatchFollowUp(ctx, followUp)
		require.NoError(t, err)

		now = now.Add(2 * time.Minute)
		report, err := f.d.DispatchFollowUp(ctx, followUp)
		require.NoError(t, err)
		assert.False(t, report.Burst)
		assert.Equal(t, 1, report.Duplicates)
		assert.Equal(t, 1, f.sender.count())
	})

	t.Run("unlinked entry recipients are skipped", func(t *testing.T) {
		f := newDispatchFixture(Options{})
		require.NoError(t, f.records.InsertRecord(ctx, &models.NotificationRecord{TradeID: "BTC_15_1", RecipientID: "alice", AlertType: models.AlertTypeEntry}))

		report, err := f.d.DispatchFollowUp(ctx, followUp)
		require.NoError(t, err)
		assert.Equal(t, 1, report.Skipped)
		assert.Zero(t, f.sender.count())
	})

	t.Run("entry type is reserved", func(t *testing.T) {
		f := newDispatchFixture(Options{})
		n := followUp
		n.Type = "entry"
		_, err := f.d.DispatchFollowUp(ctx, n)
		assert.ErrorIs(t, err, ErrInvalidNotification)
	})

	t.Run("type wider than the record column is rejected", func(t *testing.T) {
		f := newDispatchFixture(Options{}, recipient("alice", nil))
		require.NoError(t, f.records.InsertRecord(ctx, &models.NotificationRecord{TradeID: "BTC_15_1", RecipientID: "alice", AlertType: models.AlertTypeEntry}))

		n := followUp
		n.Type = strings.Repeat("x", maxAlertTypeLen+1)
		_, err := f.d.DispatchFollowUp(ctx, n)
		assert.ErrorIs(t, err, ErrInvalidNotification)

		n.Type = strings.Repeat("x", maxAlertTypeLen)
		report, err := f.d.DispatchFollowUp(ctx, n)
		require.NoError(t, err)
		assert.Equal(t, 1, report.Delivered)
	})

	t.Run("failed lookup does not poison the burst window", func(t *testing.T) {
		f := newDispatchFixture(Options{}, recipient("alice", nil))
		require.NoError(t, f.records.InsertRecord(ctx, &models.NotificationRecord{TradeID: "BTC_15_1", RecipientID: "alice", AlertType: models.AlertTypeEntry}))
		f.recipients.err = errors.New("db down")

		_, err := f.d.DispatchFollowUp(ctx, followUp)
		require.Error(t, err)

		f.recipients.err = nil
		report, err := f.d.DispatchFollowUp(ctx, followUp)
		require.NoError(t, err)
		assert.Equal(t, 1, report.Delivered)
	})
}

func TestHandleMessage(t *testing.T) {
	ctx := context.Background()
	f := newDispatchFixture(Options{}, recipient("alice", nil))

	n := entryNote()
	body, err := json.Marshal(Job{Kind: JobEntry, Entry: &n})
	require.NoError(t, err)
	require.NoError(t, f.d.HandleMessage(ctx, body))
	assert.Equal(t, 1, f.sender.count())

	assert.NoError(t, f.d.HandleMessage(ctx, []byte("not json")))
	assert.NoError(t, f.d.HandleMessage(ctx, []byte(`{"kind":"bogus"}`)))

	f.recipients.err = errors.New("db down")
	other := entryNote()
	other.TradeID = "ETH_15_1"
	body, err = json.Marshal(Job{Kind: JobEntry, Entry: &other})
	require.NoError(t, err)
	assert.Error(t, f.d.HandleMessage(ctx, body), "store failures are returned for redelivery")
}

func TestBurstCache(t *testing.T) {
	c := NewBurstCache(time.Minute)
	now := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	assert.False(t, c.Mark("a"))
	assert.True(t, c.Mark("a"))
	assert.False(t, c.Mark("b"))
	assert.Equal(t, 2, c.Len())

	now = now.Add(time.Minute)
	assert.False(t, c.Mark("a"), "expired key is new again")
	assert.Equal(t, 1, c.Len())

	c.Forget("a")
	assert.False(t, c.Mark("a"))
}

func TestValidateJob(t *testing.T) {
	entry := &EntryNotification{TradeID: "BTC_15_1", IdempotencyKey: "k", Title: "t", Body: "b"}
	assert.NoError(t, Validate(Job{Kind: JobEntry, Entry: entry}))

	followUp := &FollowUpNotification{TradeID: "BTC_15_1", Type: "tp1", Title: "t", Body: "b"}
	assert.NoError(t, Validate(Job{Kind: JobFollowUp, FollowUp: followUp}))

	assert.ErrorIs(t, Validate(Job{Kind: JobEntry}), ErrInvalidNotification)
	assert.ErrorIs(t, Validate(Job{Kind: JobFollowUp, FollowUp: &FollowUpNotification{TradeID: "x", Type: "entry", Title: "t", Body: "b"}}), ErrInvalidNotification)
	assert.ErrorIs(t, Validate(Job{Kind: "other"}), ErrInvalidNotification)
}
