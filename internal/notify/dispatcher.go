package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"tradewatch/internal/directory"
	"tradewatch/internal/metrics"
	"tradewatch/internal/models"
	"tradewatch/internal/storage"
)

// Dispatcher delivers entry and follow-up notifications.
type Dispatcher struct {
	records    storage.NotificationStore
	recipients RecipientSource
	sender     Sender
	guard      KeyGuard
	burst      *BurstCache
	marker     string
	log        *logrus.Entry
}

func NewDispatcher(records storage.NotificationStore, recipients RecipientSource, sender Sender, log *logrus.Entry, opts Options) *Dispatcher {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Dispatcher{
		records:    records,
		recipients: recipients,
		sender:     sender,
		guard:      opts.KeyGuard,
		burst:      NewBurstCache(opts.BurstTTL),
		marker:     strings.ToLower(strings.TrimSpace(opts.BlockedMarker)),
		log:        log.WithField("component", "notify"),
	}
}

// DispatchEntry sends n to every verified recipient whose preferences admit it.
func (d *Dispatcher) DispatchEntry(ctx context.Context, n EntryNotification) (*Report, error) {
	if err := n.validate(); err != nil {
		return nil, err
	}

	log := d.log.WithFields(logrus.Fields{
		"trade_id":   n.TradeID,
		"alert_type": models.AlertTypeEntry,
		"key":        n.IdempotencyKey,
	})
	report := &Report{}

	if d.blocked(n.Body) {
		log.Warn("Notification suppressed by content filter")
		metrics.Notifications.WithLabelValues(models.AlertTypeEntry, metrics.ResultSuppressed).Inc()
		report.Suppressed = true
		return report, nil
	}

	report.DuplicateKey = d.reserve(ctx, log, "entry:"+n.IdempotencyKey)

	recipients, err := d.recipients.VerifiedRecipients(ctx)
	if err != nil {
		return nil, fmt.Errorf("load recipients: %w", err)
	}

	ev := directory.Event{Symbol: n.Symbol, Timeframe: n.Timeframe, Tier: n.Tier}
	text := render(n.Title, n.Body)
	for _, r := range recipients {
		if !directory.Matches(r.Preference, ev) {
			report.Skipped++
			metrics.Notifications.WithLabelValues(models.AlertTypeEntry, metrics.ResultSkipped).Inc()
			continue
		}
		d.deliver(ctx, log, report, r, n.TradeID, models.AlertTypeEntry, n.IdempotencyKey, text)
	}

	log.WithFields(logrus.Fields{
		"delivered":  report.Delivered,
		"skipped":    report.Skipped,
		"duplicates": report.Duplicates,
		"failed":     report.Failed,
	}).Info("Entry notification dispatched")
	return report, nil
}

// DispatchFollowUp sends n to the recipients that received the trade's entry notification.
func (d *Dispatcher) DispatchFollowUp(ctx context.Context, n FollowUpNotification) (*Report, error) {
	if err := n.validate(); err != nil {
		return nil, err
	}

	kind := alertType(n.Type)
	key := n.TradeID + ":" + kind
	log := d.log.WithFields(logrus.Fields{"trade_id": n.TradeID, "alert_type": kind})
	report := &Report{}

	if d.blocked(n.Body) {
		log.Warn("Notification suppressed by content filter")
		metrics.Notifications.WithLabelValues(kind, metrics.ResultSuppressed).Inc()
		report.Suppressed = true
		return report, nil
	}

	if d.burst.Mark(key) {
		log.Info("Follow-up repeated within burst window, ignored")
		metrics.Notifications.WithLabelValues(kind, metrics.ResultDuplicate).Inc()
		report.Burst = true
		return report, nil
	}

	report.DuplicateKey = d.reserve(ctx, log, "followup:"+key)

	ids, err := d.records.RecipientsFor(ctx, n.TradeID, models.AlertTypeEntry)
	if err != nil {
		d.burst.Forget(key)
		return nil, fmt.Errorf("load entry recipients for %s: %w", n.TradeID, err)
	}
	if len(ids) == 0 {
		log.Info("No entry recipients for trade, nothing to follow up")
		return report, nil
	}

	verified, err := d.recipients.VerifiedRecipients(ctx)
	if err != nil {
		d.burst.Forget(key)
		return nil, fmt.Errorf("load recipients: %w", err)
	}
	byID := make(map[string]directory.Recipient, len(verified))
	for _, r := range verified {
		byID[r.ID] = r
	}

	text := render(n.Title, n.Body)
	for _, id := range ids {
		r, ok := byID[id]
		if !ok || (r.Preference != nil && !r.Preference.ChannelEnabled) {
			report.Skipped++
			metrics.Notifications.WithLabelValues(kind, metrics.ResultSkipped).Inc()
			continue
		}
		d.deliver(ctx, log, report, r, n.TradeID, kind, key, text)
	}

	log.WithFields(logrus.Fields{
		"delivered":  report.Delivered,
		"skipped":    report.Skipped,
		"duplicates": report.Duplicates,
		"failed":     report.Failed,
	}).Info("Follow-up notification dispatched")
	return report, nil
}

// deliver records the attempt, then sends. A failed send is marked on the record and not retried.
func (d *Dispatcher) deliver(ctx context.Context, log *logrus.Entry, report *Report, r directory.Recipient, tradeID, kind, key, text string) {
	log = log.WithField("recipient_id", r.ID)

	rec := &models.NotificationRecord{
		TradeID:        tradeID,
		RecipientID:    r.ID,
		AlertType:      kind,
		IdempotencyKey: key,
		Status:         models.NotificationStatusSent,
	}
	if err := d.records.InsertRecord(ctx, rec); err != nil {
		if errors.Is(err, storage.ErrDuplicateKey) {
			report.Duplicates++
			metrics.Notifications.WithLabelValues(kind, metrics.ResultDuplicate).Inc()
			return
		}
		log.WithError(err).WithField("stage", "insert_record").Error("Failed to record notification, not sending")
		report.Failed++
		metrics.Notifications.WithLabelValues(kind, metrics.ResultFailed).Inc()
		return
	}

	if err := d.sender.Send(ctx, r.ChatHandle, text); err != nil {
		log.WithError(err).WithField("stage", "send").Error("Notification send failed")
		if markErr := d.records.MarkFailed(ctx, tradeID, r.ID, kind, err.Error()); markErr != nil {
			log.WithError(markErr).WithField("stage", "mark_failed").Error("Failed to mark notification as failed")
		}
		report.Failed++
		metrics.Notifications.WithLabelValues(kind, metrics.ResultFailed).Inc()
		return
	}

	report.Delivered++
	metrics.Notifications.WithLabelValues(kind, metrics.ResultDelivered).Inc()
}

// reserve consults the advisory guard and reports whether key was already taken.
// The outcome never stops the dispatch; per-recipient records are authoritative.
func (d *Dispatcher) reserve(ctx context.Context, log *logrus.Entry, key string) bool {
	if d.guard == nil {
		return false
	}
	fresh, err := d.guard.Reserve(ctx, key)
	if err != nil {
		log.WithError(err).WithField("stage", "key_guard").Warn("Idempotency key check failed, continuing")
		return false
	}
	if !fresh {
		log.Info("Idempotency key seen before, relying on per-recipient records")
	}
	return !fresh
}

func (d *Dispatcher) blocked(body string) bool {
	return d.marker != "" && strings.Contains(strings.ToLower(body), d.marker)
}

func render(title, body string) string {
	return strings.TrimSpace(title) + "\n\n" + strings.TrimSpace(body)
}
