// Package schedule runs periodic maintenance: expired link codes and old
// advisory notification keys are purged on cron specs with a seconds field.
package schedule

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"tradewatch/pkg/config"
)

const jobTimeout = time.Minute

// CodePurger clears unclaimed link codes past their expiry.
type CodePurger interface {
	PurgeExpiredCodes(ctx context.Context) (int64, error)
}

// KeyPurger deletes advisory keys created before a cutoff.
type KeyPurger interface {
	PurgeKeysBefore(ctx context.Context, t time.Time) (int64, error)
}

// Maintenance holds the purge jobs.
type Maintenance struct {
	codes     CodePurger
	keys      KeyPurger
	retention time.Duration
	now       func() time.Time
	log       *logrus.Entry
}

func NewMaintenance(codes CodePurger, keys KeyPurger, retention time.Duration, log *logrus.Entry) *Maintenance {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Maintenance{
		codes:     codes,
		keys:      keys,
		retention: retention,
		now:       time.Now,
		log:       log.WithField("component", "schedule"),
	}
}

// PurgeLinkCodes clears expired unclaimed link codes.
func (m *Maintenance) PurgeLinkCodes(ctx context.Context) error {
	n, err := m.codes.PurgeExpiredCodes(ctx)
	if err != nil {
		return err
	}
	if n > 0 {
		m.log.WithField("cleared", n).Info("Expired link codes purged")
	}
	return nil
}

// PurgeNotificationKeys deletes advisory keys older than the retention.
func (m *Maintenance) PurgeNotificationKeys(ctx context.Context) error {
	if m.retention <= 0 {
		return nil
	}
	cutoff := m.now().Add(-m.retention)
	n, err := m.keys.PurgeKeysBefore(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("purge notification keys: %w", err)
	}
	if n > 0 {
		m.log.WithFields(logrus.Fields{"deleted": n, "cutoff": cutoff}).Info("Notification keys purged")
	}
	return nil
}

// NewCron returns a cron with a seconds field that skips a run while the previous one is still going.
func NewCron() *cron.Cron {
	return cron.New(
		cron.WithSeconds(),
		cron.WithChain(cron.Recover(cron.DiscardLogger), cron.SkipIfStillRunning(cron.DiscardLogger)),
	)
}

// Register adds the maintenance jobs to c. An empty spec leaves that job out.
func Register(ctx context.Context, c *cron.Cron, m *Maintenance, cfg config.ScheduleConfig) error {
	jobs := []struct {
		name string
		spec string
		run  func(context.Context) error
	}{
		{"purge_link_codes", cfg.PurgeLinkCodes, m.PurgeLinkCodes},
		{"purge_notification_keys", cfg.PurgeKeys, m.PurgeNotificationKeys},
	}

	for _, job := range jobs {
		if job.spec == "" {
			continue
		}
		job := job
		if _, err := c.AddFunc(job.spec, func() {
			runCtx, cancel := context.WithTimeout(ctx, jobTimeout)
			defer cancel()
			if err := job.run(runCtx); err != nil {
				m.log.WithError(err).WithField("job", job.name).Error("Scheduled job failed")
			}
		}); err != nil {
			return fmt.Errorf("schedule %s %q: %w", job.name, job.spec, err)
		}
		m.log.WithFields(logrus.Fields{"job": job.name, "spec": job.spec}).Info("Scheduled job registered")
	}
	return nil
}
