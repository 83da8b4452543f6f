package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
)

// Job kinds.
const (
	JobEntry    = "entry"
	JobFollowUp = "followup"
)

// Job is a queued dispatch request.
type Job struct {
	Kind     string                `json:"kind"`
	Entry    *EntryNotification    `json:"entry,omitempty"`
	FollowUp *FollowUpNotification `json:"followUp,omitempty"`
}

// Run dispatches the job.
func (d *Dispatcher) Run(ctx context.Context, job Job) (*Report, error) {
	switch {
	case job.Kind == JobEntry && job.Entry != nil:
		return d.DispatchEntry(ctx, *job.Entry)
	case job.Kind == JobFollowUp && job.FollowUp != nil:
		return d.DispatchFollowUp(ctx, *job.FollowUp)
	}
	return nil, fmt.Errorf("%w: unknown job kind %q", ErrInvalidNotification, job.Kind)
}

// Validate checks a job without dispatching it.
func Validate(job Job) error {
	switch {
	case job.Kind == JobEntry && job.Entry != nil:
		return job.Entry.validate()
	case job.Kind == JobFollowUp && job.FollowUp != nil:
		return job.FollowUp.validate()
	}
	return fmt.Errorf("%w: unknown job kind %q", ErrInvalidNotification, job.Kind)
}

// HandleMessage decodes a queued job and runs it. Invalid jobs are dropped
// with a nil error so the broker does not redeliver them.
func (d *Dispatcher) HandleMessage(ctx context.Context, body []byte) error {
	var job Job
	if err := json.Unmarshal(body, &job); err != nil {
		d.log.WithError(err).Error("Dropping undecodable notification job")
		return nil
	}

	report, err := d.Run(ctx, job)
	if err != nil {
		if errors.Is(err, ErrInvalidNotification) {
			d.log.WithError(err).WithField("kind", job.Kind).Error("Dropping invalid notification job")
			return nil
		}
		return err
	}
	d.log.WithFields(logrus.Fields{"kind": job.Kind, "delivered": report.Delivered}).Debug("Notification job done")
	return nil
}
