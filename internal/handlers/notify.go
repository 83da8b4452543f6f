package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"tradewatch/internal/notify"
)

// Dispatcher delivers relayed notifications inline.
type Dispatcher interface {
	DispatchEntry(ctx context.Context, n notify.EntryNotification) (*notify.Report, error)
	DispatchFollowUp(ctx context.Context, n notify.FollowUpNotification) (*notify.Report, error)
}

// JobPublisher enqueues dispatch jobs for the worker.
type JobPublisher interface {
	Publish(ctx context.Context, queueName string, message interface{}) error
}

// NotifyHandler serves the notification relay endpoints. When a publisher
// and queue are set, jobs are enqueued for the worker instead of being
// dispatched in the request.
type NotifyHandler struct {
	dispatcher Dispatcher
	publisher  JobPublisher
	queue      string
	log        *logrus.Entry
}

func NewNotifyHandler(dispatcher Dispatcher, publisher JobPublisher, queue string, log *logrus.Entry) *NotifyHandler {
	return &NotifyHandler{
		dispatcher: dispatcher,
		publisher:  publisher,
		queue:      queue,
		log:        log.WithField("component", "notify_relay"),
	}
}

// Entry handles POST /notify/entry.
func (h *NotifyHandler) Entry(c *gin.Context) {
	var n notify.EntryNotification
	if err := c.ShouldBindJSON(&n); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	h.handle(c, notify.Job{Kind: notify.JobEntry, Entry: &n}, n.TradeID, func(ctx context.Context) (*notify.Report, error) {
		return h.dispatcher.DispatchEntry(ctx, n)
	})
}

// FollowUp handles POST /notify/followup.
func (h *NotifyHandler) FollowUp(c *gin.Context) {
	var n notify.FollowUpNotification
	if err := c.ShouldBindJSON(&n); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	h.handle(c, notify.Job{Kind: notify.JobFollowUp, FollowUp: &n}, n.TradeID, func(ctx context.Context) (*notify.Report, error) {
		return h.dispatcher.DispatchFollowUp(ctx, n)
	})
}

func (h *NotifyHandler) handle(c *gin.Context, job notify.Job, tradeID string, dispatch func(context.Context) (*notify.Report, error)) {
	log := h.log.WithFields(logrus.Fields{"trade_id": tradeID, "kind": job.Kind})

	if h.publisher != nil && h.queue != "" {
		// Validate before enqueueing so callers still get a 400.
		if err := notify.Validate(job); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if err := h.publisher.Publish(c.Request.Context(), h.queue, job); err != nil {
			log.WithError(err).Error("Failed to enqueue notification job")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to enqueue notification"})
			return
		}
		c.JSON(http.StatusAccepted, gin.H{"success": true, "queued": true})
		return
	}

	report, err := dispatch(c.Request.Context())
	if err != nil {
		if errors.Is(err, notify.ErrInvalidNotification) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		log.WithError(err).Error("Failed to dispatch notification")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to dispatch notification"})
		return
	}

	if report.Suppressed {
		c.JSON(http.StatusOK, gin.H{"success": true})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "report": report})
}
