package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"tradewatch/internal/directory"
	"tradewatch/internal/models"
)

// RecipientDirectory is the part of directory.Directory the handlers use.
type RecipientDirectory interface {
	RequestCode(ctx context.Context, recipientID string) (string, time.Time, error)
	LinkStatus(ctx context.Context, recipientID string) (*directory.LinkStatus, error)
	Preferences(ctx context.Context, recipientID string) (*models.RecipientPreference, error)
	SetPreferences(ctx context.Context, pref *models.RecipientPreference) error
}

// RecipientHandler serves the recipient-facing link and preference endpoints.
type RecipientHandler struct {
	dir RecipientDirectory
	log *logrus.Entry
}

func NewRecipientHandler(dir RecipientDirectory, log *logrus.Entry) *RecipientHandler {
	return &RecipientHandler{dir: dir, log: log.WithField("component", "recipients")}
}

// PreferencesRequest replaces a recipient's preferences. A missing
// channelEnabled keeps the stored value.
type PreferencesRequest struct {
	ChannelEnabled *bool    `json:"channelEnabled"`
	Symbols        []string `json:"symbols"`
	Timeframes     []string `json:"timeframes"`
	Tiers          []string `json:"tiers"`
}

// RequestLinkCode handles POST /recipients/:recipient_id/link-code.
func (h *RecipientHandler) RequestLinkCode(c *gin.Context) {
	recipientID := c.Param("recipient_id")

	code, expires, err := h.dir.RequestCode(c.Request.Context(), recipientID)
	if err != nil {
		h.fail(c, recipientID, "Failed to issue link code", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"code": code, "expiresAt": expires})
}

// LinkStatus handles GET /recipients/:recipient_id/link-status.
func (h *RecipientHandler) LinkStatus(c *gin.Context) {
	recipientID := c.Param("recipient_id")

	status, err := h.dir.LinkStatus(c.Request.Context(), recipientID)
	if err != nil {
		h.fail(c, recipientID, "Failed to load link status", err)
		return
	}

	c.JSON(http.StatusOK, status)
}

// GetPreferences handles GET /recipients/:recipient_id/preferences.
func (h *RecipientHandler) GetPreferences(c *gin.Context) {
	recipientID := c.Param("recipient_id")

	pref, err := h.dir.Preferences(c.Request.Context(), recipientID)
	if err != nil {
		h.fail(c, recipientID, "Failed to load preferences", err)
		return
	}

	c.JSON(http.StatusOK, pref)
}

// PutPreferences handles PUT /recipients/:recipient_id/preferences.
func (h *RecipientHandler) PutPreferences(c *gin.Context) {
	recipientID := c.Param("recipient_id")

	var req PreferencesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx := c.Request.Context()
	current, err := h.dir.Preferences(ctx, recipientID)
	if err != nil {
		h.fail(c, recipientID, "Failed to load preferences", err)
		return
	}

	pref := &models.RecipientPreference{
		RecipientID:    recipientID,
		ChannelEnabled: current.ChannelEnabled,
		Symbols:        req.Symbols,
		Timeframes:     req.Timeframes,
		Tiers:          req.Tiers,
	}
	if req.ChannelEnabled != nil {
		pref.ChannelEnabled = *req.ChannelEnabled
	}

	if err := h.dir.SetPreferences(ctx, pref); err != nil {
		h.fail(c, recipientID, "Failed to save preferences", err)
		return
	}

	c.JSON(http.StatusOK, pref)
}

func (h *RecipientHandler) fail(c *gin.Context, recipientID, msg string, err error) {
	if errors.Is(err, directory.ErrInvalidRecipient) || errors.Is(err, directory.ErrInvalidPreference) {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	h.log.WithError(err).WithField("recipient_id", recipientID).Error(msg)
	c.JSON(http.StatusInternalServerError, gin.H{"error": msg})
}
