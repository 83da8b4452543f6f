package app

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradewatch/internal/notify"
	"tradewatch/pkg/config"
)

func quietLog() *logrus.Entry {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logrus.NewEntry(logger)
}

func TestNewRouterWithoutBot(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cfg := &config.Config{Storage: config.StorageMemory, WebhookToken: "tok"}
	svc := NewServices(cfg, MemoryStores(), Options{Log: quietLog()})
	require.Nil(t, svc.Commands)

	r := NewRouter(cfg, svc, nil)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/telegram/webhook", strings.NewReader("{}")))
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(`{"id":"BTC_15_1","direction":"LONG"}`)))
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestDisabledSenderMarksRecordsFailed(t *testing.T) {
	ctx := context.Background()
	cfg := &config.Config{Storage: config.StorageMemory}
	stores := MemoryStores()
	svc := NewServices(cfg, stores, Options{Log: quietLog()})

	code, _, err := svc.Directory.RequestCode(ctx, "dave")
	require.NoError(t, err)
	_, err = svc.Directory.ClaimCode(ctx, code, "4242")
	require.NoError(t, err)

	report, err := svc.Dispatcher.DispatchEntry(ctx, notify.EntryNotification{
		TradeID: "BTC_15_1", IdempotencyKey: "BTC_15_1:entry", Title: "t", Body: "b",
	})
	require.NoError(t, err)
	assert.Equal(t, 1, report.Failed)
	assert.Equal(t, 0, report.Delivered)

	// The record stays, so a retry does not resend.
	report, err = svc.Dispatcher.DispatchEntry(ctx, notify.EntryNotification{
		TradeID: "BTC_15_1", IdempotencyKey: "BTC_15_1:entry", Title: "t", Body: "b",
	})
	require.NoError(t, err)
	assert.Equal(t, 1, report.Duplicates)
}

func TestBootstrapRejectsUnknownStorage(t *testing.T) {
	_, err := Bootstrap(&config.Config{Storage: "sqlite"}, false)
	assert.Error(t, err)
}
