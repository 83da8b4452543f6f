package integration

import (
	"context"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradewatch/internal/models"
	"tradewatch/internal/telegram"
)

func TestWebhookLifecycleAPI(t *testing.T) {
	s := newTestServer(t)

	t.Run("rejects a bad token", func(t *testing.T) {
		resp := s.do(t, http.MethodPost, "/webhook?token=wrong", map[string]interface{}{"id": "BTCUSDT_15_1"}, nil)
		assert.Equal(t, http.StatusForbidden, resp.Code)
	})

	t.Run("entry then both take profits closes with mean price pnl", func(t *testing.T) {
		resp := s.webhook(t, map[string]interface{}{
			"id": "BTCUSDT_15_1", "symbol": "BTCUSDT", "timeframe": "15", "direction": "LONG", "entryPrice": 100,
		})
		require.Equal(t, http.StatusOK, resp.Code, resp.Raw)

		resp = s.webhook(t, map[string]interface{}{"id": "BTCUSDT_15_1", "tp2Hit": true, "tp2Price": 120})
		require.Equal(t, http.StatusOK, resp.Code, resp.Raw)
		assert.Equal(t, false, resp.Body["closed"])

		resp = s.webhook(t, map[string]interface{}{"id": "BTCUSDT_15_1", "tp1Hit": true, "tp1Price": 110})
		require.Equal(t, http.StatusOK, resp.Code, resp.Raw)
		assert.Equal(t, true, resp.Body["closed"])

		resp = s.do(t, http.MethodGet, "/trades/BTCUSDT_15_1", nil, nil)
		require.Equal(t, http.StatusOK, resp.Code)
		assert.Equal(t, 15.0, resp.Body["pnlPercent"])
		assert.Equal(t, string(models.CloseReasonTP1TP2), resp.Body["closeReason"])
		assert.NotNil(t, resp.Body["closedAt"])

		resp = s.webhook(t, map[string]interface{}{"id": "BTCUSDT_15_1", "slHit": true, "slPrice": 90})
		require.Equal(t, http.StatusOK, resp.Code)
		assert.Equal(t, true, resp.Body["ignored"])
		assert.Equal(t, "already_closed", resp.Body["reason"])
	})

	t.Run("duplicate entry is ignored", func(t *testing.T) {
		payload := map[string]interface{}{"id": "ETHUSDT_60_1", "direction": "SHORT", "entryPrice": 2000}
		require.Equal(t, http.StatusOK, s.webhook(t, payload).Code)

		resp := s.webhook(t, payload)
		require.Equal(t, http.StatusOK, resp.Code)
		assert.Equal(t, true, resp.Body["ignored"])
		assert.Equal(t, "duplicate", resp.Body["reason"])
	})

	t.Run("opposite entry auto-closes the open trade", func(t *testing.T) {
		resp := s.webhook(t, map[string]interface{}{"id": "ETHUSDT_60_2", "direction": "BUY", "entryPrice": 1900})
		require.Equal(t, http.StatusOK, resp.Code, resp.Raw)
		assert.Equal(t, "ETHUSDT_60_1", resp.Body["autoClosed"])

		closed := s.do(t, http.MethodGet, "/trades/ETHUSDT_60_1", nil, nil)
		assert.Equal(t, true, closed.Body["autoClosed"])
		assert.Equal(t, 5.0, closed.Body["pnlPercent"])
	})

	t.Run("stop loss blocks later take profits", func(t *testing.T) {
		require.Equal(t, http.StatusOK, s.webhook(t, map[string]interface{}{"id": "SOLUSDT_240_1", "direction": "LONG", "entryPrice": 50}).Code)

		resp := s.webhook(t, map[string]interface{}{"id": "SOLUSDT_240_1", "slHit": "true", "slPrice": "45"})
		require.Equal(t, http.StatusOK, resp.Code, resp.Raw)

		trade := s.do(t, http.MethodGet, "/trades/SOLUSDT_240_1", nil, nil)
		assert.Equal(t, string(models.CloseReasonSL), trade.Body["closeReason"])
		assert.Equal(t, -10.0, trade.Body["pnlPercent"])

		resp = s.webhook(t, map[string]interface{}{"id": "SOLUSDT_240_1", "tp1Hit": true, "tp1Price": 60})
		assert.Equal(t, true, resp.Body["ignored"])
	})

	t.Run("client and not-found errors", func(t *testing.T) {
		assert.Equal(t, http.StatusBadRequest, s.webhook(t, map[string]interface{}{"direction": "LONG"}).Code)
		assert.Equal(t, http.StatusBadRequest, s.webhook(t, map[string]interface{}{"id": "undefined_15_1", "direction": "LONG"}).Code)
		assert.Equal(t, http.StatusNotFound, s.webhook(t, map[string]interface{}{"id": "XRPUSDT_15_1", "tp1Hit": true}).Code)
	})

	t.Run("listing is newest first", func(t *testing.T) {
		resp := s.do(t, http.MethodGet, "/trades?status=open", nil, nil)
		require.Equal(t, http.StatusOK, resp.Code)
		trades := resp.Body["trades"].([]interface{})
		require.Len(t, trades, 1)
		assert.Equal(t, "ETHUSDT_60_2", trades[0].(map[string]interface{})["tradeId"])

		resp = s.do(t, http.MethodGet, "/trades", nil, nil)
		assert.EqualValues(t, 4, resp.Body["count"])
	})
}

func TestLinkAndNotifyAPI(t *testing.T) {
	s := newTestServer(t)
	s.link(t, "alice", 555)
	s.link(t, "bob", 777)

	assert.Equal(t, []string{telegram.ReplyLinked}, s.telegram.messagesTo(555))

	t.Run("link status", func(t *testing.T) {
		resp := s.do(t, http.MethodGet, "/recipients/alice/link-status", nil, nil)
		require.Equal(t, http.StatusOK, resp.Code)
		assert.Equal(t, true, resp.Body["linked"])
		assert.Equal(t, "555", resp.Body["chatHandle"])

		resp = s.do(t, http.MethodGet, "/recipients/nobody/link-status", nil, nil)
		assert.Equal(t, false, resp.Body["linked"])
	})

	t.Run("unknown code replies in chat", func(t *testing.T) {
		resp := s.do(t, http.MethodPost, "/telegram/webhook", telegramUpdate(999, "/link 000000"), nil)
		assert.Equal(t, http.StatusOK, resp.Code)
		assert.Equal(t, []string{telegram.ReplyUnknownCode}, s.telegram.messagesTo(999))
	})

	t.Run("relay secret is required", func(t *testing.T) {
		resp := s.do(t, http.MethodPost, "/notify/entry", map[string]interface{}{"tradeId": "BTC_15_1"}, nil)
		assert.Equal(t, http.StatusUnauthorized, resp.Code)
	})

	t.Run("preferences filter entries", func(t *testing.T) {
		resp := s.do(t, http.MethodPut, "/recipients/bob/preferences", map[string]interface{}{"symbols": []string{"ETHUSDT"}}, nil)
		require.Equal(t, http.StatusOK, resp.Code, resp.Raw)
	})

	entry := map[string]interface{}{
		"tradeId": "BTCUSDT_15_1", "idempotencyKey": "BTCUSDT_15_1:entry",
		"title": "BTCUSDT LONG", "body": "Entry 100", "symbol": "BTCUSDT", "timeframe": "15", "tier": "good",
	}

	t.Run("entry is delivered once per recipient", func(t *testing.T) {
		resp := s.relay(t, "/notify/entry", entry)
		require.Equal(t, http.StatusOK, resp.Code, resp.Raw)
		report := resp.Body["report"].(map[string]interface{})
		assert.EqualValues(t, 1, report["delivered"])
		assert.EqualValues(t, 1, report["skipped"])

		resp = s.relay(t, "/notify/entry", entry)
		require.Equal(t, http.StatusOK, resp.Code)
		assert.EqualValues(t, 0, resp.Body["report"].(map[string]interface{})["delivered"])

		assert.Equal(t, []string{telegram.ReplyLinked, "BTCUSDT LONG\n\nEntry 100"}, s.telegram.messagesTo(555))
		assert.Len(t, s.telegram.messagesTo(777), 1)
	})

	t.Run("follow-up goes to entry recipients only", func(t *testing.T) {
		followUp := map[string]interface{}{"tradeId": "BTCUSDT_15_1", "type": "tp1", "title": "TP1 hit", "body": "110"}
		resp := s.relay(t, "/notify/followup", followUp)
		require.Equal(t, http.StatusOK, resp.Code, resp.Raw)

		resp = s.relay(t, "/notify/followup", followUp)
		require.Equal(t, http.StatusOK, resp.Code)

		assert.Len(t, s.telegram.messagesTo(555), 3)
		assert.Len(t, s.telegram.messagesTo(777), 1)
	})

	t.Run("blocked content is dropped silently", func(t *testing.T) {
		blocked := map[string]interface{}{
			"tradeId": "BTCUSDT_15_2", "idempotencyKey": "k2", "title": "t", "body": "ops note [Internal]",
		}
		resp := s.relay(t, "/notify/entry", blocked)
		require.Equal(t, http.StatusOK, resp.Code)
		assert.Equal(t, map[string]interface{}{"success": true}, resp.Body)
		assert.Len(t, s.telegram.messagesTo(555), 3)
	})

	t.Run("records carry the alert type", func(t *testing.T) {
		ids, err := s.services.Stores.Notifications.RecipientsFor(context.Background(), "BTCUSDT_15_1", "TP1")
		require.NoError(t, err)
		assert.Equal(t, []string{"alice"}, ids)
	})
}

func TestHealthAndMetrics(t *testing.T) {
	s := newTestServer(t)

	resp := s.do(t, http.MethodGet, "/health", nil, nil)
	assert.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, "ok", resp.Raw)

	s.webhook(t, map[string]interface{}{"id": "BTCUSDT_15_1", "direction": "LONG", "entryPrice": 100})

	resp = s.do(t, http.MethodGet, "/metrics", nil, nil)
	require.Equal(t, http.StatusOK, resp.Code)
	assert.True(t, strings.Contains(resp.Raw, "tradewatch_webhook_events_total"))
}
