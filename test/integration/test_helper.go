package integration

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/mymmrac/telego"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"tradewatch/internal/app"
	"tradewatch/internal/telegram"
	"tradewatch/pkg/config"
)

const (
	webhookToken = "tv-secret"
	relaySecret  = "relay-secret"
	botToken     = "123456789:AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA"
)

type sentMessage struct {
	ChatID int64  `json:"chat_id"`
	Text   string `json:"text"`
}

// fakeTelegram records sendMessage calls made by the bot.
type fakeTelegram struct {
	srv  *httptest.Server
	mu   sync.Mutex
	sent []sentMessage
}

func newFakeTelegram(t *testing.T) *fakeTelegram {
	f := &fakeTelegram{}
	f.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/sendMessage") {
			http.NotFound(w, r)
			return
		}
		var msg sentMessage
		_ = json.NewDecoder(r.Body).Decode(&msg)
		f.mu.Lock()
		f.sent = append(f.sent, msg)
		f.mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"ok":true,"result":{"message_id":1,"date":0,"chat":{"id":1,"type":"private"}}}`)
	}))
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakeTelegram) messagesTo(chatID int64) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, m := range f.sent {
		if m.ChatID == chatID {
			out = append(out, m.Text)
		}
	}
	return out
}

type testServer struct {
	router   *gin.Engine
	services *app.Services
	telegram *fakeTelegram
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	logger := logrus.New()
	logger.SetOutput(io.Discard)
	log := logrus.NewEntry(logger)

	cfg := &config.Config{
		Storage:      config.StorageMemory,
		WebhookToken: webhookToken,
		RelaySecret:  relaySecret,
		Notify: config.NotifyConfig{
			BlockedMarker: "[internal]",
		},
		TradesPageLimit: 200,
	}

	tg := newFakeTelegram(t)
	bot, err := telegram.NewBot(botToken, log, telego.WithAPIServer(tg.srv.URL), telego.WithHTTPClient(tg.srv.Client()))
	require.NoError(t, err)

	svc := app.NewServices(cfg, app.MemoryStores(), app.Options{Bot: bot, Log: log})
	return &testServer{
		router:   app.NewRouter(cfg, svc, nil),
		services: svc,
		telegram: tg,
	}
}

type response struct {
	Code int
	Body map[string]interface{}
	Raw  string
}

func (s *testServer) do(t *testing.T, method, path string, body interface{}, headers map[string]string) response {
	t.Helper()
	var reader io.Reader
	if body != nil {
		if raw, ok := body.(string); ok {
			reader = strings.NewReader(raw)
		} else {
			payload, err := json.Marshal(body)
			require.NoError(t, err)
			reader = bytes.NewReader(payload)
		}
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	resp := response{Code: w.Code, Raw: w.Body.String()}
	if strings.HasPrefix(resp.Raw, "{") {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp.Body))
	}
	return resp
}

func (s *testServer) webhook(t *testing.T, payload map[string]interface{}) response {
	t.Helper()
	return s.do(t, http.MethodPost, "/webhook?token="+webhookToken, payload, nil)
}

func (s *testServer) relay(t *testing.T, path string, payload interface{}) response {
	t.Helper()
	return s.do(t, http.MethodPost, path, payload, map[string]string{"X-Relay-Secret": relaySecret})
}

// link runs the full code request and claim flow for recipientID from chatID.
func (s *testServer) link(t *testing.T, recipientID string, chatID int64) {
	t.Helper()
	resp := s.do(t, http.MethodPost, "/recipients/"+recipientID+"/link-code", nil, nil)
	require.Equal(t, http.StatusOK, resp.Code, resp.Raw)
	code := resp.Body["code"].(string)

	resp = s.do(t, http.MethodPost, "/telegram/webhook", telegramUpdate(chatID, "/link "+code), nil)
	require.Equal(t, http.StatusOK, resp.Code)
}

func telegramUpdate(chatID int64, text string) map[string]interface{} {
	return map[string]interface{}{
		"update_id": 1,
		"message": map[string]interface{}{
			"message_id": 1,
			"date":       0,
			"chat":       map[string]interface{}{"id": chatID, "type": "private"},
			"text":       text,
		},
	}
}
