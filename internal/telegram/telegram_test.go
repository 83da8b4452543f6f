package telegram

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/mymmrac/telego"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradewatch/internal/directory"
	"tradewatch/internal/models"
)

const testToken = "123456789:AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA"

func quietLog() *logrus.Entry {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logrus.NewEntry(logger)
}

func TestParseCommand(t *testing.T) {
	tests := []struct {
		text   string
		cmd    string
		arg    string
		wantOK bool
	}{
		{"/start 123456", "start", "123456", true},
		{"/LINK 654321 extra", "link", "654321", true},
		{"/link@TradeWatchBot 111222", "link", "111222", true},
		{"/start", "start", "", true},
		{"  /link   42 ", "link", "42", true},
		{"hello", "", "", false},
		{"/", "", "", false},
		{"", "", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			cmd, arg, ok := ParseCommand(tt.text)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.cmd, cmd)
			assert.Equal(t, tt.arg, arg)
		})
	}
}

func TestChatID(t *testing.T) {
	id, err := ChatID("42")
	require.NoError(t, err)
	assert.Equal(t, int64(42), id.ID)

	id, err = ChatID("-100123")
	require.NoError(t, err)
	assert.Equal(t, int64(-100123), id.ID)

	id, err = ChatID("@alerts")
	require.NoError(t, err)
	assert.Equal(t, "@alerts", id.Username)

	for _, bad := range []string{"", "@", "abc", "0"} {
		_, err := ChatID(bad)
		assert.ErrorIs(t, err, ErrInvalidChat, bad)
	}
}

type fakeClaimer struct {
	err error
}

func (c *fakeClaimer) ClaimCode(_ context.Context, code, chat string) (*models.ChannelLink, error) {
	if c.err != nil {
		return nil, c.err
	}
	return &models.ChannelLink{RecipientID: "alice", ChatHandle: chat, Verified: true}, nil
}

type recordingReplier struct {
	mu      sync.Mutex
	replies map[string]string
}

func (r *recordingReplier) Send(_ context.Context, chat, text string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.replies[chat] = text
	return nil
}

func update(chatID int64, text string) telego.Update {
	return telego.Update{Message: &telego.Message{Text: text, Chat: telego.Chat{ID: chatID}}}
}

func TestCommandHandler(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name  string
		err   error
		text  string
		reply string
	}{
		{"claims code", nil, "/start 123456", ReplyLinked},
		{"link alias", nil, "/link 123456", ReplyLinked},
		{"missing code", nil, "/link", ReplyUsage},
		{"unknown code", directory.ErrCodeUnknown, "/link 000000", ReplyUnknownCode},
		{"expired code", directory.ErrCodeExpired, "/link 000000", ReplyExpiredCode},
		{"store failure", errors.New("db down"), "/link 000000", ReplyFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			replier := &recordingReplier{replies: map[string]string{}}
			h := NewCommandHandler(&fakeClaimer{err: tt.err}, replier, quietLog())

			got := h.HandleUpdate(ctx, update(77, tt.text))
			assert.Equal(t, tt.reply, got)
			assert.Equal(t, tt.reply, replier.replies["77"])
		})
	}

	t.Run("ignores other messages", func(t *testing.T) {
		replier := &recordingReplier{replies: map[string]string{}}
		h := NewCommandHandler(&fakeClaimer{}, replier, quietLog())

		assert.Empty(t, h.HandleUpdate(ctx, update(77, "hi there")))
		assert.Empty(t, h.HandleUpdate(ctx, update(77, "/help")))
		assert.Empty(t, h.HandleUpdate(ctx, telego.Update{}))
		assert.Empty(t, replier.replies)
	})
}

func TestBotSend(t *testing.T) {
	var got struct {
		ChatID int64  `json:"chat_id"`
		Text   string `json:"text"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/sendMessage") {
			http.NotFound(w, r)
			return
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"ok":true,"result":{"message_id":7,"date":0,"chat":{"id":42,"type":"private"}}}`)
	}))
	defer srv.Close()

	bot, err := NewBot(testToken, quietLog(), telego.WithAPIServer(srv.URL), telego.WithHTTPClient(srv.Client()))
	require.NoError(t, err)

	require.NoError(t, bot.Send(context.Background(), "42", "BTC LONG\n\nEntry 100"))
	assert.Equal(t, int64(42), got.ChatID)
	assert.Equal(t, "BTC LONG\n\nEntry 100", got.Text)

	assert.ErrorIs(t, bot.Send(context.Background(), "not-a-chat", "x"), ErrInvalidChat)
}

func TestNewBotRequiresToken(t *testing.T) {
	_, err := NewBot("", nil)
	assert.ErrorIs(t, err, ErrNotConfigured)

	assert.ErrorIs(t, DisabledSender{}.Send(context.Background(), "42", "x"), ErrNotConfigured)
}
