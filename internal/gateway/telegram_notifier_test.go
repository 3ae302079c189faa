package gateway

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/k-negishi/calendar-digest-notifier/internal/domain"
)

// fakeTelegramServer getMe と sendMessage に応答し、送信内容を記録する
type fakeTelegramServer struct {
	*httptest.Server
	sent       []url.Values
	sendStatus int
	sendBody   string
}

func newFakeTelegramServer(t *testing.T) *fakeTelegramServer {
	fake := &fakeTelegramServer{
		sendStatus: http.StatusOK,
		sendBody:   `{"ok":true,"result":{"message_id":1,"date":0,"chat":{"id":12345,"type":"private"},"text":"ok"}}`,
	}
	fake.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case strings.HasSuffix(r.URL.Path, "/getMe"):
			assert.Equal(t, "/bottest-bot-token/getMe", r.URL.Path)
			_, _ = io.WriteString(w, `{"ok":true,"result":{"id":1,"is_bot":true,"first_name":"digest","username":"digest_bot"}}`)
		case strings.HasSuffix(r.URL.Path, "/sendMessage"):
			require.NoError(t, r.ParseForm())
			fake.sent = append(fake.sent, r.PostForm)
			w.WriteHeader(fake.sendStatus)
			_, _ = io.WriteString(w, fake.sendBody)
		default:
			w.WriteHeader(http.StatusNotFound)
			_, _ = io.WriteString(w, `{"ok":false,"error_code":404,"description":"Not Found"}`)
		}
	}))
	t.Cleanup(fake.Close)
	return fake
}

func (f *fakeTelegramServer) endpoint() string {
	return f.URL + "/bot%s/%s"
}

func TestTelegramNotifier_Send(t *testing.T) {
	fake := newFakeTelegramServer(t)
	n, err := NewTelegramNotifier("test-bot-token", "12345", fake.endpoint(), fake.Client())
	require.NoError(t, err)

	err = n.Send(context.Background(), "📅 <b>行程提醒</b>")
	require.NoError(t, err)

	require.Len(t, fake.sent, 1)
	assert.Equal(t, "12345", fake.sent[0].Get("chat_id"))
	assert.Equal(t, "HTML", fake.sent[0].Get("parse_mode"))
	assert.Equal(t, "📅 <b>行程提醒</b>", fake.sent[0].Get("text"))
}

func TestTelegramNotifier_SendToChannel(t *testing.T) {
	fake := newFakeTelegramServer(t)
	n, err := NewTelegramNotifier("test-bot-token", "@family_calendar", fake.endpoint(), fake.Client())
	require.NoError(t, err)

	require.NoError(t, n.Send(context.Background(), "hello"))
	require.Len(t, fake.sent, 1)
	assert.Equal(t, "@family_calendar", fake.sent[0].Get("chat_id"))
}

func TestTelegramNotifier_SendAPIError(t *testing.T) {
	fake := newFakeTelegramServer(t)
	fake.sendStatus = http.StatusBadRequest
	fake.sendBody = `{"ok":false,"error_code":400,"description":"Bad Request: chat not found"}`

	n, err := NewTelegramNotifier("test-bot-token", "12345", fake.endpoint(), fake.Client())
	require.NoError(t, err)

	err = n.Send(context.Background(), "hello")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "Telegram APIへの送信に失敗しました")
	assert.Contains(t, err.Error(), "chat not found")
}

func TestNewTelegramNotifier_InvalidToken(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = io.WriteString(w, `{"ok":false,"error_code":401,"description":"Unauthorized"}`)
	}))
	defer server.Close()

	_, err := NewTelegramNotifier("bad", "12345", server.URL+"/bot%s/%s", server.Client())
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "Telegram Botの初期化に失敗しました")
}

func TestTelegramNotifier_Style(t *testing.T) {
	assert.Equal(t, domain.StyleHTML, (&TelegramNotifier{}).Style())
}
