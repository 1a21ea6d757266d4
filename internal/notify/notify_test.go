package notify

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mealsync/internal/config"
)

type failing struct{}

func (failing) Notify(context.Context, Toast) error { return errors.New("sink down") }

func TestFanout(t *testing.T) {
	var buf bytes.Buffer
	rec := &Recorder{}
	f := Fanout{NewWriter(&buf), failing{}, rec, NewLog(nil)}

	err := f.Notify(context.Background(), Toast{Title: "saved locally", Message: "shopping item Milk", Level: LevelWarning})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sink down")

	assert.Equal(t, []string{"saved locally"}, rec.Titles())
	assert.Equal(t, "⚠️ saved locally: shopping item Milk\n", buf.String())
}

func TestTelegram(t *testing.T) {
	var sent []string
	r := mux.NewRouter()
	r.HandleFunc("/bottest-token/getMe", func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"ok": true, "result": {"id": 1, "is_bot": true, "first_name": "mealsync", "username": "mealsync_bot"}}`))
	})
	r.HandleFunc("/bottest-token/sendMessage", func(w http.ResponseWriter, req *http.Request) {
		assert.NoError(t, req.ParseForm())
		assert.Equal(t, "42", req.FormValue("chat_id"))
		sent = append(sent, req.FormValue("text"))
		w.Write([]byte(`{"ok": true, "result": {"message_id": 7, "date": 0, "chat": {"id": 42, "type": "private"}}}`))
	})
	server := httptest.NewServer(r)
	defer server.Close()

	cfg := &config.Config{TelegramBotToken: "test-token", TelegramChatID: 42}
	tg, err := NewTelegramWithEndpoint(cfg, server.URL+"/bot%s/%s", server.Client())
	require.NoError(t, err)

	require.NoError(t, tg.Notify(context.Background(), Toast{Title: "error — please retry", Message: "recipe Pasta", Level: LevelError}))
	require.Len(t, sent, 1)
	assert.True(t, strings.HasPrefix(sent[0], "❌ *error — please retry*"))
	assert.Contains(t, sent[0], "recipe Pasta")

	t.Run("MissingToken", func(t *testing.T) {
		_, err := NewTelegram(&config.Config{TelegramChatID: 42})
		assert.EqualError(t, err, "TELEGRAM_BOT_TOKEN environment variable not set")
	})
}
