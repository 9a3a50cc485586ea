package telegram

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"marketpulse/pkg/errors"
	"marketpulse/pkg/logger"
)

type fakeAPI struct {
	mu       sync.Mutex
	messages []string
	failSend bool
}

func (f *fakeAPI) handler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	switch {
	case strings.HasSuffix(r.URL.Path, "/getMe"):
		_, _ = w.Write([]byte(`{"ok":true,"result":{"id":1,"is_bot":true,"first_name":"pulse","username":"pulse_bot"}}`))
	case strings.HasSuffix(r.URL.Path, "/sendMessage"):
		_ = r.ParseForm()
		f.mu.Lock()
		fail := f.failSend
		if !fail {
			f.messages = append(f.messages, r.Form.Get("chat_id")+":"+r.Form.Get("text"))
		}
		f.mu.Unlock()
		if fail {
			_, _ = w.Write([]byte(`{"ok":false,"error_code":400,"description":"Bad Request: chat not found"}`))
			return
		}
		_, _ = w.Write([]byte(`{"ok":true,"result":{"message_id":7,"date":0,"chat":{"id":42,"type":"private"}}}`))
	default:
		http.NotFound(w, r)
	}
}

func newTestBot(t *testing.T) (*Bot, *fakeAPI) {
	t.Helper()
	api := &fakeAPI{}
	srv := httptest.NewServer(http.HandlerFunc(api.handler))
	t.Cleanup(srv.Close)

	bot, err := NewBot(Config{
		Token:          "123:abc",
		ChatID:         42,
		Endpoint:       srv.URL + "/bot%s/%s",
		RateLimitRate:  100,
		RateLimitBurst: 10,
	}, logger.Nop())
	require.NoError(t, err)
	return bot, api
}

func TestBotSend(t *testing.T) {
	bot, api := newTestBot(t)

	require.NoError(t, bot.Send(context.Background(), "BUY USDTTMN"))

	require.Len(t, api.messages, 1)
	assert.Equal(t, "42:BUY USDTTMN", api.messages[0])
}

func TestBotSendFailureIsUnavailable(t *testing.T) {
	bot, api := newTestBot(t)
	api.failSend = true

	err := bot.Send(context.Background(), "hello")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrUnavailable))
}

func TestNewBotValidatesConfig(t *testing.T) {
	_, err := NewBot(Config{ChatID: 1}, logger.Nop())
	assert.True(t, errors.Is(err, errors.ErrInvalidInput))

	_, err = NewBot(Config{Token: "x"}, logger.Nop())
	assert.True(t, errors.Is(err, errors.ErrInvalidInput))
}
