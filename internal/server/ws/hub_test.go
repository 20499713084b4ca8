package ws

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type chanBus struct {
	ch chan []byte
}

func (b *chanBus) Publish(_ context.Context, _ string, payload []byte) error {
	b.ch <- payload
	return nil
}

func (b *chanBus) Subscribe(_ context.Context, _ string) (<-chan []byte, error) {
	return b.ch, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestClientIsSubscribed(t *testing.T) {
	h := NewHub(nil, []string{"orders"}, testLogger())
	c := newClient(h, nil, 0)

	assert.True(t, c.isSubscribed("orders"))
	assert.False(t, c.isSubscribed("orders:archive"))

	c.handleSubscription(subscribeMsg{Action: "subscribe", Channels: []string{"orders:*"}})
	assert.True(t, c.isSubscribed("orders:archive"))

	c.handleSubscription(subscribeMsg{Action: "unsubscribe", Channels: []string{"orders"}})
	assert.False(t, c.isSubscribed("orders"))
}

func TestClientWantsFiltersByUser(t *testing.T) {
	h := NewHub(nil, []string{"orders"}, testLogger())

	all := newClient(h, nil, 0)
	mine := newClient(h, nil, 7)

	other := broadcastMsg{channel: "orders", userID: 8}
	own := broadcastMsg{channel: "orders", userID: 7}

	assert.True(t, all.wants(other))
	assert.False(t, mine.wants(other))
	assert.True(t, mine.wants(own))
}

func TestHubRelaysEventsToUser(t *testing.T) {
	bus := &chanBus{ch: make(chan []byte, 4)}
	hub := NewHub(bus, []string{"orders"}, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	srv := httptest.NewServer(http.HandlerFunc(hub.HandleWS))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/?userId=7"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	// Wait for registration before publishing.
	require.Eventually(t, func() bool {
		hub.mu.RLock()
		defer hub.mu.RUnlock()
		return len(hub.clients) == 1
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, bus.Publish(ctx, "orders", []byte(`{"event":"order_created","user_id":8}`)))
	require.NoError(t, bus.Publish(ctx, "orders", []byte(`{"event":"order_created","user_id":7}`)))

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	kind, data, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, websocket.TextMessage, kind)
	assert.JSONEq(t, `{"event":"order_created","user_id":7}`, string(data))
}
