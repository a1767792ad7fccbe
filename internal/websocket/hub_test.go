package websocket

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/satriahrh/mirrorvoice/domain"
)

func setupTestServer(t *testing.T) (*Hub, string) {
	logger := zaptest.NewLogger(t)
	hub := NewHub(nil, logger)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go hub.Run(ctx)

	e := echo.New()
	e.GET("/ws", func(c echo.Context) error {
		return HandleWebSocket(hub, c, c.QueryParam("id"), logger)
	})
	server := httptest.NewServer(e)
	t.Cleanup(server.Close)

	return hub, "ws" + strings.TrimPrefix(server.URL, "http") + "/ws"
}

func dial(t *testing.T, url string) *websocket.Conn {
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { ws.Close() })
	return ws
}

func readNotification(t *testing.T, ws *websocket.Conn) map[string]interface{} {
	ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := ws.ReadMessage()
	require.NoError(t, err)

	var msg map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &msg))
	return msg
}

func TestHub_BroadcastsNotifications(t *testing.T) {
	hub, url := setupTestServer(t)

	first := dial(t, url+"?id=a")
	second := dial(t, url+"?id=b")
	require.Eventually(t, func() bool { return hub.ClientCount() == 2 }, time.Second, 10*time.Millisecond)

	hub.Notify(domain.NewTranscriptUpdate("what time"))

	for _, ws := range []*websocket.Conn{first, second} {
		msg := readNotification(t, ws)
		assert.Equal(t, string(domain.NotificationTranscriptUpdate), msg["type"])
		payload := msg["payload"].(map[string]interface{})
		assert.Equal(t, "what time", payload["transcript"])
	}
}

func TestHub_ReplaysLastStatusToNewClients(t *testing.T) {
	hub, url := setupTestServer(t)

	hub.Notify(domain.NewStatusUpdate(domain.StatusListening, "Listening..."))
	hub.Notify(domain.NewStatusUpdate(domain.StatusProcessing, "Thinking..."))
	hub.Notify(domain.NewTranscriptUpdate("ignored for late joiners"))

	// let the hub loop consume the queue before connecting
	require.Eventually(t, func() bool { return len(hub.broadcast) == 0 }, time.Second, 10*time.Millisecond)
	time.Sleep(20 * time.Millisecond)

	ws := dial(t, url)
	msg := readNotification(t, ws)
	assert.Equal(t, string(domain.NotificationStatusUpdate), msg["type"])
	payload := msg["payload"].(map[string]interface{})
	assert.Equal(t, string(domain.StatusProcessing), payload["status"])
	assert.Equal(t, "Thinking...", payload["text"])
}

func TestHub_AnswersPing(t *testing.T) {
	_, url := setupTestServer(t)
	ws := dial(t, url)

	require.NoError(t, ws.WriteMessage(websocket.TextMessage, []byte(`{"type":"ping","data":"hello"}`)))

	msg := readNotification(t, ws)
	assert.Equal(t, "pong", msg["type"])
	assert.Equal(t, "hello", msg["data"])
}

func TestHub_UnregistersOnClose(t *testing.T) {
	hub, url := setupTestServer(t)

	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, 10*time.Millisecond)

	ws.Close()
	require.Eventually(t, func() bool { return hub.ClientCount() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestHub_NotifyNeverBlocks(t *testing.T) {
	hub := NewHub(nil, zaptest.NewLogger(t))

	done := make(chan struct{})
	go func() {
		// hub loop not running, queue fills and further notifications are dropped
		for i := 0; i < broadcastBufferSize*2; i++ {
			hub.Notify(domain.NewTranscriptUpdate("x"))
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Notify blocked with no hub loop")
	}
}
