package server

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"evlink/internal/config"
	"evlink/types"
)

func newTestServer(t *testing.T) (*Server, string, func()) {
	wsServer := NewServer(&config.Config{})
	wsServer.SetLogger(&nopLogger{})
	wsServer.AddSupportedSubProtocol(types.SubProtocol16)

	ts := httptest.NewServer(wsServer.httpServer.Handler)
	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http")
	return wsServer, wsURL, ts.Close
}

func TestServerHandshake(t *testing.T) {

	t.Run("negotiates the ocpp subprotocol", func(t *testing.T) {
		wsServer, wsURL, done := newTestServer(t)
		defer done()
		wsServer.SetConnectHandler(func(ws *WebSocket) {
			assert.Equal(t, "cp001", ws.ID())
		})

		dialer := websocket.Dialer{Subprotocols: []string{types.SubProtocol16}}
		conn, _, err := dialer.Dial(wsURL+"/ws/cp001", nil)
		require.NoError(t, err)
		defer conn.Close()
		assert.Equal(t, types.SubProtocol16, conn.Subprotocol())
	})

	t.Run("rejects a client offering only unknown subprotocols", func(t *testing.T) {
		_, wsURL, done := newTestServer(t)
		defer done()

		dialer := websocket.Dialer{Subprotocols: []string{"ocpp2.0.1"}}
		_, response, err := dialer.Dial(wsURL+"/ws/cp001", nil)
		require.Error(t, err)
		require.NotNil(t, response)
		assert.Equal(t, http.StatusBadRequest, response.StatusCode)
	})

	t.Run("accepts a client offering no subprotocol", func(t *testing.T) {
		_, wsURL, done := newTestServer(t)
		defer done()

		dialer := websocket.Dialer{}
		conn, _, err := dialer.Dial(wsURL+"/ws/cp001", nil)
		require.NoError(t, err)
		defer conn.Close()
		assert.Empty(t, conn.Subprotocol())
	})
}

func TestServerMessaging(t *testing.T) {

	t.Run("frames reach the handler and replies reach the client", func(t *testing.T) {
		wsServer, wsURL, done := newTestServer(t)
		defer done()
		wsServer.SetMessageHandler(func(ws *WebSocket, data []byte) error {
			assert.Equal(t, "cp007", ws.ID())
			assert.Equal(t, `[2,"1","Heartbeat",{}]`, string(data))
			return ws.WriteMessage([]byte(`[3,"1",{"currentTime":"2026-01-01T00:00:00Z"}]`))
		})

		dialer := websocket.Dialer{Subprotocols: []string{types.SubProtocol16}}
		conn, _, err := dialer.Dial(wsURL+"/ws/cp007", nil)
		require.NoError(t, err)
		defer conn.Close()

		err = conn.WriteMessage(websocket.TextMessage, []byte(`[2,"1","Heartbeat",{}]`))
		require.NoError(t, err)

		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		_, reply, err := conn.ReadMessage()
		require.NoError(t, err)
		assert.Equal(t, `[3,"1",{"currentTime":"2026-01-01T00:00:00Z"}]`, string(reply))
	})

	t.Run("relay subscriber sees the charge point traffic", func(t *testing.T) {
		wsServer, wsURL, done := newTestServer(t)
		defer done()
		relay := NewRelay(&nopLogger{})
		wsServer.SetRelayHandlers(
			func(ws *WebSocket) { relay.Subscribe(ws.ID(), ws) },
			func(ws *WebSocket) { relay.Unsubscribe(ws.ID(), ws) },
		)
		wsServer.SetMessageHandler(func(ws *WebSocket, data []byte) error {
			relay.Forward(ws.ID(), data)
			return nil
		})

		viewer, _, err := websocket.DefaultDialer.Dial(wsURL+"/relay/cp001", nil)
		require.NoError(t, err)
		defer viewer.Close()

		dialer := websocket.Dialer{Subprotocols: []string{types.SubProtocol16}}
		conn, _, err := dialer.Dial(wsURL+"/ws/cp001", nil)
		require.NoError(t, err)
		defer conn.Close()

		// the subscription races the first frame, wait for it to land
		require.Eventually(t, func() bool {
			return relay.SubscriberCount("cp001") == 1
		}, 2*time.Second, 10*time.Millisecond)

		err = conn.WriteMessage(websocket.TextMessage, []byte(`[2,"1","Heartbeat",{}]`))
		require.NoError(t, err)

		viewer.SetReadDeadline(time.Now().Add(2 * time.Second))
		_, frame, err := viewer.ReadMessage()
		require.NoError(t, err)
		assert.Equal(t, `[2,"1","Heartbeat",{}]`, string(frame))
	})

	t.Run("relay endpoint is disabled without handlers", func(t *testing.T) {
		_, wsURL, done := newTestServer(t)
		defer done()

		_, response, err := websocket.DefaultDialer.Dial(wsURL+"/relay/cp001", nil)
		require.Error(t, err)
		require.NotNil(t, response)
		assert.Equal(t, http.StatusNotFound, response.StatusCode)
	})

	t.Run("disconnect handler fires when the client leaves", func(t *testing.T) {
		wsServer, wsURL, done := newTestServer(t)
		defer done()
		disconnected := make(chan string, 1)
		wsServer.SetDisconnectHandler(func(ws *WebSocket) {
			disconnected <- ws.ID()
		})

		dialer := websocket.Dialer{Subprotocols: []string{types.SubProtocol16}}
		conn, _, err := dialer.Dial(wsURL+"/ws/cp001", nil)
		require.NoError(t, err)
		require.NoError(t, conn.Close())

		select {
		case id := <-disconnected:
			assert.Equal(t, "cp001", id)
		case <-time.After(2 * time.Second):
			t.Fatal("disconnect handler was not called")
		}
	})
}
