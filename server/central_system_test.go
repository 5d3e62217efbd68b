package server

import (
	"encoding/json"
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

func newTestCentralSystem(t *testing.T) (*CentralSystem, string, func()) {
	conf := &config.Config{}
	conf.Ocpp.CallTimeout = 5
	conf.Ocpp.MeterInterval = 300
	conf.Ocpp.AcceptPoints = true

	cs, err := NewCentralSystem(conf)
	require.NoError(t, err)

	ts := httptest.NewServer(cs.server.httpServer.Handler)
	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http")
	return cs, wsURL, ts.Close
}

func dialChargePoint(t *testing.T, wsURL, id string) *websocket.Conn {
	dialer := websocket.Dialer{Subprotocols: []string{types.SubProtocol16}}
	conn, _, err := dialer.Dial(wsURL+"/ws/"+id, nil)
	require.NoError(t, err)
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) []json.RawMessage {
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, reply, err := conn.ReadMessage()
	require.NoError(t, err)
	var frame []json.RawMessage
	require.NoError(t, json.Unmarshal(reply, &frame))
	return frame
}

func TestCentralSystemDispatch(t *testing.T) {

	t.Run("heartbeat call is answered with the current time", func(t *testing.T) {
		_, wsURL, done := newTestCentralSystem(t)
		defer done()
		conn := dialChargePoint(t, wsURL, "cp001")
		defer conn.Close()

		err := conn.WriteMessage(websocket.TextMessage, []byte(`[2,"1","Heartbeat",{}]`))
		require.NoError(t, err)

		frame := readFrame(t, conn)
		require.Len(t, frame, 3)
		assert.Equal(t, "3", string(frame[0]))
		assert.Equal(t, `"1"`, string(frame[1]))

		var payload struct {
			CurrentTime *types.DateTime `json:"currentTime"`
		}
		require.NoError(t, json.Unmarshal(frame[2], &payload))
		require.NotNil(t, payload.CurrentTime)
	})

	t.Run("malformed call with a readable id gets a CallError", func(t *testing.T) {
		cs, wsURL, done := newTestCentralSystem(t)
		defer done()
		conn := dialChargePoint(t, wsURL, "cp001")
		defer conn.Close()

		err := conn.WriteMessage(websocket.TextMessage, []byte(`[2,"77","Heartbeat"]`))
		require.NoError(t, err)

		frame := readFrame(t, conn)
		require.Len(t, frame, 5)
		assert.Equal(t, "4", string(frame[0]))
		assert.Equal(t, `"77"`, string(frame[1]))
		assert.Equal(t, `"FormationViolation"`, string(frame[2]))

		// the frame was addressable, so the session survives
		_, err = cs.sessions.Get("cp001")
		assert.NoError(t, err)
	})

	t.Run("unaddressable frame closes the connection", func(t *testing.T) {
		cs, wsURL, done := newTestCentralSystem(t)
		defer done()
		conn := dialChargePoint(t, wsURL, "cp002")
		defer conn.Close()

		require.Eventually(t, func() bool {
			return cs.sessions.Count() == 1
		}, 2*time.Second, 10*time.Millisecond)

		err := conn.WriteMessage(websocket.TextMessage, []byte(`not-json`))
		require.NoError(t, err)

		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		_, _, err = conn.ReadMessage()
		require.Error(t, err)

		require.Eventually(t, func() bool {
			return cs.sessions.Count() == 0
		}, 2*time.Second, 10*time.Millisecond)
	})
}
