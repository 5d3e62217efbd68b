package server

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"evlink/ocpp"
)

func newTestSession(id string) *Session {
	return NewSession(&WebSocket{id: id}, time.Second, &nopLogger{})
}

// recordLogger captures warnings so tests can assert on them.
type recordLogger struct {
	mux   sync.Mutex
	warns []string
}

func (l *recordLogger) FeatureEvent(feature, id, text string) {}
func (l *recordLogger) RawDataEvent(direction, data string)   {}
func (l *recordLogger) Debug(text string)                     {}
func (l *recordLogger) Error(text string, err error)          {}

func (l *recordLogger) Warn(text string) {
	l.mux.Lock()
	l.warns = append(l.warns, text)
	l.mux.Unlock()
}

func (l *recordLogger) Warnings() []string {
	l.mux.Lock()
	defer l.mux.Unlock()
	return append([]string(nil), l.warns...)
}

func TestSessionRegistry(t *testing.T) {

	t.Run("get unknown charge point", func(t *testing.T) {
		registry := NewSessionRegistry()
		_, err := registry.Get("cp001")
		require.Error(t, err)
		assert.Equal(t, 0, registry.Count())
	})

	t.Run("add and get", func(t *testing.T) {
		registry := NewSessionRegistry()
		session := newTestSession("cp001")
		registry.Add(session)

		found, err := registry.Get("cp001")
		require.NoError(t, err)
		assert.Same(t, session, found)
		assert.Equal(t, 1, registry.Count())
	})

	t.Run("reconnect supersedes the stale session", func(t *testing.T) {
		registry := NewSessionRegistry()
		stale := newTestSession("cp001")
		registry.Add(stale)

		fresh := newTestSession("cp001")
		registry.Add(fresh)
		assert.Equal(t, 1, registry.Count())

		// the superseded session is closed: new calls must fail fast
		_, regErr := stale.pending.Register("Heartbeat", time.Second)
		require.NotNil(t, regErr)
		assert.Equal(t, ocpp.ErrSessionClosed, regErr)

		_, regErr = fresh.pending.Register("Heartbeat", time.Second)
		assert.Nil(t, regErr)

		found, err := registry.Get("cp001")
		require.NoError(t, err)
		assert.Same(t, fresh, found)
	})

	t.Run("remove only drops the current session", func(t *testing.T) {
		registry := NewSessionRegistry()
		stale := newTestSession("cp001")
		registry.Add(stale)
		fresh := newTestSession("cp001")
		registry.Add(fresh)

		// late disconnect of the superseded connection must not evict the new one
		registry.Remove(stale)
		found, err := registry.Get("cp001")
		require.NoError(t, err)
		assert.Same(t, fresh, found)

		registry.Remove(fresh)
		_, err = registry.Get("cp001")
		assert.Error(t, err)
	})

	t.Run("lookup by transport", func(t *testing.T) {
		registry := NewSessionRegistry()
		session := newTestSession("cp001")
		registry.Add(session)

		assert.Same(t, session, registry.ByTransport(session.ws))
		assert.Nil(t, registry.ByTransport(&WebSocket{id: "cp002"}))
	})
}

func TestSessionCorrelation(t *testing.T) {

	t.Run("result resolves the pending call", func(t *testing.T) {
		session := newTestSession("cp001")
		pendingCall, regErr := session.pending.Register("Heartbeat", time.Second)
		require.Nil(t, regErr)

		go session.HandleResult(&ocpp.CallResult{
			UniqueId: pendingCall.UniqueId,
			Payload:  []byte(`{"currentTime":"2026-01-01T00:00:00Z"}`),
		})

		payload, callErr := pendingCall.Wait()
		require.Nil(t, callErr)
		assert.JSONEq(t, `{"currentTime":"2026-01-01T00:00:00Z"}`, string(payload))
	})

	t.Run("stray frames are warned about and dropped", func(t *testing.T) {
		logger := &recordLogger{}
		session := NewSession(&WebSocket{id: "cp001"}, time.Second, logger)

		session.HandleResult(&ocpp.CallResult{UniqueId: "ghost", Payload: []byte(`{}`)})
		session.HandleError(&ocpp.CallError{UniqueId: "ghost", ErrorCode: ocpp.GenericError})

		warnings := logger.Warnings()
		require.Len(t, warnings, 2)
		assert.Contains(t, warnings[0], "stray call result ghost")
		assert.Contains(t, warnings[1], "stray call error ghost")
	})

	t.Run("error rejects the pending call", func(t *testing.T) {
		session := newTestSession("cp001")
		pendingCall, _ := session.pending.Register("Reset", time.Second)

		go session.HandleError(&ocpp.CallError{
			UniqueId:         pendingCall.UniqueId,
			ErrorCode:        ocpp.NotSupported,
			ErrorDescription: "cannot reset",
		})

		_, callErr := pendingCall.Wait()
		require.NotNil(t, callErr)
		assert.Equal(t, ocpp.NotSupported, callErr.Code)
		assert.Equal(t, "cannot reset", callErr.Description)
	})
}
