package ocpp

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPendingCalls(t *testing.T) {

	t.Run("resolve delivers payload", func(t *testing.T) {
		table := NewPendingCalls()
		call, regErr := table.Register("Heartbeat", time.Second)
		require.Nil(t, regErr)
		require.NotEmpty(t, call.UniqueId)

		go table.Resolve(call.UniqueId, json.RawMessage(`{"currentTime":"2026-01-01T00:00:00Z"}`))

		payload, callErr := call.Wait()
		require.Nil(t, callErr)
		assert.JSONEq(t, `{"currentTime":"2026-01-01T00:00:00Z"}`, string(payload))
		assert.Equal(t, 0, table.Size())
	})

	t.Run("reject delivers peer error", func(t *testing.T) {
		table := NewPendingCalls()
		call, _ := table.Register("Reset", time.Second)

		go table.Reject(call.UniqueId, NewError(NotSupported, "reset not supported", call.UniqueId))

		_, callErr := call.Wait()
		require.NotNil(t, callErr)
		assert.Equal(t, NotSupported, callErr.Code)
	})

	t.Run("out of order resolution", func(t *testing.T) {
		table := NewPendingCalls()
		first, _ := table.Register("Heartbeat", time.Second)
		second, _ := table.Register("Heartbeat", time.Second)
		require.NotEqual(t, first.UniqueId, second.UniqueId)

		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			payload, callErr := first.Wait()
			assert.Nil(t, callErr)
			assert.JSONEq(t, `{"n":1}`, string(payload))
		}()
		go func() {
			defer wg.Done()
			payload, callErr := second.Wait()
			assert.Nil(t, callErr)
			assert.JSONEq(t, `{"n":2}`, string(payload))
		}()

		// later call answered first
		table.Resolve(second.UniqueId, json.RawMessage(`{"n":2}`))
		table.Resolve(first.UniqueId, json.RawMessage(`{"n":1}`))
		wg.Wait()
	})

	t.Run("stray ids are dropped", func(t *testing.T) {
		table := NewPendingCalls()
		assert.False(t, table.Resolve("unknown", json.RawMessage(`{}`)))
		assert.False(t, table.Reject("unknown", NewError(GenericError, "late", "unknown")))
	})

	t.Run("second completion is a no-op", func(t *testing.T) {
		table := NewPendingCalls()
		call, _ := table.Register("Heartbeat", time.Second)
		require.True(t, table.Resolve(call.UniqueId, json.RawMessage(`{}`)))
		assert.False(t, table.Resolve(call.UniqueId, json.RawMessage(`{}`)))
	})

	t.Run("timeout removes the entry", func(t *testing.T) {
		table := NewPendingCalls()
		call, _ := table.Register("Heartbeat", 20*time.Millisecond)

		_, callErr := call.Wait()
		require.NotNil(t, callErr)
		assert.Equal(t, ErrCallTimeout, callErr)
		assert.Equal(t, 0, table.Size())
		assert.False(t, table.Resolve(call.UniqueId, json.RawMessage(`{}`)))
	})

	t.Run("close fails pending calls", func(t *testing.T) {
		table := NewPendingCalls()
		call, _ := table.Register("Heartbeat", time.Minute)

		done := make(chan *Error, 1)
		go func() {
			_, callErr := call.Wait()
			done <- callErr
		}()
		table.Close()

		select {
		case callErr := <-done:
			assert.Equal(t, ErrConnectionClosed, callErr)
		case <-time.After(time.Second):
			t.Fatal("pending call was not failed on close")
		}
	})

	t.Run("register after close fails fast", func(t *testing.T) {
		table := NewPendingCalls()
		table.Close()
		table.Close()

		_, regErr := table.Register("Heartbeat", time.Second)
		require.NotNil(t, regErr)
		assert.Equal(t, ErrSessionClosed, regErr)
	})
}
