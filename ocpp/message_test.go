package ocpp

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMessage(t *testing.T) {

	t.Run("call round trip", func(t *testing.T) {
		call := &Call{
			UniqueId: "msg-1",
			Action:   "Heartbeat",
			Payload:  json.RawMessage(`{"custom":1}`),
		}
		data, err := call.MarshalJSON()
		require.NoError(t, err)

		message, err := ParseMessage(data)
		require.NoError(t, err)
		parsed, ok := message.(*Call)
		require.True(t, ok)
		assert.Equal(t, CallTypeRequest, parsed.GetCallType())
		assert.Equal(t, "msg-1", parsed.GetUniqueId())
		assert.Equal(t, "Heartbeat", parsed.Action)
		assert.JSONEq(t, `{"custom":1}`, string(parsed.Payload))
	})

	t.Run("call with empty payload", func(t *testing.T) {
		call := &Call{UniqueId: "msg-2", Action: "Heartbeat"}
		data, err := call.MarshalJSON()
		require.NoError(t, err)
		assert.Equal(t, `[2,"msg-2","Heartbeat",{}]`, string(data))

		message, err := ParseMessage(data)
		require.NoError(t, err)
		parsed := message.(*Call)
		assert.JSONEq(t, `{}`, string(parsed.Payload))
	})

	t.Run("call result round trip", func(t *testing.T) {
		result := &CallResult{UniqueId: "msg-3", Payload: json.RawMessage(`{"status":"Accepted"}`)}
		data, err := result.MarshalJSON()
		require.NoError(t, err)

		message, err := ParseMessage(data)
		require.NoError(t, err)
		parsed, ok := message.(*CallResult)
		require.True(t, ok)
		assert.Equal(t, "msg-3", parsed.UniqueId)
		assert.JSONEq(t, `{"status":"Accepted"}`, string(parsed.Payload))
	})

	t.Run("call error round trip", func(t *testing.T) {
		callError := &CallError{
			UniqueId:         "msg-4",
			ErrorCode:        NotImplemented,
			ErrorDescription: "no such action",
		}
		data, err := callError.MarshalJSON()
		require.NoError(t, err)
		assert.Equal(t, `[4,"msg-4","NotImplemented","no such action",{}]`, string(data))

		message, err := ParseMessage(data)
		require.NoError(t, err)
		parsed, ok := message.(*CallError)
		require.True(t, ok)
		assert.Equal(t, NotImplemented, parsed.ErrorCode)
		assert.Equal(t, "no such action", parsed.ErrorDescription)
	})

	t.Run("not a json array", func(t *testing.T) {
		_, err := ParseMessage([]byte(`{"messageType":2}`))
		requireOcppError(t, err, FormationViolation)
	})

	t.Run("too few elements", func(t *testing.T) {
		_, err := ParseMessage([]byte(`[2,"msg-5"]`))
		requireOcppError(t, err, FormationViolation)
	})

	t.Run("call with wrong arity", func(t *testing.T) {
		_, err := ParseMessage([]byte(`[2,"msg-6","Heartbeat",{},{}]`))
		ocppErr := requireOcppError(t, err, FormationViolation)
		assert.Equal(t, "msg-6", ocppErr.MessageId)
	})

	t.Run("non-string unique id", func(t *testing.T) {
		_, err := ParseMessage([]byte(`[2,42,"Heartbeat",{}]`))
		ocppErr := requireOcppError(t, err, FormationViolation)
		assert.Empty(t, ocppErr.MessageId)
	})

	t.Run("unknown message type id", func(t *testing.T) {
		_, err := ParseMessage([]byte(`[7,"msg-7","Heartbeat",{}]`))
		ocppErr := requireOcppError(t, err, ProtocolError)
		assert.Equal(t, "msg-7", ocppErr.MessageId)
	})

	t.Run("non-numeric type id recovers unique id", func(t *testing.T) {
		_, err := ParseMessage([]byte(`["2","msg-8","Heartbeat",{}]`))
		ocppErr := requireOcppError(t, err, FormationViolation)
		assert.Equal(t, "msg-8", ocppErr.MessageId)
	})
}

func requireOcppError(t *testing.T, err error, code ErrorCode) *Error {
	t.Helper()
	require.Error(t, err)
	ocppErr, ok := err.(*Error)
	require.True(t, ok, "expected *ocpp.Error, got %T", err)
	require.Equal(t, code, ocppErr.Code)
	return ocppErr
}
