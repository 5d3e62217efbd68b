package ocpp

import (
	"encoding/json"
	"fmt"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type pingRequest struct {
	Count int    `json:"count" validate:"gte=0"`
	Mode  string `json:"mode,omitempty" validate:"omitempty,oneof=Fast Slow"`
	Tag   string `json:"tag" validate:"required,max=20"`
}

func (r pingRequest) GetFeatureName() string { return "Ping" }

type pingResponse struct {
	Echo string `json:"echo"`
}

func (r pingResponse) GetFeatureName() string { return "Ping" }

type pingFeature struct{}

func (f pingFeature) GetFeatureName() string       { return "Ping" }
func (f pingFeature) GetRequestType() reflect.Type { return reflect.TypeOf(pingRequest{}) }
func (f pingFeature) GetResponseType() reflect.Type {
	return reflect.TypeOf(pingResponse{})
}

func pingCall(payload string) *Call {
	return &Call{UniqueId: "test-1", Action: "Ping", Payload: json.RawMessage(payload)}
}

func TestRouterDispatch(t *testing.T) {

	t.Run("dispatches to registered handler", func(t *testing.T) {
		router := NewRouter()
		router.Handle(pingFeature{}, func(id string, request Request) (Response, error) {
			ping := request.(*pingRequest)
			return &pingResponse{Echo: fmt.Sprintf("%s/%s", id, ping.Tag)}, nil
		})
		require.True(t, router.SupportsAction("Ping"))

		response, callErr := router.Dispatch("cp001", pingCall(`{"tag":"hello"}`))
		require.Nil(t, callErr)
		assert.Equal(t, "cp001/hello", response.(*pingResponse).Echo)
	})

	t.Run("unknown action", func(t *testing.T) {
		router := NewRouter()
		_, callErr := router.Dispatch("cp001", &Call{UniqueId: "test-2", Action: "NoSuchAction"})
		require.NotNil(t, callErr)
		assert.Equal(t, NotImplemented, callErr.Code)
		assert.Equal(t, "test-2", callErr.MessageId)
	})

	t.Run("type mismatch in payload", func(t *testing.T) {
		router := NewRouter()
		router.Handle(pingFeature{}, echoHandler)

		_, callErr := router.Dispatch("cp001", pingCall(`{"tag":"x","count":"many"}`))
		require.NotNil(t, callErr)
		assert.Equal(t, TypeConstraintViolation, callErr.Code)
	})

	t.Run("malformed payload", func(t *testing.T) {
		router := NewRouter()
		router.Handle(pingFeature{}, echoHandler)

		_, callErr := router.Dispatch("cp001", pingCall(`"not an object"`))
		require.NotNil(t, callErr)
		assert.Equal(t, TypeConstraintViolation, callErr.Code)
	})

	t.Run("missing required field", func(t *testing.T) {
		router := NewRouter()
		router.Handle(pingFeature{}, echoHandler)

		_, callErr := router.Dispatch("cp001", pingCall(`{"count":1}`))
		require.NotNil(t, callErr)
		assert.Equal(t, FormationViolation, callErr.Code)
	})

	t.Run("enum constraint", func(t *testing.T) {
		router := NewRouter()
		router.Handle(pingFeature{}, echoHandler)

		_, callErr := router.Dispatch("cp001", pingCall(`{"tag":"x","mode":"Warp"}`))
		require.NotNil(t, callErr)
		assert.Equal(t, PropertyConstraintViolation, callErr.Code)
	})

	t.Run("bounds constraint", func(t *testing.T) {
		router := NewRouter()
		router.Handle(pingFeature{}, echoHandler)

		_, callErr := router.Dispatch("cp001", pingCall(`{"tag":"x","count":-1}`))
		require.NotNil(t, callErr)
		assert.Equal(t, PropertyConstraintViolation, callErr.Code)
	})

	t.Run("handler error becomes internal error", func(t *testing.T) {
		router := NewRouter()
		router.Handle(pingFeature{}, func(id string, request Request) (Response, error) {
			return nil, fmt.Errorf("database gone")
		})

		_, callErr := router.Dispatch("cp001", pingCall(`{"tag":"x"}`))
		require.NotNil(t, callErr)
		assert.Equal(t, InternalError, callErr.Code)
		assert.Contains(t, callErr.Description, "database gone")
	})

	t.Run("handler panic is contained", func(t *testing.T) {
		router := NewRouter()
		router.Handle(pingFeature{}, func(id string, request Request) (Response, error) {
			panic("boom")
		})

		response, callErr := router.Dispatch("cp001", pingCall(`{"tag":"x"}`))
		assert.Nil(t, response)
		require.NotNil(t, callErr)
		assert.Equal(t, InternalError, callErr.Code)
		assert.Equal(t, "test-1", callErr.MessageId)
	})
}

func echoHandler(id string, request Request) (Response, error) {
	return &pingResponse{}, nil
}
