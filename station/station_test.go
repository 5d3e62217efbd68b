package station

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"evlink/internal/config"
	"evlink/ocpp"
	"evlink/ocpp/core"
	"evlink/ocpp/localauth"
	"evlink/types"
)

type nopLogger struct{}

func (l *nopLogger) FeatureEvent(feature, id, text string) {}
func (l *nopLogger) RawDataEvent(direction, data string)   {}
func (l *nopLogger) Debug(text string)                     {}
func (l *nopLogger) Warn(text string)                      {}
func (l *nopLogger) Error(text string, err error)          {}

// stubCentralSystem answers station calls the way a permissive central
// system would: every tag except "bad-tag" is authorized and transaction
// ids count up from 700.
func stubCentralSystem(t *testing.T) *httptest.Server {
	upgrader := websocket.Upgrader{Subprotocols: []string{types.SubProtocol16}}
	nextTransactionId := 700
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			message, err := ocpp.ParseMessage(data)
			if err != nil {
				t.Errorf("stub received unparseable frame: %s", err)
				return
			}
			call, ok := message.(*ocpp.Call)
			if !ok {
				t.Errorf("stub expected a call, got %T", message)
				return
			}

			payload := json.RawMessage(`{}`)
			switch call.Action {
			case core.AuthorizeFeatureName:
				var request core.AuthorizeRequest
				if err = json.Unmarshal(call.Payload, &request); err != nil {
					t.Errorf("stub: bad authorize payload: %s", err)
					return
				}
				status := types.AuthorizationStatusAccepted
				if request.IdTag == "bad-tag" {
					status = types.AuthorizationStatusInvalid
				}
				payload, _ = json.Marshal(core.NewAuthorizationResponse(types.NewIdTagInfo(status)))
			case core.StartTransactionFeatureName:
				response := core.NewStartTransactionResponse(types.NewIdTagInfo(types.AuthorizationStatusAccepted), nextTransactionId)
				nextTransactionId++
				payload, _ = json.Marshal(response)
			case core.HeartbeatFeatureName:
				payload, _ = json.Marshal(core.NewHeartbeatResponse(types.NewDateTime(time.Now())))
			}
			result := &ocpp.CallResult{UniqueId: call.UniqueId, Payload: payload}
			reply, err := result.MarshalJSON()
			if err != nil {
				t.Errorf("stub: encoding reply: %s", err)
				return
			}
			if err = conn.WriteMessage(websocket.TextMessage, reply); err != nil {
				return
			}
		}
	}))
}

func newTestStation(t *testing.T) (*Station, func()) {
	conf := &config.Config{}
	conf.Station.Id = "st001"
	conf.Station.Connectors = 2
	conf.Station.Vendor = "evlink"
	conf.Station.Model = "evlink-station"
	conf.Ocpp.CallTimeout = 5
	conf.Ocpp.HeartbeatInterval = 600
	conf.Ocpp.MeterInterval = 120

	s := NewStation(conf, &nopLogger{})

	stub := stubCentralSystem(t)
	wsURL := "ws" + strings.TrimPrefix(stub.URL, "http")
	dialer := websocket.Dialer{Subprotocols: []string{types.SubProtocol16}}
	conn, _, err := dialer.Dial(wsURL, nil)
	require.NoError(t, err)

	pending := ocpp.NewPendingCalls()
	s.setLink(conn, pending)
	readerDone := make(chan struct{})
	go s.reader(conn, pending, readerDone)

	return s, func() {
		s.teardown(conn, pending)
		<-readerDone
		stub.Close()
	}
}

func dispatch(t *testing.T, s *Station, request ocpp.Request) ocpp.Response {
	payload, err := json.Marshal(request)
	require.NoError(t, err)
	call := &ocpp.Call{UniqueId: "op-1", Action: request.GetFeatureName(), Payload: payload}
	response, callErr := s.router.Dispatch(s.conf.Station.Id, call)
	require.Nil(t, callErr)
	return response
}

func TestStationCharging(t *testing.T) {

	t.Run("full charge cycle", func(t *testing.T) {
		s, done := newTestStation(t)
		defer done()

		require.NoError(t, s.StartCharging(1, "tag-1"))
		connector := s.point.GetConnector(1)
		assert.True(t, connector.Charging())
		assert.Equal(t, 700, connector.TransactionId())
		assert.Equal(t, types.ChargePointStatusCharging, connector.GetStatus())

		require.NoError(t, s.StopCharging(1, "tag-1", core.ReasonLocal))
		assert.False(t, connector.Charging())
		assert.Equal(t, types.ChargePointStatusAvailable, connector.GetStatus())
	})

	t.Run("refused tag rolls the connector back", func(t *testing.T) {
		s, done := newTestStation(t)
		defer done()

		err := s.StartCharging(1, "bad-tag")
		require.Error(t, err)
		connector := s.point.GetConnector(1)
		assert.False(t, connector.Charging())
		assert.Equal(t, types.ChargePointStatusAvailable, connector.GetStatus())
	})

	t.Run("busy connector refuses a second start", func(t *testing.T) {
		s, done := newTestStation(t)
		defer done()

		require.NoError(t, s.StartCharging(1, "tag-1"))
		err := s.StartCharging(1, "tag-2")
		require.Error(t, err)
		assert.Equal(t, 700, s.point.GetConnector(1).TransactionId())
	})

	t.Run("local list can refuse without asking the central system", func(t *testing.T) {
		s, done := newTestStation(t)
		defer done()

		request := localauth.NewSendLocalListRequest(1, localauth.UpdateTypeFull)
		request.LocalAuthorizationList = []localauth.AuthorizationData{
			{IdTag: "blocked-tag", IdTagInfo: types.NewIdTagInfo(types.AuthorizationStatusBlocked)},
		}
		response := dispatch(t, s, request)
		assert.Equal(t, localauth.UpdateStatusAccepted, response.(*localauth.SendLocalListResponse).Status)

		err := s.StartCharging(1, "blocked-tag")
		require.Error(t, err)
		assert.False(t, s.point.GetConnector(1).Charging())
	})
}

func TestStationReset(t *testing.T) {

	t.Run("soft reset refused while charging", func(t *testing.T) {
		s, done := newTestStation(t)
		defer done()
		require.NoError(t, s.StartCharging(1, "tag-1"))

		response := dispatch(t, s, core.NewResetRequest(core.ResetTypeSoft))
		assert.Equal(t, core.ResetStatusRejected, response.(*core.ResetResponse).Status)
	})

	t.Run("soft reset accepted when idle", func(t *testing.T) {
		s, done := newTestStation(t)
		defer done()

		response := dispatch(t, s, core.NewResetRequest(core.ResetTypeSoft))
		assert.Equal(t, core.ResetStatusAccepted, response.(*core.ResetResponse).Status)

		select {
		case resetType := <-s.rebootCh:
			assert.Equal(t, string(core.ResetTypeSoft), resetType)
		case <-time.After(time.Second):
			t.Fatal("reboot was not requested")
		}
	})

	t.Run("hard reset accepted while charging", func(t *testing.T) {
		s, done := newTestStation(t)
		defer done()
		require.NoError(t, s.StartCharging(1, "tag-1"))

		response := dispatch(t, s, core.NewResetRequest(core.ResetTypeHard))
		assert.Equal(t, core.ResetStatusAccepted, response.(*core.ResetResponse).Status)

		select {
		case resetType := <-s.rebootCh:
			assert.Equal(t, string(core.ResetTypeHard), resetType)
		case <-time.After(time.Second):
			t.Fatal("reboot was not requested")
		}
		s.shutdownTransactions(string(core.ResetTypeHard))
		assert.False(t, s.point.HasActiveTransaction())
	})
}

func TestStationLocalList(t *testing.T) {
	s, done := newTestStation(t)
	defer done()

	response := dispatch(t, s, localauth.NewGetLocalListVersionRequest())
	assert.Equal(t, 0, response.(*localauth.GetLocalListVersionResponse).ListVersion)

	request := localauth.NewSendLocalListRequest(5, localauth.UpdateTypeFull)
	request.LocalAuthorizationList = []localauth.AuthorizationData{
		{IdTag: "tag-1", IdTagInfo: types.NewIdTagInfo(types.AuthorizationStatusAccepted)},
	}
	response = dispatch(t, s, request)
	assert.Equal(t, localauth.UpdateStatusAccepted, response.(*localauth.SendLocalListResponse).Status)

	response = dispatch(t, s, localauth.NewGetLocalListVersionRequest())
	assert.Equal(t, 5, response.(*localauth.GetLocalListVersionResponse).ListVersion)

	// stale version is refused
	stale := localauth.NewSendLocalListRequest(5, localauth.UpdateTypeDifferential)
	response = dispatch(t, s, stale)
	assert.Equal(t, localauth.UpdateStatusVersionMismatch, response.(*localauth.SendLocalListResponse).Status)

	// differential update without tag info removes the entry
	removal := localauth.NewSendLocalListRequest(6, localauth.UpdateTypeDifferential)
	removal.LocalAuthorizationList = []localauth.AuthorizationData{{IdTag: "tag-1"}}
	response = dispatch(t, s, removal)
	assert.Equal(t, localauth.UpdateStatusAccepted, response.(*localauth.SendLocalListResponse).Status)
	s.mux.Lock()
	assert.Empty(t, s.localList)
	s.mux.Unlock()
}

func TestStationConfiguration(t *testing.T) {
	s, done := newTestStation(t)
	defer done()

	t.Run("get all keys", func(t *testing.T) {
		response := dispatch(t, s, core.NewGetConfigurationRequest(nil))
		conf := response.(*core.GetConfigurationResponse)
		assert.Len(t, conf.ConfigurationKey, 3)
		assert.Empty(t, conf.UnknownKey)
	})

	t.Run("unknown key is reported", func(t *testing.T) {
		response := dispatch(t, s, core.NewGetConfigurationRequest([]string{keyHeartbeatInterval, "NoSuchKey"}))
		conf := response.(*core.GetConfigurationResponse)
		require.Len(t, conf.ConfigurationKey, 1)
		assert.Equal(t, keyHeartbeatInterval, conf.ConfigurationKey[0].Key)
		assert.Equal(t, []string{"NoSuchKey"}, conf.UnknownKey)
	})

	t.Run("read-only key is rejected", func(t *testing.T) {
		response := dispatch(t, s, core.NewChangeConfigurationRequest(keyNumberOfConnectors, "4"))
		assert.Equal(t, core.ConfigurationStatusRejected, response.(*core.ChangeConfigurationResponse).Status)
	})

	t.Run("unknown key is not supported", func(t *testing.T) {
		response := dispatch(t, s, core.NewChangeConfigurationRequest("NoSuchKey", "1"))
		assert.Equal(t, core.ConfigurationStatusNotSupported, response.(*core.ChangeConfigurationResponse).Status)
	})

	t.Run("heartbeat interval change reaches the ticker", func(t *testing.T) {
		response := dispatch(t, s, core.NewChangeConfigurationRequest(keyHeartbeatInterval, "30"))
		assert.Equal(t, core.ConfigurationStatusAccepted, response.(*core.ChangeConfigurationResponse).Status)

		select {
		case interval := <-s.heartbeatCh:
			assert.Equal(t, 30, interval)
		case <-time.After(time.Second):
			t.Fatal("heartbeat interval update was not delivered")
		}
	})

	t.Run("non-numeric value is rejected", func(t *testing.T) {
		response := dispatch(t, s, core.NewChangeConfigurationRequest(keyMeterValueSampleInterval, "soon"))
		assert.Equal(t, core.ConfigurationStatusRejected, response.(*core.ChangeConfigurationResponse).Status)
	})
}

func TestStationRemoteCommands(t *testing.T) {

	t.Run("remote start on a busy connector is rejected", func(t *testing.T) {
		s, done := newTestStation(t)
		defer done()
		require.NoError(t, s.StartCharging(1, "tag-1"))
		require.NoError(t, s.StartCharging(2, "tag-2"))

		connectorId := 1
		request := core.NewRemoteStartTransactionRequest("tag-3")
		request.ConnectorId = &connectorId
		response := dispatch(t, s, request)
		assert.Equal(t, types.RemoteStartStopStatusRejected, response.(*core.RemoteStartTransactionResponse).Status)

		// no free connector left for an unspecified start either
		response = dispatch(t, s, core.NewRemoteStartTransactionRequest("tag-3"))
		assert.Equal(t, types.RemoteStartStopStatusRejected, response.(*core.RemoteStartTransactionResponse).Status)
	})

	t.Run("remote stop of an unknown transaction is rejected", func(t *testing.T) {
		s, done := newTestStation(t)
		defer done()

		response := dispatch(t, s, core.NewRemoteStopTransactionRequest(12345))
		assert.Equal(t, types.RemoteStartStopStatusRejected, response.(*core.RemoteStopTransactionResponse).Status)
	})

	t.Run("unsupported action is answered by the router", func(t *testing.T) {
		s, done := newTestStation(t)
		defer done()

		call := &ocpp.Call{UniqueId: "op-2", Action: "GetLog", Payload: json.RawMessage(`{}`)}
		_, callErr := s.router.Dispatch(s.conf.Station.Id, call)
		require.NotNil(t, callErr)
		assert.Equal(t, ocpp.NotImplemented, callErr.Code)
	})
}

func TestStationReconnect(t *testing.T) {

	t.Run("stale handler goroutines survive a link swap", func(t *testing.T) {
		s, done := newTestStation(t)
		defer done()
		oldConn, oldPending := s.link()

		// a heartbeat goroutine spawned on the first connection keeps
		// calling while the link is being replaced underneath it
		var wg sync.WaitGroup
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 10; i++ {
				_, _ = s.call(core.NewHeartbeatRequest())
			}
		}()

		stub := stubCentralSystem(t)
		defer stub.Close()
		wsURL := "ws" + strings.TrimPrefix(stub.URL, "http")
		dialer := websocket.Dialer{Subprotocols: []string{types.SubProtocol16}}
		conn, _, err := dialer.Dial(wsURL, nil)
		require.NoError(t, err)

		// the reconnect sequence: old link torn down, fresh one installed
		s.teardown(oldConn, oldPending)
		pending := ocpp.NewPendingCalls()
		s.setLink(conn, pending)
		readerDone := make(chan struct{})
		go s.reader(conn, pending, readerDone)
		defer func() {
			s.teardown(conn, pending)
			<-readerDone
		}()

		wg.Wait()

		// calls registered against the old table failed fast, the new
		// link answers
		_, err = s.call(core.NewHeartbeatRequest())
		require.NoError(t, err)
	})

	t.Run("call on the old table fails fast after teardown", func(t *testing.T) {
		s, done := newTestStation(t)
		_, oldPending := s.link()
		done()

		_, regErr := oldPending.Register(core.HeartbeatFeatureName, time.Second)
		require.NotNil(t, regErr)
		assert.Equal(t, ocpp.ErrSessionClosed, regErr)
	})
}

func TestStationEndpoint(t *testing.T) {
	conf := &config.Config{}
	conf.Station.Id = "st007"
	conf.Station.CentralSystem = "ws://ocpp.example.com/ws/"
	conf.Station.Connectors = 1
	s := NewStation(conf, &nopLogger{})
	assert.Equal(t, "ws://ocpp.example.com/ws/st007", s.endpoint())
	assert.Equal(t, fmt.Sprintf("%d", conf.Station.Connectors), s.configuration[keyNumberOfConnectors])
}
