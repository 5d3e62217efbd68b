package station

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"evlink/internal"
	"evlink/internal/config"
	"evlink/models"
	"evlink/ocpp"
	"evlink/types"
)

const (
	featureNameStation = "Station"
	reconnectDelay     = 10 * time.Second
	handshakeTimeout   = 10 * time.Second
)

// Station is a charge point client: it dials the central system, keeps the
// boot - status - heartbeat cycle running and drives the transaction
// lifecycle on its local connectors. It reuses the same codec, correlation
// table and router as the server side.
type Station struct {
	conf   *config.Config
	logger internal.LogHandler
	router *ocpp.Router

	point         *models.ChargePoint
	configuration map[string]string
	localList     map[string]*types.IdTagInfo
	listVersion   int
	reservations  map[int]int

	// conn and pending form the current link, swapped as a pair on every
	// reconnect; handler goroutines from an earlier connection read them
	// through link() only.
	linkMux  sync.RWMutex
	conn     *websocket.Conn
	pending  *ocpp.PendingCalls
	writeMux sync.Mutex
	callGate chan struct{}
	timeout  time.Duration

	mux         sync.Mutex
	meter       map[int]int
	meterStart  map[int]int
	heartbeatCh chan int
	rebootCh    chan string
}

func NewStation(conf *config.Config, logger internal.LogHandler) *Station {
	s := &Station{
		conf:          conf,
		logger:        logger,
		point:         models.NewChargePoint(conf.Station.Id),
		configuration: make(map[string]string),
		localList:     make(map[string]*types.IdTagInfo),
		reservations:  make(map[int]int),
		callGate:      make(chan struct{}, 1),
		timeout:       time.Duration(conf.Ocpp.CallTimeout) * time.Second,
		meter:         make(map[int]int),
		meterStart:    make(map[int]int),
		heartbeatCh:   make(chan int, 1),
		rebootCh:      make(chan string, 1),
	}
	for i := 1; i <= conf.Station.Connectors; i++ {
		s.point.GetConnector(i)
	}
	s.configuration[keyHeartbeatInterval] = fmt.Sprintf("%d", conf.Ocpp.HeartbeatInterval)
	s.configuration[keyMeterValueSampleInterval] = fmt.Sprintf("%d", conf.Ocpp.MeterInterval)
	s.configuration[keyNumberOfConnectors] = fmt.Sprintf("%d", conf.Station.Connectors)
	s.router = s.buildRouter()
	return s
}

func (s *Station) endpoint() string {
	return strings.TrimSuffix(s.conf.Station.CentralSystem, "/") + "/" + s.conf.Station.Id
}

// Start runs the connection cycle forever: dial, boot, serve until the
// link drops or a reset is accepted, then dial again.
func (s *Station) Start() error {
	if s.conf.Station.Id == "" {
		return fmt.Errorf("station id is not configured")
	}
	for {
		if err := s.serve(); err != nil {
			s.logger.Error("station connection", err)
		}
		time.Sleep(reconnectDelay)
	}
}

func (s *Station) serve() error {
	dialer := websocket.Dialer{
		Subprotocols:     []string{types.SubProtocol16},
		HandshakeTimeout: handshakeTimeout,
	}
	conn, _, err := dialer.Dial(s.endpoint(), nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", s.endpoint(), err)
	}
	pending := ocpp.NewPendingCalls()
	s.setLink(conn, pending)
	s.logger.FeatureEvent(featureNameStation, s.conf.Station.Id, fmt.Sprintf("connected to %s over %s", s.endpoint(), conn.Subprotocol()))

	readerDone := make(chan struct{})
	go s.reader(conn, pending, readerDone)

	interval, err := s.boot()
	if err != nil {
		s.teardown(conn, pending)
		<-readerDone
		return err
	}

	loopsDone := make(chan struct{})
	go s.heartbeatLoop(interval, loopsDone)
	go s.meterLoop(loopsDone)

	var reason string
	select {
	case <-readerDone:
		s.teardown(conn, pending)
	case reason = <-s.rebootCh:
		s.logger.FeatureEvent(featureNameStation, s.conf.Station.Id, fmt.Sprintf("rebooting: %s reset", reason))
		s.shutdownTransactions(reason)
		s.teardown(conn, pending)
		<-readerDone
	}
	close(loopsDone)
	return nil
}

func (s *Station) setLink(conn *websocket.Conn, pending *ocpp.PendingCalls) {
	s.linkMux.Lock()
	s.conn = conn
	s.pending = pending
	s.linkMux.Unlock()
}

func (s *Station) link() (*websocket.Conn, *ocpp.PendingCalls) {
	s.linkMux.RLock()
	defer s.linkMux.RUnlock()
	return s.conn, s.pending
}

func (s *Station) teardown(conn *websocket.Conn, pending *ocpp.PendingCalls) {
	pending.Close()
	if err := conn.Close(); err != nil {
		s.logger.Debug(fmt.Sprintf("closing connection: %s", err))
	}
}

// reader owns inbound traffic for one connection; its correlation table is
// pinned here so a late frame never reaches the table of a newer link.
func (s *Station) reader(conn *websocket.Conn, pending *ocpp.PendingCalls, done chan struct{}) {
	defer close(done)
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			s.logger.Debug(fmt.Sprintf("read: %s", err))
			return
		}
		s.logger.RawDataEvent("IN", string(data))
		if err = s.handleMessage(conn, pending, data); err != nil {
			s.logger.Error("handling message", err)
		}
	}
}

func (s *Station) handleMessage(conn *websocket.Conn, pending *ocpp.PendingCalls, data []byte) error {
	message, err := ocpp.ParseMessage(data)
	if err != nil {
		var ocppErr *ocpp.Error
		if ok := asOcppError(err, &ocppErr); ok && ocppErr.MessageId != "" {
			return s.sendError(ocppErr.MessageId, ocppErr.Code, ocppErr.Description)
		}
		// no unique id to address a CallError to: the stream is
		// unreadable, drop the connection and let Start reconnect
		s.logger.Warn(fmt.Sprintf("dropping connection after unparseable frame: %s", err))
		return conn.Close()
	}
	switch m := message.(type) {
	case *ocpp.Call:
		response, callErr := s.router.Dispatch(s.conf.Station.Id, m)
		if callErr != nil {
			return s.sendError(m.UniqueId, callErr.Code, callErr.Description)
		}
		return s.sendResult(m.UniqueId, response)
	case *ocpp.CallResult:
		if !pending.Resolve(m.UniqueId, m.Payload) {
			s.logger.Warn(fmt.Sprintf("dropping stray call result %s", m.UniqueId))
		}
	case *ocpp.CallError:
		if !pending.Reject(m.UniqueId, ocpp.NewError(m.ErrorCode, m.ErrorDescription, m.UniqueId)) {
			s.logger.Warn(fmt.Sprintf("dropping stray call error %s", m.UniqueId))
		}
	}
	return nil
}

func asOcppError(err error, target **ocpp.Error) bool {
	ocppErr, ok := err.(*ocpp.Error)
	if ok {
		*target = ocppErr
	}
	return ok
}

func (s *Station) write(data []byte) error {
	conn, _ := s.link()
	if conn == nil {
		return fmt.Errorf("not connected")
	}
	s.logger.RawDataEvent("OUT", string(data))
	s.writeMux.Lock()
	defer s.writeMux.Unlock()
	return conn.WriteMessage(websocket.TextMessage, data)
}

// call sends a request to the central system and blocks until the matching
// result arrives. The gate keeps one outbound call on the wire at a time.
// A goroutine holding the previous link's table fails fast: that table is
// closed before the link is swapped.
func (s *Station) call(request ocpp.Request) (json.RawMessage, error) {
	s.callGate <- struct{}{}
	defer func() { <-s.callGate }()

	_, pending := s.link()
	if pending == nil {
		return nil, fmt.Errorf("not connected")
	}
	pendingCall, regErr := pending.Register(request.GetFeatureName(), s.timeout)
	if regErr != nil {
		return nil, regErr
	}
	call, err := ocpp.CreateCall(pendingCall.UniqueId, request)
	if err != nil {
		pending.Reject(pendingCall.UniqueId, ocpp.NewError(ocpp.InternalError, err.Error(), pendingCall.UniqueId))
		return nil, err
	}
	data, err := call.MarshalJSON()
	if err != nil {
		pending.Reject(pendingCall.UniqueId, ocpp.NewError(ocpp.InternalError, err.Error(), pendingCall.UniqueId))
		return nil, err
	}
	if err = s.write(data); err != nil {
		pending.Reject(pendingCall.UniqueId, ocpp.NewError(ocpp.GenericError, err.Error(), pendingCall.UniqueId))
		return nil, err
	}
	payload, callErr := pendingCall.Wait()
	if callErr != nil {
		return nil, callErr
	}
	return payload, nil
}

// callFor runs a call and decodes the payload into the feature's response type.
func (s *Station) callFor(feature ocpp.Feature, request ocpp.Request) (ocpp.Response, error) {
	payload, err := s.call(request)
	if err != nil {
		return nil, err
	}
	return ocpp.ParseRawJsonResponse(payload, feature.GetResponseType())
}

func (s *Station) sendResult(uniqueId string, response ocpp.Response) error {
	callResult, err := ocpp.CreateCallResult(response, uniqueId)
	if err != nil {
		return err
	}
	data, err := callResult.MarshalJSON()
	if err != nil {
		return err
	}
	return s.write(data)
}

func (s *Station) sendError(uniqueId string, code ocpp.ErrorCode, description string) error {
	callError := ocpp.CreateCallError(uniqueId, code, description)
	data, err := callError.MarshalJSON()
	if err != nil {
		return err
	}
	return s.write(data)
}
