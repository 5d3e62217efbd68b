package server

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"evlink/internal"
	"evlink/ocpp"
)

// Session is the per-connection state owned by the central system: the
// transport, the table of in-flight outbound calls and the single-flight
// gate that keeps at most one outbound call on the wire at a time.
type Session struct {
	ws       *WebSocket
	pending  *ocpp.PendingCalls
	callGate chan struct{}
	timeout  time.Duration
	logger   internal.LogHandler
	rawSink  func(data []byte)
}

func NewSession(ws *WebSocket, timeout time.Duration, logger internal.LogHandler) *Session {
	return &Session{
		ws:       ws,
		pending:  ocpp.NewPendingCalls(),
		callGate: make(chan struct{}, 1),
		timeout:  timeout,
		logger:   logger,
	}
}

func (s *Session) ID() string {
	return s.ws.ID()
}

// SetRawSink registers an observer for every outbound frame, used to relay
// traffic to monitoring clients.
func (s *Session) SetRawSink(sink func(data []byte)) {
	s.rawSink = sink
}

func (s *Session) write(data []byte) error {
	s.logger.RawDataEvent("OUT", string(data))
	if err := s.ws.WriteMessage(data); err != nil {
		return err
	}
	if s.rawSink != nil {
		s.rawSink(data)
	}
	return nil
}

// Call sends a request to the charge point and blocks until the matching
// result arrives, the peer reports an error, or the deadline passes.
// The entry is registered before the frame is written, so a response that
// arrives faster than the caller resumes still finds its slot.
func (s *Session) Call(request ocpp.Request) (json.RawMessage, error) {
	s.callGate <- struct{}{}
	defer func() { <-s.callGate }()

	pendingCall, regErr := s.pending.Register(request.GetFeatureName(), s.timeout)
	if regErr != nil {
		return nil, regErr
	}
	call, err := ocpp.CreateCall(pendingCall.UniqueId, request)
	if err != nil {
		s.pending.Reject(pendingCall.UniqueId, ocpp.NewError(ocpp.InternalError, err.Error(), pendingCall.UniqueId))
		return nil, err
	}
	data, err := call.MarshalJSON()
	if err != nil {
		s.pending.Reject(pendingCall.UniqueId, ocpp.NewError(ocpp.InternalError, err.Error(), pendingCall.UniqueId))
		return nil, err
	}
	if err = s.write(data); err != nil {
		s.pending.Reject(pendingCall.UniqueId, ocpp.NewError(ocpp.GenericError, err.Error(), pendingCall.UniqueId))
		return nil, err
	}
	payload, callErr := pendingCall.Wait()
	if callErr != nil {
		return nil, callErr
	}
	return payload, nil
}

// HandleResult matches an inbound CallResult to its pending call. A result
// with no matching entry is logged and discarded; the protocol allows stray
// duplicates from retransmission.
func (s *Session) HandleResult(result *ocpp.CallResult) {
	if !s.pending.Resolve(result.UniqueId, result.Payload) {
		s.logger.Warn(fmt.Sprintf("dropping stray call result %s from %s", result.UniqueId, s.ID()))
	}
}

// HandleError matches an inbound CallError to its pending call.
func (s *Session) HandleError(callError *ocpp.CallError) {
	if !s.pending.Reject(callError.UniqueId, ocpp.NewError(callError.ErrorCode, callError.ErrorDescription, callError.UniqueId)) {
		s.logger.Warn(fmt.Sprintf("dropping stray call error %s from %s", callError.UniqueId, s.ID()))
	}
}

// SendResult replies to an inbound Call with a CallResult reusing its id.
func (s *Session) SendResult(uniqueId string, response ocpp.Response) error {
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

// SendError replies to an inbound Call with a CallError.
func (s *Session) SendError(uniqueId string, code ocpp.ErrorCode, description string) error {
	callError := ocpp.CreateCallError(uniqueId, code, description)
	data, err := callError.MarshalJSON()
	if err != nil {
		return err
	}
	return s.write(data)
}

// Close fails every in-flight call and blocks new ones.
func (s *Session) Close() {
	s.pending.Close()
}

// SessionRegistry tracks live sessions by charge point id.
type SessionRegistry struct {
	mux      sync.RWMutex
	sessions map[string]*Session
}

func NewSessionRegistry() *SessionRegistry {
	return &SessionRegistry{
		sessions: make(map[string]*Session),
	}
}

// Add registers the session, closing any previous session with the same id;
// a reconnecting charge point supersedes its stale connection.
func (r *SessionRegistry) Add(session *Session) {
	r.mux.Lock()
	previous := r.sessions[session.ID()]
	r.sessions[session.ID()] = session
	r.mux.Unlock()
	if previous != nil {
		previous.Close()
	}
}

// Remove drops the session if it is still the registered one.
func (r *SessionRegistry) Remove(session *Session) {
	r.mux.Lock()
	if current, ok := r.sessions[session.ID()]; ok && current == session {
		delete(r.sessions, session.ID())
	}
	r.mux.Unlock()
	session.Close()
}

func (r *SessionRegistry) Get(chargePointId string) (*Session, error) {
	r.mux.RLock()
	defer r.mux.RUnlock()
	session, ok := r.sessions[chargePointId]
	if !ok {
		return nil, fmt.Errorf("charge point %s is not connected", chargePointId)
	}
	return session, nil
}

func (r *SessionRegistry) ByTransport(ws *WebSocket) *Session {
	r.mux.RLock()
	defer r.mux.RUnlock()
	for _, session := range r.sessions {
		if session.ws == ws {
			return session
		}
	}
	return nil
}

func (r *SessionRegistry) Count() int {
	r.mux.RLock()
	defer r.mux.RUnlock()
	return len(r.sessions)
}
