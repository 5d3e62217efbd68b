package ocpp

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Correlation failures are reported to the local caller only, never to the wire.
var (
	ErrCallTimeout      = NewError(GenericError, "no response received before the call deadline", "")
	ErrConnectionClosed = NewError(GenericError, "connection closed while the call was pending", "")
	ErrSessionClosed    = NewError(GenericError, "session is closed", "")
)

type callOutcome struct {
	payload json.RawMessage
	err     *Error
}

// PendingCall is one in-flight outbound Call, owned by the PendingCalls
// table until resolved, rejected or timed out.
type PendingCall struct {
	UniqueId string
	Action   string
	timeout  time.Duration
	done     chan callOutcome
	table    *PendingCalls
}

// PendingCalls tracks in-flight outbound calls by unique id and matches
// inbound results and errors to the waiting caller. Out-of-order arrival
// across different ids is expected and handled; each entry is fulfilled
// at most once.
type PendingCalls struct {
	mux    sync.Mutex
	calls  map[string]*PendingCall
	closed bool
}

func NewPendingCalls() *PendingCalls {
	return &PendingCalls{
		calls: make(map[string]*PendingCall),
	}
}

// Register creates a PendingCall with a fresh unique id. The caller must
// register before handing the encoded frame to the transport, so an early
// response always finds its entry.
func (p *PendingCalls) Register(action string, timeout time.Duration) (*PendingCall, *Error) {
	p.mux.Lock()
	defer p.mux.Unlock()
	if p.closed {
		return nil, ErrSessionClosed
	}
	call := &PendingCall{
		UniqueId: uuid.New().String(),
		Action:   action,
		timeout:  timeout,
		done:     make(chan callOutcome, 1),
		table:    p,
	}
	p.calls[call.UniqueId] = call
	return call, nil
}

// take removes and returns the entry for the id. Whoever takes the entry is
// the sole party allowed to fulfil it.
func (p *PendingCalls) take(uniqueId string) (*PendingCall, bool) {
	p.mux.Lock()
	defer p.mux.Unlock()
	call, ok := p.calls[uniqueId]
	if ok {
		delete(p.calls, uniqueId)
	}
	return call, ok
}

// Resolve fulfils the pending call for the id with a result payload.
// A frame with no matching entry is discarded and reported to the caller
// through the return value; deciding how to log a stray is the session's
// business, not the table's.
func (p *PendingCalls) Resolve(uniqueId string, payload json.RawMessage) bool {
	call, ok := p.take(uniqueId)
	if !ok {
		return false
	}
	call.done <- callOutcome{payload: payload}
	return true
}

// Reject fulfils the pending call for the id with a peer-reported error.
func (p *PendingCalls) Reject(uniqueId string, callErr *Error) bool {
	call, ok := p.take(uniqueId)
	if !ok {
		return false
	}
	call.done <- callOutcome{err: callErr}
	return true
}

// Close fails every pending call with ErrConnectionClosed and makes any
// further Register fail fast. Safe to call more than once.
func (p *PendingCalls) Close() {
	p.mux.Lock()
	defer p.mux.Unlock()
	if p.closed {
		return
	}
	p.closed = true
	for id, call := range p.calls {
		delete(p.calls, id)
		call.done <- callOutcome{err: ErrConnectionClosed}
	}
}

func (p *PendingCalls) Size() int {
	p.mux.Lock()
	defer p.mux.Unlock()
	return len(p.calls)
}

// Wait suspends the caller until the call is resolved, rejected or past its
// deadline. On timeout the entry is removed from the table; if the response
// won the race against the timer it is still delivered.
func (c *PendingCall) Wait() (json.RawMessage, *Error) {
	timer := time.NewTimer(c.timeout)
	defer timer.Stop()
	select {
	case outcome := <-c.done:
		return outcome.payload, outcome.err
	case <-timer.C:
		if _, ok := c.table.take(c.UniqueId); ok {
			return nil, ErrCallTimeout
		}
		// resolver already took the entry, the outcome is on its way
		outcome := <-c.done
		return outcome.payload, outcome.err
	}
}
