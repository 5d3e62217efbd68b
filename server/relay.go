package server

import (
	"sync"

	"evlink/internal"
	"evlink/ocpp"
)

// Relay copies raw frames from charge point sessions to monitoring
// subscribers. Subscribers are observers only: their sockets never feed
// the correlation table or the router, and a dead subscriber never stalls
// the charge point session it watches.
type Relay struct {
	mux         sync.RWMutex
	subscribers map[string]map[ocpp.Transport]struct{}
	logger      internal.LogHandler
}

func NewRelay(logger internal.LogHandler) *Relay {
	return &Relay{
		subscribers: make(map[string]map[ocpp.Transport]struct{}),
		logger:      logger,
	}
}

// Subscribe registers a transport to receive every frame the charge point
// exchanges with the central system.
func (r *Relay) Subscribe(chargePointId string, transport ocpp.Transport) {
	r.mux.Lock()
	defer r.mux.Unlock()
	set, ok := r.subscribers[chargePointId]
	if !ok {
		set = make(map[ocpp.Transport]struct{})
		r.subscribers[chargePointId] = set
	}
	set[transport] = struct{}{}
}

func (r *Relay) Unsubscribe(chargePointId string, transport ocpp.Transport) {
	r.mux.Lock()
	defer r.mux.Unlock()
	set, ok := r.subscribers[chargePointId]
	if !ok {
		return
	}
	delete(set, transport)
	if len(set) == 0 {
		delete(r.subscribers, chargePointId)
	}
}

// Forward sends a raw frame to every subscriber of the charge point.
// The subscriber set is snapshotted under the read lock and written to
// outside it, so a slow socket cannot block Subscribe or other sessions.
// A failed write drops the subscriber.
func (r *Relay) Forward(chargePointId string, data []byte) {
	r.mux.RLock()
	set, ok := r.subscribers[chargePointId]
	if !ok || len(set) == 0 {
		r.mux.RUnlock()
		return
	}
	snapshot := make([]ocpp.Transport, 0, len(set))
	for transport := range set {
		snapshot = append(snapshot, transport)
	}
	r.mux.RUnlock()

	for _, transport := range snapshot {
		if err := transport.WriteMessage(data); err != nil {
			r.logger.Warn("relay write failed, dropping subscriber of " + chargePointId)
			r.Unsubscribe(chargePointId, transport)
		}
	}
}

func (r *Relay) SubscriberCount(chargePointId string) int {
	r.mux.RLock()
	defer r.mux.RUnlock()
	return len(r.subscribers[chargePointId])
}
