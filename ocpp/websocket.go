package ocpp

// Transport is the connection facing side of a session. The engine writes
// encoded frames through it and closes it on session teardown; reading is
// owned by the surrounding server or station loop.
type Transport interface {
	ID() string
	WriteMessage(data []byte) error
	Close() error
}
