package server

// Handler processes a decoded message payload and returns the payload to
// transmit back, or nil to suppress a response. Payloads are opaque byte
// blobs to the engine.
type Handler interface {
	HandleMessage(sess *Session, payload []byte) ([]byte, error)
}

// HandlerFunc is an adapter to allow the use of ordinary functions as Handlers.
type HandlerFunc func(sess *Session, payload []byte) ([]byte, error)

// HandleMessage calls f with the session and payload.
func (f HandlerFunc) HandleMessage(s *Session, payload []byte) ([]byte, error) {
	return f(s, payload)
}

// EchoHandler returns every payload unchanged, turning the server into a
// frame echo engine.
func EchoHandler() Handler {
	return HandlerFunc(func(_ *Session, payload []byte) ([]byte, error) {
		return payload, nil
	})
}
