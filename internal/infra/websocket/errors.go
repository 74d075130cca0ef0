package websocket

import "errors"

var (
	// ErrNotConnected is returned when sending without an open channel.
	ErrNotConnected = errors.New("websocket: not connected")

	// ErrHelloTimeout is returned when the server does not answer the client hello.
	ErrHelloTimeout = errors.New("websocket: server hello timeout")

	// ErrNoEndpoint is returned when no websocket URL is configured.
	ErrNoEndpoint = errors.New("websocket: no endpoint configured")
)
