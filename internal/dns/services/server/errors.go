package server

import "errors"

var (
	// ErrBreakerOpen is returned by Run when request handling kept failing
	// and the breaker rejected a request.
	ErrBreakerOpen = errors.New("circuit breaker open")

	// ErrServerStopped is returned by Controller methods once Run has returned.
	ErrServerStopped = errors.New("server stopped")

	// ErrTransportClosed is returned by Run when the socket stops delivering
	// packets without a shutdown being requested.
	ErrTransportClosed = errors.New("transport closed unexpectedly")
)
