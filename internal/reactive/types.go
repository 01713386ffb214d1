package reactive

import "context"

// Client is one live realtime connection as the registry sees it.
type Client struct {
	ID string
	// abstract over ws.Conn to avoid import cycles; the gateway owns the socket
	Send func(ctx context.Context, text string) error
}

// Failure is one delivery that did not reach its client.
type Failure struct {
	ClientID string
	Err      error
}

// Report summarizes one Broadcast.
type Report struct {
	Recipients int
	Delivered  int
	Failures   []Failure
}
