package chathub

import "github.com/danikhandev/serve-u/internal/models"

// Client is one live connection to the bus. It abstracts the underlying
// transport so the hub can manage connections uniformly; a single
// identity may hold several clients at once (one per tab).
type Client interface {
	// IdentityID returns the authenticated identity behind the connection.
	IdentityID() string

	// SendCh returns the channel the hub delivers outbound events on.
	// It is a send-only channel with a bounded buffer; the hub drops the
	// connection rather than block on a full buffer.
	SendCh() chan<- models.Envelope

	// Run starts the client's read and write pumps.
	Run()

	// Close shuts down the outbound channel, which ends the write pump.
	// Called by the hub exactly once, after the client is unregistered.
	Close()
}

// Inbound pairs a decoded envelope with its source connection so the
// hub can exclude the sender from its own relay.
type Inbound struct {
	Client Client
	Env    models.Envelope
}
