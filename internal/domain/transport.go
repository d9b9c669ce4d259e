package domain

import "context"

// TransportEventKind distinguishes inbound transport notifications.
type TransportEventKind int

const (
	FramePushed TransportEventKind = iota
	ChannelClosed
)

// Epoch identifies one connection on a channel. Every Open allocates a new
// epoch; events carry the epoch of the connection that produced them.
type Epoch uint64

// TransportEvent is one inbound notification from the transport.
type TransportEvent struct {
	Kind    TransportEventKind
	Channel ChannelID
	Epoch   Epoch
	Payload []byte
}

// Transport is the WebSocket collaborator. It knows channels, not bots.
//
// Open on a channel that already has a connection replaces it. A replaced
// or explicitly closed connection is closed quietly, but a peer close that
// races with Open may still be reported afterwards under the old epoch;
// consumers drop events whose epoch is not the one Open last returned.
type Transport interface {
	Open(ctx context.Context, url string, ch ChannelID) (Epoch, error)
	Close(ch ChannelID) error
	Push(ctx context.Context, ch ChannelID, payload []byte) error
	Events() <-chan TransportEvent
}

// EndpointResolver is the HTTP collaborator that discovers the gateway URL.
type EndpointResolver interface {
	ResolveGateway(ctx context.Context, token string) (string, error)
}

// Delivery is one decoded domain event addressed to its owning consumer.
type Delivery struct {
	Session  SessionID
	Owner    string
	Event    string
	Sequence *uint64
	Payload  any
}

// Forwarder delivers decoded domain events to their owners.
type Forwarder interface {
	Forward(ctx context.Context, d Delivery) error
}

// ForwarderFunc adapts a function to Forwarder.
type ForwarderFunc func(ctx context.Context, d Delivery) error

func (f ForwarderFunc) Forward(ctx context.Context, d Delivery) error { return f(ctx, d) }
