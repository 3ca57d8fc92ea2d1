package bus

import "context"

// Handler processes one envelope. For requests the returned message is the reply
// (nil acknowledges without content); for notifications it is ignored.
type Handler func(ctx context.Context, env Envelope) (Message, error)

// Bus is the sole channel between execution contexts.
type Bus interface {
	// Listen attaches h to addr. The returned function detaches it; pending requests
	// addressed to it then fail with ErrReceiverDetached.
	Listen(addr Address, h Handler) (detach func(), err error)

	// Notify delivers msg at most once. It returns ErrNoReceiver when nobody listens at to.
	Notify(ctx context.Context, from, to Address, msg Message) error

	// Request delivers msg and waits for the reply.
	Request(ctx context.Context, from, to Address, msg Message) (Message, error)

	// Close detaches every listener.
	Close() error
}
