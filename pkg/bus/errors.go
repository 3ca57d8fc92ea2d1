package bus

import "errors"

var (
	// ErrNoReceiver is returned when no listener is attached to the destination.
	ErrNoReceiver = errors.New("no receiver attached")
	// ErrReceiverDetached is returned to a requester whose receiver went away before replying.
	ErrReceiverDetached = errors.New("receiver detached")
	// ErrMailboxFull is returned when a notification was dropped because the mailbox is full.
	ErrMailboxFull = errors.New("mailbox full")
	// ErrAddressInUse is returned when a listener is already attached to the address.
	ErrAddressInUse = errors.New("address already has a listener")
	// ErrUnknownAction is returned when decoding a message with an unregistered tag.
	ErrUnknownAction = errors.New("unknown action")
	// ErrClosed is returned by a closed bus.
	ErrClosed = errors.New("bus closed")
)

// RemoteError is a handler failure reported by the receiver of a request.
type RemoteError struct {
	Msg string
}

func (e *RemoteError) Error() string {
	return "remote handler: " + e.Msg
}
