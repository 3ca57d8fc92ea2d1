package bus

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/aretw0/tourguide/internal/logging"
)

const defaultMailboxSize = 64

type delivery struct {
	env   Envelope
	reply chan result // nil for notifications
}

type result struct {
	msg Message
	err error
}

type mailbox struct {
	addr    Address
	handler Handler
	queue   chan delivery
	done    chan struct{}
	once    sync.Once
}

func (m *mailbox) detach() {
	m.once.Do(func() { close(m.done) })
}

// MemoryBus is an in-process Bus. Each listener owns a mailbox drained by one goroutine.
type MemoryBus struct {
	mu        sync.RWMutex
	mailboxes map[Address]*mailbox
	closed    bool

	size   int
	logger *slog.Logger
}

// MemoryOption configures a MemoryBus.
type MemoryOption func(*MemoryBus)

// WithMailboxSize sets how many messages a listener may have queued.
func WithMailboxSize(n int) MemoryOption {
	return func(b *MemoryBus) {
		if n > 0 {
			b.size = n
		}
	}
}

// WithLogger configures a logger for dropped and failed deliveries.
func WithLogger(logger *slog.Logger) MemoryOption {
	return func(b *MemoryBus) {
		b.logger = logger
	}
}

// NewMemory creates an empty in-process bus.
func NewMemory(opts ...MemoryOption) *MemoryBus {
	b := &MemoryBus{
		mailboxes: make(map[Address]*mailbox),
		size:      defaultMailboxSize,
		logger:    logging.NewNop(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Listen implements Bus.
func (b *MemoryBus) Listen(addr Address, h Handler) (func(), error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil, ErrClosed
	}
	if _, exists := b.mailboxes[addr]; exists {
		return nil, fmt.Errorf("%w: %s", ErrAddressInUse, addr)
	}

	m := &mailbox{
		addr:    addr,
		handler: h,
		queue:   make(chan delivery, b.size),
		done:    make(chan struct{}),
	}
	b.mailboxes[addr] = m
	go b.drain(m)

	return func() { b.remove(m) }, nil
}

func (b *MemoryBus) remove(m *mailbox) {
	b.mu.Lock()
	if b.mailboxes[m.addr] == m {
		delete(b.mailboxes, m.addr)
	}
	b.mu.Unlock()
	m.detach()
}

func (b *MemoryBus) drain(m *mailbox) {
	for {
		select {
		case <-m.done:
			return
		case d := <-m.queue:
			b.handle(m, d)
		}
	}
}

func (b *MemoryBus) handle(m *mailbox, d delivery) {
	ctx := context.Background()
	reply, err := b.invoke(ctx, m.handler, d.env)
	if d.reply == nil {
		if err != nil {
			b.logger.Warn("Notification handler failed",
				"to", m.addr.String(),
				"action", d.env.Message.Action(),
				"err", err,
			)
		}
		return
	}
	d.reply <- result{msg: reply, err: err}
}

// invoke shields the event loop from a panicking handler.
func (b *MemoryBus) invoke(ctx context.Context, h Handler, env Envelope) (msg Message, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return h(ctx, env)
}

func (b *MemoryBus) lookup(addr Address) (*mailbox, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return nil, ErrClosed
	}
	m, ok := b.mailboxes[addr]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoReceiver, addr)
	}
	return m, nil
}

// Notify implements Bus. A full mailbox drops the message.
func (b *MemoryBus) Notify(ctx context.Context, from, to Address, msg Message) error {
	m, err := b.lookup(to)
	if err != nil {
		b.logger.Debug("Notification lost", "to", to.String(), "action", msg.Action(), "err", err)
		return err
	}

	d := delivery{env: Envelope{From: from, To: to, Message: msg}}
	select {
	case <-m.done:
		return fmt.Errorf("%w: %s", ErrNoReceiver, to)
	default:
	}
	select {
	case m.queue <- d:
		return nil
	default:
		b.logger.Warn("Mailbox full, notification dropped", "to", to.String(), "action", msg.Action())
		return fmt.Errorf("%w: %s", ErrMailboxFull, to)
	}
}

// Request implements Bus.
func (b *MemoryBus) Request(ctx context.Context, from, to Address, msg Message) (Message, error) {
	m, err := b.lookup(to)
	if err != nil {
		return nil, err
	}

	d := delivery{
		env:   Envelope{From: from, To: to, Message: msg},
		reply: make(chan result, 1),
	}
	select {
	case m.queue <- d:
	case <-m.done:
		return nil, fmt.Errorf("%w: %s", ErrReceiverDetached, to)
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	select {
	case r := <-d.reply:
		return r.msg, r.err
	case <-m.done:
		// The reply may have been produced just before detaching.
		select {
		case r := <-d.reply:
			return r.msg, r.err
		default:
		}
		return nil, fmt.Errorf("%w: %s", ErrReceiverDetached, to)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Close implements Bus.
func (b *MemoryBus) Close() error {
	b.mu.Lock()
	mailboxes := b.mailboxes
	b.mailboxes = make(map[Address]*mailbox)
	b.closed = true
	b.mu.Unlock()

	for _, m := range mailboxes {
		m.detach()
	}
	return nil
}
