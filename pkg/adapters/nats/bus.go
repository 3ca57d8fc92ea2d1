// Package nats carries bus messages between processes over NATS core subjects.
//
// Every address maps to the subject <prefix>.<tab>.<context>. Notifications are plain
// publishes; requests use a reply inbox. The client's no-responders status reports a
// request sent to an address nobody listens on.
package nats

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/aretw0/tourguide/internal/logging"
	"github.com/aretw0/tourguide/pkg/bus"
	"github.com/nats-io/nats.go"
)

const (
	DefaultPrefix      = "tourguide"
	defaultPendingMsgs = 64
)

// Bus implements bus.Bus on a NATS connection.
type Bus struct {
	nc      *nats.Conn
	owned   bool
	prefix  string
	pending int
	logger  *slog.Logger

	mu     sync.Mutex
	subs   map[bus.Address]*nats.Subscription
	closed bool
}

var _ bus.Bus = (*Bus)(nil)

// Option configures the Bus.
type Option func(*Bus)

// WithPrefix sets the subject prefix.
func WithPrefix(prefix string) Option {
	return func(b *Bus) {
		b.prefix = prefix
	}
}

// WithPendingLimit sets how many messages a listener may have queued before
// notifications are dropped.
func WithPendingLimit(n int) Option {
	return func(b *Bus) {
		if n > 0 {
			b.pending = n
		}
	}
}

// WithLogger configures a logger.
func WithLogger(logger *slog.Logger) Option {
	return func(b *Bus) {
		b.logger = logger
	}
}

// New wraps an existing connection. Close leaves the connection open.
func New(nc *nats.Conn, opts ...Option) *Bus {
	b := &Bus{
		nc:      nc,
		prefix:  DefaultPrefix,
		pending: defaultPendingMsgs,
		logger:  logging.NewNop(),
		subs:    make(map[bus.Address]*nats.Subscription),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Connect dials url and returns a Bus owning the connection.
func Connect(url string, opts ...Option) (*Bus, error) {
	if url == "" {
		url = nats.DefaultURL
	}
	nc, err := nats.Connect(url,
		nats.Name("tourguide-bus"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to nats: %w", err)
	}
	b := New(nc, opts...)
	b.owned = true
	return b, nil
}

// Subject returns the subject of addr.
func (b *Bus) Subject(addr bus.Address) (string, error) {
	if addr.Tab == "" || strings.ContainsAny(addr.Tab, ".*> \t\r\n") {
		return "", fmt.Errorf("tab id %q is not a valid subject token", addr.Tab)
	}
	return b.prefix + "." + addr.Tab + "." + string(addr.Context), nil
}

// Listen implements bus.Bus. Messages of one listener are handled sequentially.
func (b *Bus) Listen(addr bus.Address, h bus.Handler) (func(), error) {
	subject, err := b.Subject(addr)
	if err != nil {
		return nil, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, bus.ErrClosed
	}
	if _, exists := b.subs[addr]; exists {
		return nil, fmt.Errorf("%w: %s", bus.ErrAddressInUse, addr)
	}

	sub, err := b.nc.Subscribe(subject, func(m *nats.Msg) { b.deliver(addr, h, m) })
	if err != nil {
		return nil, fmt.Errorf("failed to subscribe %s: %w", subject, err)
	}
	if err := sub.SetPendingLimits(b.pending, -1); err != nil {
		_ = sub.Unsubscribe()
		return nil, err
	}
	b.subs[addr] = sub

	return func() { b.remove(addr, sub) }, nil
}

func (b *Bus) remove(addr bus.Address, sub *nats.Subscription) {
	b.mu.Lock()
	if b.subs[addr] == sub {
		delete(b.subs, addr)
	}
	b.mu.Unlock()
	if err := sub.Unsubscribe(); err != nil && !errors.Is(err, nats.ErrBadSubscription) {
		b.logger.Debug("Unsubscribe failed", "to", addr.String(), "err", err)
	}
}

func (b *Bus) deliver(addr bus.Address, h bus.Handler, m *nats.Msg) {
	env, err := bus.DecodeEnvelope(m.Data)
	if err != nil {
		b.logger.Warn("Dropping undecodable message", "to", addr.String(), "err", err)
		if m.Reply != "" {
			b.reply(m, bus.ErrorReply{Error: err.Error()})
		}
		return
	}

	reply, err := invoke(h, env)
	if m.Reply == "" {
		if err != nil {
			b.logger.Warn("Notification handler failed", "to", addr.String(), "action", env.Message.Action(), "err", err)
		}
		return
	}
	if err != nil {
		reply = bus.ErrorReply{Error: err.Error()}
	}
	b.reply(m, reply)
}

// reply answers a request. A nil message is sent as an empty body.
func (b *Bus) reply(m *nats.Msg, msg bus.Message) {
	var data []byte
	if msg != nil {
		var err error
		data, err = bus.Encode(msg)
		if err != nil {
			b.logger.Error("Failed to encode reply", "action", msg.Action(), "err", err)
			data, _ = bus.Encode(bus.ErrorReply{Error: err.Error()})
		}
	}
	if err := m.Respond(data); err != nil {
		b.logger.Warn("Failed to send reply", "subject", m.Subject, "err", err)
	}
}

func invoke(h bus.Handler, env bus.Envelope) (msg bus.Message, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return h(context.Background(), env)
}

func (b *Bus) encode(from, to bus.Address, msg bus.Message) (string, []byte, error) {
	b.mu.Lock()
	closed := b.closed
	b.mu.Unlock()
	if closed {
		return "", nil, bus.ErrClosed
	}
	subject, err := b.Subject(to)
	if err != nil {
		return "", nil, err
	}
	data, err := bus.EncodeEnvelope(bus.Envelope{From: from, To: to, Message: msg})
	if err != nil {
		return "", nil, err
	}
	return subject, data, nil
}

// Notify implements bus.Bus. Core NATS cannot tell whether anyone listens, so a lost
// notification is not reported.
func (b *Bus) Notify(ctx context.Context, from, to bus.Address, msg bus.Message) error {
	subject, data, err := b.encode(from, to, msg)
	if err != nil {
		return err
	}
	if err := b.nc.Publish(subject, data); err != nil {
		return fmt.Errorf("failed to publish %s: %w", msg.Action(), err)
	}
	return nil
}

// Request implements bus.Bus. It waits without timeout for the reply or for ctx.
func (b *Bus) Request(ctx context.Context, from, to bus.Address, msg bus.Message) (bus.Message, error) {
	subject, data, err := b.encode(from, to, msg)
	if err != nil {
		return nil, err
	}

	inbox := nats.NewInbox()
	replies := make(chan *nats.Msg, 1)
	sub, err := b.nc.ChanSubscribe(inbox, replies)
	if err != nil {
		return nil, fmt.Errorf("failed to open reply inbox: %w", err)
	}
	defer func() { _ = sub.Unsubscribe() }()

	if err := b.nc.PublishRequest(subject, inbox, data); err != nil {
		return nil, fmt.Errorf("failed to publish %s: %w", msg.Action(), err)
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case m := <-replies:
		return decodeReply(to, m)
	}
}

func decodeReply(to bus.Address, m *nats.Msg) (bus.Message, error) {
	if len(m.Data) == 0 {
		if m.Header.Get("Status") == "503" {
			return nil, fmt.Errorf("%w: %s", bus.ErrNoReceiver, to)
		}
		return nil, nil
	}
	reply, err := bus.Decode(m.Data)
	if err != nil {
		return nil, err
	}
	if e, ok := reply.(bus.ErrorReply); ok {
		return nil, &bus.RemoteError{Msg: e.Error}
	}
	return reply, nil
}

// Close implements bus.Bus. It drops every listener and closes an owned connection.
func (b *Bus) Close() error {
	b.mu.Lock()
	subs := b.subs
	b.subs = make(map[bus.Address]*nats.Subscription)
	b.closed = true
	b.mu.Unlock()

	for _, sub := range subs {
		_ = sub.Unsubscribe()
	}
	if b.owned {
		b.nc.Close()
	}
	return nil
}
