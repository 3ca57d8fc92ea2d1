// Package bus carries the messages exchanged by the background, content and UI contexts.
//
// Contexts never share memory: everything travels as a tagged Message between two
// Addresses. Notifications are fire-and-forget and delivered at most once to a listener
// attached at send time. Requests wait for the reply, the caller's context or the
// receiver detaching, whichever comes first; there is no implicit timeout.
//
// MemoryBus gives every listener a mailbox drained by a single goroutine, so handlers of
// one context never run concurrently. The NATS transport in pkg/adapters/nats offers the
// same contract across processes.
package bus
