package smsc

import (
	"context"
	"sync"

	"github.com/ajankovic/smpp/pdu"
)

// Logic is the pluggable decision layer a Server delegates bind and
// submit_sm handling to. By default a Server serializes every call into
// a Logic instance behind one mutex, so implementations see calls from
// every connection one at a time (spec.md §4.G). A Logic with no shared
// mutable state can opt out of that serialization by implementing
// ConcurrentLogic.
//
// A SubmitSM implementation is handed the Hub so it can register a
// MessageKey for a later delivery receipt, or inject one immediately or
// from a goroutine of its own via Hub.ReceivePDU.
type Logic interface {
	// Bind validates a bind attempt's credentials. A nil error accepts
	// the bind; ErrIncorrectPassword and any other error are mapped to
	// SMPP command_status codes by the processor.
	Bind(ctx context.Context, data *BindData) error

	// SubmitSM decides how to answer a submit_sm request. It returns
	// the *pdu.SubmitSmResp to send back, the MessageKey that should be
	// registered with hub for receipt correlation (the zero value if
	// none applies), and an error that maps to a failure status.
	SubmitSM(ctx context.Context, hub *Hub, req *pdu.SubmitSm, sequence uint32) (*pdu.SubmitSmResp, MessageKey, error)
}

// ConcurrentLogic may be implemented by a Logic to declare that its Bind
// and SubmitSM methods are already safe to call concurrently from many
// connections at once, opting out of the mutex wrapLogic otherwise
// applies around every Logic a Server runs.
type ConcurrentLogic interface {
	// Concurrent reports whether this Logic's methods may be called
	// concurrently without a caller-side lock.
	Concurrent() bool
}

// serializedLogic wraps a Logic with a mutex so Bind and SubmitSM are
// invoked one at a time across every connection sharing it, matching
// spec.md §4.G's default: "each invoked while a lock is held on the
// shared logic object (so implementations see serialized calls across
// all connections)".
type serializedLogic struct {
	mu    sync.Mutex
	inner Logic
}

func (s *serializedLogic) Bind(ctx context.Context, data *BindData) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inner.Bind(ctx, data)
}

func (s *serializedLogic) SubmitSM(ctx context.Context, hub *Hub, req *pdu.SubmitSm, sequence uint32) (*pdu.SubmitSmResp, MessageKey, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inner.SubmitSM(ctx, hub, req, sequence)
}

// wrapLogic returns l unchanged if it implements ConcurrentLogic and
// reports itself safe for concurrent calls; otherwise it returns l
// wrapped in serializedLogic, the default spec.md §4.G behavior.
func wrapLogic(l Logic) Logic {
	if cl, ok := l.(ConcurrentLogic); ok && cl.Concurrent() {
		return l
	}
	return &serializedLogic{inner: l}
}
