package smsc

import (
	"context"
	"sync"

	"github.com/ajankovic/smpp/pdu"
)

// MessageKey identifies a previously submitted message well enough to
// correlate a later delivery receipt back to the connection that sent
// it. NamespaceID scopes keys per Logic implementation so two different
// logics sharing a Hub (not done today, but cheap to allow) can't
// collide on message IDs they assigned independently.
type MessageKey struct {
	NamespaceID     string
	MessageID       string
	DestinationAddr string
}

// Hub is the shared routing table a running server's connections are
// registered into. It maps a bound EsmeID to its live Connection and a
// MessageKey to the EsmeID that should receive a delivery receipt for
// it. All of Hub's exported methods are goroutine-safe.
type Hub struct {
	mu          sync.Mutex
	connections map[EsmeID]*Connection
	messages    *boundedRoutes
}

// NewHub creates an empty Hub whose message-routing table holds at most
// routeCapacity entries before evicting the least recently used one. A
// non-positive routeCapacity selects defaultRouteCapacity.
func NewHub(routeCapacity int) *Hub {
	return &Hub{
		connections: make(map[EsmeID]*Connection),
		messages:    newBoundedRoutes(routeCapacity),
	}
}

// AddConnection registers conn under id, replacing any previous
// connection that held the same id.
func (h *Hub) AddConnection(id EsmeID, conn *Connection) {
	h.mu.Lock()
	h.connections[id] = conn
	h.mu.Unlock()
	connectionsOpen.Inc()
}

// RemoveConnection unregisters conn, but only if it is still the
// connection on file for id: a connection that lost a bind race and
// never made it into the map is a harmless no-op here.
func (h *Hub) RemoveConnection(id EsmeID, conn *Connection) {
	h.mu.Lock()
	if cur, ok := h.connections[id]; ok && cur == conn {
		delete(h.connections, id)
	}
	h.mu.Unlock()
	connectionsOpen.Dec()
}

// ConnectionFor looks up the live connection registered for id.
func (h *Hub) ConnectionFor(id EsmeID) (*Connection, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	c, ok := h.connections[id]
	return c, ok
}

// AddMessage records that a delivery receipt matching key should be
// routed to owner.
func (h *Hub) AddMessage(key MessageKey, owner EsmeID) {
	h.mu.Lock()
	h.messages.put(key, owner)
	h.mu.Unlock()
}

// ReceivePDU is how Logic implementations (or an external DR supplier)
// inject a PDU into the hub for routing, typically a deliver_sm carrying
// a delivery receipt generated asynchronously after submit_sm returned.
// p must be a *pdu.DeliverSm, per spec.md §4.D's contract ("The PDU MUST
// be a deliver_sm; otherwise return an 'unexpected PDU type' error"); any
// other PDU yields *UnexpectedPduType. A deliver_sm without a
// receipted_message_id option, or one whose key or owner can't be found,
// yields *ErrRouteMiss.
//
// Routing never blocks the caller on the destination connection's
// write: the lock is released before the write is attempted, and the
// write itself runs in its own detached goroutine so a slow or wedged
// peer can't stall message delivery for unrelated routes. A failed write
// is counted in smsc_delivery_failures_total and is not logged.
func (h *Hub) ReceivePDU(ctx context.Context, namespaceID string, p pdu.PDU) error {
	dr, ok := p.(*pdu.DeliverSm)
	if !ok {
		return &UnexpectedPduType{CommandID: p.CommandID()}
	}
	if dr.Options == nil {
		return routeMiss("deliver_sm missing options, no receipted_message_id")
	}
	msgID := dr.Options.ReceiptedMessageID()
	if msgID == "" {
		return routeMiss("deliver_sm missing receipted_message_id")
	}
	key := MessageKey{
		NamespaceID:     namespaceID,
		MessageID:       msgID,
		DestinationAddr: dr.SourceAddr,
	}

	h.mu.Lock()
	owner, ok := h.messages.get(key)
	if !ok {
		h.mu.Unlock()
		routeMissTotal.Inc()
		return routeMiss("no route for message_id=%s destination_addr=%s", msgID, dr.SourceAddr)
	}
	conn, ok := h.connections[owner]
	h.mu.Unlock()
	if !ok {
		routeMissTotal.Inc()
		return routeMiss("owner %s has no open connection", owner)
	}

	go func() {
		if err := conn.WritePDU(dr); err != nil {
			deliveryFailuresTotal.Inc()
		}
	}()
	return nil
}
