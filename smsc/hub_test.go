package smsc

import (
	"context"
	"errors"
	"net"
	"testing"

	"github.com/ajankovic/smpp/pdu"
)

func newTestConnection(t *testing.T) (*Connection, net.Conn) {
	t.Helper()
	server, client := net.Pipe()
	return NewConnection(server), client
}

func TestHubAddRemoveConnection(t *testing.T) {
	h := NewHub(0)
	conn, client := newTestConnection(t)
	defer client.Close()

	id := EsmeID{SystemID: "esme1", SystemType: "type"}
	h.AddConnection(id, conn)

	got, ok := h.ConnectionFor(id)
	if !ok || got != conn {
		t.Fatalf("ConnectionFor(%v) = %v, %v; want %v, true", id, got, ok, conn)
	}

	h.RemoveConnection(id, conn)
	if _, ok := h.ConnectionFor(id); ok {
		t.Fatalf("connection %v still registered after RemoveConnection", id)
	}
}

func TestHubRemoveConnectionIsNoOpForStaleEntry(t *testing.T) {
	h := NewHub(0)
	id := EsmeID{SystemID: "esme1", SystemType: "type"}
	conn1, c1 := newTestConnection(t)
	defer c1.Close()
	conn2, c2 := newTestConnection(t)
	defer c2.Close()

	h.AddConnection(id, conn1)
	h.AddConnection(id, conn2) // second bind replaces the first, last-bind-wins

	h.RemoveConnection(id, conn1) // conn1 no longer on file, must be a no-op
	if got, ok := h.ConnectionFor(id); !ok || got != conn2 {
		t.Fatalf("conn2 was evicted by a stale RemoveConnection for conn1")
	}
}

func TestHubReceivePDURoutesToOwner(t *testing.T) {
	h := NewHub(0)
	id := EsmeID{SystemID: "client1", SystemType: ""}
	conn, client := newTestConnection(t)
	defer client.Close()
	h.AddConnection(id, conn)

	key := MessageKey{NamespaceID: "ns", MessageID: "mymessage", DestinationAddr: "447111222222"}
	h.AddMessage(key, id)

	dr := &pdu.DeliverSm{
		SourceAddr:      "447111222222",
		DestinationAddr: "222222",
		Options:         pdu.NewOptions().SetReceiptedMessageID("mymessage"),
	}

	done := make(chan struct{})
	go func() {
		buf := make([]byte, 4096)
		client.Read(buf)
		close(done)
	}()

	if err := h.ReceivePDU(context.Background(), "ns", dr); err != nil {
		t.Fatalf("ReceivePDU: %v", err)
	}
	<-done
}

func TestHubReceivePDURouteMissOnUnknownMessage(t *testing.T) {
	h := NewHub(0)
	dr := &pdu.DeliverSm{
		SourceAddr: "447111222222",
		Options:    pdu.NewOptions().SetReceiptedMessageID("unknown"),
	}
	if err := h.ReceivePDU(context.Background(), "ns", dr); err == nil {
		t.Fatal("expected route miss error for unregistered message key")
	}
}

func TestHubReceivePDURouteMissMissingReceiptedMessageID(t *testing.T) {
	h := NewHub(0)
	dr := &pdu.DeliverSm{SourceAddr: "447111222222"}
	if err := h.ReceivePDU(context.Background(), "ns", dr); err == nil {
		t.Fatal("expected route miss error when receipted_message_id is absent")
	}
}

func TestHubReceivePDURejectsNonDeliverSm(t *testing.T) {
	h := NewHub(0)
	err := h.ReceivePDU(context.Background(), "ns", &pdu.EnquireLink{})
	var unexpected *UnexpectedPduType
	if !errors.As(err, &unexpected) {
		t.Fatalf("ReceivePDU(enquire_link) = %v, want *UnexpectedPduType", err)
	}
	if unexpected.CommandID != pdu.EnquireLinkID {
		t.Fatalf("unexpected.CommandID = %v, want %v", unexpected.CommandID, pdu.EnquireLinkID)
	}
}

func TestHubReceivePDURouteMissStaleConnection(t *testing.T) {
	h := NewHub(0)
	id := EsmeID{SystemID: "client1"}
	conn, client := newTestConnection(t)
	client.Close()

	h.AddConnection(id, conn)
	h.RemoveConnection(id, conn) // connection torn down, entry removed

	key := MessageKey{NamespaceID: "ns", MessageID: "mymessage", DestinationAddr: "447111222222"}
	h.AddMessage(key, id) // message entry is never purged per the spec

	dr := &pdu.DeliverSm{
		SourceAddr: "447111222222",
		Options:    pdu.NewOptions().SetReceiptedMessageID("mymessage"),
	}
	if err := h.ReceivePDU(context.Background(), "ns", dr); err == nil {
		t.Fatal("expected route miss for an owner with no live connection")
	}
}

func TestHubMultiClientRouting(t *testing.T) {
	h := NewHub(0)
	ids := []EsmeID{{SystemID: "client1"}, {SystemID: "client2"}, {SystemID: "client3"}}
	conns := make([]*Connection, len(ids))
	clients := make([]net.Conn, len(ids))
	for i, id := range ids {
		conn, client := newTestConnection(t)
		conns[i] = conn
		clients[i] = client
		defer client.Close()
		h.AddConnection(id, conn)
		key := MessageKey{NamespaceID: "ns", MessageID: id.SystemID + "-msg", DestinationAddr: "addr-" + id.SystemID}
		h.AddMessage(key, id)
	}

	for i, id := range ids {
		got, ok := h.ConnectionFor(id)
		if !ok || got != conns[i] {
			t.Fatalf("client %d routed to wrong connection", i)
		}
	}

	// Inject DRs out of order; each must reach only its own client.
	order := []int{2, 0, 1}
	for _, i := range order {
		id := ids[i]
		dr := &pdu.DeliverSm{
			SourceAddr: "addr-" + id.SystemID,
			Options:    pdu.NewOptions().SetReceiptedMessageID(id.SystemID + "-msg"),
		}
		done := make(chan struct{})
		go func(c net.Conn) {
			buf := make([]byte, 4096)
			c.Read(buf)
			close(done)
		}(clients[i])
		if err := h.ReceivePDU(context.Background(), "ns", dr); err != nil {
			t.Fatalf("ReceivePDU for %s: %v", id, err)
		}
		<-done
	}
}
