package logicpack

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/ajankovic/smpp/pdu"
	"github.com/ajankovic/smpp/smsc"
)

// DrDelay is how long DelayedDR waits after answering a submit_sm before
// injecting the matching delivery receipt.
const DrDelay = 1 * time.Second

// supplierNamespace is the namespace_id DelayedDR registers its message
// keys under and later re-presents to Hub.ReceivePDU, standing in for an
// external DR supplier's identity.
const supplierNamespace = "MySupplier"

// DelayedDR authenticates a bind only when system_id equals password,
// then answers every submit_sm immediately and schedules a matching
// deliver_sm delivery receipt about DrDelay later. It has no mutable
// state, so it implements smsc.ConcurrentLogic to opt out of the
// per-Logic lock a Server wraps around Logic implementations by default.
type DelayedDR struct{}

// NewDelayedDR builds a DelayedDR logic instance.
func NewDelayedDR() *DelayedDR {
	return &DelayedDR{}
}

// Bind accepts a connection iff the presented password equals its
// system_id.
func (l *DelayedDR) Bind(ctx context.Context, data *smsc.BindData) error {
	if data.SystemID == data.Password {
		return nil
	}
	return smsc.ErrIncorrectPassword
}

// SubmitSM accepts every submit_sm, assigns it a fresh message_id, and
// spawns a detached goroutine that sleeps DrDelay then hands a matching
// deliver_sm to hub.ReceivePDU.
func (l *DelayedDR) SubmitSM(ctx context.Context, hub *smsc.Hub, req *pdu.SubmitSm, sequence uint32) (*pdu.SubmitSmResp, smsc.MessageKey, error) {
	messageID := uuid.NewString()
	dr := deliverSmFor(messageID, req)

	go func() {
		time.Sleep(DrDelay)
		hub.ReceivePDU(context.Background(), supplierNamespace, dr)
	}()

	key := smsc.MessageKey{
		NamespaceID:     supplierNamespace,
		MessageID:       messageID,
		DestinationAddr: req.DestinationAddr,
	}
	return req.Response(messageID), key, nil
}

// Concurrent reports true: DelayedDR has no fields and touches no shared
// state outside the Hub it's handed (which locks its own), so it needs
// no serialization across connections.
func (l *DelayedDR) Concurrent() bool { return true }

// deliverSmFor builds the deliver_sm carrying a delivery receipt for a
// just-accepted submit_sm, swapping source/destination per SMPP §2.11
// (a DR's source_addr is the original MT's destination_addr).
func deliverSmFor(messageID string, submit *pdu.SubmitSm) *pdu.DeliverSm {
	return &pdu.DeliverSm{
		SourceAddrTon:   submit.DestAddrTon,
		SourceAddrNpi:   submit.DestAddrNpi,
		SourceAddr:      submit.DestinationAddr,
		DestAddrTon:     submit.SourceAddrTon,
		DestAddrNpi:     submit.SourceAddrNpi,
		DestinationAddr: submit.SourceAddr,
		EsmClass:        pdu.EsmClass{Type: pdu.DelRecEsmType},
		Options:         pdu.NewOptions().SetReceiptedMessageID(messageID),
	}
}
