package smsc

import (
	"errors"
	"fmt"

	"github.com/ajankovic/smpp/pdu"
)

// Sentinel errors returned by a Logic implementation. The processor maps
// these to SMPP command_status codes; any other error from Bind or
// SubmitSM is treated as ErrLogicInternal/ErrSubmitInternal.
var (
	ErrIncorrectPassword = errors.New("smsc: incorrect password")
	ErrLogicInternal     = errors.New("smsc: internal bind error")
	ErrSubmitInternal    = errors.New("smsc: internal submit_sm error")
)

// ErrNotBoundAsTransmitter is returned when submit_sm arrives on a
// connection that never completed a bind.
var ErrNotBoundAsTransmitter = errors.New("smsc: connection not bound as transmitter")

// ErrRouteMiss is returned by Hub.ReceivePDU, never surfaced to a peer,
// when an inbound PDU can't be matched to a known connection. The hub
// does not log it; callers such as logicpack.DelayedDR discard it.
type ErrRouteMiss struct {
	reason string
}

func (e *ErrRouteMiss) Error() string { return "smsc: route miss: " + e.reason }

func routeMiss(format string, args ...interface{}) error {
	return &ErrRouteMiss{reason: fmt.Sprintf(format, args...)}
}

// UnexpectedPduType is a fatal, connection-level error raised when the
// processor's dispatch loop sees a PDU kind it doesn't handle (a
// well-formed frame, just not one of bind/submit_sm/enquire_link).
type UnexpectedPduType struct {
	CommandID pdu.CommandID
	Sequence  uint32
}

func (e *UnexpectedPduType) Error() string {
	return fmt.Sprintf("smsc: unexpected pdu type (command_id=0x%08x, sequence_number=0x%08x)", uint32(e.CommandID), e.Sequence)
}

// bindStatus maps a Logic.Bind error to the command_status carried by the
// bind *_resp, per the mapping table: IncorrectPassword -> ESME_RINVPASWD,
// anything else -> ESME_RSYSERR.
func bindStatus(err error) pdu.Status {
	if errors.Is(err, ErrIncorrectPassword) {
		return pdu.StatusInvPaswd
	}
	return pdu.StatusSysErr
}

// submitStatus maps a Logic.SubmitSM error to a command_status. Only one
// kind is defined today, but the mapping is kept symmetrical with
// bindStatus in case future sentinels need distinct codes.
func submitStatus(err error) pdu.Status {
	if errors.Is(err, ErrSubmitInternal) {
		return pdu.StatusSysErr
	}
	return pdu.StatusSysErr
}
