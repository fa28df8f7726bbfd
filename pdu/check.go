package pdu

import (
	"encoding/binary"
	"fmt"
)

// headerSize is the fixed length of the four mandatory header fields.
const headerSize = 4 + 4 + 4 + 4

// CheckOutcome reports what Check learned about a buffer of bytes read from
// a connection.
type CheckOutcome int

const (
	// CheckIncomplete means buf does not yet hold a full frame; the caller
	// should read more bytes and call Check again.
	CheckIncomplete CheckOutcome = iota
	// CheckReady means buf holds at least one complete frame. The returned
	// length marks where it ends.
	CheckReady
)

// MaxCheckableLength bounds how large a declared command_length we trust
// enough to read out the rest of the header for a precise error response.
// Beyond it the length field alone is treated as evidence of a corrupt
// stream and we fall back to a generic_nack built from FallbackSequence
// instead of risking a read sized off an attacker-controlled value.
const MaxCheckableLength = 0xffff

// FallbackSequence is the sequence number used in a generic_nack response
// built before a usable PDU header could be recovered from the stream.
const FallbackSequence uint32 = 1

// FrameError is returned by Check when a length-prefixed frame is malformed
// beyond recovery. It carries enough of the header, recovered on a
// best-effort basis, to let the caller build a standards-compliant error
// response before closing the connection.
type FrameError struct {
	RespCommandID CommandID
	Sequence      uint32
	Status        Status
	err           error
}

func (e *FrameError) Error() string { return e.err.Error() }
func (e *FrameError) Unwrap() error { return e.err }

// Check inspects buf, the bytes accumulated so far from a connection, and
// reports whether it holds a complete PDU frame. It never blocks and never
// reads past buf, making it safe to call repeatedly as more bytes arrive.
//
// On CheckReady with a nil error, length is the total size of the frame at
// the front of buf, header included. On a non-nil *FrameError the frame is
// unrecoverable and the caller should send the carried response and close
// the connection; CheckIncomplete always carries a nil error.
func Check(buf []byte) (outcome CheckOutcome, length int, err error) {
	if len(buf) < 4 {
		return CheckIncomplete, 0, nil
	}
	declared := binary.BigEndian.Uint32(buf[:4])
	if declared < headerSize {
		return CheckReady, 0, &FrameError{
			RespCommandID: GenericNackID,
			Sequence:      FallbackSequence,
			Status:        StatusInvCmdLen,
			err:           fmt.Errorf("smpp: command_length %d under header size", declared),
		}
	}
	if declared > MaxCheckableLength {
		return CheckReady, 0, &FrameError{
			RespCommandID: GenericNackID,
			Sequence:      FallbackSequence,
			Status:        StatusInvCmdLen,
			err:           fmt.Errorf("smpp: command_length %d exceeds checkable limit", declared),
		}
	}
	if len(buf) < headerSize {
		return CheckIncomplete, 0, nil
	}
	commandID := CommandID(binary.BigEndian.Uint32(buf[4:8]))
	sequence := binary.BigEndian.Uint32(buf[12:16])
	if declared > MaxPDUSize {
		return CheckReady, 0, &FrameError{
			RespCommandID: respCommandIDFor(commandID),
			Sequence:      sequence,
			Status:        StatusInvCmdLen,
			err:           fmt.Errorf("smpp: command_length %d exceeds max pdu size %d", declared, MaxPDUSize),
		}
	}
	if uint32(len(buf)) < declared {
		return CheckIncomplete, 0, nil
	}
	return CheckReady, int(declared), nil
}

// ParseBuffered decodes a single frame of exactly n bytes, as reported ready
// by Check, into its header and body PDU. Any decode failure - an unknown
// command_id or a body that doesn't fit the declared length - is reported
// as a *FrameError carrying the response the caller should send before
// closing the connection, per the per-PDU error response rules: an unknown
// command_id answers with generic_nack/ESME_RINVCMDID, a bad body answers
// with bind_transmitter_resp/ESME_RSYSERR for bind_transmitter and
// generic_nack/ESME_RSYSERR for everything else.
func ParseBuffered(frame []byte) (Header, PDU, error) {
	h := &header{}
	if err := h.UnmarshalBinary(frame[:headerSize]); err != nil {
		return h, nil, &FrameError{
			RespCommandID: GenericNackID,
			Sequence:      FallbackSequence,
			Status:        StatusInvCmdLen,
			err:           err,
		}
	}
	p, err := NewPDUSafe(h.commandID)
	if err != nil {
		return h, nil, &FrameError{
			RespCommandID: GenericNackID,
			Sequence:      h.sequence,
			Status:        StatusInvCmdID,
			err:           err,
		}
	}
	if h.length == headerSize {
		return h, p, nil
	}
	if err := p.UnmarshalBinary(frame[headerSize:h.length]); err != nil {
		return h, p, &FrameError{
			RespCommandID: respCommandIDFor(h.commandID),
			Sequence:      h.sequence,
			Status:        StatusSysErr,
			err:           err,
		}
	}
	return h, p, nil
}

// respCommandIDFor returns the command id an error response should carry
// for a frame whose declared length is invalid. Only bind_transmitter gets
// its own response type; every other command_id, known or not, falls back
// to generic_nack.
func respCommandIDFor(id CommandID) CommandID {
	if id == BindTransmitterID {
		return BindTransmitterRespID
	}
	return GenericNackID
}
