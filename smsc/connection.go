package smsc

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"sync/atomic"

	"github.com/ajankovic/smpp/pdu"
)

// readBufSize is the chunk size used to grow a connection's read buffer.
const readBufSize = 4096

// ErrNotEnoughBytes is returned from ReadPDU when the peer closes the
// connection in the middle of a frame: some bytes were received, but not
// enough to call Check on them and decide.
var ErrNotEnoughBytes = errors.New("smsc: connection closed with a partial pdu buffered")

// EsmeID identifies a bound ESME by the pair it presented at bind time.
// It's comparable, so it can key the hub's connection map directly.
type EsmeID struct {
	SystemID   string
	SystemType string
}

func (id EsmeID) String() string {
	return fmt.Sprintf("%s/%s", id.SystemID, id.SystemType)
}

// BindData carries the fields of whichever bind_* PDU a connection sent,
// normalized to a single shape so Logic.Bind doesn't need to switch on
// the concrete bind type.
type BindData struct {
	EsmeID
	Password         string
	InterfaceVersion int
	AddrTon          int
	AddrNpi          int
	AddressRange     string
	Mode             BindMode
}

// BindMode records which of the three bind PDUs established a session.
type BindMode int

const (
	BindTransmitter BindMode = iota
	BindReceiver
	BindTransceiver
)

func (m BindMode) String() string {
	switch m {
	case BindTransmitter:
		return "transmitter"
	case BindReceiver:
		return "receiver"
	case BindTransceiver:
		return "transceiver"
	default:
		return "unknown"
	}
}

// Connection wraps a single accepted TCP socket with the SMPP framing
// contract: one mutex-guarded read half accumulating bytes until a full
// frame is available, one write half serializing outbound PDUs, and an
// atomically published EsmeID recording the outcome of a prior bind.
//
// A Connection is shared between the processor goroutine that owns it
// and the hub, which may hand it to a detached goroutine to deliver a
// delivery receipt concurrently with the owning goroutine's own reads.
type Connection struct {
	conn   net.Conn
	addr   string
	readMu sync.Mutex
	buf    []byte

	writeMu sync.Mutex
	enc     *pdu.Encoder
	seq     uint32

	bound atomic.Pointer[EsmeID]
}

// NewConnection wraps an accepted net.Conn. PDUs written without an
// explicit sequence number (such as delivery receipts routed through the
// hub) are numbered by the encoder's default sequencer, starting at 1;
// bind/submit_sm *_resp echo the peer's sequence instead.
func NewConnection(conn net.Conn) *Connection {
	return &Connection{
		conn: conn,
		addr: conn.RemoteAddr().String(),
		buf:  make([]byte, 0, readBufSize),
		enc:  pdu.NewEncoder(conn, nil),
	}
}

// RemoteAddr returns the string form of the peer's address, used in logs
// and metrics labels.
func (c *Connection) RemoteAddr() string {
	return c.addr
}

// BoundEsmeID reports the EsmeID established by a prior successful bind,
// if any.
func (c *Connection) BoundEsmeID() (EsmeID, bool) {
	p := c.bound.Load()
	if p == nil {
		return EsmeID{}, false
	}
	return *p, true
}

// Bind records id as this connection's bound identity. It is a no-op,
// reporting false, if the connection is already bound: once bound, a
// connection keeps its first identity for its whole lifetime.
func (c *Connection) Bind(id EsmeID) bool {
	return c.bound.CompareAndSwap(nil, &id)
}

// ReadPDU blocks until a complete frame is available on the wire, then
// parses and returns it. It returns (nil, nil, nil) on a clean peer
// disconnect at a frame boundary, *pdu.FrameError for a malformed frame
// the caller should answer before closing, and ErrNotEnoughBytes if the
// peer disconnects mid-frame.
func (c *Connection) ReadPDU(ctx context.Context) (pdu.Header, pdu.PDU, error) {
	c.readMu.Lock()
	defer c.readMu.Unlock()

	for {
		outcome, n, err := pdu.Check(c.buf)
		if err != nil {
			var frameErr *pdu.FrameError
			if errors.As(err, &frameErr) {
				// drop the bad frame's bytes we do have so a later call
				// doesn't spin on the same garbage, if the connection
				// somehow survives (callers are expected to close it).
				c.buf = nil
				return nil, nil, err
			}
			return nil, nil, err
		}
		if outcome == pdu.CheckReady {
			frame := c.buf[:n]
			h, p, perr := pdu.ParseBuffered(frame)
			c.buf = append([]byte(nil), c.buf[n:]...)
			return h, p, perr
		}
		if err := readMore(ctx, c.conn, &c.buf); err != nil {
			if errors.Is(err, io.EOF) {
				if len(c.buf) == 0 {
					return nil, nil, nil
				}
				return nil, nil, ErrNotEnoughBytes
			}
			return nil, nil, err
		}
	}
}

// readMore performs a single Read into buf, growing it as needed, honoring
// ctx's deadline if the underlying conn supports SetReadDeadline.
func readMore(ctx context.Context, conn net.Conn, buf *[]byte) error {
	if dl, ok := ctx.Deadline(); ok {
		conn.SetReadDeadline(dl)
	}
	chunk := make([]byte, readBufSize)
	n, err := conn.Read(chunk)
	if n > 0 {
		*buf = append(*buf, chunk[:n]...)
	}
	if err != nil {
		return err
	}
	return nil
}

// WritePDU encodes and writes a single PDU, serializing concurrent
// writers (the owning processor and any detached delivery-receipt
// goroutines routed through the hub).
func (c *Connection) WritePDU(p pdu.PDU, opts ...pdu.EncoderOption) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_, err := c.enc.Encode(p, opts...)
	return err
}

// Close closes the underlying socket. It is safe to call more than once.
func (c *Connection) Close() error {
	return c.conn.Close()
}
