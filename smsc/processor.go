package smsc

import (
	"context"
	"errors"

	"github.com/ajankovic/smpp/pdu"
)

// Processor owns a single accepted connection for its whole lifetime: it
// reads PDUs off the wire, dispatches them, and answers them, until the
// connection errors, the peer disconnects, or ctx is cancelled. It is
// not reused across connections.
type Processor struct {
	conn     *Connection
	hub      *Hub
	logic    Logic
	logger   Logger
	systemID string
}

// NewProcessor builds a Processor for an already-wrapped connection.
// systemID is the SMSC's own configured identity, echoed back in every
// successful bind response regardless of what system_id the peer
// presented.
func NewProcessor(conn *Connection, hub *Hub, logic Logic, logger Logger, systemID string) *Processor {
	return &Processor{conn: conn, hub: hub, logic: logic, logger: logger, systemID: systemID}
}

// Run processes PDUs until the connection closes or ctx is cancelled.
// Whatever EsmeID the connection ended up bound to (none, if it never
// completed a bind) is unregistered from hub exactly once on return,
// mirroring a scope-guarded disconnect.
func (p *Processor) Run(ctx context.Context) error {
	defer func() {
		if id, ok := p.conn.BoundEsmeID(); ok {
			p.hub.RemoveConnection(id, p.conn)
		}
		p.conn.Close()
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		header, req, err := p.conn.ReadPDU(ctx)
		if err != nil {
			var frameErr *pdu.FrameError
			if errors.As(err, &frameErr) {
				p.respondFrameError(frameErr)
				return err
			}
			if errors.Is(err, ErrNotEnoughBytes) {
				p.logger.ErrorF("connection %s: %s", p.conn.RemoteAddr(), err)
			}
			return err
		}
		if req == nil {
			return nil
		}

		if err := p.dispatch(ctx, header, req); err != nil {
			var unexpected *UnexpectedPduType
			if errors.As(err, &unexpected) {
				p.logger.ErrorF("connection %s: %s", p.conn.RemoteAddr(), err)
				p.conn.WritePDU(&pdu.GenericNack{},
					pdu.EncodeSeq(unexpected.Sequence), pdu.EncodeStatus(pdu.StatusInvCmdID))
				return err
			}
			return err
		}
	}
}

func (p *Processor) respondFrameError(fe *pdu.FrameError) {
	p.logger.ErrorF("connection %s: bad frame: %s", p.conn.RemoteAddr(), fe.Error())
	resp := pdu.PDU(pdu.EmptyResp{ID: fe.RespCommandID})
	p.conn.WritePDU(resp, pdu.EncodeSeq(fe.Sequence), pdu.EncodeStatus(fe.Status))
}

func (p *Processor) dispatch(ctx context.Context, header pdu.Header, req pdu.PDU) error {
	seq := header.Sequence()
	switch v := req.(type) {
	case *pdu.BindTx:
		return p.handleBind(ctx, seq, v.SystemID, v.Password, v.SystemType,
			v.InterfaceVersion, v.AddrTon, v.AddrNpi, v.AddressRange, BindTransmitter,
			pdu.BindTransmitterRespID, func(sysID string) pdu.PDU { return v.Response(sysID) })
	case *pdu.BindRx:
		return p.handleBind(ctx, seq, v.SystemID, v.Password, v.SystemType,
			v.InterfaceVersion, v.AddrTon, v.AddrNpi, v.AddressRange, BindReceiver,
			pdu.BindReceiverRespID, func(sysID string) pdu.PDU { return v.Response(sysID) })
	case *pdu.BindTRx:
		return p.handleBind(ctx, seq, v.SystemID, v.Password, v.SystemType,
			v.InterfaceVersion, v.AddrTon, v.AddrNpi, v.AddressRange, BindTransceiver,
			pdu.BindTransceiverRespID, func(sysID string) pdu.PDU { return v.Response(sysID) })
	case *pdu.EnquireLink:
		return p.conn.WritePDU(v.Response(), pdu.EncodeSeq(seq))
	case *pdu.SubmitSm:
		return p.handleSubmitSm(ctx, seq, v)
	default:
		return &UnexpectedPduType{CommandID: req.CommandID(), Sequence: seq}
	}
}

func (p *Processor) handleBind(
	ctx context.Context,
	seq uint32,
	systemID, password, systemType string,
	ifaceVersion, addrTon, addrNpi int,
	addressRange string,
	mode BindMode,
	respCommandID pdu.CommandID,
	buildResp func(sysID string) pdu.PDU,
) error {
	data := &BindData{
		EsmeID:           EsmeID{SystemID: systemID, SystemType: systemType},
		Password:         password,
		InterfaceVersion: ifaceVersion,
		AddrTon:          addrTon,
		AddrNpi:          addrNpi,
		AddressRange:     addressRange,
		Mode:             mode,
	}

	err := p.logic.Bind(ctx, data)
	if err != nil {
		status := bindStatus(err)
		p.logger.ErrorF("bind rejected for %s (%s): %s", data.EsmeID, p.conn.RemoteAddr(), err)
		return p.conn.WritePDU(pdu.EmptyResp{ID: respCommandID}, pdu.EncodeSeq(seq), pdu.EncodeStatus(status))
	}

	if !p.conn.Bind(data.EsmeID) {
		p.logger.ErrorF("connection %s attempted a second bind as %s", p.conn.RemoteAddr(), data.EsmeID)
		return p.conn.WritePDU(pdu.EmptyResp{ID: respCommandID}, pdu.EncodeSeq(seq), pdu.EncodeStatus(pdu.StatusAlyBnd))
	}
	p.hub.AddConnection(data.EsmeID, p.conn)
	bindsTotal.WithLabelValues(mode.String()).Inc()
	p.logger.InfoF("bound %s as %s from %s", data.EsmeID, mode, p.conn.RemoteAddr())

	return p.conn.WritePDU(buildResp(p.systemID), pdu.EncodeSeq(seq), pdu.EncodeStatus(pdu.StatusOK))
}

func (p *Processor) handleSubmitSm(ctx context.Context, seq uint32, req *pdu.SubmitSm) error {
	id, bound := p.conn.BoundEsmeID()
	if !bound {
		submitSmTotal.WithLabelValues("not_bound").Inc()
		return ErrNotBoundAsTransmitter
	}

	resp, key, err := p.logic.SubmitSM(ctx, p.hub, req, seq)
	if err != nil {
		status := submitStatus(err)
		submitSmTotal.WithLabelValues("error").Inc()
		p.logger.ErrorF("submit_sm from %s failed: %s", id, err)
		return p.conn.WritePDU(pdu.EmptyResp{ID: pdu.SubmitSmRespID}, pdu.EncodeSeq(seq), pdu.EncodeStatus(status))
	}

	if key != (MessageKey{}) {
		p.hub.AddMessage(key, id)
	}
	submitSmTotal.WithLabelValues("ok").Inc()
	return p.conn.WritePDU(resp, pdu.EncodeSeq(seq), pdu.EncodeStatus(pdu.StatusOK))
}
