// Package logicpack provides a couple of reference smsc.Logic
// implementations: RejectAll, which accepts every bind and fails every
// submit_sm, and DelayedDR, which authenticates system_id==password and
// answers submit_sm with a delivery receipt injected about a second
// later.
package logicpack

import (
	"context"

	"github.com/ajankovic/smpp/pdu"
	"github.com/ajankovic/smpp/smsc"
)

// RejectAll lets any system_id/password pair bind, then fails every
// submit_sm with a system error. Useful for exercising bind and
// teardown paths without a working downstream route.
type RejectAll struct{}

// NewRejectAll builds a RejectAll logic instance.
func NewRejectAll() *RejectAll {
	return &RejectAll{}
}

// Bind always succeeds.
func (l *RejectAll) Bind(ctx context.Context, data *smsc.BindData) error {
	return nil
}

// SubmitSM always fails with smsc.ErrSubmitInternal.
func (l *RejectAll) SubmitSM(ctx context.Context, hub *smsc.Hub, req *pdu.SubmitSm, sequence uint32) (*pdu.SubmitSmResp, smsc.MessageKey, error) {
	return nil, smsc.MessageKey{}, smsc.ErrSubmitInternal
}

// Concurrent reports true: RejectAll has no fields and touches no shared
// state outside the Hub it's handed (which locks its own), so it needs
// no serialization across connections.
func (l *RejectAll) Concurrent() bool { return true }
