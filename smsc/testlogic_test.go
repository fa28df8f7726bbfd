package smsc

import (
	"context"
	"testing"

	"github.com/ajankovic/smpp/pdu"
)

// testLogger forwards both InfoF and ErrorF to t.Logf, so log lines show
// up in verbose test output; nothing is collected for assertions.
type testLogger struct {
	t *testing.T
}

func newTestLogger(t *testing.T) *testLogger { return &testLogger{t: t} }

func (l *testLogger) InfoF(msg string, params ...interface{})  { l.t.Logf("INFO: "+msg, params...) }
func (l *testLogger) ErrorF(msg string, params ...interface{}) { l.t.Logf("ERROR: "+msg, params...) }

// scriptedLogic is a Logic whose Bind/SubmitSM behavior is supplied by the
// test, standing in for the concrete logicpack implementations in unit
// tests that want precise control over responses.
type scriptedLogic struct {
	bind      func(ctx context.Context, data *BindData) error
	submitSM  func(ctx context.Context, hub *Hub, req *pdu.SubmitSm, seq uint32) (*pdu.SubmitSmResp, MessageKey, error)
}

func (l *scriptedLogic) Bind(ctx context.Context, data *BindData) error {
	if l.bind == nil {
		return nil
	}
	return l.bind(ctx, data)
}

func (l *scriptedLogic) SubmitSM(ctx context.Context, hub *Hub, req *pdu.SubmitSm, seq uint32) (*pdu.SubmitSmResp, MessageKey, error) {
	if l.submitSM == nil {
		return req.Response(""), MessageKey{}, nil
	}
	return l.submitSM(ctx, hub, req, seq)
}
