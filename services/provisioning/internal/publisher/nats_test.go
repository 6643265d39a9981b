package publisher

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

type fakeJS struct {
	subjects []string
	payloads [][]byte
	err      error
}

func (f *fakeJS) Publish(subj string, data []byte, _ ...nats.PubOpt) (*nats.PubAck, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.subjects = append(f.subjects, subj)
	f.payloads = append(f.payloads, data)
	return &nats.PubAck{Stream: StreamName, Sequence: uint64(len(f.subjects))}, nil
}

func TestPublish_EncodesEvent(t *testing.T) {
	js := &fakeJS{}
	p := &Publisher{js: js, log: zap.NewNop()}

	err := p.Publish(context.Background(), SubjectMemberProvisioned, MemberEvent{EventID: "wh_1", MemberID: "m-1", Active: true})
	if err != nil {
		t.Fatalf("publish: %v", err)
	}
	if len(js.subjects) != 1 || js.subjects[0] != SubjectMemberProvisioned {
		t.Fatalf("unexpected subjects %v", js.subjects)
	}
	var got MemberEvent
	if err := json.Unmarshal(js.payloads[0], &got); err != nil || got.MemberID != "m-1" || !got.Active {
		t.Fatalf("unexpected payload %s (%v)", js.payloads[0], err)
	}
}

func TestPublish_StubIsNoop(t *testing.T) {
	p, err := New(nil, zap.NewNop())
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if err := p.Publish(context.Background(), SubjectMemberDeactivated, MemberEvent{EventID: "wh_2"}); err != nil {
		t.Fatalf("stub publish should succeed, got %v", err)
	}
}

func TestPublish_PropagatesError(t *testing.T) {
	boom := errors.New("no responders")
	p := &Publisher{js: &fakeJS{err: boom}, log: zap.NewNop()}
	if err := p.Publish(context.Background(), SubjectMemberProvisioned, MemberEvent{EventID: "wh_3"}); !errors.Is(err, boom) {
		t.Fatalf("expected publish error, got %v", err)
	}
}
