package natsconn

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
)

func TestConnect_RequiresURL(t *testing.T) {
	if _, err := Connect(Options{URL: "  "}); !errors.Is(err, ErrNoURL) {
		t.Fatalf("expected ErrNoURL, got %v", err)
	}
}

func TestConnect_FailsFast(t *testing.T) {
	_, err := Connect(Options{
		URL:           "nats://127.0.0.1:19999",
		MaxReconnects: 1,
		ReconnectWait: 10 * time.Millisecond,
	})
	if err == nil {
		t.Fatal("expected error connecting to unreachable NATS")
	}
	if !strings.Contains(err.Error(), "127.0.0.1:19999") || !strings.Contains(err.Error(), "max_reconnects=1") {
		t.Fatalf("expected options in error, got %v", err)
	}
}

type fakeStreams struct {
	addErr    error
	updateErr error
	added     int
	updated   int
}

func (f *fakeStreams) AddStream(*nats.StreamConfig, ...nats.JSOpt) (*nats.StreamInfo, error) {
	f.added++
	return &nats.StreamInfo{}, f.addErr
}

func (f *fakeStreams) UpdateStream(*nats.StreamConfig, ...nats.JSOpt) (*nats.StreamInfo, error) {
	f.updated++
	return &nats.StreamInfo{}, f.updateErr
}

func TestEnsureStream_CreatesWithFileStorage(t *testing.T) {
	js := &fakeStreams{}
	cfg := &nats.StreamConfig{Name: "PROGRESS", Subjects: []string{"progress.>"}}
	if err := EnsureStream(js, cfg, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if js.added != 1 || js.updated != 0 || cfg.Storage != nats.FileStorage {
		t.Fatalf("unexpected calls add=%d update=%d storage=%v", js.added, js.updated, cfg.Storage)
	}
}

func TestEnsureStream_UpdatesExisting(t *testing.T) {
	js := &fakeStreams{addErr: nats.ErrStreamNameAlreadyInUse}
	if err := EnsureStream(js, &nats.StreamConfig{Name: "PROGRESS"}, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if js.updated != 1 {
		t.Fatalf("expected update, got %d", js.updated)
	}
}

func TestEnsureStream_PropagatesOtherErrors(t *testing.T) {
	js := &fakeStreams{addErr: errors.New("jetstream not enabled")}
	err := EnsureStream(js, &nats.StreamConfig{Name: "PROGRESS"}, nil)
	if err == nil || !strings.Contains(err.Error(), "add stream PROGRESS") {
		t.Fatalf("expected wrapped add error, got %v", err)
	}
	if js.updated != 0 {
		t.Fatal("must not update after a non-conflict error")
	}
}
