package session

import (
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/event-relay/backend/internal/event"
	"github.com/event-relay/backend/internal/metrics"
)

func newTestRegistry(t *testing.T, users StaticVerifier) *Registry {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewRegistry(users, 4, logger, metrics.NewForTest())
}

func TestAuthenticateMintsUniqueIDs(t *testing.T) {
	r := newTestRegistry(t, StaticVerifier{"alice": "pw"})

	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id, err := r.Authenticate("alice", "pw")
		if err != nil {
			t.Fatalf("Authenticate: %v", err)
		}
		if seen[id] {
			t.Fatalf("session id %q minted twice", id)
		}
		seen[id] = true
	}
	if got := r.SessionCount(); got != 100 {
		t.Errorf("SessionCount = %d, want 100", got)
	}
}

func TestAuthenticateRejectsBadCredential(t *testing.T) {
	r := newTestRegistry(t, StaticVerifier{"alice": "pw"})

	tests := []struct {
		name               string
		username, password string
	}{
		{"wrong password", "alice", "nope"},
		{"unknown user", "bob", "pw"},
		{"empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, err := r.Authenticate(tt.username, tt.password)
			if err != ErrInvalidCredentials {
				t.Errorf("err = %v, want ErrInvalidCredentials", err)
			}
			if id != "" {
				t.Errorf("id = %q, want empty", id)
			}
		})
	}
	if got := r.SessionCount(); got != 0 {
		t.Errorf("failed logins created %d sessions", got)
	}
}

func TestRegisterStreamUnknownSession(t *testing.T) {
	r := newTestRegistry(t, StaticVerifier{})
	if _, err := r.RegisterStream("never-minted"); err != ErrUnauthenticated {
		t.Errorf("err = %v, want ErrUnauthenticated", err)
	}
}

func TestDeliverReachesOnlyTargetSession(t *testing.T) {
	r := newTestRegistry(t, StaticVerifier{"alice": "pw", "bob": "pw"})

	a, _ := r.Authenticate("alice", "pw")
	b, _ := r.Authenticate("bob", "pw")
	chA, err := r.RegisterStream(a)
	if err != nil {
		t.Fatalf("RegisterStream(a): %v", err)
	}
	chB, err := r.RegisterStream(b)
	if err != nil {
		t.Fatalf("RegisterStream(b): %v", err)
	}

	r.Deliver(a, event.Welcome{Text: "hi"})

	select {
	case ev := <-chA:
		if _, ok := ev.(event.Welcome); !ok {
			t.Errorf("got %T, want Welcome", ev)
		}
	default:
		t.Fatal("no event on target stream")
	}
	select {
	case ev := <-chB:
		t.Errorf("unrelated stream received %T", ev)
	default:
	}
}

func TestDeliverWithoutConnectionDropsSilently(t *testing.T) {
	r := newTestRegistry(t, StaticVerifier{"alice": "pw"})
	id, _ := r.Authenticate("alice", "pw")

	// No stream registered: must not panic or error.
	r.Deliver(id, event.Welcome{Text: "hi"})
	r.Deliver("never-minted", event.Welcome{Text: "hi"})
}

func TestDeliverDropsNewestWhenBufferFull(t *testing.T) {
	r := newTestRegistry(t, StaticVerifier{"alice": "pw"})
	id, _ := r.Authenticate("alice", "pw")
	ch, _ := r.RegisterStream(id)

	// Buffer capacity is 4 in tests; the fifth delivery must not block.
	for i := 0; i < 5; i++ {
		r.Deliver(id, event.Welcome{Text: "hi"})
	}

	got := 0
	for {
		select {
		case <-ch:
			got++
			continue
		default:
		}
		break
	}
	if got != 4 {
		t.Errorf("received %d events, want 4 (drop-newest on full buffer)", got)
	}
}

func TestSupersessionStarvesOldStream(t *testing.T) {
	r := newTestRegistry(t, StaticVerifier{"alice": "pw"})
	id, _ := r.Authenticate("alice", "pw")

	old, err := r.RegisterStream(id)
	if err != nil {
		t.Fatalf("RegisterStream: %v", err)
	}
	replacement, err := r.RegisterStream(id)
	if err != nil {
		t.Fatalf("RegisterStream (second): %v", err)
	}

	r.Deliver(id, event.Welcome{Text: "hi"})

	select {
	case ev := <-old:
		t.Errorf("superseded stream received %T", ev)
	default:
	}
	select {
	case <-replacement:
	default:
		t.Error("replacement stream received nothing")
	}
	if got := r.ConnectionCount(); got != 1 {
		t.Errorf("ConnectionCount = %d, want 1", got)
	}
}

func TestUnregisterStreamIgnoresSupersededConnection(t *testing.T) {
	r := newTestRegistry(t, StaticVerifier{"alice": "pw"})
	id, _ := r.Authenticate("alice", "pw")

	old, _ := r.RegisterStream(id)
	replacement, _ := r.RegisterStream(id)

	// The superseded stream shutting down must not detach the live one.
	r.UnregisterStream(id, old)
	r.Deliver(id, event.Welcome{Text: "hi"})
	select {
	case <-replacement:
	default:
		t.Error("live stream lost its connection when the old stream unregistered")
	}

	r.UnregisterStream(id, replacement)
	if got := r.ConnectionCount(); got != 0 {
		t.Errorf("ConnectionCount = %d after unregister, want 0", got)
	}
}

func TestConcurrentAuthenticateAndDeliver(t *testing.T) {
	r := newTestRegistry(t, StaticVerifier{"alice": "pw"})
	id, _ := r.Authenticate("alice", "pw")
	ch, _ := r.RegisterStream(id)

	// Drain so deliveries never hit the full-buffer path.
	go func() {
		for range ch {
		}
	}()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				if _, err := r.Authenticate("alice", "pw"); err != nil {
					t.Errorf("Authenticate: %v", err)
					return
				}
				r.Deliver(id, event.Welcome{Text: "hi"})
				r.Lookup(id)
			}
		}()
	}
	wg.Wait()

	if got := r.SessionCount(); got != 1+8*50 {
		t.Errorf("SessionCount = %d, want %d", got, 1+8*50)
	}
}
