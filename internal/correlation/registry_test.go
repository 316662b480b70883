package correlation

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"
)

func TestRegisterAndResolve(t *testing.T) {
	r := NewRegistry(time.Minute)

	pending, err := r.Register("abc", KindChat)
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	payload := json.RawMessage(`{"ok":true}`)
	if !r.Resolve("abc", Outcome{Payload: payload}) {
		t.Fatalf("resolve returned false for a registered id")
	}

	got, err := pending.Wait(context.Background())
	if err != nil {
		t.Fatalf("wait: %v", err)
	}
	if string(got) != `{"ok":true}` {
		t.Fatalf("unexpected payload: %s", got)
	}
}

func TestRegisterDuplicateID(t *testing.T) {
	r := NewRegistry(time.Minute)

	if _, err := r.Register("dup", KindSummary); err != nil {
		t.Fatalf("first register: %v", err)
	}
	if _, err := r.Register("dup", KindSummary); !errors.Is(err, ErrDuplicateCorrelationID) {
		t.Fatalf("expected ErrDuplicateCorrelationID, got %v", err)
	}
}

func TestResolveUnknownID(t *testing.T) {
	r := NewRegistry(time.Minute)

	if r.Resolve("nope", Outcome{}) {
		t.Fatalf("resolve of unknown id must report false")
	}
}

func TestResolveIsOneShot(t *testing.T) {
	r := NewRegistry(time.Minute)

	pending, err := r.Register("once", KindChat)
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	if !r.Resolve("once", Outcome{Payload: json.RawMessage(`1`)}) {
		t.Fatalf("first resolve failed")
	}
	// The entry is gone; a second response for the same id is dropped.
	if r.Resolve("once", Outcome{Payload: json.RawMessage(`2`)}) {
		t.Fatalf("second resolve must report false")
	}

	got, err := pending.Wait(context.Background())
	if err != nil {
		t.Fatalf("wait: %v", err)
	}
	if string(got) != `1` {
		t.Fatalf("waiter saw the second outcome: %s", got)
	}
}

func TestSweepExpiresOldEntries(t *testing.T) {
	r := NewRegistry(30 * time.Second)

	pending, err := r.Register("old", KindSummary)
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	// Not yet expired.
	if n := r.Sweep(time.Now()); n != 0 {
		t.Fatalf("sweep expired %d entries prematurely", n)
	}

	if n := r.Sweep(time.Now().Add(time.Minute)); n != 1 {
		t.Fatalf("sweep expired %d entries, want 1", n)
	}

	if _, err := pending.Wait(context.Background()); !errors.Is(err, ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}

	// Expired means gone: a late response is dropped.
	if r.Resolve("old", Outcome{Payload: json.RawMessage(`{}`)}) {
		t.Fatalf("resolve after expiry must report false")
	}
}

func TestSweepThenResolveRace(t *testing.T) {
	r := NewRegistry(time.Millisecond)

	pending, err := r.Register("race", KindChat)
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	resolved := r.Resolve("race", Outcome{Payload: json.RawMessage(`{}`)})
	expired := r.Sweep(time.Now().Add(time.Hour)) == 1

	// Exactly one side wins.
	if resolved == expired {
		t.Fatalf("resolved=%v expired=%v, want exactly one", resolved, expired)
	}

	if _, err := pending.Wait(context.Background()); resolved && err != nil {
		t.Fatalf("winner was resolve but waiter got error: %v", err)
	}
}

func TestWaitHonorsContext(t *testing.T) {
	r := NewRegistry(time.Minute)

	pending, err := r.Register("ctx", KindChat)
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	if _, err := pending.Wait(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected context deadline, got %v", err)
	}
}
