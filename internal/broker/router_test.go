package broker

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestOutcomeForSuccessCarriesPayload(t *testing.T) {
	payload := []byte(`{"correlationId":"c1","summary":"short"}`)

	out := outcomeFor(false, "", payload)
	if out.Err != nil {
		t.Fatalf("unexpected error: %v", out.Err)
	}
	if string(out.Payload) != string(payload) {
		t.Fatalf("payload mangled: %s", out.Payload)
	}
}

func TestOutcomeForErrorBecomesRemoteError(t *testing.T) {
	out := outcomeFor(true, "boom", nil)
	if out.Err == nil {
		t.Fatalf("expected error outcome")
	}
	var remote *RemoteError
	if !errors.As(out.Err, &remote) {
		t.Fatalf("expected RemoteError, got %T", out.Err)
	}
	if remote.Message != "boom" {
		t.Fatalf("message %q", remote.Message)
	}
}

func TestTaskRoundTrip(t *testing.T) {
	task, err := NewSummaryTask(SummaryRequest{CorrelationID: "c2", DocumentID: "d9"})
	if err != nil {
		t.Fatalf("build task: %v", err)
	}
	if task.Type() != TaskSummaryGenerate {
		t.Fatalf("task type %s", task.Type())
	}

	var req SummaryRequest
	if err := json.Unmarshal(task.Payload(), &req); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if req.CorrelationID != "c2" || req.DocumentID != "d9" {
		t.Fatalf("fields lost: %+v", req)
	}
}
