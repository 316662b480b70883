package ai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestGenerate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/generate" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var req generateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.Stream {
			t.Errorf("streaming must be disabled")
		}
		if req.Model != "llama3.1" {
			t.Errorf("model %q", req.Model)
		}
		json.NewEncoder(w).Encode(generateResponse{Response: "generated text"})
	}))
	defer srv.Close()

	client := NewOllamaClient(srv.URL, 5*time.Second)
	got, err := client.Generate(context.Background(), "llama3.1", "a prompt")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if got != "generated text" {
		t.Fatalf("response %q", got)
	}
}

func TestGenerateEmptyResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(generateResponse{Response: ""})
	}))
	defer srv.Close()

	client := NewOllamaClient(srv.URL, 5*time.Second)
	if _, err := client.Generate(context.Background(), "llama3.1", "a prompt"); err == nil {
		t.Fatalf("expected error for empty response")
	}
}

func TestGenerateUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not found", http.StatusNotFound)
	}))
	defer srv.Close()

	client := NewOllamaClient(srv.URL, 5*time.Second)
	_, err := client.Generate(context.Background(), "missing", "a prompt")
	if err == nil {
		t.Fatalf("expected error for upstream 404")
	}
	if !strings.Contains(err.Error(), "404") {
		t.Fatalf("error should carry upstream status: %v", err)
	}
}

func TestGenerateBreakerOpensAfterRepeatedFailures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "backend down", http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := NewOllamaClient(srv.URL, 5*time.Second)

	// Keep failing until the breaker trips and short-circuits the call.
	var err error
	for i := 0; i < 10; i++ {
		_, err = client.Generate(context.Background(), "llama3.1", "a prompt")
		if err == nil {
			t.Fatalf("expected every call to fail")
		}
		if errors.Is(err, ErrModelUnavailable) {
			return
		}
	}
	t.Fatalf("breaker never opened, last error: %v", err)
}

func TestGenerateTimesOut(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(500 * time.Millisecond)
		json.NewEncoder(w).Encode(generateResponse{Response: "too late"})
	}))
	defer srv.Close()

	client := NewOllamaClient(srv.URL, 50*time.Millisecond)
	if _, err := client.Generate(context.Background(), "llama3.1", "a prompt"); err == nil {
		t.Fatalf("expected timeout error")
	}
}
