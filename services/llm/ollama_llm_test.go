package llm

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/innacampo/selene-demo/services/selene/datatypes"
)

// TestOllamaClient_Generate tests the happy path against a mock server.
func TestOllamaClient_Generate(t *testing.T) {
	t.Parallel()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/generate" {
			t.Errorf("Unexpected path %q", r.URL.Path)
		}
		w.Write([]byte(`{"model":"test-model","response":"generated text","done":true}`))
	}))
	defer server.Close()

	client := newOllamaClientForTest(server.URL, "test-model", 5*time.Second)
	out, err := client.Generate(context.Background(), "prompt", GenerationParams{})
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if out != "generated text" {
		t.Errorf("Unexpected output: %q", out)
	}
}

// TestOllamaClient_Chat tests the chat endpoint round trip.
func TestOllamaClient_Chat(t *testing.T) {
	t.Parallel()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat" {
			t.Errorf("Unexpected path %q", r.URL.Path)
		}
		w.Write([]byte(`{"message":{"role":"assistant","content":"chat reply"},"done":true}`))
	}))
	defer server.Close()

	client := newOllamaClientForTest(server.URL, "test-model", 5*time.Second)
	out, err := client.Chat(context.Background(),
		[]datatypes.ChatTurn{{Role: "user", Content: "hi"}}, GenerationParams{})
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if out != "chat reply" {
		t.Errorf("Unexpected output: %q", out)
	}
}

// TestOllamaClient_ModelNotFound tests the specific pull-hint error for a
// missing model.
func TestOllamaClient_ModelNotFound(t *testing.T) {
	t.Parallel()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"error":"model 'missing' not found"}`))
	}))
	defer server.Close()

	client := newOllamaClientForTest(server.URL, "missing", 5*time.Second)
	_, err := client.Generate(context.Background(), "prompt", GenerationParams{})
	if err == nil {
		t.Fatal("Expected error for missing model")
	}
	if !strings.Contains(err.Error(), "ollama pull missing") {
		t.Errorf("Expected pull hint in error, got: %v", err)
	}
}

// TestOllamaClient_ServerErrorIsRetryable tests that 5xx responses are
// classified retryable.
func TestOllamaClient_ServerErrorIsRetryable(t *testing.T) {
	t.Parallel()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("overloaded"))
	}))
	defer server.Close()

	client := newOllamaClientForTest(server.URL, "test-model", 5*time.Second)
	_, err := client.Generate(context.Background(), "prompt", GenerationParams{})
	if err == nil {
		t.Fatal("Expected error for 500 response")
	}
	var be *BackendError
	if !errors.As(err, &be) {
		t.Fatalf("Expected BackendError, got %T", err)
	}
	if !be.Retryable || be.StatusCode != http.StatusInternalServerError {
		t.Errorf("Unexpected classification: %+v", be)
	}
	if !IsRetryable(err) {
		t.Error("IsRetryable should report true for a 500")
	}
}

// TestOllamaClient_ConnectionRefused tests classification when nothing is
// listening: retryable, with the standard degradation message.
func TestOllamaClient_ConnectionRefused(t *testing.T) {
	t.Parallel()
	// Reserve a port, then close it so the connection is refused.
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	client := newOllamaClientForTest(url, "test-model", 5*time.Second)
	_, err := client.Generate(context.Background(), "prompt", GenerationParams{})
	if err == nil {
		t.Fatal("Expected error for refused connection")
	}
	var be *BackendError
	if !errors.As(err, &be) {
		t.Fatalf("Expected BackendError, got %T", err)
	}
	if be.Message != MsgConnectionRefused {
		t.Errorf("Expected degradation message %q, got %q", MsgConnectionRefused, be.Message)
	}
	if !be.Retryable {
		t.Error("Refused connection should be retryable")
	}
}

// TestOllamaClient_Timeout tests timeout classification and message.
func TestOllamaClient_Timeout(t *testing.T) {
	t.Parallel()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(500 * time.Millisecond)
	}))
	defer server.Close()

	client := newOllamaClientForTest(server.URL, "test-model", 50*time.Millisecond)
	_, err := client.Generate(context.Background(), "prompt", GenerationParams{})
	if err == nil {
		t.Fatal("Expected timeout error")
	}
	var be *BackendError
	if !errors.As(err, &be) {
		t.Fatalf("Expected BackendError, got %T", err)
	}
	if be.Message != MsgTimeout {
		t.Errorf("Expected degradation message %q, got %q", MsgTimeout, be.Message)
	}
}
