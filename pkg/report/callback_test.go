package report

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/TryMightyAI/decoy/pkg/protocol"
	"github.com/TryMightyAI/decoy/pkg/session"
)

func testPayload() protocol.CallbackPayload {
	return protocol.CallbackPayload{
		SessionID:              "sess-1",
		ScamDetected:           true,
		TotalMessagesExchanged: 8,
		ExtractedIntelligence: protocol.Intelligence{
			UPIIDs:       []string{"fraud@paytm"},
			PhoneNumbers: []string{"+919876543210"},
		},
		AgentNotes: "Scam detected: upi_fraud (confidence: 0.82)",
	}
}

func TestNewClientEmptyURL(t *testing.T) {
	if c := NewClient("", time.Second, 3); c != nil {
		t.Error("expected nil client without a callback URL")
	}
}

func TestSendDeliversPayload(t *testing.T) {
	var got protocol.CallbackPayload
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("Content-Type = %q", ct)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode payload: %v", err)
		}
		w.WriteHeader(http.StatusCreated) // 201 counts as delivered
	}))
	defer server.Close()

	c := NewClient(server.URL, time.Second, 3)
	if err := c.Send(context.Background(), testPayload()); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if got.SessionID != "sess-1" || !got.ScamDetected {
		t.Errorf("payload mangled: %+v", got)
	}
	if len(got.ExtractedIntelligence.UPIIDs) != 1 {
		t.Errorf("intelligence missing: %+v", got.ExtractedIntelligence)
	}
}

func TestSendRetriesUntilSuccess(t *testing.T) {
	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if attempts.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	c := NewClient(server.URL, time.Second, 3)
	if err := c.Send(context.Background(), testPayload()); err != nil {
		t.Fatalf("Send should succeed on the third attempt: %v", err)
	}
	if attempts.Load() != 3 {
		t.Errorf("attempts = %d, want 3", attempts.Load())
	}
}

func TestSendExhaustsRetries(t *testing.T) {
	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	c := NewClient(server.URL, time.Second, 3)
	if err := c.Send(context.Background(), testPayload()); err == nil {
		t.Fatal("expected error after exhausting retries")
	}
	if attempts.Load() != 3 {
		t.Errorf("attempts = %d, want 3", attempts.Load())
	}
}

func TestPayloadFromSession(t *testing.T) {
	s := session.Session{
		ID:           "sess-9",
		MessageCount: 12,
		ScamDetected: true,
		Intelligence: protocol.Intelligence{BankAccounts: []string{"1234567890"}},
		AgentNotes:   []string{"note one", "note two"},
	}

	p := PayloadFromSession(s)
	if p.SessionID != "sess-9" || p.TotalMessagesExchanged != 12 || !p.ScamDetected {
		t.Errorf("payload = %+v", p)
	}
	if p.AgentNotes != "note one | note two" {
		t.Errorf("AgentNotes = %q", p.AgentNotes)
	}
	if len(p.ExtractedIntelligence.BankAccounts) != 1 {
		t.Errorf("intelligence not carried: %+v", p.ExtractedIntelligence)
	}
}

func TestPayloadFromSessionNoNotes(t *testing.T) {
	p := PayloadFromSession(session.Session{ID: "s"})
	if p.AgentNotes != "No specific notes recorded." {
		t.Errorf("AgentNotes = %q", p.AgentNotes)
	}
}
