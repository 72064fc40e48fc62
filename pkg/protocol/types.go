// Package protocol defines the wire-level data model shared by every
// component of the decoy honeypot: conversation messages, extracted
// intelligence, and the inbound/outbound API contracts.
package protocol

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// Message senders. The wire format keeps the original field values:
// the counterparty being engaged is "scammer", the honeypot's own
// operator-role replies are attributed to "user".
const (
	SenderScammer = "scammer"
	SenderAgent   = "user"
)

// Timestamp accepts either an integer epoch in milliseconds or an
// ISO-8601 string. The value is preserved verbatim and echoed back on
// generated replies, so callers get their own timestamp convention back.
type Timestamp struct {
	raw json.RawMessage
}

// TimestampMillis builds a Timestamp from an epoch-milliseconds value.
func TimestampMillis(ms int64) Timestamp {
	return Timestamp{raw: json.RawMessage(fmt.Sprintf("%d", ms))}
}

// TimestampString builds a Timestamp from an ISO-8601 string.
func TimestampString(s string) Timestamp {
	b, _ := json.Marshal(s)
	return Timestamp{raw: b}
}

// UnmarshalJSON accepts a JSON number or string; anything else is rejected.
func (t *Timestamp) UnmarshalJSON(b []byte) error {
	trimmed := bytes.TrimSpace(b)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		t.raw = nil
		return nil
	}
	switch trimmed[0] {
	case '"':
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return err
		}
	case '-', '0', '1', '2', '3', '4', '5', '6', '7', '8', '9':
		var n json.Number
		if err := json.Unmarshal(trimmed, &n); err != nil {
			return err
		}
	default:
		return fmt.Errorf("timestamp must be epoch millis or ISO-8601 string, got %s", trimmed)
	}
	t.raw = append(json.RawMessage(nil), trimmed...)
	return nil
}

// MarshalJSON echoes the value exactly as it was received.
func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.raw == nil {
		return []byte("null"), nil
	}
	return t.raw, nil
}

// IsZero reports whether the timestamp was never set.
func (t Timestamp) IsZero() bool { return t.raw == nil }

// String returns the raw wire representation, for audit notes and equality.
func (t Timestamp) String() string { return string(t.raw) }

// Message is a single conversation turn. Immutable once created; owned by
// the session it belongs to.
type Message struct {
	Sender    string    `json:"sender"`
	Text      string    `json:"text"`
	Timestamp Timestamp `json:"timestamp"`
}

// FromScammer reports whether the message was authored by the counterparty.
func (m Message) FromScammer() bool { return m.Sender == SenderScammer }

// Equal compares messages field-by-field, including the raw timestamp.
// Used by the history-reconciliation guard to skip replayed messages.
func (m Message) Equal(other Message) bool {
	return m.Sender == other.Sender &&
		m.Text == other.Text &&
		m.Timestamp.String() == other.Timestamp.String()
}

// Validate rejects structurally invalid messages before they can touch
// session state.
func (m Message) Validate() error {
	if strings.TrimSpace(m.Sender) == "" {
		return fmt.Errorf("message sender is required")
	}
	if strings.TrimSpace(m.Text) == "" {
		return fmt.Errorf("message text is required")
	}
	return nil
}

// Intelligence is the structured record extracted from scammer text.
// Each field is a set of strings: order-irrelevant, no duplicates after
// merge. JSON field names match the external evaluation contract.
type Intelligence struct {
	BankAccounts       []string `json:"bankAccounts"`
	UPIIDs             []string `json:"upiIds"`
	PhishingLinks      []string `json:"phishingLinks"`
	PhoneNumbers       []string `json:"phoneNumbers"`
	SuspiciousKeywords []string `json:"suspiciousKeywords"`
}

// Merge returns the set union of two intelligence records per field.
// Output slices are sorted so merge is deterministic and idempotent.
func (i Intelligence) Merge(other Intelligence) Intelligence {
	return Intelligence{
		BankAccounts:       unionSorted(i.BankAccounts, other.BankAccounts),
		UPIIDs:             unionSorted(i.UPIIDs, other.UPIIDs),
		PhishingLinks:      unionSorted(i.PhishingLinks, other.PhishingLinks),
		PhoneNumbers:       unionSorted(i.PhoneNumbers, other.PhoneNumbers),
		SuspiciousKeywords: unionSorted(i.SuspiciousKeywords, other.SuspiciousKeywords),
	}
}

// HasActionable reports whether any non-keyword field is populated.
// Keywords alone are too weak a signal to be worth an audit note.
func (i Intelligence) HasActionable() bool {
	return len(i.BankAccounts) > 0 || len(i.UPIIDs) > 0 ||
		len(i.PhishingLinks) > 0 || len(i.PhoneNumbers) > 0
}

func unionSorted(a, b []string) []string {
	if len(a) == 0 && len(b) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(a)+len(b))
	out := make([]string, 0, len(a)+len(b))
	for _, s := range a {
		if _, ok := seen[s]; !ok {
			seen[s] = struct{}{}
			out = append(out, s)
		}
	}
	for _, s := range b {
		if _, ok := seen[s]; !ok {
			seen[s] = struct{}{}
			out = append(out, s)
		}
	}
	sort.Strings(out)
	return out
}

// Metadata carries optional channel hints on the inbound request.
type Metadata struct {
	Channel  string `json:"channel,omitempty"`
	Language string `json:"language,omitempty"`
	Locale   string `json:"locale,omitempty"`
}

// EngageRequest is the inbound contract consumed by the orchestrator.
type EngageRequest struct {
	SessionID           string    `json:"sessionId"`
	Message             Message   `json:"message"`
	ConversationHistory []Message `json:"conversationHistory,omitempty"`
	Metadata            *Metadata `json:"metadata,omitempty"`
}

// Validate rejects structurally invalid requests. A failed request must
// not cause any session mutation.
func (r EngageRequest) Validate() error {
	if strings.TrimSpace(r.SessionID) == "" {
		return fmt.Errorf("sessionId is required")
	}
	if err := r.Message.Validate(); err != nil {
		return fmt.Errorf("message: %w", err)
	}
	return nil
}

// EngageResponse is the outbound reply contract.
type EngageResponse struct {
	Status string `json:"status"`
	Reply  string `json:"reply"`
}

// CallbackPayload is the tuple the external result-delivery collaborator
// consumes. Assembled from session store state at any point in time.
type CallbackPayload struct {
	SessionID              string       `json:"sessionId"`
	ScamDetected           bool         `json:"scamDetected"`
	TotalMessagesExchanged int          `json:"totalMessagesExchanged"`
	ExtractedIntelligence  Intelligence `json:"extractedIntelligence"`
	AgentNotes             string       `json:"agentNotes"`
}
