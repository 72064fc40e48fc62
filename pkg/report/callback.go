// Package report delivers final session results to an external evaluation
// endpoint. Delivery sits outside the message pipeline: it is triggered on
// demand and runs fire-and-forget so a slow receiver never stalls a turn.
package report

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/TryMightyAI/decoy/pkg/httputil"
	"github.com/TryMightyAI/decoy/pkg/protocol"
	"github.com/TryMightyAI/decoy/pkg/session"
)

// Client posts callback payloads with retries.
type Client struct {
	http    *http.Client
	url     string
	retries int

	// sem bounds concurrent background deliveries.
	sem *httputil.Semaphore
}

// NewClient creates a callback client. Returns nil when url is empty, so
// deployments without a callback receiver pass the nil straight through.
func NewClient(url string, timeout time.Duration, retries int) *Client {
	if url == "" {
		return nil
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if retries < 1 {
		retries = 1
	}
	return &Client{
		http:    httputil.NewClient(timeout),
		url:     url,
		retries: retries,
		sem:     httputil.NewSemaphore(8),
	}
}

// PayloadFromSession assembles the callback body from a session snapshot.
func PayloadFromSession(s session.Session) protocol.CallbackPayload {
	return protocol.CallbackPayload{
		SessionID:              s.ID,
		ScamDetected:           s.ScamDetected,
		TotalMessagesExchanged: s.MessageCount,
		ExtractedIntelligence:  s.Intelligence,
		AgentNotes:             s.NotesSummary(),
	}
}

// Send posts the payload, retrying on any failure. 200 and 201 both count
// as delivered.
func (c *Client) Send(ctx context.Context, payload protocol.CallbackPayload) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal callback payload: %w", err)
	}

	var lastErr error
	for attempt := 1; attempt <= c.retries; attempt++ {
		if err := c.post(ctx, body); err != nil {
			lastErr = err
			log.Printf("[WARN] Callback attempt %d/%d for session %s failed: %v", attempt, c.retries, payload.SessionID, err)
			if ctx.Err() != nil {
				return ctx.Err()
			}
			continue
		}
		log.Printf("[INFO] Callback delivered for session %s", payload.SessionID)
		return nil
	}
	return fmt.Errorf("callback failed after %d attempts: %w", c.retries, lastErr)
}

// SendAsync delivers in the background, bounded by the semaphore. When all
// delivery slots are busy the send is dropped with a log line rather than
// queued without bound.
func (c *Client) SendAsync(payload protocol.CallbackPayload) {
	if !c.sem.TryAcquire() {
		log.Printf("[WARN] Callback for session %s dropped: delivery slots exhausted", payload.SessionID)
		return
	}
	go func() {
		defer c.sem.Release()
		ctx, cancel := context.WithTimeout(context.Background(), time.Duration(c.retries)*c.http.Timeout)
		defer cancel()
		if err := c.Send(ctx, payload); err != nil {
			log.Printf("[WARN] Background callback for session %s failed: %v", payload.SessionID, err)
		}
	}()
}

func (c *Client) post(ctx context.Context, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer httputil.DrainAndClose(resp.Body)

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		text, _ := httputil.ReadResponseBody(resp.Body, 1024)
		return fmt.Errorf("callback receiver returned %d: %s", resp.StatusCode, string(text))
	}
	return nil
}
