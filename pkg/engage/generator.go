// Package engage produces the decoy's replies: short, naive-sounding
// messages that bait the caller into volunteering payment details. An
// LLM-backed generator plays the victim persona; a fixed prompt rotation
// covers deployments without a model and turns where the model fails.
package engage

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/TryMightyAI/decoy/pkg/llm"
	"github.com/TryMightyAI/decoy/pkg/protocol"
)

// maxReplyLen bounds outbound replies; longer model output is cut at a word
// boundary.
const maxReplyLen = 200

// historyWindow bounds how much conversation goes into the persona prompt.
const historyWindow = 6

// Generator produces one decoy reply per turn. note is an audit line for
// the session record.
type Generator interface {
	Generate(ctx context.Context, inbound string, history []protocol.Message, scamType string, turn int) (reply, note string, err error)
}

// LLMGenerator asks a chat model to play the victim. Errors surface to the
// caller, which substitutes a rotation prompt.
type LLMGenerator struct {
	client *llm.Client
}

// NewLLMGenerator wraps a chat client. Returns nil for a nil client.
func NewLLMGenerator(client *llm.Client) *LLMGenerator {
	if client == nil {
		return nil
	}
	return &LLMGenerator{client: client}
}

// Generate builds the persona prompt and post-processes the model's reply:
// surrounding quotes stripped, overlong output cut at a word boundary.
func (g *LLMGenerator) Generate(ctx context.Context, inbound string, history []protocol.Message, scamType string, _ int) (string, string, error) {
	raw, err := g.client.Complete(ctx, "", g.prompt(inbound, history, scamType))
	if err != nil {
		return "", "", err
	}

	reply := strings.Trim(strings.TrimSpace(raw), `"'`)
	if len(reply) > maxReplyLen {
		cut := reply[:maxReplyLen]
		if idx := strings.LastIndexByte(cut, ' '); idx > 0 {
			cut = cut[:idx]
		}
		reply = cut + "..."
	}

	note := fmt.Sprintf("Generated via %s | Scam type: %s", g.client.Model(), scamType)
	return reply, note, nil
}

func (g *LLMGenerator) prompt(inbound string, history []protocol.Message, scamType string) string {
	var sb strings.Builder
	sb.WriteString(`You are role-playing as a potential scam victim to keep the scammer engaged and extract information.

CRITICAL RULES:
1. NEVER reveal you know this is a scam
2. Be believable as a real human - use natural language
3. Keep responses SHORT (1-2 sentences, max 50 words)
4. Your goal: Keep them talking to extract phone numbers, links, account details, UPI IDs
5. Act confused, worried, or naive to seem like an easy target

`)
	fmt.Fprintf(&sb, "SCAM TYPE: %s\n\n", scamType)

	if len(history) > 0 {
		start := len(history) - historyWindow
		if start < 0 {
			start = 0
		}
		sb.WriteString("CONVERSATION SO FAR:\n")
		for _, m := range history[start:] {
			speaker := "You"
			if m.FromScammer() {
				speaker = "Caller"
			}
			fmt.Fprintf(&sb, "%s: %s\n", speaker, m.Text)
		}
		sb.WriteString("\n")
	}

	fmt.Fprintf(&sb, "SCAMMER'S MESSAGE: %q\n\n", inbound)
	sb.WriteString(`Generate a single, natural response that keeps the scammer engaged.
YOUR RESPONSE (just the message, no quotes):`)

	return sb.String()
}

// FallbackResponder cycles a fixed list of information-baiting prompts.
// Safe for concurrent use. It also satisfies Generator so an LLM-less
// deployment can run on the rotation alone.
type FallbackResponder struct {
	mu      sync.Mutex
	prompts []string
	index   int
}

// NewFallbackResponder creates a responder over the given rotation.
func NewFallbackResponder(prompts []string) *FallbackResponder {
	return &FallbackResponder{prompts: append([]string(nil), prompts...)}
}

// Next returns the next prompt in rotation and its audit note.
func (f *FallbackResponder) Next() (string, string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	reply := f.prompts[f.index]
	f.index = (f.index + 1) % len(f.prompts)
	return reply, "LLM unavailable - using fallback prompt"
}

// Generate implements Generator over the rotation.
func (f *FallbackResponder) Generate(context.Context, string, []protocol.Message, string, int) (string, string, error) {
	reply, note := f.Next()
	return reply, note, nil
}
