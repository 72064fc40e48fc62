package classify

import (
	"context"
	"fmt"
	"strings"

	"github.com/TryMightyAI/decoy/pkg/llm"
	"github.com/TryMightyAI/decoy/pkg/protocol"
)

// historyWindow bounds how much conversation context goes into the prompt.
const historyWindow = 5

// LLMClassifier asks a chat model for a scam verdict. It satisfies
// ExternalClassifier.
type LLMClassifier struct {
	client *llm.Client
}

// NewLLMClassifier wraps a chat client. Returns nil for a nil client so the
// caller can pass the result straight to New.
func NewLLMClassifier(client *llm.Client) *LLMClassifier {
	if client == nil {
		return nil
	}
	return &LLMClassifier{client: client}
}

// Classify sends the message and recent history to the model and decodes the
// labeled reply. The reply format is free text, so decoding never fails;
// only transport errors surface.
func (l *LLMClassifier) Classify(ctx context.Context, text string, history []protocol.Message) (*Verdict, error) {
	raw, err := l.client.Complete(ctx, "", l.prompt(text, history))
	if err != nil {
		return nil, err
	}
	v := ParseVerdict(raw)
	return &v, nil
}

func (l *LLMClassifier) prompt(text string, history []protocol.Message) string {
	var sb strings.Builder
	sb.WriteString(`Analyze this message for scam/fraud intent. Consider:
- Bank fraud (account blocking threats, unauthorized access claims)
- UPI fraud (payment requests, refund scams)
- Phishing (fake links, credential requests)
- Fake offers (lottery, prizes, too-good-to-be-true deals)

`)

	if len(history) > 0 {
		start := len(history) - historyWindow
		if start < 0 {
			start = 0
		}
		sb.WriteString("Previous conversation:\n")
		for _, m := range history[start:] {
			fmt.Fprintf(&sb, "%s: %s\n", m.Sender, m.Text)
		}
		sb.WriteString("\n")
	}

	fmt.Fprintf(&sb, "Current message: %q\n\n", text)
	sb.WriteString(`Respond in this exact format:
IS_SCAM: [yes/no]
CONFIDENCE: [0.0-1.0]
SCAM_TYPE: [bank_fraud/upi_fraud/phishing/fake_offer/unknown]
REASON: [brief explanation]`)

	return sb.String()
}
