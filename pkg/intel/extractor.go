// Package intel extracts actionable intelligence from scammer text:
// bank account numbers, UPI identifiers, phone numbers, phishing links,
// and suspicious keywords. Extraction is a family of pure functions over
// a single text blob; the conversation-level aggregator unions the
// per-message results for counterparty messages only.
//
// The extractors are best-effort signal, not adjudication: false
// positives are acceptable, duplicates collapse at merge time.
package intel

import (
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/TryMightyAI/decoy/pkg/protocol"
)

// Pre-compiled extraction patterns (compiled once, used many times).
var (
	reBankAccount = regexp.MustCompile(`\b\d{9,18}\b`)
	reUPI         = regexp.MustCompile(`[a-zA-Z0-9._-]+@[a-zA-Z0-9]+`)
	rePhone       = regexp.MustCompile(`(?:\+91[\-\s]?)?[789]\d{9}\b`)
	reURL         = regexp.MustCompile(`(?i)https?://[^\s<>"'{}|\\^` + "`" + `\[\]]+`)
	rePhoneJunk   = regexp.MustCompile(`[\s\-]`)
)

// Domains whose @-handles are personal email, not payment handles.
var emailDomains = []string{"gmail", "yahoo", "hotmail", "outlook", "email"}

// suspiciousURLIndicators flag a link regardless of its domain:
// shorteners, phishing-adjacent keywords, low-trust TLDs, financial keywords.
var suspiciousURLIndicators = []string{
	"bit.ly", "tinyurl", "goo.gl", "t.co",
	"login", "verify", "update", "secure",
	".xyz", ".tk", ".ml", ".ga", ".cf",
	"bank", "upi", "payment",
}

// Extractor recognizes intelligence patterns in message text.
// Safe for concurrent use; all state is immutable after construction.
type Extractor struct {
	keywords []string // lowercased
	trusted  []string // lowercased trusted domains
}

// New builds an Extractor over the configured suspicious-keyword list
// and trusted-domain allow-list.
func New(keywords, trustedDomains []string) *Extractor {
	e := &Extractor{
		keywords: make([]string, 0, len(keywords)),
		trusted:  make([]string, 0, len(trustedDomains)),
	}
	for _, kw := range keywords {
		e.keywords = append(e.keywords, strings.ToLower(kw))
	}
	for _, d := range trustedDomains {
		e.trusted = append(e.trusted, strings.ToLower(d))
	}
	return e
}

// Normalize applies NFKC normalization so full-width and compatibility
// characters cannot hide digits or keywords from the extractors.
func Normalize(text string) string {
	return norm.NFKC.String(text)
}

// BankAccounts returns digit runs that look like account numbers.
// Runs of 9-18 digits are candidates; runs shorter than 10 digits or
// starting with "20" (year-prefixed timestamps) are filtered out.
func (e *Extractor) BankAccounts(text string) []string {
	var out []string
	for _, m := range reBankAccount.FindAllString(text, -1) {
		if len(m) >= 10 && !strings.HasPrefix(m, "20") {
			out = append(out, m)
		}
	}
	return out
}

// UPIIDs returns local-part@handle tokens, excluding personal email
// domains: the extractor targets payment handles, not addresses.
func (e *Extractor) UPIIDs(text string) []string {
	var out []string
	for _, m := range reUPI.FindAllString(text, -1) {
		lower := strings.ToLower(m)
		if containsAny(lower, emailDomains) {
			continue
		}
		out = append(out, m)
	}
	return out
}

// PhoneNumbers returns Indian mobile numbers normalized to the canonical
// "+91" + 10 digits form regardless of the input prefix style.
func (e *Extractor) PhoneNumbers(text string) []string {
	var out []string
	for _, m := range rePhone.FindAllString(text, -1) {
		clean := rePhoneJunk.ReplaceAllString(m, "")
		if !strings.HasPrefix(clean, "+91") {
			clean = "+91" + clean[len(clean)-10:]
		}
		out = append(out, clean)
	}
	return out
}

// PhishingLinks returns URLs worth reporting. A URL is reported when it
// carries a suspicious indicator, or when it is not on the trusted-domain
// allow-list: the default posture is suspicious unless proven trusted.
// Trusted-domain URLs that carry an indicator are still reported.
func (e *Extractor) PhishingLinks(text string) []string {
	var out []string
	for _, url := range reURL.FindAllString(text, -1) {
		lower := strings.ToLower(url)
		if containsAny(lower, suspiciousURLIndicators) || !containsAny(lower, e.trusted) {
			out = append(out, url)
		}
	}
	return out
}

// SuspiciousKeywords returns every configured keyword present in the
// text, case-insensitively. Not deduplicated here; deduplication happens
// at merge time.
func (e *Extractor) SuspiciousKeywords(text string) []string {
	lower := strings.ToLower(text)
	var out []string
	for _, kw := range e.keywords {
		if strings.Contains(lower, kw) {
			out = append(out, kw)
		}
	}
	return out
}

// FromText runs all extractors over a single normalized text blob.
func (e *Extractor) FromText(text string) protocol.Intelligence {
	text = Normalize(text)
	return protocol.Intelligence{
		BankAccounts:       e.BankAccounts(text),
		UPIIDs:             e.UPIIDs(text),
		PhishingLinks:      e.PhishingLinks(text),
		PhoneNumbers:       e.PhoneNumbers(text),
		SuspiciousKeywords: e.SuspiciousKeywords(text),
	}
}

// FromConversation aggregates extraction over every counterparty message.
// The honeypot's own operator-role messages are never mined. Duplicates
// collapse through the set-union merge.
func (e *Extractor) FromConversation(messages []protocol.Message) protocol.Intelligence {
	var combined protocol.Intelligence
	for _, m := range messages {
		if !m.FromScammer() {
			continue
		}
		combined = combined.Merge(e.FromText(m.Text))
	}
	return combined
}

func containsAny(s string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(s, n) {
			return true
		}
	}
	return false
}
