package intel

import (
	"reflect"
	"testing"

	"github.com/TryMightyAI/decoy/pkg/config"
	"github.com/TryMightyAI/decoy/pkg/protocol"
)

func newTestExtractor() *Extractor {
	seeds := config.DefaultSeeds()
	return New(seeds.Keywords, seeds.TrustedDomains)
}

func TestBankAccounts(t *testing.T) {
	e := newTestExtractor()
	tests := []struct {
		name string
		text string
		want []string
	}{
		{"plain account number", "transfer to 1234567890 today", []string{"1234567890"}},
		{"eighteen digits", "account 123456789012345678 is ready", []string{"123456789012345678"}},
		{"nine digits too short", "code 123456789 only", nil},
		{"year-like prefix filtered", "since 2024010199 we are open", nil},
		{"multiple accounts", "use 9988776655 or 5566778899", []string{"9988776655", "5566778899"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := e.BankAccounts(tt.text); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("BankAccounts(%q) = %v, want %v", tt.text, got, tt.want)
			}
		})
	}
}

func TestUPIIDs(t *testing.T) {
	e := newTestExtractor()
	tests := []struct {
		name string
		text string
		want []string
	}{
		{"upi handle", "pay me at fraudster@paytm now", []string{"fraudster@paytm"}},
		{"email excluded", "write to someone@gmail.com", nil},
		{"mixed", "send to scam.artist@ybl not help@yahoo.com", []string{"scam.artist@ybl"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := e.UPIIDs(tt.text); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("UPIIDs(%q) = %v, want %v", tt.text, got, tt.want)
			}
		})
	}
}

func TestPhoneNumbersNormalization(t *testing.T) {
	e := newTestExtractor()
	// Every spelling of the same number must extract identically.
	tests := []struct {
		name string
		text string
	}{
		{"bare ten digits", "call 9876543210 now"},
		{"plus prefix", "call +919876543210 now"},
		{"prefix with space", "call +91 9876543210 now"},
		{"prefix with dash", "call +91-9876543210 now"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := e.PhoneNumbers(tt.text)
			if !reflect.DeepEqual(got, []string{"+919876543210"}) {
				t.Errorf("PhoneNumbers(%q) = %v, want [+919876543210]", tt.text, got)
			}
		})
	}
}

func TestPhoneNumbersRejectsInvalidStart(t *testing.T) {
	e := newTestExtractor()
	if got := e.PhoneNumbers("call 6876543210 now"); got != nil {
		t.Errorf("numbers starting below 7 should not match, got %v", got)
	}
}

func TestPhishingLinks(t *testing.T) {
	e := newTestExtractor()
	tests := []struct {
		name string
		text string
		want int
	}{
		{"shortener", "click http://bit.ly/abc", 1},
		{"phishing keyword", "go to https://example.com/verify-account", 1},
		{"low trust tld", "visit https://freemoney.xyz", 1},
		{"unknown domain reported", "see https://example.com/page", 1},
		{"trusted domain clean", "docs at https://google.com/drive", 0},
		{"trusted domain with indicator still reported", "login at https://google.com/login-verify", 1},
		{"no urls", "no links here", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := e.PhishingLinks(tt.text); len(got) != tt.want {
				t.Errorf("PhishingLinks(%q) = %v, want %d links", tt.text, got, tt.want)
			}
		})
	}
}

func TestSuspiciousKeywords(t *testing.T) {
	e := newTestExtractor()
	got := e.SuspiciousKeywords("URGENT: verify your account immediately")
	if len(got) == 0 {
		t.Fatal("expected keyword hits")
	}
	seen := map[string]bool{}
	for _, kw := range got {
		seen[kw] = true
	}
	for _, want := range []string{"urgent", "verify", "account", "immediately"} {
		if !seen[want] {
			t.Errorf("keyword %q not found in %v", want, got)
		}
	}
}

func TestFromText(t *testing.T) {
	e := newTestExtractor()
	intel := e.FromText("Pay 5566778899 or fraud@upi, call +91 9876543210, link http://tinyurl.com/x")

	if len(intel.BankAccounts) == 0 {
		t.Error("bank account not extracted")
	}
	if !reflect.DeepEqual(intel.UPIIDs, []string{"fraud@upi"}) {
		t.Errorf("UPIIDs = %v", intel.UPIIDs)
	}
	if !reflect.DeepEqual(intel.PhoneNumbers, []string{"+919876543210"}) {
		t.Errorf("PhoneNumbers = %v", intel.PhoneNumbers)
	}
	if len(intel.PhishingLinks) != 1 {
		t.Errorf("PhishingLinks = %v", intel.PhishingLinks)
	}
}

func TestFromTextNormalizesFullwidth(t *testing.T) {
	e := newTestExtractor()
	// Fullwidth digits fold to ASCII under NFKC before extraction.
	intel := e.FromText("call ９８７６５４３２１０ now")
	if !reflect.DeepEqual(intel.PhoneNumbers, []string{"+919876543210"}) {
		t.Errorf("PhoneNumbers = %v, want [+919876543210]", intel.PhoneNumbers)
	}
}

func TestFromConversationOnlyCounterparty(t *testing.T) {
	e := newTestExtractor()
	messages := []protocol.Message{
		{Sender: protocol.SenderScammer, Text: "pay to fraud@paytm"},
		{Sender: protocol.SenderAgent, Text: "is it really mine@okhdfc?"}, // decoy's own text is not intelligence
		{Sender: protocol.SenderScammer, Text: "or call +91 9876543210"},
	}

	intel := e.FromConversation(messages)
	if !reflect.DeepEqual(intel.UPIIDs, []string{"fraud@paytm"}) {
		t.Errorf("UPIIDs = %v, want only the caller's handle", intel.UPIIDs)
	}
	if !reflect.DeepEqual(intel.PhoneNumbers, []string{"+919876543210"}) {
		t.Errorf("PhoneNumbers = %v", intel.PhoneNumbers)
	}
}

func TestFromConversationMergesAndDedupes(t *testing.T) {
	e := newTestExtractor()
	messages := []protocol.Message{
		{Sender: protocol.SenderScammer, Text: "pay to fraud@paytm"},
		{Sender: protocol.SenderScammer, Text: "I said pay fraud@paytm and also crook@ybl"},
	}

	intel := e.FromConversation(messages)
	if !reflect.DeepEqual(intel.UPIIDs, []string{"crook@ybl", "fraud@paytm"}) {
		t.Errorf("UPIIDs = %v, want sorted dedup", intel.UPIIDs)
	}
}
