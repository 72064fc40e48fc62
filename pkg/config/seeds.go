package config

import (
	"fmt"
	"log"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Scam categories used by the classifier and the semantic detector.
// Order matters: pattern-score ties keep the first-seen category.
const (
	CategoryBankFraud = "bank_fraud"
	CategoryUPIFraud  = "upi_fraud"
	CategoryPhishing  = "phishing"
	CategoryFakeOffer = "fake_offer"
	CategoryUnknown   = "unknown"
)

// KnownCategory reports whether a category token belongs to the closed set.
func KnownCategory(cat string) bool {
	switch cat {
	case CategoryBankFraud, CategoryUPIFraud, CategoryPhishing, CategoryFakeOffer:
		return true
	}
	return false
}

// PatternCategory groups the marker phrases of one scam category.
type PatternCategory struct {
	Name    string   `yaml:"name"`
	Phrases []string `yaml:"phrases"`
}

// Seeds holds the detection wordlists. Loaded from YAML seed files when
// present, falling back to the built-in lists otherwise.
type Seeds struct {
	// Keywords feed both the classifier's keyword score and the
	// extractor's suspicious-keyword scan.
	Keywords []string `yaml:"keywords"`

	// Categories holds per-category scam marker phrases, in canonical order.
	Categories []PatternCategory `yaml:"categories"`

	// FallbackPrompts rotate when the response generator is unavailable.
	FallbackPrompts []string `yaml:"fallback_prompts"`

	// TrustedDomains short-circuit the phishing-link scan.
	TrustedDomains []string `yaml:"trusted_domains"`
}

// seedFileName is the single seed file looked up inside the seed directory.
const seedFileName = "decoy_seeds.yaml"

// FindSeedDir locates the YAML seed directory. Checks DECOY_SEED_DIR,
// then ./config and ./seeds relative to the working directory.
// Returns "" when no candidate exists.
func FindSeedDir() string {
	candidates := []string{os.Getenv("DECOY_SEED_DIR"), "config", "seeds"}
	for _, dir := range candidates {
		if dir == "" {
			continue
		}
		if info, err := os.Stat(filepath.Join(dir, seedFileName)); err == nil && !info.IsDir() {
			return dir
		}
	}
	return ""
}

// LoadSeeds reads the seed file from dir, with the built-in lists filling
// any section the file omits. A missing or malformed file is not an error:
// the built-ins are used and a warning is logged, so a bad deployment
// artifact can never disable detection.
func LoadSeeds(dir string) *Seeds {
	defaults := DefaultSeeds()
	if dir == "" {
		dir = FindSeedDir()
	}
	if dir == "" {
		return defaults
	}

	path := filepath.Join(dir, seedFileName)
	data, err := os.ReadFile(path)
	if err != nil {
		log.Printf("[WARN] Could not read %s: %v. Using built-in seeds.", path, err)
		return defaults
	}

	var loaded Seeds
	if err := yaml.Unmarshal(data, &loaded); err != nil {
		log.Printf("[WARN] Could not parse %s: %v. Using built-in seeds.", path, err)
		return defaults
	}

	merged := mergeSeeds(&loaded, defaults)
	if err := merged.validate(); err != nil {
		log.Printf("[WARN] Invalid seed file %s: %v. Using built-in seeds.", path, err)
		return defaults
	}
	log.Printf("[INFO] Loaded detection seeds from %s", path)
	return merged
}

func mergeSeeds(loaded, defaults *Seeds) *Seeds {
	out := *loaded
	if len(out.Keywords) == 0 {
		out.Keywords = defaults.Keywords
	}
	if len(out.Categories) == 0 {
		out.Categories = defaults.Categories
	}
	if len(out.FallbackPrompts) == 0 {
		out.FallbackPrompts = defaults.FallbackPrompts
	}
	if len(out.TrustedDomains) == 0 {
		out.TrustedDomains = defaults.TrustedDomains
	}
	return &out
}

func (s *Seeds) validate() error {
	for _, cat := range s.Categories {
		if cat.Name == "" {
			return fmt.Errorf("category with empty name")
		}
		if len(cat.Phrases) == 0 {
			return fmt.Errorf("category %q has no phrases", cat.Name)
		}
	}
	return nil
}

// DefaultSeeds returns the built-in detection lists.
func DefaultSeeds() *Seeds {
	return &Seeds{
		Keywords: []string{
			"urgent", "verify", "blocked", "suspend", "otp", "click", "link",
			"account", "bank", "upi", "immediately", "action required", "expired",
			"warning", "alert", "security", "unauthorized", "locked", "pending",
			"confirm", "update", "validate", "kyc", "pan", "aadhaar", "deactivate",
			"refund", "lottery", "prize", "winner", "claim", "offer", "limited time",
		},
		Categories: []PatternCategory{
			{Name: CategoryBankFraud, Phrases: []string{
				"bank account", "blocked", "suspend", "deactivate", "unauthorized transaction",
			}},
			{Name: CategoryUPIFraud, Phrases: []string{
				"upi", "upi id", "upi pin", "payment failed", "refund",
			}},
			{Name: CategoryPhishing, Phrases: []string{
				"click here", "verify now", "update details", "login", "password",
			}},
			{Name: CategoryFakeOffer, Phrases: []string{
				"winner", "prize", "lottery", "claim", "offer", "cashback", "reward",
			}},
		},
		FallbackPrompts: []string{
			"Oh really? Can you tell me more? What number should I call you on?",
			"I'm interested! But I'm confused, can you send me the link again?",
			"Wait, which bank account should I transfer to? Can you share the details?",
			"I want to do this! What's your UPI ID so I can pay?",
			"Sorry, I didn't get that. Can you share your phone number? I'll call you.",
			"This sounds great! Where do I send the money? Give me account number and IFSC.",
			"I'm ready to proceed! Just share the payment link one more time?",
			"My son handles my phone. Can you give me a number to call you directly?",
			"I'll do it right now! Just confirm - what's the UPI ID again?",
			"Oh I see! Can you WhatsApp me the details? What's your number?",
			"I'm at the bank now. Which account name and number should I use?",
			"The link isn't working. Can you send it again? Or give me another way to pay?",
			"I trust you! Just tell me where to send money - UPI, account, anything works!",
			"My eyes are weak, can you call me and explain? Share your number please.",
			"I'm convinced! Send me all the payment details - account, UPI, or link.",
		},
		TrustedDomains: []string{"google.com", "microsoft.com", "apple.com"},
	}
}
