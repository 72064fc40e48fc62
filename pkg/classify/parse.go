package classify

import (
	"strconv"
	"strings"

	"github.com/TryMightyAI/decoy/pkg/config"
)

// Verdict is a decoded external classification. Missing lists the labels
// absent from the raw reply; absent fields carry neutral defaults.
type Verdict struct {
	IsScam     bool
	Confidence float64
	ScamType   string
	Reason     string
	Missing    []string
}

const defaultConfidence = 0.5

// ParseVerdict decodes the labeled free-text reply format:
//
//	IS_SCAM: yes
//	CONFIDENCE: 0.9
//	SCAM_TYPE: bank_fraud
//	REASON: threatens account blocking
//
// Decoding is best-effort field by field. Models pad replies with markdown
// or preambles, so each label is located anywhere in the text and only its
// own line is consumed. A missing or garbled field falls back to a neutral
// default rather than failing the verdict.
func ParseVerdict(raw string) Verdict {
	lower := strings.ToLower(raw)
	v := Verdict{Confidence: defaultConfidence, ScamType: config.CategoryUnknown}

	if line, ok := lineAfter(lower, "is_scam:"); ok {
		v.IsScam = strings.Contains(line, "yes")
	} else {
		v.Missing = append(v.Missing, "is_scam")
	}

	if line, ok := lineAfter(lower, "confidence:"); ok {
		v.Confidence = parseConfidence(line)
	} else {
		v.Missing = append(v.Missing, "confidence")
	}

	if line, ok := lineAfter(lower, "scam_type:"); ok {
		st := strings.ReplaceAll(strings.TrimSpace(line), " ", "_")
		st = strings.Trim(st, "[]*_")
		if config.KnownCategory(st) {
			v.ScamType = st
		}
	} else {
		v.Missing = append(v.Missing, "scam_type")
	}

	if line, ok := lineAfter(lower, "reason:"); ok {
		v.Reason = strings.TrimSpace(line)
	} else {
		v.Missing = append(v.Missing, "reason")
	}

	return v
}

// lineAfter returns the text between the first occurrence of marker and the
// next newline.
func lineAfter(text, marker string) (string, bool) {
	idx := strings.Index(text, marker)
	if idx < 0 {
		return "", false
	}
	rest := text[idx+len(marker):]
	if nl := strings.IndexByte(rest, '\n'); nl >= 0 {
		rest = rest[:nl]
	}
	return rest, true
}

// parseConfidence keeps only digits and dots, so "0.9 (high)" and
// "**0.85**" both decode. Unparseable values read as the neutral default;
// values above 1 clamp down.
func parseConfidence(line string) float64 {
	var b strings.Builder
	for _, r := range line {
		if (r >= '0' && r <= '9') || r == '.' {
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return defaultConfidence
	}
	f, err := strconv.ParseFloat(b.String(), 64)
	if err != nil {
		return defaultConfidence
	}
	if f > 1.0 {
		f = 1.0
	}
	return f
}
