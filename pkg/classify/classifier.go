// Package classify scores inbound messages for scam intent. Detection is
// hybrid: keyword density and category phrase matching run locally on every
// message, an optional semantic detector can sharpen the category stage, and
// an optional external LLM verdict is blended in for borderline traffic.
package classify

import (
	"context"
	"log"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/TryMightyAI/decoy/pkg/config"
	"github.com/TryMightyAI/decoy/pkg/protocol"
)

// Result is the outcome of classifying a single message.
type Result struct {
	IsScam          bool
	Confidence      float64
	ScamType        string
	KeywordScore    float64
	PatternScore    float64
	MatchedKeywords []string
	External        *Verdict // nil when the external classifier did not run
}

// ExternalClassifier produces an LLM verdict for a message in its
// conversational context. Implementations must respect ctx cancellation.
type ExternalClassifier interface {
	Classify(ctx context.Context, text string, history []protocol.Message) (*Verdict, error)
}

// SemanticScorer reports the closest scam category to a text and the
// similarity score, in [0,1].
type SemanticScorer interface {
	Score(ctx context.Context, text string) (category string, score float64, err error)
}

type category struct {
	name    string
	phrases []string
}

// Classifier combines keyword, pattern, semantic, and LLM signals into a
// single confidence per message. Safe for concurrent use.
type Classifier struct {
	keywords   []string
	categories []category

	threshold      float64
	gateThreshold  float64
	keywordDivisor int
	wKeywordLLM    float64
	wPatternLLM    float64
	wLLM           float64
	wKeywordLocal  float64
	wPatternLocal  float64
	externalCatMin float64

	external ExternalClassifier
	semantic SemanticScorer
}

// New builds a classifier from config thresholds and the seeded keyword and
// category lists. external and semantic may be nil; the classifier degrades
// to pure local scoring.
func New(cfg *config.Config, seeds *config.Seeds, external ExternalClassifier, semantic SemanticScorer) *Classifier {
	keywords := make([]string, 0, len(seeds.Keywords))
	for _, kw := range seeds.Keywords {
		keywords = append(keywords, strings.ToLower(kw))
	}

	categories := make([]category, 0, len(seeds.Categories))
	for _, pc := range seeds.Categories {
		phrases := make([]string, 0, len(pc.Phrases))
		for _, p := range pc.Phrases {
			phrases = append(phrases, strings.ToLower(p))
		}
		categories = append(categories, category{name: pc.Name, phrases: phrases})
	}

	return &Classifier{
		keywords:       keywords,
		categories:     categories,
		threshold:      cfg.ScamThreshold,
		gateThreshold:  cfg.LLMGateThreshold,
		keywordDivisor: cfg.KeywordDivisor,
		wKeywordLLM:    cfg.WeightKeywordLLM,
		wPatternLLM:    cfg.WeightPatternLLM,
		wLLM:           cfg.WeightLLM,
		wKeywordLocal:  cfg.WeightKeywordLocal,
		wPatternLocal:  cfg.WeightPatternLocal,
		externalCatMin: cfg.ExternalCategoryMin,
		external:       external,
		semantic:       semantic,
	}
}

// Classify scores a single message. history gives the external classifier
// conversational context; local stages ignore it. Never returns an error:
// external and semantic failures are absorbed into a local-only score.
func (c *Classifier) Classify(ctx context.Context, text string, history []protocol.Message) Result {
	lower := strings.ToLower(norm.NFKC.String(text))

	kwScore, matched := c.keywordScore(lower)
	patType, patScore := c.patternMatch(lower)

	if c.semantic != nil {
		cat, score, err := c.semantic.Score(ctx, lower)
		if err != nil {
			log.Printf("[WARN] Semantic scoring failed: %v", err)
		} else if score > patScore && config.KnownCategory(cat) {
			patType, patScore = cat, score
		}
	}

	var verdict *Verdict
	if c.external != nil && kwScore > c.gateThreshold {
		v, err := c.external.Classify(ctx, text, history)
		if err != nil {
			log.Printf("[WARN] External classification failed: %v", err)
		} else {
			verdict = v
		}
	}

	res := Result{
		KeywordScore:    kwScore,
		PatternScore:    patScore,
		MatchedKeywords: matched,
		External:        verdict,
	}

	if verdict != nil && verdict.Confidence > 0 {
		res.Confidence = kwScore*c.wKeywordLLM + patScore*c.wPatternLLM + verdict.Confidence*c.wLLM
		if verdict.Confidence > c.externalCatMin {
			res.ScamType = verdict.ScamType
		} else {
			res.ScamType = patType
		}
	} else {
		res.Confidence = kwScore*c.wKeywordLocal + patScore*c.wPatternLocal
		res.ScamType = patType
	}

	res.IsScam = res.Confidence >= c.threshold
	return res
}

func (c *Classifier) keywordScore(lower string) (float64, []string) {
	var found []string
	for _, kw := range c.keywords {
		if strings.Contains(lower, kw) {
			found = append(found, kw)
		}
	}
	if len(found) == 0 {
		return 0, nil
	}
	score := float64(len(found)) / float64(c.keywordDivisor)
	if score > 1.0 {
		score = 1.0
	}
	return score, found
}

// patternMatch returns the best-matching category and the fraction of its
// phrases present in the text. Ties keep the earlier category.
func (c *Classifier) patternMatch(lower string) (string, float64) {
	bestType, bestScore := config.CategoryUnknown, 0.0
	for _, cat := range c.categories {
		matches := 0
		for _, p := range cat.phrases {
			if strings.Contains(lower, p) {
				matches++
			}
		}
		if matches == 0 {
			continue
		}
		score := float64(matches) / float64(len(cat.phrases))
		if score > bestScore {
			bestType, bestScore = cat.name, score
		}
	}
	return bestType, bestScore
}
