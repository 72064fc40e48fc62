package classify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	chromem "github.com/philippgille/chromem-go"

	"github.com/TryMightyAI/decoy/pkg/config"
	"github.com/TryMightyAI/decoy/pkg/httputil"
)

// SemanticDetector scores messages against embedded scam marker phrases.
// It catches paraphrases the literal phrase match misses ("your account
// faces suspension" vs the seeded "account blocked"). Satisfies
// SemanticScorer.
type SemanticDetector struct {
	db         *chromem.DB
	collection *chromem.Collection
	threshold  float32
	mu         sync.RWMutex
	ready      bool
}

// NewSemanticDetector creates a detector backed by an in-process vector
// store. The embedding function determines the backend; see
// NewOllamaEmbeddingFunc.
func NewSemanticDetector(embeddingFunc chromem.EmbeddingFunc, threshold float32) (*SemanticDetector, error) {
	if embeddingFunc == nil {
		return nil, fmt.Errorf("embedding function is nil")
	}

	db := chromem.NewDB()
	collection, err := db.CreateCollection("scam_markers", nil, embeddingFunc)
	if err != nil {
		return nil, fmt.Errorf("failed to create collection: %w", err)
	}

	return &SemanticDetector{
		db:         db,
		collection: collection,
		threshold:  threshold,
	}, nil
}

// NewOllamaEmbeddingFunc builds an embedding function against Ollama's
// /api/embeddings endpoint, which chromem's stock OpenAI-format func does
// not speak.
func NewOllamaEmbeddingFunc(model, baseURL string) chromem.EmbeddingFunc {
	client := httputil.NewClient(30 * time.Second)

	return func(ctx context.Context, text string) ([]float32, error) {
		jsonData, err := json.Marshal(map[string]string{
			"model":  model,
			"prompt": text,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL+"/api/embeddings", bytes.NewBuffer(jsonData))
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("request failed: %w", err)
		}
		defer httputil.DrainAndClose(resp.Body)

		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("ollama embedding returned %d", resp.StatusCode)
		}

		var result struct {
			Embedding []float32 `json:"embedding"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
			return nil, fmt.Errorf("failed to decode response: %w", err)
		}
		return result.Embedding, nil
	}
}

// LoadMarkers embeds the seeded category phrases into the vector store.
// Documents are added with one worker to avoid overwhelming the embedding
// backend at startup.
func (sd *SemanticDetector) LoadMarkers(ctx context.Context, categories []config.PatternCategory) error {
	sd.mu.Lock()
	defer sd.mu.Unlock()

	var docs []chromem.Document
	for _, cat := range categories {
		for i, phrase := range cat.Phrases {
			docs = append(docs, chromem.Document{
				ID:       fmt.Sprintf("%s_%d", cat.Name, i),
				Content:  phrase,
				Metadata: map[string]string{"category": cat.Name},
			})
		}
	}
	if len(docs) == 0 {
		return fmt.Errorf("no marker phrases to load")
	}

	if err := sd.collection.AddDocuments(ctx, docs, 1); err != nil {
		return fmt.Errorf("failed to add markers: %w", err)
	}

	sd.ready = true
	return nil
}

// Score returns the nearest marker's category and similarity. Scores under
// the threshold report as zero so they never displace a literal phrase
// match.
func (sd *SemanticDetector) Score(ctx context.Context, text string) (string, float64, error) {
	sd.mu.RLock()
	defer sd.mu.RUnlock()

	if !sd.ready {
		return "", 0, fmt.Errorf("semantic detector not initialized - call LoadMarkers first")
	}

	results, err := sd.collection.Query(ctx, strings.ToLower(text), 3, nil, nil)
	if err != nil {
		return "", 0, fmt.Errorf("query failed: %w", err)
	}
	if len(results) == 0 {
		return config.CategoryUnknown, 0, nil
	}

	best := results[0]
	if best.Similarity < sd.threshold {
		return config.CategoryUnknown, 0, nil
	}
	return best.Metadata["category"], float64(best.Similarity), nil
}
