package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/TryMightyAI/decoy/pkg/admission"
	"github.com/TryMightyAI/decoy/pkg/classify"
	"github.com/TryMightyAI/decoy/pkg/config"
	"github.com/TryMightyAI/decoy/pkg/engage"
	"github.com/TryMightyAI/decoy/pkg/honeypot"
	"github.com/TryMightyAI/decoy/pkg/intel"
	"github.com/TryMightyAI/decoy/pkg/llm"
	"github.com/TryMightyAI/decoy/pkg/protocol"
	"github.com/TryMightyAI/decoy/pkg/report"
	"github.com/TryMightyAI/decoy/pkg/session"
)

const Version = "1.0.0"

// pipeline holds the assembled components. The chat-backed pieces are
// optional and degrade gracefully when no provider is configured.
type pipeline struct {
	cfg      *config.Config
	seeds    *config.Seeds
	orch     *honeypot.Orchestrator
	limiter  admission.Limiter
	callback *report.Client
}

func newPipeline(cfg *config.Config) *pipeline {
	seeds := config.LoadSeeds(cfg.SeedDir)

	chat := llm.NewClient(llm.Options{
		Provider: cfg.LLMProvider,
		APIKey:   cfg.LLMAPIKey,
		Model:    cfg.LLMModel,
		BaseURL:  cfg.LLMBaseURL,
		Timeout:  cfg.LLMTimeout,
	})

	var external classify.ExternalClassifier
	var generator engage.Generator
	if chat != nil {
		external = classify.NewLLMClassifier(chat)
		generator = engage.NewLLMGenerator(chat)
		log.Printf("✓ LLM enabled (provider: %s, model: %s)", cfg.LLMProvider, chat.Model())
	} else {
		log.Println("○ LLM disabled (no provider configured) - local scoring and fallback prompts only")
	}

	var semantic classify.SemanticScorer
	if cfg.EnableSemantics {
		if sd := newSemanticDetector(cfg, seeds); sd != nil {
			semantic = sd
		}
	}

	classifier := classify.New(cfg, seeds, external, semantic)
	extractor := intel.New(seeds.Keywords, seeds.TrustedDomains)
	fallback := engage.NewFallbackResponder(seeds.FallbackPrompts)

	orch := honeypot.New(session.NewStore(), classifier, extractor, generator, fallback, cfg.GenerateTimeout)

	var limiter admission.Limiter
	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		limiter = admission.NewRedisLimiter(client, cfg.PerMinuteCap, cfg.PerDayCap)
		log.Printf("✓ Rate limiting via Redis at %s (%d/min, %d/day)", cfg.RedisAddr, cfg.PerMinuteCap, cfg.PerDayCap)
	} else {
		limiter = admission.NewMemoryLimiter(cfg.PerMinuteCap, cfg.PerDayCap)
		log.Printf("○ Rate limiting in memory (%d/min, %d/day) - set DECOY_REDIS_ADDR for a shared quota", cfg.PerMinuteCap, cfg.PerDayCap)
	}

	callback := report.NewClient(cfg.CallbackURL, cfg.CallbackTimeout, cfg.CallbackRetries)
	if callback != nil {
		log.Printf("✓ Result callback enabled (%s)", cfg.CallbackURL)
	} else {
		log.Println("○ Result callback disabled (no URL configured)")
	}

	return &pipeline{cfg: cfg, seeds: seeds, orch: orch, limiter: limiter, callback: callback}
}

// newSemanticDetector wires the embedding-based category scorer. Requires a
// reachable embedding backend; any failure just disables the layer.
func newSemanticDetector(cfg *config.Config, seeds *config.Seeds) *classify.SemanticDetector {
	baseURL := cfg.LLMBaseURL
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}

	sd, err := classify.NewSemanticDetector(classify.NewOllamaEmbeddingFunc(cfg.EmbeddingModel, baseURL), cfg.SemanticThreshold)
	if err != nil {
		log.Printf("○ Semantic detection disabled (init failed: %v)", err)
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()
	if err := sd.LoadMarkers(ctx, seeds.Categories); err != nil {
		log.Printf("○ Semantic detection disabled (marker load failed: %v)", err)
		return nil
	}
	log.Println("✓ Semantic detection enabled (chromem-go embeddings)")
	return sd
}

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "serve":
		port := "8000"
		if len(os.Args) > 2 {
			port = os.Args[2]
		}
		runHTTPServer(port)
	case "scan":
		if len(os.Args) < 3 {
			fmt.Println("Usage: decoy scan <text>")
			os.Exit(1)
		}
		runCLIScan(strings.Join(os.Args[2:], " "))
	case "version":
		fmt.Printf("Decoy v%s\n", Version)
		fmt.Println("Conversational scam honeypot")
	default:
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Printf("Decoy v%s - conversational scam honeypot\n\n", Version)
	fmt.Println("Usage:")
	fmt.Println("  decoy serve [port]   Start HTTP server (default: 8000)")
	fmt.Println("  decoy scan <text>    Classify a message and extract intelligence")
	fmt.Println("  decoy version        Show version")
	fmt.Println("")
	fmt.Println("Examples:")
	fmt.Println("  decoy serve 8080")
	fmt.Println("  decoy scan \"Your account is blocked, verify now\"")
	fmt.Println("")
	fmt.Println("Environment Variables:")
	fmt.Println("  DECOY_API_KEY        API key required in X-Api-Key")
	fmt.Println("  DECOY_LLM_PROVIDER   Provider: ollama, openrouter, groq, openai, custom")
	fmt.Println("  DECOY_REDIS_ADDR     Redis address for shared rate limiting")
	fmt.Println("  DECOY_CALLBACK_URL   Receiver for final session reports")
	fmt.Println("  DECOY_SEED_DIR       Directory holding decoy_seeds.yaml")
}

// ============================================================================
// HTTP Server Mode
// ============================================================================

func runHTTPServer(port string) {
	cfg := config.NewDefaultConfig()
	cfg.MustValidate()
	p := newPipeline(cfg)

	if cfg.APIKey == "" {
		log.Println("[WARN] DECOY_API_KEY not set - running in open development mode")
	}

	app := fiber.New(fiber.Config{
		AppName: "Decoy",
	})

	// Request-ID + access logging.
	app.Use(func(c fiber.Ctx) error {
		rid := c.Get("X-Request-Id")
		if rid == "" {
			rid = uuid.NewString()
		}
		c.Set("X-Request-Id", rid)

		start := time.Now()
		err := c.Next()
		log.Printf("[INFO] %s %s -> %d (%dms) rid=%s",
			c.Method(), c.Path(), c.Response().StatusCode(), time.Since(start).Milliseconds(), rid)
		return err
	})

	// API-key auth for everything but liveness.
	app.Use(func(c fiber.Ctx) error {
		switch c.Path() {
		case "/", "/health":
			return c.Next()
		}
		if cfg.APIKey != "" && c.Get("X-Api-Key") != cfg.APIKey {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"detail": "Invalid API key"})
		}
		return c.Next()
	})

	app.Get("/", func(c fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"service": "Decoy honeypot API",
			"version": Version,
			"status":  "active",
		})
	})

	app.Get("/health", func(c fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":   "healthy",
			"version":  Version,
			"sessions": p.orch.Store().Len(),
		})
	})

	app.Post("/api/honeypot", func(c fiber.Ctx) error {
		identity := identityOf(c)

		decision, err := p.limiter.Check(c.Context(), identity)
		if err != nil {
			log.Printf("[WARN] Rate limit check error for %s: %v", identity, err)
		}
		if !decision.Allowed {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{"detail": decision.Reason})
		}

		var req protocol.EngageRequest
		if err := c.Bind().Body(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"detail": "Invalid JSON format"})
		}
		if err := req.Validate(); err != nil {
			return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{"detail": fmt.Sprintf("Validation failed: %v", err)})
		}

		// Only admitted, well-formed messages consume quota.
		if err := p.limiter.Record(c.Context(), identity); err != nil {
			log.Printf("[WARN] Rate limit record error for %s: %v", identity, err)
		}

		resp, err := p.orch.Process(c.Context(), &req)
		if err != nil {
			if errors.Is(err, honeypot.ErrInvalidRequest) {
				return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{"detail": err.Error()})
			}
			log.Printf("[WARN] Processing failed for session %s: %v", req.SessionID, err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"detail": "Internal processing error"})
		}
		return c.JSON(resp)
	})

	app.Get("/api/session/:id", func(c fiber.Ctx) error {
		s, ok := p.orch.Store().Snapshot(c.Params("id"))
		if !ok {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"detail": "Session not found"})
		}
		return c.JSON(fiber.Map{
			"session_id":    s.ID,
			"message_count": s.MessageCount,
			"scam_detected": s.ScamDetected,
			"scam_type":     s.ScamType,
			"confidence":    s.Confidence,
			"engaged":       s.Engaged(cfg.EngagementThreshold),
			"callback_sent": s.CallbackSent,
			"intelligence":  s.Intelligence,
			"agent_notes":   s.AgentNotes,
		})
	})

	// Removing a session ends the engagement; the final report goes out in
	// the background if a receiver is configured.
	app.Delete("/api/session/:id", func(c fiber.Ctx) error {
		id := c.Params("id")
		s, ok := p.orch.Store().Snapshot(id)
		if !ok {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"detail": "Session not found"})
		}
		if p.callback != nil && !s.CallbackSent {
			p.callback.SendAsync(report.PayloadFromSession(s))
		}
		p.orch.Store().Remove(id)
		return c.JSON(fiber.Map{"deleted": true, "session_id": id})
	})

	app.Get("/api/rate-limit", func(c fiber.Ctx) error {
		perMin, perDay, err := p.limiter.Remaining(c.Context(), identityOf(c))
		if err != nil {
			log.Printf("[WARN] Rate limit status error: %v", err)
		}
		return c.JSON(fiber.Map{
			"limits": fiber.Map{
				"requests_per_minute": cfg.PerMinuteCap,
				"requests_per_day":    cfg.PerDayCap,
			},
			"remaining": fiber.Map{
				"requests_per_minute": perMin,
				"requests_per_day":    perDay,
			},
		})
	})

	log.Printf("[INFO] Decoy v%s listening on :%s", Version, port)
	if err := app.Listen(":" + port); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}

// identityOf keys rate limiting by API key, falling back to the client IP
// for unauthenticated development mode.
func identityOf(c fiber.Ctx) string {
	if key := c.Get("X-Api-Key"); key != "" {
		return key
	}
	return c.IP()
}

// ============================================================================
// CLI Scan Mode
// ============================================================================

func runCLIScan(text string) {
	cfg := config.NewDefaultConfig()
	seeds := config.LoadSeeds(cfg.SeedDir)

	var external classify.ExternalClassifier
	chat := llm.NewClient(llm.Options{
		Provider: cfg.LLMProvider,
		APIKey:   cfg.LLMAPIKey,
		Model:    cfg.LLMModel,
		BaseURL:  cfg.LLMBaseURL,
		Timeout:  cfg.LLMTimeout,
	})
	if chat != nil {
		external = classify.NewLLMClassifier(chat)
	}

	classifier := classify.New(cfg, seeds, external, nil)
	extractor := intel.New(seeds.Keywords, seeds.TrustedDomains)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	res := classifier.Classify(ctx, text, nil)
	intelligence := extractor.FromText(text)

	out := struct {
		Text         string                `json:"text"`
		IsScam       bool                  `json:"is_scam"`
		Confidence   float64               `json:"confidence"`
		ScamType     string                `json:"scam_type"`
		KeywordScore float64               `json:"keyword_score"`
		PatternScore float64               `json:"pattern_score"`
		Keywords     []string              `json:"matched_keywords,omitempty"`
		Intelligence protocol.Intelligence `json:"intelligence"`
	}{
		Text:         text,
		IsScam:       res.IsScam,
		Confidence:   res.Confidence,
		ScamType:     res.ScamType,
		KeywordScore: res.KeywordScore,
		PatternScore: res.PatternScore,
		Keywords:     res.MatchedKeywords,
		Intelligence: intelligence,
	}

	encoded, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		log.Fatalf("Failed to encode result: %v", err)
	}
	fmt.Println(string(encoded))
}
