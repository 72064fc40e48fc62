// Package config holds global settings for the decoy honeypot.
// All settings can be configured via environment variables or
// programmatically; detection keyword and phrase lists can additionally
// be overridden by YAML seed files (see seeds.go).
package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"
)

// LLMProvider defines the backend LLM service type used for the external
// classification signal and the engagement response generator.
type LLMProvider string

const (
	ProviderNone       LLMProvider = "none"       // No LLM, local scoring only
	ProviderOllama     LLMProvider = "ollama"     // Local Ollama server
	ProviderOpenRouter LLMProvider = "openrouter" // OpenRouter (has free tier)
	ProviderGroq       LLMProvider = "groq"       // Groq (high-speed inference)
	ProviderOpenAI     LLMProvider = "openai"     // Direct OpenAI API
	ProviderCustom     LLMProvider = "custom"     // Custom OpenAI-compatible endpoint
)

// Config holds global settings for the honeypot pipeline.
type Config struct {
	// === Core Settings ===
	APIKey string // API key expected in X-Api-Key (env: DECOY_API_KEY)

	// === LLM Provider Configuration ===
	LLMProvider LLMProvider // Which LLM service to use, or "none"
	LLMAPIKey   string      // API key for cloud providers
	LLMModel    string      // Model identifier
	LLMBaseURL  string      // Custom base URL for self-hosted providers
	LLMTimeout  time.Duration

	// === Classifier Policy (0.0 - 1.0 unless noted) ===
	// These are policy constants, not derived values; tune per deployment.
	ScamThreshold    float64 // Blended confidence at/above this = scam (default: 0.4)
	LLMGateThreshold float64 // Keyword score must exceed this before the LLM is consulted (default: 0.2)
	KeywordDivisor   int     // Keyword score = min(matched/divisor, 1.0) (default: 5)

	// Blend weights when the external classifier contributed a signal.
	WeightKeywordLLM float64 // default: 0.3
	WeightPatternLLM float64 // default: 0.2
	WeightLLM        float64 // default: 0.5
	// Blend weights for local-only scoring.
	WeightKeywordLocal float64 // default: 0.6
	WeightPatternLocal float64 // default: 0.4
	// External category wins over the pattern category above this confidence.
	ExternalCategoryMin float64 // default: 0.5

	// === Semantic Detection (optional) ===
	EnableSemantics   bool   // Embedding similarity over scam marker phrases
	EmbeddingModel    string // Ollama embedding model (default: embeddinggemma)
	SemanticThreshold float32

	// === Admission Control ===
	PerMinuteCap int    // Requests per identity per 60s window (default: 10)
	PerDayCap    int    // Requests per identity per 86400s window (default: 100)
	RedisAddr    string // Non-empty selects the Redis admission backend

	// === Engagement ===
	EngagementThreshold int           // Messages before a session counts as engaged (default: 5)
	GenerateTimeout     time.Duration // Bound on one response-generation call

	// === Result Delivery ===
	CallbackURL     string
	CallbackTimeout time.Duration
	CallbackRetries int

	// === Seeds ===
	SeedDir string // Directory holding YAML seed files ("" = auto-detect)
}

// NewDefaultConfig creates a Config with sensible defaults.
// All settings can be overridden via environment variables.
func NewDefaultConfig() *Config {
	return &Config{
		APIKey: GetEnv("DECOY_API_KEY", ""),

		LLMProvider: detectLLMProvider(),
		LLMAPIKey:   GetEnv("DECOY_LLM_API_KEY", os.Getenv("OPENROUTER_API_KEY")),
		LLMModel:    GetEnv("DECOY_LLM_MODEL", ""),
		LLMBaseURL:  GetEnv("DECOY_LLM_BASE_URL", ""),
		LLMTimeout:  time.Duration(GetEnvInt("DECOY_LLM_TIMEOUT_MS", 30000)) * time.Millisecond,

		ScamThreshold:    GetEnvFloat("DECOY_SCAM_THRESHOLD", 0.4),
		LLMGateThreshold: GetEnvFloat("DECOY_LLM_GATE_THRESHOLD", 0.2),
		KeywordDivisor:   clampInt(GetEnvInt("DECOY_KEYWORD_DIVISOR", 5), 1, 100),

		WeightKeywordLLM:    0.3,
		WeightPatternLLM:    0.2,
		WeightLLM:           0.5,
		WeightKeywordLocal:  0.6,
		WeightPatternLocal:  0.4,
		ExternalCategoryMin: 0.5,

		EnableSemantics:   GetEnvBool("DECOY_ENABLE_SEMANTICS", false),
		EmbeddingModel:    GetEnv("DECOY_EMBEDDING_MODEL", "embeddinggemma"),
		SemanticThreshold: float32(GetEnvFloat("DECOY_SEMANTIC_THRESHOLD", 0.65)),

		PerMinuteCap: GetEnvInt("DECOY_RPM_CAP", 10),
		PerDayCap:    GetEnvInt("DECOY_RPD_CAP", 100),
		RedisAddr:    GetEnv("DECOY_REDIS_ADDR", ""),

		EngagementThreshold: GetEnvInt("DECOY_ENGAGEMENT_THRESHOLD", 5),
		GenerateTimeout:     time.Duration(GetEnvInt("DECOY_GENERATE_TIMEOUT_MS", 30000)) * time.Millisecond,

		CallbackURL:     GetEnv("DECOY_CALLBACK_URL", ""),
		CallbackTimeout: time.Duration(GetEnvInt("DECOY_CALLBACK_TIMEOUT_MS", 10000)) * time.Millisecond,
		CallbackRetries: GetEnvInt("DECOY_CALLBACK_RETRIES", 3),

		SeedDir: GetEnv("DECOY_SEED_DIR", ""),
	}
}

func detectLLMProvider() LLMProvider {
	if p := os.Getenv("DECOY_LLM_PROVIDER"); p != "" {
		return LLMProvider(p)
	}
	// Auto-detect based on available keys.
	if os.Getenv("GROQ_API_KEY") != "" {
		return ProviderGroq
	}
	if os.Getenv("OPENROUTER_API_KEY") != "" || os.Getenv("DECOY_LLM_API_KEY") != "" {
		return ProviderOpenRouter
	}
	if os.Getenv("OPENAI_API_KEY") != "" {
		return ProviderOpenAI
	}
	return ProviderNone
}

// clampInt ensures a value is within bounds.
func clampInt(val, min, max int) int {
	if val < min {
		return min
	}
	if val > max {
		return max
	}
	return val
}

// Validate checks that the configuration is internally consistent.
// In production mode (DECOY_ENV=production) missing critical secrets are
// an error; in development they are warnings so local testing works.
func (c *Config) Validate() error {
	env := strings.ToLower(os.Getenv("DECOY_ENV"))
	isProduction := env == "production" || env == "prod"

	if c.APIKey == "" {
		if isProduction {
			return fmt.Errorf("missing required secret: DECOY_API_KEY (API key for gateway authentication)")
		}
		log.Printf("[WARN] DECOY_API_KEY not set - requests are accepted without authentication")
	}

	if c.PerMinuteCap <= 0 || c.PerDayCap <= 0 {
		return fmt.Errorf("rate caps must be positive (got %d/min, %d/day)", c.PerMinuteCap, c.PerDayCap)
	}
	if c.ScamThreshold < 0 || c.ScamThreshold > 1 {
		return fmt.Errorf("scam threshold must be within [0,1], got %v", c.ScamThreshold)
	}
	return nil
}

// MustValidate calls Validate and fatally exits if validation fails.
// Call this at startup before starting the server.
func (c *Config) MustValidate() {
	if err := c.Validate(); err != nil {
		log.Fatalf("[STARTUP] FATAL: Configuration validation failed: %v", err)
	}
	log.Println("[STARTUP] Configuration validated successfully")
}

// Helper functions for environment variable parsing.
// These are exported for use by other packages.

// GetEnv returns the value of an environment variable or a default value.
func GetEnv(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

// GetEnvBool returns the boolean value of an environment variable or a default value.
func GetEnvBool(key string, defaultValue bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return defaultValue
}

// GetEnvFloat returns the float64 value of an environment variable or a default value.
func GetEnvFloat(key string, defaultValue float64) float64 {
	if v := os.Getenv(key); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err == nil {
			return f
		}
	}
	return defaultValue
}

// GetEnvInt returns the integer value of an environment variable or a default value.
func GetEnvInt(key string, defaultValue int) int {
	if v := os.Getenv(key); v != "" {
		i, err := strconv.Atoi(v)
		if err == nil {
			return i
		}
	}
	return defaultValue
}

// GetEnvSlice returns a comma-separated list from an environment variable or a default value.
func GetEnvSlice(key string, defaultValue []string) []string {
	if v := os.Getenv(key); v != "" {
		var parts []string
		for _, p := range strings.Split(v, ",") {
			trimmed := strings.TrimSpace(p)
			if trimmed != "" {
				parts = append(parts, trimmed)
			}
		}
		if len(parts) > 0 {
			return parts
		}
	}
	return defaultValue
}
