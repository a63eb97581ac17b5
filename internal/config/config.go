package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config carries every tunable the components need. It is built once in
// main and passed down explicitly; nothing reads the environment after
// Load returns.
type Config struct {
	Port string

	// Hosted LLM provider
	Provider         string // "openrouter" or "gemini"
	OpenRouterAPIKey string
	GeminiAPIKey     string
	BaseURL          string
	LLMModel         string
	VisionModel      string
	EmbedModel       string
	LLMTimeout       time.Duration

	// Table detector service
	DetectorURL        string
	DetectorConfidence float64

	// Retrieval
	TopK int

	// Chunking
	ChunkSize    int
	ChunkOverlap int

	// Ingestion
	DataDir           string
	TablesDir         string
	StorageDir        string
	RenderDPI         int
	MaxSummaryWorkers int

	// Vector store
	StoreBackend     string // "local" or "qdrant"
	QdrantURL        string
	QdrantAPIKey     string
	QdrantCollection string
}

func Load() Config {
	cfg := Config{
		Port: envOr("PORT", "8090"),

		Provider:         envOr("FINRAG_PROVIDER", "openrouter"),
		OpenRouterAPIKey: os.Getenv("OPENROUTER_API_KEY"),
		GeminiAPIKey:     os.Getenv("GEMINI_API_KEY"),
		BaseURL:          envOr("FINRAG_BASE_URL", "https://openrouter.ai/api/v1"),
		LLMModel:         envOr("FINRAG_LLM_MODEL", "openai/gpt-4o-mini"),
		VisionModel:      envOr("FINRAG_VISION_MODEL", "openai/gpt-4o-mini"),
		EmbedModel:       envOr("FINRAG_EMBED_MODEL", "openai/text-embedding-3-small"),
		LLMTimeout:       envDuration("FINRAG_LLM_TIMEOUT", 60*time.Second),

		DetectorURL:        envOr("DETECTOR_URL", "http://localhost:8000"),
		DetectorConfidence: envFloat("DETECTOR_CONFIDENCE", 0.25),

		TopK: envInt("FINRAG_TOP_K", 15),

		ChunkSize:    envInt("FINRAG_CHUNK_SIZE", 1024),
		ChunkOverlap: envInt("FINRAG_CHUNK_OVERLAP", 200),

		DataDir:           envOr("FINRAG_DATA_DIR", "data"),
		TablesDir:         envOr("FINRAG_TABLES_DIR", "data/processed_tables"),
		StorageDir:        envOr("FINRAG_STORAGE_DIR", "storage"),
		RenderDPI:         envInt("FINRAG_RENDER_DPI", 150),
		MaxSummaryWorkers: envInt("FINRAG_MAX_SUMMARY_WORKERS", 5),

		StoreBackend:     envOr("FINRAG_STORE", "local"),
		QdrantURL:        envOr("QDRANT_URL", "http://localhost:6333"),
		QdrantAPIKey:     os.Getenv("QDRANT_API_KEY"),
		QdrantCollection: envOr("QDRANT_COLLECTION", "finrag"),
	}

	if cfg.TopK <= 0 {
		cfg.TopK = 15
	}
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = 1024
	}
	if cfg.ChunkOverlap < 0 {
		cfg.ChunkOverlap = 200
	}
	if cfg.DetectorConfidence <= 0 || cfg.DetectorConfidence > 1 {
		cfg.DetectorConfidence = 0.25
	}
	if cfg.RenderDPI <= 0 {
		cfg.RenderDPI = 150
	}
	if cfg.MaxSummaryWorkers <= 0 {
		cfg.MaxSummaryWorkers = 5
	}
	if cfg.LLMTimeout <= 0 {
		cfg.LLMTimeout = 60 * time.Second
	}

	return cfg
}

func (c Config) Validate() error {
	switch c.Provider {
	case "openrouter":
		if c.OpenRouterAPIKey == "" {
			return fmt.Errorf("OPENROUTER_API_KEY is required")
		}
	case "gemini":
		if c.GeminiAPIKey == "" {
			return fmt.Errorf("GEMINI_API_KEY is required")
		}
	default:
		return fmt.Errorf("unknown provider %q (want openrouter or gemini)", c.Provider)
	}
	switch c.StoreBackend {
	case "local":
	case "qdrant":
		if c.QdrantURL == "" {
			return fmt.Errorf("QDRANT_URL is required for the qdrant store")
		}
	default:
		return fmt.Errorf("unknown vector store %q (want local or qdrant)", c.StoreBackend)
	}
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
