// Package config loads service configuration from the environment. A .env
// file in the working directory is honored when present.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"github.com/ledgerline/statements/internal/normalize"
)

// Provider names accepted in EXTRACTION_PROVIDERS.
const (
	ProviderGoogle  = "google"
	ProviderOpenAI  = "openai"
	ProviderMistral = "mistral"
	ProviderOllama  = "ollama"
)

// Config holds everything the service needs at startup.
type Config struct {
	Port        string
	DatabaseURL string

	// File storage: GCS when BucketName is set, local disk otherwise.
	BucketName string
	UploadDir  string

	DefaultCurrency string
	DateOrder       normalize.DateOrder
	MaxPDFPages     int

	// Extraction providers in fallback order.
	Providers      []string
	GeminiAPIKey   string
	GeminiModel    string
	OpenAIAPIKey   string
	OpenAIModel    string
	MistralAPIKey  string
	MistralModel   string
	OllamaHost     string
	OllamaModel    string

	QueueSize int
	Workers   int
}

// Load reads configuration from the environment, applying defaults.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Port:            getEnv("PORT", "8080"),
		DatabaseURL:     os.Getenv("DATABASE_URL"),
		BucketName:      os.Getenv("GCS_BUCKET"),
		UploadDir:       getEnv("UPLOAD_DIR", "uploads"),
		DefaultCurrency: getEnv("DEFAULT_CURRENCY", "USD"),
		GeminiAPIKey:    os.Getenv("GEMINI_API_KEY"),
		GeminiModel:     getEnv("GEMINI_MODEL", "gemini-2.0-flash"),
		OpenAIAPIKey:    os.Getenv("OPENAI_API_KEY"),
		OpenAIModel:     getEnv("OPENAI_MODEL", "gpt-4o-mini"),
		MistralAPIKey:   os.Getenv("MISTRAL_API_KEY"),
		MistralModel:    getEnv("MISTRAL_MODEL", "mistral-small-latest"),
		OllamaHost:      getEnv("OLLAMA_HOST", "http://localhost:11434"),
		OllamaModel:     getEnv("OLLAMA_MODEL", "llama3.2-vision"),
	}

	var err error
	if cfg.QueueSize, err = getEnvInt("QUEUE_SIZE", 64); err != nil {
		return nil, err
	}
	if cfg.Workers, err = getEnvInt("WORKERS", 4); err != nil {
		return nil, err
	}
	if cfg.MaxPDFPages, err = getEnvInt("MAX_PDF_PAGES", 10); err != nil {
		return nil, err
	}

	switch order := getEnv("DATE_ORDER", "day-first"); order {
	case "day-first":
		cfg.DateOrder = normalize.DayFirst
	case "month-first":
		cfg.DateOrder = normalize.MonthFirst
	default:
		return nil, fmt.Errorf("DATE_ORDER must be day-first or month-first, got %q", order)
	}

	for _, name := range strings.Split(getEnv("EXTRACTION_PROVIDERS", ProviderGoogle), ",") {
		name = strings.TrimSpace(strings.ToLower(name))
		if name == "" {
			continue
		}
		switch name {
		case ProviderGoogle, ProviderOpenAI, ProviderMistral, ProviderOllama:
			cfg.Providers = append(cfg.Providers, name)
		default:
			return nil, fmt.Errorf("unknown extraction provider %q", name)
		}
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer, got %q", key, v)
	}
	return n, nil
}
