package llm

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"
	"time"
)

// Provider is the interface for LLM providers.
type Provider interface {
	Generate(ctx context.Context, prompt string, maxTokens int) (string, error)
	IsConfigured() bool
}

// Settings selects and configures a provider.
type Settings struct {
	Provider    string
	Model       string
	BaseURL     string
	APIKeyEnv   string
	Temperature float64
	Timeout     time.Duration
}

const (
	groqBaseURL   = "https://api.groq.com/openai/v1"
	openAIBaseURL = "https://api.openai.com/v1"
	ollamaBaseURL = "http://localhost:11434"
)

// CreateProvider creates an LLM provider based on configuration.
func CreateProvider(s Settings) (Provider, error) {
	if s.Timeout <= 0 {
		s.Timeout = 120 * time.Second
	}

	var p Provider
	switch strings.ToLower(s.Provider) {
	case "groq":
		p = NewOpenAIProvider(s.Model, firstNonEmpty(s.BaseURL, groqBaseURL), os.Getenv(s.APIKeyEnv), s.Temperature, s.Timeout)
	case "openai":
		p = NewOpenAIProvider(s.Model, firstNonEmpty(s.BaseURL, openAIBaseURL), os.Getenv(s.APIKeyEnv), s.Temperature, s.Timeout)
	case "ollama":
		p = NewOllamaProvider(s.Model, firstNonEmpty(s.BaseURL, ollamaBaseURL), s.Temperature, s.Timeout)
	case "gemini":
		g, err := NewGeminiProvider(context.Background(), s.Model, os.Getenv(s.APIKeyEnv))
		if err != nil {
			return nil, err
		}
		p = g
	default:
		return nil, fmt.Errorf("unknown LLM provider %q", s.Provider)
	}

	if !p.IsConfigured() {
		return nil, fmt.Errorf("LLM provider %s is not configured; check %s", s.Provider, firstNonEmpty(s.APIKeyEnv, "the server URL"))
	}
	log.Printf("Using %s with model: %s", s.Provider, s.Model)
	return p, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
