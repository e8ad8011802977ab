// Package llm wraps the generative model used to score call transcripts.
package llm

import "fmt"

// Provider represents an LLM provider
type Provider string

// ProviderGemini is the Google Gemini provider
const ProviderGemini Provider = "gemini"

// DefaultModel is the Gemini model used when none is configured.
const DefaultModel = "gemini-2.5-flash"

// DefaultTemperature keeps scoring output stable across runs.
const DefaultTemperature float32 = 0.1

// DefaultMaxOutputTokens fits a full scorecard with notes for all twelve points.
const DefaultMaxOutputTokens int32 = 4096

// Config holds the model configuration for the analysis backend
type Config struct {
	Provider    Provider
	Model       string
	Temperature float32
	// MaxOutputTokens caps the answer length; zero leaves the model default.
	MaxOutputTokens int32
	// SystemInstruction is sent ahead of every prompt when non-empty.
	SystemInstruction string
}

// DefaultConfig returns the default Gemini configuration
func DefaultConfig() *Config {
	return &Config{
		Provider:        ProviderGemini,
		Model:           DefaultModel,
		Temperature:     DefaultTemperature,
		MaxOutputTokens: DefaultMaxOutputTokens,
	}
}

// WithModel returns a copy of the config using model. An empty model keeps the current one.
func (c *Config) WithModel(model string) *Config {
	cp := *c
	if model != "" {
		cp.Model = model
	}
	return &cp
}

// Validate reports configuration that cannot produce a working client.
func (c *Config) Validate() error {
	if c.Model == "" {
		return fmt.Errorf("llm model is required")
	}
	if c.Temperature < 0 || c.Temperature > 2 {
		return fmt.Errorf("llm temperature %.2f out of range [0,2]", c.Temperature)
	}
	if c.MaxOutputTokens < 0 {
		return fmt.Errorf("llm max output tokens must be non-negative, got %d", c.MaxOutputTokens)
	}
	switch c.Provider {
	case ProviderGemini, "":
		return nil
	default:
		return fmt.Errorf("unsupported llm provider %q", c.Provider)
	}
}
