// Package transcription turns recorded audio into text through a pluggable provider.
package transcription

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/jonathan/meeting-analyzer/internal/types"
)

// Provider transcribes one recording.
type Provider interface {
	Name() string
	Transcribe(ctx context.Context, artifact *types.RecordingArtifact) (string, error)
}

// Config holds the settings shared by providers.
type Config struct {
	Provider string
	APIURL   string
	APIKey   string
	Model    string
	Language string
	Timeout  time.Duration
}

// Factory builds a provider from config.
type Factory func(cfg Config) (Provider, error)

var (
	registryMu sync.RWMutex
	registry   = map[string]Factory{
		ProviderWhisper: func(cfg Config) (Provider, error) { return NewWhisper(cfg) },
	}
)

// Register adds or replaces a provider factory.
func Register(name string, factory Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[strings.ToLower(name)] = factory
}

// Providers lists the registered provider names.
func Providers() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// NewProvider selects a provider by cfg.Provider. Unknown names are an error.
func NewProvider(cfg Config) (Provider, error) {
	name := strings.ToLower(strings.TrimSpace(cfg.Provider))
	if name == "" {
		name = ProviderWhisper
	}

	registryMu.RLock()
	factory, ok := registry[name]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown transcription provider %q (available: %s)", cfg.Provider, strings.Join(Providers(), ", "))
	}
	return factory(cfg)
}
