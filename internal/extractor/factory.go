package extractor

import (
	"fmt"

	"policonv/internal/config"
	"policonv/internal/port"
)

// ProviderFactory is a function that creates a VisionExtractor from an extractor config.
type ProviderFactory func(cfg *config.ExtractorConfig) (port.VisionExtractor, error)

// registry of extraction provider factories, populated by init() in each
// provider package or explicitly via RegisterProvider.
var providers = map[string]ProviderFactory{}

// RegisterProvider registers an extraction provider factory by name.
func RegisterProvider(name string, factory ProviderFactory) {
	providers[name] = factory
}

// NewExtractor creates a VisionExtractor using the registered factory for
// the configured provider.
func NewExtractor(cfg *config.ExtractorConfig) (port.VisionExtractor, error) {
	factory, ok := providers[cfg.Provider]
	if !ok {
		return nil, fmt.Errorf("unknown extractor provider: %s", cfg.Provider)
	}
	return factory(cfg)
}
