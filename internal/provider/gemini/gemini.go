// Package gemini is the Gemini slot of the provider set. The configured
// Gemini models are text-only, so image generation is rejected up front
// without a request being sent.
package gemini

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/manash/nogologo/internal/provider"
	"github.com/manash/nogologo/pkg/models"
)

type Provider struct {
	registry *models.ModelRegistry
	logger   zerolog.Logger
}

var _ provider.Provider = (*Provider)(nil)

func New(cfg provider.Config) *Provider {
	return &Provider{
		registry: cfg.Registry,
		logger:   cfg.SubLogger(models.ProviderGemini),
	}
}

func (p *Provider) ID() models.ProviderID {
	return models.ProviderGemini
}

// Generate always fails with an unsupported error. It runs before credential
// or count checks and never touches the network or the request log.
func (p *Provider) Generate(_ context.Context, call *provider.Call) ([][]byte, error) {
	model := call.Settings.Gemini.Model
	name := model
	if p.registry != nil {
		if cap, ok := p.registry.Get(model); ok {
			name = cap.DisplayName
		}
	}

	p.logger.Debug().Str("model", model).Msg("image generation unsupported")
	return nil, models.NewUnsupportedError(models.ProviderGemini, "image generation is not supported by %s", name)
}
