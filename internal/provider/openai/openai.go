package openai

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/manash/nogologo/internal/provider"
	"github.com/manash/nogologo/internal/provider/httpapi"
	"github.com/manash/nogologo/internal/requestlog"
	"github.com/manash/nogologo/pkg/models"
)

type apiRequest struct {
	Model             string `json:"model"`
	Prompt            string `json:"prompt"`
	N                 int    `json:"n"`
	Size              string `json:"size"`
	Quality           string `json:"quality,omitempty"`
	ResponseFormat    string `json:"response_format,omitempty"`
	OutputFormat      string `json:"output_format,omitempty"`
	OutputCompression *int   `json:"output_compression,omitempty"`
	Background        string `json:"background,omitempty"`
}

type apiResponse struct {
	Created int64        `json:"created"`
	Data    *[]imageData `json:"data"`
}

type imageData struct {
	URL           string `json:"url,omitempty"`
	B64JSON       string `json:"b64_json,omitempty"`
	RevisedPrompt string `json:"revised_prompt,omitempty"`
}

type Provider struct {
	api      *httpapi.Client
	log      *requestlog.Log
	registry *models.ModelRegistry
	logger   zerolog.Logger
}

var _ provider.Provider = (*Provider)(nil)

func New(cfg provider.Config) *Provider {
	return &Provider{
		api:      httpapi.New(models.ProviderOpenAI, cfg.HTTPClient, cfg.Log, cfg.URLPolicy),
		log:      cfg.Log,
		registry: cfg.Registry,
		logger:   cfg.SubLogger(models.ProviderOpenAI),
	}
}

func (p *Provider) ID() models.ProviderID {
	return models.ProviderOpenAI
}

// ListModels returns the OpenAI models the registry knows about.
func (p *Provider) ListModels() []string {
	return p.registry.ListByProvider(models.ProviderOpenAI)
}

// Generate requests call.Count images. Models that return a single image per
// call are driven with one request per image; any failed request fails the
// whole call.
func (p *Provider) Generate(ctx context.Context, call *provider.Call) ([][]byte, error) {
	if err := call.Validate(models.ProviderOpenAI); err != nil {
		return nil, err
	}

	cfg := call.Settings.OpenAI
	cap, ok := p.registry.Get(cfg.Model)
	if !ok || cap.Provider != models.ProviderOpenAI {
		return nil, models.NewUnsupportedError(models.ProviderOpenAI, "unknown model %s", cfg.Model)
	}
	if !cap.GeneratesImages {
		return nil, models.NewUnsupportedError(models.ProviderOpenAI, "model %s cannot generate images", cfg.Model)
	}

	perCall := call.Count
	if cap.MaxImagesPerCall > 0 && perCall > cap.MaxImagesPerCall {
		perCall = cap.MaxImagesPerCall
	}

	images := provider.NewBestEffort(models.ProviderOpenAI, p.log, p.logger)
	index := 0
	for remaining := call.Count; remaining > 0; remaining -= perCall {
		n := min(perCall, remaining)
		p.logger.Debug().Str("model", cfg.Model).Int("count", n).Msg("requesting images")
		items, err := p.request(ctx, call, cap, n)
		if err != nil {
			return nil, err
		}

		for _, item := range items {
			raw, err := p.fetch(ctx, item)
			if err != nil {
				images.Drop(index, err)
			} else {
				images.Add(raw)
			}
			index++
		}
	}

	return images.Images()
}

func (p *Provider) request(ctx context.Context, call *provider.Call, cap *models.ModelCapabilities, n int) ([]imageData, error) {
	apiReq := buildAPIRequest(call.Prompt, n, call.Settings.OpenAI, cap)

	resp, err := p.api.PostJSON(ctx, call.Settings.OpenAI.ImageEndpoint, httpapi.BearerAuth(call.APIKey), apiReq)
	if err != nil {
		return nil, err
	}

	var apiResp apiResponse
	if err := json.Unmarshal(resp.Body, &apiResp); err != nil {
		return nil, models.NewParseError(models.ProviderOpenAI, "failed to parse response: %w", err)
	}
	if apiResp.Data == nil {
		return nil, models.NewParseError(models.ProviderOpenAI, "response has no data array")
	}
	return *apiResp.Data, nil
}

// buildAPIRequest only sets the optional fields the model accepts. The API
// rejects unknown parameters per model.
func buildAPIRequest(prompt string, n int, cfg models.OpenAIConfig, cap *models.ModelCapabilities) *apiRequest {
	apiReq := &apiRequest{
		Model:  cfg.Model,
		Prompt: prompt,
		N:      n,
		Size:   cfg.Size.APIValue(),
	}

	if cap.SupportsQuality {
		apiReq.Quality = string(cfg.Quality)
	}
	if cap.SupportsResponseFormat {
		apiReq.ResponseFormat = string(models.ResponseFormatB64JSON)
	}
	if cap.SupportsBackground {
		apiReq.Background = string(cfg.Background)
	}
	if cap.SupportsOutputFormat {
		apiReq.OutputFormat = string(cfg.Format)
	}
	if cap.SupportsCompression && (cfg.Format == models.FormatJPEG || cfg.Format == models.FormatWebP) {
		compression := cfg.OutputCompression
		apiReq.OutputCompression = &compression
	}

	return apiReq
}

func (p *Provider) fetch(ctx context.Context, item imageData) ([]byte, error) {
	switch {
	case item.B64JSON != "":
		data, err := base64.StdEncoding.DecodeString(item.B64JSON)
		if err != nil {
			return nil, fmt.Errorf("invalid base64 payload: %w", err)
		}
		return data, nil
	case item.URL != "":
		return p.api.Download(ctx, item.URL)
	default:
		return nil, fmt.Errorf("item has neither b64_json nor url")
	}
}
