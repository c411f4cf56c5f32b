package xai

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/manash/nogologo/internal/imaging"
	"github.com/manash/nogologo/internal/provider"
	"github.com/manash/nogologo/internal/provider/httpapi"
	"github.com/manash/nogologo/internal/requestlog"
	"github.com/manash/nogologo/pkg/models"
)

type apiRequest struct {
	Prompt         string `json:"prompt"`
	Model          string `json:"model"`
	N              int    `json:"n"`
	ResponseFormat string `json:"response_format"`
}

type apiResponse struct {
	Data *[]imageData `json:"data"`
}

type imageData struct {
	B64JSON       string `json:"b64_json,omitempty"`
	URL           string `json:"url,omitempty"`
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
		api:      httpapi.New(models.ProviderXAI, cfg.HTTPClient, cfg.Log, cfg.URLPolicy),
		log:      cfg.Log,
		registry: cfg.Registry,
		logger:   cfg.SubLogger(models.ProviderXAI),
	}
}

func (p *Provider) ID() models.ProviderID {
	return models.ProviderXAI
}

func (p *Provider) Generate(ctx context.Context, call *provider.Call) ([][]byte, error) {
	if err := call.Validate(models.ProviderXAI); err != nil {
		return nil, err
	}

	cfg := call.Settings.XAI
	if cap, ok := p.registry.Get(cfg.Model); ok && !cap.GeneratesImages {
		return nil, models.NewUnsupportedError(models.ProviderXAI, "model %s cannot generate images", cfg.Model)
	}

	apiReq := apiRequest{
		Prompt:         call.Prompt,
		Model:          cfg.Model,
		N:              call.Count,
		ResponseFormat: string(cfg.ResponseFormat),
	}

	p.logger.Debug().Str("model", cfg.Model).Int("count", call.Count).Msg("requesting images")
	resp, err := p.api.PostJSON(ctx, cfg.ImageEndpoint, httpapi.BearerAuth(call.APIKey), apiReq)
	if err != nil {
		return nil, err
	}

	var apiResp apiResponse
	if err := json.Unmarshal(resp.Body, &apiResp); err != nil {
		return nil, models.NewParseError(models.ProviderXAI, "failed to parse response: %w", err)
	}
	if apiResp.Data == nil {
		return nil, models.NewParseError(models.ProviderXAI, "response has no data array")
	}

	images := provider.NewBestEffort(models.ProviderXAI, p.log, p.logger)
	for i, item := range *apiResp.Data {
		raw, err := p.fetch(ctx, item)
		if err != nil {
			images.Drop(i, err)
			continue
		}

		cropped, err := imaging.CropBottom(raw, imaging.WatermarkBand)
		if err != nil {
			images.Drop(i, fmt.Errorf("failed to crop watermark band: %w", err))
			continue
		}
		images.Add(cropped)
	}

	return images.Images()
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
