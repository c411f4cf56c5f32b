// Package refine rewrites image prompts through a chat completion endpoint and
// falls back to a canned style suffix when the endpoint cannot be used.
package refine

import (
	"context"
	"encoding/json"
	"errors"
	"math/rand/v2"
	"net/http"
	"strings"
	"time"

	"github.com/manash/nogologo/internal/metrics"
	"github.com/manash/nogologo/internal/provider/httpapi"
	"github.com/manash/nogologo/internal/requestlog"
	"github.com/manash/nogologo/internal/security"
	"github.com/manash/nogologo/pkg/models"
)

const (
	DefaultModel = "grok-3-mini"

	systemPrompt = "You are a helpful prompt refiner for image generation. " +
		"Make the user's prompt more detailed, creative, and optimized for AI image models."
	userPrefix = "Refine this image prompt: "

	// legacyMarker was prepended by older fallbacks and is still stripped.
	legacyMarker = "A detailed and vivid version of:"
)

// Styles are the fallback suffixes.
var Styles = []string{
	"in cyberpunk neon glow",
	"as a surreal dreamscape",
	"with epic fantasy vibes",
	"in high-contrast black and white",
	"like a vintage poster",
	"in vibrant watercolor",
	"with futuristic sci-fi elements",
	"as a cute cartoon illustration",
	"in realistic photographic detail",
	"with magical realism touch",
}

var ErrEmptyCompletion = errors.New("completion has no content")

type Config struct {
	HTTPClient *http.Client
	Log        *requestlog.Log
	Metrics    *metrics.Metrics
	// Model defaults to grok-3-mini.
	Model string
	// Pick returns an index in [0, n). Defaults to rand.IntN.
	Pick func(n int) int
}

type Refiner struct {
	api     *httpapi.Client
	log     *requestlog.Log
	metrics *metrics.Metrics
	model   string
	pick    func(int) int
}

func New(cfg Config) *Refiner {
	r := &Refiner{
		api:     httpapi.New(models.ProviderXAI, cfg.HTTPClient, cfg.Log, security.DefaultURLPolicy()),
		log:     cfg.Log,
		metrics: cfg.Metrics,
		model:   cfg.Model,
		pick:    cfg.Pick,
	}
	if r.model == "" {
		r.model = DefaultModel
	}
	if r.pick == nil {
		r.pick = rand.IntN
	}
	return r
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model    string    `json:"model"`
	Messages []message `json:"messages"`
}

type chatResponse struct {
	Choices []struct {
		Message *struct {
			Content *string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Outcome is the result of one refinement attempt. Err is set when the
// fallback was used.
type Outcome struct {
	Prompt  string
	Refined bool
	Err     error
}

// Refine returns the refined prompt, or the fallback prompt on any failure.
func (r *Refiner) Refine(ctx context.Context, prompt, credential, endpoint string) string {
	return r.RefineWithOutcome(ctx, prompt, credential, endpoint).Prompt
}

func (r *Refiner) RefineWithOutcome(ctx context.Context, prompt, credential, endpoint string) Outcome {
	start := time.Now()

	refined, err := r.complete(ctx, prompt, credential, endpoint)
	if err != nil {
		fallback := r.Fallback(prompt)
		r.log.Appendf(requestlog.CategoryWarning, "prompt refinement failed after %s, using fallback: %v",
			time.Since(start).Round(time.Millisecond), err)
		r.metrics.ObserveRefineFallback()
		return Outcome{Prompt: fallback, Err: err}
	}

	r.log.Appendf(requestlog.CategoryInfo, "prompt refined in %s", time.Since(start).Round(time.Millisecond))
	return Outcome{Prompt: refined, Refined: true}
}

func (r *Refiner) complete(ctx context.Context, prompt, credential, endpoint string) (string, error) {
	if credential == "" {
		return "", models.NewMissingCredential(models.ProviderXAI)
	}

	req := chatRequest{
		Model: r.model,
		Messages: []message{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userPrefix + prompt},
		},
	}

	resp, err := r.api.PostJSON(ctx, endpoint, httpapi.BearerAuth(credential), req)
	if err != nil {
		return "", err
	}

	var chat chatResponse
	if err := json.Unmarshal(resp.Body, &chat); err != nil {
		return "", models.NewParseError(models.ProviderXAI, "failed to parse completion: %w", err)
	}
	if len(chat.Choices) == 0 || chat.Choices[0].Message == nil || chat.Choices[0].Message.Content == nil ||
		strings.TrimSpace(*chat.Choices[0].Message.Content) == "" {
		return "", models.NewParseError(models.ProviderXAI, "%w", ErrEmptyCompletion)
	}
	return *chat.Choices[0].Message.Content, nil
}

// Fallback appends one random style to the prompt after stripping any style
// a previous fallback left behind.
func (r *Refiner) Fallback(prompt string) string {
	return StripFallback(prompt) + ", " + Styles[r.pick(len(Styles))]
}

// StripFallback removes the legacy marker and trailing style suffixes.
func StripFallback(prompt string) string {
	p := strings.TrimSpace(strings.ReplaceAll(prompt, legacyMarker, ""))
	for {
		trimmed := p
		for _, style := range Styles {
			if s, ok := strings.CutSuffix(p, ", "+style); ok {
				trimmed = strings.TrimSpace(s)
				break
			}
		}
		if trimmed == p {
			return p
		}
		p = trimmed
	}
}
