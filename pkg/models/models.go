package models

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/samber/lo"
)

const (
	MinImageCount = 1
	MaxImageCount = 10
)

var (
	ErrEmptyPrompt      = errors.New("prompt cannot be empty")
	ErrInvalidCount     = errors.New("image count out of range")
	ErrNoProviders      = errors.New("at least one provider must be selected")
	ErrUnknownProvider  = errors.New("unknown provider")
	ErrUnknownModel     = errors.New("unknown model")
	ErrInvalidSetting   = errors.New("invalid setting")
	ErrUnknownSettingID = errors.New("unknown setting")
)

type ProviderID string

const (
	ProviderXAI    ProviderID = "xai"
	ProviderOpenAI ProviderID = "openai"
	ProviderGemini ProviderID = "gemini"
)

// AllProviders returns the closed provider set in display order.
func AllProviders() []ProviderID {
	return []ProviderID{ProviderXAI, ProviderOpenAI, ProviderGemini}
}

func ParseProviderID(s string) (ProviderID, error) {
	id := ProviderID(strings.ToLower(strings.TrimSpace(s)))
	if !id.IsValid() {
		return "", fmt.Errorf("%w: %q (want one of %v)", ErrUnknownProvider, s, AllProviders())
	}
	return id, nil
}

func (p ProviderID) IsValid() bool {
	return slices.Contains(AllProviders(), p)
}

func (p ProviderID) String() string {
	return string(p)
}

func (p ProviderID) DisplayName() string {
	switch p {
	case ProviderXAI:
		return "xAI"
	case ProviderOpenAI:
		return "OpenAI"
	case ProviderGemini:
		return "Gemini"
	default:
		return string(p)
	}
}

// GenerationRequest is one user-triggered fan-out. It is consumed by the
// orchestrator and never persisted.
type GenerationRequest struct {
	Prompt     string
	ImageCount int
	Providers  []ProviderID
}

func NewGenerationRequest(prompt string, count int, providers ...ProviderID) *GenerationRequest {
	return &GenerationRequest{
		Prompt:     prompt,
		ImageCount: count,
		Providers:  providers,
	}
}

// Validate checks the request and collapses duplicate providers in place.
func (r *GenerationRequest) Validate() error {
	if strings.TrimSpace(r.Prompt) == "" {
		return ErrEmptyPrompt
	}

	if r.ImageCount < MinImageCount || r.ImageCount > MaxImageCount {
		return fmt.Errorf("%w: must be between %d and %d, got %d", ErrInvalidCount, MinImageCount, MaxImageCount, r.ImageCount)
	}

	if len(r.Providers) == 0 {
		return ErrNoProviders
	}

	for _, p := range r.Providers {
		if !p.IsValid() {
			return fmt.Errorf("%w: %q", ErrUnknownProvider, p)
		}
	}

	r.Providers = lo.Uniq(r.Providers)
	return nil
}

// Result is the outcome of one provider call: either images or an error.
type Result struct {
	Provider ProviderID
	Images   [][]byte
	Err      error
	Duration time.Duration
}

func (r Result) OK() bool {
	return r.Err == nil && len(r.Images) > 0
}

// Message renders the result as the status line shown to the user.
func (r Result) Message() string {
	if r.Err != nil {
		return fmt.Sprintf("%s Error: %v", r.Provider.DisplayName(), r.Err)
	}
	return fmt.Sprintf("%s returned %d image(s)", r.Provider.DisplayName(), len(r.Images))
}
