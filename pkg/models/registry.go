package models

import (
	"slices"
	"sort"
)

// ModelCapabilities describes what a model accepts and returns.
type ModelCapabilities struct {
	Name        string
	DisplayName string
	Provider    ProviderID

	// GeneratesImages is false for text-only models.
	GeneratesImages bool
	// MaxImagesPerCall of 1 means the client loops one request per image.
	MaxImagesPerCall int

	SupportedSizes         []ImageSize
	SupportsQuality        bool
	SupportsBackground     bool
	SupportsCompression    bool
	SupportsOutputFormat   bool
	SupportsResponseFormat bool
}

func (c *ModelCapabilities) SupportsSize(size ImageSize) bool {
	return slices.Contains(c.SupportedSizes, size)
}

type ModelRegistry struct {
	models map[string]*ModelCapabilities
}

func NewModelRegistry() *ModelRegistry {
	return &ModelRegistry{
		models: make(map[string]*ModelCapabilities),
	}
}

func (r *ModelRegistry) Register(cap *ModelCapabilities) {
	r.models[cap.Name] = cap
}

func (r *ModelRegistry) Get(name string) (*ModelCapabilities, bool) {
	cap, ok := r.models[name]
	return cap, ok
}

func (r *ModelRegistry) List() []string {
	names := make([]string, 0, len(r.models))
	for name := range r.models {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (r *ModelRegistry) ListByProvider(provider ProviderID) []string {
	var names []string
	for name, cap := range r.models {
		if cap.Provider == provider {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

func DefaultRegistry() *ModelRegistry {
	r := NewModelRegistry()

	r.Register(&ModelCapabilities{
		Name:             "grok-2-image",
		DisplayName:      "Grok 2 Image",
		Provider:         ProviderXAI,
		GeneratesImages:  true,
		MaxImagesPerCall: 10,
	})

	r.Register(&ModelCapabilities{
		Name:                 "gpt-image-1",
		DisplayName:          "GPT Image 1 (Latest)",
		Provider:             ProviderOpenAI,
		GeneratesImages:      true,
		MaxImagesPerCall:     10,
		SupportedSizes:       []ImageSize{SizeAuto, SizeSquare, SizePortrait, SizeLandscape},
		SupportsQuality:      true,
		SupportsBackground:   true,
		SupportsCompression:  true,
		SupportsOutputFormat: true,
	})

	r.Register(&ModelCapabilities{
		Name:                   "dall-e-3",
		DisplayName:            "DALL-E 3 (High Quality)",
		Provider:               ProviderOpenAI,
		GeneratesImages:        true,
		MaxImagesPerCall:       1,
		SupportedSizes:         []ImageSize{SizeAuto, SizeSquare, SizePortrait, SizeLandscape},
		SupportsResponseFormat: true,
	})

	r.Register(&ModelCapabilities{
		Name:                   "dall-e-2",
		DisplayName:            "DALL-E 2 (Legacy)",
		Provider:               ProviderOpenAI,
		GeneratesImages:        true,
		MaxImagesPerCall:       10,
		SupportedSizes:         []ImageSize{SizeSquare},
		SupportsResponseFormat: true,
	})

	for _, m := range []struct{ name, display string }{
		{"gemini-1.5-flash", "Gemini 1.5 Flash (Fastest)"},
		{"gemini-1.5-pro", "Gemini 1.5 Pro (Best Quality)"},
		{"gemini-1.0-pro", "Gemini 1.0 Pro (Legacy)"},
	} {
		r.Register(&ModelCapabilities{
			Name:        m.name,
			DisplayName: m.display,
			Provider:    ProviderGemini,
		})
	}

	return r
}
