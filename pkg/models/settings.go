package models

import (
	"fmt"
	"net/url"
	"slices"
	"strconv"
	"strings"
)

type ResponseFormat string

const (
	ResponseFormatURL     ResponseFormat = "url"
	ResponseFormatB64JSON ResponseFormat = "b64_json"
)

type ImageSize string

const (
	SizeAuto      ImageSize = "auto"
	SizeSquare    ImageSize = "1024x1024"
	SizePortrait  ImageSize = "1024x1536"
	SizeLandscape ImageSize = "1536x1024"
)

// APIValue is the size sent on the wire; auto resolves to square.
func (s ImageSize) APIValue() string {
	if s == SizeAuto {
		return string(SizeSquare)
	}
	return string(s)
}

type Quality string

const (
	QualityAuto   Quality = "auto"
	QualityLow    Quality = "low"
	QualityMedium Quality = "medium"
	QualityHigh   Quality = "high"
)

type ImageFormat string

const (
	FormatPNG  ImageFormat = "png"
	FormatJPEG ImageFormat = "jpeg"
	FormatWebP ImageFormat = "webp"
)

type Background string

const (
	BackgroundOpaque      Background = "opaque"
	BackgroundTransparent Background = "transparent"
)

type SafetyThreshold string

const (
	SafetyBlockNone           SafetyThreshold = "BLOCK_NONE"
	SafetyBlockLowAndAbove    SafetyThreshold = "BLOCK_LOW_AND_ABOVE"
	SafetyBlockMediumAndAbove SafetyThreshold = "BLOCK_MEDIUM_AND_ABOVE"
	SafetyBlockHighAndAbove   SafetyThreshold = "BLOCK_HIGH_AND_ABOVE"
)

var (
	responseFormats  = []ResponseFormat{ResponseFormatURL, ResponseFormatB64JSON}
	imageSizes       = []ImageSize{SizeAuto, SizeSquare, SizePortrait, SizeLandscape}
	qualities        = []Quality{QualityAuto, QualityLow, QualityMedium, QualityHigh}
	imageFormats     = []ImageFormat{FormatPNG, FormatJPEG, FormatWebP}
	backgrounds      = []Background{BackgroundOpaque, BackgroundTransparent}
	safetyThresholds = []SafetyThreshold{SafetyBlockNone, SafetyBlockLowAndAbove, SafetyBlockMediumAndAbove, SafetyBlockHighAndAbove}
)

type XAIConfig struct {
	Model          string         `json:"model"`
	ResponseFormat ResponseFormat `json:"response_format"`
	ImageEndpoint  string         `json:"image_endpoint"`
	ChatEndpoint   string         `json:"chat_endpoint"`
	ChatModel      string         `json:"chat_model"`
}

type OpenAIConfig struct {
	Model             string      `json:"model"`
	Size              ImageSize   `json:"size"`
	Quality           Quality     `json:"quality"`
	Format            ImageFormat `json:"format"`
	Background        Background  `json:"background"`
	OutputCompression int         `json:"output_compression"`
	ImageEndpoint     string      `json:"image_endpoint"`
}

type GeminiConfig struct {
	Model           string          `json:"model"`
	SafetyThreshold SafetyThreshold `json:"safety_threshold"`
	BaseEndpoint    string          `json:"base_endpoint"`
}

// Settings holds every provider's configuration. It is a value type: a copy
// taken at dispatch time is an immutable snapshot for the call.
type Settings struct {
	XAI    XAIConfig    `json:"xai"`
	OpenAI OpenAIConfig `json:"openai"`
	Gemini GeminiConfig `json:"gemini"`
}

func DefaultXAIConfig() XAIConfig {
	return XAIConfig{
		Model:          "grok-2-image",
		ResponseFormat: ResponseFormatB64JSON,
		ImageEndpoint:  "https://api.x.ai/v1/images/generations",
		ChatEndpoint:   "https://api.x.ai/v1/chat/completions",
		ChatModel:      "grok-3-mini",
	}
}

func DefaultOpenAIConfig() OpenAIConfig {
	return OpenAIConfig{
		Model:             "gpt-image-1",
		Size:              SizeAuto,
		Quality:           QualityAuto,
		Format:            FormatPNG,
		Background:        BackgroundOpaque,
		OutputCompression: 50,
		ImageEndpoint:     "https://api.openai.com/v1/images/generations",
	}
}

func DefaultGeminiConfig() GeminiConfig {
	return GeminiConfig{
		Model:           "gemini-1.5-flash",
		SafetyThreshold: SafetyBlockNone,
		BaseEndpoint:    "https://generativelanguage.googleapis.com/v1beta",
	}
}

func DefaultSettings() Settings {
	return Settings{
		XAI:    DefaultXAIConfig(),
		OpenAI: DefaultOpenAIConfig(),
		Gemini: DefaultGeminiConfig(),
	}
}

func (s Settings) Validate(registry *ModelRegistry) error {
	if err := checkModel(registry, ProviderXAI, s.XAI.Model); err != nil {
		return err
	}
	if err := checkEnum("xai.response_format", s.XAI.ResponseFormat, responseFormats); err != nil {
		return err
	}
	for key, endpoint := range map[string]string{
		"xai.image_endpoint":    s.XAI.ImageEndpoint,
		"xai.chat_endpoint":     s.XAI.ChatEndpoint,
		"openai.image_endpoint": s.OpenAI.ImageEndpoint,
		"gemini.base_endpoint":  s.Gemini.BaseEndpoint,
	} {
		if err := checkEndpoint(key, endpoint); err != nil {
			return err
		}
	}
	if strings.TrimSpace(s.XAI.ChatModel) == "" {
		return fmt.Errorf("%w: xai.chat_model is empty", ErrInvalidSetting)
	}

	if err := checkModel(registry, ProviderOpenAI, s.OpenAI.Model); err != nil {
		return err
	}
	if err := checkEnum("openai.size", s.OpenAI.Size, imageSizes); err != nil {
		return err
	}
	if cap, _ := registry.Get(s.OpenAI.Model); !cap.SupportsSize(s.OpenAI.Size) {
		return fmt.Errorf("%w: openai.size %q not supported by %s (want one of %v)", ErrInvalidSetting, s.OpenAI.Size, s.OpenAI.Model, cap.SupportedSizes)
	}
	if err := checkEnum("openai.quality", s.OpenAI.Quality, qualities); err != nil {
		return err
	}
	if err := checkEnum("openai.format", s.OpenAI.Format, imageFormats); err != nil {
		return err
	}
	if err := checkEnum("openai.background", s.OpenAI.Background, backgrounds); err != nil {
		return err
	}
	if s.OpenAI.Background == BackgroundTransparent && s.OpenAI.Format == FormatJPEG {
		return fmt.Errorf("%w: transparent background requires png or webp format", ErrInvalidSetting)
	}
	if s.OpenAI.OutputCompression < 0 || s.OpenAI.OutputCompression > 100 {
		return fmt.Errorf("%w: openai.output_compression must be 0-100, got %d", ErrInvalidSetting, s.OpenAI.OutputCompression)
	}

	if err := checkModel(registry, ProviderGemini, s.Gemini.Model); err != nil {
		return err
	}
	return checkEnum("gemini.safety_threshold", s.Gemini.SafetyThreshold, safetyThresholds)
}

// Set assigns one field addressed as "<provider>.<field>".
func (s *Settings) Set(key, value string) error {
	value = strings.TrimSpace(value)
	switch strings.ToLower(strings.TrimSpace(key)) {
	case "xai.model":
		s.XAI.Model = value
	case "xai.response_format":
		s.XAI.ResponseFormat = ResponseFormat(value)
	case "xai.image_endpoint":
		s.XAI.ImageEndpoint = value
	case "xai.chat_endpoint":
		s.XAI.ChatEndpoint = value
	case "xai.chat_model":
		s.XAI.ChatModel = value
	case "openai.model":
		s.OpenAI.Model = value
	case "openai.size":
		s.OpenAI.Size = ImageSize(value)
	case "openai.quality":
		s.OpenAI.Quality = Quality(value)
	case "openai.format":
		s.OpenAI.Format = ImageFormat(value)
	case "openai.background":
		s.OpenAI.Background = Background(value)
	case "openai.output_compression":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("%w: openai.output_compression: %v", ErrInvalidSetting, err)
		}
		s.OpenAI.OutputCompression = n
	case "openai.image_endpoint":
		s.OpenAI.ImageEndpoint = value
	case "gemini.model":
		s.Gemini.Model = value
	case "gemini.safety_threshold":
		s.Gemini.SafetyThreshold = SafetyThreshold(strings.ToUpper(value))
	case "gemini.base_endpoint":
		s.Gemini.BaseEndpoint = strings.TrimSuffix(value, "/")
	default:
		return fmt.Errorf("%w: %q", ErrUnknownSettingID, key)
	}
	return nil
}

type Field struct {
	Key   string
	Value string
}

// Fields lists every settable key with its current value, in display order.
func (s Settings) Fields() []Field {
	return []Field{
		{"xai.model", s.XAI.Model},
		{"xai.response_format", string(s.XAI.ResponseFormat)},
		{"xai.image_endpoint", s.XAI.ImageEndpoint},
		{"xai.chat_endpoint", s.XAI.ChatEndpoint},
		{"xai.chat_model", s.XAI.ChatModel},
		{"openai.model", s.OpenAI.Model},
		{"openai.size", string(s.OpenAI.Size)},
		{"openai.quality", string(s.OpenAI.Quality)},
		{"openai.format", string(s.OpenAI.Format)},
		{"openai.background", string(s.OpenAI.Background)},
		{"openai.output_compression", strconv.Itoa(s.OpenAI.OutputCompression)},
		{"openai.image_endpoint", s.OpenAI.ImageEndpoint},
		{"gemini.model", s.Gemini.Model},
		{"gemini.safety_threshold", string(s.Gemini.SafetyThreshold)},
		{"gemini.base_endpoint", s.Gemini.BaseEndpoint},
	}
}

func checkModel(registry *ModelRegistry, provider ProviderID, model string) error {
	cap, ok := registry.Get(model)
	if !ok || cap.Provider != provider {
		return fmt.Errorf("%w: %s.model %q (available: %v)", ErrUnknownModel, provider, model, registry.ListByProvider(provider))
	}
	return nil
}

func checkEnum[T ~string](key string, v T, allowed []T) error {
	if !slices.Contains(allowed, v) {
		return fmt.Errorf("%w: %s %q not in %v", ErrInvalidSetting, key, v, allowed)
	}
	return nil
}

func checkEndpoint(key, raw string) error {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" || (u.Scheme != "https" && u.Scheme != "http") {
		return fmt.Errorf("%w: %s %q is not an absolute http(s) URL", ErrInvalidSetting, key, raw)
	}
	return nil
}
