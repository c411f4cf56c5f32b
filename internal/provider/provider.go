package provider

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"

	"github.com/rs/zerolog"

	"github.com/manash/nogologo/internal/requestlog"
	"github.com/manash/nogologo/internal/security"
	"github.com/manash/nogologo/pkg/models"
)

var (
	ErrProviderNotFound = errors.New("provider not found")
	ErrNoImages         = errors.New("response contained no usable images")
)

// Call is one generateImages invocation. Settings is a snapshot taken when
// the call was dispatched.
type Call struct {
	Prompt   string
	Count    int
	APIKey   string
	Settings models.Settings
}

func (c *Call) Validate(id models.ProviderID) error {
	if c.APIKey == "" {
		return models.NewMissingCredential(id)
	}
	if c.Count < models.MinImageCount || c.Count > models.MaxImageCount {
		return fmt.Errorf("%w: %d", models.ErrInvalidCount, c.Count)
	}
	return nil
}

type Provider interface {
	ID() models.ProviderID
	// Generate returns at least one image or an error, never both.
	Generate(ctx context.Context, call *Call) ([][]byte, error)
}

// Config carries the collaborators shared by every provider client.
type Config struct {
	HTTPClient *http.Client
	Log        *requestlog.Log
	Registry   *models.ModelRegistry
	URLPolicy  security.URLPolicy
	// Logger is the parent of each provider's sub-logger.
	Logger     zerolog.Logger
}

// SubLogger tags the shared logger with the provider id.
func (c Config) SubLogger(id models.ProviderID) zerolog.Logger {
	return c.Logger.With().Str("provider", string(id)).Logger()
}

type Factory struct {
	providers map[models.ProviderID]Provider
}

func NewFactory(providers ...Provider) *Factory {
	f := &Factory{
		providers: make(map[models.ProviderID]Provider),
	}
	for _, p := range providers {
		f.Register(p)
	}
	return f
}

func (f *Factory) Register(provider Provider) {
	f.providers[provider.ID()] = provider
}

func (f *Factory) Get(id models.ProviderID) (Provider, error) {
	provider, ok := f.providers[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrProviderNotFound, id)
	}
	return provider, nil
}

func (f *Factory) ListProviders() []models.ProviderID {
	ids := make([]models.ProviderID, 0, len(f.providers))
	for id := range f.providers {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// BestEffort accumulates decoded images, dropping and logging items that
// fail rather than failing the whole batch.
type BestEffort struct {
	provider models.ProviderID
	log      *requestlog.Log
	logger   zerolog.Logger
	images   [][]byte
	dropped  int
}

func NewBestEffort(provider models.ProviderID, log *requestlog.Log, logger zerolog.Logger) *BestEffort {
	return &BestEffort{provider: provider, log: log, logger: logger}
}

func (b *BestEffort) Add(img []byte) {
	b.images = append(b.images, img)
}

func (b *BestEffort) Drop(index int, err error) {
	b.dropped++
	b.logger.Debug().Err(err).Int("index", index+1).Msg("dropping image")
	b.log.Appendf(requestlog.CategoryWarning, "[%s] dropping image %d: %v", b.provider, index+1, err)
}

// Images returns the kept images, or a parse error when none survived.
func (b *BestEffort) Images() ([][]byte, error) {
	b.logger.Debug().Int("kept", len(b.images)).Int("dropped", b.dropped).Msg("decoded images")
	if len(b.images) == 0 {
		if b.dropped > 0 {
			return nil, models.NewParseError(b.provider, "%w: all %d item(s) dropped", ErrNoImages, b.dropped)
		}
		return nil, models.NewParseError(b.provider, "%w", ErrNoImages)
	}
	return b.images, nil
}
