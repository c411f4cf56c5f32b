// Package generate fans a prompt out to the selected providers. Each provider
// runs independently and its result is delivered as soon as it finishes.
package generate

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/manash/nogologo/internal/keys"
	"github.com/manash/nogologo/internal/metrics"
	"github.com/manash/nogologo/internal/provider"
	"github.com/manash/nogologo/internal/requestlog"
	"github.com/manash/nogologo/pkg/models"
)

var ErrNothingToDispatch = errors.New("no selected provider has a stored API key")

// CredentialSource returns the stored key for a provider. A missing key is
// reported as keys.ErrKeyNotFound or an empty string; any other error means
// the store could not be read.
type CredentialSource interface {
	Get(id models.ProviderID) (string, error)
}

type SettingsSource interface {
	Load(ctx context.Context) (models.Settings, error)
}

type Config struct {
	Factory     *provider.Factory
	Credentials CredentialSource
	// Settings may be nil, in which case defaults are used.
	Settings SettingsSource
	Log      *requestlog.Log
	Metrics  *metrics.Metrics
	Logger   zerolog.Logger
}

type Orchestrator struct {
	factory     *provider.Factory
	credentials CredentialSource
	settings    SettingsSource
	log         *requestlog.Log
	metrics     *metrics.Metrics
	logger      zerolog.Logger
}

func New(cfg Config) *Orchestrator {
	return &Orchestrator{
		factory:     cfg.Factory,
		credentials: cfg.Credentials,
		settings:    cfg.Settings,
		log:         cfg.Log,
		metrics:     cfg.Metrics,
		logger:      cfg.Logger,
	}
}

// Round is one dispatched generation. Results yields exactly one result per
// provider in Providers, in completion order, and is closed after the last.
type Round struct {
	Providers []models.ProviderID
	Skipped   []models.ProviderID
	Results   <-chan models.Result

	done chan struct{}
}

// Done is closed once every dispatched provider has completed.
func (r *Round) Done() <-chan struct{} {
	return r.done
}

// Collect drains Results and returns them in completion order.
func (r *Round) Collect() []models.Result {
	results := make([]models.Result, 0, len(r.Providers))
	for res := range r.Results {
		results = append(results, res)
	}
	return results
}

// Run validates req, snapshots the settings and starts one goroutine per
// provider that has a credential. Providers without one are skipped.
func (o *Orchestrator) Run(ctx context.Context, req *models.GenerationRequest) (*Round, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	settings := models.DefaultSettings()
	if o.settings != nil {
		loaded, err := o.settings.Load(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to load provider settings: %w", err)
		}
		settings = loaded
	}

	type dispatch struct {
		id  models.ProviderID
		key string
	}

	var (
		jobs    []dispatch
		skipped []models.ProviderID
	)
	for _, id := range req.Providers {
		key, err := o.credentials.Get(id)
		switch {
		case err != nil && !errors.Is(err, keys.ErrKeyNotFound):
			skipped = append(skipped, id)
			o.log.Appendf(requestlog.CategoryWarning, "skipping %s: failed to read API key: %v", id.DisplayName(), err)
			o.logger.Warn().Str("provider", id.String()).Err(err).Msg("failed to read credential")
			continue
		case err != nil || key == "":
			skipped = append(skipped, id)
			o.log.Appendf(requestlog.CategoryWarning, "skipping %s: no API key stored", id.DisplayName())
			o.logger.Debug().Str("provider", id.String()).Err(err).Msg("skipping provider without credential")
			continue
		}
		jobs = append(jobs, dispatch{id: id, key: key})
	}

	if len(jobs) == 0 {
		return nil, ErrNothingToDispatch
	}

	results := make(chan models.Result, len(jobs))
	round := &Round{
		Skipped: skipped,
		Results: results,
		done:    make(chan struct{}),
	}

	o.log.Appendf(requestlog.CategoryInfo, "generating %d image(s) with %d provider(s) for prompt %q",
		req.ImageCount, len(jobs), req.Prompt)

	var wg sync.WaitGroup
	for _, job := range jobs {
		round.Providers = append(round.Providers, job.id)

		call := &provider.Call{
			Prompt:   req.Prompt,
			Count:    req.ImageCount,
			APIKey:   job.key,
			Settings: settings,
		}

		wg.Add(1)
		go func(id models.ProviderID) {
			defer wg.Done()
			results <- o.generate(ctx, id, call)
		}(job.id)
	}

	go func() {
		wg.Wait()
		close(results)
		close(round.done)
	}()

	return round, nil
}

func (o *Orchestrator) generate(ctx context.Context, id models.ProviderID, call *provider.Call) models.Result {
	start := time.Now()
	result := models.Result{Provider: id}

	p, err := o.factory.Get(id)
	if err == nil {
		result.Images, result.Err = p.Generate(ctx, call)
	} else {
		result.Err = err
	}
	result.Duration = time.Since(start)

	if result.Err != nil {
		result.Images = nil
		o.log.Appendf(requestlog.CategoryError, "%s", result.Message())
	} else {
		o.log.Appendf(requestlog.CategoryInfo, "%s in %s", result.Message(), result.Duration.Round(time.Millisecond))
	}

	o.logger.Debug().
		Str("provider", id.String()).
		Int("images", len(result.Images)).
		Dur("duration", result.Duration).
		Err(result.Err).
		Msg("provider call finished")

	o.metrics.ObserveResult(result)
	return result
}
