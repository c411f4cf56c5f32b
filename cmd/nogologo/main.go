package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/fatih/color"
	"github.com/hashicorp/go-multierror"
	"github.com/rs/zerolog"
	"github.com/samber/lo"
	"github.com/spf13/cobra"

	"github.com/manash/nogologo/internal/album"
	"github.com/manash/nogologo/internal/config"
	"github.com/manash/nogologo/internal/display"
	"github.com/manash/nogologo/internal/generate"
	"github.com/manash/nogologo/internal/keys"
	"github.com/manash/nogologo/internal/metrics"
	"github.com/manash/nogologo/internal/provider"
	"github.com/manash/nogologo/internal/provider/gemini"
	"github.com/manash/nogologo/internal/provider/openai"
	"github.com/manash/nogologo/internal/provider/xai"
	"github.com/manash/nogologo/internal/refine"
	"github.com/manash/nogologo/internal/requestlog"
	"github.com/manash/nogologo/internal/security"
	"github.com/manash/nogologo/internal/settings"
	"github.com/manash/nogologo/pkg/models"
)

var (
	version = "dev"
	commit  = "none"
)

var (
	flagCount     int
	flagProviders []string
	flagAlbum     string
	flagRefine    bool
	flagLogFile   string
	flagExportLog bool
	flagNoSave    bool
	flagPreview   bool
)

var (
	successColor = color.New(color.FgGreen)
	errorColor   = color.New(color.FgRed)
	warnColor    = color.New(color.FgYellow)
)

type App struct {
	Out      io.Writer
	Err      io.Writer
	In       io.Reader
	Registry *models.ModelRegistry
	GetEnv   func(string) string

	LoadConfig   func() (*config.Config, error)
	NewFactory   func(cfg provider.Config) *provider.Factory
	NewDisplayer func(out io.Writer, columns int) *display.Displayer
	// PreviewSupported reports whether Out can show inline images.
	PreviewSupported func(out io.Writer, getenv func(string) string) bool
}

func DefaultApp() *App {
	return &App{
		Out:              os.Stdout,
		Err:              os.Stderr,
		In:               os.Stdin,
		Registry:         models.DefaultRegistry(),
		GetEnv:           os.Getenv,
		LoadConfig:       config.Load,
		NewFactory:       defaultFactory,
		NewDisplayer:     display.New,
		PreviewSupported: display.Supported,
	}
}

func defaultFactory(cfg provider.Config) *provider.Factory {
	return provider.NewFactory(xai.New(cfg), openai.New(cfg), gemini.New(cfg))
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	app := DefaultApp()
	return newRootCmd(app).ExecuteContext(ctx)
}

func newRootCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "nogologo [prompt]",
		Short: "Generate images from several AI providers at once",
		Long: `nogologo sends one prompt to xAI, OpenAI and Gemini in parallel and
saves every returned image into a local album.

Providers without an API key are skipped. Store keys with
"nogologo keys set <provider>" or export XAI_API_KEY, OPENAI_API_KEY
or GEMINI_API_KEY.

Examples:
  nogologo "a minimalist fox logo"
  nogologo -n 3 -p openai,xai "retro diner sign"
  nogologo --refine --preview "a lighthouse at dusk"`,
		Args:          cobra.ExactArgs(1),
		Version:       fmt.Sprintf("%s (commit: %s)", version, commit),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGenerate(cmd, args, app)
		},
	}
	cmd.SetOut(app.Out)
	cmd.SetErr(app.Err)

	cmd.Flags().IntVarP(&flagCount, "count", "n", 1, fmt.Sprintf("images per provider (%d-%d)", models.MinImageCount, models.MaxImageCount))
	cmd.Flags().StringSliceVarP(&flagProviders, "providers", "p", nil, "providers to call (xai, openai, gemini); default all")
	cmd.Flags().StringVar(&flagAlbum, "album", "", "album to save into (defaults to NOGOLOGO_ALBUM)")
	cmd.Flags().BoolVar(&flagRefine, "refine", false, "refine the prompt with xAI before generating")
	cmd.Flags().StringVar(&flagLogFile, "log-file", "", "export the request log to this file")
	cmd.Flags().BoolVar(&flagExportLog, "log", false, "export the request log to "+requestlog.DefaultExportName+" unless --log-file is set")
	cmd.Flags().BoolVar(&flagNoSave, "no-save", false, "do not save images to the album")
	cmd.Flags().BoolVar(&flagPreview, "preview", false, "show images inline in supported terminals")

	cmd.AddCommand(
		newRefineCmd(app),
		newKeysCmd(app),
		newConfigCmd(app),
		newModelsCmd(app),
	)
	return cmd
}

// session holds the collaborators for one command invocation.
type session struct {
	cfg        *config.Config
	logger     zerolog.Logger
	log        *requestlog.Log
	metrics    *metrics.Metrics
	keys       *keys.Store
	resolver   *keys.Resolver
	settings   *settings.Store
	httpClient *http.Client
}

func (app *App) open(ctx context.Context) (*session, error) {
	cfg, err := app.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger := setupLogger(app.Err, cfg)
	store := keys.NewStore(cfg.ConfigDir)
	resolver := keys.NewResolver(store)
	resolver.Getenv = app.GetEnv

	db, err := settings.Open(ctx, cfg.SettingsDBPath(), app.Registry)
	if err != nil {
		return nil, fmt.Errorf("failed to open settings: %w", err)
	}

	return &session{
		cfg:        cfg,
		logger:     logger,
		log:        requestlog.New(logger),
		metrics:    metrics.New(),
		keys:       store,
		resolver:   resolver,
		settings:   db,
		httpClient: &http.Client{Timeout: cfg.HTTPTimeout},
	}, nil
}

func (s *session) Close() error {
	return s.settings.Close()
}

func setupLogger(w io.Writer, cfg *config.Config) zerolog.Logger {
	level, err := cfg.Level()
	if err != nil {
		level = zerolog.WarnLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: w, TimeFormat: "15:04:05"}).
		Level(level).
		With().
		Timestamp().
		Logger()
}

func parseProviders(names []string) ([]models.ProviderID, error) {
	names = lo.Filter(lo.Map(names, func(n string, _ int) string {
		return strings.ToLower(strings.TrimSpace(n))
	}), func(n string, _ int) bool { return n != "" })
	if len(names) == 0 {
		return models.AllProviders(), nil
	}

	ids := make([]models.ProviderID, 0, len(names))
	for _, name := range names {
		id, err := models.ParseProviderID(name)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return lo.Uniq(ids), nil
}

func runGenerate(cmd *cobra.Command, args []string, app *App) error {
	ctx := commandContext(cmd)

	ids, err := parseProviders(flagProviders)
	if err != nil {
		return err
	}

	sess, err := app.open(ctx)
	if err != nil {
		return err
	}
	defer sess.Close()

	prompt := args[0]
	if flagRefine {
		prompt = refinePrompt(ctx, app, sess, prompt).Prompt
	}

	orch := generate.New(generate.Config{
		Factory: app.NewFactory(provider.Config{
			HTTPClient: sess.httpClient,
			Log:        sess.log,
			Registry:   app.Registry,
			URLPolicy:  security.DefaultURLPolicy(),
			Logger:     sess.logger,
		}),
		Credentials: sess.resolver,
		Settings:    sess.settings,
		Log:         sess.log,
		Metrics:     sess.metrics,
		Logger:      sess.logger,
	})

	round, err := orch.Run(ctx, models.NewGenerationRequest(prompt, flagCount, ids...))
	if err != nil {
		return err
	}

	for _, id := range round.Skipped {
		warnColor.Fprintf(app.Out, "%s skipped: no API key (run 'nogologo keys set %s')\n", id.DisplayName(), id)
	}
	fmt.Fprintf(app.Out, "Generating %d image(s) with %s...\n", flagCount,
		strings.Join(lo.Map(round.Providers, func(id models.ProviderID, _ int) string { return id.DisplayName() }), ", "))

	albumName := flagAlbum
	if albumName == "" {
		albumName = sess.cfg.Album
	}
	library := album.NewLibrary(sess.cfg.LibraryDir)
	preview := flagPreview && app.PreviewSupported(app.Out, app.GetEnv)

	var errs *multierror.Error
	for res := range round.Results {
		if !res.OK() {
			errorColor.Fprintln(app.Out, res.Message())
			errs = multierror.Append(errs, fmt.Errorf("%s: %w", res.Provider, res.Err))
			continue
		}
		successColor.Fprintln(app.Out, res.Message())

		if preview {
			if err := app.NewDisplayer(app.Out, display.DefaultColumns).Show(res.Images); err != nil {
				sess.logger.Warn().Err(err).Str("provider", string(res.Provider)).Msg("preview failed")
			}
		}

		if flagNoSave {
			continue
		}
		paths, err := library.SaveBatch(ctx, res.Images, albumName)
		if err != nil {
			errorColor.Fprintf(app.Out, "%s: failed to save images: %v\n", res.Provider.DisplayName(), err)
			errs = multierror.Append(errs, fmt.Errorf("%s: %w", res.Provider, err))
			continue
		}
		for _, path := range paths {
			fmt.Fprintf(app.Out, "Saved: %s\n", path)
		}
	}

	if sess.cfg.MetricsFile != "" {
		if err := sess.metrics.WriteTextfile(sess.cfg.MetricsFile); err != nil {
			sess.logger.Warn().Err(err).Str("path", sess.cfg.MetricsFile).Msg("failed to write metrics")
		}
	}
	if path := logExportPath(); path != "" {
		if err := sess.log.Export(path); err != nil {
			errs = multierror.Append(errs, err)
		} else {
			fmt.Fprintf(app.Out, "Request log written to %s\n", path)
		}
	}

	return errs.ErrorOrNil()
}

func logExportPath() string {
	if flagLogFile == "" && flagExportLog {
		return requestlog.DefaultExportName
	}
	return flagLogFile
}

// refinePrompt runs the refiner with the stored xAI key. Without a key the
// refiner still returns the styled fallback.
func refinePrompt(ctx context.Context, app *App, sess *session, prompt string) refine.Outcome {
	current, err := sess.settings.Load(ctx)
	if err != nil {
		sess.logger.Warn().Err(err).Msg("using default settings")
	}

	credential, _ := sess.resolver.Get(models.ProviderXAI)
	refiner := refine.New(refine.Config{
		HTTPClient: sess.httpClient,
		Log:        sess.log,
		Metrics:    sess.metrics,
		Model:      current.XAI.ChatModel,
	})

	out := refiner.RefineWithOutcome(ctx, prompt, credential, current.XAI.ChatEndpoint)
	if out.Refined {
		successColor.Fprintf(app.Out, "Refined prompt: %s\n", out.Prompt)
	} else {
		warnColor.Fprintf(app.Out, "Refinement failed (%v), using: %s\n", out.Err, out.Prompt)
	}
	return out
}
