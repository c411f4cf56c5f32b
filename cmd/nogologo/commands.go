package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/samber/lo"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/manash/nogologo/internal/keys"
	"github.com/manash/nogologo/pkg/models"
)

func newRefineCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "refine [prompt]",
		Short: "Rewrite a prompt with xAI, falling back to a random style",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := commandContext(cmd)
			sess, err := app.open(ctx)
			if err != nil {
				return err
			}
			defer sess.Close()

			refinePrompt(ctx, app, sess, args[0])
			return nil
		},
	}
}

func newKeysCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "keys",
		Short: "Manage provider API keys",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "set <provider> [key]",
		Short: "Store an API key; reads it from stdin when omitted",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runKeysSet(cmd, args, app)
		},
	}, &cobra.Command{
		Use:   "list",
		Short: "Show which providers have a key and where it comes from",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runKeysList(cmd, app)
		},
	}, &cobra.Command{
		Use:   "delete <provider>",
		Short: "Remove a stored API key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := models.ParseProviderID(args[0])
			if err != nil {
				return err
			}
			sess, err := app.open(commandContext(cmd))
			if err != nil {
				return err
			}
			defer sess.Close()

			if err := sess.keys.Delete(id); err != nil {
				return err
			}
			fmt.Fprintf(app.Out, "Deleted %s key\n", id.DisplayName())
			return nil
		},
	}, &cobra.Command{
		Use:   "clear",
		Short: "Remove every stored API key",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			sess, err := app.open(commandContext(cmd))
			if err != nil {
				return err
			}
			defer sess.Close()

			if err := sess.keys.DeleteAll(); err != nil {
				return err
			}
			fmt.Fprintln(app.Out, "All stored keys removed")
			return nil
		},
	})
	return cmd
}

func runKeysSet(cmd *cobra.Command, args []string, app *App) error {
	id, err := models.ParseProviderID(args[0])
	if err != nil {
		return err
	}

	var key string
	if len(args) == 2 {
		key = args[1]
	} else {
		key, err = readKey(app.In, app.Out, id)
		if err != nil {
			return err
		}
	}

	sess, err := app.open(commandContext(cmd))
	if err != nil {
		return err
	}
	defer sess.Close()

	if err := sess.keys.Set(id, key); err != nil {
		return err
	}
	successColor.Fprintf(app.Out, "Saved %s key %s\n", id.DisplayName(), keys.MaskKey(strings.TrimSpace(key)))
	return nil
}

// readKey prompts without echo on a terminal and reads one line otherwise.
func readKey(in io.Reader, out io.Writer, id models.ProviderID) (string, error) {
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fmt.Fprintf(out, "Enter %s API key: ", id.DisplayName())
		raw, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(out)
		if err != nil {
			return "", fmt.Errorf("failed to read key: %w", err)
		}
		return string(raw), nil
	}

	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("failed to read key: %w", err)
	}
	return strings.TrimSpace(line), nil
}

func runKeysList(cmd *cobra.Command, app *App) error {
	sess, err := app.open(commandContext(cmd))
	if err != nil {
		return err
	}
	defer sess.Close()

	w := tabwriter.NewWriter(app.Out, 0, 4, 2, ' ', 0)
	for _, id := range models.AllProviders() {
		key, source, err := sess.resolver.Lookup(id)
		switch {
		case errors.Is(err, keys.ErrKeyNotFound):
			fmt.Fprintf(w, "%s\tnot set\t%s\n", id.DisplayName(), keys.EnvVar(id))
		case err != nil:
			return err
		default:
			fmt.Fprintf(w, "%s\t%s\t%s\n", id.DisplayName(), keys.MaskKey(key), source)
		}
	}
	return w.Flush()
}

func newConfigCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show and edit provider settings",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print every provider setting",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			sess, err := app.open(commandContext(cmd))
			if err != nil {
				return err
			}
			defer sess.Close()

			current, err := sess.settings.Load(commandContext(cmd))
			if err != nil {
				warnColor.Fprintf(app.Out, "Stored settings unreadable, showing defaults: %v\n", err)
			}
			return printFields(app.Out, current.Fields())
		},
	}, &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Change one setting, e.g. openai.quality high",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := commandContext(cmd)
			sess, err := app.open(ctx)
			if err != nil {
				return err
			}
			defer sess.Close()

			if _, err := sess.settings.Update(ctx, args[0], args[1]); err != nil {
				return err
			}
			fmt.Fprintf(app.Out, "%s = %s\n", strings.ToLower(args[0]), strings.TrimSpace(args[1]))
			return nil
		},
	}, &cobra.Command{
		Use:   "reset [provider...]",
		Short: "Restore defaults for the given providers, or all of them",
		RunE: func(cmd *cobra.Command, args []string) error {
			ids := make([]models.ProviderID, 0, len(args))
			for _, arg := range args {
				id, err := models.ParseProviderID(arg)
				if err != nil {
					return err
				}
				ids = append(ids, id)
			}

			ctx := commandContext(cmd)
			sess, err := app.open(ctx)
			if err != nil {
				return err
			}
			defer sess.Close()

			if err := sess.settings.Reset(ctx, ids...); err != nil {
				return err
			}
			if len(ids) == 0 {
				ids = models.AllProviders()
			}
			fmt.Fprintf(app.Out, "Reset %s to defaults\n",
				strings.Join(lo.Map(ids, func(id models.ProviderID, _ int) string { return id.DisplayName() }), ", "))
			return nil
		},
	})
	return cmd
}

func printFields(out io.Writer, fields []models.Field) error {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	for _, f := range fields {
		fmt.Fprintf(w, "%s\t%s\n", f.Key, f.Value)
	}
	return w.Flush()
}

func newModelsCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "models",
		Short: "List known models and what they support",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			w := tabwriter.NewWriter(app.Out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "PROVIDER\tMODEL\tNAME\tOUTPUT\tPER CALL\tOPTIONS")
			for _, id := range models.AllProviders() {
				for _, name := range app.Registry.ListByProvider(id) {
					cap, _ := app.Registry.Get(name)
					fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
						id, cap.Name, cap.DisplayName, outputKind(cap), perCall(cap), strings.Join(capabilityOptions(cap), ","))
				}
			}
			return w.Flush()
		},
	}
}

func outputKind(cap *models.ModelCapabilities) string {
	if cap.GeneratesImages {
		return "images"
	}
	return "text-only"
}

func perCall(cap *models.ModelCapabilities) string {
	if !cap.GeneratesImages {
		return "-"
	}
	return fmt.Sprint(cap.MaxImagesPerCall)
}

func capabilityOptions(cap *models.ModelCapabilities) []string {
	var opts []string
	if len(cap.SupportedSizes) > 0 {
		opts = append(opts, "size")
	}
	if cap.SupportsQuality {
		opts = append(opts, "quality")
	}
	if cap.SupportsBackground {
		opts = append(opts, "background")
	}
	if cap.SupportsOutputFormat {
		opts = append(opts, "format")
	}
	if cap.SupportsCompression {
		opts = append(opts, "compression")
	}
	if len(opts) == 0 {
		return []string{"-"}
	}
	return opts
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
