package main

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/syssam/zgen"
	"github.com/syssam/zgen/compiler/console"
	"github.com/syssam/zgen/compiler/gen"
	"github.com/syssam/zgen/compiler/watch"
)

type rootOptions struct {
	config  string
	verbose bool
}

// setup loads the configuration and builds the pipeline. Only its errors
// make the command fail; synchronization failures are logged.
func (o *rootOptions) setup() (*gen.Config, *gen.Pipeline, *slog.Logger, error) {
	level := slog.LevelInfo
	if o.verbose {
		level = slog.LevelDebug
	}
	log := console.New(os.Stderr, &console.Options{Level: level, NoColor: color.NoColor})

	file := o.config
	if file == "" {
		file = gen.DefaultConfigFile
	}
	cfg, err := gen.LoadConfig(file)
	if errors.Is(err, fs.ErrNotExist) && o.config == "" {
		cfg, err = gen.NewConfig()
	}
	if err != nil {
		return nil, nil, nil, err
	}
	// Watcher events and command arguments carry absolute paths.
	if root, err := filepath.Abs(cfg.Root); err == nil {
		cfg.Root = root
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, nil, err
	}
	return cfg, gen.NewPipeline(cfg, log), log, nil
}

func summary(log *slog.Logger, s zgen.StatsSnapshot) {
	log.Info("done",
		"created", s.Created,
		"updated", s.Updated,
		"deleted", s.Deleted,
		"skipped", s.Skipped,
		"failed", s.Failed,
	)
}

func absPaths(args []string) []string {
	out := make([]string, len(args))
	for i, a := range args {
		if p, err := filepath.Abs(a); err == nil {
			a = p
		}
		out[i] = a
	}
	return out
}

func watchCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Regenerate artifacts whenever table or procedure scripts change",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, p, log, err := opts.setup()
			if err != nil {
				return err
			}
			schemas, err := cfg.SchemaNames()
			if err != nil {
				return err
			}
			var dirs []string
			for _, s := range schemas {
				l := cfg.Layout(s)
				dirs = append(dirs, l.Tables, l.Procedures)
			}
			w, err := watch.NewWatcher(dirs, watch.IsSQL, log)
			if err != nil {
				return err
			}
			defer w.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			log.Info("watching", "schemas", len(schemas), "debounce", cfg.Debounce)
			err = watch.Run(ctx, w, watch.NewDebouncer[string](cfg.Debounce), func(ctx context.Context, ev watch.Event) {
				_ = p.Dispatch(ctx, ev)
			})
			summary(log, p.Stats())
			return err
		},
	}
}

// sourceCmd runs fn for every path argument.
func sourceCmd(opts *rootOptions, use, short string, fn func(*gen.Pipeline) func(context.Context, string) error) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <file>...",
		Short: short,
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, p, log, err := opts.setup()
			if err != nil {
				return err
			}
			run := fn(p)
			for _, path := range absPaths(args) {
				_ = run(cmd.Context(), path)
			}
			summary(log, p.Stats())
			return nil
		},
	}
}

func generateCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Synchronize the artifacts of schema sources once",
	}
	cmd.AddCommand(
		sourceCmd(opts, "table", "Generate the model and procedure scripts of tables",
			func(p *gen.Pipeline) func(context.Context, string) error { return p.TableChanged }),
		sourceCmd(opts, "procedure", "Generate repositories and services of procedures",
			func(p *gen.Pipeline) func(context.Context, string) error { return p.ProcedureChanged }),
		sourceCmd(opts, "model", "Generate client data modules of models",
			func(p *gen.Pipeline) func(context.Context, string) error { return p.ModelChanged }),
		allCmd(opts),
	)
	return cmd
}

func allCmd(opts *rootOptions) *cobra.Command {
	var schemas []string
	cmd := &cobra.Command{
		Use:   "all",
		Short: "Regenerate every table and procedure of the configured schemas",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, p, log, err := opts.setup()
			if err != nil {
				return err
			}
			if len(schemas) == 0 {
				if schemas, err = cfg.SchemaNames(); err != nil {
					return err
				}
			}
			for _, s := range schemas {
				_ = p.RegenerateAll(cmd.Context(), s)
			}
			summary(log, p.Stats())
			return nil
		},
	}
	cmd.Flags().StringSliceVarP(&schemas, "schema", "s", nil, "schemas to regenerate (default all)")
	return cmd
}

func deleteCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete",
		Short: "Remove the artifacts of deleted schema sources",
	}
	cmd.AddCommand(
		sourceCmd(opts, "table", "Delete the model and procedure scripts of tables",
			func(p *gen.Pipeline) func(context.Context, string) error { return p.TableDeleted }),
		sourceCmd(opts, "procedure", "Delete the members generated for procedures",
			func(p *gen.Pipeline) func(context.Context, string) error { return p.ProcedureDeleted }),
		sourceCmd(opts, "model", "Delete client data modules of models",
			func(p *gen.Pipeline) func(context.Context, string) error { return p.ModelDeleted }),
	)
	return cmd
}
