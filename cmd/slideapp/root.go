package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"slideapp/internal/catalog"
	"slideapp/internal/config"
	"slideapp/internal/core"
	"slideapp/internal/logging"
	"slideapp/internal/plan"
	"slideapp/internal/slidebook"
)

// app carries state shared by all subcommands of one invocation.
type app struct {
	configFile   string
	primaryCSV   string
	secondaryCSV string
	output       string
	trace        bool

	cfg      *config.Config
	logger   *zap.Logger
	registry *prometheus.Registry
	svc      *core.Service
	closers  []func() error
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:           "slideapp",
		Short:         "Plan antibody panels, master mixes and slide books",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd)
		},
		PersistentPostRunE: func(*cobra.Command, []string) error {
			return a.teardown()
		},
	}
	flags := root.PersistentFlags()
	flags.StringVar(&a.configFile, "config", "", "YAML config file (default ./slideapp.yaml when present)")
	flags.StringVar(&a.primaryCSV, "primaries", "", "primary antibody catalog CSV (overrides primary_catalog)")
	flags.StringVar(&a.secondaryCSV, "secondaries", "", "secondary antibody catalog CSV (overrides secondary_catalog)")
	flags.StringVarP(&a.output, "output", "o", "text", "output format: text or json")
	flags.BoolVar(&a.trace, "trace", false, "write one JSON trace line per operation to stderr")

	root.AddCommand(
		newValidateCmd(a),
		newDefaultsCmd(a),
		newCheckSecondaryCmd(a),
		newSuggestCmd(a),
		newProtocolCmd(a),
		newRunsCmd(a),
		newServeMetricsCmd(a),
	)
	return root
}

func (a *app) setup(cmd *cobra.Command) error {
	if a.output != "text" && a.output != "json" {
		return fmt.Errorf("unknown output format %q", a.output)
	}
	cfg, err := config.Load(config.Options{ConfigFile: a.configFile})
	if err != nil {
		return err
	}
	a.cfg = cfg

	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return err
	}
	a.logger = logger

	primaryPath, secondaryPath := cfg.PrimaryCatalog, cfg.SecondaryCatalog
	if a.primaryCSV != "" {
		primaryPath = a.primaryCSV
	}
	if a.secondaryCSV != "" {
		secondaryPath = a.secondaryCSV
	}
	cat, err := catalog.Load(primaryPath, secondaryPath)
	if err != nil {
		return err
	}
	logger.Debug("catalog loaded",
		zap.String("command", cmd.Name()),
		zap.Int("primaries", len(cat.PrimaryList())),
		zap.Int("secondaries", len(cat.SecondaryList())))

	a.registry = prometheus.NewRegistry()
	if err := a.registry.Register(collectors.NewGoCollector()); err != nil {
		return err
	}
	if err := a.registry.Register(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{})); err != nil {
		return err
	}
	metrics, err := core.NewPrometheusRecorder(a.registry)
	if err != nil {
		return err
	}

	opts := []core.Option{
		core.WithLogger(logger),
		core.WithMetricsRecorder(metrics),
		core.WithDefaults(core.Defaults{
			Channels:          cfg.Channels,
			Width:             cfg.DefaultWidth,
			PrimaryVolumeUL:   cfg.PrimaryVolumeUL,
			SecondaryVolumeUL: cfg.SecondaryVolumeUL,
		}),
	}
	if a.trace {
		opts = append(opts, core.WithTracer(core.NewJSONTracer(cmd.ErrOrStderr())))
	}
	if needsRecorder(cmd) {
		rec, err := a.openRecorder(cmd.Context())
		if err != nil {
			return err
		}
		opts = append(opts, core.WithRecorder(rec))
	}
	a.svc = core.NewService(cat, opts...)
	return nil
}

// needsRecorder reports whether cmd sits under the runs command.
func needsRecorder(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Name() == "runs" {
			return true
		}
	}
	return false
}

func (a *app) openRecorder(ctx context.Context) (*slidebook.Recorder, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	store, err := core.OpenRunStore(ctx, a.cfg)
	if err != nil {
		return nil, fmt.Errorf("open run store: %w", err)
	}
	blobs, err := core.OpenExportStore(ctx, a.cfg)
	if err != nil {
		return nil, errors.Join(fmt.Errorf("open export store: %w", err), store.Close())
	}
	a.closers = append(a.closers, store.Close)
	return slidebook.NewRecorder(store, blobs, slidebook.WithLogger(a.logger)), nil
}

func (a *app) teardown() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	a.closers = nil
	if a.logger != nil {
		_ = a.logger.Sync()
	}
	return errors.Join(errs...)
}

func (a *app) loadPlan(path string) (*plan.Plan, error) {
	if path == "" {
		return &plan.Plan{}, nil
	}
	return plan.Load(path)
}

// emit writes v as indented JSON when --output json, otherwise calls text.
func (a *app) emit(w io.Writer, v any, text func(io.Writer)) error {
	if a.output == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	text(w)
	return nil
}
