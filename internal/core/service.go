// Package core composes the antibody catalog, the rule engine, master mix
// planning and run recording into the operations exposed by the CLI.
package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"slideapp/internal/catalog"
	"slideapp/internal/logging"
	"slideapp/internal/mastermix"
	"slideapp/internal/plan"
	"slideapp/internal/rules"
	"slideapp/internal/slidebook"
	"slideapp/pkg/reagent"
)

// ErrNotFound is returned when a name is missing from the catalog.
type ErrNotFound = catalog.ErrNotFound

// ErrNoRecorder is returned by run operations on a service built without one.
var ErrNoRecorder = errors.New("core: no run recorder configured")

// Defaults fill plan settings left blank.
type Defaults struct {
	Channels          []string
	Width             int
	PrimaryVolumeUL   float64
	SecondaryVolumeUL float64
	// Workers bounds ValidateRows concurrency; 0 is unbounded.
	Workers int
}

// Service exposes the slide planning operations.
type Service struct {
	catalog  *catalog.Catalog
	recorder *slidebook.Recorder
	defaults Defaults
	logger   *zap.Logger
	metrics  MetricsRecorder
	tracer   Tracer
	now      func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the logger; nil installs a no-op logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Service) {
		s.logger = logging.OrNop(l)
	}
}

// WithMetricsRecorder sets the metrics sink.
func WithMetricsRecorder(m MetricsRecorder) Option {
	return func(s *Service) {
		if m != nil {
			s.metrics = m
		}
	}
}

// WithTracer sets the tracer.
func WithTracer(t Tracer) Option {
	return func(s *Service) {
		if t != nil {
			s.tracer = t
		}
	}
}

// WithRecorder enables SaveRun and ListRuns.
func WithRecorder(r *slidebook.Recorder) Option {
	return func(s *Service) { s.recorder = r }
}

// WithDefaults sets fallback plan settings.
func WithDefaults(d Defaults) Option {
	return func(s *Service) { s.defaults = d }
}

// NewService returns a service over cat. A nil catalog behaves as empty.
func NewService(cat *catalog.Catalog, opts ...Option) *Service {
	if cat == nil {
		cat = catalog.New(nil, nil)
	}
	s := &Service{
		catalog:  cat,
		defaults: Defaults{Width: rules.DefaultWidth},
		logger:   zap.NewNop(),
		metrics:  noopMetrics{},
		tracer:   noopTracer{},
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Catalog returns the catalog the service resolves names against.
func (s *Service) Catalog() *catalog.Catalog { return s.catalog }

// observe wraps one operation with tracing, metrics and logging.
func (s *Service) observe(ctx context.Context, op string, fn func(context.Context) error) error {
	ctx, span := s.tracer.Start(ctx, op)
	start := s.now()
	err := fn(ctx)
	elapsed := s.now().Sub(start)
	span.End(err)
	s.metrics.Observe(ctx, op, err == nil, elapsed)
	if err != nil {
		s.logger.Warn("operation failed", zap.String("operation", op), zap.Duration("elapsed", elapsed), zap.Error(err))
	} else {
		s.logger.Debug("operation complete", zap.String("operation", op), zap.Duration("elapsed", elapsed))
	}
	return err
}

// selection drops blank and "None" entries from a name list.
func selection(names []string) []string {
	out := make([]string, 0, len(names))
	for _, n := range names {
		n = strings.TrimSpace(n)
		if n == "" || n == mastermix.None {
			continue
		}
		out = append(out, n)
	}
	return out
}

// ValidatePrimaries checks a primary selection against the serum host.
func (s *Service) ValidatePrimaries(ctx context.Context, serum string, names []string) (reagent.Result, error) {
	var res reagent.Result
	err := s.observe(ctx, "validate_primaries", func(context.Context) error {
		selected, err := s.catalog.Primaries(selection(names)...)
		if err != nil {
			return err
		}
		res = rules.EvaluatePrimarySelection(selected, serum)
		res.Merge(concentrationWarnings(selected))
		return nil
	})
	return res, err
}

// RuleMissingConcentration flags primaries whose protocol volume will be 0.
const RuleMissingConcentration = "missing_concentration"

func concentrationWarnings(selected []reagent.PrimaryAntibody) reagent.Result {
	var res reagent.Result
	for _, p := range selected {
		if p.Concentration != nil {
			continue
		}
		res.Violations = append(res.Violations, reagent.Violation{
			Rule:     RuleMissingConcentration,
			Severity: reagent.SeverityWarn,
			Message:  fmt.Sprintf("%s has no catalog concentration; give a dilution in the plan", p.Name),
			Subject:  p.Name,
		})
	}
	return res
}

// DefaultPrimaries proposes up to width primaries compatible with serum.
// width 0 uses the configured default.
func (s *Service) DefaultPrimaries(ctx context.Context, serum string, width int) ([]string, error) {
	if width == 0 {
		width = s.defaults.Width
	}
	var names []string
	err := s.observe(ctx, "default_primaries", func(context.Context) error {
		names = rules.FindValidDefaultSet(s.catalog.PrimaryList(), serum, width)
		return nil
	})
	return names, err
}

// CheckSecondary evaluates candidate against the secondaries already chosen
// for the selected primaries.
func (s *Service) CheckSecondary(ctx context.Context, candidate string, selected, primaries []string) (reagent.Result, error) {
	var res reagent.Result
	err := s.observe(ctx, "check_secondary", func(context.Context) error {
		cand, ok := s.catalog.SecondaryByName(candidate)
		if !ok {
			return ErrNotFound{Kind: "secondary", Name: candidate}
		}
		chosen, err := s.catalog.Secondaries(selection(selected)...)
		if err != nil {
			return err
		}
		prims, err := s.catalog.Primaries(selection(primaries)...)
		if err != nil {
			return err
		}
		res = rules.EvaluateSecondary(cand, chosen, prims)
		return nil
	})
	return res, err
}

// SuggestSecondaries assigns a secondary to each channel. Empty channels use
// the configured defaults.
func (s *Service) SuggestSecondaries(ctx context.Context, channels, primaries []string) ([]rules.ChannelAssignment, error) {
	if len(channels) == 0 {
		channels = s.defaults.Channels
	}
	var out []rules.ChannelAssignment
	err := s.observe(ctx, "suggest_secondaries", func(context.Context) error {
		prims, err := s.catalog.Primaries(selection(primaries)...)
		if err != nil {
			return err
		}
		out = rules.PlanSecondaryChannels(channels, s.catalog.SecondaryList(), prims)
		return nil
	})
	return out, err
}

// ValidateRows validates every slide row's primaries concurrently.
func (s *Service) ValidateRows(ctx context.Context, serum string, rows [][]string) ([]rules.RowResult, error) {
	var out []rules.RowResult
	err := s.observe(ctx, "validate_rows", func(ctx context.Context) error {
		resolved := make([][]reagent.PrimaryAntibody, len(rows))
		for i, row := range rows {
			prims, err := s.catalog.Primaries(selection(row)...)
			if err != nil {
				return fmt.Errorf("row %d: %w", i+1, err)
			}
			resolved[i] = prims
		}
		var err error
		out, err = rules.ValidateRows(ctx, resolved, serum, s.defaults.Workers)
		return err
	})
	return out, err
}

// PrimaryProtocol computes the primary incubation for a plan. Dilutions
// missing from the plan fall back to the catalog concentration.
func (s *Service) PrimaryProtocol(ctx context.Context, p *plan.Plan) (mastermix.PrimaryProtocol, error) {
	var proto mastermix.PrimaryProtocol
	err := s.observe(ctx, "primary_protocol", func(context.Context) error {
		rows := p.PrimaryRows()
		mixes := mastermix.CollectPrimaryMixes(rows, mastermix.AssignPrimaryMixes(rows))
		conc := p.Concentrations()
		for _, mix := range mixes {
			for _, name := range mix.Antibodies {
				if _, ok := conc[name]; ok {
					continue
				}
				ab, ok := s.catalog.PrimaryByName(name)
				if !ok {
					return ErrNotFound{Kind: "primary", Name: name}
				}
				if ab.Concentration != nil {
					conc[name] = *ab.Concentration
				}
			}
		}
		volume := p.Primary.VolumeUL
		if volume == 0 {
			volume = s.defaults.PrimaryVolumeUL
		}
		proto = mastermix.BuildPrimaryProtocol(mastermix.PrimaryInput{
			TotalSlides:    len(p.Slides),
			VolumeUL:       volume,
			Method:         p.Primary.Method,
			Mixes:          mixes,
			Concentrations: conc,
		})
		return nil
	})
	return proto, err
}

// SecondaryProtocol computes the secondary incubation for a plan.
func (s *Service) SecondaryProtocol(ctx context.Context, p *plan.Plan) (mastermix.SecondaryProtocol, error) {
	var proto mastermix.SecondaryProtocol
	err := s.observe(ctx, "secondary_protocol", func(context.Context) error {
		channels := s.channels(p)
		mixes, _ := mastermix.GroupSecondaryMixes(p.SecondaryRows(), channels)
		dilutions := make(map[string]string, len(p.Secondary.Dilutions))
		for name, d := range p.Secondary.Dilutions {
			dilutions[name] = d
		}
		for _, mix := range mixes {
			for _, name := range mix.ChannelSecondary {
				if _, ok := dilutions[name]; ok {
					continue
				}
				sec, ok := s.catalog.SecondaryByName(name)
				if !ok {
					return ErrNotFound{Kind: "secondary", Name: name}
				}
				dilutions[name] = sec.ConcentrationText
			}
		}
		volume := p.Secondary.VolumeUL
		if volume == 0 {
			volume = s.defaults.SecondaryVolumeUL
		}
		proto = mastermix.BuildSecondaryProtocol(mastermix.SecondaryInput{
			TotalSlides: len(p.Slides),
			VolumeUL:    volume,
			Method:      p.Secondary.Method,
			Channels:    channels,
			Mixes:       mixes,
			Dilutions:   dilutions,
		})
		return nil
	})
	return proto, err
}

// SaveRun records the plan's final slide book for username, or for the
// plan's own username when username is blank.
func (s *Service) SaveRun(ctx context.Context, username string, p *plan.Plan) (slidebook.Run, error) {
	var run slidebook.Run
	err := s.observe(ctx, "save_run", func(ctx context.Context) error {
		if s.recorder == nil {
			return ErrNoRecorder
		}
		if strings.TrimSpace(username) == "" {
			username = p.Username
		}
		channels := s.channels(p)
		primaryIDs := mastermix.AssignPrimaryMixes(p.PrimaryRows())
		_, secondaryIDs := mastermix.GroupSecondaryMixes(p.SecondaryRows(), channels)
		var err error
		run, err = s.recorder.Save(ctx, username, slidebook.Payload{
			Slides: p.Book(primaryIDs, secondaryIDs, channels),
		})
		return err
	})
	return run, err
}

// ListRuns returns username's runs, newest first.
func (s *Service) ListRuns(ctx context.Context, username string) ([]slidebook.Run, error) {
	var runs []slidebook.Run
	err := s.observe(ctx, "list_runs", func(ctx context.Context) error {
		if s.recorder == nil {
			return ErrNoRecorder
		}
		var err error
		runs, err = s.recorder.ListRuns(ctx, strings.TrimSpace(username))
		return err
	})
	return runs, err
}

// Locations returns the storage locations username has used, most recent first.
func (s *Service) Locations(ctx context.Context, username string) ([]string, error) {
	var locs []string
	err := s.observe(ctx, "locations", func(ctx context.Context) error {
		if s.recorder == nil {
			return ErrNoRecorder
		}
		var err error
		locs, err = s.recorder.Locations(ctx, strings.TrimSpace(username))
		return err
	})
	return locs, err
}

func (s *Service) channels(p *plan.Plan) []string {
	if len(p.Channels) > 0 {
		return p.Channels
	}
	return s.defaults.Channels
}
