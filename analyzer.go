package rbd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("rbd.analyzer")

// Analysis stages, used as span names, log keys and metric labels.
const (
	StagePaths     = "paths"
	StageCutSets   = "cutsets"
	StageCalculate = "calculate"
)

// Recorder receives analysis measurements. metrics.Registry implements it.
type Recorder interface {
	RecordAnalysis(status string, d time.Duration)
	RecordStage(stage string, d time.Duration)
	RecordCutSets(paths, cutSets int)
	RecordClamp()
}

// NopRecorder discards every measurement.
type NopRecorder struct{}

func (NopRecorder) RecordAnalysis(string, time.Duration) {}
func (NopRecorder) RecordStage(string, time.Duration)    {}
func (NopRecorder) RecordCutSets(int, int)               {}
func (NopRecorder) RecordClamp()                         {}

// Analyzer runs the three analysis stages over a whole diagram.
// It holds no per-analysis state and is safe for concurrent use.
type Analyzer struct {
	logger        *slog.Logger
	recorder      Recorder
	workers       int
	maxComponents int
	mode          Mode
	timeout       time.Duration
	progress      chan<- ProgressEvent
}

// Option configures an Analyzer.
type Option func(*Analyzer)

func WithLogger(l *slog.Logger) Option {
	return func(a *Analyzer) { a.logger = l }
}

func WithRecorder(r Recorder) Option {
	return func(a *Analyzer) { a.recorder = r }
}

// WithWorkers sets the goroutine count for the cut-set search and the
// inclusion-exclusion sum.
func WithWorkers(n int) Option {
	return func(a *Analyzer) { a.workers = n }
}

// WithMaxComponents rejects diagrams whose paths involve more components.
// Values above 63 have no effect.
func WithMaxComponents(n int) Option {
	return func(a *Analyzer) { a.maxComponents = n }
}

func WithMode(m Mode) Option {
	return func(a *Analyzer) { a.mode = m }
}

// WithTimeout bounds each Analyze call. Zero means no bound beyond ctx.
func WithTimeout(d time.Duration) Option {
	return func(a *Analyzer) { a.timeout = d }
}

// WithProgress forwards cut-set search progress to ch. See
// CutSetOptions.Progress.
func WithProgress(ch chan<- ProgressEvent) Option {
	return func(a *Analyzer) { a.progress = ch }
}

// NewAnalyzer returns an Analyzer in exact mode using every CPU.
func NewAnalyzer(opts ...Option) *Analyzer {
	a := &Analyzer{
		logger:   slog.Default(),
		recorder: NopRecorder{},
		workers:  runtime.NumCPU(),
		mode:     ModeExact,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// With returns a copy of a with opts applied on top.
func (a *Analyzer) With(opts ...Option) *Analyzer {
	c := *a
	for _, opt := range opts {
		opt(&c)
	}
	return &c
}

// Mode reports the calculation mode the analyzer uses.
func (a *Analyzer) Mode() Mode { return a.mode }

// Analyze validates d, enumerates its success paths, finds the minimal cut
// sets and computes system reliability from the component probabilities
// current at call time. d is not modified.
//
// A diagram with no route from source to sink fails with *NoPathError.
// A nil diagram fails with ErrInvalidDiagram.
func (a *Analyzer) Analyze(ctx context.Context, d *Diagram) (*Result, error) {
	start := time.Now()
	if d == nil {
		err := fmt.Errorf("%w: nil diagram", ErrInvalidDiagram)
		a.recorder.RecordAnalysis(statusOf(err), time.Since(start))
		return nil, err
	}

	if a.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}

	ctx, span := tracer.Start(ctx, "Analyzer.Analyze", trace.WithAttributes(
		attribute.String("diagram_id", d.ID),
		attribute.String("mode", string(a.mode)),
		attribute.Int("workers", a.workers),
	))
	defer span.End()

	logger := a.logger.With(slog.String("diagram_id", d.ID))

	result, err := a.analyze(ctx, d, logger)
	status := statusOf(err)
	elapsed := time.Since(start)
	a.recorder.RecordAnalysis(status, elapsed)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, status)
		logger.Warn("analysis failed",
			slog.String("status", status),
			slog.Duration("duration", elapsed),
			slog.Any("error", err),
		)
		return nil, err
	}

	result.ID = uuid.NewString()
	result.DiagramID = d.ID
	result.CreatedAt = start.UTC()
	result.Duration = elapsed

	span.SetAttributes(
		attribute.Float64("unreliability", result.Unreliability),
		attribute.Int("cut_sets", len(result.CutSets)),
	)
	logger.Info("analysis complete",
		slog.String("analysis_id", result.ID),
		slog.Int("paths", len(result.Paths)),
		slog.Int("cut_sets", len(result.CutSets)),
		slog.Float64("reliability", result.Reliability),
		slog.Duration("duration", elapsed),
	)
	return result, nil
}

func (a *Analyzer) analyze(ctx context.Context, d *Diagram, logger *slog.Logger) (*Result, error) {
	diagram, err := d.Normalized()
	if err != nil {
		return nil, err
	}

	paths, err := runStage(ctx, a, logger, StagePaths, func(context.Context) ([]Path, error) {
		return EnumeratePaths(diagram, Source, Sink)
	})
	if err != nil {
		return nil, err
	}
	if len(paths) == 0 {
		return nil, &NoPathError{Source: Source, Sink: Sink}
	}

	cutSets, err := runStage(ctx, a, logger, StageCutSets, func(ctx context.Context) ([]CutSet, error) {
		return FindMinimalCutSetsContext(ctx, paths, CutSetOptions{
			Workers:       a.workers,
			MaxComponents: a.maxComponents,
			Progress:      a.progress,
		})
	})
	if err != nil {
		return nil, err
	}
	a.recorder.RecordCutSets(len(paths), len(cutSets))

	result, err := runStage(ctx, a, logger, StageCalculate, func(ctx context.Context) (*Result, error) {
		return AnalyzeContext(ctx, cutSets, diagram.Probabilities(), CalcOptions{
			Mode:    a.mode,
			Workers: a.workers,
		})
	})
	if err != nil {
		return nil, err
	}
	if result.Clamped {
		a.recorder.RecordClamp()
		logger.Warn("unreliability clamped into [0, 1]",
			slog.Float64("unreliability", result.Unreliability),
			slog.Int("terms", result.Terms),
		)
	}

	result.Paths = paths
	return result, nil
}

// runStage runs fn inside a child span and records its duration.
func runStage[T any](ctx context.Context, a *Analyzer, logger *slog.Logger, stage string, fn func(context.Context) (T, error)) (T, error) {
	ctx, span := tracer.Start(ctx, "Analyzer."+stage)
	defer span.End()

	start := time.Now()
	out, err := fn(ctx)
	elapsed := time.Since(start)
	a.recorder.RecordStage(stage, elapsed)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return out, err
	}
	logger.Debug("stage complete", slog.String("stage", stage), slog.Duration("duration", elapsed))
	return out, nil
}

// statusOf maps an analysis error to the status label used in metrics and
// logs.
func statusOf(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrNoPathFound):
		return "no_path"
	case errors.Is(err, ErrMissingTerminalNode):
		return "missing_terminal"
	case errors.Is(err, ErrUnknownComponent):
		return "unknown_component"
	case errors.Is(err, ErrSystemTooLarge):
		return "too_large"
	case errors.Is(err, ErrInvalidDiagram):
		return "invalid"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "cancelled"
	default:
		return "error"
	}
}

