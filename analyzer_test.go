package rbd

import (
	"bytes"
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRecorder struct {
	mu       sync.Mutex
	statuses []string
	stages   []string
	paths    int
	cutSets  int
	clamps   int
}

func (r *fakeRecorder) RecordAnalysis(status string, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.statuses = append(r.statuses, status)
}

func (r *fakeRecorder) RecordStage(stage string, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stages = append(r.stages, stage)
}

func (r *fakeRecorder) RecordCutSets(paths, cutSets int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.paths, r.cutSets = paths, cutSets
}

func (r *fakeRecorder) RecordClamp() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clamps++
}

func TestAnalyzer_WorkedExample(t *testing.T) {
	rec := &fakeRecorder{}
	var logs bytes.Buffer
	a := NewAnalyzer(
		WithRecorder(rec),
		WithLogger(slog.New(slog.NewJSONHandler(&logs, nil))),
		WithWorkers(2),
	)

	res, err := a.Analyze(context.Background(), seriesParallel(t))
	require.NoError(t, err)

	assert.NotEmpty(t, res.ID)
	assert.Equal(t, "series-parallel", res.DiagramID)
	assert.False(t, res.CreatedAt.IsZero())
	assert.Equal(t, []Path{{"A", "B"}, {"C"}}, res.Paths)
	assert.Equal(t, []CutSet{{"A", "C"}, {"B", "C"}}, res.CutSets)
	assert.InDelta(t, 0.014, res.Unreliability, 1e-9)
	assert.InDelta(t, 0.986, res.Reliability, 1e-9)

	assert.Equal(t, []string{"ok"}, rec.statuses)
	assert.Equal(t, []string{StagePaths, StageCutSets, StageCalculate}, rec.stages)
	assert.Equal(t, 2, rec.paths)
	assert.Equal(t, 2, rec.cutSets)
	assert.Contains(t, logs.String(), `"msg":"analysis complete"`)
}

func TestAnalyzer_Bridge(t *testing.T) {
	res, err := NewAnalyzer().Analyze(context.Background(), bridge(t))
	require.NoError(t, err)
	assert.Equal(t, []CutSet{{"A", "D"}, {"C", "D"}, {"A", "B"}, {"B", "C", "E"}}, res.CutSets)
	assert.InDelta(t, 0.06472, res.Unreliability, 1e-12)
}

func TestAnalyzer_ReadsCurrentProbabilities(t *testing.T) {
	a := NewAnalyzer()
	d := seriesParallel(t)

	before, err := a.Analyze(context.Background(), d)
	require.NoError(t, err)

	require.NoError(t, d.SetFailureProbability("C", 0.5))
	after, err := a.Analyze(context.Background(), d)
	require.NoError(t, err)

	// qA·qC + qB·qC - qA·qB·qC with qC = 0.5
	assert.InDelta(t, 0.14, after.Unreliability, 1e-12)
	assert.Greater(t, after.Unreliability, before.Unreliability)
}

func TestAnalyzer_Idempotent(t *testing.T) {
	a := NewAnalyzer()
	d := bridge(t)

	first, err := a.Analyze(context.Background(), d)
	require.NoError(t, err)
	second, err := a.Analyze(context.Background(), d)
	require.NoError(t, err)

	assert.Equal(t, first.CutSets, second.CutSets)
	assert.Equal(t, first.Unreliability, second.Unreliability)
	assert.NotEqual(t, first.ID, second.ID)
}

func TestAnalyzer_NoPath(t *testing.T) {
	rec := &fakeRecorder{}
	d := NewDiagram("np")
	require.NoError(t, d.AddNode("n1"))
	require.NoError(t, d.AddComponent("A", 0.1))
	mustConnect(t, d, Source, "n1", "A")

	_, err := NewAnalyzer(WithRecorder(rec)).Analyze(context.Background(), d)

	var nerr *NoPathError
	require.ErrorAs(t, err, &nerr)
	assert.Equal(t, Source, nerr.Source)
	assert.Equal(t, Sink, nerr.Sink)
	assert.Equal(t, []string{"no_path"}, rec.statuses)
}

func TestAnalyzer_MissingTerminal(t *testing.T) {
	d := &Diagram{ID: "broken", Nodes: []Node{{Name: Sink}}}
	_, err := NewAnalyzer().Analyze(context.Background(), d)
	assert.ErrorIs(t, err, ErrMissingTerminalNode)
}

func TestAnalyzer_MaxComponents(t *testing.T) {
	rec := &fakeRecorder{}
	_, err := NewAnalyzer(WithMaxComponents(4), WithRecorder(rec)).Analyze(context.Background(), bridge(t))
	assert.ErrorIs(t, err, ErrSystemTooLarge)
	assert.Equal(t, []string{"too_large"}, rec.statuses)
}

func TestAnalyzer_Cancelled(t *testing.T) {
	rec := &fakeRecorder{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewAnalyzer(WithRecorder(rec)).Analyze(ctx, bridge(t))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, []string{"cancelled"}, rec.statuses)
}

func TestAnalyzer_RareEventMode(t *testing.T) {
	a := NewAnalyzer().With(WithMode(ModeRareEvent))
	assert.Equal(t, ModeRareEvent, a.Mode())

	res, err := a.Analyze(context.Background(), seriesParallel(t))
	require.NoError(t, err)
	assert.Equal(t, ModeRareEvent, res.Mode)
	assert.InDelta(t, 0.015, res.Unreliability, 1e-12)
}

func TestAnalyzer_WithDoesNotModifyOriginal(t *testing.T) {
	a := NewAnalyzer(WithWorkers(3))
	b := a.With(WithMode(ModeRareEvent), WithWorkers(1))
	assert.Equal(t, ModeExact, a.Mode())
	assert.Equal(t, 3, a.workers)
	assert.Equal(t, 1, b.workers)
}

func TestAnalyzer_Progress(t *testing.T) {
	events := make(chan ProgressEvent, 8)
	_, err := NewAnalyzer(WithProgress(events)).Analyze(context.Background(), seriesParallel(t))
	require.NoError(t, err)
	close(events)

	var stages []string
	for ev := range events {
		stages = append(stages, ev.Stage)
	}
	assert.Equal(t, []string{StageEnumerate, StageEnumerate, StageEnumerate, StageMinimize}, stages)
}

func TestAnalyzer_NilDiagram(t *testing.T) {
	rec := &fakeRecorder{}
	_, err := NewAnalyzer(WithRecorder(rec)).Analyze(context.Background(), nil)
	assert.ErrorIs(t, err, ErrInvalidDiagram)
	assert.Equal(t, []string{"invalid"}, rec.statuses)
}

func TestStatusOf(t *testing.T) {
	assert.Equal(t, "ok", statusOf(nil))
	assert.Equal(t, "timeout", statusOf(context.DeadlineExceeded))
	assert.Equal(t, "unknown_component", statusOf(&UnknownComponentError{Component: "X"}))
	assert.Equal(t, "error", statusOf(ErrDuplicateNode))
}
