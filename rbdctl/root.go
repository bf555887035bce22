package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"runtime"
	"strings"
	"time"

	"github.com/meikuraledutech/rbd"
	"github.com/meikuraledutech/rbd/logging"
	"github.com/spf13/cobra"
)

type options struct {
	json          bool
	mode          string
	workers       int
	timeout       time.Duration
	maxComponents int
	logLevel      string
	progress      bool
	noColor       bool
}

func newRootCmd() *cobra.Command {
	o := &options{}

	root := &cobra.Command{
		Use:          "rbdctl <command> FILE",
		Short:        "Reliability block diagram analysis",
		SilenceUsage: true,
	}

	flags := root.PersistentFlags()
	flags.BoolVar(&o.json, "json", false, "output as JSON")
	flags.StringVar(&o.mode, "mode", string(rbd.ModeExact), "calculation mode (exact or rare-event)")
	flags.IntVar(&o.workers, "workers", runtime.NumCPU(), "worker goroutines for cut-set search and inclusion-exclusion")
	flags.DurationVar(&o.timeout, "timeout", 0, "abort the analysis after this long (0 = no limit)")
	flags.IntVar(&o.maxComponents, "max-components", 32, "refuse diagrams with more distinct components on paths")
	flags.StringVar(&o.logLevel, "log-level", "warn", "log level (debug, info, warn, error)")
	flags.BoolVar(&o.progress, "progress", false, "report cut-set search progress on stderr")
	flags.BoolVar(&o.noColor, "no-color", false, "disable coloured output")

	root.AddCommand(
		newAnalyzeCmd(o),
		newPathsCmd(o),
		newCutSetsCmd(o),
		newExpressionCmd(o),
	)
	return root
}

func newAnalyzeCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "analyze FILE",
		Short: "Run the full analysis and print the report",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := rbd.LoadDiagram(args[0])
			if err != nil {
				return err
			}
			analyzer, err := o.analyzer(cmd.ErrOrStderr())
			if err != nil {
				return err
			}

			progress, stop := o.startProgress(cmd.ErrOrStderr())
			res, err := analyzer.With(rbd.WithProgress(progress)).Analyze(cmd.Context(), d)
			stop()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if o.json {
				return printJSON(out, res)
			}
			st := newStyles(out, !o.noColor)
			fmt.Fprintln(out, st.Title.Render("Diagram "+d.ID))
			if err := rbd.WriteReport(out, res); err != nil {
				return err
			}
			if res.Clamped {
				fmt.Fprintln(out, st.Warning.Render("warning: rounding pushed unreliability outside [0, 1]"))
			}
			fmt.Fprintln(out, st.Muted.Render(fmt.Sprintf("analysis %s took %s", res.ID, res.Duration)))
			return nil
		},
	}
}

func newPathsCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "paths FILE",
		Short: "List every success path from source to sink",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			paths, _, err := loadPaths(args[0])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if o.json {
				return printJSON(out, map[string]any{"paths": paths})
			}
			st := newStyles(out, !o.noColor)
			fmt.Fprintln(out, st.Heading.Render(fmt.Sprintf("Success Paths (%d):", len(paths))))
			for i, p := range paths {
				fmt.Fprintf(out, "  Path %d: %s\n", i+1, strings.Join(p, " → "))
			}
			return nil
		},
	}
}

func newCutSetsCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "cutsets FILE",
		Short: "List the minimal cut sets",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cutSets, err := o.cutSets(cmd, args[0])
			if err != nil {
				return err
			}
			summary := &rbd.Result{CutSets: cutSets}

			out := cmd.OutOrStdout()
			if o.json {
				return printJSON(out, map[string]any{
					"cut_sets":     cutSets,
					"order_counts": summary.OrderCounts(),
				})
			}
			st := newStyles(out, !o.noColor)
			fmt.Fprintln(out, st.Heading.Render(fmt.Sprintf("Minimal Cut Sets (%d):", len(cutSets))))
			for i, cs := range cutSets {
				fmt.Fprintf(out, "  Cut Set %d: {%s} (Order %d)\n", i+1, strings.Join(cs, ", "), cs.Order())
			}
			for _, oc := range summary.OrderCounts() {
				fmt.Fprintf(out, "  %s %d cut sets\n", st.Value.Render(fmt.Sprintf("Order %d:", oc.Order)), oc.Count)
			}
			return nil
		},
	}
}

func newExpressionCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "expression FILE",
		Short: "Print the symbolic reliability expression",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cutSets, err := o.cutSets(cmd, args[0])
			if err != nil {
				return err
			}
			expr := rbd.FormatExpression(cutSets)

			out := cmd.OutOrStdout()
			if o.json {
				return printJSON(out, map[string]string{"expression": expr})
			}
			_, err = io.WriteString(out, expr)
			return err
		},
	}
}

// analyzer builds an Analyzer from the flags, logging to w.
func (o *options) analyzer(w io.Writer) (*rbd.Analyzer, error) {
	mode, err := rbd.ParseMode(o.mode)
	if err != nil {
		return nil, err
	}
	logger, err := logging.New(w, o.logLevel, "text")
	if err != nil {
		return nil, err
	}
	return rbd.NewAnalyzer(
		rbd.WithLogger(logger),
		rbd.WithMode(mode),
		rbd.WithWorkers(o.workers),
		rbd.WithMaxComponents(o.maxComponents),
		rbd.WithTimeout(o.timeout),
	), nil
}

// cutSets runs the path and cut-set stages for the diagram in file.
func (o *options) cutSets(cmd *cobra.Command, file string) ([]rbd.CutSet, error) {
	paths, d, err := loadPaths(file)
	if err != nil {
		return nil, err
	}

	ctx := cmd.Context()
	if o.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.timeout)
		defer cancel()
	}

	progress, stop := o.startProgress(cmd.ErrOrStderr())
	defer stop()

	cutSets, err := rbd.FindMinimalCutSetsContext(ctx, paths, rbd.CutSetOptions{
		Workers:       o.workers,
		MaxComponents: o.maxComponents,
		Progress:      progress,
	})
	if err != nil {
		return nil, fmt.Errorf("diagram %s: %w", d.ID, err)
	}
	return cutSets, nil
}

// startProgress prints cut-set search progress to w until stop is called.
// Without --progress it returns a nil channel.
func (o *options) startProgress(w io.Writer) (chan<- rbd.ProgressEvent, func()) {
	if !o.progress {
		return nil, func() {}
	}

	ch := make(chan rbd.ProgressEvent)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for ev := range ch {
			switch ev.Stage {
			case rbd.StageEnumerate:
				fmt.Fprintf(w, "size %d: %d candidates, %d cut sets\n", ev.Size, ev.Candidates, ev.Found)
			case rbd.StageMinimize:
				fmt.Fprintf(w, "minimize: %d cut sets, %d minimal\n", ev.Candidates, ev.Found)
			}
		}
	}()
	return ch, func() {
		close(ch)
		<-done
	}
}

func loadPaths(file string) ([]rbd.Path, *rbd.Diagram, error) {
	d, err := rbd.LoadDiagram(file)
	if err != nil {
		return nil, nil, err
	}
	paths, err := rbd.EnumeratePaths(d, rbd.Source, rbd.Sink)
	if err != nil {
		return nil, nil, err
	}
	if len(paths) == 0 {
		return nil, nil, &rbd.NoPathError{Source: rbd.Source, Sink: rbd.Sink}
	}
	return paths, d, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
