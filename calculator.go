package rbd

import (
	"context"
	"fmt"
	"math"
	"math/bits"
	"sync"

	"golang.org/x/sync/errgroup"
)

// Mode selects how unreliability is computed from the minimal cut sets.
type Mode string

const (
	// ModeExact sums the full inclusion-exclusion series (2^n - 1 terms).
	ModeExact Mode = "exact"

	// ModeRareEvent is the first-order approximation: the sum of the cut-set
	// probabilities, clamped to 1. It over-estimates unreliability and is
	// only produced when asked for.
	ModeRareEvent Mode = "rare-event"
)

// ParseMode converts a mode name; the empty string selects ModeExact.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case "", ModeExact:
		return ModeExact, nil
	case ModeRareEvent:
		return ModeRareEvent, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownMode, s)
	}
}

// maxExactCutSets bounds the number of cut sets so that term combinations
// fit in a uint64 mask and the term count fits in an int.
const maxExactCutSets = 62

// CalcOptions tunes AnalyzeContext.
type CalcOptions struct {
	Mode Mode

	// Workers is the number of goroutines summing term blocks. Values below
	// 1 mean one. The result is bit-identical for any value.
	Workers int
}

// Analyze computes exact system unreliability from minimal cut sets and the
// failure probability of each component. See AnalyzeContext.
func Analyze(cutSets []CutSet, probs map[string]float64) (*Result, error) {
	return AnalyzeContext(context.Background(), cutSets, probs, CalcOptions{})
}

// AnalyzeContext evaluates P(C1 ∪ ... ∪ Cn) where Ci is the event that every
// component of cut set i fails. In exact mode each combination of r cut sets
// contributes the product of q over the union of their components (a shared
// component counts once), with sign + for odd r and - for even r.
//
// Every cut-set member must have an entry in probs; a missing one fails with
// *UnknownComponentError instead of being defaulted. The unreliability is
// clamped into [0, 1] and Result.Clamped records whether that changed it.
func AnalyzeContext(ctx context.Context, cutSets []CutSet, probs map[string]float64, opts CalcOptions) (*Result, error) {
	mode, err := ParseMode(string(opts.Mode))
	if err != nil {
		return nil, err
	}

	index := make(map[string]int)
	var q []float64
	setMasks := make([]uint64, len(cutSets))
	setProbs := make([]float64, len(cutSets))
	for i, cs := range cutSets {
		p := 1.0
		for _, name := range cs {
			fp, ok := probs[name]
			if !ok {
				return nil, &UnknownComponentError{Component: name}
			}
			if math.IsNaN(fp) || fp < 0 || fp > 1 {
				return nil, fmt.Errorf("%w: component %q has %v", ErrInvalidProbability, name, fp)
			}
			j, seen := index[name]
			if !seen {
				if len(q) == maxExactComponents {
					return nil, fmt.Errorf("%w: more than %d components in cut sets", ErrSystemTooLarge, maxExactComponents)
				}
				j = len(q)
				index[name] = j
				q = append(q, fp)
			}
			if setMasks[i]&(1<<j) == 0 {
				setMasks[i] |= 1 << j
				p *= fp
			}
		}
		setProbs[i] = p
	}

	var (
		unreliability float64
		terms         int
	)
	switch mode {
	case ModeExact:
		if len(cutSets) > maxExactCutSets {
			return nil, fmt.Errorf("%w: %d minimal cut sets, limit %d", ErrSystemTooLarge, len(cutSets), maxExactCutSets)
		}
		unreliability, err = inclusionExclusion(ctx, setMasks, q, max(opts.Workers, 1))
		if err != nil {
			return nil, err
		}
		terms = 1<<len(cutSets) - 1
	case ModeRareEvent:
		var sum compensatedSum
		for _, p := range setProbs {
			sum.Add(p)
		}
		unreliability = sum.Value()
		terms = len(cutSets)
	}

	clamped := false
	switch {
	case unreliability < 0:
		unreliability, clamped = 0, true
	case unreliability > 1:
		unreliability, clamped = 1, true
	}

	contributions := make([]Contribution, len(cutSets))
	for i, cs := range cutSets {
		percent := 0.0
		if unreliability != 0 {
			percent = setProbs[i] / unreliability * 100
		}
		contributions[i] = Contribution{
			CutSet:      cs,
			Order:       len(cs),
			Probability: setProbs[i],
			Percent:     percent,
		}
	}

	return &Result{
		Mode:          mode,
		CutSets:       cutSets,
		Unreliability: unreliability,
		Reliability:   1 - unreliability,
		Contributions: contributions,
		Terms:         terms,
		Clamped:       clamped,
	}, nil
}

// inclusionExclusion sums the signed series over every non-empty
// combination of cut sets, ordered by combination size then mask value.
// Terms are summed in blocks of contextCheckInterval and the block sums are
// added in sequence, so block boundaries never depend on the worker count.
func inclusionExclusion(ctx context.Context, setMasks []uint64, q []float64, workers int) (float64, error) {
	n := len(setMasks)
	if n == 0 {
		return 0, nil
	}

	type block struct {
		seq    int
		combos []uint64
	}

	g, gctx := errgroup.WithContext(ctx)
	blocks := make(chan block, workers)
	count := 0

	g.Go(func() error {
		defer close(blocks)
		for r := 1; r <= n; r++ {
			err := forEachCombination(gctx, n, r, func(combos []uint64) error {
				b := block{seq: count, combos: combos}
				count++
				select {
				case blocks <- b:
					return nil
				case <-gctx.Done():
					return gctx.Err()
				}
			})
			if err != nil {
				return err
			}
		}
		return nil
	})

	var (
		mu   sync.Mutex
		sums = make(map[int]float64)
	)
	for range workers {
		g.Go(func() error {
			for b := range blocks {
				var s compensatedSum
				for _, combo := range b.combos {
					s.Add(term(combo, setMasks, q))
				}
				mu.Lock()
				sums[b.seq] = s.Value()
				mu.Unlock()
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return 0, err
	}

	var total compensatedSum
	for seq := range count {
		total.Add(sums[seq])
	}
	return total.Value(), nil
}

// term returns the signed probability that every component in the union of
// the selected cut sets fails.
func term(combo uint64, setMasks []uint64, q []float64) float64 {
	var union uint64
	for rest := combo; rest != 0; rest &= rest - 1 {
		union |= setMasks[bits.TrailingZeros64(rest)]
	}
	p := 1.0
	for rest := union; rest != 0; rest &= rest - 1 {
		p *= q[bits.TrailingZeros64(rest)]
	}
	if bits.OnesCount64(combo)%2 == 0 {
		return -p
	}
	return p
}

// compensatedSum is Neumaier's variant of Kahan summation.
type compensatedSum struct {
	sum, c float64
}

func (s *compensatedSum) Add(x float64) {
	t := s.sum + x
	if math.Abs(s.sum) >= math.Abs(x) {
		s.c += (s.sum - t) + x
	} else {
		s.c += (x - t) + s.sum
	}
	s.sum = t
}

func (s *compensatedSum) Value() float64 {
	return s.sum + s.c
}
