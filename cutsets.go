package rbd

import (
	"cmp"
	"context"
	"fmt"
	"math/bits"
	"slices"
	"sync"

	"golang.org/x/sync/errgroup"
)

// CutSet is a set of component names, sorted by name, whose joint failure
// breaks every success path.
type CutSet []string

// Order is the number of components in the cut set.
func (c CutSet) Order() int { return len(c) }

// maxExactComponents bounds the component universe so candidate subsets fit
// in a uint64 mask.
const maxExactComponents = 63

// contextCheckInterval is how many candidates are generated between
// cancellation checks.
const contextCheckInterval = 1024

// Progress stages reported on CutSetOptions.Progress.
const (
	StageEnumerate = "enumerate"
	StageMinimize  = "minimize"
)

// ProgressEvent describes one finished step of the cut-set search.
type ProgressEvent struct {
	Stage      string `json:"stage"`
	Size       int    `json:"size,omitempty"`
	Candidates int    `json:"candidates"`
	Found      int    `json:"found"`
}

// CutSetOptions tunes FindMinimalCutSetsContext.
type CutSetOptions struct {
	// Workers is the number of goroutines testing candidates. Values below 1
	// mean one. The result does not depend on it.
	Workers int

	// MaxComponents rejects path sets whose component universe is larger,
	// before any enumeration starts. Zero means the hard limit of 63.
	MaxComponents int

	// Progress receives one event per subset size and one for the
	// minimality pass. Sends block until received or ctx is done, so the
	// caller must drain the channel. Nil disables reporting.
	Progress chan<- ProgressEvent
}

// FindMinimalCutSets returns the minimal cut sets of the given success paths.
// See FindMinimalCutSetsContext.
func FindMinimalCutSets(paths []Path) ([]CutSet, error) {
	return FindMinimalCutSetsContext(context.Background(), paths, CutSetOptions{})
}

// FindMinimalCutSetsContext enumerates every subset of the components that
// appear on the paths, by ascending size k = 1..n, and keeps those that share
// at least one component with every path. The survivors are then reduced to
// the minimal ones: scanning by ascending size, a candidate is accepted only
// if no accepted set is a strict subset of it.
//
// The result is ordered by size and, within a size, by discovery order; the
// members of each cut set are sorted by name. No paths yields no cut sets.
//
// The search is exhaustive (2^n - 1 candidates) and returns ctx.Err() if the
// context ends first.
func FindMinimalCutSetsContext(ctx context.Context, paths []Path, opts CutSetOptions) ([]CutSet, error) {
	if len(paths) == 0 {
		return []CutSet{}, nil
	}

	universe, pathMasks := encodePaths(paths)

	limit := maxExactComponents
	if opts.MaxComponents > 0 && opts.MaxComponents < limit {
		limit = opts.MaxComponents
	}
	if len(universe) > limit {
		return nil, fmt.Errorf("%w: %d components, limit %d", ErrSystemTooLarge, len(universe), limit)
	}

	workers := max(opts.Workers, 1)

	var found []uint64
	for k := 1; k <= len(universe); k++ {
		hits, tested, err := scanSubsets(ctx, len(universe), k, pathMasks, workers)
		if err != nil {
			return nil, err
		}
		found = append(found, hits...)
		if err := emit(ctx, opts.Progress, ProgressEvent{
			Stage:      StageEnumerate,
			Size:       k,
			Candidates: tested,
			Found:      len(hits),
		}); err != nil {
			return nil, err
		}
	}

	minimal := minimize(found)
	if err := emit(ctx, opts.Progress, ProgressEvent{
		Stage:      StageMinimize,
		Candidates: len(found),
		Found:      len(minimal),
	}); err != nil {
		return nil, err
	}

	return decodeMasks(minimal, universe), nil
}

// encodePaths indexes the components in first-appearance order and turns
// each path into a bitmask over that index.
func encodePaths(paths []Path) ([]string, []uint64) {
	index := make(map[string]int)
	var universe []string
	masks := make([]uint64, len(paths))
	for i, p := range paths {
		for _, name := range p {
			j, ok := index[name]
			if !ok {
				j = len(universe)
				index[name] = j
				universe = append(universe, name)
			}
			if j < 64 {
				masks[i] |= 1 << j
			}
		}
	}
	return universe, masks
}

// isCutSet reports whether candidate shares a component with every path.
func isCutSet(candidate uint64, pathMasks []uint64) bool {
	for _, p := range pathMasks {
		if candidate&p == 0 {
			return false
		}
	}
	return true
}

// scanSubsets tests every k-subset of n components. A single producer walks
// the subsets in increasing mask order and hands out batches; hits are
// sorted afterwards so the output is independent of scheduling.
func scanSubsets(ctx context.Context, n, k int, pathMasks []uint64, workers int) ([]uint64, int, error) {
	g, gctx := errgroup.WithContext(ctx)
	batches := make(chan []uint64, workers)
	tested := 0

	g.Go(func() error {
		defer close(batches)
		return forEachCombination(gctx, n, k, func(batch []uint64) error {
			tested += len(batch)
			select {
			case batches <- batch:
				return nil
			case <-gctx.Done():
				return gctx.Err()
			}
		})
	})

	var (
		mu   sync.Mutex
		hits []uint64
	)
	for range workers {
		g.Go(func() error {
			var local []uint64
			for batch := range batches {
				for _, m := range batch {
					if isCutSet(m, pathMasks) {
						local = append(local, m)
					}
				}
			}
			mu.Lock()
			hits = append(hits, local...)
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, 0, err
	}
	slices.Sort(hits)
	return hits, tested, nil
}

// forEachCombination generates every k-bit mask below 1<<n in increasing
// order and passes them to fn in batches of contextCheckInterval, checking
// ctx between batches.
func forEachCombination(ctx context.Context, n, k int, fn func([]uint64) error) error {
	if k < 1 || k > n {
		return nil
	}
	limit := uint64(1) << n
	batch := make([]uint64, 0, contextCheckInterval)
	for mask := uint64(1)<<k - 1; mask < limit; mask = nextCombination(mask) {
		batch = append(batch, mask)
		if len(batch) == contextCheckInterval {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := fn(batch); err != nil {
				return err
			}
			batch = make([]uint64, 0, contextCheckInterval)
		}
	}
	if len(batch) > 0 {
		if err := ctx.Err(); err != nil {
			return err
		}
		return fn(batch)
	}
	return nil
}

// nextCombination returns the next larger integer with the same number of
// set bits (Gosper's hack).
func nextCombination(mask uint64) uint64 {
	lowest := mask & -mask
	ripple := mask + lowest
	return (((ripple ^ mask) >> 2) / lowest) | ripple
}

// minimize keeps the cut sets that contain no smaller accepted cut set.
// The input is stably ordered by size first, so every strict subset of a
// candidate has already been seen when the candidate is examined.
func minimize(found []uint64) []uint64 {
	sorted := slices.Clone(found)
	slices.SortStableFunc(sorted, func(a, b uint64) int {
		return cmp.Compare(bits.OnesCount64(a), bits.OnesCount64(b))
	})

	var minimal []uint64
	for _, candidate := range sorted {
		isMinimal := true
		for _, accepted := range minimal {
			if isStrictSubset(accepted, candidate) {
				isMinimal = false
				break
			}
		}
		if isMinimal {
			minimal = append(minimal, candidate)
		}
	}
	return minimal
}

func isStrictSubset(a, b uint64) bool {
	return a&b == a && a != b
}

func decodeMasks(masks []uint64, universe []string) []CutSet {
	sets := make([]CutSet, 0, len(masks))
	for _, m := range masks {
		cs := make(CutSet, 0, bits.OnesCount64(m))
		for rest := m; rest != 0; rest &= rest - 1 {
			cs = append(cs, universe[bits.TrailingZeros64(rest)])
		}
		slices.Sort(cs)
		sets = append(sets, cs)
	}
	return sets
}

func emit(ctx context.Context, ch chan<- ProgressEvent, ev ProgressEvent) error {
	if ch == nil {
		return nil
	}
	select {
	case ch <- ev:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
