package rbd

import (
	"slices"
	"time"
)

// Result is the outcome of one analysis. It is created fresh per call and
// never modified afterwards.
type Result struct {
	ID            string         `json:"id,omitempty"`
	DiagramID     string         `json:"diagram_id,omitempty"`
	Mode          Mode           `json:"mode"`
	Paths         []Path         `json:"paths,omitempty"`
	CutSets       []CutSet       `json:"cut_sets"`
	Unreliability float64        `json:"unreliability"`
	Reliability   float64        `json:"reliability"`
	Contributions []Contribution `json:"contributions"`
	Terms         int            `json:"terms"`
	Clamped       bool           `json:"clamped"`
	CreatedAt     time.Time      `json:"created_at,omitzero"`
	Duration      time.Duration  `json:"duration_ns,omitempty"`
}

// Contribution is a cut set's own failure probability and its share of the
// system unreliability, in percent.
type Contribution struct {
	CutSet      CutSet  `json:"cut_set"`
	Order       int     `json:"order"`
	Probability float64 `json:"probability"`
	Percent     float64 `json:"percent"`
}

// OrderCount is the number of minimal cut sets of one order.
type OrderCount struct {
	Order int `json:"order"`
	Count int `json:"count"`
}

// OrderCounts groups the minimal cut sets by order, smallest first.
func (r *Result) OrderCounts() []OrderCount {
	counts := make(map[int]int)
	for _, cs := range r.CutSets {
		counts[len(cs)]++
	}
	orders := make([]int, 0, len(counts))
	for o := range counts {
		orders = append(orders, o)
	}
	slices.Sort(orders)

	out := make([]OrderCount, len(orders))
	for i, o := range orders {
		out[i] = OrderCount{Order: o, Count: counts[o]}
	}
	return out
}
