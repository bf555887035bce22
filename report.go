package rbd

import (
	"fmt"
	"io"
	"strings"
)

// WriteReport writes the plain-text analysis report for r: success paths,
// minimal cut sets grouped by order, the reliability expression, R and Q to
// twelve decimals and each cut set's contribution.
func WriteReport(w io.Writer, r *Result) error {
	var b strings.Builder

	b.WriteString("===== RELIABILITY ANALYSIS RESULTS =====\n\n")

	if len(r.Paths) > 0 {
		b.WriteString("Success Paths:\n")
		for i, p := range r.Paths {
			fmt.Fprintf(&b, "  Path %d: %s\n", i+1, strings.Join(p, " → "))
		}
		b.WriteString("\n")
	}

	b.WriteString("Minimal Cut Sets:\n")
	for i, cs := range r.CutSets {
		fmt.Fprintf(&b, "  Cut Set %d: {%s} (Order %d)\n", i+1, strings.Join(cs, ", "), cs.Order())
	}
	for _, oc := range r.OrderCounts() {
		fmt.Fprintf(&b, "  Order %d: %d cut sets\n", oc.Order, oc.Count)
	}

	fmt.Fprintf(&b, "\nReliability Expression:\n%s\n", FormatExpression(r.CutSets))

	fmt.Fprintf(&b, "System Reliability: %.12f\n", r.Reliability)
	fmt.Fprintf(&b, "System Unreliability: %.12f\n", r.Unreliability)
	fmt.Fprintf(&b, "Mode: %s (%d terms)\n", r.Mode, r.Terms)
	if r.Mode == ModeRareEvent {
		b.WriteString("Note: rare-event approximation, an upper bound on unreliability\n")
	}
	if r.Clamped {
		b.WriteString("Note: unreliability was clamped into [0, 1]\n")
	}

	b.WriteString("\nContribution of each minimal cut set to system unreliability:\n")
	for i, c := range r.Contributions {
		fmt.Fprintf(&b, "  Set %d {%s}: %.9f (%.2f%%)\n", i+1, strings.Join(c.CutSet, ", "), c.Probability, c.Percent)
	}

	_, err := io.WriteString(w, b.String())
	return err
}
