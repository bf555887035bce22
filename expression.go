package rbd

import (
	"fmt"
	"strings"
)

// FormatExpression renders the symbolic reliability expression for a list of
// minimal cut sets: the union form, one product per cut set, the
// inclusion-exclusion outline and the first-order terms. Cut sets are
// numbered from 1 in the order given.
func FormatExpression(cutSets []CutSet) string {
	var b strings.Builder

	b.WriteString("R = 1 - P(system failure)\n")
	b.WriteString("  = 1 - P(at least one minimal cut set fails)\n")

	names := make([]string, len(cutSets))
	for i := range cutSets {
		names[i] = fmt.Sprintf("C%d", i+1)
	}
	fmt.Fprintf(&b, "  = 1 - P(%s)\n\n", strings.Join(names, " ∪ "))

	for i, cs := range cutSets {
		fmt.Fprintf(&b, "Where C%d = %s\n", i+1, product(cs))
	}

	b.WriteString("\nWhere for each component i:\n")
	b.WriteString("  qᵢ = component failure probability\n")
	b.WriteString("  rᵢ = 1 - qᵢ = component reliability\n\n")

	b.WriteString("Using the inclusion-exclusion principle:\n")
	b.WriteString("R = 1 - [∑P(Cᵢ) - ∑P(Cᵢ∩Cⱼ) + ∑P(Cᵢ∩Cⱼ∩Cₖ) - ...]\n\n")

	b.WriteString("First-order terms:\n")
	for i, cs := range cutSets {
		fmt.Fprintf(&b, "P(C%d) = P({%s}) = %s\n", i+1, strings.Join(cs, ", "), product(cs))
	}

	return b.String()
}

func product(cs CutSet) string {
	factors := make([]string, len(cs))
	for i, name := range cs {
		factors[i] = "q" + name
	}
	return strings.Join(factors, " × ")
}
