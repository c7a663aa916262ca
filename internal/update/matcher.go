// Package update implements the reconciliation passes that keep stored
// reviews current: re-discovering review URLs, resolving sub-page URLs, and
// re-ingesting review content that the source site has revised.
package update

import "strings"

// aliases maps normalized review-type spellings to equivalent sub-page
// names seen in the drop-downs. The site is not consistent about these.
var aliases = map[string][]string{
	"temperatures": {"thermals", "temperature"},
	"noise":        {"fan noise", "noise levels"},
	"overclocking": {"oc", "overclock"},
	"power":        {"power consumption", "power draw"},
	"performance":  {"benchmarks", "gaming performance"},
	"cooler":       {"cooling", "cooler performance"},
	"value":        {"value & conclusion", "conclusion"},
}

// MatchOption reports whether a stored review's type corresponds to a
// sub-page option label. Exact match first, then the alias table, then a
// case-insensitive substring test in either direction.
func MatchOption(reviewType, optionText string) bool {
	a := normalize(reviewType)
	b := normalize(optionText)
	if a == "" || b == "" {
		return false
	}
	if a == b {
		return true
	}
	if aliased(a, b) || aliased(b, a) {
		return true
	}
	return strings.Contains(a, b) || strings.Contains(b, a)
}

func aliased(key, candidate string) bool {
	for _, alt := range aliases[key] {
		if candidate == alt {
			return true
		}
	}
	return false
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
