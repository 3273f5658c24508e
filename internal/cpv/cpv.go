// Package cpv implements hierarchy matching over Common Procurement
// Vocabulary codes. Trailing zeros in a code denote a broader category:
// 72000000 covers every code starting with "72".
package cpv

import (
	"strings"

	"github.com/david/tender-radar/internal/config"
)

// Root trims trailing zero digits from a monitored code, yielding the prefix
// that all of its children share.
func Root(code string) string {
	return strings.TrimRight(code, "0")
}

// Matches reports whether candidate falls under the monitored code's
// category. A monitored code with no trailing zeros matches only candidates
// carrying it as a full prefix, so broad categories should be configured at
// the coarsest zero-padded level intended.
func Matches(monitored, candidate string) bool {
	return strings.HasPrefix(candidate, Root(monitored))
}

// FindFirstMatch returns the first monitored category covering any of the
// candidate codes. Candidates are scanned in given order, and for each
// candidate the monitored list is scanned in configured order; the first
// satisfied pair wins. The tie-break order is part of the contract: the match
// trigger recorded on a tender must be reproducible across runs.
func FindFirstMatch(monitored []config.MonitoredCategory, candidates []string) *config.MonitoredCategory {
	for _, candidate := range candidates {
		for i := range monitored {
			if Matches(monitored[i].Code, candidate) {
				return &monitored[i]
			}
		}
	}
	return nil
}
