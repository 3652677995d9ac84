package usecase

import (
	"fmt"
	"strings"
)

// GenerateUniqueName picks a display name derived from base that is not in
// existing. The base name is used verbatim when free. A base already ending
// in "copy" gets an incrementing integer suffix; otherwise " copy" is
// appended first, then the integer suffix if that still collides. The caller
// passes the names of all non-deleted strategies (active and inactive), and
// the requested base name is never mutated.
func GenerateUniqueName(base string, existing []string) string {
	used := make(map[string]struct{}, len(existing))
	for _, name := range existing {
		used[name] = struct{}{}
	}

	if _, taken := used[base]; !taken {
		return base
	}

	stem := base
	if !strings.HasSuffix(base, "copy") {
		stem = base + " copy"
		if _, taken := used[stem]; !taken {
			return stem
		}
	}

	// Terminates within len(existing)+1 iterations: each existing name can
	// block at most one candidate.
	for i := 1; ; i++ {
		candidate := fmt.Sprintf("%s %d", stem, i)
		if _, taken := used[candidate]; !taken {
			return candidate
		}
	}
}
