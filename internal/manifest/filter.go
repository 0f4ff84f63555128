package manifest

import (
	"path/filepath"
	"strings"
)

// Filter matches case numbers, titles and feature names against a pattern
type Filter struct{}

// NewFilter creates a new Filter
func NewFilter() *Filter {
	return &Filter{}
}

// Match reports whether name matches pattern. Patterns support * and ?
// wildcards ("AUTH-*", "*login*"); a pattern without wildcards matches any
// name containing it. An empty pattern matches everything.
func (f *Filter) Match(name, pattern string) bool {
	if pattern == "" {
		return true
	}

	if matched, err := filepath.Match(pattern, name); err == nil && matched {
		return true
	}

	// "*login*" style patterns: every literal part must appear
	if strings.Contains(pattern, "*") {
		hasPart := false
		for _, part := range strings.Split(pattern, "*") {
			if part == "" {
				continue
			}
			hasPart = true
			if !strings.Contains(name, part) {
				return false
			}
		}
		return hasPart
	}

	if !strings.Contains(pattern, "?") {
		return strings.Contains(name, pattern)
	}
	return false
}

// Selection narrows a manifest down to the cases a run should include.
type Selection struct {
	// Pattern is matched against case numbers and titles
	Pattern string
	// Feature is matched against feature names
	Feature string
	// Labels keeps cases carrying at least one of them
	Labels []string
	// ExcludeLabels drops cases carrying any of them, even when Labels
	// would keep them
	ExcludeLabels []string
}

// Empty reports whether the selection keeps everything.
func (s Selection) Empty() bool {
	return s.Pattern == "" && s.Feature == "" && len(s.Labels) == 0 && len(s.ExcludeLabels) == 0
}

// Select returns a copy of m holding only the selected cases. Features left
// without cases are dropped.
func (m *Manifest) Select(sel Selection) *Manifest {
	if sel.Empty() {
		return m
	}
	filter := NewFilter()
	out := *m
	out.Features = nil
	for _, feat := range m.Features {
		if !filter.Match(feat.Name, sel.Feature) {
			continue
		}
		kept := feat
		kept.Cases = nil
		for _, c := range feat.Cases {
			if sel.Pattern != "" && !filter.Match(c.Number, sel.Pattern) && !filter.Match(c.Title, sel.Pattern) {
				continue
			}
			if len(sel.Labels) > 0 && !hasAnyLabel(c.Labels, sel.Labels) {
				continue
			}
			if hasAnyLabel(c.Labels, sel.ExcludeLabels) {
				continue
			}
			kept.Cases = append(kept.Cases, c)
		}
		if len(kept.Cases) > 0 {
			out.Features = append(out.Features, kept)
		}
	}
	return &out
}

func hasAnyLabel(have, want []string) bool {
	for _, w := range want {
		for _, h := range have {
			if strings.EqualFold(h, w) {
				return true
			}
		}
	}
	return false
}
