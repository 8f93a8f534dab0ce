// Package safety implements the prompt denylist applied before any backend
// interaction.
package safety

import (
	"fmt"
	"strings"
	"sync/atomic"

	"llmgate/internal/common/fsutil"
)

// Verdict is the result of a Check. Term is the configured denylist entry
// that matched when Allowed is false.
type Verdict struct {
	Allowed bool
	Term    string
}

type rule struct {
	term    string
	lowered string
}

// Filter is a case-insensitive substring denylist. The rule set is swapped
// atomically, so Check never blocks on a concurrent Update.
type Filter struct {
	rules atomic.Pointer[[]rule]
}

// New returns a Filter over terms. Blank terms are dropped.
func New(terms []string) *Filter {
	f := &Filter{}
	f.Update(terms)
	return f
}

// Update replaces the denylist.
func (f *Filter) Update(terms []string) {
	rules := make([]rule, 0, len(terms))
	for _, t := range terms {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		rules = append(rules, rule{term: t, lowered: strings.ToLower(t)})
	}
	f.rules.Store(&rules)
}

// Terms returns a copy of the active denylist.
func (f *Filter) Terms() []string {
	if f == nil {
		return nil
	}
	rules := f.rules.Load()
	if rules == nil {
		return nil
	}
	out := make([]string, 0, len(*rules))
	for _, r := range *rules {
		out = append(out, r.term)
	}
	return out
}

// Check reports whether text passes the denylist. The first matching term,
// in configured order, is returned. A nil Filter allows everything.
func (f *Filter) Check(text string) Verdict {
	if f == nil {
		return Verdict{Allowed: true}
	}
	rules := f.rules.Load()
	if rules == nil || len(*rules) == 0 {
		return Verdict{Allowed: true}
	}
	lowered := strings.ToLower(text)
	for _, r := range *rules {
		if strings.Contains(lowered, r.lowered) {
			return Verdict{Allowed: false, Term: r.term}
		}
	}
	return Verdict{Allowed: true}
}

// LoadFile reads one term per line. Blank lines and lines starting with '#'
// are ignored.
func LoadFile(path string) ([]string, error) {
	terms, err := fsutil.ReadLines(path)
	if err != nil {
		return nil, fmt.Errorf("read denylist: %w", err)
	}
	return terms, nil
}
