package walker

import (
	"fmt"
	"path"
	"sort"
	"strings"
)

// Category classifies a candidate symbol file.
type Category string

const (
	// CategoryObject is a shared object or other loadable ELF image.
	CategoryObject Category = "object"
	// CategoryDebugInfo is a detached debug-info file.
	CategoryDebugInfo Category = "debug-info"
	// CategorySymbolMap is a textual symbol map.
	CategorySymbolMap Category = "symbol-map"
)

// DefaultPatterns are the suffix rules used when nothing else is configured.
var DefaultPatterns = []string{".debug", ".so", ".so.*", ".sym"}

// Rule is a single case-sensitive file name suffix rule.
// A rule containing glob metacharacters (e.g. ".so.*") is matched as the
// pattern "*<rule>" against the base name.
type Rule struct {
	Pattern  string
	Category Category
	glob     bool
}

// ParseRule normalises a suffix so it starts with a dot and validates globs.
func ParseRule(s string) (Rule, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Rule{}, fmt.Errorf("empty suffix rule")
	}
	if strings.ContainsRune(s, '/') {
		return Rule{}, fmt.Errorf("suffix rule %q must not contain a path separator", s)
	}
	if !strings.HasPrefix(s, ".") {
		s = "." + s
	}

	r := Rule{Pattern: s, Category: categoryFor(s)}
	if strings.ContainsAny(s, "*?[") {
		if _, err := path.Match("*"+s, ""); err != nil {
			return Rule{}, fmt.Errorf("invalid suffix pattern %q: %w", s, err)
		}
		r.glob = true
	}
	return r, nil
}

// Match reports whether the base name satisfies the rule.
func (r Rule) Match(name string) bool {
	if r.glob {
		pattern := r.Pattern
		// A trailing ".*" needs at least one character after the dot.
		if strings.HasSuffix(pattern, ".*") {
			pattern = strings.TrimSuffix(pattern, "*") + "?*"
		}
		ok, _ := path.Match("*"+pattern, name)
		return ok
	}
	return strings.HasSuffix(name, r.Pattern)
}

func categoryFor(pattern string) Category {
	switch {
	case strings.HasPrefix(pattern, ".debug"), strings.HasPrefix(pattern, ".dbg"):
		return CategoryDebugInfo
	case strings.HasPrefix(pattern, ".sym"):
		return CategorySymbolMap
	default:
		return CategoryObject
	}
}

// Rules is an ordered, de-duplicated set of suffix rules.
type Rules struct {
	rules []Rule
}

// NewRules builds a rule set from the given patterns. Duplicates after
// normalisation are dropped.
func NewRules(patterns ...string) (Rules, error) {
	seen := make(map[string]struct{}, len(patterns))
	var rules []Rule
	for _, p := range patterns {
		r, err := ParseRule(p)
		if err != nil {
			return Rules{}, err
		}
		if _, ok := seen[r.Pattern]; ok {
			continue
		}
		seen[r.Pattern] = struct{}{}
		rules = append(rules, r)
	}
	sort.SliceStable(rules, func(i, j int) bool { return rules[i].Pattern < rules[j].Pattern })
	return Rules{rules: rules}, nil
}

// DefaultRules returns the default rule set extended with extra patterns,
// as accepted by the --ext flag.
func DefaultRules(extra ...string) (Rules, error) {
	patterns := append(append([]string{}, DefaultPatterns...), extra...)
	return NewRules(patterns...)
}

// ParseList splits a comma separated suffix list, ignoring blanks.
func ParseList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Match returns the category of the first rule matching name.
// Debug-info and symbol-map rules take precedence over object rules so that
// "libfoo.so.debug" is classified as debug info.
func (rs Rules) Match(name string) (Category, bool) {
	matched := false
	cat := CategoryObject
	for _, r := range rs.rules {
		if !r.Match(name) {
			continue
		}
		if r.Category != CategoryObject {
			return r.Category, true
		}
		matched = true
	}
	return cat, matched
}

// Patterns returns the normalised patterns in sorted order.
func (rs Rules) Patterns() []string {
	out := make([]string, len(rs.rules))
	for i, r := range rs.rules {
		out[i] = r.Pattern
	}
	return out
}

// Len returns the number of rules.
func (rs Rules) Len() int { return len(rs.rules) }
