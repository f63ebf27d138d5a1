package runner

import (
	"regexp"

	"github.com/pkg/errors"
)

// MatchSpec holds one or more patterns tested against each freshly
// produced line of a streamed run. Patterns are tried in declaration
// order and the first hit wins; a single pattern is just a list of one.
type MatchSpec struct {
	exprs    []string
	patterns []*regexp.Regexp
}

// NewMatch compiles a single pattern.
func NewMatch(pattern string) (*MatchSpec, error) {
	return NewMatchList(pattern)
}

// NewMatchList compiles an ordered list of patterns.
func NewMatchList(patterns ...string) (*MatchSpec, error) {
	if len(patterns) == 0 {
		return nil, errors.New("match spec needs at least one pattern")
	}
	spec := &MatchSpec{
		exprs:    append([]string(nil), patterns...),
		patterns: make([]*regexp.Regexp, 0, len(patterns)),
	}
	for _, expr := range patterns {
		compiled, err := regexp.Compile(expr)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid match pattern %q", expr)
		}
		spec.patterns = append(spec.patterns, compiled)
	}
	return spec, nil
}

// Match tests line against each pattern in order, returning the first
// expression that hit. A nil spec never matches.
func (m *MatchSpec) Match(line string) (string, bool) {
	if m == nil {
		return "", false
	}
	for i, pattern := range m.patterns {
		if pattern.MatchString(line) {
			return m.exprs[i], true
		}
	}
	return "", false
}
