// Package fieldpattern selects record fields by glob or regular expression.
// Matching is case-insensitive and always covers the whole field name.
package fieldpattern

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/agentstation/recon/pkg/errors"
)

// Kind is the syntax of a pattern.
type Kind int

const (
	// Glob uses shell-style patterns (*, ?, []).
	Glob Kind = iota
	// Regex uses regular expressions.
	Regex
)

// String returns a string representation of the Kind.
func (k Kind) String() string {
	switch k {
	case Glob:
		return "glob"
	case Regex:
		return "regex"
	default:
		return "unknown"
	}
}

// Pattern is one compiled field pattern.
type Pattern struct {
	raw  string
	kind Kind
	glob string
	re   *regexp.Regexp
}

// Compile parses a pattern. A "re:" prefix forces a regular expression;
// otherwise the kind is detected from the pattern's metacharacters.
func Compile(raw string) (*Pattern, error) {
	p := &Pattern{raw: raw, kind: Detect(raw)}
	body := raw
	if rest, ok := strings.CutPrefix(raw, "re:"); ok {
		p.kind = Regex
		body = rest
	}

	switch p.kind {
	case Regex:
		if !strings.HasPrefix(body, "^") {
			body = "^(?:" + body + ")"
		}
		if !strings.HasSuffix(body, "$") {
			body += "$"
		}
		re, err := regexp.Compile("(?i)" + body)
		if err != nil {
			return nil, errors.NewValidationError("pattern", raw, fmt.Sprintf("invalid regex: %v", err))
		}
		p.re = re
	default:
		p.glob = strings.ToLower(body)
		if _, err := filepath.Match(p.glob, ""); err != nil {
			return nil, errors.NewValidationError("pattern", raw, fmt.Sprintf("invalid glob: %v", err))
		}
	}
	return p, nil
}

// Match reports whether field matches the pattern.
func (p *Pattern) Match(field string) bool {
	if p.kind == Regex {
		return p.re.MatchString(field)
	}
	ok, _ := filepath.Match(p.glob, strings.ToLower(field))
	return ok
}

// String returns the pattern as written.
func (p *Pattern) String() string {
	return p.raw
}

// Kind returns the pattern's syntax.
func (p *Pattern) Kind() Kind {
	return p.kind
}

// Detect guesses whether raw is a regular expression or a glob.
func Detect(raw string) Kind {
	if strings.HasPrefix(raw, "re:") {
		return Regex
	}
	for _, indicator := range []string{
		"^", "$", `\d`, `\w`, `\s`, "(?", "{", "}", "+", "|", "(", ")",
	} {
		if strings.Contains(raw, indicator) {
			return Regex
		}
	}
	return Glob
}

// Set matches a field against any of several patterns. An empty Set
// matches every field.
type Set struct {
	patterns []*Pattern
}

// CompileSet compiles each pattern into a Set.
func CompileSet(raw []string) (*Set, error) {
	s := &Set{patterns: make([]*Pattern, 0, len(raw))}
	for _, r := range raw {
		p, err := Compile(r)
		if err != nil {
			return nil, err
		}
		s.patterns = append(s.patterns, p)
	}
	return s, nil
}

// Match reports whether field matches any pattern in the set.
func (s *Set) Match(field string) bool {
	if s == nil || len(s.patterns) == 0 {
		return true
	}
	for _, p := range s.patterns {
		if p.Match(field) {
			return true
		}
	}
	return false
}

// Filter returns the fields that match, in input order.
func (s *Set) Filter(fields []string) []string {
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if s.Match(f) {
			out = append(out, f)
		}
	}
	return out
}

// Len returns the number of patterns.
func (s *Set) Len() int {
	if s == nil {
		return 0
	}
	return len(s.patterns)
}
