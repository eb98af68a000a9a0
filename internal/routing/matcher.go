// Package routing compiles component route specs into matcher functions.
//
// A spec is one of three shapes:
//   - an exact id ("confirm_delete")
//   - a regular expression ("^update_cancel_\d+$"), whose captures are the id
//     split on a separator
//   - a named path pattern ("/vote/:poll/:option"), whose captures are the
//     named segments
package routing

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// DefaultSeparator splits positional captures out of regex-matched ids.
const DefaultSeparator = "_"

// ErrEmptySpec is returned when a spec has neither an id nor a pattern.
var ErrEmptySpec = errors.New("routing: spec needs an id or a pattern")

var namedSegment = regexp.MustCompile(`:(\w+)`)

// Spec describes which component ids a route accepts.
type Spec struct {
	// ID restricts the route to exactly this id. When Pattern is also set
	// the pattern is applied after the equality check.
	ID string
	// Pattern is an exact id, a regular expression, or a named path pattern.
	Pattern string
	// Regexp is a precompiled alternative to Pattern.
	Regexp *regexp.Regexp
	// Separator splits positional captures for id and regex routes.
	Separator string
}

// String renders the spec for route listings.
func (s Spec) String() string {
	switch {
	case s.Regexp != nil:
		return "re:" + s.Regexp.String()
	case s.Pattern != "" && s.ID != "":
		return s.ID + " " + s.Pattern
	case s.Pattern != "":
		return s.Pattern
	default:
		return s.ID
	}
}

// Match is the result of applying a matcher to a candidate id.
type Match struct {
	Matched    bool
	Positional []string
	Named      map[string]string
}

// Param returns a named capture.
func (m Match) Param(name string) (string, bool) {
	v, ok := m.Named[name]
	return v, ok
}

// Matcher tests a candidate id.
type Matcher func(id string) Match

type kind int

const (
	kindID kind = iota
	kindExact
	kindRegexp
	kindNamed
)

type compiled struct {
	kind  kind
	id    string
	exact string
	re    *regexp.Regexp
	names []string
	sep   string
}

// Compile validates spec and returns its matcher. Malformed specs are
// rejected here so they surface at registration rather than on first click.
func Compile(spec Spec) (Matcher, error) {
	c := compiled{id: spec.ID, sep: spec.Separator}
	if c.sep == "" {
		c.sep = DefaultSeparator
	}

	pattern := strings.TrimSpace(spec.Pattern)
	switch {
	case spec.Regexp != nil:
		c.kind = kindRegexp
		c.re = spec.Regexp
	case pattern == "" && spec.ID == "":
		return nil, ErrEmptySpec
	case pattern == "":
		c.kind = kindID
	case namedSegment.MatchString(pattern):
		re, names, err := compileNamed(pattern)
		if err != nil {
			return nil, err
		}
		c.kind = kindNamed
		c.re = re
		c.names = names
	case regexp.QuoteMeta(pattern) == pattern:
		c.kind = kindExact
		c.exact = pattern
	default:
		re, err := regexp.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("routing: compile pattern %q: %w", pattern, err)
		}
		c.kind = kindRegexp
		c.re = re
	}

	return c.match, nil
}

// MustCompile is like Compile but panics on error. Intended for
// package-level route tables.
func MustCompile(spec Spec) Matcher {
	m, err := Compile(spec)
	if err != nil {
		panic(err)
	}
	return m
}

// compileNamed turns "/vote/:poll/:option" into ^/vote/([^/]+)/([^/]+)$.
// Literal text between segments is matched literally.
func compileNamed(pattern string) (*regexp.Regexp, []string, error) {
	var (
		b     strings.Builder
		names []string
		last  int
	)
	b.WriteByte('^')
	for _, loc := range namedSegment.FindAllStringSubmatchIndex(pattern, -1) {
		b.WriteString(regexp.QuoteMeta(pattern[last:loc[0]]))
		b.WriteString(`([^/]+)`)
		names = append(names, pattern[loc[2]:loc[3]])
		last = loc[1]
	}
	b.WriteString(regexp.QuoteMeta(pattern[last:]))
	b.WriteByte('$')

	re, err := regexp.Compile(b.String())
	if err != nil {
		return nil, nil, fmt.Errorf("routing: compile named pattern %q: %w", pattern, err)
	}
	return re, names, nil
}

func (c compiled) match(id string) Match {
	if id == "" {
		return Match{}
	}
	if c.id != "" && c.id != id {
		return Match{}
	}

	switch c.kind {
	case kindID:
		return Match{Matched: true, Positional: strings.Split(id, c.sep)}
	case kindExact:
		if id != c.exact {
			return Match{}
		}
		return Match{Matched: true, Positional: strings.Split(id, c.sep)}
	case kindRegexp:
		if !c.re.MatchString(id) {
			return Match{}
		}
		return Match{Matched: true, Positional: strings.Split(id, c.sep)}
	case kindNamed:
		groups := c.re.FindStringSubmatch(id)
		if groups == nil {
			return Match{}
		}
		m := Match{
			Matched:    true,
			Positional: append([]string(nil), groups[1:]...),
			Named:      make(map[string]string, len(c.names)),
		}
		for i, name := range c.names {
			if v := groups[i+1]; v != "" {
				m.Named[name] = v
			}
		}
		return m
	}
	return Match{}
}
