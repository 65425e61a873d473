// Package modversion implements the module system's version grammar and
// ordering (spec §3): three token lists — sequence, pre-release, build —
// separated by '.', '-', '+', with pointwise comparison.
//
// This grammar is deliberately stricter than the source's historical
// parser, which accepted constructs (such as consecutive separators) that
// its own documentation did not allow; this package adopts only the
// grammar stated below; see internal/modversion/constraint.go for an
// optional, looser compatibility check layered on top via
// github.com/Masterminds/semver/v3.
package modversion

import (
	"strconv"
	"strings"
)

// Token is one dot/dash/plus-separated element of a version: either an
// integer or an opaque string, per spec §3.
type Token struct {
	Str   string
	Int   int64
	IsInt bool
}

func newToken(s string) Token {
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return Token{IsInt: true, Int: n, Str: s}
	}

	return Token{Str: s}
}

// String renders the token in its original textual form.
func (t Token) String() string { return t.Str }

func compareTokens(a, b Token) int {
	switch {
	case a.IsInt && b.IsInt:
		switch {
		case a.Int < b.Int:
			return -1
		case a.Int > b.Int:
			return 1
		default:
			return 0
		}
	case !a.IsInt && !b.IsInt:
		return strings.Compare(a.Str, b.Str)
	default:
		// integer-vs-string mismatch: compared by string form.
		return strings.Compare(a.String(), b.String())
	}
}

// Version is a parsed module version: a numeric sequence, an optional
// pre-release tag list, and an optional build metadata list.
type Version struct {
	Sequence   []Token
	PreRelease []Token // nil/empty means no pre-release
	Build      []Token // nil/empty means no build metadata
	raw        string
}

// HasPreRelease reports whether the version carries a pre-release tag.
func (v Version) HasPreRelease() bool { return len(v.PreRelease) > 0 }

// String returns the version's original textual form as parsed, or, if
// constructed programmatically, a canonical rendering.
func (v Version) String() string {
	if v.raw != "" {
		return v.raw
	}

	var b strings.Builder

	for i, t := range v.Sequence {
		if i > 0 {
			b.WriteByte('.')
		}

		b.WriteString(t.String())
	}

	if len(v.PreRelease) > 0 {
		b.WriteByte('-')

		for i, t := range v.PreRelease {
			if i > 0 {
				b.WriteByte('.')
			}

			b.WriteString(t.String())
		}
	}

	if len(v.Build) > 0 {
		b.WriteByte('+')

		for i, t := range v.Build {
			if i > 0 {
				b.WriteByte('.')
			}

			b.WriteString(t.String())
		}
	}

	return b.String()
}

// Parse parses a version string per the grammar in spec §3: a sequence of
// '.'-separated tokens up to the first '-' or '+'; if a '-' came first, a
// pre-release section of '.'-or-'-'-separated tokens up to the first '+';
// a build section, if a '+' is present, of tokens separated by any of
// '.', '-', '+'.
func Parse(s string) (Version, error) {
	if s == "" {
		return Version{}, &ParseError{Input: s, Reason: "empty version string"}
	}

	dash := strings.IndexByte(s, '-')
	plus := strings.IndexByte(s, '+')

	seqEnd := len(s)
	splitPos := -1
	splitChar := byte(0)

	switch {
	case dash >= 0 && (plus < 0 || dash < plus):
		seqEnd = dash
		splitPos = dash
		splitChar = '-'
	case plus >= 0:
		seqEnd = plus
		splitPos = plus
		splitChar = '+'
	}

	seqStr := s[:seqEnd]

	seq, err := splitTokens(seqStr, ".")
	if err != nil {
		return Version{}, &ParseError{Input: s, Reason: err.Error()}
	}

	if len(seq) == 0 {
		return Version{}, &ParseError{Input: s, Reason: "empty numeric sequence"}
	}

	v := Version{Sequence: seq, raw: s}

	rest := s[seqEnd:]

	switch splitChar {
	case '-':
		rest = rest[1:] // drop leading '-'

		preEnd := strings.IndexByte(rest, '+')

		var preStr string

		if preEnd < 0 {
			preStr = rest
			rest = ""
		} else {
			preStr = rest[:preEnd]
			rest = rest[preEnd:]
		}

		pre, err := splitTokens(preStr, ".-")
		if err != nil {
			return Version{}, &ParseError{Input: s, Reason: err.Error()}
		}

		if len(pre) == 0 {
			return Version{}, &ParseError{Input: s, Reason: "empty pre-release section"}
		}

		v.PreRelease = pre

		if strings.HasPrefix(rest, "+") {
			build, err := splitTokens(rest[1:], ".-+")
			if err != nil {
				return Version{}, &ParseError{Input: s, Reason: err.Error()}
			}

			if len(build) == 0 {
				return Version{}, &ParseError{Input: s, Reason: "empty build section"}
			}

			v.Build = build
		}
	case '+':
		build, err := splitTokens(rest[1:], ".-+")
		if err != nil {
			return Version{}, &ParseError{Input: s, Reason: err.Error()}
		}

		if len(build) == 0 {
			return Version{}, &ParseError{Input: s, Reason: "empty build section"}
		}

		v.Build = build
	}

	return v, nil
}

// splitTokens splits s on any byte in seps, rejecting empty tokens
// (consecutive separators, or a leading/trailing separator) to enforce the
// strict grammar called out in spec §9's open question.
func splitTokens(s string, seps string) ([]Token, error) {
	if s == "" {
		return nil, nil
	}

	var (
		tokens []Token
		cur    strings.Builder
	)

	flush := func() error {
		if cur.Len() == 0 {
			return &ParseError{Reason: "empty token (consecutive or boundary separator)"}
		}

		tokens = append(tokens, newToken(cur.String()))
		cur.Reset()

		return nil
	}

	for i := 0; i < len(s); i++ {
		c := s[i]
		if strings.IndexByte(seps, c) >= 0 {
			if err := flush(); err != nil {
				return nil, err
			}

			continue
		}

		cur.WriteByte(c)
	}

	if err := flush(); err != nil {
		return nil, err
	}

	return tokens, nil
}

// ParseError reports a grammar violation encountered while parsing a
// version string.
type ParseError struct {
	Input  string
	Reason string
}

func (e *ParseError) Error() string {
	if e.Input == "" {
		return "version parse error: " + e.Reason
	}

	return "version parse error in " + strconv.Quote(e.Input) + ": " + e.Reason
}

// Compare returns -1, 0, or 1 as v is less than, equal to, or greater than
// other. Sequence comparison is pointwise with missing trailing elements
// treated as integer zero (so 1.2 == 1.2.0); pre-release comparison is
// pointwise with a present pre-release sorting before an absent one, and a
// longer pre-release list sorting after a shorter one that is its prefix.
// Build metadata never affects ordering.
func (v Version) Compare(other Version) int {
	if c := compareSequences(v.Sequence, other.Sequence); c != 0 {
		return c
	}

	switch {
	case !v.HasPreRelease() && !other.HasPreRelease():
		return 0
	case !v.HasPreRelease() && other.HasPreRelease():
		return 1 // absent sorts greater than present
	case v.HasPreRelease() && !other.HasPreRelease():
		return -1
	default:
		return comparePreRelease(v.PreRelease, other.PreRelease)
	}
}

func compareSequences(a, b []Token) int {
	n := len(a)
	if len(b) > n {
		n = len(b)
	}

	for i := 0; i < n; i++ {
		ta := Token{IsInt: true, Str: "0"}
		if i < len(a) {
			ta = a[i]
		}

		tb := Token{IsInt: true, Str: "0"}
		if i < len(b) {
			tb = b[i]
		}

		if c := compareTokens(ta, tb); c != 0 {
			return c
		}
	}

	return 0
}

func comparePreRelease(a, b []Token) int {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}

	for i := 0; i < n; i++ {
		if c := compareTokens(a[i], b[i]); c != 0 {
			return c
		}
	}

	switch {
	case len(a) < len(b):
		return -1
	case len(a) > len(b):
		return 1
	default:
		return 0
	}
}

// Less reports whether v sorts strictly before other.
func (v Version) Less(other Version) bool { return v.Compare(other) < 0 }

// Equal reports whether v and other compare equal under Compare.
func (v Version) Equal(other Version) bool { return v.Compare(other) == 0 }
