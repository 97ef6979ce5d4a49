// Package pkgname implements the package-name grammar: a non-empty string
// with at most one base/suffix separator and an optional host-toolchain
// prefix.
package pkgname

import "strings"

// Name is an immutable, validated package name. The zero value is not a
// valid Name; construct one with New.
type Name struct {
	raw string
}

// New validates s and returns a Name, or an error describing why s is not a
// legal package name.
//
// A name must be non-empty, must not contain '/' or NUL, must contain at
// most one '.' (separating a base name from an optional suffix), and must
// not contain ':' except as the terminator of a leading "host:" prefix.
func New(s string) (Name, error) {
	if s == "" {
		return Name{}, &InvalidError{Name: s}
	}
	if strings.ContainsRune(s, '/') || strings.ContainsRune(s, '\x00') {
		return Name{}, &InvalidError{Name: s}
	}
	if strings.Count(s, ".") > 1 {
		return Name{}, &InvalidError{Name: s}
	}
	if idx := strings.IndexByte(s, ':'); idx >= 0 {
		if idx != strings.LastIndexByte(s, ':') {
			return Name{}, &InvalidError{Name: s}
		}
		if idx == 0 || idx == len(s)-1 {
			return Name{}, &InvalidError{Name: s}
		}
		if s[:idx] != "host" {
			return Name{}, &InvalidError{Name: s}
		}
	}
	return Name{raw: s}, nil
}

// MustNew is like New but panics on invalid input. Intended for tests and
// compile-time-known literals.
func MustNew(s string) Name {
	n, err := New(s)
	if err != nil {
		panic(err)
	}
	return n
}

// InvalidError reports that a string failed package-name validation.
type InvalidError struct {
	Name string
}

func (e *InvalidError) Error() string {
	return "invalid package name: " + e.Name
}

// String returns the raw name string, including any "host:" prefix.
func (n Name) String() string {
	return n.raw
}

// IsZero reports whether n is the unconstructed zero value.
func (n Name) IsZero() bool {
	return n.raw == ""
}

// IsHost reports whether n carries a "host:" prefix, selecting
// host-toolchain context instead of the target toolchain.
func (n Name) IsHost() bool {
	return strings.HasPrefix(n.raw, "host:")
}

// withoutHostPrefix strips a leading "host:" prefix, if present.
func (n Name) withoutHostPrefix() string {
	if n.IsHost() {
		return n.raw[len("host:"):]
	}
	return n.raw
}

// Base returns the base name, excluding any "host:" prefix and any
// "."-delimited suffix.
func (n Name) Base() string {
	rest := n.withoutHostPrefix()
	if idx := strings.IndexByte(rest, '.'); idx >= 0 {
		return rest[:idx]
	}
	return rest
}

// Suffix returns the "."-delimited suffix, or "" if n has none.
func (n Name) Suffix() string {
	rest := n.withoutHostPrefix()
	if idx := strings.IndexByte(rest, '.'); idx >= 0 {
		return rest[idx+1:]
	}
	return ""
}

// WithoutHost returns n with any "host:" prefix removed.
func (n Name) WithoutHost() Name {
	if !n.IsHost() {
		return n
	}
	return Name{raw: n.withoutHostPrefix()}
}

// WithHost returns n with a "host:" prefix added, replacing the existing
// one if present.
func (n Name) WithHost() Name {
	return Name{raw: "host:" + n.withoutHostPrefix()}
}

// WithSuffix returns a new Name with the given suffix, replacing any
// existing one. An empty suffix removes the "."-delimited part entirely.
func (n Name) WithSuffix(suffix string) Name {
	host := n.IsHost()
	base := n.Base()
	raw := base
	if suffix != "" {
		raw = base + "." + suffix
	}
	if host {
		raw = "host:" + raw
	}
	return Name{raw: raw}
}

// MarshalText implements encoding.TextMarshaler so Name can be used
// directly as a TOML/JSON map key or scalar value.
func (n Name) MarshalText() ([]byte, error) {
	return []byte(n.raw), nil
}

// UnmarshalText implements encoding.TextUnmarshaler, re-validating the
// decoded string.
func (n *Name) UnmarshalText(text []byte) error {
	parsed, err := New(string(text))
	if err != nil {
		return err
	}
	*n = parsed
	return nil
}
