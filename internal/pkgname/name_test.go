package pkgname

import "testing"

func TestNewValidation(t *testing.T) {
	cases := []struct {
		in    string
		valid bool
	}{
		{"", false},
		{"bootloader", true},
		{"a/b", false},
		{"a\x00b", false},
		{"a.b", true},
		{"a.b.c", false},
		{"host:gcc", true},
		{"host:gcc.lib", true},
		{"host:", false},
		{":gcc", false},
		{"a:b", false},
		{"host:a:b", false},
	}
	for _, tc := range cases {
		_, err := New(tc.in)
		if tc.valid && err != nil {
			t.Fatalf("New(%q): expected valid, got error %v", tc.in, err)
		}
		if !tc.valid && err == nil {
			t.Fatalf("New(%q): expected error, got none", tc.in)
		}
	}
}

func TestAccessors(t *testing.T) {
	n := MustNew("host:gcc.lib")
	if !n.IsHost() {
		t.Fatalf("expected IsHost")
	}
	if got := n.Base(); got != "gcc" {
		t.Fatalf("Base() = %q, want gcc", got)
	}
	if got := n.Suffix(); got != "lib" {
		t.Fatalf("Suffix() = %q, want lib", got)
	}
	if got := n.WithoutHost().String(); got != "gcc.lib" {
		t.Fatalf("WithoutHost() = %q, want gcc.lib", got)
	}
}

func TestWithHostAndSuffix(t *testing.T) {
	n := MustNew("bash")
	if got := n.WithHost().String(); got != "host:bash" {
		t.Fatalf("WithHost() = %q, want host:bash", got)
	}
	if got := n.WithSuffix("dev").String(); got != "bash.dev" {
		t.Fatalf("WithSuffix() = %q, want bash.dev", got)
	}
	if got := n.WithSuffix("dev").WithSuffix("").String(); got != "bash" {
		t.Fatalf("WithSuffix(\"\") = %q, want bash", got)
	}
}

func TestEquality(t *testing.T) {
	a := MustNew("bash")
	b := MustNew("bash")
	c := MustNew("zsh")
	if a != b {
		t.Fatalf("expected a == b")
	}
	if a == c {
		t.Fatalf("expected a != c")
	}
}

func TestUsableAsMapKey(t *testing.T) {
	m := map[Name]int{}
	m[MustNew("bash")] = 1
	if m[MustNew("bash")] != 1 {
		t.Fatalf("expected lookup by reconstructed Name to succeed")
	}
}
