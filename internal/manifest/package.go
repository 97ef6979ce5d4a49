// Package manifest deserializes the text (TOML) manifest format used for
// packages and repository indexes. Unknown keys are tolerated: structs only
// declare the fields the core consults, and BurntSushi/toml silently drops
// the rest on decode and omits them on encode, matching spec.md's "unknown
// fields are tolerated" requirement for decode but not full round-trip of
// unknown keys — the core never needs to echo back fields it doesn't
// understand, only to survive their presence.
package manifest

import (
	"bytes"

	"github.com/BurntSushi/toml"

	"github.com/oe-mirrors/pkgctl/internal/pkgerr"
	"github.com/oe-mirrors/pkgctl/internal/pkgname"
)

// Package is a parsed package manifest.
type Package struct {
	Name    string   `toml:"name"`
	Version string   `toml:"version"`
	Target  string   `toml:"target"`
	Depends []string `toml:"depends"`

	// Carried through but not consulted by the core.
	Blake3  string `toml:"blake3,omitempty"`
	Source  string `toml:"source,omitempty"`
	Commit  string `toml:"commit,omitempty"`
	Time    string `toml:"time,omitempty"`
	StoreSz int64  `toml:"storage_size,omitempty"`
	NetSz   int64  `toml:"network_size,omitempty"`
}

// IsMeta reports whether the package is a meta-package (empty version): a
// named dependency aggregator never itself applied to the root.
func (p Package) IsMeta() bool {
	return p.Version == ""
}

// PackageName validates and returns p.Name as a pkgname.Name.
func (p Package) PackageName() (pkgname.Name, error) {
	return pkgname.New(p.Name)
}

// DependsNames validates and returns p.Depends as pkgname.Name values, in
// declared order.
func (p Package) DependsNames() ([]pkgname.Name, error) {
	out := make([]pkgname.Name, 0, len(p.Depends))
	for _, d := range p.Depends {
		n, err := pkgname.New(d)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, nil
}

// FromText parses a package manifest from its TOML text representation.
func FromText(text string) (Package, error) {
	var pkg Package
	if _, err := toml.Decode(text, &pkg); err != nil {
		return Package{}, pkgerr.Wrap(pkgerr.KindParse, "package manifest", err)
	}
	return pkg, nil
}

// ToText serializes the package back into TOML text.
func (p Package) ToText() (string, error) {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(p); err != nil {
		return "", pkgerr.Wrap(pkgerr.KindParse, "package manifest", err)
	}
	return buf.String(), nil
}
