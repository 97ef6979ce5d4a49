package manifest

import (
	"bytes"

	"github.com/BurntSushi/toml"

	"github.com/oe-mirrors/pkgctl/internal/pkgerr"
)

// OutdatedEntry is the source-identifier record carried for a package that
// a repository index marks as outdated relative to some upstream.
type OutdatedEntry struct {
	Source string `toml:"source,omitempty"`
	Commit string `toml:"commit,omitempty"`
	Time   string `toml:"time,omitempty"`
}

// Repository is a parsed repository (package index) manifest: the set of
// package names it carries, mapped to their version strings, plus any
// packages flagged as outdated relative to their upstream source.
type Repository struct {
	Packages         map[string]string        `toml:"packages"`
	OutdatedPackages map[string]OutdatedEntry `toml:"outdated_packages"`
}

// RepositoryFromText parses a repository index from its TOML text
// representation. Both Packages and OutdatedPackages default to empty maps.
func RepositoryFromText(text string) (Repository, error) {
	var repo Repository
	if _, err := toml.Decode(text, &repo); err != nil {
		return Repository{}, pkgerr.Wrap(pkgerr.KindParse, "repository index", err)
	}
	if repo.Packages == nil {
		repo.Packages = map[string]string{}
	}
	if repo.OutdatedPackages == nil {
		repo.OutdatedPackages = map[string]OutdatedEntry{}
	}
	return repo, nil
}

// ToText serializes the repository index back into TOML text.
func (r Repository) ToText() (string, error) {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(r); err != nil {
		return "", pkgerr.Wrap(pkgerr.KindParse, "repository index", err)
	}
	return buf.String(), nil
}
