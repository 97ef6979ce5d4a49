package library

import (
	"context"
	"sort"

	"github.com/oe-mirrors/pkgctl/internal/manifest"
	"github.com/oe-mirrors/pkgctl/internal/pkgname"
	"github.com/oe-mirrors/pkgctl/internal/search"
)

// repositoryIndex fetches and parses the configured target's repo.toml
// index via the repository manager.
func (l *Library) repositoryIndex(ctx context.Context) (manifest.Repository, error) {
	text, _, err := l.repoMgr.SyncRepositoryIndex(ctx)
	if err != nil {
		return manifest.Repository{}, err
	}
	return manifest.RepositoryFromText(text)
}

// Search ranks every package name in the target's repository index against
// query using Sørensen–Dice bigram similarity, per spec.md §4.G.
func (l *Library) Search(ctx context.Context, query string) ([]search.Result, error) {
	repoIdx, err := l.repositoryIndex(ctx)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(repoIdx.Packages))
	for name := range repoIdx.Packages {
		names = append(names, name)
	}
	return search.Rank(query, names), nil
}

// Upgradable describes an installed package whose repository index version
// differs from the version in its package manifest. InstalledVersion holds
// that manifest version.
type Upgradable struct {
	Name             pkgname.Name
	InstalledVersion string
	AvailableVersion string
}

// ListUpgradable is a supplemented convenience (not required by apply()'s
// own correctness — update(nil) already reinstalls unconditionally): it
// flags every installed package whose repository index version differs
// from the version in the package manifest the remotes currently serve
// (fetched through GetPackageDetail). The version that was actually
// installed is not recorded anywhere and is not consulted, so an index and
// manifest that agree with each other hide an outdated installation.
// Version strings are opaque to the
// core (spec.md's Non-goals exclude version-constraint solving), so no
// ordering is imposed here — "upgradable" means "the repository's record
// disagrees with what's installed", not "is newer by some scheme".
func (l *Library) ListUpgradable(ctx context.Context) ([]Upgradable, error) {
	installed, err := l.backend.InstalledPackages()
	if err != nil {
		return nil, err
	}
	repoIdx, err := l.repositoryIndex(ctx)
	if err != nil {
		return nil, err
	}

	var out []Upgradable
	for _, name := range installed {
		available, ok := repoIdx.Packages[name.String()]
		if !ok {
			continue
		}
		pkg, err := l.backend.GetPackageDetail(ctx, name)
		if err != nil {
			return nil, err
		}
		if available != pkg.Version {
			out = append(out, Upgradable{Name: name, InstalledVersion: pkg.Version, AvailableVersion: available})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name.String() < out[j].Name.String() })
	return out, nil
}

// ReverseDependencies returns the installed packages whose manifest
// declares target as a dependency. Supplemented read-only surface over the
// same Package.Depends data apply()'s closure already requires.
func (l *Library) ReverseDependencies(ctx context.Context, target pkgname.Name) ([]pkgname.Name, error) {
	installed, err := l.backend.InstalledPackages()
	if err != nil {
		return nil, err
	}
	var out []pkgname.Name
	for _, name := range installed {
		pkg, err := l.backend.GetPackageDetail(ctx, name)
		if err != nil {
			return nil, err
		}
		deps, err := pkg.DependsNames()
		if err != nil {
			return nil, err
		}
		for _, dep := range deps {
			if dep.String() == target.String() {
				out = append(out, name)
				break
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out, nil
}
