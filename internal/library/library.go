// Package library is the planner: it accumulates install/uninstall/update
// intent, resolves dependency closures, and drives the install backend, per
// spec.md §4.F.
package library

import (
	"context"

	"github.com/oe-mirrors/pkgctl/internal/backend"
	"github.com/oe-mirrors/pkgctl/internal/config"
	"github.com/oe-mirrors/pkgctl/internal/downloader"
	"github.com/oe-mirrors/pkgctl/internal/logging"
	"github.com/oe-mirrors/pkgctl/internal/pkgname"
	"github.com/oe-mirrors/pkgctl/internal/repo"
)

// DefaultCacheDir is the process-wide download cache, per spec.md §3.
const DefaultCacheDir = "/tmp/pkg_download"

// DefaultKeyDir is where pinned remote keys are stored.
const DefaultKeyDir = "/tmp/pkg_download/keys"

// PackageList is the user-intent accumulator: names queued for install and
// for uninstall.
type PackageList struct {
	Install   []pkgname.Name
	Uninstall []pkgname.Name
}

// Library is constructed with a root path and target triple; it loads
// remotes from <root>/etc/pkg.d/*, initializes the repository manager,
// constructs the backend, and exposes planner operations.
type Library struct {
	root     string
	target   string
	cacheDir string
	repoMgr  *repo.Manager
	backend  *backend.Backend
	list     PackageList
}

// New constructs a Library rooted at root for the given target triple,
// loading remote sources from <root>/etc/pkg.d/*, initializing the
// repository manager (cache dir, key dir, prefer_cache sentinel), and
// constructing the install backend (which reads packages.toml).
func New(root, target string) (*Library, error) {
	return NewWithCache(root, target, DefaultCacheDir, DefaultKeyDir)
}

// NewWithCache is New with an explicit cache/key directory pair, useful for
// tests and alternate deployments.
func NewWithCache(root, target, cacheDir, keyDir string) (*Library, error) {
	urls, err := config.LoadRemoteSources(root)
	if err != nil {
		return nil, err
	}

	repoMgr := repo.New(cacheDir, keyDir, downloader.New(0), downloader.NopProgressSink{})
	repoMgr.SetPreferCache(config.PreferCache(cacheDir))
	for _, url := range urls {
		if err := repoMgr.AddRemote(url, target); err != nil {
			return nil, err
		}
	}

	be, err := backend.New(root, repoMgr)
	if err != nil {
		return nil, err
	}

	return &Library{root: root, target: target, cacheDir: cacheDir, repoMgr: repoMgr, backend: be}, nil
}

// Install queues names for install, skipping any already installed (those
// are routed to upgrade by apply()'s own logic, but are also not
// double-queued here per spec.md §4.F's "(a) already-installed names are
// not double-installed").
func (l *Library) Install(names ...pkgname.Name) {
	for _, n := range names {
		if l.backend.IsInstalled(n) {
			continue
		}
		l.list.Install = append(l.list.Install, n)
	}
}

// Uninstall queues names for uninstall, filtering out names that are not
// currently installed.
func (l *Library) Uninstall(names ...pkgname.Name) {
	for _, n := range names {
		if !l.backend.IsInstalled(n) {
			continue
		}
		l.list.Uninstall = append(l.list.Uninstall, n)
	}
}

// Update queues names for reinstall/upgrade; an empty list expands to every
// currently installed package.
func (l *Library) Update(names ...pkgname.Name) error {
	if len(names) == 0 {
		installed, err := l.backend.InstalledPackages()
		if err != nil {
			return err
		}
		l.list.Install = append(l.list.Install, installed...)
		return nil
	}
	for _, n := range names {
		if !l.backend.IsInstalled(n) {
			continue
		}
		l.list.Install = append(l.list.Install, n)
	}
	return nil
}

// PackageList returns a copy of the currently queued intent.
func (l *Library) PackageList() PackageList {
	return PackageList{
		Install:   append([]pkgname.Name(nil), l.list.Install...),
		Uninstall: append([]pkgname.Name(nil), l.list.Uninstall...),
	}
}

// Apply executes the queued plan: every uninstall first (first failure
// aborts and preserves the list for inspection), then the install closure
// in dependency order, upgrading names already installed and installing the
// rest. The queue is cleared only on full success.
func (l *Library) Apply(ctx context.Context) error {
	for _, n := range l.list.Uninstall {
		if err := l.backend.Uninstall(n); err != nil {
			return err
		}
	}

	closure, err := l.WithDependencies(ctx, l.list.Install)
	if err != nil {
		return err
	}

	for _, n := range closure {
		if l.backend.IsInstalled(n) {
			if err := l.backend.Upgrade(ctx, n); err != nil {
				return err
			}
			continue
		}
		if err := l.backend.Install(ctx, n); err != nil {
			return err
		}
	}

	uninstalled := len(l.list.Uninstall)
	l.list = PackageList{}
	logging.Infof("library: apply complete (%d installed/upgraded, %d uninstalled)", len(closure), uninstalled)
	return nil
}

// Close flushes the backend's InstalledSet. Flush errors are swallowed by
// the backend itself; Close never returns an error.
func (l *Library) Close() {
	l.backend.Flush()
}

// CacheDir returns the library's configured download cache directory.
func (l *Library) CacheDir() string {
	return l.cacheDir
}

// Backend exposes the underlying install backend for informational queries
// (supplemented features) that don't belong on the core planner surface.
func (l *Library) Backend() *backend.Backend {
	return l.backend
}

// Remotes exposes the underlying repository manager's configured remotes.
func (l *Library) Remotes() []repo.Remote {
	return l.repoMgr.Remotes()
}
