// Package backend is the install backend: it maintains the installed-head
// set and protected set, and executes verified install/upgrade/uninstall
// against a root filesystem path, per spec.md §4.E.
package backend

import (
	"context"
	"crypto/ed25519"
	"os"
	"path/filepath"
	"strings"

	"github.com/oe-mirrors/pkgctl/internal/archive"
	"github.com/oe-mirrors/pkgctl/internal/logging"
	"github.com/oe-mirrors/pkgctl/internal/manifest"
	"github.com/oe-mirrors/pkgctl/internal/pkgerr"
	"github.com/oe-mirrors/pkgctl/internal/pkgname"
	"github.com/oe-mirrors/pkgctl/internal/repo"
)

// Backend holds the install root, the persistent InstalledSet, a lazy
// per-remote pinned-key cache, and a reference to the repository manager.
type Backend struct {
	root          string
	packagesDir   string
	installedPath string
	repoMgr       *repo.Manager

	installed InstalledSet
	keys      map[string]ed25519.PublicKey // remote_id -> pinned key, lazy
}

// New constructs a Backend rooted at root. It reads packages.toml (defaulting
// to empty on absence), creates both layout directories, and write-probes
// packages.toml so permission errors surface at construction as
// MissingPermissions rather than later as a generic IO failure.
func New(root string, repoMgr *repo.Manager) (*Backend, error) {
	etcDir := filepath.Join(root, "etc", "pkg")
	packagesDir := filepath.Join(root, "pkg", "packages")
	if err := os.MkdirAll(etcDir, 0o755); err != nil {
		return nil, classifyFSError(etcDir, err)
	}
	if err := os.MkdirAll(packagesDir, 0o755); err != nil {
		return nil, classifyFSError(packagesDir, err)
	}

	installedPath := filepath.Join(etcDir, "packages.toml")
	installed, err := loadInstalledSet(installedPath)
	if err != nil {
		return nil, err
	}

	b := &Backend{
		root:          root,
		packagesDir:   packagesDir,
		installedPath: installedPath,
		repoMgr:       repoMgr,
		installed:     installed,
		keys:          map[string]ed25519.PublicKey{},
	}
	if err := b.probeWritable(); err != nil {
		return nil, err
	}
	return b, nil
}

// probeWritable exercises a write to packages.toml so permission failures
// are reported at construction, not mid-apply.
func (b *Backend) probeWritable() error {
	f, err := os.OpenFile(b.installedPath, os.O_WRONLY|os.O_CREATE, 0o644)
	if err != nil {
		return classifyFSError(b.installedPath, err)
	}
	return f.Close()
}

func classifyFSError(path string, err error) error {
	if os.IsPermission(err) {
		return pkgerr.Wrap(pkgerr.KindMissingPermissions, path, err)
	}
	return pkgerr.Wrap(pkgerr.KindIO, path, err)
}

func (b *Backend) headPath(name pkgname.Name) string {
	return filepath.Join(b.packagesDir, name.String()+".pkgar_head")
}

// IsProtected reports whether name is in the persisted protected set.
func (b *Backend) IsProtected(name pkgname.Name) bool {
	return b.installed.isProtected(name)
}

// Protect adds name to the protected set.
func (b *Backend) Protect(name pkgname.Name) {
	if b.installed.isProtected(name) {
		return
	}
	b.installed.Protected = append(b.installed.Protected, name.String())
}

// Unprotect removes name from the protected set.
func (b *Backend) Unprotect(name pkgname.Name) {
	out := b.installed.Protected[:0]
	for _, p := range b.installed.Protected {
		if p != name.String() {
			out = append(out, p)
		}
	}
	b.installed.Protected = out
}

// pinnedKey returns the pinned public key for r, loading and caching it on
// first use.
func (b *Backend) pinnedKey(r repo.Remote) (ed25519.PublicKey, error) {
	if key, ok := b.keys[r.RemoteID]; ok {
		return key, nil
	}
	key, err := loadPubkey(r.LocalPubkeyPath)
	if err != nil {
		return nil, err
	}
	b.keys[r.RemoteID] = key
	return key, nil
}

// GetPackageDetail fetches and parses name's manifest via the repository
// manager. Used directly by callers and by the library's dependency closure.
func (b *Backend) GetPackageDetail(ctx context.Context, name pkgname.Name) (manifest.Package, error) {
	text, _, err := b.repoMgr.SyncTOML(ctx, name.String())
	if err != nil {
		return manifest.Package{}, err
	}
	return manifest.FromText(text)
}

// Install fetches, verifies, and applies name's archive, recording a
// head-file for future uninstall.
func (b *Backend) Install(ctx context.Context, name pkgname.Name) error {
	archivePath, remote, err := b.repoMgr.SyncPkgar(ctx, name.String())
	if err != nil {
		return err
	}
	key, err := b.pinnedKey(remote)
	if err != nil {
		return err
	}
	a, err := archive.Open(archivePath, key)
	if err != nil {
		return err
	}
	if err := archive.Install(a, b.root); err != nil {
		return err
	}
	if err := archive.Split(remote.LocalPubkeyPath, archivePath, b.headPath(name)); err != nil {
		return err
	}
	logging.Infof("backend: installed %s from %s", name, remote.RemoteID)
	return nil
}

// openVerifiedHead loads name's head-file, trying every configured remote's
// pinned key until one verifies it. RepoCacheNotFound signals an orphaned
// install record (no pinned key verifies it).
func (b *Backend) openVerifiedHead(name pkgname.Name) (*archive.Archive, error) {
	path := b.headPath(name)
	for _, r := range b.repoMgr.Remotes() {
		key, err := b.pinnedKey(r)
		if err != nil {
			continue
		}
		if a, err := archive.Open(path, key); err == nil {
			return a, nil
		}
	}
	return nil, pkgerr.Newf(pkgerr.KindRepoCacheNotFound, "%s", name)
}

// Uninstall removes an installed package. Protected names are refused before
// any filesystem mutation.
func (b *Backend) Uninstall(name pkgname.Name) error {
	if b.IsProtected(name) {
		return pkgerr.Newf(pkgerr.KindProtectedPackage, "%s", name)
	}
	head, err := b.openVerifiedHead(name)
	if err != nil {
		return err
	}
	if err := archive.Remove(head, b.root); err != nil {
		return err
	}
	if err := os.Remove(b.headPath(name)); err != nil && !os.IsNotExist(err) {
		return classifyFSError(b.headPath(name), err)
	}
	logging.Infof("backend: uninstalled %s", name)
	return nil
}

// Upgrade replaces an installed package's files with a newly fetched
// archive, which may come from a different remote than the original
// install; the head-file is rewritten to reflect the new source of truth.
func (b *Backend) Upgrade(ctx context.Context, name pkgname.Name) error {
	oldHead, err := b.openVerifiedHead(name)
	if err != nil {
		return err
	}
	archivePath, remote, err := b.repoMgr.SyncPkgar(ctx, name.String())
	if err != nil {
		return err
	}
	key, err := b.pinnedKey(remote)
	if err != nil {
		return err
	}
	newArchive, err := archive.Open(archivePath, key)
	if err != nil {
		return err
	}
	if err := archive.Replace(oldHead, newArchive, b.root); err != nil {
		return err
	}
	if err := archive.Split(remote.LocalPubkeyPath, archivePath, b.headPath(name)); err != nil {
		return err
	}
	logging.Infof("backend: upgraded %s from %s", name, remote.RemoteID)
	return nil
}

// InstalledPackages enumerates <root>/pkg/packages/*.pkgar_head, validating
// each stripped filename as a PackageName.
func (b *Backend) InstalledPackages() ([]pkgname.Name, error) {
	entries, err := os.ReadDir(b.packagesDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, pkgerr.Wrap(pkgerr.KindIO, b.packagesDir, err)
	}
	var out []pkgname.Name
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		fname := e.Name()
		if !strings.HasSuffix(fname, ".pkgar_head") {
			continue
		}
		base := strings.TrimSuffix(fname, ".pkgar_head")
		name, err := pkgname.New(base)
		if err != nil {
			return nil, pkgerr.Wrap(pkgerr.KindIO, fname, err)
		}
		out = append(out, name)
	}
	return out, nil
}

// IsInstalled reports whether name currently has a head-file on disk.
func (b *Backend) IsInstalled(name pkgname.Name) bool {
	_, err := os.Stat(b.headPath(name))
	return err == nil
}

// Flush writes the InstalledSet back to packages.toml. Write errors are
// swallowed: apply() is the authoritative, already-committed state, and a
// future version should take an advisory lock here (see spec.md §5) rather
// than fail teardown on a missed flush.
func (b *Backend) Flush() {
	if err := b.installed.save(b.installedPath); err != nil {
		logging.Warnf("backend: failed to flush packages.toml: %v", err)
	}
}
