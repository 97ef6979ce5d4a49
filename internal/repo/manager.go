package repo

import (
	"context"
	"os"
	"path/filepath"

	"golang.org/x/sync/errgroup"

	"github.com/oe-mirrors/pkgctl/internal/downloader"
	"github.com/oe-mirrors/pkgctl/internal/logging"
	"github.com/oe-mirrors/pkgctl/internal/pkgerr"
)

// Manager holds the ordered list of remotes, the shared download cache
// directory, the key directory, and the prefer-cache policy.
type Manager struct {
	remotes     []Remote
	cacheDir    string
	keyDir      string
	preferCache bool
	client      *downloader.Client
	sink        downloader.ProgressSink
}

// New constructs a Manager. cacheDir holds downloaded assets, keyDir holds
// pinned public keys; both are created lazily on first use.
func New(cacheDir, keyDir string, client *downloader.Client, sink downloader.ProgressSink) *Manager {
	if client == nil {
		client = downloader.New(0)
	}
	if sink == nil {
		sink = downloader.NopProgressSink{}
	}
	return &Manager{
		cacheDir: cacheDir,
		keyDir:   keyDir,
		client:   client,
		sink:     sink,
	}
}

// SetPreferCache sets whether sync() should trust an existing cache entry
// without re-downloading it.
func (m *Manager) SetPreferCache(prefer bool) {
	m.preferCache = prefer
}

// Remotes returns the ordered list of configured remotes.
func (m *Manager) Remotes() []Remote {
	return append([]Remote(nil), m.remotes...)
}

// AddRemote appends a new remote built from baseURL and target. Key
// material is not downloaded until first use.
func (m *Manager) AddRemote(baseURL, target string) error {
	r, err := newRemote(baseURL, target, m.keyDir)
	if err != nil {
		return err
	}
	m.remotes = append(m.remotes, r)
	return nil
}

// SyncKeys ensures every remote's pinned public key exists on disk,
// downloading any that are missing. Missing keys across remotes are
// downloaded concurrently since each is an independent network fetch.
func (m *Manager) SyncKeys(ctx context.Context) error {
	if err := os.MkdirAll(m.keyDir, 0o755); err != nil {
		return pkgerr.Wrap(pkgerr.KindIO, m.keyDir, err)
	}

	g, ctx := errgroup.WithContext(ctx)
	for _, r := range m.remotes {
		r := r
		if _, err := os.Stat(r.LocalPubkeyPath); err == nil {
			continue
		}
		g.Go(func() error {
			logging.Debugf("repo: fetching pinned key for remote %s", r.RemoteID)
			return m.client.Download(ctx, r.URLPubkey, r.LocalPubkeyPath, m.sink)
		})
	}
	return g.Wait()
}

// GetLocalPath returns the cache path a file from remote would be stored
// at: <cache>/<remote_id>_<file>.
func (m *Manager) GetLocalPath(remote Remote, file string) string {
	return filepath.Join(m.cacheDir, remote.RemoteID+"_"+file)
}

// Sync fetches file (a path relative to a remote's target directory, e.g.
// "foo.pkgar" or "foo.toml") trying each remote in insertion order,
// returning the remote the file was obtained from. An HTTP status error
// from one remote is treated as "this remote lacks the file" and fallback
// continues; any other download error aborts the fallback loop.
func (m *Manager) Sync(ctx context.Context, file string) (Remote, error) {
	if err := os.MkdirAll(m.cacheDir, 0o755); err != nil {
		return Remote{}, pkgerr.Wrap(pkgerr.KindIO, m.cacheDir, err)
	}
	if err := m.SyncKeys(ctx); err != nil {
		return Remote{}, err
	}

	for _, r := range m.remotes {
		localPath := m.GetLocalPath(r, file)

		if m.preferCache {
			if _, err := os.Stat(localPath); err == nil {
				logging.Debugf("repo: trusting cached %s from remote %s", file, r.RemoteID)
				return r, nil
			}
		}

		err := m.client.Download(ctx, r.FileURL(file), localPath, m.sink)
		if err == nil {
			return r, nil
		}

		var statusErr *downloader.HTTPStatusError
		if isHTTPStatus(err, &statusErr) {
			logging.Debugf("repo: remote %s lacks %s (%v), trying next", r.RemoteID, file, statusErr)
			continue
		}
		// Timeout/Transport/IO errors are hard failures: abort the
		// fallback loop instead of trying the remaining remotes.
		return Remote{}, err
	}

	return Remote{}, pkgerr.New(pkgerr.KindValidRepoNotFound)
}

func isHTTPStatus(err error, target **downloader.HTTPStatusError) bool {
	for err != nil {
		if se, ok := err.(*downloader.HTTPStatusError); ok {
			*target = se
			return true
		}
		unwrapper, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = unwrapper.Unwrap()
	}
	return false
}

// SyncTOML fetches "<name>.toml" and returns its contents as a string,
// mapping a not-found result to PackageNotFound(name).
func (m *Manager) SyncTOML(ctx context.Context, name string) (string, Remote, error) {
	r, err := m.Sync(ctx, name+".toml")
	if err != nil {
		if pkgerr.Is(err, pkgerr.KindValidRepoNotFound) {
			return "", Remote{}, pkgerr.Newf(pkgerr.KindPackageNotFound, "%s", name)
		}
		return "", Remote{}, err
	}
	data, readErr := os.ReadFile(m.GetLocalPath(r, name+".toml"))
	if readErr != nil {
		return "", Remote{}, pkgerr.Wrap(pkgerr.KindIO, name, readErr)
	}
	return string(data), r, nil
}

// SyncPkgar fetches "<name>.pkgar", returning its local cache path and the
// remote it was obtained from, mapping a not-found result to
// PackageNotFound(name).
func (m *Manager) SyncPkgar(ctx context.Context, name string) (string, Remote, error) {
	r, err := m.Sync(ctx, name+".pkgar")
	if err != nil {
		if pkgerr.Is(err, pkgerr.KindValidRepoNotFound) {
			return "", Remote{}, pkgerr.Newf(pkgerr.KindPackageNotFound, "%s", name)
		}
		return "", Remote{}, err
	}
	return m.GetLocalPath(r, name+".pkgar"), r, nil
}

// SyncRepositoryIndex fetches "repo.toml" (the package index) and returns
// its contents as a string.
func (m *Manager) SyncRepositoryIndex(ctx context.Context) (string, Remote, error) {
	r, err := m.Sync(ctx, "repo.toml")
	if err != nil {
		return "", Remote{}, err
	}
	data, err := os.ReadFile(m.GetLocalPath(r, "repo.toml"))
	if err != nil {
		return "", Remote{}, pkgerr.Wrap(pkgerr.KindIO, "repo.toml", err)
	}
	return string(data), r, nil
}
