// Package repo implements the repository manager: an ordered list of
// remotes, each with a pinned public key, fetched with an on-disk cache and
// ordered fallback across remotes.
package repo

import (
	"net/url"
	"path/filepath"

	"github.com/oe-mirrors/pkgctl/internal/pkgerr"
)

// Remote is a single origin of packages: a base URL, its pinned-key URL and
// local path, and the target triple used to namespace manifest/archive
// requests.
type Remote struct {
	URLBase         string
	URLPubkey       string
	RemoteID        string
	LocalPubkeyPath string
	Target          string
}

// newRemote derives a Remote from a base URL, target triple, and key
// directory. remote_id is the URL's hostname; RepoPathInvalid is returned
// if the URL has no host.
func newRemote(baseURL, target, keyDir string) (Remote, error) {
	u, err := url.Parse(baseURL)
	if err != nil || u.Hostname() == "" {
		return Remote{}, pkgerr.Newf(pkgerr.KindRepoPathInvalid, "%s", baseURL)
	}
	id := u.Hostname()
	return Remote{
		URLBase:         baseURL,
		URLPubkey:       baseURL + "/id_ed25519.pub.toml",
		RemoteID:        id,
		LocalPubkeyPath: filepath.Join(keyDir, "pub_key_"+id+".toml"),
		Target:          target,
	}, nil
}

// ManifestURL is the URL template for a package's manifest.
func (r Remote) ManifestURL(name string) string {
	return r.URLBase + "/" + r.Target + "/" + name + ".toml"
}

// ArchiveURL is the URL template for a package's archive.
func (r Remote) ArchiveURL(name string) string {
	return r.URLBase + "/" + r.Target + "/" + name + ".pkgar"
}

// IndexURL is the URL template for the repository's package index.
func (r Remote) IndexURL() string {
	return r.URLBase + "/" + r.Target + "/repo.toml"
}

// FileURL builds the URL for an arbitrary relative file under this
// remote's target directory, e.g. "foo.pkgar" or "foo.toml".
func (r Remote) FileURL(file string) string {
	return r.URLBase + "/" + r.Target + "/" + file
}
