package library

import (
	"context"
	"crypto/ed25519"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/oe-mirrors/pkgctl/internal/archive"
	"github.com/oe-mirrors/pkgctl/internal/backend"
	"github.com/oe-mirrors/pkgctl/internal/manifest"
	"github.com/oe-mirrors/pkgctl/internal/pkgname"
)

// fixtureRemote serves manifests, archives, and a repo index out of an
// in-memory map, signed with a single ed25519 key.
type fixtureRemote struct {
	srv    *httptest.Server
	pub    ed25519.PublicKey
	priv   ed25519.PrivateKey
	files  map[string][]byte
	pubTxt string
}

func newFixtureRemote(t *testing.T) *fixtureRemote {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	pubTxt, err := backend.EncodePubkey(pub)
	require.NoError(t, err)

	fr := &fixtureRemote{pub: pub, priv: priv, files: map[string][]byte{}, pubTxt: pubTxt}
	fr.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/id_ed25519.pub.toml" {
			w.Write([]byte(fr.pubTxt))
			return
		}
		for suffix, data := range fr.files {
			if strings.HasSuffix(r.URL.Path, suffix) {
				w.Write(data)
				return
			}
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	return fr
}

func (fr *fixtureRemote) setManifest(t *testing.T, pkg manifest.Package) {
	t.Helper()
	text, err := pkg.ToText()
	require.NoError(t, err)
	fr.files[pkg.Name+".toml"] = []byte(text)
}

func (fr *fixtureRemote) setArchive(t *testing.T, name string, entries []archive.Entry) {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "a.pkgar")
	require.NoError(t, archive.Sign(fr.priv, entries, path))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	fr.files[name+".pkgar"] = data
}

func (fr *fixtureRemote) setIndex(t *testing.T, packages map[string]string) {
	t.Helper()
	idx := manifest.Repository{Packages: packages}
	text, err := idx.ToText()
	require.NoError(t, err)
	fr.files["repo.toml"] = []byte(text)
}

func newTestLibrary(t *testing.T, fr *fixtureRemote) *Library {
	t.Helper()
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "etc", "pkg.d"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "etc", "pkg.d", "50_test"), []byte(fr.srv.URL+"\n"), 0o644))

	dir := t.TempDir()
	lib, err := NewWithCache(root, "x86_64", filepath.Join(dir, "cache"), filepath.Join(dir, "keys"))
	require.NoError(t, err)
	return lib
}

func TestApplyInstallsDependencyClosureSkippingMeta(t *testing.T) {
	fr := newFixtureRemote(t)
	defer fr.srv.Close()

	// foo (meta, depends on bar) -> bar (depends on baz) -> baz
	fr.setManifest(t, manifest.Package{Name: "foo", Version: "", Target: "x86_64", Depends: []string{"bar"}})
	fr.setManifest(t, manifest.Package{Name: "bar", Version: "1.0", Target: "x86_64", Depends: []string{"baz"}})
	fr.setManifest(t, manifest.Package{Name: "baz", Version: "1.0", Target: "x86_64"})
	fr.setArchive(t, "bar", []archive.Entry{{Name: "bin/bar", Data: []byte("bar")}})
	fr.setArchive(t, "baz", []archive.Entry{{Name: "bin/baz", Data: []byte("baz")}})

	lib := newTestLibrary(t, fr)
	lib.Install(pkgname.MustNew("foo"))
	require.NoError(t, lib.Apply(context.Background()))

	installed, err := lib.Backend().InstalledPackages()
	require.NoError(t, err)
	var names []string
	for _, n := range installed {
		names = append(names, n.String())
	}
	require.ElementsMatch(t, []string{"bar", "baz"}, names)
}

func TestApplyInstallThenUninstall(t *testing.T) {
	fr := newFixtureRemote(t)
	defer fr.srv.Close()
	fr.setManifest(t, manifest.Package{Name: "foo", Version: "1.0", Target: "x86_64"})
	fr.setArchive(t, "foo", []archive.Entry{{Name: "bin/foo", Data: []byte("hi")}})

	lib := newTestLibrary(t, fr)
	lib.Install(pkgname.MustNew("foo"))
	require.NoError(t, lib.Apply(context.Background()))

	lib.Uninstall(pkgname.MustNew("foo"))
	require.NoError(t, lib.Apply(context.Background()))

	installed, err := lib.Backend().InstalledPackages()
	require.NoError(t, err)
	require.Empty(t, installed)
}

func TestInstallAlreadyInstalledIsNotDoubleQueued(t *testing.T) {
	fr := newFixtureRemote(t)
	defer fr.srv.Close()
	fr.setManifest(t, manifest.Package{Name: "foo", Version: "1.0", Target: "x86_64"})
	fr.setArchive(t, "foo", []archive.Entry{{Name: "bin/foo", Data: []byte("hi")}})

	lib := newTestLibrary(t, fr)
	lib.Install(pkgname.MustNew("foo"))
	require.NoError(t, lib.Apply(context.Background()))

	lib.Install(pkgname.MustNew("foo"))
	require.Empty(t, lib.PackageList().Install)
}

func TestDependencyCycleTerminates(t *testing.T) {
	fr := newFixtureRemote(t)
	defer fr.srv.Close()
	fr.setManifest(t, manifest.Package{Name: "a", Version: "1.0", Target: "x86_64", Depends: []string{"b"}})
	fr.setManifest(t, manifest.Package{Name: "b", Version: "1.0", Target: "x86_64", Depends: []string{"a"}})
	fr.setArchive(t, "a", []archive.Entry{{Name: "bin/a", Data: []byte("a")}})
	fr.setArchive(t, "b", []archive.Entry{{Name: "bin/b", Data: []byte("b")}})

	lib := newTestLibrary(t, fr)
	closure, err := lib.WithDependencies(context.Background(), []pkgname.Name{pkgname.MustNew("a")})
	require.NoError(t, err)
	require.Len(t, closure, 2)
}

func TestListUpgradable(t *testing.T) {
	fr := newFixtureRemote(t)
	defer fr.srv.Close()
	fr.setManifest(t, manifest.Package{Name: "foo", Version: "1.0", Target: "x86_64"})
	fr.setArchive(t, "foo", []archive.Entry{{Name: "bin/foo", Data: []byte("hi")}})

	lib := newTestLibrary(t, fr)
	lib.Install(pkgname.MustNew("foo"))
	require.NoError(t, lib.Apply(context.Background()))

	fr.setIndex(t, map[string]string{"foo": "2.0"})
	up, err := lib.ListUpgradable(context.Background())
	require.NoError(t, err)
	require.Len(t, up, 1)
	require.Equal(t, "foo", up[0].Name.String())
	require.Equal(t, "2.0", up[0].AvailableVersion)
}

func TestSearchRanksByName(t *testing.T) {
	fr := newFixtureRemote(t)
	defer fr.srv.Close()
	fr.setIndex(t, map[string]string{"night": "1.0", "nightfall": "1.0", "day": "1.0"})

	lib := newTestLibrary(t, fr)
	results, err := lib.Search(context.Background(), "night")
	require.NoError(t, err)
	require.NotEmpty(t, results)
	require.Equal(t, "night", results[0].Name)
}
