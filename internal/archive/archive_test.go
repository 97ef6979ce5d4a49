package archive

import (
	"crypto/ed25519"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func genKey(t *testing.T) (ed25519.PublicKey, ed25519.PrivateKey) {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	return pub, priv
}

func TestInstallThenOpenVerifiesAndApplies(t *testing.T) {
	pub, priv := genKey(t)
	dir := t.TempDir()
	archivePath := filepath.Join(dir, "foo.pkgar")
	root := filepath.Join(dir, "root")

	entries := []Entry{
		{Name: "bin/foo", Mode: 0o755, Data: []byte("binary")},
		{Name: "etc/foo.conf", Mode: 0o644, Data: []byte("conf")},
	}
	require.NoError(t, Sign(priv, entries, archivePath))

	a, err := Open(archivePath, pub)
	require.NoError(t, err)

	require.NoError(t, Install(a, root))

	data, err := os.ReadFile(filepath.Join(root, "bin/foo"))
	require.NoError(t, err)
	require.Equal(t, "binary", string(data))

	data, err = os.ReadFile(filepath.Join(root, "etc/foo.conf"))
	require.NoError(t, err)
	require.Equal(t, "conf", string(data))
}

func TestOpenRejectsBadSignature(t *testing.T) {
	_, priv := genKey(t)
	otherPub, _ := genKey(t)
	dir := t.TempDir()
	archivePath := filepath.Join(dir, "foo.pkgar")

	require.NoError(t, Sign(priv, []Entry{{Name: "a", Data: []byte("x")}}, archivePath))

	_, err := Open(archivePath, otherPub)
	require.Error(t, err)
	var verr *VerifyError
	require.ErrorAs(t, err, &verr)
}

func TestSplitThenRemove(t *testing.T) {
	pub, priv := genKey(t)
	dir := t.TempDir()
	archivePath := filepath.Join(dir, "foo.pkgar")
	headPath := filepath.Join(dir, "foo.pkgar_head")
	pubkeyPath := filepath.Join(dir, "pub.toml")
	root := filepath.Join(dir, "root")

	entries := []Entry{{Name: "bin/foo", Mode: 0o755, Data: []byte("binary")}}
	require.NoError(t, Sign(priv, entries, archivePath))

	require.NoError(t, Split(pubkeyPath, archivePath, headPath))

	a, err := Open(archivePath, pub)
	require.NoError(t, err)
	require.NoError(t, Install(a, root))
	require.FileExists(t, filepath.Join(root, "bin/foo"))

	head, err := Open(headPath, pub)
	require.NoError(t, err)
	require.NoError(t, Remove(head, root))
	require.NoFileExists(t, filepath.Join(root, "bin/foo"))
}

func TestReplacePreservesSharedFilesUntilCommitted(t *testing.T) {
	pub, priv := genKey(t)
	dir := t.TempDir()
	root := filepath.Join(dir, "root")

	oldPath := filepath.Join(dir, "old.pkgar")
	newPath := filepath.Join(dir, "new.pkgar")
	headPath := filepath.Join(dir, "old.pkgar_head")
	pubkeyPath := filepath.Join(dir, "pub.toml")

	shared := []Entry{{Name: "shared", Data: []byte("v1")}}
	require.NoError(t, Sign(priv, shared, oldPath))
	require.NoError(t, Split(pubkeyPath, oldPath, headPath))

	oldArchive, err := Open(oldPath, pub)
	require.NoError(t, err)
	require.NoError(t, Install(oldArchive, root))

	newEntries := []Entry{{Name: "shared", Data: []byte("v2")}, {Name: "added", Data: []byte("new")}}
	require.NoError(t, Sign(priv, newEntries, newPath))

	oldHead, err := Open(headPath, pub)
	require.NoError(t, err)
	newArchive, err := Open(newPath, pub)
	require.NoError(t, err)

	require.NoError(t, Replace(oldHead, newArchive, root))

	data, err := os.ReadFile(filepath.Join(root, "shared"))
	require.NoError(t, err)
	require.Equal(t, "v2", string(data))
	require.FileExists(t, filepath.Join(root, "added"))
}

func TestInstallRejectsHeadArchive(t *testing.T) {
	pub, priv := genKey(t)
	dir := t.TempDir()
	archivePath := filepath.Join(dir, "foo.pkgar")
	headPath := filepath.Join(dir, "foo.pkgar_head")
	pubkeyPath := filepath.Join(dir, "pub.toml")

	require.NoError(t, Sign(priv, []Entry{{Name: "a", Data: []byte("x")}}, archivePath))
	require.NoError(t, Split(pubkeyPath, archivePath, headPath))

	head, err := Open(headPath, pub)
	require.NoError(t, err)

	err = Install(head, filepath.Join(dir, "root"))
	require.Error(t, err)
}
