package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadRemoteSourcesSortedAndFiltered(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "etc", "pkg.d")
	require.NoError(t, os.MkdirAll(dir, 0o755))

	require.NoError(t, os.WriteFile(filepath.Join(dir, "50_redox"), []byte(
		"# primary mirror\nhttps://static.redox-os.org/pkg\n\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "10_mirror"), []byte(
		"https://mirror.example.invalid/pkg\n"), 0o644))

	urls, err := LoadRemoteSources(root)
	require.NoError(t, err)
	require.Equal(t, []string{
		"https://mirror.example.invalid/pkg",
		"https://static.redox-os.org/pkg",
	}, urls)
}

func TestLoadRemoteSourcesMissingDirIsEmpty(t *testing.T) {
	urls, err := LoadRemoteSources(t.TempDir())
	require.NoError(t, err)
	require.Empty(t, urls)
}

func TestPreferCacheSentinel(t *testing.T) {
	dir := t.TempDir()
	require.False(t, PreferCache(dir))
	require.NoError(t, os.WriteFile(filepath.Join(dir, PreferCacheSentinel), nil, 0o644))
	require.True(t, PreferCache(dir))
}
