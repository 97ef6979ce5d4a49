package config

import (
	"bufio"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/oe-mirrors/pkgctl/internal/pkgerr"
)

// PreferCacheSentinel is the filename whose presence in the cache directory
// selects repo.Manager's prefer-cache policy, per spec.md §6.
const PreferCacheSentinel = "prefer_cache"

// LoadRemoteSources reads every file under <root>/etc/pkg.d/, in sorted
// filename order, and returns the ordered list of remote base URLs they
// declare. Each file holds one URL per line; lines beginning with "#" are
// comments; blank (after trimming) lines are skipped.
func LoadRemoteSources(root string) ([]string, error) {
	dir := filepath.Join(root, "etc", "pkg.d")
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, pkgerr.Wrap(pkgerr.KindIO, dir, err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)

	var urls []string
	for _, name := range names {
		path := filepath.Join(dir, name)
		fileURLs, err := readRemoteSourceFile(path)
		if err != nil {
			return nil, err
		}
		urls = append(urls, fileURLs...)
	}
	return urls, nil
}

func readRemoteSourceFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, pkgerr.Wrap(pkgerr.KindIO, path, err)
	}
	defer f.Close()

	var urls []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		urls = append(urls, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, pkgerr.Wrap(pkgerr.KindIO, path, err)
	}
	return urls, nil
}

// PreferCache reports whether <cacheDir>/prefer_cache exists.
func PreferCache(cacheDir string) bool {
	_, err := os.Stat(filepath.Join(cacheDir, PreferCacheSentinel))
	return err == nil
}
