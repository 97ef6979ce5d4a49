package backend

import (
	"os"

	"github.com/BurntSushi/toml"

	"github.com/oe-mirrors/pkgctl/internal/pkgerr"
	"github.com/oe-mirrors/pkgctl/internal/pkgname"
)

// InstalledSet is the persistent state at <root>/etc/pkg/packages.toml: the
// protected-name list. The installed-package set itself is derived from the
// filesystem (head-files), not stored here.
type InstalledSet struct {
	Protected []string `toml:"protected"`
}

func loadInstalledSet(path string) (InstalledSet, error) {
	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return InstalledSet{}, nil
	}
	if err != nil {
		return InstalledSet{}, pkgerr.Wrap(pkgerr.KindIO, path, err)
	}
	var s InstalledSet
	if _, err := toml.Decode(string(raw), &s); err != nil {
		return InstalledSet{}, pkgerr.Wrap(pkgerr.KindParse, path, err)
	}
	return s, nil
}

func (s InstalledSet) save(path string) error {
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return pkgerr.Wrap(pkgerr.KindIO, path, err)
	}
	enc := toml.NewEncoder(f)
	encErr := enc.Encode(s)
	closeErr := f.Close()
	if encErr != nil {
		os.Remove(tmp)
		return pkgerr.Wrap(pkgerr.KindIO, path, encErr)
	}
	if closeErr != nil {
		os.Remove(tmp)
		return pkgerr.Wrap(pkgerr.KindIO, path, closeErr)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return pkgerr.Wrap(pkgerr.KindIO, path, err)
	}
	return nil
}

func (s InstalledSet) isProtected(name pkgname.Name) bool {
	for _, p := range s.Protected {
		if p == name.String() {
			return true
		}
	}
	return false
}
