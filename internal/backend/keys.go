package backend

import (
	"bytes"
	"crypto/ed25519"
	"encoding/base64"
	"os"

	"github.com/BurntSushi/toml"

	"github.com/oe-mirrors/pkgctl/internal/pkgerr"
)

// pubkeyFile is the on-disk shape of a pinned remote's public key, fetched
// as "<base>/id_ed25519.pub.toml" and stored at <keydir>/pub_key_<id>.toml.
// The wire key format is an out-of-scope external collaborator (spec.md §1);
// base64-over-TOML is this core's own choice for the file it controls end
// to end (downloaded and parsed, never produced by the core itself).
type pubkeyFile struct {
	Ed25519 string `toml:"ed25519"`
}

func loadPubkey(path string) (ed25519.PublicKey, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, pkgerr.Wrap(pkgerr.KindIO, path, err)
	}
	var pf pubkeyFile
	if _, err := toml.Decode(string(raw), &pf); err != nil {
		return nil, pkgerr.Wrap(pkgerr.KindParse, path, err)
	}
	key, err := base64.StdEncoding.DecodeString(pf.Ed25519)
	if err != nil || len(key) != ed25519.PublicKeySize {
		return nil, pkgerr.Newf(pkgerr.KindParse, "malformed public key at %s", path)
	}
	return ed25519.PublicKey(key), nil
}

// EncodePubkey renders pub in the file format loadPubkey expects. Exposed
// for test fixtures and any tooling that provisions key directories.
func EncodePubkey(pub ed25519.PublicKey) (string, error) {
	var buf bytes.Buffer
	enc := toml.NewEncoder(&buf)
	if err := enc.Encode(pubkeyFile{Ed25519: base64.StdEncoding.EncodeToString(pub)}); err != nil {
		return "", err
	}
	return buf.String(), nil
}
