// Package archive is the adapter the core requires from a signed-archive
// library: open (verify), install, remove, replace, and split (produce a
// payload-less head-file for later verified removal). spec.md treats the
// underlying archive format as an opaque external collaborator; this
// package gives it a concrete, self-contained implementation — a tar
// manifest (names and modes only) signed with a detached ed25519 signature,
// plus an optional second tar section carrying file data — since no
// library in the retrieval pack implements the exact single-archive,
// single-signature, splittable-head scheme the spec calls for (see
// DESIGN.md).
//
// The signature covers only the manifest section, never the file data: a
// head-file keeps the manifest section byte-for-byte and simply omits the
// data section, so it verifies against the same signature as the archive
// it was split from.
//
// Signature verification always precedes filesystem mutation, and a
// partial failure before commit leaves the root unchanged.
package archive

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"crypto/ed25519"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/oe-mirrors/pkgctl/internal/logging"
	"github.com/oe-mirrors/pkgctl/internal/pkgerr"
)

const magic = "PKGARCH2"

// Entry is one file carried inside an archive.
type Entry struct {
	Name string
	Mode int64
	Data []byte
}

// Archive is an opened, signature-verified package archive. entries carries
// Data when the archive has a data section (payload == true); for a
// head-only archive entries carries only Name and Mode.
type Archive struct {
	entries []Entry
	payload bool
}

// VerifyError signals that an archive's signature did not verify against
// the provided public key.
type VerifyError struct {
	Path string
}

func (e *VerifyError) Error() string {
	return fmt.Sprintf("signature verification failed for %s", e.Path)
}

// Open loads an archive (full or head-only) from path and verifies its
// signature against pubkey. No filesystem mutation occurs as a side
// effect of Open; an archive that fails verification produces no side
// effects beyond this function's error return.
func Open(path string, pubkey ed25519.PublicKey) (*Archive, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, pkgerr.Wrap(pkgerr.KindIO, path, err)
	}
	manifestBytes, dataBytes, sig, err := splitSections(raw)
	if err != nil {
		return nil, pkgerr.Wrap(pkgerr.KindParse, path, err)
	}
	if !ed25519.Verify(pubkey, signedRegion(manifestBytes), sig) {
		return nil, &VerifyError{Path: path}
	}

	hasData := len(dataBytes) > 0
	var entries []Entry
	if hasData {
		entries, err = decodeEntries(dataBytes, true)
	} else {
		entries, err = decodeEntries(manifestBytes, false)
	}
	if err != nil {
		return nil, pkgerr.Wrap(pkgerr.KindParse, path, err)
	}
	return &Archive{entries: entries, payload: hasData}, nil
}

// Install stages then atomically commits every entry in a beneath root.
// a must be a full archive (the result of Open on a .pkgar, not a head).
// Partial failure before commit leaves root unchanged.
func Install(a *Archive, root string) error {
	if !a.payload {
		return pkgerr.Newf(pkgerr.KindIO, "install requires a full archive, not a head")
	}
	staged, err := stageEntries(a.entries, root)
	if err != nil {
		removeStaged(staged)
		return err
	}
	if err := commitStaged(staged); err != nil {
		removeStaged(staged)
		return err
	}
	logging.Debugf("archive: installed %d entries under %s", len(a.entries), root)
	return nil
}

// Remove deletes exactly the entries catalogued in head beneath root.
// Directories become candidates for removal only when left empty;
// failures to remove empty directories are non-fatal.
func Remove(head *Archive, root string) error {
	dirs := map[string]bool{}
	for _, e := range head.entries {
		full := filepath.Join(root, e.Name)
		if err := os.Remove(full); err != nil && !os.IsNotExist(err) {
			return pkgerr.Wrap(pkgerr.KindIO, full, err)
		}
		dirs[filepath.Dir(full)] = true
	}
	for dir := range dirs {
		// Best effort: only removes empty directories, non-fatal otherwise.
		_ = os.Remove(dir)
	}
	logging.Debugf("archive: removed %d entries under %s", len(head.entries), root)
	return nil
}

// Replace removes oldHead's entries and installs newArchive's, as a single
// transaction that stages the new archive first and only then removes the
// old entries the new archive does not carry, so files shared between
// versions are never absent from root.
func Replace(oldHead *Archive, newArchive *Archive, root string) error {
	if !newArchive.payload {
		return pkgerr.Newf(pkgerr.KindIO, "replace requires a full new archive, not a head")
	}
	staged, err := stageEntries(newArchive.entries, root)
	if err != nil {
		removeStaged(staged)
		return err
	}
	if err := commitStaged(staged); err != nil {
		removeStaged(staged)
		return err
	}
	keep := make(map[string]bool, len(newArchive.entries))
	for _, e := range newArchive.entries {
		keep[e.Name] = true
	}
	var stale []Entry
	for _, e := range oldHead.entries {
		if !keep[e.Name] {
			stale = append(stale, e)
		}
	}
	if err := Remove(&Archive{entries: stale}, root); err != nil {
		return err
	}
	logging.Debugf("archive: replaced under %s", root)
	return nil
}

// Split writes a head-file (manifest section and signature, no data
// section) derived from archivePath to headOutputPath, usable for later
// Remove. The manifest section is copied unchanged from archivePath, so the
// signature — which covers only that section — still verifies.
func Split(pubkeyPath, archivePath, headOutputPath string) error {
	raw, err := os.ReadFile(archivePath)
	if err != nil {
		return pkgerr.Wrap(pkgerr.KindIO, archivePath, err)
	}
	manifestBytes, _, sig, err := splitSections(raw)
	if err != nil {
		return pkgerr.Wrap(pkgerr.KindParse, archivePath, err)
	}

	out := assembleSections(manifestBytes, nil, sig)

	if err := os.MkdirAll(filepath.Dir(headOutputPath), 0o755); err != nil {
		return pkgerr.Wrap(pkgerr.KindIO, headOutputPath, err)
	}
	if err := os.WriteFile(headOutputPath, out, 0o644); err != nil {
		return pkgerr.Wrap(pkgerr.KindIO, headOutputPath, err)
	}
	logging.Debugf("archive: split head for %s -> %s (pubkey %s)", archivePath, headOutputPath, pubkeyPath)
	return nil
}

type stagedFile struct {
	tmpPath  string
	realPath string
}

func stageEntries(entries []Entry, root string) ([]stagedFile, error) {
	staged := make([]stagedFile, 0, len(entries))
	for _, e := range entries {
		real := filepath.Join(root, e.Name)
		if err := os.MkdirAll(filepath.Dir(real), 0o755); err != nil {
			return staged, classifyFSError(real, err)
		}
		tmp := real + ".pkgar-staging"
		if err := os.WriteFile(tmp, e.Data, os.FileMode(e.Mode)); err != nil {
			return staged, classifyFSError(tmp, err)
		}
		staged = append(staged, stagedFile{tmpPath: tmp, realPath: real})
	}
	return staged, nil
}

func commitStaged(staged []stagedFile) error {
	for _, s := range staged {
		if err := os.Rename(s.tmpPath, s.realPath); err != nil {
			return classifyFSError(s.realPath, err)
		}
	}
	return nil
}

func removeStaged(staged []stagedFile) {
	for _, s := range staged {
		_ = os.Remove(s.tmpPath)
	}
}

func classifyFSError(path string, err error) error {
	if os.IsPermission(err) {
		return pkgerr.Wrap(pkgerr.KindMissingPermissions, path, err)
	}
	return pkgerr.Wrap(pkgerr.KindIO, path, err)
}

// --- wire format ---
//
// [magic][u32 manifest-len][manifest bytes][u32 data-len][data bytes][sig]
//
// manifest bytes are gzip(tar(names+modes, zero-size entries, no bodies)).
// data bytes, present only in a full archive, are gzip(tar(names+modes+
// bodies)) and carry the same entries as the manifest section, in the same
// order. The signature covers magic+u32(manifest-len)+manifest bytes only,
// so it is identical whether or not the data section is present — this is
// what lets Split drop the data section and keep the original signature.

func splitSections(raw []byte) (manifestBytes, dataBytes, sig []byte, err error) {
	if len(raw) < len(magic)+4 {
		return nil, nil, nil, errors.New("archive too short")
	}
	if string(raw[:len(magic)]) != magic {
		return nil, nil, nil, errors.New("bad archive magic")
	}
	off := len(magic)

	mlen, ok := readU32(raw, off)
	if !ok {
		return nil, nil, nil, errors.New("truncated manifest length")
	}
	off += 4
	if uint32(len(raw)-off) < mlen {
		return nil, nil, nil, errors.New("truncated manifest section")
	}
	manifestBytes = raw[off : off+int(mlen)]
	off += int(mlen)

	dlen, ok := readU32(raw, off)
	if !ok {
		return nil, nil, nil, errors.New("truncated data length")
	}
	off += 4
	if uint32(len(raw)-off) < dlen {
		return nil, nil, nil, errors.New("truncated data section")
	}
	dataBytes = raw[off : off+int(dlen)]
	off += int(dlen)

	sig = raw[off:]
	if len(sig) != ed25519.SignatureSize {
		return nil, nil, nil, errors.New("malformed signature")
	}
	return manifestBytes, dataBytes, sig, nil
}

func readU32(raw []byte, off int) (uint32, bool) {
	if off+4 > len(raw) {
		return 0, false
	}
	return binary.BigEndian.Uint32(raw[off:]), true
}

// signedRegion is the exact byte string the signature is computed over:
// magic followed by the length-prefixed manifest section.
func signedRegion(manifestBytes []byte) []byte {
	var buf bytes.Buffer
	buf.WriteString(magic)
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(manifestBytes)))
	buf.Write(lenBuf[:])
	buf.Write(manifestBytes)
	return buf.Bytes()
}

func assembleSections(manifestBytes, dataBytes, sig []byte) []byte {
	var buf bytes.Buffer
	buf.Write(signedRegion(manifestBytes))
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(dataBytes)))
	buf.Write(lenBuf[:])
	buf.Write(dataBytes)
	buf.Write(sig)
	return buf.Bytes()
}

// Sign assembles and signs a full archive from entries using priv, writing
// the resulting .pkgar bytes to destPath. This is the counterpart to Open
// used by package-building tooling; the core itself never signs archives
// (package building is a spec.md non-goal), but tests use it to produce
// fixtures.
func Sign(priv ed25519.PrivateKey, entries []Entry, destPath string) error {
	manifestBytes := encodeEntries(entries, false)
	dataBytes := encodeEntries(entries, true)
	sig := ed25519.Sign(priv, signedRegion(manifestBytes))
	out := assembleSections(manifestBytes, dataBytes, sig)
	if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return pkgerr.Wrap(pkgerr.KindIO, destPath, err)
	}
	return os.WriteFile(destPath, out, 0o644)
}

// encodeEntries serializes entries as gzip(tar(...)). withData controls
// whether file bodies (and real sizes) are written, so the same entries
// produce a fixed manifest encoding independent of whether a data section
// follows it.
func encodeEntries(entries []Entry, withData bool) []byte {
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)
	for _, e := range entries {
		hdr := &tar.Header{Name: e.Name, Mode: e.Mode, Size: 0}
		if withData {
			hdr.Size = int64(len(e.Data))
		}
		_ = tw.WriteHeader(hdr)
		if withData {
			_, _ = tw.Write(e.Data)
		}
	}
	_ = tw.Close()
	_ = gz.Close()
	return buf.Bytes()
}

// decodeEntries parses a gzip(tar(...)) section produced by encodeEntries.
// withData must match how the section was encoded.
func decodeEntries(section []byte, withData bool) ([]Entry, error) {
	gz, err := gzip.NewReader(bytes.NewReader(section))
	if err != nil {
		return nil, err
	}
	defer gz.Close()
	tr := tar.NewReader(gz)
	var entries []Entry
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		e := Entry{Name: hdr.Name, Mode: hdr.Mode}
		if withData {
			data, err := io.ReadAll(tr)
			if err != nil {
				return nil, err
			}
			e.Data = data
		}
		entries = append(entries, e)
	}
	return entries, nil
}
