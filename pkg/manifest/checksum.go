package manifest

import (
	"bytes"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"io"
	"os"

	"github.com/cockroachdb/errors"
	"golang.org/x/crypto/blake2b"
)

// LockChecksum hashes the canonical form of a manifest document with its
// lock_checksum field removed. Keys are sorted, whitespace is dropped and
// numbers keep their literal text.
func LockChecksum(raw []byte) (string, error) {
	payload, err := CanonicalPayload(raw)
	if err != nil {
		return "", err
	}
	sum := md5.Sum(payload)
	return hex.EncodeToString(sum[:]), nil
}

func CanonicalPayload(raw []byte) ([]byte, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var body map[string]any
	if err := dec.Decode(&body); err != nil {
		return nil, errors.Wrap(err, "decode manifest body")
	}
	delete(body, lockChecksumField)

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(body); err != nil {
		return nil, errors.Wrap(err, "encode canonical manifest")
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

type Digest struct {
	MD5     string `json:"md5"`
	Blake2b string `json:"blake2b_256"`
}

// HashFile streams path once through md5 and blake2b-256.
func HashFile(path string) (Digest, error) {
	f, err := os.Open(path)
	if err != nil {
		return Digest{}, err
	}
	defer func() { _ = f.Close() }()

	md5h := md5.New()
	b2h, err := blake2b.New256(nil)
	if err != nil {
		return Digest{}, err
	}
	if _, err := io.Copy(io.MultiWriter(md5h, b2h), f); err != nil {
		return Digest{}, errors.Wrapf(err, "hash %s", path)
	}
	return Digest{
		MD5:     hex.EncodeToString(md5h.Sum(nil)),
		Blake2b: hex.EncodeToString(b2h.Sum(nil)),
	}, nil
}
