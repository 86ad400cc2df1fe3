// Package manifest parses model manifests, checks frozen manifests for
// tampering and resolves the files they name through a storage fetcher.
package manifest

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/cockroachdb/errors"
)

type RejectCode string

const (
	RejectSchemaInvalid RejectCode = "MANIFEST_SCHEMA_INVALID"
	RejectTampered      RejectCode = "MANIFEST_TAMPERED"
)

const (
	PlainFileName  = "model_manifest.json"
	FrozenFileName = "model_manifest.json.freeze"
)

const lockChecksumField = "lock_checksum"

type FileSpec struct {
	Name            string `json:"name"`
	SourceURI       string `json:"source_uri"`
	MD5Checksum     string `json:"md5_checksum,omitempty"`
	Blake2bChecksum string `json:"blake2b_checksum,omitempty"`
	FailOnTamper    bool   `json:"fail_on_tamper,omitempty"`
	Description     string `json:"description,omitempty"`
}

type Manifest struct {
	RequiredFiles []FileSpec `json:"required_files"`
	OptionalFiles []FileSpec `json:"optional_files"`
	LockChecksum  string     `json:"lock_checksum,omitempty"`
}

type VerifyError struct {
	Code RejectCode
	Err  error
}

func (e *VerifyError) Error() string {
	if e == nil {
		return ""
	}
	if e.Err == nil {
		return string(e.Code)
	}
	return fmt.Sprintf("%s: %v", e.Code, e.Err)
}

func (e *VerifyError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func RejectCodeOf(err error) (RejectCode, bool) {
	var verr *VerifyError
	if errors.As(err, &verr) {
		return verr.Code, true
	}
	return "", false
}

// ErrFreezeTampered is wrapped by every lock checksum mismatch.
var ErrFreezeTampered = errors.New("manifest freeze file tamper detected; run 'adk freeze' to rebuild the freeze file")

// ParseStrict decodes raw as a manifest. A frozen manifest must carry a
// lock_checksum; whenever one is present it must match the body.
func ParseStrict(raw []byte, frozen bool) (Manifest, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()

	var m Manifest
	if err := dec.Decode(&m); err != nil {
		return Manifest{}, &VerifyError{Code: RejectSchemaInvalid, Err: err}
	}
	var extra any
	if err := dec.Decode(&extra); err == nil {
		return Manifest{}, &VerifyError{Code: RejectSchemaInvalid, Err: errors.New("unexpected trailing json tokens")}
	} else if !errors.Is(err, io.EOF) {
		return Manifest{}, &VerifyError{Code: RejectSchemaInvalid, Err: err}
	}
	if err := validateSchema(m); err != nil {
		return Manifest{}, err
	}

	if frozen && m.LockChecksum == "" {
		return Manifest{}, &VerifyError{Code: RejectTampered, Err: errors.Wrap(ErrFreezeTampered, "lock_checksum is missing")}
	}
	if m.LockChecksum != "" {
		detected, err := LockChecksum(raw)
		if err != nil {
			return Manifest{}, &VerifyError{Code: RejectSchemaInvalid, Err: err}
		}
		if detected != m.LockChecksum {
			return Manifest{}, &VerifyError{
				Code: RejectTampered,
				Err:  errors.Wrapf(ErrFreezeTampered, "expected %s, detected %s", m.LockChecksum, detected),
			}
		}
	}
	return m, nil
}

// Freeze returns the indented frozen form of m with its lock checksum set.
func Freeze(m Manifest) ([]byte, error) {
	if err := validateSchema(m); err != nil {
		return nil, err
	}
	m.LockChecksum = ""
	if m.RequiredFiles == nil {
		m.RequiredFiles = []FileSpec{}
	}
	if m.OptionalFiles == nil {
		m.OptionalFiles = []FileSpec{}
	}
	body, err := json.Marshal(m)
	if err != nil {
		return nil, errors.Wrap(err, "encode manifest")
	}
	sum, err := LockChecksum(body)
	if err != nil {
		return nil, err
	}
	m.LockChecksum = sum
	out, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return nil, errors.Wrap(err, "encode frozen manifest")
	}
	return append(out, '\n'), nil
}

// Lookup returns the optional file spec registered under name.
func (m Manifest) Lookup(name string) (FileSpec, bool) {
	for _, spec := range m.OptionalFiles {
		if spec.Name == name {
			return spec, true
		}
	}
	return FileSpec{}, false
}

func validateSchema(m Manifest) error {
	check := func(group string, specs []FileSpec) error {
		for i, spec := range specs {
			if strings.TrimSpace(spec.Name) == "" {
				return &VerifyError{Code: RejectSchemaInvalid, Err: errors.Newf("%s[%d].name is required", group, i)}
			}
			if strings.TrimSpace(spec.SourceURI) == "" {
				return &VerifyError{Code: RejectSchemaInvalid, Err: errors.Newf("%s[%d].source_uri is required", group, i)}
			}
			if spec.MD5Checksum != "" && !isHex(spec.MD5Checksum, 32) {
				return &VerifyError{Code: RejectSchemaInvalid, Err: errors.Newf("%s[%d].md5_checksum is invalid", group, i)}
			}
			if spec.Blake2bChecksum != "" && !isHex(spec.Blake2bChecksum, 64) {
				return &VerifyError{Code: RejectSchemaInvalid, Err: errors.Newf("%s[%d].blake2b_checksum is invalid", group, i)}
			}
		}
		return nil
	}
	if err := check("required_files", m.RequiredFiles); err != nil {
		return err
	}
	return check("optional_files", m.OptionalFiles)
}

func isHex(s string, n int) bool {
	if len(s) != n {
		return false
	}
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9', r >= 'a' && r <= 'f', r >= 'A' && r <= 'F':
		default:
			return false
		}
	}
	return true
}
