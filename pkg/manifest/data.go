package manifest

import (
	"context"
	"os"
	"strings"
	"sync"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"algoadk/go-runtime/pkg/storage"
)

type State int

const (
	StateUnloaded State = iota
	StateParsed
	StateTamperCheckFailed
	StateVerified
	StateResolving
	StateReady
)

func (s State) String() string {
	switch s {
	case StateUnloaded:
		return "unloaded"
	case StateParsed:
		return "parsed"
	case StateTamperCheckFailed:
		return "tamper_check_failed"
	case StateVerified:
		return "verified"
	case StateResolving:
		return "resolving"
	case StateReady:
		return "ready"
	default:
		return "unknown"
	}
}

// ErrNoStorage means a manifest needs files fetched but no fetcher was configured.
var ErrNoStorage = errors.New("storage fetcher was not defined, please define one when using model manifests")

type DuplicateNameError struct {
	Name string
}

func (e *DuplicateNameError) Error() string {
	return "duplicate 'name' detected: " + e.Name + " was found to be used by more than one data file, please rename"
}

type MismatchError struct {
	Name      string
	Algorithm string
	Expected  string
	Computed  string
}

func (e *MismatchError) Error() string {
	return "Model File Mismatch for " + e.Name +
		"\nexpected hash: " + e.Expected +
		"\nreal hash: " + e.Computed
}

type NotFoundError struct {
	Name string
}

func (e *NotFoundError) Error() string {
	return "model name " + e.Name + " not found in manifest"
}

// Entry is a resolved manifest file.
type Entry struct {
	Name      string
	LocalPath string
	Digest    Digest
	// Verified is false when a declared checksum did not match and the file
	// was accepted because fail_on_tamper was off.
	Verified bool
}

const (
	KindRequired = "required"
	KindOptional = "optional"
)

// Observer is told about every resolution attempt.
type Observer func(kind, name string, err error)

type Option func(*ModelData)

func WithObserver(o Observer) Option {
	return func(md *ModelData) {
		md.observer = o
	}
}

func WithLogger(logger *zap.Logger) Option {
	return func(md *ModelData) {
		if logger != nil {
			md.logger = logger
		}
	}
}

// ModelData is the handle a load function uses to reach manifest files.
type ModelData struct {
	mu       sync.Mutex
	path     string
	manifest *Manifest
	fetcher  storage.Fetcher
	entries  map[string]Entry
	state    State
	observer Observer
	logger   *zap.Logger
}

// Empty returns a handle with no manifest behind it.
func Empty(opts ...Option) *ModelData {
	md := &ModelData{
		entries: make(map[string]Entry),
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(md)
	}
	return md
}

// Open reads and checks the manifest at path. A missing file is not an
// error: the returned handle is simply not Available. When the manifest is
// rejected the handle is still returned, unavailable, so callers can read
// its State.
func Open(path string, fetcher storage.Fetcher, opts ...Option) (*ModelData, error) {
	md := Empty(opts...)
	md.path = path
	md.fetcher = fetcher
	if strings.TrimSpace(path) == "" {
		return md, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return md, nil
		}
		return nil, errors.Wrapf(err, "read manifest %s", path)
	}
	md.state = StateParsed
	m, err := ParseStrict(raw, IsFrozen(path))
	if err != nil {
		if code, _ := RejectCodeOf(err); code == RejectTampered {
			md.state = StateTamperCheckFailed
		}
		return md, errors.Wrapf(err, "load manifest %s", path)
	}
	md.manifest = &m
	md.state = StateVerified
	return md, nil
}

func (md *ModelData) Available() bool {
	return md != nil && md.manifest != nil
}

func (md *ModelData) Path() string {
	return md.path
}

func (md *ModelData) Manifest() (Manifest, bool) {
	if !md.Available() {
		return Manifest{}, false
	}
	return *md.manifest, true
}

func (md *ModelData) State() State {
	md.mu.Lock()
	defer md.mu.Unlock()
	return md.state
}

// Initialize resolves every required file. A failure leaves the handle in
// StateResolving; entries already recorded stay usable.
func (md *ModelData) Initialize(ctx context.Context) error {
	if !md.Available() {
		return nil
	}
	md.mu.Lock()
	defer md.mu.Unlock()

	if md.fetcher == nil {
		return ErrNoStorage
	}
	md.state = StateResolving
	seen := make(map[string]struct{}, len(md.manifest.RequiredFiles))
	for _, spec := range md.manifest.RequiredFiles {
		if _, dup := seen[spec.Name]; dup {
			err := &DuplicateNameError{Name: spec.Name}
			md.observe(KindRequired, spec.Name, err)
			return err
		}
		seen[spec.Name] = struct{}{}
		entry, err := md.resolve(ctx, spec)
		md.observe(KindRequired, spec.Name, err)
		if err != nil {
			return err
		}
		md.entries[spec.Name] = entry
	}
	md.state = StateReady
	return nil
}

// GetModel returns the local path of name, resolving optional files on
// first use.
func (md *ModelData) GetModel(ctx context.Context, name string) (string, error) {
	md.mu.Lock()
	defer md.mu.Unlock()

	if entry, ok := md.entries[name]; ok {
		return entry.LocalPath, nil
	}
	if md.manifest == nil {
		return "", &NotFoundError{Name: name}
	}
	spec, ok := md.manifest.Lookup(name)
	if !ok {
		return "", &NotFoundError{Name: name}
	}
	if md.fetcher == nil {
		return "", ErrNoStorage
	}
	entry, err := md.resolve(ctx, spec)
	md.observe(KindOptional, name, err)
	if err != nil {
		return "", err
	}
	md.entries[name] = entry
	return entry.LocalPath, nil
}

// Entry returns the resolved entry for name without triggering resolution.
func (md *ModelData) Entry(name string) (Entry, bool) {
	md.mu.Lock()
	defer md.mu.Unlock()
	entry, ok := md.entries[name]
	return entry, ok
}

func (md *ModelData) resolve(ctx context.Context, spec FileSpec) (Entry, error) {
	localPath, err := md.fetcher.Fetch(ctx, spec.SourceURI)
	if err != nil {
		return Entry{}, errors.Wrapf(err, "fetch %s", spec.Name)
	}
	digest, err := HashFile(localPath)
	if err != nil {
		return Entry{}, errors.Wrapf(err, "hash %s", spec.Name)
	}

	entry := Entry{Name: spec.Name, LocalPath: localPath, Digest: digest, Verified: true}
	for _, check := range []struct {
		algorithm string
		expected  string
		computed  string
	}{
		{"md5", spec.MD5Checksum, digest.MD5},
		{"blake2b-256", spec.Blake2bChecksum, digest.Blake2b},
	} {
		if check.expected == "" || strings.EqualFold(check.expected, check.computed) {
			continue
		}
		if spec.FailOnTamper {
			return Entry{}, &MismatchError{
				Name:      spec.Name,
				Algorithm: check.algorithm,
				Expected:  check.expected,
				Computed:  check.computed,
			}
		}
		entry.Verified = false
		md.logger.Warn("model file checksum mismatch accepted",
			zap.String("component", "manifest"),
			zap.String("operation", "resolve"),
			zap.String("name", spec.Name),
			zap.String("algorithm", check.algorithm),
			zap.String("expected", check.expected),
			zap.String("computed", check.computed),
		)
	}
	return entry, nil
}

func (md *ModelData) observe(kind, name string, err error) {
	if md.observer != nil {
		md.observer(kind, name, err)
	}
}
