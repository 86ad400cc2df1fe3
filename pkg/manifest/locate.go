package manifest

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"
)

// Locate returns the manifest path to use inside dir, preferring the frozen
// file. It returns "" when neither file exists.
func Locate(dir string) (string, error) {
	dir = strings.TrimSpace(dir)
	if dir == "" {
		dir = "."
	}
	for _, name := range []string{FrozenFileName, PlainFileName} {
		candidate := filepath.Join(dir, name)
		info, err := os.Stat(candidate)
		if err == nil {
			if info.IsDir() {
				return "", errors.Newf("manifest path %s is a directory", candidate)
			}
			return candidate, nil
		}
		if !errors.Is(err, os.ErrNotExist) {
			return "", errors.Wrapf(err, "stat %s", candidate)
		}
	}
	return "", nil
}

// IsFrozen reports whether path names a frozen manifest.
func IsFrozen(path string) bool {
	return strings.HasSuffix(path, ".freeze")
}
