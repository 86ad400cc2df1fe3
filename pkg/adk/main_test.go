package adk

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"

	"algoadk/go-runtime/internal/config"
	"algoadk/go-runtime/pkg/models"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// baseOptions pins everything New would otherwise read from the host.
func baseOptions(t *testing.T, stdout *bytes.Buffer, input string) []Option {
	t.Helper()
	return []Option{
		WithConfig(config.Default()),
		WithPipePath(filepath.Join(t.TempDir(), "algoout")),
		WithManifestDir(t.TempDir()),
		WithStdin(strings.NewReader(input)),
		WithStdout(stdout),
		WithLogger(zap.NewNop()),
	}
}

func newLocalRuntime(t *testing.T, apply any, input string, opts ...Option) (*Runtime, *bytes.Buffer) {
	t.Helper()
	stdout := &bytes.Buffer{}
	rt, err := New(apply, append(baseOptions(t, stdout, input), opts...)...)
	require.NoError(t, err)
	require.Equal(t, ModeLocal, rt.Mode())
	return rt, stdout
}

// newServerRuntime stands a regular file in for the host FIFO.
func newServerRuntime(t *testing.T, apply any, input string, opts ...Option) (*Runtime, string, *bytes.Buffer) {
	t.Helper()
	pipe := filepath.Join(t.TempDir(), "algoout")
	require.NoError(t, os.WriteFile(pipe, nil, 0o600))
	stdout := &bytes.Buffer{}
	all := append(baseOptions(t, stdout, input), WithPipePath(pipe))
	rt, err := New(apply, append(all, opts...)...)
	require.NoError(t, err)
	require.Equal(t, ModeServer, rt.Mode())
	return rt, pipe, stdout
}

func readPipe(t *testing.T, path string) []string {
	t.Helper()
	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	trimmed := strings.TrimRight(string(raw), "\n")
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "\n")
}

func decodeError(t *testing.T, line string) models.ErrorBody {
	t.Helper()
	dec := json.NewDecoder(strings.NewReader(line))
	dec.DisallowUnknownFields()
	var resp models.ErrorResponse
	require.NoError(t, dec.Decode(&resp), "expected an error envelope, got %s", line)
	return resp.Error
}

func requestLine(t *testing.T, contentType string, data any) string {
	t.Helper()
	raw, err := json.Marshal(map[string]any{"content_type": contentType, "data": data})
	require.NoError(t, err)
	return string(raw)
}
