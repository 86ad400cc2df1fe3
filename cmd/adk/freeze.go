package main

import (
	"os"
	"path/filepath"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	"algoadk/go-runtime/internal/config"
	"algoadk/go-runtime/pkg/manifest"
	"algoadk/go-runtime/pkg/storage"
)

func newFreezeCmd() *cobra.Command {
	var (
		dir     string
		resolve bool
	)
	cmd := &cobra.Command{
		Use:   "freeze",
		Short: "Write model_manifest.json.freeze with an embedded lock checksum",
		Long: `Reads model_manifest.json from --dir, optionally fills in missing md5
checksums by fetching each file, and writes the frozen manifest next to it.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := loadConfig(cmd)
			return runFreeze(cmd, dir, resolve, storage.NewDefaultRouter(cfg.Storage))
		},
	}
	cmd.Flags().StringVar(&dir, "dir", ".", "directory holding model_manifest.json")
	cmd.Flags().BoolVar(&resolve, "resolve", false, "fetch files to fill missing md5 checksums")
	return cmd
}

func runFreeze(cmd *cobra.Command, dir string, resolve bool, fetcher storage.Fetcher) error {
	plainPath := filepath.Join(dir, manifest.PlainFileName)
	raw, err := os.ReadFile(plainPath)
	if err != nil {
		return withExitCode(exitInvalidInput, errors.Wrapf(err, "read %s", plainPath))
	}
	m, err := manifest.ParseStrict(raw, false)
	if err != nil {
		if code, _ := manifest.RejectCodeOf(err); code == manifest.RejectTampered {
			return withExitCode(exitTampered, err)
		}
		return withExitCode(exitInvalidInput, err)
	}

	if resolve {
		for _, group := range [][]manifest.FileSpec{m.RequiredFiles, m.OptionalFiles} {
			for i := range group {
				if group[i].MD5Checksum != "" {
					continue
				}
				local, err := fetcher.Fetch(cmd.Context(), group[i].SourceURI)
				if err != nil {
					return withExitCode(exitResolutionFailure, errors.Wrapf(err, "fetch %s", group[i].Name))
				}
				digest, err := manifest.HashFile(local)
				if err != nil {
					return withExitCode(exitResolutionFailure, err)
				}
				group[i].MD5Checksum = digest.MD5
			}
		}
	}

	frozen, err := manifest.Freeze(m)
	if err != nil {
		return withExitCode(exitInvalidInput, err)
	}
	frozenPath := filepath.Join(dir, manifest.FrozenFileName)
	if err := writeFileAtomic(frozenPath, frozen); err != nil {
		return err
	}
	parsed, err := manifest.ParseStrict(frozen, true)
	if err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), map[string]any{
		"path":          frozenPath,
		"lock_checksum": parsed.LockChecksum,
		"required":      len(parsed.RequiredFiles),
		"optional":      len(parsed.OptionalFiles),
	})
}

func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".freeze-*")
	if err != nil {
		return errors.Wrap(err, "create temp file")
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return errors.Wrap(err, "write temp file")
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	return os.Rename(tmpName, path)
}

func loadConfig(cmd *cobra.Command) config.Config {
	path, _ := cmd.Flags().GetString("config")
	return config.Load(path)
}
