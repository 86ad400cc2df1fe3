package main

import (
	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	"algoadk/go-runtime/internal/platform/logging"
	"algoadk/go-runtime/pkg/manifest"
	"algoadk/go-runtime/pkg/storage"
)

type verifyReport struct {
	Path     string          `json:"path"`
	Frozen   bool            `json:"frozen"`
	State    string          `json:"state"`
	Required int             `json:"required"`
	Optional int             `json:"optional"`
	Resolved []resolvedEntry `json:"resolved,omitempty"`
}

type resolvedEntry struct {
	Name      string `json:"name"`
	LocalPath string `json:"local_path"`
	MD5       string `json:"md5"`
	Verified  bool   `json:"verified"`
}

func newVerifyCmd() *cobra.Command {
	var (
		dir   string
		fetch bool
	)
	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Check the manifest in --dir and optionally resolve every file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := loadConfig(cmd)
			opts := []manifest.Option{}
			if logger, err := logging.New(cfg.Logging); err == nil {
				opts = append(opts, manifest.WithLogger(logger))
			}
			return runVerify(cmd, dir, fetch, storage.NewDefaultRouter(cfg.Storage), opts...)
		},
	}
	cmd.Flags().StringVar(&dir, "dir", ".", "directory holding the manifest")
	cmd.Flags().BoolVar(&fetch, "fetch", false, "fetch and hash every required and optional file")
	return cmd
}

func runVerify(cmd *cobra.Command, dir string, fetch bool, fetcher storage.Fetcher, opts ...manifest.Option) error {
	path, err := manifest.Locate(dir)
	if err != nil {
		return withExitCode(exitInvalidInput, err)
	}
	if path == "" {
		return withExitCode(exitInvalidInput, errors.Newf("no %s or %s in %s", manifest.FrozenFileName, manifest.PlainFileName, dir))
	}
	md, err := manifest.Open(path, fetcher, opts...)
	if err != nil {
		if code, _ := manifest.RejectCodeOf(err); code == manifest.RejectTampered {
			return withExitCode(exitTampered, err)
		}
		return withExitCode(exitInvalidInput, err)
	}
	m, _ := md.Manifest()
	report := verifyReport{
		Path:     path,
		Frozen:   manifest.IsFrozen(path),
		Required: len(m.RequiredFiles),
		Optional: len(m.OptionalFiles),
	}

	if fetch {
		if err := md.Initialize(cmd.Context()); err != nil {
			return withExitCode(exitResolutionFailure, err)
		}
		for _, spec := range m.OptionalFiles {
			if _, err := md.GetModel(cmd.Context(), spec.Name); err != nil {
				return withExitCode(exitResolutionFailure, err)
			}
		}
		for _, group := range [][]manifest.FileSpec{m.RequiredFiles, m.OptionalFiles} {
			for _, spec := range group {
				entry, ok := md.Entry(spec.Name)
				if !ok {
					continue
				}
				report.Resolved = append(report.Resolved, resolvedEntry{
					Name:      entry.Name,
					LocalPath: entry.LocalPath,
					MD5:       entry.Digest.MD5,
					Verified:  entry.Verified,
				})
			}
		}
	}
	report.State = md.State().String()
	return printJSON(cmd.OutOrStdout(), report)
}
