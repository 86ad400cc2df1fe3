package main

import (
	"github.com/spf13/cobra"

	"algoadk/go-runtime/pkg/manifest"
)

type fileHash struct {
	Path    string `json:"path"`
	MD5     string `json:"md5"`
	Blake2b string `json:"blake2b_256"`
}

func newHashCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "hash FILE...",
		Short: "Print md5 and blake2b-256 checksums for manifest entries",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runHash,
	}
}

func runHash(cmd *cobra.Command, args []string) error {
	out := make([]fileHash, 0, len(args))
	for _, path := range args {
		digest, err := manifest.HashFile(path)
		if err != nil {
			return withExitCode(exitInvalidInput, err)
		}
		out = append(out, fileHash{Path: path, MD5: digest.MD5, Blake2b: digest.Blake2b})
	}
	return printJSON(cmd.OutOrStdout(), out)
}
