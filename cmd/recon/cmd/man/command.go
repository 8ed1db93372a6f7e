// Package man generates roff man pages for the CLI.
package man

import (
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/cobra/doc"

	"github.com/agentstation/recon/pkg/errors"
)

func header() *doc.GenManHeader {
	return &doc.GenManHeader{Title: "RECON", Section: "1", Source: "recon", Manual: "recon Manual"}
}

// NewCommand returns the hidden man command. Without --dir it prints the
// page for the root command; with --dir it writes one page per command.
func NewCommand() *cobra.Command {
	var dir string
	cmd := &cobra.Command{
		Use:    "man",
		Short:  "Generate man pages",
		Hidden: true,
		Args:   cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			root := cmd.Root()
			root.DisableAutoGenTag = true
			if dir == "" {
				return doc.GenMan(root, header(), cmd.OutOrStdout())
			}
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return errors.WrapIO("create", dir, err)
			}
			return errors.WrapIO("write", dir, doc.GenManTree(root, header(), dir))
		},
	}
	cmd.Flags().StringVar(&dir, "dir", "", "write one page per command into this directory")
	return cmd
}
