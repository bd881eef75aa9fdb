// Package versioncmder provides the version command.
package versioncmder

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/kbase/pkg/utils"
)

func NewVersionCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "version",
		Short: "displays version",
		Long:  "displays the version, commit and toolchain of this kbase binary",
		RunE: func(cmd *cobra.Command, _ []string) error {
			b := utils.Build()
			out := cmd.OutOrStdout()

			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(b)
			}

			fmt.Fprintf(out, "Version: %s\nSha: %s\nBuilt at: %s\nGo: %s (%s)\n",
				b.Version, b.Sha, b.Buildtime, b.GoVersion, b.Platform)
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print build information as JSON")

	return cmd
}
