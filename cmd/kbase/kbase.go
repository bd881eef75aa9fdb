// Package kbasecmder
package kbasecmder

import (
	"github.com/spf13/cobra"

	askcmder "github.com/papercomputeco/kbase/cmd/kbase/ask"
	authcmder "github.com/papercomputeco/kbase/cmd/kbase/auth"
	collectionscmder "github.com/papercomputeco/kbase/cmd/kbase/collections"
	configcmder "github.com/papercomputeco/kbase/cmd/kbase/config"
	ingestcmder "github.com/papercomputeco/kbase/cmd/kbase/ingest"
	initcmder "github.com/papercomputeco/kbase/cmd/kbase/init"
	searchcmder "github.com/papercomputeco/kbase/cmd/kbase/search"
	servecmder "github.com/papercomputeco/kbase/cmd/kbase/serve"
	versioncmder "github.com/papercomputeco/kbase/cmd/version"
)

const kbaseLongDesc string = `kbase answers questions from your documents.

Documents are split into text units, embedded, and kept in named
collections. Queries retrieve the closest units from each collection and
assemble them into a labeled context for an answer model.

Get started:
  kbase init                          Create a local .kbase/ directory
  kbase ingest file1 manual.txt       Index a document
  kbase search "reset procedure"      Find relevant passages
  kbase ask "How do I reset it?"      Answer from the documents
  kbase serve                         Run the HTTP API and MCP server`

const kbaseShortDesc string = "kbase - document retrieval and answers"

func NewKbaseCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "kbase",
		Short:        kbaseShortDesc,
		Long:         kbaseLongDesc,
		SilenceUsage: true,
	}

	// Global flags
	cmd.PersistentFlags().BoolP("debug", "d", false, "Enable debug logging")
	cmd.PersistentFlags().String("config-dir", "", "Override path to .kbase/ config directory")

	// Add subcommands
	cmd.AddCommand(initcmder.NewInitCmd())
	cmd.AddCommand(configcmder.NewConfigCmd())
	cmd.AddCommand(authcmder.NewAuthCmd())
	cmd.AddCommand(ingestcmder.NewIngestCmd())
	cmd.AddCommand(searchcmder.NewSearchCmd())
	cmd.AddCommand(askcmder.NewAskCmd())
	cmd.AddCommand(collectionscmder.NewCollectionsCmd())
	cmd.AddCommand(servecmder.NewServeCmd())
	cmd.AddCommand(versioncmder.NewVersionCmd())

	return cmd
}
