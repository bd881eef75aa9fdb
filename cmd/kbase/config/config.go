// Package configcmder provides the config command for managing persistent
// kbase configuration stored in the .kbase/ directory.
package configcmder

import (
	"github.com/spf13/cobra"
)

const configLongDesc string = `Manage persistent kbase configuration.

Configuration is stored as config.toml in the .kbase/ directory and provides
default values for command flags. KBASE_* environment variables override the
file, and CLI flags always take precedence over both.

Keys use dotted notation matching the TOML section structure:
  storage.provider, storage.target, storage.timeout,
  embedding.provider, embedding.target, embedding.model,
  embedding.dimensions, embedding.timeout,
  chunking.max_chunk_chars,
  retrieval.top_k, retrieval.similarity_threshold,
  retrieval.max_context_chars, retrieval.collections,
  generation.provider, generation.target, generation.model,
  generation.temperature, generation.max_tokens, generation.timeout,
  api.listen,
  events.provider, events.brokers, events.topic

Per-collection retrieval overrides live in [retrieval.overrides.<id>]
tables and are edited in config.toml directly.

Use subcommands to get, set, or list configuration values:
  kbase config set <key> <value>    Set a configuration value
  kbase config get <key>            Get a configuration value
  kbase config list                 List all configuration values

Examples:
  kbase config set storage.provider sqlite
  kbase config set retrieval.top_k 5
  kbase config get embedding.model
  kbase config list`

const configShortDesc string = "Manage persistent kbase configuration"

func NewConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: configShortDesc,
		Long:  configLongDesc,
	}

	cmd.AddCommand(newSetCmd())
	cmd.AddCommand(newGetCmd())
	cmd.AddCommand(newListCmd())

	return cmd
}
