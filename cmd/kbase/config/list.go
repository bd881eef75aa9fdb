package configcmder

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/kbase/pkg/cliui"
	"github.com/papercomputeco/kbase/pkg/config"
)

const listLongDesc string = `List configuration values, grouped by config.toml section.

Shows every key with its effective value: the value stored in
.kbase/config.toml, or the built-in default when the file leaves it unset.

Examples:
  kbase config list
  kbase config list --section retrieval`

const listShortDesc string = "List configuration values"

func newListCmd() *cobra.Command {
	var section string

	cmd := &cobra.Command{
		Use:   "list",
		Short: listShortDesc,
		Long:  listLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			configDir, _ := cmd.Flags().GetString("config-dir")
			return runList(cmd.OutOrStdout(), configDir, section)
		},
	}

	cmd.Flags().StringVarP(&section, "section", "s", "", "Only list keys in this section (storage, embedding, chunking, retrieval, generation, api, events)")

	return cmd
}

func runList(out io.Writer, configDir, section string) error {
	cfger, err := config.NewConfiger(configDir)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	var keys []string
	width := 0
	for _, k := range config.ValidConfigKeys() {
		if section != "" && sectionOf(k) != section {
			continue
		}
		keys = append(keys, k)
		width = max(width, len(k))
	}
	if len(keys) == 0 {
		return fmt.Errorf("unknown config section: %q", section)
	}

	if target := cfger.GetTarget(); target != "" {
		fmt.Fprintf(out, "Using config file: %s\n", target)
	} else {
		fmt.Fprintln(out, "No config file found. Using default config.")
	}

	current := ""
	for _, key := range keys {
		value, err := cfger.GetConfigValue(key)
		if err != nil {
			return err
		}

		if s := sectionOf(key); s != current {
			current = s
			fmt.Fprintf(out, "\n%s\n", cliui.HeaderStyle.Render("["+s+"]"))
		}

		shown := cliui.ValueStyle.Render(fmt.Sprintf("%q", value))
		if value == "" {
			shown = cliui.DimStyle.Render("<not set>")
		}
		fmt.Fprintf(out, "  %-*s = %s\n", width, key, shown)
	}

	return nil
}

func sectionOf(key string) string {
	s, _, _ := strings.Cut(key, ".")
	return s
}
