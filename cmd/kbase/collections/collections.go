// Package collectionscmder provides the collections command for listing and
// deleting collections.
package collectionscmder

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/kbase/cmd/kbase/bootstrap"
	"github.com/papercomputeco/kbase/pkg/cliui"
	"github.com/papercomputeco/kbase/pkg/knowledge"
)

const collectionsLongDesc string = `List and delete collections.

Without a subcommand, lists every configured or persisted collection with
its number of text units and embedding dimension. Empty slots are listed
too.

Examples:
  kbase collections
  kbase collections --json
  kbase collections delete file2`

const collectionsShortDesc string = "List and delete collections"

func NewCollectionsCmd() *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:     "collections",
		Aliases: []string{"ls"},
		Short:   collectionsShortDesc,
		Long:    collectionsLongDesc,
		Args:    cobra.NoArgs,
	}
	flagKeys := bootstrap.AddFlags(cmd, bootstrap.StorageFlags)
	cmd.RunE = func(cmd *cobra.Command, _ []string) error {
		return runList(cmd, flagKeys, jsonOut)
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Print collections as JSON")

	cmd.AddCommand(newDeleteCmd())

	return cmd
}

func runList(cmd *cobra.Command, flagKeys []string, jsonOut bool) error {
	env, err := bootstrap.Setup(cmd.Context(), cmd, flagKeys, bootstrap.GeneratorSkip)
	if err != nil {
		return err
	}
	defer env.Close()

	infos := env.Service.Collections()
	out := cmd.OutOrStdout()

	if jsonOut {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(infos)
	}

	printCollections(out, infos)
	return nil
}

func printCollections(out io.Writer, infos []knowledge.CollectionInfo) {
	if len(infos) == 0 {
		fmt.Fprintln(out, "No collections.")
		return
	}

	maxLen := 0
	for _, info := range infos {
		maxLen = max(maxLen, len(info.ID))
	}

	fmt.Fprintf(out, "\n  %s\n\n", cliui.HeaderStyle.Render("Collections"))
	for _, info := range infos {
		name := fmt.Sprintf("%-*s", maxLen, info.ID)
		if info.Units == 0 {
			fmt.Fprintf(out, "  %s  %s\n", cliui.NameStyle.Render(name), cliui.DimStyle.Render("empty"))
			continue
		}
		fmt.Fprintf(out, "  %s  %s\n",
			cliui.NameStyle.Render(name),
			cliui.DimStyle.Render(fmt.Sprintf("%d units, dimension %d", info.Units, info.Dimension)),
		)
	}
	fmt.Fprintln(out)
}

func newDeleteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete <collection>",
		Short: "Delete a collection and its persisted index",
		Args:  cobra.ExactArgs(1),
	}
	flagKeys := bootstrap.AddFlags(cmd, bootstrap.StorageFlags, bootstrap.EventsFlags)
	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		env, err := bootstrap.Setup(cmd.Context(), cmd, flagKeys, bootstrap.GeneratorSkip)
		if err != nil {
			return err
		}
		defer env.Close()

		if err := env.Service.Delete(cmd.Context(), args[0]); err != nil {
			env.Logger.Debug("delete failed", "collection", args[0], "error", err)
			return fmt.Errorf("delete %s: %s", args[0], knowledge.UserMessage(err))
		}

		fmt.Fprintf(cmd.OutOrStdout(), "\n  %s Deleted %s\n\n", cliui.SuccessMark, cliui.NameStyle.Render(args[0]))
		return nil
	}

	return cmd
}
