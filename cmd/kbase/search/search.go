// Package searchcmder provides the search command for semantic search over
// the indexed collections.
package searchcmder

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/kbase/api"
	"github.com/papercomputeco/kbase/cmd/kbase/bootstrap"
	"github.com/papercomputeco/kbase/pkg/cliui"
	"github.com/papercomputeco/kbase/pkg/config"
	"github.com/papercomputeco/kbase/pkg/knowledge"
)

type searchCommander struct {
	query       string
	collections string
	jsonOut     bool
	flagKeys    []string
}

const searchLongDesc string = `Search the indexed collections.

The query is embedded once and matched against every addressed collection.
Results are grouped per collection, in order, and ranked by cosine
similarity. Units scoring below the similarity threshold are dropped.

Collections default to retrieval.collections followed by any other indexed
collection. Use --collections to address specific ones, in order.

Examples:
  kbase search "how do I reset the device"
  kbase search "pricing tiers" --collections file2 --top-k 5
  kbase search "warranty" --threshold 0.4 --json`

const searchShortDesc string = "Search the indexed collections"

func NewSearchCmd() *cobra.Command {
	cmder := &searchCommander{}

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: searchShortDesc,
		Long:  searchLongDesc,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cmder.query = args[0]
			return cmder.run(cmd)
		},
	}

	def := config.Flags[config.FlagCollectionsScope]
	cmd.Flags().StringVarP(&cmder.collections, def.Name, def.Shorthand, "", def.Description)
	cmd.Flags().BoolVar(&cmder.jsonOut, "json", false, "Print results as JSON")

	cmder.flagKeys = bootstrap.AddFlags(cmd,
		bootstrap.StorageFlags,
		bootstrap.EmbeddingFlags,
		bootstrap.RetrievalFlags,
	)

	return cmd
}

func (c *searchCommander) run(cmd *cobra.Command) error {
	env, err := bootstrap.Setup(cmd.Context(), cmd, c.flagKeys, bootstrap.GeneratorSkip)
	if err != nil {
		return err
	}
	defer env.Close()

	sections, err := env.Service.Search(cmd.Context(), c.query, config.SplitList(c.collections))
	if err != nil {
		env.Logger.Debug("search failed", "error", err)
		return fmt.Errorf("search: %s", knowledge.UserMessage(err))
	}

	resp := api.NewSearchResponse(c.query, sections)
	out := cmd.OutOrStdout()

	if c.jsonOut {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(resp)
	}

	printResponse(out, resp)
	return nil
}

func printResponse(out io.Writer, resp api.SearchResponse) {
	if resp.Count == 0 {
		fmt.Fprintln(out, "No results found.")
		return
	}

	fmt.Fprintf(out, "\n%s %s\n",
		cliui.HeaderStyle.Render("Search Results for:"),
		cliui.LabelStyle.Render(fmt.Sprintf("%q", resp.Query)),
	)

	for _, section := range resp.Sections {
		fmt.Fprintf(out, "\n  %s\n", cliui.LabelStyle.Render("["+section.Collection+"]"))
		if len(section.Results) == 0 {
			fmt.Fprintf(out, "    %s\n", cliui.DimStyle.Render("no matching units"))
			continue
		}
		for i, r := range section.Results {
			fmt.Fprintf(out, "    %s  %s  %s\n",
				cliui.RankStyle.Render(fmt.Sprintf("#%d", i+1)),
				cliui.ScoreStyle.Render(fmt.Sprintf("%.3f", r.Score)),
				cliui.DimStyle.Render(fmt.Sprintf("unit %d", r.Index)),
			)
			fmt.Fprintf(out, "       %s\n", cliui.PreviewStyle.Render(cliui.Preview(r.Text, 160)))
		}
	}
	fmt.Fprintln(out)
}
