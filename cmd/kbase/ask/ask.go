// Package askcmder provides the ask command, which answers questions from
// the indexed collections.
package askcmder

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/papercomputeco/kbase/cmd/kbase/bootstrap"
	"github.com/papercomputeco/kbase/pkg/cliui"
	"github.com/papercomputeco/kbase/pkg/config"
	"github.com/papercomputeco/kbase/pkg/dotdir"
	"github.com/papercomputeco/kbase/pkg/knowledge"
	"github.com/papercomputeco/kbase/pkg/retriever"
)

type askCommander struct {
	batchFile   string
	outputDir   string
	save        bool
	contextOnly bool
	jsonOut     bool
	collections string
	flagKeys    []string

	out    io.Writer
	errOut io.Writer
	pretty bool
}

const askLongDesc string = `Answer questions from the indexed collections.

The question is matched against every addressed collection, the best units
are assembled into a labeled context, and the configured generation
provider answers from that context alone.

Use --batch to answer one question per line from a file; blank lines and
lines starting with # are skipped. Use --output-dir (or --save for
.kbase/answers) to keep a JSON record of every answer. Use --context-only
to print the assembled context without calling the generation provider.

Examples:
  kbase ask "What does the warranty cover?"
  kbase ask "Compare the two pricing models" --collections file1,file2
  kbase ask --batch questions.txt --output-dir ./answers
  kbase ask "reset procedure" --context-only`

const askShortDesc string = "Answer questions from the indexed collections"

func NewAskCmd() *cobra.Command {
	cmder := &askCommander{}

	cmd := &cobra.Command{
		Use:   "ask [question]",
		Short: askShortDesc,
		Long:  askLongDesc,
		Args: func(cmd *cobra.Command, args []string) error {
			batch, _ := cmd.Flags().GetString("batch")
			switch {
			case batch != "" && len(args) > 0:
				return errors.New("pass either a question or --batch, not both")
			case batch == "" && len(args) != 1:
				return errors.New("a question is required")
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			cmder.out = cmd.OutOrStdout()
			cmder.errOut = cmd.ErrOrStderr()
			cmder.pretty = isTerminal(cmder.out)

			questions := args
			if cmder.batchFile != "" {
				var err error
				questions, err = readQuestions(cmder.batchFile)
				if err != nil {
					return err
				}
			}
			return cmder.run(cmd, questions)
		},
	}

	def := config.Flags[config.FlagCollectionsScope]
	cmd.Flags().StringVarP(&cmder.collections, def.Name, def.Shorthand, "", def.Description)
	cmd.Flags().StringVar(&cmder.batchFile, "batch", "", "File with one question per line")
	cmd.Flags().StringVarP(&cmder.outputDir, "output-dir", "o", "", "Directory to save answers to as JSON")
	cmd.Flags().BoolVar(&cmder.save, "save", false, "Save answers to the .kbase/answers directory")
	cmd.Flags().BoolVar(&cmder.contextOnly, "context-only", false, "Print the assembled context instead of an answer")
	cmd.Flags().BoolVar(&cmder.jsonOut, "json", false, "Print answers as JSON")

	cmder.flagKeys = bootstrap.AddFlags(cmd,
		bootstrap.StorageFlags,
		bootstrap.EmbeddingFlags,
		bootstrap.RetrievalFlags,
		bootstrap.GenerationFlags,
	)

	return cmd
}

func (c *askCommander) run(cmd *cobra.Command, questions []string) error {
	if len(questions) == 0 {
		return errors.New("no questions to answer")
	}

	mode := bootstrap.GeneratorRequired
	if c.contextOnly {
		mode = bootstrap.GeneratorSkip
	}

	ctx := cmd.Context()
	env, err := bootstrap.Setup(ctx, cmd, c.flagKeys, mode)
	if err != nil {
		if errors.Is(err, knowledge.ErrNoGenerator) {
			return errors.New("answer generation is not configured: set generation.provider or use --context-only")
		}
		return err
	}
	defer env.Close()

	saveDir := c.outputDir
	if saveDir == "" && c.save {
		saveDir, err = dotdir.NewManager().AnswersDir(env.ConfigDir)
		if err != nil {
			return err
		}
	}

	scope := config.SplitList(c.collections)
	failed := 0
	for i, q := range questions {
		if len(questions) > 1 && !c.jsonOut {
			fmt.Fprintf(c.out, "%s %s\n",
				cliui.RankStyle.Render(fmt.Sprintf("[%d/%d]", i+1, len(questions))),
				cliui.HeaderStyle.Render(q),
			)
		}

		if err := c.answerOne(ctx, env, q, scope, saveDir); err != nil {
			env.Logger.Debug("question failed", "query", q, "error", err)
			if len(questions) == 1 {
				return fmt.Errorf("ask: %s", knowledge.UserMessage(err))
			}
			failed++
			fmt.Fprintf(c.errOut, "  %s %s\n", cliui.FailMark, knowledge.UserMessage(err))
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d questions failed", failed, len(questions))
	}
	return nil
}

func (c *askCommander) answerOne(ctx context.Context, env *bootstrap.Env, q string, scope []string, saveDir string) error {
	if c.contextOnly {
		result, err := env.Service.Context(ctx, q, scope)
		if err != nil {
			return err
		}
		if c.jsonOut {
			return writeJSON(c.out, result)
		}
		fmt.Fprintln(c.out, result.Context)
		return nil
	}

	var a *knowledge.Answer
	generate := func() error {
		var err error
		a, err = env.Service.Ask(ctx, q, scope)
		return err
	}

	var err error
	if c.pretty && !c.jsonOut {
		err = cliui.Step(c.errOut, "Answering", generate)
	} else {
		err = generate()
	}
	if err != nil {
		return err
	}

	if saveDir != "" {
		path, err := knowledge.SaveAnswer(saveDir, a)
		if err != nil {
			return err
		}
		env.Logger.Debug("saved answer", "path", path)
		if !c.jsonOut {
			defer fmt.Fprintf(c.out, "%s\n\n", cliui.DimStyle.Render("saved to "+path))
		}
	}

	if c.jsonOut {
		return writeJSON(c.out, a)
	}

	c.printAnswer(a)
	return nil
}

func (c *askCommander) printAnswer(a *knowledge.Answer) {
	body := a.Answer
	if c.pretty {
		if rendered, err := cliui.RenderMarkdown(body); err == nil {
			body = rendered
		}
	}
	fmt.Fprintln(c.out, strings.TrimRight(body, "\n"))

	if len(a.Sources) == 0 {
		fmt.Fprintln(c.out)
		return
	}

	fmt.Fprintf(c.out, "\n%s %s\n",
		cliui.DimStyle.Render("Sources:"),
		cliui.LabelStyle.Render(strings.Join(sourceLabels(a.Sources), ", ")),
	)
	if a.Truncated {
		fmt.Fprintf(c.out, "%s\n", cliui.WarnStyle.Render("context was truncated"))
	}
	fmt.Fprintln(c.out)
}

// sourceLabels returns "collection#index" for each source, in order.
func sourceLabels(sources []retriever.Result) []string {
	labels := make([]string, 0, len(sources))
	for _, s := range sources {
		labels = append(labels, fmt.Sprintf("%s#%d", s.Collection, s.Index))
	}
	return labels
}

// readQuestions reads one question per line, skipping blanks and # comments.
func readQuestions(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening batch file: %w", err)
	}
	defer f.Close()

	var questions []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		questions = append(questions, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading batch file: %w", err)
	}
	return questions, nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
