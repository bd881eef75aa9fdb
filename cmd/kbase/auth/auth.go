// Package authcmder provides the auth command for storing API credentials.
package authcmder

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/papercomputeco/kbase/pkg/cliui"
	"github.com/papercomputeco/kbase/pkg/credentials"
)

const authLongDesc string = `Store API credentials for embedding and answer providers.

Credentials are stored in credentials.toml in the .kbase/ directory. A
stored key takes precedence over the provider's environment variable.

Supported providers: openai, deepseek

Examples:
  kbase auth deepseek              Prompt for a DeepSeek API key
  kbase auth openai                Prompt for an OpenAI API key
  kbase auth --list                List stored credentials
  kbase auth --remove openai       Remove stored OpenAI credentials
  echo $KEY | kbase auth deepseek  Pipe API key from stdin`

const authShortDesc string = "Store API credentials for providers"

func NewAuthCmd() *cobra.Command {
	var listFlag bool
	var removeFlag string

	cmd := &cobra.Command{
		Use:   "auth [provider]",
		Short: authShortDesc,
		Long:  authLongDesc,
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			configDir, _ := cmd.Flags().GetString("config-dir")
			out := cmd.OutOrStdout()

			switch {
			case listFlag:
				return runList(out, configDir)
			case removeFlag != "":
				return runRemove(out, removeFlag, configDir)
			default:
				if len(args) == 0 {
					return fmt.Errorf("provider argument required\n\nSupported providers: %s",
						strings.Join(credentials.ProviderNames(), ", "))
				}
				return runAuth(out, cmd.InOrStdin(), args[0], configDir)
			}
		},
		ValidArgsFunction: func(_ *cobra.Command, args []string, _ string) ([]string, cobra.ShellCompDirective) {
			if len(args) == 0 {
				return credentials.ProviderNames(), cobra.ShellCompDirectiveNoFileComp
			}
			return nil, cobra.ShellCompDirectiveNoFileComp
		},
	}

	cmd.Flags().BoolVar(&listFlag, "list", false, "List stored credentials")
	cmd.Flags().StringVar(&removeFlag, "remove", "", "Remove stored credentials for a provider")

	return cmd
}

func runAuth(out io.Writer, in io.Reader, name, configDir string) error {
	provider, ok := credentials.Lookup(name)
	if !ok {
		return fmt.Errorf("unsupported provider: %q\n\nSupported providers: %s",
			name, strings.Join(credentials.ProviderNames(), ", "))
	}

	apiKey, err := readAPIKey(out, in, provider)
	if err != nil {
		return err
	}

	mgr, err := credentials.NewManager(configDir)
	if err != nil {
		return fmt.Errorf("loading credentials: %w", err)
	}

	if err := mgr.Set(provider.Name, apiKey); err != nil {
		return err
	}

	fmt.Fprintf(out, "\n  %s Stored %s credentials for %s %s\n",
		cliui.SuccessMark,
		cliui.NameStyle.Render(provider.Name),
		provider.Purpose,
		cliui.DimStyle.Render("(used instead of "+provider.EnvVar+")"),
	)

	if os.Getenv(provider.EnvVar) != "" {
		fmt.Fprintf(out, "  %s %s is also set; the stored key wins.\n",
			cliui.WarnStyle.Render("!"), provider.EnvVar)
	}

	fmt.Fprintln(out)
	return nil
}

func runList(out io.Writer, configDir string) error {
	mgr, err := credentials.NewManager(configDir)
	if err != nil {
		return fmt.Errorf("loading credentials: %w", err)
	}

	stored, err := mgr.Stored()
	if err != nil {
		return err
	}

	if len(stored) == 0 {
		fmt.Fprintf(out, "\n  %s No stored credentials.\n", cliui.DimStyle.Render("●"))
		fmt.Fprintf(out, "  Use 'kbase auth <provider>' to store credentials.\n")
		fmt.Fprintf(out, "  Supported providers: %s\n\n", strings.Join(credentials.ProviderNames(), ", "))
		return nil
	}

	fmt.Fprintf(out, "\n  %s\n\n", cliui.HeaderStyle.Render("Stored credentials"))
	for _, k := range stored {
		when := ""
		if !k.StoredAt.IsZero() {
			when = " · stored " + k.StoredAt.Local().Format("2006-01-02 15:04")
		}
		fmt.Fprintf(out, "  %s  %s  %s  %s\n",
			cliui.SuccessMark,
			cliui.NameStyle.Render(k.Provider.Name),
			cliui.ValueStyle.Render(k.Masked),
			cliui.DimStyle.Render(k.Provider.Purpose+when),
		)
	}
	fmt.Fprintln(out)

	return nil
}

func runRemove(out io.Writer, name, configDir string) error {
	mgr, err := credentials.NewManager(configDir)
	if err != nil {
		return fmt.Errorf("loading credentials: %w", err)
	}

	removed, err := mgr.Remove(name)
	if err != nil {
		return err
	}

	name = strings.ToLower(strings.TrimSpace(name))
	if !removed {
		fmt.Fprintf(out, "\n  %s No stored credentials for %s.\n\n", cliui.DimStyle.Render("●"), cliui.NameStyle.Render(name))
		return nil
	}

	fmt.Fprintf(out, "\n  %s Removed %s credentials.\n\n", cliui.SuccessMark, cliui.NameStyle.Render(name))
	return nil
}

// readAPIKey reads an API key from in. Piped input yields its first line;
// a terminal prompts with hidden input.
func readAPIKey(out io.Writer, in io.Reader, provider credentials.Provider) (string, error) {
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fmt.Fprintf(out, "Enter API key for %s (%s): ", provider.Name, provider.EnvVar)

		keyBytes, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(out)
		if err != nil {
			return "", fmt.Errorf("reading API key: %w", err)
		}
		return string(keyBytes), nil
	}

	scanner := bufio.NewScanner(in)
	if scanner.Scan() {
		return scanner.Text(), nil
	}
	if err := scanner.Err(); err != nil {
		return "", fmt.Errorf("reading stdin: %w", err)
	}
	return "", errors.New("no input received on stdin")
}
