// Package initcmder provides the init command for initializing a local .kbase
// directory in the current working directory.
package initcmder

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/kbase/pkg/config"
	"github.com/papercomputeco/kbase/pkg/dotdir"
)

const initLongDesc string = `Initialize a new .kbase/ directory in the current working directory.

Creates a local .kbase/ directory that takes precedence over the default
~/.kbase/ directory for configuration, credentials, the collection index
and saved answers. A config.toml with default values is written unless one
already exists.

Use --preset to start from a provider preset:
  ollama     Local embeddings and answers through Ollama
  openai     OpenAI embeddings and answers
  deepseek   Local embeddings, DeepSeek answers (the default)
  offline    Hashing embeddings, no answer generation

Examples:
  kbase init
  kbase init --preset offline`

const initShortDesc string = "Initialize a local .kbase/ directory"

func NewInitCmd() *cobra.Command {
	var preset string

	cmd := &cobra.Command{
		Use:   "init",
		Short: initShortDesc,
		Long:  initLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runInit(cmd, preset)
		},
		ValidArgsFunction: cobra.NoFileCompletions,
	}

	cmd.Flags().StringVar(&preset, "preset", "", "Provider preset ("+strings.Join(config.ValidPresetNames(), ", ")+")")
	_ = cmd.RegisterFlagCompletionFunc("preset", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return config.ValidPresetNames(), cobra.ShellCompDirectiveNoFileComp
	})

	return cmd
}

func runInit(cmd *cobra.Command, preset string) error {
	cfg := config.NewDefaultConfig()
	if preset != "" {
		var err error
		cfg, err = config.PresetConfig(preset)
		if err != nil {
			return err
		}
	}

	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("getting current directory: %w", err)
	}

	dir := filepath.Join(cwd, dotdir.DirName)
	out := cmd.OutOrStdout()

	info, err := os.Stat(dir)
	alreadyExists := err == nil && info.IsDir()
	if !alreadyExists {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating .kbase directory: %w", err)
		}
	}

	cfgPath := filepath.Join(dir, "config.toml")
	_, err = os.Stat(cfgPath)
	switch {
	case err == nil && preset == "":
		fmt.Fprintf(out, "Already initialized: %s\n", dir)
		return nil
	case err != nil && !errors.Is(err, os.ErrNotExist):
		return fmt.Errorf("checking config: %w", err)
	}

	cfger, err := config.NewConfiger(dir)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if err := cfger.SaveConfig(cfg); err != nil {
		return err
	}

	if alreadyExists {
		fmt.Fprintf(out, "Wrote %s preset to %s\n", preset, cfgPath)
		return nil
	}

	fmt.Fprintf(out, "Initialized .kbase directory: %s\n", dir)
	return nil
}
