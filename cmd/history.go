package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/MimeLyc/react-agent/internal/config"
	"github.com/MimeLyc/react-agent/internal/persistence"
)

func newHistoryCmd(flags *rootFlags) *cobra.Command {
	var (
		limit      int
		jsonOutput bool
		prune      time.Duration
	)
	cmd := &cobra.Command{
		Use:   "history [run-id]",
		Short: "List recorded runs, or show one run",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := flags.load(config.WithoutLLMKey())
			if err != nil {
				return err
			}
			if !cfg.HistoryEnabled() {
				return fmt.Errorf("run history is disabled, set DATA_DIR to enable it")
			}

			store, err := persistence.NewSQLiteStore(cfg.DBPath())
			if err != nil {
				return err
			}
			defer store.Close()

			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			if prune > 0 {
				n, err := store.DeleteRunsBefore(ctx, time.Now().Add(-prune))
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "Deleted %d runs older than %s\n", n, prune)
				return nil
			}

			if len(args) == 1 {
				run, err := store.GetRun(ctx, args[0])
				if errors.Is(err, persistence.ErrNotFound) {
					return fmt.Errorf("run %s not found", args[0])
				}
				if err != nil {
					return err
				}
				if jsonOutput {
					return writeJSON(out, run)
				}
				printRun(out, run)
				return nil
			}

			runs, err := store.ListRuns(ctx, limit)
			if err != nil {
				return err
			}
			if jsonOutput {
				return writeJSON(out, runs)
			}
			printRuns(out, runs)
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Number of runs to list")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	cmd.Flags().DurationVar(&prune, "prune", 0, "Delete runs older than this age, e.g. 720h")
	return cmd
}

func newConfigCmd(flags *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect or create the configuration file",
	}

	var force bool
	initCmd := &cobra.Command{
		Use:   "init [path]",
		Short: "Write a config file with the default settings",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := config.DefaultConfigFile
			if len(args) == 1 {
				path = args[0]
			}
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists, use --force to overwrite", path)
			} else if err != nil && !errors.Is(err, fs.ErrNotExist) {
				return err
			}
			if err := config.WriteFile(path, config.Defaults()); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
			return nil
		},
	}
	initCmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing file")

	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration with secrets masked",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := flags.load(config.WithoutLLMKey())
			if err != nil {
				return err
			}
			enc := yaml.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent(2)
			defer enc.Close()
			return enc.Encode(cfg.Redacted())
		},
	}

	cmd.AddCommand(initCmd, showCmd)
	return cmd
}

func printRun(w io.Writer, run persistence.RunRecord) {
	fmt.Fprintf(w, "Run:        %s\n", run.ID)
	fmt.Fprintf(w, "Asked:      %s\n", run.CreatedAt.Local().Format(time.RFC3339))
	fmt.Fprintf(w, "Question:   %s\n", run.Question)
	fmt.Fprintf(w, "Language:   %s\n", run.Language)
	fmt.Fprintf(w, "Outcome:    %s after %d iterations (%s)\n", run.Outcome, run.Iterations, run.Duration.Round(time.Millisecond))
	for i, call := range run.ToolCalls {
		status := "ok"
		if call.Error != "" {
			status = call.Error
		}
		fmt.Fprintf(w, "Tool %d:     %s(%s) %s\n", i+1, call.Tool, truncate(oneLine(call.Input), 60), status)
	}
	if run.Error != "" {
		fmt.Fprintln(w, errorStyle.Render("Error: "+run.Error))
	}
	if run.Answer != "" {
		fmt.Fprintln(w, bannerStyle.Render(responseBanner))
		fmt.Fprintln(w, answerStyle.Render(run.Answer))
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
