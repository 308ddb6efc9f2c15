package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/cobra"

	"github.com/MimeLyc/react-agent/internal/llm"
	"github.com/MimeLyc/react-agent/internal/service"
)

func newAskCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "ask <question>",
		Short: "Answer one question and exit",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAsk(cmd, flags, strings.Join(args, " "))
		},
	}
}

func newREPLCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "repl",
		Short: "Ask questions interactively",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runREPLCmd(cmd, flags)
		},
	}
}

func newChatCmd(flags *rootFlags) *cobra.Command {
	var (
		codeOnly bool
		system   string
	)
	cmd := &cobra.Command{
		Use:   "chat <prompt>",
		Short: "Send a prompt straight to the model, without tools",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := flags.load()
			if err != nil {
				return err
			}
			client, err := llm.NewClient(newLLMConfig(cfg.LLM))
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			reply, err := client.SimpleChat(ctx, strings.Join(args, " "), system)
			if err != nil {
				return err
			}
			if codeOnly {
				reply = llm.ExtractCode(reply)
			}
			fmt.Fprintln(cmd.OutOrStdout(), reply)
			return nil
		},
	}
	cmd.Flags().BoolVar(&codeOnly, "code", false, "Print only the first fenced code block of the reply")
	cmd.Flags().StringVar(&system, "system", "", "System prompt")
	return cmd
}

func runAsk(cmd *cobra.Command, flags *rootFlags, question string) error {
	cfg, err := flags.load()
	if err != nil {
		return err
	}
	c, err := newComponents(cfg, verboseWriter(cmd, flags))
	if err != nil {
		return err
	}
	defer c.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	result, err := c.svc.Ask(ctx, question, 0)
	if err != nil {
		return err
	}
	printOutcome(cmd.OutOrStdout(), result.Outcome)
	if result.Outcome.IsFailed() {
		return fmt.Errorf("run failed")
	}
	return nil
}

func runREPLCmd(cmd *cobra.Command, flags *rootFlags) error {
	cfg, err := flags.load()
	if err != nil {
		return err
	}
	c, err := newComponents(cfg, verboseWriter(cmd, flags))
	if err != nil {
		return err
	}
	defer c.Close()

	return runREPL(cmd.Context(), cmd.InOrStdin(), cmd.OutOrStdout(), c.svc)
}

// runREPL reads one question per line and answers it until EOF or "exit".
// Ctrl-C cancels the question in progress, not the session.
func runREPL(ctx context.Context, in io.Reader, out io.Writer, asker service.Asker) error {
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)

	for {
		fmt.Fprint(out, "Question: ")
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}
		question := strings.TrimSpace(scanner.Text())
		switch question {
		case "":
			continue
		case "exit", "quit":
			return nil
		}

		runCtx, stop := signal.NotifyContext(ctx, os.Interrupt)
		result, err := asker.Ask(runCtx, question, 0)
		stop()
		if err != nil {
			fmt.Fprintln(out, errorStyle.Render(err.Error()))
			continue
		}
		printOutcome(out, result.Outcome)

		if ctx.Err() != nil {
			return nil
		}
	}
}

func verboseWriter(cmd *cobra.Command, flags *rootFlags) io.Writer {
	if !flags.verbose {
		return nil
	}
	return cmd.ErrOrStderr()
}
