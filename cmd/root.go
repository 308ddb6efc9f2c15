package main

import (
	"errors"
	"io/fs"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/MimeLyc/react-agent/internal/config"
	"github.com/MimeLyc/react-agent/pkg/log"
)

// rootFlags are shared by every subcommand.
type rootFlags struct {
	configPath string
	verbose    bool
	maxLoops   int
}

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}

	root := &cobra.Command{
		Use:   "react-agent [question]",
		Short: "Answer questions with a tool-using ReAct agent",
		Long: "react-agent answers questions by letting a language model alternate between\n" +
			"reasoning and calling tools until it reaches a final answer.\n\n" +
			"With a question it answers once; without one it starts an interactive prompt.",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) > 0 {
				return runAsk(cmd, flags, strings.Join(args, " "))
			}
			return runREPLCmd(cmd, flags)
		},
	}

	root.PersistentFlags().StringVar(&flags.configPath, "config", "", "Path to a YAML config file (default "+config.DefaultConfigFile+" if present)")
	root.PersistentFlags().BoolVarP(&flags.verbose, "verbose", "v", false, "Print the prompt and every reasoning cycle")
	root.PersistentFlags().IntVar(&flags.maxLoops, "max-loops", 0, "Tool cycles before giving up (default from config)")

	root.AddCommand(
		newAskCmd(flags),
		newREPLCmd(flags),
		newChatCmd(flags),
		newServeCmd(flags),
		newScheduleCmd(flags),
		newHistoryCmd(flags),
		newConfigCmd(flags),
	)
	return root
}

// load reads the configuration for a command and applies the log level.
func (f *rootFlags) load(opts ...config.Option) (*config.Config, error) {
	opts = append(opts, config.WithMaxLoops(f.maxLoops))

	cfg, err := config.Load(f.resolveConfigPath(), opts...)
	if err != nil {
		return nil, err
	}

	level := log.ParseLevel(cfg.Log.Level)
	if f.verbose && level > log.LevelInfo {
		level = log.LevelInfo
	}
	if cfg.Log.File == "" {
		log.GetLogger().SetLevel(level)
		return cfg, nil
	}

	fl, err := log.NewFileLogger(cfg.Log.File, level)
	if err != nil {
		return nil, err
	}
	// The file stays open for the life of the process.
	log.SetLogger(fl.Logger)
	return cfg, nil
}

// resolveConfigPath returns --config, or the default file when it exists.
func (f *rootFlags) resolveConfigPath() string {
	if f.configPath != "" {
		return f.configPath
	}
	if _, err := os.Stat(config.DefaultConfigFile); err == nil {
		return config.DefaultConfigFile
	} else if !errors.Is(err, fs.ErrNotExist) {
		log.Warn("Cannot read %s: %v", config.DefaultConfigFile, err)
	}
	return ""
}
