// Package cli is the cobra command tree of the digest binary.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/mattn/go-isatty"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"audio-digest/internal/config"
	"audio-digest/internal/domain"
)

// Exit codes returned by Execute.
const (
	ExitOK      = 0
	ExitFailure = 1
	ExitUsage   = 2
)

// usageError marks bad flags or arguments.
type usageError struct {
	err error
}

func (e usageError) Error() string { return e.err.Error() }
func (e usageError) Unwrap() error { return e.err }

type cli struct {
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer

	loadOptions config.LoadOptions
	isTerminal  func() bool

	configFile string
	logLevel   string
	logFormat  string
}

func newCLI(stdin io.Reader, stdout, stderr io.Writer) *cli {
	return &cli{
		stdin:       stdin,
		stdout:      stdout,
		stderr:      stderr,
		loadOptions: config.DefaultLoadOptions(),
		isTerminal: func() bool {
			fd := os.Stdin.Fd()
			return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
		},
	}
}

// Execute runs the digest command line and returns the process exit code.
// The first SIGINT or SIGTERM cancels the job at the next window or chunk
// boundary; a second one terminates the process.
func Execute() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		stop()
	}()

	return newCLI(os.Stdin, os.Stdout, os.Stderr).execute(ctx, os.Args[1:])
}

func (c *cli) execute(ctx context.Context, args []string) int {
	root := c.rootCommand()
	root.SetArgs(args)
	err := root.ExecuteContext(ctx)
	if err != nil {
		fmt.Fprintf(c.stderr, "Error: %v\n", err)
	}
	return exitCode(err)
}

func (c *cli) rootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "digest",
		Short:         "Transcribe long audio recordings and summarize them in Markdown",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetIn(c.stdin)
	root.SetOut(c.stdout)
	root.SetErr(c.stderr)
	root.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return usageError{err: err}
	})

	pf := root.PersistentFlags()
	pf.StringVar(&c.configFile, "config", "", "YAML config file (default ./digest.yaml, then ~/.audio-digest/config.yaml)")
	pf.StringVar(&c.logLevel, "log-level", "", "log level: trace, debug, info, warn, error")
	pf.StringVar(&c.logFormat, "log-format", "", "log format: text or json")

	root.AddCommand(
		c.jobCommand("run", "Transcribe every input and summarize the transcript", true, true),
		c.jobCommand("transcribe", "Transcribe every input into the transcript file", true, false),
		c.jobCommand("summarize", "Summarize the existing transcript file", false, true),
		c.doctorCommand(),
		c.modelsCommand(),
		c.historyCommand(),
		c.configCommand(),
	)
	return root
}

// load merges every configuration source, applies flag overrides from cmd
// and builds the logger.
func (c *cli) load(cmd *cobra.Command, bind func(v *viper.Viper) error) (config.Config, *logrus.Logger, error) {
	opts := c.loadOptions
	opts.ConfigFile = c.configFile
	opts.Bind = func(v *viper.Viper) error {
		if err := bindFlags(v, cmd.Flags(), map[string]string{
			"log.level":  "log-level",
			"log.format": "log-format",
		}); err != nil {
			return err
		}
		if bind != nil {
			return bind(v)
		}
		return nil
	}

	cfg, err := config.Load(opts)
	if err != nil {
		return config.Config{}, nil, err
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, nil, err
	}

	logger, err := newLogger(cfg.Log, c.stderr)
	if err != nil {
		return config.Config{}, nil, err
	}
	if cfg.ConfigFile != "" {
		logger.WithField("file", cfg.ConfigFile).Debug("loaded config file")
	}
	return cfg, logger, nil
}

// bindFlags attaches flags to config keys; unchanged flags never override
// files or environment.
func bindFlags(v *viper.Viper, flags *pflag.FlagSet, keys map[string]string) error {
	for key, name := range keys {
		flag := flags.Lookup(name)
		if flag == nil {
			continue
		}
		if !flag.Changed {
			continue
		}
		if err := v.BindPFlag(key, flag); err != nil {
			return fmt.Errorf("bind --%s: %w", name, err)
		}
	}
	return nil
}

func usageArgs(validate cobra.PositionalArgs) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := validate(cmd, args); err != nil {
			return usageError{err: err}
		}
		return nil
	}
}

// exitCode maps errors to 0 (success), 2 (usage or configuration) or 1.
func exitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	var usage usageError
	if errors.As(err, &usage) || errors.Is(err, domain.ErrConfig) {
		return ExitUsage
	}
	if strings.HasPrefix(err.Error(), "unknown command") {
		return ExitUsage
	}
	return ExitFailure
}
