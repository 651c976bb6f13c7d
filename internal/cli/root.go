// Package cli implements the mdlink command line.
package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/Zereker/multidisplay/internal/config"
)

type cfg struct {
	args []string
	in   io.Reader
	out  io.Writer
	err  io.Writer
}

type Option func(*cfg)

func WithArgs(args []string) Option {
	return func(c *cfg) {
		c.args = args
	}
}

func WithIn(r io.Reader) Option {
	return func(c *cfg) {
		c.in = r
	}
}

func WithOut(w io.Writer) Option {
	return func(c *cfg) {
		c.out = w
	}
}

func WithErr(w io.Writer) Option {
	return func(c *cfg) {
		c.err = w
	}
}

// settings is the loaded configuration shared by the subcommands.
type settings struct {
	conf *config.Config
}

func Run(ctx context.Context, cancel context.CancelFunc, opts ...Option) (exitCode int) {
	defer cancel()

	cfg := cfg{
		args: os.Args[1:],
		in:   os.Stdin,
		out:  os.Stdout,
		err:  os.Stderr,
	}

	for _, o := range opts {
		o(&cfg)
	}

	var (
		logLevel string
		envFile  string
		s        settings
	)

	cmd := &cobra.Command{
		Use:           "mdlink [command]",
		Short:         "Multi-display installation link",
		Long:          "mdlink connects a multi-display installation to its content server, or plays that server for testing.",
		Version:       "dev",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			conf, err := config.Load(envFile)
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("log") {
				logLevel = conf.LogLevel
			}
			lvl, err := parseLogLevel(logLevel)
			if err != nil {
				return err
			}
			slog.SetDefault(slog.New(slog.NewTextHandler(cfg.err, &slog.HandlerOptions{Level: lvl})))
			s.conf = conf
			return nil
		},
	}

	cmd.SetArgs(cfg.args)
	cmd.SetIn(cfg.in)
	cmd.SetOut(cfg.out)
	cmd.SetErr(cfg.err)

	cmd.PersistentFlags().StringVar(&logLevel, "log", "info", "log level: debug|info|warn|error")
	cmd.PersistentFlags().StringVar(&envFile, "env", ".env", "dotenv file with MDLINK_* settings")

	cmd.AddCommand(connect(&s), serve(&s))

	if err := cmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(cfg.err, err)
		return 1
	}

	return 0
}

func parseLogLevel(level string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "", "info":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, errors.Errorf("invalid log level %q", level)
	}
}
