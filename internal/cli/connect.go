package cli

import (
	"log/slog"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/Zereker/multidisplay"
	"github.com/Zereker/multidisplay/internal/config"
	"github.com/Zereker/multidisplay/internal/display"
)

func connect(s *settings) *cobra.Command {
	var (
		host          string
		port          int
		tempDir       string
		tick          time.Duration
		displays      string
		queueLimit    int
		maxObjectSize int
		rasterizer    string
		keepFiles     bool
	)

	cmd := &cobra.Command{
		Use:   "connect",
		Short: "Connect this installation to a content server",
		Long: "Connect this installation to a content server and apply pushed content to its displays.\n" +
			"Lines read from stdin as \"<display id> <text>\" are sent back as user input.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			conf := *s.conf
			flags := cmd.Flags()
			if flags.Changed("host") {
				conf.Host = host
			}
			if flags.Changed("port") {
				conf.Port = port
			}
			if flags.Changed("temp-dir") {
				conf.TempDir = tempDir
			}
			if flags.Changed("tick") {
				conf.Tick = tick
			}
			if flags.Changed("queue-limit") {
				conf.QueueLimit = queueLimit
			}
			if flags.Changed("max-object-size") {
				conf.MaxObjectSize = maxObjectSize
			}
			if flags.Changed("displays") {
				ids, err := config.ParseDisplayIDs(displays)
				if err != nil {
					return err
				}
				conf.Displays = ids
			}
			if err := conf.Validate(); err != nil {
				return err
			}

			raster, err := newRasterizer(rasterizer)
			if err != nil {
				return err
			}

			return runClient(cmd, &conf, raster, keepFiles)
		},
	}

	cmd.Flags().StringVar(&host, "host", "127.0.0.1", "server host (MDLINK_HOST)")
	cmd.Flags().IntVar(&port, "port", 8052, "server port (MDLINK_PORT)")
	cmd.Flags().StringVar(&tempDir, "temp-dir", "", "directory for received files (MDLINK_TEMP_DIR)")
	cmd.Flags().DurationVar(&tick, "tick", 16*time.Millisecond, "dispatch interval (MDLINK_TICK)")
	cmd.Flags().StringVar(&displays, "displays", "", "comma separated display ids, empty accepts all (MDLINK_DISPLAYS)")
	cmd.Flags().IntVar(&queueLimit, "queue-limit", 0, "inbound queue bound, 0 is unbounded (MDLINK_QUEUE_LIMIT)")
	cmd.Flags().IntVar(&maxObjectSize, "max-object-size", 0, "largest accepted file record in bytes, 0 is unbounded (MDLINK_MAX_OBJECT_SIZE)")
	cmd.Flags().StringVar(&rasterizer, "rasterizer", "none", "document rasterizer: none|gs")
	cmd.Flags().BoolVar(&keepFiles, "keep-files", false, "keep received files on exit")

	return cmd
}

func newRasterizer(name string) (display.Rasterizer, error) {
	switch name {
	case "", "none":
		return display.NopRasterizer{}, nil
	case "gs", "ghostscript":
		return display.Ghostscript{}, nil
	default:
		return nil, errors.Errorf("unknown rasterizer %q", name)
	}
}

func runClient(cmd *cobra.Command, conf *config.Config, raster display.Rasterizer, keepFiles bool) error {
	ctx := cmd.Context()
	logger := slog.Default()

	opts := []multidisplay.Option{
		multidisplay.LoggerOption(logger),
		multidisplay.DialTimeoutOption(conf.DialTimeout),
		multidisplay.QueueLimitOption(conf.QueueLimit),
		multidisplay.MaxObjectSizeOption(conf.MaxObjectSize),
	}
	if conf.TempDir != "" {
		opts = append(opts, multidisplay.TempDirOption(conf.TempDir))
	}

	board := display.NewBoard(conf.Displays, raster, logger)
	client, err := multidisplay.NewClient(board, opts...)
	if err != nil {
		return err
	}

	if err := client.Connect(ctx, conf.Host, conf.Port); err != nil {
		return errors.WithMessage(err, "unable to connect with server")
	}
	defer func() {
		_ = client.Close()
		if !keepFiles {
			_ = client.TempDir().Remove()
		}
	}()

	lines := scanLines(ctx, cmd.InOrStdin())
	ticker := time.NewTicker(conf.Tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case line, ok := <-lines:
			if !ok {
				lines = nil
				continue
			}
			in, err := parseInputLine(line)
			if err != nil {
				logger.Warn("ignoring input", "error", err)
				continue
			}
			if err := client.SendUserInput(in.displayID, in.text); err != nil {
				logger.Error("sending user input failed", "display_id", in.displayID, "error", err)
			}

		case <-ticker.C:
			client.Tick()
			if client.TakeDisconnect() {
				return errors.Errorf("connection to server lost: %v", client.Err())
			}
		}
	}
}
