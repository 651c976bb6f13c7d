package cli

import (
	"context"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/Zereker/multidisplay"
)

func serve(s *settings) *cobra.Command {
	var listen string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run a content server for installations to connect to",
		Long: "Run a content server. Stdin commands are pushed to every connected installation:\n" +
			"  text <display id> <text>\n" +
			"  file <display id> <path>",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			addr := s.conf.Listen
			if cmd.Flags().Changed("listen") {
				addr = listen
			}
			return runServer(cmd, addr)
		},
	}

	cmd.Flags().StringVar(&listen, "listen", ":8052", "listen address (MDLINK_LISTEN)")
	return cmd
}

func runServer(cmd *cobra.Command, listen string) error {
	logger := slog.Default()

	addr, err := net.ResolveTCPAddr("tcp", listen)
	if err != nil {
		return errors.Wrapf(err, "resolve %s", listen)
	}

	server, err := multidisplay.NewServer(addr, multidisplay.ServerLoggerOption(logger))
	if err != nil {
		return err
	}
	defer server.Close()

	group, ctx := errgroup.WithContext(cmd.Context())

	group.Go(func() error {
		err := server.Serve(ctx, multidisplay.HandlerFunc(func(p *multidisplay.Peer) {
			err := p.Receive(ctx, func(m multidisplay.StringMessage) {
				logger.Info("user input", "peer", p.ID(), "display_id", m.DisplayID, "text", m.Text)
			})
			if err != nil && !errors.Is(err, context.Canceled) {
				logger.Warn("installation dropped", "peer", p.ID(), "error", err)
			}
		}))
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})

	group.Go(func() error {
		for line := range scanLines(ctx, cmd.InOrStdin()) {
			if err := push(server, line); err != nil {
				logger.Warn("ignoring command", "error", err)
			}
		}
		<-ctx.Done()
		return nil
	})

	return group.Wait()
}

// push runs one "text <id> <text>" or "file <id> <path>" command.
func push(server *multidisplay.Server, line string) error {
	verb, rest, _ := strings.Cut(line, " ")
	in, err := parseInputLine(rest)
	if err != nil {
		return err
	}
	if in.displayID < 0 || in.displayID > multidisplay.MaxDisplayID {
		return errors.Wrapf(multidisplay.ErrDisplayIDRange, "%d", in.displayID)
	}
	id := uint8(in.displayID)

	switch verb {
	case "text":
		if len(in.text) > multidisplay.MaxTextLength {
			return errors.Wrapf(multidisplay.ErrTextTooLong, "%d bytes", len(in.text))
		}
		slog.Info("pushed text", "display_id", id, "installations", server.BroadcastText(id, in.text))
	case "file":
		data, err := os.ReadFile(in.text)
		if err != nil {
			return errors.Wrap(err, "read file")
		}
		name := filepath.Base(in.text)
		slog.Info("pushed file", "display_id", id, "file", name, "bytes", len(data),
			"installations", server.BroadcastFile(id, name, data))
	default:
		return errors.Errorf("unknown command %q", verb)
	}
	return nil
}
