package main

import (
	"context"
	"log/slog"
	"net"
	"os/signal"
	"syscall"
	"time"

	"github.com/Zereker/multidisplay"
)

// printer is a Display that logs what it is asked to show.
type printer struct{}

func (printer) ApplyUserInput(displayID uint8, text string) {
	slog.Info("display input", "display_id", displayID, "text", text)
}

func (printer) ApplyFile(displayID uint8, path, tempDirRoot string) {
	slog.Info("display file", "display_id", displayID, "path", path, "root", tempDirRoot)
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	server, err := multidisplay.NewServer(&net.TCPAddr{IP: net.ParseIP("127.0.0.1"), Port: 0})
	if err != nil {
		slog.Error("failed to create server", "error", err)
		return
	}
	defer server.Close()

	// Every installation gets a greeting and a file, then its input is echoed back.
	go server.Serve(ctx, multidisplay.HandlerFunc(func(p *multidisplay.Peer) {
		_ = p.SendText(1, "playVideo")
		_ = p.SendFile(2, "welcome (1).pdf", []byte("%PDF-1.4"))
		_ = p.Receive(ctx, func(m multidisplay.StringMessage) {
			_ = p.SendText(m.DisplayID, "echo: "+m.Text)
		})
	}))

	client, err := multidisplay.NewClient(printer{})
	if err != nil {
		slog.Error("failed to create client", "error", err)
		return
	}
	defer client.TempDir().Remove()
	defer client.Close()

	port := server.Addr().(*net.TCPAddr).Port
	if err := client.Connect(ctx, "127.0.0.1", port); err != nil {
		slog.Error("failed to connect", "error", err)
		return
	}
	_ = client.SendUserInput(3, "nextSlide")

	ticker := time.NewTicker(16 * time.Millisecond)
	defer ticker.Stop()
	timeout := time.After(time.Second)

	for {
		select {
		case <-ctx.Done():
			return
		case <-timeout:
			return
		case <-ticker.C:
			client.Tick()
			if client.TakeDisconnect() {
				slog.Warn("server went away", "error", client.Err())
				return
			}
		}
	}
}
