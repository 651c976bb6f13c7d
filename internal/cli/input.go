package cli

import (
	"bufio"
	"context"
	"io"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// inputLine is one "<display id> <text>" line typed by the operator.
type inputLine struct {
	displayID int
	text      string
}

func parseInputLine(line string) (inputLine, error) {
	idPart, text, _ := strings.Cut(strings.TrimSpace(line), " ")
	id, err := strconv.Atoi(idPart)
	if err != nil {
		return inputLine{}, errors.Errorf("expected \"<display id> <text>\", got %q", line)
	}
	return inputLine{displayID: id, text: strings.TrimSpace(text)}, nil
}

// scanLines sends every non-empty line of r to the returned channel until r
// ends or ctx is canceled. If r is an io.Closer it is closed on cancel to
// unblock the pending read; other readers keep the goroutine parked in Read
// until they return.
func scanLines(ctx context.Context, r io.Reader) <-chan string {
	lines := make(chan string)
	stop := func() bool { return false }
	if c, ok := r.(io.Closer); ok {
		stop = context.AfterFunc(ctx, func() { _ = c.Close() })
	}
	go func() {
		defer close(lines)
		defer stop()
		scanner := bufio.NewScanner(r)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line == "" {
				continue
			}
			select {
			case lines <- line:
			case <-ctx.Done():
				return
			}
		}
	}()
	return lines
}
