package publisher

import (
	"context"
	"fmt"
	"io"
)

// Console writes posts to an injected io.Writer, stdout by default. The
// injection point mirrors the teacher's preference for io.Reader/io.Writer
// seams over hardcoded os.Stdout so tests can assert on output.
type Console struct {
	w        io.Writer
	maxChars int
}

// NewConsole builds a Console publisher writing to w.
func NewConsole(w io.Writer, maxChars int) *Console {
	return &Console{w: w, maxChars: maxChars}
}

func (c *Console) Name() string      { return "console" }
func (c *Console) SoftCharLimit() int { return c.maxChars }

func (c *Console) Publish(ctx context.Context, channel string, post string) error {
	_, err := fmt.Fprintf(c.w, "%s\n", post)
	return err
}
