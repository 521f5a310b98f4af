package publisher

import (
	"context"
	"fmt"
	"os"
	"sync"
)

// File appends or overwrites posts to a single path. Each Publish opens the
// file, writes one post and closes it again; a mutex serializes calls since
// Publish may be called from the worker loop repeatedly across the run.
type File struct {
	path     string
	append   bool
	maxChars int

	mu sync.Mutex
}

// NewFile builds a File publisher writing to path. If appendMode is false,
// the file is truncated on the first Publish call of the process.
func NewFile(path string, appendMode bool, maxChars int) *File {
	return &File{path: path, append: appendMode, maxChars: maxChars}
}

func (f *File) Name() string      { return "file" }
func (f *File) SoftCharLimit() int { return f.maxChars }

func (f *File) Publish(ctx context.Context, channel string, post string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	flags := os.O_CREATE | os.O_WRONLY
	if f.append {
		flags |= os.O_APPEND
	} else {
		flags |= os.O_TRUNC
		f.append = true // subsequent writes in this process append
	}

	fh, err := os.OpenFile(f.path, flags, 0o644)
	if err != nil {
		return fmt.Errorf("file publisher: open %s: %w", f.path, err)
	}
	defer fh.Close()

	if _, err := fmt.Fprintf(fh, "%s\n", post); err != nil {
		return fmt.Errorf("file publisher: write %s: %w", f.path, err)
	}
	return nil
}
