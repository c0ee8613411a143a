package runner

import (
	"context"
	"io"
	"os"
	"sync"
)

const defaultCaptureTailBytes = 5 * 1024 * 1024 // 5MB kept in memory per unit

// tailBuffer keeps only the last N bytes written to it so a chatty unit
// cannot retain its entire diagnostic stream in memory.
type tailBuffer struct {
	maxBytes int

	mu       sync.Mutex
	total    int64
	contents []byte
	overflow bool
}

func newTailBuffer(maxBytes int) *tailBuffer {
	if maxBytes <= 0 {
		maxBytes = defaultCaptureTailBytes
	}
	return &tailBuffer{
		maxBytes: maxBytes,
		contents: make([]byte, 0, min(maxBytes, 4096)),
	}
}

func (b *tailBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.total += int64(len(p))
	b.contents = append(b.contents, p...)
	if len(b.contents) > b.maxBytes {
		b.contents = b.contents[len(b.contents)-b.maxBytes:]
		b.overflow = true
	}
	return len(p), nil
}

func (b *tailBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return string(b.contents)
}

func (b *tailBuffer) Truncated() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.overflow
}

// capture is the per-unit output state. Every worker holds exactly one
// capture at a time; captures are never shared between workers, so the
// result queue is the only synchronization the coordinator needs.
type capture struct {
	out io.Writer   // unit stdout: os.Stdout in debug mode, discarded otherwise
	err *tailBuffer // unit stderr: becomes the Result's error text
}

func newCapture(debug bool) *capture {
	c := &capture{err: newTailBuffer(0)}
	if debug {
		c.out = os.Stdout
	} else {
		c.out = io.Discard
	}
	return c
}

type captureKey struct{}

func withCapture(ctx context.Context, c *capture) context.Context {
	return context.WithValue(ctx, captureKey{}, c)
}

// Output returns the writer a unit body should use for informational
// output. It is passed through in debug mode and discarded otherwise.
func Output(ctx context.Context) io.Writer {
	if c, ok := ctx.Value(captureKey{}).(*capture); ok {
		return c.out
	}
	return os.Stdout
}

// Diagnostics returns the writer whose contents become the unit's error
// text, the in-process analogue of captured stderr.
func Diagnostics(ctx context.Context) io.Writer {
	if c, ok := ctx.Value(captureKey{}).(*capture); ok {
		return c.err
	}
	return os.Stderr
}
