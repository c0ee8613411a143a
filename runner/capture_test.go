package runner

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTailBufferKeepsTail(t *testing.T) {
	b := newTailBuffer(10)

	_, err := b.Write([]byte("0123456789"))
	assert.NoError(t, err)
	assert.Equal(t, "0123456789", b.String())
	assert.False(t, b.Truncated())

	_, err = b.Write([]byte("abcdef"))
	assert.NoError(t, err)
	assert.Equal(t, "6789abcdef", b.String())
	assert.True(t, b.Truncated())
}

func TestTailBufferManySmallWrites(t *testing.T) {
	b := newTailBuffer(8)
	for i := 0; i < 100; i++ {
		fmt.Fprintf(b, "%02d", i)
	}
	assert.Equal(t, "96979899", b.String())
	assert.True(t, b.Truncated())
}

func TestTailBufferDefaultSize(t *testing.T) {
	b := newTailBuffer(0)
	assert.Equal(t, defaultCaptureTailBytes, b.maxBytes)
}

func TestCaptureContextAccessors(t *testing.T) {
	c := newCapture(false)
	ctx := withCapture(context.Background(), c)

	fmt.Fprint(Diagnostics(ctx), "warning text")
	assert.Equal(t, "warning text", c.err.String())

	// informational output is discarded outside debug mode
	assert.Equal(t, io.Discard, Output(ctx))
}

func TestCaptureDebugPassthrough(t *testing.T) {
	c := newCapture(true)
	ctx := withCapture(context.Background(), c)
	assert.Equal(t, os.Stdout, Output(ctx))
}

func TestCaptureAccessorsWithoutCapture(t *testing.T) {
	ctx := context.Background()
	assert.Equal(t, os.Stdout, Output(ctx))
	assert.Equal(t, os.Stderr, Diagnostics(ctx))
}

func TestTailBufferLargeWrite(t *testing.T) {
	b := newTailBuffer(16)
	_, err := b.Write([]byte(strings.Repeat("x", 1000) + "the very end"))
	assert.NoError(t, err)
	assert.Equal(t, 16, len(b.String()))
	assert.True(t, strings.HasSuffix(b.String(), "the very end"))
}
