package pipeline

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/runflo/runflo/types"
)

func discardLog() log.Logger {
	return log.NewLogger(log.DiscardHandler())
}

func readLines(t *testing.T, path string) []string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "\n")
}

func TestQuickListRecordsFastPasses(t *testing.T) {
	path := filepath.Join(t.TempDir(), "quicktests.in")
	q := &QuickList{Path: path, Threshold: time.Second, Log: discardLog()}

	in := []*types.Result{
		resultWith("g.fast", types.StatusOK, 100*time.Millisecond),
		resultWith("g.exactly", types.StatusOK, time.Second), // at the threshold counts
		resultWith("g.slow", types.StatusOK, 2*time.Second),
		resultWith("g.fast_fail", types.StatusFail, 10*time.Millisecond),
		resultWith("g.fast_skip", types.StatusSkip, 0),
	}

	out := collect(t, q.Process(feed(in...)))
	assert.Len(t, out, len(in), "every result passes through")

	assert.Equal(t, []string{"g.fast", "g.exactly"}, readLines(t, path))
}

func TestQuickListOverwritesPriorContent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "quicktests.in")
	require.NoError(t, os.WriteFile(path, []byte("stale.entry\n"), 0o644))

	q := &QuickList{Path: path, Threshold: time.Second, Log: discardLog()}
	collect(t, q.Process(feed(resultWith("g.fresh", types.StatusOK, 0))))

	assert.Equal(t, []string{"g.fresh"}, readLines(t, path))
}

func TestQuickListUnwritablePathIsPassthrough(t *testing.T) {
	q := &QuickList{
		Path:      filepath.Join(t.TempDir(), "no", "such", "dir", "q.in"),
		Threshold: time.Second,
		Log:       discardLog(),
	}

	in := resultWith("g.a", types.StatusOK, 0)
	out := collect(t, q.Process(feed(in)))
	require.Len(t, out, 1)
	assert.Same(t, in, out[0])
}

func TestQuickListOutputIsLoadableReplayList(t *testing.T) {
	path := filepath.Join(t.TempDir(), "quicktests.in")
	q := &QuickList{Path: path, Threshold: time.Second, Log: discardLog()}

	collect(t, q.Process(feed(
		resultWith("g.one", types.StatusOK, 10*time.Millisecond),
		resultWith("g.two", types.StatusOK, 20*time.Millisecond),
	)))

	for _, line := range readLines(t, path) {
		assert.NotEmpty(t, types.ParseListLine(line))
	}
}
