package pipeline

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/runflo/runflo/types"
)

func TestPrinterVerbose(t *testing.T) {
	var buf bytes.Buffer
	p := &Printer{Out: &buf, Verbose: true}

	ok := resultWith("g.pass", types.StatusOK, 1500*time.Millisecond)
	fail := resultWith("g.broken", types.StatusFail, 100*time.Millisecond)
	fail.ErrMsg = "assertion failed"

	collect(t, p.Process(feed(ok, fail)))

	out := buf.String()
	assert.Contains(t, out, "g.pass ... OK (1.50s)")
	assert.Contains(t, out, "g.broken ... FAIL (0.10s)")
	assert.Contains(t, out, "assertion failed")
}

func TestPrinterProgressDots(t *testing.T) {
	var buf bytes.Buffer
	p := &Printer{Out: &buf}

	skip := resultWith("g.skipped", types.StatusSkip, 0)
	fail := resultWith("g.broken", types.StatusFail, 100*time.Millisecond)
	fail.ErrMsg = "boom"

	collect(t, p.Process(feed(
		resultWith("g.a", types.StatusOK, time.Millisecond),
		resultWith("g.b", types.StatusOK, time.Millisecond),
		skip,
		fail,
	)))

	out := buf.String()
	assert.Contains(t, out, "..")
	assert.Contains(t, out, "S")
	assert.Contains(t, out, "F")
	// failure details are always expanded
	assert.Contains(t, out, "g.broken ... FAIL")
	assert.Contains(t, out, "boom")
}

func TestPrinterSubMsgInName(t *testing.T) {
	var buf bytes.Buffer
	p := &Printer{Out: &buf, Verbose: true}

	res := resultWith("g.table", types.StatusOK, time.Millisecond)
	res.SubMsg = "[small]"
	collect(t, p.Process(feed(res)))

	assert.Contains(t, buf.String(), "g.table [small] ... OK")
}

func TestPrinterStripANSI(t *testing.T) {
	var buf bytes.Buffer
	p := &Printer{Out: &buf, Verbose: true, StripANSI: true}

	res := resultWith("g.colorful", types.StatusFail, time.Millisecond)
	res.ErrMsg = "\x1b[31mred error\x1b[0m"
	collect(t, p.Process(feed(res)))

	assert.Contains(t, buf.String(), "red error")
	assert.NotContains(t, buf.String(), "\x1b[31m")
}

func TestPrinterShowsMemoryWhenSampled(t *testing.T) {
	var buf bytes.Buffer
	p := &Printer{Out: &buf, Verbose: true}

	res := resultWith("g.heavy", types.StatusOK, time.Second)
	res.Usage.MaxRSSMB = 256.0
	collect(t, p.Process(feed(res)))

	assert.Contains(t, buf.String(), "256.0 MB")
}
