package pipeline

import (
	"fmt"
	"io"
	"sync"

	"github.com/acarl005/stripansi"

	"github.com/runflo/runflo/types"
)

// Printer reports each result as it completes. In verbose mode it writes
// one full line per result; otherwise it shows a dot for OK, S for SKIP
// and F for FAIL, with the failure details always expanded. When StripANSI
// is set (report files) escape sequences are removed from error text.
type Printer struct {
	Out       io.Writer
	Verbose   bool
	StripANSI bool

	mu sync.Mutex
}

func (p *Printer) Name() string { return "printer" }

func (p *Printer) Process(in <-chan *types.Result) <-chan *types.Result {
	return passthrough(in, p.print, nil)
}

func (p *Printer) print(res *types.Result) {
	p.mu.Lock()
	defer p.mu.Unlock()

	stats := fmt.Sprintf("%.2fs", res.Elapsed().Seconds())
	if res.Usage.MaxRSSMB > 0 {
		stats += fmt.Sprintf(", %.1f MB", res.Usage.MaxRSSMB)
	}

	errMsg := res.ErrMsg
	if p.StripANSI {
		errMsg = stripansi.Strip(errMsg)
	}

	name := res.Spec.String()
	if res.SubMsg != "" {
		name += " " + res.SubMsg
	}

	if p.Verbose {
		fmt.Fprintf(p.Out, "%s ... %s (%s)\n", name, res.Status, stats)
		if errMsg != "" {
			fmt.Fprintf(p.Out, "%s\n", errMsg)
		}
		return
	}

	switch res.Status {
	case types.StatusOK:
		fmt.Fprint(p.Out, ".")
	case types.StatusSkip:
		fmt.Fprint(p.Out, "S")
		if errMsg != "" {
			fmt.Fprintf(p.Out, "\n%s: SKIP: %s\n", name, errMsg)
		}
	case types.StatusFail:
		fmt.Fprint(p.Out, "F")
		fmt.Fprintf(p.Out, "\n%s ... FAIL (%s)\n%s\n", name, stats, errMsg)
	}
}
