package pipeline

import (
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/runflo/runflo/types"
)

// Durations reports the longest-running tests once the stream closes.
type Durations struct {
	Out io.Writer

	// Count bounds how many entries are reported; 0 means 10.
	Count int

	// Min drops entries that finished faster than this.
	Min time.Duration
}

func (d *Durations) Name() string { return "durations" }

func (d *Durations) Process(in <-chan *types.Result) <-chan *types.Result {
	type entry struct {
		spec    string
		elapsed time.Duration
	}
	var entries []entry

	return passthrough(in, func(res *types.Result) {
		entries = append(entries, entry{res.Spec.String(), res.Elapsed()})
	}, func() {
		count := d.Count
		if count <= 0 {
			count = 10
		}
		sort.Slice(entries, func(i, j int) bool { return entries[i].elapsed > entries[j].elapsed })

		title := " Max duration tests "
		if d.Min > 0 {
			title = fmt.Sprintf(" Max duration tests with duration >= %v ", d.Min)
		}
		fmt.Fprintf(d.Out, "\n\n%s%s%s\n\n", divider, title, divider)
		for _, e := range entries {
			if e.elapsed < d.Min || count <= 0 {
				break
			}
			fmt.Fprintf(d.Out, "%8.3f sec - %s\n", e.elapsed.Seconds(), e.spec)
			count--
		}
		fmt.Fprintf(d.Out, "\n%s%s%s\n", divider, divider, divider)
	})
}

const divider = "=============================="
