package pipeline

import (
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/runflo/runflo/types"
)

// Summary accumulates run statistics as results stream past and writes the
// end-of-run report once the stream closes: failed and skipped spec lists,
// a totals table and the wall-clock/speedup figures.
type Summary struct {
	Out         io.Writer
	Concurrency int
	Isolated    bool
}

func (s *Summary) Name() string { return "summary" }

func (s *Summary) Process(in <-chan *types.Result) <-chan *types.Result {
	startWall := time.Now()

	var (
		total   int
		oks     int
		fails   []string
		skips   []string
		sumTime time.Duration
	)

	return passthrough(in, func(res *types.Result) {
		total++
		switch res.Status {
		case types.StatusOK:
			oks++
			sumTime += res.Elapsed()
		case types.StatusFail:
			fails = append(fails, res.Spec.String())
			sumTime += res.Elapsed()
		case types.StatusSkip:
			skips = append(skips, res.Spec.String())
		}
	}, func() {
		s.write(total, oks, fails, skips, sumTime, time.Since(startWall))
	})
}

func (s *Summary) write(total, oks int, fails, skips []string, sumTime, wall time.Duration) {
	w := s.Out

	if len(skips) > 0 {
		fmt.Fprintf(w, "\n\nThe following tests were skipped:\n")
		sort.Strings(skips)
		for _, spec := range skips {
			fmt.Fprintln(w, spec)
		}
	}

	if len(fails) > 0 {
		fmt.Fprintf(w, "\n\nThe following tests failed:\n")
		sort.Strings(fails)
		for _, spec := range fails {
			fmt.Fprintln(w, spec)
		}
	} else {
		fmt.Fprintf(w, "\n\nOK")
	}

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.AppendHeader(table.Row{"Result", "Count"})
	t.AppendRows([]table.Row{
		{"Passed", oks},
		{"Failed", len(fails)},
		{"Skipped", len(skips)},
	})
	t.AppendFooter(table.Row{"Total", total})
	t.SetColumnConfigs([]table.ColumnConfig{{Number: 2, Align: text.AlignRight}})
	fmt.Fprintf(w, "\n\n")
	t.Render()

	mode := fmt.Sprintf("using %d workers", s.Concurrency)
	if s.Isolated {
		mode = "in isolated processes"
	}
	speedup := 1.0
	if wall > 0 {
		speedup = sumTime.Seconds() / wall.Seconds()
	}
	fmt.Fprintf(w, "\nRan %d tests %s\nSum of test times: %s\nWall clock time:   %s\nSpeedup: %.2f\n\n",
		total, mode, elapsedStr(sumTime), elapsedStr(wall), speedup)
}

// elapsedStr renders a duration as hh:mm:ss.xx.
func elapsedStr(d time.Duration) string {
	secs := d.Seconds()
	hrs := int(secs) / 3600
	secs -= float64(hrs * 3600)
	mins := int(secs) / 60
	secs -= float64(mins * 60)
	return fmt.Sprintf("%02d:%02d:%05.2f", hrs, mins, secs)
}
