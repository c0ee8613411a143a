package pipeline

import (
	"fmt"
	"io"
	"sort"

	"github.com/runflo/runflo/types"
)

// DeprecationsReport accumulates the deprecation records carried by
// results and writes a consolidated report once the stream closes.
// Observations are merged across units; nothing is ever dropped during the
// run.
type DeprecationsReport struct {
	Out io.Writer
}

func (d *DeprecationsReport) Name() string { return "deprecations-report" }

func (d *DeprecationsReport) Process(in <-chan *types.Result) <-chan *types.Result {
	all := make(types.Deprecations)

	return passthrough(in, func(res *types.Result) {
		all.Merge(res.Deprecations)
	}, func() {
		d.write(all)
	})
}

func (d *DeprecationsReport) write(all types.Deprecations) {
	w := d.Out
	fmt.Fprintf(w, "\n%s Deprecations Report %s\n", divider, divider)

	count := len(all)
	punct := "."
	if count > 0 {
		punct = ":"
	}
	fmt.Fprintf(w, "\n%d unique deprecation warnings were captured%s\n", count, punct)

	msgs := make([]string, 0, count)
	for msg := range all {
		msgs = append(msgs, msg)
	}
	sort.Strings(msgs)

	for _, msg := range msgs {
		fmt.Fprintf(w, "--\n%s\n\n", msg)
		sites := make([]types.DeprecationSite, 0, len(all[msg]))
		for site := range all[msg] {
			sites = append(sites, site)
		}
		sort.Slice(sites, func(i, j int) bool {
			if sites[i].File != sites[j].File {
				return sites[i].File < sites[j].File
			}
			return sites[i].Line < sites[j].Line
		})
		for _, site := range sites {
			fmt.Fprintf(w, "    %s, line %d\n", site.File, site.Line)
			if site.Spec != "" {
				fmt.Fprintf(w, "    [%s]\n\n", site.Spec)
			}
		}
	}
	fmt.Fprintf(w, "\n%s%s%s\n", divider, divider, divider)
}
