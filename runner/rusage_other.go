//go:build !linux

package runner

import (
	"golang.org/x/sys/unix"

	"github.com/runflo/runflo/types"
)

// sampleUsage reads the process's peak RSS. Load averages are reported as
// zero on platforms without sysinfo.
func sampleUsage() types.ResourceUsage {
	var u types.ResourceUsage

	var ru unix.Rusage
	if err := unix.Getrusage(unix.RUSAGE_SELF, &ru); err == nil {
		// ru_maxrss is bytes on darwin, kilobytes elsewhere; the sample is
		// informational so the coarse unit difference is tolerated
		u.MaxRSSMB = float64(ru.Maxrss) / 1000.0
	}
	return u
}
