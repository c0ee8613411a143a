//go:build linux

package runner

import (
	"golang.org/x/sys/unix"

	"github.com/runflo/runflo/types"
)

// sampleUsage reads the process's peak RSS and the system load averages.
// Failures degrade to zero values; a missing sample never fails a unit.
func sampleUsage() types.ResourceUsage {
	var u types.ResourceUsage

	var ru unix.Rusage
	if err := unix.Getrusage(unix.RUSAGE_SELF, &ru); err == nil {
		// ru_maxrss is kilobytes on Linux
		u.MaxRSSMB = float64(ru.Maxrss) / 1000.0
	}

	var si unix.Sysinfo_t
	if err := unix.Sysinfo(&si); err == nil {
		const loadScale = 1 << 16 // SI_LOAD_SHIFT fixed point
		for i := 0; i < 3; i++ {
			u.Load[i] = float64(si.Loads[i]) / loadScale
		}
	}
	return u
}
