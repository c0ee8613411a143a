package types

import (
	"fmt"
	"strings"
)

// Spec identifies one runnable unit. It is an opaque string of the form
// <group> or <group>.<unit>; equality and ordering are string based and a
// Spec is usable directly as a map key for queueing and replay lists.
type Spec string

func (s Spec) String() string { return string(s) }

// Group returns the group portion of the spec, or the whole spec when no
// unit part is present.
func (s Spec) Group() string {
	group, _, _ := strings.Cut(string(s), ".")
	return group
}

// Unit returns the unit portion of the spec, if any.
func (s Spec) Unit() string {
	_, unit, _ := strings.Cut(string(s), ".")
	return unit
}

// FormatListLine renders a spec as one replay-list line, annotating the
// required process count when it is more than one.
func FormatListLine(spec Spec, nprocs int) string {
	if nprocs > 1 {
		return fmt.Sprintf("%s  # nprocs=%d", spec, nprocs)
	}
	return string(spec)
}

// ParseListLine parses one replay-list line, stripping any trailing
// annotation comment. It returns an empty spec for blank and comment-only
// lines.
func ParseListLine(line string) Spec {
	line, _, _ = strings.Cut(line, "#")
	return Spec(strings.TrimSpace(line))
}
