package pipeline

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/runflo/runflo/types"
)

func TestDeprecationsReportMergesAcrossUnits(t *testing.T) {
	var buf bytes.Buffer
	d := &DeprecationsReport{Out: &buf}

	a := resultWith("g.a", types.StatusOK, 0)
	a.Deprecations = make(types.Deprecations)
	a.Deprecations.Add("old api", types.DeprecationSite{File: "a.go", Line: 10, Spec: "g.a"})

	b := resultWith("g.b", types.StatusOK, 0)
	b.Deprecations = make(types.Deprecations)
	b.Deprecations.Add("old api", types.DeprecationSite{File: "b.go", Line: 20, Spec: "g.b"})
	b.Deprecations.Add("newer worry", types.DeprecationSite{File: "b.go", Line: 30, Spec: "g.b"})

	// a unit without any deprecations contributes nothing
	c := resultWith("g.c", types.StatusOK, 0)

	collect(t, d.Process(feed(a, b, c)))

	out := buf.String()
	assert.Contains(t, out, "2 unique deprecation warnings were captured:")
	assert.Contains(t, out, "old api")
	assert.Contains(t, out, "a.go, line 10")
	assert.Contains(t, out, "b.go, line 20")
	assert.Contains(t, out, "newer worry")
	assert.Contains(t, out, "[g.a]")
}

func TestDeprecationsReportEmpty(t *testing.T) {
	var buf bytes.Buffer
	d := &DeprecationsReport{Out: &buf}

	collect(t, d.Process(feed(resultWith("g.a", types.StatusOK, 0))))

	assert.Contains(t, buf.String(), "0 unique deprecation warnings were captured.")
}

func TestDeprecationsReportSitesSorted(t *testing.T) {
	var buf bytes.Buffer
	d := &DeprecationsReport{Out: &buf}

	res := resultWith("g.a", types.StatusOK, 0)
	res.Deprecations = make(types.Deprecations)
	res.Deprecations.Add("msg", types.DeprecationSite{File: "z.go", Line: 1, Spec: "g.a"})
	res.Deprecations.Add("msg", types.DeprecationSite{File: "a.go", Line: 9, Spec: "g.a"})
	res.Deprecations.Add("msg", types.DeprecationSite{File: "a.go", Line: 2, Spec: "g.a"})

	collect(t, d.Process(feed(res)))

	out := buf.String()
	first := strings.Index(out, "a.go, line 2")
	second := strings.Index(out, "a.go, line 9")
	third := strings.Index(out, "z.go, line 1")
	assert.True(t, first < second && second < third, "sites ordered by file then line")
}
