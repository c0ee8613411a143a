// Package registry holds the registered test units and resolves test
// specification strings into Executables. Resolution faults are returned as
// error values; nothing escapes the Resolve boundary as a panic.
package registry

import (
	"fmt"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"gopkg.in/yaml.v3"

	"github.com/runflo/runflo/types"
)

// YAMLDuration parses duration strings like "90s" from the overrides file.
type YAMLDuration time.Duration

func (t *YAMLDuration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*t = YAMLDuration(d)
	return nil
}

// Override adjusts a registered unit from the overrides config file without
// touching code.
type Override struct {
	Spec         string        `yaml:"spec"`
	NProcs       *int          `yaml:"nprocs,omitempty"`
	Isolated     *bool         `yaml:"isolated,omitempty"`
	ExpectedFail *bool         `yaml:"expected_fail,omitempty"`
	Timeout      *YAMLDuration `yaml:"timeout,omitempty"`
}

type overridesFile struct {
	Units []Override `yaml:"units"`
}

// Config holds registry construction options.
type Config struct {
	Log log.Logger

	// OverridesFile optionally points at a YAML file of per-spec overrides.
	OverridesFile string
}

type unitDef struct {
	name         string
	body         types.Body
	subCases     []types.SubCase
	nprocs       int
	isolated     bool
	expectedFail bool
	timeout      time.Duration
}

// Group is a named collection of units sharing fixture hooks.
type Group struct {
	name          string
	reg           *Registry
	groupSetup    []types.Hook
	groupTeardown []types.Hook
	unitSetup     []types.Hook
	unitTeardown  []types.Hook
	nprocs        int
	isolated      bool
	units         map[string]*unitDef
	order         []string
}

// Registry implements the Resolver capability over programmatically
// registered units.
type Registry struct {
	log       log.Logger
	mu        sync.RWMutex
	groups    map[string]*Group
	order     []string
	overrides map[types.Spec]Override
}

// New creates a Registry, loading the overrides file when configured.
func New(cfg Config) (*Registry, error) {
	if cfg.Log == nil {
		cfg.Log = log.New()
	}
	r := &Registry{
		log:       cfg.Log.New("component", "registry"),
		groups:    make(map[string]*Group),
		overrides: make(map[types.Spec]Override),
	}
	if cfg.OverridesFile != "" {
		data, err := os.ReadFile(cfg.OverridesFile)
		if err != nil {
			return nil, fmt.Errorf("reading overrides file: %w", err)
		}
		var of overridesFile
		if err := yaml.Unmarshal(data, &of); err != nil {
			return nil, fmt.Errorf("parsing overrides file %s: %w", cfg.OverridesFile, err)
		}
		for _, o := range of.Units {
			r.overrides[types.Spec(o.Spec)] = o
		}
		r.log.Debug("Loaded unit overrides", "file", cfg.OverridesFile, "count", len(of.Units))
	}
	return r, nil
}

// GroupOption configures a Group at registration time.
type GroupOption func(*Group)

// GroupSetup appends group-scope setup hooks, run once before the first
// unit of the group.
func GroupSetup(hooks ...types.Hook) GroupOption {
	return func(g *Group) { g.groupSetup = append(g.groupSetup, hooks...) }
}

// GroupTeardown appends group-scope teardown hooks.
func GroupTeardown(hooks ...types.Hook) GroupOption {
	return func(g *Group) { g.groupTeardown = append(g.groupTeardown, hooks...) }
}

// UnitSetup appends unit-scope setup hooks, run before every unit of the
// group.
func UnitSetup(hooks ...types.Hook) GroupOption {
	return func(g *Group) { g.unitSetup = append(g.unitSetup, hooks...) }
}

// UnitTeardown appends unit-scope teardown hooks.
func UnitTeardown(hooks ...types.Hook) GroupOption {
	return func(g *Group) { g.unitTeardown = append(g.unitTeardown, hooks...) }
}

// NProcs marks every unit of the group as requiring n cooperating
// processes.
func NProcs(n int) GroupOption {
	return func(g *Group) { g.nprocs = n }
}

// Isolated marks every unit of the group as requiring out-of-process
// execution.
func Isolated() GroupOption {
	return func(g *Group) { g.isolated = true }
}

// Group returns the named group, creating it on first use.
func (r *Registry) Group(name string, opts ...GroupOption) *Group {
	r.mu.Lock()
	defer r.mu.Unlock()
	g, ok := r.groups[name]
	if !ok {
		g = &Group{name: name, reg: r, units: make(map[string]*unitDef)}
		r.groups[name] = g
		r.order = append(r.order, name)
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// UnitOption configures a single unit.
type UnitOption func(*unitDef)

// ExpectedFail marks the unit as expected to fail.
func ExpectedFail() UnitOption {
	return func(u *unitDef) { u.expectedFail = true }
}

// UnitNProcs overrides the group's cooperating-process count for one unit.
func UnitNProcs(n int) UnitOption {
	return func(u *unitDef) { u.nprocs = n }
}

// UnitIsolated forces out-of-process execution for one unit.
func UnitIsolated() UnitOption {
	return func(u *unitDef) { u.isolated = true }
}

// UnitTimeout bounds the unit's wall-clock time in out-of-process tiers.
func UnitTimeout(d time.Duration) UnitOption {
	return func(u *unitDef) { u.timeout = d }
}

// Unit registers a plain function unit.
func (g *Group) Unit(name string, body types.Body, opts ...UnitOption) *Group {
	g.add(&unitDef{name: name, body: body, nprocs: g.nprocs, isolated: g.isolated}, opts)
	return g
}

// GroupedUnit registers a unit that expands into named sub-cases.
func (g *Group) GroupedUnit(name string, subCases []types.SubCase, opts ...UnitOption) *Group {
	g.add(&unitDef{name: name, subCases: subCases, nprocs: g.nprocs, isolated: g.isolated}, opts)
	return g
}

func (g *Group) add(u *unitDef, opts []UnitOption) {
	for _, opt := range opts {
		opt(u)
	}
	g.reg.mu.Lock()
	defer g.reg.mu.Unlock()
	if _, dup := g.units[u.name]; dup {
		g.reg.log.Warn("Duplicate unit registration overwrites earlier one", "group", g.name, "unit", u.name)
	} else {
		g.order = append(g.order, u.name)
	}
	g.units[u.name] = u
}

// Specs returns every registered spec in registration order. This is the
// default Spec source when no replay list is supplied.
func (r *Registry) Specs() []types.Spec {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var specs []types.Spec
	for _, gname := range r.order {
		g := r.groups[gname]
		for _, uname := range g.order {
			specs = append(specs, types.Spec(gname+"."+uname))
		}
	}
	return specs
}

// SortedSpecs returns every registered spec in string order.
func (r *Registry) SortedSpecs() []types.Spec {
	specs := r.Specs()
	sort.Slice(specs, func(i, j int) bool { return specs[i] < specs[j] })
	return specs
}

// Resolve converts a spec string into an Executable. Any lookup fault is
// returned as an error value, never raised.
func (r *Registry) Resolve(spec types.Spec) (ex *types.Executable, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			ex = nil
			err = fmt.Errorf("resolving %q: %v", spec, rec)
		}
	}()

	r.mu.RLock()
	defer r.mu.RUnlock()

	gname := spec.Group()
	uname := spec.Unit()
	if gname == "" || uname == "" {
		return nil, fmt.Errorf("malformed spec %q: want <group>.<unit>", spec)
	}
	g, ok := r.groups[gname]
	if !ok {
		return nil, fmt.Errorf("unknown group %q in spec %q", gname, spec)
	}
	u, ok := g.units[uname]
	if !ok {
		return nil, fmt.Errorf("unknown unit %q in group %q", uname, gname)
	}

	ex = &types.Executable{
		Spec:          spec,
		Group:         gname,
		Body:          u.body,
		SubCases:      u.subCases,
		NProcs:        u.nprocs,
		Isolated:      u.isolated,
		ExpectedFail:  u.expectedFail,
		Timeout:       u.timeout,
		GroupSetup:    g.groupSetup,
		GroupTeardown: g.groupTeardown,
		UnitSetup:     g.unitSetup,
		UnitTeardown:  g.unitTeardown,
	}

	if o, ok := r.overrides[spec]; ok {
		if o.NProcs != nil {
			ex.NProcs = *o.NProcs
		}
		if o.Isolated != nil {
			ex.Isolated = *o.Isolated
		}
		if o.ExpectedFail != nil {
			ex.ExpectedFail = *o.ExpectedFail
		}
		if o.Timeout != nil {
			ex.Timeout = time.Duration(*o.Timeout)
		}
	}
	return ex, nil
}
