package box

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"boxrun/internal/domain"
)

// FeatureBox groups cases, conventionally one per module or subdirectory.
type FeatureBox struct {
	name    string
	project *ProjectBox

	mu       sync.Mutex
	cases    atomic.Pointer[[]*CaseBox]
	setup    atomic.Pointer[CaseBox]
	teardown atomic.Pointer[CaseBox]
}

// NewFeature builds a detached feature. Register it with ProjectBox.AddFeature.
func NewFeature(name string) *FeatureBox {
	return &FeatureBox{name: name}
}

// NewFeatureBox builds a feature and registers it with project.
func NewFeatureBox(name string, project *ProjectBox) (*FeatureBox, error) {
	if project == nil {
		return nil, ErrNilProject
	}
	f := NewFeature(name)
	if err := project.AddFeature(f); err != nil {
		return nil, err
	}
	return f, nil
}

func (f *FeatureBox) Name() string { return f.name }

func (f *FeatureBox) Project() *ProjectBox { return f.project }

// AddCase appends c to the feature. Cases with equal numbers are allowed;
// adding the same CaseBox twice, or one owned elsewhere, is rejected.
//
// The project lock is held across the frozen check and the append, so a
// case is either seen by a starting Run or rejected with ErrFrozen.
func (f *FeatureBox) AddCase(c *CaseBox) error {
	if c == nil {
		return ErrNilCase
	}
	if p := f.project; p != nil {
		p.mu.Lock()
		defer p.mu.Unlock()
		if p.frozen() {
			return fmt.Errorf("feature %s: add case %s: %w", f.name, c.number, ErrFrozen)
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	switch {
	case c.feature == f:
		return fmt.Errorf("feature %s: case %s: %w", f.name, c.number, ErrAlreadyRegistered)
	case c.feature != nil || c.project != nil:
		return fmt.Errorf("feature %s: case %s: %w", f.name, c.number, ErrForeignCase)
	}
	c.feature = f

	cases := f.loadCases()
	next := make([]*CaseBox, len(cases), len(cases)+1)
	copy(next, cases)
	next = append(next, c)
	f.cases.Store(&next)
	return nil
}

// Cases returns the registered cases in registration order.
func (f *FeatureBox) Cases() []*CaseBox {
	return append([]*CaseBox(nil), f.loadCases()...)
}

func (f *FeatureBox) loadCases() []*CaseBox {
	if p := f.cases.Load(); p != nil {
		return *p
	}
	return nil
}

// Case returns the first case with the given number.
func (f *FeatureBox) Case(number string) *CaseBox {
	for _, c := range f.loadCases() {
		if c.number == number {
			return c
		}
	}
	return nil
}

// SetSetup installs a case that runs before the feature's cases. When it
// does not pass, the feature's cases are skipped.
func (f *FeatureBox) SetSetup(fn CaseFunc, opts ...CaseOption) (*CaseBox, error) {
	return f.setRole(&f.setup, roleSetup, fn, opts)
}

// SetTeardown installs a case that runs after the feature's cases whenever
// the setup passed.
func (f *FeatureBox) SetTeardown(fn CaseFunc, opts ...CaseOption) (*CaseBox, error) {
	return f.setRole(&f.teardown, roleTeardown, fn, opts)
}

func (f *FeatureBox) setRole(slot *atomic.Pointer[CaseBox], role string, fn CaseFunc, opts []CaseOption) (*CaseBox, error) {
	if p := f.project; p != nil {
		p.mu.Lock()
		defer p.mu.Unlock()
		if p.frozen() {
			return nil, fmt.Errorf("feature %s %s: %w", f.name, role, ErrFrozen)
		}
	}
	c, err := NewCase(fn, append([]CaseOption{WithNumber(f.name + "." + role)}, opts...)...)
	if err != nil {
		return nil, err
	}
	c.role = role
	c.feature = f
	slot.Store(c)
	return c, nil
}

func (f *FeatureBox) Setup() *CaseBox    { return f.setup.Load() }
func (f *FeatureBox) Teardown() *CaseBox { return f.teardown.Load() }

// Counts scans the feature's cases. Setup and teardown are not counted.
func (f *FeatureBox) Counts() domain.Counts {
	var n domain.Counts
	for _, c := range f.loadCases() {
		n.Add(c.Status())
	}
	return n
}

// RunningCases returns the cases, setup and teardown included, that are
// executing right now.
func (f *FeatureBox) RunningCases() []*CaseBox {
	var running []*CaseBox
	for _, c := range f.allCases() {
		if c.Status() == domain.StatusRunning {
			running = append(running, c)
		}
	}
	return running
}

func (f *FeatureBox) allCases() []*CaseBox {
	cases := f.loadCases()
	all := make([]*CaseBox, 0, len(cases)+2)
	if s := f.setup.Load(); s != nil {
		all = append(all, s)
	}
	all = append(all, cases...)
	if t := f.teardown.Load(); t != nil {
		all = append(all, t)
	}
	return all
}

// run executes the feature's cases in order, recording each outcome on the
// project. A cancelled ctx stops scheduling; the remaining cases stay Pending.
// A case that already left Pending, for instance through a direct
// CaseBox.Run, is reported and left out of the counters.
func (f *FeatureBox) run(ctx context.Context, p *ProjectBox) error {
	cases := f.loadCases()
	if len(cases) == 0 {
		return nil
	}
	p.logger.Infof("==> feature %s (%d cases)", f.name, len(cases))

	if setup := f.setup.Load(); setup != nil {
		if err := ctx.Err(); err != nil {
			return err
		}
		if status, _ := setup.execute(); status != domain.StatusPassed {
			reason := fmt.Sprintf("feature %s setup %s", f.name, status)
			p.logger.Warnf("%s, skipping %d cases", reason, len(cases))
			p.skipCases(cases, reason)
			if t := f.teardown.Load(); t != nil {
				t.state.skip(reason)
			}
			return nil
		}
	}

	var err error
	for _, c := range cases {
		if err = ctx.Err(); err != nil {
			p.logger.Warnf("feature %s interrupted: %v", f.name, err)
			break
		}
		status, cerr := c.execute()
		if errors.Is(cerr, ErrAlreadyRun) {
			p.logger.Warnf("case %s not run: %v", c.number, cerr)
			p.stale.Add(1)
			continue
		}
		p.record(status)
	}

	if t := f.teardown.Load(); t != nil {
		if status, _ := t.execute(); status != domain.StatusPassed {
			p.logger.Warnf("feature %s teardown %s", f.name, status)
		}
	}
	return err
}

func (f *FeatureBox) reset() {
	for _, c := range f.allCases() {
		c.Reset()
	}
}
