package box

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"boxrun/internal/domain"
)

// DefaultSuccessFlag is the code a callable returns to pass unless the
// project is configured otherwise.
const DefaultSuccessFlag = 0

// ProjectOption configures a ProjectBox.
type ProjectOption func(*ProjectBox)

func WithSuccessFlag(flag int) ProjectOption {
	return func(p *ProjectBox) { p.successFlag = flag }
}

// WithLogger sets the logger used for progress lines. A nil logger discards.
func WithLogger(log Logger) ProjectOption {
	return func(p *ProjectBox) {
		if log == nil {
			log = nopLogger{}
		}
		p.logger = log
	}
}

// WithHooks attaches hooks that run around every case and step.
func WithHooks(hooks ...Hook) ProjectOption {
	return func(p *ProjectBox) { p.hooks = append(p.hooks, hooks...) }
}

// WithRunID fixes the run id instead of generating one per run.
func WithRunID(id string) ProjectOption {
	return func(p *ProjectBox) { p.fixedRunID = id }
}

// WithName overrides the project name, which defaults to the base of the
// root path.
func WithName(name string) ProjectOption {
	return func(p *ProjectBox) { p.name = name }
}

// ProjectBox is the root of the tree. It owns configuration and the run loop.
//
// Run is the only writer of statuses and counters. Snapshot, Counters and
// the other read accessors may be called from any goroutine while Run is in
// flight.
type ProjectBox struct {
	rootPath    string
	name        string
	successFlag int
	logger      Logger
	hooks       []Hook
	fixedRunID  string

	mu       sync.Mutex
	features atomic.Pointer[[]*FeatureBox]
	setup    atomic.Pointer[CaseBox]
	teardown atomic.Pointer[CaseBox]

	running   atomic.Bool
	started   atomic.Bool
	runID     atomic.Pointer[string]
	startedAt atomic.Int64
	duration  atomic.Int64

	completed atomic.Int64
	passed    atomic.Int64
	failed    atomic.Int64
	errored   atomic.Int64
	skipped   atomic.Int64
	stale     atomic.Int64
}

// NewProjectBox builds an empty project anchored at rootPath.
func NewProjectBox(rootPath string, opts ...ProjectOption) *ProjectBox {
	p := &ProjectBox{
		rootPath:    rootPath,
		successFlag: DefaultSuccessFlag,
		logger:      nopLogger{},
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.name == "" {
		p.name = filepath.Base(filepath.Clean(rootPath))
	}
	return p
}

func (p *ProjectBox) RootPath() string { return p.rootPath }
func (p *ProjectBox) Name() string     { return p.name }
func (p *ProjectBox) SuccessFlag() int { return p.successFlag }
func (p *ProjectBox) Logger() Logger   { return p.logger }

// Running reports whether Run is in flight.
func (p *ProjectBox) Running() bool { return p.running.Load() }

func (p *ProjectBox) frozen() bool { return p.started.Load() }

func (p *ProjectBox) StartedAt() time.Time {
	if ns := p.startedAt.Load(); ns != 0 {
		return time.Unix(0, ns)
	}
	return time.Time{}
}

// RunID returns the id of the current or last run, or the fixed id.
func (p *ProjectBox) RunID() string {
	if id := p.runID.Load(); id != nil {
		return *id
	}
	return p.fixedRunID
}

// Duration is the live duration while running, the final one afterwards.
func (p *ProjectBox) Duration() time.Duration {
	if p.running.Load() {
		if ns := p.startedAt.Load(); ns != 0 {
			return time.Duration(time.Now().UnixNano() - ns)
		}
	}
	return time.Duration(p.duration.Load())
}

// Use attaches more hooks. It fails once a run has started.
func (p *ProjectBox) Use(hooks ...Hook) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.frozen() {
		return fmt.Errorf("project %s: use hooks: %w", p.name, ErrFrozen)
	}
	p.hooks = append(p.hooks, hooks...)
	return nil
}

// AddFeature appends f. Features with equal names are allowed.
func (p *ProjectBox) AddFeature(f *FeatureBox) error {
	if f == nil {
		return ErrNilFeature
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.frozen() {
		return fmt.Errorf("project %s: add feature %s: %w", p.name, f.name, ErrFrozen)
	}
	switch {
	case f.project == p:
		return fmt.Errorf("project %s: feature %s: %w", p.name, f.name, ErrAlreadyRegistered)
	case f.project != nil:
		return fmt.Errorf("project %s: feature %s: %w", p.name, f.name, ErrForeignFeature)
	}
	f.project = p

	features := p.loadFeatures()
	next := make([]*FeatureBox, len(features), len(features)+1)
	copy(next, features)
	next = append(next, f)
	p.features.Store(&next)
	return nil
}

// Features returns the registered features in registration order.
func (p *ProjectBox) Features() []*FeatureBox {
	return append([]*FeatureBox(nil), p.loadFeatures()...)
}

func (p *ProjectBox) loadFeatures() []*FeatureBox {
	if fs := p.features.Load(); fs != nil {
		return *fs
	}
	return nil
}

// Feature returns the first feature with the given name.
func (p *ProjectBox) Feature(name string) *FeatureBox {
	for _, f := range p.loadFeatures() {
		if f.name == name {
			return f
		}
	}
	return nil
}

// Case returns the first case with the given number across all features.
func (p *ProjectBox) Case(number string) *CaseBox {
	for _, f := range p.loadFeatures() {
		if c := f.Case(number); c != nil {
			return c
		}
	}
	return nil
}

// SetSetup installs a case that runs before every feature. When it does not
// pass, every case in the project is skipped.
func (p *ProjectBox) SetSetup(fn CaseFunc, opts ...CaseOption) (*CaseBox, error) {
	return p.setRole(&p.setup, roleSetup, fn, opts)
}

// SetTeardown installs a case that runs after every feature whenever the
// project setup passed.
func (p *ProjectBox) SetTeardown(fn CaseFunc, opts ...CaseOption) (*CaseBox, error) {
	return p.setRole(&p.teardown, roleTeardown, fn, opts)
}

func (p *ProjectBox) setRole(slot *atomic.Pointer[CaseBox], role string, fn CaseFunc, opts []CaseOption) (*CaseBox, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.frozen() {
		return nil, fmt.Errorf("project %s %s: %w", p.name, role, ErrFrozen)
	}
	c, err := NewCase(fn, append([]CaseOption{WithNumber(role)}, opts...)...)
	if err != nil {
		return nil, err
	}
	c.role = role
	c.project = p
	slot.Store(c)
	return c, nil
}

func (p *ProjectBox) Setup() *CaseBox    { return p.setup.Load() }
func (p *ProjectBox) Teardown() *CaseBox { return p.teardown.Load() }

// CaseCount is the number of regular cases in the tree.
func (p *ProjectBox) CaseCount() int {
	n := 0
	for _, f := range p.loadFeatures() {
		n += len(f.loadCases())
	}
	return n
}

// Run executes every case, feature by feature, in registration order and
// returns how many passed and how many did not. Errored cases count as not
// passed; skipped cases count in neither total. A fault inside one case never
// stops the loop.
//
// ctx is only consulted between cases. When it is cancelled the remaining
// cases stay Pending and Run returns ctx.Err() with the counts so far.
func (p *ProjectBox) Run(ctx context.Context) (passed, failed int, err error) {
	if !p.running.CompareAndSwap(false, true) {
		return 0, 0, fmt.Errorf("project %s: %w", p.name, ErrRunInProgress)
	}
	defer p.running.Store(false)

	p.mu.Lock()
	if p.started.Load() {
		p.mu.Unlock()
		return 0, 0, fmt.Errorf("project %s: %w", p.name, ErrAlreadyRun)
	}
	p.started.Store(true)
	p.mu.Unlock()

	id := p.fixedRunID
	if id == "" {
		id = uuid.NewString()
	}
	p.runID.Store(&id)
	start := time.Now()
	p.startedAt.Store(start.UnixNano())
	defer func() {
		p.duration.Store(int64(time.Since(start)))
	}()

	features := p.loadFeatures()
	total := p.CaseCount()
	p.logger.Infof("==> project %s run %s: %d features, %d cases (success flag %d)",
		p.name, id, len(features), total, p.successFlag)

	if total == 0 {
		p.logger.Warnf("project %s has no cases", p.name)
		return 0, 0, nil
	}

	if setup := p.setup.Load(); setup != nil {
		if status, _ := setup.execute(); status != domain.StatusPassed {
			reason := fmt.Sprintf("project setup %s", status)
			p.logger.Errorf("%s, skipping %d cases", reason, total)
			for _, f := range features {
				for _, c := range f.allCases() {
					if c.role != "" {
						c.state.skip(reason)
					}
				}
				p.skipCases(f.loadCases(), reason)
			}
			if t := p.teardown.Load(); t != nil {
				t.state.skip(reason)
			}
			return 0, 0, nil
		}
	}

	for _, f := range features {
		if err = f.run(ctx, p); err != nil {
			break
		}
	}

	if t := p.teardown.Load(); t != nil {
		if status, _ := t.execute(); status != domain.StatusPassed {
			p.logger.Warnf("project teardown %s", status)
		}
	}

	if n := p.stale.Load(); n > 0 {
		p.logger.Warnf("project %s: %d cases had already run and were not counted", p.name, n)
	}
	c := p.Counters()
	p.logger.Infof("==> project %s done in %s: %d passed, %d failed (%d errored), %d skipped",
		p.name, time.Since(start).Round(time.Millisecond), c.Passed, c.Failed, c.Errored, c.Skipped)
	return c.Passed, c.Failed, err
}

// record accounts for one finished case. The case status is already terminal
// when record runs; completed is bumped last so a reader that loads it first
// never sees more completions than terminal cases.
func (p *ProjectBox) record(status domain.Status) {
	switch status {
	case domain.StatusPassed:
		p.passed.Add(1)
	case domain.StatusFailed:
		p.failed.Add(1)
	case domain.StatusErrored:
		p.failed.Add(1)
		p.errored.Add(1)
	case domain.StatusSkipped:
		p.skipped.Add(1)
	default:
		return
	}
	p.completed.Add(1)
}

func (p *ProjectBox) skipCases(cases []*CaseBox, reason string) {
	for _, c := range cases {
		if c.state.skip(reason) {
			p.logger.Infof("case %s skipped: %s", c.number, reason)
			p.record(domain.StatusSkipped)
		}
	}
}

// Stale is the number of cases the last run found already executed and left
// out of the counters. Reset them before running the project.
func (p *ProjectBox) Stale() int { return int(p.stale.Load()) }

// Counters returns the running totals. Completed is loaded first, and
// errored before failed, so each total is never behind the ones loaded
// before it.
func (p *ProjectBox) Counters() domain.Counters {
	var c domain.Counters
	c.Completed = int(p.completed.Load())
	c.Errored = int(p.errored.Load())
	c.Failed = int(p.failed.Load())
	c.Passed = int(p.passed.Load())
	c.Skipped = int(p.skipped.Load())
	return c
}

// RunningCases returns the cases executing right now. With a sequential run
// this is at most one case.
func (p *ProjectBox) RunningCases() []*CaseBox {
	var running []*CaseBox
	if s := p.setup.Load(); s != nil && s.Status() == domain.StatusRunning {
		running = append(running, s)
	}
	for _, f := range p.loadFeatures() {
		running = append(running, f.RunningCases()...)
	}
	if t := p.teardown.Load(); t != nil && t.Status() == domain.StatusRunning {
		running = append(running, t)
	}
	return running
}

// Reset returns every node to Pending and clears the counters so the tree
// can be run again.
func (p *ProjectBox) Reset() error {
	if p.running.Load() {
		return fmt.Errorf("project %s: reset: %w", p.name, ErrRunInProgress)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if s := p.setup.Load(); s != nil {
		s.Reset()
	}
	for _, f := range p.loadFeatures() {
		f.reset()
	}
	if t := p.teardown.Load(); t != nil {
		t.Reset()
	}
	p.completed.Store(0)
	p.passed.Store(0)
	p.failed.Store(0)
	p.errored.Store(0)
	p.skipped.Store(0)
	p.stale.Store(0)
	p.startedAt.Store(0)
	p.duration.Store(0)
	p.runID.Store(nil)
	p.started.Store(false)
	return nil
}
