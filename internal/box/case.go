package box

import (
	"fmt"
	"reflect"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"boxrun/internal/domain"
)

// CaseFunc is the callable wrapped by a CaseBox.
type CaseFunc func() (int, error)

// CaseOption configures a CaseBox.
type CaseOption func(*CaseBox)

// WithNumber sets the case number. It defaults to the callable's name.
func WithNumber(number string) CaseOption {
	return func(c *CaseBox) { c.number = number }
}

func WithTitle(title string) CaseOption {
	return func(c *CaseBox) { c.title = title }
}

// WithLabels attaches descriptive tags. Labels never affect execution.
func WithLabels(labels ...string) CaseOption {
	return func(c *CaseBox) { c.labels = append([]string(nil), labels...) }
}

// WithCaseHooks attaches hooks that run after the project's own hooks.
func WithCaseHooks(hooks ...Hook) CaseOption {
	return func(c *CaseBox) { c.hooks = append(c.hooks, hooks...) }
}

// WithSkip marks the case as skipped: a run records it as Skipped with
// reason instead of invoking it. Setup and teardown cases ignore it.
func WithSkip(reason string) CaseOption {
	return func(c *CaseBox) {
		if reason == "" {
			reason = "marked skip"
		}
		c.skipReason = reason
	}
}

// WithLoop runs the case body n times, stopping at the first iteration that
// does not pass. Values below 1 mean once.
func WithLoop(n int) CaseOption {
	return func(c *CaseBox) { c.loop = n }
}

const (
	roleSetup    = "setup"
	roleTeardown = "teardown"
)

// CaseBox is one test case: a callable plus its status and steps.
type CaseBox struct {
	fn     CaseFunc
	number string
	title  string
	labels []string
	hooks  []Hook
	role   string

	skipReason string
	loop       int

	// back-references, set once on registration
	feature *FeatureBox
	project *ProjectBox

	state      nodeState
	softFailed atomic.Bool
	softReason atomic.Pointer[string]
	output     atomic.Pointer[string]
	data       sync.Map

	mu      sync.Mutex
	steps   atomic.Pointer[[]*StepBox]
	rewinds atomic.Int64
}

// NewCase builds a detached case. Register it with FeatureBox.AddCase.
func NewCase(fn CaseFunc, opts ...CaseOption) (*CaseBox, error) {
	if fn == nil {
		return nil, ErrNilFunc
	}
	c := &CaseBox{fn: fn}
	for _, opt := range opts {
		opt(c)
	}
	if c.number == "" {
		c.number = funcName(fn)
	}
	return c, nil
}

// NewCaseBox builds a case and registers it with feature.
func NewCaseBox(fn CaseFunc, feature *FeatureBox, opts ...CaseOption) (*CaseBox, error) {
	if feature == nil {
		return nil, ErrNilFeature
	}
	c, err := NewCase(fn, opts...)
	if err != nil {
		return nil, err
	}
	if err := feature.AddCase(c); err != nil {
		return nil, err
	}
	return c, nil
}

func funcName(fn any) string {
	f := runtime.FuncForPC(reflect.ValueOf(fn).Pointer())
	if f == nil {
		return "case"
	}
	name := f.Name()
	if i := strings.LastIndex(name, "/"); i >= 0 {
		name = name[i+1:]
	}
	if i := strings.Index(name, "."); i >= 0 {
		name = name[i+1:]
	}
	return name
}

func (c *CaseBox) Number() string { return c.number }
func (c *CaseBox) Title() string  { return c.title }

func (c *CaseBox) Labels() []string {
	return append([]string(nil), c.labels...)
}

// FullName renders "TestCase: <number>, <title>".
func (c *CaseBox) FullName() string {
	if c.title == "" {
		return "TestCase: " + c.number
	}
	return fmt.Sprintf("TestCase: %s, %s", c.number, c.title)
}

func (c *CaseBox) Feature() *FeatureBox { return c.feature }

// Skipped reports whether the case was marked with WithSkip.
func (c *CaseBox) Skipped() bool { return c.skipReason != "" && c.role == "" }

// Loop is the number of times the case body runs per execution.
func (c *CaseBox) Loop() int { return max(c.loop, 1) }

// Project returns the owning project, or nil for a detached case.
func (c *CaseBox) Project() *ProjectBox {
	if c.project != nil {
		return c.project
	}
	if c.feature != nil {
		return c.feature.project
	}
	return nil
}

func (c *CaseBox) Status() domain.Status { return c.state.load() }

// Err returns the fault recorded by the last execution, if any.
func (c *CaseBox) Err() error { return c.state.err() }

func (c *CaseBox) StartedAt() time.Time { return c.state.startTime() }

func (c *CaseBox) Duration() time.Duration { return c.state.elapsed(c.Status()) }

// Steps returns the registered steps in registration order.
func (c *CaseBox) Steps() []*StepBox {
	if p := c.steps.Load(); p != nil {
		return append([]*StepBox(nil), (*p)...)
	}
	return nil
}

func (c *CaseBox) loadSteps() []*StepBox {
	if p := c.steps.Load(); p != nil {
		return *p
	}
	return nil
}

// Step returns the first step with the given name.
func (c *CaseBox) Step(name string) *StepBox {
	for _, s := range c.loadSteps() {
		if s.Name() == name {
			return s
		}
	}
	return nil
}

// RunningStep returns the step currently executing, if any.
func (c *CaseBox) RunningStep() *StepBox {
	for _, s := range c.loadSteps() {
		if s.Status() == domain.StatusRunning {
			return s
		}
	}
	return nil
}

// Set stores a value in the case's data space, shared by its steps.
func (c *CaseBox) Set(key string, value any) { c.data.Store(key, value) }

func (c *CaseBox) Get(key string) (any, bool) { return c.data.Load(key) }

// AppendOutput adds captured text to the case output shown in reports.
func (c *CaseBox) AppendOutput(text string) {
	if text == "" {
		return
	}
	next := text
	if prev := c.output.Load(); prev != nil {
		next = *prev + text
	}
	c.output.Store(&next)
}

func (c *CaseBox) Output() string {
	if p := c.output.Load(); p != nil {
		return *p
	}
	return ""
}

// AddStep registers a step for direct invocation through RunStep.
func (c *CaseBox) AddStep(label string, fn StepFunc, opts ...StepOption) (*StepBox, error) {
	if fn == nil {
		return nil, ErrNilFunc
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	steps := c.loadSteps()
	s := &StepBox{caseBox: c, label: labelFor(label, steps), fn: fn}
	s.index.Store(int32(len(steps)))
	for _, opt := range opts {
		opt(s)
	}
	if err := c.checkStepName(steps, s.Name()); err != nil {
		return nil, err
	}
	c.publishStep(steps, s)
	return s, nil
}

func (c *CaseBox) checkStepName(steps []*StepBox, name string) error {
	for _, existing := range steps {
		if existing.Name() == name {
			return fmt.Errorf("case %s step %s: %w", c.number, name, ErrDuplicateStep)
		}
	}
	return nil
}

// publishStep appends s to a fresh copy of steps. Callers hold c.mu.
func (c *CaseBox) publishStep(steps []*StepBox, s *StepBox) {
	next := make([]*StepBox, len(steps), len(steps)+1)
	copy(next, steps)
	next = append(next, s)
	c.steps.Store(&next)
}

// BeginStep opens a scoped step, already Running. Close it with a deferred
// Scope.End. If the step name is already used in the case nothing is
// recorded: the scope has no step, and Err and End report ErrDuplicateStep.
func (c *CaseBox) BeginStep(label string) *Scope {
	c.mu.Lock()
	steps := c.loadSteps()
	s := &StepBox{caseBox: c, label: labelFor(label, steps), scoped: true}
	s.index.Store(int32(len(steps)))
	if err := c.checkStepName(steps, s.Name()); err != nil {
		c.mu.Unlock()
		c.logger().Errorf("    step %s rejected: %v", s.Name(), err)
		return &Scope{err: err}
	}
	s.state.begin(time.Now())
	c.publishStep(steps, s)
	c.mu.Unlock()

	beforeStep(c.logger(), c.allHooks(), s.info())
	c.logger().Infof("    -> step %s (case %s)", s.label, c.number)
	return &Scope{step: s}
}

// WithStep runs fn inside a scoped step. A returned error or a panic is
// recorded on the step and returned as a *FaultError. fn is not called when
// the step name is already taken in this case.
func (c *CaseBox) WithStep(label string, fn func() error) (err error) {
	sc := c.BeginStep(label)
	if sc.Err() != nil {
		return sc.Err()
	}
	defer sc.End(&err)
	return fn()
}

// Run executes the case outside a project run and returns its terminal
// status. It does not touch the project counters. Running a case that has
// already left Pending returns its current status without invoking it.
func (c *CaseBox) Run() domain.Status {
	status, _ := c.execute()
	return status
}

// Reset returns the case and its registered steps to Pending and drops
// steps created by BeginStep.
func (c *CaseBox) Reset() {
	c.rewindSteps()
	c.softFailed.Store(false)
	c.softReason.Store(nil)
	c.output.Store(nil)
	c.state.reset()
}

// rewindSteps returns registered steps to Pending and drops scoped ones.
func (c *CaseBox) rewindSteps() {
	c.mu.Lock()
	defer c.mu.Unlock()
	var kept []*StepBox
	for _, s := range c.loadSteps() {
		if s.scoped {
			continue
		}
		s.index.Store(int32(len(kept)))
		s.Reset()
		kept = append(kept, s)
	}
	c.steps.Store(&kept)
	c.rewinds.Add(1)
}

func (c *CaseBox) softFail(reason string) {
	c.softReason.Store(&reason)
	c.softFailed.Store(true)
}

// execute runs the case once per loop. A case marked with WithSkip is moved
// straight from Pending to Skipped.
func (c *CaseBox) execute() (domain.Status, error) {
	if c.Skipped() && c.state.skip(c.skipReason) {
		c.logger().Infof("case %s skipped: %s", c.number, c.skipReason)
		return domain.StatusSkipped, nil
	}
	if !c.state.begin(time.Now()) {
		return c.Status(), fmt.Errorf("case %s is %s: %w", c.number, c.Status(), ErrAlreadyRun)
	}
	c.softFailed.Store(false)
	c.softReason.Store(nil)

	log := c.logger()
	hooks := c.allHooks()
	info := c.info()
	flag := c.successFlag()

	beforeCase(log, hooks, info)
	tag := ""
	if c.role != "" {
		tag = "(" + c.role + ") "
	}
	log.Infof("--> case %s%s", tag, c.FullName())

	var (
		code   int
		fault  *FaultError
		status domain.Status
	)
	loops := c.Loop()
	for i := 1; i <= loops; i++ {
		if loops > 1 {
			if i > 1 {
				c.rewindSteps()
			}
			log.Infof("case %s loop %d/%d", c.number, i, loops)
		}
		code, fault = invoke(c.number, c.fn)
		status = decide(code, fault, flag)
		if status != domain.StatusPassed || c.softFailed.Load() {
			break
		}
	}

	var msg string
	switch status {
	case domain.StatusErrored:
		msg = fault.Error()
		log.Errorf("case %s errored: %s", c.number, msg)
		if fault.Panicked() {
			log.Debugf("%s", fault.Stack)
		}
	case domain.StatusFailed:
		msg = failMessage(code, flag)
		log.Errorf("case %s failed: %s", c.number, msg)
	case domain.StatusPassed:
		if c.softFailed.Load() {
			status = domain.StatusFailed
			if r := c.softReason.Load(); r != nil {
				msg = *r
			}
			log.Errorf("case %s failed: %s", c.number, msg)
		} else {
			log.Infof("case %s passed", c.number)
		}
	}
	c.state.finish(status, msg, fault)
	afterCase(log, hooks, info, status, asError(fault))
	return status, asError(fault)
}

func (c *CaseBox) info() CaseInfo {
	info := CaseInfo{
		Number: c.number,
		Title:  c.title,
		Labels: c.labels,
		Role:   c.role,
	}
	if c.feature != nil {
		info.Feature = c.feature.name
	}
	if p := c.Project(); p != nil {
		info.Project = p.name
		info.RunID = p.RunID()
	}
	return info
}

func (c *CaseBox) logger() Logger {
	if p := c.Project(); p != nil {
		return p.logger
	}
	return nopLogger{}
}

func (c *CaseBox) successFlag() int {
	if p := c.Project(); p != nil {
		return p.successFlag
	}
	return DefaultSuccessFlag
}

func (c *CaseBox) allHooks() []Hook {
	p := c.Project()
	if p == nil || len(p.hooks) == 0 {
		return c.hooks
	}
	if len(c.hooks) == 0 {
		return p.hooks
	}
	all := make([]Hook, 0, len(p.hooks)+len(c.hooks))
	all = append(all, p.hooks...)
	return append(all, c.hooks...)
}
