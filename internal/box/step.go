package box

import (
	"fmt"
	"runtime/debug"
	"sync/atomic"
	"time"

	"boxrun/internal/domain"
)

// StepFunc is the callable wrapped by a StepBox.
type StepFunc func(args ...any) (int, error)

// StepOption configures a StepBox.
type StepOption func(*StepBox)

// ContinueOnFault keeps a step fault from propagating. The step is still
// recorded Errored, RunStep returns a nil error, and the owning case can no
// longer pass: a case whose callable returns the success flag is Failed.
func ContinueOnFault() StepOption {
	return func(s *StepBox) { s.continueOnFault = true }
}

// StepBox is one tracked step of a case.
type StepBox struct {
	caseBox         *CaseBox
	label           StepLabel
	index           atomic.Int32 // position in the case, renumbered on rewind
	fn              StepFunc
	continueOnFault bool
	scoped          bool

	state nodeState
}

func (s *StepBox) Case() *CaseBox { return s.caseBox }

// Index is the step's position within its case, starting at 0.
func (s *StepBox) Index() int { return int(s.index.Load()) }

func (s *StepBox) Name() string        { return s.label.Name() }
func (s *StepBox) Label() StepLabel    { return s.label }
func (s *StepBox) Description() string { return s.label.Description }
func (s *StepBox) Status() domain.Status {
	return s.state.load()
}

// Err returns the fault recorded by the last execution, if any.
func (s *StepBox) Err() error { return s.state.err() }

func (s *StepBox) StartedAt() time.Time { return s.state.startTime() }

func (s *StepBox) Duration() time.Duration { return s.state.elapsed(s.Status()) }

// Reset returns the step to Pending so it can be run again.
func (s *StepBox) Reset() { s.state.reset() }

func (s *StepBox) path() string {
	return s.caseBox.Number() + "/" + s.Name()
}

func (s *StepBox) info() StepInfo {
	return StepInfo{
		Case:  s.caseBox.info(),
		Index: s.Index(),
		Name:  s.Name(),
		Label: s.label.Raw,
	}
}

// RunStep invokes the wrapped callable with args and records its outcome.
// A fault is returned to the caller as a *FaultError unless the step was
// built with ContinueOnFault.
func (s *StepBox) RunStep(args ...any) (int, error) {
	if s.fn == nil {
		return 0, fmt.Errorf("step %s: %w", s.path(), ErrNilFunc)
	}
	if !s.state.begin(time.Now()) {
		return 0, fmt.Errorf("step %s is %s: %w", s.path(), s.Status(), ErrAlreadyRun)
	}
	c := s.caseBox
	log := c.logger()
	hooks := c.allHooks()
	info := s.info()
	flag := c.successFlag()

	beforeStep(log, hooks, info)
	log.Infof("    -> step %s (case %s)", s.label, c.Number())

	code, fault := invoke(s.path(), func() (int, error) { return s.fn(args...) })
	status := decide(code, fault, flag)
	s.complete(status, code, flag, fault)
	afterStep(log, hooks, info, status, asError(fault))

	if fault == nil {
		return code, nil
	}
	if s.continueOnFault {
		c.softFail(fmt.Sprintf("step %s faulted: %v", s.Name(), fault.Err))
		log.Warnf("    step %s continued after fault", s.Name())
		return code, nil
	}
	return code, fault
}

func (s *StepBox) complete(status domain.Status, code, flag int, fault *FaultError) {
	var msg string
	log := s.caseBox.logger()
	switch status {
	case domain.StatusErrored:
		msg = fault.Error()
		log.Errorf("    step %s errored: %s", s.Name(), msg)
		if fault.Panicked() {
			log.Debugf("%s", fault.Stack)
		}
	case domain.StatusFailed:
		msg = failMessage(code, flag)
		log.Warnf("    step %s failed: %s", s.Name(), msg)
	default:
		log.Debugf("    step %s passed", s.Name())
	}
	s.state.finish(status, msg, fault)
}

// Scope is a step opened with CaseBox.BeginStep. It must be closed with a
// deferred call to End.
type Scope struct {
	step    *StepBox
	failMsg string
	failed  bool
	ended   bool
	err     error // set when the scope was rejected at BeginStep
}

// Step returns the StepBox tracked by the scope, nil for a rejected scope.
func (sc *Scope) Step() *StepBox { return sc.step }

// Err reports why BeginStep rejected the scope.
func (sc *Scope) Err() error { return sc.err }

// Fail marks the step Failed if the scope ends without a fault.
func (sc *Scope) Fail(format string, args ...interface{}) {
	sc.failed = true
	sc.failMsg = fmt.Sprintf(format, args...)
}

// End finalizes the step and must be deferred directly:
//
//	s := c.BeginStep("step2: log in")
//	defer s.End(&err)
//
// A non-nil *errp or a panic records Errored. The fault is stored back into
// *errp as a *FaultError; with a nil errp a panic is re-raised after it has
// been recorded.
func (sc *Scope) End(errp *error) {
	r := recover()
	if sc.ended {
		if r != nil {
			panic(r)
		}
		return
	}
	sc.ended = true

	if sc.err != nil {
		if r != nil {
			panic(r)
		}
		if errp != nil && *errp == nil {
			*errp = sc.err
		}
		return
	}

	s := sc.step
	c := s.caseBox
	var fault *FaultError
	switch {
	case r != nil:
		fault = &FaultError{Node: s.path(), Panic: r, Stack: debug.Stack()}
	case errp != nil && *errp != nil:
		fault = &FaultError{Node: s.path(), Err: *errp}
	}

	status := domain.StatusPassed
	switch {
	case fault != nil:
		status = domain.StatusErrored
		c.logger().Errorf("    step %s errored: %s", s.Name(), fault.Error())
		s.state.finish(status, fault.Error(), fault)
	case sc.failed:
		status = domain.StatusFailed
		c.logger().Warnf("    step %s failed: %s", s.Name(), sc.failMsg)
		s.state.finish(status, sc.failMsg, nil)
	default:
		c.logger().Debugf("    step %s passed", s.Name())
		s.state.finish(status, "", nil)
	}
	afterStep(c.logger(), c.allHooks(), s.info(), status, asError(fault))

	if fault == nil {
		return
	}
	if errp != nil {
		*errp = fault
		return
	}
	if r != nil {
		panic(r)
	}
}
