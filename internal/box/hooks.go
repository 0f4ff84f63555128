package box

import "boxrun/internal/domain"

// Hook is anything attached around case or step execution. A hook
// participates by implementing one or more of BeforeHook, AfterHook,
// StepBeforeHook and StepAfterHook.
type Hook interface {
	Name() string
}

// BeforeHook runs before a case callable is invoked.
type BeforeHook interface {
	Hook
	BeforeCase(info CaseInfo)
}

// AfterHook runs once a case has reached its terminal status.
type AfterHook interface {
	Hook
	AfterCase(info CaseInfo, status domain.Status, err error)
}

// StepBeforeHook runs before a step body executes.
type StepBeforeHook interface {
	Hook
	BeforeStep(info StepInfo)
}

// StepAfterHook runs once a step has reached its terminal status.
type StepAfterHook interface {
	Hook
	AfterStep(info StepInfo, status domain.Status, err error)
}

// CaseInfo identifies a case to hooks.
type CaseInfo struct {
	RunID   string
	Project string
	Feature string
	Number  string
	Title   string
	Labels  []string
	Role    string // "setup", "teardown" or empty for regular cases
}

// StepInfo identifies a step to hooks.
type StepInfo struct {
	Case  CaseInfo
	Index int
	Name  string
	Label string
}

// callHook invokes fn, logging and discarding a panic so that a broken hook
// never changes an outcome.
func callHook(log Logger, h Hook, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			log.Warnf("hook %s panicked: %v", h.Name(), r)
		}
	}()
	fn()
}

func beforeCase(log Logger, hooks []Hook, info CaseInfo) {
	for _, h := range hooks {
		if bh, ok := h.(BeforeHook); ok {
			callHook(log, h, func() { bh.BeforeCase(info) })
		}
	}
}

func afterCase(log Logger, hooks []Hook, info CaseInfo, status domain.Status, err error) {
	for _, h := range hooks {
		if ah, ok := h.(AfterHook); ok {
			callHook(log, h, func() { ah.AfterCase(info, status, err) })
		}
	}
}

func beforeStep(log Logger, hooks []Hook, info StepInfo) {
	for _, h := range hooks {
		if bh, ok := h.(StepBeforeHook); ok {
			callHook(log, h, func() { bh.BeforeStep(info) })
		}
	}
}

func afterStep(log Logger, hooks []Hook, info StepInfo, status domain.Status, err error) {
	for _, h := range hooks {
		if ah, ok := h.(StepAfterHook); ok {
			callHook(log, h, func() { ah.AfterStep(info, status, err) })
		}
	}
}
