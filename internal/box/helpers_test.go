package box

import (
	"errors"
	"fmt"
	"sync"

	"boxrun/internal/domain"
)

var errBoom = errors.New("boom")

func pass() (int, error)  { return 0, nil }
func fail() (int, error)  { return 1, nil }
func fault() (int, error) { return 0, errBoom }
func crash() (int, error) { panic("kaboom") }

func stepPass(...any) (int, error)  { return 0, nil }
func stepFail(...any) (int, error)  { return 3, nil }
func stepFault(...any) (int, error) { return 0, errBoom }

// recLogger keeps every formatted line, prefixed with its level.
type recLogger struct {
	mu    sync.Mutex
	lines []string
}

func (l *recLogger) add(level, format string, args ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lines = append(l.lines, level+" "+fmt.Sprintf(format, args...))
}

func (l *recLogger) Debugf(format string, args ...interface{}) { l.add("DEBUG", format, args...) }
func (l *recLogger) Infof(format string, args ...interface{})  { l.add("INFO", format, args...) }
func (l *recLogger) Warnf(format string, args ...interface{})  { l.add("WARN", format, args...) }
func (l *recLogger) Errorf(format string, args ...interface{}) { l.add("ERROR", format, args...) }

func (l *recLogger) all() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.lines...)
}

// recHook records every callback it receives.
type recHook struct {
	name   string
	mu     sync.Mutex
	events []string
}

func (h *recHook) Name() string { return h.name }

func (h *recHook) record(e string) {
	h.mu.Lock()
	h.events = append(h.events, e)
	h.mu.Unlock()
}

func (h *recHook) BeforeCase(info CaseInfo) { h.record(h.name + ":before:" + info.Number) }

func (h *recHook) AfterCase(info CaseInfo, status domain.Status, err error) {
	h.record(h.name + ":after:" + info.Number + ":" + status.String())
}

func (h *recHook) BeforeStep(info StepInfo) { h.record(h.name + ":step-before:" + info.Name) }

func (h *recHook) AfterStep(info StepInfo, status domain.Status, err error) {
	h.record(h.name + ":step-after:" + info.Name + ":" + status.String())
}

func (h *recHook) got() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.events...)
}

type panicHook struct{}

func (panicHook) Name() string        { return "panicky" }
func (panicHook) BeforeCase(CaseInfo) { panic("hook exploded") }
