package execution

import (
	"context"
	"errors"
	"time"

	"boxrun/internal/box"
	"boxrun/internal/domain"
)

// Executor runs a suite and returns its report
type Executor interface {
	Execute(ctx context.Context, project *box.ProjectBox) (Report, error)
}

// Observer receives snapshots of the tree while a run is in flight.
type Observer interface {
	Observe(snap domain.ProjectSnapshot)
}

// Finisher is implemented by observers that want the final snapshot.
type Finisher interface {
	Finish(snap domain.ProjectSnapshot)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(domain.ProjectSnapshot)

func (f ObserverFunc) Observe(snap domain.ProjectSnapshot) { f(snap) }

// Report summarises a finished run.
type Report struct {
	Passed      int
	Failed      int
	Duration    time.Duration
	Interrupted bool
	Snapshot    domain.ProjectSnapshot
}

// SuiteExecutor runs a project on the calling goroutine while a monitor
// goroutine samples Snapshot for the observers.
type SuiteExecutor struct {
	interval  time.Duration
	observers []Observer
	log       box.Logger
}

// NewSuiteExecutor creates a SuiteExecutor sampling every interval.
func NewSuiteExecutor(interval time.Duration, log box.Logger, observers ...Observer) *SuiteExecutor {
	if interval <= 0 {
		interval = 500 * time.Millisecond
	}
	return &SuiteExecutor{interval: interval, observers: observers, log: log}
}

// AddObserver registers another observer. It must be called before Execute.
func (e *SuiteExecutor) AddObserver(o Observer) {
	e.observers = append(e.observers, o)
}

// Execute runs project. A cancelled ctx is reported through
// Report.Interrupted rather than as an error.
func (e *SuiteExecutor) Execute(ctx context.Context, project *box.ProjectBox) (Report, error) {
	stop := make(chan struct{})
	done := make(chan struct{})
	go e.monitor(project, stop, done)

	start := time.Now()
	passed, failed, err := project.Run(ctx)
	close(stop)
	<-done

	snap := project.Snapshot()
	for _, o := range e.observers {
		e.safely(func() {
			if f, ok := o.(Finisher); ok {
				f.Finish(snap)
			} else {
				o.Observe(snap)
			}
		})
	}

	report := Report{
		Passed:   passed,
		Failed:   failed,
		Duration: time.Since(start),
		Snapshot: snap,
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		report.Interrupted = true
		return report, nil
	}
	return report, err
}

func (e *SuiteExecutor) monitor(project *box.ProjectBox, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	if len(e.observers) == 0 {
		<-stop
		return
	}
	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			snap := project.Snapshot()
			for _, o := range e.observers {
				e.safely(func() { o.Observe(snap) })
			}
		}
	}
}

// safely keeps a broken observer from taking the run down with it.
func (e *SuiteExecutor) safely(fn func()) {
	defer func() {
		if r := recover(); r != nil && e.log != nil {
			e.log.Warnf("observer panicked: %v", r)
		}
	}()
	fn()
}
