package box

import (
	"sync/atomic"
	"time"

	"boxrun/internal/domain"
)

// nodeState is the status machine shared by cases and steps. It is written
// by the run goroutine only; every field is atomic so readers never lock.
type nodeState struct {
	status    atomic.Int32
	startedAt atomic.Int64 // unix nanos, 0 until begin
	duration  atomic.Int64
	message   atomic.Pointer[string]
	fault     atomic.Pointer[FaultError]
}

func (s *nodeState) load() domain.Status {
	return domain.Status(s.status.Load())
}

// begin moves Pending to Running and reports whether it did.
func (s *nodeState) begin(now time.Time) bool {
	if s.load() != domain.StatusPending {
		return false
	}
	s.message.Store(nil)
	s.fault.Store(nil)
	s.duration.Store(0)
	s.startedAt.Store(now.UnixNano())
	return s.status.CompareAndSwap(int32(domain.StatusPending), int32(domain.StatusRunning))
}

// finish stores the details first and the terminal status last, so a reader
// that sees the terminal status also sees its message and duration.
func (s *nodeState) finish(status domain.Status, msg string, fault *FaultError) {
	if msg != "" {
		s.message.Store(&msg)
	}
	if fault != nil {
		s.fault.Store(fault)
	}
	if started := s.startedAt.Load(); started != 0 {
		s.duration.Store(time.Now().UnixNano() - started)
	}
	s.status.Store(int32(status))
}

// skip marks a node that never ran. It only applies to Pending nodes.
func (s *nodeState) skip(reason string) bool {
	if s.load() != domain.StatusPending {
		return false
	}
	if reason != "" {
		s.message.Store(&reason)
	}
	return s.status.CompareAndSwap(int32(domain.StatusPending), int32(domain.StatusSkipped))
}

func (s *nodeState) reset() {
	s.status.Store(int32(domain.StatusPending))
	s.startedAt.Store(0)
	s.duration.Store(0)
	s.message.Store(nil)
	s.fault.Store(nil)
}

func (s *nodeState) startTime() time.Time {
	if ns := s.startedAt.Load(); ns != 0 {
		return time.Unix(0, ns)
	}
	return time.Time{}
}

// elapsed is the live duration while running, the final one otherwise.
func (s *nodeState) elapsed(status domain.Status) time.Duration {
	if status == domain.StatusRunning {
		if ns := s.startedAt.Load(); ns != 0 {
			return time.Duration(time.Now().UnixNano() - ns)
		}
		return 0
	}
	return time.Duration(s.duration.Load())
}

func (s *nodeState) msg() string {
	if m := s.message.Load(); m != nil {
		return *m
	}
	return ""
}

func (s *nodeState) err() error {
	if f := s.fault.Load(); f != nil {
		return f
	}
	return nil
}
