package box

import (
	"slices"
	"time"

	"boxrun/internal/domain"
)

// Snapshot copies the whole tree without blocking Run. Counters are loaded
// before any status, and statuses only move forward, so the snapshot never
// holds more completed cases than terminal ones.
//
// Nodes are read in reverse execution order: a node only begins after the
// one before it has finished, so a reverse walk never sees two of them
// Running at once.
func (p *ProjectBox) Snapshot() domain.ProjectSnapshot {
	snap := domain.ProjectSnapshot{
		Counters:    p.Counters(),
		Running:     p.running.Load(),
		RunID:       p.RunID(),
		Name:        p.name,
		RootPath:    p.rootPath,
		SuccessFlag: p.successFlag,
		StartedAt:   p.StartedAt(),
		Duration:    p.Duration(),
		TakenAt:     time.Now(),
	}
	snap.Teardown = roleSnapshot(p.teardown.Load())
	features := p.loadFeatures()
	snap.Features = make([]domain.FeatureSnapshot, 0, len(features))
	for i := len(features) - 1; i >= 0; i-- {
		snap.Features = append(snap.Features, features[i].Snapshot())
	}
	slices.Reverse(snap.Features)
	snap.Setup = roleSnapshot(p.setup.Load())
	return snap
}

func (f *FeatureBox) Snapshot() domain.FeatureSnapshot {
	snap := domain.FeatureSnapshot{Name: f.name}
	snap.Teardown = roleSnapshot(f.teardown.Load())
	cases := f.loadCases()
	snap.Cases = make([]domain.CaseSnapshot, 0, len(cases))
	for i := len(cases) - 1; i >= 0; i-- {
		cs := cases[i].Snapshot()
		snap.Counts.Add(cs.Status)
		snap.Cases = append(snap.Cases, cs)
	}
	slices.Reverse(snap.Cases)
	snap.Setup = roleSnapshot(f.setup.Load())
	return snap
}

func roleSnapshot(c *CaseBox) *domain.CaseSnapshot {
	if c == nil {
		return nil
	}
	cs := c.Snapshot()
	return &cs
}

func (c *CaseBox) Snapshot() domain.CaseSnapshot {
	status := c.state.load()
	snap := domain.CaseSnapshot{
		Number:    c.number,
		Title:     c.title,
		FullName:  c.FullName(),
		Labels:    c.Labels(),
		Role:      c.role,
		Status:    status,
		StartedAt: c.state.startTime(),
		Duration:  c.state.elapsed(status),
		Error:     c.state.msg(),
		Output:    c.Output(),
	}
	if c.feature != nil {
		snap.Feature = c.feature.name
	}
	snap.Steps = c.stepSnapshots()
	for _, ss := range snap.Steps {
		if ss.Status == domain.StatusErrored {
			snap.StepErrors = append(snap.StepErrors, ss.Name+": "+ss.Error)
		}
	}
	return snap
}

// stepSnapshots reads the steps last to first. A looping case rewinds its
// steps between iterations; a walk that spans a rewind is taken again.
func (c *CaseBox) stepSnapshots() []domain.StepSnapshot {
	for {
		rewinds := c.rewinds.Load()
		steps := c.loadSteps()
		if len(steps) == 0 {
			return nil
		}
		out := make([]domain.StepSnapshot, 0, len(steps))
		for i := len(steps) - 1; i >= 0; i-- {
			out = append(out, steps[i].Snapshot())
		}
		if c.rewinds.Load() == rewinds {
			slices.Reverse(out)
			return out
		}
	}
}

func (s *StepBox) Snapshot() domain.StepSnapshot {
	status := s.state.load()
	return domain.StepSnapshot{
		Index:       s.Index(),
		Name:        s.Name(),
		Label:       s.label.Raw,
		Description: s.label.Description,
		Status:      status,
		StartedAt:   s.state.startTime(),
		Duration:    s.state.elapsed(status),
		Error:       s.state.msg(),
	}
}
