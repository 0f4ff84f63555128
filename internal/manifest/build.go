package manifest

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"boxrun/internal/box"
	"boxrun/internal/domain"
	"boxrun/internal/execution"
)

// BuildOptions tune how a manifest becomes a box tree.
type BuildOptions struct {
	// SuccessFlag is used when the manifest does not set success_flag.
	SuccessFlag int
	// Timeout applies to commands that have no timeout of their own and
	// no manifest-wide timeout.
	Timeout time.Duration
	Logger  box.Logger
	Hooks   []box.Hook
	RunID   string
}

// Build turns m into a ProjectBox. Every command runs through runner with
// ctx, so cancelling ctx kills the command in flight.
func Build(ctx context.Context, m *Manifest, runner *execution.Runner, opts BuildOptions) (*box.ProjectBox, error) {
	flag := opts.SuccessFlag
	if m.SuccessFlag != nil {
		flag = *m.SuccessFlag
	}
	popts := []box.ProjectOption{
		box.WithName(m.Project),
		box.WithSuccessFlag(flag),
		box.WithLogger(opts.Logger),
		box.WithHooks(opts.Hooks...),
	}
	if opts.RunID != "" {
		popts = append(popts, box.WithRunID(opts.RunID))
	}
	base := m.BaseDir()
	project := box.NewProjectBox(base, popts...)

	b := &builder{
		ctx:     ctx,
		runner:  runner,
		project: project,
		timeout: time.Duration(m.Timeout),
	}
	if b.timeout == 0 {
		b.timeout = opts.Timeout
	}

	root := scope{dir: base, env: withVars(m.Env, map[string]string{"BOXRUN_PROJECT": m.Project})}
	if m.Setup != nil {
		if err := b.hook(project.SetSetup, root, m.Setup); err != nil {
			return nil, err
		}
	}
	if m.Teardown != nil {
		if err := b.hook(project.SetTeardown, root, m.Teardown); err != nil {
			return nil, err
		}
	}
	for _, feat := range m.Features {
		if err := b.feature(root, feat); err != nil {
			return nil, err
		}
	}
	return project, nil
}

type builder struct {
	ctx     context.Context
	runner  *execution.Runner
	project *box.ProjectBox
	timeout time.Duration
}

// scope carries the directory and environment inherited by nested commands.
type scope struct {
	dir string
	env map[string]string
}

func (s scope) nest(dir string, env map[string]string) scope {
	return scope{dir: joinDir(s.dir, dir), env: withVars(s.env, env)}
}

func (b *builder) feature(parent scope, feat Feature) error {
	fb, err := box.NewFeatureBox(feat.Name, b.project)
	if err != nil {
		return fmt.Errorf("feature %s: %w", feat.Name, err)
	}
	sc := parent.nest(feat.Dir, withVars(feat.Env, map[string]string{"BOXRUN_FEATURE": feat.Name}))

	if feat.Setup != nil {
		if err := b.hook(fb.SetSetup, sc, feat.Setup); err != nil {
			return fmt.Errorf("feature %s: %w", feat.Name, err)
		}
	}
	if feat.Teardown != nil {
		if err := b.hook(fb.SetTeardown, sc, feat.Teardown); err != nil {
			return fmt.Errorf("feature %s: %w", feat.Name, err)
		}
	}
	for _, c := range feat.Cases {
		if err := b.testCase(fb, sc, c); err != nil {
			return err
		}
	}
	return nil
}

type setter func(fn box.CaseFunc, opts ...box.CaseOption) (*box.CaseBox, error)

func (b *builder) hook(set setter, sc scope, h *Hook) error {
	cmd := b.command(sc.nest(h.Dir, h.Env), h.Command, h.Timeout)
	var opts []box.CaseOption
	if h.Title != "" {
		opts = append(opts, box.WithTitle(h.Title))
	}
	var cb *box.CaseBox
	var err error
	cb, err = set(func() (int, error) {
		res, err := b.runner.Run(b.ctx, cmd)
		cb.AppendOutput(res.Output)
		return res.Code, err
	}, opts...)
	return err
}

func (b *builder) testCase(fb *box.FeatureBox, parent scope, c Case) error {
	sc := parent.nest(c.Dir, withVars(c.Env, map[string]string{"BOXRUN_CASE": c.Number}))
	flag := b.project.SuccessFlag()

	bc := &box.BaseCase{
		Number: c.Number,
		Title:  c.Title,
		Labels: c.Labels,
		Init: func(bc *box.BaseCase) error {
			for _, s := range c.Steps {
				// an unlabeled step is numbered after the steps before it
				label := s.Label
				if label == "" {
					label = s.Command
				}
				cmd := b.command(sc.nest(s.Dir, s.Env), s.Command, s.Timeout)
				var opts []box.StepOption
				if s.ContinueOnFault {
					opts = append(opts, box.ContinueOnFault())
				}
				if _, err := bc.AddStepBox(label, b.stepFunc(bc, cmd), opts...); err != nil {
					return err
				}
			}
			return nil
		},
		Run: func(bc *box.BaseCase) (int, error) {
			for _, step := range bc.Steps() {
				code, err := step.RunStep()
				if err != nil {
					return code, err
				}
				if step.Status() == domain.StatusErrored {
					// continued after a fault; the case is already marked
					continue
				}
				if code != flag {
					return code, nil
				}
			}
			if c.Command == "" {
				return flag, nil
			}
			res, err := b.runner.Run(b.ctx, b.command(sc, c.Command, c.Timeout))
			bc.CaseBox().AppendOutput(res.Output)
			return res.Code, err
		},
	}
	var opts []box.CaseOption
	if c.Skip {
		opts = append(opts, box.WithSkip("skip set in manifest"))
	}
	if c.Loop > 1 {
		opts = append(opts, box.WithLoop(c.Loop))
	}
	if _, err := bc.Register(fb, opts...); err != nil {
		return fmt.Errorf("feature %s: %w", fb.Name(), err)
	}
	return nil
}

func (b *builder) stepFunc(bc *box.BaseCase, cmd execution.Command) box.StepFunc {
	return func(...any) (int, error) {
		res, err := b.runner.Run(b.ctx, cmd)
		bc.CaseBox().AppendOutput(res.Output)
		return res.Code, err
	}
}

func (b *builder) command(sc scope, line string, timeout Duration) execution.Command {
	t := time.Duration(timeout)
	if t == 0 {
		t = b.timeout
	}
	return execution.Command{Line: line, Dir: sc.dir, Env: sc.env, Timeout: t}
}

func joinDir(base, dir string) string {
	switch {
	case dir == "":
		return base
	case filepath.IsAbs(dir):
		return dir
	default:
		return filepath.Join(base, dir)
	}
}

// withVars returns a new map holding base overlaid with extra.
func withVars(base, extra map[string]string) map[string]string {
	out := make(map[string]string, len(base)+len(extra))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range extra {
		out[k] = v
	}
	return out
}
