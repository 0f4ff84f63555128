package box

import "fmt"

// BaseCase declares a case by composition: Init builds the steps once, Run
// is the case callable and drives the steps in whatever order it likes.
//
//	login := &box.BaseCase{
//		Number: "AUTH-001",
//		Title:  "log in with a valid password",
//		Init: func(b *box.BaseCase) error {
//			_, err := b.AddStepBox("step1: open session", openSession)
//			return err
//		},
//		Run: func(b *box.BaseCase) (int, error) {
//			return b.StepBox("step1").RunStep()
//		},
//	}
//	c, err := login.Register(feature)
type BaseCase struct {
	Number string
	Title  string
	Labels []string

	Init func(b *BaseCase) error
	Run  func(b *BaseCase) (int, error)

	caseBox  *CaseBox
	initDone bool
}

// CaseBox returns the underlying case, creating it on first use.
func (b *BaseCase) CaseBox() *CaseBox {
	if b.caseBox == nil {
		b.caseBox = &CaseBox{fn: b.call, number: b.Number, title: b.Title}
	}
	return b.caseBox
}

func (b *BaseCase) call() (int, error) {
	if b.Run == nil {
		return 0, ErrNilFunc
	}
	return b.Run(b)
}

// FullName renders "TestCase: <number>, <title>".
func (b *BaseCase) FullName() string {
	return fmt.Sprintf("TestCase: %s, %s", b.Number, b.Title)
}

// AddStepBox creates a step and appends it to the case.
func (b *BaseCase) AddStepBox(label string, fn StepFunc, opts ...StepOption) (*StepBox, error) {
	return b.CaseBox().AddStep(label, fn, opts...)
}

// StepBox returns the step with the given name, e.g. "step2".
func (b *BaseCase) StepBox(name string) *StepBox {
	return b.CaseBox().Step(name)
}

func (b *BaseCase) Steps() []*StepBox {
	return b.CaseBox().Steps()
}

// Register runs Init once, validates the case metadata and adds the case to
// feature. Case numbers declared through BaseCase are unique per project.
func (b *BaseCase) Register(feature *FeatureBox, opts ...CaseOption) (*CaseBox, error) {
	if feature == nil {
		return nil, ErrNilFeature
	}
	c := b.CaseBox()
	if c.feature != nil {
		return nil, fmt.Errorf("case %s: %w", b.Number, ErrAlreadyRegistered)
	}
	if b.Init != nil && !b.initDone {
		b.initDone = true
		if err := b.Init(b); err != nil {
			return nil, fmt.Errorf("case %s: init: %w", b.Number, err)
		}
	}
	if b.Number == "" || b.Title == "" {
		return nil, fmt.Errorf("case %q: %w", b.Number, ErrMissingCaseInfo)
	}
	if b.Run == nil {
		return nil, fmt.Errorf("case %s: run: %w", b.Number, ErrNilFunc)
	}
	if feature.numberTaken(b.Number) {
		return nil, fmt.Errorf("case %s: %w", b.Number, ErrDuplicateCaseNumber)
	}

	c.number = b.Number
	c.title = b.Title
	c.labels = append([]string(nil), b.Labels...)
	for _, opt := range opts {
		opt(c)
	}
	if err := feature.AddCase(c); err != nil {
		return nil, err
	}
	return c, nil
}

// numberTaken reports whether a case with number exists anywhere in the
// feature's project, or in the feature itself when it is detached.
func (f *FeatureBox) numberTaken(number string) bool {
	features := []*FeatureBox{f}
	if f.project != nil {
		features = f.project.loadFeatures()
	}
	for _, other := range features {
		if other.Case(number) != nil {
			return true
		}
	}
	return false
}
