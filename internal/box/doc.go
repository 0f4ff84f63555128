// Package box is the execution and status engine behind boxrun.
//
// A suite is a four-level tree: a ProjectBox owns FeatureBoxes, a FeatureBox
// owns CaseBoxes and a CaseBox owns StepBoxes. ProjectBox.Run walks the tree
// in registration order on the calling goroutine and returns the aggregate
// (passed, failed) counts.
//
// Outcome rule, shared by cases and steps: a callable that returns a non-nil
// error or panics is Errored; one that returns the project's success flag is
// Passed; any other return code is Failed.
//
// The run goroutine is the only writer. Every status and counter is an atomic
// value and every child list is published copy-on-write, so Snapshot and the
// other read accessors may be called from any goroutine at any time without
// blocking the run.
package box
