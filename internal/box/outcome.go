package box

import (
	"fmt"
	"runtime/debug"

	"boxrun/internal/domain"
)

// invoke calls fn and turns a returned error or a panic into a fault for node.
func invoke(node string, fn func() (int, error)) (code int, fault *FaultError) {
	defer func() {
		if r := recover(); r != nil {
			code = 0
			fault = &FaultError{Node: node, Panic: r, Stack: debug.Stack()}
		}
	}()
	code, err := fn()
	if err != nil {
		return code, &FaultError{Node: node, Err: err}
	}
	return code, nil
}

// decide applies the outcome rule: fault → Errored, code equal to the
// success flag → Passed, anything else → Failed.
func decide(code int, fault *FaultError, successFlag int) domain.Status {
	switch {
	case fault != nil:
		return domain.StatusErrored
	case code == successFlag:
		return domain.StatusPassed
	default:
		return domain.StatusFailed
	}
}

func failMessage(code, successFlag int) string {
	return fmt.Sprintf("returned %d, success flag is %d", code, successFlag)
}

// asError avoids handing a typed nil pointer out as a non-nil error.
func asError(f *FaultError) error {
	if f == nil {
		return nil
	}
	return f
}
