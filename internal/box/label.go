package box

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var stepLabelPattern = regexp.MustCompile(`(?i)^(\w*step)(\d+)(?:[-.](\d+))?\s*[:：]\s*(.*?)$`)

// StepLabel is a parsed step description such as "step3-2: open the valve".
type StepLabel struct {
	Raw         string
	Prefix      string
	Index       int
	Child       int // 0 when the step has no child index
	Description string
}

// ParseStepLabel parses the "<prefix><index>[-<child>]: <description>" form.
func ParseStepLabel(label string) (StepLabel, bool) {
	label = strings.TrimSpace(label)
	m := stepLabelPattern.FindStringSubmatch(label)
	if m == nil {
		return StepLabel{Raw: label, Description: label}, false
	}
	index, _ := strconv.Atoi(m[2])
	l := StepLabel{Raw: label, Prefix: m[1], Index: index, Description: m[4]}
	if m[3] != "" {
		l.Child, _ = strconv.Atoi(m[3])
	}
	return l, true
}

// Name returns the short step name, e.g. "step3" or "step3-2".
func (l StepLabel) Name() string {
	if l.Prefix == "" {
		return fmt.Sprintf("step%d", l.Index)
	}
	if l.Child == 0 {
		return fmt.Sprintf("%s%d", l.Prefix, l.Index)
	}
	return fmt.Sprintf("%s%d-%d", l.Prefix, l.Index, l.Child)
}

func (l StepLabel) String() string {
	return fmt.Sprintf("%s: %s", l.Name(), l.Description)
}

// labelFor parses label. An unparsable label is numbered one past the
// highest index already used by steps, so it never takes an explicit name.
func labelFor(label string, steps []*StepBox) StepLabel {
	l, ok := ParseStepLabel(label)
	if !ok {
		next := 0
		for _, s := range steps {
			next = max(next, s.label.Index)
		}
		l.Index = next + 1
	}
	return l
}
