// Package manifest loads a suite description from YAML and turns it into a
// box tree whose cases and steps run existing shell commands.
package manifest

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Manifest is the root of a boxrun.yaml file.
type Manifest struct {
	Project     string            `yaml:"project"`
	SuccessFlag *int              `yaml:"success_flag,omitempty"`
	Dir         string            `yaml:"dir,omitempty"`
	Env         map[string]string `yaml:"env,omitempty"`
	Timeout     Duration          `yaml:"timeout,omitempty"`
	Setup       *Hook             `yaml:"setup,omitempty"`
	Teardown    *Hook             `yaml:"teardown,omitempty"`
	Features    []Feature         `yaml:"features"`

	// path is the file the manifest was read from.
	path string
}

// Feature groups cases, usually mirroring a directory of scripts.
type Feature struct {
	Name     string            `yaml:"name"`
	Dir      string            `yaml:"dir,omitempty"`
	Env      map[string]string `yaml:"env,omitempty"`
	Setup    *Hook             `yaml:"setup,omitempty"`
	Teardown *Hook             `yaml:"teardown,omitempty"`
	Cases    []Case            `yaml:"cases"`
}

// Case is one test case. Its steps run first, in order; Command, if set,
// runs last and its exit code is the case's return code. Skip keeps the case
// in reports as Skipped without running it; Loop repeats it.
type Case struct {
	Number  string            `yaml:"number"`
	Title   string            `yaml:"title"`
	Labels  []string          `yaml:"labels,omitempty"`
	Skip    bool              `yaml:"skip,omitempty"`
	Loop    int               `yaml:"loop,omitempty"`
	Command string            `yaml:"command,omitempty"`
	Dir     string            `yaml:"dir,omitempty"`
	Env     map[string]string `yaml:"env,omitempty"`
	Timeout Duration          `yaml:"timeout,omitempty"`
	Steps   []Step            `yaml:"steps,omitempty"`
}

// Step is one command inside a case.
type Step struct {
	Label           string            `yaml:"label"`
	Command         string            `yaml:"command"`
	Dir             string            `yaml:"dir,omitempty"`
	Env             map[string]string `yaml:"env,omitempty"`
	Timeout         Duration          `yaml:"timeout,omitempty"`
	ContinueOnFault bool              `yaml:"continue_on_fault,omitempty"`
}

// Hook is a setup or teardown command.
type Hook struct {
	Title   string            `yaml:"title,omitempty"`
	Command string            `yaml:"command"`
	Dir     string            `yaml:"dir,omitempty"`
	Env     map[string]string `yaml:"env,omitempty"`
	Timeout Duration          `yaml:"timeout,omitempty"`
}

// Duration accepts Go duration strings such as "90s" or "5m".
type Duration time.Duration

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}
	if s == "" {
		*d = 0
		return nil
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("line %d: invalid duration %q: %w", node.Line, s, err)
	}
	*d = Duration(v)
	return nil
}

func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// Load reads and validates the manifest at path.
func Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	m, err := Parse(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	m.path = path
	if m.Project == "" {
		m.Project = filepath.Base(filepath.Dir(absPath(path)))
	}
	return m, nil
}

// Parse decodes and validates a manifest. Unknown keys are rejected.
func Parse(r io.Reader) (*Manifest, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	var m Manifest
	if err := dec.Decode(&m); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("manifest is empty")
		}
		return nil, fmt.Errorf("parse manifest: %w", err)
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

// Validate checks the manifest for mistakes that would otherwise surface
// halfway through a run.
func (m *Manifest) Validate() error {
	var errs []error
	if len(m.Features) == 0 {
		errs = append(errs, errors.New("no features defined"))
	}
	if m.Setup != nil && m.Setup.Command == "" {
		errs = append(errs, errors.New("project setup: command is required"))
	}
	if m.Teardown != nil && m.Teardown.Command == "" {
		errs = append(errs, errors.New("project teardown: command is required"))
	}
	numbers := map[string]string{}
	for i, f := range m.Features {
		if f.Name == "" {
			errs = append(errs, fmt.Errorf("feature #%d: name is required", i+1))
		}
		if f.Setup != nil && f.Setup.Command == "" {
			errs = append(errs, fmt.Errorf("feature %s setup: command is required", f.Name))
		}
		if f.Teardown != nil && f.Teardown.Command == "" {
			errs = append(errs, fmt.Errorf("feature %s teardown: command is required", f.Name))
		}
		for j, c := range f.Cases {
			switch {
			case c.Number == "":
				errs = append(errs, fmt.Errorf("feature %s case #%d: number is required", f.Name, j+1))
				continue
			case c.Title == "":
				errs = append(errs, fmt.Errorf("case %s: title is required", c.Number))
			}
			if prev, ok := numbers[c.Number]; ok {
				errs = append(errs, fmt.Errorf("case %s: number already used in feature %s", c.Number, prev))
			}
			numbers[c.Number] = f.Name
			if c.Loop < 0 {
				errs = append(errs, fmt.Errorf("case %s: loop must not be negative", c.Number))
			}
			if c.Command == "" && len(c.Steps) == 0 {
				errs = append(errs, fmt.Errorf("case %s: needs a command or steps", c.Number))
			}
			for k, s := range c.Steps {
				if s.Command == "" {
					errs = append(errs, fmt.Errorf("case %s step #%d: command is required", c.Number, k+1))
				}
			}
		}
	}
	return errors.Join(errs...)
}

// Path is the file the manifest was loaded from, empty for Parse.
func (m *Manifest) Path() string { return m.path }

// BaseDir is the directory relative paths in the manifest resolve against.
func (m *Manifest) BaseDir() string {
	base := "."
	if m.path != "" {
		base = filepath.Dir(absPath(m.path))
	}
	if m.Dir == "" {
		return base
	}
	if filepath.IsAbs(m.Dir) {
		return m.Dir
	}
	return filepath.Join(base, m.Dir)
}

// CaseCount is the number of cases across all features.
func (m *Manifest) CaseCount() int {
	n := 0
	for _, f := range m.Features {
		n += len(f.Cases)
	}
	return n
}

func absPath(p string) string {
	if a, err := filepath.Abs(p); err == nil {
		return a
	}
	return p
}
