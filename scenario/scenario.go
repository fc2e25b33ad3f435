// Package scenario runs lowering cases described in YAML files.
//
// A case names a shader in the textual IR form, the pass options and the
// expected outcome:
//
//	name: depth and color
//	options:
//	  gfx_level: gfx11
//	input: |
//	  shader "depth" fragment
//	  ...
//	expect:
//	  changed: true
//	  exports:
//	    - target=8 mask=0x1
//	    - target=0 mask=0xf flags=done|valid_mask
//	  contains: [fsat]
//	  absent: [store_output]
//
// Exports lists every hardware export of the lowered shader in program
// order, without the exported value. Error, when set, expects the pass to
// reject the shader with a message containing it.
package scenario

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/gogpu/radeon"
	"github.com/gogpu/radeon/lowerps"
)

// Case is one lowering scenario.
type Case struct {
	Name    string    `yaml:"name"`
	Options yaml.Node `yaml:"options"`
	Input   string    `yaml:"input"`
	Expect  Expect    `yaml:"expect"`

	// Path is the file the case was loaded from.
	Path string `yaml:"-"`
}

// Expect is the expected outcome of a case.
type Expect struct {
	Changed  *bool    `yaml:"changed"`
	Exports  []string `yaml:"exports"`
	Contains []string `yaml:"contains"`
	Absent   []string `yaml:"absent"`
	Error    string   `yaml:"error"`
}

// Result is the outcome of running a case.
type Result struct {
	Changed bool
	Output  string
	Exports []string
	Err     error
}

// Load reads the cases of one YAML file. A file holds one or more
// documents, one case each.
func Load(path string) ([]*Case, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var cases []*Case
	for {
		c := &Case{Path: path}
		if err := dec.Decode(c); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		if c.Name == "" {
			c.Name = fmt.Sprintf("%s#%d", strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)), len(cases))
		}
		cases = append(cases, c)
	}
	return cases, nil
}

// LoadDir reads the cases of every .yaml file in dir, sorted by file name.
func LoadDir(dir string) ([]*Case, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.yaml"))
	if err != nil {
		return nil, err
	}
	slices.Sort(paths)

	var cases []*Case
	for _, p := range paths {
		cs, err := Load(p)
		if err != nil {
			return nil, err
		}
		cases = append(cases, cs...)
	}
	return cases, nil
}

// LowerOptions decodes the case options on top of lowerps.DefaultOptions.
func (c *Case) LowerOptions() (lowerps.Options, error) {
	if c.Options.Kind == 0 {
		return lowerps.DefaultOptions(), nil
	}
	data, err := yaml.Marshal(&c.Options)
	if err != nil {
		return lowerps.Options{}, err
	}
	return lowerps.LoadOptions(bytes.NewReader(data))
}

// Run parses and lowers the case input. Errors from the pass are reported
// in Result.Err; a malformed case returns an error.
func (c *Case) Run() (*Result, error) {
	opts, err := c.LowerOptions()
	if err != nil {
		return nil, fmt.Errorf("options: %w", err)
	}
	shader, err := radeon.Parse(c.Input)
	if err != nil {
		return nil, err
	}

	r := &Result{}
	r.Changed, r.Err = radeon.LowerPS(shader, &opts)
	if r.Err != nil {
		return r, nil
	}
	r.Output = radeon.Print(shader)
	r.Exports = exportsOf(r.Output)
	return r, nil
}

// exportsOf lists the export lines of printed IR without their mnemonic and
// value.
func exportsOf(text string) []string {
	var out []string
	for _, line := range strings.Split(text, "\n") {
		fields := strings.Fields(line)
		if len(fields) < 2 || fields[0] != "export" {
			continue
		}
		out = append(out, strings.Join(fields[2:], " "))
	}
	return out
}

// Check compares a result with the expectation and returns one message per
// mismatch.
func (e *Expect) Check(r *Result) []string {
	var problems []string

	if e.Error != "" {
		switch {
		case r.Err == nil:
			problems = append(problems, fmt.Sprintf("expected error containing %q, lowering succeeded", e.Error))
		case !strings.Contains(r.Err.Error(), e.Error):
			problems = append(problems, fmt.Sprintf("error %q does not contain %q", r.Err, e.Error))
		}
		return problems
	}
	if r.Err != nil {
		return append(problems, fmt.Sprintf("unexpected error: %v", r.Err))
	}

	if e.Changed != nil && *e.Changed != r.Changed {
		problems = append(problems, fmt.Sprintf("changed = %v, want %v", r.Changed, *e.Changed))
	}
	if e.Exports != nil && !slices.Equal(e.Exports, r.Exports) {
		problems = append(problems, fmt.Sprintf("exports = %q, want %q", r.Exports, e.Exports))
	}
	for _, s := range e.Contains {
		if !strings.Contains(r.Output, s) {
			problems = append(problems, fmt.Sprintf("output does not contain %q", s))
		}
	}
	for _, s := range e.Absent {
		if strings.Contains(r.Output, s) {
			problems = append(problems, fmt.Sprintf("output contains %q", s))
		}
	}
	return problems
}
