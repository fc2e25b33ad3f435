package scenario

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gogpu/radeon"
)

// TestScenarios runs every case in testdata. Each successfully lowered
// shader must also validate, print back to text that parses, and be left
// alone by a second run of the pass.
func TestScenarios(t *testing.T) {
	cases, err := LoadDir("testdata")
	if err != nil {
		t.Fatalf("load cases: %v", err)
	}
	if len(cases) == 0 {
		t.Fatal("no cases found in testdata/")
	}

	for _, c := range cases {
		t.Run(filepath.Base(c.Path)+"/"+c.Name, func(t *testing.T) {
			r, err := c.Run()
			if err != nil {
				t.Fatalf("run: %v", err)
			}
			for _, p := range c.Expect.Check(r) {
				t.Error(p)
			}
			if r.Err != nil || t.Failed() {
				return
			}

			checkLowered(t, c, r)
		})
	}
}

func checkLowered(t *testing.T, c *Case, r *Result) {
	t.Helper()

	shader, err := radeon.Parse(r.Output)
	if err != nil {
		t.Fatalf("lowered output does not parse: %v\n%s", err, r.Output)
	}
	errs, err := radeon.Validate(shader)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	for _, e := range errs {
		t.Errorf("validation error: %v", e)
	}

	if !r.Changed {
		return
	}
	opts, err := c.LowerOptions()
	if err != nil {
		t.Fatalf("options: %v", err)
	}
	changed, err := radeon.LowerPS(shader, &opts)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if changed && hasFinalExport(r.Output) {
		t.Errorf("second run changed an already lowered shader:\n%s", radeon.Print(shader))
	}
}

// hasFinalExport reports whether the text ends the shader itself; shaders
// whose exports are left to an epilog are lowered again.
func hasFinalExport(text string) bool {
	return strings.Contains(text, "flags=done") ||
		strings.Contains(text, "|done") ||
		strings.Contains(text, "export_dual_src_blend")
}

func TestLoadErrors(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"unknown field", "name: x\ninputs: y\n", "field inputs not found"},
		{"bad options", "name: x\noptions:\n  gfx_level: gfx99\ninput: y\n", "unknown gfx level"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(dir, strings.ReplaceAll(tt.name, " ", "_")+".yaml")
			if err := os.WriteFile(path, []byte(tt.content), 0o644); err != nil {
				t.Fatal(err)
			}

			cases, err := Load(path)
			if err == nil {
				_, err = cases[0].Run()
			}
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error = %v, want one containing %q", err, tt.want)
			}
		})
	}
}

func TestLoadNamesUnnamedCases(t *testing.T) {
	path := filepath.Join(t.TempDir(), "anon.yaml")
	content := "input: a\n---\ninput: b\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cases, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(cases) != 2 || cases[0].Name != "anon#0" || cases[1].Name != "anon#1" {
		t.Errorf("names = %q, %q", cases[0].Name, cases[len(cases)-1].Name)
	}
	if cases[1].Input != "b" {
		t.Errorf("second input = %q", cases[1].Input)
	}
}
