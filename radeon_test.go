package radeon

import (
	"errors"
	"strings"
	"testing"

	"github.com/charmbracelet/x/ansi"

	"github.com/gogpu/radeon/amd"
	"github.com/gogpu/radeon/irtext"
)

const simpleShader = `shader "simple" fragment

fn main entry {
  %0:4x32 = undef
  store_output %0 slot=data0 mask=0xf type=float32
}
`

func TestCompileSimpleColor(t *testing.T) {
	out, err := Compile(simpleShader, DefaultOptions())
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}

	if strings.Contains(out, "store_output") {
		t.Errorf("output still contains store_output:\n%s", out)
	}
	if !strings.Contains(out, "flags=done|valid_mask") {
		t.Errorf("output has no final export:\n%s", out)
	}
	if strings.Contains(out, "\x1b[") {
		t.Errorf("uncolored output contains escape sequences")
	}
}

func TestCompileIdempotent(t *testing.T) {
	first, err := Compile(simpleShader, DefaultOptions())
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}
	second, err := Compile(first, DefaultOptions())
	if err != nil {
		t.Fatalf("Compile of lowered output failed: %v", err)
	}
	if first != second {
		t.Errorf("second compile changed the shader:\n%s\nwant\n%s", second, first)
	}
}

func TestCompileColor(t *testing.T) {
	opts := DefaultOptions()
	plain, err := Compile(simpleShader, opts)
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}

	opts.Color = true
	colored, err := Compile(simpleShader, opts)
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}
	if got := ansi.Strip(colored); got != plain {
		t.Errorf("stripped output differs:\n%s\nwant\n%s", got, plain)
	}
}

func TestCompileNonFragmentUnchanged(t *testing.T) {
	source := strings.Replace(simpleShader, "fragment", "compute", 1)
	out, err := Compile(source, DefaultOptions())
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}
	if out != source {
		t.Errorf("compute shader changed:\n%s", out)
	}
}

func TestCompileErrors(t *testing.T) {
	t.Run("parse", func(t *testing.T) {
		_, err := Compile("shader \"x\" fragment\nfn main entry {\n  bogus\n}", DefaultOptions())
		var perr *irtext.Error
		if !errors.As(err, &perr) {
			t.Fatalf("expected *irtext.Error, got %v", err)
		}
		if perr.Line != 3 {
			t.Errorf("error line = %d, want 3", perr.Line)
		}
	})

	t.Run("options", func(t *testing.T) {
		opts := DefaultOptions()
		opts.Lower.PsIterSamples = 3
		_, err := Compile(simpleShader, opts)
		if err == nil || !strings.Contains(err.Error(), "ps_iter_samples") {
			t.Fatalf("expected options error, got %v", err)
		}
	})

	t.Run("contract violation", func(t *testing.T) {
		source := `shader "bad_depth" fragment
fn main entry {
  %0:1x32 = undef
  store_output %0 slot=depth component=1 mask=0x1 type=float32
}`
		_, err := Compile(source, DefaultOptions())
		var lerr *LowerError
		if !errors.As(err, &lerr) {
			t.Fatalf("expected *LowerError, got %v", err)
		}
		if lerr.Shader != "bad_depth" {
			t.Errorf("LowerError.Shader = %q", lerr.Shader)
		}
		if !strings.HasPrefix(err.Error(), "lower bad_depth: ") {
			t.Errorf("Error() = %q", err.Error())
		}
	})
}

func TestLowerPSReportsProgress(t *testing.T) {
	shader, err := Parse(simpleShader)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	opts := DefaultOptions().Lower
	opts.GfxLevel = amd.GFX11
	changed, err := LowerPS(shader, &opts)
	if err != nil || !changed {
		t.Fatalf("LowerPS() = %v, %v; want true, nil", changed, err)
	}

	changed, err = LowerPS(shader, &opts)
	if err != nil || changed {
		t.Errorf("second LowerPS() = %v, %v; want false, nil", changed, err)
	}

	errs, err := Validate(shader)
	if err != nil || len(errs) != 0 {
		t.Errorf("Validate() = %v, %v", errs, err)
	}
	if !strings.Contains(Print(shader), "export ") {
		t.Errorf("printed shader has no export:\n%s", Print(shader))
	}
}

func BenchmarkCompile(b *testing.B) {
	opts := DefaultOptions()
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		if _, err := Compile(simpleShader, opts); err != nil {
			b.Fatal(err)
		}
	}
}
