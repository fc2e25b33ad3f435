// Package radeon lowers fragment shader outputs to AMD hardware exports.
//
// The pipeline reads a shader in the textual IR form, validates it, runs the
// pixel shader output lowering pass and prints the result:
//   - Parse: text to IR (see package irtext for the format)
//   - Validate: structural IR checks
//   - LowerPS: output stores to color, MRTZ and null exports
//   - Print: IR back to text
//
// Example usage:
//
//	opts := radeon.DefaultOptions()
//	opts.Lower.GfxLevel = amd.GFX11
//	out, err := radeon.Compile(source, opts)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Print(out)
//
// Library callers that build IR directly can call lowerps.Lower, which
// panics on contract violations instead of returning them.
package radeon

import (
	"fmt"
	"io"
	"strings"

	"github.com/gogpu/radeon/ir"
	"github.com/gogpu/radeon/irtext"
	"github.com/gogpu/radeon/lowerps"
)

// CompileOptions configures the Compile pipeline.
type CompileOptions struct {
	// Lower configures the lowering pass.
	Lower lowerps.Options

	// Validate checks the IR before and after lowering.
	Validate bool

	// Color highlights the printed IR with ANSI escape sequences.
	Color bool
}

// DefaultOptions returns the default pass options with validation enabled.
func DefaultOptions() CompileOptions {
	return CompileOptions{
		Lower:    lowerps.DefaultOptions(),
		Validate: true,
	}
}

// LowerError reports a shader the lowering pass rejected.
type LowerError struct {
	Shader string
	Reason string
}

// Error implements the error interface.
func (e *LowerError) Error() string {
	if e.Shader == "" {
		return "lower: " + e.Reason
	}
	return fmt.Sprintf("lower %s: %s", e.Shader, e.Reason)
}

// Compile parses source, lowers its pixel shader outputs and returns the
// lowered shader as text.
//
// The pipeline is:
//  1. Parse the IR text
//  2. Validate the IR (if enabled)
//  3. Run the lowering pass
//  4. Validate the result (if enabled)
//  5. Print
func Compile(source string, opts CompileOptions) (string, error) {
	shader, err := Parse(source)
	if err != nil {
		return "", err
	}

	if opts.Validate {
		if err := validate(shader); err != nil {
			return "", err
		}
	}

	changed, err := LowerPS(shader, &opts.Lower)
	if err != nil {
		return "", err
	}

	if opts.Validate && changed {
		if err := validate(shader); err != nil {
			return "", fmt.Errorf("after lowering: %w", err)
		}
	}

	Logger().Debug("radeon: compiled", "shader", shader.Name, "changed", changed)

	var out strings.Builder
	if err := irtext.Write(&out, shader, irtext.Config{Color: opts.Color}); err != nil {
		return "", err
	}
	return out.String(), nil
}

// Parse reads a shader from its textual IR form.
func Parse(source string) (*ir.Shader, error) {
	shader, err := irtext.Parse(source)
	if err != nil {
		return nil, fmt.Errorf("parse error: %w", err)
	}
	return shader, nil
}

// Validate validates a shader for correctness.
//
// Validation checks include:
//   - Value references (defined before use, visible in scope)
//   - Operand shapes of ALU and I/O instructions
//   - Structured control flow (break and continue inside loops)
//
// Returns a slice of validation errors. If the slice is empty, validation passed.
func Validate(shader *ir.Shader) ([]ir.ValidationError, error) {
	return ir.Validate(shader)
}

func validate(shader *ir.Shader) error {
	validationErrors, err := Validate(shader)
	if err != nil {
		return fmt.Errorf("validation error: %w", err)
	}
	if len(validationErrors) > 0 {
		return fmt.Errorf("validation failed: %w", &validationErrors[0])
	}
	return nil
}

// LowerPS runs the pixel shader output lowering pass on shader. It reports
// whether the shader changed. Invalid options and contract violations
// detected by the pass are returned as errors.
func LowerPS(shader *ir.Shader, opts *lowerps.Options) (changed bool, err error) {
	if err := opts.Validate(); err != nil {
		return false, fmt.Errorf("options: %w", err)
	}

	defer func() {
		if r := recover(); r != nil {
			changed = false
			err = &LowerError{Shader: shader.Name, Reason: fmt.Sprint(r)}
			Logger().Warn("radeon: lowering failed", "shader", shader.Name, "reason", r)
		}
	}()
	return lowerps.Lower(shader, opts), nil
}

// Print returns the textual form of shader.
func Print(shader *ir.Shader) string {
	return irtext.Print(shader)
}

// Write writes the textual form of shader to w, optionally highlighted.
func Write(w io.Writer, shader *ir.Shader, color bool) error {
	return irtext.Write(w, shader, irtext.Config{Color: color})
}
