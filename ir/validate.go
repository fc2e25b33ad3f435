package ir

import (
	"fmt"
)

// ValidationError represents a validation error.
type ValidationError struct {
	Message string
	// Optional context
	Function    string
	Instruction int
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	if e.Function != "" {
		if e.Instruction >= 0 {
			return fmt.Sprintf("in function %s, instruction %d: %s", e.Function, e.Instruction, e.Message)
		}
		return fmt.Sprintf("in function %s: %s", e.Function, e.Message)
	}
	return e.Message
}

// Validator validates IR shaders.
type Validator struct {
	shader  *Shader
	errors  []ValidationError
	context validationContext
}

// validationContext holds current validation context.
type validationContext struct {
	function     *Function
	functionName string
	loopDepth    int
	instruction  int
	defined      []bool
	visible      []bool
}

// Validate checks the shader for correctness.
// Returns validation errors if any, or nil if the shader is valid.
func Validate(shader *Shader) ([]ValidationError, error) {
	if shader == nil {
		return nil, fmt.Errorf("shader is nil")
	}

	v := &Validator{
		shader: shader,
		errors: make([]ValidationError, 0),
	}

	v.ValidateShader()

	if len(v.errors) > 0 {
		return v.errors, nil
	}
	return nil, nil
}

// ValidateShader validates the complete shader.
func (v *Validator) ValidateShader() {
	if int(v.shader.EntryPoint) >= len(v.shader.Functions) {
		v.addError(fmt.Sprintf("entry point %d does not exist", v.shader.EntryPoint))
	}

	for _, fn := range v.shader.Functions {
		v.validateFunction(fn)
	}
}

func (v *Validator) validateFunction(fn *Function) {
	v.context = validationContext{
		function:     fn,
		functionName: fn.Name,
		instruction:  -1,
		defined:      make([]bool, len(fn.Values)),
		visible:      make([]bool, len(fn.Values)),
	}

	for i, lv := range fn.LocalVars {
		if lv.Components < 1 || lv.Components > 4 {
			v.addError(fmt.Sprintf("variable %d (%s): invalid component count %d", i, lv.Name, lv.Components))
		}
		if !validBitSize(lv.BitSize) {
			v.addError(fmt.Sprintf("variable %d (%s): invalid bit size %d", i, lv.Name, lv.BitSize))
		}
	}

	if fn.Body == nil {
		v.addError("function has no body")
		return
	}
	v.validateBlock(fn.Body)
	v.context.instruction = -1
}

// validateBlock validates a block. Values defined inside it stop being
// visible when the block ends.
func (v *Validator) validateBlock(b *Block) {
	var defs []ValueHandle
	for _, inst := range b.Instructions {
		v.context.instruction++
		if inst.block != b {
			v.addError("instruction has a stale block link")
		}
		v.validateInstruction(inst)
		if inst.Def.Valid() && int(inst.Def) < len(v.context.visible) {
			defs = append(defs, inst.Def)
		}
	}
	for _, d := range defs {
		v.context.visible[d] = false
	}
}

//nolint:gocognit,gocyclo,cyclop // instruction validation checks every kind
func (v *Validator) validateInstruction(inst *Instruction) {
	fn := v.context.function

	VisitOperands(inst.Kind, func(h *ValueHandle) {
		v.checkUse(*h)
	})

	switch k := inst.Kind.(type) {
	case *InstALU:
		if k.Op >= aluOpCount {
			v.addError(fmt.Sprintf("unknown ALU op %d", k.Op))
		} else if n := aluOps[k.Op].inputs; n >= 0 && len(k.Args) != n {
			v.addError(fmt.Sprintf("%s takes %d arguments, got %d", k.Op, n, len(k.Args)))
		}
		if k.Op == OpVec && (len(k.Args) < 1 || len(k.Args) > 4) {
			v.addError(fmt.Sprintf("vec takes 1 to 4 arguments, got %d", len(k.Args)))
		}

	case *InstChannel:
		if v.inRange(k.Vector) && k.Index >= fn.Values[k.Vector].Components {
			v.addError(fmt.Sprintf("channel %d out of range for %d components", k.Index, fn.Values[k.Vector].Components))
		}

	case *InstLoadVar:
		v.checkVar(k.Var)

	case *InstStoreVar:
		if v.checkVar(k.Var) && k.WriteMask>>fn.LocalVars[k.Var].Components != 0 {
			v.addError(fmt.Sprintf("write mask 0x%x exceeds variable %s", k.WriteMask, fn.LocalVars[k.Var].Name))
		}

	case *InstStoreOutput:
		if v.inRange(k.Value) && k.WriteMask>>fn.Values[k.Value].Components != 0 {
			v.addError(fmt.Sprintf("write mask 0x%x exceeds stored value", k.WriteMask))
		}
		if k.Semantics.Location > FragResultData7 {
			v.addError(fmt.Sprintf("unknown output location %d", k.Semantics.Location))
		}
		if k.Semantics.DualSourceIndex > 1 {
			v.addError(fmt.Sprintf("dual source index %d out of range", k.Semantics.DualSourceIndex))
		}

	case *InstExport:
		if k.WriteMask > 0xf {
			v.addError(fmt.Sprintf("export write mask 0x%x out of range", k.WriteMask))
		}
		if v.inRange(k.Arg) && fn.Values[k.Arg].Components != 4 {
			v.addError("export argument must have 4 components")
		}

	case *InstExportDualSrcBlend:
		if k.WriteMask > 0xf {
			v.addError(fmt.Sprintf("export write mask 0x%x out of range", k.WriteMask))
		}

	case *InstIf:
		if k.Then == nil || k.Else == nil {
			v.addError("if is missing a branch")
			break
		}
		v.validateBlock(k.Then)
		v.validateBlock(k.Else)

	case *InstLoop:
		if k.Body == nil {
			v.addError("loop has no body")
			break
		}
		v.context.loopDepth++
		v.validateBlock(k.Body)
		v.context.loopDepth--

	case *InstBreak, *InstContinue:
		if v.context.loopDepth == 0 {
			v.addError(fmt.Sprintf("%T outside of a loop", k))
		}
	}

	if inst.Def.Valid() {
		if !v.inRange(inst.Def) {
			v.addError(fmt.Sprintf("defined value %d does not exist", inst.Def))
			return
		}
		if v.context.defined[inst.Def] {
			v.addError(fmt.Sprintf("value %d defined twice", inst.Def))
		}
		v.context.defined[inst.Def] = true
		v.context.visible[inst.Def] = true

		if want, ok, err := fn.ResolveValue(inst.Kind); err == nil && ok && want != fn.Values[inst.Def] {
			v.addError(fmt.Sprintf("value %d has shape %dx%d, instruction produces %dx%d",
				inst.Def, fn.Values[inst.Def].Components, fn.Values[inst.Def].BitSize, want.Components, want.BitSize))
		}
	}
}

func (v *Validator) checkUse(h ValueHandle) {
	if !v.inRange(h) {
		v.addError(fmt.Sprintf("operand %d does not exist", h))
		return
	}
	if !v.context.visible[h] {
		v.addError(fmt.Sprintf("value %d used before its definition", h))
	}
}

func (v *Validator) checkVar(h VariableHandle) bool {
	if int(h) >= len(v.context.function.LocalVars) {
		v.addError(fmt.Sprintf("variable %d does not exist", h))
		return false
	}
	return true
}

func (v *Validator) inRange(h ValueHandle) bool {
	return h.Valid() && int(h) < len(v.context.function.Values)
}

func validBitSize(bits uint8) bool {
	return bits == 1 || bits == 8 || bits == 16 || bits == 32 || bits == 64
}

// addError records a validation error with the current context.
func (v *Validator) addError(message string) {
	v.errors = append(v.errors, ValidationError{
		Message:     message,
		Function:    v.context.functionName,
		Instruction: v.context.instruction,
	})
}
