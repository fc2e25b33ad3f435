package ir

import "fmt"

// ResolveValue computes the shape of the value an instruction kind defines.
// The second result is false for kinds that define no value. Kinds whose
// shape cannot be derived from operands (constants, undefs, system values
// of unusual width) need the caller to allocate the value explicitly.
//
//nolint:gocyclo,cyclop // one case per value-producing kind
func (f *Function) ResolveValue(kind InstructionKind) (Value, bool, error) {
	switch k := kind.(type) {
	case *InstALU:
		return f.resolveALU(k)

	case *InstChannel:
		if err := f.checkHandle(k.Vector); err != nil {
			return Value{}, false, err
		}
		return Value{Components: 1, BitSize: f.Values[k.Vector].BitSize}, true, nil

	case *InstLoadVar:
		if int(k.Var) >= len(f.LocalVars) {
			return Value{}, false, fmt.Errorf("variable %d does not exist", k.Var)
		}
		v := f.LocalVars[k.Var]
		return Value{Components: v.Components, BitSize: v.BitSize}, true, nil

	case *InstLoadBarycentric:
		return Value{Components: 2, BitSize: 32}, true, nil

	case *InstLoadInput:
		return Value{Components: 4, BitSize: 32}, true, nil

	case *InstLoadSystemValue:
		switch k.Value {
		case SysBarycentricOptimize, SysFrontFacing:
			return Value{Components: 1, BitSize: 1}, true, nil
		case SysFragCoord:
			return Value{Components: 4, BitSize: 32}, true, nil
		default:
			return Value{Components: 1, BitSize: 32}, true, nil
		}

	case *InstQuadSwizzle:
		if err := f.checkHandle(k.Src); err != nil {
			return Value{}, false, err
		}
		return f.Values[k.Src], true, nil

	case *InstConst, *InstUndef:
		return Value{}, false, fmt.Errorf("%T needs an explicit shape", kind)

	default:
		return Value{}, false, nil
	}
}

func (f *Function) resolveALU(k *InstALU) (Value, bool, error) {
	if k.Op >= aluOpCount {
		return Value{}, false, fmt.Errorf("unknown ALU op %d", k.Op)
	}
	info := aluOps[k.Op]
	if info.inputs >= 0 && len(k.Args) != info.inputs {
		return Value{}, false, fmt.Errorf("%s takes %d arguments, got %d", info.name, info.inputs, len(k.Args))
	}
	if len(k.Args) == 0 {
		return Value{}, false, fmt.Errorf("%s has no arguments", info.name)
	}
	for _, a := range k.Args {
		if err := f.checkHandle(a); err != nil {
			return Value{}, false, err
		}
	}

	first := f.Values[k.Args[0]]
	if k.Op == OpVec {
		return Value{Components: uint8(len(k.Args)), BitSize: first.BitSize}, true, nil
	}
	if k.Op == OpBcsel {
		// The condition is first; the result has the shape of the choices.
		first = f.Values[k.Args[1]]
	}

	v := first
	if info.outputComponents != 0 {
		v.Components = info.outputComponents
	}
	if info.outputBits != 0 {
		v.BitSize = info.outputBits
	}
	return v, true, nil
}

func (f *Function) checkHandle(h ValueHandle) error {
	if !h.Valid() || int(h) >= len(f.Values) {
		return fmt.Errorf("value %d does not exist", h)
	}
	return nil
}

// VisitOperands calls visit with a pointer to every value operand of kind.
// Nested blocks of control flow are not visited.
//
//nolint:gocyclo,cyclop // one case per kind
func VisitOperands(kind InstructionKind, visit func(*ValueHandle)) {
	switch k := kind.(type) {
	case *InstALU:
		for i := range k.Args {
			visit(&k.Args[i])
		}
	case *InstChannel:
		visit(&k.Vector)
	case *InstLoadInput:
		visit(&k.Barycentric)
	case *InstQuadSwizzle:
		visit(&k.Src)
	case *InstStoreVar:
		visit(&k.Value)
	case *InstStoreOutput:
		visit(&k.Value)
	case *InstExport:
		visit(&k.Arg)
	case *InstExportDualSrcBlend:
		visit(&k.Arg0)
		visit(&k.Arg1)
	case *InstDiscardIf:
		visit(&k.Condition)
	case *InstIf:
		visit(&k.Condition)
	}
}

// ReplaceUses rewrites every operand equal to old so it refers to repl.
func (f *Function) ReplaceUses(old, repl ValueHandle) {
	f.Body.ForEach(func(inst *Instruction) {
		VisitOperands(inst.Kind, func(h *ValueHandle) {
			if *h == old {
				*h = repl
			}
		})
	})
}

// ReplaceInstruction makes every use of inst's value refer to repl and
// removes inst.
func (f *Function) ReplaceInstruction(inst *Instruction, repl ValueHandle) {
	f.ReplaceUses(inst.Def, repl)
	inst.Remove()
}
