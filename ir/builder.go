package ir

import (
	"fmt"
	"math"
)

// cursorOption selects where a Cursor points.
type cursorOption uint8

const (
	cursorBeforeInstr cursorOption = iota
	cursorAfterInstr
	cursorBlockStart
	cursorBlockEnd
)

// Cursor is an insertion point.
type Cursor struct {
	option cursorOption
	block  *Block
	instr  *Instruction
}

// Before returns a cursor that inserts immediately before inst.
func Before(inst *Instruction) Cursor {
	return Cursor{option: cursorBeforeInstr, block: inst.block, instr: inst}
}

// After returns a cursor that inserts immediately after inst.
func After(inst *Instruction) Cursor {
	return Cursor{option: cursorAfterInstr, block: inst.block, instr: inst}
}

// BlockStart returns a cursor at the start of b.
func BlockStart(b *Block) Cursor {
	return Cursor{option: cursorBlockStart, block: b}
}

// BlockEnd returns a cursor at the end of b.
func BlockEnd(b *Block) Cursor {
	return Cursor{option: cursorBlockEnd, block: b}
}

// Insert places inst at the cursor.
func (c Cursor) Insert(inst *Instruction) {
	switch c.option {
	case cursorBeforeInstr:
		c.instr.block.InsertBefore(c.instr, inst)
	case cursorAfterInstr:
		c.instr.block.InsertAfter(c.instr, inst)
	case cursorBlockStart:
		c.block.InsertAt(0, inst)
	case cursorBlockEnd:
		c.block.Append(inst)
	}
}

// Builder appends instructions to a function at a movable cursor.
// After each insertion the cursor moves past the new instruction, so
// consecutive calls emit instructions in program order.
type Builder struct {
	Func   *Function
	Cursor Cursor
}

// NewBuilder creates a builder positioned at the end of fn's body.
func NewBuilder(fn *Function) *Builder {
	return &Builder{Func: fn, Cursor: BlockEnd(fn.Body)}
}

// Insert places an instruction of the given kind at the cursor. def is the
// shape of the value it defines; pass nil to derive it with ResolveValue.
func (b *Builder) Insert(kind InstructionKind, def *Value) *Instruction {
	inst := &Instruction{Kind: kind, Def: NoValue}
	if def != nil {
		inst.Def = b.Func.NewValue(def.Components, def.BitSize)
	} else {
		v, ok, err := b.Func.ResolveValue(kind)
		if err != nil {
			panic(fmt.Sprintf("build %T: %v", kind, err))
		}
		if ok {
			inst.Def = b.Func.NewValue(v.Components, v.BitSize)
		}
	}
	b.Cursor.Insert(inst)
	b.Cursor = After(inst)
	return inst
}

func (b *Builder) def(kind InstructionKind) ValueHandle {
	return b.Insert(kind, nil).Def
}

// Imm emits a scalar constant of the given bit size.
func (b *Builder) Imm(bits uint64, bitSize uint8) ValueHandle {
	return b.Insert(&InstConst{Bits: bits}, &Value{Components: 1, BitSize: bitSize}).Def
}

// ImmInt emits a 32-bit integer constant.
func (b *Builder) ImmInt(v int32) ValueHandle {
	return b.Imm(uint64(uint32(v)), 32)
}

// ImmFloat emits a 32-bit float constant.
func (b *Builder) ImmFloat(v float32) ValueHandle {
	return b.Imm(uint64(math.Float32bits(v)), 32)
}

// ImmFloatN emits a float constant with the given bit size (16 or 32).
func (b *Builder) ImmFloatN(v float32, bitSize uint8) ValueHandle {
	if bitSize == 16 {
		return b.Imm(uint64(Float32ToHalf(v)), 16)
	}
	return b.ImmFloat(v)
}

// ImmBool emits a 1-bit boolean constant.
func (b *Builder) ImmBool(v bool) ValueHandle {
	if v {
		return b.Imm(1, 1)
	}
	return b.Imm(0, 1)
}

// Undef emits an undefined value.
func (b *Builder) Undef(components, bitSize uint8) ValueHandle {
	return b.Insert(&InstUndef{}, &Value{Components: components, BitSize: bitSize}).Def
}

// ALU emits an ALU operation.
func (b *Builder) ALU(op ALUOp, args ...ValueHandle) ValueHandle {
	return b.def(&InstALU{Op: op, Args: args})
}

// Vec builds a vector from scalars.
func (b *Builder) Vec(components ...ValueHandle) ValueHandle {
	return b.ALU(OpVec, components...)
}

// Channel extracts component i of v. A scalar's component 0 is v itself.
func (b *Builder) Channel(v ValueHandle, i uint8) ValueHandle {
	if i == 0 && b.Func.Values[v].Components == 1 {
		return v
	}
	return b.def(&InstChannel{Vector: v, Index: i})
}

// Bcsel emits cond ? x : y.
func (b *Builder) Bcsel(cond, x, y ValueHandle) ValueHandle {
	return b.ALU(OpBcsel, cond, x, y)
}

// FIsNaN emits a test for NaN.
func (b *Builder) FIsNaN(v ValueHandle) ValueHandle {
	return b.ALU(OpFNeu, v, v)
}

// IEqImm compares v with an integer constant of the same width.
func (b *Builder) IEqImm(v ValueHandle, imm uint64) ValueHandle {
	return b.ALU(OpIEq, v, b.Imm(imm, b.Func.Values[v].BitSize))
}

// IAndImm ands v with an integer constant of the same width.
func (b *Builder) IAndImm(v ValueHandle, imm uint64) ValueHandle {
	return b.ALU(OpIAnd, v, b.Imm(imm, b.Func.Values[v].BitSize))
}

// IShlImm shifts v left by a constant amount.
func (b *Builder) IShlImm(v ValueHandle, shift uint32) ValueHandle {
	return b.ALU(OpIShl, v, b.Imm(uint64(shift), 32))
}

// ConvertToBitSize converts v to bitSize bits according to kind. Values
// already of that size are returned unchanged.
func (b *Builder) ConvertToBitSize(v ValueHandle, kind ScalarKind, bitSize uint8) ValueHandle {
	if b.Func.Values[v].BitSize == bitSize {
		return v
	}
	if bitSize != 32 {
		panic(fmt.Sprintf("unsupported conversion to %d bits", bitSize))
	}
	switch kind {
	case ScalarFloat:
		return b.ALU(OpF2F32, v)
	case ScalarSint:
		return b.ALU(OpI2I32, v)
	case ScalarUint:
		return b.ALU(OpU2U32, v)
	case ScalarBool:
		return b.ALU(OpB2B32, v)
	}
	panic(fmt.Sprintf("unknown scalar kind: %v", kind))
}

// LoadVar reads a local variable.
func (b *Builder) LoadVar(v VariableHandle) ValueHandle {
	return b.def(&InstLoadVar{Var: v})
}

// StoreVar writes the masked components of value to a local variable.
func (b *Builder) StoreVar(v VariableHandle, value ValueHandle, writeMask uint8) *Instruction {
	return b.Insert(&InstStoreVar{Var: v, Value: value, WriteMask: writeMask}, nil)
}

// LoadBarycentric loads hardware barycentrics.
func (b *Builder) LoadBarycentric(sampling InterpolationSampling, interp InterpMode) ValueHandle {
	return b.def(&InstLoadBarycentric{Sampling: sampling, Interp: interp})
}

// LoadSystemValue loads a hardware-provided value.
func (b *Builder) LoadSystemValue(sv SystemValue) ValueHandle {
	return b.def(&InstLoadSystemValue{Value: sv})
}

// QuadSwizzle permutes v between quad lanes.
func (b *Builder) QuadSwizzle(v ValueHandle, mask uint8, fetchInactive bool) ValueHandle {
	return b.def(&InstQuadSwizzle{Src: v, Mask: mask, FetchInactive: fetchInactive})
}

// Export emits a hardware export. arg must have four components.
func (b *Builder) Export(arg ValueHandle, target, writeMask uint8, flags ExportFlags) *Instruction {
	return b.Insert(&InstExport{Arg: arg, Target: target, WriteMask: writeMask, Flags: flags}, nil)
}

// ExportDualSrcBlend emits the dual-source blend pseudo export.
func (b *Builder) ExportDualSrcBlend(arg0, arg1 ValueHandle, writeMask uint8) *Instruction {
	return b.Insert(&InstExportDualSrcBlend{Arg0: arg0, Arg1: arg1, WriteMask: writeMask}, nil)
}

// Discard kills the invocation.
func (b *Builder) Discard() *Instruction {
	return b.Insert(&InstDiscard{}, nil)
}

// DiscardIf kills the invocation when cond is true.
func (b *Builder) DiscardIf(cond ValueHandle) *Instruction {
	return b.Insert(&InstDiscardIf{Condition: cond}, nil)
}

// Barrier emits a memory barrier.
func (b *Builder) Barrier(scope MemoryScope, semantics MemorySemantics, modes MemoryModes) *Instruction {
	return b.Insert(&InstBarrier{Scope: scope, Semantics: semantics, Modes: modes}, nil)
}

// StoreOutput emits a fragment output store.
func (b *Builder) StoreOutput(value ValueHandle, writeMask, component uint8, sem IOSemantics, srcType ScalarType) *Instruction {
	return b.Insert(&InstStoreOutput{
		Value:     value,
		WriteMask: writeMask,
		Component: component,
		Semantics: sem,
		SrcType:   srcType,
	}, nil)
}

// Float32ToHalf converts f to IEEE 754 binary16 bits, rounding toward zero.
func Float32ToHalf(f float32) uint16 {
	bits := math.Float32bits(f)
	sign := uint16(bits>>16) & 0x8000
	exp := int32(bits>>23&0xff) - 127 + 15
	mant := bits & 0x7fffff

	switch {
	case bits&0x7fffffff == 0:
		return sign
	case bits&0x7f800000 == 0x7f800000:
		if mant != 0 {
			return sign | 0x7e00
		}
		return sign | 0x7c00
	case exp >= 0x1f:
		return sign | 0x7bff
	case exp <= 0:
		if exp < -10 {
			return sign
		}
		mant |= 0x800000
		return sign | uint16(mant>>uint32(14-exp))
	}
	return sign | uint16(exp)<<10 | uint16(mant>>13)
}
