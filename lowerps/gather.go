package lowerps

import (
	"fmt"
	"log/slog"

	"github.com/gogpu/radeon/ir"
)

// gatherOutput records the components of an output store in the
// accumulation table and removes the store unless an epilog still needs it.
func (s *state) gatherOutput(inst *ir.Instruction, k *ir.InstStoreOutput) {
	slot := k.Semantics.Location

	var colorIndex uint8
	if slot >= ir.FragResultData0 {
		colorIndex = uint8(slot - ir.FragResultData0)
	}
	colorIndex += k.Semantics.DualSourceIndex

	s.b.Cursor = ir.Before(inst)
	nested := inst.Block() != s.fn.Body

	for i := uint8(0); i < 4; i++ {
		if k.WriteMask&(1<<i) == 0 {
			continue
		}
		ch := s.b.Channel(k.Value, i)
		comp := k.Component + i

		var dst *ir.ValueHandle
		var name string
		switch {
		case slot == ir.FragResultDepth:
			checkScalarOutput(slot, comp)
			dst, name = &s.depth, "depth"
		case slot == ir.FragResultStencil:
			checkScalarOutput(slot, comp)
			dst, name = &s.stencil, "stencil"
		case slot == ir.FragResultSampleMask:
			checkScalarOutput(slot, comp)
			if !s.opts.KillSampleMask {
				dst, name = &s.sampleMask, "sample_mask"
			}
		case slot.IsColor():
			if colorIndex >= ir.MaxDrawBuffers || comp >= 4 {
				panic(fmt.Sprintf("color output %d component %d out of range", colorIndex, comp))
			}
			dst, name = &s.color[colorIndex][comp], fmt.Sprintf("color%d_%c", colorIndex, "xyzw"[comp])
		default:
			panic(fmt.Sprintf("unhandled fragment output location %d", slot))
		}
		if dst != nil {
			s.record(dst, name, ch, nested)
		}
	}

	Logger().Debug("lowerps: gathered output",
		slog.Int("location", int(slot)),
		slog.Int("write_mask", int(k.WriteMask)),
		slog.Bool("nested", nested))

	if slot.IsColor() && k.WriteMask != 0 {
		s.colorsWritten |= 1 << colorIndex
		s.colorType[colorIndex] = k.SrcType
		if k.Semantics.DualSourceIndex != 0 {
			s.hasDualSrcBlending = true
		}
	}

	// Stores are kept for the group whose exports an epilog emits.
	keep := s.opts.NoDepthExport
	if slot.IsColor() {
		keep = s.opts.NoColorExport
	}
	if !keep {
		inst.Remove()
	}
	s.changed = true
}

// checkScalarOutput checks that a depth, stencil or sample mask store writes the
// first component.
func checkScalarOutput(slot ir.FragResult, comp uint8) {
	if comp != 0 {
		panic(fmt.Sprintf("output location %d written at component %d, only component 0 exists", slot, comp))
	}
}

// record sets a table entry to ch. A value stored inside control flow does
// not dominate the exports, so such an entry is carried in a local variable
// from then on and reloaded by loadOutputVars.
func (s *state) record(dst *ir.ValueHandle, name string, ch ir.ValueHandle, nested bool) {
	v, ok := s.outputVar(dst)
	if !ok && !nested {
		*dst = ch
		return
	}
	if !ok {
		v = s.fn.AddLocalVar(name, 1, s.fn.Value(ch).BitSize)
		s.outputVars = append(s.outputVars, outputVar{dst: dst, v: v})

		// Carry the value the slot held before the enclosing control flow.
		at := s.b.Cursor
		prev := *dst
		if prev.Valid() {
			s.b.Cursor = ir.Before(s.topLevel)
		} else {
			s.b.Cursor = ir.BlockStart(s.fn.Body)
			prev = s.b.Undef(1, s.fn.Value(ch).BitSize)
		}
		s.b.StoreVar(v, prev, 0x1)
		s.b.Cursor = at
		Logger().Debug("lowerps: output temporary", slog.String("name", name))
	}
	s.b.StoreVar(v, ch, 0x1)
	*dst = ir.NoValue
}

func (s *state) outputVar(dst *ir.ValueHandle) (ir.VariableHandle, bool) {
	for _, o := range s.outputVars {
		if o.dst == dst {
			return o.v, true
		}
	}
	return noVar, false
}

// loadOutputVars reloads the variable-backed table entries at the cursor.
func (s *state) loadOutputVars() {
	for _, o := range s.outputVars {
		*o.dst = s.b.LoadVar(o.v)
	}
}
