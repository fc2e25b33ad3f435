package lowerps

import (
	"log/slog"

	"github.com/gogpu/radeon/amd"
	"github.com/gogpu/radeon/ir"
)

// exportOutputs emits all exports at the end of the entry function.
func (s *state) exportOutputs() {
	o := s.opts
	s.b.Cursor = ir.BlockEnd(s.fn.Body)

	s.loadOutputVars()
	s.emitClampAndAlphaTest()

	if !o.NoDepthExport {
		s.emitMRTZExport()
	}

	// The color epilog finishes the shader.
	if o.NoColorExport {
		return
	}

	firstColor := len(s.exp)

	if s.hasDualSrcBlending {
		s.completeDualSrcBlend()
	}

	if o.BroadcastLastCbuf > 0 {
		if s.colorsWritten&0x1 == 0 {
			panic("broadcasting color 0 to every target, but color 0 is not written")
		}
		for cbuf := 0; cbuf <= o.BroadcastLastCbuf; cbuf++ {
			s.emitColorExport(0, cbuf)
		}
	} else {
		for cbuf := 0; cbuf < ir.MaxDrawBuffers; cbuf++ {
			s.emitColorExport(cbuf, cbuf)
		}
	}

	if len(s.exp) == 0 {
		s.emitNullExport()
		return
	}
	s.changed = true

	if o.DualSrcBlendSwizzle && len(s.exp)-firstColor >= 2 {
		s.emitDualSrcBlendSwizzle(firstColor)
		// The pseudo export is final by construction.
		if o.UseACO {
			return
		}
	}

	final := s.lastExport()
	k := final.Kind.(*ir.InstExport)
	k.Flags |= ir.ExportDone | ir.ExportValidMask

	if o.GfxLevel >= amd.GFX11 && s.shader.Info.UsesPOPS() {
		s.b.Cursor = ir.Before(final)
		s.emitPOPSRelease()
	}
}

// lastExport returns the pending export that comes last in program order.
func (s *state) lastExport() *ir.Instruction {
	var last *ir.Instruction
	lastIndex := -1
	for _, e := range s.exp {
		if e.Removed() {
			continue
		}
		if i := e.Block().Index(e); i > lastIndex {
			last, lastIndex = e, i
		}
	}
	return last
}

// emitPOPSRelease makes memory writes of the ordered section visible before
// the final export lets the next overlapping pixel in.
func (s *state) emitPOPSRelease() {
	s.b.Barrier(ir.ScopeQueueFamily, ir.SemanticsRelease,
		ir.ModeImage|ir.ModeUBO|ir.ModeSSBO|ir.ModeGlobal)
}

// emitMRTZExport exports depth, stencil, sample mask and, for
// alpha-to-coverage, the alpha of color 0.
func (s *state) emitMRTZExport() {
	o := s.opts
	b := s.b

	mrtzAlpha := ir.NoValue
	if o.AlphaToCoverageViaMRTZ && s.color[0][3].Valid() {
		mrtzAlpha = b.ConvertToBitSize(s.color[0][3], ir.ScalarFloat, 32)
	}

	if !s.depth.Valid() && !s.stencil.Valid() && !s.sampleMask.Valid() && !mrtzAlpha.Valid() {
		return
	}

	format := s.hw.SpiShaderZFormat(s.depth.Valid(), s.stencil.Valid(), s.sampleMask.Valid(),
		o.AlphaToCoverageViaMRTZ)

	undef := b.Undef(1, 32)
	outputs := [4]ir.ValueHandle{undef, undef, undef, undef}
	var writeMask uint8
	var flags ir.ExportFlags

	if format == amd.SPIShaderUint16ABGR {
		// Stencil and sample mask share the first dword as 16-bit halves.
		if o.GfxLevel < amd.GFX11 {
			flags |= ir.ExportCompressed
		}
		if s.stencil.Valid() {
			outputs[0] = b.IShlImm(s.stencil, 16)
			if o.GfxLevel >= amd.GFX11 {
				writeMask |= 0x1
			} else {
				writeMask |= 0x3
			}
		}
		if s.sampleMask.Valid() {
			outputs[1] = s.sampleMask
			if o.GfxLevel >= amd.GFX11 {
				writeMask |= 0x2
			} else {
				writeMask |= 0xc
			}
		}
	} else {
		for i, v := range [4]ir.ValueHandle{s.depth, s.stencil, s.sampleMask, mrtzAlpha} {
			if v.Valid() {
				outputs[i] = v
				writeMask |= 1 << i
			}
		}
	}

	// Apart from Oland and Hainan, GFX6 only looks at the X write mask bit.
	if o.GfxLevel == amd.GFX6 && o.Family != amd.ChipOland && o.Family != amd.ChipHainan {
		writeMask |= 0x1
	}

	arg := b.Vec(outputs[:]...)
	s.exp = append(s.exp, b.Export(arg, amd.ExpTargetMRTZ, writeMask, flags))
	Logger().Debug("lowerps: mrtz export", slog.String("format", format.String()), slog.Int("write_mask", int(writeMask)))
}

// emitNullExport signals the end of the shader when nothing else was
// exported. GFX10+ only needs it when the EXEC mask carries killed pixels or
// when the ordered section must be left.
func (s *state) emitNullExport() {
	o := s.opts
	pops := s.shader.Info.UsesPOPS()
	if o.GfxLevel >= amd.GFX10 && !o.UsesDiscard && !pops {
		Logger().Debug("lowerps: null export not needed")
		return
	}

	b := s.b
	if o.GfxLevel >= amd.GFX11 && pops {
		s.emitPOPSRelease()
	}

	// GFX11 removed the null target; an MRT0 export with no channels
	// enabled does the same.
	target := amd.ExpTargetNull
	if o.GfxLevel >= amd.GFX11 {
		target = amd.ExpTargetMRT0
	}
	s.exp = append(s.exp, b.Export(b.Undef(4, 32), target, 0, ir.ExportDone|ir.ExportValidMask))
	s.changed = true
	Logger().Debug("lowerps: null export", slog.Int("target", int(target)))
}
