package lowerps

import (
	"log/slog"

	"github.com/gogpu/radeon/amd"
	"github.com/gogpu/radeon/ir"
)

// Interpolation classes of the barycentric temporaries.
const (
	interpPersp = iota
	interpLinear
	interpClassCount
)

// Number of InterpolationSampling locations.
const samplingCount = 3

const noVar = ^ir.VariableHandle(0)

// maxExports bounds the exports one shader emits: MRTZ plus eight colors.
const maxExports = ir.MaxDrawBuffers + 1

// state is the per-invocation state of Lower.
type state struct {
	opts   *Options
	hw     amd.Hardware
	shader *ir.Shader
	fn     *ir.Function
	b      *ir.Builder

	// interp holds the barycentric temporaries, indexed by interpolation
	// class and sampling location. noVar marks an unused slot.
	interp               [interpClassCount][samplingCount]ir.VariableHandle
	lowerLoadBarycentric bool

	// Accumulation table. Absent entries are ir.NoValue.
	depth      ir.ValueHandle
	stencil    ir.ValueHandle
	sampleMask ir.ValueHandle
	color      [ir.MaxDrawBuffers][4]ir.ValueHandle
	colorType  [ir.MaxDrawBuffers]ir.ScalarType

	// outputVars lists the entries written inside control flow, in the
	// order their variables were created.
	outputVars []outputVar
	topLevel   *ir.Instruction

	colorsWritten      uint8
	hasDualSrcBlending bool

	// spiShaderColFormat is a working copy; dual-source completion may
	// rewrite it.
	spiShaderColFormat amd.ColorFormats

	exp               []*ir.Instruction
	compactedMRTIndex uint8

	changed bool
}

// outputVar backs a table entry with a local variable.
type outputVar struct {
	dst *ir.ValueHandle
	v   ir.VariableHandle
}

func newState(shader *ir.Shader, fn *ir.Function, opts *Options) *state {
	s := &state{
		opts:               opts,
		hw:                 opts.hardware(),
		shader:             shader,
		fn:                 fn,
		b:                  ir.NewBuilder(fn),
		depth:              ir.NoValue,
		stencil:            ir.NoValue,
		sampleMask:         ir.NoValue,
		hasDualSrcBlending: opts.DualSrcBlendSwizzle,
		spiShaderColFormat: opts.SpiShaderColFormat,
		exp:                make([]*ir.Instruction, 0, maxExports),
	}
	for c := range s.interp {
		for i := range s.interp[c] {
			s.interp[c][i] = noVar
		}
	}
	for i := range s.color {
		for j := range s.color[i] {
			s.color[i][j] = ir.NoValue
		}
	}
	return s
}

// Lower rewrites the entry function of a fragment shader so that its outputs
// are written through hardware exports. It reports whether the shader was
// changed; a shader that already ends in a final export is left alone.
//
// Lower panics if the shader violates a precondition of the hardware
// lowering, such as a depth store to a component other than x or a
// dual-source blend without exactly two color outputs.
func Lower(shader *ir.Shader, opts *Options) bool {
	fn := shader.EntryFunction()
	if fn == nil || shader.Stage != ir.StageFragment {
		return false
	}
	log := Logger().With(slog.String("shader", shader.Name), slog.String("gfx", opts.GfxLevel.String()))

	if alreadyLowered(fn) {
		log.Debug("lowerps: outputs already exported, skipping")
		return false
	}

	s := newState(shader, fn, opts)
	s.createInterpParams()

	fn.Body.ForEach(s.lowerInstruction)

	s.initInterpParams()
	s.exportOutputs()

	if s.lowerLoadBarycentric {
		ir.LowerVarsToSSA(fn)
	}

	log.Debug("lowerps: lowered outputs",
		slog.Int("exports", len(s.exp)),
		slog.Int("colors_written", int(s.colorsWritten)),
		slog.Bool("dual_src", s.hasDualSrcBlending))
	return s.changed
}

// alreadyLowered reports whether fn contains an export that ends the
// shader, which Lower only emits as its final step.
func alreadyLowered(fn *ir.Function) bool {
	found := false
	fn.Body.ForEach(func(inst *ir.Instruction) {
		switch k := inst.Kind.(type) {
		case *ir.InstExport:
			if k.Flags&ir.ExportDone != 0 {
				found = true
			}
		case *ir.InstExportDualSrcBlend:
			found = true
		}
	})
	return found
}

func (s *state) lowerInstruction(inst *ir.Instruction) {
	if inst.Block() == s.fn.Body {
		s.topLevel = inst
	}
	switch k := inst.Kind.(type) {
	case *ir.InstStoreOutput:
		s.gatherOutput(inst, k)
	case *ir.InstLoadBarycentric:
		if s.lowerLoadBarycentric {
			s.lowerBarycentric(inst, k)
		}
	case *ir.InstLoadSystemValue:
		if k.Value == ir.SysSampleMaskIn && s.opts.PsIterSamples > 1 {
			s.lowerSampleMaskIn(inst)
		}
	}
}

// lowerSampleMaskIn restricts the pixel coverage to the samples the current
// invocation shades.
func (s *state) lowerSampleMaskIn(inst *ir.Instruction) {
	b := s.b
	b.Cursor = ir.Before(inst)

	iterMask := s.hw.PsIterMask(s.opts.PsIterSamples)
	sampleID := b.LoadSystemValue(ir.SysSampleID)
	submask := b.ALU(ir.OpIShl, b.Imm(uint64(iterMask), 32), sampleID)
	coverage := b.LoadSystemValue(ir.SysSampleCoverage)
	mask := b.ALU(ir.OpIAnd, coverage, submask)

	s.fn.ReplaceInstruction(inst, mask)
	s.changed = true
}
