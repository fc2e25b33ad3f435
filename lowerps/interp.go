package lowerps

import (
	"fmt"
	"log/slog"

	"github.com/gogpu/radeon/ir"
)

var interpClassNames = [interpClassCount]string{"persp", "linear"}

var samplingNames = [samplingCount]string{"center", "centroid", "sample"}

// createInterpParams declares a temporary for every barycentric whose value
// forced interpolation or the centroid optimisation replaces.
func (s *state) createInterpParams() {
	o := s.opts
	needs := [interpClassCount][samplingCount]bool{
		interpPersp: {
			ir.SamplingCenter:   o.ForcePerspSampleInterp,
			ir.SamplingCentroid: o.BCOptimizeForPersp || o.ForcePerspSampleInterp || o.ForcePerspCenterInterp,
			ir.SamplingSample:   o.ForcePerspCenterInterp,
		},
		interpLinear: {
			ir.SamplingCenter:   o.ForceLinearSampleInterp,
			ir.SamplingCentroid: o.BCOptimizeForLinear || o.ForceLinearSampleInterp || o.ForceLinearCenterInterp,
			ir.SamplingSample:   o.ForceLinearCenterInterp,
		},
	}
	for c := range needs {
		for i, need := range needs[c] {
			if !need {
				continue
			}
			name := fmt.Sprintf("%s_%s", interpClassNames[c], samplingNames[i])
			s.interp[c][i] = s.fn.AddLocalVar(name, 2, 32)
			s.lowerLoadBarycentric = true
			Logger().Debug("lowerps: interpolation temporary", slog.String("name", name))
		}
	}
}

// interpClass maps an interpolation qualifier to its temporary class.
func interpClass(mode ir.InterpMode) (int, bool) {
	switch mode {
	case ir.InterpNone, ir.InterpSmooth:
		return interpPersp, true
	case ir.InterpNoPerspective:
		return interpLinear, true
	}
	return 0, false
}

func (s *state) lowerBarycentric(inst *ir.Instruction, k *ir.InstLoadBarycentric) {
	c, ok := interpClass(k.Interp)
	if !ok || int(k.Sampling) >= samplingCount {
		return
	}
	v := s.interp[c][k.Sampling]
	if v == noVar {
		return
	}

	s.b.Cursor = ir.Before(inst)
	repl := s.b.LoadVar(v)
	s.fn.ReplaceInstruction(inst, repl)
	s.changed = true
}

// initInterpParams fills the temporaries at the top of the function. The
// loads emitted here bypass the rewrite because the walk is already done.
func (s *state) initInterpParams() {
	if !s.lowerLoadBarycentric {
		return
	}
	o := s.opts
	b := s.b
	b.Cursor = ir.BlockStart(s.fn.Body)

	modes := [interpClassCount]ir.InterpMode{interpPersp: ir.InterpSmooth, interpLinear: ir.InterpNoPerspective}
	bcOptimize := [interpClassCount]bool{o.BCOptimizeForPersp, o.BCOptimizeForLinear}
	forceSample := [interpClassCount]bool{o.ForcePerspSampleInterp, o.ForceLinearSampleInterp}
	forceCenter := [interpClassCount]bool{o.ForcePerspCenterInterp, o.ForceLinearCenterInterp}

	if bcOptimize[interpPersp] || bcOptimize[interpLinear] {
		// The hardware sets the optimize bit when the whole primitive
		// covers the pixel, in which case centroid equals center.
		useCenter := b.LoadSystemValue(ir.SysBarycentricOptimize)
		for c := range bcOptimize {
			if !bcOptimize[c] {
				continue
			}
			center := b.LoadBarycentric(ir.SamplingCenter, modes[c])
			centroid := b.LoadBarycentric(ir.SamplingCentroid, modes[c])
			b.StoreVar(s.interp[c][ir.SamplingCentroid], b.Bcsel(useCenter, center, centroid), 0x3)
		}
	}

	for c := range forceSample {
		if !forceSample[c] {
			continue
		}
		sample := b.LoadBarycentric(ir.SamplingSample, modes[c])
		b.StoreVar(s.interp[c][ir.SamplingCenter], sample, 0x3)
		b.StoreVar(s.interp[c][ir.SamplingCentroid], sample, 0x3)
	}

	for c := range forceCenter {
		if !forceCenter[c] {
			continue
		}
		center := b.LoadBarycentric(ir.SamplingCenter, modes[c])
		b.StoreVar(s.interp[c][ir.SamplingSample], center, 0x3)
		b.StoreVar(s.interp[c][ir.SamplingCentroid], center, 0x3)
	}
}
