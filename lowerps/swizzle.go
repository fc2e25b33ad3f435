package lowerps

import (
	"github.com/gogpu/radeon/ir"
)

// swapOddEvenLanes is the quad swizzle mask [1, 0, 3, 2].
const swapOddEvenLanes = 0b10110001

// emitDualSrcBlendSwizzle rewrites the two dual-source color exports
// starting at s.exp[first]. The hardware expects the two colors exchanged
// between neighbouring odd and even lanes.
func (s *state) emitDualSrcBlendSwizzle(first int) {
	mrt0, mrt1 := s.exp[first], s.exp[first+1]
	k0 := mrt0.Kind.(*ir.InstExport)
	k1 := mrt1.Kind.(*ir.InstExport)

	// Place the exports next to each other, lower target first.
	if k0.Target > k1.Target {
		mrt0, mrt1 = mrt1, mrt0
		k0, k1 = k1, k0
		ir.After(mrt0).Insert(mrt1)
	} else {
		ir.Before(mrt1).Insert(mrt0)
	}

	writeMask := k0.WriteMask & k1.WriteMask
	arg0, arg1 := k0.Arg, k1.Arg

	b := s.b
	b.Cursor = ir.Before(mrt0)

	if s.opts.UseACO {
		b.ExportDualSrcBlend(arg0, arg1, writeMask)
		mrt0.Remove()
		mrt1.Remove()
		return
	}

	undef := b.Undef(1, 32)
	vec0 := [4]ir.ValueHandle{undef, undef, undef, undef}
	vec1 := vec0

	for i := uint8(0); i < 4; i++ {
		if writeMask&(1<<i) == 0 {
			continue
		}
		c0 := b.Channel(arg0, i)
		c1 := b.Channel(arg1, i)

		c0 = b.QuadSwizzle(c0, swapOddEvenLanes, true)

		tid := b.LoadSystemValue(ir.SysSubgroupInvocation)
		isEven := b.IEqImm(b.IAndImm(tid, 1), 0)

		tmp := c0
		c0 = b.Bcsel(isEven, c1, c0)
		c1 = b.Bcsel(isEven, tmp, c1)

		c0 = b.QuadSwizzle(c0, swapOddEvenLanes, true)

		vec0[i], vec1[i] = c0, c1
	}

	k0.Arg = b.Vec(vec0[:]...)
	k1.Arg = b.Vec(vec1[:]...)
	k0.WriteMask = writeMask
	k1.WriteMask = writeMask
}
