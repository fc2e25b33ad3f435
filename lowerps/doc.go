// Package lowerps lowers the outputs of an AMD pixel shader to hardware
// exports.
//
// Lower runs once per shader, after the front end has produced output
// stores and before the backend. It
//
//   - rewrites barycentric loads to honour forced sample or center
//     interpolation and the centroid optimisation,
//   - rewrites the input sample mask load when several invocations shade a
//     pixel,
//   - gathers every depth, stencil, sample mask and color store into an
//     accumulation table and removes the stores that an export replaces,
//   - applies color clamping, alpha-to-one and the alpha test,
//   - emits the MRTZ export and the color exports in their hardware formats,
//     including the dual-source blend swizzle,
//   - flags the final export, or emits a null export when the pixel must
//     still be signalled as done.
//
// Typical use:
//
//	opts := lowerps.DefaultOptions()
//	opts.GfxLevel = amd.GFX11
//	if lowerps.Lower(shader, &opts) {
//		// shader now ends in exports
//	}
package lowerps
