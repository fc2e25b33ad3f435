package irtext

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/gogpu/radeon/ir"
)

var stageNames = []string{
	ir.StageVertex:   "vertex",
	ir.StageFragment: "fragment",
	ir.StageCompute:  "compute",
}

var interpNames = []string{
	ir.InterpNone:          "none",
	ir.InterpSmooth:        "smooth",
	ir.InterpFlat:          "flat",
	ir.InterpNoPerspective: "noperspective",
	ir.InterpExplicit:      "explicit",
}

var samplingNames = []string{
	ir.SamplingCenter:   "center",
	ir.SamplingCentroid: "centroid",
	ir.SamplingSample:   "sample",
}

var slotNames = []string{
	ir.FragResultDepth:      "depth",
	ir.FragResultStencil:    "stencil",
	ir.FragResultColor:      "color",
	ir.FragResultSampleMask: "sample_mask",
	ir.FragResultData0:      "data0",
	ir.FragResultData1:      "data1",
	ir.FragResultData2:      "data2",
	ir.FragResultData3:      "data3",
	ir.FragResultData4:      "data4",
	ir.FragResultData5:      "data5",
	ir.FragResultData6:      "data6",
	ir.FragResultData7:      "data7",
}

var systemValueNames = []string{
	ir.SysSampleID:            "sample_id",
	ir.SysSampleMaskIn:        "sample_mask_in",
	ir.SysSampleCoverage:      "sample_coverage",
	ir.SysBarycentricOptimize: "barycentric_optimize",
	ir.SysAlphaReference:      "alpha_reference",
	ir.SysSubgroupInvocation:  "subgroup_invocation",
	ir.SysFragCoord:           "frag_coord",
	ir.SysFrontFacing:         "front_facing",
}

var scalarKindNames = []string{
	ir.ScalarSint:  "int",
	ir.ScalarUint:  "uint",
	ir.ScalarFloat: "float",
	ir.ScalarBool:  "bool",
}

var scopeNames = []string{
	ir.ScopeNone:        "none",
	ir.ScopeInvocation:  "invocation",
	ir.ScopeSubgroup:    "subgroup",
	ir.ScopeWorkgroup:   "workgroup",
	ir.ScopeQueueFamily: "queue_family",
	ir.ScopeDevice:      "device",
}

// Bit i of a flag set is named by index i.
var (
	exportFlagNames = []string{"compressed", "done", "valid_mask"}
	semanticsNames  = []string{"acquire", "release"}
	modeNames       = []string{"image", "ubo", "ssbo", "global", "shared"}
)

// Execution mode lines.
var infoNames = []string{
	"pixel_interlock_ordered",
	"pixel_interlock_unordered",
	"sample_interlock_ordered",
	"sample_interlock_unordered",
}

func infoFlags(info *ir.FragmentInfo) []*bool {
	return []*bool{
		&info.PixelInterlockOrdered,
		&info.PixelInterlockUnordered,
		&info.SampleInterlockOrdered,
		&info.SampleInterlockUnordered,
	}
}

func name[T ~uint8](names []string, v T) string {
	if int(v) < len(names) && names[v] != "" {
		return names[v]
	}
	return fmt.Sprintf("%d", v)
}

func lookup(names []string, s string) (int, bool) {
	for i, n := range names {
		if n != "" && n == s {
			return i, true
		}
	}
	return 0, false
}

// flagString joins the names of the set bits, or returns "none".
func flagString(names []string, bits uint32) string {
	if bits == 0 {
		return "none"
	}
	var parts []string
	for i, n := range names {
		if bits&(1<<i) != 0 {
			parts = append(parts, n)
		}
	}
	if rest := bits &^ (1<<len(names) - 1); rest != 0 {
		parts = append(parts, fmt.Sprintf("%#x", rest))
	}
	return strings.Join(parts, "|")
}

func scalarTypeString(t ir.ScalarType) string {
	return fmt.Sprintf("%s%d", name(scalarKindNames, t.Kind), t.Bits())
}

func parseScalarType(s string) (ir.ScalarType, bool) {
	for kind, prefix := range scalarKindNames {
		rest, ok := strings.CutPrefix(s, prefix)
		if !ok {
			continue
		}
		switch rest {
		case "8", "16", "32", "64":
			bits, _ := strconv.Atoi(rest)
			return ir.ScalarType{Kind: ir.ScalarKind(kind), Width: uint8(bits / 8)}, true
		}
	}
	return ir.ScalarType{}, false
}
