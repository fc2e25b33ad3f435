// Package ir defines the intermediate representation lowered by radeon.
//
// The IR is a shader-agnostic SSA representation: every value is defined
// exactly once by an instruction and referenced through a ValueHandle into
// the owning function's value arena. Control flow is structured (if/loop
// blocks), and side effects are explicit instructions.
package ir

// Shader represents a single shader in IR form.
type Shader struct {
	Name  string
	Stage ShaderStage

	// Info holds stage-specific properties gathered by the front end.
	Info FragmentInfo

	// Functions holds all function definitions
	Functions []*Function

	// EntryPoint indexes Functions
	EntryPoint FunctionHandle
}

// EntryFunction returns the shader's entry function, or nil if the shader
// has no functions.
func (s *Shader) EntryFunction() *Function {
	if int(s.EntryPoint) >= len(s.Functions) {
		return nil
	}
	return s.Functions[s.EntryPoint]
}

// ShaderStage represents a shader stage.
type ShaderStage uint8

const (
	StageVertex ShaderStage = iota
	StageFragment
	StageCompute
)

// FragmentInfo describes fragment shader execution modes.
type FragmentInfo struct {
	PixelInterlockOrdered    bool
	PixelInterlockUnordered  bool
	SampleInterlockOrdered   bool
	SampleInterlockUnordered bool
}

// UsesPOPS reports whether the shader runs any part of its body inside a
// primitive ordered pixel shading (interlock) section.
func (i FragmentInfo) UsesPOPS() bool {
	return i.PixelInterlockOrdered || i.PixelInterlockUnordered ||
		i.SampleInterlockOrdered || i.SampleInterlockUnordered
}

// Handle types for referencing IR objects
type (
	FunctionHandle uint32
	ValueHandle    uint32
	VariableHandle uint32
)

// NoValue marks an absent value.
const NoValue ValueHandle = ^ValueHandle(0)

// Valid reports whether h refers to a value.
func (h ValueHandle) Valid() bool { return h != NoValue }

// Value describes the shape of an SSA value in the function's value arena.
type Value struct {
	Components uint8
	BitSize    uint8
}

// Function represents a function definition.
type Function struct {
	Name      string
	Values    []Value
	LocalVars []LocalVariable
	Body      *Block
}

// NewFunction creates an empty function.
func NewFunction(name string) *Function {
	return &Function{
		Name:   name,
		Values: make([]Value, 0, 32),
		Body:   &Block{},
	}
}

// NewValue allocates a value in the arena and returns its handle.
func (f *Function) NewValue(components, bitSize uint8) ValueHandle {
	h := ValueHandle(len(f.Values))
	f.Values = append(f.Values, Value{Components: components, BitSize: bitSize})
	return h
}

// Value returns the shape of h.
func (f *Function) Value(h ValueHandle) Value {
	return f.Values[h]
}

// AddLocalVar declares a function-local variable.
func (f *Function) AddLocalVar(name string, components, bitSize uint8) VariableHandle {
	h := VariableHandle(len(f.LocalVars))
	f.LocalVars = append(f.LocalVars, LocalVariable{Name: name, Components: components, BitSize: bitSize})
	return h
}

// LocalVariable represents a function-local variable.
type LocalVariable struct {
	Name       string
	Components uint8
	BitSize    uint8
}

// ScalarKind represents scalar type kinds.
type ScalarKind uint8

const (
	ScalarSint  ScalarKind = iota // Signed integer
	ScalarUint                    // Unsigned integer
	ScalarFloat                   // Floating point
	ScalarBool                    // Boolean
)

// ScalarType is a numeric type with an explicit width, used to annotate
// untyped SSA values (for example the source type of an output store).
type ScalarType struct {
	Kind  ScalarKind
	Width uint8 // in bytes
}

// Bits returns the bit width of the type.
func (t ScalarType) Bits() uint8 { return t.Width * 8 }

// Common scalar types.
var (
	TypeFloat16 = ScalarType{Kind: ScalarFloat, Width: 2}
	TypeFloat32 = ScalarType{Kind: ScalarFloat, Width: 4}
	TypeSint16  = ScalarType{Kind: ScalarSint, Width: 2}
	TypeSint32  = ScalarType{Kind: ScalarSint, Width: 4}
	TypeUint16  = ScalarType{Kind: ScalarUint, Width: 2}
	TypeUint32  = ScalarType{Kind: ScalarUint, Width: 4}
	TypeBool    = ScalarType{Kind: ScalarBool, Width: 1}
)

// InterpMode is the interpolation qualifier of a barycentric load.
type InterpMode uint8

const (
	InterpNone InterpMode = iota // Unqualified, behaves like smooth
	InterpSmooth
	InterpFlat
	InterpNoPerspective
	InterpExplicit
)

// InterpolationSampling represents where within a pixel a value is
// interpolated.
type InterpolationSampling uint8

const (
	SamplingCenter InterpolationSampling = iota
	SamplingCentroid
	SamplingSample
)

// FragResult is the semantic location of a fragment shader output.
type FragResult uint8

const (
	FragResultDepth FragResult = iota
	FragResultStencil
	FragResultColor
	FragResultSampleMask
	FragResultData0
	FragResultData1
	FragResultData2
	FragResultData3
	FragResultData4
	FragResultData5
	FragResultData6
	FragResultData7
)

// MaxDrawBuffers is the number of color render targets.
const MaxDrawBuffers = 8

// IsColor reports whether r is a color output.
func (r FragResult) IsColor() bool {
	return r == FragResultColor || (r >= FragResultData0 && r <= FragResultData7)
}

// IOSemantics describes which output an I/O instruction accesses.
type IOSemantics struct {
	Location        FragResult
	DualSourceIndex uint8
}

// SystemValue is a hardware-provided input value.
type SystemValue uint8

const (
	SysSampleID SystemValue = iota
	// SysSampleMaskIn is the API-level input sample mask.
	SysSampleMaskIn
	// SysSampleCoverage is the raw coverage of the whole pixel as loaded by
	// hardware, before per-invocation masking.
	SysSampleCoverage
	SysBarycentricOptimize
	SysAlphaReference
	SysSubgroupInvocation
	SysFragCoord
	SysFrontFacing
)
