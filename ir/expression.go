package ir

// Instruction is a node in a Block.
// Instructions that produce a value set Def to a handle in the function's
// value arena; the others leave it as NoValue.
type Instruction struct {
	Kind InstructionKind
	Def  ValueHandle

	block *Block
}

// InstructionKind represents the different kinds of instructions.
// Kinds are pointer types so passes can update operands in place.
type InstructionKind interface {
	instructionKind()
}

// Block returns the block holding the instruction, or nil once removed.
func (i *Instruction) Block() *Block { return i.block }

// Removed reports whether the instruction has been removed from its block.
func (i *Instruction) Removed() bool { return i.block == nil }

// Remove unlinks the instruction from its block.
func (i *Instruction) Remove() {
	if i.block != nil {
		i.block.Remove(i)
	}
}

// InstConst is a scalar constant. Bits holds the raw bit pattern; the
// value's BitSize tells how many of them are significant.
type InstConst struct {
	Bits uint64
}

func (*InstConst) instructionKind() {}

// InstUndef is an undefined value of the shape recorded for its Def.
type InstUndef struct{}

func (*InstUndef) instructionKind() {}

// InstALU applies an arithmetic or logic operation.
type InstALU struct {
	Op   ALUOp
	Args []ValueHandle
}

func (*InstALU) instructionKind() {}

// InstChannel extracts one component of a vector.
type InstChannel struct {
	Vector ValueHandle
	Index  uint8
}

func (*InstChannel) instructionKind() {}

// InstLoadVar reads a local variable.
type InstLoadVar struct {
	Var VariableHandle
}

func (*InstLoadVar) instructionKind() {}

// InstLoadBarycentric loads hardware barycentric coordinates.
type InstLoadBarycentric struct {
	Sampling InterpolationSampling
	Interp   InterpMode
}

func (*InstLoadBarycentric) instructionKind() {}

// InstLoadInput interpolates a varying at the given barycentrics.
type InstLoadInput struct {
	Barycentric ValueHandle
	Location    uint32
	Component   uint8
}

func (*InstLoadInput) instructionKind() {}

// InstLoadSystemValue loads a hardware-provided value.
type InstLoadSystemValue struct {
	Value SystemValue
}

func (*InstLoadSystemValue) instructionKind() {}

// InstQuadSwizzle permutes a value between the lanes of each quad.
// Mask holds four 2-bit source lane indices, lane 0 in the low bits.
type InstQuadSwizzle struct {
	Src           ValueHandle
	Mask          uint8
	FetchInactive bool
}

func (*InstQuadSwizzle) instructionKind() {}

// ALUOp represents ALU operations.
type ALUOp uint8

const (
	// Construction
	OpVec ALUOp = iota // Build a vector from scalars, one per argument

	// Float arithmetic
	OpFAdd // Addition
	OpFSub // Subtraction
	OpFMul // Multiplication
	OpFNeg // Negation
	OpFSat // Clamp to [0, 1]

	// Comparisons, 1-bit boolean result
	OpFEq  // Ordered equal
	OpFNeu // Unordered not equal
	OpFLt  // Ordered less than
	OpFGe  // Ordered greater or equal
	OpIEq  // Integer equal
	OpINe  // Integer not equal
	OpILt  // Signed less than
	OpIGe  // Signed greater or equal
	OpULt  // Unsigned less than
	OpUGe  // Unsigned greater or equal

	// Integer and bitwise
	OpIAdd // Integer addition
	OpINot // Bitwise not
	OpIAnd // Bitwise and
	OpIOr  // Bitwise or
	OpIShl // Shift left
	OpUShr // Logical shift right
	OpIMin // Signed minimum
	OpIMax // Signed maximum
	OpUMin // Unsigned minimum
	OpUMax // Unsigned maximum

	// Selection
	OpBcsel // cond ? a : b

	// Conversions to 32 bits
	OpF2F32 // Float to 32-bit float
	OpI2I32 // Sign-extend to 32 bits
	OpU2U32 // Zero-extend to 32 bits
	OpB2B32 // Boolean to 32-bit boolean

	// Packing into a 32-bit word
	OpPack32_2x16           // Two 16-bit components of a vec2
	OpPackHalf2x16RTZSplit  // Two 32-bit floats to halves, round toward zero
	OpPackUint2x16          // Two 32-bit uints, truncated to 16 bits each
	OpPackSint2x16          // Two 32-bit ints, truncated to 16 bits each
	OpPackUnorm2x16         // Two floats to 16-bit unorm
	OpPackSnorm2x16         // Two floats to 16-bit snorm
	aluOpCount
)

// aluOpInfo describes the operand and result shape of an ALU operation.
type aluOpInfo struct {
	name string
	// inputs is the number of arguments, or -1 for variadic (OpVec).
	inputs int
	// outputComponents is fixed when non-zero, otherwise per-component
	// like the first argument.
	outputComponents uint8
	// outputBits is fixed when non-zero, otherwise the first argument's.
	outputBits uint8
}

var aluOps = [aluOpCount]aluOpInfo{
	OpVec:                  {name: "vec", inputs: -1},
	OpFAdd:                 {name: "fadd", inputs: 2},
	OpFSub:                 {name: "fsub", inputs: 2},
	OpFMul:                 {name: "fmul", inputs: 2},
	OpFNeg:                 {name: "fneg", inputs: 1},
	OpFSat:                 {name: "fsat", inputs: 1},
	OpFEq:                  {name: "feq", inputs: 2, outputBits: 1},
	OpFNeu:                 {name: "fneu", inputs: 2, outputBits: 1},
	OpFLt:                  {name: "flt", inputs: 2, outputBits: 1},
	OpFGe:                  {name: "fge", inputs: 2, outputBits: 1},
	OpIEq:                  {name: "ieq", inputs: 2, outputBits: 1},
	OpINe:                  {name: "ine", inputs: 2, outputBits: 1},
	OpILt:                  {name: "ilt", inputs: 2, outputBits: 1},
	OpIGe:                  {name: "ige", inputs: 2, outputBits: 1},
	OpULt:                  {name: "ult", inputs: 2, outputBits: 1},
	OpUGe:                  {name: "uge", inputs: 2, outputBits: 1},
	OpIAdd:                 {name: "iadd", inputs: 2},
	OpINot:                 {name: "inot", inputs: 1},
	OpIAnd:                 {name: "iand", inputs: 2},
	OpIOr:                  {name: "ior", inputs: 2},
	OpIShl:                 {name: "ishl", inputs: 2},
	OpUShr:                 {name: "ushr", inputs: 2},
	OpIMin:                 {name: "imin", inputs: 2},
	OpIMax:                 {name: "imax", inputs: 2},
	OpUMin:                 {name: "umin", inputs: 2},
	OpUMax:                 {name: "umax", inputs: 2},
	OpBcsel:                {name: "bcsel", inputs: 3},
	OpF2F32:                {name: "f2f32", inputs: 1, outputBits: 32},
	OpI2I32:                {name: "i2i32", inputs: 1, outputBits: 32},
	OpU2U32:                {name: "u2u32", inputs: 1, outputBits: 32},
	OpB2B32:                {name: "b2b32", inputs: 1, outputBits: 32},
	OpPack32_2x16:          {name: "pack_32_2x16", inputs: 1, outputComponents: 1, outputBits: 32},
	OpPackHalf2x16RTZSplit: {name: "pack_half_2x16_rtz_split", inputs: 2, outputComponents: 1, outputBits: 32},
	OpPackUint2x16:         {name: "pack_uint_2x16", inputs: 1, outputComponents: 1, outputBits: 32},
	OpPackSint2x16:         {name: "pack_sint_2x16", inputs: 1, outputComponents: 1, outputBits: 32},
	OpPackUnorm2x16:        {name: "pack_unorm_2x16", inputs: 1, outputComponents: 1, outputBits: 32},
	OpPackSnorm2x16:        {name: "pack_snorm_2x16", inputs: 1, outputComponents: 1, outputBits: 32},
}

// String returns the operation's mnemonic.
func (op ALUOp) String() string {
	if op < aluOpCount {
		return aluOps[op].name
	}
	return "unknown"
}

// NumInputs returns the number of arguments op takes, or -1 if variadic.
func (op ALUOp) NumInputs() int {
	if op < aluOpCount {
		return aluOps[op].inputs
	}
	return 0
}

// LookupALUOp finds an operation by mnemonic.
func LookupALUOp(name string) (ALUOp, bool) {
	for i := ALUOp(0); i < aluOpCount; i++ {
		if aluOps[i].name == name {
			return i, true
		}
	}
	return 0, false
}
