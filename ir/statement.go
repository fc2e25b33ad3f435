package ir

import "slices"

// Block represents a sequence of instructions executed in order.
type Block struct {
	Instructions []*Instruction
}

// Len returns the number of instructions in the block.
func (b *Block) Len() int { return len(b.Instructions) }

// Append adds inst at the end of the block.
func (b *Block) Append(inst *Instruction) {
	b.detach(inst)
	inst.block = b
	b.Instructions = append(b.Instructions, inst)
}

// InsertAt inserts inst so that it ends up at index i.
func (b *Block) InsertAt(i int, inst *Instruction) {
	b.detach(inst)
	inst.block = b
	b.Instructions = slices.Insert(b.Instructions, i, inst)
}

// InsertBefore inserts inst immediately before anchor.
func (b *Block) InsertBefore(anchor, inst *Instruction) {
	b.detach(inst)
	b.InsertAt(b.indexOf(anchor), inst)
}

// InsertAfter inserts inst immediately after anchor.
func (b *Block) InsertAfter(anchor, inst *Instruction) {
	b.detach(inst)
	b.InsertAt(b.indexOf(anchor)+1, inst)
}

// Remove unlinks inst from the block.
func (b *Block) Remove(inst *Instruction) {
	i := b.indexOf(inst)
	b.Instructions = slices.Delete(b.Instructions, i, i+1)
	inst.block = nil
}

// Index returns the position of inst in the block, or -1.
func (b *Block) Index(inst *Instruction) int {
	return slices.Index(b.Instructions, inst)
}

func (b *Block) indexOf(inst *Instruction) int {
	i := b.Index(inst)
	if i < 0 {
		panic("instruction is not in block")
	}
	return i
}

// detach removes inst from whatever block currently holds it, so that
// inserting an already placed instruction moves it.
func (b *Block) detach(inst *Instruction) {
	if inst.block != nil {
		inst.block.Remove(inst)
	}
}

// ForEach visits every instruction of the block and of nested blocks in
// program order. Instructions inserted during the walk are not visited;
// instructions removed before being reached are skipped.
func (b *Block) ForEach(visit func(*Instruction)) {
	if b == nil {
		return
	}
	snapshot := slices.Clone(b.Instructions)
	for _, inst := range snapshot {
		if inst.block != b {
			continue
		}
		visit(inst)
		if inst.block != b {
			continue
		}
		switch k := inst.Kind.(type) {
		case *InstIf:
			k.Then.ForEach(visit)
			k.Else.ForEach(visit)
		case *InstLoop:
			k.Body.ForEach(visit)
		}
	}
}

// InstStoreVar writes the components selected by WriteMask to a local
// variable.
type InstStoreVar struct {
	Var       VariableHandle
	Value     ValueHandle
	WriteMask uint8
}

func (*InstStoreVar) instructionKind() {}

// InstStoreOutput writes a fragment shader output.
// Bit i of WriteMask stores component i of Value into output component
// Component+i.
type InstStoreOutput struct {
	Value     ValueHandle
	WriteMask uint8
	Component uint8
	Semantics IOSemantics
	SrcType   ScalarType
}

func (*InstStoreOutput) instructionKind() {}

// ExportFlags modifies how the hardware treats an export.
type ExportFlags uint8

const (
	// ExportCompressed marks two 16-bit channels packed per 32-bit word.
	ExportCompressed ExportFlags = 1 << 0
	// ExportDone marks the last export of its kind in the shader.
	ExportDone ExportFlags = 1 << 1
	// ExportValidMask makes the hardware use the EXEC mask as the pixel
	// valid mask.
	ExportValidMask ExportFlags = 1 << 2
)

// InstExport sends a 4-component argument to a hardware export target.
type InstExport struct {
	Arg       ValueHandle
	Target    uint8
	WriteMask uint8
	Flags     ExportFlags
}

func (*InstExport) instructionKind() {}

// InstExportDualSrcBlend exports both dual-source blend colors, leaving the
// lane shuffle between them to the backend.
type InstExportDualSrcBlend struct {
	Arg0      ValueHandle
	Arg1      ValueHandle
	WriteMask uint8
}

func (*InstExportDualSrcBlend) instructionKind() {}

// InstDiscard kills the invocation.
type InstDiscard struct{}

func (*InstDiscard) instructionKind() {}

// InstDiscardIf kills the invocation when Condition is true.
type InstDiscardIf struct {
	Condition ValueHandle
}

func (*InstDiscardIf) instructionKind() {}

// MemoryScope is the set of invocations a barrier synchronizes with.
type MemoryScope uint8

const (
	ScopeNone MemoryScope = iota
	ScopeInvocation
	ScopeSubgroup
	ScopeWorkgroup
	ScopeQueueFamily
	ScopeDevice
)

// MemorySemantics is the ordering a barrier enforces.
type MemorySemantics uint8

const (
	SemanticsAcquire MemorySemantics = 1 << 0
	SemanticsRelease MemorySemantics = 1 << 1
)

// MemoryModes represents the memory kinds a barrier orders, using bitflags.
type MemoryModes uint32

const (
	ModeImage  MemoryModes = 1 << 0
	ModeUBO    MemoryModes = 1 << 1
	ModeSSBO   MemoryModes = 1 << 2
	ModeGlobal MemoryModes = 1 << 3
	ModeShared MemoryModes = 1 << 4
)

// InstBarrier is a memory barrier.
type InstBarrier struct {
	Scope     MemoryScope
	Semantics MemorySemantics
	Modes     MemoryModes
}

func (*InstBarrier) instructionKind() {}

// InstIf conditionally executes one of two blocks.
// There are no phi instructions; values flow out of the branches through
// local variables.
type InstIf struct {
	Condition ValueHandle
	Then      *Block
	Else      *Block
}

func (*InstIf) instructionKind() {}

// InstLoop executes Body repeatedly until a Break.
type InstLoop struct {
	Body *Block
}

func (*InstLoop) instructionKind() {}

// InstBreak exits the innermost loop.
type InstBreak struct{}

func (*InstBreak) instructionKind() {}

// InstContinue starts the next iteration of the innermost loop.
type InstContinue struct{}

func (*InstContinue) instructionKind() {}
