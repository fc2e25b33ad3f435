// Package ir defines the intermediate representation lowered by radeon.
//
// The IR is designed to be:
//   - SSA: every value is defined once and referenced by handle
//   - Structured: control flow is nested if/loop blocks, no phis
//   - Mutable: passes insert, move and remove instructions in place
//
// # Structure
//
// A Shader holds functions and names one of them as its entry point. Each
// Function owns:
//   - Values: the arena of SSA value shapes, indexed by ValueHandle
//   - LocalVars: function-local variables, read and written by instructions
//   - Body: the top-level Block of instructions
//
// # Building
//
// A Builder inserts instructions at a Cursor (before/after an instruction,
// or at either end of a block) and moves past each new instruction:
//
//	b := ir.NewBuilder(fn)
//	b.Cursor = ir.BlockStart(fn.Body)
//	one := b.ImmFloat(1.0)
//	b.Export(b.Vec(one, one, one, one), 0, 0xf, ir.ExportDone)
//
// Passes replace a value by inserting its replacement and calling
// Function.ReplaceInstruction, which rewrites every use.
package ir
