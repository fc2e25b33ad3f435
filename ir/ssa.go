package ir

// LowerVarsToSSA promotes local variables to SSA values.
//
// A variable is promoted when every store to it sits in the function's
// top-level block and writes all of its components. Each load then takes
// the value of the latest store that precedes it in the top-level block
// (for loads nested in control flow, the latest store preceding the
// enclosing top-level instruction). Loads that precede every store read an
// undefined value. Promoted variables are deleted.
//
// Returns true if any variable was promoted.
func LowerVarsToSSA(fn *Function) bool {
	promotable := make([]bool, len(fn.LocalVars))
	for i := range promotable {
		promotable[i] = true
	}
	fn.Body.ForEach(func(inst *Instruction) {
		st, ok := inst.Kind.(*InstStoreVar)
		if !ok {
			return
		}
		v := fn.LocalVars[st.Var]
		full := uint8(1)<<v.Components - 1
		if inst.Block() != fn.Body || st.WriteMask&full != full {
			promotable[st.Var] = false
		}
	})

	found := false
	for _, p := range promotable {
		found = found || p
	}
	if !found {
		return false
	}

	current := make([]ValueHandle, len(fn.LocalVars))
	for i := range current {
		current[i] = NoValue
	}
	repl := make(map[ValueHandle]ValueHandle)
	resolve := func(h ValueHandle) ValueHandle {
		for {
			r, ok := repl[h]
			if !ok {
				return h
			}
			h = r
		}
	}

	b := NewBuilder(fn)
	replaceLoad := func(inst *Instruction, v VariableHandle) {
		val := current[v]
		if !val.Valid() {
			lv := fn.LocalVars[v]
			b.Cursor = Before(inst)
			val = b.Undef(lv.Components, lv.BitSize)
		}
		repl[inst.Def] = val
		inst.Remove()
	}

	fn.Body.ForEach(func(inst *Instruction) {
		switch k := inst.Kind.(type) {
		case *InstStoreVar:
			if promotable[k.Var] {
				current[k.Var] = resolve(k.Value)
				inst.Remove()
			}
		case *InstLoadVar:
			if promotable[k.Var] {
				replaceLoad(inst, k.Var)
			}
		}
	})

	fn.Body.ForEach(func(inst *Instruction) {
		VisitOperands(inst.Kind, func(h *ValueHandle) {
			*h = resolve(*h)
		})
	})

	removePromotedVars(fn, promotable)
	return true
}

// removePromotedVars deletes the marked variables and renumbers the
// references to the remaining ones.
func removePromotedVars(fn *Function, removed []bool) {
	remap := make([]VariableHandle, len(fn.LocalVars))
	kept := fn.LocalVars[:0]
	for i, v := range fn.LocalVars {
		if removed[i] {
			continue
		}
		remap[i] = VariableHandle(len(kept))
		kept = append(kept, v)
	}
	fn.LocalVars = kept

	fn.Body.ForEach(func(inst *Instruction) {
		switch k := inst.Kind.(type) {
		case *InstStoreVar:
			k.Var = remap[k.Var]
		case *InstLoadVar:
			k.Var = remap[k.Var]
		}
	})
}
