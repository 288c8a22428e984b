package ir

// LinkCFG (re)computes predecessor/successor edges for every block in f
// from its terminators. Callers that build functions programmatically
// (tests, the textual-IR loader) call this once after all blocks and
// terminators exist.
func LinkCFG(f *Function) {
	for _, b := range f.Blocks {
		b.Preds = nil
		b.Succs = nil
	}
	for _, b := range f.Blocks {
		term := b.Terminator()
		if term == nil {
			continue
		}
		for _, succ := range successorsOf(term) {
			b.Succs = append(b.Succs, succ)
			succ.Preds = append(succ.Preds, b)
		}
	}
}

func successorsOf(term Instruction) []*BasicBlock {
	switch t := term.(type) {
	case *BrInst:
		return t.Successors()
	default:
		return nil
	}
}
