package ir

// BuildDominatorTree computes the dominator tree of f using the classic
// Cooper/Harvey/Kennedy iterative algorithm (reverse-postorder, repeated
// intersection) and records it on each BasicBlock's IDom/Children fields.
// Requires LinkCFG to have been run first.
func BuildDominatorTree(f *Function) {
	entry := f.Entry()
	if entry == nil {
		return
	}

	order := reversePostorder(entry)
	index := make(map[*BasicBlock]int, len(order))
	for i, b := range order {
		index[b] = i
		b.IDom = nil
		b.Children = nil
	}

	idom := make([]*BasicBlock, len(order))
	idom[0] = entry

	changed := true
	for changed {
		changed = false
		for i := 1; i < len(order); i++ {
			b := order[i]
			var newIdom *BasicBlock
			for _, p := range b.Preds {
				pi, ok := index[p]
				if !ok || idom[pi] == nil && p != entry {
					continue
				}
				if newIdom == nil {
					newIdom = p
					continue
				}
				newIdom = intersect(p, newIdom, index, idom)
			}
			if newIdom != idom[i] {
				idom[i] = newIdom
				changed = true
			}
		}
	}

	for i, b := range order {
		if i == 0 {
			continue
		}
		b.IDom = idom[i]
		if idom[i] != nil {
			idom[i].Children = append(idom[i].Children, b)
		}
	}

	assignPreorder(entry, 0)
}

func intersect(a, b *BasicBlock, index map[*BasicBlock]int, idom []*BasicBlock) *BasicBlock {
	for a != b {
		for index[a] > index[b] {
			ia := index[a]
			if idom[ia] == nil {
				return b
			}
			a = idom[ia]
		}
		for index[b] > index[a] {
			ib := index[b]
			if idom[ib] == nil {
				return a
			}
			b = idom[ib]
		}
	}
	return a
}

func reversePostorder(entry *BasicBlock) []*BasicBlock {
	visited := map[*BasicBlock]bool{}
	var post []*BasicBlock
	var visit func(*BasicBlock)
	visit = func(b *BasicBlock) {
		if visited[b] {
			return
		}
		visited[b] = true
		for _, s := range b.Succs {
			visit(s)
		}
		post = append(post, b)
	}
	visit(entry)
	// reverse
	for i, j := 0, len(post)-1; i < j; i, j = i+1, j-1 {
		post[i], post[j] = post[j], post[i]
	}
	return post
}

func assignPreorder(b *BasicBlock, n int) int {
	b.domOrder = n
	n++
	for _, c := range b.Children {
		n = assignPreorder(c, n)
	}
	return n
}

// Dominates reports whether a dominates b (a == b counts as dominating).
func Dominates(a, b *BasicBlock) bool {
	if a == nil || b == nil {
		return false
	}
	for cur := b; cur != nil; cur = cur.IDom {
		if cur == a {
			return true
		}
	}
	return false
}
