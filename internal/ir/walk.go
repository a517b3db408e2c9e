package ir

// Walk visits node and its descendants in pre-order. Returning false from
// fn skips the children of the visited node.
func Walk(node IR, fn func(IR) bool) {
	if node == nil || !fn(node) {
		return
	}
	switch n := node.(type) {
	case *Path:
		Walk(n.Child, fn)
	case *Map:
		Walk(n.Child, fn)
	case *Cache:
		Walk(n.IO, fn)
	case *Conditional:
		Walk(n.Cond, fn)
		Walk(n.Then, fn)
		Walk(n.Else, fn)
	case *Pipe:
		Walk(n.First, fn)
		Walk(n.Second, fn)
	}
}

// Rewrite returns a copy of node where every node for which fn returns a
// replacement is swapped out. Unchanged subtrees are shared with the input.
func Rewrite(node IR, fn func(IR) (IR, bool)) IR {
	if node == nil {
		return nil
	}
	if repl, ok := fn(node); ok {
		return repl
	}
	switch n := node.(type) {
	case *Path:
		child := Rewrite(n.Child, fn)
		if child == n.Child {
			return n
		}
		return &Path{Child: child, Path: n.Path}
	case *Map:
		child := Rewrite(n.Child, fn)
		if child == n.Child {
			return n
		}
		return &Map{Child: child, Mapping: n.Mapping}
	case *Conditional:
		c, t, e := Rewrite(n.Cond, fn), Rewrite(n.Then, fn), Rewrite(n.Else, fn)
		if c == n.Cond && t == n.Then && e == n.Else {
			return n
		}
		return &Conditional{Cond: c, Then: t, Else: e}
	case *Pipe:
		first, second := Rewrite(n.First, fn), Rewrite(n.Second, fn)
		if first == n.First && second == n.Second {
			return n
		}
		return &Pipe{First: first, Second: second}
	}
	return node
}

// HasIO reports whether any IO call is reachable from node.
func HasIO(node IR) bool {
	found := false
	Walk(node, func(n IR) bool {
		switch n.(type) {
		case *IO, *Cache:
			found = true
		}
		return !found
	})
	return found
}
