package tree

import "github.com/mduval/tutor-agent/internal/domain"

// Forest is the partition of a flat session list into roots and a child
// index. Relative order within each list is the order of the input.
type Forest struct {
	Roots    []*domain.Session
	Children map[domain.SessionID][]*domain.Session
}

// BuildForest partitions sessions in a single pass. Sessions whose parent id
// is absent from the input set stay in the child index but are unreachable
// from Roots, so a walk silently drops them; that is the orphan contract,
// not an error.
func BuildForest(sessions []*domain.Session) Forest {
	f := Forest{
		Children: make(map[domain.SessionID][]*domain.Session),
	}
	for _, s := range sessions {
		if s.ParentID == nil {
			f.Roots = append(f.Roots, s)
			continue
		}
		f.Children[*s.ParentID] = append(f.Children[*s.ParentID], s)
	}
	return f
}

// ChildrenOf returns the ordered children recorded under a parent id.
func (f Forest) ChildrenOf(id domain.SessionID) []*domain.Session {
	return f.Children[id]
}

// Walk visits the forest depth-first: each node, then its children,
// immediately after it. depth is 0 for roots.
func (f Forest) Walk(visit func(s *domain.Session, depth int)) {
	var walk func(list []*domain.Session, depth int)
	walk = func(list []*domain.Session, depth int) {
		for _, s := range list {
			visit(s, depth)
			walk(f.Children[s.ID], depth+1)
		}
	}
	walk(f.Roots, 0)
}
