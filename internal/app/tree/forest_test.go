package tree_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mduval/tutor-agent/internal/app/tree"
	"github.com/mduval/tutor-agent/internal/domain"
)

func session(id string, parent *string) *domain.Session {
	s := &domain.Session{ID: domain.SessionID(id), Owner: "alice", Title: id}
	if parent != nil {
		p := domain.SessionID(*parent)
		s.ParentID = &p
	}
	return s
}

func ptr(s string) *string { return &s }

func TestBuildForestPartition(t *testing.T) {
	sessions := []*domain.Session{
		session("r1", nil),
		session("c1", ptr("r1")),
		session("c2", ptr("r1")),
		session("r2", nil),
		session("g1", ptr("c1")),
	}

	f := tree.BuildForest(sessions)

	require.Len(t, f.Roots, 2)
	assert.Equal(t, domain.SessionID("r1"), f.Roots[0].ID)
	assert.Equal(t, domain.SessionID("r2"), f.Roots[1].ID)

	children := f.ChildrenOf("r1")
	require.Len(t, children, 2)
	assert.Equal(t, domain.SessionID("c1"), children[0].ID)
	assert.Equal(t, domain.SessionID("c2"), children[1].ID)

	require.Len(t, f.ChildrenOf("c1"), 1)
	assert.Empty(t, f.ChildrenOf("r2"))
}

func TestBuildForestPreservesInputOrder(t *testing.T) {
	sessions := []*domain.Session{
		session("c2", ptr("r1")),
		session("c1", ptr("r1")),
		session("r1", nil),
	}

	f := tree.BuildForest(sessions)

	children := f.ChildrenOf("r1")
	require.Len(t, children, 2)
	assert.Equal(t, domain.SessionID("c2"), children[0].ID)
	assert.Equal(t, domain.SessionID("c1"), children[1].ID)
}

func TestWalkDepthFirst(t *testing.T) {
	sessions := []*domain.Session{
		session("r1", nil),
		session("c1", ptr("r1")),
		session("g1", ptr("c1")),
		session("c2", ptr("r1")),
		session("r2", nil),
	}

	f := tree.BuildForest(sessions)

	var order []string
	var depths []int
	f.Walk(func(s *domain.Session, depth int) {
		order = append(order, string(s.ID))
		depths = append(depths, depth)
	})

	assert.Equal(t, []string{"r1", "c1", "g1", "c2", "r2"}, order)
	assert.Equal(t, []int{0, 1, 2, 1, 0}, depths)
}

func TestWalkDropsOrphansSilently(t *testing.T) {
	sessions := []*domain.Session{
		session("r1", nil),
		session("lost", ptr("deleted-parent")),
	}

	f := tree.BuildForest(sessions)

	var visited []string
	f.Walk(func(s *domain.Session, _ int) {
		visited = append(visited, string(s.ID))
	})

	// the orphan is indexed but unreachable from the roots
	assert.Equal(t, []string{"r1"}, visited)
	assert.Len(t, f.ChildrenOf("deleted-parent"), 1)
}

func TestBuildForestEmptyInput(t *testing.T) {
	f := tree.BuildForest(nil)
	assert.Empty(t, f.Roots)

	called := false
	f.Walk(func(*domain.Session, int) { called = true })
	assert.False(t, called)
}
