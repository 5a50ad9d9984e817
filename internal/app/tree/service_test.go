package tree_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mduval/tutor-agent/internal/adapters/storage/memory"
	"github.com/mduval/tutor-agent/internal/app/tree"
	"github.com/mduval/tutor-agent/internal/domain"
)

// fakeClock hands out strictly increasing timestamps.
func fakeClock() func() time.Time {
	t := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	return func() time.Time {
		t = t.Add(time.Second)
		return t
	}
}

func newTestService() *tree.Service {
	return tree.NewService(memory.NewSessionStore(), tree.WithClock(fakeClock()))
}

func TestCreateAndListNewestFirst(t *testing.T) {
	ctx := context.Background()
	svc := newTestService()
	owner := domain.UserID("alice")

	first, err := svc.Create(ctx, owner, "Algebra", nil)
	require.NoError(t, err)
	second, err := svc.Create(ctx, owner, "Biology", nil)
	require.NoError(t, err)
	third, err := svc.Create(ctx, owner, "Chemistry", nil)
	require.NoError(t, err)

	sessions, err := svc.List(ctx, owner)
	require.NoError(t, err)
	require.Len(t, sessions, 3)
	assert.Equal(t, third.ID, sessions[0].ID)
	assert.Equal(t, second.ID, sessions[1].ID)
	assert.Equal(t, first.ID, sessions[2].ID)
}

func TestListIsScopedToOwner(t *testing.T) {
	ctx := context.Background()
	svc := newTestService()

	_, err := svc.Create(ctx, "alice", "Algebra", nil)
	require.NoError(t, err)
	_, err = svc.Create(ctx, "bob", "Botany", nil)
	require.NoError(t, err)

	sessions, err := svc.List(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, "Algebra", sessions[0].Title)
}

func TestCreateChildLinksParent(t *testing.T) {
	ctx := context.Background()
	svc := newTestService()
	owner := domain.UserID("alice")

	parent, err := svc.Create(ctx, owner, "Algebra", nil)
	require.NoError(t, err)

	child, err := svc.Create(ctx, owner, "Polynomials", &parent.ID)
	require.NoError(t, err)
	require.NotNil(t, child.ParentID)
	assert.Equal(t, parent.ID, *child.ParentID)
	assert.False(t, child.Root())
}

func TestCreateChildUnknownParent(t *testing.T) {
	ctx := context.Background()
	svc := newTestService()

	ghost := domain.SessionID("missing")
	_, err := svc.Create(ctx, "alice", "Orphan", &ghost)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
}

func TestCreateChildOwnerMismatch(t *testing.T) {
	ctx := context.Background()
	svc := newTestService()

	parent, err := svc.Create(ctx, "alice", "Algebra", nil)
	require.NoError(t, err)

	_, err = svc.Create(ctx, "bob", "Sneaky", &parent.ID)
	assert.ErrorIs(t, err, tree.ErrOwnerMismatch)
}

func TestCreateRejectsEmptyTitle(t *testing.T) {
	ctx := context.Background()
	svc := newTestService()

	_, err := svc.Create(ctx, "alice", "   ", nil)
	assert.ErrorIs(t, err, tree.ErrEmptyTitle)
}

func TestDuplicateTitlesPermitted(t *testing.T) {
	ctx := context.Background()
	svc := newTestService()
	owner := domain.UserID("alice")

	a, err := svc.Create(ctx, owner, "Algebra", nil)
	require.NoError(t, err)
	b, err := svc.Create(ctx, owner, "Algebra", nil)
	require.NoError(t, err)
	assert.NotEqual(t, a.ID, b.ID)

	matches, err := svc.FindByTitle(ctx, owner, "Algebra")
	require.NoError(t, err)
	assert.Len(t, matches, 2)
}

func TestGetIsIdempotent(t *testing.T) {
	ctx := context.Background()
	svc := newTestService()

	created, err := svc.Create(ctx, "alice", "Algebra", nil)
	require.NoError(t, err)

	first, err := svc.Get(ctx, created.ID)
	require.NoError(t, err)
	second, err := svc.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestDeleteDoesNotCascade(t *testing.T) {
	ctx := context.Background()
	svc := newTestService()
	owner := domain.UserID("alice")

	parent, err := svc.Create(ctx, owner, "Algebra", nil)
	require.NoError(t, err)
	child, err := svc.Create(ctx, owner, "Polynomials", &parent.ID)
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, parent.ID))

	_, err = svc.Get(ctx, parent.ID)
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)

	// the orphan stays in storage
	got, err := svc.Get(ctx, child.ID)
	require.NoError(t, err)
	assert.Equal(t, parent.ID, *got.ParentID)
}
