package clientstate_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mduval/tutor-agent/internal/app/clientstate"
	"github.com/mduval/tutor-agent/internal/app/turn"
)

func TestPutGetDelete(t *testing.T) {
	r := clientstate.NewRegistry(time.Hour)

	_, ok := r.Get("alice")
	assert.False(t, ok)

	st := turn.NewState("alice")
	st.Plan = "1. start"
	r.Put("alice", st)

	got, ok := r.Get("alice")
	require.True(t, ok)
	assert.Equal(t, "1. start", got.Plan)

	r.Delete("alice")
	_, ok = r.Get("alice")
	assert.False(t, ok)
}

func TestKeysAreCaseInsensitive(t *testing.T) {
	r := clientstate.NewRegistry(time.Hour)

	r.Put("Alice", turn.NewState("Alice"))

	_, ok := r.Get("alice")
	assert.True(t, ok)
	_, ok = r.Get("ALICE")
	assert.True(t, ok)
}

func TestEntriesExpire(t *testing.T) {
	r := clientstate.NewRegistry(10 * time.Millisecond)

	r.Put("alice", turn.NewState("alice"))
	time.Sleep(30 * time.Millisecond)

	_, ok := r.Get("alice")
	assert.False(t, ok)
}
