package clientstate

import (
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/mduval/tutor-agent/internal/app/turn"
	"github.com/mduval/tutor-agent/internal/domain"
)

// Registry holds one turn.State per logged-in client, keyed by owner. The
// HTTP surface is stateless, so this is where the interactive view (active
// session pointer, plan cache, attached document) lives between requests.
// Entries expire after ttl of inactivity, the equivalent of the interactive
// process ending.
type Registry struct {
	cache *gocache.Cache
	ttl   time.Duration
}

func NewRegistry(ttl time.Duration) *Registry {
	return &Registry{
		cache: gocache.New(ttl, ttl/2),
		ttl:   ttl,
	}
}

func key(owner domain.UserID) string {
	return strings.ToLower(string(owner))
}

// Put stores the client's state and refreshes its expiry.
func (r *Registry) Put(owner domain.UserID, st turn.State) {
	r.cache.Set(key(owner), st, r.ttl)
}

// Get returns the client's state. ok is false when the client never logged
// in or its entry expired.
func (r *Registry) Get(owner domain.UserID) (turn.State, bool) {
	v, ok := r.cache.Get(key(owner))
	if !ok {
		return turn.State{}, false
	}
	st, ok := v.(turn.State)
	return st, ok
}

// Delete forgets the client's state (logout).
func (r *Registry) Delete(owner domain.UserID) {
	r.cache.Delete(key(owner))
}
