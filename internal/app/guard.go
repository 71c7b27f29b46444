package service

import (
	"sync"

	"github.com/cespare/xxhash/v2"
	"github.com/okian/matchd/internal/domain/model"
)

const guardStripes = 64

type flightKey struct {
	userID string
	scene  model.Scene
}

// flight is one generation in progress for a key. It goes stale when an
// action or invalidation for the same key lands before its cache write.
type flight struct {
	stale bool
}

// userLock serializes cache I/O for one user. refs counts holders and
// waiters so the lock can be dropped once nobody needs it.
type userLock struct {
	mu   sync.Mutex
	refs int
}

// guardStripe's mutex only covers its maps; it is never held across cache I/O.
type guardStripe struct {
	mu      sync.Mutex
	flights map[flightKey]map[*flight]struct{}
	users   map[string]*userLock
}

// writeGuard orders cache writes from generation against invalidations.
// Only keys with a generation in flight, and users with cache I/O under way,
// are tracked. Writes and drops for one user are serialized; other users
// proceed concurrently even when they share a stripe.
type writeGuard struct {
	stripes [guardStripes]guardStripe
}

func newWriteGuard() *writeGuard {
	g := &writeGuard{}
	for i := range g.stripes {
		g.stripes[i].flights = make(map[flightKey]map[*flight]struct{})
		g.stripes[i].users = make(map[string]*userLock)
	}
	return g
}

func (g *writeGuard) stripe(userID string) *guardStripe {
	return &g.stripes[xxhash.Sum64String(userID)%guardStripes]
}

// begin registers a generation. It must happen before the action log is read.
func (g *writeGuard) begin(userID string, sc model.Scene) *flight {
	st := g.stripe(userID)
	k := flightKey{userID, sc}
	f := &flight{}
	st.mu.Lock()
	set := st.flights[k]
	if set == nil {
		set = make(map[*flight]struct{})
		st.flights[k] = set
	}
	set[f] = struct{}{}
	st.mu.Unlock()
	return f
}

// abandon drops a generation that will not write.
func (g *writeGuard) abandon(userID string, sc model.Scene, f *flight) {
	st := g.stripe(userID)
	st.mu.Lock()
	st.remove(flightKey{userID, sc}, f)
	st.mu.Unlock()
}

// commit runs write unless f went stale. The write holds userID's lock so
// no invalidation for the same user can interleave with it.
func (g *writeGuard) commit(userID string, sc model.Scene, f *flight, write func() error) (bool, error) {
	st := g.stripe(userID)
	ul := st.lockUser(userID)
	defer st.unlockUser(userID, ul)

	st.mu.Lock()
	st.remove(flightKey{userID, sc}, f)
	stale := f.stale
	st.mu.Unlock()
	if stale {
		return false, nil
	}
	return true, write()
}

// invalidate marks in-flight generations for userID stale and runs drop
// while holding userID's lock. No scenes means every scene.
func (g *writeGuard) invalidate(userID string, scenes []model.Scene, drop func() error) error {
	st := g.stripe(userID)
	ul := st.lockUser(userID)
	defer st.unlockUser(userID, ul)

	st.mu.Lock()
	for k, set := range st.flights {
		if k.userID != userID || !containsScene(scenes, k.scene) {
			continue
		}
		for f := range set {
			f.stale = true
		}
	}
	st.mu.Unlock()
	return drop()
}

func (st *guardStripe) lockUser(userID string) *userLock {
	st.mu.Lock()
	ul := st.users[userID]
	if ul == nil {
		ul = &userLock{}
		st.users[userID] = ul
	}
	ul.refs++
	st.mu.Unlock()
	ul.mu.Lock()
	return ul
}

func (st *guardStripe) unlockUser(userID string, ul *userLock) {
	ul.mu.Unlock()
	st.mu.Lock()
	ul.refs--
	if ul.refs == 0 {
		delete(st.users, userID)
	}
	st.mu.Unlock()
}

func (st *guardStripe) remove(k flightKey, f *flight) {
	set := st.flights[k]
	delete(set, f)
	if len(set) == 0 {
		delete(st.flights, k)
	}
}

func containsScene(scenes []model.Scene, sc model.Scene) bool {
	if len(scenes) == 0 {
		return true
	}
	for _, s := range scenes {
		if s == sc {
			return true
		}
	}
	return false
}
