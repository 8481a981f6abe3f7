package hashring

import "sync"

// AuthorityEvent is fired when the local participant's ownership of a
// watched key changes.
type AuthorityEvent struct {
	Key         string
	IsAuthority bool // true on become_authority, false on lose_authority
}

// AuthorityManager tracks a set of watched keys and fires become/lose
// authority events when ring changes flip local ownership. Grounded on the
// teacher's internal/cluster/membership.go (a watched-node-set re-evaluated
// on ring change), generalized from node membership to per-key ownership
// for one local participant. Authority never gates writes (spec.md §4.4) —
// it is purely informational for the engine to decide whether to treat
// itself as primary for arbitration purposes.
type AuthorityManager struct {
	mu      sync.Mutex
	ring    *Ring
	self    string
	watched map[string]bool // key -> was-owner-as-of-last-evaluation
	listeners []func(AuthorityEvent)
}

// NewAuthorityManager creates a manager for the given ring and local
// participant id.
func NewAuthorityManager(ring *Ring, self string) *AuthorityManager {
	return &AuthorityManager{
		ring:    ring,
		self:    self,
		watched: make(map[string]bool),
	}
}

// OnChange registers a listener invoked synchronously for each
// become/lose authority event.
func (a *AuthorityManager) OnChange(fn func(AuthorityEvent)) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.listeners = append(a.listeners, fn)
}

// Watch starts tracking key, evaluating its current ownership immediately
// (firing become_authority if the local participant already owns it).
func (a *AuthorityManager) Watch(key string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, ok := a.watched[key]; ok {
		return
	}
	owner, _ := a.ring.Owner(key)
	isOwner := owner == a.self
	a.watched[key] = isOwner
	if isOwner {
		a.notifyLocked(AuthorityEvent{Key: key, IsAuthority: true})
	}
}

// Unwatch stops tracking key; no further events fire for it.
func (a *AuthorityManager) Unwatch(key string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.watched, key)
}

// IsAuthority reports whether the local participant currently owns key.
// Works for unwatched keys too (a direct ring query), but only watched
// keys generate change events.
func (a *AuthorityManager) IsAuthority(key string) bool {
	owner, ok := a.ring.Owner(key)
	return ok && owner == a.self
}

// Reevaluate re-checks ownership of every watched key against the ring,
// firing become_authority/lose_authority for any that flipped. Call this
// after AddNode/RemoveNode on the underlying ring. No watched keys means
// no events (spec.md §4.4).
func (a *AuthorityManager) Reevaluate() {
	a.mu.Lock()
	defer a.mu.Unlock()

	for key, wasOwner := range a.watched {
		owner, _ := a.ring.Owner(key)
		isOwner := owner == a.self
		if isOwner == wasOwner {
			continue
		}
		a.watched[key] = isOwner
		a.notifyLocked(AuthorityEvent{Key: key, IsAuthority: isOwner})
	}
}

func (a *AuthorityManager) notifyLocked(evt AuthorityEvent) {
	for _, fn := range a.listeners {
		fn(evt)
	}
}
