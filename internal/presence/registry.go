// Package presence tracks which logical users are online and through which
// connection. The registry is the single owner of that map.
package presence

import (
	"sort"
	"sync"
)

// Registry maps a logical user id to the connection that most recently
// announced it. A later announcement silently supersedes an earlier one.
type Registry struct {
	mu      sync.Mutex
	entries map[string]string // userID -> connectionID

	// onChange receives the full snapshot after every mutation. It runs with
	// the registry locked, so snapshots are observed in mutation order and it
	// must not block.
	onChange func(snapshot []string)
}

// NewRegistry creates an empty registry. onChange may be nil.
func NewRegistry(onChange func(snapshot []string)) *Registry {
	return &Registry{
		entries:  make(map[string]string),
		onChange: onChange,
	}
}

// Announce upserts userID -> connectionID and returns the current snapshot.
func (r *Registry) Announce(userID, connectionID string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.entries[userID] = connectionID
	return r.publishLocked()
}

// Withdraw removes userID if present. The snapshot is published either way.
func (r *Registry) Withdraw(userID string) (snapshot []string, removed bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, removed = r.entries[userID]
	delete(r.entries, userID)
	return r.publishLocked(), removed
}

// WithdrawByConnection removes every entry still bound to connectionID. A
// snapshot is published only when something was removed.
func (r *Registry) WithdrawByConnection(connectionID string) (snapshot []string, removed []string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for userID, connID := range r.entries {
		if connID == connectionID {
			delete(r.entries, userID)
			removed = append(removed, userID)
		}
	}
	if len(removed) == 0 {
		return r.snapshotLocked(), nil
	}
	sort.Strings(removed)
	return r.publishLocked(), removed
}

// Snapshot returns the announced user ids in ascending order.
func (r *Registry) Snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshotLocked()
}

// ConnectionFor reports the connection currently bound to userID.
func (r *Registry) ConnectionFor(userID string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	connID, ok := r.entries[userID]
	return connID, ok
}

func (r *Registry) publishLocked() []string {
	snapshot := r.snapshotLocked()
	if r.onChange != nil {
		cp := make([]string, len(snapshot))
		copy(cp, snapshot)
		r.onChange(cp)
	}
	return snapshot
}

func (r *Registry) snapshotLocked() []string {
	ids := make([]string, 0, len(r.entries))
	for userID := range r.entries {
		ids = append(ids, userID)
	}
	sort.Strings(ids)
	return ids
}
