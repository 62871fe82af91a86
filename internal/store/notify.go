package store

import "sync"

// Change describes a committed mutation to a stored entity.
type Change struct {
	Entity string // "friend", "weave", "intention"
	ID     string
	Op     string // "create", "update", "delete"
}

// OnChangeFn receives a Change after its transaction commits.
type OnChangeFn func(Change)

type notifier struct {
	mu  sync.RWMutex
	fns []OnChangeFn
}

// OnChange registers a callback invoked after each committed mutation.
// Callbacks run synchronously on the mutating goroutine, so they should
// hand off slow work rather than block the store.
func (db *DB) OnChange(fn OnChangeFn) {
	db.notifier.mu.Lock()
	defer db.notifier.mu.Unlock()
	db.notifier.fns = append(db.notifier.fns, fn)
}

func (db *DB) notify(c Change) {
	db.notifier.mu.RLock()
	fns := make([]OnChangeFn, len(db.notifier.fns))
	copy(fns, db.notifier.fns)
	db.notifier.mu.RUnlock()

	for _, fn := range fns {
		fn(c)
	}
}
