package orderstore

import "sync"

// lockTable hands out one mutex per order identifier. Entries are never
// reaped; the store sees at most a few hundred orders over its lifetime.
type lockTable struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newLockTable() *lockTable {
	return &lockTable{locks: make(map[string]*sync.Mutex)}
}

// acquire locks the order's mutex and returns the matching unlock.
func (t *lockTable) acquire(orderID string) func() {
	t.mu.Lock()
	lock, ok := t.locks[orderID]
	if !ok {
		lock = &sync.Mutex{}
		t.locks[orderID] = lock
	}
	t.mu.Unlock()

	lock.Lock()
	return lock.Unlock
}

// acquirePair locks both order mutexes, always in lexical order so two
// renames touching the same identifiers cannot deadlock.
func (t *lockTable) acquirePair(a, b string) func() {
	if a == b {
		return t.acquire(a)
	}
	if b < a {
		a, b = b, a
	}
	unlockA := t.acquire(a)
	unlockB := t.acquire(b)
	return func() {
		unlockB()
		unlockA()
	}
}
