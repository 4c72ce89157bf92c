package cache

import "sync"

// KeyedMutex serializes work per key while letting different keys proceed
// in parallel. Entries are reference counted and dropped when unused.
type KeyedMutex[K comparable] struct {
	mu    sync.Mutex
	locks map[K]*refLock
}

type refLock struct {
	mu   sync.Mutex
	refs int
}

// Lock acquires the lock for k and returns its release function.
func (km *KeyedMutex[K]) Lock(k K) (unlock func()) {
	km.mu.Lock()
	if km.locks == nil {
		km.locks = make(map[K]*refLock)
	}
	l, ok := km.locks[k]
	if !ok {
		l = &refLock{}
		km.locks[k] = l
	}
	l.refs++
	km.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		km.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(km.locks, k)
		}
		km.mu.Unlock()
	}
}

// Active returns how many keys currently hold or await a lock.
func (km *KeyedMutex[K]) Active() int {
	km.mu.Lock()
	defer km.mu.Unlock()
	return len(km.locks)
}
