package engine

import "sync"

// TargetLocks serialises work on the same target table. One value is shared
// by every runner in the process.
type TargetLocks struct {
	mu    sync.Mutex
	locks map[string]*targetLock
}

type targetLock struct {
	mu   sync.Mutex
	refs int
}

func NewTargetLocks() *TargetLocks {
	return &TargetLocks{locks: make(map[string]*targetLock)}
}

// Lock blocks until key is free and returns the release func.
func (l *TargetLocks) Lock(key string) func() {
	l.mu.Lock()
	tl, ok := l.locks[key]
	if !ok {
		tl = &targetLock{}
		l.locks[key] = tl
	}
	tl.refs++
	l.mu.Unlock()

	tl.mu.Lock()
	return func() {
		tl.mu.Unlock()

		l.mu.Lock()
		tl.refs--
		if tl.refs == 0 {
			delete(l.locks, key)
		}
		l.mu.Unlock()
	}
}

func (l *TargetLocks) held() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
