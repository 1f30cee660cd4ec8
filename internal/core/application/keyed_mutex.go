package application

import "sync"

// keyedMutex serializes work per key. Entries are dropped once no goroutine
// holds or waits for them.
type keyedMutex struct {
	lock  sync.Mutex
	locks map[string]*refMutex
}

type refMutex struct {
	sync.Mutex
	refs int
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[string]*refMutex)}
}

func (k *keyedMutex) Lock(key string) {
	k.lock.Lock()
	m, ok := k.locks[key]
	if !ok {
		m = &refMutex{}
		k.locks[key] = m
	}
	m.refs++
	k.lock.Unlock()

	m.Lock()
}

func (k *keyedMutex) Unlock(key string) {
	k.lock.Lock()
	defer k.lock.Unlock()

	m, ok := k.locks[key]
	if !ok {
		return
	}
	m.refs--
	if m.refs <= 0 {
		delete(k.locks, key)
	}
	m.Unlock()
}
