package services

import "sync"

// partitionLocks hands out one mutex per account so that the load, record
// and save cycle of a partition never interleaves inside this process.
// Entries are dropped once nobody holds or waits for them.
type partitionLocks struct {
	mu    sync.Mutex
	locks map[string]*partitionLock
}

type partitionLock struct {
	mu   sync.Mutex
	refs int
}

func newPartitionLocks() *partitionLocks {
	return &partitionLocks{locks: make(map[string]*partitionLock)}
}

func (p *partitionLocks) lock(key string) (unlock func()) {
	p.mu.Lock()
	l, ok := p.locks[key]
	if !ok {
		l = &partitionLock{}
		p.locks[key] = l
	}
	l.refs++
	p.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		p.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(p.locks, key)
		}
		p.mu.Unlock()
	}
}

func (p *partitionLocks) size() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.locks)
}
