package service

import (
	"context"
	"sync"
)

// docLocker hands out one lock per doc_id. Entries are dropped once nobody
// holds or waits for them.
type docLocker struct {
	mu    sync.Mutex
	locks map[string]*docLock
}

type docLock struct {
	ch   chan struct{}
	refs int
}

func newDocLocker() *docLocker {
	return &docLocker{locks: make(map[string]*docLock)}
}

// Lock blocks until docID is free or ctx is done. The returned func releases it.
func (l *docLocker) Lock(ctx context.Context, docID string) (func(), error) {
	l.mu.Lock()
	lk, ok := l.locks[docID]
	if !ok {
		lk = &docLock{ch: make(chan struct{}, 1)}
		l.locks[docID] = lk
	}
	lk.refs++
	l.mu.Unlock()

	select {
	case lk.ch <- struct{}{}:
	case <-ctx.Done():
		l.release(docID, lk)
		return nil, ctx.Err()
	}
	var once sync.Once
	return func() {
		once.Do(func() {
			<-lk.ch
			l.release(docID, lk)
		})
	}, nil
}

func (l *docLocker) release(docID string, lk *docLock) {
	l.mu.Lock()
	defer l.mu.Unlock()
	lk.refs--
	if lk.refs == 0 {
		delete(l.locks, docID)
	}
}

func (l *docLocker) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
