package allocation

import (
	"context"
	"sync"
)

// KeyedLocker is an in-process PoolLocker: one mutex per pool, dropped once
// nobody holds or waits for it.
type KeyedLocker struct {
	mu    sync.Mutex
	locks map[uint]*keyedLock
}

type keyedLock struct {
	ch   chan struct{}
	refs int
}

func NewKeyedLocker() *KeyedLocker {
	return &KeyedLocker{locks: make(map[uint]*keyedLock)}
}

var _ PoolLocker = (*KeyedLocker)(nil)

// Lock blocks until the pool lock is held or ctx is done.
func (k *KeyedLocker) Lock(ctx context.Context, poolID uint) (func(), error) {
	k.mu.Lock()
	l, ok := k.locks[poolID]
	if !ok {
		l = &keyedLock{ch: make(chan struct{}, 1)}
		k.locks[poolID] = l
	}
	l.refs++
	k.mu.Unlock()

	select {
	case l.ch <- struct{}{}:
	case <-ctx.Done():
		k.release(poolID, l)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-l.ch
			k.release(poolID, l)
		})
	}, nil
}

func (k *KeyedLocker) release(poolID uint, l *keyedLock) {
	k.mu.Lock()
	l.refs--
	if l.refs == 0 {
		delete(k.locks, poolID)
	}
	k.mu.Unlock()
}

// NoopLocker relies on database row locks alone.
type NoopLocker struct{}

func (NoopLocker) Lock(context.Context, uint) (func(), error) {
	return func() {}, nil
}
