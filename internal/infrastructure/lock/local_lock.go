package lock

import (
	"context"
	"sync"
	"time"
)

// LocalLocker is an in-process Locker for single node deployments.
type LocalLocker struct {
	mu            sync.Mutex
	slots         map[string]*slot
	retryInterval time.Duration
	maxRetries    int
}

type slot struct {
	ch   chan struct{}
	refs int
}

func NewLocalLocker(retryInterval time.Duration, maxRetries int) *LocalLocker {
	return &LocalLocker{
		slots:         make(map[string]*slot),
		retryInterval: retryInterval,
		maxRetries:    maxRetries,
	}
}

func (l *LocalLocker) Acquire(ctx context.Context, key string) (func(), error) {
	s := l.ref(key)
	release := func() func() {
		var once sync.Once
		return func() {
			once.Do(func() {
				<-s.ch
				l.unref(key)
			})
		}
	}

	select {
	case s.ch <- struct{}{}:
		return release(), nil
	default:
	}

	// 总等待时间与 RedisLocker 的退避重试保持一致
	var budget time.Duration
	for i := 0; i < l.maxRetries; i++ {
		budget += backoff(l.retryInterval, i)
	}
	timer := time.NewTimer(budget)
	defer timer.Stop()

	select {
	case s.ch <- struct{}{}:
		return release(), nil
	case <-ctx.Done():
		l.unref(key)
		return nil, ctx.Err()
	case <-timer.C:
		l.unref(key)
		return nil, ErrLockFailed
	}
}

func (l *LocalLocker) ref(key string) *slot {
	l.mu.Lock()
	defer l.mu.Unlock()
	s, ok := l.slots[key]
	if !ok {
		s = &slot{ch: make(chan struct{}, 1)}
		l.slots[key] = s
	}
	s.refs++
	return s
}

func (l *LocalLocker) unref(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	s := l.slots[key]
	s.refs--
	if s.refs == 0 {
		delete(l.slots, key)
	}
}
