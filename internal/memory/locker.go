package memory

import (
	"context"
	"sync"

	"github.com/ariefcatur/go-cosmetics-orders/internal/orders"
)

// Locker is the single-process stand-in for redisx.Locker.
type Locker struct {
	mu   sync.Mutex
	held map[string]struct{}
}

func NewLocker() *Locker {
	return &Locker{held: map[string]struct{}{}}
}

func (l *Locker) Acquire(_ context.Context, key string) (func(context.Context) error, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.held[key]; ok {
		return nil, orders.ErrLockBusy
	}
	l.held[key] = struct{}{}

	var once sync.Once
	return func(context.Context) error {
		once.Do(func() {
			l.mu.Lock()
			delete(l.held, key)
			l.mu.Unlock()
		})
		return nil
	}, nil
}
