// Package lock provides product lockers that serialize costing decisions on
// the same product, in process or across instances through Redis.
package lock

import (
	"bytes"
	"context"
	"sort"
	"sync"

	appinventory "github.com/erp/ledger/internal/application/inventory"
	"github.com/google/uuid"
)

// LocalLocker is a keyed mutex for a single process
type LocalLocker struct {
	mu    sync.Mutex
	slots map[uuid.UUID]*slot
}

type slot struct {
	ch   chan struct{}
	refs int
}

// NewLocalLocker creates a LocalLocker
func NewLocalLocker() *LocalLocker {
	return &LocalLocker{slots: make(map[uuid.UUID]*slot)}
}

// Acquire locks every product in ascending UUID order. When ctx ends first
// the locks taken so far are released and ctx.Err() is returned.
func (l *LocalLocker) Acquire(ctx context.Context, productIDs []uuid.UUID) (func(), error) {
	ids := sortedUnique(productIDs)
	held := make([]uuid.UUID, 0, len(ids))

	for _, id := range ids {
		s := l.ref(id)
		select {
		case s.ch <- struct{}{}:
			held = append(held, id)
		case <-ctx.Done():
			l.unref(id)
			l.release(held)
			return nil, ctx.Err()
		}
	}

	var once sync.Once
	return func() { once.Do(func() { l.release(held) }) }, nil
}

func (l *LocalLocker) ref(id uuid.UUID) *slot {
	l.mu.Lock()
	defer l.mu.Unlock()
	s, ok := l.slots[id]
	if !ok {
		s = &slot{ch: make(chan struct{}, 1)}
		l.slots[id] = s
	}
	s.refs++
	return s
}

func (l *LocalLocker) unref(id uuid.UUID) {
	l.mu.Lock()
	defer l.mu.Unlock()
	s := l.slots[id]
	s.refs--
	if s.refs == 0 {
		delete(l.slots, id)
	}
}

func (l *LocalLocker) release(ids []uuid.UUID) {
	for i := len(ids) - 1; i >= 0; i-- {
		l.mu.Lock()
		s := l.slots[ids[i]]
		l.mu.Unlock()
		<-s.ch
		l.unref(ids[i])
	}
}

func sortedUnique(ids []uuid.UUID) []uuid.UUID {
	out := make([]uuid.UUID, 0, len(ids))
	seen := make(map[uuid.UUID]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return bytes.Compare(out[i][:], out[j][:]) < 0 })
	return out
}

var _ appinventory.ProductLocker = (*LocalLocker)(nil)
