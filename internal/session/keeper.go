package session

import (
	"context"
	"fmt"
	"sync"
)

// Keeper is the single writer of the session. Every component reads and
// writes the session through a Keeper rather than through the Store.
type Keeper struct {
	mu    sync.Mutex
	store Store
}

// NewKeeper wraps store
func NewKeeper(store Store) *Keeper {
	return &Keeper{store: store}
}

// Get returns the current session, or nil when logged out
func (k *Keeper) Get(ctx context.Context) (*Session, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.store.Load(ctx)
}

// Set replaces the token and the user together
func (k *Keeper) Set(ctx context.Context, s *Session) error {
	if err := s.Validate(); err != nil {
		return err
	}
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.store.Save(ctx, s)
}

// Clear removes the token and the user together
func (k *Keeper) Clear(ctx context.Context) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.store.Delete(ctx)
}

// Update applies fn to the current session atomically. fn returns the
// session to store, nil to clear, or cur to leave the store untouched.
func (k *Keeper) Update(ctx context.Context, fn func(cur *Session) (*Session, error)) (*Session, error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	cur, err := k.store.Load(ctx)
	if err != nil {
		return nil, err
	}

	next, err := fn(cur)
	if err != nil {
		return cur, err
	}

	switch {
	case next == cur:
		return cur, nil
	case next == nil:
		if err := k.store.Delete(ctx); err != nil {
			return cur, err
		}
		return nil, nil
	}

	if err := next.Validate(); err != nil {
		return cur, fmt.Errorf("updating session: %w", err)
	}
	if err := k.store.Save(ctx, next); err != nil {
		return cur, err
	}
	return next, nil
}

// CheckHealth verifies the underlying store
func (k *Keeper) CheckHealth(ctx context.Context) error {
	return k.store.CheckHealth(ctx)
}
