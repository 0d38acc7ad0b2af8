/*
Copyright 2026.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package cache holds the in-memory mirror of objects observed through a
// change feed.
package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"k8s.io/apimachinery/pkg/types"
	toolscache "k8s.io/client-go/tools/cache"
	"sigs.k8s.io/controller-runtime/pkg/client"
)

// ErrAbandoned is returned by WaitUntilReady when the writer gave up before
// the first full population.
var ErrAbandoned = errors.New("cache writer abandoned before the first full sync")

// Reader is the read side of a Store.
type Reader[T client.Object] interface {
	// Snapshot returns every object currently held. Callers must not
	// mutate the returned objects.
	Snapshot() []T
	// WaitUntilReady blocks until the store has been fully populated once.
	WaitUntilReady(ctx context.Context) error
}

// =============================================================================
// Store is a concurrently readable table of objects keyed by namespace/name.
//
// Exactly one goroutine writes (Upsert, Remove, Replace, Abandon); any number
// may read. Storage is delegated to client-go's thread-safe store, so every
// read observes the state between two whole writes.
// =============================================================================
type Store[T client.Object] struct {
	store toolscache.Store

	ready       chan struct{}
	readyOnce   sync.Once
	abandoned   chan struct{}
	abandonOnce sync.Once
}

var _ Reader[client.Object] = &Store[client.Object]{}

// New returns an empty Store that is not ready yet.
func New[T client.Object]() *Store[T] {
	return &Store[T]{
		store:     toolscache.NewStore(toolscache.MetaNamespaceKeyFunc),
		ready:     make(chan struct{}),
		abandoned: make(chan struct{}),
	}
}

// Upsert inserts obj or replaces the object stored under the same key.
func (s *Store[T]) Upsert(obj T) error {
	if err := s.store.Update(obj); err != nil {
		return fmt.Errorf("upserting %s: %w", client.ObjectKeyFromObject(obj), err)
	}
	return nil
}

// Remove deletes the object stored under obj's key. Removing an unknown key
// is a no-op.
func (s *Store[T]) Remove(obj T) error {
	if err := s.store.Delete(obj); err != nil {
		return fmt.Errorf("removing %s: %w", client.ObjectKeyFromObject(obj), err)
	}
	return nil
}

// Replace atomically swaps the whole content for objs and marks the store
// ready.
func (s *Store[T]) Replace(objs []T) error {
	items := make([]interface{}, 0, len(objs))
	for _, obj := range objs {
		items = append(items, obj)
	}
	if err := s.store.Replace(items, ""); err != nil {
		return fmt.Errorf("replacing cache content: %w", err)
	}
	s.readyOnce.Do(func() { close(s.ready) })
	return nil
}

// Abandon releases readers blocked in WaitUntilReady with ErrAbandoned if the
// store never became ready. It has no effect on a ready store.
func (s *Store[T]) Abandon() {
	s.abandonOnce.Do(func() { close(s.abandoned) })
}

// Snapshot returns a point-in-time copy of the stored objects in no
// particular order.
func (s *Store[T]) Snapshot() []T {
	items := s.store.List()
	out := make([]T, 0, len(items))
	for _, item := range items {
		out = append(out, item.(T))
	}
	return out
}

// Get returns the object stored under key.
func (s *Store[T]) Get(key types.NamespacedName) (T, bool) {
	var zero T
	item, ok, err := s.store.GetByKey(toolscache.NewObjectName(key.Namespace, key.Name).String())
	if err != nil || !ok {
		return zero, false
	}
	return item.(T), true
}

// Len returns the number of stored objects.
func (s *Store[T]) Len() int {
	return len(s.store.ListKeys())
}

// Ready reports whether the store has been fully populated at least once.
func (s *Store[T]) Ready() bool {
	select {
	case <-s.ready:
		return true
	default:
		return false
	}
}

// WaitUntilReady blocks until the first Replace, Abandon, or ctx is done.
func (s *Store[T]) WaitUntilReady(ctx context.Context) error {
	select {
	case <-s.ready:
		return nil
	default:
	}

	select {
	case <-s.ready:
		return nil
	case <-s.abandoned:
		if s.Ready() {
			return nil
		}
		return ErrAbandoned
	case <-ctx.Done():
		return ctx.Err()
	}
}
