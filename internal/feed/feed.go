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

// Package feed turns a list-then-watch endpoint into a self-healing stream
// of applied/removed events.
package feed

import (
	"context"
	"fmt"
	"time"

	"github.com/go-logr/logr"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	"k8s.io/apimachinery/pkg/api/meta"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/apimachinery/pkg/util/wait"
	"k8s.io/apimachinery/pkg/watch"
	"k8s.io/utils/clock"
	"sigs.k8s.io/controller-runtime/pkg/client"
)

// EventType tells what happened to the object of an Event.
type EventType string

const (
	// Applied reports a created or updated object. Every object returned by
	// a full list is also reported as Applied, with Relisted set.
	Applied EventType = "Applied"

	// Removed reports a deleted object.
	Removed EventType = "Removed"

	// Synced closes a full list. Objects holds everything the list returned.
	Synced EventType = "Synced"
)

// Event is one entry of a Feed.
type Event[T client.Object] struct {
	Type   EventType
	Object T

	// Relisted marks Applied events produced by a full list rather than by
	// the live watch.
	Relisted bool

	// Objects is only set on Synced.
	Objects []T
}

// DefaultBackoffReset is how long a feed must go without reconnecting before
// its backoff starts over from the initial delay.
const DefaultBackoffReset = 2 * time.Minute

// DefaultBackoff governs reconnects: 800ms doubling up to 30s, with jitter.
var DefaultBackoff = wait.Backoff{
	Duration: 800 * time.Millisecond,
	Factor:   2.0,
	Jitter:   0.1,
	Steps:    1 << 30,
	Cap:      30 * time.Second,
}

// Options configures a Feed.
type Options struct {
	// Name labels logs and metrics, e.g. "secrets".
	Name string

	// Backoff is the reconnect policy. DefaultBackoff when zero.
	Backoff wait.Backoff

	// BackoffReset is the quiet period after which Backoff starts over.
	// DefaultBackoffReset when zero.
	BackoffReset time.Duration

	// Logger defaults to the logger in the context passed to Next.
	Logger *logr.Logger
}

type state int

const (
	stateListing state = iota
	stateWatching
	stateStreaming
	stateFailed
)

// =============================================================================
// Feed is a lazy, infinite sequence of events over one collection.
//
// State machine:
//
//	listing -> watching -> streaming
//	   ^                      |
//	   +---- reconnect -------+
//
// Every (re)connect starts with a full list, so a consumer that re-evaluates
// on every Applied event converges across disconnects. Transient failures,
// closed watches and expired watches all reconnect through one exponential
// backoff and are invisible to the consumer apart from the delay. The backoff
// only starts over after a quiet period without reconnects. Unrecoverable failures end the sequence: Next returns the same error
// from then on.
//
// A Feed is not safe for concurrent use and cannot be restarted; build a new
// one instead.
// =============================================================================
type Feed[T client.Object] struct {
	lw      ListerWatcher
	name    string
	backoff wait.BackoffManager
	logger  *logr.Logger

	state           state
	err             error
	pending         []Event[T]
	watcher         watch.Interface
	resourceVersion string
	retry           bool
}

// New returns a Feed reading from lw. Nothing is requested from the server
// until the first call to Next.
func New[T client.Object](lw ListerWatcher, opts Options) *Feed[T] {
	policy := opts.Backoff
	if policy.Duration == 0 {
		policy = DefaultBackoff
	}
	reset := opts.BackoffReset
	if reset == 0 {
		reset = DefaultBackoffReset
	}
	return &Feed[T]{
		lw:      lw,
		name:    opts.Name,
		backoff: wait.NewExponentialBackoffManager(policy.Duration, policy.Cap, reset, policy.Factor, policy.Jitter, clock.RealClock{}),
		logger:  opts.Logger,
		state:   stateListing,
	}
}

// Next blocks until the next event is available, ctx is done, or the feed
// fails for good.
func (f *Feed[T]) Next(ctx context.Context) (Event[T], error) {
	var zero Event[T]
	log := f.log(ctx)

	for {
		if err := ctx.Err(); err != nil {
			return zero, err
		}
		if len(f.pending) > 0 {
			ev := f.pending[0]
			f.pending = f.pending[1:]
			return ev, nil
		}

		switch f.state {
		case stateFailed:
			return zero, f.err

		case stateListing:
			if f.retry {
				if err := f.wait(ctx); err != nil {
					return zero, err
				}
			}
			if err := f.list(ctx); err != nil {
				if ctx.Err() != nil {
					return zero, ctx.Err()
				}
				if !f.transient(log, err, "list") {
					return zero, f.err
				}
				continue
			}
			f.retry = false
			f.state = stateWatching

		case stateWatching:
			w, err := f.lw.Watch(ctx, metav1.ListOptions{
				ResourceVersion:     f.resourceVersion,
				AllowWatchBookmarks: true,
			})
			if err != nil {
				if ctx.Err() != nil {
					return zero, ctx.Err()
				}
				if !f.transient(log, err, "watch") {
					return zero, f.err
				}
				continue
			}
			f.watcher = w
			f.state = stateStreaming

		case stateStreaming:
			select {
			case <-ctx.Done():
				return zero, ctx.Err()
			case ev, ok := <-f.watcher.ResultChan():
				if !ok {
					log.V(1).Info("Watch closed by server, relisting", "feed", f.name)
					f.reconnect()
					continue
				}
				if err := f.handle(log, ev); err != nil {
					return zero, err
				}
			}
		}
	}
}

// Stop releases the underlying watch. The feed must not be used afterwards.
func (f *Feed[T]) Stop() {
	if f.watcher != nil {
		f.watcher.Stop()
		f.watcher = nil
	}
}

func (f *Feed[T]) log(ctx context.Context) logr.Logger {
	if f.logger != nil {
		return *f.logger
	}
	return logr.FromContextOrDiscard(ctx)
}

// list fetches the full collection and queues one Applied per object plus a
// closing Synced.
func (f *Feed[T]) list(ctx context.Context) error {
	list, err := f.lw.List(ctx, metav1.ListOptions{})
	if err != nil {
		return err
	}
	listMeta, err := meta.ListAccessor(list)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	items, err := meta.ExtractList(list)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	objs := make([]T, 0, len(items))
	for _, item := range items {
		obj, err := f.cast(item)
		if err != nil {
			return err
		}
		objs = append(objs, obj)
		f.pending = append(f.pending, Event[T]{Type: Applied, Object: obj, Relisted: true})
	}
	f.pending = append(f.pending, Event[T]{Type: Synced, Objects: objs})
	f.resourceVersion = listMeta.GetResourceVersion()
	return nil
}

// handle converts one watch event. A non-nil error ends the feed.
func (f *Feed[T]) handle(log logr.Logger, ev watch.Event) error {
	switch ev.Type {
	case watch.Added, watch.Modified, watch.Deleted:
		obj, err := f.cast(ev.Object)
		if err != nil {
			return f.fail(err)
		}
		f.resourceVersion = obj.GetResourceVersion()
		t := Applied
		if ev.Type == watch.Deleted {
			t = Removed
		}
		f.pending = append(f.pending, Event[T]{Type: t, Object: obj})

	case watch.Bookmark:
		if m, err := meta.Accessor(ev.Object); err == nil {
			f.resourceVersion = m.GetResourceVersion()
		}

	case watch.Error:
		err := apierrors.FromObject(ev.Object)
		if apierrors.IsResourceExpired(err) || apierrors.IsGone(err) {
			log.V(1).Info("Watch expired, relisting", "feed", f.name, "reason", err.Error())
			f.reconnect()
			return nil
		}
		if !f.transient(log, err, "watch") {
			return f.err
		}

	default:
		return f.fail(fmt.Errorf("%w: unknown watch event type %q", ErrMalformed, ev.Type))
	}
	return nil
}

func (f *Feed[T]) cast(obj runtime.Object) (T, error) {
	t, ok := obj.(T)
	if !ok {
		var zero T
		return zero, fmt.Errorf("%w: got %T, want %T", ErrMalformed, obj, zero)
	}
	return t, nil
}

// transient either schedules a reconnect for err and returns true, or marks
// the feed failed and returns false.
func (f *Feed[T]) transient(log logr.Logger, err error, op string) bool {
	if IsFatal(err) {
		_ = f.fail(fmt.Errorf("%s %s: %w", op, f.name, err))
		return false
	}
	log.Error(err, "Feed interrupted, reconnecting", "feed", f.name, "operation", op)
	reconnectsTotal.WithLabelValues(f.name).Inc()
	f.reconnect()
	return true
}

// reconnect drops the current watch and goes back to listing after the next
// backoff step.
func (f *Feed[T]) reconnect() {
	f.Stop()
	f.pending = nil
	f.state = stateListing
	f.retry = true
}

func (f *Feed[T]) fail(err error) error {
	f.Stop()
	f.pending = nil
	f.state = stateFailed
	f.err = err
	return err
}

func (f *Feed[T]) wait(ctx context.Context) error {
	t := f.backoff.Backoff()
	select {
	case <-ctx.Done():
		// The manager reuses its timer, which must be drained before the
		// next Backoff call.
		if !t.Stop() {
			select {
			case <-t.C():
			default:
			}
		}
		return ctx.Err()
	case <-t.C():
		return nil
	}
}
