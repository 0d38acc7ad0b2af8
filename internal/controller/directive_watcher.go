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

package controller

import (
	"context"
	"fmt"

	"github.com/go-logr/logr"
	logf "sigs.k8s.io/controller-runtime/pkg/log"

	syncv1 "github.com/vijay-papanaboina/syncsecret-operator/api/v1"
	"github.com/vijay-papanaboina/syncsecret-operator/internal/cache"
	"github.com/vijay-papanaboina/syncsecret-operator/internal/feed"
)

// DirectiveFeed is the stream of SyncSecret changes.
type DirectiveFeed interface {
	Next(ctx context.Context) (feed.Event[*syncv1.SyncSecret], error)
	Stop()
}

// =============================================================================
// DirectiveWatcher mirrors SyncSecrets into the cache.
//
// Every change to the cache is followed by a Raise of Signal. The watcher
// never writes to the cluster.
// =============================================================================
type DirectiveWatcher struct {
	Feed   DirectiveFeed
	Cache  *cache.Store[*syncv1.SyncSecret]
	Signal *Signal
}

// Run consumes the feed until ctx is done or the feed fails for good.
func (w *DirectiveWatcher) Run(ctx context.Context) error {
	log := logf.FromContext(ctx).WithName("syncsecret-watcher")
	defer w.Feed.Stop()
	// Readers must not wait forever on a cache that will never fill.
	defer w.Cache.Abandon()

	for {
		ev, err := w.Feed.Next(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			log.Error(err, "SyncSecret watcher failed")
			return fmt.Errorf("watching SyncSecrets: %w", err)
		}
		if err := w.apply(log, ev); err != nil {
			return err
		}
	}
}

func (w *DirectiveWatcher) apply(log logr.Logger, ev feed.Event[*syncv1.SyncSecret]) error {
	switch ev.Type {
	case feed.Applied:
		// Listed objects land together with the closing Synced event.
		if ev.Relisted {
			return nil
		}
		if err := w.Cache.Upsert(ev.Object); err != nil {
			return err
		}
		log.Info("SyncSecret created or updated", "syncsecret", ev.Object.Name,
			"source", ev.Object.Spec.Secret.Namespace+"/"+ev.Object.Spec.Secret.Name,
			"destinations", ev.Object.Spec.DestinationNamespaces)

	case feed.Removed:
		if err := w.Cache.Remove(ev.Object); err != nil {
			return err
		}
		log.Info("SyncSecret deleted", "syncsecret", ev.Object.Name)

	case feed.Synced:
		if err := w.Cache.Replace(ev.Objects); err != nil {
			return err
		}
		log.Info("SyncSecrets listed", "count", len(ev.Objects))
	}

	directivesGauge.Set(float64(w.Cache.Len()))
	w.Signal.Raise()
	return nil
}
