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
	corev1 "k8s.io/api/core/v1"
	"sigs.k8s.io/controller-runtime/pkg/client"
	logf "sigs.k8s.io/controller-runtime/pkg/log"

	syncv1 "github.com/vijay-papanaboina/syncsecret-operator/api/v1"
	"github.com/vijay-papanaboina/syncsecret-operator/internal/cache"
	"github.com/vijay-papanaboina/syncsecret-operator/internal/feed"
)

// SecretFeed is the stream of Secret changes.
type SecretFeed interface {
	Next(ctx context.Context) (feed.Event[*corev1.Secret], error)
	Stop()
}

// =============================================================================
// SecretReconciler replicates Secrets selected by cached SyncSecrets.
//
// The secret feed is thrown away and rebuilt whenever Signal fires. A new
// feed always starts with a full list, so every SyncSecret in the freshly
// changed cache meets every existing Secret, including Secrets created
// before the SyncSecret.
//
// Events are handled one at a time, in feed order. A failed replication is
// logged and skipped; the next event for that Secret, or the next restart,
// tries again.
// =============================================================================
type SecretReconciler struct {
	Directives cache.Reader[*syncv1.SyncSecret]
	Signal     *Signal
	Replicator *Replicator

	// NewFeed opens a fresh secret feed.
	NewFeed func() SecretFeed
}

// Run blocks until ctx is done or a secret feed fails for good.
func (r *SecretReconciler) Run(ctx context.Context) error {
	log := logf.FromContext(ctx).WithName("secret-reconciler")

	if err := r.Directives.WaitUntilReady(ctx); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("waiting for the SyncSecret cache: %w", err)
	}
	log.Info("SyncSecret cache synced, watching secrets")

	for {
		// Taken before the feed lists, so no change can slip in between.
		changed := r.Signal.Changed()

		f := r.NewFeed()
		err := r.consume(ctx, log, f, changed)
		f.Stop()
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return nil
		}

		secretFeedRestartsTotal.Inc()
		log.V(1).Info("SyncSecrets changed, restarting secret feed")
	}
}

// consume handles events of f until changed fires or ctx is done, both of
// which return nil, or until f fails.
func (r *SecretReconciler) consume(ctx context.Context, log logr.Logger, f SecretFeed, changed <-chan struct{}) error {
	feedCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-changed:
			cancel()
		case <-feedCtx.Done():
		}
	}()

	for {
		ev, err := f.Next(feedCtx)
		if err != nil {
			if feedCtx.Err() != nil {
				return nil
			}
			log.Error(err, "Secret watcher failed")
			return fmt.Errorf("watching Secrets: %w", err)
		}
		if ev.Type != feed.Applied {
			continue
		}
		// Writes run on ctx: a restart never interrupts them.
		r.reconcile(ctx, log, ev.Object)
	}
}

// reconcile replicates secret for every cached SyncSecret that selects it.
func (r *SecretReconciler) reconcile(ctx context.Context, log logr.Logger, secret *corev1.Secret) {
	for _, ss := range r.Directives.Snapshot() {
		if !matchesSource(ss, secret) {
			continue
		}

		log.Info("Secret found, replicating to destination namespaces",
			"secret", client.ObjectKeyFromObject(secret),
			"syncsecret", ss.Name,
			"destinations", ss.Spec.DestinationNamespaces)

		if err := r.Replicator.Replicate(logf.IntoContext(ctx, log), ss, secret); err != nil {
			log.V(1).Info("Replication incomplete, retrying on the next event for this secret",
				"secret", client.ObjectKeyFromObject(secret),
				"syncsecret", ss.Name,
				"error", err)
		}
	}
}
