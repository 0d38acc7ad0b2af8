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
	"errors"
	"net/http"

	"golang.org/x/sync/errgroup"
	corev1 "k8s.io/api/core/v1"
	"k8s.io/apimachinery/pkg/util/wait"
	ctrl "sigs.k8s.io/controller-runtime"
	"sigs.k8s.io/controller-runtime/pkg/client"
	logf "sigs.k8s.io/controller-runtime/pkg/log"
	"sigs.k8s.io/controller-runtime/pkg/manager"

	syncv1 "github.com/vijay-papanaboina/syncsecret-operator/api/v1"
	"github.com/vijay-papanaboina/syncsecret-operator/internal/cache"
	"github.com/vijay-papanaboina/syncsecret-operator/internal/feed"
)

// =============================================================================
// SyncSecretController keeps every Secret selected by a SyncSecret copied,
// byte for byte, into each of that SyncSecret's destination namespaces.
//
// Two loops run side by side and only meet through shared state:
// - DirectiveWatcher: SyncSecret feed -> cache, raising the wake-up Signal
// - SecretReconciler: Secret feed + cache snapshot -> Replicator writes,
//   restarting its feed whenever the Signal fires
//
// Related files:
// - constants.go: Label and annotation keys, field manager
// - helpers.go: Utility functions (checksum, source matching)
// - replicator.go: Replica construction and apply writes
// =============================================================================
type SyncSecretController struct {
	// Client writes replicas.
	client.Client

	// Watcher lists and watches SyncSecrets and Secrets. It must read from
	// the API server, not from an informer cache.
	Watcher client.WithWatch

	// FieldManager names this controller in managedFields.
	FieldManager string

	// Backoff governs feed reconnects. feed.DefaultBackoff when zero.
	Backoff wait.Backoff

	directives *cache.Store[*syncv1.SyncSecret]
}

// =============================================================================
// RBAC Markers - Generate ClusterRole permissions in config/rbac/role.yaml
// =============================================================================

// +kubebuilder:rbac:groups=homerow.ca,resources=syncsecrets,verbs=get;list;watch
// +kubebuilder:rbac:groups="",resources=secrets,verbs=get;list;watch;create;update;patch
// +kubebuilder:rbac:groups=coordination.k8s.io,resources=leases,verbs=get;list;watch;create;update;patch;delete

// SetupWithManager registers the controller as a leader-elected runnable.
func (c *SyncSecretController) SetupWithManager(mgr ctrl.Manager) error {
	if c.Watcher == nil {
		return errors.New("SyncSecretController needs a Watcher client")
	}
	c.directives = cache.New[*syncv1.SyncSecret]()
	return mgr.Add(manager.RunnableFunc(c.Start))
}

// ReadyzCheck fails until the SyncSecret cache has been populated once.
func (c *SyncSecretController) ReadyzCheck(_ *http.Request) error {
	if c.directives == nil || !c.directives.Ready() {
		return errors.New("SyncSecret cache not synced")
	}
	return nil
}

// Start runs both loops until ctx is done. An unrecoverable feed error stops
// the other loop and is returned.
func (c *SyncSecretController) Start(ctx context.Context) error {
	log := logf.FromContext(ctx).WithName("syncsecret")
	ctx = logf.IntoContext(ctx, log)
	log.Info("Starting SyncSecret controller")

	if c.directives == nil {
		c.directives = cache.New[*syncv1.SyncSecret]()
	}
	signal := NewSignal()

	watcher := &DirectiveWatcher{
		Feed: feed.New[*syncv1.SyncSecret](&feed.ClientListerWatcher{
			Client:  c.Watcher,
			NewList: func() client.ObjectList { return &syncv1.SyncSecretList{} },
		}, feed.Options{Name: "syncsecrets", Backoff: c.Backoff}),
		Cache:  c.directives,
		Signal: signal,
	}

	reconciler := &SecretReconciler{
		Directives: c.directives,
		Signal:     signal,
		Replicator: &Replicator{Client: c.Client, FieldManager: c.FieldManager},
		NewFeed: func() SecretFeed {
			return feed.New[*corev1.Secret](&feed.ClientListerWatcher{
				Client:  c.Watcher,
				NewList: func() client.ObjectList { return &corev1.SecretList{} },
			}, feed.Options{Name: "secrets", Backoff: c.Backoff})
		},
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return watcher.Run(gctx) })
	g.Go(func() error { return reconciler.Run(gctx) })
	return g.Wait()
}
