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
	"fmt"

	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/util/sets"
	"sigs.k8s.io/controller-runtime/pkg/client"
	logf "sigs.k8s.io/controller-runtime/pkg/log"

	syncv1 "github.com/vijay-papanaboina/syncsecret-operator/api/v1"
)

// =============================================================================
// Replicator writes copies of a source Secret into destination namespaces.
//
// Every write is a server-side apply from one field manager, so applying an
// unchanged payload is a no-op and fields owned by other managers are left
// alone. Replicas carry an owner reference to their SyncSecret; deleting the
// SyncSecret lets the garbage collector remove them. The Replicator itself
// never deletes anything and never retries.
// =============================================================================
type Replicator struct {
	client.Client

	// FieldManager names this controller in managedFields.
	// DefaultFieldManager when empty.
	FieldManager string
}

// Replicate applies a copy of source to every destination of ss.
//
// A failed destination is logged and does not stop the others; the returned
// error joins every failure.
func (r *Replicator) Replicate(ctx context.Context, ss *syncv1.SyncSecret, source *corev1.Secret) error {
	log := logf.FromContext(ctx).WithValues("syncsecret", ss.Name, "secret", source.Name)

	var errs []error
	seen := sets.New[string]()
	for _, ns := range ss.Spec.DestinationNamespaces {
		if seen.Has(ns) {
			continue
		}
		seen.Insert(ns)

		// Owning the source would get it garbage collected with the SyncSecret.
		if ns == source.Namespace {
			log.Info("Skipping destination that is the source namespace", "namespace", ns)
			continue
		}

		if err := r.apply(ctx, r.replicaFor(ss, source, ns)); err != nil {
			log.Error(err, "Failed to replicate secret", "namespace", ns)
			replicationWritesTotal.WithLabelValues(resultError).Inc()
			errs = append(errs, fmt.Errorf("applying secret %s/%s: %w", ns, source.Name, err))
			continue
		}
		replicationWritesTotal.WithLabelValues(resultSuccess).Inc()
		log.Info("Successfully patched secret", "namespace", ns)
	}

	return errors.Join(errs...)
}

func (r *Replicator) apply(ctx context.Context, replica *corev1.Secret) error {
	fieldManager := r.FieldManager
	if fieldManager == "" {
		fieldManager = DefaultFieldManager
	}
	return r.Patch(ctx, replica, client.Apply, client.FieldOwner(fieldManager))
}

// replicaFor builds the desired replica of source in namespace ns.
//
// Only fields this controller owns are set: apply configurations must not
// carry resourceVersion, uid or managedFields.
func (r *Replicator) replicaFor(ss *syncv1.SyncSecret, source *corev1.Secret, ns string) *corev1.Secret {
	return &corev1.Secret{
		TypeMeta: metav1.TypeMeta{
			APIVersion: corev1.SchemeGroupVersion.String(),
			Kind:       "Secret",
		},
		ObjectMeta: metav1.ObjectMeta{
			Name:      source.Name,
			Namespace: ns,
			Labels: map[string]string{
				LabelSourceNamespace: source.Namespace,
				LabelManagedBy:       ManagedByValue,
			},
			Annotations: map[string]string{
				AnnotationSourceName:       source.Name,
				AnnotationSourceSyncSecret: ss.Name,
				AnnotationChecksum:         computeChecksum(source.Type, source.Data, source.StringData),
			},
			OwnerReferences: []metav1.OwnerReference{ownerReference(ss)},
		},
		Type:       source.Type,
		Data:       source.Data,
		StringData: source.StringData,
		Immutable:  source.Immutable,
	}
}

// ownerReference points at ss without claiming to be its controller, so
// replicas neither block the SyncSecret's deletion nor get adopted elsewhere.
func ownerReference(ss *syncv1.SyncSecret) metav1.OwnerReference {
	return metav1.OwnerReference{
		APIVersion: syncv1.GroupVersion.String(),
		Kind:       syncv1.Kind,
		Name:       ss.Name,
		UID:        ss.UID,
	}
}
