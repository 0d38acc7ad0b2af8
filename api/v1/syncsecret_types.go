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

package v1

import (
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
)

// Kind is the kind name of SyncSecret, as used in owner references.
const Kind = "SyncSecret"

// =============================================================================
// SyncSecretSpec declares which Secret to copy and where to copy it.
//
//   - Secret: the single source Secret, identified by name and namespace
//   - DestinationNamespaces: every namespace that should hold a copy
//
// Copies keep the source name. They are owned by the SyncSecret, so deleting
// the SyncSecret lets the garbage collector remove them.
// =============================================================================
type SyncSecretSpec struct {
	// Secret identifies the source Secret.
	//
	// Example:
	//   secret:
	//     name: db-creds
	//     namespace: prod
	//
	// +required
	Secret SecretReference `json:"secret"`

	// DestinationNamespaces lists the namespaces the source is copied into.
	// Order does not matter and repeated entries are applied once.
	// The namespaces must already exist - the operator will NOT create them.
	//
	// +required
	DestinationNamespaces []string `json:"destinationNamespaces"`
}

// SecretReference identifies one Secret in the cluster.
type SecretReference struct {
	// Name is the name of the Secret.
	//
	// +required
	Name string `json:"name"`

	// Namespace is the namespace of the Secret.
	//
	// +required
	Namespace string `json:"namespace"`
}

// +kubebuilder:object:root=true
// +kubebuilder:resource:scope=Cluster
// +kubebuilder:printcolumn:name="Source",type=string,JSONPath=`.spec.secret.name`
// +kubebuilder:printcolumn:name="Source Namespace",type=string,JSONPath=`.spec.secret.namespace`
// +kubebuilder:printcolumn:name="Age",type=date,JSONPath=`.metadata.creationTimestamp`

// SyncSecret is the Schema for the syncsecrets API.
//
// SyncSecret is cluster scoped: the replicas it owns live in other
// namespaces, and owner references from namespaced objects may only point at
// owners in the same namespace or at cluster-scoped owners.
type SyncSecret struct {
	metav1.TypeMeta `json:",inline"`

	// metadata is a standard object metadata
	// +optional
	metav1.ObjectMeta `json:"metadata,omitzero"`

	// spec defines the desired replication of a Secret
	// +required
	Spec SyncSecretSpec `json:"spec"`
}

// +kubebuilder:object:root=true

// SyncSecretList contains a list of SyncSecret
type SyncSecretList struct {
	metav1.TypeMeta `json:",inline"`
	metav1.ListMeta `json:"metadata,omitzero"`
	Items           []SyncSecret `json:"items"`
}

func init() {
	SchemeBuilder.Register(&SyncSecret{}, &SyncSecretList{})
}
