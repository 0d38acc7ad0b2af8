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

// =============================================================================
// Constants for the SyncSecret operator.
//
// These are used for:
// - Server-side apply ownership (field manager)
// - Replica labels and annotations (tracking, auditing, change detection)
// =============================================================================

// DefaultFieldManager is the server-side apply field manager of replica writes.
const DefaultFieldManager = "syncsecret.homerow.ca"

// =============================================================================
// Labels applied to replicated Secrets.
// Labels make replicas selectable, e.g. kubectl get secrets -l ...
// =============================================================================
const (
	// LabelSourceNamespace records the namespace the replica was copied from
	LabelSourceNamespace = "homerow.ca/source-namespace"

	// LabelManagedBy identifies this resource is managed by our operator
	LabelManagedBy = "app.kubernetes.io/managed-by"

	// ManagedByValue is the value for LabelManagedBy
	ManagedByValue = "syncsecret-operator"
)

// =============================================================================
// Annotations applied to replicated Secrets.
// These record where the data came from and a checksum of the copied payload.
// =============================================================================
const (
	// AnnotationSourceName records the name of the source Secret
	AnnotationSourceName = "homerow.ca/source-name"

	// AnnotationSourceSyncSecret records the name of the SyncSecret that caused the copy
	AnnotationSourceSyncSecret = "homerow.ca/source-syncsecret"

	// AnnotationChecksum stores SHA256 hash of the copied payload
	AnnotationChecksum = "homerow.ca/checksum"
)
