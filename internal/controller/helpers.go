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
	"crypto/sha256"
	"encoding/hex"
	"sort"

	corev1 "k8s.io/api/core/v1"

	syncv1 "github.com/vijay-papanaboina/syncsecret-operator/api/v1"
)

// =============================================================================
// Helper functions for the SyncSecret controller.
//
// These are utility functions that don't directly interact with the
// Kubernetes API but provide supporting logic for the loops and replicator.
// =============================================================================

// computeChecksum generates a SHA256 hash of a Secret payload.
//
// Keys are sorted for deterministic hashes regardless of map iteration
// order, so identical payloads always produce identical replicas and a
// repeated apply stays a no-op.
func computeChecksum(secretType corev1.SecretType, data map[string][]byte, stringData map[string]string) string {
	h := sha256.New()
	h.Write([]byte("type=" + string(secretType) + "\n"))

	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		h.Write([]byte(k))
		h.Write([]byte("="))
		h.Write(data[k])
		h.Write([]byte("\n"))
	}

	keys = keys[:0]
	for k := range stringData {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		h.Write([]byte("string:" + k + "=" + stringData[k] + "\n"))
	}

	return hex.EncodeToString(h.Sum(nil))
}

// matchesSource reports whether secret is the source selected by ss.
func matchesSource(ss *syncv1.SyncSecret, secret *corev1.Secret) bool {
	return ss.Spec.Secret.Name == secret.Name && ss.Spec.Secret.Namespace == secret.Namespace
}
