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
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/types"
	"k8s.io/utils/ptr"
	"sigs.k8s.io/controller-runtime/pkg/client"

	syncv1 "github.com/vijay-papanaboina/syncsecret-operator/api/v1"
)

// These specs run against the controller started in suite_test.go.
var _ = Describe("SyncSecret Controller", func() {
	const (
		timeout  = time.Second * 10
		interval = time.Millisecond * 250
	)

	var (
		ctx       context.Context
		suffix    string
		prodNS    string
		stagingNS string
		qaNS      string
	)

	BeforeEach(func() {
		ctx = context.Background()

		// Create unique namespaces to avoid conflicts
		suffix = fmt.Sprintf("%d", time.Now().UnixNano()%1000000)
		prodNS = "prod-" + suffix
		stagingNS = "staging-" + suffix
		qaNS = "qa-" + suffix

		for _, name := range []string{prodNS, stagingNS, qaNS} {
			ns := &corev1.Namespace{ObjectMeta: metav1.ObjectMeta{Name: name}}
			Expect(k8sClient.Create(ctx, ns)).To(Succeed())
			DeferCleanup(func() { _ = k8sClient.Delete(context.Background(), ns) })
		}
	})

	newSource := func(name string, data map[string][]byte) *corev1.Secret {
		return &corev1.Secret{
			ObjectMeta: metav1.ObjectMeta{Name: name, Namespace: prodNS},
			Data:       data,
		}
	}

	createDirective := func(secretName string, destinations ...string) *syncv1.SyncSecret {
		ss := &syncv1.SyncSecret{
			ObjectMeta: metav1.ObjectMeta{Name: secretName + "-sync-" + suffix},
			Spec: syncv1.SyncSecretSpec{
				Secret:                syncv1.SecretReference{Name: secretName, Namespace: prodNS},
				DestinationNamespaces: destinations,
			},
		}
		Expect(k8sClient.Create(ctx, ss)).To(Succeed())
		DeferCleanup(func() { _ = client.IgnoreNotFound(k8sClient.Delete(context.Background(), ss)) })
		return ss
	}

	replica := func(namespace, name string) func(Gomega) *corev1.Secret {
		return func(g Gomega) *corev1.Secret {
			s := &corev1.Secret{}
			g.Expect(k8sClient.Get(ctx, types.NamespacedName{Namespace: namespace, Name: name}, s)).To(Succeed())
			return s
		}
	}

	Context("When a Secret is created after its SyncSecret", func() {
		It("should replicate it to every destination namespace", func() {
			ss := createDirective("db-creds", stagingNS, qaNS)

			source := newSource("db-creds", map[string][]byte{
				"username": []byte("app"),
				"password": []byte("s3cret"),
			})
			Expect(k8sClient.Create(ctx, source)).To(Succeed())

			for _, ns := range []string{stagingNS, qaNS} {
				Eventually(replica(ns, "db-creds"), timeout, interval).Should(
					HaveField("Data", Equal(source.Data)))

				got := replica(ns, "db-creds")(Default)
				Expect(got.Type).To(Equal(corev1.SecretTypeOpaque))
				Expect(got.Labels).To(HaveKeyWithValue(LabelSourceNamespace, prodNS))
				Expect(got.Labels).To(HaveKeyWithValue(LabelManagedBy, ManagedByValue))
				Expect(got.Annotations).To(HaveKeyWithValue(AnnotationSourceSyncSecret, ss.Name))
				Expect(got.Annotations).To(HaveKey(AnnotationChecksum))
				Expect(got.OwnerReferences).To(ConsistOf(HaveField("UID", ss.UID)))
			}
		})
	})

	Context("When a Secret exists before its SyncSecret", func() {
		It("should replicate it once the SyncSecret appears", func() {
			source := newSource("api-key", map[string][]byte{"token": []byte("abc123")})
			Expect(k8sClient.Create(ctx, source)).To(Succeed())

			createDirective("api-key", stagingNS)

			Eventually(replica(stagingNS, "api-key"), timeout, interval).Should(
				HaveField("Data", HaveKeyWithValue("token", []byte("abc123"))))
		})
	})

	Context("When the source Secret changes", func() {
		It("should propagate the new data", func() {
			source := newSource("db-creds", map[string][]byte{"password": []byte("v1")})
			Expect(k8sClient.Create(ctx, source)).To(Succeed())
			createDirective("db-creds", stagingNS, qaNS)

			Eventually(replica(qaNS, "db-creds"), timeout, interval).Should(
				HaveField("Data", HaveKeyWithValue("password", []byte("v1"))))

			Expect(k8sClient.Get(ctx, client.ObjectKeyFromObject(source), source)).To(Succeed())
			source.Data["password"] = []byte("v2")
			Expect(k8sClient.Update(ctx, source)).To(Succeed())

			for _, ns := range []string{stagingNS, qaNS} {
				Eventually(replica(ns, "db-creds"), timeout, interval).Should(
					HaveField("Data", HaveKeyWithValue("password", []byte("v2"))))
			}
		})

		It("should leave an up-to-date replica untouched", func() {
			source := newSource("db-creds", map[string][]byte{"password": []byte("v1")})
			Expect(k8sClient.Create(ctx, source)).To(Succeed())
			createDirective("db-creds", stagingNS)

			Eventually(replica(stagingNS, "db-creds"), timeout, interval).Should(
				HaveField("Data", HaveKeyWithValue("password", []byte("v1"))))
			before := replica(stagingNS, "db-creds")(Default).ResourceVersion

			// Metadata on the source is not replicated, so the replica is
			// already in its desired state.
			Expect(k8sClient.Get(ctx, client.ObjectKeyFromObject(source), source)).To(Succeed())
			source.Annotations = map[string]string{"touched": "true"}
			Expect(k8sClient.Update(ctx, source)).To(Succeed())

			Consistently(func(g Gomega) string {
				return replica(stagingNS, "db-creds")(g).ResourceVersion
			}, time.Second*2, interval).Should(Equal(before))
		})
	})

	Context("When the source Secret has a special type", func() {
		It("should keep its type and immutability", func() {
			source := newSource("tls-cert", map[string][]byte{
				corev1.TLSCertKey:       []byte("cert-data"),
				corev1.TLSPrivateKeyKey: []byte("key-data"),
			})
			source.Type = corev1.SecretTypeTLS
			source.Immutable = ptr.To(true)
			Expect(k8sClient.Create(ctx, source)).To(Succeed())

			createDirective("tls-cert", stagingNS)

			Eventually(replica(stagingNS, "tls-cert"), timeout, interval).Should(And(
				HaveField("Type", corev1.SecretTypeTLS),
				HaveField("Immutable", HaveValue(BeTrue())),
				HaveField("Data", HaveKeyWithValue(corev1.TLSCertKey, []byte("cert-data"))),
			))
		})
	})

	Context("When a Secret is not selected by any SyncSecret", func() {
		It("should not replicate it", func() {
			Expect(k8sClient.Create(ctx, newSource("db-creds", map[string][]byte{"k": []byte("v")}))).To(Succeed())
			Expect(k8sClient.Create(ctx, newSource("unrelated", map[string][]byte{"k": []byte("v")}))).To(Succeed())
			createDirective("db-creds", stagingNS)

			Eventually(replica(stagingNS, "db-creds"), timeout, interval).Should(Not(BeNil()))

			Consistently(func() bool {
				err := k8sClient.Get(ctx, types.NamespacedName{Namespace: stagingNS, Name: "unrelated"}, &corev1.Secret{})
				return apierrors.IsNotFound(err)
			}, time.Second*2, interval).Should(BeTrue())
		})
	})

	Context("When a SyncSecret changes", func() {
		It("should replicate to a destination added later", func() {
			Expect(k8sClient.Create(ctx, newSource("db-creds", map[string][]byte{"k": []byte("v")}))).To(Succeed())
			ss := createDirective("db-creds", stagingNS)

			Eventually(replica(stagingNS, "db-creds"), timeout, interval).Should(Not(BeNil()))

			Expect(k8sClient.Get(ctx, client.ObjectKeyFromObject(ss), ss)).To(Succeed())
			ss.Spec.DestinationNamespaces = append(ss.Spec.DestinationNamespaces, qaNS)
			Expect(k8sClient.Update(ctx, ss)).To(Succeed())

			Eventually(replica(qaNS, "db-creds"), timeout, interval).Should(
				HaveField("Data", HaveKeyWithValue("k", []byte("v"))))
		})

		It("should stop following the source once the SyncSecret is deleted", func() {
			source := newSource("db-creds", map[string][]byte{"password": []byte("v1")})
			Expect(k8sClient.Create(ctx, source)).To(Succeed())
			ss := createDirective("db-creds", stagingNS)

			Eventually(replica(stagingNS, "db-creds"), timeout, interval).Should(
				HaveField("Data", HaveKeyWithValue("password", []byte("v1"))))

			Expect(k8sClient.Delete(ctx, ss)).To(Succeed())
			Eventually(func() bool {
				return apierrors.IsNotFound(k8sClient.Get(ctx, client.ObjectKeyFromObject(ss), &syncv1.SyncSecret{}))
			}, timeout, interval).Should(BeTrue())
			// Give the watch time to deliver the deletion.
			time.Sleep(time.Second)

			Expect(k8sClient.Get(ctx, client.ObjectKeyFromObject(source), source)).To(Succeed())
			source.Data["password"] = []byte("v2")
			Expect(k8sClient.Update(ctx, source)).To(Succeed())

			// envtest runs no garbage collector, so the replica stays behind
			// with its last content.
			Consistently(replica(stagingNS, "db-creds"), time.Second*2, interval).Should(
				HaveField("Data", HaveKeyWithValue("password", []byte("v1"))))
		})
	})
})
