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
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-logr/logr"
	"github.com/go-logr/logr/funcr"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/util/wait"
	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/client/fake"

	syncv1 "github.com/vijay-papanaboina/syncsecret-operator/api/v1"
	"github.com/vijay-papanaboina/syncsecret-operator/internal/cache"
	"github.com/vijay-papanaboina/syncsecret-operator/internal/feed"
)

var _ = Describe("SecretReconciler", func() {
	var (
		ctx         context.Context
		stop        context.CancelFunc
		secrets     client.WithWatch
		recorder    *patchRecorder
		store       *cache.Store[*syncv1.SyncSecret]
		signal      *Signal
		feedsOpened *atomic.Int32
		done        chan error
	)

	source := syncv1.SecretReference{Name: "db-creds", Namespace: "prod"}
	directive := newDirective("db-creds-sync", source, "staging", "qa")
	sourceSecret := func() *corev1.Secret {
		return &corev1.Secret{
			ObjectMeta: metav1.ObjectMeta{Name: "db-creds", Namespace: "prod"},
			Data:       map[string][]byte{"password": []byte("s3cret")},
		}
	}

	start := func(objs ...client.Object) {
		secrets = fake.NewClientBuilder().WithScheme(newTestScheme()).WithObjects(objs...).Build()
		r := &SecretReconciler{
			Directives: store,
			Signal:     signal,
			Replicator: &Replicator{Client: recorder.client()},
			NewFeed: func() SecretFeed {
				feedsOpened.Add(1)
				return feed.New[*corev1.Secret](&feed.ClientListerWatcher{
					Client:  secrets,
					NewList: func() client.ObjectList { return &corev1.SecretList{} },
				}, feed.Options{
					Name:    "test-secrets",
					Backoff: wait.Backoff{Duration: time.Millisecond, Factor: 1, Steps: 1 << 30},
				})
			},
		}
		go func() { done <- r.Run(ctx) }()
	}

	BeforeEach(func() {
		ctx, stop = context.WithCancel(context.Background())
		recorder = newPatchRecorder()
		store = cache.New[*syncv1.SyncSecret]()
		signal = NewSignal()
		feedsOpened = &atomic.Int32{}
		done = make(chan error, 1)
		DeferCleanup(stop)
	})

	It("should replicate existing secrets to every destination", func() {
		Expect(store.Replace([]*syncv1.SyncSecret{directive})).To(Succeed())
		start(sourceSecret())

		Eventually(recorder.namespaces).Should(ConsistOf("staging", "qa"))
		for _, rp := range recorder.recorded() {
			Expect(rp.secret.Data).To(HaveKeyWithValue("password", []byte("s3cret")))
		}
	})

	It("should not open a feed before the directive cache is ready", func() {
		start(sourceSecret())

		Consistently(feedsOpened.Load, "100ms").Should(BeZero())

		Expect(store.Replace([]*syncv1.SyncSecret{directive})).To(Succeed())
		Eventually(recorder.namespaces).Should(ConsistOf("staging", "qa"))
	})

	It("should restart its feed when directives change and replicate secrets created earlier", func() {
		Expect(store.Replace(nil)).To(Succeed())
		start(sourceSecret())

		Eventually(feedsOpened.Load).Should(Equal(int32(1)))
		Consistently(recorder.recorded, "100ms").Should(BeEmpty())

		Expect(store.Upsert(directive)).To(Succeed())
		signal.Raise()

		Eventually(recorder.namespaces).Should(ConsistOf("staging", "qa"))
		Expect(feedsOpened.Load()).To(BeNumerically(">=", 2))
	})

	It("should leave secrets that no directive selects alone", func() {
		Expect(store.Replace([]*syncv1.SyncSecret{directive})).To(Succeed())
		start(
			&corev1.Secret{ObjectMeta: metav1.ObjectMeta{Name: "api-key", Namespace: "prod"}},
			&corev1.Secret{ObjectMeta: metav1.ObjectMeta{Name: "db-creds", Namespace: "dev"}},
		)

		Eventually(feedsOpened.Load).Should(Equal(int32(1)))
		Consistently(recorder.recorded, "200ms").Should(BeEmpty())
	})

	It("should keep replicating after a destination fails", func() {
		recorder = newPatchRecorder("staging")
		Expect(store.Replace([]*syncv1.SyncSecret{directive})).To(Succeed())
		start(sourceSecret())

		Eventually(recorder.namespaces).Should(ConsistOf("qa"))

		// Later events are still handled. The watch opens asynchronously, so
		// keep rotating the source until a second write shows up.
		n := 0
		Eventually(func() int {
			n++
			s := &corev1.Secret{}
			Expect(secrets.Get(ctx, client.ObjectKeyFromObject(sourceSecret()), s)).To(Succeed())
			s.Data = map[string][]byte{"password": []byte(fmt.Sprintf("rotated-%d", n))}
			Expect(secrets.Update(ctx, s)).To(Succeed())
			return len(recorder.recorded())
		}, 5*time.Second, 50*time.Millisecond).Should(BeNumerically(">=", 2))

		Expect(recorder.namespaces()).NotTo(ContainElement("staging"))
		Consistently(done).ShouldNot(Receive())
	})

	It("should log a partly failed replication once at debug verbosity", func() {
		var (
			mu    sync.Mutex
			lines []string
		)
		ctx = logr.NewContext(ctx, funcr.New(func(_, args string) {
			mu.Lock()
			defer mu.Unlock()
			lines = append(lines, args)
		}, funcr.Options{Verbosity: 1}))
		logged := func() []string {
			mu.Lock()
			defer mu.Unlock()
			return append([]string(nil), lines...)
		}

		recorder = newPatchRecorder("staging")
		Expect(store.Replace([]*syncv1.SyncSecret{directive})).To(Succeed())
		start(sourceSecret())

		Eventually(recorder.namespaces).Should(ConsistOf("qa"))
		Eventually(logged).Should(ContainElement(And(
			ContainSubstring("Replication incomplete"),
			ContainSubstring("staging/db-creds"),
			ContainSubstring(`"level"=1`),
		)))
	})

	It("should fail when the directive cache is abandoned", func() {
		store.Abandon()
		start()

		Eventually(done).Should(Receive(MatchError(cache.ErrAbandoned)))
		Expect(feedsOpened.Load()).To(BeZero())
	})

	It("should return nil when cancelled", func() {
		Expect(store.Replace(nil)).To(Succeed())
		start()
		Eventually(feedsOpened.Load).Should(Equal(int32(1)))

		stop()

		Eventually(done).Should(Receive(BeNil()))
	})
})
