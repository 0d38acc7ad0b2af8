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
	"github.com/prometheus/client_golang/prometheus"
	"sigs.k8s.io/controller-runtime/pkg/metrics"
)

const (
	resultSuccess = "success"
	resultError   = "error"
)

var (
	replicationWritesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "syncsecret_replication_writes_total",
		Help: "Number of replica apply writes, by result.",
	}, []string{"result"})

	secretFeedRestartsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "syncsecret_secret_feed_restarts_total",
		Help: "Number of times the secret feed was restarted after SyncSecrets changed.",
	})

	directivesGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "syncsecret_directives",
		Help: "Number of SyncSecrets currently cached.",
	})
)

func init() {
	metrics.Registry.MustRegister(replicationWritesTotal, secretFeedRestartsTotal, directivesGauge)
}
