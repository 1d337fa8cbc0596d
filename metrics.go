// Copyright 2023-2025 Buf Technologies, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package dnscache

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// cacheMetrics records cache activity. A nil *cacheMetrics records nothing.
type cacheMetrics struct {
	registerer prometheus.Registerer

	queryAttempts  prometheus.Counter
	hostsAdded     prometheus.Counter
	addressChanges prometheus.Counter
	hostsRemoved   prometheus.Counter
	numHosts       prometheus.Gauge
}

func newCacheMetrics(registerer prometheus.Registerer, cacheName string) (*cacheMetrics, error) {
	if registerer == nil {
		return nil, nil //nolint:nilnil
	}
	metrics := &cacheMetrics{
		registerer: prometheus.WrapRegistererWith(prometheus.Labels{"cache": cacheName}, registerer),
		queryAttempts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "dnscache_dns_query_attempt_total",
			Help: "The number of DNS queries started.",
		}),
		hostsAdded: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "dnscache_host_added_total",
			Help: "The number of hosts resolved for the first time.",
		}),
		addressChanges: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "dnscache_host_address_changed_total",
			Help: "The number of re-resolutions that changed a host's address.",
		}),
		hostsRemoved: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "dnscache_host_removed_total",
			Help: "The number of resolved hosts evicted for being unused.",
		}),
		numHosts: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "dnscache_num_hosts",
			Help: "The number of resolved hosts in the cache.",
		}),
	}
	collectors := metrics.collectors()
	for i, collector := range collectors {
		if err := metrics.registerer.Register(collector); err != nil {
			for _, registered := range collectors[:i] {
				metrics.registerer.Unregister(registered)
			}
			return nil, fmt.Errorf("failed to register metrics for cache %q: %w", cacheName, err)
		}
	}
	return metrics, nil
}

func (m *cacheMetrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.queryAttempts,
		m.hostsAdded,
		m.addressChanges,
		m.hostsRemoved,
		m.numHosts,
	}
}

func (m *cacheMetrics) unregister() {
	if m == nil {
		return
	}
	for _, collector := range m.collectors() {
		m.registerer.Unregister(collector)
	}
}

func (m *cacheMetrics) queryAttempt() {
	if m != nil {
		m.queryAttempts.Inc()
	}
}

func (m *cacheMetrics) hostAdded() {
	if m != nil {
		m.hostsAdded.Inc()
	}
}

func (m *cacheMetrics) addressChanged() {
	if m != nil {
		m.addressChanges.Inc()
	}
}

func (m *cacheMetrics) hostRemoved() {
	if m != nil {
		m.hostsRemoved.Inc()
	}
}

func (m *cacheMetrics) setNumHosts(n int) {
	if m != nil {
		m.numHosts.Set(float64(n))
	}
}
