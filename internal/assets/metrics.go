// Copyright 2026 Google Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package assets

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/googlegenomics/paraviewer/internal/model"
	"github.com/googlegenomics/paraviewer/internal/render"
)

// Metrics are the counters and histograms of asset rendering.  A nil
// *Metrics records nothing.
type Metrics struct {
	// Entities counts rendered entities by kind and outcome: ok, degraded or
	// unavailable.
	Entities *prometheus.CounterVec
	// Failures counts failed assets by asset.
	Failures *prometheus.CounterVec
	// Duration tracks the rendering time of one entity by kind.
	Duration *prometheus.HistogramVec
}

// NewMetrics creates the metrics and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Entities: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "paraviewer_asset_entities_total",
			Help: "Entities rendered by kind and outcome",
		}, []string{"kind", "outcome"}),
		Failures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "paraviewer_asset_failures_total",
			Help: "Assets that could not be produced",
		}, []string{"asset"}),
		Duration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "paraviewer_asset_duration_seconds",
			Help:    "Time to render the assets of one entity",
			Buckets: prometheus.ExponentialBuckets(0.01, 4, 10), // 10ms to ~43m
		}, []string{"kind"}),
	}
}

func (m *Metrics) outcome(kind model.Kind, outcome string) {
	if m == nil {
		return
	}
	m.Entities.WithLabelValues(string(kind), outcome).Inc()
}

func (m *Metrics) assetFailed(asset render.Asset) {
	if m == nil {
		return
	}
	m.Failures.WithLabelValues(string(asset)).Inc()
}

func (m *Metrics) observe(kind model.Kind, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.Duration.WithLabelValues(string(kind)).Observe(elapsed.Seconds())
}
