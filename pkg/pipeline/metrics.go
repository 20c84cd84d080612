// Copyright (c) 2025, NVIDIA CORPORATION.  All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package pipeline

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	registry = prometheus.NewRegistry()

	phaseDuration = promauto.With(registry).NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "avsrecipe_phase_duration_seconds",
			Help:    "Duration of recipe phases in seconds",
			Buckets: []float64{0.1, 1, 10, 60, 300, 900, 1800, 3600},
		},
		[]string{"phase"},
	)

	phaseFailures = promauto.With(registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "avsrecipe_phase_failures_total",
			Help: "Total number of failed recipe phases by error code",
		},
		[]string{"phase", "code"},
	)

	patchesApplied = promauto.With(registry).NewCounter(
		prometheus.CounterOpts{
			Name: "avsrecipe_patches_applied_total",
			Help: "Total number of patch files applied to source trees",
		},
	)
)

// WriteMetrics writes the pipeline metrics to path in the node-exporter
// textfile collector format.
func WriteMetrics(path string) error {
	return prometheus.WriteToTextfile(path, registry)
}
