/*
   Copyright @ 2021 bocloud <fushaosong@beyondcent.com>.

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

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	setupSubSystem string = "setup"
)

// RunMetrics one setup invocation, kept in a private registry so that a short lived
// process can dump it to a node exporter textfile when it exits.
type RunMetrics struct {
	registry *prometheus.Registry

	stepDuration *prometheus.GaugeVec
	warnings     *prometheus.CounterVec
	success      prometheus.Gauge
	lastRun      prometheus.Gauge
}

func NewRunMetrics() *RunMetrics {
	m := &RunMetrics{
		registry: prometheus.NewRegistry(),
		stepDuration: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace:   namespace,
			Subsystem:   setupSubSystem,
			Name:        "step_duration_seconds",
			Help:        "Time spent in each step of the last setup run.",
			ConstLabels: constLabels,
		}, []string{"step"}),
		warnings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   namespace,
			Subsystem:   setupSubSystem,
			Name:        "warnings_total",
			Help:        "Non fatal problems reported by each step of the last setup run.",
			ConstLabels: constLabels,
		}, []string{"step"}),
		success: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   namespace,
			Subsystem:   setupSubSystem,
			Name:        "success",
			Help:        "Whether the last setup run completed without a fatal error.",
			ConstLabels: constLabels,
		}),
		lastRun: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   namespace,
			Subsystem:   setupSubSystem,
			Name:        "last_run_timestamp_seconds",
			Help:        "Unix time the last setup run finished.",
			ConstLabels: constLabels,
		}),
	}
	m.registry.MustRegister(m.stepDuration, m.warnings, m.success, m.lastRun)
	return m
}

func (m *RunMetrics) ObserveStep(step string, d time.Duration) {
	m.stepDuration.WithLabelValues(step).Set(d.Seconds())
}

func (m *RunMetrics) Warning(step string) {
	m.warnings.WithLabelValues(step).Inc()
}

func (m *RunMetrics) Finish(success bool, at time.Time) {
	if success {
		m.success.Set(1)
	} else {
		m.success.Set(0)
	}
	m.lastRun.Set(float64(at.Unix()))
}

// Register adds c, usually a ZbcacheCollector, to the private registry
func (m *RunMetrics) Register(c prometheus.Collector) error {
	return m.registry.Register(c)
}

func (m *RunMetrics) Registry() *prometheus.Registry {
	return m.registry
}

// WriteTextfile atomically replaces path with the text exposition of every registered metric
func (m *RunMetrics) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, m.registry)
}
