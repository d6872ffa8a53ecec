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
	"errors"
	"os"
	"sync"
	"time"

	"github.com/carina-io/zbcache/utils/log"
	"github.com/prometheus/client_golang/prometheus"
)

const (
	namespace       string = "zbcache"
	scrapeSubSystem string = "scrape"
)

var (
	// ErrNoData indicates the collector found no data to collect, but had no other error.
	ErrNoData   = errors.New("collector returned no data")
	constLabels = prometheus.Labels{"nodename": nodeName()}

	scrapeDurationDesc = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, scrapeSubSystem, "collector_duration_seconds"),
		"zbcache: Duration of a collector scrape.",
		[]string{"collector"},
		constLabels,
	)
	scrapeSuccessDesc = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, scrapeSubSystem, "collector_success"),
		"zbcache: Whether a collector succeeded.",
		[]string{"collector"},
		constLabels,
	)
)

func nodeName() string {
	if name := os.Getenv("NODE_NAME"); name != "" {
		return name
	}
	name, _ := os.Hostname()
	return name
}

type typedFactorDesc struct {
	desc      *prometheus.Desc
	valueType prometheus.ValueType
}

func (d *typedFactorDesc) mustNewConstMetric(value float64, labels ...string) prometheus.Metric {
	return prometheus.MustNewConstMetric(d.desc, d.valueType, value, labels...)
}

// Collector is the interface a collector has to implement.
type Collector interface {
	Describe(ch chan<- *prometheus.Desc)
	Update(ch chan<- prometheus.Metric) error
	Name() string
}

// ZbcacheCollector implements the prometheus.Collector interface.
type ZbcacheCollector struct {
	collectors map[string]Collector
}

func NewZbcacheCollector(src DeviceSource) *ZbcacheCollector {
	collectors := make(map[string]Collector)
	deviceStatsCollector := newDeviceStatsCollector(src)
	collectors[deviceStatsCollector.Name()] = deviceStatsCollector
	return &ZbcacheCollector{collectors: collectors}
}

// Describe implements the prometheus.Collector interface.
func (c ZbcacheCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- scrapeDurationDesc
	ch <- scrapeSuccessDesc
	for _, collector := range c.collectors {
		collector.Describe(ch)
	}
}

// Collect implements the prometheus.Collector interface.
func (c ZbcacheCollector) Collect(ch chan<- prometheus.Metric) {
	wg := sync.WaitGroup{}
	wg.Add(len(c.collectors))
	for name, c := range c.collectors {
		go func(name string, c Collector) {
			execute(name, c, ch)
			wg.Done()
		}(name, c)
	}
	wg.Wait()
}

func execute(name string, c Collector, ch chan<- prometheus.Metric) {
	begin := time.Now()
	err := c.Update(ch)
	duration := time.Since(begin)
	var success float64

	if err != nil {
		if IsNoDataError(err) {
			log.Debugf("collector %s returned no data after %.3fs", name, duration.Seconds())
		} else {
			log.Debugf("collector %s failed after %.3fs: %v", name, duration.Seconds(), err)
		}
		success = 0
	} else {
		log.Debugf("collector %s succeeded after %.3fs", name, duration.Seconds())
		success = 1
	}
	ch <- prometheus.MustNewConstMetric(scrapeDurationDesc, prometheus.GaugeValue, duration.Seconds(), name)
	ch <- prometheus.MustNewConstMetric(scrapeSuccessDesc, prometheus.GaugeValue, success, name)
}

func IsNoDataError(err error) bool {
	return errors.Is(err, ErrNoData)
}
