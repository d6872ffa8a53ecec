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
	"github.com/carina-io/zbcache/pkg/devicemanager/types"
	"github.com/carina-io/zbcache/utils/log"
	"github.com/prometheus/client_golang/prometheus"
)

const (
	deviceSubSystem string = "device_stats"
)

// DeviceSource lists the zram and bcache devices present and reads their counters
type DeviceSource interface {
	CacheDevices() ([]string, error)
	DeviceStats(name string) (*types.DeviceStats, error)
}

var (
	deviceStatLabels = []string{"device"}

	readIOsDesc = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, deviceSubSystem, "read_ios_total"),
		"The number of read I/Os processed.",
		deviceStatLabels,
		constLabels,
	)
	readSectorsDesc = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, deviceSubSystem, "read_sectors_total"),
		"The number of sectors read.",
		deviceStatLabels,
		constLabels,
	)
	writeIOsDesc = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, deviceSubSystem, "write_ios_total"),
		"The number of write I/Os processed.",
		deviceStatLabels,
		constLabels,
	)
	writeSectorsDesc = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, deviceSubSystem, "write_sectors_total"),
		"The number of sectors written.",
		deviceStatLabels,
		constLabels,
	)
	inFlightDesc = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, deviceSubSystem, "in_flight"),
		"The number of I/Os currently in flight.",
		deviceStatLabels,
		constLabels,
	)
)

type deviceStatsCollector struct {
	descs []typedFactorDesc
	src   DeviceSource
}

func newDeviceStatsCollector(src DeviceSource) Collector {
	return &deviceStatsCollector{
		descs: []typedFactorDesc{
			{desc: readIOsDesc, valueType: prometheus.CounterValue},
			{desc: readSectorsDesc, valueType: prometheus.CounterValue},
			{desc: writeIOsDesc, valueType: prometheus.CounterValue},
			{desc: writeSectorsDesc, valueType: prometheus.CounterValue},
			{desc: inFlightDesc, valueType: prometheus.GaugeValue},
		},
		src: src,
	}
}

func (c *deviceStatsCollector) Name() string {
	return deviceSubSystem
}

func (c *deviceStatsCollector) Describe(ch chan<- *prometheus.Desc) {
	for _, d := range c.descs {
		ch <- d.desc
	}
}

func (c *deviceStatsCollector) Update(ch chan<- prometheus.Metric) error {
	names, err := c.src.CacheDevices()
	if err != nil {
		return err
	}
	if len(names) == 0 {
		return ErrNoData
	}
	for _, name := range names {
		stats, err := c.src.DeviceStats(name)
		if err != nil {
			log.Debugf("skip stats of %s: %v", name, err)
			continue
		}
		values := []uint64{stats.ReadIOs, stats.ReadSectors, stats.WriteIOs, stats.WriteSectors, stats.InFlight}
		for i, d := range c.descs {
			ch <- d.mustNewConstMetric(float64(values[i]), name)
		}
	}
	return nil
}
