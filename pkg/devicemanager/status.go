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

package devicemanager

import (
	"path/filepath"
	"strings"

	"github.com/carina-io/zbcache/pkg/devicemanager/device"
	"github.com/carina-io/zbcache/pkg/devicemanager/types"
	"github.com/carina-io/zbcache/utils/log"
)

var (
	zramStatusAttrs   = []string{types.AttrCompAlgorithm, types.AttrDiskSize, types.AttrMemLimit}
	bcacheStatusAttrs = []string{
		filepath.Join(types.BcacheControlDir, types.AttrCacheMode),
		filepath.Join(types.BcacheControlDir, types.AttrSequentialCutoff),
		filepath.Join(types.BcacheControlDir, types.AttrState),
	}
)

type DeviceStatus struct {
	Path        string             `json:"path"`
	BlockDevice bool               `json:"block_device"`
	Attributes  map[string]string  `json:"attributes,omitempty"`
	Stats       *types.DeviceStats `json:"stats,omitempty"`
}

type Status struct {
	Zram            []DeviceStatus  `json:"zram"`
	Bcache          []DeviceStatus  `json:"bcache"`
	BackingDevice   string          `json:"backing_device"`
	BackingAttached bool            `json:"backing_attached"`
	BackingDisk     *types.DiskInfo `json:"backing_disk,omitempty"`
}

// Status inspects the current zram and bcache devices without changing anything
func (dm *DeviceManager) Status() (*Status, error) {
	zramDevices, err := dm.DiskManager.FindZramDevices()
	if err != nil {
		return nil, err
	}
	bcacheDevices, err := dm.DiskManager.FindBcacheDevices()
	if err != nil {
		return nil, err
	}

	status := &Status{BackingDevice: dm.Config.BackingDevice}
	for _, d := range zramDevices {
		status.Zram = append(status.Zram, dm.deviceStatus(d, zramStatusAttrs))
	}
	for _, d := range bcacheDevices {
		status.Bcache = append(status.Bcache, dm.deviceStatus(d, bcacheStatusAttrs))
	}

	if status.BackingAttached, err = dm.BcacheManager.IsAttached(dm.Config.BackingDevice); err != nil {
		log.Warnf("check bcache of %s: %v", dm.Config.BackingDevice, err)
	}
	if dm.Inventory != nil {
		if status.BackingDisk, err = dm.Inventory(filepath.Base(dm.Config.BackingDevice)); err != nil {
			log.Debugf("no inventory for %s: %v", dm.Config.BackingDevice, err)
		}
	}
	return status, nil
}

func (dm *DeviceManager) deviceStatus(devPath string, attrs []string) DeviceStatus {
	name := filepath.Base(devPath)
	ds := DeviceStatus{
		Path:       devPath,
		Attributes: map[string]string{},
	}

	isBlock, err := device.IsBlockDevice(devPath)
	if err != nil {
		log.Debugf("stat %s: %v", devPath, err)
	}
	ds.BlockDevice = isBlock

	for _, attr := range attrs {
		content, err := dm.Sysfs.Read(filepath.Join(dm.Config.Paths.SysBlockDir, name, attr))
		if err != nil {
			continue
		}
		ds.Attributes[attr] = strings.TrimSpace(string(content))
	}

	if ds.Stats, err = dm.DeviceStats(name); err != nil {
		log.Debugf("stats of %s: %v", name, err)
	}
	return ds
}

// CacheDevices names of all zram and bcache devices, for the stats collector
func (dm *DeviceManager) CacheDevices() ([]string, error) {
	zramDevices, err := dm.DiskManager.FindZramDevices()
	if err != nil {
		return nil, err
	}
	bcacheDevices, err := dm.DiskManager.FindBcacheDevices()
	if err != nil {
		return nil, err
	}
	names := []string{}
	for _, d := range append(zramDevices.Paths(), bcacheDevices.Paths()...) {
		names = append(names, filepath.Base(d))
	}
	return names, nil
}

func (dm *DeviceManager) DeviceStats(name string) (*types.DeviceStats, error) {
	return device.DeviceStats(dm.Config.Paths.ProcDir, dm.Config.Paths.SysBlockDir, name)
}
