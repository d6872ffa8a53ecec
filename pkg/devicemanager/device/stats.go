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

package device

import (
	"fmt"
	"path/filepath"

	"github.com/carina-io/zbcache/pkg/devicemanager/types"
	"github.com/prometheus/procfs/blockdevice"
)

// DeviceStats reads /sys/block/<name>/stat through procfs.
// sysBlockDir is the block directory, its parent is taken as the sysfs mount point.
func DeviceStats(procDir, sysBlockDir, name string) (*types.DeviceStats, error) {
	fs, err := blockdevice.NewFS(procDir, filepath.Dir(sysBlockDir))
	if err != nil {
		return nil, fmt.Errorf("open block device stats: %w", err)
	}
	stats, _, err := fs.SysBlockDeviceStat(name)
	if err != nil {
		return nil, fmt.Errorf("read stats of %s: %w", name, err)
	}
	return &types.DeviceStats{
		Name:         name,
		ReadIOs:      stats.ReadIOs,
		ReadSectors:  stats.ReadSectors,
		WriteIOs:     stats.WriteIOs,
		WriteSectors: stats.WriteSectors,
		InFlight:     stats.IOsInProgress,
	}, nil
}
