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

	"github.com/carina-io/zbcache/pkg/devicemanager/types"
	"github.com/jaypipes/ghw"
)

// DiskInventory looks up the disk that is, or holds the partition, name
func DiskInventory(name string) (*types.DiskInfo, error) {
	info, err := ghw.Block()
	if err != nil {
		return nil, fmt.Errorf("failed to get block devices: %w", err)
	}
	return findDisk(info, name)
}

func findDisk(info *ghw.BlockInfo, name string) (*types.DiskInfo, error) {
	for _, d := range info.Disks {
		disk := &types.DiskInfo{
			Name:      d.Name,
			Model:     d.Model,
			Vendor:    d.Vendor,
			SizeBytes: d.SizeBytes,
		}
		if d.Name == name {
			return disk, nil
		}
		for _, p := range d.Partitions {
			if p.Name == name {
				disk.Partition = p.Name
				disk.PartitionSizeBytes = p.SizeBytes
				disk.MountPoint = p.MountPoint
				return disk, nil
			}
		}
	}
	return nil, fmt.Errorf("disk %s not found", name)
}
