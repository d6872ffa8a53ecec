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

package types

// Attribute is one sysfs control file name and the value written to it
type Attribute struct {
	Name  string
	Value string
}

// DeviceSnapshot device paths matching a prefix at one instant, in directory order.
// A snapshot is never modified after it is taken; use the accessors instead of indexing
// into a shared slice.
type DeviceSnapshot []string

func NewDeviceSnapshot(paths ...string) DeviceSnapshot {
	s := make(DeviceSnapshot, len(paths))
	copy(s, paths)
	return s
}

func (s DeviceSnapshot) Len() int {
	return len(s)
}

func (s DeviceSnapshot) Contains(path string) bool {
	for _, p := range s {
		if p == path {
			return true
		}
	}
	return false
}

// Paths returns a copy of the entries
func (s DeviceSnapshot) Paths() []string {
	out := make([]string, len(s))
	copy(out, s)
	return out
}

// DeviceStats IO counters from /sys/block/<dev>/stat
type DeviceStats struct {
	Name         string `json:"name"`
	ReadIOs      uint64 `json:"read_ios"`
	ReadSectors  uint64 `json:"read_sectors"`
	WriteIOs     uint64 `json:"write_ios"`
	WriteSectors uint64 `json:"write_sectors"`
	InFlight     uint64 `json:"in_flight"`
}

// DiskInfo hardware inventory of the disk behind a backing device
type DiskInfo struct {
	Name               string `json:"name"`
	Model              string `json:"model"`
	Vendor             string `json:"vendor"`
	SizeBytes          uint64 `json:"size_bytes"`
	Partition          string `json:"partition,omitempty"`
	PartitionSizeBytes uint64 `json:"partition_size_bytes,omitempty"`
	MountPoint         string `json:"mount_point,omitempty"`
}
