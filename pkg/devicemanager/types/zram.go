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

// ZramDeviceParam desired configuration of one zram device
type ZramDeviceParam struct {
	DevPath       string `json:"dev_path"`
	MemLimit      string `json:"mem_limit"`
	DiskSize      string `json:"disk_size"`
	CompAlgorithm string `json:"comp_algorithm"`
}

// SysfsMapper the compression algorithm has to be set before disksize, the kernel
// refuses to change it once the device is initialized.
func (p ZramDeviceParam) SysfsMapper() []Attribute {
	return []Attribute{
		{Name: AttrCompAlgorithm, Value: p.CompAlgorithm},
		{Name: AttrMemLimit, Value: p.MemLimit},
		{Name: AttrDiskSize, Value: p.DiskSize},
	}
}
