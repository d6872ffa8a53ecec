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

import "github.com/carina-io/zbcache"

// BcacheDeviceInfo superblock fields reported by bcache-super-show
type BcacheDeviceInfo struct {
	DevicePath       string `json:"device_path"`
	Magic            string `json:"magic"`
	FirstSector      string `json:"first_sector"`
	Csum             string `json:"csum"`
	Label            string `json:"label"`
	Uuid             string `json:"uuid"`
	SectorsPerBlock  string `json:"sectors_per_block"`
	SectorsPerBucket string `json:"sectors_per_bucket"`
	DataFirstSector  string `json:"data_first_sector"`
	DataCacheMode    string `json:"data_cache_mode"`
	DataCacheState   string `json:"data_cache_state"`
	CsetUuid         string `json:"cset_uuid"`
	Version          string `json:"version"`
}

// MakeBcacheParam carries the make-bcache arguments and the tuning applied to the
// created device afterwards. It is passed by value so both uses see the same settings.
type MakeBcacheParam struct {
	CacheDev   string `json:"cache_dev"`
	BackingDev string `json:"backing_dev"`

	BucketSize       string `json:"bucket_size"`
	BlockSize        string `json:"block_size"`
	CacheMode        string `json:"cache_mode"`
	SequentialCutoff string `json:"sequential_cutoff"`
}

// NewMakeBcacheParam returns the defaults: 4k blocks, 2M buckets, 5M cutoff, writeback
func NewMakeBcacheParam() MakeBcacheParam {
	return MakeBcacheParam{
		BlockSize:        zbcache.DefaultBlockSize,
		BucketSize:       zbcache.DefaultBucketSize,
		SequentialCutoff: zbcache.DefaultSequentialCutoff,
		CacheMode:        zbcache.DefaultCacheMode,
	}
}

func (p MakeBcacheParam) SysfsMapper() []Attribute {
	return []Attribute{
		{Name: AttrSequentialCutoff, Value: p.SequentialCutoff},
		{Name: AttrCacheMode, Value: p.CacheMode},
	}
}

// Args command line of make-bcache
func (p MakeBcacheParam) Args() []string {
	return []string{
		"--wipe-bcache",
		"--block", p.BlockSize,
		"--bucket", p.BucketSize,
		"-C", p.CacheDev,
		"-B", p.BackingDev,
	}
}
