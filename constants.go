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

package zbcache

import "time"

const (
	// Version project
	Version = "beta"

	// ConfigPath directory searched for config.{yaml,json}
	ConfigPath = "/etc/zbcache/"
	// EnvPrefix environment variables overriding configuration, e.g. ZBCACHE_CACHE_MODE
	EnvPrefix = "ZBCACHE"

	// DefaultDevDir device nodes
	DefaultDevDir = "/dev"
	// DefaultSysBlockDir block device control directories
	DefaultSysBlockDir = "/sys/block"
	// DefaultProcDir is only used for procfs block device statistics
	DefaultProcDir = "/proc"
	// DefaultZramHotAdd reading this file allocates a new zram device and returns its number
	DefaultZramHotAdd = "/sys/class/zram-control/hot_add"
	// DefaultBcacheRegister global bcache registration control file
	DefaultBcacheRegister = "/sys/fs/bcache/register"
	// DefaultDiskPrefix partitions named like sda7 live under /sys/block/sda/sda7
	DefaultDiskPrefix = "sd"

	// MakeBcacheCmd formats a cache/backing device pair
	MakeBcacheCmd = "make-bcache"
	// BcacheSuperShowCmd dumps a bcache superblock
	BcacheSuperShowCmd = "bcache-super-show"

	ZramPrefix   = "zram"
	BcachePrefix = "bcache"

	// zram defaults
	DefaultMemLimit      = "3G"
	DefaultDiskSize      = "3G"
	DefaultCompAlgorithm = "zstd"

	// bcache defaults
	DefaultBackingDevice    = "/dev/sda7"
	DefaultCacheDevice      = "/dev/zram1"
	DefaultBlockSize        = "4k"
	DefaultBucketSize       = "2M"
	DefaultSequentialCutoff = "5M"
	DefaultCacheMode        = "writeback"

	// settle defaults
	DefaultSettleDelay    = 2 * time.Second
	DefaultSettleTimeout  = 10 * time.Second
	DefaultSettleInterval = 100 * time.Millisecond
	DefaultSettleFactor   = 2.0
)
