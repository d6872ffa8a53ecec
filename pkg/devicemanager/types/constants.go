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

const (
	AttrCompAlgorithm    = "comp_algorithm"
	AttrMemLimit         = "mem_limit"
	AttrDiskSize         = "disksize"
	AttrSequentialCutoff = "sequential_cutoff"
	AttrCacheMode        = "cache_mode"
	AttrStop             = "stop"
	AttrState            = "state"

	// BcacheControlDir subdirectory of a block device holding its bcache attributes
	BcacheControlDir = "bcache"
)

// CacheModes accepted by /sys/block/bcacheN/bcache/cache_mode
var CacheModes = []string{"writethrough", "writeback", "writearound", "none"}
