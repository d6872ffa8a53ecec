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

package bcache

import "github.com/carina-io/zbcache/pkg/devicemanager/types"

type Bcache interface {
	// MakeBcache formats the cache/backing pair with make-bcache
	MakeBcache(param types.MakeBcacheParam) error
	// IsAttached reports whether the backing device currently has a bcache binding
	IsAttached(backingDev string) (bool, error)
	// DetachBacking stops an existing binding, returns true when a stop was issued
	DetachBacking(backingDev string) (bool, error)
	// Tune applies sequential_cutoff and cache_mode to the bcache device
	Tune(bcacheDev string, param types.MakeBcacheParam) error
	// RegisterDevice writes the cache device to the global register file
	RegisterDevice(cacheDev string) error
	ShowDevice(dev string) (*types.BcacheDeviceInfo, error)
}
