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

import (
	"strings"

	"github.com/carina-io/zbcache/pkg/devicemanager/types"
	"github.com/carina-io/zbcache/utils/log"
)

/*
sb.magic		ok
sb.first_sector		8 [match]
sb.csum			712A837772AEBF62 [match]
sb.version		1 [backing device]

dev.label		(empty)
dev.uuid		f1fdcdb6-9661-49e9-92f1-b8f076bb7145
dev.sectors_per_block	1
dev.sectors_per_bucket	1024
dev.data.first_sector	16
dev.data.cache_mode	0 [writethrough]
dev.data.cache_state	1 [clean]

cset.uuid		2b4e7d83-19b4-4703-b31f-7b7ff54d7d6e
*/

func parseBcache(bcacheInfo string) *types.BcacheDeviceInfo {
	resp := &types.BcacheDeviceInfo{}
	fields := map[string]*string{
		"sb.magic":               &resp.Magic,
		"sb.first_sector":        &resp.FirstSector,
		"sb.csum":                &resp.Csum,
		"sb.version":             &resp.Version,
		"dev.label":              &resp.Label,
		"dev.uuid":               &resp.Uuid,
		"dev.sectors_per_block":  &resp.SectorsPerBlock,
		"dev.sectors_per_bucket": &resp.SectorsPerBucket,
		"dev.data.first_sector":  &resp.DataFirstSector,
		"dev.data.cache_mode":    &resp.DataCacheMode,
		"dev.data.cache_state":   &resp.DataCacheState,
		"cset.uuid":              &resp.CsetUuid,
	}

	for _, line := range strings.Split(bcacheInfo, "\n") {
		key, value, found := strings.Cut(line, "\t")
		if !found {
			continue
		}
		value = strings.TrimSpace(value)
		if f, ok := fields[key]; ok {
			*f = value
			continue
		}
		// cache devices report dev.cache.* keys as well
		log.Debugf("undefined field %s=%s", key, value)
	}
	return resp
}
