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
	"fmt"

	"github.com/carina-io/zbcache/pkg/devicemanager/types"
	"github.com/carina-io/zbcache/utils/log"
	"k8s.io/apimachinery/pkg/util/sets"
)

// ResolveCreated picks the bcache device make-bcache just created from the device
// snapshots taken before and after the call.
//
// The entries of after that already existed before form the overlap. The candidate is
// the only entry of after, or failing that the only entry of before. The overlap must
// hold at most one entry and a candidate must exist; the result is the first element of
// overlap followed by candidate. When a single old device survives next to a new one the
// old device is returned and a warning is logged.
func ResolveCreated(before, after types.DeviceSnapshot) (string, error) {
	known := sets.New[string](before...)
	overlap := []string{}
	for _, d := range after {
		if known.Has(d) {
			overlap = append(overlap, d)
		}
	}

	candidate := ""
	if after.Len() == 1 {
		candidate = after[0]
	} else if before.Len() == 1 {
		candidate = before[0]
	}

	log.Infof("BCACHEDEV=%v BCACHEDEV_DIFF=%v", after.Paths(), overlap)
	if len(overlap) > 1 || candidate == "" {
		return "", types.NewFatal("resolve created bcache device", "",
			fmt.Errorf("%w: before=%v after=%v", types.ErrAmbiguousDevice, before.Paths(), after.Paths()))
	}

	resolved := append(overlap, candidate)[0]
	if before.Contains(resolved) {
		log.Warnf("resolved bcache device %s already existed before make-bcache", resolved)
	}
	return resolved, nil
}
