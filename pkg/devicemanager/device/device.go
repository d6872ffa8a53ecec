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
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/carina-io/zbcache"
	"github.com/carina-io/zbcache/pkg/devicemanager/types"
	"github.com/carina-io/zbcache/utils/log"
)

type LocalDevice interface {
	// FindDevices lists the entries of the device directory whose full path starts with prefix
	FindDevices(prefix string) (types.DeviceSnapshot, error)
	FindZramDevices() (types.DeviceSnapshot, error)
	// FindBcacheDevices skips the <dev>/bcache directory itself
	FindBcacheDevices() (types.DeviceSnapshot, error)
}

type LocalDeviceImplement struct {
	DevDir string
}

func (ld *LocalDeviceImplement) FindDevices(prefix string) (types.DeviceSnapshot, error) {
	dir, err := os.Open(ld.DevDir)
	if err != nil {
		return nil, types.NewFatal("list devices", ld.DevDir, err)
	}
	defer dir.Close()

	paths := []string{}
	for {
		names, err := dir.Readdirnames(64)
		for _, name := range names {
			path := filepath.Join(ld.DevDir, name)
			if strings.HasPrefix(path, prefix) {
				paths = append(paths, path)
			}
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			// keep what could be read, a vanished entry is not worth failing discovery
			log.Debugf("stop listing %s early: %v", ld.DevDir, err)
			break
		}
	}
	return types.NewDeviceSnapshot(paths...), nil
}

func (ld *LocalDeviceImplement) FindZramDevices() (types.DeviceSnapshot, error) {
	return ld.FindDevices(filepath.Join(ld.DevDir, zbcache.ZramPrefix))
}

func (ld *LocalDeviceImplement) FindBcacheDevices() (types.DeviceSnapshot, error) {
	bcacheDir := filepath.Join(ld.DevDir, zbcache.BcachePrefix)
	devices, err := ld.FindDevices(bcacheDir)
	if err != nil {
		return nil, err
	}
	paths := []string{}
	for _, d := range devices {
		if d != bcacheDir {
			paths = append(paths, d)
		}
	}
	return types.NewDeviceSnapshot(paths...), nil
}
