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

package zram

import (
	"fmt"
	"path/filepath"
	"strconv"

	"github.com/carina-io/zbcache"
	"github.com/carina-io/zbcache/pkg/devicemanager/sysfs"
	"github.com/carina-io/zbcache/pkg/devicemanager/types"
	"github.com/carina-io/zbcache/utils"
	"github.com/carina-io/zbcache/utils/log"
)

type Zram interface {
	// Acquire hot-adds a new zram device and returns its device path
	Acquire() (string, error)
	// Configure applies comp_algorithm, mem_limit and disksize
	Configure(param types.ZramDeviceParam) error
}

type ZramImplement struct {
	DevDir      string
	SysBlockDir string
	HotAddPath  string
	Sysfs       *sysfs.Writer
}

func (z *ZramImplement) Acquire() (string, error) {
	if z.Sysfs.DryRun {
		devPath := z.nextFreeDevice()
		log.Infof("[dry-run] read %s to hot-add a zram device, assuming %s", z.HotAddPath, devPath)
		return devPath, nil
	}

	content, err := z.Sysfs.Read(z.HotAddPath)
	if err != nil {
		return "", types.NewFatal("add zram device", z.HotAddPath, err)
	}
	devnr, err := parseDeviceNumber(content)
	if err != nil {
		return "", types.NewFatal("add zram device", z.HotAddPath, err)
	}
	devPath := filepath.Join(z.DevDir, fmt.Sprintf("%s%d", zbcache.ZramPrefix, devnr))
	log.Infof("hot-added zram device %s", devPath)
	return devPath, nil
}

// parseDeviceNumber the kernel terminates the number with a newline, the last byte is
// dropped unconditionally
func parseDeviceNumber(content []byte) (uint32, error) {
	if len(content) == 0 {
		return 0, fmt.Errorf("%w: empty", types.ErrInvalidDeviceNumber)
	}
	s := string(content[:len(content)-1])
	devnr, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", types.ErrInvalidDeviceNumber, s)
	}
	return uint32(devnr), nil
}

// nextFreeDevice the kernel hands out the lowest unused id
func (z *ZramImplement) nextFreeDevice() string {
	for i := 0; ; i++ {
		name := fmt.Sprintf("%s%d", zbcache.ZramPrefix, i)
		if !utils.FileExists(filepath.Join(z.SysBlockDir, name)) {
			return filepath.Join(z.DevDir, name)
		}
	}
}

func (z *ZramImplement) Configure(param types.ZramDeviceParam) error {
	blk := filepath.Join(z.SysBlockDir, filepath.Base(param.DevPath))
	log.Infof("setup zram %s: comp_algorithm=%s mem_limit=%s disksize=%s",
		param.DevPath, param.CompAlgorithm, param.MemLimit, param.DiskSize)
	return z.Sysfs.Apply(blk, param.SysfsMapper())
}
