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
	"io"
	"path/filepath"
	"strings"

	"github.com/carina-io/zbcache/pkg/devicemanager/sysfs"
	"github.com/carina-io/zbcache/pkg/devicemanager/types"
	"github.com/carina-io/zbcache/utils"
	"github.com/carina-io/zbcache/utils/exec"
	"github.com/carina-io/zbcache/utils/log"
)

type BcacheImplement struct {
	Executor     exec.Executor
	Sysfs        *sysfs.Writer
	SysBlockDir  string
	RegisterPath string
	// DiskPrefix backing devices outside this naming scheme are never detached
	DiskPrefix     string
	MakeBcacheCmd  string
	SuperShowCmd   string
	Stdout, Stderr io.Writer
}

func (bi *BcacheImplement) MakeBcache(param types.MakeBcacheParam) error {
	args := param.Args()
	if bi.Sysfs.DryRun {
		log.Infof("[dry-run] %s %s", bi.MakeBcacheCmd, strings.Join(args, " "))
		return nil
	}
	log.Infof("create bcache: %s %s", bi.MakeBcacheCmd, strings.Join(args, " "))
	err := bi.Executor.ExecuteCommandRelay(bi.Stdout, bi.Stderr, bi.MakeBcacheCmd, args...)
	if err == nil {
		return nil
	}
	// the created device is verified by diffing /dev afterwards, an unhappy exit alone
	// does not mean nothing was created
	if code, exited := exec.ExitStatus(err); exited {
		log.Warnf("%s exited with status %d", bi.MakeBcacheCmd, code)
		return nil
	}
	return types.NewFatal("exec", bi.MakeBcacheCmd, err)
}

// backingControlDir partitions live below their disk: /sys/block/sda/sda7/bcache.
// ok is false for devices outside the DiskPrefix naming scheme.
func (bi *BcacheImplement) backingControlDir(backingDev string) (dir string, ok bool, err error) {
	name := filepath.Base(backingDev)
	if !strings.HasPrefix(name, bi.DiskPrefix) {
		return "", false, nil
	}
	// prefix plus the disk letter, "sd" + "a"
	diskLen := len(bi.DiskPrefix) + 1
	if len(name) < diskLen {
		return "", false, types.NewFatal("detach bcache", backingDev, types.ErrInvalidDeviceName)
	}
	return filepath.Join(bi.SysBlockDir, name[:diskLen], name, types.BcacheControlDir), true, nil
}

func (bi *BcacheImplement) IsAttached(backingDev string) (bool, error) {
	dir, ok, err := bi.backingControlDir(backingDev)
	if err != nil || !ok {
		return false, err
	}
	return utils.DirListable(dir), nil
}

func (bi *BcacheImplement) DetachBacking(backingDev string) (bool, error) {
	dir, ok, err := bi.backingControlDir(backingDev)
	if err != nil {
		return false, err
	}
	if !ok {
		log.Debugf("backing device %s is not a %s* device, skip bcache check", backingDev, bi.DiskPrefix)
		return false, nil
	}
	if !utils.DirListable(dir) {
		log.Debugf("backing device %s has no active bcache", backingDev)
		return false, nil
	}

	stop := filepath.Join(dir, types.AttrStop)
	log.Infof("backing device %s has an active bcache, stopping it", backingDev)
	if err := bi.Sysfs.Write(stop, "1"); err != nil {
		return false, types.NewFatal("stop bcache on backing device", stop, err)
	}
	return true, nil
}

func (bi *BcacheImplement) Tune(bcacheDev string, param types.MakeBcacheParam) error {
	dir := filepath.Join(bi.SysBlockDir, filepath.Base(bcacheDev), types.BcacheControlDir)
	log.Infof("setup bcache %s: sequential_cutoff=%s cache_mode=%s", bcacheDev, param.SequentialCutoff, param.CacheMode)
	return bi.Sysfs.Apply(dir, param.SysfsMapper())
}

func (bi *BcacheImplement) RegisterDevice(cacheDev string) error {
	if err := bi.Sysfs.Write(bi.RegisterPath, cacheDev); err != nil {
		log.Warnf("failed to register cache device %s to bcache: %v", cacheDev, err)
		return types.NewDegraded("register cache device", bi.RegisterPath, err)
	}
	log.Infof("registered cache device %s", cacheDev)
	return nil
}

func (bi *BcacheImplement) ShowDevice(dev string) (*types.BcacheDeviceInfo, error) {
	bcacheInfo, err := bi.Executor.ExecuteCommandWithOutput(bi.SuperShowCmd, dev)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", bi.SuperShowCmd, dev, err)
	}
	info := parseBcache(bcacheInfo)
	info.DevicePath = dev
	return info, nil
}
