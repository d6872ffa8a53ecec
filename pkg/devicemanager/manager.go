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

package devicemanager

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/carina-io/zbcache"
	"github.com/carina-io/zbcache/pkg/configuration"
	"github.com/carina-io/zbcache/pkg/devicemanager/bcache"
	"github.com/carina-io/zbcache/pkg/devicemanager/device"
	"github.com/carina-io/zbcache/pkg/devicemanager/settle"
	"github.com/carina-io/zbcache/pkg/devicemanager/sysfs"
	"github.com/carina-io/zbcache/pkg/devicemanager/types"
	"github.com/carina-io/zbcache/pkg/devicemanager/zram"
	"github.com/carina-io/zbcache/pkg/metrics"
	"github.com/carina-io/zbcache/utils"
	"github.com/carina-io/zbcache/utils/exec"
	"github.com/carina-io/zbcache/utils/log"
	"go.uber.org/multierr"
	"k8s.io/mount-utils"
)

// setup steps, also used as metric labels
const (
	StepEnumerate      = "enumerate"
	StepPreflight      = "preflight"
	StepDetach         = "detach"
	StepSettleDetach   = "settle_detach"
	StepZram           = "zram"
	StepMakeBcache     = "make_bcache"
	StepSettleCreation = "settle_make_bcache"
	StepResolve        = "resolve"
	StepTune           = "tune"
	StepRegister       = "register"
)

type DeviceManager struct {
	Config *configuration.Config
	// The implementation of executing a console command
	Executor exec.Executor
	Sysfs    *sysfs.Writer
	// 设备枚举
	DiskManager device.LocalDevice
	// zram 操作
	ZramManager zram.Zram
	// bcache 操作
	BcacheManager bcache.Bcache
	Settler       *settle.Settler
	Mounter       mount.Interface
	Metrics       *metrics.RunMetrics
	// Inventory looks up the disk behind the backing device, ghw by default
	Inventory func(name string) (*types.DiskInfo, error)
}

// Report what a setup run found and did
type Report struct {
	ZramDevices   types.DeviceSnapshot
	BcacheDevices types.DeviceSnapshot
	Detached      bool
	CacheDevice   string
	BcacheDevice  string
	// Warnings degraded errors in the order they occurred
	Warnings []error
}

func NewDeviceManager(cfg *configuration.Config) *DeviceManager {
	executor := &exec.CommandExecutor{}
	writer := &sysfs.Writer{DryRun: cfg.DryRun}
	watchDir := ""
	if cfg.Settle.Watch {
		watchDir = cfg.Paths.DevDir
	}
	dm := DeviceManager{
		Config:      cfg,
		Executor:    executor,
		Sysfs:       writer,
		DiskManager: &device.LocalDeviceImplement{DevDir: cfg.Paths.DevDir},
		ZramManager: &zram.ZramImplement{
			DevDir:      cfg.Paths.DevDir,
			SysBlockDir: cfg.Paths.SysBlockDir,
			HotAddPath:  cfg.Paths.ZramHotAdd,
			Sysfs:       writer,
		},
		BcacheManager: &bcache.BcacheImplement{
			Executor:      executor,
			Sysfs:         writer,
			SysBlockDir:   cfg.Paths.SysBlockDir,
			RegisterPath:  cfg.Paths.BcacheRegister,
			DiskPrefix:    cfg.Paths.DiskPrefix,
			MakeBcacheCmd: cfg.Paths.MakeBcache,
			SuperShowCmd:  cfg.Paths.BcacheSuperShow,
			Stdout:        os.Stdout,
			Stderr:        os.Stderr,
		},
		Settler: &settle.Settler{
			Delay:    cfg.Settle.Delay,
			Timeout:  cfg.Settle.Timeout,
			Interval: cfg.Settle.Interval,
			Factor:   cfg.Settle.Factor,
			WatchDir: watchDir,
		},
		Mounter:   mount.New(""),
		Metrics:   metrics.NewRunMetrics(),
		Inventory: device.DiskInventory,
	}
	return &dm
}

// Run performs the whole setup once: detach the backing device, prepare the zram cache,
// pair both with make-bcache, then tune and register the new bcache device.
// The first fatal error stops the run, degraded ones are collected in the report.
func (dm *DeviceManager) Run(ctx context.Context) (report *Report, err error) {
	cfg := dm.Config
	report = &Report{}
	defer func() {
		if dm.Metrics != nil {
			dm.Metrics.Finish(err == nil, time.Now())
		}
	}()

	err = dm.step(report, StepEnumerate, func() error {
		var err error
		if report.ZramDevices, err = dm.DiskManager.FindZramDevices(); err != nil {
			return err
		}
		if report.BcacheDevices, err = dm.DiskManager.FindBcacheDevices(); err != nil {
			return err
		}
		log.Infof("ZRAMDEV=%v BCACHEDEV=%v", report.ZramDevices.Paths(), report.BcacheDevices.Paths())
		return nil
	})
	if err != nil {
		return report, err
	}

	_ = dm.step(report, StepPreflight, func() error {
		return dm.checkBackingMounted(cfg.BackingDevice)
	})

	err = dm.step(report, StepDetach, func() error {
		var err error
		report.Detached, err = dm.BcacheManager.DetachBacking(cfg.BackingDevice)
		return err
	})
	if err != nil {
		return report, err
	}

	err = dm.step(report, StepSettleDetach, func() error {
		return dm.settle(ctx, "bcache stop on "+cfg.BackingDevice, func() bool {
			if !report.Detached {
				return true
			}
			attached, err := dm.BcacheManager.IsAttached(cfg.BackingDevice)
			return err == nil && !attached
		})
	})
	if err != nil {
		return report, err
	}

	err = dm.step(report, StepZram, func() error {
		report.CacheDevice = cfg.CacheDevice
		if report.CacheDevice == "" {
			var err error
			if report.CacheDevice, err = dm.ZramManager.Acquire(); err != nil {
				return err
			}
		}
		return dm.ZramManager.Configure(cfg.ZramParam(report.CacheDevice))
	})
	if err != nil {
		return report, err
	}

	param := cfg.BcacheParam(report.CacheDevice)
	err = dm.step(report, StepMakeBcache, func() error {
		return dm.BcacheManager.MakeBcache(param)
	})
	if err != nil {
		return report, err
	}

	err = dm.step(report, StepSettleCreation, func() error {
		return dm.settle(ctx, "bcache device creation", func() bool {
			return dm.pairingVisible(report.BcacheDevices)
		})
	})
	if err != nil {
		return report, err
	}

	err = dm.step(report, StepResolve, func() error {
		after, err := dm.DiskManager.FindBcacheDevices()
		if err != nil {
			return err
		}
		log.Infof("new bcache devices: %v", utils.SliceSubSlice(after.Paths(), report.BcacheDevices.Paths()))
		report.BcacheDevice, err = bcache.ResolveCreated(report.BcacheDevices, after)
		if err != nil && dm.Sysfs.DryRun {
			report.BcacheDevice = dm.nextBcacheDevice(report.BcacheDevices)
			log.Infof("[dry-run] make-bcache did not run, assuming %s", report.BcacheDevice)
			return nil
		}
		return err
	})
	if err != nil {
		return report, err
	}

	_ = dm.step(report, StepTune, func() error {
		return dm.BcacheManager.Tune(report.BcacheDevice, param)
	})

	if cfg.CacheDevice != "" {
		_ = dm.step(report, StepRegister, func() error {
			return dm.BcacheManager.RegisterDevice(cfg.CacheDevice)
		})
	}

	log.Infof("bcache device %s ready: cache=%s backing=%s warnings=%d",
		report.BcacheDevice, report.CacheDevice, cfg.BackingDevice, len(report.Warnings))
	return report, nil
}

// step times fn. Degraded errors are recorded as warnings and swallowed, anything
// else is returned.
func (dm *DeviceManager) step(report *Report, name string, fn func() error) error {
	begin := time.Now()
	err := fn()
	if dm.Metrics != nil {
		dm.Metrics.ObserveStep(name, time.Since(begin))
	}
	if err == nil {
		return nil
	}
	if types.IsFatal(err) {
		log.Errorf("%s failed: %v", name, err)
		return err
	}
	for _, e := range multierr.Errors(err) {
		report.Warnings = append(report.Warnings, e)
		if dm.Metrics != nil {
			dm.Metrics.Warning(name)
		}
	}
	return nil
}

// settle nothing changes in dry-run mode, so there is nothing to wait for
func (dm *DeviceManager) settle(ctx context.Context, what string, cond settle.Condition) error {
	if dm.Sysfs.DryRun {
		log.Infof("[dry-run] skip waiting for %s", what)
		return nil
	}
	return dm.Settler.Wait(ctx, what, cond)
}

// pairingVisible a disk-prefixed backing device shows the finished pairing as its bcache
// control dir. Other backing devices only show it as a bcache device not present before
// the run; the set alone is not enough since a detach may have removed one of them.
func (dm *DeviceManager) pairingVisible(before types.DeviceSnapshot) bool {
	backing := dm.Config.BackingDevice
	prefix := dm.Config.Paths.DiskPrefix
	if prefix != "" && strings.HasPrefix(filepath.Base(backing), prefix) {
		attached, err := dm.BcacheManager.IsAttached(backing)
		return err == nil && attached
	}
	current, err := dm.DiskManager.FindBcacheDevices()
	return err == nil && len(utils.SliceSubSlice(current.Paths(), before.Paths())) > 0
}

func (dm *DeviceManager) checkBackingMounted(backingDev string) error {
	mountPoints, err := dm.Mounter.List()
	if err != nil {
		return types.NewDegraded("list mounts", "", err)
	}
	for _, mp := range mountPoints {
		if mp.Device == backingDev {
			log.Warnf("backing device %s is mounted on %s, make-bcache will refuse or corrupt it", backingDev, mp.Path)
			return types.NewDegraded("check mounts", backingDev, fmt.Errorf("mounted on %s", mp.Path))
		}
	}
	return nil
}

// nextBcacheDevice the kernel names new bcache devices with the lowest free number
func (dm *DeviceManager) nextBcacheDevice(existing types.DeviceSnapshot) string {
	devDir := dm.Config.Paths.DevDir
	for i := 0; ; i++ {
		path := filepath.Join(devDir, fmt.Sprintf("%s%d", zbcache.BcachePrefix, i))
		if !existing.Contains(path) {
			return path
		}
	}
}
