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
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/carina-io/zbcache/pkg/configuration"
	"github.com/carina-io/zbcache/pkg/devicemanager/bcache"
	"github.com/carina-io/zbcache/pkg/devicemanager/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"k8s.io/mount-utils"
	testingclock "k8s.io/utils/clock/testing"
)

// kernelClock steps fake time whenever the settler waits, kernel work queued in
// pending becomes visible at that moment
type kernelClock struct {
	*testingclock.FakeClock
	pending []func()
}

func (c *kernelClock) After(d time.Duration) <-chan time.Time {
	for _, fn := range c.pending {
		fn()
	}
	c.pending = nil
	ch := c.FakeClock.After(d)
	c.Step(d)
	return ch
}

// fakeMakeBcache creates the device nodes make-bcache would leave behind
type fakeMakeBcache struct {
	devDir      string
	sysBlockDir string
	// backingDir bcache control dir of the backing device, appears with the new device
	backingDir string
	create     string
	// delayed leaves the result invisible until the next settle wait
	delayed bool
	clock   *kernelClock
	calls   [][]string
}

func (f *fakeMakeBcache) ExecuteCommandWithOutput(command string, arg ...string) (string, error) {
	return "", nil
}

func (f *fakeMakeBcache) ExecuteCommandRelay(stdout, stderr io.Writer, command string, arg ...string) error {
	f.calls = append(f.calls, append([]string{command}, arg...))
	if f.create == "" {
		return nil
	}
	if f.delayed {
		f.clock.pending = append(f.clock.pending, func() { _ = f.pair() })
		return nil
	}
	return f.pair()
}

func (f *fakeMakeBcache) pair() error {
	if err := os.WriteFile(filepath.Join(f.devDir, f.create), nil, 0644); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Join(f.sysBlockDir, f.create, types.BcacheControlDir), 0755); err != nil {
		return err
	}
	if f.backingDir == "" {
		return nil
	}
	return os.MkdirAll(f.backingDir, 0755)
}

type testEnv struct {
	root     string
	cfg      *configuration.Config
	executor *fakeMakeBcache
	clock    *kernelClock
}

func newTestEnv(t *testing.T) *testEnv {
	root := t.TempDir()
	cfg, err := configuration.Load(configuration.New(), "")
	require.NoError(t, err)
	cfg.Paths.DevDir = filepath.Join(root, "dev")
	cfg.Paths.SysBlockDir = filepath.Join(root, "sys", "block")
	cfg.Paths.ProcDir = filepath.Join(root, "proc")
	cfg.Paths.ZramHotAdd = filepath.Join(root, "sys", "class", "zram-control", "hot_add")
	cfg.Paths.BcacheRegister = filepath.Join(root, "sys", "fs", "bcache", "register")
	cfg.Settle.Watch = false

	for _, dir := range []string{
		cfg.Paths.DevDir,
		filepath.Join(cfg.Paths.SysBlockDir, "sda", "sda7"),
		filepath.Join(cfg.Paths.SysBlockDir, "zram1"),
		filepath.Dir(cfg.Paths.ZramHotAdd),
		filepath.Dir(cfg.Paths.BcacheRegister),
	} {
		require.NoError(t, os.MkdirAll(dir, 0755))
	}
	clk := &kernelClock{FakeClock: testingclock.NewFakeClock(time.Now())}
	return &testEnv{
		root: root,
		cfg:  cfg,
		executor: &fakeMakeBcache{
			devDir:      cfg.Paths.DevDir,
			sysBlockDir: cfg.Paths.SysBlockDir,
			backingDir:  filepath.Join(cfg.Paths.SysBlockDir, "sda", "sda7", types.BcacheControlDir),
			create:      "bcache0",
			clock:       clk,
		},
		clock: clk,
	}
}

func (e *testEnv) touch(t *testing.T, path, content string) {
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func (e *testEnv) read(t *testing.T, path string) string {
	content, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(content)
}

func (e *testEnv) dev(name string) string {
	return filepath.Join(e.cfg.Paths.DevDir, name)
}

func (e *testEnv) sys(elem ...string) string {
	return filepath.Join(append([]string{e.cfg.Paths.SysBlockDir}, elem...)...)
}

func (e *testEnv) manager(mountPoints ...mount.MountPoint) *DeviceManager {
	dm := NewDeviceManager(e.cfg)
	bi := dm.BcacheManager.(*bcache.BcacheImplement)
	bi.Executor = e.executor
	bi.Stdout = io.Discard
	bi.Stderr = io.Discard
	dm.Executor = e.executor
	dm.Settler.Clock = e.clock
	dm.Mounter = mount.NewFakeMounter(mountPoints)
	dm.Inventory = nil
	return dm
}

func TestRunPreselectedCache(t *testing.T) {
	env := newTestEnv(t)
	dm := env.manager()

	report, err := dm.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 0, report.ZramDevices.Len())
	assert.Equal(t, 0, report.BcacheDevices.Len())
	assert.False(t, report.Detached)
	assert.Equal(t, "/dev/zram1", report.CacheDevice)
	assert.Equal(t, env.dev("bcache0"), report.BcacheDevice)
	assert.Empty(t, report.Warnings)

	assert.Equal(t, "zstd", env.read(t, env.sys("zram1", "comp_algorithm")))
	assert.Equal(t, "3G", env.read(t, env.sys("zram1", "mem_limit")))
	assert.Equal(t, "3G", env.read(t, env.sys("zram1", "disksize")))

	require.Len(t, env.executor.calls, 1)
	assert.Equal(t, []string{"make-bcache", "--wipe-bcache", "--block", "4k", "--bucket", "2M",
		"-C", "/dev/zram1", "-B", "/dev/sda7"}, env.executor.calls[0])

	assert.Equal(t, "writeback", env.read(t, env.sys("bcache0", "bcache", "cache_mode")))
	assert.Equal(t, "5M", env.read(t, env.sys("bcache0", "bcache", "sequential_cutoff")))
	assert.Equal(t, "/dev/zram1", env.read(t, env.cfg.Paths.BcacheRegister))
}

func TestRunHotAddsZram(t *testing.T) {
	env := newTestEnv(t)
	env.cfg.CacheDevice = ""
	env.touch(t, env.cfg.Paths.ZramHotAdd, "2\n")
	require.NoError(t, os.MkdirAll(env.sys("zram2"), 0755))
	dm := env.manager()

	report, err := dm.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, env.dev("zram2"), report.CacheDevice)
	assert.Equal(t, "zstd", env.read(t, env.sys("zram2", "comp_algorithm")))
	assert.Contains(t, env.executor.calls[0], env.dev("zram2"))
	// a freshly added device is not registered
	assert.NoFileExists(t, env.cfg.Paths.BcacheRegister)
}

func TestRunZramUnavailable(t *testing.T) {
	env := newTestEnv(t)
	env.cfg.CacheDevice = ""
	dm := env.manager()

	_, err := dm.Run(context.Background())
	require.Error(t, err)
	assert.True(t, types.IsFatal(err))
	assert.Empty(t, env.executor.calls)
}

func TestRunDetachesBacking(t *testing.T) {
	env := newTestEnv(t)
	require.NoError(t, os.MkdirAll(env.sys("sda", "sda7", "bcache"), 0755))
	dm := env.manager()

	report, err := dm.Run(context.Background())
	require.NoError(t, err)

	assert.True(t, report.Detached)
	assert.Equal(t, "1", env.read(t, env.sys("sda", "sda7", "bcache", "stop")))
	// the fake kernel never removes the bcache directory
	require.Len(t, report.Warnings, 1)
	assert.True(t, errors.Is(report.Warnings[0], types.ErrSettleTimeout))
	assert.Equal(t, env.dev("bcache0"), report.BcacheDevice)
}

func TestRunDetachThenReuse(t *testing.T) {
	env := newTestEnv(t)
	env.touch(t, env.dev("bcache0"), "")
	require.NoError(t, os.MkdirAll(env.sys("bcache0", "bcache"), 0755))
	require.NoError(t, os.MkdirAll(env.sys("sda", "sda7", "bcache"), 0755))
	// the stop takes effect while the settler waits
	env.clock.pending = append(env.clock.pending, func() {
		_ = os.RemoveAll(env.sys("sda", "sda7", "bcache"))
		_ = os.RemoveAll(env.sys("bcache0"))
		_ = os.Remove(env.dev("bcache0"))
	})
	env.executor.delayed = true
	dm := env.manager()

	start := env.clock.Now()
	report, err := dm.Run(context.Background())
	require.NoError(t, err)

	// one poll interval for the stop, one more for make-bcache
	assert.Equal(t, 200*time.Millisecond, env.clock.Since(start))
	assert.True(t, report.Detached)
	assert.Empty(t, report.Warnings)
	assert.Equal(t, env.dev("bcache0"), report.BcacheDevice)
	assert.Empty(t, env.clock.pending)
	assert.Equal(t, "writeback", env.read(t, env.sys("bcache0", "bcache", "cache_mode")))
	assert.Equal(t, "5M", env.read(t, env.sys("bcache0", "bcache", "sequential_cutoff")))
}

func TestRunWaitsForNewDeviceOnOtherBacking(t *testing.T) {
	env := newTestEnv(t)
	env.cfg.BackingDevice = "/dev/nvme0n1p2"
	env.executor.backingDir = ""
	env.executor.delayed = true
	dm := env.manager()

	start := env.clock.Now()
	report, err := dm.Run(context.Background())
	require.NoError(t, err)

	assert.Empty(t, report.Warnings)
	assert.Equal(t, env.dev("bcache0"), report.BcacheDevice)
	assert.Equal(t, 100*time.Millisecond, env.clock.Since(start))
	assert.Equal(t, "writeback", env.read(t, env.sys("bcache0", "bcache", "cache_mode")))
}

func TestRunAmbiguousDevice(t *testing.T) {
	env := newTestEnv(t)
	env.touch(t, env.dev("bcache0"), "")
	env.touch(t, env.dev("bcache1"), "")
	env.executor.create = "bcache2"
	dm := env.manager()

	report, err := dm.Run(context.Background())
	require.Error(t, err)
	assert.True(t, types.IsFatal(err))
	assert.True(t, errors.Is(err, types.ErrAmbiguousDevice))
	assert.Equal(t, 2, report.BcacheDevices.Len())
	assert.NoFileExists(t, env.cfg.Paths.BcacheRegister)
}

func TestRunMountedBackingWarns(t *testing.T) {
	env := newTestEnv(t)
	dm := env.manager(mount.MountPoint{Device: "/dev/sda7", Path: "/data", Type: "ext4"})

	report, err := dm.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, report.Warnings, 1)
	assert.True(t, types.IsDegraded(report.Warnings[0]))
	assert.Contains(t, report.Warnings[0].Error(), "/data")
}

func TestRunTuneFailureIsWarning(t *testing.T) {
	env := newTestEnv(t)
	// make-bcache runs but no control directory shows up for the new device
	env.executor.create = ""
	env.touch(t, env.dev("bcache0"), "")
	dm := env.manager()

	report, err := dm.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, env.dev("bcache0"), report.BcacheDevice)
	// settle timeout plus both tuning writes
	assert.Len(t, report.Warnings, 3)
	for _, w := range report.Warnings {
		assert.True(t, types.IsDegraded(w))
	}
	assert.Equal(t, "/dev/zram1", env.read(t, env.cfg.Paths.BcacheRegister))
}

func TestRunDryRun(t *testing.T) {
	env := newTestEnv(t)
	env.cfg.DryRun = true
	require.NoError(t, os.MkdirAll(env.sys("sda", "sda7", "bcache"), 0755))
	dm := env.manager()

	report, err := dm.Run(context.Background())
	require.NoError(t, err)
	assert.Empty(t, env.executor.calls)
	assert.Equal(t, env.dev("bcache0"), report.BcacheDevice)
	assert.Empty(t, report.Warnings)
	assert.NoFileExists(t, env.sys("zram1", "comp_algorithm"))
	assert.NoFileExists(t, env.sys("sda", "sda7", "bcache", "stop"))
	assert.NoFileExists(t, env.cfg.Paths.BcacheRegister)
}

func TestRunCanceled(t *testing.T) {
	env := newTestEnv(t)
	require.NoError(t, os.MkdirAll(env.sys("sda", "sda7", "bcache"), 0755))
	dm := env.manager()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := dm.Run(ctx)
	require.Error(t, err)
	assert.True(t, types.IsFatal(err))
	assert.Empty(t, env.executor.calls)
}

func TestStatus(t *testing.T) {
	env := newTestEnv(t)
	env.touch(t, env.dev("zram0"), "")
	env.touch(t, env.dev("bcache0"), "")
	require.NoError(t, os.MkdirAll(env.dev("bcache"), 0755))
	env.touch(t, env.sys("zram0", "comp_algorithm"), "lzo [zstd]\n")
	env.touch(t, env.sys("zram0", "disksize"), "3221225472\n")
	env.touch(t, env.sys("bcache0", "bcache", "state"), "clean\n")
	env.touch(t, env.sys("bcache0", "bcache", "cache_mode"), "writethrough [writeback] writearound none\n")
	require.NoError(t, os.MkdirAll(env.sys("sda", "sda7", "bcache"), 0755))

	dm := env.manager()
	dm.Inventory = func(name string) (*types.DiskInfo, error) {
		return &types.DiskInfo{Name: "sda", Partition: name}, nil
	}

	status, err := dm.Status()
	require.NoError(t, err)
	require.Len(t, status.Zram, 1)
	require.Len(t, status.Bcache, 1)

	zram0 := status.Zram[0]
	assert.Equal(t, env.dev("zram0"), zram0.Path)
	assert.False(t, zram0.BlockDevice)
	assert.Equal(t, "lzo [zstd]", zram0.Attributes["comp_algorithm"])
	assert.Equal(t, "3221225472", zram0.Attributes["disksize"])
	assert.NotContains(t, zram0.Attributes, "mem_limit")
	assert.Nil(t, zram0.Stats)

	bcache0 := status.Bcache[0]
	assert.Equal(t, "clean", bcache0.Attributes["bcache/state"])
	assert.Equal(t, "writethrough [writeback] writearound none", bcache0.Attributes["bcache/cache_mode"])

	assert.Equal(t, "/dev/sda7", status.BackingDevice)
	assert.True(t, status.BackingAttached)
	require.NotNil(t, status.BackingDisk)
	assert.Equal(t, "sda7", status.BackingDisk.Partition)
}

func TestCacheDevices(t *testing.T) {
	env := newTestEnv(t)
	env.touch(t, env.dev("zram0"), "")
	env.touch(t, env.dev("bcache0"), "")
	env.touch(t, env.dev("sda"), "")

	names, err := env.manager().CacheDevices()
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"zram0", "bcache0"}, names)
}
