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
	"os"
	"path/filepath"
	"testing"

	"github.com/carina-io/zbcache/pkg/devicemanager/types"
	"github.com/jaypipes/ghw"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func touch(t *testing.T, paths ...string) {
	t.Helper()
	for _, p := range paths {
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0755))
		require.NoError(t, os.WriteFile(p, nil, 0644))
	}
}

func TestFindDevicesByPrefix(t *testing.T) {
	dev := t.TempDir()
	touch(t, filepath.Join(dev, "a1"), filepath.Join(dev, "b1"), filepath.Join(dev, "a2"))
	ld := &LocalDeviceImplement{DevDir: dev}

	devices, err := ld.FindDevices(filepath.Join(dev, "a"))
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{filepath.Join(dev, "a1"), filepath.Join(dev, "a2")}, devices.Paths())

	devices, err = ld.FindDevices(filepath.Join(dev, "c"))
	require.NoError(t, err)
	assert.Equal(t, 0, devices.Len())
}

func TestFindZramAndBcacheDevices(t *testing.T) {
	dev := t.TempDir()
	touch(t,
		filepath.Join(dev, "zram0"),
		filepath.Join(dev, "zram1"),
		filepath.Join(dev, "bcache0"),
		filepath.Join(dev, "sda7"),
	)
	// udev creates /dev/bcache/by-uuid, the directory is not a device
	require.NoError(t, os.MkdirAll(filepath.Join(dev, "bcache", "by-uuid"), 0755))
	ld := &LocalDeviceImplement{DevDir: dev}

	zram, err := ld.FindZramDevices()
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{filepath.Join(dev, "zram0"), filepath.Join(dev, "zram1")}, zram.Paths())

	bcache, err := ld.FindBcacheDevices()
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dev, "bcache0")}, bcache.Paths())
}

func TestFindDevicesMissingDir(t *testing.T) {
	ld := &LocalDeviceImplement{DevDir: filepath.Join(t.TempDir(), "dev")}

	_, err := ld.FindDevices("/dev/zram")
	require.Error(t, err)
	assert.True(t, types.IsFatal(err))
}

func TestIsBlockDevice(t *testing.T) {
	file := filepath.Join(t.TempDir(), "sda7")
	touch(t, file)

	ok, err := IsBlockDevice(file)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = IsBlockDevice(file + "-missing")
	assert.Error(t, err)
}

func TestDeviceStats(t *testing.T) {
	root := t.TempDir()
	proc := filepath.Join(root, "proc")
	sysBlock := filepath.Join(root, "sys", "block")
	require.NoError(t, os.MkdirAll(proc, 0755))
	require.NoError(t, os.MkdirAll(filepath.Join(sysBlock, "zram1"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(sysBlock, "zram1", "stat"),
		[]byte("120 0 960 4 340 0 2720 12 0 20 16 0 0 0 0 0 0\n"), 0644))

	stats, err := DeviceStats(proc, sysBlock, "zram1")
	require.NoError(t, err)
	assert.Equal(t, "zram1", stats.Name)
	assert.Equal(t, uint64(120), stats.ReadIOs)
	assert.Equal(t, uint64(960), stats.ReadSectors)
	assert.Equal(t, uint64(340), stats.WriteIOs)
	assert.Equal(t, uint64(2720), stats.WriteSectors)

	_, err = DeviceStats(proc, sysBlock, "bcache0")
	assert.Error(t, err)
}

func TestFindDisk(t *testing.T) {
	info := &ghw.BlockInfo{
		Disks: []*ghw.Disk{
			{
				Name:      "nvme0n1",
				Model:     "Samsung SSD 980",
				SizeBytes: 1000204886016,
			},
			{
				Name:      "sda",
				Model:     "ST2000DM008",
				Vendor:    "ATA",
				SizeBytes: 2000398934016,
				Partitions: []*ghw.Partition{
					{Name: "sda1", SizeBytes: 536870912, MountPoint: "/boot/efi"},
					{Name: "sda7", SizeBytes: 1073741824000},
				},
			},
		},
	}

	disk, err := findDisk(info, "sda7")
	require.NoError(t, err)
	assert.Equal(t, "sda", disk.Name)
	assert.Equal(t, "ST2000DM008", disk.Model)
	assert.Equal(t, "sda7", disk.Partition)
	assert.Equal(t, uint64(1073741824000), disk.PartitionSizeBytes)
	assert.Empty(t, disk.MountPoint)

	disk, err = findDisk(info, "nvme0n1")
	require.NoError(t, err)
	assert.Empty(t, disk.Partition)

	_, err = findDisk(info, "sdz1")
	assert.Error(t, err)
}
