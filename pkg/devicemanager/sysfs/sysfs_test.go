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

package sysfs

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/carina-io/zbcache/pkg/devicemanager/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"
)

func TestApplyContinuesAfterFailure(t *testing.T) {
	dir := t.TempDir()
	// a directory in place of the attribute makes the write fail
	require.NoError(t, os.Mkdir(filepath.Join(dir, "k1"), 0755))

	w := &Writer{}
	err := w.Apply(dir, []types.Attribute{{Name: "k1", Value: "v1"}, {Name: "k2", Value: "v2"}})

	require.Error(t, err)
	assert.Len(t, multierr.Errors(err), 1)
	assert.True(t, types.IsDegraded(err))
	assert.False(t, types.IsFatal(err))
	assert.Contains(t, err.Error(), "write k1")

	content, err := os.ReadFile(filepath.Join(dir, "k2"))
	require.NoError(t, err)
	assert.Equal(t, "v2", string(content))
}

func TestApplyWritesInOrder(t *testing.T) {
	dir := t.TempDir()
	w := &Writer{}
	param := types.ZramDeviceParam{MemLimit: "3G", DiskSize: "3G", CompAlgorithm: "zstd"}

	require.NoError(t, w.Apply(dir, param.SysfsMapper()))
	for name, value := range map[string]string{"comp_algorithm": "zstd", "mem_limit": "3G", "disksize": "3G"} {
		content, err := w.Read(filepath.Join(dir, name))
		require.NoError(t, err)
		assert.Equal(t, value, string(content), name)
	}
}

func TestApplyAllFail(t *testing.T) {
	w := &Writer{}
	missing := filepath.Join(t.TempDir(), "bcache9", "bcache")

	err := w.Apply(missing, types.NewMakeBcacheParam().SysfsMapper())
	assert.Len(t, multierr.Errors(err), 2)
	assert.True(t, types.IsDegraded(err))
}

func TestDryRun(t *testing.T) {
	dir := t.TempDir()
	w := &Writer{DryRun: true}

	require.NoError(t, w.Write(filepath.Join(dir, "stop"), "1"))
	_, err := os.Stat(filepath.Join(dir, "stop"))
	assert.True(t, os.IsNotExist(err))
}
