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

	"github.com/carina-io/zbcache/pkg/devicemanager/types"
	"github.com/carina-io/zbcache/utils/log"
	"go.uber.org/multierr"
)

// Writer reads and writes kernel control files. With DryRun set writes are only logged.
type Writer struct {
	DryRun bool
}

func (w *Writer) Read(path string) ([]byte, error) {
	return os.ReadFile(path)
}

// Write stores value in path. No read-back is done, the kernel may still reject the
// value later on.
func (w *Writer) Write(path, value string) error {
	if w.DryRun {
		log.Infof("[dry-run] write %q to %s", value, path)
		return nil
	}
	log.Debugf("write %q to %s", value, path)
	return os.WriteFile(path, []byte(value), 0644)
}

// Apply writes every attribute below dir, in order. A failed attribute does not stop the
// remaining ones; all failures come back combined as degraded errors.
func (w *Writer) Apply(dir string, attrs []types.Attribute) error {
	var errs error
	for _, attr := range attrs {
		path := filepath.Join(dir, attr.Name)
		if err := w.Write(path, attr.Value); err != nil {
			log.Warnf("failed to set %s=%s on %s: %v", attr.Name, attr.Value, dir, err)
			errs = multierr.Append(errs, types.NewDegraded("write "+attr.Name, path, err))
		}
	}
	return errs
}
