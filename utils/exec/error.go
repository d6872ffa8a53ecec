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

package exec

import (
	"errors"
	"os/exec"
	"syscall"
)

// ExitStatus reports the exit code of a process that ran and exited non-zero.
// The second value is false when err does not come from a finished process.
func ExitStatus(err error) (int, bool) {
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		if waitStatus, ok := exitErr.ProcessState.Sys().(syscall.WaitStatus); ok {
			if waitStatus.Signaled() {
				return 128 + int(waitStatus.Signal()), true
			}
			return waitStatus.ExitStatus(), true
		}
		return exitErr.ExitCode(), true
	}
	return 0, false
}
