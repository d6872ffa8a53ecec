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
	"fmt"
	"io"
	"os/exec"
	"strings"

	"github.com/carina-io/zbcache/utils/log"
)

// Executor runs the external bcache tools
type Executor interface {
	// ExecuteCommandWithOutput returns trimmed stdout, stderr is appended on failure
	ExecuteCommandWithOutput(command string, arg ...string) (string, error)
	// ExecuteCommandRelay copies the process stdout and stderr verbatim to the given writers.
	ExecuteCommandRelay(stdout, stderr io.Writer, command string, arg ...string) error
}

// CommandExecutor is the type of the Executor
type CommandExecutor struct {
}

func (*CommandExecutor) ExecuteCommandWithOutput(command string, arg ...string) (string, error) {
	cmd := newCommand(command, arg...)
	output, err := cmd.Output()
	if err != nil {
		output = []byte(fmt.Sprintf("%s. %s", string(output), assertErrorType(err)))
	}
	return strings.TrimSpace(string(output)), err
}

// ExecuteCommandRelay runs the command to completion. A launch failure is returned as *exec.Error
// (or the os error); a non-zero exit is returned as *exec.ExitError so callers can tell them apart.
func (*CommandExecutor) ExecuteCommandRelay(stdout, stderr io.Writer, command string, arg ...string) error {
	cmd := newCommand(command, arg...)
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	if err := cmd.Start(); err != nil {
		return err
	}
	return cmd.Wait()
}

func newCommand(command string, arg ...string) *exec.Cmd {
	log.Debugf("Running command: %s %s", command, strings.Join(arg, " "))
	// #nosec G204 the arguments come from the local configuration
	return exec.Command(command, arg...)
}

func assertErrorType(err error) string {
	switch errType := err.(type) {
	case *exec.ExitError:
		return string(errType.Stderr)
	case *exec.Error:
		return errType.Error()
	}

	return ""
}
