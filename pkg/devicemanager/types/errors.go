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

package types

import (
	"errors"
	"fmt"

	"go.uber.org/multierr"
)

// Severity decides whether the workflow may continue after an error
type Severity int

const (
	// SeverityFatal nothing downstream can be attempted
	SeverityFatal Severity = iota
	// SeverityDegraded a best-effort step failed, the device pair is still usable
	SeverityDegraded
)

func (s Severity) String() string {
	switch s {
	case SeverityFatal:
		return "fatal"
	case SeverityDegraded:
		return "degraded"
	}
	return fmt.Sprintf("severity(%d)", int(s))
}

var (
	// ErrAmbiguousDevice the created bcache device cannot be identified from the snapshots
	ErrAmbiguousDevice = errors.New("unable to determine created bcache device")
	// ErrInvalidDeviceNumber zram hot_add returned something other than a device number
	ErrInvalidDeviceNumber = errors.New("invalid zram device number")
	// ErrSettleTimeout kernel state did not reflect the change in time
	ErrSettleTimeout = errors.New("timed out waiting for device state to settle")
	// ErrInvalidDeviceName device name too short to derive its parent disk
	ErrInvalidDeviceName = errors.New("invalid device name")
)

// DeviceError an error from one device operation together with its severity
type DeviceError struct {
	Op       string
	Path     string
	Severity Severity
	Err      error
}

func (e *DeviceError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *DeviceError) Unwrap() error {
	return e.Err
}

func NewFatal(op, path string, err error) error {
	return &DeviceError{Op: op, Path: path, Severity: SeverityFatal, Err: err}
}

func NewDegraded(op, path string, err error) error {
	return &DeviceError{Op: op, Path: path, Severity: SeverityDegraded, Err: err}
}

// IsFatal is true when any error in err, including combined ones, is fatal.
// Errors without a severity are treated as fatal.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	for _, e := range multierr.Errors(err) {
		var de *DeviceError
		if !errors.As(e, &de) || de.Severity == SeverityFatal {
			return true
		}
	}
	return false
}

// IsDegraded is true when err is non-nil and every error it combines is degraded
func IsDegraded(err error) bool {
	return err != nil && !IsFatal(err)
}
