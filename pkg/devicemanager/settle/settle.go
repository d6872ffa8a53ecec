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

package settle

import (
	"context"
	"math"
	"time"

	"github.com/carina-io/zbcache/pkg/devicemanager/types"
	"github.com/carina-io/zbcache/utils/log"
	"github.com/fsnotify/fsnotify"
	"k8s.io/apimachinery/pkg/util/wait"
	"k8s.io/utils/clock"
)

// Condition reports whether the kernel state reflects the change being waited for
type Condition func() bool

// Settler waits for asynchronous kernel changes: zram hot-add, bcache stop and
// make-bcache all return before the result is visible under /dev and /sys.
type Settler struct {
	// Delay fixed wait used when no condition is given or the condition never holds
	Delay time.Duration
	// Timeout bounds the polling, zero disables polling
	Timeout time.Duration
	// Interval first poll interval, multiplied by Factor after every poll
	Interval time.Duration
	Factor   float64
	// WatchDir when set, filesystem events in it trigger an early poll
	WatchDir string

	Clock clock.Clock
}

func (s *Settler) clock() clock.Clock {
	if s.Clock == nil {
		return clock.RealClock{}
	}
	return s.Clock
}

// Sleep waits the fixed delay
func (s *Settler) Sleep(ctx context.Context) error {
	log.Infof("wait for %s...", s.Delay)
	return s.sleep(ctx, s.Delay, wakeups{})
}

// Wait polls cond until it holds or Timeout passes. On timeout it falls back to
// the fixed delay once and returns a degraded ErrSettleTimeout.
func (s *Settler) Wait(ctx context.Context, what string, cond Condition) error {
	if s.Timeout <= 0 || cond == nil {
		return s.Sleep(ctx)
	}

	var wake wakeups
	if s.WatchDir != "" {
		watcher, err := fsnotify.NewWatcher()
		if err == nil {
			err = watcher.Add(s.WatchDir)
		}
		if err != nil {
			log.Debugf("watch %s: %v, polling only", s.WatchDir, err)
		} else {
			defer watcher.Close()
			wake = wakeups{events: watcher.Events, errs: watcher.Errors}
		}
	}

	clk := s.clock()
	deadline := clk.Now().Add(s.Timeout)
	backoff := wait.Backoff{
		Duration: s.Interval,
		Factor:   s.Factor,
		Steps:    math.MaxInt32,
		Cap:      s.Timeout,
	}
	for {
		if cond() {
			log.Debugf("%s settled", what)
			return nil
		}
		remaining := deadline.Sub(clk.Now())
		if remaining <= 0 {
			break
		}
		d := backoff.Step()
		if d <= 0 {
			d = time.Millisecond
		}
		if d > remaining {
			d = remaining
		}
		if err := s.sleep(ctx, d, wake); err != nil {
			return err
		}
	}

	log.Warnf("%s did not settle within %s, wait for %s", what, s.Timeout, s.Delay)
	if err := s.sleep(ctx, s.Delay, wakeups{}); err != nil {
		return err
	}
	return types.NewDegraded("settle", what, types.ErrSettleTimeout)
}

// wakeups fsnotify channels that end a sleep early, nil channels never fire
type wakeups struct {
	events <-chan fsnotify.Event
	errs   <-chan error
}

// sleep waits d, or less when ctx ends or the watch reports something. Watch errors
// (queue overflow on a busy /dev) are read so the watcher keeps delivering and count
// as a reason to poll again.
func (s *Settler) sleep(ctx context.Context, d time.Duration, wake wakeups) error {
	if err := ctx.Err(); err != nil {
		return types.NewFatal("settle", "", err)
	}
	select {
	case <-ctx.Done():
		return types.NewFatal("settle", "", ctx.Err())
	case <-s.clock().After(d):
	case ev := <-wake.events:
		log.Debugf("woken by %s", ev)
	case err := <-wake.errs:
		log.Debugf("watch error: %v", err)
	}
	return nil
}
