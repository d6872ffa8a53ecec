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

package run

import (
	"context"

	deviceManager "github.com/carina-io/zbcache/pkg/devicemanager"
	"github.com/carina-io/zbcache/pkg/metrics"
	"github.com/carina-io/zbcache/utils/log"
	"github.com/spf13/cobra"
)

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Create and tune the zram backed bcache device",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		return subMain(cmd.Context())
	},
}

func subMain(ctx context.Context) error {
	printWelcome()
	dm := deviceManager.NewDeviceManager(config)

	report, err := dm.Run(ctx)
	for _, w := range report.Warnings {
		log.Warnf("warning: %v", w)
	}
	if config.MetricsTextfile != "" {
		writeMetrics(dm)
	}
	return err
}

func writeMetrics(dm *deviceManager.DeviceManager) {
	if err := dm.Metrics.Register(metrics.NewZbcacheCollector(dm)); err != nil {
		log.Warnf("register device stats collector: %v", err)
	}
	if err := dm.Metrics.WriteTextfile(config.MetricsTextfile); err != nil {
		log.Warnf("write metrics to %s: %v", config.MetricsTextfile, err)
		return
	}
	log.Debugf("metrics written to %s", config.MetricsTextfile)
}

func printWelcome() {
	if gitCommitID == "" {
		gitCommitID = "dev"
	}
	log.Info("-------- zbcache setup --------")
	log.Infof("Git Commit ID : %s", gitCommitID)
	log.Infof("backing device : %s", config.BackingDevice)
	if config.CacheDevice == "" {
		log.Info("cache device : new zram device")
	} else {
		log.Infof("cache device : %s", config.CacheDevice)
	}
	if config.DryRun {
		log.Info("dry run : nothing will be changed")
	}
	log.Info("-------------------------------")
}
