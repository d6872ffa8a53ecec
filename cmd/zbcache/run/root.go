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
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/carina-io/zbcache"
	"github.com/carina-io/zbcache/pkg/configuration"
	"github.com/carina-io/zbcache/utils/log"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

var gitCommitID = "dev"

var (
	v          = configuration.New()
	configFile string
	config     *configuration.Config
)

var rootCmd = &cobra.Command{
	Use:     "zbcache",
	Version: zbcache.Version,
	Short:   "Provision a zram device as bcache cache tier",
	Long: `zbcache stops any bcache bound to the backing device, prepares a zram
device as cache, pairs both with make-bcache and tunes the resulting
bcache device.

Running zbcache without a subcommand performs the setup.`,

	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		if config, err = configuration.Load(v, configFile); err != nil {
			return err
		}
		log.Setup(config.LogOptions())
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		return subMain(cmd.Context())
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		log.Error(err)
		log.Sync()
		os.Exit(1)
	}
	log.Sync()
}

func init() {
	rootCmd.SilenceErrors = true
	rootCmd.AddCommand(setupCmd, statusCmd, showCmd)

	fs := rootCmd.PersistentFlags()
	fs.StringVar(&configFile, "config", "", "config file, default "+zbcache.ConfigPath+"config.{yaml,json}")
	fs.Bool("dry-run", false, "log sysfs writes and make-bcache instead of running them")
	fs.String("backing-device", zbcache.DefaultBackingDevice, "slow device bcache caches")
	fs.String("cache-device", zbcache.DefaultCacheDevice, "zram cache device, empty hot-adds a new one")
	fs.String("mem-limit", zbcache.DefaultMemLimit, "zram memory limit")
	fs.String("disk-size", zbcache.DefaultDiskSize, "zram disk size")
	fs.String("comp-algorithm", zbcache.DefaultCompAlgorithm, "zram compression algorithm")
	fs.String("cache-mode", zbcache.DefaultCacheMode, "bcache cache mode")
	fs.String("block-size", zbcache.DefaultBlockSize, "make-bcache block size")
	fs.String("bucket-size", zbcache.DefaultBucketSize, "make-bcache bucket size")
	fs.String("sequential-cutoff", zbcache.DefaultSequentialCutoff, "bcache sequential cutoff")
	fs.Duration("settle-delay", zbcache.DefaultSettleDelay, "fixed wait when device state does not settle")
	fs.Duration("settle-timeout", zbcache.DefaultSettleTimeout, "how long to poll for device state, 0 only waits settle-delay")
	fs.String("metrics-textfile", "", "write run metrics to this node exporter textfile")
	fs.String("log-level", "info", "debug, info, warn or error")
	fs.String("log-file", "", "also log to this file, rotated")

	if err := bindFlags(v, fs, map[string]string{
		"dry_run":           "dry-run",
		"backing_device":    "backing-device",
		"cache_device":      "cache-device",
		"mem_limit":         "mem-limit",
		"disk_size":         "disk-size",
		"comp_algorithm":    "comp-algorithm",
		"cache_mode":        "cache-mode",
		"block_size":        "block-size",
		"bucket_size":       "bucket-size",
		"sequential_cutoff": "sequential-cutoff",
		"settle.delay":      "settle-delay",
		"settle.timeout":    "settle-timeout",
		"metrics_textfile":  "metrics-textfile",
		"log.level":         "log-level",
		"log.file":          "log-file",
	}); err != nil {
		panic(err)
	}
}

// bindFlags makes viper key take the value of flag name when it is set on the command line
func bindFlags(v *viper.Viper, fs *pflag.FlagSet, keys map[string]string) error {
	for key, name := range keys {
		flag := fs.Lookup(name)
		if flag == nil {
			return fmt.Errorf("flag %s for %s is not defined", name, key)
		}
		if err := v.BindPFlag(key, flag); err != nil {
			return err
		}
	}
	return nil
}
