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

package configuration

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/carina-io/zbcache"
	"github.com/carina-io/zbcache/pkg/devicemanager/types"
	"github.com/carina-io/zbcache/utils"
	"github.com/carina-io/zbcache/utils/log"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

var opt = viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
	mapstructure.StringToTimeDurationHookFunc(),
))

// Config everything a setup run needs. Sizes are passed to the kernel verbatim.
type Config struct {
	MemLimit      string `mapstructure:"mem_limit" json:"mem_limit"`
	DiskSize      string `mapstructure:"disk_size" json:"disk_size"`
	CompAlgorithm string `mapstructure:"comp_algorithm" json:"comp_algorithm"`

	CacheMode        string `mapstructure:"cache_mode" json:"cache_mode"`
	BlockSize        string `mapstructure:"block_size" json:"block_size"`
	BucketSize       string `mapstructure:"bucket_size" json:"bucket_size"`
	SequentialCutoff string `mapstructure:"sequential_cutoff" json:"sequential_cutoff"`
	BackingDevice    string `mapstructure:"backing_device" json:"backing_device"`
	// CacheDevice empty means a new zram device is hot-added
	CacheDevice string `mapstructure:"cache_device" json:"cache_device"`

	DryRun          bool   `mapstructure:"dry_run" json:"dry_run"`
	MetricsTextfile string `mapstructure:"metrics_textfile" json:"metrics_textfile"`

	Paths  Paths  `mapstructure:"paths" json:"paths"`
	Settle Settle `mapstructure:"settle" json:"settle"`
	Log    Log    `mapstructure:"log" json:"log"`
}

// Paths kernel and tool locations, only changed for tests or unusual hosts
type Paths struct {
	DevDir          string `mapstructure:"dev_dir" json:"dev_dir"`
	SysBlockDir     string `mapstructure:"sys_block_dir" json:"sys_block_dir"`
	ProcDir         string `mapstructure:"proc_dir" json:"proc_dir"`
	ZramHotAdd      string `mapstructure:"zram_hot_add" json:"zram_hot_add"`
	BcacheRegister  string `mapstructure:"bcache_register" json:"bcache_register"`
	DiskPrefix      string `mapstructure:"disk_prefix" json:"disk_prefix"`
	MakeBcache      string `mapstructure:"make_bcache" json:"make_bcache"`
	BcacheSuperShow string `mapstructure:"bcache_super_show" json:"bcache_super_show"`
}

type Settle struct {
	Delay    time.Duration `mapstructure:"delay" json:"delay"`
	Timeout  time.Duration `mapstructure:"timeout" json:"timeout"`
	Interval time.Duration `mapstructure:"interval" json:"interval"`
	Factor   float64       `mapstructure:"factor" json:"factor"`
	Watch    bool          `mapstructure:"watch" json:"watch"`
}

type Log struct {
	Level      string `mapstructure:"level" json:"level"`
	File       string `mapstructure:"file" json:"file"`
	MaxSize    int    `mapstructure:"max_size" json:"max_size"`
	MaxBackups int    `mapstructure:"max_backups" json:"max_backups"`
	MaxAge     int    `mapstructure:"max_age" json:"max_age"`
}

// New returns a viper instance with defaults and ZBCACHE_* environment overrides,
// nested keys use "_" in the variable name: ZBCACHE_SETTLE_TIMEOUT.
func New() *viper.Viper {
	v := viper.New()
	SetDefaults(v)
	v.SetEnvPrefix(zbcache.EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	// ZBCACHE_CACHE_DEVICE= selects a hot-added zram device
	v.AllowEmptyEnv(true)
	v.AutomaticEnv()
	return v
}

func SetDefaults(v *viper.Viper) {
	v.SetDefault("mem_limit", zbcache.DefaultMemLimit)
	v.SetDefault("disk_size", zbcache.DefaultDiskSize)
	v.SetDefault("comp_algorithm", zbcache.DefaultCompAlgorithm)
	v.SetDefault("cache_mode", zbcache.DefaultCacheMode)
	v.SetDefault("block_size", zbcache.DefaultBlockSize)
	v.SetDefault("bucket_size", zbcache.DefaultBucketSize)
	v.SetDefault("sequential_cutoff", zbcache.DefaultSequentialCutoff)
	v.SetDefault("backing_device", zbcache.DefaultBackingDevice)
	v.SetDefault("cache_device", zbcache.DefaultCacheDevice)
	v.SetDefault("dry_run", false)
	v.SetDefault("metrics_textfile", "")

	v.SetDefault("paths.dev_dir", zbcache.DefaultDevDir)
	v.SetDefault("paths.sys_block_dir", zbcache.DefaultSysBlockDir)
	v.SetDefault("paths.proc_dir", zbcache.DefaultProcDir)
	v.SetDefault("paths.zram_hot_add", zbcache.DefaultZramHotAdd)
	v.SetDefault("paths.bcache_register", zbcache.DefaultBcacheRegister)
	v.SetDefault("paths.disk_prefix", zbcache.DefaultDiskPrefix)
	v.SetDefault("paths.make_bcache", zbcache.MakeBcacheCmd)
	v.SetDefault("paths.bcache_super_show", zbcache.BcacheSuperShowCmd)

	v.SetDefault("settle.delay", zbcache.DefaultSettleDelay)
	v.SetDefault("settle.timeout", zbcache.DefaultSettleTimeout)
	v.SetDefault("settle.interval", zbcache.DefaultSettleInterval)
	v.SetDefault("settle.factor", zbcache.DefaultSettleFactor)
	v.SetDefault("settle.watch", true)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.file", "")
	v.SetDefault("log.max_size", 30)
	v.SetDefault("log.max_backups", 3)
	v.SetDefault("log.max_age", 1)
}

// Load reads configFile, or config.{yaml,json} from /etc/zbcache/ when configFile is
// empty. A missing default config file is fine, an explicit one has to exist.
func Load(v *viper.Viper, configFile string) (*Config, error) {
	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.AddConfigPath(zbcache.ConfigPath)
		v.SetConfigName("config")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to get the configuration: %w", err)
		}
		log.Debugf("no config file in %s, using defaults", zbcache.ConfigPath)
	} else {
		log.Infof("loaded configuration from %s", v.ConfigFileUsed())
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg, opt); err != nil {
		return nil, fmt.Errorf("failed to unmarshal the configuration: %w", err)
	}
	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("failed to validate the configuration: %w", err)
	}
	return cfg, nil
}

func validate(cfg *Config) error {
	if cfg.BackingDevice == "" {
		return errors.New("backing_device is required")
	}
	if cfg.CompAlgorithm == "" {
		return errors.New("comp_algorithm must not be empty")
	}
	if !utils.ContainsString(types.CacheModes, cfg.CacheMode) {
		return fmt.Errorf("unsupported cache_mode %q, expected one of %v", cfg.CacheMode, types.CacheModes)
	}
	if cfg.BlockSize == "" || cfg.BucketSize == "" {
		return errors.New("block_size and bucket_size must not be empty")
	}
	if cfg.Paths.DevDir == "" || cfg.Paths.SysBlockDir == "" {
		return errors.New("paths.dev_dir and paths.sys_block_dir must not be empty")
	}
	if cfg.Settle.Delay <= 0 {
		return fmt.Errorf("settle.delay must be positive, got %s", cfg.Settle.Delay)
	}
	if cfg.Settle.Timeout < 0 {
		return fmt.Errorf("settle.timeout must not be negative, got %s", cfg.Settle.Timeout)
	}
	if cfg.Settle.Timeout > 0 && (cfg.Settle.Interval <= 0 || cfg.Settle.Factor < 1) {
		return errors.New("settle.interval must be positive and settle.factor at least 1")
	}
	return nil
}

// ZramParam configuration for the cache device
func (cfg *Config) ZramParam(devPath string) types.ZramDeviceParam {
	return types.ZramDeviceParam{
		DevPath:       devPath,
		MemLimit:      cfg.MemLimit,
		DiskSize:      cfg.DiskSize,
		CompAlgorithm: cfg.CompAlgorithm,
	}
}

// BcacheParam defaults overridden by the configuration
func (cfg *Config) BcacheParam(cacheDev string) types.MakeBcacheParam {
	param := types.NewMakeBcacheParam()
	param.CacheDev = cacheDev
	param.BackingDev = cfg.BackingDevice
	param.BlockSize = cfg.BlockSize
	param.BucketSize = cfg.BucketSize
	param.CacheMode = cfg.CacheMode
	param.SequentialCutoff = cfg.SequentialCutoff
	return param
}

func (cfg *Config) LogOptions() log.Options {
	return log.Options{
		Level:      cfg.Log.Level,
		File:       cfg.Log.File,
		MaxSize:    cfg.Log.MaxSize,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAge:     cfg.Log.MaxAge,
	}
}
