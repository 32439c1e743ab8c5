// Package config binds Satellite's environment-variable surface (spec.md
// §6) to a typed Config struct via viper, the way cmd/satellite's teacher
// binary binds its own flags and env vars.
package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
	"github.com/zeebo/errs"
)

// Error is the config package's error class.
var Error = errs.Class("config")

// Config is Satellite's full runtime configuration, one field per
// SATELLITE_* environment variable in spec.md §6.
type Config struct {
	LRRHost   string `mapstructure:"lrr_host"`
	LRRAPIKey string `mapstructure:"lrr_api_key"`

	Img2VecHost string `mapstructure:"img2vec_host"`

	DBPath      string `mapstructure:"db_path"`
	PostgresDSN string `mapstructure:"postgres_dsn"`

	ContentsDir       string `mapstructure:"contents_dir"`
	DoNotDownloadFile string `mapstructure:"do_not_download_file"`
	APIKey            string `mapstructure:"api_key"`

	ListenAddr string `mapstructure:"listen_addr"`

	ScanWorkers    int `mapstructure:"scan_workers"`
	ScanBatchSize  int `mapstructure:"scan_batch_size"`
	UploadBatchSize int `mapstructure:"upload_batch_size"`

	MetadataPluginSleepSeconds float64 `mapstructure:"metadata_plugin_sleep_seconds"`

	SimilarityThreshold float64 `mapstructure:"similarity_threshold"`

	Development bool `mapstructure:"development"`

	ScanInterval     time.Duration `mapstructure:"scan_interval"`
	EmbeddingInterval time.Duration `mapstructure:"embedding_interval"`
}

// Defaults mirrors the default column of spec.md §6's environment-variable
// table.
func Defaults() Config {
	return Config{
		ListenAddr:                 ":7001",
		ScanWorkers:                0, // not read by scanengine.Scan, which always runs analysisConcurrency workers
		ScanBatchSize:              64,
		UploadBatchSize:            32,
		MetadataPluginSleepSeconds: 1.0,
		SimilarityThreshold:        0.95,
		ScanInterval:               time.Hour,
		EmbeddingInterval:          15 * time.Minute,
	}
}

// Load reads SATELLITE_-prefixed environment variables into a Config
// seeded with Defaults.
func Load() (Config, error) {
	cfg := Defaults()

	v := viper.New()
	v.SetEnvPrefix("SATELLITE")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	for key, val := range map[string]interface{}{
		"lrr_host":                      cfg.LRRHost,
		"lrr_api_key":                   cfg.LRRAPIKey,
		"img2vec_host":                  cfg.Img2VecHost,
		"db_path":                       cfg.DBPath,
		"postgres_dsn":                  cfg.PostgresDSN,
		"contents_dir":                  cfg.ContentsDir,
		"do_not_download_file":          cfg.DoNotDownloadFile,
		"api_key":                       cfg.APIKey,
		"listen_addr":                   cfg.ListenAddr,
		"scan_workers":                  cfg.ScanWorkers,
		"scan_batch_size":               cfg.ScanBatchSize,
		"upload_batch_size":             cfg.UploadBatchSize,
		"metadata_plugin_sleep_seconds": cfg.MetadataPluginSleepSeconds,
		"similarity_threshold":          cfg.SimilarityThreshold,
		"development":                   cfg.Development,
		"scan_interval":                 cfg.ScanInterval,
		"embedding_interval":            cfg.EmbeddingInterval,
	} {
		v.SetDefault(key, val)
		_ = v.BindEnv(key)
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, Error.Wrap(err)
	}

	if cfg.LRRHost == "" {
		return Config{}, Error.New("SATELLITE_LRR_HOST is required")
	}
	if cfg.ContentsDir == "" {
		return Config{}, Error.New("SATELLITE_CONTENTS_DIR is required")
	}
	if cfg.DBPath == "" {
		return Config{}, Error.New("SATELLITE_DB_PATH is required")
	}
	return cfg, nil
}
