package config

import (
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	"txn-db-golang/src/buffer"
	"txn-db-golang/src/storage"
)

// Config collects everything tunable about an engine instance.
type Config struct {
	Storage StorageConfig `mapstructure:"storage"`
	Buffer  BufferConfig  `mapstructure:"buffer"`
	Log     LogConfig     `mapstructure:"log"`
}

type StorageConfig struct {
	// DataDir is where table files live.
	DataDir string `mapstructure:"data_dir"`
	// PageSize in bytes; every table file uses the same size.
	PageSize int `mapstructure:"page_size"`
}

type BufferConfig struct {
	// Capacity is the page cache size in pages.
	Capacity int `mapstructure:"capacity"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

func Default() Config {
	return Config{
		Storage: StorageConfig{
			DataDir:  "data",
			PageSize: storage.DefaultPageSize,
		},
		Buffer: BufferConfig{
			Capacity: buffer.DefaultCapacity,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads the config file at path on top of the defaults. An empty path
// returns the defaults.
func Load(path string) (Config, error) {
	v := viper.New()
	def := Default()
	v.SetDefault("storage.data_dir", def.Storage.DataDir)
	v.SetDefault("storage.page_size", def.Storage.PageSize)
	v.SetDefault("buffer.capacity", def.Buffer.Capacity)
	v.SetDefault("log.level", def.Log.Level)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, errors.Wrapf(err, "config: read %s", path)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, errors.Wrap(err, "config: unmarshal")
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	if c.Storage.PageSize <= 0 {
		return errors.Errorf("config: page_size must be positive, got %d", c.Storage.PageSize)
	}
	if c.Buffer.Capacity <= 0 {
		return errors.Errorf("config: buffer capacity must be positive, got %d", c.Buffer.Capacity)
	}
	if c.Storage.DataDir == "" {
		return errors.New("config: data_dir must not be empty")
	}
	return nil
}

// ConfigureLogging applies the log level to the process-wide logger.
func ConfigureLogging(c LogConfig) error {
	level, err := log.ParseLevel(c.Level)
	if err != nil {
		return errors.Wrapf(err, "config: log level %q", c.Level)
	}
	log.SetLevel(level)
	return nil
}
