package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Config file and environment naming.
const (
	ConfigName = "confsync"
	EnvPrefix  = "CONFSYNC"
)

const (
	keyDatabase = "db"
	keyState    = "state"
	keyDriver   = "driver"
	keyFeed     = "feed"
	keyLogFile  = "log-file"
	keyInterval = "interval"
)

// Config is the resolved configuration. Each key is read from, highest
// priority first: an explicitly set flag, a CONFSYNC_* environment variable
// (also from .env), confsync.yaml, then the flag default.
type Config struct {
	Database string        `mapstructure:"db"`
	State    string        `mapstructure:"state"`
	Driver   string        `mapstructure:"driver"`
	Feed     string        `mapstructure:"feed"`
	LogFile  string        `mapstructure:"log-file"`
	Interval time.Duration `mapstructure:"interval"`
	Verbose  bool          `mapstructure:"verbose"`
	Format   string        `mapstructure:"format"`
}

// load merges .env, the config file, the environment and cmd's flags into
// o.Config.
func (o *RootOptions) load(cmd *cobra.Command) error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	v.SetConfigType("yaml")
	if o.ConfigFile != "" {
		v.SetConfigFile(o.ConfigFile)
	} else {
		v.SetConfigName(ConfigName)
		v.AddConfigPath(".")
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if err := v.BindPFlags(cmd.Flags()); err != nil {
		return fmt.Errorf("bind flags: %w", err)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return fmt.Errorf("decode config: %w", err)
	}
	o.Config = cfg
	return nil
}
