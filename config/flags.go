package config

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

func RegisterFlags(cmd *cobra.Command) {
	flags := cmd.PersistentFlags()

	flags.StringP("config", "c", "", "config file path (toml, yaml or json)")
	flags.StringSlice("env", nil, "dotenv files to load (default .env)")
	flags.StringP("lang", "l", "", "default language (en, ar)")
	flags.IntP("workers", "w", 0, "concurrent pipeline units per message")
	flags.String("log-level", "", "log level (debug, info, warn, error)")
	flags.String("log-file", "", "also write logs to this file")
	flags.String("database-url", "", "database DSN (sqlite path or postgres:// URL)")
	flags.Int("webhook-port", 0, "webhook listen port")
	flags.String("proxy", "", "proxy URL for telegram connections (socks5, http)")
}

var flagKeys = map[string]string{
	"lang":         "lang",
	"workers":      "workers",
	"log-level":    "log.level",
	"log-file":     "log.file",
	"database-url": "database_url",
	"webhook-port": "webhook.port",
	"proxy":        "proxy.url",
}

// bindFlags binds only flags that were set, so defaults and env keep precedence otherwise.
func bindFlags(v *viper.Viper, flags *pflag.FlagSet) error {
	for name, key := range flagKeys {
		f := flags.Lookup(name)
		if f == nil || !f.Changed {
			continue
		}
		if err := v.BindPFlag(key, f); err != nil {
			return fmt.Errorf("bind flag %s: %w", name, err)
		}
	}
	return nil
}

func OptionsFromCommand(cmd *cobra.Command) LoadOptions {
	flags := cmd.Flags()
	file, _ := flags.GetString("config")
	envs, _ := flags.GetStringSlice("env")
	return LoadOptions{ConfigFile: file, EnvFiles: envs, Flags: flags}
}
