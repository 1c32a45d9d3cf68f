package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Port          string `mapstructure:"port"`
	PublicURL     string `mapstructure:"public_url"`
	ExportEnabled bool   `mapstructure:"export_enabled"`
	ExportFile    string `mapstructure:"export_file"`
	RedisAddr     string `mapstructure:"redis_addr"`
	RedisPassword string `mapstructure:"redis_password"`
	RedisDB       int    `mapstructure:"redis_db"`
	RedisPrefix   string `mapstructure:"redis_prefix"`
	AdminUser     string `mapstructure:"admin_user"`
	AdminPass     string `mapstructure:"admin_pass"`
}

var defaults = map[string]any{
	"port":           "3000",
	"public_url":     "",
	"export_enabled": false,
	"export_file":    "./rajamantri-results.txt",
	"redis_addr":     "",
	"redis_password": "",
	"redis_db":       0,
	"redis_prefix":   "rajamantri",
	"admin_user":     "",
	"admin_pass":     "",
}

// Load reads defaults, then the optional file named by CONFIG_FILE, then
// environment variables (PORT, EXPORT_FILE, ...).
func Load() (Config, error) {
	v := viper.New()
	for k, d := range defaults {
		v.SetDefault(k, d)
	}
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if file := v.GetString("config_file"); file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", file, err)
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if c.PublicURL == "" {
		c.PublicURL = "http://localhost:" + c.Port
	}
	c.PublicURL = strings.TrimRight(c.PublicURL, "/")
	return c, nil
}

// AdminEnabled reports whether the admin routes sit behind basic auth.
func (c Config) AdminEnabled() bool {
	return c.AdminUser != "" && c.AdminPass != ""
}
