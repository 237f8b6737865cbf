package config

import (
	"fmt"
	"reflect"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. REPORTFLOW_PUBSUB_SYSTEM.
const EnvPrefix = "REPORTFLOW"

// Load reads path (YAML, TOML or JSON, by extension) when it is not empty,
// applies REPORTFLOW_* environment overrides, fills defaults and validates.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()
	bindEnv(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg = cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// bindEnv registers every mapstructure key so Unmarshal sees environment
// values for keys absent from the file.
func bindEnv(v *viper.Viper) {
	t := reflect.TypeOf(Config{})
	for i := 0; i < t.NumField(); i++ {
		if key := t.Field(i).Tag.Get("mapstructure"); key != "" {
			_ = v.BindEnv(key)
		}
	}
}
