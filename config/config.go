// Package config loads the sync core's runtime configuration: the peer
// list to dial, optional SOCKS-style proxy hop, and the reconnect/poll
// timing knobs consumed by netcore.Dispatcher.
package config

import (
	"fmt"
	"io"

	"github.com/BurntSushi/toml"
	"github.com/spf13/viper"
)

// Config mirrors fly_client.cpp's Config struct: the options a deployment
// actually sets, rather than the fuller node-topology surface a Cardano
// node config carries.
type Config struct {
	NodeAddresses          []string `mapstructure:"node_addresses" toml:"node_addresses"`
	UseProxy               bool     `mapstructure:"use_proxy" toml:"use_proxy"`
	ProxyAddress           string   `mapstructure:"proxy_address" toml:"proxy_address"`
	ReconnectTimeoutMS     uint32   `mapstructure:"reconnect_timeout_ms" toml:"reconnect_timeout_ms"`
	PollPeriodMS           uint32   `mapstructure:"poll_period_ms" toml:"poll_period_ms"`
	CloseConnectionDelayMS uint32   `mapstructure:"close_connection_delay_ms" toml:"close_connection_delay_ms"`
	TargetBlockTimeS       uint32   `mapstructure:"target_block_time_s" toml:"target_block_time_s"`
}

// defaults mirror the original's constructor defaults: a poll period of 0
// (idle-close disabled) unless a deployment turns it on.
func defaults() Config {
	return Config{
		ReconnectTimeoutMS:     5000,
		PollPeriodMS:           0,
		CloseConnectionDelayMS: 2000,
		TargetBlockTimeS:       60,
	}
}

// Load reads a TOML config file at path with viper, the way celestia-core
// and tendermint load their node configuration. FLYCLIENT_-prefixed
// environment variables take precedence over the file for every key viper
// knows of (one set in the file or given a default below).
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("toml")
	v.SetEnvPrefix("FLYCLIENT")
	v.AutomaticEnv()

	def := defaults()
	v.SetDefault("reconnect_timeout_ms", def.ReconnectTimeoutMS)
	v.SetDefault("poll_period_ms", def.PollPeriodMS)
	v.SetDefault("close_connection_delay_ms", def.CloseConnectionDelayMS)
	v.SetDefault("target_block_time_s", def.TargetBlockTimeS)

	if err := v.ReadInConfig(); err != nil {
		return Config{}, fmt.Errorf("config: reading %s: %w", path, err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: decoding %s: %w", path, err)
	}
	if cfg.UseProxy && cfg.ProxyAddress == "" {
		return Config{}, fmt.Errorf("config: use_proxy is set but proxy_address is empty")
	}
	return cfg, nil
}

// WriteDefault writes a starting-point config file to w, encoded
// with the same TOML dialect the deployed file is read back with. Used by
// the daemon's "config init" command to scaffold a new deployment.
func WriteDefault(w io.Writer) error {
	def := defaults()
	def.NodeAddresses = []string{"127.0.0.1:8100"}
	return toml.NewEncoder(w).Encode(def)
}
