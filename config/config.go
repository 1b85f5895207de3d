package config

import (
	"fmt"
	"os"

	"github.com/spf13/viper"

	"github.com/stratmarket/engine/internal/logging"
)

type Config struct {
	Server struct {
		Host string `mapstructure:"host" json:"host,omitempty"`
		Port int64  `mapstructure:"port" json:"port,omitempty"`
	} `mapstructure:"server" json:"server"`
	Database    DatabaseConfig    `mapstructure:"database" json:"database,omitempty"`
	Chain       ChainConfig       `mapstructure:"chain" json:"chain,omitempty"`
	Facilitator FacilitatorConfig `mapstructure:"facilitator" json:"facilitator,omitempty"`
	Scheduler   SchedulerConfig   `mapstructure:"scheduler" json:"scheduler,omitempty"`
	LogFormat   logging.LogFormat `mapstructure:"log_format" json:"log_format,omitempty"`
}

type DatabaseConfig struct {
	DSN string `mapstructure:"dsn" json:"dsn,omitempty"`
}

type ChainConfig struct {
	RPCURL string `mapstructure:"rpc_url" json:"rpc_url,omitempty"`
	// SignerKey is the hex-encoded private key used to submit transactions.
	SignerKey string `mapstructure:"signer_key" json:"-"`
	ChainID   int64  `mapstructure:"chain_id" json:"chain_id,omitempty"`
}

type FacilitatorConfig struct {
	URL     string `mapstructure:"url" json:"url,omitempty"`
	Network string `mapstructure:"network" json:"network,omitempty"`
}

type SchedulerConfig struct {
	// CallbackURL is the execute endpoint that registered triggers POST back
	// to when they fire; the scheduler is a client of the same HTTP surface.
	CallbackURL string `mapstructure:"callback_url" json:"callback_url,omitempty"`
}

func GetConfigure() (*Config, error) {
	configName := os.Getenv("SM_CONFIG_NAME")
	if configName == "" {
		configName = "config"
	}
	return ReadConfig(configName)
}

func ReadConfig(configName string) (*Config, error) {
	viper.SetConfigName(configName)
	viper.AddConfigPath(".")
	viper.AutomaticEnv()

	viper.SetDefault("server.port", 8080)
	viper.SetDefault("log_format", string(logging.FormatText))
	viper.SetDefault("facilitator.network", "polygon-amoy")
	viper.SetDefault("chain.chain_id", 80002)

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("fail to reading config file, %w", err)
	}
	var cfg Config
	err := viper.Unmarshal(&cfg)
	if err != nil {
		return nil, fmt.Errorf("unable to decode into struct, %w", err)
	}
	return &cfg, nil
}
