package utils

import (
	"fmt"
	"os"

	"dario.cat/mergo"
	"github.com/kelseyhightower/envconfig"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/ethpandaops/chainaide/config"
	"github.com/ethpandaops/chainaide/types"
)

// Config is the globally accessible configuration
var Config *types.Config

// ReadConfig loads the embedded defaults, merges the config file at path (if
// any) and applies environment overrides.
func ReadConfig(cfg *types.Config, path string) error {
	err := yaml.Unmarshal([]byte(config.DefaultConfigYml), cfg)
	if err != nil {
		return fmt.Errorf("error decoding default config: %v", err)
	}

	if path != "" {
		fileCfg := &types.Config{}
		err = readConfigFile(fileCfg, path)
		if err != nil {
			return err
		}

		err = mergo.Merge(cfg, fileCfg, mergo.WithOverride)
		if err != nil {
			return fmt.Errorf("error merging config file %v: %v", path, err)
		}
	}

	err = readConfigEnv(cfg)
	if err != nil {
		return fmt.Errorf("error reading config from environment: %v", err)
	}

	err = validateConfig(cfg)
	if err != nil {
		return err
	}

	logrus.WithFields(logrus.Fields{
		"rpc":        cfg.Rpc.Url,
		"database":   cfg.Database.Engine,
		"resultMode": cfg.Signer.ResultMode,
	}).Debugf("did init config")

	return nil
}

func readConfigFile(cfg *types.Config, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("error opening config file %v: %v", path, err)
	}
	defer f.Close()

	decoder := yaml.NewDecoder(f)
	decoder.KnownFields(true)
	err = decoder.Decode(cfg)
	if err != nil {
		return fmt.Errorf("error decoding config file %v: %v", path, err)
	}

	return nil
}

func readConfigEnv(cfg *types.Config) error {
	return envconfig.Process("", cfg)
}

func validateConfig(cfg *types.Config) error {
	if cfg.Rpc.Url == "" {
		return fmt.Errorf("missing rpc endpoint url")
	}

	switch cfg.Signer.ResultMode {
	case "", "auto", "txn", "hash", "receipt":
	default:
		return fmt.Errorf("invalid signer result mode: %v", cfg.Signer.ResultMode)
	}

	switch cfg.Database.Engine {
	case "", "none", "sqlite", "pgsql":
	default:
		return fmt.Errorf("unknown database engine type: %v", cfg.Database.Engine)
	}

	if cfg.Receipt.Timeout < 0 || cfg.Receipt.PollInterval < 0 {
		return fmt.Errorf("receipt timeout and poll interval must not be negative")
	}

	// envconfig allocates the optional ssh section
	if cfg.Rpc.Ssh != nil && cfg.Rpc.Ssh.Host == "" {
		cfg.Rpc.Ssh = nil
	}

	return nil
}
