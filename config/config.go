package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/mitchellh/mapstructure"
	toml "github.com/pelletier/go-toml/v2"
	"github.com/spf13/viper"
	"github.com/urfave/cli/v2"

	"github.com/docanchor/docanchor/etherman"
	"github.com/docanchor/docanchor/issuance"
	"github.com/docanchor/docanchor/log"
	"github.com/docanchor/docanchor/signer"
)

const (
	// FlagCfg is the flag for cfg.
	FlagCfg = "cfg"
	// FlagKeyStorePath is the path of the key store file containing the
	// issuer's private key.
	FlagKeyStorePath = "key-store-path"
	// FlagPassword is the password needed to decrypt the key store.
	FlagPassword = "password"
	// FlagOutputDir is the directory receiving embedded documents.
	FlagOutputDir = "output-dir"
	// FlagSaveConfigPath is the flag to save the final configuration file.
	FlagSaveConfigPath = "save-config-path"

	EnvVarPrefix       = "DOCANCHOR"
	ConfigType         = "toml"
	SaveConfigFileName = "docanchor_config.toml"

	DefaultCreationFilePermissions = os.FileMode(0600)
)

// StoreConfig locates the local proof record store.
type StoreConfig struct {
	// DBPath is the path of the sqlite file holding proof records
	DBPath string `mapstructure:"DBPath"`
}

// Config represents the configuration of the whole docanchor node. The file is
// TOML format; every value can be overridden through DOCANCHOR_* environment
// variables.
type Config struct {
	// Configure log level for all the services, allow also to store the logs in a file
	Log log.Config
	// Configuration of the client for the anchoring ledger
	Ledger etherman.Config
	// Configuration of the issuance orchestrator
	Issuance issuance.Config
	// Configuration of the local proof record store
	Store StoreConfig
	// Configuration of the issuer key store file
	Signer signer.KeystoreFileConfig
}

// Load loads the configuration from the files named by the cfg flag, layered
// over the defaults.
func Load(ctx *cli.Context) (*Config, error) {
	files := ctx.StringSlice(FlagCfg)
	contents := make([]string, 0, len(files))
	for _, file := range files {
		data, err := os.ReadFile(filepath.Clean(file))
		if err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", file, err)
		}
		contents = append(contents, string(data))
	}
	cfg, err := LoadFromStrings(contents)
	if err != nil {
		return nil, err
	}
	if saveConfigPath := ctx.String(FlagSaveConfigPath); saveConfigPath != "" {
		if err := save(cfg, saveConfigPath); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

// LoadFromStrings loads the configuration from in-memory TOML documents,
// applied in order on top of the defaults.
func LoadFromStrings(contents []string) (*Config, error) {
	cfg := &Config{}
	layers := append([]string{DefaultValues}, contents...)
	if err := loadStrings(cfg, layers, ConfigType, true, EnvVarPrefix); err != nil {
		return nil, err
	}
	return cfg, nil
}

// SaveConfigToString renders the effective configuration back to TOML.
func SaveConfigToString(cfg Config) (string, error) {
	b, err := toml.Marshal(cfg)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func save(cfg *Config, dir string) error {
	rendered, err := SaveConfigToString(*cfg)
	if err != nil {
		return err
	}
	fullPath := filepath.Join(dir, SaveConfigFileName)
	if err := os.WriteFile(fullPath, []byte(rendered), DefaultCreationFilePermissions); err != nil {
		return fmt.Errorf("error writing config file: %s. Err: %w", fullPath, err)
	}
	return nil
}

func loadStrings(cfg *Config, layers []string, configType string, allowEnvVars bool, envPrefix string) error {
	viper.SetConfigType(configType)
	if allowEnvVars {
		replacer := strings.NewReplacer(".", "_")
		viper.SetEnvKeyReplacer(replacer)
		viper.SetEnvPrefix(envPrefix)
		viper.AutomaticEnv()
	}
	for i, layer := range layers {
		if i == 0 {
			if err := viper.ReadConfig(bytes.NewBufferString(layer)); err != nil {
				return err
			}
			continue
		}
		if err := viper.MergeConfig(bytes.NewBufferString(layer)); err != nil {
			return err
		}
	}
	decodeHooks := []viper.DecoderConfigOption{
		// this allows arrays to be decoded from env var separated by ",", example: MY_VAR="value1,value2,value3"
		viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
			mapstructure.TextUnmarshallerHookFunc(), mapstructure.StringToSliceHookFunc(","))),
	}
	return viper.Unmarshal(&cfg, decodeHooks...)
}
