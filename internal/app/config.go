package app

import (
	"os"
	"strings"

	"github.com/jeremywohl/flatten"
	"github.com/joho/godotenv"
	"github.com/mitchellh/mapstructure"
	"github.com/pkg/errors"

	"github.com/metal-toolbox/regiongen/internal/model"
)

// LoadConfiguration loads application configuration
//
// Reads in the cfgFile when available and overrides from environment variables.
func (a *App) LoadConfiguration(cfgFile, envFile string) error {
	if envFile != "" {
		// variables already present in the environment are not overridden
		if err := godotenv.Load(envFile); err != nil {
			return errors.Wrap(model.ErrConfig, "env file error: "+err.Error())
		}
	}

	a.v.SetConfigType("yaml")
	a.v.SetEnvPrefix(model.AppName)
	a.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	a.v.AutomaticEnv()

	// these are initialized here so viper can read in configuration from env vars
	// once https://github.com/spf13/viper/pull/1429 is merged, this can go.
	a.Config.AssetAPI = &model.AssetAPI{}
	a.Config.FleetAPI = &model.FleetAPI{}

	if cfgFile != "" {
		fh, err := os.Open(cfgFile)
		if err != nil {
			return errors.Wrap(model.ErrConfig, err.Error())
		}

		defer fh.Close()

		if strings.HasSuffix(cfgFile, ".json") {
			a.v.SetConfigType("json")
		}

		if err = a.v.ReadConfig(fh); err != nil {
			return errors.Wrap(model.ErrConfig, "ReadConfig error:"+err.Error())
		}
	}

	a.v.SetDefault("log_level", "info")

	if err := a.envBindVars(); err != nil {
		return errors.Wrap(model.ErrConfig, "env var bind error:"+err.Error())
	}

	if err := a.v.Unmarshal(a.Config); err != nil {
		return errors.Wrap(model.ErrConfig, "Unmarshal error: "+err.Error())
	}

	a.Config.File = cfgFile
	a.Config.SetDefaults()

	return a.Config.Validate()
}

// envBindVars binds environment variables to the struct
// without a configuration file being unmarshalled,
// this is a workaround for a viper bug,
//
// This can be replaced by the solution in https://github.com/spf13/viper/pull/1429
// once that PR is merged.
func (a *App) envBindVars() error {
	envKeysMap := map[string]interface{}{}
	if err := mapstructure.Decode(a.Config, &envKeysMap); err != nil {
		return err
	}

	// Flatten nested conf map
	flat, err := flatten.Flatten(envKeysMap, "", flatten.DotStyle)
	if err != nil {
		return errors.Wrap(err, "Unable to flatten config")
	}

	for k := range flat {
		if err := a.v.BindEnv(k); err != nil {
			return errors.Wrap(model.ErrConfig, "env var bind error: "+err.Error())
		}
	}

	return nil
}
