package adcs

import (
	"fmt"
	"os"

	"github.com/spf13/viper"
)

var (
	cfgLoaded = false
	config    = _adcsconfig{}
)

// _adcsconfig is a "hidden" struct, just use `adcsConfig`
type _adcsconfig struct {
	outputDir string
}

// adcsConfig returns the adcs configuration. The configuration file is
// optional: without ADCS_CONFIG everything is written to the working
// directory.
func adcsConfig() _adcsconfig {
	if cfgLoaded {
		return config
	}
	confPath := os.Getenv("ADCS_CONFIG")
	if confPath == "" {
		config = _adcsconfig{outputDir: "."}
		cfgLoaded = true
		return config
	}
	viper.SetConfigName("conf")
	viper.AddConfigPath(confPath)
	if err := viper.ReadInConfig(); err != nil {
		panic(fmt.Errorf("%s/conf.toml not found", confPath))
	}
	outputDir := viper.GetString("general.output_path")
	if outputDir == "" {
		outputDir = "."
	}
	config = _adcsconfig{outputDir: outputDir}
	cfgLoaded = true
	return config
}

func outputDir() string {
	return adcsConfig().outputDir
}
