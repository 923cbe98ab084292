package config

import (
	"fmt"
	"path/filepath"
	"strings"

	internal "github.com/ZanzyTHEbar/bertfeat/bertfeat"

	"github.com/spf13/viper"
)

// Config stores all configuration of the application.
// The values are read by viper from a config file or environment variables.
type Config struct {
	Model     ModelConfig     `mapstructure:"model"`
	Extractor ExtractorConfig `mapstructure:"extractor"`
}

// ModelConfig stores the ONNX model and tokenizer locations plus the
// session-level knobs.
type ModelConfig struct {
	Path              string `mapstructure:"path"`
	TokenizerPath     string `mapstructure:"tokenizerPath"`
	TokenOutput       string `mapstructure:"tokenOutput"`
	PooledOutput      string `mapstructure:"pooledOutput"`
	ExecutionProvider string `mapstructure:"executionProvider"`
	DeviceID          int    `mapstructure:"deviceId"`
}

// ExtractorConfig stores the extraction pipeline settings.
type ExtractorConfig struct {
	MaxLength    int    `mapstructure:"maxLength"`
	Pooling      string `mapstructure:"pooling"`
	BatchWorkers int    `mapstructure:"batchWorkers"`
}

var AppConfig Config

// LoadConfig reads configuration from file or environment variables.
func LoadConfig(configPath string) (*Config, error) {
	if configPath != "" {
		viper.SetConfigFile(configPath)
	} else {
		viper.AddConfigPath(".")
		viper.AddConfigPath("..")
		viper.AddConfigPath(filepath.Join("etc", internal.DefaultAppName))
		viper.AddConfigPath(internal.DefaultConfigPath)
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
	}

	// Set default values
	viper.SetDefault("model.tokenOutput", internal.DefaultTokenOutput)
	viper.SetDefault("model.pooledOutput", internal.DefaultPooledOutput)
	viper.SetDefault("model.executionProvider", "cpu")
	viper.SetDefault("model.deviceId", 0)
	viper.SetDefault("extractor.maxLength", internal.DefaultMaxLength)
	viper.SetDefault("extractor.pooling", internal.DefaultPooling)
	viper.SetDefault("extractor.batchWorkers", 4)

	viper.AutomaticEnv()                                   // Read in environment variables that match
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_")) // e.g. model.tokenizerPath becomes MODEL_TOKENIZERPATH

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			// Config file not found; defaults will be used. This is not an
			// error for the application to halt on.
		} else {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	err := viper.Unmarshal(&AppConfig)
	if err != nil {
		return nil, fmt.Errorf("unable to decode into struct: %w", err)
	}

	return &AppConfig, nil
}
