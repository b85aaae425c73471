package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the console
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Backend  BackendConfig  `mapstructure:"backend"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Timeouts TimeoutsConfig `mapstructure:"timeouts"`
}

// ServerConfig holds the presentation adapter's server configuration
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// BackendConfig holds the RAG backend collaborator configuration
type BackendConfig struct {
	BaseURL string `mapstructure:"base_url"`
}

// StorageConfig holds the shared staging volume configuration
type StorageConfig struct {
	// Uploads is the staging directory shared with the backend; raw file
	// bytes are written here before the processing trigger is called.
	Uploads string `mapstructure:"uploads"`
}

// TimeoutsConfig holds per-operation timeouts for backend calls.
// Processing is long because vision inference + embedding is slow; a
// processing timeout is non-fatal since the backend may still finish.
type TimeoutsConfig struct {
	Health    time.Duration `mapstructure:"health"`
	Listing   time.Duration `mapstructure:"listing"`
	Documents time.Duration `mapstructure:"documents"`
	Query     time.Duration `mapstructure:"query"`
	Process   time.Duration `mapstructure:"process"`
}

// Load loads configuration from file and environment
func Load(configPath string) (*Config, error) {
	v := viper.New()

	// Set defaults
	setDefaults(v)

	// Read config file if specified
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	// Environment variables; RAG_API_URL is the one knob deployments set
	v.SetEnvPrefix("SMARTRAG")
	v.AutomaticEnv()
	if err := v.BindEnv("backend.base_url", "RAG_API_URL"); err != nil {
		return nil, err
	}

	// Read config
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		// Config file not found, use defaults
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8501)

	// In-cluster address of the rag_core service
	v.SetDefault("backend.base_url", "http://rag_core:8000")

	v.SetDefault("storage.uploads", "/app/data/uploads")

	v.SetDefault("timeouts.health", 3*time.Second)
	v.SetDefault("timeouts.listing", 10*time.Second)
	v.SetDefault("timeouts.documents", 5*time.Second)
	v.SetDefault("timeouts.query", 120*time.Second)
	v.SetDefault("timeouts.process", 600*time.Second)
}

// Address returns the server address
func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}
