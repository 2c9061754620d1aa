package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config holds the application's configuration.
type Config struct {
	Database struct {
		URL string `yaml:"url"`
	} `yaml:"database"`
	Model struct {
		Dir         string `yaml:"dir"`
		ONNXLibrary string `yaml:"onnx_library"`
	} `yaml:"model"`
	Auth struct {
		JWTSecret     string `yaml:"jwt_secret"`
		TokenTTLHours int64  `yaml:"token_ttl_hours"`
	} `yaml:"auth"`
	Alerts struct {
		Enabled          bool    `yaml:"enabled"`
		TelegramBotToken string  `yaml:"telegram_bot_token"`
		ChatID           int64   `yaml:"chat_id"`
		MinConfidence    float64 `yaml:"min_confidence"`
	} `yaml:"alerts"`
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`
}

// LoadConfig reads configuration from the specified YAML file.
func LoadConfig(configPath string) (*Config, error) {
	config := &Config{}

	file, err := os.Open(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer file.Close()

	decoder := yaml.NewDecoder(file)
	if err := decoder.Decode(config); err != nil {
		return nil, fmt.Errorf("failed to decode config file: %w", err)
	}

	if config.Auth.TokenTTLHours <= 0 {
		config.Auth.TokenTTLHours = 24
	}

	return config, nil
}
