// Package config provides configuration loading and management for
// sheetgate.
package config

import "github.com/sheetgate/sheetgate/internal/model"

// Config is the root configuration.
type Config struct {
	Budgets         Budgets     `json:"budgets"                    mapstructure:"budgets"`
	DefaultPlatform string      `json:"default_platform,omitempty" mapstructure:"default_platform"`
	Store           StoreConfig `json:"store,omitempty"            mapstructure:"store"`
}

// Budgets defines run limits.
type Budgets struct {
	MaxIterations int `json:"max_iterations" mapstructure:"max_iterations"`
}

// StoreConfig locates the host-side run store.
type StoreConfig struct {
	Path string `json:"path,omitempty" mapstructure:"path"`
}

// Default returns the configuration used when no config file exists.
func Default() Config {
	return Config{
		Budgets:         Budgets{MaxIterations: model.DefaultMaxIterations},
		DefaultPlatform: string(model.PlatformGoogleSheets),
	}
}

// Platform resolves the configured default artifact platform.
func (c Config) Platform() model.Platform {
	return model.ParsePlatform(c.DefaultPlatform, model.PlatformGoogleSheets)
}
