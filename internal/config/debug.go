package config

import "os"

// LoadDebugConfigFromEnv applies KONSILIUM_DEBUG_* overrides on top of cfg.
func LoadDebugConfigFromEnv(cfg DebugConfig) DebugConfig {
	if os.Getenv("KONSILIUM_DEBUG_LOG_REQUESTS") == "1" {
		cfg.LogRequests = true
	}
	if os.Getenv("KONSILIUM_DEBUG_LOG_RESPONSES") == "1" {
		cfg.LogResponses = true
	}
	if os.Getenv("KONSILIUM_DEBUG_VALIDATE_ROLES") == "0" {
		cfg.ValidateRoles = false
	}
	if dir := os.Getenv("KONSILIUM_DEBUG_LOG_DIRECTORY"); dir != "" {
		cfg.LogDirectory = expandPath(dir)
	}
	return cfg
}
