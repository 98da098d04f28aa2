package config

import "github.com/yndnr/arclink-go/internal/telemetry/logger"

// Sanitize returns a copy of the config with the password and keystore
// passphrases masked, for printing.
func Sanitize(cfg *ClientConfig) *ClientConfig {
	sanitized := *cfg

	if sanitized.Identity.Password != "" {
		sanitized.Identity.Password = logger.MaskSecret(sanitized.Identity.Password)
	}

	if len(cfg.Keystore.Keys) > 0 {
		keys := make(map[string]string, len(cfg.Keystore.Keys))
		for id, pw := range cfg.Keystore.Keys {
			keys[id] = logger.MaskSecret(pw)
		}
		sanitized.Keystore.Keys = keys
	}

	return &sanitized
}
