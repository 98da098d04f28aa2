package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/yndnr/arclink-go/internal/core/domain"
	"github.com/yndnr/arclink-go/internal/core/service"
	"github.com/yndnr/arclink-go/internal/infra/confloader"
	"github.com/yndnr/arclink-go/pkg/crypto/openssl"
)

// DefaultConfigPath returns ~/.arclink/cli.yaml.
func DefaultConfigPath() string {
	homeDir, _ := os.UserHomeDir()
	return filepath.Join(homeDir, ".arclink", "cli.yaml")
}

// Load merges defaults, the config file, ARCLINK_* environment variables
// and overrides (dotted keys, usually from flags). With path empty the
// default path is used when it exists.
func Load(path string, overrides map[string]any) (*ClientConfig, error) {
	if path == "" {
		if p := DefaultConfigPath(); fileExists(p) {
			path = p
		}
	}

	cfg := Default()
	loader := confloader.NewLoader(
		confloader.WithConfigFile(path),
		confloader.WithOverrides(overrides),
	)
	if err := loader.Load(cfg); err != nil {
		return nil, err
	}
	if err := Verify(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// ToClientConfig converts the CLI configuration into the client options.
func ToClientConfig(cfg *ClientConfig) service.ClientConfig {
	return service.ClientConfig{
		Endpoint: domain.Endpoint{Host: cfg.Server.Host, Port: cfg.Server.Port},
		Credentials: domain.Credentials{
			User:        cfg.Identity.User,
			Password:    cfg.Identity.Password,
			Institution: cfg.Identity.Institution,
		},
		Timeout:          cfg.Server.Timeout,
		CommandDelay:     cfg.Server.CommandDelay,
		Trace:            cfg.Log.Verbose,
		StatusInterval:   cfg.Request.StatusInterval,
		MaxStalledPolls:  cfg.Request.MaxStalledPolls,
		Route:            cfg.Request.Route,
		TryAllCandidates: cfg.Request.TryAllCandidates,
	}
}

// NewDecryptor builds the payload decryptor of the keystore section.
func NewDecryptor(cfg *KeystoreSection) (*openssl.Decryptor, error) {
	return openssl.New(openssl.Options{
		Cipher:     openssl.CipherType(strings.ToLower(cfg.Cipher)),
		KDF:        openssl.KDF(strings.ToLower(cfg.KDF)),
		Iterations: cfg.Iterations,
	})
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
