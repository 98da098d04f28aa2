package config

import (
	"fmt"
	"strings"

	"github.com/yndnr/arclink-go/internal/core/domain"
	"github.com/yndnr/arclink-go/internal/telemetry/logger"
)

// Verify validates the configuration.
func Verify(cfg *ClientConfig) error {
	if err := verifyServer(&cfg.Server); err != nil {
		return err
	}
	if strings.TrimSpace(cfg.Identity.User) == "" {
		return domain.ErrMissingArgument.WithDetails("identity.user")
	}
	if err := verifyRequest(&cfg.Request); err != nil {
		return err
	}
	if err := verifyKeystore(&cfg.Keystore); err != nil {
		return err
	}
	if _, err := logger.ParseLevel(cfg.Log.Level); err != nil {
		return domain.ErrInvalidArgument.WithDetails("log.level").WithCause(err)
	}
	switch strings.ToLower(cfg.Log.Format) {
	case "", "text", "console", "json":
	default:
		return domain.ErrInvalidArgument.WithDetails("log.format must be text or json")
	}
	return nil
}

func verifyServer(cfg *ServerSection) error {
	if cfg.Host == "" {
		return domain.ErrMissingArgument.WithDetails("server.host")
	}
	if cfg.Port <= 0 || cfg.Port > 65535 {
		return domain.ErrInvalidArgument.WithDetails(fmt.Sprintf("server.port %d out of range", cfg.Port))
	}
	if cfg.Timeout <= 0 {
		return domain.ErrInvalidArgument.WithDetails("server.timeout must be positive")
	}
	if cfg.CommandDelay < 0 {
		return domain.ErrInvalidArgument.WithDetails("server.command_delay must not be negative")
	}
	return nil
}

func verifyKeystore(cfg *KeystoreSection) error {
	if cfg.Iterations < 0 {
		return domain.ErrInvalidArgument.WithDetails("keystore.iterations must not be negative")
	}
	if _, err := NewDecryptor(cfg); err != nil {
		return domain.ErrInvalidArgument.WithDetails("keystore.cipher/kdf").WithCause(err)
	}
	return nil
}

func verifyRequest(cfg *RequestSection) error {
	if cfg.StatusInterval <= 0 {
		return domain.ErrInvalidArgument.WithDetails("request.status_interval must be positive")
	}
	if cfg.MaxStalledPolls < 1 {
		return domain.ErrInvalidArgument.WithDetails("request.max_stalled_polls must be at least 1")
	}
	return nil
}
