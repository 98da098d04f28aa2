package config

import (
	"time"

	"github.com/yndnr/arclink-go/pkg/crypto/openssl"
)

// Default configuration values.
const (
	DefaultHost         = "webdc.eu"
	DefaultPort         = 18002
	DefaultTimeout      = 20 * time.Second
	DefaultUser         = "arclink-go client"
	DefaultInstitution  = "Anonymous"
	DefaultStatusPeriod = 500 * time.Millisecond
	DefaultStalledPolls = 50

	DefaultLogLevel  = "warn"
	DefaultLogFormat = "text"
)

// Default returns the default client configuration.
func Default() *ClientConfig {
	return &ClientConfig{
		Server: ServerSection{
			Host:    DefaultHost,
			Port:    DefaultPort,
			Timeout: DefaultTimeout,
		},
		Identity: IdentitySection{
			User:        DefaultUser,
			Institution: DefaultInstitution,
		},
		Keystore: KeystoreSection{
			Keys:   make(map[string]string),
			Cipher: string(openssl.CipherDESCBC),
			KDF:    string(openssl.KDFMD5),
		},
		Request: RequestSection{
			StatusInterval:  DefaultStatusPeriod,
			MaxStalledPolls: DefaultStalledPolls,
			Route:           true,
		},
		Log: LogSection{
			Level:  DefaultLogLevel,
			Format: DefaultLogFormat,
		},
	}
}
