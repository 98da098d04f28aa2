package config

import "time"

// ClientConfig is the configuration of arclink-cli.
type ClientConfig struct {
	Server   ServerSection   `koanf:"server" yaml:"server" json:"server"`
	Identity IdentitySection `koanf:"identity" yaml:"identity" json:"identity"`
	Keystore KeystoreSection `koanf:"keystore" yaml:"keystore" json:"keystore"`
	Request  RequestSection  `koanf:"request" yaml:"request" json:"request"`
	Log      LogSection      `koanf:"log" yaml:"log" json:"log"`
	Metrics  MetricsSection  `koanf:"metrics" yaml:"metrics" json:"metrics"`
}

// ServerSection is the initial archive node.
type ServerSection struct {
	Host         string        `koanf:"host" yaml:"host" json:"host"`
	Port         int           `koanf:"port" yaml:"port" json:"port"`
	Timeout      time.Duration `koanf:"timeout" yaml:"timeout" json:"timeout"`
	CommandDelay time.Duration `koanf:"command_delay" yaml:"command_delay" json:"command_delay"`
}

// IdentitySection is sent during the handshake.
type IdentitySection struct {
	User        string `koanf:"user" yaml:"user" json:"user"`
	Password    string `koanf:"password" yaml:"password" json:"password"`
	Institution string `koanf:"institution" yaml:"institution" json:"institution"`
}

// KeystoreSection holds decryption passphrases by DCID and the container
// format the archives encrypt with.
type KeystoreSection struct {
	File string            `koanf:"file" yaml:"file" json:"file"`
	Keys map[string]string `koanf:"keys" yaml:"keys" json:"keys"`
	// Cipher is des-cbc (archive default) or aes-256-cbc.
	Cipher string `koanf:"cipher" yaml:"cipher" json:"cipher"`
	// KDF is md5 (EVP_BytesToKey) or pbkdf2.
	KDF string `koanf:"kdf" yaml:"kdf" json:"kdf"`
	// Iterations applies to pbkdf2; zero means the openssl default.
	Iterations int `koanf:"iterations" yaml:"iterations" json:"iterations"`
}

// RequestSection tunes the request cycle.
type RequestSection struct {
	StatusInterval   time.Duration `koanf:"status_interval" yaml:"status_interval" json:"status_interval"`
	MaxStalledPolls  int           `koanf:"max_stalled_polls" yaml:"max_stalled_polls" json:"max_stalled_polls"`
	Route            bool          `koanf:"route" yaml:"route" json:"route"`
	TryAllCandidates bool          `koanf:"try_all_candidates" yaml:"try_all_candidates" json:"try_all_candidates"`
}

// LogSection configures the logger.
type LogSection struct {
	Level   string `koanf:"level" yaml:"level" json:"level"`
	Format  string `koanf:"format" yaml:"format" json:"format"`
	Verbose bool   `koanf:"verbose" yaml:"verbose" json:"verbose"`
}

// MetricsSection configures the Prometheus textfile export.
type MetricsSection struct {
	Textfile string `koanf:"textfile" yaml:"textfile" json:"textfile"`
}
