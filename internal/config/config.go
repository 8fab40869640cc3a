// Package config loads and validates trader configuration from YAML.
package config

import "time"

// TraderConfig is the root configuration for a trader instance.
type TraderConfig struct {
	Wallet   WalletConfig   `yaml:"wallet"`
	API      APIConfig      `yaml:"api"`
	Stream   StreamConfig   `yaml:"stream"`
	Database DatabaseConfig `yaml:"database"`
	Trading  TradingConfig  `yaml:"trading"`
}

// WalletConfig identifies the trading wallet.
type WalletConfig struct {
	Address string `yaml:"address"`
}

// APIConfig holds partner REST API settings.
type APIConfig struct {
	BaseURL    string        `yaml:"base_url"`
	APIKey     string        `yaml:"api_key"`
	Timeout    time.Duration `yaml:"timeout"`
	MaxRetries int           `yaml:"max_retries"`
}

// StreamConfig holds market event feed settings.
type StreamConfig struct {
	URL          string        `yaml:"url"`
	BufferSize   int           `yaml:"buffer_size"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	PingTimeout  time.Duration `yaml:"ping_timeout"`
}

// DatabaseConfig holds the journal database. Journaling is optional: an
// empty host disables it.
type DatabaseConfig struct {
	Journal DBConfig `yaml:"journal"`
}

// DBConfig holds a single database connection.
type DBConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"ssl_mode"`
	MaxConns int    `yaml:"max_conns"`
	MinConns int    `yaml:"min_conns"`
}

// Enabled reports whether a journal database is configured at all.
func (db DBConfig) Enabled() bool {
	return db.Host != ""
}

// TradingConfig holds settlement orchestration settings.
type TradingConfig struct {
	// ResolveDelays is the escrow-identifier retry schedule against the
	// secondary index. Empty means the built-in default schedule.
	ResolveDelays []time.Duration `yaml:"resolve_delays"`
}
