package main

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// Config is the trustd TOML configuration.
type Config struct {
	// ListenAddr is the API listen address.
	ListenAddr string `toml:"listen_addr"`

	// StorageURI selects the trust state backend.
	StorageURI string `toml:"storage_uri"`

	// AuditLog is the path of the append-only JSONL audit trail. Empty
	// disables the file sink; audit events still reach the process log.
	AuditLog string `toml:"audit_log"`

	Anchor    AnchorConfig    `toml:"anchor"`
	Transport TransportConfig `toml:"transport"`
}

// AnchorConfig enables on-chain anchoring of applied manifests.
type AnchorConfig struct {
	RPCAddr    string `toml:"rpc_addr"`
	PrivateKey string `toml:"private_key"`
}

// TransportConfig enables co-signer notification. Static endpoints and SRV
// discovery can be combined; both feed the same publisher.
type TransportConfig struct {
	Endpoints []string `toml:"endpoints"`
	SRVDomain string   `toml:"srv_domain"`
	DNSServer string   `toml:"dns_server"`
	// NotifyPath is appended to SRV-resolved hosts.
	NotifyPath string `toml:"notify_path"`
}

func defaultConfig() Config {
	return Config{
		ListenAddr: "127.0.0.1:8080",
		StorageURI: "memory://",
	}
}

func loadConfig(path string) (Config, error) {
	cfg := defaultConfig()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config file: %w", err)
	}
	return cfg, nil
}
