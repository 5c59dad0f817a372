package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"ledgerd/blockchain"
	"ledgerd/p2p"
)

// Config represents the application configuration.
type Config struct {
	Node NodeConfig `yaml:"node"`
	P2P  P2PConfig  `yaml:"p2p"`
	API  APIConfig  `yaml:"api"`
}

// NodeConfig covers the ledger core.
type NodeConfig struct {
	// ID is the human-facing node identifier. Generated when empty.
	ID string `yaml:"id"`

	// Difficulty is the leading-zero-bit proof-of-work requirement. It
	// must match across the network; there is no retargeting.
	Difficulty uint64 `yaml:"difficulty"`
}

// P2PConfig covers the gossip transport.
type P2PConfig struct {
	ListenAddrs     []string `yaml:"listen_addrs"`
	Topic           string   `yaml:"topic"`
	MDNSServiceName string   `yaml:"mdns_service_name"`
	BootstrapPeers  []string `yaml:"bootstrap_peers"`
}

// APIConfig covers the optional HTTP surface. An empty Addr disables it.
type APIConfig struct {
	Addr string `yaml:"addr"`
}

// Default returns the zero-configuration setup: ephemeral TCP port, shared
// topic and mDNS name, no HTTP API.
func Default() *Config {
	return &Config{
		Node: NodeConfig{
			Difficulty: blockchain.DefaultDifficulty,
		},
		P2P: P2PConfig{
			ListenAddrs:     []string{"/ip4/0.0.0.0/tcp/0"},
			Topic:           p2p.DefaultTopic,
			MDNSServiceName: p2p.DefaultMDNSServiceName,
		},
	}
}

// Load reads configuration from a YAML file over the defaults. A missing
// file is fine; the defaults stand.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	if cfg.Node.Difficulty == 0 {
		cfg.Node.Difficulty = blockchain.DefaultDifficulty
	}
	return cfg, nil
}
