// Package config loads runtime configuration for the three binaries.
//
// Everything comes from the environment; an optional YAML file named by
// CHESSPRESSO_CONFIG is read first and the environment overrides it. Each
// binary validates only the fields it needs.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// AppConfig carries the settings of all binaries; unused fields stay empty.
type AppConfig struct {
	// Rollup application.
	RollupServerURL string `yaml:"rollup_server_url"`
	DatabaseURL     string `yaml:"database_url"`

	// Client daemon and CLI.
	Address string `yaml:"address"`
	DBPath  string `yaml:"db_path"`
	NodeURL string `yaml:"node_url"`

	// Base layer submission.
	RPCURL          string `yaml:"rpc_url"`
	PrivateKey      string `yaml:"private_key"`
	DappAddress     string `yaml:"dapp_address"`
	InputBoxAddress string `yaml:"input_box_address"`
}

// Contract addresses of the default local deployment.
const (
	DefaultDappAddress     = "0xab7528bb862fB57E8A2BCd567a2e929a0Be56a5e"
	DefaultInputBoxAddress = "0x59b22D57D4f067708AB0c00552767405926dc768"
	DefaultRPCURL          = "http://localhost:8545"
	DefaultNodeURL         = "http://localhost:8080"
)

// Load builds the configuration from CHESSPRESSO_CONFIG (if set) and the
// environment.
func Load() (*AppConfig, error) {
	cfg := &AppConfig{
		RPCURL:          DefaultRPCURL,
		NodeURL:         DefaultNodeURL,
		DappAddress:     DefaultDappAddress,
		InputBoxAddress: DefaultInputBoxAddress,
	}

	if path := strings.TrimSpace(os.Getenv("CHESSPRESSO_CONFIG")); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	override(&cfg.RollupServerURL, "ROLLUP_HTTP_SERVER_URL")
	override(&cfg.DatabaseURL, "CHESSPRESSO_DATABASE_URL")
	override(&cfg.Address, "CHESSPRESSO_ADDRESS")
	override(&cfg.DBPath, "CHESSPRESSO_DB")
	override(&cfg.NodeURL, "CHESSPRESSO_NODE_URL")
	override(&cfg.RPCURL, "CHESSPRESSO_RPC")
	override(&cfg.PrivateKey, "CHESSPRESSO_PRIVATE_KEY")
	override(&cfg.DappAddress, "CHESSPRESSO_DAPP_ADDRESS")
	override(&cfg.InputBoxAddress, "CHESSPRESSO_INPUT_BOX_ADDRESS")

	return cfg, nil
}

func override(dst *string, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*dst = v
	}
}

// RequireRollupServer validates the fields the rollup application needs.
func (c *AppConfig) RequireRollupServer() error {
	if c.RollupServerURL == "" {
		return errors.New("ROLLUP_HTTP_SERVER_URL is required")
	}
	return nil
}

// LocalDBPath resolves the client-side database path for the given account,
// defaulting to ~/.chesspresso/<address>.sqlite.
func (c *AppConfig) LocalDBPath(address string) (string, error) {
	if c.DBPath != "" {
		return c.DBPath, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home: %w", err)
	}
	return filepath.Join(home, ".chesspresso", address+".sqlite"), nil
}
