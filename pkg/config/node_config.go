// Package config provides file-based deployment configuration for a protocol
// node. Everything here can also be supplied through flags; the file form
// exists for deployments where the address set is long-lived.
package config

import (
	"fmt"
	"math/big"
	"os"

	"github.com/autometa/autometa/pkg/node"
	"github.com/ethereum/go-ethereum/common"
	"gopkg.in/yaml.v3"
)

// NodeConfigFile is the structure of the node.yaml deployment file.
type NodeConfigFile struct {
	Admin         string   `yaml:"admin"`
	Escrow        string   `yaml:"escrow"`
	Executor      string   `yaml:"executor"`
	Workers       []string `yaml:"workers"`
	ProjectAdmins []string `yaml:"project_admins"`

	// Genesis maps account addresses to wei amounts (decimal strings)
	// minted into the native ledger at wiring time.
	Genesis map[string]string `yaml:"genesis"`

	Price PriceConfigFile `yaml:"price"`
}

// PriceConfigFile configures the optional price feed section.
type PriceConfigFile struct {
	FeedURL        string   `yaml:"feed_url"`
	RedisURL       string   `yaml:"redis_url"`
	TrackedSymbols []string `yaml:"tracked_symbols"`
}

// LoadNodeConfig reads and validates a node.yaml file.
func LoadNodeConfig(filepath string) (*NodeConfigFile, error) {
	data, err := os.ReadFile(filepath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", filepath, err)
	}

	var cfg NodeConfigFile

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", filepath, err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid config file %s: %w", filepath, err)
	}

	return &cfg, nil
}

// NodeConfig converts the file form into the wiring config.
func (c *NodeConfigFile) NodeConfig() node.Config {
	genesis := make([]node.GenesisBalance, 0, len(c.Genesis))

	for addr, amount := range c.Genesis {
		wei, _ := new(big.Int).SetString(amount, 10)
		genesis = append(genesis, node.GenesisBalance{
			Address: common.HexToAddress(addr),
			Amount:  wei,
		})
	}

	return node.Config{
		Admin:         common.HexToAddress(c.Admin),
		Escrow:        common.HexToAddress(c.Escrow),
		Executor:      common.HexToAddress(c.Executor),
		Workers:       toAddresses(c.Workers),
		ProjectAdmins: toAddresses(c.ProjectAdmins),
		Genesis:       genesis,
	}
}

func (c *NodeConfigFile) validate() error {
	for name, value := range map[string]string{
		"admin":    c.Admin,
		"escrow":   c.Escrow,
		"executor": c.Executor,
	} {
		if !common.IsHexAddress(value) {
			return fmt.Errorf("%s is not a hex address: %q", name, value)
		}
	}

	for _, value := range c.Workers {
		if !common.IsHexAddress(value) {
			return fmt.Errorf("worker is not a hex address: %q", value)
		}
	}

	for _, value := range c.ProjectAdmins {
		if !common.IsHexAddress(value) {
			return fmt.Errorf("project admin is not a hex address: %q", value)
		}
	}

	for addr, amount := range c.Genesis {
		if !common.IsHexAddress(addr) {
			return fmt.Errorf("genesis account is not a hex address: %q", addr)
		}

		wei, ok := new(big.Int).SetString(amount, 10)
		if !ok || wei.Sign() <= 0 {
			return fmt.Errorf("genesis amount for %s is not a positive wei amount: %q", addr, amount)
		}
	}

	return nil
}

func toAddresses(values []string) []common.Address {
	addresses := make([]common.Address, 0, len(values))

	for _, value := range values {
		addresses = append(addresses, common.HexToAddress(value))
	}

	return addresses
}
