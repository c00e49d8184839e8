package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"swapd/core"
	"swapd/crypto"
)

type Config struct {
	RPCAddress  string `toml:"RPCAddress"`
	DataDir     string `toml:"DataDir"`
	NetworkName string `toml:"NetworkName"`

	GenesisAccounts []GenesisAccount `toml:"GenesisAccounts,omitempty"`
	GenesisMints    []GenesisMint    `toml:"GenesisMints,omitempty"`
}

// GenesisAccount is the on-disk form of a seeded wallet; the address is
// bech32.
type GenesisAccount struct {
	Address string `toml:"Address"`
	Balance uint64 `toml:"Balance"`
}

// GenesisMint is the on-disk form of a seeded asset class.
type GenesisMint struct {
	Address   string `toml:"Address"`
	Authority string `toml:"Authority"`
	Decimals  uint8  `toml:"Decimals"`
}

// Load loads the configuration from the given path, writing a default file
// when none exists yet.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}

	if strings.TrimSpace(cfg.RPCAddress) == "" {
		cfg.RPCAddress = ":8080"
	}
	if strings.TrimSpace(cfg.DataDir) == "" {
		cfg.DataDir = "./swapd-data"
	}
	if strings.TrimSpace(cfg.NetworkName) == "" {
		cfg.NetworkName = "swapd-local"
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that every genesis entry carries a decodable address.
func (c *Config) Validate() error {
	for i, account := range c.GenesisAccounts {
		if _, err := crypto.DecodeAddress(strings.TrimSpace(account.Address)); err != nil {
			return fmt.Errorf("genesis account %d: %w", i, err)
		}
	}
	for i, mint := range c.GenesisMints {
		if _, err := crypto.DecodeAddress(strings.TrimSpace(mint.Address)); err != nil {
			return fmt.Errorf("genesis mint %d: %w", i, err)
		}
		if _, err := crypto.DecodeAddress(strings.TrimSpace(mint.Authority)); err != nil {
			return fmt.Errorf("genesis mint %d authority: %w", i, err)
		}
	}
	return nil
}

// Genesis converts the on-disk genesis entries into the node's form.
func (c *Config) Genesis() (core.Genesis, error) {
	genesis := core.Genesis{}
	for _, account := range c.GenesisAccounts {
		addr, err := crypto.DecodeAddress(strings.TrimSpace(account.Address))
		if err != nil {
			return core.Genesis{}, err
		}
		genesis.Accounts = append(genesis.Accounts, core.GenesisAccount{
			Address: addr,
			Balance: account.Balance,
		})
	}
	for _, mint := range c.GenesisMints {
		addr, err := crypto.DecodeAddress(strings.TrimSpace(mint.Address))
		if err != nil {
			return core.Genesis{}, err
		}
		authority, err := crypto.DecodeAddress(strings.TrimSpace(mint.Authority))
		if err != nil {
			return core.Genesis{}, err
		}
		genesis.Mints = append(genesis.Mints, core.GenesisMint{
			Address:   addr,
			Authority: authority,
			Decimals:  mint.Decimals,
		})
	}
	return genesis, nil
}

// createDefault creates and saves a default configuration file.
func createDefault(path string) (*Config, error) {
	cfg := &Config{
		RPCAddress:  ":8080",
		DataDir:     "./swapd-data",
		NetworkName: "swapd-local",
	}
	if err := persist(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func persist(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_TRUNC|os.O_CREATE, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(cfg)
}
