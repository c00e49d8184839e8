package core

import (
	"fmt"

	"swapd/crypto"
)

// GenesisAccount seeds a wallet with a native funding balance.
type GenesisAccount struct {
	Address crypto.Address
	Balance uint64
}

// GenesisMint registers an asset class at startup.
type GenesisMint struct {
	Address   crypto.Address
	Authority crypto.Address
	Decimals  uint8
}

// Genesis describes the ledger state seeded when a data directory is first
// initialised.
type Genesis struct {
	Accounts []GenesisAccount
	Mints    []GenesisMint
}

// ApplyGenesis seeds wallets and mints. Already-present entries are left
// untouched, so reapplying the same genesis on restart is safe.
func (n *Node) ApplyGenesis(genesis Genesis) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	for _, account := range genesis.Accounts {
		if err := n.ensureWallet(account.Address, account.Balance); err != nil {
			n.state.Discard()
			return fmt.Errorf("genesis account %s: %w", account.Address.Hex(), err)
		}
	}
	for _, mint := range genesis.Mints {
		existing, err := n.state.GetAccount(mint.Address)
		if err != nil {
			n.state.Discard()
			return err
		}
		if !existing.IsEmpty() {
			continue
		}
		if err := n.tokens.CreateMint(mint.Address, mint.Authority, mint.Decimals); err != nil {
			n.state.Discard()
			return fmt.Errorf("genesis mint %s: %w", mint.Address.Hex(), err)
		}
	}
	return n.state.Commit()
}
