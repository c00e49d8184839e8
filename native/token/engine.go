package token

import (
	"fmt"
	"math"

	"swapd/core/types"
	"swapd/crypto"
)

// SystemOwner marks plain wallet accounts that only carry a native balance.
var SystemOwner = crypto.ModuleAddress("system")

type engineState interface {
	GetAccount(crypto.Address) (*types.Account, error)
	PutAccount(crypto.Address, *types.Account) error
	DeleteAccount(crypto.Address) error
}

// Authority identifies who is asking the ledger to move or close a balance.
// A wallet authority is a transaction signer; a derived authority is a
// program's reconstructed signing capability for a keyless address. The
// derived form is resolved fresh on every use, it is never stored.
type Authority struct {
	wallet  crypto.Address
	derived *crypto.DerivedSigner
}

// WalletAuthority wraps a transaction-signer address. Callers are responsible
// for having checked the signature before invoking the ledger.
func WalletAuthority(addr crypto.Address) Authority {
	return Authority{wallet: addr}
}

// DerivedAuthority wraps a reconstructed signing capability.
func DerivedAuthority(signer crypto.DerivedSigner) Authority {
	s := signer
	return Authority{derived: &s}
}

// Resolve returns the address the authority stands for. For derived
// authorities the address is recomputed from the seed tuple, which is what
// proves the caller controls it.
func (a Authority) Resolve() (crypto.Address, error) {
	if a.derived != nil {
		return a.derived.Address()
	}
	return a.wallet, nil
}

// Engine implements the token ledger primitives the escrow program calls:
// create, transfer, close. It is deliberately thin; policy (who may ask for
// what) belongs to the calling program.
type Engine struct {
	state engineState
}

// NewEngine creates a token engine without a state backend. Callers must wire
// one via SetState before use.
func NewEngine() *Engine {
	return &Engine{}
}

// SetState configures the state backend used by the engine.
func (e *Engine) SetState(state engineState) { e.state = state }

func (e *Engine) requireState() error {
	if e == nil || e.state == nil {
		return ErrNilState
	}
	return nil
}

// CreateMint registers a new asset class. Used at genesis and in tests; the
// escrow program only ever reads mints.
func (e *Engine) CreateMint(addr, authority crypto.Address, decimals uint8) error {
	if err := e.requireState(); err != nil {
		return err
	}
	existing, err := e.state.GetAccount(addr)
	if err != nil {
		return err
	}
	if !existing.IsEmpty() {
		return fmt.Errorf("%w: %s", ErrAccountExists, addr.Hex())
	}
	mint := &Mint{Authority: authority, Decimals: decimals}
	data, err := mint.MarshalBinary()
	if err != nil {
		return err
	}
	return e.state.PutAccount(addr, &types.Account{
		Owner:   ModuleID,
		Balance: types.RentMinimum(MintLen),
		Data:    data,
	})
}

// GetMint loads and decodes the asset class stored at addr.
func (e *Engine) GetMint(addr crypto.Address) (*Mint, error) {
	if err := e.requireState(); err != nil {
		return nil, err
	}
	account, err := e.state.GetAccount(addr)
	if err != nil {
		return nil, err
	}
	if account.IsEmpty() {
		return nil, fmt.Errorf("%w: %s", ErrMintNotFound, addr.Hex())
	}
	if account.Owner != ModuleID {
		return nil, fmt.Errorf("%w: %s", ErrWrongOwner, addr.Hex())
	}
	mint := new(Mint)
	if err := mint.UnmarshalBinary(account.Data); err != nil {
		return nil, err
	}
	return mint, nil
}

// GetAccount loads and decodes the holding account stored at addr.
func (e *Engine) GetAccount(addr crypto.Address) (*Account, error) {
	if err := e.requireState(); err != nil {
		return nil, err
	}
	account, err := e.state.GetAccount(addr)
	if err != nil {
		return nil, err
	}
	if account.IsEmpty() {
		return nil, fmt.Errorf("%w: %s", ErrAccountNotFound, addr.Hex())
	}
	if account.Owner != ModuleID {
		return nil, fmt.Errorf("%w: %s", ErrWrongOwner, addr.Hex())
	}
	holding := new(Account)
	if err := holding.UnmarshalBinary(account.Data); err != nil {
		return nil, err
	}
	return holding, nil
}

// InitializeAccount allocates a holding account for mint at addr with the
// given transfer authority. The payer funds the allocation minimum.
func (e *Engine) InitializeAccount(addr, mint, authority, payer crypto.Address) error {
	if err := e.requireState(); err != nil {
		return err
	}
	if _, err := e.GetMint(mint); err != nil {
		return err
	}
	existing, err := e.state.GetAccount(addr)
	if err != nil {
		return err
	}
	if !existing.IsEmpty() {
		return fmt.Errorf("%w: %s", ErrAccountExists, addr.Hex())
	}
	rent := types.RentMinimum(AccountLen)
	if err := e.debitNative(payer, rent); err != nil {
		return err
	}
	holding := &Account{Mint: mint, Authority: authority}
	data, err := holding.MarshalBinary()
	if err != nil {
		return err
	}
	return e.state.PutAccount(addr, &types.Account{
		Owner:   ModuleID,
		Balance: rent,
		Data:    data,
	})
}

// CreateAssociatedAccount allocates the canonical holding account for
// (wallet, mint), funded by payer, and returns its address. The wallet is the
// transfer authority of the created account.
func (e *Engine) CreateAssociatedAccount(payer, wallet, mint crypto.Address) (crypto.Address, error) {
	addr, err := AssociatedAddress(wallet, mint)
	if err != nil {
		return crypto.Address{}, err
	}
	if err := e.InitializeAccount(addr, mint, wallet, payer); err != nil {
		return crypto.Address{}, err
	}
	return addr, nil
}

// MintTo issues new supply into the destination holding account. Only the
// mint authority may issue.
func (e *Engine) MintTo(mintAddr, dest crypto.Address, authority Authority, amount uint64) error {
	if err := e.requireState(); err != nil {
		return err
	}
	mint, err := e.GetMint(mintAddr)
	if err != nil {
		return err
	}
	resolved, err := authority.Resolve()
	if err != nil {
		return err
	}
	if resolved != mint.Authority {
		return fmt.Errorf("%w: mint %s", ErrWrongAuthority, mintAddr.Hex())
	}
	holding, err := e.GetAccount(dest)
	if err != nil {
		return err
	}
	if holding.Mint != mintAddr {
		return fmt.Errorf("%w: destination %s", ErrWrongMint, dest.Hex())
	}
	if amount > math.MaxUint64-mint.Supply || amount > math.MaxUint64-holding.Amount {
		return ErrAmountOverflow
	}
	mint.Supply += amount
	holding.Amount += amount
	if err := e.putMint(mintAddr, mint); err != nil {
		return err
	}
	return e.putHolding(dest, holding)
}

// Transfer moves amount between two holding accounts of the same asset
// class. The presented authority must match the source account's recorded
// transfer authority.
func (e *Engine) Transfer(from, to crypto.Address, authority Authority, amount uint64) error {
	if err := e.requireState(); err != nil {
		return err
	}
	source, err := e.GetAccount(from)
	if err != nil {
		return err
	}
	dest, err := e.GetAccount(to)
	if err != nil {
		return err
	}
	if source.Mint != dest.Mint {
		return fmt.Errorf("%w: %s -> %s", ErrWrongMint, from.Hex(), to.Hex())
	}
	resolved, err := authority.Resolve()
	if err != nil {
		return err
	}
	if resolved != source.Authority {
		return fmt.Errorf("%w: source %s", ErrWrongAuthority, from.Hex())
	}
	if source.Amount < amount {
		return fmt.Errorf("%w: have %d, need %d", ErrInsufficientFunds, source.Amount, amount)
	}
	if amount > math.MaxUint64-dest.Amount {
		return ErrAmountOverflow
	}
	if from == to {
		return nil
	}
	source.Amount -= amount
	dest.Amount += amount
	if err := e.putHolding(from, source); err != nil {
		return err
	}
	return e.putHolding(to, dest)
}

// CloseAccount reclaims an emptied holding account. The recorded authority
// must be presented, the token balance must be zero, and the account's full
// native balance is forwarded to the destination wallet.
func (e *Engine) CloseAccount(addr, destination crypto.Address, authority Authority) error {
	if err := e.requireState(); err != nil {
		return err
	}
	holding, err := e.GetAccount(addr)
	if err != nil {
		return err
	}
	resolved, err := authority.Resolve()
	if err != nil {
		return err
	}
	if resolved != holding.Authority {
		return fmt.Errorf("%w: account %s", ErrWrongAuthority, addr.Hex())
	}
	if holding.Amount != 0 {
		return fmt.Errorf("%w: account %s holds %d", ErrNonZeroBalance, addr.Hex(), holding.Amount)
	}
	envelope, err := e.state.GetAccount(addr)
	if err != nil {
		return err
	}
	if err := e.creditNative(destination, envelope.Balance); err != nil {
		return err
	}
	return e.state.DeleteAccount(addr)
}

// Balance returns the token amount held at addr.
func (e *Engine) Balance(addr crypto.Address) (uint64, error) {
	holding, err := e.GetAccount(addr)
	if err != nil {
		return 0, err
	}
	return holding.Amount, nil
}

func (e *Engine) putMint(addr crypto.Address, mint *Mint) error {
	envelope, err := e.state.GetAccount(addr)
	if err != nil {
		return err
	}
	data, err := mint.MarshalBinary()
	if err != nil {
		return err
	}
	envelope.Data = data
	return e.state.PutAccount(addr, envelope)
}

func (e *Engine) putHolding(addr crypto.Address, holding *Account) error {
	envelope, err := e.state.GetAccount(addr)
	if err != nil {
		return err
	}
	data, err := holding.MarshalBinary()
	if err != nil {
		return err
	}
	envelope.Data = data
	return e.state.PutAccount(addr, envelope)
}

func (e *Engine) debitNative(payer crypto.Address, amount uint64) error {
	account, err := e.state.GetAccount(payer)
	if err != nil {
		return err
	}
	if account == nil || account.Balance < amount {
		return fmt.Errorf("%w: payer %s", ErrInsufficientRent, payer.Hex())
	}
	account.Balance -= amount
	return e.state.PutAccount(payer, account)
}

func (e *Engine) creditNative(dest crypto.Address, amount uint64) error {
	account, err := e.state.GetAccount(dest)
	if err != nil {
		return err
	}
	if account == nil {
		account = &types.Account{Owner: SystemOwner}
	}
	if amount > math.MaxUint64-account.Balance {
		return ErrAmountOverflow
	}
	account.Balance += amount
	return e.state.PutAccount(dest, account)
}
