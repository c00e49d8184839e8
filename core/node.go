package core

import (
	"errors"
	"sync"

	"swapd/core/events"
	"swapd/core/state"
	"swapd/core/types"
	"swapd/crypto"
	"swapd/native/escrow"
	"swapd/native/token"
	"swapd/storage"
)

// ErrNoOpenRecord is returned by record queries when the derivation namespace
// holds no open trade.
var ErrNoOpenRecord = errors.New("core: no open record for namespace")

// Node wires storage, the state manager and the engines together and gives
// instruction execution its atomicity: every submitted instruction either
// commits in full or leaves the store untouched. The node's mutex stands in
// for the runtime's exclusive per-account locking; at most one execution
// holds the state at a time.
type Node struct {
	mu      sync.Mutex
	db      storage.Database
	state   *state.Manager
	tokens  *token.Engine
	escrow  *escrow.Engine
	buffer  *events.Buffer
	emitter events.Emitter
}

// NewNode constructs a node over the given store.
func NewNode(db storage.Database) *Node {
	manager := state.NewManager(db)
	tokens := token.NewEngine()
	tokens.SetState(manager)
	escrowEngine := escrow.NewEngine(tokens)
	escrowEngine.SetState(manager)
	buffer := events.NewBuffer()
	escrowEngine.SetEmitter(buffer)
	return &Node{
		db:      db,
		state:   manager,
		tokens:  tokens,
		escrow:  escrowEngine,
		buffer:  buffer,
		emitter: events.NoopEmitter{},
	}
}

// SetEmitter configures where committed events are forwarded. Events from
// failed executions are never forwarded.
func (n *Node) SetEmitter(emitter events.Emitter) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if emitter == nil {
		n.emitter = events.NoopEmitter{}
		return
	}
	n.emitter = emitter
}

// SubmitInstruction executes one escrow instruction atomically. On failure
// the write buffer is discarded and the caller sees a single error; nothing
// is persisted.
func (n *Node) SubmitInstruction(ins escrow.Instruction) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if err := n.escrow.Execute(ins); err != nil {
		n.state.Discard()
		n.buffer.Drain()
		return err
	}
	if err := n.state.Commit(); err != nil {
		n.state.Discard()
		n.buffer.Drain()
		return err
	}
	for _, evt := range n.buffer.Drain() {
		n.emitter.Emit(evt)
	}
	return nil
}

// EscrowRecord returns the open record for the (maker, asset-X class)
// namespace along with its derived address.
func (n *Node) EscrowRecord(maker, assetX crypto.Address) (*escrow.Record, crypto.Address, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	recordAddr, _, err := escrow.RecordAddress(maker, assetX)
	if err != nil {
		return nil, crypto.Address{}, err
	}
	envelope, err := n.state.GetAccount(recordAddr)
	if err != nil {
		return nil, recordAddr, err
	}
	if envelope.IsEmpty() {
		return nil, recordAddr, ErrNoOpenRecord
	}
	record := new(escrow.Record)
	if err := record.UnmarshalBinary(envelope.Data); err != nil {
		return nil, recordAddr, err
	}
	return record, recordAddr, nil
}

// HoldingBalance resolves the canonical holding account for (wallet, mint)
// and returns its token balance together with the resolved address.
func (n *Node) HoldingBalance(wallet, mint crypto.Address) (uint64, crypto.Address, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	addr, err := token.AssociatedAddress(wallet, mint)
	if err != nil {
		return 0, crypto.Address{}, err
	}
	balance, err := n.tokens.Balance(addr)
	if err != nil {
		return 0, addr, err
	}
	return balance, addr, nil
}

// NativeBalance returns the native funding balance of an address.
func (n *Node) NativeBalance(addr crypto.Address) (uint64, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	account, err := n.state.GetAccount(addr)
	if err != nil {
		return 0, err
	}
	if account == nil {
		return 0, nil
	}
	return account.Balance, nil
}

// Tokens exposes the token ledger engine for genesis wiring and tests.
func (n *Node) Tokens() *token.Engine { return n.tokens }

// State exposes the state manager for genesis wiring and tests.
func (n *Node) State() *state.Manager { return n.state }

// Close releases the underlying store.
func (n *Node) Close() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.db.Close()
}

// ensureWallet allocates a plain wallet account when missing.
func (n *Node) ensureWallet(addr crypto.Address, balance uint64) error {
	account, err := n.state.GetAccount(addr)
	if err != nil {
		return err
	}
	if account != nil {
		return nil
	}
	return n.state.PutAccount(addr, &types.Account{Owner: token.SystemOwner, Balance: balance})
}
