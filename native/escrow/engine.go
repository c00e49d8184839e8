package escrow

import (
	"fmt"
	"math"

	"swapd/core/events"
	"swapd/core/types"
	"swapd/crypto"
	"swapd/native/token"
)

type engineState interface {
	GetAccount(crypto.Address) (*types.Account, error)
	PutAccount(crypto.Address, *types.Account) error
	DeleteAccount(crypto.Address) error
}

type escrowEvent struct {
	evt *types.Event
}

func (e escrowEvent) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e escrowEvent) Event() *types.Event { return e.evt }

// Engine implements the escrow program: one validator/processor pair per
// operation, dispatched from the instruction envelope. Every operation runs
// its validation gauntlet to completion before the first mutation, so a
// caller that wraps Execute in a state write buffer gets all-or-nothing
// semantics.
type Engine struct {
	state   engineState
	tokens  *token.Engine
	emitter events.Emitter
}

// NewEngine creates an escrow engine bound to the token ledger collaborator,
// with a no-op emitter. Callers can override the emitter via SetEmitter.
func NewEngine(tokens *token.Engine) *Engine {
	return &Engine{
		tokens:  tokens,
		emitter: events.NoopEmitter{},
	}
}

// SetState configures the state backend used by the engine.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetEmitter configures the event emitter used by the engine. Passing nil
// resets the emitter to a no-op implementation.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

func (e *Engine) emit(event *types.Event) {
	if e == nil || e.emitter == nil || event == nil {
		return
	}
	e.emitter.Emit(escrowEvent{evt: event})
}

// Execute dispatches the instruction envelope on its selector byte. The
// selector set is closed; anything else is rejected.
func (e *Engine) Execute(ins Instruction) error {
	if len(ins.Data) == 0 {
		return fmt.Errorf("%w: empty instruction data", ErrInvalidArgument)
	}
	selector, payload := OpCode(ins.Data[0]), ins.Data[1:]
	switch selector {
	case OpMake:
		args, err := DecodeMakeArgs(payload)
		if err != nil {
			return err
		}
		return e.Make(ins.Accounts, args)
	case OpAccept:
		if len(payload) != 0 {
			return fmt.Errorf("%w: accept carries no payload", ErrInvalidArgument)
		}
		return e.Accept(ins.Accounts)
	case OpRefund:
		if len(payload) != 0 {
			return fmt.Errorf("%w: refund carries no payload", ErrInvalidArgument)
		}
		return e.Refund(ins.Accounts)
	default:
		return fmt.Errorf("%w: unknown selector %d", ErrInvalidArgument, selector)
	}
}

// --- Make ---

type makeContext struct {
	maker         crypto.Address
	record        crypto.Address
	assetX        crypto.Address
	assetY        crypto.Address
	makerHoldingX crypto.Address
	custody       crypto.Address
	bump          uint8
}

// Make opens an offer: it allocates the record at its derived address, sets
// up the custody account with the record as transfer authority, and moves the
// deposit in.
func (e *Engine) Make(accounts []AccountMeta, args MakeArgs) error {
	ctx, err := e.validateMake(accounts, args)
	if err != nil {
		return err
	}
	return e.processMake(ctx, args)
}

func (e *Engine) validateMake(accounts []AccountMeta, args MakeArgs) (*makeContext, error) {
	if e == nil || e.state == nil {
		return nil, fmt.Errorf("escrow engine: state not configured")
	}
	if len(accounts) < makeAccountLen {
		return nil, fmt.Errorf("%w: make needs %d accounts, got %d", ErrNotEnoughAccounts, makeAccountLen, len(accounts))
	}
	if args.Deposit == 0 {
		return nil, ErrZeroAmount
	}
	maker := accounts[makeIdxMaker]
	if !maker.Signer {
		return nil, fmt.Errorf("%w: maker", ErrMissingSignature)
	}
	ctx := &makeContext{
		maker:         maker.Address,
		record:        accounts[makeIdxRecord].Address,
		assetX:        accounts[makeIdxAssetX].Address,
		assetY:        accounts[makeIdxAssetY].Address,
		makerHoldingX: accounts[makeIdxMakerHoldingX].Address,
		custody:       accounts[makeIdxCustody].Address,
	}
	if err := e.validateMintAccount(ctx.assetX); err != nil {
		return nil, err
	}
	if err := e.validateMintAccount(ctx.assetY); err != nil {
		return nil, err
	}
	expectedHolding, err := token.AssociatedAddress(ctx.maker, ctx.assetX)
	if err != nil {
		return nil, err
	}
	if ctx.makerHoldingX != expectedHolding {
		return nil, fmt.Errorf("%w: maker asset-X holding account", ErrAddressMismatch)
	}
	derivedRecord, bump, err := RecordAddress(ctx.maker, ctx.assetX)
	if err != nil {
		return nil, err
	}
	if ctx.record != derivedRecord {
		return nil, fmt.Errorf("%w: record", ErrAddressMismatch)
	}
	ctx.bump = bump
	derivedCustody, err := CustodyAddress(derivedRecord, ctx.assetX)
	if err != nil {
		return nil, err
	}
	if ctx.custody != derivedCustody {
		return nil, fmt.Errorf("%w: custody", ErrAddressMismatch)
	}
	recordEnvelope, err := e.state.GetAccount(ctx.record)
	if err != nil {
		return nil, err
	}
	if !recordEnvelope.IsEmpty() {
		return nil, fmt.Errorf("%w: record", ErrAlreadyInitialized)
	}
	custodyEnvelope, err := e.state.GetAccount(ctx.custody)
	if err != nil {
		return nil, err
	}
	if !custodyEnvelope.IsEmpty() {
		return nil, fmt.Errorf("%w: custody", ErrAlreadyInitialized)
	}
	return ctx, nil
}

func (e *Engine) processMake(ctx *makeContext, args MakeArgs) error {
	record := &Record{
		Maker:   ctx.maker,
		AssetX:  ctx.assetX,
		AssetY:  ctx.assetY,
		Receive: args.Receive,
		Bump:    ctx.bump,
	}
	data, err := record.MarshalBinary()
	if err != nil {
		return err
	}
	rent := types.RentMinimum(RecordLen)
	if err := e.debitNative(ctx.maker, rent); err != nil {
		return err
	}
	if err := e.state.PutAccount(ctx.record, &types.Account{
		Owner:   ProgramID,
		Balance: rent,
		Data:    data,
	}); err != nil {
		return err
	}
	if _, err := e.tokens.CreateAssociatedAccount(ctx.maker, ctx.record, ctx.assetX); err != nil {
		return err
	}
	if err := e.tokens.Transfer(ctx.makerHoldingX, ctx.custody, token.WalletAuthority(ctx.maker), args.Deposit); err != nil {
		return err
	}
	e.emit(NewMadeEvent(ctx.record, record, args.Deposit))
	return nil
}

// --- Accept ---

type acceptContext struct {
	taker         crypto.Address
	maker         crypto.Address
	recordAddr    crypto.Address
	assetX        crypto.Address
	assetY        crypto.Address
	custody       crypto.Address
	takerHoldingX crypto.Address
	takerHoldingY crypto.Address
	makerHoldingY crypto.Address
	record        *Record
}

// Accept settles an offer atomically: asset Y moves from taker to maker, the
// full custody balance moves to the taker under the record's reconstructed
// signing capability, and both the custody account and the record are closed
// back to the maker.
func (e *Engine) Accept(accounts []AccountMeta) error {
	ctx, err := e.validateAccept(accounts)
	if err != nil {
		return err
	}
	return e.processAccept(ctx)
}

func (e *Engine) validateAccept(accounts []AccountMeta) (*acceptContext, error) {
	if e == nil || e.state == nil {
		return nil, fmt.Errorf("escrow engine: state not configured")
	}
	if len(accounts) < acceptAccountLen {
		return nil, fmt.Errorf("%w: accept needs %d accounts, got %d", ErrNotEnoughAccounts, acceptAccountLen, len(accounts))
	}
	taker := accounts[acceptIdxTaker]
	if !taker.Signer {
		return nil, fmt.Errorf("%w: taker", ErrMissingSignature)
	}
	ctx := &acceptContext{
		taker:         taker.Address,
		maker:         accounts[acceptIdxMaker].Address,
		recordAddr:    accounts[acceptIdxRecord].Address,
		assetX:        accounts[acceptIdxAssetX].Address,
		assetY:        accounts[acceptIdxAssetY].Address,
		custody:       accounts[acceptIdxCustody].Address,
		takerHoldingX: accounts[acceptIdxTakerHoldingX].Address,
		takerHoldingY: accounts[acceptIdxTakerHoldingY].Address,
		makerHoldingY: accounts[acceptIdxMakerHoldingY].Address,
	}
	record, err := e.validateRecordAccount(ctx.recordAddr, ctx.maker, ctx.assetX)
	if err != nil {
		return nil, err
	}
	if record.AssetY != ctx.assetY {
		return nil, fmt.Errorf("%w: asset-Y class", ErrAddressMismatch)
	}
	ctx.record = record
	if err := e.validateMintAccount(ctx.assetX); err != nil {
		return nil, err
	}
	if err := e.validateMintAccount(ctx.assetY); err != nil {
		return nil, err
	}
	if err := e.validateCustodyAccount(ctx.custody, ctx.recordAddr, ctx.assetX); err != nil {
		return nil, err
	}
	if err := e.validateAssociated(ctx.takerHoldingX, ctx.taker, ctx.assetX, "taker asset-X holding account"); err != nil {
		return nil, err
	}
	if err := e.validateAssociated(ctx.takerHoldingY, ctx.taker, ctx.assetY, "taker asset-Y holding account"); err != nil {
		return nil, err
	}
	if err := e.validateAssociated(ctx.makerHoldingY, ctx.maker, ctx.assetY, "maker asset-Y holding account"); err != nil {
		return nil, err
	}
	return ctx, nil
}

func (e *Engine) processAccept(ctx *acceptContext) error {
	if err := e.ensureHolding(ctx.takerHoldingX, ctx.taker, ctx.taker, ctx.assetX); err != nil {
		return err
	}
	if err := e.ensureHolding(ctx.makerHoldingY, ctx.taker, ctx.maker, ctx.assetY); err != nil {
		return err
	}
	if err := e.tokens.Transfer(ctx.takerHoldingY, ctx.makerHoldingY, token.WalletAuthority(ctx.taker), ctx.record.Receive); err != nil {
		return err
	}
	signer := recordSigner(ctx.maker, ctx.assetX, ctx.record.Bump)
	locked, err := e.tokens.Balance(ctx.custody)
	if err != nil {
		return err
	}
	if err := e.tokens.Transfer(ctx.custody, ctx.takerHoldingX, token.DerivedAuthority(signer), locked); err != nil {
		return err
	}
	if err := e.tokens.CloseAccount(ctx.custody, ctx.maker, token.DerivedAuthority(signer)); err != nil {
		return err
	}
	if err := e.closeRecord(ctx.recordAddr, ctx.maker); err != nil {
		return err
	}
	e.emit(NewAcceptedEvent(ctx.recordAddr, ctx.record, ctx.taker, locked))
	return nil
}

// --- Refund ---

type refundContext struct {
	maker         crypto.Address
	assetX        crypto.Address
	makerHoldingX crypto.Address
	recordAddr    crypto.Address
	custody       crypto.Address
	record        *Record
}

// Refund cancels an offer: the full custody balance returns to the maker
// under the record's reconstructed signing capability, and the custody
// account and record are closed back to the maker. No asset-Y movement
// occurs.
func (e *Engine) Refund(accounts []AccountMeta) error {
	ctx, err := e.validateRefund(accounts)
	if err != nil {
		return err
	}
	return e.processRefund(ctx)
}

func (e *Engine) validateRefund(accounts []AccountMeta) (*refundContext, error) {
	if e == nil || e.state == nil {
		return nil, fmt.Errorf("escrow engine: state not configured")
	}
	if len(accounts) < refundAccountLen {
		return nil, fmt.Errorf("%w: refund needs %d accounts, got %d", ErrNotEnoughAccounts, refundAccountLen, len(accounts))
	}
	maker := accounts[refundIdxMaker]
	if !maker.Signer {
		return nil, fmt.Errorf("%w: maker", ErrMissingSignature)
	}
	ctx := &refundContext{
		maker:         maker.Address,
		assetX:        accounts[refundIdxAssetX].Address,
		makerHoldingX: accounts[refundIdxMakerHoldingX].Address,
		recordAddr:    accounts[refundIdxRecord].Address,
		custody:       accounts[refundIdxCustody].Address,
	}
	record, err := e.validateRecordAccount(ctx.recordAddr, ctx.maker, ctx.assetX)
	if err != nil {
		return nil, err
	}
	ctx.record = record
	if err := e.validateMintAccount(ctx.assetX); err != nil {
		return nil, err
	}
	if err := e.validateCustodyAccount(ctx.custody, ctx.recordAddr, ctx.assetX); err != nil {
		return nil, err
	}
	if err := e.validateAssociated(ctx.makerHoldingX, ctx.maker, ctx.assetX, "maker asset-X holding account"); err != nil {
		return nil, err
	}
	return ctx, nil
}

func (e *Engine) processRefund(ctx *refundContext) error {
	signer := recordSigner(ctx.maker, ctx.assetX, ctx.record.Bump)
	locked, err := e.tokens.Balance(ctx.custody)
	if err != nil {
		return err
	}
	if err := e.tokens.Transfer(ctx.custody, ctx.makerHoldingX, token.DerivedAuthority(signer), locked); err != nil {
		return err
	}
	if err := e.tokens.CloseAccount(ctx.custody, ctx.maker, token.DerivedAuthority(signer)); err != nil {
		return err
	}
	if err := e.closeRecord(ctx.recordAddr, ctx.maker); err != nil {
		return err
	}
	e.emit(NewRefundedEvent(ctx.recordAddr, ctx.record, locked))
	return nil
}

// --- shared validation ---

// validateRecordAccount runs the record checks shared by Accept and Refund:
// existence, program ownership, exact size, field consistency with the
// supplied maker and asset class, and the derived-address comparison.
func (e *Engine) validateRecordAccount(recordAddr, maker, assetX crypto.Address) (*Record, error) {
	envelope, err := e.state.GetAccount(recordAddr)
	if err != nil {
		return nil, err
	}
	if envelope.IsEmpty() {
		return nil, fmt.Errorf("%w: record", ErrUninitialized)
	}
	if envelope.Owner != ProgramID {
		return nil, fmt.Errorf("%w: record", ErrWrongProgramOwner)
	}
	if len(envelope.Data) != RecordLen {
		return nil, fmt.Errorf("%w: record", ErrWrongDataSize)
	}
	record := new(Record)
	if err := record.UnmarshalBinary(envelope.Data); err != nil {
		return nil, err
	}
	if record.Maker != maker {
		return nil, fmt.Errorf("%w: maker", ErrAddressMismatch)
	}
	if record.AssetX != assetX {
		return nil, fmt.Errorf("%w: asset-X class", ErrAddressMismatch)
	}
	derived, bump, err := RecordAddress(maker, assetX)
	if err != nil {
		return nil, err
	}
	if recordAddr != derived || record.Bump != bump {
		return nil, fmt.Errorf("%w: record", ErrAddressMismatch)
	}
	return record, nil
}

func (e *Engine) validateCustodyAccount(custody, recordAddr, assetX crypto.Address) error {
	derived, err := CustodyAddress(recordAddr, assetX)
	if err != nil {
		return err
	}
	if custody != derived {
		return fmt.Errorf("%w: custody", ErrAddressMismatch)
	}
	envelope, err := e.state.GetAccount(custody)
	if err != nil {
		return err
	}
	if envelope.IsEmpty() {
		return fmt.Errorf("%w: custody", ErrUninitialized)
	}
	return nil
}

func (e *Engine) validateMintAccount(addr crypto.Address) error {
	envelope, err := e.state.GetAccount(addr)
	if err != nil {
		return err
	}
	if envelope.IsEmpty() || envelope.Owner != token.ModuleID {
		return fmt.Errorf("%w: asset class %s", ErrWrongProgramOwner, addr.Hex())
	}
	if len(envelope.Data) != token.MintLen {
		return fmt.Errorf("%w: asset class %s", ErrWrongDataSize, addr.Hex())
	}
	return nil
}

func (e *Engine) validateAssociated(supplied, wallet, mint crypto.Address, role string) error {
	expected, err := token.AssociatedAddress(wallet, mint)
	if err != nil {
		return err
	}
	if supplied != expected {
		return fmt.Errorf("%w: %s", ErrAddressMismatch, role)
	}
	return nil
}

// ensureHolding creates the holding account when it does not exist yet.
// Each creation uses its own (payer, wallet, mint) parameters.
func (e *Engine) ensureHolding(addr, payer, wallet, mint crypto.Address) error {
	envelope, err := e.state.GetAccount(addr)
	if err != nil {
		return err
	}
	if !envelope.IsEmpty() {
		return nil
	}
	created, err := e.tokens.CreateAssociatedAccount(payer, wallet, mint)
	if err != nil {
		return err
	}
	if created != addr {
		return fmt.Errorf("%w: created holding account", ErrAddressMismatch)
	}
	return nil
}

// closeRecord zeroes and reclaims the record's storage, crediting its full
// native balance to the maker.
func (e *Engine) closeRecord(recordAddr, maker crypto.Address) error {
	envelope, err := e.state.GetAccount(recordAddr)
	if err != nil {
		return err
	}
	if envelope == nil {
		return fmt.Errorf("%w: record", ErrUninitialized)
	}
	if err := e.creditNative(maker, envelope.Balance); err != nil {
		return err
	}
	return e.state.DeleteAccount(recordAddr)
}

func (e *Engine) debitNative(payer crypto.Address, amount uint64) error {
	account, err := e.state.GetAccount(payer)
	if err != nil {
		return err
	}
	if account == nil || account.Balance < amount {
		return fmt.Errorf("%w: %s", ErrInsufficientFunding, payer.Hex())
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
		account = &types.Account{Owner: token.SystemOwner}
	}
	if amount > math.MaxUint64-account.Balance {
		return fmt.Errorf("%w: native balance overflow", ErrInvalidArgument)
	}
	account.Balance += amount
	return e.state.PutAccount(dest, account)
}
