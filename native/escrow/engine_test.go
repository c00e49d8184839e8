package escrow

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"swapd/core/events"
	"swapd/core/state"
	"swapd/core/types"
	"swapd/crypto"
	"swapd/native/token"
	"swapd/storage"
)

type recordingEmitter struct {
	emitted []events.Event
}

func (r *recordingEmitter) Emit(evt events.Event) {
	r.emitted = append(r.emitted, evt)
}

type testEnv struct {
	t       *testing.T
	manager *state.Manager
	tokens  *token.Engine
	engine  *Engine
	emitter *recordingEmitter

	assetX         crypto.Address
	assetY         crypto.Address
	mintAuthorityX crypto.Address
	mintAuthorityY crypto.Address

	maker crypto.Address
	taker crypto.Address

	makerHoldingX crypto.Address
	takerHoldingY crypto.Address
}

func testAddr(fill byte) crypto.Address {
	var addr crypto.Address
	copy(addr[:], bytes.Repeat([]byte{fill}, crypto.AddressLen))
	return addr
}

const walletFunding = 10_000_000

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	manager := state.NewManager(storage.NewMemDB())
	tokens := token.NewEngine()
	tokens.SetState(manager)
	engine := NewEngine(tokens)
	engine.SetState(manager)
	emitter := &recordingEmitter{}
	engine.SetEmitter(emitter)

	env := &testEnv{
		t:              t,
		manager:        manager,
		tokens:         tokens,
		engine:         engine,
		emitter:        emitter,
		assetX:         testAddr(0xA1),
		assetY:         testAddr(0xA2),
		mintAuthorityX: testAddr(0xB1),
		mintAuthorityY: testAddr(0xB2),
		maker:          testAddr(0xC1),
		taker:          testAddr(0xC2),
	}
	require.NoError(t, tokens.CreateMint(env.assetX, env.mintAuthorityX, 6))
	require.NoError(t, tokens.CreateMint(env.assetY, env.mintAuthorityY, 6))
	env.fundWallet(env.maker, walletFunding)
	env.fundWallet(env.taker, walletFunding)

	var err error
	env.makerHoldingX, err = tokens.CreateAssociatedAccount(env.maker, env.maker, env.assetX)
	require.NoError(t, err)
	require.NoError(t, tokens.MintTo(env.assetX, env.makerHoldingX, token.WalletAuthority(env.mintAuthorityX), 1_000))

	env.takerHoldingY, err = tokens.CreateAssociatedAccount(env.taker, env.taker, env.assetY)
	require.NoError(t, err)
	require.NoError(t, tokens.MintTo(env.assetY, env.takerHoldingY, token.WalletAuthority(env.mintAuthorityY), 1_000))
	return env
}

func (env *testEnv) fundWallet(wallet crypto.Address, balance uint64) {
	env.t.Helper()
	require.NoError(env.t, env.manager.PutAccount(wallet, &types.Account{Owner: token.SystemOwner, Balance: balance}))
}

func (env *testEnv) recordAddr() (crypto.Address, uint8) {
	addr, bump, err := RecordAddress(env.maker, env.assetX)
	require.NoError(env.t, err)
	return addr, bump
}

func (env *testEnv) custodyAddr() crypto.Address {
	recordAddr, _ := env.recordAddr()
	addr, err := CustodyAddress(recordAddr, env.assetX)
	require.NoError(env.t, err)
	return addr
}

func (env *testEnv) associated(wallet, mint crypto.Address) crypto.Address {
	addr, err := token.AssociatedAddress(wallet, mint)
	require.NoError(env.t, err)
	return addr
}

func (env *testEnv) makeInstruction(deposit, receive uint64) Instruction {
	recordAddr, _ := env.recordAddr()
	return MakeInstruction(env.maker, recordAddr, env.assetX, env.assetY, env.makerHoldingX, env.custodyAddr(), MakeArgs{Deposit: deposit, Receive: receive})
}

func (env *testEnv) acceptInstruction() Instruction {
	recordAddr, _ := env.recordAddr()
	return AcceptInstruction(
		env.taker, env.maker, recordAddr, env.assetX, env.assetY, env.custodyAddr(),
		env.associated(env.taker, env.assetX),
		env.takerHoldingY,
		env.associated(env.maker, env.assetY),
	)
}

func (env *testEnv) refundInstruction() Instruction {
	recordAddr, _ := env.recordAddr()
	return RefundInstruction(env.maker, env.assetX, env.makerHoldingX, recordAddr, env.custodyAddr())
}

func (env *testEnv) open(deposit, receive uint64) {
	env.t.Helper()
	require.NoError(env.t, env.engine.Execute(env.makeInstruction(deposit, receive)))
}

func (env *testEnv) tokenBalance(addr crypto.Address) uint64 {
	bal, err := env.tokens.Balance(addr)
	require.NoError(env.t, err)
	return bal
}

func (env *testEnv) nativeBalance(addr crypto.Address) uint64 {
	account, err := env.manager.GetAccount(addr)
	require.NoError(env.t, err)
	if account == nil {
		return 0
	}
	return account.Balance
}

func TestMakeOpensOffer(t *testing.T) {
	env := newTestEnv(t)
	env.open(100, 50)

	recordAddr, bump := env.recordAddr()
	envelope, err := env.manager.GetAccount(recordAddr)
	require.NoError(t, err)
	require.NotNil(t, envelope)
	require.Equal(t, ProgramID, envelope.Owner)
	require.Len(t, envelope.Data, RecordLen)

	record := new(Record)
	require.NoError(t, record.UnmarshalBinary(envelope.Data))
	require.Equal(t, env.maker, record.Maker)
	require.Equal(t, env.assetX, record.AssetX)
	require.Equal(t, env.assetY, record.AssetY)
	require.Equal(t, uint64(50), record.Receive)
	require.Equal(t, bump, record.Bump)

	require.Equal(t, uint64(100), env.tokenBalance(env.custodyAddr()))
	require.Equal(t, uint64(900), env.tokenBalance(env.makerHoldingX))

	custody, err := env.tokens.GetAccount(env.custodyAddr())
	require.NoError(t, err)
	require.Equal(t, recordAddr, custody.Authority, "custody authority must be the record address")

	require.Len(t, env.emitter.emitted, 1)
	require.Equal(t, EventTypeMade, env.emitter.emitted[0].EventType())
}

func TestMakeRejectsZeroDeposit(t *testing.T) {
	env := newTestEnv(t)
	err := env.engine.Execute(env.makeInstruction(0, 50))
	require.ErrorIs(t, err, ErrZeroAmount)
	require.ErrorIs(t, err, ErrInvalidArgument)

	recordAddr, _ := env.recordAddr()
	envelope, err := env.manager.GetAccount(recordAddr)
	require.NoError(t, err)
	require.Nil(t, envelope, "no storage may be allocated for a rejected make")
	require.Equal(t, uint64(1_000), env.tokenBalance(env.makerHoldingX))
}

func TestMakeRequiresMakerSignature(t *testing.T) {
	env := newTestEnv(t)
	ins := env.makeInstruction(100, 50)
	ins.Accounts[makeIdxMaker].Signer = false
	require.ErrorIs(t, env.engine.Execute(ins), ErrMissingSignature)
}

func TestMakeRejectsSubstitutedRecordAddress(t *testing.T) {
	env := newTestEnv(t)
	ins := env.makeInstruction(100, 50)
	ins.Accounts[makeIdxRecord].Address = testAddr(0xEE)
	require.ErrorIs(t, env.engine.Execute(ins), ErrAddressMismatch)
	require.Equal(t, uint64(1_000), env.tokenBalance(env.makerHoldingX))
}

func TestMakeRejectsSubstitutedCustodyAddress(t *testing.T) {
	env := newTestEnv(t)
	ins := env.makeInstruction(100, 50)
	ins.Accounts[makeIdxCustody].Address = testAddr(0xEF)
	require.ErrorIs(t, env.engine.Execute(ins), ErrAddressMismatch)
}

func TestMakeRejectsForeignMint(t *testing.T) {
	env := newTestEnv(t)
	ins := env.makeInstruction(100, 50)
	ins.Accounts[makeIdxAssetX].Address = env.maker // a wallet, not a mint
	require.ErrorIs(t, env.engine.Execute(ins), ErrWrongProgramOwner)
}

func TestMakeRejectsSecondOfferInNamespace(t *testing.T) {
	env := newTestEnv(t)
	env.open(100, 50)
	err := env.engine.Execute(env.makeInstruction(10, 5))
	require.ErrorIs(t, err, ErrAlreadyInitialized)
}

func TestMakeAllowsSecondOfferForOtherAsset(t *testing.T) {
	env := newTestEnv(t)
	env.open(100, 50)

	// A different asset-X class derives a different record namespace.
	assetZ := testAddr(0xA3)
	require.NoError(t, env.tokens.CreateMint(assetZ, testAddr(0xB3), 6))
	holdingZ, err := env.tokens.CreateAssociatedAccount(env.maker, env.maker, assetZ)
	require.NoError(t, err)
	require.NoError(t, env.tokens.MintTo(assetZ, holdingZ, token.WalletAuthority(testAddr(0xB3)), 500))

	recordAddr, _, err := RecordAddress(env.maker, assetZ)
	require.NoError(t, err)
	custody, err := CustodyAddress(recordAddr, assetZ)
	require.NoError(t, err)
	ins := MakeInstruction(env.maker, recordAddr, assetZ, env.assetY, holdingZ, custody, MakeArgs{Deposit: 200, Receive: 70})
	require.NoError(t, env.engine.Execute(ins))
}

func TestMakeNotEnoughAccounts(t *testing.T) {
	env := newTestEnv(t)
	ins := env.makeInstruction(100, 50)
	ins.Accounts = ins.Accounts[:3]
	require.ErrorIs(t, env.engine.Execute(ins), ErrNotEnoughAccounts)
}

func TestAcceptSettlesAtomically(t *testing.T) {
	env := newTestEnv(t)
	env.open(100, 50)
	env.emitter.emitted = nil

	recordAddr, _ := env.recordAddr()
	recordEnvelope, err := env.manager.GetAccount(recordAddr)
	require.NoError(t, err)
	custodyEnvelope, err := env.manager.GetAccount(env.custodyAddr())
	require.NoError(t, err)
	reclaimable := recordEnvelope.Balance + custodyEnvelope.Balance
	makerNativeBefore := env.nativeBalance(env.maker)

	require.NoError(t, env.engine.Execute(env.acceptInstruction()))

	// Taker holds the full custody balance of asset X.
	require.Equal(t, uint64(100), env.tokenBalance(env.associated(env.taker, env.assetX)))
	// Maker received exactly the demanded amount of asset Y.
	require.Equal(t, uint64(50), env.tokenBalance(env.associated(env.maker, env.assetY)))
	require.Equal(t, uint64(950), env.tokenBalance(env.takerHoldingY))

	// Record and custody storage no longer exist.
	envelope, err := env.manager.GetAccount(recordAddr)
	require.NoError(t, err)
	require.Nil(t, envelope)
	envelope, err = env.manager.GetAccount(env.custodyAddr())
	require.NoError(t, err)
	require.Nil(t, envelope)

	// The maker recovered the full reclaimed resource balance.
	require.Equal(t, makerNativeBefore+reclaimable, env.nativeBalance(env.maker))

	require.Len(t, env.emitter.emitted, 1)
	require.Equal(t, EventTypeAccepted, env.emitter.emitted[0].EventType())

	// Settlement is terminal: both followup paths fail before any transfer.
	require.ErrorIs(t, env.engine.Execute(env.refundInstruction()), ErrUninitialized)
	require.ErrorIs(t, env.engine.Execute(env.acceptInstruction()), ErrUninitialized)
}

func TestAcceptCreatesMissingHoldingAccounts(t *testing.T) {
	env := newTestEnv(t)
	env.open(100, 50)

	takerHoldingX := env.associated(env.taker, env.assetX)
	makerHoldingY := env.associated(env.maker, env.assetY)
	envelope, err := env.manager.GetAccount(takerHoldingX)
	require.NoError(t, err)
	require.Nil(t, envelope)
	envelope, err = env.manager.GetAccount(makerHoldingY)
	require.NoError(t, err)
	require.Nil(t, envelope)

	takerNativeBefore := env.nativeBalance(env.taker)
	require.NoError(t, env.engine.Execute(env.acceptInstruction()))

	// Both accounts were created with their own parameters, funded by the
	// taker.
	holdingX, err := env.tokens.GetAccount(takerHoldingX)
	require.NoError(t, err)
	require.Equal(t, env.taker, holdingX.Authority)
	require.Equal(t, env.assetX, holdingX.Mint)
	holdingY, err := env.tokens.GetAccount(makerHoldingY)
	require.NoError(t, err)
	require.Equal(t, env.maker, holdingY.Authority)
	require.Equal(t, env.assetY, holdingY.Mint)
	require.Equal(t, takerNativeBefore-2*types.RentMinimum(token.AccountLen), env.nativeBalance(env.taker))
}

func TestAcceptRequiresTakerSignature(t *testing.T) {
	env := newTestEnv(t)
	env.open(100, 50)
	ins := env.acceptInstruction()
	ins.Accounts[acceptIdxTaker].Signer = false
	require.ErrorIs(t, env.engine.Execute(ins), ErrMissingSignature)
}

func TestAcceptRejectsUnopenedOffer(t *testing.T) {
	env := newTestEnv(t)
	require.ErrorIs(t, env.engine.Execute(env.acceptInstruction()), ErrUninitialized)
}

func TestAcceptRejectsForeignRecordOwner(t *testing.T) {
	env := newTestEnv(t)
	env.open(100, 50)
	recordAddr, _ := env.recordAddr()
	envelope, err := env.manager.GetAccount(recordAddr)
	require.NoError(t, err)
	envelope.Owner = crypto.ModuleAddress("imposter")
	require.NoError(t, env.manager.PutAccount(recordAddr, envelope))

	require.ErrorIs(t, env.engine.Execute(env.acceptInstruction()), ErrWrongProgramOwner)
}

func TestAcceptRejectsTamperedRecordSize(t *testing.T) {
	env := newTestEnv(t)
	env.open(100, 50)
	recordAddr, _ := env.recordAddr()
	envelope, err := env.manager.GetAccount(recordAddr)
	require.NoError(t, err)
	envelope.Data = append(envelope.Data, 0x00)
	require.NoError(t, env.manager.PutAccount(recordAddr, envelope))

	require.ErrorIs(t, env.engine.Execute(env.acceptInstruction()), ErrWrongDataSize)
}

func TestAcceptRejectsSubstitutedRecordAddress(t *testing.T) {
	env := newTestEnv(t)
	env.open(100, 50)

	// Place a syntactically valid record at a non-derived address.
	forged := testAddr(0xDD)
	record := &Record{Maker: env.maker, AssetX: env.assetX, AssetY: env.assetY, Receive: 1, Bump: 0}
	data, err := record.MarshalBinary()
	require.NoError(t, err)
	require.NoError(t, env.manager.PutAccount(forged, &types.Account{Owner: ProgramID, Balance: 1, Data: data}))

	ins := env.acceptInstruction()
	ins.Accounts[acceptIdxRecord].Address = forged
	require.ErrorIs(t, env.engine.Execute(ins), ErrAddressMismatch)
	// No transfer happened.
	require.Equal(t, uint64(1_000), env.tokenBalance(env.takerHoldingY))
}

func TestAcceptRejectsSubstitutedHoldingAccount(t *testing.T) {
	env := newTestEnv(t)
	env.open(100, 50)
	ins := env.acceptInstruction()
	// Divert the maker's asset-Y leg to the taker's own holding account.
	ins.Accounts[acceptIdxMakerHoldingY].Address = env.takerHoldingY
	require.ErrorIs(t, env.engine.Execute(ins), ErrAddressMismatch)
}

func TestAcceptRejectsMismatchedAssetY(t *testing.T) {
	env := newTestEnv(t)
	env.open(100, 50)
	ins := env.acceptInstruction()
	ins.Accounts[acceptIdxAssetY].Address = env.assetX
	require.ErrorIs(t, env.engine.Execute(ins), ErrAddressMismatch)
}

func TestAcceptNotEnoughAccounts(t *testing.T) {
	env := newTestEnv(t)
	env.open(100, 50)
	ins := env.acceptInstruction()
	ins.Accounts = ins.Accounts[:acceptAccountLen-1]
	require.ErrorIs(t, env.engine.Execute(ins), ErrNotEnoughAccounts)
}

func TestRefundReturnsDeposit(t *testing.T) {
	env := newTestEnv(t)
	env.open(100, 50)
	env.emitter.emitted = nil

	recordAddr, _ := env.recordAddr()
	makerNativeBefore := env.nativeBalance(env.maker)
	recordEnvelope, err := env.manager.GetAccount(recordAddr)
	require.NoError(t, err)
	custodyEnvelope, err := env.manager.GetAccount(env.custodyAddr())
	require.NoError(t, err)
	reclaimable := recordEnvelope.Balance + custodyEnvelope.Balance

	require.NoError(t, env.engine.Execute(env.refundInstruction()))

	require.Equal(t, uint64(1_000), env.tokenBalance(env.makerHoldingX))
	// No asset-Y movement occurred.
	require.Equal(t, uint64(1_000), env.tokenBalance(env.takerHoldingY))

	envelope, err := env.manager.GetAccount(recordAddr)
	require.NoError(t, err)
	require.Nil(t, envelope)
	envelope, err = env.manager.GetAccount(env.custodyAddr())
	require.NoError(t, err)
	require.Nil(t, envelope)
	require.Equal(t, makerNativeBefore+reclaimable, env.nativeBalance(env.maker))

	require.Len(t, env.emitter.emitted, 1)
	require.Equal(t, EventTypeRefunded, env.emitter.emitted[0].EventType())

	// Cancellation is terminal.
	require.ErrorIs(t, env.engine.Execute(env.refundInstruction()), ErrUninitialized)
	require.ErrorIs(t, env.engine.Execute(env.acceptInstruction()), ErrUninitialized)
}

func TestRefundRequiresMakerSignature(t *testing.T) {
	env := newTestEnv(t)
	env.open(100, 50)
	ins := env.refundInstruction()
	ins.Accounts[refundIdxMaker].Signer = false
	require.ErrorIs(t, env.engine.Execute(ins), ErrMissingSignature)
}

func TestRefundRejectsForeignNamespace(t *testing.T) {
	env := newTestEnv(t)
	env.open(100, 50)

	// A stranger signing for themselves derives an empty namespace; the
	// maker's record is unreachable to them.
	stranger := testAddr(0xCE)
	env.fundWallet(stranger, walletFunding)
	strangerHolding := env.associated(stranger, env.assetX)
	recordAddr, _, err := RecordAddress(stranger, env.assetX)
	require.NoError(t, err)
	custody, err := CustodyAddress(recordAddr, env.assetX)
	require.NoError(t, err)

	ins := RefundInstruction(stranger, env.assetX, strangerHolding, recordAddr, custody)
	require.ErrorIs(t, env.engine.Execute(ins), ErrUninitialized)
	require.Equal(t, uint64(100), env.tokenBalance(env.custodyAddr()))
}

func TestRefundRejectsSubstitutedCustody(t *testing.T) {
	env := newTestEnv(t)
	env.open(100, 50)
	ins := env.refundInstruction()
	ins.Accounts[refundIdxCustody].Address = env.makerHoldingX
	require.ErrorIs(t, env.engine.Execute(ins), ErrAddressMismatch)
}

func TestRefundNotEnoughAccounts(t *testing.T) {
	env := newTestEnv(t)
	env.open(100, 50)
	ins := env.refundInstruction()
	ins.Accounts = ins.Accounts[:refundAccountLen-1]
	require.ErrorIs(t, env.engine.Execute(ins), ErrNotEnoughAccounts)
}

func TestExecuteRejectsMalformedEnvelopes(t *testing.T) {
	env := newTestEnv(t)

	require.ErrorIs(t, env.engine.Execute(Instruction{}), ErrInvalidArgument)

	unknown := env.makeInstruction(100, 50)
	unknown.Data = []byte{0x07}
	require.ErrorIs(t, env.engine.Execute(unknown), ErrInvalidArgument)

	short := env.makeInstruction(100, 50)
	short.Data = short.Data[:9]
	require.ErrorIs(t, env.engine.Execute(short), ErrInvalidArgument)

	env.open(100, 50)
	noisy := env.acceptInstruction()
	noisy.Data = append(noisy.Data, 0x01)
	require.ErrorIs(t, env.engine.Execute(noisy), ErrInvalidArgument)
}

func TestScenarioMakerTakerLifecycle(t *testing.T) {
	// Maker M opens escrow with deposit 100 X demanding 50 Y; taker T
	// accepts. T ends with +100 X, M with +50 Y, record and custody are
	// closed, and a subsequent refund by M fails.
	env := newTestEnv(t)
	env.open(100, 50)
	require.NoError(t, env.engine.Execute(env.acceptInstruction()))

	require.Equal(t, uint64(100), env.tokenBalance(env.associated(env.taker, env.assetX)))
	require.Equal(t, uint64(50), env.tokenBalance(env.associated(env.maker, env.assetY)))
	require.ErrorIs(t, env.engine.Execute(env.refundInstruction()), ErrUninitialized)
}
