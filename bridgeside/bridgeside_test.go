package bridgeside

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/colorfulnotion/anchorbridge/bridgeerrors"
	"github.com/colorfulnotion/anchorbridge/common"
	"github.com/colorfulnotion/anchorbridge/contracts"
	"github.com/colorfulnotion/anchorbridge/ledger"
	"github.com/colorfulnotion/anchorbridge/ledger/simulated"
	"github.com/colorfulnotion/anchorbridge/proposals"
	"github.com/colorfulnotion/anchorbridge/signer"
	"github.com/colorfulnotion/anchorbridge/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type handle types.ResourceID

func (h handle) ResourceID() types.ResourceID { return types.ResourceID(h) }

type sideFixture struct {
	chain  *simulated.Chain
	side   *BridgeSide
	anchor types.ResourceID
	admin  ledger.Ledger
}

var testHandler = common.HexToAddress("0x00000000000000000000000000000000000000a1")

func newSide(t *testing.T, withHandler bool) *sideFixture {
	t.Helper()
	admin, _ := common.GetEVMDevAccount(0)
	governor, governorKey := common.GetEVMDevAccount(1)
	chain := simulated.NewChain(4)
	gov := chain.DeployGovernance(governor)
	anchorAddr, err := chain.DeployAnchor(simulated.AnchorConfig{Levels: 4, MaxEdges: 1})
	require.NoError(t, err)

	s, err := signer.NewLocalSignerFromHex(governorKey)
	require.NoError(t, err)
	opts := Options{Governance: gov, Ledger: chain.Ledger(admin), Signer: s}
	if withHandler {
		h := testHandler
		opts.Handler = &h
	}
	side, err := New(context.Background(), opts)
	require.NoError(t, err)
	return &sideFixture{
		chain:  chain,
		side:   side,
		anchor: types.ResourceIDFromAddress(anchorAddr, chain.TypedChainID()),
		admin:  opts.Ledger,
	}
}

func (f *sideFixture) nonce(t *testing.T) types.Nonce {
	n, err := f.side.ProposalNonce(context.Background(), f.anchor)
	require.NoError(t, err)
	return n
}

func (f *sideFixture) connect(t *testing.T) {
	require.NoError(t, f.side.ConnectAnchorWithSignature(context.Background(), handle(f.anchor)))
}

func TestConnectAnchorConsumesTwoNonces(t *testing.T) {
	f := newSide(t, true)
	before := f.nonce(t)
	f.connect(t)
	assert.Equal(t, before+2, f.nonce(t))

	h, err := f.side.ResourceHandler(context.Background(), f.anchor)
	require.NoError(t, err)
	assert.Equal(t, testHandler, h)
}

func TestConnectWithoutHandlerPanics(t *testing.T) {
	f := newSide(t, false)
	assert.PanicsWithValue(t, bridgeerrors.ErrGHandlerNotSet.Error(), func() {
		_ = f.side.ConnectAnchorWithSignature(context.Background(), handle(f.anchor))
	})
	assert.Equal(t, types.Nonce(0), f.nonce(t))
}

func TestNonceRisesByOnePerProposal(t *testing.T) {
	f := newSide(t, true)
	f.connect(t)
	ctx := context.Background()
	before := f.nonce(t)
	const n = 4
	for i := 0; i < n; i++ {
		_, err := f.side.ExecuteFeeProposal(ctx, f.anchor, uint16(100*(i+1)))
		require.NoError(t, err)
	}
	assert.Equal(t, before+n, f.nonce(t))

	data, _ := contracts.AnchorABI.Pack("getFee")
	out, err := f.admin.QueryState(ctx, ledger.Call{To: f.anchor.Address(), Data: data})
	require.NoError(t, err)
	fee, err := contracts.AnchorABI.Unpack("getFee", out)
	require.NoError(t, err)
	assert.Equal(t, uint16(400), fee[0])
}

func TestReplayedProposalRejected(t *testing.T) {
	f := newSide(t, true)
	f.connect(t)
	ctx := context.Background()

	p, err := f.side.CreateTokenAddProposal(ctx, f.anchor, common.HexToAddress("0xc0"))
	require.NoError(t, err)
	assert.Equal(t, types.Nonce(3), p.Header().Nonce)
	sig, err := f.side.SignProposal(ctx, p)
	require.NoError(t, err)
	_, err = f.side.ExecuteProposalWithSignature(ctx, p.Bytes(), sig)
	require.NoError(t, err)

	_, err = f.side.ExecuteProposalWithSignature(ctx, p.Bytes(), sig)
	require.Error(t, err)
	assert.True(t, errors.Is(err, bridgeerrors.ErrGNonceMismatch))
	re, ok := ledger.IsRevert(err)
	require.True(t, ok)
	assert.Equal(t, contracts.RevertInvalidNonce, re.Reason)
	assert.Equal(t, types.Nonce(3), f.nonce(t))
}

func TestStaleNonceIsNotRetried(t *testing.T) {
	f := newSide(t, true)
	f.connect(t)
	ctx := context.Background()

	first, err := f.side.CreateTokenAddProposal(ctx, f.anchor, common.HexToAddress("0xc1"))
	require.NoError(t, err)
	second, err := f.side.CreateTokenRemoveProposal(ctx, f.anchor, common.HexToAddress("0xc1"))
	require.NoError(t, err)
	assert.Equal(t, first.Header().Nonce, second.Header().Nonce)

	for i, p := range []proposals.Proposal{first, second} {
		sig, err := f.side.SignProposal(ctx, p)
		require.NoError(t, err)
		_, err = f.side.ExecuteProposalWithSignature(ctx, p.Bytes(), sig)
		if i == 0 {
			require.NoError(t, err)
		} else {
			assert.True(t, errors.Is(err, bridgeerrors.ErrGNonceMismatch))
		}
	}
}

func TestConcurrentProposalsSerializePerResource(t *testing.T) {
	f := newSide(t, true)
	f.connect(t)
	ctx := context.Background()
	before := f.nonce(t)

	const n = 8
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.side.ExecuteMaxDepositLimitProposal(ctx, f.anchor, uint256.NewInt(uint64(i+1)))
		}(i)
	}
	wg.Wait()
	for _, err := range errs {
		assert.NoError(t, err)
	}
	assert.Equal(t, before+n, f.nonce(t))
}

func TestBuildProposalRejectsForeignChain(t *testing.T) {
	f := newSide(t, true)
	foreign := types.ResourceIDFromAddress(f.anchor.Address(), types.EVMChain(99))
	_, err := f.side.CreateSetVerifierProposal(context.Background(), foreign, common.HexToAddress("0x01"))
	assert.True(t, errors.Is(err, bridgeerrors.ErrGChainMismatch))
}

func TestWrongSignerRejected(t *testing.T) {
	f := newSide(t, true)
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	f.side.SetSigner(signer.NewLocalSigner(key))
	err = f.side.ConnectAnchorWithSignature(context.Background(), handle(f.anchor))
	assert.True(t, errors.Is(err, bridgeerrors.ErrGSignerMismatch))
	assert.Equal(t, types.Nonce(0), f.nonce(t))
}

func TestTransferOwnership(t *testing.T) {
	f := newSide(t, true)
	ctx := context.Background()
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	next := signer.NewLocalSigner(key)

	_, err = f.side.TransferOwnership(ctx, next.PublicKey(), common.Hash{}, 0, 1)
	require.NoError(t, err)
	gov, err := f.side.Governor(ctx)
	require.NoError(t, err)
	assert.Equal(t, next.Address(), gov)
	n, err := f.side.RefreshNonce(ctx)
	require.NoError(t, err)
	assert.Equal(t, types.Nonce(1), n)

	// the old key no longer governs
	err = f.side.ConnectAnchorWithSignature(ctx, handle(f.anchor))
	assert.True(t, errors.Is(err, bridgeerrors.ErrGSignerMismatch))

	f.side.SetSigner(next)
	f.connect(t)
	assert.Equal(t, types.Nonce(2), f.nonce(t))
}

func TestProposeWithoutHandlerPanics(t *testing.T) {
	linked := newSide(t, true)
	linked.connect(t)
	ctx := context.Background()
	before := linked.nonce(t)

	// a second client of the same governance that never had a handler set
	bare, err := New(ctx, Options{Governance: linked.side.Governance(), Ledger: linked.admin, Signer: linked.side.currentSigner()})
	require.NoError(t, err)
	_, ok := bare.Handler()
	require.False(t, ok)

	msg := bridgeerrors.ErrGHandlerNotSet.Error()
	assert.PanicsWithValue(t, msg, func() {
		_, _ = bare.ExecuteFeeProposal(ctx, linked.anchor, 100)
	})
	assert.PanicsWithValue(t, msg, func() {
		_, _, _ = bare.Propose(ctx, linked.anchor, proposals.NewTokenAddProposal(types.ProposalHeader{}, common.HexToAddress("0xc2")))
	})
	p, err := bare.CreateTokenAddProposal(ctx, linked.anchor, common.HexToAddress("0xc2"))
	require.NoError(t, err)
	sig, err := bare.SignProposal(ctx, p)
	require.NoError(t, err)
	assert.PanicsWithValue(t, msg, func() {
		_, _ = bare.ExecuteProposalWithSignature(ctx, p.Bytes(), sig)
	})
	assert.Equal(t, before, linked.nonce(t))
}

func TestNewRejectsWideChainID(t *testing.T) {
	governor, _ := common.GetEVMDevAccount(1)
	admin, _ := common.GetEVMDevAccount(0)
	chain := simulated.NewChain(1<<32 + 5)
	gov := chain.DeployGovernance(governor)

	_, err := New(context.Background(), Options{Governance: gov, Ledger: chain.Ledger(admin)})
	require.Error(t, err)
	assert.True(t, errors.Is(err, bridgeerrors.ErrCFieldWidth))
}
