package simulated

import (
	"context"
	"errors"
	"testing"

	"github.com/colorfulnotion/anchorbridge/bridgeerrors"
	"github.com/colorfulnotion/anchorbridge/common"
	"github.com/colorfulnotion/anchorbridge/contracts"
	"github.com/colorfulnotion/anchorbridge/ledger"
	"github.com/colorfulnotion/anchorbridge/merkle"
	"github.com/colorfulnotion/anchorbridge/proposals"
	"github.com/colorfulnotion/anchorbridge/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	chain       *Chain
	admin       *Ledger
	governance  common.Address
	anchor      common.Address
	rid         types.ResourceID
	governorKey string
	handler     common.Address
}

func newFixture(t *testing.T, cfg AnchorConfig) *fixture {
	t.Helper()
	admin, _ := common.GetEVMDevAccount(0)
	governor, governorKey := common.GetEVMDevAccount(1)
	chain := NewChain(31337)
	gov := chain.DeployGovernance(governor)
	anchor, err := chain.DeployAnchor(cfg)
	require.NoError(t, err)
	return &fixture{
		chain:       chain,
		admin:       chain.Ledger(admin),
		governance:  gov,
		anchor:      anchor,
		rid:         types.ResourceIDFromAddress(anchor, chain.TypedChainID()),
		governorKey: governorKey,
		handler:     common.HexToAddress("0x00000000000000000000000000000000000000a1"),
	}
}

func (f *fixture) execute(t *testing.T, p proposals.Proposal, key string) (*ledger.Call, error) {
	t.Helper()
	_, sig, err := common.SignKeccakHex(key, p.Bytes())
	require.NoError(t, err)
	data, err := contracts.PackExecuteProposalWithSignature(p.Bytes(), sig)
	require.NoError(t, err)
	call := ledger.Call{To: f.governance, Data: data}
	_, err = ledger.Transact(context.Background(), f.admin, call)
	return &call, err
}

func (f *fixture) header(t *testing.T, kind proposals.Kind, nonce types.Nonce) types.ProposalHeader {
	fs, err := kind.DefaultFunctionSignature()
	require.NoError(t, err)
	return types.NewProposalHeader(f.rid, fs, nonce)
}

func (f *fixture) nonce(t *testing.T) uint32 {
	data, err := contracts.PackResourceNonce(f.rid.Hash())
	require.NoError(t, err)
	out, err := f.admin.QueryState(context.Background(), ledger.Call{To: f.governance, Data: data})
	require.NoError(t, err)
	n, err := contracts.UnpackResourceNonce(out)
	require.NoError(t, err)
	return n
}

func TestGovernanceNonceAndSignature(t *testing.T) {
	f := newFixture(t, AnchorConfig{Levels: 4, MaxEdges: 1})
	link := proposals.NewResourceIDUpdateProposal(f.header(t, proposals.KindResourceIDUpdate, 1), f.rid, f.handler)

	_, otherKey := common.GetEVMDevAccount(5)
	_, err := f.execute(t, link, otherKey)
	assert.True(t, errors.Is(err, bridgeerrors.ErrGSignerMismatch))
	assert.Equal(t, uint32(0), f.nonce(t))

	call, err := f.execute(t, link, f.governorKey)
	require.NoError(t, err)
	assert.Equal(t, uint32(1), f.nonce(t))

	// replaying the same bytes is rejected without touching state
	_, err = ledger.Transact(context.Background(), f.admin, *call)
	assert.True(t, errors.Is(err, bridgeerrors.ErrGNonceMismatch))
	assert.Equal(t, uint32(1), f.nonce(t))

	setHandler := proposals.NewSetHandlerProposal(f.header(t, proposals.KindSetHandler, 2), f.handler)
	_, err = f.execute(t, setHandler, f.governorKey)
	require.NoError(t, err)
	assert.Equal(t, uint32(2), f.nonce(t))

	data, _ := contracts.AnchorABI.Pack("handler")
	out, err := f.admin.QueryState(context.Background(), ledger.Call{To: f.anchor, Data: data})
	require.NoError(t, err)
	h, err := contracts.UnpackAddress(contracts.AnchorABI, "handler", out)
	require.NoError(t, err)
	assert.Equal(t, f.handler, h)
}

func TestAnchorUpdateRequiresRegistration(t *testing.T) {
	f := newFixture(t, AnchorConfig{Levels: 4, MaxEdges: 1})
	src := types.ResourceIDFromAddress(common.HexToAddress("0xbeef"), types.EVMChain(5))
	update := proposals.NewAnchorUpdateProposal(f.header(t, proposals.KindAnchorUpdate, 1), common.HexToHash("0x01"), src)
	_, err := f.execute(t, update, f.governorKey)
	re, ok := ledger.IsRevert(err)
	require.True(t, ok)
	assert.Equal(t, contracts.RevertResourceNotSet, re.Reason)
	assert.Equal(t, uint32(0), f.nonce(t))
}

func TestDepositEmitsInsertion(t *testing.T) {
	f := newFixture(t, AnchorConfig{Levels: 4, MaxEdges: 1, RootHistorySize: 2})
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		data, err := contracts.PackDeposit(common.BytesToHash([]byte{byte(i + 1)}))
		require.NoError(t, err)
		receipt, err := ledger.Transact(ctx, f.admin, ledger.Call{To: f.anchor, Data: data})
		require.NoError(t, err)
		require.Len(t, receipt.Logs, 1)
		ins, err := contracts.InsertionFromLog(*receipt.Logs[0])
		require.NoError(t, err)
		assert.Equal(t, uint32(i), ins.LeafIndex)
	}
	logs, err := f.admin.QueryEvents(ctx, ledger.EventFilter{Address: f.anchor, Topics: [][]common.Hash{{contracts.InsertionTopic}}}, 0)
	require.NoError(t, err)
	assert.Len(t, logs, 3)
	logs, err = f.admin.QueryEvents(ctx, ledger.EventFilter{Address: f.anchor}, f.chain.Head())
	require.NoError(t, err)
	assert.Len(t, logs, 1)

	data, _ := contracts.AnchorABI.Pack("getLastRoot")
	out, err := f.admin.QueryState(ctx, ledger.Call{To: f.anchor, Data: data})
	require.NoError(t, err)
	last, err := contracts.UnpackHash(contracts.AnchorABI, "getLastRoot", out)
	require.NoError(t, err)
	known, _ := contracts.PackIsKnownRoot(last)
	out, err = f.admin.QueryState(ctx, ledger.Call{To: f.anchor, Data: known})
	require.NoError(t, err)
	ok, err := contracts.UnpackBool(contracts.AnchorABI, "isKnownRoot", out)
	require.NoError(t, err)
	assert.True(t, ok)

	// a history window of two no longer holds the empty root
	empty, err := merkle.NewMerkleTree(4)
	require.NoError(t, err)
	known, _ = contracts.PackIsKnownRoot(empty.Root())
	out, err = f.admin.QueryState(ctx, ledger.Call{To: f.anchor, Data: known})
	require.NoError(t, err)
	ok, err = contracts.UnpackBool(contracts.AnchorABI, "isKnownRoot", out)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRefreshRotatesGovernor(t *testing.T) {
	f := newFixture(t, AnchorConfig{Levels: 4, MaxEdges: 1})
	next, err := crypto.GenerateKey()
	require.NoError(t, err)
	refresh, err := proposals.NewRefreshProposal(common.Hash{}, 100, 3, 1, crypto.FromECDSAPub(&next.PublicKey))
	require.NoError(t, err)
	_, sig, err := common.SignKeccakHex(f.governorKey, refresh.Bytes())
	require.NoError(t, err)
	data, err := contracts.PackRefreshKey(refresh.Bytes(), sig)
	require.NoError(t, err)
	_, err = ledger.Transact(context.Background(), f.admin, ledger.Call{To: f.governance, Data: data})
	require.NoError(t, err)

	gdata, _ := contracts.PackGovernor()
	out, err := f.admin.QueryState(context.Background(), ledger.Call{To: f.governance, Data: gdata})
	require.NoError(t, err)
	gov, err := contracts.UnpackAddress(contracts.GovernanceABI, "governor", out)
	require.NoError(t, err)
	assert.Equal(t, crypto.PubkeyToAddress(next.PublicKey), gov)
}

func TestQueryStateRejectsMutations(t *testing.T) {
	f := newFixture(t, AnchorConfig{Levels: 4, MaxEdges: 1})
	data, _ := contracts.PackDeposit(common.HexToHash("0x01"))
	_, err := f.admin.QueryState(context.Background(), ledger.Call{To: f.anchor, Data: data})
	assert.Error(t, err)
	_, isRevert := ledger.IsRevert(err)
	assert.False(t, isRevert)
}
