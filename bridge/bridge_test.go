package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/colorfulnotion/anchorbridge/anchor"
	"github.com/colorfulnotion/anchorbridge/bridgeerrors"
	"github.com/colorfulnotion/anchorbridge/bridgeside"
	"github.com/colorfulnotion/anchorbridge/common"
	"github.com/colorfulnotion/anchorbridge/ledger/simulated"
	"github.com/colorfulnotion/anchorbridge/signer"
	"github.com/colorfulnotion/anchorbridge/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var handler = common.HexToAddress("0x00000000000000000000000000000000000000a1")

type deployment struct {
	chains  []*simulated.Chain
	sides   []*bridgeside.BridgeSide
	anchors []*anchor.Anchor
	bridge  *Bridge
}

// flakyChain lets a test change the chain id a ledger reports after setup.
type flakyChain struct {
	*simulated.Ledger
	id uint64
}

func (f *flakyChain) ChainID(ctx context.Context) (uint64, error) {
	if f.id != 0 {
		return f.id, nil
	}
	return f.Ledger.ChainID(ctx)
}

func deployBridge(t *testing.T, chainIDs ...uint64) *deployment {
	t.Helper()
	ctx := context.Background()
	admin, _ := common.GetEVMDevAccount(0)
	governor, governorKey := common.GetEVMDevAccount(1)
	s, err := signer.NewLocalSignerFromHex(governorKey)
	require.NoError(t, err)

	d := &deployment{}
	for _, id := range chainIDs {
		chain := simulated.NewChain(id)
		gov := chain.DeployGovernance(governor)
		addr, err := chain.DeployAnchor(simulated.AnchorConfig{Levels: 6, MaxEdges: uint8(len(chainIDs) - 1)})
		require.NoError(t, err)
		l := &flakyChain{Ledger: chain.Ledger(admin)}
		h := handler
		side, err := bridgeside.New(ctx, bridgeside.Options{Governance: gov, Ledger: l, Signer: s, Handler: &h})
		require.NoError(t, err)
		a, err := anchor.New(ctx, l, anchor.Config{Address: addr, Size: "1"})
		require.NoError(t, err)
		d.chains = append(d.chains, chain)
		d.sides = append(d.sides, side)
		d.anchors = append(d.anchors, a)
	}
	d.bridge, err = New(Options{Sides: d.sides, Groups: [][]*anchor.Anchor{d.anchors}})
	require.NoError(t, err)
	require.NoError(t, d.bridge.ConnectAll(ctx))
	return d
}

func TestConnectAllLinksEveryAnchor(t *testing.T) {
	d := deployBridge(t, 1, 2, 3)
	ctx := context.Background()
	assert.Equal(t, 6, d.bridge.LinkedAnchors().Edges())
	for i, a := range d.anchors {
		n, err := d.sides[i].ProposalNonce(ctx, a.ResourceID())
		require.NoError(t, err)
		assert.Equal(t, types.Nonce(2), n)
	}
}

func TestDepositPropagatesToLinkedAnchors(t *testing.T) {
	d := deployBridge(t, 1, 2, 3)
	ctx := context.Background()
	src := d.anchors[0]

	res, err := d.bridge.Deposit(ctx, src.TypedChainID(), "1", common.HexToHash("0xc0ffee"))
	require.NoError(t, err)
	assert.Equal(t, uint64(0), res.Index)

	for i, dst := range d.anchors[1:] {
		roots, err := dst.PopulateRootsForProof(ctx)
		require.NoError(t, err)
		assert.Contains(t, roots[1:], src.LatestRoot(), "anchor %d", i+1)
		n, err := d.sides[i+1].ProposalNonce(ctx, dst.ResourceID())
		require.NoError(t, err)
		assert.Equal(t, types.Nonce(3), n)
	}
	// the source itself is never updated
	n, err := d.sides[0].ProposalNonce(ctx, src.ResourceID())
	require.NoError(t, err)
	assert.Equal(t, types.Nonce(2), n)
}

func TestWithdrawWithNeighbourRoots(t *testing.T) {
	d := deployBridge(t, 1, 2)
	ctx := context.Background()
	a, b := d.anchors[0], d.anchors[1]
	note := common.HexToHash("0xbeef")

	_, err := d.bridge.Deposit(ctx, b.TypedChainID(), "1", common.HexToHash("0x01"))
	require.NoError(t, err)
	_, err = d.bridge.Deposit(ctx, a.TypedChainID(), "1", note)
	require.NoError(t, err)

	recipient, _ := common.GetEVMDevAccount(4)
	req := anchor.WithdrawRequest{Commitment: note, NullifierHash: common.HexToHash("0x77"), Recipient: recipient}
	setup, err := a.SetupWithdraw(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, []common.Hash{a.LatestRoot(), b.LatestRoot()}, setup.Roots)

	_, err = d.bridge.Withdraw(ctx, a.TypedChainID(), "1", req)
	require.NoError(t, err)
}

func TestPropagationFailuresAreAttributed(t *testing.T) {
	d := deployBridge(t, 1, 2, 3)
	ctx := context.Background()
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	d.sides[2].SetSigner(signer.NewLocalSigner(key))

	res, err := d.bridge.Deposit(ctx, d.anchors[0].TypedChainID(), "1", common.HexToHash("0x05"))
	require.NotNil(t, res)
	require.Error(t, err)
	assert.True(t, errors.Is(err, bridgeerrors.ErrGSignerMismatch))
	assert.Contains(t, err.Error(), d.anchors[2].ResourceID().Hex())
	assert.NotContains(t, err.Error(), "update "+d.anchors[1].ResourceID().Hex())

	// the healthy target still got the update
	roots, err := d.anchors[1].PopulateRootsForProof(ctx)
	require.NoError(t, err)
	assert.Contains(t, roots, d.anchors[0].LatestRoot())
}

func TestLookupFailures(t *testing.T) {
	d := deployBridge(t, 1, 2)
	ctx := context.Background()

	_, err := d.bridge.Deposit(ctx, d.anchors[0].TypedChainID(), "100", common.HexToHash("0x01"))
	assert.True(t, errors.Is(err, bridgeerrors.ErrGAnchorNotFound))
	_, err = d.bridge.Deposit(ctx, types.EVMChain(9), "1", common.HexToHash("0x01"))
	assert.True(t, errors.Is(err, bridgeerrors.ErrGAnchorNotFound))

	d.anchors[0].Ledger().(*flakyChain).id = 2
	_, err = d.bridge.Deposit(ctx, d.anchors[0].TypedChainID(), "1", common.HexToHash("0x01"))
	assert.True(t, errors.Is(err, bridgeerrors.ErrGChainMismatch))
	assert.Empty(t, d.anchors[0].DepositHistory())
}

func TestNewRejectsAnchorWithoutSide(t *testing.T) {
	d := deployBridge(t, 1, 2)
	_, err := New(Options{Sides: d.sides[:1], Groups: [][]*anchor.Anchor{d.anchors}})
	assert.True(t, errors.Is(err, bridgeerrors.ErrGSideNotFound))
}

func TestGraph(t *testing.T) {
	d := deployBridge(t, 1, 2)
	g := d.bridge.Graph()
	require.Len(t, g.Anchors, 2)
	assert.Equal(t, types.EVMChain(1), g.Anchors[0].TypedChainID)

	raw, err := json.Marshal(g)
	require.NoError(t, err)
	var back Graph
	require.NoError(t, json.Unmarshal(raw, &back))
	assert.Equal(t, g, back)

	tree := d.bridge.Tree().String()
	assert.True(t, strings.Contains(tree, "EVM:2 size=1"))
}
