package anchor

import (
	"context"
	"errors"
	"testing"

	"github.com/colorfulnotion/anchorbridge/bridgeerrors"
	"github.com/colorfulnotion/anchorbridge/common"
	"github.com/colorfulnotion/anchorbridge/contracts"
	"github.com/colorfulnotion/anchorbridge/ledger"
	"github.com/colorfulnotion/anchorbridge/ledger/simulated"
	"github.com/colorfulnotion/anchorbridge/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testHeight = 5

func deploy(t *testing.T, historySize int) (*simulated.Chain, common.Address) {
	t.Helper()
	chain := simulated.NewChain(1337)
	addr, err := chain.DeployAnchor(simulated.AnchorConfig{Levels: testHeight, MaxEdges: 2, RootHistorySize: historySize})
	require.NoError(t, err)
	return chain, addr
}

func wrap(t *testing.T, chain *simulated.Chain, addr common.Address, account int, store *storage.MirrorStore) (*Anchor, *simulated.Ledger) {
	t.Helper()
	from, _ := common.GetEVMDevAccount(account)
	l := chain.Ledger(from)
	a, err := New(context.Background(), l, Config{Address: addr, Size: "1", Store: store})
	require.NoError(t, err)
	return a, l
}

func commitment(i int) common.Hash {
	return common.Keccak256([]byte("note"), []byte{byte(i)})
}

func TestNewReadsContractParameters(t *testing.T) {
	chain, addr := deploy(t, 0)
	a, _ := wrap(t, chain, addr, 0, nil)
	assert.Equal(t, testHeight, a.TreeHeight())
	assert.Equal(t, uint8(2), a.MaxEdges())
	assert.Equal(t, addr, a.ResourceID().Address())
	assert.Equal(t, chain.TypedChainID(), a.ResourceID().TypedChainID())
	assert.Empty(t, a.DepositHistory())
}

func TestDepositMirrorsLeaf(t *testing.T) {
	chain, addr := deploy(t, 0)
	a, _ := wrap(t, chain, addr, 0, nil)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		res, err := a.Deposit(ctx, commitment(i))
		require.NoError(t, err)
		assert.Equal(t, uint64(i), res.Index)
		assert.Equal(t, a.LatestRoot(), res.Root)
	}
	assert.Len(t, a.DepositHistory(), 3)
	known, err := a.CheckKnownRoot(ctx)
	require.NoError(t, err)
	assert.True(t, known)
}

func TestUpdateCatchesUpTwoDeposits(t *testing.T) {
	chain, addr := deploy(t, 0)
	ctx := context.Background()
	writer, _ := wrap(t, chain, addr, 0, nil)
	mirror, _ := wrap(t, chain, addr, 1, nil)

	_, err := writer.Deposit(ctx, commitment(0))
	require.NoError(t, err)
	require.NoError(t, mirror.Update(ctx, nil))
	require.Len(t, mirror.DepositHistory(), 1)

	_, err = writer.Deposit(ctx, commitment(1))
	require.NoError(t, err)
	_, err = writer.Deposit(ctx, commitment(2))
	require.NoError(t, err)

	before := len(mirror.DepositHistory())
	require.NoError(t, mirror.Update(ctx, nil))
	known, err := mirror.CheckKnownRoot(ctx)
	require.NoError(t, err)
	assert.True(t, known)
	assert.Equal(t, before+2, len(mirror.DepositHistory()))
	assert.Equal(t, chain.Head(), mirror.LatestSyncedBlock())
	assert.Equal(t, writer.DepositHistory(), mirror.DepositHistory())
}

func TestCheckKnownRootResyncsEvictedRoot(t *testing.T) {
	chain, addr := deploy(t, 2)
	ctx := context.Background()
	writer, _ := wrap(t, chain, addr, 0, nil)
	mirror, _ := wrap(t, chain, addr, 1, nil)

	_, err := writer.Deposit(ctx, commitment(0))
	require.NoError(t, err)
	require.NoError(t, mirror.Update(ctx, nil))
	for i := 1; i < 4; i++ {
		_, err = writer.Deposit(ctx, commitment(i))
		require.NoError(t, err)
	}

	known, err := mirror.CheckKnownRoot(ctx)
	require.NoError(t, err)
	assert.True(t, known)
	assert.Len(t, mirror.DepositHistory(), 4)
	assert.Equal(t, writer.LatestRoot(), mirror.LatestRoot())
}

func TestDepositAfterForeignDeposits(t *testing.T) {
	chain, addr := deploy(t, 0)
	ctx := context.Background()
	writer, _ := wrap(t, chain, addr, 0, nil)
	other, _ := wrap(t, chain, addr, 1, nil)

	_, err := other.Deposit(ctx, commitment(7))
	require.NoError(t, err)
	res, err := writer.Deposit(ctx, commitment(8))
	require.NoError(t, err)
	assert.Equal(t, uint64(1), res.Index)
	assert.Equal(t, other.Leaves()[0], writer.Leaves()[0])
}

func TestUpdateDetectsGapAndDivergence(t *testing.T) {
	chain, addr := deploy(t, 0)
	ctx := context.Background()
	writer, _ := wrap(t, chain, addr, 0, nil)
	_, err := writer.Deposit(ctx, commitment(0))
	require.NoError(t, err)
	_, err = writer.Deposit(ctx, commitment(1))
	require.NoError(t, err)

	gapped, _ := wrap(t, chain, addr, 1, nil)
	from := chain.Head()
	err = gapped.Update(ctx, &from)
	assert.True(t, errors.Is(err, bridgeerrors.ErrRLeafGap))
	assert.Equal(t, uint64(0), gapped.LatestSyncedBlock())

	diverged, _ := wrap(t, chain, addr, 2, nil)
	_, _, err = diverged.Insert(commitment(42))
	require.NoError(t, err)
	err = diverged.Update(ctx, nil)
	assert.True(t, errors.Is(err, bridgeerrors.ErrRMirrorDiverged))
}

func TestPopulateRootsForProof(t *testing.T) {
	chain, addr := deploy(t, 0)
	a, _ := wrap(t, chain, addr, 0, nil)
	roots, err := a.PopulateRootsForProof(context.Background())
	require.NoError(t, err)
	require.Len(t, roots, int(a.MaxEdges())+1)
	assert.Equal(t, a.LatestRoot(), roots[0])
	for _, r := range roots[1:] {
		assert.Equal(t, common.Hash{}, r)
	}
}

func TestWithdraw(t *testing.T) {
	chain, addr := deploy(t, 0)
	ctx := context.Background()
	a, _ := wrap(t, chain, addr, 0, nil)
	_, err := a.Deposit(ctx, commitment(0))
	require.NoError(t, err)
	_, err = a.Deposit(ctx, commitment(1))
	require.NoError(t, err)

	recipient, _ := common.GetEVMDevAccount(3)
	req := WithdrawRequest{Commitment: commitment(0), NullifierHash: common.HexToHash("0xdead"), Recipient: recipient}
	setup, err := a.SetupWithdraw(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), setup.LeafIndex)
	assert.Len(t, setup.Proof.PublicSignals, len(setup.Roots)+4)

	_, err = a.Withdraw(ctx, req)
	require.NoError(t, err)

	_, err = a.Withdraw(ctx, req)
	re, ok := ledger.IsRevert(err)
	require.True(t, ok)
	assert.Equal(t, contracts.RevertNullifierSpent, re.Reason)

	_, err = a.SetupWithdraw(ctx, WithdrawRequest{Commitment: commitment(9)})
	assert.True(t, errors.Is(err, bridgeerrors.ErrPLeafNotFound))
}

func TestWithdrawAndUnwrapRejectsUnknownToken(t *testing.T) {
	chain, addr := deploy(t, 0)
	ctx := context.Background()
	a, _ := wrap(t, chain, addr, 0, nil)
	token := common.HexToAddress("0x00000000000000000000000000000000000000c0")

	_, err := a.WrapAndDeposit(ctx, token, commitment(0))
	re, ok := ledger.IsRevert(err)
	require.True(t, ok)
	assert.Equal(t, contracts.RevertInvalidToken, re.Reason)
	assert.Empty(t, a.DepositHistory())
}

func TestSetupWithdrawQueryFailure(t *testing.T) {
	chain, addr := deploy(t, 0)
	ctx := context.Background()
	a, l := wrap(t, chain, addr, 0, nil)
	_, err := a.Deposit(ctx, commitment(0))
	require.NoError(t, err)

	down := errors.New("rpc unavailable")
	l.FailQueries(down)
	_, err = a.SetupWithdraw(ctx, WithdrawRequest{Commitment: commitment(0)})
	assert.True(t, errors.Is(err, down))

	l.FailQueries(nil)
	_, err = a.SetupWithdraw(ctx, WithdrawRequest{Commitment: commitment(0)})
	assert.NoError(t, err)
}

func TestMirrorSurvivesRestart(t *testing.T) {
	chain, addr := deploy(t, 0)
	ctx := context.Background()
	ps, err := storage.NewMemoryPersistenceStore()
	require.NoError(t, err)
	store := storage.NewMirrorStore(ps)
	defer store.Close()

	a, _ := wrap(t, chain, addr, 0, store)
	for i := 0; i < 2; i++ {
		_, err := a.Deposit(ctx, commitment(i))
		require.NoError(t, err)
	}
	require.NoError(t, a.Update(ctx, nil))

	restarted, _ := wrap(t, chain, addr, 0, store)
	assert.Equal(t, a.DepositHistory(), restarted.DepositHistory())
	assert.Equal(t, a.LatestRoot(), restarted.LatestRoot())
	assert.Equal(t, a.LatestSyncedBlock(), restarted.LatestSyncedBlock())
}

func TestNewRejectsWideChainID(t *testing.T) {
	from, _ := common.GetEVMDevAccount(0)
	chain := simulated.NewChain(1<<32 + 5)
	_, err := chain.DeployAnchor(simulated.AnchorConfig{Levels: testHeight, MaxEdges: 1})
	assert.True(t, errors.Is(err, bridgeerrors.ErrCFieldWidth))

	_, err = New(context.Background(), chain.Ledger(from), Config{Address: common.HexToAddress("0x0a"), Size: "1", TreeHeight: testHeight, MaxEdges: 1})
	require.Error(t, err)
	assert.True(t, errors.Is(err, bridgeerrors.ErrCFieldWidth))
}

func TestCheckKnownRootRebuildsDivergedMirror(t *testing.T) {
	chain, addr := deploy(t, 0)
	ctx := context.Background()
	ps, err := storage.NewMemoryPersistenceStore()
	require.NoError(t, err)
	store := storage.NewMirrorStore(ps)
	defer store.Close()

	writer, _ := wrap(t, chain, addr, 0, nil)
	for i := 0; i < 2; i++ {
		_, err := writer.Deposit(ctx, commitment(i))
		require.NoError(t, err)
	}

	diverged, _ := wrap(t, chain, addr, 1, store)
	_, _, err = diverged.Insert(commitment(42))
	require.NoError(t, err)
	require.True(t, errors.Is(diverged.Update(ctx, nil), bridgeerrors.ErrRMirrorDiverged))

	known, err := diverged.CheckKnownRoot(ctx)
	require.NoError(t, err)
	assert.True(t, known)
	assert.Equal(t, writer.Leaves(), diverged.Leaves())
	assert.Equal(t, writer.DepositHistory(), diverged.DepositHistory())
	assert.NoError(t, diverged.Update(ctx, nil))

	// the stored copy was rebuilt too
	restarted, _ := wrap(t, chain, addr, 1, store)
	assert.Equal(t, writer.Leaves(), restarted.Leaves())
}
