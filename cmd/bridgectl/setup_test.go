package main

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/colorfulnotion/anchorbridge/common"
	"github.com/colorfulnotion/anchorbridge/config"
	"github.com/colorfulnotion/anchorbridge/telemetry"
	"github.com/colorfulnotion/anchorbridge/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSimulatedLocalnet(t *testing.T) {
	ctx := context.Background()
	e, err := setup(ctx, options{deployment: "localnet", simulated: true})
	require.NoError(t, err)
	defer e.Close()

	require.Len(t, e.sides, 3)
	require.Len(t, e.anchors, 3)
	assert.Equal(t, 6, e.bridge.LinkedAnchors().Edges())

	for _, ref := range []string{"hermes:1", "athena:1", "demeter:1"} {
		a, side, err := e.resolve(ref)
		require.NoError(t, err)
		nonce, err := side.ProposalNonce(ctx, a.ResourceID())
		require.NoError(t, err)
		assert.Equal(t, types.Nonce(2), nonce, ref)
	}

	hermes, _, err := e.resolve("hermes:1")
	require.NoError(t, err)
	res, err := e.bridge.Deposit(ctx, hermes.TypedChainID(), hermes.Size(), common.HexToHash("0xc0ffee"))
	require.NoError(t, err)
	assert.Equal(t, uint64(0), res.Index)

	for _, ref := range []string{"athena:1", "demeter:1"} {
		a, side, err := e.resolve(ref)
		require.NoError(t, err)
		nonce, err := side.ProposalNonce(ctx, a.ResourceID())
		require.NoError(t, err)
		assert.Equal(t, types.Nonce(3), nonce, ref)

		roots, err := a.PopulateRootsForProof(ctx)
		require.NoError(t, err)
		assert.Contains(t, roots[1:], res.Root, ref)
	}

	_, _, err = e.resolve("hermes:2")
	assert.Error(t, err)
}

func TestSimulatedWithStore(t *testing.T) {
	e, err := setup(context.Background(), options{
		deployment: "localnet",
		simulated:  true,
		storePath:  filepath.Join(t.TempDir(), "mirrors"),
	})
	require.NoError(t, err)
	defer e.Close()

	a, _, err := e.resolve("athena:1")
	require.NoError(t, err)
	require.NoError(t, a.Update(context.Background(), nil))
	assert.Empty(t, a.Leaves())
}

func TestLiveSetupNeedsKeys(t *testing.T) {
	t.Setenv(config.EnvGovernorKey, "")
	t.Setenv(config.EnvAdminKey, "")

	_, err := setup(context.Background(), options{deployment: "localnet"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no governor key")

	_, key := common.GetEVMDevAccount(1)
	_, err = setup(context.Background(), options{deployment: "localnet", governorKey: key})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no admin key")
}

func TestExecuteFlushesTelemetryOnFailure(t *testing.T) {
	flushed := 0
	initTelemetry = func(ctx context.Context, endpoint, serviceName string) (telemetry.Shutdown, error) {
		return func(context.Context) error {
			flushed++
			return nil
		}, nil
	}
	defer func() { initTelemetry = telemetry.Init }()

	code := execute(options{deployment: "localnet", simulated: true}, "", func(ctx context.Context, e *env) error {
		return errors.New("deposit rejected")
	})
	assert.Equal(t, 1, code)
	assert.Equal(t, 1, flushed)

	code = execute(options{deployment: "no-such-deployment.json"}, "", func(ctx context.Context, e *env) error {
		return nil
	})
	assert.Equal(t, 1, code)
	assert.Equal(t, 2, flushed)

	code = execute(options{deployment: "localnet", simulated: true}, "", func(ctx context.Context, e *env) error {
		return nil
	})
	assert.Equal(t, 0, code)
	assert.Equal(t, 3, flushed)
}

func TestParseAddress(t *testing.T) {
	addr, err := parseAddress("0x00000000000000000000000000000000000000c0")
	require.NoError(t, err)
	assert.Equal(t, common.HexToAddress("0xc0"), addr)

	_, err = parseAddress("0xc0")
	assert.Error(t, err)
	_, err = parseAddress("not-an-address")
	assert.Error(t, err)
}
