package bridgeside

import (
	"context"
	"fmt"

	"github.com/colorfulnotion/anchorbridge/common"
	"github.com/colorfulnotion/anchorbridge/contracts"
	"github.com/colorfulnotion/anchorbridge/ledger"
	"github.com/colorfulnotion/anchorbridge/log"
	"github.com/colorfulnotion/anchorbridge/proposals"
	"github.com/colorfulnotion/anchorbridge/telemetry"
	"github.com/colorfulnotion/anchorbridge/types"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
)

// Governor is the address whose signatures the governance contract accepts.
func (b *BridgeSide) Governor(ctx context.Context) (common.Address, error) {
	data, err := contracts.PackGovernor()
	if err != nil {
		return common.Address{}, err
	}
	out, err := ledger.View(ctx, b.ledger, b.governance, "governor", data)
	if err != nil {
		return common.Address{}, err
	}
	return contracts.UnpackAddress(contracts.GovernanceABI, "governor", out)
}

func (b *BridgeSide) RefreshNonce(ctx context.Context) (types.Nonce, error) {
	data, err := contracts.PackRefreshNonce()
	if err != nil {
		return 0, err
	}
	out, err := ledger.View(ctx, b.ledger, b.governance, "refreshNonce", data)
	if err != nil {
		return 0, err
	}
	n, err := contracts.UnpackRefreshNonce(out)
	return types.Nonce(n), err
}

// ExecuteRefresh submits refreshKey(data, sig) for an already signed refresh proposal.
func (b *BridgeSide) ExecuteRefresh(ctx context.Context, refresh proposals.RefreshProposal, sig []byte) (*ethtypes.Receipt, error) {
	b.mustHandler()
	ctx, span := telemetry.Start(ctx, telemetry.Span_Refresh_Governor, telemetry.AttrNonce.Int64(int64(refresh.Nonce)))
	receipt, err := b.executeRefresh(ctx, refresh, sig)
	telemetry.End(span, err)
	return receipt, err
}

func (b *BridgeSide) executeRefresh(ctx context.Context, refresh proposals.RefreshProposal, sig []byte) (*ethtypes.Receipt, error) {
	calldata, err := contracts.PackRefreshKey(refresh.Bytes(), sig)
	if err != nil {
		return nil, err
	}
	receipt, err := ledger.Transact(ctx, b.ledger, ledger.Call{To: b.governance, Data: calldata})
	if err != nil {
		return nil, fmt.Errorf("refresh nonce %d: %w", refresh.Nonce, err)
	}
	return receipt, nil
}

// TransferOwnership hands governance to the holder of publicKey. The current governor signs the
// refresh; callers switch to the new signer with SetSigner once it is mined.
func (b *BridgeSide) TransferOwnership(ctx context.Context, publicKey []byte, voterRoot common.Hash, sessionLength uint64, voterCount uint32) (*ethtypes.Receipt, error) {
	nonce, err := b.RefreshNonce(ctx)
	if err != nil {
		return nil, err
	}
	refresh, err := proposals.NewRefreshProposal(voterRoot, sessionLength, voterCount, nonce.Next(), publicKey)
	if err != nil {
		return nil, err
	}
	next, err := refresh.GovernorAddress()
	if err != nil {
		return nil, err
	}
	sig, err := b.SignProposal(ctx, refresh)
	if err != nil {
		return nil, err
	}
	receipt, err := b.ExecuteRefresh(ctx, refresh, sig)
	if err != nil {
		return nil, err
	}
	log.Info(log.GovernanceMonitoring, "governor refreshed", "side", b, "governor", next, "nonce", refresh.Nonce)
	return receipt, nil
}
