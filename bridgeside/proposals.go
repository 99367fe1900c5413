package bridgeside

import (
	"context"

	"github.com/colorfulnotion/anchorbridge/common"
	"github.com/colorfulnotion/anchorbridge/proposals"
	"github.com/colorfulnotion/anchorbridge/types"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/holiman/uint256"
)

// noHeader lets BuildProposal fill in the header.
var noHeader types.ProposalHeader

func (b *BridgeSide) CreateAnchorUpdateProposal(ctx context.Context, target types.ResourceID, root common.Hash, src types.ResourceID) (proposals.Proposal, error) {
	return b.BuildProposal(ctx, target, proposals.NewAnchorUpdateProposal(noHeader, root, src))
}

// CreateFeeProposal builds a wrapping fee update; fee is in basis points (0..10000).
func (b *BridgeSide) CreateFeeProposal(ctx context.Context, target types.ResourceID, fee uint16) (proposals.Proposal, error) {
	body, err := proposals.NewWrappingFeeUpdateProposal(noHeader, fee)
	if err != nil {
		return nil, err
	}
	return b.BuildProposal(ctx, target, body)
}

func (b *BridgeSide) CreateTokenAddProposal(ctx context.Context, target types.ResourceID, token common.Address) (proposals.Proposal, error) {
	return b.BuildProposal(ctx, target, proposals.NewTokenAddProposal(noHeader, token))
}

func (b *BridgeSide) CreateTokenRemoveProposal(ctx context.Context, target types.ResourceID, token common.Address) (proposals.Proposal, error) {
	return b.BuildProposal(ctx, target, proposals.NewTokenRemoveProposal(noHeader, token))
}

func (b *BridgeSide) CreateMinWithdrawalLimitProposal(ctx context.Context, target types.ResourceID, limit *uint256.Int) (proposals.Proposal, error) {
	return b.BuildProposal(ctx, target, proposals.NewMinWithdrawalLimitProposal(noHeader, limit))
}

func (b *BridgeSide) CreateMaxDepositLimitProposal(ctx context.Context, target types.ResourceID, limit *uint256.Int) (proposals.Proposal, error) {
	return b.BuildProposal(ctx, target, proposals.NewMaxDepositLimitProposal(noHeader, limit))
}

func (b *BridgeSide) CreateRescueTokensProposal(ctx context.Context, target types.ResourceID, token, to common.Address, amount *uint256.Int) (proposals.Proposal, error) {
	return b.BuildProposal(ctx, target, proposals.NewRescueTokensProposal(noHeader, token, to, amount))
}

func (b *BridgeSide) CreateSetVerifierProposal(ctx context.Context, target types.ResourceID, verifier common.Address) (proposals.Proposal, error) {
	return b.BuildProposal(ctx, target, proposals.NewSetVerifierProposal(noHeader, verifier))
}

func (b *BridgeSide) CreateSetTreasuryHandlerProposal(ctx context.Context, target types.ResourceID, handler common.Address) (proposals.Proposal, error) {
	return b.BuildProposal(ctx, target, proposals.NewSetTreasuryHandlerProposal(noHeader, handler))
}

func (b *BridgeSide) CreateFeeRecipientProposal(ctx context.Context, target types.ResourceID, recipient common.Address) (proposals.Proposal, error) {
	return b.BuildProposal(ctx, target, proposals.NewFeeRecipientUpdateProposal(noHeader, recipient))
}

func (b *BridgeSide) CreateRegisterFungibleTokenProposal(ctx context.Context, target types.ResourceID, handler common.Address, assetID uint32, name, symbol []byte) (proposals.Proposal, error) {
	body, err := proposals.NewRegisterFungibleTokenProposal(noHeader, handler, assetID, name, symbol)
	if err != nil {
		return nil, err
	}
	return b.BuildProposal(ctx, target, body)
}

func (b *BridgeSide) CreateRegisterNftTokenProposal(ctx context.Context, target types.ResourceID, handler common.Address, assetID uint32, collection common.Address, salt common.Hash, uri []byte) (proposals.Proposal, error) {
	body, err := proposals.NewRegisterNftTokenProposal(noHeader, handler, assetID, collection, salt, uri)
	if err != nil {
		return nil, err
	}
	return b.BuildProposal(ctx, target, body)
}

func (b *BridgeSide) CreateResourceIDUpdateProposal(ctx context.Context, target, newResourceID types.ResourceID, handler common.Address) (proposals.Proposal, error) {
	return b.BuildProposal(ctx, target, proposals.NewResourceIDUpdateProposal(noHeader, newResourceID, handler))
}

func (b *BridgeSide) CreateSetHandlerProposal(ctx context.Context, target types.ResourceID, handler common.Address) (proposals.Proposal, error) {
	return b.BuildProposal(ctx, target, proposals.NewSetHandlerProposal(noHeader, handler))
}

func (b *BridgeSide) execute(ctx context.Context, target types.ResourceID, body proposals.Body) (*ethtypes.Receipt, error) {
	_, receipt, err := b.Propose(ctx, target, body)
	return receipt, err
}

// ExecuteAnchorUpdateProposal tells the anchor at target that src's latest root is root.
func (b *BridgeSide) ExecuteAnchorUpdateProposal(ctx context.Context, target types.ResourceID, root common.Hash, src types.ResourceID) (*ethtypes.Receipt, error) {
	return b.execute(ctx, target, proposals.NewAnchorUpdateProposal(noHeader, root, src))
}

func (b *BridgeSide) ExecuteFeeProposal(ctx context.Context, target types.ResourceID, fee uint16) (*ethtypes.Receipt, error) {
	body, err := proposals.NewWrappingFeeUpdateProposal(noHeader, fee)
	if err != nil {
		return nil, err
	}
	return b.execute(ctx, target, body)
}

func (b *BridgeSide) ExecuteTokenAddProposal(ctx context.Context, target types.ResourceID, token common.Address) (*ethtypes.Receipt, error) {
	return b.execute(ctx, target, proposals.NewTokenAddProposal(noHeader, token))
}

func (b *BridgeSide) ExecuteTokenRemoveProposal(ctx context.Context, target types.ResourceID, token common.Address) (*ethtypes.Receipt, error) {
	return b.execute(ctx, target, proposals.NewTokenRemoveProposal(noHeader, token))
}

func (b *BridgeSide) ExecuteMinWithdrawalLimitProposal(ctx context.Context, target types.ResourceID, limit *uint256.Int) (*ethtypes.Receipt, error) {
	return b.execute(ctx, target, proposals.NewMinWithdrawalLimitProposal(noHeader, limit))
}

func (b *BridgeSide) ExecuteMaxDepositLimitProposal(ctx context.Context, target types.ResourceID, limit *uint256.Int) (*ethtypes.Receipt, error) {
	return b.execute(ctx, target, proposals.NewMaxDepositLimitProposal(noHeader, limit))
}

func (b *BridgeSide) ExecuteRescueTokensProposal(ctx context.Context, target types.ResourceID, token, to common.Address, amount *uint256.Int) (*ethtypes.Receipt, error) {
	return b.execute(ctx, target, proposals.NewRescueTokensProposal(noHeader, token, to, amount))
}

func (b *BridgeSide) ExecuteSetVerifierProposal(ctx context.Context, target types.ResourceID, verifier common.Address) (*ethtypes.Receipt, error) {
	return b.execute(ctx, target, proposals.NewSetVerifierProposal(noHeader, verifier))
}

func (b *BridgeSide) ExecuteSetTreasuryHandlerProposal(ctx context.Context, target types.ResourceID, handler common.Address) (*ethtypes.Receipt, error) {
	return b.execute(ctx, target, proposals.NewSetTreasuryHandlerProposal(noHeader, handler))
}

func (b *BridgeSide) ExecuteFeeRecipientProposal(ctx context.Context, target types.ResourceID, recipient common.Address) (*ethtypes.Receipt, error) {
	return b.execute(ctx, target, proposals.NewFeeRecipientUpdateProposal(noHeader, recipient))
}

func (b *BridgeSide) ExecuteRegisterFungibleTokenProposal(ctx context.Context, target types.ResourceID, handler common.Address, assetID uint32, name, symbol []byte) (*ethtypes.Receipt, error) {
	body, err := proposals.NewRegisterFungibleTokenProposal(noHeader, handler, assetID, name, symbol)
	if err != nil {
		return nil, err
	}
	return b.execute(ctx, target, body)
}

func (b *BridgeSide) ExecuteRegisterNftTokenProposal(ctx context.Context, target types.ResourceID, handler common.Address, assetID uint32, collection common.Address, salt common.Hash, uri []byte) (*ethtypes.Receipt, error) {
	body, err := proposals.NewRegisterNftTokenProposal(noHeader, handler, assetID, collection, salt, uri)
	if err != nil {
		return nil, err
	}
	return b.execute(ctx, target, body)
}

func (b *BridgeSide) ExecuteResourceIDUpdateProposal(ctx context.Context, target, newResourceID types.ResourceID, handler common.Address) (*ethtypes.Receipt, error) {
	return b.execute(ctx, target, proposals.NewResourceIDUpdateProposal(noHeader, newResourceID, handler))
}

func (b *BridgeSide) ExecuteSetHandlerProposal(ctx context.Context, target types.ResourceID, handler common.Address) (*ethtypes.Receipt, error) {
	return b.execute(ctx, target, proposals.NewSetHandlerProposal(noHeader, handler))
}
