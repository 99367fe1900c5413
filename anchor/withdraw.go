package anchor

import (
	"context"
	"fmt"

	"github.com/colorfulnotion/anchorbridge/bridgeerrors"
	"github.com/colorfulnotion/anchorbridge/common"
	"github.com/colorfulnotion/anchorbridge/contracts"
	"github.com/colorfulnotion/anchorbridge/ledger"
	"github.com/colorfulnotion/anchorbridge/log"
	"github.com/colorfulnotion/anchorbridge/prover"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"golang.org/x/exp/slices"
)

// WithdrawRequest names the note being spent. Token is only read by WithdrawAndUnwrap.
type WithdrawRequest struct {
	Commitment    common.Hash
	NullifierHash common.Hash
	Recipient     common.Address
	Token         common.Address
}

type WithdrawSetup struct {
	LeafIndex uint64
	Roots     []common.Hash
	Witness   prover.Witness
	Proof     *prover.Proof
}

// SetupWithdraw reconciles the mirror with the ledger and builds the proof for req.
func (a *Anchor) SetupWithdraw(ctx context.Context, req WithdrawRequest) (*WithdrawSetup, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.setupWithdrawLocked(ctx, req)
}

func (a *Anchor) setupWithdrawLocked(ctx context.Context, req WithdrawRequest) (*WithdrawSetup, error) {
	known, err := a.checkKnownRootLocked(ctx)
	if err != nil {
		return nil, fmt.Errorf("withdraw setup on %s: %w", a.rid, err)
	}
	if !known {
		return nil, fmt.Errorf("root %s on %s after resync: %w", common.Str(a.tree.Root()), a.rid, bridgeerrors.ErrRUnknownRoot)
	}
	index, ok := a.tree.IndexOf(req.Commitment)
	if !ok {
		return nil, fmt.Errorf("commitment %s on %s: %w", common.Str(req.Commitment), a.rid, bridgeerrors.ErrPLeafNotFound)
	}
	path, err := a.tree.Witness(index)
	if err != nil {
		return nil, err
	}
	roots, err := a.populateRootsLocked(ctx)
	if err != nil {
		return nil, err
	}
	w := prover.Witness{
		Commitment: req.Commitment,
		Path:       path,
		TreeHeight: a.treeHeight,
		Inputs: prover.PublicInputs{
			Roots:         roots,
			NullifierHash: req.NullifierHash,
			Recipient:     req.Recipient,
			Token:         req.Token,
			TypedChainID:  a.typedChainID.Uint64(),
		},
	}
	proof, err := a.prover.Prove(ctx, prover.CircuitID(a.treeHeight, a.maxEdges), w)
	if err != nil {
		return nil, err
	}
	log.Debug(log.AnchorMonitoring, "withdraw proof", "rid", a.rid, "index", index, "circuit", proof.CircuitID, "roots", len(roots))
	return &WithdrawSetup{LeafIndex: index, Roots: roots, Witness: w, Proof: proof}, nil
}

func (a *Anchor) Withdraw(ctx context.Context, req WithdrawRequest) (*ethtypes.Receipt, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	req.Token = common.Address{}
	setup, err := a.setupWithdrawLocked(ctx, req)
	if err != nil {
		return nil, err
	}
	data, err := contracts.PackWithdraw(setup.Proof.Bytes, setup.Roots, req.NullifierHash, req.Recipient)
	if err != nil {
		return nil, err
	}
	return a.submitWithdraw(ctx, data, req)
}

func (a *Anchor) WithdrawAndUnwrap(ctx context.Context, req WithdrawRequest, token common.Address) (*ethtypes.Receipt, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	req.Token = token
	setup, err := a.setupWithdrawLocked(ctx, req)
	if err != nil {
		return nil, err
	}
	data, err := contracts.PackWithdrawAndUnwrap(setup.Proof.Bytes, setup.Roots, req.NullifierHash, req.Recipient, token)
	if err != nil {
		return nil, err
	}
	return a.submitWithdraw(ctx, data, req)
}

func (a *Anchor) submitWithdraw(ctx context.Context, data []byte, req WithdrawRequest) (*ethtypes.Receipt, error) {
	receipt, err := ledger.Transact(ctx, a.ledger, ledger.Call{To: a.address, Data: data})
	if err != nil {
		return nil, err
	}
	log.Info(log.AnchorMonitoring, "withdraw", "rid", a.rid, "recipient", req.Recipient, "nullifier", common.Str(req.NullifierHash), "tx", receipt.TxHash)
	return receipt, nil
}

// sortLogs orders logs as the ledger produced them.
func sortLogs(logs []ethtypes.Log) {
	slices.SortStableFunc(logs, func(x, y ethtypes.Log) int {
		switch {
		case x.BlockNumber != y.BlockNumber:
			if x.BlockNumber < y.BlockNumber {
				return -1
			}
			return 1
		case x.Index < y.Index:
			return -1
		case x.Index > y.Index:
			return 1
		}
		return 0
	})
}
