// Package ledger is the boundary to the chains anchors and governance contracts live on.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/colorfulnotion/anchorbridge/bridgeerrors"
	"github.com/colorfulnotion/anchorbridge/common"
	"github.com/colorfulnotion/anchorbridge/contracts"
	"github.com/colorfulnotion/anchorbridge/log"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
)

// ErrTimeout is returned when a receipt does not arrive before the context deadline.
var ErrTimeout = errors.New("ledger: timed out waiting for receipt")

// Call is a contract invocation sent from the ledger's account.
type Call struct {
	To    common.Address
	Data  []byte
	Value *big.Int
}

// Cost is the gas budget for a Call. GasTipCap != nil selects a dynamic-fee transaction.
type Cost struct {
	Gas       uint64
	GasPrice  *big.Int
	GasTipCap *big.Int
	GasFeeCap *big.Int
}

// EventFilter selects logs emitted by Address; Topics follows eth_getLogs positional matching.
type EventFilter struct {
	Address common.Address
	Topics  [][]common.Hash
}

type Ledger interface {
	ChainID(ctx context.Context) (uint64, error)
	BlockNumber(ctx context.Context) (uint64, error)
	// From is the account that signs submitted transactions.
	From() common.Address
	EstimateCost(ctx context.Context, call Call) (Cost, error)
	Submit(ctx context.Context, call Call, cost Cost) (common.Hash, error)
	Await(ctx context.Context, txHash common.Hash) (*ethtypes.Receipt, error)
	QueryEvents(ctx context.Context, filter EventFilter, fromBlock uint64) ([]ethtypes.Log, error)
	QueryState(ctx context.Context, call Call) ([]byte, error)
}

// RevertError is a rejection by the ledger. Reason is passed through untouched.
type RevertError struct {
	Reason string
	TxHash common.Hash
}

func (e *RevertError) Error() string {
	if e.Reason == "" {
		return "execution reverted"
	}
	return "execution reverted: " + e.Reason
}

// Is lets callers classify well known governance rejections without unwrapping.
func (e *RevertError) Is(target error) bool {
	switch target {
	case bridgeerrors.ErrGNonceMismatch:
		return strings.Contains(e.Reason, contracts.RevertInvalidNonce)
	case bridgeerrors.ErrGSignerMismatch:
		return strings.Contains(e.Reason, contracts.RevertInvalidSignature)
	case bridgeerrors.ErrGProposalRejected:
		return true
	}
	return false
}

// IsRevert reports whether err carries a ledger rejection and returns it.
func IsRevert(err error) (*RevertError, bool) {
	var re *RevertError
	if errors.As(err, &re) {
		return re, true
	}
	return nil, false
}

// Transact estimates, submits and awaits call. Reverts come back as *RevertError.
func Transact(ctx context.Context, l Ledger, call Call) (*ethtypes.Receipt, error) {
	cost, err := l.EstimateCost(ctx, call)
	if err != nil {
		return nil, err
	}
	txHash, err := l.Submit(ctx, call, cost)
	if err != nil {
		return nil, err
	}
	log.Debug(log.LedgerMonitoring, "submitted", "to", call.To, "tx", txHash, "gas", cost.Gas)
	receipt, err := l.Await(ctx, txHash)
	if err != nil {
		return nil, err
	}
	log.Debug(log.LedgerMonitoring, "mined", "tx", txHash, "block", receipt.BlockNumber, "status", receipt.Status)
	return receipt, nil
}

// View runs a read-only call and wraps transport errors with the method name.
func View(ctx context.Context, l Ledger, to common.Address, method string, data []byte) ([]byte, error) {
	out, err := l.QueryState(ctx, Call{To: to, Data: data})
	if err != nil {
		if _, ok := IsRevert(err); ok {
			return nil, err
		}
		return nil, fmt.Errorf("%s on %s: %w", method, to.Hex(), err)
	}
	return out, nil
}
