package simulated

import (
	"context"
	"fmt"
	"sync"

	"github.com/colorfulnotion/anchorbridge/common"
	"github.com/colorfulnotion/anchorbridge/ledger"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
)

const defaultGas = 1_000_000

// Ledger is one account's view of a Chain.
type Ledger struct {
	chain *Chain
	from  common.Address

	mu       sync.Mutex
	queryErr error
}

var _ ledger.Ledger = (*Ledger)(nil)

func (l *Ledger) Chain() *Chain {
	return l.chain
}

// FailQueries makes every subsequent read (state and events) fail with err; nil restores normal operation.
func (l *Ledger) FailQueries(err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.queryErr = err
}

func (l *Ledger) failure() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.queryErr
}

func (l *Ledger) From() common.Address {
	return l.from
}

func (l *Ledger) ChainID(ctx context.Context) (uint64, error) {
	return l.chain.chainID, ctx.Err()
}

func (l *Ledger) BlockNumber(ctx context.Context) (uint64, error) {
	if err := l.failure(); err != nil {
		return 0, err
	}
	return l.chain.Head(), ctx.Err()
}

// EstimateCost returns a flat budget; rejections surface from Await.
func (l *Ledger) EstimateCost(ctx context.Context, call ledger.Call) (ledger.Cost, error) {
	if err := ctx.Err(); err != nil {
		return ledger.Cost{}, err
	}
	return ledger.Cost{Gas: defaultGas + 16*uint64(len(call.Data))}, nil
}

func (l *Ledger) Submit(ctx context.Context, call ledger.Call, cost ledger.Cost) (common.Hash, error) {
	if err := ctx.Err(); err != nil {
		return common.Hash{}, err
	}
	return l.chain.mine(l.from, call), nil
}

func (l *Ledger) Await(ctx context.Context, txHash common.Hash) (*ethtypes.Receipt, error) {
	if ctx.Err() != nil {
		return nil, fmt.Errorf("%w: %s", ledger.ErrTimeout, txHash.Hex())
	}
	l.chain.mu.Lock()
	defer l.chain.mu.Unlock()
	receipt, ok := l.chain.receipts[txHash]
	if !ok {
		return nil, fmt.Errorf("unknown transaction %s", txHash.Hex())
	}
	if receipt.Status != ethtypes.ReceiptStatusSuccessful {
		return nil, &ledger.RevertError{Reason: l.chain.reverts[txHash], TxHash: txHash}
	}
	return receipt, nil
}

func (l *Ledger) QueryEvents(ctx context.Context, filter ledger.EventFilter, fromBlock uint64) ([]ethtypes.Log, error) {
	if err := l.failure(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	l.chain.mu.Lock()
	defer l.chain.mu.Unlock()
	var out []ethtypes.Log
	for _, lg := range l.chain.logs {
		if lg.BlockNumber < fromBlock || lg.Address != filter.Address || !matchTopics(lg.Topics, filter.Topics) {
			continue
		}
		out = append(out, lg)
	}
	return out, nil
}

func matchTopics(have []common.Hash, want [][]common.Hash) bool {
	if len(want) > len(have) {
		return false
	}
	for i, set := range want {
		if len(set) == 0 {
			continue
		}
		found := false
		for _, t := range set {
			if have[i] == t {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func (l *Ledger) QueryState(ctx context.Context, call ledger.Call) ([]byte, error) {
	if err := l.failure(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	l.chain.mu.Lock()
	defer l.chain.mu.Unlock()
	e := &env{
		chain:     l.chain,
		from:      l.from,
		readOnly:  true,
		block:     l.chain.block,
		timestamp: l.chain.timestamp,
		logs:      new([]*ethtypes.Log),
	}
	return l.chain.execute(e, call.To, call.Data)
}
