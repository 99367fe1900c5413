package ledger

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/colorfulnotion/anchorbridge/common"
	"github.com/colorfulnotion/anchorbridge/log"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
)

const (
	DefaultPollInterval = 500 * time.Millisecond
	// gas estimates are padded by 20%
	gasMarginNum, gasMarginDen = 6, 5
)

// EVMLedger talks to an EVM chain over JSON-RPC and signs with a local admin key.
type EVMLedger struct {
	client       *ethclient.Client
	key          *ecdsa.PrivateKey
	from         common.Address
	chainID      *big.Int
	pollInterval time.Duration
}

// DialEVM connects to rpcURL and pins the chain id reported by the node.
func DialEVM(ctx context.Context, rpcURL string, adminKeyHex string, pollInterval time.Duration) (*EVMLedger, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(adminKeyHex, "0x"))
	if err != nil {
		return nil, fmt.Errorf("admin key: %w", err)
	}
	client, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", rpcURL, err)
	}
	chainID, err := client.ChainID(ctx)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("eth_chainId on %s: %w", rpcURL, err)
	}
	if pollInterval <= 0 {
		pollInterval = DefaultPollInterval
	}
	l := &EVMLedger{
		client:       client,
		key:          key,
		from:         crypto.PubkeyToAddress(key.PublicKey),
		chainID:      chainID,
		pollInterval: pollInterval,
	}
	log.Info(log.LedgerMonitoring, "connected", "rpc", rpcURL, "chainId", chainID, "from", l.from)
	return l, nil
}

func (l *EVMLedger) Close() {
	l.client.Close()
}

func (l *EVMLedger) From() common.Address {
	return l.from
}

func (l *EVMLedger) ChainID(ctx context.Context) (uint64, error) {
	id, err := l.client.ChainID(ctx)
	if err != nil {
		return 0, err
	}
	return id.Uint64(), nil
}

func (l *EVMLedger) BlockNumber(ctx context.Context) (uint64, error) {
	return l.client.BlockNumber(ctx)
}

func (l *EVMLedger) callMsg(call Call) ethereum.CallMsg {
	to := call.To
	return ethereum.CallMsg{From: l.from, To: &to, Data: call.Data, Value: call.Value}
}

func (l *EVMLedger) EstimateCost(ctx context.Context, call Call) (Cost, error) {
	gas, err := l.client.EstimateGas(ctx, l.callMsg(call))
	if err != nil {
		return Cost{}, asRevert(err, common.Hash{})
	}
	cost := Cost{Gas: gas * gasMarginNum / gasMarginDen}
	head, err := l.client.HeaderByNumber(ctx, nil)
	if err != nil {
		return Cost{}, fmt.Errorf("latest header: %w", err)
	}
	if head.BaseFee != nil {
		tip, err := l.client.SuggestGasTipCap(ctx)
		if err != nil {
			return Cost{}, fmt.Errorf("eth_maxPriorityFeePerGas: %w", err)
		}
		cost.GasTipCap = tip
		cost.GasFeeCap = new(big.Int).Add(tip, new(big.Int).Mul(head.BaseFee, big.NewInt(2)))
		return cost, nil
	}
	price, err := l.client.SuggestGasPrice(ctx)
	if err != nil {
		return Cost{}, fmt.Errorf("eth_gasPrice: %w", err)
	}
	cost.GasPrice = price
	return cost, nil
}

func (l *EVMLedger) Submit(ctx context.Context, call Call, cost Cost) (common.Hash, error) {
	nonce, err := l.client.PendingNonceAt(ctx, l.from)
	if err != nil {
		return common.Hash{}, fmt.Errorf("pending nonce of %s: %w", l.from.Hex(), err)
	}
	value := call.Value
	if value == nil {
		value = new(big.Int)
	}
	to := call.To
	var inner ethtypes.TxData
	if cost.GasTipCap != nil {
		inner = &ethtypes.DynamicFeeTx{
			ChainID:   l.chainID,
			Nonce:     nonce,
			GasTipCap: cost.GasTipCap,
			GasFeeCap: cost.GasFeeCap,
			Gas:       cost.Gas,
			To:        &to,
			Value:     value,
			Data:      call.Data,
		}
	} else {
		inner = &ethtypes.LegacyTx{
			Nonce:    nonce,
			GasPrice: cost.GasPrice,
			Gas:      cost.Gas,
			To:       &to,
			Value:    value,
			Data:     call.Data,
		}
	}
	tx, err := ethtypes.SignNewTx(l.key, ethtypes.LatestSignerForChainID(l.chainID), inner)
	if err != nil {
		return common.Hash{}, fmt.Errorf("sign transaction: %w", err)
	}
	if err := l.client.SendTransaction(ctx, tx); err != nil {
		return common.Hash{}, asRevert(err, tx.Hash())
	}
	return tx.Hash(), nil
}

// Await polls for the receipt until ctx ends. A failed transaction is replayed as a call to recover the reason.
func (l *EVMLedger) Await(ctx context.Context, txHash common.Hash) (*ethtypes.Receipt, error) {
	ticker := time.NewTicker(l.pollInterval)
	defer ticker.Stop()
	for {
		receipt, err := l.client.TransactionReceipt(ctx, txHash)
		switch {
		case err == nil:
			if receipt.Status == ethtypes.ReceiptStatusSuccessful {
				return receipt, nil
			}
			return nil, l.revertReason(ctx, txHash, receipt.BlockNumber)
		case !errors.Is(err, ethereum.NotFound):
			if ctx.Err() != nil {
				return nil, fmt.Errorf("%w: %s", ErrTimeout, txHash.Hex())
			}
			return nil, fmt.Errorf("receipt %s: %w", txHash.Hex(), err)
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %s", ErrTimeout, txHash.Hex())
		case <-ticker.C:
		}
	}
}

func (l *EVMLedger) revertReason(ctx context.Context, txHash common.Hash, block *big.Int) error {
	tx, _, err := l.client.TransactionByHash(ctx, txHash)
	if err != nil {
		return &RevertError{TxHash: txHash}
	}
	msg := ethereum.CallMsg{From: l.from, To: tx.To(), Data: tx.Data(), Value: tx.Value(), Gas: tx.Gas()}
	if _, err := l.client.CallContract(ctx, msg, block); err != nil {
		return asRevert(err, txHash)
	}
	return &RevertError{TxHash: txHash}
}

func (l *EVMLedger) QueryEvents(ctx context.Context, filter EventFilter, fromBlock uint64) ([]ethtypes.Log, error) {
	return l.client.FilterLogs(ctx, ethereum.FilterQuery{
		FromBlock: new(big.Int).SetUint64(fromBlock),
		Addresses: []common.Address{filter.Address},
		Topics:    filter.Topics,
	})
}

func (l *EVMLedger) QueryState(ctx context.Context, call Call) ([]byte, error) {
	out, err := l.client.CallContract(ctx, l.callMsg(call), nil)
	if err != nil {
		return nil, asRevert(err, common.Hash{})
	}
	return out, nil
}

// asRevert turns node "execution reverted" errors into *RevertError and leaves transport errors alone.
func asRevert(err error, txHash common.Hash) error {
	var dataErr rpc.DataError
	if errors.As(err, &dataErr) {
		if hexData, ok := dataErr.ErrorData().(string); ok {
			if reason, uerr := abi.UnpackRevert(common.FromHex(hexData)); uerr == nil {
				return &RevertError{Reason: reason, TxHash: txHash}
			}
		}
	}
	msg := err.Error()
	if i := strings.Index(msg, "execution reverted"); i >= 0 {
		reason := strings.TrimPrefix(strings.TrimPrefix(msg[i:], "execution reverted"), ":")
		return &RevertError{Reason: strings.TrimSpace(reason), TxHash: txHash}
	}
	return err
}
