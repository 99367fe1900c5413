// Package simulated is an in-process ledger hosting Go renditions of the governance
// and anchor contracts, ABI-compatible with package contracts.
package simulated

import (
	"fmt"
	"math/big"
	"sync"

	"github.com/colorfulnotion/anchorbridge/common"
	"github.com/colorfulnotion/anchorbridge/ledger"
	"github.com/colorfulnotion/anchorbridge/log"
	"github.com/colorfulnotion/anchorbridge/proposals"
	"github.com/colorfulnotion/anchorbridge/types"
	"github.com/ethereum/go-ethereum/accounts/abi"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
)

const (
	blockTime   = 12
	genesisTime = 1_700_000_000
)

// contract is a Go program living at an address on a Chain.
type contract interface {
	abi() abi.ABI
	// invoke runs method; returning an error reverts every effect of the call.
	invoke(env *env, method string, args []interface{}) ([]interface{}, error)
}

// governed is implemented by contracts that accept proposals relayed by the governance contract.
type governed interface {
	applyProposal(env *env, handler common.Address, p proposals.Proposal) error
}

// Chain is the shared state of one simulated ledger. Every submitted transaction is mined in its own block.
type Chain struct {
	mu sync.Mutex

	chainID   uint64
	block     uint64
	timestamp uint64
	seq       uint64

	contracts map[common.Address]contract
	receipts  map[common.Hash]*ethtypes.Receipt
	reverts   map[common.Hash]string
	logs      []ethtypes.Log
}

func NewChain(chainID uint64) *Chain {
	return &Chain{
		chainID:   chainID,
		timestamp: genesisTime,
		contracts: make(map[common.Address]contract),
		receipts:  make(map[common.Hash]*ethtypes.Receipt),
		reverts:   make(map[common.Hash]string),
	}
}

func (c *Chain) ChainID() uint64 {
	return c.chainID
}

// TypedChainID is the EVM typed id of this chain. It panics if the chain id does not fit 4 bytes.
func (c *Chain) TypedChainID() types.TypedChainID {
	typed, err := types.EVMChainFromLedger(c.chainID)
	if err != nil {
		panic(err)
	}
	return typed
}

// Head is the number of the latest block.
func (c *Chain) Head() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.block
}

// Mine advances the chain by n empty blocks.
func (c *Chain) Mine(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := 0; i < n; i++ {
		c.nextBlock()
	}
}

func (c *Chain) nextBlock() {
	c.block++
	c.timestamp += blockTime
}

// Ledger returns a client of this chain signing as from.
func (c *Chain) Ledger(from common.Address) *Ledger {
	return &Ledger{chain: c, from: from}
}

func (c *Chain) newAddress(kind string) common.Address {
	c.seq++
	h := common.Keccak256([]byte(kind), common.Uint64ToBytes(c.chainID), common.Uint64ToBytes(c.seq))
	return common.BytesToAddress(h.Bytes()[12:])
}

func (c *Chain) deploy(kind string, ct contract) common.Address {
	c.mu.Lock()
	defer c.mu.Unlock()
	addr := c.newAddress(kind)
	c.contracts[addr] = ct
	log.Debug(log.LedgerMonitoring, "simulated deploy", "chainId", c.chainID, "kind", kind, "address", addr)
	return addr
}

// env is the execution context of one call.
type env struct {
	chain     *Chain
	from      common.Address
	self      common.Address
	readOnly  bool
	block     uint64
	timestamp uint64
	logs      *[]*ethtypes.Log
}

func (e *env) emit(topics []common.Hash, data []byte) {
	*e.logs = append(*e.logs, &ethtypes.Log{Address: e.self, Topics: topics, Data: data})
}

// at switches the executing contract for a nested call. Logs are shared with the caller.
func (e *env) at(addr common.Address) *env {
	nested := *e
	nested.from = e.self
	nested.self = addr
	return &nested
}

func revert(reason string) error {
	return &ledger.RevertError{Reason: reason}
}

func revertf(format string, args ...interface{}) error {
	return &ledger.RevertError{Reason: fmt.Sprintf(format, args...)}
}

// execute dispatches calldata to the contract at to. Caller holds c.mu.
func (c *Chain) execute(e *env, to common.Address, data []byte) ([]byte, error) {
	ct, ok := c.contracts[to]
	if !ok {
		return nil, revertf("no contract at %s", to.Hex())
	}
	if len(data) < 4 {
		return nil, revert("missing selector")
	}
	a := ct.abi()
	method, err := a.MethodById(data[:4])
	if err != nil {
		return nil, revertf("unknown selector %x", data[:4])
	}
	if e.readOnly && !method.IsConstant() {
		return nil, fmt.Errorf("simulated: %s is not a view method", method.Name)
	}
	args, err := method.Inputs.Unpack(data[4:])
	if err != nil {
		return nil, revertf("bad calldata for %s: %v", method.Name, err)
	}
	e.self = to
	results, err := ct.invoke(e, method.Name, args)
	if err != nil {
		return nil, err
	}
	return method.Outputs.Pack(results...)
}

func (c *Chain) mine(from common.Address, call ledger.Call) common.Hash {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.seq++
	txHash := common.Keccak256(common.Uint64ToBytes(c.chainID), common.Uint64ToBytes(c.seq), from.Bytes(), call.To.Bytes(), call.Data)
	c.nextBlock()
	e := &env{chain: c, from: from, block: c.block, timestamp: c.timestamp, logs: new([]*ethtypes.Log)}
	receipt := &ethtypes.Receipt{
		Type:              ethtypes.LegacyTxType,
		TxHash:            txHash,
		BlockNumber:       new(big.Int).SetUint64(c.block),
		GasUsed:           21000 + 16*uint64(len(call.Data)),
		CumulativeGasUsed: 21000 + 16*uint64(len(call.Data)),
		Status:            ethtypes.ReceiptStatusSuccessful,
	}
	if _, err := c.execute(e, call.To, call.Data); err != nil {
		receipt.Status = ethtypes.ReceiptStatusFailed
		if re, ok := ledger.IsRevert(err); ok {
			c.reverts[txHash] = re.Reason
		} else {
			c.reverts[txHash] = err.Error()
		}
		log.Debug(log.LedgerMonitoring, "simulated revert", "chainId", c.chainID, "tx", txHash, "reason", c.reverts[txHash])
	} else {
		for i, l := range *e.logs {
			l.BlockNumber = c.block
			l.TxHash = txHash
			l.Index = uint(i)
			c.logs = append(c.logs, *l)
		}
		receipt.Logs = *e.logs
	}
	c.receipts[txHash] = receipt
	return txHash
}
