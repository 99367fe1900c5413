package simulated

import (
	"bytes"

	"github.com/colorfulnotion/anchorbridge/common"
	"github.com/colorfulnotion/anchorbridge/contracts"
	"github.com/colorfulnotion/anchorbridge/merkle"
	"github.com/colorfulnotion/anchorbridge/proposals"
	"github.com/colorfulnotion/anchorbridge/prover"
	"github.com/colorfulnotion/anchorbridge/types"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/holiman/uint256"
)

// DefaultRootHistorySize is how many recent roots an anchor still accepts in a proof.
const DefaultRootHistorySize = 30

type AnchorConfig struct {
	Levels          int
	MaxEdges        uint8
	RootHistorySize int
	// Tokens are accepted by wrapAndDeposit from genesis.
	Tokens []common.Address
}

type edge struct {
	src     types.ResourceID
	root    common.Hash
	history []common.Hash
}

// anchorContract keeps the on-ledger commitment tree, root history and neighbour edges.
type anchorContract struct {
	typedChainID uint64
	maxEdges     uint8
	historySize  int

	tree     *merkle.MerkleTree
	roots    []common.Hash
	edges    []*edge
	spent    map[common.Hash]bool
	handler  common.Address
	verifier common.Address

	// wrapper configuration applied through governance
	tokens           map[common.Address]bool
	fee              uint16
	feeRecipient     common.Address
	treasuryHandler  common.Address
	minWithdrawLimit uint256.Int
	maxDepositLimit  uint256.Int
	assets           map[uint32]common.Address
	rescued          []proposals.RescueTokensProposal
}

// DeployAnchor installs an anchor contract on c.
func (c *Chain) DeployAnchor(cfg AnchorConfig) (common.Address, error) {
	if cfg.Levels == 0 {
		cfg.Levels = merkle.DefaultHeight
	}
	if cfg.RootHistorySize <= 0 {
		cfg.RootHistorySize = DefaultRootHistorySize
	}
	typed, err := types.EVMChainFromLedger(c.chainID)
	if err != nil {
		return common.Address{}, err
	}
	tree, err := merkle.NewMerkleTree(cfg.Levels)
	if err != nil {
		return common.Address{}, err
	}
	a := &anchorContract{
		typedChainID: typed.Uint64(),
		maxEdges:     cfg.MaxEdges,
		historySize:  cfg.RootHistorySize,
		tree:         tree,
		roots:        []common.Hash{tree.Root()},
		spent:        make(map[common.Hash]bool),
		tokens:       make(map[common.Address]bool),
		assets:       make(map[uint32]common.Address),
	}
	for _, t := range cfg.Tokens {
		a.tokens[t] = true
	}
	return c.deploy("anchor", a), nil
}

func (a *anchorContract) abi() abi.ABI {
	return contracts.AnchorABI
}

func (a *anchorContract) invoke(e *env, method string, args []interface{}) ([]interface{}, error) {
	switch method {
	case "deposit":
		return nil, a.deposit(e, args[0].([32]byte))
	case "wrapAndDeposit":
		if !a.tokens[args[0].(common.Address)] {
			return nil, revert(contracts.RevertInvalidToken)
		}
		return nil, a.deposit(e, args[1].([32]byte))
	case "withdraw":
		return nil, a.withdraw(e, args[0].([]byte), hashes(args[1]), args[2].([32]byte), args[3].(common.Address), common.Address{})
	case "withdrawAndUnwrap":
		token := args[4].(common.Address)
		if !a.tokens[token] {
			return nil, revert(contracts.RevertInvalidToken)
		}
		return nil, a.withdraw(e, args[0].([]byte), hashes(args[1]), args[2].([32]byte), args[3].(common.Address), token)
	case "isKnownRoot":
		return []interface{}{a.isKnownRoot(args[0].([32]byte))}, nil
	case "getLastRoot":
		return []interface{}{[32]byte(a.tree.Root())}, nil
	case "getLatestNeighborRoots":
		return []interface{}{a.neighborRoots()}, nil
	case "maxEdges":
		return []interface{}{a.maxEdges}, nil
	case "levels":
		return []interface{}{uint32(a.tree.Height())}, nil
	case "nextIndex":
		return []interface{}{uint32(a.tree.Size())}, nil
	case "isSpent":
		return []interface{}{a.spent[args[0].([32]byte)]}, nil
	case "handler":
		return []interface{}{a.handler}, nil
	case "getFee":
		return []interface{}{a.fee}, nil
	case "isValidToken":
		return []interface{}{a.tokens[args[0].(common.Address)]}, nil
	}
	return nil, revertf("anchor: unsupported method %s", method)
}

func hashes(v interface{}) []common.Hash {
	raw := v.([][32]byte)
	out := make([]common.Hash, len(raw))
	for i, r := range raw {
		out[i] = r
	}
	return out
}

func (a *anchorContract) deposit(e *env, commitment common.Hash) error {
	if a.tree.Size() >= a.tree.Capacity() {
		return revert(contracts.RevertTreeFull)
	}
	index, root, err := a.tree.Append(commitment)
	if err != nil {
		return revertf("%s: %v", contracts.RevertTreeFull, err)
	}
	a.roots = append(a.roots, root)
	if len(a.roots) > a.historySize {
		a.roots = a.roots[len(a.roots)-a.historySize:]
	}
	topics, data, err := contracts.EncodeInsertion(commitment, uint32(index), e.timestamp)
	if err != nil {
		return err
	}
	e.emit(topics, data)
	return nil
}

func (a *anchorContract) isKnownRoot(root common.Hash) bool {
	if root == (common.Hash{}) {
		return false
	}
	for _, r := range a.roots {
		if r == root {
			return true
		}
	}
	return false
}

// neighborRoots is the latest root of every edge slot in edge-index order; empty slots are zero.
func (a *anchorContract) neighborRoots() [][32]byte {
	out := make([][32]byte, a.maxEdges)
	for i, ed := range a.edges {
		out[i] = ed.root
	}
	return out
}

func (a *anchorContract) isKnownNeighborRoot(slot int, root common.Hash) bool {
	if slot >= len(a.edges) {
		return root == (common.Hash{})
	}
	for _, r := range a.edges[slot].history {
		if r == root {
			return true
		}
	}
	return false
}

func (a *anchorContract) withdraw(e *env, proof []byte, roots []common.Hash, nullifier common.Hash, recipient, token common.Address) error {
	if len(roots) != int(a.maxEdges)+1 {
		return revert(contracts.RevertInvalidRootsLength)
	}
	if !a.isKnownRoot(roots[0]) {
		return revert(contracts.RevertUnknownRoot)
	}
	for i, r := range roots[1:] {
		if !a.isKnownNeighborRoot(i, r) {
			return revertf("%s: neighbour edge %d", contracts.RevertUnknownRoot, i)
		}
	}
	if a.spent[nullifier] {
		return revert(contracts.RevertNullifierSpent)
	}
	want := prover.DevProof(prover.PublicInputs{
		Roots:         roots,
		NullifierHash: nullifier,
		Recipient:     recipient,
		Token:         token,
		TypedChainID:  a.typedChainID,
	})
	if !bytes.Equal(proof, want) {
		return revert(contracts.RevertInvalidProof)
	}
	a.spent[nullifier] = true
	topics, data, err := contracts.EncodeEvent(contracts.AnchorABI, "Withdrawal",
		[]common.Hash{common.BytesToHash(recipient.Bytes())}, [32]byte(nullifier))
	if err != nil {
		return err
	}
	e.emit(topics, data)
	return nil
}

// applyProposal executes a governance action relayed by handler.
func (a *anchorContract) applyProposal(e *env, handler common.Address, p proposals.Proposal) error {
	if sh, ok := p.(proposals.SetHandlerProposal); ok {
		a.handler = sh.Address
		return nil
	}
	if a.handler == (common.Address{}) {
		return revert(contracts.RevertHandlerNotSet)
	}
	if a.handler != handler {
		return revert(contracts.RevertOnlyHandler)
	}
	switch prop := p.(type) {
	case proposals.AnchorUpdateProposal:
		return a.updateEdge(e, prop.MerkleRoot, prop.SrcResourceID)
	case proposals.SetVerifierProposal:
		a.verifier = prop.Address
	case proposals.TokenAddProposal:
		a.tokens[prop.Address] = true
	case proposals.TokenRemoveProposal:
		delete(a.tokens, prop.Address)
	case proposals.WrappingFeeUpdateProposal:
		a.fee = prop.NewFee
	case proposals.FeeRecipientUpdateProposal:
		a.feeRecipient = prop.Address
	case proposals.SetTreasuryHandlerProposal:
		a.treasuryHandler = prop.Address
	case proposals.MinWithdrawalLimitProposal:
		a.minWithdrawLimit = prop.Limit
	case proposals.MaxDepositLimitProposal:
		a.maxDepositLimit = prop.Limit
	case proposals.RescueTokensProposal:
		a.rescued = append(a.rescued, prop)
	case proposals.RegisterFungibleTokenProposal:
		a.assets[prop.AssetID] = prop.TokenHandler
	case proposals.RegisterNftTokenProposal:
		a.assets[prop.AssetID] = prop.TokenHandler
	default:
		return revertf("%s: %s", contracts.RevertUnknownProposal, p.Kind())
	}
	return nil
}

func (a *anchorContract) updateEdge(e *env, root common.Hash, src types.ResourceID) error {
	slot := -1
	for i, ed := range a.edges {
		if ed.src.TypedChainID() == src.TypedChainID() {
			slot = i
			break
		}
	}
	if slot < 0 {
		if len(a.edges) >= int(a.maxEdges) {
			return revert(contracts.RevertTooManyEdges)
		}
		a.edges = append(a.edges, &edge{src: src})
		slot = len(a.edges) - 1
	}
	ed := a.edges[slot]
	ed.src = src
	ed.root = root
	ed.history = append(ed.history, root)
	if len(ed.history) > a.historySize {
		ed.history = ed.history[len(ed.history)-a.historySize:]
	}
	topics, data, err := contracts.EncodeEvent(contracts.AnchorABI, "EdgeUpdated",
		[]common.Hash{src.Hash()}, [32]byte(root), uint8(slot))
	if err != nil {
		return err
	}
	e.emit(topics, data)
	return nil
}
