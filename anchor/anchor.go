// Package anchor wraps one on-ledger anchor contract and keeps a local mirror of its commitment tree.
package anchor

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/colorfulnotion/anchorbridge/bridgeerrors"
	"github.com/colorfulnotion/anchorbridge/common"
	"github.com/colorfulnotion/anchorbridge/contracts"
	"github.com/colorfulnotion/anchorbridge/ledger"
	"github.com/colorfulnotion/anchorbridge/log"
	"github.com/colorfulnotion/anchorbridge/merkle"
	"github.com/colorfulnotion/anchorbridge/prover"
	"github.com/colorfulnotion/anchorbridge/storage"
	"github.com/colorfulnotion/anchorbridge/types"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
)

// Config describes an anchor contract. Zero TreeHeight or MaxEdges are read from the contract.
type Config struct {
	Address    common.Address
	Size       string
	TreeHeight int
	MaxEdges   uint8
	// Store persists the mirror; nil keeps it in memory only.
	Store  *storage.MirrorStore
	Prover prover.Prover
}

// Anchor is the wrapper around one anchor contract. The mirror is owned by this instance only.
type Anchor struct {
	mu sync.Mutex

	ledger       ledger.Ledger
	address      common.Address
	rid          types.ResourceID
	typedChainID types.TypedChainID
	size         string
	treeHeight   int
	maxEdges     uint8

	tree              *merkle.MerkleTree
	depositHistory    []common.Hash // depositHistory[i] is the root right after leaf i
	latestSyncedBlock uint64
	persisted         int

	store  *storage.MirrorStore
	prover prover.Prover
}

// New connects to the anchor at cfg.Address and restores its mirror from cfg.Store when one exists.
func New(ctx context.Context, l ledger.Ledger, cfg Config) (*Anchor, error) {
	chainID, err := l.ChainID(ctx)
	if err != nil {
		return nil, fmt.Errorf("anchor %s: chain id: %w", cfg.Address.Hex(), err)
	}
	typed, err := types.EVMChainFromLedger(chainID)
	if err != nil {
		return nil, fmt.Errorf("anchor %s: %w", cfg.Address.Hex(), err)
	}
	if cfg.TreeHeight == 0 {
		out, err := ledger.View(ctx, l, cfg.Address, "levels", mustPack("levels"))
		if err != nil {
			return nil, err
		}
		levels, err := contracts.UnpackUint32(contracts.AnchorABI, "levels", out)
		if err != nil {
			return nil, err
		}
		cfg.TreeHeight = int(levels)
	}
	if cfg.MaxEdges == 0 {
		out, err := ledger.View(ctx, l, cfg.Address, "maxEdges", mustPack("maxEdges"))
		if err != nil {
			return nil, err
		}
		if cfg.MaxEdges, err = contracts.UnpackUint8(contracts.AnchorABI, "maxEdges", out); err != nil {
			return nil, err
		}
	}
	if cfg.Prover == nil {
		cfg.Prover = prover.DevProver{}
	}
	tree, err := merkle.NewMerkleTree(cfg.TreeHeight)
	if err != nil {
		return nil, err
	}
	a := &Anchor{
		ledger:       l,
		address:      cfg.Address,
		rid:          types.ResourceIDFromAddress(cfg.Address, typed),
		typedChainID: typed,
		size:         cfg.Size,
		treeHeight:   cfg.TreeHeight,
		maxEdges:     cfg.MaxEdges,
		tree:         tree,
		store:        cfg.Store,
		prover:       cfg.Prover,
	}
	if a.store != nil {
		if err := a.restore(); err != nil {
			return nil, err
		}
	}
	log.Info(log.AnchorMonitoring, "anchor connected", "rid", a.rid, "size", a.size, "height", a.treeHeight, "maxEdges", a.maxEdges, "leaves", a.tree.Size())
	return a, nil
}

func mustPack(method string, args ...interface{}) []byte {
	data, err := contracts.AnchorABI.Pack(method, args...)
	if err != nil {
		panic(err)
	}
	return data
}

func (a *Anchor) restore() error {
	state, err := a.store.Load(a.rid)
	if err != nil {
		return err
	}
	for _, e := range state.Entries {
		if e.Index != a.tree.Size() {
			return fmt.Errorf("stored leaf %d after %d leaves: %w", e.Index, a.tree.Size(), bridgeerrors.ErrRLeafGap)
		}
		_, root, err := a.tree.Append(e.Leaf)
		if err != nil {
			return err
		}
		if root != e.Root {
			return fmt.Errorf("stored root for leaf %d is %s, rebuilt %s: %w", e.Index, common.Str(e.Root), common.Str(root), bridgeerrors.ErrRMirrorDiverged)
		}
		a.depositHistory = append(a.depositHistory, root)
	}
	a.latestSyncedBlock = state.LatestSyncedBlock
	a.persisted = len(a.depositHistory)
	return nil
}

func (a *Anchor) persist() error {
	if a.store == nil {
		return nil
	}
	entries := make([]storage.MirrorEntry, 0, len(a.depositHistory)-a.persisted)
	for i := a.persisted; i < len(a.depositHistory); i++ {
		leaf, err := a.tree.Leaf(uint64(i))
		if err != nil {
			return err
		}
		entries = append(entries, storage.MirrorEntry{Index: uint64(i), Leaf: leaf, Root: a.depositHistory[i]})
	}
	if err := a.store.Save(a.rid, entries, a.latestSyncedBlock); err != nil {
		return err
	}
	a.persisted = len(a.depositHistory)
	return nil
}

func (a *Anchor) ResourceID() types.ResourceID     { return a.rid }
func (a *Anchor) Address() common.Address          { return a.address }
func (a *Anchor) TypedChainID() types.TypedChainID { return a.typedChainID }
func (a *Anchor) Size() string                     { return a.size }
func (a *Anchor) TreeHeight() int                  { return a.treeHeight }
func (a *Anchor) MaxEdges() uint8                  { return a.maxEdges }
func (a *Anchor) Ledger() ledger.Ledger            { return a.ledger }

func (a *Anchor) String() string {
	return fmt.Sprintf("anchor(%s size=%s %s)", a.typedChainID, a.size, a.address.Hex())
}

// LatestRoot is the mirror's root after its most recent leaf.
func (a *Anchor) LatestRoot() common.Hash {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.tree.Root()
}

// DepositHistory returns the root recorded after every mirrored leaf, in leaf order.
func (a *Anchor) DepositHistory() []common.Hash {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]common.Hash(nil), a.depositHistory...)
}

func (a *Anchor) LatestSyncedBlock() uint64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.latestSyncedBlock
}

func (a *Anchor) Leaves() []common.Hash {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.tree.Leaves()
}

// Insert appends leaf to the mirror only.
func (a *Anchor) Insert(leaf common.Hash) (uint64, common.Hash, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	index, root, err := a.insertLocked(leaf)
	if err != nil {
		return 0, common.Hash{}, err
	}
	return index, root, a.persist()
}

func (a *Anchor) insertLocked(leaf common.Hash) (uint64, common.Hash, error) {
	index, root, err := a.tree.Append(leaf)
	if err != nil {
		return 0, common.Hash{}, err
	}
	a.depositHistory = append(a.depositHistory, root)
	log.Trace(log.AnchorMonitoring, "leaf mirrored", "rid", a.rid, "index", index, "root", common.Str(root))
	return index, root, nil
}

// mirrorInsertion applies one Insertion event. Leaves already mirrored must match.
func (a *Anchor) mirrorInsertion(ins contracts.Insertion) error {
	index := uint64(ins.LeafIndex)
	size := a.tree.Size()
	switch {
	case index < size:
		have, err := a.tree.Leaf(index)
		if err != nil {
			return err
		}
		if have != ins.Commitment {
			return fmt.Errorf("leaf %d is %s locally, %s on ledger: %w", index, common.Str(have), common.Str(ins.Commitment), bridgeerrors.ErrRMirrorDiverged)
		}
		return nil
	case index > size:
		return fmt.Errorf("event for leaf %d with %d leaves mirrored: %w", index, size, bridgeerrors.ErrRLeafGap)
	}
	_, _, err := a.insertLocked(ins.Commitment)
	return err
}

// Update replays Insertion events from fromBlock (default latestSyncedBlock+1) and advances the watermark to the ledger head.
func (a *Anchor) Update(ctx context.Context, fromBlock *uint64) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.updateLocked(ctx, fromBlock)
}

func (a *Anchor) updateLocked(ctx context.Context, fromBlock *uint64) error {
	from := a.latestSyncedBlock + 1
	if fromBlock != nil {
		from = *fromBlock
	}
	// head is read first so no event between the two queries is skipped next time
	head, err := a.ledger.BlockNumber(ctx)
	if err != nil {
		return fmt.Errorf("anchor %s: block number: %w", a.rid, err)
	}
	logs, err := a.ledger.QueryEvents(ctx, ledger.EventFilter{
		Address: a.address,
		Topics:  [][]common.Hash{{contracts.InsertionTopic}},
	}, from)
	if err != nil {
		return fmt.Errorf("anchor %s: insertion events from %d: %w", a.rid, from, err)
	}
	sortLogs(logs)
	before := a.tree.Size()
	for _, l := range logs {
		ins, err := contracts.InsertionFromLog(l)
		if err != nil {
			return err
		}
		if err := a.mirrorInsertion(ins); err != nil {
			return err
		}
	}
	if head > a.latestSyncedBlock {
		a.latestSyncedBlock = head
	}
	log.Debug(log.AnchorMonitoring, "mirror updated", "rid", a.rid, "from", from, "events", len(logs), "added", a.tree.Size()-before, "watermark", a.latestSyncedBlock)
	return a.persist()
}

// Reset drops the mirror and its stored copy and rebuilds both from block 0.
func (a *Anchor) Reset(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.resetLocked(ctx)
}

func (a *Anchor) resetLocked(ctx context.Context) error {
	tree, err := merkle.NewMerkleTree(a.treeHeight)
	if err != nil {
		return err
	}
	if a.store != nil {
		if err := a.store.Clear(a.rid); err != nil {
			return err
		}
	}
	a.tree = tree
	a.depositHistory = nil
	a.latestSyncedBlock = 0
	a.persisted = 0
	genesis := uint64(0)
	return a.updateLocked(ctx, &genesis)
}

func (a *Anchor) isKnownRoot(ctx context.Context, root common.Hash) (bool, error) {
	data, err := contracts.PackIsKnownRoot(root)
	if err != nil {
		return false, err
	}
	out, err := ledger.View(ctx, a.ledger, a.address, "isKnownRoot", data)
	if err != nil {
		return false, err
	}
	return contracts.UnpackBool(contracts.AnchorABI, "isKnownRoot", out)
}

// CheckKnownRoot asks the ledger whether the mirror root is still accepted. On a miss it resyncs and asks again.
func (a *Anchor) CheckKnownRoot(ctx context.Context) (bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.checkKnownRootLocked(ctx)
}

func (a *Anchor) checkKnownRootLocked(ctx context.Context) (bool, error) {
	known, err := a.isKnownRoot(ctx, a.tree.Root())
	if err != nil {
		return false, err
	}
	if known {
		return true, nil
	}
	log.Info(log.AnchorMonitoring, "mirror root unknown, resyncing", "rid", a.rid, "root", common.Str(a.tree.Root()), "leaves", a.tree.Size())
	err = a.updateLocked(ctx, nil)
	if errors.Is(err, bridgeerrors.ErrRMirrorDiverged) || errors.Is(err, bridgeerrors.ErrRLeafGap) {
		log.Warn(log.AnchorMonitoring, "mirror unusable, rebuilding", "rid", a.rid, "err", err)
		err = a.resetLocked(ctx)
	}
	if err != nil {
		return false, fmt.Errorf("%w: %w", bridgeerrors.ErrRResync, err)
	}
	return a.isKnownRoot(ctx, a.tree.Root())
}

// PopulateRootsForProof returns the local root followed by the neighbour roots in edge-index order.
func (a *Anchor) PopulateRootsForProof(ctx context.Context) ([]common.Hash, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.populateRootsLocked(ctx)
}

func (a *Anchor) populateRootsLocked(ctx context.Context) ([]common.Hash, error) {
	out, err := ledger.View(ctx, a.ledger, a.address, "getLatestNeighborRoots", mustPack("getLatestNeighborRoots"))
	if err != nil {
		return nil, err
	}
	neighbours, err := contracts.UnpackHashes(contracts.AnchorABI, "getLatestNeighborRoots", out)
	if err != nil {
		return nil, err
	}
	if len(neighbours) != int(a.maxEdges) {
		return nil, fmt.Errorf("anchor %s returned %d neighbour roots, expected %d", a.rid, len(neighbours), a.maxEdges)
	}
	return append([]common.Hash{a.tree.Root()}, neighbours...), nil
}

// DepositResult is where a commitment landed.
type DepositResult struct {
	Index   uint64
	Root    common.Hash
	Receipt *ethtypes.Receipt
}

func (a *Anchor) Deposit(ctx context.Context, commitment common.Hash) (*DepositResult, error) {
	data, err := contracts.PackDeposit(commitment)
	if err != nil {
		return nil, err
	}
	return a.deposit(ctx, commitment, data)
}

func (a *Anchor) WrapAndDeposit(ctx context.Context, token common.Address, commitment common.Hash) (*DepositResult, error) {
	data, err := contracts.PackWrapAndDeposit(token, commitment)
	if err != nil {
		return nil, err
	}
	return a.deposit(ctx, commitment, data)
}

func (a *Anchor) deposit(ctx context.Context, commitment common.Hash, data []byte) (*DepositResult, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	receipt, err := ledger.Transact(ctx, a.ledger, ledger.Call{To: a.address, Data: data})
	if err != nil {
		return nil, err
	}
	ins, err := a.insertionFromReceipt(receipt, commitment)
	if err != nil {
		return nil, err
	}
	if uint64(ins.LeafIndex) > a.tree.Size() {
		// someone else deposited since the last sync
		if err := a.updateLocked(ctx, nil); err != nil {
			return nil, err
		}
	} else if err := a.mirrorInsertion(ins); err != nil {
		return nil, err
	}
	if err := a.persist(); err != nil {
		return nil, err
	}
	if int(ins.LeafIndex) >= len(a.depositHistory) {
		return nil, fmt.Errorf("leaf %d not mirrored after resync: %w", ins.LeafIndex, bridgeerrors.ErrRLeafGap)
	}
	root := a.depositHistory[ins.LeafIndex]
	log.Info(log.AnchorMonitoring, "deposit", "rid", a.rid, "index", ins.LeafIndex, "commitment", common.Str(commitment), "root", common.Str(root))
	return &DepositResult{Index: uint64(ins.LeafIndex), Root: root, Receipt: receipt}, nil
}

func (a *Anchor) insertionFromReceipt(receipt *ethtypes.Receipt, commitment common.Hash) (contracts.Insertion, error) {
	for _, l := range receipt.Logs {
		if l.Address != a.address || len(l.Topics) == 0 || l.Topics[0] != contracts.InsertionTopic {
			continue
		}
		ins, err := contracts.InsertionFromLog(*l)
		if err != nil {
			return contracts.Insertion{}, err
		}
		if ins.Commitment == commitment {
			return ins, nil
		}
	}
	return contracts.Insertion{}, fmt.Errorf("receipt %s has no Insertion of %s", receipt.TxHash.Hex(), common.Str(commitment))
}
