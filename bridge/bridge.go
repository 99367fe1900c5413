// Package bridge owns every bridge side and anchor of a deployment and propagates root changes
// across linked anchors.
package bridge

import (
	"context"
	"errors"
	"fmt"

	"github.com/colorfulnotion/anchorbridge/anchor"
	"github.com/colorfulnotion/anchorbridge/bridgeerrors"
	"github.com/colorfulnotion/anchorbridge/bridgeside"
	"github.com/colorfulnotion/anchorbridge/common"
	"github.com/colorfulnotion/anchorbridge/log"
	"github.com/colorfulnotion/anchorbridge/telemetry"
	"github.com/colorfulnotion/anchorbridge/types"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/xlab/treeprint"
	"golang.org/x/exp/slices"
)

// AnchorKey selects an anchor by chain and denomination.
type AnchorKey struct {
	Chain types.TypedChainID
	Size  string
}

func (k AnchorKey) String() string {
	return fmt.Sprintf("%s/%s", k.Chain, k.Size)
}

type Options struct {
	Sides []*bridgeside.BridgeSide
	// Groups partitions the anchors; every anchor of a group is linked to every other one.
	Groups [][]*anchor.Anchor
}

// Bridge holds lookup tables only; anchors and sides refer to each other by resource and chain id.
type Bridge struct {
	sides   map[types.TypedChainID]*bridgeside.BridgeSide
	anchors map[types.ResourceID]*anchor.Anchor
	keys    map[AnchorKey]types.ResourceID
	linked  LinkedAnchorMap
}

func New(opts Options) (*Bridge, error) {
	b := &Bridge{
		sides:   make(map[types.TypedChainID]*bridgeside.BridgeSide),
		anchors: make(map[types.ResourceID]*anchor.Anchor),
		keys:    make(map[AnchorKey]types.ResourceID),
	}
	for _, s := range opts.Sides {
		if _, dup := b.sides[s.TypedChainID()]; dup {
			return nil, fmt.Errorf("two bridge sides for %s", s.TypedChainID())
		}
		b.sides[s.TypedChainID()] = s
	}
	for _, group := range opts.Groups {
		for _, a := range group {
			if _, ok := b.sides[a.TypedChainID()]; !ok {
				return nil, fmt.Errorf("%s: %w", a, bridgeerrors.ErrGSideNotFound)
			}
			key := AnchorKey{Chain: a.TypedChainID(), Size: a.Size()}
			if _, dup := b.keys[key]; dup {
				return nil, fmt.Errorf("%s: %w", key, bridgeerrors.ErrGDuplicateAnchor)
			}
			if len(group)-1 > int(a.MaxEdges()) {
				return nil, fmt.Errorf("%s in a group of %d: %w", a, len(group), bridgeerrors.ErrGTooManyEdges)
			}
			b.keys[key] = a.ResourceID()
			b.anchors[a.ResourceID()] = a
		}
	}
	linked, err := BuildLinkedAnchorMap(opts.Groups)
	if err != nil {
		return nil, err
	}
	b.linked = linked
	log.Info(log.BridgeMonitoring, "bridge ready", "sides", len(b.sides), "anchors", len(b.anchors), "edges", linked.Edges())
	return b, nil
}

func (b *Bridge) LinkedAnchors() LinkedAnchorMap {
	return b.linked
}

func (b *Bridge) Side(chain types.TypedChainID) (*bridgeside.BridgeSide, error) {
	s, ok := b.sides[chain]
	if !ok {
		return nil, fmt.Errorf("%s: %w", chain, bridgeerrors.ErrGSideNotFound)
	}
	return s, nil
}

// Anchor resolves the anchor for (chain, size). A miss is never substituted.
func (b *Bridge) Anchor(chain types.TypedChainID, size string) (*anchor.Anchor, error) {
	key := AnchorKey{Chain: chain, Size: size}
	rid, ok := b.keys[key]
	if !ok {
		return nil, fmt.Errorf("%s: %w", key, bridgeerrors.ErrGAnchorNotFound)
	}
	return b.anchors[rid], nil
}

func (b *Bridge) AnchorByResourceID(rid types.ResourceID) (*anchor.Anchor, error) {
	a, ok := b.anchors[rid]
	if !ok {
		return nil, fmt.Errorf("%s: %w", rid, bridgeerrors.ErrGAnchorNotFound)
	}
	return a, nil
}

// Anchors lists every anchor ordered by chain then size.
func (b *Bridge) Anchors() []*anchor.Anchor {
	out := make([]*anchor.Anchor, 0, len(b.anchors))
	for _, a := range b.anchors {
		out = append(out, a)
	}
	slices.SortFunc(out, func(x, y *anchor.Anchor) int {
		if c := compareUint64(x.TypedChainID().Uint64(), y.TypedChainID().Uint64()); c != 0 {
			return c
		}
		if x.Size() != y.Size() {
			if x.Size() < y.Size() {
				return -1
			}
			return 1
		}
		return compareResourceIDs(x.ResourceID(), y.ResourceID())
	})
	return out
}

func compareUint64(a, b uint64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

// OnAnchorStateChanged sends src's latest root to every anchor linked to it. Every target is
// attempted; failures are joined and attributed to their target.
func (b *Bridge) OnAnchorStateChanged(ctx context.Context, src *anchor.Anchor) error {
	root := src.LatestRoot()
	targets := b.linked.Linked(src.ResourceID())
	ctx, span := telemetry.Start(ctx, telemetry.Span_Propagate,
		telemetry.AttrResourceID.String(src.ResourceID().Hex()))
	var errs []error
	for _, rid := range targets {
		if err := b.propagate(ctx, src, root, rid); err != nil {
			log.Warn(log.BridgeMonitoring, "anchor update failed", "src", src.ResourceID(), "target", rid, "err", err)
			errs = append(errs, fmt.Errorf("update %s from %s: %w", rid, src.ResourceID(), err))
		}
	}
	err := errors.Join(errs...)
	telemetry.End(span, err)
	log.Debug(log.BridgeMonitoring, "root propagated", "src", src.ResourceID(), "root", common.Str(root), "targets", len(targets), "failed", len(errs))
	return err
}

func (b *Bridge) propagate(ctx context.Context, src *anchor.Anchor, root common.Hash, target types.ResourceID) error {
	ctx, span := telemetry.Start(ctx, telemetry.Span_Propagate_Edge, telemetry.AttrTarget.String(target.Hex()))
	err := b.propagateEdge(ctx, src, root, target)
	telemetry.End(span, err)
	return err
}

func (b *Bridge) propagateEdge(ctx context.Context, src *anchor.Anchor, root common.Hash, target types.ResourceID) error {
	dst, err := b.AnchorByResourceID(target)
	if err != nil {
		return err
	}
	side, err := b.Side(dst.TypedChainID())
	if err != nil {
		return err
	}
	if _, ok := side.Handler(); !ok {
		return fmt.Errorf("%s: %w", side, bridgeerrors.ErrGHandlerNotSet)
	}
	_, err = side.ExecuteAnchorUpdateProposal(ctx, target, root, src.ResourceID())
	return err
}

// resolve finds the anchor for (chain, size) and checks its ledger really is chain.
func (b *Bridge) resolve(ctx context.Context, chain types.TypedChainID, size string) (*anchor.Anchor, error) {
	a, err := b.Anchor(chain, size)
	if err != nil {
		return nil, err
	}
	id, err := a.Ledger().ChainID(ctx)
	if err != nil {
		return nil, err
	}
	if id != uint64(chain.ID) {
		return nil, fmt.Errorf("%s: ledger reports chain %d: %w", a, id, bridgeerrors.ErrGChainMismatch)
	}
	return a, nil
}

// Deposit deposits on (chain, size) and propagates the new root. A propagation failure is returned
// together with the deposit result, which is already final.
func (b *Bridge) Deposit(ctx context.Context, chain types.TypedChainID, size string, commitment common.Hash) (*anchor.DepositResult, error) {
	return b.deposit(ctx, chain, size, func(ctx context.Context, a *anchor.Anchor) (*anchor.DepositResult, error) {
		return a.Deposit(ctx, commitment)
	})
}

func (b *Bridge) WrapAndDeposit(ctx context.Context, chain types.TypedChainID, size string, token common.Address, commitment common.Hash) (*anchor.DepositResult, error) {
	return b.deposit(ctx, chain, size, func(ctx context.Context, a *anchor.Anchor) (*anchor.DepositResult, error) {
		return a.WrapAndDeposit(ctx, token, commitment)
	})
}

func (b *Bridge) deposit(ctx context.Context, chain types.TypedChainID, size string, do func(context.Context, *anchor.Anchor) (*anchor.DepositResult, error)) (*anchor.DepositResult, error) {
	ctx, span := telemetry.Start(ctx, telemetry.Span_Deposit, telemetry.AttrTypedChainID.Int64(int64(chain.Uint64())))
	res, err := b.depositAndPropagate(ctx, chain, size, do)
	telemetry.End(span, err)
	return res, err
}

func (b *Bridge) depositAndPropagate(ctx context.Context, chain types.TypedChainID, size string, do func(context.Context, *anchor.Anchor) (*anchor.DepositResult, error)) (*anchor.DepositResult, error) {
	a, err := b.resolve(ctx, chain, size)
	if err != nil {
		return nil, err
	}
	res, err := do(ctx, a)
	if err != nil {
		return nil, err
	}
	return res, b.OnAnchorStateChanged(ctx, a)
}

// Withdraw spends req on (chain, size) and propagates the anchor's root.
func (b *Bridge) Withdraw(ctx context.Context, chain types.TypedChainID, size string, req anchor.WithdrawRequest) (*ethtypes.Receipt, error) {
	return b.withdraw(ctx, chain, size, func(ctx context.Context, a *anchor.Anchor) (*ethtypes.Receipt, error) {
		return a.Withdraw(ctx, req)
	})
}

func (b *Bridge) WithdrawAndUnwrap(ctx context.Context, chain types.TypedChainID, size string, req anchor.WithdrawRequest, token common.Address) (*ethtypes.Receipt, error) {
	return b.withdraw(ctx, chain, size, func(ctx context.Context, a *anchor.Anchor) (*ethtypes.Receipt, error) {
		return a.WithdrawAndUnwrap(ctx, req, token)
	})
}

func (b *Bridge) withdraw(ctx context.Context, chain types.TypedChainID, size string, do func(context.Context, *anchor.Anchor) (*ethtypes.Receipt, error)) (*ethtypes.Receipt, error) {
	ctx, span := telemetry.Start(ctx, telemetry.Span_Withdraw, telemetry.AttrTypedChainID.Int64(int64(chain.Uint64())))
	receipt, err := b.withdrawAndPropagate(ctx, chain, size, do)
	telemetry.End(span, err)
	return receipt, err
}

func (b *Bridge) withdrawAndPropagate(ctx context.Context, chain types.TypedChainID, size string, do func(context.Context, *anchor.Anchor) (*ethtypes.Receipt, error)) (*ethtypes.Receipt, error) {
	a, err := b.resolve(ctx, chain, size)
	if err != nil {
		return nil, err
	}
	receipt, err := do(ctx, a)
	if err != nil {
		return nil, err
	}
	return receipt, b.OnAnchorStateChanged(ctx, a)
}

// ConnectAll runs the link protocol for every anchor on the side that governs it.
func (b *Bridge) ConnectAll(ctx context.Context) error {
	ctx, span := telemetry.Start(ctx, telemetry.Span_Connect_All)
	var errs []error
	for _, a := range b.Anchors() {
		side := b.sides[a.TypedChainID()]
		if _, ok := side.Handler(); !ok {
			errs = append(errs, fmt.Errorf("connect %s: %w", a, bridgeerrors.ErrGHandlerNotSet))
			continue
		}
		if err := side.ConnectAnchorWithSignature(ctx, a); err != nil {
			errs = append(errs, fmt.Errorf("connect %s: %w", a, err))
		}
	}
	err := errors.Join(errs...)
	telemetry.End(span, err)
	return err
}

// Tree prints the linked anchors labelled by chain and size.
func (b *Bridge) Tree() treeprint.Tree {
	return b.linked.Tree(func(rid types.ResourceID) string {
		if a, ok := b.anchors[rid]; ok {
			return fmt.Sprintf("%s size=%s %s", a.TypedChainID(), a.Size(), a.Address().Hex())
		}
		return rid.Hex()
	})
}
