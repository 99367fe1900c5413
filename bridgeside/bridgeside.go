// Package bridgeside is the governance client of one chain: it reads nonces, builds and signs
// proposals and submits them to the governance contract.
package bridgeside

import (
	"context"
	"fmt"
	"sync"

	"github.com/colorfulnotion/anchorbridge/bridgeerrors"
	"github.com/colorfulnotion/anchorbridge/common"
	"github.com/colorfulnotion/anchorbridge/contracts"
	"github.com/colorfulnotion/anchorbridge/ledger"
	"github.com/colorfulnotion/anchorbridge/log"
	"github.com/colorfulnotion/anchorbridge/proposals"
	"github.com/colorfulnotion/anchorbridge/signer"
	"github.com/colorfulnotion/anchorbridge/telemetry"
	"github.com/colorfulnotion/anchorbridge/types"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
)

// AnchorHandle is what the link protocol needs to know about an anchor.
type AnchorHandle interface {
	ResourceID() types.ResourceID
}

type Options struct {
	Governance common.Address
	// Ledger submits the governance transactions and pays for them.
	Ledger ledger.Ledger
	// Signer holds the governor key.
	Signer  signer.Signer
	Handler *common.Address
}

// BridgeSide never caches a nonce: every proposal re-reads it from the governance contract.
type BridgeSide struct {
	governance   common.Address
	ledger       ledger.Ledger
	typedChainID types.TypedChainID

	mu      sync.RWMutex
	signer  signer.Signer
	handler *common.Address

	locks resourceLocks
}

func New(ctx context.Context, opts Options) (*BridgeSide, error) {
	chainID, err := opts.Ledger.ChainID(ctx)
	if err != nil {
		return nil, fmt.Errorf("bridge side %s: chain id: %w", opts.Governance.Hex(), err)
	}
	typed, err := types.EVMChainFromLedger(chainID)
	if err != nil {
		return nil, fmt.Errorf("bridge side %s: %w", opts.Governance.Hex(), err)
	}
	b := &BridgeSide{
		governance:   opts.Governance,
		ledger:       opts.Ledger,
		typedChainID: typed,
		signer:       opts.Signer,
	}
	if opts.Handler != nil {
		b.SetHandler(*opts.Handler)
	}
	return b, nil
}

func (b *BridgeSide) Governance() common.Address       { return b.governance }
func (b *BridgeSide) Ledger() ledger.Ledger            { return b.ledger }
func (b *BridgeSide) TypedChainID() types.TypedChainID { return b.typedChainID }

func (b *BridgeSide) String() string {
	return fmt.Sprintf("side(%s gov=%s)", b.typedChainID, b.governance.Hex())
}

// SetHandler records the contract the governance relays anchor proposals through. No ledger call is made.
func (b *BridgeSide) SetHandler(handler common.Address) {
	b.mu.Lock()
	defer b.mu.Unlock()
	h := handler
	b.handler = &h
}

func (b *BridgeSide) Handler() (common.Address, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.handler == nil {
		return common.Address{}, false
	}
	return *b.handler, true
}

// mustHandler guards every state-changing call. A side without a handler is a programming error.
func (b *BridgeSide) mustHandler() common.Address {
	handler, ok := b.Handler()
	if !ok {
		panic(bridgeerrors.ErrGHandlerNotSet.Error())
	}
	return handler
}

// SetSigner swaps the governor key, e.g. after a refresh.
func (b *BridgeSide) SetSigner(s signer.Signer) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.signer = s
}

func (b *BridgeSide) currentSigner() signer.Signer {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.signer
}

// ProposalNonce is the last nonce the governance contract applied for rid.
func (b *BridgeSide) ProposalNonce(ctx context.Context, rid types.ResourceID) (types.Nonce, error) {
	data, err := contracts.PackResourceNonce(rid.Hash())
	if err != nil {
		return 0, err
	}
	out, err := ledger.View(ctx, b.ledger, b.governance, "resourceNonce", data)
	if err != nil {
		return 0, err
	}
	n, err := contracts.UnpackResourceNonce(out)
	if err != nil {
		return 0, err
	}
	return types.Nonce(n), nil
}

// ResourceHandler is the handler the governance contract has bound to rid, zero if none.
func (b *BridgeSide) ResourceHandler(ctx context.Context, rid types.ResourceID) (common.Address, error) {
	data, err := contracts.PackResourceHandler(rid.Hash())
	if err != nil {
		return common.Address{}, err
	}
	out, err := ledger.View(ctx, b.ledger, b.governance, "resourceHandler", data)
	if err != nil {
		return common.Address{}, err
	}
	return contracts.UnpackAddress(contracts.GovernanceABI, "resourceHandler", out)
}

// BuildProposal stamps body with a header for target at the next nonce.
// A zero function signature in body's header is replaced by the kind's default selector.
func (b *BridgeSide) BuildProposal(ctx context.Context, target types.ResourceID, body proposals.Body) (proposals.Proposal, error) {
	ctx, span := telemetry.Start(ctx, telemetry.Span_Build_Proposal,
		telemetry.AttrTarget.String(target.Hex()), telemetry.AttrKind.String(body.Kind().String()))
	p, err := b.buildProposal(ctx, target, body)
	telemetry.End(span, err)
	return p, err
}

func (b *BridgeSide) buildProposal(ctx context.Context, target types.ResourceID, body proposals.Body) (proposals.Proposal, error) {
	if target.TypedChainID() != b.typedChainID {
		return nil, fmt.Errorf("target %s is on %s, side governs %s: %w", target, target.TypedChainID(), b.typedChainID, bridgeerrors.ErrGChainMismatch)
	}
	fs := body.Header().FunctionSignature
	if fs == (types.FunctionSignature{}) {
		var err error
		if fs, err = body.Kind().DefaultFunctionSignature(); err != nil {
			return nil, err
		}
	}
	nonce, err := b.ProposalNonce(ctx, target)
	if err != nil {
		return nil, err
	}
	p := body.WithHeader(types.NewProposalHeader(target, fs, nonce.Next()))
	log.Debug(log.GovernanceMonitoring, "proposal built", "kind", p.Kind(), "target", target, "nonce", nonce.Next())
	return p, nil
}

// SignProposal signs keccak256 of the proposal bytes with the governor key.
func (b *BridgeSide) SignProposal(ctx context.Context, p proposals.Proposal) ([]byte, error) {
	s := b.currentSigner()
	if s == nil {
		return nil, fmt.Errorf("%s has no governor signer", b)
	}
	ctx, span := telemetry.Start(ctx, telemetry.Span_Sign_Proposal, telemetry.AttrKind.String(p.Kind().String()))
	sig, err := s.Sign(ctx, p.Bytes())
	telemetry.End(span, err)
	return sig, err
}

// ExecuteProposalWithSignature submits executeProposalWithSignature(data, sig) and waits for the receipt.
// Rejections come back as the ledger's *ledger.RevertError. Panics if no handler is set.
func (b *BridgeSide) ExecuteProposalWithSignature(ctx context.Context, data, sig []byte) (*ethtypes.Receipt, error) {
	b.mustHandler()
	ctx, span := telemetry.Start(ctx, telemetry.Span_Execute_Proposal, telemetry.AttrTypedChainID.Int64(int64(b.typedChainID.Uint64())))
	receipt, err := b.executeProposalWithSignature(ctx, data, sig)
	if receipt != nil {
		span.SetAttributes(telemetry.AttrTxHash.String(receipt.TxHash.Hex()))
	}
	telemetry.End(span, err)
	return receipt, err
}

func (b *BridgeSide) executeProposalWithSignature(ctx context.Context, data, sig []byte) (*ethtypes.Receipt, error) {
	calldata, err := contracts.PackExecuteProposalWithSignature(data, sig)
	if err != nil {
		return nil, err
	}
	receipt, err := ledger.Transact(ctx, b.ledger, ledger.Call{To: b.governance, Data: calldata})
	if err != nil {
		log.Warn(log.GovernanceMonitoring, "proposal rejected", "side", b, "err", err)
		return nil, err
	}
	return receipt, nil
}

// Propose builds, signs and executes body for target while holding target's lock. Panics if no handler is set.
func (b *BridgeSide) Propose(ctx context.Context, target types.ResourceID, body proposals.Body) (proposals.Proposal, *ethtypes.Receipt, error) {
	b.mustHandler()
	unlock := b.locks.lock(target)
	defer unlock()
	return b.proposeLocked(ctx, target, body)
}

func (b *BridgeSide) proposeLocked(ctx context.Context, target types.ResourceID, body proposals.Body) (proposals.Proposal, *ethtypes.Receipt, error) {
	p, err := b.BuildProposal(ctx, target, body)
	if err != nil {
		return nil, nil, err
	}
	sig, err := b.SignProposal(ctx, p)
	if err != nil {
		return p, nil, err
	}
	receipt, err := b.ExecuteProposalWithSignature(ctx, p.Bytes(), sig)
	if err != nil {
		return p, nil, fmt.Errorf("%s nonce %d on %s: %w", p.Kind(), p.Header().Nonce, target, err)
	}
	log.Info(log.GovernanceMonitoring, "proposal executed", "kind", p.Kind(), "target", target, "nonce", p.Header().Nonce, "tx", receipt.TxHash)
	return p, receipt, nil
}

// ConnectAnchorWithSignature binds the anchor's resource to the handler and points the anchor back at it.
// Both proposals target the anchor's resource, so its nonce rises by two. Calling it before
// SetHandler is a programming error and panics.
func (b *BridgeSide) ConnectAnchorWithSignature(ctx context.Context, anchor AnchorHandle) error {
	handler := b.mustHandler()
	rid := anchor.ResourceID()
	ctx, span := telemetry.Start(ctx, telemetry.Span_Connect_Anchor, telemetry.AttrResourceID.String(rid.Hex()))
	err := b.connect(ctx, rid, handler)
	telemetry.End(span, err)
	return err
}

func (b *BridgeSide) connect(ctx context.Context, rid types.ResourceID, handler common.Address) error {
	unlock := b.locks.lock(rid)
	defer unlock()
	if _, _, err := b.proposeLocked(ctx, rid, proposals.NewResourceIDUpdateProposal(types.ProposalHeader{}, rid, handler)); err != nil {
		return fmt.Errorf("link %s: %w", rid, err)
	}
	if _, _, err := b.proposeLocked(ctx, rid, proposals.NewSetHandlerProposal(types.ProposalHeader{}, handler)); err != nil {
		return fmt.Errorf("link %s: %w", rid, err)
	}
	log.Info(log.GovernanceMonitoring, "anchor connected", "rid", rid, "handler", handler)
	return nil
}

// resourceLocks serializes the nonce read, sign, submit and await per resource.
type resourceLocks struct {
	mu    sync.Mutex
	locks map[types.ResourceID]*sync.Mutex
}

func (r *resourceLocks) lock(rid types.ResourceID) func() {
	r.mu.Lock()
	if r.locks == nil {
		r.locks = make(map[types.ResourceID]*sync.Mutex)
	}
	m, ok := r.locks[rid]
	if !ok {
		m = new(sync.Mutex)
		r.locks[rid] = m
	}
	r.mu.Unlock()
	m.Lock()
	return m.Unlock
}
