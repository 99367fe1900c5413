package proposals

import (
	"fmt"

	"github.com/colorfulnotion/anchorbridge/bridgeerrors"
	"github.com/colorfulnotion/anchorbridge/common"
	"github.com/colorfulnotion/anchorbridge/log"
	"github.com/colorfulnotion/anchorbridge/types"
)

// Kind tags one governance action.
type Kind uint8

const (
	KindAnchorUpdate Kind = iota + 1
	KindTokenAdd
	KindTokenRemove
	KindWrappingFeeUpdate
	KindMinWithdrawalLimit
	KindMaxDepositLimit
	KindResourceIDUpdate
	KindSetTreasuryHandler
	KindSetVerifier
	KindFeeRecipientUpdate
	KindSetHandler
	KindRescueTokens
	KindRegisterFungibleToken
	KindRegisterNftToken
	KindRefresh
	KindLedgerTransaction
)

type kindInfo struct {
	name    string
	abi     string // default function signature, empty for headerless kinds
	payload int
}

var kinds = map[Kind]kindInfo{
	KindAnchorUpdate:          {"AnchorUpdate", "updateEdge(bytes32,bytes32)", AnchorUpdatePayloadSize},
	KindTokenAdd:              {"TokenAdd", "addTokenToWrapper(address)", AddressPayloadSize},
	KindTokenRemove:           {"TokenRemove", "removeTokenFromWrapper(address)", AddressPayloadSize},
	KindWrappingFeeUpdate:     {"WrappingFeeUpdate", "setFee(uint16)", WrappingFeePayloadSize},
	KindMinWithdrawalLimit:    {"MinWithdrawalLimit", "configureMinimalWithdrawalLimit(uint256)", LimitPayloadSize},
	KindMaxDepositLimit:       {"MaxDepositLimit", "configureMaximumDepositLimit(uint256)", LimitPayloadSize},
	KindResourceIDUpdate:      {"ResourceIdUpdate", "setResource(bytes32,address)", ResourceIDUpdatePayloadSize},
	KindSetTreasuryHandler:    {"SetTreasuryHandler", "setTreasuryHandler(address)", AddressPayloadSize},
	KindSetVerifier:           {"SetVerifier", "setVerifier(address)", AddressPayloadSize},
	KindFeeRecipientUpdate:    {"FeeRecipientUpdate", "setFeeRecipient(address)", AddressPayloadSize},
	KindSetHandler:            {"SetHandler", "setHandler(address)", AddressPayloadSize},
	KindRescueTokens:          {"RescueTokens", "rescueTokens(address,address,uint256)", RescueTokensPayloadSize},
	KindRegisterFungibleToken: {"RegisterFungibleToken", "registerFungibleToken(address,uint32,bytes32,bytes32)", RegisterFungibleTokenPayloadSize},
	KindRegisterNftToken:      {"RegisterNftToken", "registerNftToken(address,uint32,address,bytes32,bytes)", RegisterNftTokenPayloadSize},
	KindRefresh:               {"Refresh", "", -1},
	KindLedgerTransaction:     {"LedgerTransaction", "", -1},
}

// Kinds lists every proposal kind in tag order.
func Kinds() []Kind {
	out := make([]Kind, 0, len(kinds))
	for k := KindAnchorUpdate; k <= KindLedgerTransaction; k++ {
		out = append(out, k)
	}
	return out
}

func (k Kind) String() string {
	if info, ok := kinds[k]; ok {
		return info.name
	}
	return fmt.Sprintf("Kind(%d)", uint8(k))
}

// HasHeader reports whether proposals of this kind begin with a 40-byte ProposalHeader.
func (k Kind) HasHeader() bool {
	return k != KindRefresh && k != KindLedgerTransaction
}

// DefaultFunctionSignature is the selector builders put in the header for k.
func (k Kind) DefaultFunctionSignature() (types.FunctionSignature, error) {
	info, ok := kinds[k]
	if !ok || info.abi == "" {
		return types.FunctionSignature{}, fmt.Errorf("%s has no function signature: %w", k, bridgeerrors.ErrCUnknownProposalKind)
	}
	return types.FunctionSignatureFromABI(info.abi), nil
}

// ABI returns the default Solidity signature string for k.
func (k Kind) ABI() string {
	return kinds[k].abi
}

// EncodedSize is the total encoded length for fixed-size kinds, or -1 for variable-length ones.
func (k Kind) EncodedSize() int {
	info, ok := kinds[k]
	if !ok || info.payload < 0 {
		return -1
	}
	return types.ProposalHeaderSize + info.payload
}

// KindFor maps a function signature back to the kind whose default selector it is.
func KindFor(fs types.FunctionSignature) (Kind, error) {
	for _, k := range Kinds() {
		if kinds[k].abi != "" && types.FunctionSignatureFromABI(kinds[k].abi) == fs {
			return k, nil
		}
	}
	return 0, fmt.Errorf("selector %s: %w", fs, bridgeerrors.ErrCUnknownFunctionSig)
}

// Proposal is the closed set of governance actions. Only this package implements it.
type Proposal interface {
	Kind() Kind
	// Header is the zero value for headerless kinds (Refresh, LedgerTransaction).
	Header() types.ProposalHeader
	Bytes() []byte
	isProposal()
}

// Body is a headered proposal whose header is filled in by the governance client.
type Body interface {
	Proposal
	WithHeader(types.ProposalHeader) Proposal
}

// Decode dispatches to the codec for kind.
func Decode(kind Kind, b []byte) (Proposal, error) {
	var (
		p   Proposal
		err error
	)
	switch kind {
	case KindAnchorUpdate:
		p, err = DecodeAnchorUpdateProposal(b)
	case KindTokenAdd:
		p, err = DecodeTokenAddProposal(b)
	case KindTokenRemove:
		p, err = DecodeTokenRemoveProposal(b)
	case KindWrappingFeeUpdate:
		p, err = DecodeWrappingFeeUpdateProposal(b)
	case KindMinWithdrawalLimit:
		p, err = DecodeMinWithdrawalLimitProposal(b)
	case KindMaxDepositLimit:
		p, err = DecodeMaxDepositLimitProposal(b)
	case KindResourceIDUpdate:
		p, err = DecodeResourceIDUpdateProposal(b)
	case KindSetTreasuryHandler:
		p, err = DecodeSetTreasuryHandlerProposal(b)
	case KindSetVerifier:
		p, err = DecodeSetVerifierProposal(b)
	case KindFeeRecipientUpdate:
		p, err = DecodeFeeRecipientUpdateProposal(b)
	case KindSetHandler:
		p, err = DecodeSetHandlerProposal(b)
	case KindRescueTokens:
		p, err = DecodeRescueTokensProposal(b)
	case KindRegisterFungibleToken:
		p, err = DecodeRegisterFungibleTokenProposal(b)
	case KindRegisterNftToken:
		p, err = DecodeRegisterNftTokenProposal(b)
	case KindRefresh:
		p, err = DecodeRefreshProposal(b)
	case KindLedgerTransaction:
		p, err = DecodeLedgerTransactionProposal(b)
	default:
		return nil, fmt.Errorf("kind %d: %w", uint8(kind), bridgeerrors.ErrCUnknownProposalKind)
	}
	if err != nil {
		return nil, err
	}
	log.Trace(log.ProposalMonitoring, "decoded proposal", "kind", kind, "len", len(b))
	return p, nil
}

// DecodeHeadered reads the header, resolves the kind from its function signature and decodes.
func DecodeHeadered(b []byte) (Proposal, error) {
	if len(b) < types.ProposalHeaderSize {
		return nil, fmt.Errorf("proposal: want at least %d bytes, got %d: %w", types.ProposalHeaderSize, len(b), bridgeerrors.ErrCLengthMismatch)
	}
	h, err := types.DecodeProposalHeader(b[:types.ProposalHeaderSize])
	if err != nil {
		return nil, err
	}
	kind, err := KindFor(h.FunctionSignature)
	if err != nil {
		return nil, err
	}
	return Decode(kind, b)
}

// payloadReader walks fixed-width fields after the header.
type payloadReader struct {
	b   []byte
	off int
}

func (r *payloadReader) next(n int) []byte {
	out := r.b[r.off : r.off+n]
	r.off += n
	return out
}

// splitHeadered checks the total length and decodes the header of a fixed-size kind.
func splitHeadered(kind Kind, b []byte) (types.ProposalHeader, *payloadReader, error) {
	want := kind.EncodedSize()
	if len(b) != want {
		return types.ProposalHeader{}, nil, fmt.Errorf("%s proposal: want %d bytes, got %d: %w", kind, want, len(b), bridgeerrors.ErrCLengthMismatch)
	}
	h, err := types.DecodeProposalHeader(b[:types.ProposalHeaderSize])
	if err != nil {
		return types.ProposalHeader{}, nil, fmt.Errorf("%s proposal: %w", kind, err)
	}
	return h, &payloadReader{b: b[types.ProposalHeaderSize:]}, nil
}

func encodeHeadered(h types.ProposalHeader, fields ...[]byte) []byte {
	size := types.ProposalHeaderSize
	for _, f := range fields {
		size += len(f)
	}
	out := make([]byte, 0, size)
	out = append(out, h.Bytes()...)
	for _, f := range fields {
		out = append(out, f...)
	}
	return out
}

// fixedField rejects byte slices that are not exactly width bytes.
func fixedField(name string, b []byte, width int) error {
	if len(b) != width {
		return fmt.Errorf("%s: want %d bytes, got %d: %w", name, width, len(b), bridgeerrors.ErrCFieldWidth)
	}
	return nil
}

// HexField decodes a hex string and left-pads it to width bytes.
func HexField(s string, width int) ([]byte, error) {
	raw, err := common.LeftPadHex(s, width)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", bridgeerrors.ErrCFieldWidth, err)
	}
	return raw, nil
}
