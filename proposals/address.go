package proposals

import (
	"fmt"

	"github.com/colorfulnotion/anchorbridge/common"
	"github.com/colorfulnotion/anchorbridge/types"
)

const AddressPayloadSize = common.AddressLength

// addressProposal is the shared layout header ++ address[20].
type addressProposal struct {
	types.ProposalHeader
	Address common.Address
}

func (p addressProposal) Header() types.ProposalHeader { return p.ProposalHeader }
func (p addressProposal) isProposal()                  {}

func (p addressProposal) Bytes() []byte {
	return encodeHeadered(p.ProposalHeader, p.Address.Bytes())
}

func decodeAddressProposal(kind Kind, b []byte) (addressProposal, error) {
	h, r, err := splitHeadered(kind, b)
	if err != nil {
		return addressProposal{}, err
	}
	return addressProposal{ProposalHeader: h, Address: common.BytesToAddress(r.next(common.AddressLength))}, nil
}

func (p addressProposal) describe(kind Kind) string {
	return fmt.Sprintf("%s{%s address=%s}", kind, p.ProposalHeader, p.Address.Hex())
}

// TokenAddProposal adds a token to a wrapper's accepted set.
type TokenAddProposal struct{ addressProposal }

func NewTokenAddProposal(h types.ProposalHeader, token common.Address) TokenAddProposal {
	return TokenAddProposal{addressProposal{h, token}}
}

func (p TokenAddProposal) Kind() Kind     { return KindTokenAdd }
func (p TokenAddProposal) String() string { return p.describe(p.Kind()) }
func (p TokenAddProposal) WithHeader(h types.ProposalHeader) Proposal {
	p.ProposalHeader = h
	return p
}

func DecodeTokenAddProposal(b []byte) (TokenAddProposal, error) {
	a, err := decodeAddressProposal(KindTokenAdd, b)
	return TokenAddProposal{a}, err
}

// TokenRemoveProposal removes a token from a wrapper's accepted set.
type TokenRemoveProposal struct{ addressProposal }

func NewTokenRemoveProposal(h types.ProposalHeader, token common.Address) TokenRemoveProposal {
	return TokenRemoveProposal{addressProposal{h, token}}
}

func (p TokenRemoveProposal) Kind() Kind     { return KindTokenRemove }
func (p TokenRemoveProposal) String() string { return p.describe(p.Kind()) }
func (p TokenRemoveProposal) WithHeader(h types.ProposalHeader) Proposal {
	p.ProposalHeader = h
	return p
}

func DecodeTokenRemoveProposal(b []byte) (TokenRemoveProposal, error) {
	a, err := decodeAddressProposal(KindTokenRemove, b)
	return TokenRemoveProposal{a}, err
}

type SetTreasuryHandlerProposal struct{ addressProposal }

func NewSetTreasuryHandlerProposal(h types.ProposalHeader, handler common.Address) SetTreasuryHandlerProposal {
	return SetTreasuryHandlerProposal{addressProposal{h, handler}}
}

func (p SetTreasuryHandlerProposal) Kind() Kind     { return KindSetTreasuryHandler }
func (p SetTreasuryHandlerProposal) String() string { return p.describe(p.Kind()) }
func (p SetTreasuryHandlerProposal) WithHeader(h types.ProposalHeader) Proposal {
	p.ProposalHeader = h
	return p
}

func DecodeSetTreasuryHandlerProposal(b []byte) (SetTreasuryHandlerProposal, error) {
	a, err := decodeAddressProposal(KindSetTreasuryHandler, b)
	return SetTreasuryHandlerProposal{a}, err
}

// SetVerifierProposal points an anchor at a new proof verifier contract.
type SetVerifierProposal struct{ addressProposal }

func NewSetVerifierProposal(h types.ProposalHeader, verifier common.Address) SetVerifierProposal {
	return SetVerifierProposal{addressProposal{h, verifier}}
}

func (p SetVerifierProposal) Kind() Kind     { return KindSetVerifier }
func (p SetVerifierProposal) String() string { return p.describe(p.Kind()) }
func (p SetVerifierProposal) WithHeader(h types.ProposalHeader) Proposal {
	p.ProposalHeader = h
	return p
}

func DecodeSetVerifierProposal(b []byte) (SetVerifierProposal, error) {
	a, err := decodeAddressProposal(KindSetVerifier, b)
	return SetVerifierProposal{a}, err
}

type FeeRecipientUpdateProposal struct{ addressProposal }

func NewFeeRecipientUpdateProposal(h types.ProposalHeader, recipient common.Address) FeeRecipientUpdateProposal {
	return FeeRecipientUpdateProposal{addressProposal{h, recipient}}
}

func (p FeeRecipientUpdateProposal) Kind() Kind     { return KindFeeRecipientUpdate }
func (p FeeRecipientUpdateProposal) String() string { return p.describe(p.Kind()) }
func (p FeeRecipientUpdateProposal) WithHeader(h types.ProposalHeader) Proposal {
	p.ProposalHeader = h
	return p
}

func DecodeFeeRecipientUpdateProposal(b []byte) (FeeRecipientUpdateProposal, error) {
	a, err := decodeAddressProposal(KindFeeRecipientUpdate, b)
	return FeeRecipientUpdateProposal{a}, err
}

// SetHandlerProposal points a governed contract back at the handler allowed to relay to it.
type SetHandlerProposal struct{ addressProposal }

func NewSetHandlerProposal(h types.ProposalHeader, handler common.Address) SetHandlerProposal {
	return SetHandlerProposal{addressProposal{h, handler}}
}

func (p SetHandlerProposal) Kind() Kind     { return KindSetHandler }
func (p SetHandlerProposal) String() string { return p.describe(p.Kind()) }
func (p SetHandlerProposal) WithHeader(h types.ProposalHeader) Proposal {
	p.ProposalHeader = h
	return p
}

func DecodeSetHandlerProposal(b []byte) (SetHandlerProposal, error) {
	a, err := decodeAddressProposal(KindSetHandler, b)
	return SetHandlerProposal{a}, err
}
