package proposals

import (
	"fmt"

	"github.com/colorfulnotion/anchorbridge/common"
	"github.com/colorfulnotion/anchorbridge/types"
	"github.com/holiman/uint256"
)

const RescueTokensPayloadSize = 2*common.AddressLength + 32

// RescueTokensProposal moves amount of token held by a treasury to a recipient.
type RescueTokensProposal struct {
	types.ProposalHeader
	TokenAddress common.Address
	ToAddress    common.Address
	Amount       uint256.Int
}

func NewRescueTokensProposal(h types.ProposalHeader, token, to common.Address, amount *uint256.Int) RescueTokensProposal {
	return RescueTokensProposal{ProposalHeader: h, TokenAddress: token, ToAddress: to, Amount: *amount}
}

func (p RescueTokensProposal) Kind() Kind                   { return KindRescueTokens }
func (p RescueTokensProposal) Header() types.ProposalHeader { return p.ProposalHeader }
func (p RescueTokensProposal) isProposal()                  {}

func (p RescueTokensProposal) WithHeader(h types.ProposalHeader) Proposal {
	p.ProposalHeader = h
	return p
}

func (p RescueTokensProposal) Bytes() []byte {
	amount := p.Amount.Bytes32()
	return encodeHeadered(p.ProposalHeader, p.TokenAddress.Bytes(), p.ToAddress.Bytes(), amount[:])
}

func (p RescueTokensProposal) String() string {
	return fmt.Sprintf("RescueTokens{%s token=%s to=%s amount=%s}", p.ProposalHeader, p.TokenAddress.Hex(), p.ToAddress.Hex(), p.Amount.Dec())
}

func DecodeRescueTokensProposal(b []byte) (RescueTokensProposal, error) {
	h, r, err := splitHeadered(KindRescueTokens, b)
	if err != nil {
		return RescueTokensProposal{}, err
	}
	p := RescueTokensProposal{ProposalHeader: h}
	p.TokenAddress = common.BytesToAddress(r.next(common.AddressLength))
	p.ToAddress = common.BytesToAddress(r.next(common.AddressLength))
	p.Amount.SetBytes32(r.next(32))
	return p, nil
}
