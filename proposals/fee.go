package proposals

import (
	"fmt"

	"github.com/colorfulnotion/anchorbridge/bridgeerrors"
	"github.com/colorfulnotion/anchorbridge/common"
	"github.com/colorfulnotion/anchorbridge/types"
)

const (
	WrappingFeePayloadSize = 2
	// MaxWrappingFee is 100% in basis points.
	MaxWrappingFee uint16 = 10000
)

// WrappingFeeUpdateProposal sets a wrapper's fee in basis points.
type WrappingFeeUpdateProposal struct {
	types.ProposalHeader
	NewFee uint16
}

func NewWrappingFeeUpdateProposal(h types.ProposalHeader, fee uint16) (WrappingFeeUpdateProposal, error) {
	if fee > MaxWrappingFee {
		return WrappingFeeUpdateProposal{}, fmt.Errorf("fee %d: %w", fee, bridgeerrors.ErrCFeeOutOfRange)
	}
	return WrappingFeeUpdateProposal{ProposalHeader: h, NewFee: fee}, nil
}

func (p WrappingFeeUpdateProposal) Kind() Kind                   { return KindWrappingFeeUpdate }
func (p WrappingFeeUpdateProposal) Header() types.ProposalHeader { return p.ProposalHeader }
func (p WrappingFeeUpdateProposal) isProposal()                  {}

func (p WrappingFeeUpdateProposal) WithHeader(h types.ProposalHeader) Proposal {
	p.ProposalHeader = h
	return p
}

func (p WrappingFeeUpdateProposal) Bytes() []byte {
	return encodeHeadered(p.ProposalHeader, common.Uint16ToBytes(p.NewFee))
}

func (p WrappingFeeUpdateProposal) String() string {
	return fmt.Sprintf("WrappingFeeUpdate{%s fee=%dbps}", p.ProposalHeader, p.NewFee)
}

func DecodeWrappingFeeUpdateProposal(b []byte) (WrappingFeeUpdateProposal, error) {
	h, r, err := splitHeadered(KindWrappingFeeUpdate, b)
	if err != nil {
		return WrappingFeeUpdateProposal{}, err
	}
	fee, err := common.BytesToUint16(r.next(WrappingFeePayloadSize))
	if err != nil {
		return WrappingFeeUpdateProposal{}, err
	}
	return NewWrappingFeeUpdateProposal(h, fee)
}
