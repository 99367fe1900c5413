package proposals

import (
	"fmt"

	"github.com/colorfulnotion/anchorbridge/types"
	"github.com/holiman/uint256"
)

const LimitPayloadSize = 32

// limitProposal is the shared layout header ++ uint256[32].
type limitProposal struct {
	types.ProposalHeader
	Limit uint256.Int
}

func (p limitProposal) Header() types.ProposalHeader { return p.ProposalHeader }
func (p limitProposal) isProposal()                  {}

func (p limitProposal) Bytes() []byte {
	b32 := p.Limit.Bytes32()
	return encodeHeadered(p.ProposalHeader, b32[:])
}

func decodeLimitProposal(kind Kind, b []byte) (limitProposal, error) {
	h, r, err := splitHeadered(kind, b)
	if err != nil {
		return limitProposal{}, err
	}
	var p limitProposal
	p.ProposalHeader = h
	p.Limit.SetBytes32(r.next(LimitPayloadSize))
	return p, nil
}

// MinWithdrawalLimitProposal sets the smallest amount a wrapper lets users withdraw.
type MinWithdrawalLimitProposal struct{ limitProposal }

func NewMinWithdrawalLimitProposal(h types.ProposalHeader, limit *uint256.Int) MinWithdrawalLimitProposal {
	return MinWithdrawalLimitProposal{limitProposal{h, *limit}}
}

func (p MinWithdrawalLimitProposal) Kind() Kind { return KindMinWithdrawalLimit }
func (p MinWithdrawalLimitProposal) WithHeader(h types.ProposalHeader) Proposal {
	p.ProposalHeader = h
	return p
}

func (p MinWithdrawalLimitProposal) String() string {
	return fmt.Sprintf("MinWithdrawalLimit{%s limit=%s}", p.ProposalHeader, p.Limit.Dec())
}

func DecodeMinWithdrawalLimitProposal(b []byte) (MinWithdrawalLimitProposal, error) {
	l, err := decodeLimitProposal(KindMinWithdrawalLimit, b)
	return MinWithdrawalLimitProposal{l}, err
}

// MaxDepositLimitProposal sets the largest single deposit a wrapper accepts.
type MaxDepositLimitProposal struct{ limitProposal }

func NewMaxDepositLimitProposal(h types.ProposalHeader, limit *uint256.Int) MaxDepositLimitProposal {
	return MaxDepositLimitProposal{limitProposal{h, *limit}}
}

func (p MaxDepositLimitProposal) Kind() Kind { return KindMaxDepositLimit }
func (p MaxDepositLimitProposal) WithHeader(h types.ProposalHeader) Proposal {
	p.ProposalHeader = h
	return p
}

func (p MaxDepositLimitProposal) String() string {
	return fmt.Sprintf("MaxDepositLimit{%s limit=%s}", p.ProposalHeader, p.Limit.Dec())
}

func DecodeMaxDepositLimitProposal(b []byte) (MaxDepositLimitProposal, error) {
	l, err := decodeLimitProposal(KindMaxDepositLimit, b)
	return MaxDepositLimitProposal{l}, err
}
