package proposals

import (
	"fmt"

	"github.com/colorfulnotion/anchorbridge/common"
	"github.com/colorfulnotion/anchorbridge/types"
)

const ResourceIDUpdatePayloadSize = types.ResourceIDSize + common.AddressLength

// ResourceIDUpdateProposal binds newResourceId to a handler on the governance contract.
type ResourceIDUpdateProposal struct {
	types.ProposalHeader
	NewResourceID  types.ResourceID
	HandlerAddress common.Address
}

func NewResourceIDUpdateProposal(h types.ProposalHeader, rid types.ResourceID, handler common.Address) ResourceIDUpdateProposal {
	return ResourceIDUpdateProposal{ProposalHeader: h, NewResourceID: rid, HandlerAddress: handler}
}

func (p ResourceIDUpdateProposal) Kind() Kind                   { return KindResourceIDUpdate }
func (p ResourceIDUpdateProposal) Header() types.ProposalHeader { return p.ProposalHeader }
func (p ResourceIDUpdateProposal) isProposal()                  {}

func (p ResourceIDUpdateProposal) WithHeader(h types.ProposalHeader) Proposal {
	p.ProposalHeader = h
	return p
}

func (p ResourceIDUpdateProposal) Bytes() []byte {
	return encodeHeadered(p.ProposalHeader, p.NewResourceID.Bytes(), p.HandlerAddress.Bytes())
}

func (p ResourceIDUpdateProposal) String() string {
	return fmt.Sprintf("ResourceIdUpdate{%s new=%s handler=%s}", p.ProposalHeader, p.NewResourceID, p.HandlerAddress.Hex())
}

func DecodeResourceIDUpdateProposal(b []byte) (ResourceIDUpdateProposal, error) {
	h, r, err := splitHeadered(KindResourceIDUpdate, b)
	if err != nil {
		return ResourceIDUpdateProposal{}, err
	}
	rid, err := types.ResourceIDFromBytes(r.next(types.ResourceIDSize))
	if err != nil {
		return ResourceIDUpdateProposal{}, fmt.Errorf("ResourceIdUpdate new resource: %w", err)
	}
	return NewResourceIDUpdateProposal(h, rid, common.BytesToAddress(r.next(common.AddressLength))), nil
}
