package proposals

import (
	"fmt"

	"github.com/colorfulnotion/anchorbridge/common"
	"github.com/colorfulnotion/anchorbridge/types"
)

const AnchorUpdatePayloadSize = common.HashLength + types.ResourceIDSize

// AnchorUpdateProposal tells an anchor the latest root of a linked source anchor.
type AnchorUpdateProposal struct {
	types.ProposalHeader
	MerkleRoot    common.Hash
	SrcResourceID types.ResourceID
}

func NewAnchorUpdateProposal(h types.ProposalHeader, root common.Hash, src types.ResourceID) AnchorUpdateProposal {
	return AnchorUpdateProposal{ProposalHeader: h, MerkleRoot: root, SrcResourceID: src}
}

func (p AnchorUpdateProposal) Kind() Kind                   { return KindAnchorUpdate }
func (p AnchorUpdateProposal) Header() types.ProposalHeader { return p.ProposalHeader }
func (p AnchorUpdateProposal) isProposal()                  {}

func (p AnchorUpdateProposal) WithHeader(h types.ProposalHeader) Proposal {
	p.ProposalHeader = h
	return p
}

func (p AnchorUpdateProposal) Bytes() []byte {
	return encodeHeadered(p.ProposalHeader, p.MerkleRoot.Bytes(), p.SrcResourceID.Bytes())
}

func (p AnchorUpdateProposal) String() string {
	return fmt.Sprintf("AnchorUpdate{%s root=%s src=%s}", p.ProposalHeader, common.Str(p.MerkleRoot), p.SrcResourceID)
}

func DecodeAnchorUpdateProposal(b []byte) (AnchorUpdateProposal, error) {
	h, r, err := splitHeadered(KindAnchorUpdate, b)
	if err != nil {
		return AnchorUpdateProposal{}, err
	}
	root := common.BytesToHash(r.next(common.HashLength))
	src, err := types.ResourceIDFromBytes(r.next(types.ResourceIDSize))
	if err != nil {
		return AnchorUpdateProposal{}, fmt.Errorf("AnchorUpdate src resource: %w", err)
	}
	return NewAnchorUpdateProposal(h, root, src), nil
}
