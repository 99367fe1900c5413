package proposals

import (
	"fmt"

	"github.com/colorfulnotion/anchorbridge/common"
	"github.com/colorfulnotion/anchorbridge/types"
)

const (
	AssetIDSize = 4
	NameSize    = 32
	SymbolSize  = 32
	SaltSize    = 32
	URISize     = 64

	RegisterFungibleTokenPayloadSize = common.AddressLength + AssetIDSize + NameSize + SymbolSize
	RegisterNftTokenPayloadSize      = common.AddressLength + AssetIDSize + common.AddressLength + SaltSize + URISize
)

// RegisterFungibleTokenProposal registers a fungible asset with a token handler.
type RegisterFungibleTokenProposal struct {
	types.ProposalHeader
	TokenHandler common.Address
	AssetID      uint32
	Name         [NameSize]byte
	Symbol       [SymbolSize]byte
}

// NewRegisterFungibleTokenProposal takes name and symbol as already padded 32-byte fields.
func NewRegisterFungibleTokenProposal(h types.ProposalHeader, handler common.Address, assetID uint32, name, symbol []byte) (RegisterFungibleTokenProposal, error) {
	if err := fixedField("name", name, NameSize); err != nil {
		return RegisterFungibleTokenProposal{}, err
	}
	if err := fixedField("symbol", symbol, SymbolSize); err != nil {
		return RegisterFungibleTokenProposal{}, err
	}
	p := RegisterFungibleTokenProposal{ProposalHeader: h, TokenHandler: handler, AssetID: assetID}
	copy(p.Name[:], name)
	copy(p.Symbol[:], symbol)
	return p, nil
}

func (p RegisterFungibleTokenProposal) Kind() Kind                   { return KindRegisterFungibleToken }
func (p RegisterFungibleTokenProposal) Header() types.ProposalHeader { return p.ProposalHeader }
func (p RegisterFungibleTokenProposal) isProposal()                  {}

func (p RegisterFungibleTokenProposal) WithHeader(h types.ProposalHeader) Proposal {
	p.ProposalHeader = h
	return p
}

func (p RegisterFungibleTokenProposal) Bytes() []byte {
	return encodeHeadered(p.ProposalHeader, p.TokenHandler.Bytes(), common.Uint32ToBytes(p.AssetID), p.Name[:], p.Symbol[:])
}

func (p RegisterFungibleTokenProposal) String() string {
	return fmt.Sprintf("RegisterFungibleToken{%s handler=%s asset=%d name=%q symbol=%q}",
		p.ProposalHeader, p.TokenHandler.Hex(), p.AssetID, common.TrimRightZeros(p.Name[:]), common.TrimRightZeros(p.Symbol[:]))
}

func DecodeRegisterFungibleTokenProposal(b []byte) (RegisterFungibleTokenProposal, error) {
	h, r, err := splitHeadered(KindRegisterFungibleToken, b)
	if err != nil {
		return RegisterFungibleTokenProposal{}, err
	}
	p := RegisterFungibleTokenProposal{ProposalHeader: h}
	p.TokenHandler = common.BytesToAddress(r.next(common.AddressLength))
	if p.AssetID, err = common.BytesToUint32(r.next(AssetIDSize)); err != nil {
		return RegisterFungibleTokenProposal{}, err
	}
	copy(p.Name[:], r.next(NameSize))
	copy(p.Symbol[:], r.next(SymbolSize))
	return p, nil
}

// RegisterNftTokenProposal registers an NFT collection with a token handler.
type RegisterNftTokenProposal struct {
	types.ProposalHeader
	TokenHandler      common.Address
	AssetID           uint32
	CollectionAddress common.Address
	Salt              common.Hash
	URI               [URISize]byte
}

func NewRegisterNftTokenProposal(h types.ProposalHeader, handler common.Address, assetID uint32, collection common.Address, salt common.Hash, uri []byte) (RegisterNftTokenProposal, error) {
	if err := fixedField("uri", uri, URISize); err != nil {
		return RegisterNftTokenProposal{}, err
	}
	p := RegisterNftTokenProposal{ProposalHeader: h, TokenHandler: handler, AssetID: assetID, CollectionAddress: collection, Salt: salt}
	copy(p.URI[:], uri)
	return p, nil
}

func (p RegisterNftTokenProposal) Kind() Kind                   { return KindRegisterNftToken }
func (p RegisterNftTokenProposal) Header() types.ProposalHeader { return p.ProposalHeader }
func (p RegisterNftTokenProposal) isProposal()                  {}

func (p RegisterNftTokenProposal) WithHeader(h types.ProposalHeader) Proposal {
	p.ProposalHeader = h
	return p
}

func (p RegisterNftTokenProposal) Bytes() []byte {
	return encodeHeadered(p.ProposalHeader, p.TokenHandler.Bytes(), common.Uint32ToBytes(p.AssetID),
		p.CollectionAddress.Bytes(), p.Salt.Bytes(), p.URI[:])
}

func (p RegisterNftTokenProposal) String() string {
	return fmt.Sprintf("RegisterNftToken{%s handler=%s asset=%d collection=%s uri=%q}",
		p.ProposalHeader, p.TokenHandler.Hex(), p.AssetID, p.CollectionAddress.Hex(), common.TrimRightZeros(p.URI[:]))
}

func DecodeRegisterNftTokenProposal(b []byte) (RegisterNftTokenProposal, error) {
	h, r, err := splitHeadered(KindRegisterNftToken, b)
	if err != nil {
		return RegisterNftTokenProposal{}, err
	}
	p := RegisterNftTokenProposal{ProposalHeader: h}
	p.TokenHandler = common.BytesToAddress(r.next(common.AddressLength))
	if p.AssetID, err = common.BytesToUint32(r.next(AssetIDSize)); err != nil {
		return RegisterNftTokenProposal{}, err
	}
	p.CollectionAddress = common.BytesToAddress(r.next(common.AddressLength))
	p.Salt = common.BytesToHash(r.next(SaltSize))
	copy(p.URI[:], r.next(URISize))
	return p, nil
}
