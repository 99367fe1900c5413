package types

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/colorfulnotion/anchorbridge/bridgeerrors"
)

// ChainType is the 2-byte ledger family tag carried in every ResourceID.
type ChainType uint16

const (
	ChainTypeEVM               ChainType = 0x0100
	ChainTypeSubstrate         ChainType = 0x0200
	ChainTypePolkadotParachain ChainType = 0x0301
	ChainTypeKusamaParachain   ChainType = 0x0302
	ChainTypeRococoParachain   ChainType = 0x0303
	ChainTypeCosmos            ChainType = 0x0400
	ChainTypeSolana            ChainType = 0x0500
	ChainTypeInk               ChainType = 0x0600
)

const (
	ChainTypeSize    = 2
	ChainIDSize      = 4
	TypedChainIDSize = ChainTypeSize + ChainIDSize
)

var chainTypeNames = map[ChainType]string{
	ChainTypeEVM:               "EVM",
	ChainTypeSubstrate:         "Substrate",
	ChainTypePolkadotParachain: "PolkadotParachain",
	ChainTypeKusamaParachain:   "KusamaParachain",
	ChainTypeRococoParachain:   "RococoParachain",
	ChainTypeCosmos:            "Cosmos",
	ChainTypeSolana:            "Solana",
	ChainTypeInk:               "Ink",
}

// ChainTypeFromUint16 casts a raw tag, failing on values that name no ledger family.
func ChainTypeFromUint16(v uint16) (ChainType, error) {
	ct := ChainType(v)
	if _, ok := chainTypeNames[ct]; !ok {
		return 0, fmt.Errorf("chain type 0x%04x: %w", v, bridgeerrors.ErrCUnknownChainType)
	}
	return ct, nil
}

// ParseChainType resolves a family name as written in deployment files ("EVM", "Substrate", ...).
func ParseChainType(name string) (ChainType, error) {
	for ct, n := range chainTypeNames {
		if n == name {
			return ct, nil
		}
	}
	return 0, fmt.Errorf("chain type %q: %w", name, bridgeerrors.ErrCUnknownChainType)
}

func (ct ChainType) String() string {
	if n, ok := chainTypeNames[ct]; ok {
		return n
	}
	return fmt.Sprintf("ChainType(0x%04x)", uint16(ct))
}

func (ct ChainType) Bytes() []byte {
	b := make([]byte, ChainTypeSize)
	binary.BigEndian.PutUint16(b, uint16(ct))
	return b
}

// TypedChainID pairs a ledger family with its numeric chain id.
type TypedChainID struct {
	Type ChainType `json:"chain_type"`
	ID   uint32    `json:"chain_id"`
}

func NewTypedChainID(ct ChainType, id uint32) TypedChainID {
	return TypedChainID{Type: ct, ID: id}
}

// EVMChain is shorthand for the typed id of an EVM chain.
func EVMChain(id uint32) TypedChainID {
	return TypedChainID{Type: ChainTypeEVM, ID: id}
}

// EVMChainFromLedger types the chain id an EVM ledger reports. Ids wider than the 4-byte chainId field are rejected.
func EVMChainFromLedger(id uint64) (TypedChainID, error) {
	if id > math.MaxUint32 {
		return TypedChainID{}, fmt.Errorf("chain id %d exceeds %d bytes: %w", id, ChainIDSize, bridgeerrors.ErrCFieldWidth)
	}
	return EVMChain(uint32(id)), nil
}

// Bytes encodes chainType[2] ++ chainId[4].
func (t TypedChainID) Bytes() []byte {
	b := make([]byte, TypedChainIDSize)
	binary.BigEndian.PutUint16(b[:ChainTypeSize], uint16(t.Type))
	binary.BigEndian.PutUint32(b[ChainTypeSize:], t.ID)
	return b
}

// Uint64 packs the typed id as (chainType << 32) | chainId, the value stored on-ledger.
func (t TypedChainID) Uint64() uint64 {
	return uint64(t.Type)<<32 | uint64(t.ID)
}

func TypedChainIDFromUint64(v uint64) (TypedChainID, error) {
	if v>>48 != 0 {
		return TypedChainID{}, fmt.Errorf("typed chain id 0x%x exceeds 48 bits: %w", v, bridgeerrors.ErrCFieldWidth)
	}
	ct, err := ChainTypeFromUint16(uint16(v >> 32))
	if err != nil {
		return TypedChainID{}, err
	}
	return TypedChainID{Type: ct, ID: uint32(v)}, nil
}

func TypedChainIDFromBytes(b []byte) (TypedChainID, error) {
	if len(b) != TypedChainIDSize {
		return TypedChainID{}, fmt.Errorf("typed chain id: want %d bytes, got %d: %w", TypedChainIDSize, len(b), bridgeerrors.ErrCLengthMismatch)
	}
	ct, err := ChainTypeFromUint16(binary.BigEndian.Uint16(b[:ChainTypeSize]))
	if err != nil {
		return TypedChainID{}, err
	}
	return TypedChainID{Type: ct, ID: binary.BigEndian.Uint32(b[ChainTypeSize:])}, nil
}

func (t TypedChainID) String() string {
	return fmt.Sprintf("%s:%d", t.Type, t.ID)
}
