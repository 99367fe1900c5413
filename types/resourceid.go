package types

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/colorfulnotion/anchorbridge/bridgeerrors"
	"github.com/colorfulnotion/anchorbridge/common"
)

const (
	TargetSystemSize = 26
	ResourceIDSize   = TargetSystemSize + TypedChainIDSize
)

// ResourceID is targetSystem[26] ++ chainType[2] ++ chainId[4].
type ResourceID [ResourceIDSize]byte

// NewResourceID left-pads targetSystem to 26 bytes. Longer inputs are rejected.
func NewResourceID(targetSystem []byte, chainType ChainType, chainID uint32) (ResourceID, error) {
	var rid ResourceID
	if len(targetSystem) > TargetSystemSize {
		return rid, fmt.Errorf("target system of %d bytes: %w", len(targetSystem), bridgeerrors.ErrCTargetSystemTooLong)
	}
	if _, err := ChainTypeFromUint16(uint16(chainType)); err != nil {
		return rid, err
	}
	copy(rid[TargetSystemSize-len(targetSystem):TargetSystemSize], targetSystem)
	binary.BigEndian.PutUint16(rid[TargetSystemSize:TargetSystemSize+ChainTypeSize], uint16(chainType))
	binary.BigEndian.PutUint32(rid[TargetSystemSize+ChainTypeSize:], chainID)
	return rid, nil
}

// ResourceIDFromAddress builds the resource id of a contract deployed on chain.
func ResourceIDFromAddress(addr common.Address, chain TypedChainID) ResourceID {
	rid, err := NewResourceID(addr.Bytes(), chain.Type, chain.ID)
	if err != nil {
		// a 20-byte address always fits; only an unknown chain type reaches here
		panic(err)
	}
	return rid
}

func ResourceIDFromBytes(b []byte) (ResourceID, error) {
	var rid ResourceID
	if len(b) != ResourceIDSize {
		return rid, fmt.Errorf("resource id: want %d bytes, got %d: %w", ResourceIDSize, len(b), bridgeerrors.ErrCLengthMismatch)
	}
	if _, err := ChainTypeFromUint16(binary.BigEndian.Uint16(b[TargetSystemSize : TargetSystemSize+ChainTypeSize])); err != nil {
		return rid, err
	}
	copy(rid[:], b)
	return rid, nil
}

func ResourceIDFromHex(s string) (ResourceID, error) {
	raw, err := common.LeftPadHex(s, ResourceIDSize)
	if err != nil {
		return ResourceID{}, fmt.Errorf("resource id %q: %w", s, err)
	}
	return ResourceIDFromBytes(raw)
}

func (r ResourceID) Bytes() []byte {
	out := make([]byte, ResourceIDSize)
	copy(out, r[:])
	return out
}

func (r ResourceID) TargetSystem() []byte {
	out := make([]byte, TargetSystemSize)
	copy(out, r[:TargetSystemSize])
	return out
}

// Address returns the trailing 20 bytes of the target system.
func (r ResourceID) Address() common.Address {
	return common.BytesToAddress(r[TargetSystemSize-common.AddressLength : TargetSystemSize])
}

func (r ResourceID) ChainType() ChainType {
	return ChainType(binary.BigEndian.Uint16(r[TargetSystemSize : TargetSystemSize+ChainTypeSize]))
}

func (r ResourceID) ChainID() uint32 {
	return binary.BigEndian.Uint32(r[TargetSystemSize+ChainTypeSize:])
}

func (r ResourceID) TypedChainID() TypedChainID {
	return TypedChainID{Type: r.ChainType(), ID: r.ChainID()}
}

// Hash is the bytes32 form passed to contracts.
func (r ResourceID) Hash() common.Hash {
	return common.Hash(r)
}

func (r ResourceID) IsZero() bool {
	return r == ResourceID{}
}

func (r ResourceID) Hex() string {
	return "0x" + hex.EncodeToString(r[:])
}

func (r ResourceID) String() string {
	return r.Hex()
}

func (r ResourceID) MarshalText() ([]byte, error) {
	return []byte(r.Hex()), nil
}

func (r *ResourceID) UnmarshalText(text []byte) error {
	s := string(text)
	if !strings.HasPrefix(s, "0x") || len(s) != 2+2*ResourceIDSize {
		return fmt.Errorf("resource id %q: want 0x-prefixed %d hex chars: %w", s, 2*ResourceIDSize, bridgeerrors.ErrCLengthMismatch)
	}
	rid, err := ResourceIDFromHex(s)
	if err != nil {
		return err
	}
	*r = rid
	return nil
}
