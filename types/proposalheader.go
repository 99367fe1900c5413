package types

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"

	"github.com/colorfulnotion/anchorbridge/bridgeerrors"
	"github.com/colorfulnotion/anchorbridge/common"
)

const (
	FunctionSignatureSize = 4
	NonceSize             = 4
	ProposalHeaderSize    = ResourceIDSize + FunctionSignatureSize + NonceSize
)

// FunctionSignature is a 4-byte Solidity selector naming the governance action.
type FunctionSignature [FunctionSignatureSize]byte

// FunctionSignatureFromABI returns the first four bytes of Keccak256(sig), e.g. "updateEdge(bytes32,bytes32)".
func FunctionSignatureFromABI(sig string) FunctionSignature {
	var fs FunctionSignature
	copy(fs[:], common.Keccak256([]byte(sig)).Bytes()[:FunctionSignatureSize])
	return fs
}

func FunctionSignatureFromBytes(b []byte) (FunctionSignature, error) {
	var fs FunctionSignature
	if len(b) != FunctionSignatureSize {
		return fs, fmt.Errorf("function signature: want %d bytes, got %d: %w", FunctionSignatureSize, len(b), bridgeerrors.ErrCLengthMismatch)
	}
	copy(fs[:], b)
	return fs, nil
}

func (f FunctionSignature) Bytes() []byte {
	return append([]byte(nil), f[:]...)
}

func (f FunctionSignature) String() string {
	return "0x" + hex.EncodeToString(f[:])
}

// Nonce is the per-resource proposal counter.
type Nonce uint32

func (n Nonce) Bytes() []byte {
	return common.Uint32ToBytes(uint32(n))
}

// Next is the only nonce the governance contract will accept after n.
func (n Nonce) Next() Nonce {
	return n + 1
}

// ProposalHeader is resourceId[32] ++ functionSig[4] ++ nonce[4].
type ProposalHeader struct {
	ResourceID        ResourceID        `json:"resource_id"`
	FunctionSignature FunctionSignature `json:"function_signature"`
	Nonce             Nonce             `json:"nonce"`
}

func NewProposalHeader(rid ResourceID, fs FunctionSignature, nonce Nonce) ProposalHeader {
	return ProposalHeader{ResourceID: rid, FunctionSignature: fs, Nonce: nonce}
}

func (h ProposalHeader) Bytes() []byte {
	out := make([]byte, ProposalHeaderSize)
	copy(out[:ResourceIDSize], h.ResourceID[:])
	copy(out[ResourceIDSize:ResourceIDSize+FunctionSignatureSize], h.FunctionSignature[:])
	binary.BigEndian.PutUint32(out[ResourceIDSize+FunctionSignatureSize:], uint32(h.Nonce))
	return out
}

// DecodeProposalHeader requires exactly 40 bytes.
func DecodeProposalHeader(b []byte) (ProposalHeader, error) {
	if len(b) != ProposalHeaderSize {
		return ProposalHeader{}, fmt.Errorf("proposal header: want %d bytes, got %d: %w", ProposalHeaderSize, len(b), bridgeerrors.ErrCLengthMismatch)
	}
	rid, err := ResourceIDFromBytes(b[:ResourceIDSize])
	if err != nil {
		return ProposalHeader{}, err
	}
	fs, err := FunctionSignatureFromBytes(b[ResourceIDSize : ResourceIDSize+FunctionSignatureSize])
	if err != nil {
		return ProposalHeader{}, err
	}
	return NewProposalHeader(rid, fs, Nonce(binary.BigEndian.Uint32(b[ResourceIDSize+FunctionSignatureSize:]))), nil
}

func (h ProposalHeader) String() string {
	return fmt.Sprintf("ProposalHeader{rid=%s sig=%s nonce=%d}", h.ResourceID, h.FunctionSignature, h.Nonce)
}

func (f FunctionSignature) MarshalText() ([]byte, error) {
	return []byte(f.String()), nil
}

func (f *FunctionSignature) UnmarshalText(text []byte) error {
	raw, err := common.LeftPadHex(string(text), FunctionSignatureSize)
	if err != nil {
		return fmt.Errorf("function signature %q: %w", text, err)
	}
	*f, err = FunctionSignatureFromBytes(raw)
	return err
}
