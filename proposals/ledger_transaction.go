package proposals

import (
	"encoding/binary"
	"fmt"

	"github.com/colorfulnotion/anchorbridge/bridgeerrors"
	"github.com/colorfulnotion/anchorbridge/types"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
)

// LedgerTransactionProposal carries chainType[2] ++ a signed transaction envelope for that ledger family.
// EVM envelopes must decode as a go-ethereum transaction; other families are opaque.
type LedgerTransactionProposal struct {
	ChainType types.ChainType
	Envelope  []byte
}

func NewLedgerTransactionProposal(ct types.ChainType, envelope []byte) (LedgerTransactionProposal, error) {
	if _, err := types.ChainTypeFromUint16(uint16(ct)); err != nil {
		return LedgerTransactionProposal{}, err
	}
	if len(envelope) == 0 {
		return LedgerTransactionProposal{}, fmt.Errorf("empty %s envelope: %w", ct, bridgeerrors.ErrCInvalidEnvelope)
	}
	if ct == types.ChainTypeEVM {
		if _, err := decodeEVMEnvelope(envelope); err != nil {
			return LedgerTransactionProposal{}, err
		}
	}
	return LedgerTransactionProposal{ChainType: ct, Envelope: append([]byte(nil), envelope...)}, nil
}

// NewEVMTransactionProposal wraps an already signed EVM transaction.
func NewEVMTransactionProposal(tx *ethtypes.Transaction) (LedgerTransactionProposal, error) {
	raw, err := tx.MarshalBinary()
	if err != nil {
		return LedgerTransactionProposal{}, fmt.Errorf("%w: %v", bridgeerrors.ErrCInvalidEnvelope, err)
	}
	return NewLedgerTransactionProposal(types.ChainTypeEVM, raw)
}

func (p LedgerTransactionProposal) Kind() Kind                   { return KindLedgerTransaction }
func (p LedgerTransactionProposal) Header() types.ProposalHeader { return types.ProposalHeader{} }
func (p LedgerTransactionProposal) isProposal()                  {}

func (p LedgerTransactionProposal) Bytes() []byte {
	out := make([]byte, types.ChainTypeSize, types.ChainTypeSize+len(p.Envelope))
	binary.BigEndian.PutUint16(out, uint16(p.ChainType))
	return append(out, p.Envelope...)
}

// EVMTransaction decodes the envelope of an EVM ledger transaction.
func (p LedgerTransactionProposal) EVMTransaction() (*ethtypes.Transaction, error) {
	if p.ChainType != types.ChainTypeEVM {
		return nil, fmt.Errorf("%s envelope is not an EVM transaction: %w", p.ChainType, bridgeerrors.ErrCInvalidEnvelope)
	}
	return decodeEVMEnvelope(p.Envelope)
}

func (p LedgerTransactionProposal) String() string {
	return fmt.Sprintf("LedgerTransaction{chain=%s envelope=%d bytes}", p.ChainType, len(p.Envelope))
}

func DecodeLedgerTransactionProposal(b []byte) (LedgerTransactionProposal, error) {
	if len(b) <= types.ChainTypeSize {
		return LedgerTransactionProposal{}, fmt.Errorf("LedgerTransaction proposal: want more than %d bytes, got %d: %w", types.ChainTypeSize, len(b), bridgeerrors.ErrCLengthMismatch)
	}
	ct, err := types.ChainTypeFromUint16(binary.BigEndian.Uint16(b[:types.ChainTypeSize]))
	if err != nil {
		return LedgerTransactionProposal{}, err
	}
	return NewLedgerTransactionProposal(ct, b[types.ChainTypeSize:])
}

func decodeEVMEnvelope(envelope []byte) (*ethtypes.Transaction, error) {
	tx := new(ethtypes.Transaction)
	if err := tx.UnmarshalBinary(envelope); err != nil {
		return nil, fmt.Errorf("%w: %v", bridgeerrors.ErrCInvalidEnvelope, err)
	}
	return tx, nil
}
