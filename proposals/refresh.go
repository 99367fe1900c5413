package proposals

import (
	"encoding/binary"
	"fmt"

	"github.com/colorfulnotion/anchorbridge/bridgeerrors"
	"github.com/colorfulnotion/anchorbridge/common"
	"github.com/colorfulnotion/anchorbridge/types"
	"github.com/ethereum/go-ethereum/crypto"
)

// RefreshFixedSize covers voterMerkleRoot[32] ++ sessionLength[8] ++ voterCount[4] ++ nonce[4].
const RefreshFixedSize = common.HashLength + 8 + 4 + 4

// RefreshProposal rotates the governor key. It carries no ProposalHeader; the public key is the tail.
type RefreshProposal struct {
	VoterMerkleRoot common.Hash
	SessionLength   uint64
	VoterCount      uint32
	Nonce           types.Nonce
	PublicKey       []byte
}

func NewRefreshProposal(root common.Hash, sessionLength uint64, voterCount uint32, nonce types.Nonce, publicKey []byte) (RefreshProposal, error) {
	if len(publicKey) == 0 {
		return RefreshProposal{}, bridgeerrors.ErrCEmptyRefreshPublicKey
	}
	return RefreshProposal{
		VoterMerkleRoot: root,
		SessionLength:   sessionLength,
		VoterCount:      voterCount,
		Nonce:           nonce,
		PublicKey:       append([]byte(nil), publicKey...),
	}, nil
}

func (p RefreshProposal) Kind() Kind                   { return KindRefresh }
func (p RefreshProposal) Header() types.ProposalHeader { return types.ProposalHeader{} }
func (p RefreshProposal) isProposal()                  {}

func (p RefreshProposal) Bytes() []byte {
	out := make([]byte, RefreshFixedSize, RefreshFixedSize+len(p.PublicKey))
	copy(out[:32], p.VoterMerkleRoot.Bytes())
	binary.BigEndian.PutUint64(out[32:40], p.SessionLength)
	binary.BigEndian.PutUint32(out[40:44], p.VoterCount)
	binary.BigEndian.PutUint32(out[44:48], uint32(p.Nonce))
	return append(out, p.PublicKey...)
}

// GovernorAddress derives the address of the new governor from an uncompressed
// (64 or 65 byte) or compressed (33 byte) secp256k1 public key.
func (p RefreshProposal) GovernorAddress() (common.Address, error) {
	switch len(p.PublicKey) {
	case 64:
		return common.BytesToAddress(common.Keccak256(p.PublicKey).Bytes()[12:]), nil
	case 65:
		pub, err := crypto.UnmarshalPubkey(p.PublicKey)
		if err != nil {
			return common.Address{}, err
		}
		return crypto.PubkeyToAddress(*pub), nil
	case 33:
		pub, err := crypto.DecompressPubkey(p.PublicKey)
		if err != nil {
			return common.Address{}, err
		}
		return crypto.PubkeyToAddress(*pub), nil
	}
	return common.Address{}, fmt.Errorf("public key of %d bytes: %w", len(p.PublicKey), bridgeerrors.ErrCFieldWidth)
}

func (p RefreshProposal) String() string {
	return fmt.Sprintf("Refresh{root=%s session=%d voters=%d nonce=%d key=%d bytes}",
		common.Str(p.VoterMerkleRoot), p.SessionLength, p.VoterCount, p.Nonce, len(p.PublicKey))
}

// DecodeRefreshProposal requires the fixed prefix plus at least one public key byte.
func DecodeRefreshProposal(b []byte) (RefreshProposal, error) {
	if len(b) <= RefreshFixedSize {
		return RefreshProposal{}, fmt.Errorf("Refresh proposal: want more than %d bytes, got %d: %w", RefreshFixedSize, len(b), bridgeerrors.ErrCLengthMismatch)
	}
	return NewRefreshProposal(
		common.BytesToHash(b[:32]),
		binary.BigEndian.Uint64(b[32:40]),
		binary.BigEndian.Uint32(b[40:44]),
		types.Nonce(binary.BigEndian.Uint32(b[44:48])),
		b[RefreshFixedSize:],
	)
}
