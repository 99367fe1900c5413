package signer

import (
	"context"
	"errors"
	"testing"

	"github.com/colorfulnotion/anchorbridge/bridgeerrors"
	"github.com/colorfulnotion/anchorbridge/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// keccakService mimics a remote signing service exposing signer_signKeccak.
type keccakService struct {
	local *LocalSigner
}

func (s *keccakService) SignKeccak(ctx context.Context, addr common.Address, msg hexutil.Bytes) (hexutil.Bytes, error) {
	return s.local.Sign(ctx, msg)
}

func TestLocalSigner(t *testing.T) {
	_, keyHex := common.GetEVMDevAccount(1)
	s, err := NewLocalSignerFromHex(keyHex)
	require.NoError(t, err)

	msg := []byte("proposal bytes")
	sig, err := s.Sign(context.Background(), msg)
	require.NoError(t, err)
	require.Len(t, sig, crypto.SignatureLength)
	assert.Contains(t, []byte{27, 28}, sig[crypto.RecoveryIDOffset])
	assert.NoError(t, common.VerifyKeccakSignature(s.Address(), msg, sig))

	pub, err := crypto.UnmarshalPubkey(s.PublicKey())
	require.NoError(t, err)
	assert.Equal(t, s.Address(), crypto.PubkeyToAddress(*pub))
}

func TestRemoteSigner(t *testing.T) {
	_, keyHex := common.GetEVMDevAccount(2)
	local, err := NewLocalSignerFromHex(keyHex)
	require.NoError(t, err)

	server := rpc.NewServer()
	defer server.Stop()
	require.NoError(t, server.RegisterName("signer", &keccakService{local: local}))
	client := rpc.DialInProc(server)

	remote := NewRemoteSigner(client, DefaultRemoteMethod, local.Address())
	defer remote.Close()
	msg := []byte{0x01, 0x02, 0x03}
	sig, err := remote.Sign(context.Background(), msg)
	require.NoError(t, err)
	assert.NoError(t, common.VerifyKeccakSignature(local.Address(), msg, sig))

	// a service signing for a different governor is refused
	other, _ := common.GetEVMDevAccount(3)
	wrong := NewRemoteSigner(rpc.DialInProc(server), DefaultRemoteMethod, other)
	_, err = wrong.Sign(context.Background(), msg)
	assert.True(t, errors.Is(err, bridgeerrors.ErrGSignerMismatch))
}
