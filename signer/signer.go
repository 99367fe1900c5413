// Package signer provides the signing capability proposals are authenticated with.
package signer

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"strings"

	"github.com/colorfulnotion/anchorbridge/bridgeerrors"
	"github.com/colorfulnotion/anchorbridge/common"
	"github.com/colorfulnotion/anchorbridge/log"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rpc"
)

// Signer signs keccak256(msg) and returns a 65-byte [R || S || V] signature with V in {27, 28}.
type Signer interface {
	Sign(ctx context.Context, msg []byte) ([]byte, error)
	Address() common.Address
}

// LocalSigner is a hot wallet holding the governor key in memory.
type LocalSigner struct {
	key  *ecdsa.PrivateKey
	addr common.Address
}

func NewLocalSigner(key *ecdsa.PrivateKey) *LocalSigner {
	return &LocalSigner{key: key, addr: crypto.PubkeyToAddress(key.PublicKey)}
}

func NewLocalSignerFromHex(keyHex string) (*LocalSigner, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(keyHex, "0x"))
	if err != nil {
		return nil, fmt.Errorf("governor key: %w", err)
	}
	return NewLocalSigner(key), nil
}

func (s *LocalSigner) Address() common.Address {
	return s.addr
}

// PublicKey is the uncompressed public key, as carried by refresh proposals.
func (s *LocalSigner) PublicKey() []byte {
	return crypto.FromECDSAPub(&s.key.PublicKey)
}

func (s *LocalSigner) Sign(ctx context.Context, msg []byte) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	digest, sig, err := common.SignKeccak(s.key, msg)
	if err != nil {
		return nil, err
	}
	log.Trace(log.SignerMonitoring, "signed locally", "signer", s.addr, "digest", digest)
	return sig, nil
}

// DefaultRemoteMethod is the JSON-RPC method a remote signing service exposes.
const DefaultRemoteMethod = "signer_signKeccak"

// RemoteSigner delegates signing to an external JSON-RPC service (threshold signer, HSM gateway).
type RemoteSigner struct {
	client *rpc.Client
	method string
	addr   common.Address
}

// DialRemoteSigner connects to endpoint; addr is the governor the service signs for.
func DialRemoteSigner(ctx context.Context, endpoint string, addr common.Address) (*RemoteSigner, error) {
	client, err := rpc.DialContext(ctx, endpoint)
	if err != nil {
		return nil, fmt.Errorf("dial signer %s: %w", endpoint, err)
	}
	return NewRemoteSigner(client, DefaultRemoteMethod, addr), nil
}

func NewRemoteSigner(client *rpc.Client, method string, addr common.Address) *RemoteSigner {
	return &RemoteSigner{client: client, method: method, addr: addr}
}

func (s *RemoteSigner) Address() common.Address {
	return s.addr
}

func (s *RemoteSigner) Close() {
	s.client.Close()
}

// Sign sends (address, msg) and checks the returned signature recovers to the governor.
func (s *RemoteSigner) Sign(ctx context.Context, msg []byte) ([]byte, error) {
	var sig hexutil.Bytes
	if err := s.client.CallContext(ctx, &sig, s.method, s.addr, hexutil.Bytes(msg)); err != nil {
		return nil, fmt.Errorf("%s: %w", s.method, err)
	}
	if err := common.VerifyKeccakSignature(s.addr, msg, sig); err != nil {
		log.Warn(log.SignerMonitoring, "remote signature rejected", "signer", s.addr, "err", err)
		return nil, fmt.Errorf("%w: %v", bridgeerrors.ErrGSignerMismatch, err)
	}
	out := []byte(sig)
	if out[crypto.RecoveryIDOffset] < 27 {
		out[crypto.RecoveryIDOffset] += 27
	}
	return out, nil
}
