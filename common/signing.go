package common

import (
	"crypto/ecdsa"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/crypto"
)

// SignKeccak hashes data with Keccak256 and signs the digest with the given key.
// It returns the digest and the 65-byte [R || S || V] signature (V in {27, 28}).
func SignKeccak(privateKey *ecdsa.PrivateKey, data []byte) (Hash, []byte, error) {
	digest := Keccak256(data)
	signature, err := crypto.Sign(digest.Bytes(), privateKey)
	if err != nil {
		return Hash{}, nil, fmt.Errorf("error signing the hash: %v", err)
	}
	signature[crypto.RecoveryIDOffset] += 27
	return digest, signature, nil
}

// SignKeccakHex is SignKeccak over a hex private key.
func SignKeccakHex(privateKeyHex string, data []byte) (Hash, []byte, error) {
	privateKey, err := crypto.HexToECDSA(privateKeyHex)
	if err != nil {
		return Hash{}, nil, fmt.Errorf("error converting private key: %v", err)
	}
	return SignKeccak(privateKey, data)
}

// RecoverKeccakSigner recovers the address that produced signature over Keccak256(data).
// V may be either {0, 1} or {27, 28}.
func RecoverKeccakSigner(data []byte, signature []byte) (Address, error) {
	if len(signature) != crypto.SignatureLength {
		return Address{}, fmt.Errorf("signature must be %d bytes, got %d", crypto.SignatureLength, len(signature))
	}
	sig := make([]byte, len(signature))
	copy(sig, signature)
	if sig[crypto.RecoveryIDOffset] >= 27 {
		sig[crypto.RecoveryIDOffset] -= 27
	}
	pub, err := crypto.SigToPub(Keccak256(data).Bytes(), sig)
	if err != nil {
		return Address{}, errors.New("error recovering public key from signature")
	}
	return crypto.PubkeyToAddress(*pub), nil
}

// VerifyKeccakSignature checks that signature over Keccak256(data) was produced by expected.
func VerifyKeccakSignature(expected Address, data []byte, signature []byte) error {
	recovered, err := RecoverKeccakSigner(data, signature)
	if err != nil {
		return err
	}
	if recovered != expected {
		return fmt.Errorf("signer mismatch: recovered %s, expected %s", recovered.Hex(), expected.Hex())
	}
	return nil
}
