// Package prover defines the proving service consumed by anchors and a deterministic development prover.
package prover

import (
	"context"
	"fmt"

	"github.com/colorfulnotion/anchorbridge/bridgeerrors"
	"github.com/colorfulnotion/anchorbridge/common"
	"github.com/colorfulnotion/anchorbridge/merkle"
	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
)

// CircuitID names the withdrawal circuit for a tree height and root-set size.
func CircuitID(treeHeight int, maxEdges uint8) string {
	return fmt.Sprintf("anchor_withdraw_h%d_e%d", treeHeight, int(maxEdges)+1)
}

// PublicInputs is the public-input vector in verifier order: roots first, then
// nullifier, recipient, token and typed chain id.
type PublicInputs struct {
	Roots         []common.Hash
	NullifierHash common.Hash
	Recipient     common.Address
	Token         common.Address
	TypedChainID  uint64
}

// Elements maps every input onto the bn254 scalar field.
func (p PublicInputs) Elements() []fr.Element {
	out := make([]fr.Element, 0, len(p.Roots)+4)
	for _, r := range p.Roots {
		out = append(out, toElement(r.Bytes()))
	}
	out = append(out,
		toElement(p.NullifierHash.Bytes()),
		toElement(p.Recipient.Bytes()),
		toElement(p.Token.Bytes()),
	)
	var chain fr.Element
	chain.SetUint64(p.TypedChainID)
	return append(out, chain)
}

// Encode concatenates the canonical 32-byte big-endian form of each element.
func (p PublicInputs) Encode() []byte {
	elems := p.Elements()
	out := make([]byte, 0, len(elems)*fr.Bytes)
	for i := range elems {
		b := elems[i].Bytes()
		out = append(out, b[:]...)
	}
	return out
}

func toElement(b []byte) fr.Element {
	var e fr.Element
	e.SetBytes(b)
	return e
}

// Witness is the private and public data a withdrawal proof is built from.
type Witness struct {
	Commitment common.Hash
	Path       merkle.Witness
	TreeHeight int
	Inputs     PublicInputs
}

// Validate checks the witness is consistent before it reaches a prover.
func (w Witness) Validate() error {
	if len(w.Path.Path) != w.TreeHeight {
		return fmt.Errorf("path of %d levels for a height %d tree: %w", len(w.Path.Path), w.TreeHeight, bridgeerrors.ErrPWitnessMalformed)
	}
	if len(w.Inputs.Roots) == 0 {
		return fmt.Errorf("no roots: %w", bridgeerrors.ErrPWitnessMalformed)
	}
	// the commitment must hash up to the local root
	if got := w.Path.ComputeRoot(w.Commitment); got != w.Inputs.Roots[0] {
		return fmt.Errorf("path computes %s, local root is %s: %w", common.Str(got), common.Str(w.Inputs.Roots[0]), bridgeerrors.ErrPWitnessMalformed)
	}
	return nil
}

type Proof struct {
	CircuitID     string
	Bytes         []byte
	PublicSignals []fr.Element
}

// Prover turns a witness into a proof. Errors are witness failures.
type Prover interface {
	Prove(ctx context.Context, circuitID string, w Witness) (*Proof, error)
}

// DevProver produces keccak256(public inputs) as the proof; the simulated anchor verifies exactly that.
type DevProver struct{}

func (DevProver) Prove(ctx context.Context, circuitID string, w Witness) (*Proof, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := w.Validate(); err != nil {
		return nil, err
	}
	return &Proof{
		CircuitID:     circuitID,
		Bytes:         DevProof(w.Inputs),
		PublicSignals: w.Inputs.Elements(),
	}, nil
}

func DevProof(inputs PublicInputs) []byte {
	return common.Keccak256(inputs.Encode()).Bytes()
}
