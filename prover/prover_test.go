package prover

import (
	"context"
	"errors"
	"testing"

	"github.com/colorfulnotion/anchorbridge/bridgeerrors"
	"github.com/colorfulnotion/anchorbridge/common"
	"github.com/colorfulnotion/anchorbridge/merkle"
	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildWitness(t *testing.T) Witness {
	t.Helper()
	tree, err := merkle.NewMerkleTree(4)
	require.NoError(t, err)
	leaf := common.HexToHash("0xabcd")
	_, root, err := tree.Append(leaf)
	require.NoError(t, err)
	path, err := tree.Witness(0)
	require.NoError(t, err)
	return Witness{
		Commitment: leaf,
		Path:       path,
		TreeHeight: 4,
		Inputs: PublicInputs{
			Roots:         []common.Hash{root, common.HexToHash("0x01")},
			NullifierHash: common.HexToHash("0x02"),
			Recipient:     common.HexToAddress("0x03"),
			TypedChainID:  0x0100_0000_7a69,
		},
	}
}

func TestDevProverDeterministic(t *testing.T) {
	w := buildWitness(t)
	p1, err := DevProver{}.Prove(context.Background(), CircuitID(4, 1), w)
	require.NoError(t, err)
	p2, err := DevProver{}.Prove(context.Background(), CircuitID(4, 1), w)
	require.NoError(t, err)
	assert.Equal(t, p1.Bytes, p2.Bytes)
	assert.Equal(t, DevProof(w.Inputs), p1.Bytes)
	assert.Len(t, p1.PublicSignals, 2+4)
	assert.Equal(t, "anchor_withdraw_h4_e2", p1.CircuitID)
}

func TestWitnessMalformed(t *testing.T) {
	w := buildWitness(t)
	w.Inputs.Roots[0] = common.HexToHash("0xff")
	_, err := DevProver{}.Prove(context.Background(), "c", w)
	assert.True(t, errors.Is(err, bridgeerrors.ErrPWitnessMalformed))

	w = buildWitness(t)
	w.TreeHeight = 5
	_, err = DevProver{}.Prove(context.Background(), "c", w)
	assert.True(t, errors.Is(err, bridgeerrors.ErrPWitnessMalformed))
}

func TestElementsReduceModulus(t *testing.T) {
	ones := common.BytesToHash([]byte{
		0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff,
		0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff,
	})
	in := PublicInputs{Roots: []common.Hash{ones}}
	elems := in.Elements()
	var want fr.Element
	want.SetBytes(ones.Bytes())
	assert.True(t, elems[0].Equal(&want))
	assert.Len(t, in.Encode(), len(elems)*fr.Bytes)
}
