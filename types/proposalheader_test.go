package types

import (
	"bytes"
	"errors"
	"math"
	"testing"

	"github.com/colorfulnotion/anchorbridge/bridgeerrors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProposalHeaderLayout(t *testing.T) {
	rid, err := NewResourceID(bytes.Repeat([]byte{0xaa}, 26), ChainTypeEVM, 0xcafe)
	require.NoError(t, err)
	h := NewProposalHeader(rid, FunctionSignature{0xde, 0xad, 0xbe, 0xef}, 0xfeed)

	b := h.Bytes()
	require.Len(t, b, ProposalHeaderSize)
	assert.Equal(t, rid.Bytes(), b[:32])
	assert.Equal(t, []byte{0xde, 0xad, 0xbe, 0xef}, b[32:36])
	assert.Equal(t, []byte{0x00, 0x00, 0xfe, 0xed}, b[36:40])

	back, err := DecodeProposalHeader(b)
	require.NoError(t, err)
	assert.Equal(t, h, back)
}

func TestProposalHeaderNonceBoundaries(t *testing.T) {
	rid, err := NewResourceID(nil, ChainTypeInk, 0)
	require.NoError(t, err)
	for _, n := range []Nonce{0, 1, math.MaxUint32} {
		h := NewProposalHeader(rid, FunctionSignature{}, n)
		back, err := DecodeProposalHeader(h.Bytes())
		require.NoError(t, err)
		assert.Equal(t, n, back.Nonce)
	}
}

func TestProposalHeaderLengthRejection(t *testing.T) {
	for _, n := range []int{0, 39, 41, 104} {
		_, err := DecodeProposalHeader(make([]byte, n))
		assert.True(t, errors.Is(err, bridgeerrors.ErrCLengthMismatch), "len %d", n)
	}
}

func TestFunctionSignatureFromABI(t *testing.T) {
	// transfer(address,uint256) is the well known ERC-20 selector
	assert.Equal(t, "0xa9059cbb", FunctionSignatureFromABI("transfer(address,uint256)").String())
}

func TestFunctionSignatureFromBytes(t *testing.T) {
	fs, err := FunctionSignatureFromBytes([]byte{0xa9, 0x05, 0x9c, 0xbb})
	require.NoError(t, err)
	assert.Equal(t, FunctionSignatureFromABI("transfer(address,uint256)"), fs)

	_, err = FunctionSignatureFromBytes([]byte{0xa9, 0x05})
	assert.True(t, errors.Is(err, bridgeerrors.ErrCLengthMismatch))

	var text FunctionSignature
	require.NoError(t, text.UnmarshalText([]byte("0xa9059cbb")))
	assert.Equal(t, fs, text)
}
