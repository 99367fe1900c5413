package common

import (
	"testing"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeccak256MatchesGeth(t *testing.T) {
	data := []byte("updateEdge(bytes32,bytes32)")
	assert.Equal(t, crypto.Keccak256Hash(data), Keccak256(data))
	assert.Equal(t, crypto.Keccak256Hash([]byte("ab")), Keccak256([]byte("a"), []byte("b")))
}

func TestBigEndianHelpers(t *testing.T) {
	assert.Equal(t, []byte{0x00, 0x00, 0xfe, 0xed}, Uint32ToBytes(0xfeed))
	assert.Equal(t, []byte{0x01, 0xf4}, Uint16ToBytes(500))

	v, err := BytesToUint32([]byte{0xff, 0xff, 0xff, 0xff})
	require.NoError(t, err)
	assert.Equal(t, uint32(0xffffffff), v)

	_, err = BytesToUint32([]byte{0x01})
	assert.Error(t, err)
	_, err = BytesToUint64(make([]byte, 9))
	assert.Error(t, err)
}

func TestLeftPadHex(t *testing.T) {
	out, err := LeftPadHex("0xcafe", 4)
	require.NoError(t, err)
	assert.Equal(t, []byte{0, 0, 0xca, 0xfe}, out)

	out, err = LeftPadHex("abc", 2)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x0a, 0xbc}, out)

	_, err = LeftPadHex("0x010203", 2)
	assert.Error(t, err)

	_, err = LeftPadHex("zz", 2)
	assert.Error(t, err)
}

func TestTrimRightZeros(t *testing.T) {
	field := make([]byte, 32)
	copy(field, "WETH")
	assert.Equal(t, "WETH", TrimRightZeros(field))
	assert.Equal(t, "", TrimRightZeros(make([]byte, 4)))
}
