package types

import (
	"bytes"
	"encoding/json"
	"errors"
	"math"
	"testing"

	"github.com/colorfulnotion/anchorbridge/bridgeerrors"
	"github.com/colorfulnotion/anchorbridge/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResourceIDComposition(t *testing.T) {
	target := bytes.Repeat([]byte{0xaa}, 26)
	rid, err := NewResourceID(target, ChainTypeEVM, 0xcafe)
	require.NoError(t, err)

	b := rid.Bytes()
	require.Len(t, b, 32)
	assert.Equal(t, target, b[0:26])
	assert.Equal(t, []byte{0x01, 0x00}, b[26:28])
	assert.Equal(t, []byte{0x00, 0x00, 0xca, 0xfe}, b[28:32])

	decoded, err := ResourceIDFromBytes(b)
	require.NoError(t, err)
	assert.Equal(t, target, decoded.TargetSystem())
	assert.Equal(t, ChainTypeEVM, decoded.ChainType())
	assert.Equal(t, uint32(0xcafe), decoded.ChainID())
}

func TestResourceIDLeftPadsShortTarget(t *testing.T) {
	addr := common.HexToAddress("0x1111111111111111111111111111111111111111")
	rid := ResourceIDFromAddress(addr, EVMChain(31337))
	b := rid.Bytes()
	assert.Equal(t, make([]byte, 6), b[:6])
	assert.Equal(t, addr.Bytes(), b[6:26])
	assert.Equal(t, addr, rid.Address())
	assert.Equal(t, EVMChain(31337), rid.TypedChainID())
}

func TestResourceIDRejections(t *testing.T) {
	_, err := NewResourceID(make([]byte, 27), ChainTypeEVM, 1)
	assert.True(t, errors.Is(err, bridgeerrors.ErrCTargetSystemTooLong))

	_, err = ResourceIDFromBytes(make([]byte, 31))
	assert.True(t, errors.Is(err, bridgeerrors.ErrCLengthMismatch))
	_, err = ResourceIDFromBytes(make([]byte, 33))
	assert.True(t, errors.Is(err, bridgeerrors.ErrCLengthMismatch))

	raw := make([]byte, 32)
	raw[26], raw[27] = 0x09, 0x09
	_, err = ResourceIDFromBytes(raw)
	assert.True(t, errors.Is(err, bridgeerrors.ErrCUnknownChainType))
}

func TestResourceIDText(t *testing.T) {
	rid, err := NewResourceID([]byte{0x01, 0x02}, ChainTypeSubstrate, 2000)
	require.NoError(t, err)
	out, err := json.Marshal(map[string]ResourceID{"rid": rid})
	require.NoError(t, err)

	var back map[string]ResourceID
	require.NoError(t, json.Unmarshal(out, &back))
	assert.Equal(t, rid, back["rid"])
}

func TestTypedChainID(t *testing.T) {
	tc := NewTypedChainID(ChainTypeSubstrate, 1080)
	assert.Equal(t, uint64(0x0200)<<32|1080, tc.Uint64())
	back, err := TypedChainIDFromUint64(tc.Uint64())
	require.NoError(t, err)
	assert.Equal(t, tc, back)

	fromBytes, err := TypedChainIDFromBytes(tc.Bytes())
	require.NoError(t, err)
	assert.Equal(t, tc, fromBytes)

	_, err = TypedChainIDFromUint64(uint64(0x0777) << 32)
	assert.True(t, errors.Is(err, bridgeerrors.ErrCUnknownChainType))

	ct, err := ParseChainType("Cosmos")
	require.NoError(t, err)
	assert.Equal(t, ChainTypeCosmos, ct)
}

func TestEVMChainFromLedger(t *testing.T) {
	tc, err := EVMChainFromLedger(math.MaxUint32)
	require.NoError(t, err)
	assert.Equal(t, EVMChain(math.MaxUint32), tc)

	_, err = EVMChainFromLedger(1<<32 + 5)
	assert.True(t, errors.Is(err, bridgeerrors.ErrCFieldWidth))
}
