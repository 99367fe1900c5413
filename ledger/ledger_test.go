package ledger

import (
	"errors"
	"fmt"
	"testing"

	"github.com/colorfulnotion/anchorbridge/bridgeerrors"
	"github.com/colorfulnotion/anchorbridge/common"
	"github.com/colorfulnotion/anchorbridge/contracts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type dataError struct {
	msg  string
	data interface{}
}

func (e dataError) Error() string          { return e.msg }
func (e dataError) ErrorData() interface{} { return e.data }

// Error(string) selector followed by the ABI-encoded reason "Invalid nonce".
const invalidNonceRevert = "0x08c379a0" +
	"0000000000000000000000000000000000000000000000000000000000000020" +
	"000000000000000000000000000000000000000000000000000000000000000d" +
	"496e76616c6964206e6f6e636500000000000000000000000000000000000000"

func TestRevertErrorClassification(t *testing.T) {
	err := fmt.Errorf("execute: %w", &RevertError{Reason: contracts.RevertInvalidNonce})
	assert.True(t, errors.Is(err, bridgeerrors.ErrGNonceMismatch))
	assert.True(t, errors.Is(err, bridgeerrors.ErrGProposalRejected))
	assert.False(t, errors.Is(err, bridgeerrors.ErrGSignerMismatch))

	re, ok := IsRevert(err)
	require.True(t, ok)
	assert.Equal(t, "execution reverted: Invalid nonce", re.Error())
}

func TestAsRevert(t *testing.T) {
	tx := common.HexToHash("0x01")
	err := asRevert(dataError{msg: "execution reverted", data: invalidNonceRevert}, tx)
	re, ok := IsRevert(err)
	require.True(t, ok)
	assert.Equal(t, contracts.RevertInvalidNonce, re.Reason)
	assert.Equal(t, tx, re.TxHash)

	err = asRevert(errors.New("execution reverted: Cannot find your merkle root"), common.Hash{})
	re, ok = IsRevert(err)
	require.True(t, ok)
	assert.Equal(t, contracts.RevertUnknownRoot, re.Reason)

	transport := errors.New("connection refused")
	assert.Equal(t, transport, asRevert(transport, common.Hash{}))
}
