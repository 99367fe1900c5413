// Package contracts holds the ABIs of the governance and anchor contracts and typed calldata helpers.
package contracts

import (
	"fmt"
	"strings"

	"github.com/colorfulnotion/anchorbridge/common"
	"github.com/ethereum/go-ethereum/accounts/abi"
)

const governanceABIJSON = `[
  {"type":"function","name":"resourceNonce","stateMutability":"view","inputs":[{"name":"resourceId","type":"bytes32"}],"outputs":[{"name":"","type":"uint32"}]},
  {"type":"function","name":"executeProposalWithSignature","stateMutability":"nonpayable","inputs":[{"name":"data","type":"bytes"},{"name":"sig","type":"bytes"}],"outputs":[]},
  {"type":"function","name":"refreshKey","stateMutability":"nonpayable","inputs":[{"name":"data","type":"bytes"},{"name":"sig","type":"bytes"}],"outputs":[]},
  {"type":"function","name":"governor","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"address"}]},
  {"type":"function","name":"refreshNonce","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint32"}]},
  {"type":"function","name":"resourceHandler","stateMutability":"view","inputs":[{"name":"resourceId","type":"bytes32"}],"outputs":[{"name":"","type":"address"}]},
  {"type":"event","name":"ProposalExecuted","anonymous":false,"inputs":[{"name":"resourceId","type":"bytes32","indexed":true},{"name":"functionSig","type":"bytes4","indexed":false},{"name":"nonce","type":"uint32","indexed":false}]},
  {"type":"event","name":"GovernorRefreshed","anonymous":false,"inputs":[{"name":"governor","type":"address","indexed":true},{"name":"nonce","type":"uint32","indexed":false}]}
]`

// GovernanceABI is the signature-bridge governance contract.
var GovernanceABI = mustParse(governanceABIJSON)

// Revert reasons shared by the governance contract and its clients.
const (
	RevertInvalidNonce       = "Invalid nonce"
	RevertInvalidSignature   = "Invalid signature"
	RevertResourceNotSet     = "Resource not registered"
	RevertHandlerNotSet      = "Handler not set"
	RevertUnknownProposal    = "Unknown proposal"
	RevertUnknownTarget      = "Unknown target"
	RevertInvalidRefreshKey  = "Invalid refresh key"
	RevertOnlyHandler        = "Sender is not the handler"
	RevertUnknownRoot        = "Cannot find your merkle root"
	RevertNullifierSpent     = "The note has been already spent"
	RevertInvalidProof       = "Invalid withdraw proof"
	RevertInvalidToken       = "Unwrapping / wrapping with invalid token"
	RevertTooManyEdges       = "Edge list is full"
	RevertInvalidRootsLength = "Incorrect roots length"
	RevertTreeFull           = "Merkle tree is full"
)

func mustParse(def string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(def))
	if err != nil {
		panic(fmt.Sprintf("contracts: bad ABI: %v", err))
	}
	return parsed
}

func PackResourceNonce(rid common.Hash) ([]byte, error) {
	return GovernanceABI.Pack("resourceNonce", rid)
}

func UnpackResourceNonce(out []byte) (uint32, error) {
	vals, err := GovernanceABI.Unpack("resourceNonce", out)
	if err != nil {
		return 0, err
	}
	return vals[0].(uint32), nil
}

func PackExecuteProposalWithSignature(data, sig []byte) ([]byte, error) {
	return GovernanceABI.Pack("executeProposalWithSignature", data, sig)
}

func PackRefreshKey(data, sig []byte) ([]byte, error) {
	return GovernanceABI.Pack("refreshKey", data, sig)
}

func PackGovernor() ([]byte, error) {
	return GovernanceABI.Pack("governor")
}

func PackRefreshNonce() ([]byte, error) {
	return GovernanceABI.Pack("refreshNonce")
}

func UnpackRefreshNonce(out []byte) (uint32, error) {
	vals, err := GovernanceABI.Unpack("refreshNonce", out)
	if err != nil {
		return 0, err
	}
	return vals[0].(uint32), nil
}

func PackResourceHandler(rid common.Hash) ([]byte, error) {
	return GovernanceABI.Pack("resourceHandler", rid)
}

// UnpackAddress decodes a single address return value of method on a.
func UnpackAddress(a abi.ABI, method string, out []byte) (common.Address, error) {
	vals, err := a.Unpack(method, out)
	if err != nil {
		return common.Address{}, err
	}
	return vals[0].(common.Address), nil
}
