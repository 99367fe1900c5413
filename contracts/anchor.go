package contracts

import (
	"fmt"
	"math/big"

	"github.com/colorfulnotion/anchorbridge/common"
	"github.com/ethereum/go-ethereum/accounts/abi"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
)

const anchorABIJSON = `[
  {"type":"function","name":"deposit","stateMutability":"payable","inputs":[{"name":"commitment","type":"bytes32"}],"outputs":[]},
  {"type":"function","name":"wrapAndDeposit","stateMutability":"payable","inputs":[{"name":"token","type":"address"},{"name":"commitment","type":"bytes32"}],"outputs":[]},
  {"type":"function","name":"withdraw","stateMutability":"nonpayable","inputs":[{"name":"proof","type":"bytes"},{"name":"roots","type":"bytes32[]"},{"name":"nullifierHash","type":"bytes32"},{"name":"recipient","type":"address"}],"outputs":[]},
  {"type":"function","name":"withdrawAndUnwrap","stateMutability":"nonpayable","inputs":[{"name":"proof","type":"bytes"},{"name":"roots","type":"bytes32[]"},{"name":"nullifierHash","type":"bytes32"},{"name":"recipient","type":"address"},{"name":"token","type":"address"}],"outputs":[]},
  {"type":"function","name":"isKnownRoot","stateMutability":"view","inputs":[{"name":"root","type":"bytes32"}],"outputs":[{"name":"","type":"bool"}]},
  {"type":"function","name":"getLastRoot","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"bytes32"}]},
  {"type":"function","name":"getLatestNeighborRoots","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"bytes32[]"}]},
  {"type":"function","name":"maxEdges","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint8"}]},
  {"type":"function","name":"levels","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint32"}]},
  {"type":"function","name":"nextIndex","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint32"}]},
  {"type":"function","name":"isSpent","stateMutability":"view","inputs":[{"name":"nullifierHash","type":"bytes32"}],"outputs":[{"name":"","type":"bool"}]},
  {"type":"function","name":"handler","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"address"}]},
  {"type":"function","name":"getFee","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint16"}]},
  {"type":"function","name":"isValidToken","stateMutability":"view","inputs":[{"name":"token","type":"address"}],"outputs":[{"name":"","type":"bool"}]},
  {"type":"event","name":"Insertion","anonymous":false,"inputs":[{"name":"commitment","type":"bytes32","indexed":true},{"name":"leafIndex","type":"uint32","indexed":false},{"name":"timestamp","type":"uint256","indexed":false}]},
  {"type":"event","name":"EdgeUpdated","anonymous":false,"inputs":[{"name":"srcResourceId","type":"bytes32","indexed":true},{"name":"root","type":"bytes32","indexed":false},{"name":"edgeIndex","type":"uint8","indexed":false}]},
  {"type":"event","name":"Withdrawal","anonymous":false,"inputs":[{"name":"recipient","type":"address","indexed":true},{"name":"nullifierHash","type":"bytes32","indexed":false}]}
]`

// AnchorABI is the anchor (commitment tree + neighbour edges) contract.
var AnchorABI = mustParse(anchorABIJSON)

// InsertionTopic is topic[0] of every Insertion log.
var InsertionTopic = AnchorABI.Events["Insertion"].ID

// Insertion is a decoded deposit event.
type Insertion struct {
	Commitment  common.Hash
	LeafIndex   uint32
	Timestamp   *big.Int
	BlockNumber uint64
	LogIndex    uint
}

// DecodeInsertion parses an Insertion log; topics[1] carries the commitment.
func DecodeInsertion(topics []common.Hash, data []byte) (Insertion, error) {
	if len(topics) != 2 || topics[0] != InsertionTopic {
		return Insertion{}, fmt.Errorf("not an Insertion log (%d topics)", len(topics))
	}
	vals, err := AnchorABI.Unpack("Insertion", data)
	if err != nil {
		return Insertion{}, fmt.Errorf("unpack Insertion: %w", err)
	}
	return Insertion{
		Commitment: topics[1],
		LeafIndex:  vals[0].(uint32),
		Timestamp:  vals[1].(*big.Int),
	}, nil
}

// EncodeInsertion builds the topics and data of an Insertion log.
func EncodeInsertion(commitment common.Hash, leafIndex uint32, timestamp uint64) ([]common.Hash, []byte, error) {
	data, err := AnchorABI.Events["Insertion"].Inputs.NonIndexed().Pack(leafIndex, new(big.Int).SetUint64(timestamp))
	if err != nil {
		return nil, nil, err
	}
	return []common.Hash{InsertionTopic, commitment}, data, nil
}

// EncodeEvent packs the non-indexed inputs of event name.
func EncodeEvent(a abi.ABI, name string, indexed []common.Hash, args ...interface{}) ([]common.Hash, []byte, error) {
	ev, ok := a.Events[name]
	if !ok {
		return nil, nil, fmt.Errorf("unknown event %s", name)
	}
	data, err := ev.Inputs.NonIndexed().Pack(args...)
	if err != nil {
		return nil, nil, err
	}
	return append([]common.Hash{ev.ID}, indexed...), data, nil
}

// InsertionFromLog is DecodeInsertion over a go-ethereum log.
func InsertionFromLog(l ethtypes.Log) (Insertion, error) {
	ins, err := DecodeInsertion(l.Topics, l.Data)
	if err != nil {
		return Insertion{}, err
	}
	ins.BlockNumber = l.BlockNumber
	ins.LogIndex = l.Index
	return ins, nil
}

func PackDeposit(commitment common.Hash) ([]byte, error) {
	return AnchorABI.Pack("deposit", commitment)
}

func PackWrapAndDeposit(token common.Address, commitment common.Hash) ([]byte, error) {
	return AnchorABI.Pack("wrapAndDeposit", token, commitment)
}

func PackWithdraw(proof []byte, roots []common.Hash, nullifier common.Hash, recipient common.Address) ([]byte, error) {
	return AnchorABI.Pack("withdraw", proof, toBytes32s(roots), nullifier, recipient)
}

func PackWithdrawAndUnwrap(proof []byte, roots []common.Hash, nullifier common.Hash, recipient, token common.Address) ([]byte, error) {
	return AnchorABI.Pack("withdrawAndUnwrap", proof, toBytes32s(roots), nullifier, recipient, token)
}

func PackIsKnownRoot(root common.Hash) ([]byte, error) {
	return AnchorABI.Pack("isKnownRoot", root)
}

func UnpackBool(a abi.ABI, method string, out []byte) (bool, error) {
	vals, err := a.Unpack(method, out)
	if err != nil {
		return false, err
	}
	return vals[0].(bool), nil
}

func UnpackHash(a abi.ABI, method string, out []byte) (common.Hash, error) {
	vals, err := a.Unpack(method, out)
	if err != nil {
		return common.Hash{}, err
	}
	return common.Hash(vals[0].([32]byte)), nil
}

func UnpackHashes(a abi.ABI, method string, out []byte) ([]common.Hash, error) {
	vals, err := a.Unpack(method, out)
	if err != nil {
		return nil, err
	}
	raw := vals[0].([][32]byte)
	hashes := make([]common.Hash, len(raw))
	for i, r := range raw {
		hashes[i] = common.Hash(r)
	}
	return hashes, nil
}

func UnpackUint8(a abi.ABI, method string, out []byte) (uint8, error) {
	vals, err := a.Unpack(method, out)
	if err != nil {
		return 0, err
	}
	return vals[0].(uint8), nil
}

func UnpackUint32(a abi.ABI, method string, out []byte) (uint32, error) {
	vals, err := a.Unpack(method, out)
	if err != nil {
		return 0, err
	}
	return vals[0].(uint32), nil
}

func toBytes32s(hashes []common.Hash) [][32]byte {
	out := make([][32]byte, len(hashes))
	for i, h := range hashes {
		out[i] = h
	}
	return out
}
