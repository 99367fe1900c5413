package simulated

import (
	"github.com/colorfulnotion/anchorbridge/common"
	"github.com/colorfulnotion/anchorbridge/contracts"
	"github.com/colorfulnotion/anchorbridge/proposals"
	"github.com/colorfulnotion/anchorbridge/types"
	"github.com/ethereum/go-ethereum/accounts/abi"
)

// governance verifies governor signatures, enforces per-resource nonces and relays proposals to their targets.
type governance struct {
	governor     common.Address
	refreshNonce uint32
	nonces       map[types.ResourceID]uint32
	handlers     map[types.ResourceID]common.Address
}

// DeployGovernance installs a governance contract controlled by governor.
func (c *Chain) DeployGovernance(governor common.Address) common.Address {
	return c.deploy("governance", &governance{
		governor: governor,
		nonces:   make(map[types.ResourceID]uint32),
		handlers: make(map[types.ResourceID]common.Address),
	})
}

func (g *governance) abi() abi.ABI {
	return contracts.GovernanceABI
}

func (g *governance) invoke(e *env, method string, args []interface{}) ([]interface{}, error) {
	switch method {
	case "resourceNonce":
		return []interface{}{g.nonces[types.ResourceID(args[0].([32]byte))]}, nil
	case "resourceHandler":
		return []interface{}{g.handlers[types.ResourceID(args[0].([32]byte))]}, nil
	case "governor":
		return []interface{}{g.governor}, nil
	case "refreshNonce":
		return []interface{}{g.refreshNonce}, nil
	case "executeProposalWithSignature":
		return nil, g.execute(e, args[0].([]byte), args[1].([]byte))
	case "refreshKey":
		return nil, g.refresh(e, args[0].([]byte), args[1].([]byte))
	}
	return nil, revertf("governance: unsupported method %s", method)
}

func (g *governance) execute(e *env, data, sig []byte) error {
	if err := common.VerifyKeccakSignature(g.governor, data, sig); err != nil {
		return revert(contracts.RevertInvalidSignature)
	}
	p, err := proposals.DecodeHeadered(data)
	if err != nil {
		return revertf("%s: %v", contracts.RevertUnknownProposal, err)
	}
	h := p.Header()
	rid := h.ResourceID
	if h.Nonce != types.Nonce(g.nonces[rid]).Next() {
		return revert(contracts.RevertInvalidNonce)
	}
	if uint64(rid.ChainID()) != e.chain.chainID {
		return revertf("%s: resource on chain %d", contracts.RevertUnknownTarget, rid.ChainID())
	}

	switch prop := p.(type) {
	case proposals.ResourceIDUpdateProposal:
		if prop.HandlerAddress == (common.Address{}) {
			return revert(contracts.RevertHandlerNotSet)
		}
		g.handlers[prop.NewResourceID] = prop.HandlerAddress
	default:
		handler, ok := g.handlers[rid]
		if !ok {
			return revert(contracts.RevertResourceNotSet)
		}
		target, ok := e.chain.contracts[rid.Address()].(governed)
		if !ok {
			return revertf("%s: %s", contracts.RevertUnknownTarget, rid.Address().Hex())
		}
		if err := target.applyProposal(e.at(rid.Address()), handler, p); err != nil {
			return err
		}
	}

	g.nonces[rid] = uint32(h.Nonce)
	topics, payload, err := contracts.EncodeEvent(contracts.GovernanceABI, "ProposalExecuted",
		[]common.Hash{rid.Hash()}, [4]byte(h.FunctionSignature), uint32(h.Nonce))
	if err != nil {
		return err
	}
	e.emit(topics, payload)
	return nil
}

func (g *governance) refresh(e *env, data, sig []byte) error {
	if err := common.VerifyKeccakSignature(g.governor, data, sig); err != nil {
		return revert(contracts.RevertInvalidSignature)
	}
	p, err := proposals.DecodeRefreshProposal(data)
	if err != nil {
		return revertf("%s: %v", contracts.RevertInvalidRefreshKey, err)
	}
	if p.Nonce != types.Nonce(g.refreshNonce).Next() {
		return revert(contracts.RevertInvalidNonce)
	}
	next, err := p.GovernorAddress()
	if err != nil {
		return revertf("%s: %v", contracts.RevertInvalidRefreshKey, err)
	}
	g.governor = next
	g.refreshNonce = uint32(p.Nonce)
	topics, payload, err := contracts.EncodeEvent(contracts.GovernanceABI, "GovernorRefreshed",
		[]common.Hash{common.BytesToHash(next.Bytes())}, uint32(p.Nonce))
	if err != nil {
		return err
	}
	e.emit(topics, payload)
	return nil
}
