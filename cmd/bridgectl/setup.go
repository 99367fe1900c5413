package main

import (
	"context"
	"fmt"
	"os"

	"github.com/colorfulnotion/anchorbridge/anchor"
	"github.com/colorfulnotion/anchorbridge/bridge"
	"github.com/colorfulnotion/anchorbridge/bridgeside"
	"github.com/colorfulnotion/anchorbridge/common"
	"github.com/colorfulnotion/anchorbridge/config"
	"github.com/colorfulnotion/anchorbridge/ledger"
	"github.com/colorfulnotion/anchorbridge/ledger/simulated"
	log "github.com/colorfulnotion/anchorbridge/log"
	"github.com/colorfulnotion/anchorbridge/signer"
	"github.com/colorfulnotion/anchorbridge/storage"
	"github.com/colorfulnotion/anchorbridge/types"
)

type options struct {
	deployment      string
	simulated       bool
	adminKey        string
	governorKey     string
	remoteSigner    string
	governorAddress string
	storePath       string
}

// env is a connected deployment.
type env struct {
	deployment *config.Deployment
	bridge     *bridge.Bridge
	sides      map[string]*bridgeside.BridgeSide
	anchors    map[string]*anchor.Anchor
	closers    []func()
}

func (e *env) Close() {
	for i := len(e.closers) - 1; i >= 0; i-- {
		e.closers[i]()
	}
}

// resolve returns the anchor named by a "chain:size" reference and the side governing it.
func (e *env) resolve(ref string) (*anchor.Anchor, *bridgeside.BridgeSide, error) {
	r, err := e.deployment.Resolve(ref)
	if err != nil {
		return nil, nil, err
	}
	return e.anchors[r.String()], e.sides[r.Chain.Name], nil
}

func keyOrEnv(flag, name string) string {
	if flag != "" {
		return flag
	}
	return os.Getenv(name)
}

func (o options) governor(ctx context.Context) (signer.Signer, func(), error) {
	if o.remoteSigner != "" {
		s, err := signer.DialRemoteSigner(ctx, o.remoteSigner, common.HexToAddress(o.governorAddress))
		if err != nil {
			return nil, nil, err
		}
		return s, s.Close, nil
	}
	key := keyOrEnv(o.governorKey, config.EnvGovernorKey)
	if key == "" && o.simulated {
		_, key = common.GetEVMDevAccount(1)
	}
	if key == "" {
		return nil, nil, fmt.Errorf("no governor key: pass --governor-key or set %s", config.EnvGovernorKey)
	}
	s, err := signer.NewLocalSignerFromHex(key)
	return s, func() {}, err
}

func setup(ctx context.Context, o options) (*env, error) {
	d, err := config.ReadDeployment(o.deployment)
	if err != nil {
		return nil, fmt.Errorf("deployment %s: %w", o.deployment, err)
	}
	e := &env{
		deployment: d,
		sides:      make(map[string]*bridgeside.BridgeSide),
		anchors:    make(map[string]*anchor.Anchor),
	}
	ok := false
	defer func() {
		if !ok {
			e.Close()
		}
	}()

	gov, closeGov, err := o.governor(ctx)
	if err != nil {
		return nil, err
	}
	e.closers = append(e.closers, closeGov)

	var store *storage.MirrorStore
	if o.storePath != "" {
		if store, err = storage.OpenMirrorStore(o.storePath); err != nil {
			return nil, err
		}
		e.closers = append(e.closers, func() { store.Close() })
	}

	adminKey := keyOrEnv(o.adminKey, config.EnvAdminKey)
	if adminKey == "" && !o.simulated {
		return nil, fmt.Errorf("no admin key: pass --admin-key or set %s", config.EnvAdminKey)
	}

	for _, c := range d.Chains {
		typed, err := c.TypedChainID()
		if err != nil {
			return nil, err
		}
		var (
			l          ledger.Ledger
			governance = c.Governance
			addrs      = make(map[string]common.Address)
		)
		if o.simulated {
			if typed.Type != types.ChainTypeEVM {
				return nil, fmt.Errorf("chain %s: only EVM chains can be simulated", c.Name)
			}
			chain := simulated.NewChain(uint64(c.ChainID))
			governance = chain.DeployGovernance(gov.Address())
			for _, a := range c.Anchors {
				addr, err := chain.DeployAnchor(simulated.AnchorConfig{Levels: a.TreeHeight, MaxEdges: a.MaxEdges})
				if err != nil {
					return nil, fmt.Errorf("%s:%s: %w", c.Name, a.Size, err)
				}
				addrs[a.Size] = addr
			}
			admin, _ := common.GetEVMDevAccount(0)
			l = chain.Ledger(admin)
		} else {
			evm, err := ledger.DialEVM(ctx, c.RPCURL, adminKey, d.PollInterval())
			if err != nil {
				return nil, fmt.Errorf("chain %s: %w", c.Name, err)
			}
			e.closers = append(e.closers, evm.Close)
			for _, a := range c.Anchors {
				addrs[a.Size] = a.Address
			}
			l = evm
		}

		side, err := bridgeside.New(ctx, bridgeside.Options{Governance: governance, Ledger: l, Signer: gov, Handler: c.Handler})
		if err != nil {
			return nil, err
		}
		if side.TypedChainID() != typed {
			return nil, fmt.Errorf("chain %s is configured as %s, ledger reports %s", c.Name, typed, side.TypedChainID())
		}
		e.sides[c.Name] = side
		for _, a := range c.Anchors {
			w, err := anchor.New(ctx, l, anchor.Config{
				Address:    addrs[a.Size],
				Size:       a.Size,
				TreeHeight: a.TreeHeight,
				MaxEdges:   a.MaxEdges,
				Store:      store,
			})
			if err != nil {
				return nil, fmt.Errorf("%s:%s: %w", c.Name, a.Size, err)
			}
			e.anchors[c.Name+":"+a.Size] = w
		}
	}

	groups, err := d.ResolvedGroups()
	if err != nil {
		return nil, err
	}
	grouped := make(map[string]bool)
	var anchorGroups [][]*anchor.Anchor
	for _, g := range groups {
		var members []*anchor.Anchor
		for _, r := range g {
			members = append(members, e.anchors[r.String()])
			grouped[r.String()] = true
		}
		anchorGroups = append(anchorGroups, members)
	}
	// ungrouped anchors are still reachable, just never linked
	for ref, a := range e.anchors {
		if !grouped[ref] {
			anchorGroups = append(anchorGroups, []*anchor.Anchor{a})
		}
	}
	sides := make([]*bridgeside.BridgeSide, 0, len(e.sides))
	for _, s := range e.sides {
		sides = append(sides, s)
	}
	if e.bridge, err = bridge.New(bridge.Options{Sides: sides, Groups: anchorGroups}); err != nil {
		return nil, err
	}
	if o.simulated {
		// a fresh simulated deployment is linked right away so every command can run on its own
		if err := e.bridge.ConnectAll(ctx); err != nil {
			return nil, err
		}
	}
	log.Info(log.BridgeMonitoring, "deployment loaded", "id", d.ID, "chains", len(d.Chains), "anchors", len(e.anchors), "simulated", o.simulated)
	ok = true
	return e, nil
}
