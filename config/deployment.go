// Package config loads bridge deployments: the chains, their contracts and how anchors are linked.
package config

import (
	"embed"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/colorfulnotion/anchorbridge/common"
	"github.com/colorfulnotion/anchorbridge/types"
)

//go:embed *.json
var configFS embed.FS

var deploymentFile = map[string]string{
	"localnet": "localnet.json", // three anvil chains, 5001..5003, one linkage group
}

// Environment variables consulted by bridgectl for secrets.
const (
	EnvAdminKey    = "BRIDGE_ADMIN_KEY"
	EnvGovernorKey = "BRIDGE_GOVERNOR_KEY"
)

const (
	defaultPollInterval   = 500 * time.Millisecond
	defaultReceiptTimeout = 60 * time.Second
)

type AnchorConfig struct {
	Address    common.Address `json:"address"`
	Size       string         `json:"size"`
	MaxEdges   uint8          `json:"max_edges"`
	TreeHeight int            `json:"tree_height"`
}

type ChainConfig struct {
	Name       string          `json:"name"`
	ChainType  string          `json:"chain_type"`
	ChainID    uint32          `json:"chain_id"`
	RPCURL     string          `json:"rpc_url"`
	Governance common.Address  `json:"governance"`
	Handler    *common.Address `json:"handler,omitempty"`
	Anchors    []AnchorConfig  `json:"anchors"`
}

// TypedChainID combines chain_type and chain_id.
func (c ChainConfig) TypedChainID() (types.TypedChainID, error) {
	ct, err := types.ParseChainType(c.ChainType)
	if err != nil {
		return types.TypedChainID{}, fmt.Errorf("chain %s: %w", c.Name, err)
	}
	return types.NewTypedChainID(ct, c.ChainID), nil
}

func (c ChainConfig) Anchor(size string) (AnchorConfig, bool) {
	for _, a := range c.Anchors {
		if a.Size == size {
			return a, true
		}
	}
	return AnchorConfig{}, false
}

type Deployment struct {
	ID              string        `json:"id"`
	PollIntervalMS  int64         `json:"poll_interval_ms"`
	ReceiptTimeoutS int64         `json:"receipt_timeout_s"`
	Chains          []ChainConfig `json:"chains"`
	// Groups lists linkage groups as "chain:size" references.
	Groups [][]string `json:"groups"`
}

// AnchorRef is a resolved "chain:size" reference.
type AnchorRef struct {
	Chain  ChainConfig
	Anchor AnchorConfig
}

func (r AnchorRef) String() string {
	return r.Chain.Name + ":" + r.Anchor.Size
}

// ReadDeployment loads a named embedded deployment or, failing that, the JSON file at id.
func ReadDeployment(id string) (*Deployment, error) {
	var (
		data []byte
		err  error
	)
	if path, ok := deploymentFile[id]; ok {
		data, err = configFS.ReadFile(path)
	} else {
		data, err = os.ReadFile(id)
	}
	if err != nil {
		return nil, err
	}
	return ParseDeployment(data)
}

func ParseDeployment(data []byte) (*Deployment, error) {
	var d Deployment
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("deployment: %w", err)
	}
	if err := d.Validate(); err != nil {
		return nil, err
	}
	return &d, nil
}

func (d *Deployment) PollInterval() time.Duration {
	if d.PollIntervalMS <= 0 {
		return defaultPollInterval
	}
	return time.Duration(d.PollIntervalMS) * time.Millisecond
}

func (d *Deployment) ReceiptTimeout() time.Duration {
	if d.ReceiptTimeoutS <= 0 {
		return defaultReceiptTimeout
	}
	return time.Duration(d.ReceiptTimeoutS) * time.Second
}

func (d *Deployment) Chain(name string) (ChainConfig, bool) {
	for _, c := range d.Chains {
		if c.Name == name {
			return c, true
		}
	}
	return ChainConfig{}, false
}

// Resolve looks up a "chain:size" reference.
func (d *Deployment) Resolve(ref string) (AnchorRef, error) {
	name, size, ok := strings.Cut(ref, ":")
	if !ok {
		return AnchorRef{}, fmt.Errorf("anchor reference %q: want chain:size", ref)
	}
	c, ok := d.Chain(name)
	if !ok {
		return AnchorRef{}, fmt.Errorf("anchor reference %q: unknown chain %s", ref, name)
	}
	a, ok := c.Anchor(size)
	if !ok {
		return AnchorRef{}, fmt.Errorf("anchor reference %q: chain %s has no anchor of size %s", ref, name, size)
	}
	return AnchorRef{Chain: c, Anchor: a}, nil
}

// ResolvedGroups resolves every linkage group.
func (d *Deployment) ResolvedGroups() ([][]AnchorRef, error) {
	out := make([][]AnchorRef, 0, len(d.Groups))
	for _, g := range d.Groups {
		refs := make([]AnchorRef, 0, len(g))
		for _, ref := range g {
			r, err := d.Resolve(ref)
			if err != nil {
				return nil, err
			}
			refs = append(refs, r)
		}
		out = append(out, refs)
	}
	return out, nil
}

// Validate checks chain names and ids are unique, chain types parse and every anchor sits in at most one group.
func (d *Deployment) Validate() error {
	names := make(map[string]bool)
	ids := make(map[types.TypedChainID]string)
	for _, c := range d.Chains {
		if c.Name == "" || names[c.Name] {
			return fmt.Errorf("deployment %s: chain name %q missing or repeated", d.ID, c.Name)
		}
		names[c.Name] = true
		typed, err := c.TypedChainID()
		if err != nil {
			return err
		}
		if other, dup := ids[typed]; dup {
			return fmt.Errorf("deployment %s: chains %s and %s are both %s", d.ID, other, c.Name, typed)
		}
		ids[typed] = c.Name
		sizes := make(map[string]bool)
		for _, a := range c.Anchors {
			if sizes[a.Size] {
				return fmt.Errorf("deployment %s: chain %s has two anchors of size %s", d.ID, c.Name, a.Size)
			}
			sizes[a.Size] = true
		}
	}
	groups, err := d.ResolvedGroups()
	if err != nil {
		return err
	}
	seen := make(map[string]int)
	for gi, g := range groups {
		for _, r := range g {
			if prev, ok := seen[r.String()]; ok {
				return fmt.Errorf("deployment %s: %s is in groups %d and %d", d.ID, r, prev, gi)
			}
			seen[r.String()] = gi
			if limit := int(r.Anchor.MaxEdges); limit != 0 && len(g)-1 > limit {
				return fmt.Errorf("deployment %s: %s allows %d edges, group %d has %d members", d.ID, r, limit, gi, len(g))
			}
		}
	}
	return nil
}
