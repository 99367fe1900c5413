package bridge

import (
	"encoding/json"
	"fmt"

	"github.com/colorfulnotion/anchorbridge/common"
	"github.com/colorfulnotion/anchorbridge/types"
	"github.com/yudai/gojsondiff"
	"github.com/yudai/gojsondiff/formatter"
)

// AnchorNode is one anchor in a serialized graph.
type AnchorNode struct {
	ResourceID   types.ResourceID   `json:"resource_id"`
	TypedChainID types.TypedChainID `json:"typed_chain_id"`
	Size         string             `json:"size"`
	Address      common.Address     `json:"address"`
	MaxEdges     uint8              `json:"max_edges"`
	TreeHeight   int                `json:"tree_height"`
}

// Graph is the deployment without live ledger handles.
type Graph struct {
	Anchors []AnchorNode    `json:"anchors"`
	Links   LinkedAnchorMap `json:"links"`
}

func (b *Bridge) Graph() Graph {
	g := Graph{Links: b.linked}
	for _, a := range b.Anchors() {
		g.Anchors = append(g.Anchors, AnchorNode{
			ResourceID:   a.ResourceID(),
			TypedChainID: a.TypedChainID(),
			Size:         a.Size(),
			Address:      a.Address(),
			MaxEdges:     a.MaxEdges(),
			TreeHeight:   a.TreeHeight(),
		})
	}
	return g
}

// DiffGraphs compares two serialized graphs and renders the changes. Identical graphs yield "".
func DiffGraphs(before, after []byte, coloring bool) (string, error) {
	delta, err := gojsondiff.New().Compare(before, after)
	if err != nil {
		return "", fmt.Errorf("diff graphs: %w", err)
	}
	if !delta.Modified() {
		return "", nil
	}
	var left interface{}
	if err := json.Unmarshal(before, &left); err != nil {
		return "", err
	}
	f := formatter.NewAsciiFormatter(left, formatter.AsciiFormatterConfig{
		ShowArrayIndex: true,
		Coloring:       coloring,
	})
	return f.Format(delta)
}
