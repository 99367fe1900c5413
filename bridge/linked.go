package bridge

import (
	"encoding/json"
	"fmt"

	"github.com/colorfulnotion/anchorbridge/bridgeerrors"
	"github.com/colorfulnotion/anchorbridge/types"
	"github.com/xlab/treeprint"
	"golang.org/x/exp/slices"
)

// Linkable is anything identified by a resource id, e.g. *anchor.Anchor.
type Linkable interface {
	ResourceID() types.ResourceID
}

// LinkedAnchorMap maps an anchor's resource id to the anchors that must hear about its state changes.
type LinkedAnchorMap map[types.ResourceID][]types.ResourceID

// BuildLinkedAnchorMap links every anchor of a group to every other anchor of the same group.
// A group of K anchors yields K*(K-1) edges. Groups must be disjoint.
func BuildLinkedAnchorMap[A Linkable](groups [][]A) (LinkedAnchorMap, error) {
	m := make(LinkedAnchorMap)
	for gi, group := range groups {
		seen := make(map[types.ResourceID]bool, len(group))
		for _, a := range group {
			rid := a.ResourceID()
			if seen[rid] {
				return nil, fmt.Errorf("group %d lists %s twice: %w", gi, rid, bridgeerrors.ErrGDuplicateAnchor)
			}
			if _, ok := m[rid]; ok {
				return nil, fmt.Errorf("group %d: %s: %w", gi, rid, bridgeerrors.ErrGOverlappingGroups)
			}
			seen[rid] = true
		}
		for _, a := range group {
			src := a.ResourceID()
			linked := make([]types.ResourceID, 0, len(group)-1)
			for _, b := range group {
				if dst := b.ResourceID(); dst != src {
					linked = append(linked, dst)
				}
			}
			m[src] = linked
		}
	}
	return m, nil
}

// Edges counts directed links.
func (m LinkedAnchorMap) Edges() int {
	n := 0
	for _, linked := range m {
		n += len(linked)
	}
	return n
}

// Linked returns the anchors to notify when rid changes, nil if rid is unknown.
func (m LinkedAnchorMap) Linked(rid types.ResourceID) []types.ResourceID {
	return m[rid]
}

// Sources lists the keys in byte order.
func (m LinkedAnchorMap) Sources() []types.ResourceID {
	out := make([]types.ResourceID, 0, len(m))
	for rid := range m {
		out = append(out, rid)
	}
	slices.SortFunc(out, compareResourceIDs)
	return out
}

func compareResourceIDs(a, b types.ResourceID) int {
	for i := range a {
		if a[i] != b[i] {
			if a[i] < b[i] {
				return -1
			}
			return 1
		}
	}
	return 0
}

func (m LinkedAnchorMap) MarshalJSON() ([]byte, error) {
	out := make(map[string][]string, len(m))
	for rid, linked := range m {
		hexes := make([]string, len(linked))
		for i, l := range linked {
			hexes[i] = l.Hex()
		}
		out[rid.Hex()] = hexes
	}
	return json.Marshal(out)
}

func (m *LinkedAnchorMap) UnmarshalJSON(b []byte) error {
	var raw map[string][]string
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	out := make(LinkedAnchorMap, len(raw))
	for k, vs := range raw {
		src, err := types.ResourceIDFromHex(k)
		if err != nil {
			return err
		}
		linked := make([]types.ResourceID, len(vs))
		for i, v := range vs {
			if linked[i], err = types.ResourceIDFromHex(v); err != nil {
				return err
			}
		}
		out[src] = linked
	}
	*m = out
	return nil
}

// Tree renders the map with one branch per source anchor. label names a resource id; nil prints hex.
func (m LinkedAnchorMap) Tree(label func(types.ResourceID) string) treeprint.Tree {
	if label == nil {
		label = func(rid types.ResourceID) string { return rid.Hex() }
	}
	tree := treeprint.New()
	tree.SetValue(fmt.Sprintf("linked anchors (%d edges)", m.Edges()))
	for _, src := range m.Sources() {
		branch := tree.AddBranch(label(src))
		for _, dst := range m[src] {
			branch.AddNode(label(dst))
		}
	}
	return tree
}
