// Package merkle provides the append-only commitment tree mirrored for every anchor.
package merkle

import (
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/colorfulnotion/anchorbridge/common"
)

const (
	// DefaultHeight matches the anchors deployed by the bridge.
	DefaultHeight = 30

	// MaxHeight bounds leaf indices to uint32.
	MaxHeight = 32
)

// MerkleTree is a fixed-height, append-only keccak tree with zero-hash padding.
type MerkleTree struct {
	mu sync.RWMutex

	height int
	root   common.Hash
	size   uint64
	leaves []common.Hash

	// nodes[level][index] = hash
	nodes map[int]map[uint64]common.Hash

	// zeroHashes[i] is the root of an empty subtree of height i
	zeroHashes []common.Hash
}

func NewMerkleTree(height int) (*MerkleTree, error) {
	if height < 1 || height > MaxHeight {
		return nil, fmt.Errorf("tree height %d out of range [1,%d]", height, MaxHeight)
	}
	tree := &MerkleTree{
		height:     height,
		leaves:     make([]common.Hash, 0),
		nodes:      make(map[int]map[uint64]common.Hash),
		zeroHashes: ZeroHashes(height),
	}
	tree.root = tree.zeroHashes[height]
	return tree, nil
}

// ZeroHashes returns the empty-subtree roots for levels 0..height.
func ZeroHashes(height int) []common.Hash {
	zeros := make([]common.Hash, height+1)
	for i := 1; i <= height; i++ {
		zeros[i] = HashPair(zeros[i-1], zeros[i-1])
	}
	return zeros
}

func (t *MerkleTree) Height() int {
	return t.height
}

// Capacity is the number of leaves the tree can hold.
func (t *MerkleTree) Capacity() uint64 {
	return uint64(1) << t.height
}

func (t *MerkleTree) Root() common.Hash {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.root
}

func (t *MerkleTree) Size() uint64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.size
}

// Append adds a leaf and returns its index and the new root.
func (t *MerkleTree) Append(leaf common.Hash) (uint64, common.Hash, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.appendLocked([]common.Hash{leaf}); err != nil {
		return 0, common.Hash{}, err
	}
	return t.size - 1, t.root, nil
}

func (t *MerkleTree) AppendBatch(leaves []common.Hash) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.appendLocked(leaves)
}

func (t *MerkleTree) appendLocked(leaves []common.Hash) error {
	if t.size+uint64(len(leaves)) > t.Capacity() {
		return fmt.Errorf("tree capacity exceeded: current=%d, adding=%d, max=%d", t.size, len(leaves), t.Capacity())
	}
	for _, leaf := range leaves {
		t.leaves = append(t.leaves, leaf)
		t.updatePath(t.size, leaf)
		t.size++
	}
	return nil
}

// updatePath rehashes from leaf to root.
func (t *MerkleTree) updatePath(index uint64, leaf common.Hash) {
	current := leaf
	idx := index
	for level := 0; level < t.height; level++ {
		if t.nodes[level] == nil {
			t.nodes[level] = make(map[uint64]common.Hash)
		}
		t.nodes[level][idx] = current
		if idx%2 == 0 {
			sibling, ok := t.nodes[level][idx+1]
			if !ok {
				sibling = t.zeroHashes[level]
			}
			current = HashPair(current, sibling)
		} else {
			current = HashPair(t.nodes[level][idx-1], current)
		}
		idx /= 2
	}
	t.root = current
}

func (t *MerkleTree) Leaf(index uint64) (common.Hash, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if index >= t.size {
		return common.Hash{}, fmt.Errorf("leaf index %d out of bounds (size=%d)", index, t.size)
	}
	return t.leaves[index], nil
}

// Leaves returns a copy of all leaves in insertion order.
func (t *MerkleTree) Leaves() []common.Hash {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return append([]common.Hash(nil), t.leaves...)
}

// IndexOf returns the first index holding leaf.
func (t *MerkleTree) IndexOf(leaf common.Hash) (uint64, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	for i, l := range t.leaves {
		if l == leaf {
			return uint64(i), true
		}
	}
	return 0, false
}

// Witness generates an inclusion proof for the leaf at index against the current root.
func (t *MerkleTree) Witness(index uint64) (Witness, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if index >= t.size {
		return Witness{}, fmt.Errorf("position %d out of bounds (size=%d)", index, t.size)
	}
	w := Witness{Position: index, Path: make([]common.Hash, t.height)}
	idx := index
	for level := 0; level < t.height; level++ {
		if idx%2 == 0 {
			sibling, ok := t.nodes[level][idx+1]
			if !ok {
				sibling = t.zeroHashes[level]
			}
			w.Path[level] = sibling
		} else {
			sibling, ok := t.nodes[level][idx-1]
			if !ok {
				return Witness{}, fmt.Errorf("missing sibling at level %d index %d", level, idx-1)
			}
			w.Path[level] = sibling
		}
		idx /= 2
	}
	return w, nil
}

// HashPair is keccak256(left ++ right).
func HashPair(left, right common.Hash) common.Hash {
	return common.Keccak256(left[:], right[:])
}

// Witness is a Merkle inclusion proof; Path runs from leaf level to just below the root.
type Witness struct {
	Position uint64        `json:"position"`
	Path     []common.Hash `json:"path"`
}

// PathIndices returns the left/right bit per level (0 = leaf is the left child).
func (w Witness) PathIndices() []uint8 {
	bits := make([]uint8, len(w.Path))
	for i := range bits {
		bits[i] = uint8((w.Position >> i) & 1)
	}
	return bits
}

// ComputeRoot folds leaf up the path.
func (w Witness) ComputeRoot(leaf common.Hash) common.Hash {
	current := leaf
	idx := w.Position
	for _, sibling := range w.Path {
		if idx%2 == 0 {
			current = HashPair(current, sibling)
		} else {
			current = HashPair(sibling, current)
		}
		idx /= 2
	}
	return current
}

func VerifyWitness(w Witness, leaf, root common.Hash, height int) bool {
	if len(w.Path) != height {
		return false
	}
	return w.ComputeRoot(leaf) == root
}

// SerializeWitness encodes [position:8][path_len:2][path:32*len].
func SerializeWitness(w Witness) []byte {
	buf := make([]byte, 10+len(w.Path)*common.HashLength)
	binary.BigEndian.PutUint64(buf[0:8], w.Position)
	binary.BigEndian.PutUint16(buf[8:10], uint16(len(w.Path)))
	offset := 10
	for _, h := range w.Path {
		copy(buf[offset:offset+common.HashLength], h[:])
		offset += common.HashLength
	}
	return buf
}

func DeserializeWitness(data []byte) (Witness, error) {
	if len(data) < 10 {
		return Witness{}, fmt.Errorf("witness data too short: %d bytes", len(data))
	}
	position := binary.BigEndian.Uint64(data[0:8])
	pathLen := int(binary.BigEndian.Uint16(data[8:10]))
	if len(data) != 10+pathLen*common.HashLength {
		return Witness{}, fmt.Errorf("witness data length mismatch: expected %d, got %d", 10+pathLen*common.HashLength, len(data))
	}
	w := Witness{Position: position, Path: make([]common.Hash, pathLen)}
	offset := 10
	for i := range w.Path {
		w.Path[i] = common.BytesToHash(data[offset : offset+common.HashLength])
		offset += common.HashLength
	}
	return w, nil
}
