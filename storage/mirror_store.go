package storage

import (
	"fmt"
	"strings"

	"github.com/colorfulnotion/anchorbridge/common"
	"github.com/colorfulnotion/anchorbridge/log"
	"github.com/colorfulnotion/anchorbridge/types"
	"github.com/syndtr/goleveldb/leveldb"
)

// MirrorEntry is one mirrored leaf and the root right after it was inserted.
type MirrorEntry struct {
	Index uint64
	Leaf  common.Hash
	Root  common.Hash
}

// MirrorState is everything needed to rebuild an anchor mirror.
type MirrorState struct {
	Entries           []MirrorEntry
	LatestSyncedBlock uint64
}

// MirrorStore keeps leaves, root history and the sync watermark of each anchor, keyed by resource id.
type MirrorStore struct {
	ps *PersistenceStore
}

func NewMirrorStore(ps *PersistenceStore) *MirrorStore {
	return &MirrorStore{ps: ps}
}

func OpenMirrorStore(path string) (*MirrorStore, error) {
	ps, err := NewPersistenceStore(path)
	if err != nil {
		return nil, err
	}
	return NewMirrorStore(ps), nil
}

func (s *MirrorStore) Close() error {
	return s.ps.Close()
}

func mirrorPrefix(rid types.ResourceID) string {
	return "mirror/" + rid.Hex() + "/"
}

func leafKey(rid types.ResourceID, index uint64) []byte {
	return []byte(fmt.Sprintf("%sleaf_%020d", mirrorPrefix(rid), index))
}

func watermarkKey(rid types.ResourceID) []byte {
	return []byte(mirrorPrefix(rid) + "watermark")
}

// Save writes entries and the watermark in one batch.
func (s *MirrorStore) Save(rid types.ResourceID, entries []MirrorEntry, latestSyncedBlock uint64) error {
	batch := new(leveldb.Batch)
	for _, e := range entries {
		value := make([]byte, 0, 2*common.HashLength)
		value = append(value, e.Leaf.Bytes()...)
		value = append(value, e.Root.Bytes()...)
		batch.Put(leafKey(rid, e.Index), value)
	}
	batch.Put(watermarkKey(rid), common.Uint64ToBytes(latestSyncedBlock))
	if err := s.ps.Write(batch); err != nil {
		return fmt.Errorf("save mirror %s: %w", rid, err)
	}
	log.Trace(log.StoreMonitoring, "mirror saved", "rid", rid, "entries", len(entries), "watermark", latestSyncedBlock)
	return nil
}

// Clear drops everything stored for rid.
func (s *MirrorStore) Clear(rid types.ResourceID) error {
	if err := s.ps.DeletePrefix([]byte(mirrorPrefix(rid))); err != nil {
		return fmt.Errorf("clear mirror %s: %w", rid, err)
	}
	log.Trace(log.StoreMonitoring, "mirror cleared", "rid", rid)
	return nil
}

// Load returns the stored mirror of rid; an unknown rid yields an empty state.
func (s *MirrorStore) Load(rid types.ResourceID) (MirrorState, error) {
	var st MirrorState
	raw, found, err := s.ps.Get(watermarkKey(rid))
	if err != nil {
		return st, err
	}
	if found {
		if st.LatestSyncedBlock, err = common.BytesToUint64(raw); err != nil {
			return st, fmt.Errorf("watermark of %s: %w", rid, err)
		}
	}
	pairs, err := s.ps.GetWithPrefix([]byte(mirrorPrefix(rid) + "leaf_"))
	if err != nil {
		return st, err
	}
	for _, kv := range pairs {
		index, err := parseLeafIndex(string(kv[0]))
		if err != nil {
			return st, err
		}
		if len(kv[1]) != 2*common.HashLength {
			return st, fmt.Errorf("leaf %d of %s: corrupt value of %d bytes", index, rid, len(kv[1]))
		}
		st.Entries = append(st.Entries, MirrorEntry{
			Index: index,
			Leaf:  common.BytesToHash(kv[1][:common.HashLength]),
			Root:  common.BytesToHash(kv[1][common.HashLength:]),
		})
	}
	return st, nil
}

func parseLeafIndex(key string) (uint64, error) {
	i := strings.LastIndex(key, "leaf_")
	if i < 0 {
		return 0, fmt.Errorf("invalid leaf key %q", key)
	}
	var index uint64
	if _, err := fmt.Sscanf(key[i+len("leaf_"):], "%d", &index); err != nil {
		return 0, fmt.Errorf("invalid leaf key %q: %w", key, err)
	}
	return index, nil
}
