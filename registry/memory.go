package registry

import (
	"fmt"
	"sync"

	lru "github.com/hashicorp/golang-lru"

	"github.com/dkgmesh/idkg/idkg"
)

// versionedSnapshot is one registry_version's worth of identities: the
// registry adapter never mutates a past version, only appends new ones, so
// readers holding an old version never observe a torn read (spec.md §5).
type versionedSnapshot map[idkg.NodeID]MEGaPublicKey

// MemoryRegistry is a reference Registry implementation: an append-only
// sequence of versioned snapshots, with a bounded LRU cache in front of the
// per-version map lookup. Grounded on the teacher's in-memory group/identity
// bookkeeping (common/key.Group.Find), generalized from a single current
// group to a version-indexed history, since spec.md requires every dealing
// and transcript to resolve keys "at the requested registry_version", not
// just the latest one.
type MemoryRegistry struct {
	mu        sync.RWMutex
	snapshots map[uint64]versionedSnapshot
	cache     *lru.Cache // key: cacheKey -> MEGaPublicKey
}

type cacheKey struct {
	nodeID  idkg.NodeID
	version uint64
}

// NewMemoryRegistry constructs an empty registry with an LRU lookup cache
// bounded to cacheSize entries.
func NewMemoryRegistry(cacheSize int) (*MemoryRegistry, error) {
	c, err := lru.New(cacheSize)
	if err != nil {
		return nil, err
	}
	return &MemoryRegistry{
		snapshots: make(map[uint64]versionedSnapshot),
		cache:     c,
	}, nil
}

// PublishVersion registers a new registry_version's full identity set. Real
// deployments would instead derive this from the consensus layer's ledger;
// this is the in-process stand-in used by cmd/idkgctl and tests.
func (r *MemoryRegistry) PublishVersion(version uint64, identities []*Identity) {
	r.mu.Lock()
	defer r.mu.Unlock()

	snap := make(versionedSnapshot, len(identities))
	for _, id := range identities {
		snap[id.NodeID] = MEGaPublicKey{AlgorithmID: id.AlgorithmID, Point: id.Key}
	}
	r.snapshots[version] = snap
	// A new version invalidates no prior cache entries (versions are
	// immutable once published), so the cache is left untouched.
}

// GetMEGaPubkey implements Registry.
func (r *MemoryRegistry) GetMEGaPubkey(nodeID idkg.NodeID, registryVersion uint64) (MEGaPublicKey, error) {
	key := cacheKey{nodeID: nodeID, version: registryVersion}
	if v, ok := r.cache.Get(key); ok {
		return v.(MEGaPublicKey), nil
	}

	r.mu.RLock()
	snap, ok := r.snapshots[registryVersion]
	r.mu.RUnlock()
	if !ok {
		return MEGaPublicKey{}, fmt.Errorf("%w: registry version %d", ErrNotFound, registryVersion)
	}

	pk, ok := snap[nodeID]
	if !ok {
		return MEGaPublicKey{}, fmt.Errorf("%w: node %q at version %d", ErrNotFound, nodeID, registryVersion)
	}

	r.cache.Add(key, pk)
	return pk, nil
}
