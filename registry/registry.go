// Package registry is the external collaborator spec.md §6 calls the node
// registry: it resolves (node id, registry version) to the node's MEGa
// public key. The engine never mutates the registry; it only reads
// snapshots pinned by version, so concurrent reads never race (spec.md §5).
package registry

import (
	"errors"

	"github.com/dkgmesh/idkg/idkg"
	"github.com/dkgmesh/idkg/primitives"
)

// Lookup failure kinds, per spec.md §6's get_mega_pubkey contract.
var (
	ErrNotFound           = errors.New("registry: no entry for node at this registry version")
	ErrMalformedPublicKey = errors.New("registry: stored public key is not a valid curve point")
	ErrTranscodingError   = errors.New("registry: failed to decode registry entry")
)

// MEGaPublicKey is a compressed EC point tagged with the algorithm id it was
// generated under, per spec.md §6.
type MEGaPublicKey struct {
	AlgorithmID string
	Point       *primitives.Point
}

// Registry resolves node identities to MEGa public keys at a pinned
// registry version.
type Registry interface {
	GetMEGaPubkey(nodeID idkg.NodeID, registryVersion uint64) (MEGaPublicKey, error)
}
