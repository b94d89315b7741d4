// Package scheme resolves an AlgorithmId to the Scheme parameters the rest
// of the engine needs (its Pedersen mask generator), the same role
// crypto/schemes.go plays for drand's pluggable BLS signature schemes. This
// engine only ever offers one family of curves (secp256k1, required for
// ECDSA, unlike drand's pairing-friendly BLS curves) but keeps the registry
// shape so a future algorithm id is a registration, not a rewrite.
package scheme

import (
	"fmt"
	"os"

	"github.com/dkgmesh/idkg/primitives"
)

// AlgorithmId names a concrete threshold-ECDSA instantiation.
type AlgorithmId string

// DefaultAlgorithmId is the only algorithm id this engine currently ships.
const DefaultAlgorithmId AlgorithmId = "ThresholdEcdsaSecp256k1"

// Scheme bundles the parameters an algorithm id commits to. The curve and
// hash functions are fixed in primitives/, so it carries only the Pedersen
// mask generator.
type Scheme struct {
	ID AlgorithmId

	// MaskGenerator is the secp256k1 point H used as the second Pedersen
	// generator for masked commitments, distinct from the base point G and
	// derived deterministically so every participant agrees on it without a
	// trusted setup.
	MaskGenerator *primitives.Point
}

var schemes = map[AlgorithmId]Scheme{
	DefaultAlgorithmId: {
		ID:            DefaultAlgorithmId,
		MaskGenerator: primitives.HashHint("idkg.pedersen.mask-generator.v1"),
	},
}

// GetSchemeByID looks up a Scheme by its AlgorithmId.
func GetSchemeByID(id AlgorithmId) (scheme Scheme, found bool) {
	s, ok := schemes[id]
	return s, ok
}

// GetSchemeByIDWithDefault is GetSchemeByID, falling back to
// DefaultAlgorithmId when id is empty.
func GetSchemeByIDWithDefault(id AlgorithmId) (Scheme, error) {
	if id == "" {
		id = DefaultAlgorithmId
	}
	s, ok := GetSchemeByID(id)
	if !ok {
		return Scheme{}, fmt.Errorf("scheme: unknown algorithm id %q", id)
	}
	return s, nil
}

// ListSchemes returns every registered algorithm id.
func ListSchemes() []AlgorithmId {
	ids := make([]AlgorithmId, 0, len(schemes))
	for id := range schemes {
		ids = append(ids, id)
	}
	return ids
}

// GetSchemeFromEnv resolves the scheme named by the IDKG_ALGORITHM_ID
// environment variable, defaulting when unset, and panics on an unknown id.
// Nothing in this module calls it; cmd/idkgctl resolves its scheme with
// GetSchemeByIDWithDefault.
func GetSchemeFromEnv() Scheme {
	id := AlgorithmId(os.Getenv("IDKG_ALGORITHM_ID"))
	s, err := GetSchemeByIDWithDefault(id)
	if err != nil {
		panic(err)
	}
	return s
}
