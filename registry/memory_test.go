package registry

import (
	"crypto/rand"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dkgmesh/idkg/idkg"
	"github.com/dkgmesh/idkg/primitives"
)

func TestMemoryRegistryLookup(t *testing.T) {
	reg, err := NewMemoryRegistry(16)
	require.NoError(t, err)

	secret, err := primitives.RandomScalar(rand.Reader)
	require.NoError(t, err)
	pub := primitives.MulBase(secret)

	reg.PublishVersion(1, []*Identity{
		{NodeID: "n0", AlgorithmID: "ThresholdEcdsaSecp256k1", Key: pub},
	})

	pk, err := reg.GetMEGaPubkey("n0", 1)
	require.NoError(t, err)
	require.True(t, pk.Point.Equal(pub))

	_, err = reg.GetMEGaPubkey("n0", 2)
	require.ErrorIs(t, err, ErrNotFound)

	_, err = reg.GetMEGaPubkey(idkg.NodeID("unknown"), 1)
	require.ErrorIs(t, err, ErrNotFound)
}
