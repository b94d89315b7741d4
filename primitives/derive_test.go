package primitives

import (
	"crypto/rand"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDeriveTweakDeterministic(t *testing.T) {
	secret, err := RandomScalar(rand.Reader)
	require.NoError(t, err)
	master := MulBase(secret)

	path := []uint32{1, 2, 3}
	t1, err := DeriveTweak(master, path)
	require.NoError(t, err)
	t2, err := DeriveTweak(master, path)
	require.NoError(t, err)
	require.True(t, t1.Equal(t2))
}

func TestDeriveTweakDistinctPathsDiffer(t *testing.T) {
	secret, err := RandomScalar(rand.Reader)
	require.NoError(t, err)
	master := MulBase(secret)

	a, err := DeriveTweak(master, []uint32{1, 2, 3})
	require.NoError(t, err)
	b, err := DeriveTweak(master, []uint32{1, 2, 4})
	require.NoError(t, err)
	require.False(t, a.Equal(b))

	c, err := DeriveTweak(master, nil)
	require.NoError(t, err)
	require.True(t, c.IsZero())
}

func TestDerivePublicKeyMatchesTweakedPrivateKey(t *testing.T) {
	secret, err := RandomScalar(rand.Reader)
	require.NoError(t, err)
	master := MulBase(secret)

	path := []uint32{7, 0, 42}
	tweak, err := DeriveTweak(master, path)
	require.NoError(t, err)

	derivedPriv := NewScalar().Add(secret, tweak)
	wantPub := MulBase(derivedPriv)

	gotPub, err := DerivePublicKey(master, path)
	require.NoError(t, err)
	require.True(t, gotPub.Equal(wantPub))
}
