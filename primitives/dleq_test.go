package primitives

import (
	"crypto/rand"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDLEQProofVerifies(t *testing.T) {
	g := MulBase(ScalarFromInt(1))
	h := HashHint("dleq-test-mask")

	x, err := RandomScalar(rand.Reader)
	require.NoError(t, err)

	proof, xg, xh, err := NewDLEQProof(rand.Reader, g, h, x)
	require.NoError(t, err)
	require.NoError(t, proof.Verify(g, h, xg, xh))
}

func TestDLEQProofRejectsMismatch(t *testing.T) {
	g := MulBase(ScalarFromInt(1))
	h := HashHint("dleq-test-mask-2")

	x, err := RandomScalar(rand.Reader)
	require.NoError(t, err)
	y, err := RandomScalar(rand.Reader)
	require.NoError(t, err)

	proof, xg, _, err := NewDLEQProof(rand.Reader, g, h, x)
	require.NoError(t, err)
	yh := NewPoint().Mul(y, h)

	err = proof.Verify(g, h, xg, yh)
	require.ErrorIs(t, err, ErrInvalidProof)
}
