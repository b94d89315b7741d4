package multisig

import (
	"crypto/rand"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dkgmesh/idkg/idkg"
	"github.com/dkgmesh/idkg/primitives"
)

type staticKeys map[idkg.NodeID]*primitives.Point

func (k staticKeys) PublicKey(id idkg.NodeID) (*primitives.Point, error) {
	p, ok := k[id]
	if !ok {
		return nil, ErrUnknownSigner
	}
	return p, nil
}

func TestSignCombineVerifyRoundTrip(t *testing.T) {
	msg := []byte("dealing-commitment-bytes")
	keys := staticKeys{}
	var individuals []IndividualSig

	for i := 0; i < 3; i++ {
		secret, err := primitives.RandomScalar(rand.Reader)
		require.NoError(t, err)
		id := idkg.NodeID(string(rune('a' + i)))
		keys[id] = primitives.MulBase(secret)

		sig, err := SignMulti(rand.Reader, id, secret, msg)
		require.NoError(t, err)
		individuals = append(individuals, sig)
	}

	combined := CombineMultiSigIndividuals(individuals)
	require.NoError(t, VerifyCombinedMultiSig(combined, msg, combined.Signers(), keys))
	require.Len(t, combined.Signers(), 3)
}

func TestVerifyCombinedMultiSigRejectsShortSignerSet(t *testing.T) {
	msg := []byte("dealing-commitment-bytes")
	keys := staticKeys{}
	var individuals []IndividualSig

	for i := 0; i < 3; i++ {
		secret, err := primitives.RandomScalar(rand.Reader)
		require.NoError(t, err)
		id := idkg.NodeID(string(rune('a' + i)))
		keys[id] = primitives.MulBase(secret)

		sig, err := SignMulti(rand.Reader, id, secret, msg)
		require.NoError(t, err)
		individuals = append(individuals, sig)
	}

	// Only one real signature, but the claimed signer set names all three —
	// this is exactly the forgery the signer-set cross-check exists to catch.
	combined := CombineMultiSigIndividuals(individuals[:1])
	err := VerifyCombinedMultiSig(combined, msg, []idkg.NodeID{"a", "b", "c"}, keys)
	require.ErrorIs(t, err, ErrSignerSetMismatch)
}

func TestVerifyCombinedMultiSigRejectsSubstitutedSigner(t *testing.T) {
	msg := []byte("dealing-commitment-bytes")
	secretA, err := primitives.RandomScalar(rand.Reader)
	require.NoError(t, err)
	secretB, err := primitives.RandomScalar(rand.Reader)
	require.NoError(t, err)
	keys := staticKeys{
		"a": primitives.MulBase(secretA),
		"b": primitives.MulBase(secretB),
	}

	sigA, err := SignMulti(rand.Reader, "a", secretA, msg)
	require.NoError(t, err)

	combined := CombineMultiSigIndividuals([]IndividualSig{sigA})
	err = VerifyCombinedMultiSig(combined, msg, []idkg.NodeID{"b"}, keys)
	require.ErrorIs(t, err, ErrSignerSetMismatch)
}

func TestVerifyCombinedMultiSigRejectsTamperedMessage(t *testing.T) {
	secret, err := primitives.RandomScalar(rand.Reader)
	require.NoError(t, err)
	keys := staticKeys{"a": primitives.MulBase(secret)}

	sig, err := SignMulti(rand.Reader, "a", secret, []byte("original"))
	require.NoError(t, err)

	combined := CombineMultiSigIndividuals([]IndividualSig{sig})
	err = VerifyCombinedMultiSig(combined, []byte("tampered"), []idkg.NodeID{"a"}, keys)
	require.ErrorIs(t, err, ErrInvalidIndividualSignature)
}
