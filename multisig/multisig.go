// Package multisig is the external collaborator spec.md §6 calls the
// multi-signature adapter: it certifies dealings with a quorum signature so
// transcript.CreateTranscript can check verification_threshold many
// receivers vouched for each dealing. spec.md specifies this subsystem only
// via its sign/combine/verify contract, not an algorithm, so the reference
// implementation here is a simple per-signer Schnorr scheme over
// secp256k1 rather than a pairing-based aggregate signature. Callers use
// only SignMulti, CombineMultiSigIndividuals, VerifyCombinedMultiSig and the
// KeyProvider interface, so a production deployment can swap in BLS-style
// aggregation behind those without touching idkg/transcript.
package multisig

import (
	"crypto/rand"
	"errors"
	"io"

	"github.com/dkgmesh/idkg/idkg"
	"github.com/dkgmesh/idkg/primitives"
)

var (
	// ErrInvalidIndividualSignature is returned by VerifyCombinedMultiSig when a
	// constituent signature does not verify under its claimed signer's key.
	ErrInvalidIndividualSignature = errors.New("multisig: individual signature failed verification")
	// ErrUnknownSigner is returned when a signer has no known public key.
	ErrUnknownSigner = errors.New("multisig: no public key for claimed signer")
	// ErrSignerSetMismatch is returned when the individual signatures
	// actually bundled into a CombinedSig don't match the caller's claimed
	// signer set one-for-one — either a different node signed, the same
	// node is double-counted, or fewer signatures are present than claimed.
	ErrSignerSetMismatch = errors.New("multisig: combined signature's signers do not match the claimed signer set")
)

// IndividualSig is one signer's Schnorr signature over msg.
type IndividualSig struct {
	SignerID idkg.NodeID
	R        *primitives.Point
	S        *primitives.Scalar
}

// CombinedSig bundles the individual signatures that make up a quorum. It is
// opaque to everything outside this package beyond its signer set.
type CombinedSig struct {
	Individuals []IndividualSig
}

// Signers returns the node ids that contributed to sig.
func (c CombinedSig) Signers() []idkg.NodeID {
	out := make([]idkg.NodeID, len(c.Individuals))
	for i, s := range c.Individuals {
		out[i] = s.SignerID
	}
	return out
}

// KeyProvider resolves a signer's Schnorr public key, backed in production
// by the same registry the IDKG engine itself consults.
type KeyProvider interface {
	PublicKey(signerID idkg.NodeID) (*primitives.Point, error)
}

// SignMulti produces signer's individual Schnorr signature over msg.
func SignMulti(rnd io.Reader, signerID idkg.NodeID, secret *primitives.Scalar, msg []byte) (IndividualSig, error) {
	if rnd == nil {
		rnd = rand.Reader
	}
	k, err := primitives.RandomScalar(rnd)
	if err != nil {
		return IndividualSig{}, err
	}
	r := primitives.MulBase(k)
	pub := primitives.MulBase(secret)
	c := schnorrChallenge(r, pub, msg)
	// s = k - c*secret
	cs := primitives.NewScalar().Mul(c, secret)
	s := primitives.NewScalar().Sub(k, cs)
	return IndividualSig{SignerID: signerID, R: r, S: s}, nil
}

// CombineMultiSigIndividuals bundles a set of individual signatures into a
// CombinedSig. It does not itself re-verify them; verify_combined_multi_sig
// does.
func CombineMultiSigIndividuals(individuals []IndividualSig) CombinedSig {
	return CombinedSig{Individuals: append([]IndividualSig(nil), individuals...)}
}

// VerifyCombinedMultiSig checks that every individual signature in sig
// verifies under its signer's public key (resolved via keys) and that the
// set of signers who actually produced a valid signature is exactly
// signers — no more, no fewer, no substitutions. Without this cross-check a
// CombinedSig carrying zero or one real signatures would still pass as long
// as a caller's separately-carried, unauthenticated signers list happened to
// be long enough.
func VerifyCombinedMultiSig(sig CombinedSig, msg []byte, signers []idkg.NodeID, keys KeyProvider) error {
	if len(sig.Individuals) != len(signers) {
		return ErrSignerSetMismatch
	}
	claimed := make(map[idkg.NodeID]bool, len(signers))
	for _, s := range signers {
		claimed[s] = true
	}
	seen := make(map[idkg.NodeID]bool, len(sig.Individuals))
	for _, ind := range sig.Individuals {
		if !claimed[ind.SignerID] || seen[ind.SignerID] {
			return ErrSignerSetMismatch
		}
		seen[ind.SignerID] = true

		pub, err := keys.PublicKey(ind.SignerID)
		if err != nil {
			return ErrUnknownSigner
		}
		if err := verifyIndividual(ind, pub, msg); err != nil {
			return err
		}
	}
	return nil
}

func verifyIndividual(sig IndividualSig, pub *primitives.Point, msg []byte) error {
	c := schnorrChallenge(sig.R, pub, msg)
	// check R == s*G + c*pub
	sg := primitives.MulBase(sig.S)
	cpub := primitives.NewPoint().Mul(c, pub)
	expect := primitives.NewPoint().Add(sg, cpub)
	if !expect.Equal(sig.R) {
		return ErrInvalidIndividualSignature
	}
	return nil
}

func schnorrChallenge(r, pub *primitives.Point, msg []byte) *primitives.Scalar {
	digest := primitives.ScalarFromBytes32(hashChallenge(r, pub, msg))
	return digest
}
