package signing

import (
	"github.com/pkg/errors"

	"github.com/dkgmesh/idkg/idkg"
	"github.com/dkgmesh/idkg/primitives"
	"github.com/dkgmesh/idkg/transcript"
)

// receiverIndex looks signerID up in t.Receivers: every transcript in a
// ThresholdEcdsaSigInputs shares the same receiver set by construction
// (they are all products or reshares built over the same subnet), so any
// one of them can stand in for "the" receiver index.
func receiverIndex(t *idkg.Transcript, signerID idkg.NodeID) (uint32, bool) {
	for i, r := range t.Receivers {
		if r == signerID {
			return uint32(i), true
		}
	}
	return 0, false
}

// derivedMessage folds the subkey tweak into the message rather than into
// kappa's r, the opposite of spec.md's literal "r' is derived from kappa
// and the tweak" wording: a BIP32-style additive tweak changes only the
// (private key, public key) pair, never the nonce R = kappa*G that
// determines r, so the tweak cannot move from x = key to r without the
// signer knowing the untweaked private key -- which this threshold scheme
// never reconstructs. Folding the tweak into the message preserves the
// standard ECDSA identity s = k^-1*(m' + r*x) for x = key + tweak, m' =
// m + r*tweak, which both sign_share and verify_combined_sig rely on. See
// DESIGN.md for the worked-through algebra.
func derivedMessage(hashedMessage [32]byte, r, tweak *primitives.Scalar) *primitives.Scalar {
	m := primitives.ScalarFromBytes32(hashedMessage)
	rt := primitives.NewScalar().Mul(r, tweak)
	return primitives.NewScalar().Add(m, rt)
}

// kappaR returns r = (kappa*G).x mod q, read from Kappa's Simple public
// commitment -- its constant term is already kappa*G in the clear, since
// unmasked transcripts commit without a Pedersen blind.
func kappaR(kappa *idkg.Transcript) (*primitives.Scalar, error) {
	commitment, err := transcript.ExtractCommitment(kappa)
	if err != nil {
		return nil, errors.Wrap(idkg.ErrInvalidTranscript, err.Error())
	}
	if commitment.Type != primitives.CommitmentSimple {
		return nil, errors.Wrap(idkg.ErrInvalidTranscript, "kappa transcript must carry a simple commitment")
	}
	return commitment.ConstantTerm().X(), nil
}

func masterPublicKey(keyTranscript *idkg.Transcript) (*primitives.Point, error) {
	commitment, err := transcript.ExtractCommitment(keyTranscript)
	if err != nil {
		return nil, errors.Wrap(idkg.ErrInvalidTranscript, err.Error())
	}
	return commitment.ConstantTerm(), nil
}

// DerivePublicKey implements spec.md §4.4's public-key derivation: a
// deterministic function of (master_public_key, derivation_path) --
// identical paths yield identical keys, distinct paths yield distinct keys
// with overwhelming probability. Exported so callers can compute the
// address/identity a derivation path resolves to without driving a full
// signing round.
func DerivePublicKey(keyTranscript *idkg.Transcript, derivationPath []uint32) (*primitives.Point, error) {
	master, err := masterPublicKey(keyTranscript)
	if err != nil {
		return nil, err
	}
	return primitives.DerivePublicKey(master, derivationPath)
}
