package transcript

import (
	"github.com/dkgmesh/idkg/idkg"
	"github.com/dkgmesh/idkg/primitives"
)

// complaintWireV1 is internal_complaint_raw. Rather than prove non-
// membership directly (the underlying commitment scheme gives no efficient
// way to do that), the complainer reveals the ECDH shared point it derived
// from its own static secret and the dealing's ephemeral key, plus a DLEQ
// proof that this shared point was honestly derived — i.e. that
// log_G(complainer's registered pubkey) == log_ephemeralKey(sharedPoint).
// Any other receiver can then recompute the same MEGa mask from the
// revealed shared point, decrypt the same (value, mask) the complainer did,
// and confirm for themselves that it fails the dealing's commitment check.
type complaintWireV1 struct {
	_ struct{} `cbor:",toarray"`

	SharedPoint []byte
	ProofC      []byte
	ProofR      []byte
	ProofVG     []byte
	ProofVH     []byte
}

const complaintWireVersion = 1

// openingWireV1 is internal_opening_raw: the opener's own decrypted
// share(s) for the accused dealing, disclosed in the clear. Unlike a
// complaint (which must prove a *negative* — that no consistent value
// exists — without the verifier holding the opener's secret key), an
// opening's correctness is directly checkable: verify_opening recomputes
// commitment.CheckSimple/CheckPedersen at the opener's index against the
// disclosed value(s), which is itself the NIZK witness spec.md calls for —
// no separate proof object is needed on top of it.
type openingWireV1 struct {
	_ struct{} `cbor:",toarray"`

	Value []byte
	Mask  []byte // empty for Simple-committed dealings
}

const openingWireVersion = 1

// ExtractCommitment decodes t's aggregated public commitment from
// InternalTranscriptRaw, without re-verifying it against the underlying
// dealings. Used by signing/ to read the public parts of the four
// pre-signature transcripts (and the key transcript) at a signer's index.
//
// The decode itself lives in idkg.AggregateCommitment rather than here, so
// dealing/ (which cannot import transcript/) can read the same format when
// binding a reshare dealing to the transcript it reshares.
func ExtractCommitment(t *idkg.Transcript) (*primitives.Commitment, error) {
	return idkg.AggregateCommitment(t)
}

// sumCommitments homomorphically adds a set of equal-shape commitments
// coefficient-wise — the aggregation step spec.md §4.2 calls for, ordered by
// ascending dealer_index for determinism.
func sumCommitments(commitments []*primitives.Commitment) (*primitives.Commitment, error) {
	if len(commitments) == 0 {
		return nil, primitives.ErrInsufficientShares
	}
	threshold := commitments[0].Threshold()
	kind := commitments[0].Type
	sum := make([]*primitives.Point, threshold)
	for i := range sum {
		sum[i] = primitives.NewPoint()
	}
	for _, c := range commitments {
		if c.Threshold() != threshold || c.Type != kind {
			return nil, primitives.ErrLengthMismatch
		}
		for i := 0; i < threshold; i++ {
			sum[i] = primitives.NewPoint().Add(sum[i], c.Commits[i])
		}
	}
	out := &primitives.Commitment{Type: kind, Base: commitments[0].Base, Commits: sum}
	if kind == primitives.CommitmentPedersen {
		out.Mask = commitments[0].Mask
	}
	return out, nil
}
