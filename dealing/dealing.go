// Package dealing implements spec.md §4.1: create_dealing,
// verify_dealing_public and verify_dealing_private. A dealer privately
// shares a secret to every receiver under MEGa verifiable encryption, with a
// publicly verifiable polynomial commitment.
//
// Resolved ambiguity (recorded in DESIGN.md): spec.md's literal "Single for
// masked/random, Pairs for unmasked-reshare/product" ciphertext-variant rule
// cannot be followed as written without breaking verify_dealing_private's
// requirement that every receiver check its own share against the
// commitment — a Pedersen commitment needs both the value and mask shares
// to check, so Pedersen-committed dealings (Random, ReshareOfMasked,
// UnmaskedTimesMasked) use MEGaCiphertextPairs, and the one Simple-committed
// dealing (ReshareOfUnmasked) uses MEGaCiphertextSingle.
package dealing

import (
	"crypto/sha256"
	"io"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	"golang.org/x/crypto/hkdf"

	"github.com/dkgmesh/idkg/common/scheme"
	"github.com/dkgmesh/idkg/idkg"
	"github.com/dkgmesh/idkg/keystore"
	"github.com/dkgmesh/idkg/primitives"
	"github.com/dkgmesh/idkg/registry"
)

func usesSimpleCommitment(op idkg.OperationType) bool {
	return op.Kind == idkg.OpReshareOfUnmasked
}

// deterministicSource derives a reproducible byte stream from seed, the
// dealer id and the transcript id via HKDF-Expand, so a dealer that crashes
// mid-operation and retries produces byte-identical randomness (spec.md §5
// determinism requirement) without needing to persist any nonce.
func deterministicSource(seed [32]byte, dealerID idkg.NodeID, transcriptID idkg.TranscriptId) io.Reader {
	info := append([]byte(dealerID), []byte(transcriptID.String())...)
	return hkdf.Expand(sha256.New, seed[:], info)
}

// CreateDealing implements create_dealing.
func CreateDealing(
	params *idkg.TranscriptParams,
	callerID idkg.NodeID,
	seed [32]byte,
	reg registry.Registry,
	store *keystore.Store,
	sch scheme.Scheme,
) (idkg.Dealing, error) {
	if !params.IsDealer(callerID) {
		return idkg.Dealing{}, idkg.ErrNotADealer
	}

	receiverPubKeys := make([]*primitives.Point, len(params.Receivers))
	var pkErrs *multierror.Error
	for i, r := range params.Receivers {
		pk, err := reg.GetMEGaPubkey(r, params.RegistryVersion)
		if err != nil {
			pkErrs = multierror.Append(pkErrs, errors.Wrapf(idkg.ErrPublicKeyNotFound, "receiver %q: %v", r, err))
			continue
		}
		receiverPubKeys[i] = pk.Point
	}
	if err := pkErrs.ErrorOrNil(); err != nil {
		return idkg.Dealing{}, err
	}

	secret, err := resolveSecret(params.Operation, callerID, store)
	if err != nil {
		return idkg.Dealing{}, err
	}

	rnd := deterministicSource(seed, callerID, params.TranscriptId)
	threshold := params.ReconstructionThreshold()

	base := primitives.MulBase(primitives.ScalarFromInt(1))
	ctx := []byte(params.TranscriptId.String() + "/" + string(params.AlgorithmID))

	var w dealingWireV1
	w.EphemeralKey = nil

	if usesSimpleCommitment(params.Operation) {
		valuePoly, err := primitives.NewPriPoly(threshold, secret, rnd)
		if err != nil {
			return idkg.Dealing{}, errors.Wrap(err, "sample value polynomial")
		}
		commitment := primitives.NewSimpleCommitment(valuePoly, base)
		ct, _, err := primitives.EncryptSingle(rnd, ctx, receiverPubKeys, shares(valuePoly, len(params.Receivers)))
		if err != nil {
			return idkg.Dealing{}, errors.Wrap(err, "MEGa encrypt")
		}
		w.CommitmentType, w.CommitmentBase, w.CommitmentMask, w.Commits = encodeCommitment(commitment)
		w.EphemeralKey = ct.EphemeralKey.Bytes()
		w.CiphertextSingle = ct.Ciphertexts

		if err := attachReshareProof(&w, params.Operation, callerID, commitment, nil, store, rnd); err != nil {
			return idkg.Dealing{}, err
		}
	} else {
		valuePoly, err := primitives.NewPriPoly(threshold, secret, rnd)
		if err != nil {
			return idkg.Dealing{}, errors.Wrap(err, "sample value polynomial")
		}
		maskPoly, err := primitives.NewPriPoly(threshold, nil, rnd)
		if err != nil {
			return idkg.Dealing{}, errors.Wrap(err, "sample mask polynomial")
		}
		commitment, err := primitives.NewPedersenCommitment(valuePoly, maskPoly, base, sch.MaskGenerator)
		if err != nil {
			return idkg.Dealing{}, errors.Wrap(err, "commit")
		}

		pairs := make([][2]*primitives.Scalar, len(params.Receivers))
		for i := range params.Receivers {
			pairs[i] = [2]*primitives.Scalar{valuePoly.Eval(uint32(i)).V, maskPoly.Eval(uint32(i)).V}
		}
		ct, _, err := primitives.EncryptPairs(rnd, ctx, receiverPubKeys, pairs)
		if err != nil {
			return idkg.Dealing{}, errors.Wrap(err, "MEGa encrypt")
		}
		w.CommitmentType, w.CommitmentBase, w.CommitmentMask, w.Commits = encodeCommitment(commitment)
		w.EphemeralKey = ct.EphemeralKey.Bytes()
		w.CiphertextPairsA = make([][]byte, len(ct.Ciphertexts))
		w.CiphertextPairsB = make([][]byte, len(ct.Ciphertexts))
		for i, pair := range ct.Ciphertexts {
			w.CiphertextPairsA[i] = pair[0]
			w.CiphertextPairsB[i] = pair[1]
		}

		if err := attachReshareProof(&w, params.Operation, callerID, commitment, maskPoly, store, rnd); err != nil {
			return idkg.Dealing{}, err
		}
	}

	payload, err := primitives.MarshalCBOR(w)
	if err != nil {
		return idkg.Dealing{}, errors.Wrap(idkg.ErrSerializationError, err.Error())
	}
	raw, err := primitives.EncodeRaw(dealingWireVersion, string(params.AlgorithmID), payload)
	if err != nil {
		return idkg.Dealing{}, errors.Wrap(idkg.ErrSerializationError, err.Error())
	}

	return idkg.Dealing{
		TranscriptId:       params.TranscriptId,
		DealerID:           callerID,
		InternalDealingRaw: raw,
	}, nil
}

func shares(poly *primitives.PriPoly, n int) []*primitives.Scalar {
	out := make([]*primitives.Scalar, n)
	for i := 0; i < n; i++ {
		out[i] = poly.Eval(uint32(i)).V
	}
	return out
}

// resolveSecret computes f(0) per spec.md §4.1: fresh random for Random,
// the caller's stored share for Reshare*, the product of two stored shares
// for UnmaskedTimesMasked.
func resolveSecret(op idkg.OperationType, callerID idkg.NodeID, store *keystore.Store) (*primitives.Scalar, error) {
	switch op.Kind {
	case idkg.OpRandom:
		return nil, nil // NewPriPoly draws a fresh secret when nil
	case idkg.OpReshareOfMasked, idkg.OpReshareOfUnmasked:
		s, ok := store.LoadTranscriptShare(op.Prev.TranscriptId)
		if !ok {
			return nil, idkg.ErrSecretSharesNotFound
		}
		return s, nil
	case idkg.OpUnmaskedTimesMasked:
		u, ok := store.LoadTranscriptShare(op.Unmasked.TranscriptId)
		if !ok {
			return nil, idkg.ErrSecretSharesNotFound
		}
		m, ok := store.LoadTranscriptShare(op.Masked.TranscriptId)
		if !ok {
			return nil, idkg.ErrSecretSharesNotFound
		}
		return primitives.NewScalar().Mul(u, m), nil
	default:
		return nil, idkg.NewFault("unknown operation kind")
	}
}

// attachReshareProof attaches the NIZK spec.md §4.1 calls for on reshare
// dealings, binding the value just committed (in commitment) to the
// dealer's real share of the transcript being reshared (op.Prev), rather
// than merely to itself.
//
// Write C_i for op.Prev's aggregate commitment evaluated at this dealer's
// index there, and D for commitment's constant term. Because the dealer
// only ever reshares its own stored share of op.Prev (resolveSecret), an
// honest commitment makes C_i - D collapse to r*H for H the Pedersen mask
// generator and r a value the dealer alone can compute: the prior share's
// mask (if op.Prev was Pedersen-committed) minus this dealing's own fresh
// mask constant (if commitment is itself Pedersen-committed). A Schnorr
// proof of knowledge of that r — expressed via DLEQProof in its degenerate
// single-base form, g=h=H — is exactly a proof that the two commitments
// open to the same value, without revealing either share.
func attachReshareProof(w *dealingWireV1, op idkg.OperationType, callerID idkg.NodeID, commitment *primitives.Commitment, maskPoly *primitives.PriPoly, store *keystore.Store, rnd io.Reader) error {
	if op.Kind != idkg.OpReshareOfUnmasked && op.Kind != idkg.OpReshareOfMasked {
		return nil
	}

	priorCommitment, err := idkg.AggregateCommitment(op.Prev)
	if err != nil {
		return errors.Wrap(err, "reshare equality proof: decode prior transcript commitment")
	}
	priorIndex, ok := indexOf(op.Prev.Receivers, callerID)
	if !ok {
		return idkg.NewFault("dealer is not a receiver of the transcript it is resharing")
	}

	r := primitives.NewScalar()
	if priorCommitment.Type == primitives.CommitmentPedersen {
		maskShare, ok := store.LoadTranscriptMaskShare(op.Prev.TranscriptId)
		if !ok {
			return idkg.ErrSecretSharesNotFound
		}
		r.Add(r, maskShare)
	}
	if commitment.Type == primitives.CommitmentPedersen {
		r = primitives.NewScalar().Sub(r, maskPoly.Secret())
	}

	ci := priorCommitment.Eval(uint32(priorIndex))
	d := commitment.ConstantTerm()
	xExpected := primitives.NewPoint().Sub(ci, d)

	h := reshareProofBase(priorCommitment, commitment)
	proof, xg, _, err := primitives.NewDLEQProof(rnd, h, h, r)
	if err != nil {
		return errors.Wrap(err, "reshare equality proof")
	}
	if !xg.Equal(xExpected) {
		// r was derived wrong relative to the commitment actually built —
		// a bug upstream, not something an honest caller should hit.
		return idkg.NewFault("reshare equality proof: computed witness does not match commitment")
	}

	w.HasReshareProof = true
	w.ReshareProofC = proof.C.Bytes()
	w.ReshareProofR = proof.R.Bytes()
	w.ReshareProofVG = proof.VG.Bytes()
	w.ReshareProofVH = proof.VH.Bytes()
	return nil
}

// reshareProofBase returns the single base H the reshare-equality proof runs
// its DLEQ over: the Pedersen mask generator of whichever of the two
// commitments is Pedersen-committed, since C_i - D is a multiple of exactly
// that point. When neither is, r is zero and a proof-local generator derived
// from reshareProofMaskDomain is used.
func reshareProofBase(prior, current *primitives.Commitment) *primitives.Point {
	if prior.Type == primitives.CommitmentPedersen {
		return prior.Mask
	}
	if current.Type == primitives.CommitmentPedersen {
		return current.Mask
	}
	return primitives.HashHint(reshareProofMaskDomain)
}

const reshareProofMaskDomain = "idkg-reshare-equality-proof-v1"

func indexOf(ids []idkg.NodeID, id idkg.NodeID) (int, bool) {
	for i, r := range ids {
		if r == id {
			return i, true
		}
	}
	return 0, false
}
