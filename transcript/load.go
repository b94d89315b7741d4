// Package transcript implements spec.md §4.2's receiver-side operations:
// assembling verified dealings into a Transcript, loading shares from it
// (filing complaints on undecryptable dealings), and resolving complaints
// via openings.
package transcript

import (
	"crypto/rand"
	"sort"

	"github.com/pkg/errors"

	"github.com/dkgmesh/idkg/dealing"
	"github.com/dkgmesh/idkg/idkg"
	"github.com/dkgmesh/idkg/keystore"
	"github.com/dkgmesh/idkg/primitives"
	"github.com/dkgmesh/idkg/registry"
)

// LoadTranscript implements load_transcript. If callerID is not among
// t.Receivers this is a no-op success, per spec.md §4.2. For each verified
// dealing, the caller's share is decrypted and checked against that
// dealing's commitment; consistent shares are persisted and summed into the
// caller's aggregated transcript share, inconsistent ones produce a
// Complaint instead. Idempotent: re-running against an already-loaded
// transcript re-derives the same result.
func LoadTranscript(params *idkg.TranscriptParams, t *idkg.Transcript, callerID idkg.NodeID, callerSecret *primitives.Scalar, store *keystore.Store) ([]idkg.Complaint, error) {
	if _, ok := params.IndexForReceiverID(callerID); !ok {
		return nil, nil
	}

	dealerIndices := make([]int, 0, len(t.VerifiedDealings))
	for idx := range t.VerifiedDealings {
		dealerIndices = append(dealerIndices, idx)
	}
	sort.Ints(dealerIndices)

	var complaints []idkg.Complaint
	aggregated := primitives.NewScalar()
	aggregatedMask := primitives.NewScalar()
	haveGoodShare := false
	haveMask := false

	for _, dealerIndex := range dealerIndices {
		sd := t.VerifiedDealings[dealerIndex]
		dealerID, _ := params.DealerIDForIndex(dealerIndex)

		value, mask, consistent, err := dealing.DecryptShare(params, sd.Dealing, callerID, callerSecret)
		if err != nil {
			return nil, err
		}

		if consistent {
			if err := store.StoreDealerShare(t.TranscriptId, dealerIndex, value); err != nil {
				return nil, err
			}
			aggregated = primitives.NewScalar().Add(aggregated, value)
			if mask != nil {
				if err := store.StoreDealerMaskShare(t.TranscriptId, dealerIndex, mask); err != nil {
					return nil, err
				}
				aggregatedMask = primitives.NewScalar().Add(aggregatedMask, mask)
				haveMask = true
			}
			haveGoodShare = true
			continue
		}

		complaint, err := fileComplaint(params, t, dealerID, callerID, callerSecret, sd.Dealing)
		if err != nil {
			return nil, err
		}
		complaints = append(complaints, complaint)
	}

	if len(complaints) == 0 && haveGoodShare {
		if err := store.StoreTranscriptShare(t.TranscriptId, aggregated); err != nil {
			return nil, err
		}
		if haveMask {
			if err := store.StoreTranscriptMaskShare(t.TranscriptId, aggregatedMask); err != nil {
				return nil, err
			}
		}
	}

	return complaints, nil
}

// fileComplaint builds a Complaint disclosing the ECDH shared point the
// caller derived for dealerID's dealing, plus a DLEQ proof that it was
// honestly derived from the caller's registered public key — see wire.go's
// complaintWireV1 doc.
func fileComplaint(params *idkg.TranscriptParams, t *idkg.Transcript, dealerID, callerID idkg.NodeID, callerSecret *primitives.Scalar, d idkg.Dealing) (idkg.Complaint, error) {
	ephKey, err := dealing.EphemeralKey(params, d)
	if err != nil {
		return idkg.Complaint{}, errors.Wrap(idkg.ErrInvalidDealing, err.Error())
	}

	shared := primitives.DHShared(callerSecret, ephKey)
	g := primitives.MulBase(primitives.ScalarFromInt(1))
	proof, _, _, err := primitives.NewDLEQProof(rand.Reader, g, ephKey, callerSecret)
	if err != nil {
		return idkg.Complaint{}, err
	}

	w := complaintWireV1{
		SharedPoint: shared.Bytes(),
		ProofC:      proof.C.Bytes(),
		ProofR:      proof.R.Bytes(),
		ProofVG:     proof.VG.Bytes(),
		ProofVH:     proof.VH.Bytes(),
	}
	payload, err := primitives.MarshalCBOR(w)
	if err != nil {
		return idkg.Complaint{}, errors.Wrap(idkg.ErrSerializationError, err.Error())
	}
	raw, err := primitives.EncodeRaw(complaintWireVersion, string(params.AlgorithmID), payload)
	if err != nil {
		return idkg.Complaint{}, errors.Wrap(idkg.ErrSerializationError, err.Error())
	}

	return idkg.Complaint{
		TranscriptId:         t.TranscriptId,
		DealerID:             dealerID,
		ComplainerID:         callerID,
		InternalComplaintRaw: raw,
	}, nil
}

// VerifyComplaint independently checks a Complaint: that the disclosed
// shared point was honestly derived from the complainer's registered public
// key, and that the resulting decryption indeed fails the dealing's
// commitment at the complainer's index. A complaint against a share that
// turns out to be consistent is itself rejected as unfounded.
func VerifyComplaint(params *idkg.TranscriptParams, t *idkg.Transcript, reg registry.Registry, c idkg.Complaint) error {
	complainerIndex, ok := params.IndexForReceiverID(c.ComplainerID)
	if !ok {
		return idkg.ErrInvalidComplaint
	}
	dealerIndex, ok := params.IndexForDealerID(c.DealerID)
	if !ok {
		return idkg.ErrInvalidComplaint
	}
	sd, ok := t.VerifiedDealings[dealerIndex]
	if !ok {
		return idkg.ErrInvalidComplaint
	}

	env, err := primitives.DecodeRaw(c.InternalComplaintRaw)
	if err != nil || env.Version != complaintWireVersion {
		return idkg.ErrInvalidComplaint
	}
	var w complaintWireV1
	if err := primitives.UnmarshalCBOR(env.Payload, &w); err != nil {
		return idkg.ErrInvalidComplaint
	}

	sharedPoint, errSP := primitives.PointFromBytes(w.SharedPoint)
	proofC, errC := primitives.ScalarFromBytes(w.ProofC)
	proofR, errR := primitives.ScalarFromBytes(w.ProofR)
	proofVG, errVG := primitives.PointFromBytes(w.ProofVG)
	proofVH, errVH := primitives.PointFromBytes(w.ProofVH)
	if errSP != nil || errC != nil || errR != nil || errVG != nil || errVH != nil {
		return idkg.ErrInvalidComplaint
	}

	pk, err := reg.GetMEGaPubkey(c.ComplainerID, params.RegistryVersion)
	if err != nil {
		return errors.Wrap(idkg.ErrInvalidComplaint, err.Error())
	}
	ephKey, err := dealing.EphemeralKey(params, sd.Dealing)
	if err != nil {
		return errors.Wrap(idkg.ErrInvalidComplaint, err.Error())
	}

	g := primitives.MulBase(primitives.ScalarFromInt(1))
	proof := &primitives.DLEQProof{C: proofC, R: proofR, VG: proofVG, VH: proofVH}
	if err := proof.Verify(g, ephKey, pk.Point, sharedPoint); err != nil {
		return idkg.ErrInvalidComplaint
	}

	commitment, err := dealing.ExtractCommitment(params, sd.Dealing)
	if err != nil {
		return errors.Wrap(idkg.ErrInvalidComplaint, err.Error())
	}

	value, mask, err := dealing.DecryptShareFromSharedPoint(params, sd.Dealing, uint32(complainerIndex), sharedPoint)
	if err != nil {
		return errors.Wrap(idkg.ErrInvalidComplaint, err.Error())
	}

	valueShare := &primitives.PriShare{I: uint32(complainerIndex), V: value}
	var consistent bool
	if commitment.Type == primitives.CommitmentSimple {
		consistent = commitment.CheckSimple(valueShare)
	} else {
		maskShare := &primitives.PriShare{I: uint32(complainerIndex), V: mask}
		consistent = commitment.CheckPedersen(valueShare, maskShare)
	}

	if consistent {
		return idkg.ErrInvalidComplaint
	}
	return nil
}

// OpenDealing implements open_transcript: the opener, who must itself hold a
// consistent share of dealerID's dealing, discloses that share in the clear
// so other receivers can resolve a complaint against it without the
// opener's secret key. t must have been through a successful VerifyTranscript
// call first — opening a share against a transcript nobody has checked would
// let a caller manufacture an unverified "transcript" purely to extract a
// real share from an honest opener.
func OpenDealing(params *idkg.TranscriptParams, t *idkg.Transcript, dealerID, openerID idkg.NodeID, openerSecret *primitives.Scalar) (idkg.Opening, error) {
	if !t.Verified {
		return idkg.Opening{}, idkg.ErrTranscriptNotVerified
	}
	dealerIndex, ok := params.IndexForDealerID(dealerID)
	if !ok {
		return idkg.Opening{}, idkg.ErrInvalidTranscript
	}
	sd, ok := t.VerifiedDealings[dealerIndex]
	if !ok {
		return idkg.Opening{}, idkg.ErrInvalidTranscript
	}

	value, mask, consistent, err := dealing.DecryptShare(params, sd.Dealing, openerID, openerSecret)
	if err != nil {
		return idkg.Opening{}, err
	}
	if !consistent {
		return idkg.Opening{}, idkg.ErrInvalidOpening
	}

	w := openingWireV1{Value: value.Bytes()}
	if mask != nil {
		w.Mask = mask.Bytes()
	}
	payload, err := primitives.MarshalCBOR(w)
	if err != nil {
		return idkg.Opening{}, errors.Wrap(idkg.ErrSerializationError, err.Error())
	}
	raw, err := primitives.EncodeRaw(openingWireVersion, string(params.AlgorithmID), payload)
	if err != nil {
		return idkg.Opening{}, errors.Wrap(idkg.ErrSerializationError, err.Error())
	}

	return idkg.Opening{
		TranscriptId:       t.TranscriptId,
		DealerID:           dealerID,
		OpenerID:           openerID,
		InternalOpeningRaw: raw,
	}, nil
}

// VerifyOpening implements verify_opening: checks o's disclosed share
// against dealerID's commitment at the opener's own index.
func VerifyOpening(params *idkg.TranscriptParams, t *idkg.Transcript, o idkg.Opening) error {
	openerIndex, ok := params.IndexForReceiverID(o.OpenerID)
	if !ok {
		return idkg.ErrInvalidOpening
	}
	dealerIndex, ok := params.IndexForDealerID(o.DealerID)
	if !ok {
		return idkg.ErrInvalidOpening
	}
	sd, ok := t.VerifiedDealings[dealerIndex]
	if !ok {
		return idkg.ErrInvalidOpening
	}

	env, err := primitives.DecodeRaw(o.InternalOpeningRaw)
	if err != nil || env.Version != openingWireVersion {
		return idkg.ErrInvalidOpening
	}
	var w openingWireV1
	if err := primitives.UnmarshalCBOR(env.Payload, &w); err != nil {
		return idkg.ErrInvalidOpening
	}
	value, err := primitives.ScalarFromBytes(w.Value)
	if err != nil {
		return idkg.ErrInvalidOpening
	}

	commitment, err := dealing.ExtractCommitment(params, sd.Dealing)
	if err != nil {
		return errors.Wrap(idkg.ErrInvalidOpening, err.Error())
	}

	valueShare := &primitives.PriShare{I: uint32(openerIndex), V: value}
	if commitment.Type == primitives.CommitmentSimple {
		if !commitment.CheckSimple(valueShare) {
			return idkg.ErrInvalidOpening
		}
		return nil
	}
	if len(w.Mask) == 0 {
		return idkg.ErrInvalidOpening
	}
	mask, err := primitives.ScalarFromBytes(w.Mask)
	if err != nil {
		return idkg.ErrInvalidOpening
	}
	maskShare := &primitives.PriShare{I: uint32(openerIndex), V: mask}
	if !commitment.CheckPedersen(valueShare, maskShare) {
		return idkg.ErrInvalidOpening
	}
	return nil
}

// LoadTranscriptWithOpenings implements load_transcript_with_openings: given
// at least params.ReconstructionThreshold() verified Openings resolving a
// complaint against one dealer's dealing, interpolate the caller's own
// share at its index and persist it exactly as a consistent decryption
// would have, then fold it into the caller's aggregated transcript share
// alongside whatever other dealers' shares LoadTranscript already stored.
func LoadTranscriptWithOpenings(params *idkg.TranscriptParams, t *idkg.Transcript, callerID idkg.NodeID, openings map[idkg.NodeID]idkg.Opening, store *keystore.Store) error {
	callerIndex, ok := params.IndexForReceiverID(callerID)
	if !ok {
		return nil
	}
	if len(openings) < params.ReconstructionThreshold() {
		return errors.Wrapf(idkg.ErrUnsatisfiedReconstructionThreshold, "need %d, have %d", params.ReconstructionThreshold(), len(openings))
	}

	var dealerID idkg.NodeID
	shares := make([]*primitives.PriShare, 0, len(openings))
	maskShares := make([]*primitives.PriShare, 0, len(openings))
	haveMask := false
	for openerID, o := range openings {
		if o.OpenerID != openerID {
			return idkg.ErrInvalidOpening
		}
		openerIndex, ok := params.IndexForReceiverID(openerID)
		if !ok {
			return idkg.ErrInvalidOpening
		}
		if dealerID == "" {
			dealerID = o.DealerID
		} else if dealerID != o.DealerID {
			return idkg.ErrInvalidOpening
		}
		if err := VerifyOpening(params, t, o); err != nil {
			return err
		}

		env, err := primitives.DecodeRaw(o.InternalOpeningRaw)
		if err != nil {
			return errors.Wrap(idkg.ErrInvalidOpening, err.Error())
		}
		var w openingWireV1
		if err := primitives.UnmarshalCBOR(env.Payload, &w); err != nil {
			return errors.Wrap(idkg.ErrInvalidOpening, err.Error())
		}
		value, err := primitives.ScalarFromBytes(w.Value)
		if err != nil {
			return errors.Wrap(idkg.ErrInvalidOpening, err.Error())
		}
		shares = append(shares, &primitives.PriShare{I: uint32(openerIndex), V: value})

		if len(w.Mask) != 0 {
			mask, err := primitives.ScalarFromBytes(w.Mask)
			if err != nil {
				return errors.Wrap(idkg.ErrInvalidOpening, err.Error())
			}
			maskShares = append(maskShares, &primitives.PriShare{I: uint32(openerIndex), V: mask})
			haveMask = true
		}
	}

	dealerIndex, ok := params.IndexForDealerID(dealerID)
	if !ok {
		return idkg.ErrInvalidTranscript
	}

	callerValue, err := primitives.RecoverShareAt(shares, params.ReconstructionThreshold(), uint32(callerIndex))
	if err != nil {
		return errors.Wrap(idkg.ErrUnsatisfiedReconstructionThreshold, err.Error())
	}
	if err := store.StoreDealerShare(t.TranscriptId, dealerIndex, callerValue); err != nil {
		return err
	}

	if haveMask {
		if len(maskShares) < params.ReconstructionThreshold() {
			return errors.Wrap(idkg.ErrUnsatisfiedReconstructionThreshold, "insufficient mask openings")
		}
		callerMask, err := primitives.RecoverShareAt(maskShares, params.ReconstructionThreshold(), uint32(callerIndex))
		if err != nil {
			return errors.Wrap(idkg.ErrUnsatisfiedReconstructionThreshold, err.Error())
		}
		if err := store.StoreDealerMaskShare(t.TranscriptId, dealerIndex, callerMask); err != nil {
			return err
		}
	}

	aggregated := primitives.NewScalar()
	aggregatedMask := primitives.NewScalar()
	haveAnyMask := false
	for idx := range t.VerifiedDealings {
		if share, ok := store.LoadDealerShare(t.TranscriptId, idx); ok {
			aggregated = primitives.NewScalar().Add(aggregated, share)
		}
		if mask, ok := store.LoadDealerMaskShare(t.TranscriptId, idx); ok {
			aggregatedMask = primitives.NewScalar().Add(aggregatedMask, mask)
			haveAnyMask = true
		}
	}
	if err := store.StoreTranscriptShare(t.TranscriptId, aggregated); err != nil {
		return err
	}
	if haveAnyMask {
		return store.StoreTranscriptMaskShare(t.TranscriptId, aggregatedMask)
	}
	return nil
}
