package dealing

import (
	"github.com/pkg/errors"

	"github.com/dkgmesh/idkg/idkg"
	"github.com/dkgmesh/idkg/keystore"
	"github.com/dkgmesh/idkg/primitives"
)

// decodeDealing unwraps a Dealing's InternalDealingRaw into the concrete
// wire struct, checking the schema version and algorithm id tag.
func decodeDealing(params *idkg.TranscriptParams, d idkg.Dealing) (dealingWireV1, error) {
	env, err := primitives.DecodeRaw(d.InternalDealingRaw)
	if err != nil {
		return dealingWireV1{}, errors.Wrap(idkg.ErrTranscodingError, err.Error())
	}
	if env.Version != dealingWireVersion || env.AlgorithmID != string(params.AlgorithmID) {
		return dealingWireV1{}, idkg.ErrTranscodingError
	}
	var w dealingWireV1
	if err := primitives.UnmarshalCBOR(env.Payload, &w); err != nil {
		return dealingWireV1{}, errors.Wrap(idkg.ErrTranscodingError, err.Error())
	}
	return w, nil
}

// ExtractCommitment decodes d's public commitment, without touching any
// ciphertext. Used by transcript.CreateTranscript/VerifyTranscript to
// aggregate dealings without duplicating this package's wire knowledge.
func ExtractCommitment(params *idkg.TranscriptParams, d idkg.Dealing) (*primitives.Commitment, error) {
	w, err := decodeDealing(params, d)
	if err != nil {
		return nil, err
	}
	return decodeCommitment(w.CommitmentType, w.CommitmentBase, w.CommitmentMask, w.Commits)
}

// EphemeralKey decodes d's MEGa ephemeral key, without touching any
// ciphertext or ownership check. Used by transcript/ for complaint filing
// and verification, which both need to recompute an ECDH shared point
// against this dealing's ephemeral key.
func EphemeralKey(params *idkg.TranscriptParams, d idkg.Dealing) (*primitives.Point, error) {
	w, err := decodeDealing(params, d)
	if err != nil {
		return nil, err
	}
	return primitives.PointFromBytes(w.EphemeralKey)
}

// DecryptShareFromSharedPoint decrypts the receiverIndex entry of d given an
// already-derived ECDH shared point, rather than the receiver's own secret
// key. Used by transcript.VerifyComplaint, where the shared point comes from
// a complainer's disclosure rather than from the verifier's own key. mask is
// nil when d is Simple-committed.
func DecryptShareFromSharedPoint(params *idkg.TranscriptParams, d idkg.Dealing, receiverIndex uint32, sharedPoint *primitives.Point) (value, mask *primitives.Scalar, err error) {
	w, err := decodeDealing(params, d)
	if err != nil {
		return nil, nil, err
	}
	ctx := []byte(params.TranscriptId.String() + "/" + string(params.AlgorithmID))

	if w.CommitmentType == 0 {
		ct := &primitives.MEGaCiphertextSingle{Ciphertexts: w.CiphertextSingle}
		value, err = primitives.DecryptSingleFromSharedPoint(ct, receiverIndex, sharedPoint, ctx)
		return value, nil, err
	}

	pairs := make([][2][]byte, len(w.CiphertextPairsA))
	for i := range pairs {
		pairs[i] = [2][]byte{w.CiphertextPairsA[i], w.CiphertextPairsB[i]}
	}
	ct := &primitives.MEGaCiphertextPairs{Ciphertexts: pairs}
	value, mask, err = primitives.DecryptPairsFromSharedPoint(ct, receiverIndex, sharedPoint, ctx)
	return value, mask, err
}

// DecryptShare decrypts the caller's entry of d under its own MEGa secret
// key and reports whether decryption was structurally possible and
// consistent with d's commitment, without storing anything. Used by
// transcript.LoadTranscript, which must distinguish "consistent share" from
// "file a complaint" without the side effects VerifyDealingPrivate has.
func DecryptShare(params *idkg.TranscriptParams, d idkg.Dealing, callerID idkg.NodeID, callerSecret *primitives.Scalar) (value, mask *primitives.Scalar, consistent bool, err error) {
	receiverIndex, ok := params.IndexForReceiverID(callerID)
	if !ok {
		return nil, nil, false, idkg.ErrNotAReceiver
	}
	w, err := decodeDealing(params, d)
	if err != nil {
		return nil, nil, false, err
	}
	commitment, err := decodeCommitment(w.CommitmentType, w.CommitmentBase, w.CommitmentMask, w.Commits)
	if err != nil {
		return nil, nil, false, errors.Wrap(idkg.ErrInvalidDealing, err.Error())
	}
	ephKey, err := primitives.PointFromBytes(w.EphemeralKey)
	if err != nil {
		return nil, nil, false, errors.Wrap(idkg.ErrInvalidDealing, err.Error())
	}
	shared := primitives.DHShared(callerSecret, ephKey)

	value, mask, err = DecryptShareFromSharedPoint(params, d, uint32(receiverIndex), shared)
	if err != nil {
		return nil, nil, false, nil
	}

	valueShare := &primitives.PriShare{I: uint32(receiverIndex), V: value}
	if commitment.Type == primitives.CommitmentSimple {
		return value, nil, commitment.CheckSimple(valueShare), nil
	}
	maskShare := &primitives.PriShare{I: uint32(receiverIndex), V: mask}
	return value, mask, commitment.CheckPedersen(valueShare, maskShare), nil
}

// VerifyDealingPublic implements verify_dealing_public: structural and
// cryptographic checks every receiver (or an outside auditor) can perform
// without any private key — commitment shape, ciphertext lengths and, for
// reshare dealings, the equality proof against the prior transcript.
func VerifyDealingPublic(params *idkg.TranscriptParams, d idkg.Dealing) error {
	if !params.IsDealer(d.DealerID) {
		return idkg.ErrDealerNotAllowed
	}
	if d.TranscriptId != params.TranscriptId {
		return idkg.ErrInvalidDealing
	}

	w, err := decodeDealing(params, d)
	if err != nil {
		return err
	}

	commitment, err := decodeCommitment(w.CommitmentType, w.CommitmentBase, w.CommitmentMask, w.Commits)
	if err != nil {
		return errors.Wrap(idkg.ErrInvalidDealing, err.Error())
	}
	if commitment.Threshold() != params.ReconstructionThreshold() {
		return idkg.ErrInvalidDealing
	}

	n := len(params.Receivers)
	if usesSimpleCommitment(params.Operation) {
		if commitment.Type != primitives.CommitmentSimple || len(w.CiphertextSingle) != n {
			return idkg.ErrInvalidDealing
		}
	} else {
		if commitment.Type != primitives.CommitmentPedersen || len(w.CiphertextPairsA) != n || len(w.CiphertextPairsB) != n {
			return idkg.ErrInvalidDealing
		}
	}

	if params.Operation.Kind == idkg.OpReshareOfMasked || params.Operation.Kind == idkg.OpReshareOfUnmasked {
		if !w.HasReshareProof {
			return idkg.ErrInvalidDealing
		}
		if err := verifyReshareProof(w, commitment, d.DealerID, params.Operation.Prev); err != nil {
			return errors.Wrap(idkg.ErrInvalidDealing, err.Error())
		}
	}

	return nil
}

// verifyReshareProof checks the NIZK binding commitment's constant term to
// dealerID's real share of prev, the transcript being reshared: it
// independently recomputes the two public points the proof attests are
// equal (prev's aggregate commitment at dealerID's index there, minus
// commitment's own constant term) rather than trusting any point off the
// wire, then verifies the DLEQProof against them.
func verifyReshareProof(w dealingWireV1, commitment *primitives.Commitment, dealerID idkg.NodeID, prev *idkg.Transcript) error {
	if prev == nil {
		return idkg.NewFault("reshare operation has no prior transcript")
	}
	priorCommitment, err := idkg.AggregateCommitment(prev)
	if err != nil {
		return err
	}
	priorIndex, ok := indexOf(prev.Receivers, dealerID)
	if !ok {
		return idkg.NewFault("dealer is not a receiver of the transcript it claims to reshare")
	}

	ci := priorCommitment.Eval(uint32(priorIndex))
	d := commitment.ConstantTerm()
	x := primitives.NewPoint().Sub(ci, d)

	c, err := primitives.ScalarFromBytes(w.ReshareProofC)
	if err != nil {
		return err
	}
	r, err := primitives.ScalarFromBytes(w.ReshareProofR)
	if err != nil {
		return err
	}
	vg, err := primitives.PointFromBytes(w.ReshareProofVG)
	if err != nil {
		return err
	}
	vh, err := primitives.PointFromBytes(w.ReshareProofVH)
	if err != nil {
		return err
	}

	h := reshareProofBase(priorCommitment, commitment)
	proof := &primitives.DLEQProof{C: c, R: r, VG: vg, VH: vh}
	return proof.Verify(h, h, x, x)
}

// VerifyDealingPrivate implements verify_dealing_private: the caller, as one
// of params.Receivers, decrypts its own share(s) from d under its MEGa
// secret key and checks them against d's commitment, persisting the
// decrypted share(s) in store on success.
func VerifyDealingPrivate(
	params *idkg.TranscriptParams,
	d idkg.Dealing,
	callerID idkg.NodeID,
	callerSecret *primitives.Scalar,
	store *keystore.Store,
) error {
	receiverIndex, ok := params.IndexForReceiverID(callerID)
	if !ok {
		return idkg.ErrNotAReceiver
	}

	w, err := decodeDealing(params, d)
	if err != nil {
		return err
	}
	commitment, err := decodeCommitment(w.CommitmentType, w.CommitmentBase, w.CommitmentMask, w.Commits)
	if err != nil {
		return errors.Wrap(idkg.ErrInvalidDealing, err.Error())
	}

	ctx := []byte(params.TranscriptId.String() + "/" + string(params.AlgorithmID))
	ephKey, err := primitives.PointFromBytes(w.EphemeralKey)
	if err != nil {
		return errors.Wrap(idkg.ErrInvalidDealing, err.Error())
	}

	dealerIndex, _ := params.IndexForDealerID(d.DealerID)

	if commitment.Type == primitives.CommitmentSimple {
		ct := &primitives.MEGaCiphertextSingle{EphemeralKey: ephKey, Ciphertexts: w.CiphertextSingle}
		value, err := primitives.DecryptSingle(ct, uint32(receiverIndex), callerSecret, ctx)
		if err != nil {
			return errors.Wrap(idkg.ErrInvalidDealing, err.Error())
		}
		share := &primitives.PriShare{I: uint32(receiverIndex), V: value}
		if !commitment.CheckSimple(share) {
			return idkg.ErrInvalidDealing
		}
		return store.StoreDealerShare(params.TranscriptId, dealerIndex, value)
	}

	pairs := make([][2][]byte, len(w.CiphertextPairsA))
	for i := range pairs {
		pairs[i] = [2][]byte{w.CiphertextPairsA[i], w.CiphertextPairsB[i]}
	}
	ct := &primitives.MEGaCiphertextPairs{EphemeralKey: ephKey, Ciphertexts: pairs}
	value, mask, err := primitives.DecryptPairs(ct, uint32(receiverIndex), callerSecret, ctx)
	if err != nil {
		return errors.Wrap(idkg.ErrInvalidDealing, err.Error())
	}
	valueShare := &primitives.PriShare{I: uint32(receiverIndex), V: value}
	maskShare := &primitives.PriShare{I: uint32(receiverIndex), V: mask}
	if !commitment.CheckPedersen(valueShare, maskShare) {
		return idkg.ErrInvalidDealing
	}
	return store.StoreDealerShare(params.TranscriptId, dealerIndex, value)
}
