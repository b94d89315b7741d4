// Package transcript implements spec.md §4.2: assembling verified dealings
// into a Transcript, loading shares from it (filing complaints on
// undecryptable dealings), and resolving complaints via openings.
package transcript

import (
	"sort"

	"github.com/pkg/errors"

	"github.com/dkgmesh/idkg/dealing"
	"github.com/dkgmesh/idkg/idkg"
	"github.com/dkgmesh/idkg/multisig"
	"github.com/dkgmesh/idkg/primitives"
	"github.com/dkgmesh/idkg/registry"
)

// registryKeyProvider adapts a registry.Registry, pinned to one
// registry_version, into a multisig.KeyProvider: this reference deployment
// reuses each node's MEGa public key as its multisig signing key rather than
// maintaining a second identity table, since spec.md specifies the
// multi-signature adapter only by its sign/combine/verify contract, not a
// concrete key-management story.
type registryKeyProvider struct {
	reg     registry.Registry
	version uint64
}

func (r registryKeyProvider) PublicKey(id idkg.NodeID) (*primitives.Point, error) {
	pk, err := r.reg.GetMEGaPubkey(id, r.version)
	if err != nil {
		return nil, err
	}
	return pk.Point, nil
}

func dealingSigningPayload(d idkg.Dealing) []byte {
	return append([]byte(d.DealerID+"/"+d.TranscriptId.String()), d.InternalDealingRaw...)
}

// CreateTranscript implements create_transcript.
func CreateTranscript(params *idkg.TranscriptParams, reg registry.Registry, dealings map[idkg.NodeID]idkg.SignedDealing) (*idkg.Transcript, error) {
	if len(dealings) < params.CollectionThreshold() {
		return nil, errors.Wrapf(idkg.ErrUnsatisfiedCollectionThreshold, "need %d, have %d", params.CollectionThreshold(), len(dealings))
	}

	keys := registryKeyProvider{reg: reg, version: params.RegistryVersion}
	verified := make(map[int]idkg.SignedDealing, len(dealings))

	for dealerID, sd := range dealings {
		if !params.IsDealer(dealerID) {
			return nil, errors.Wrapf(idkg.ErrDealerNotAllowed, "dealer %q", dealerID)
		}
		for _, signer := range sd.Signers {
			if !params.IsReceiver(signer) {
				return nil, errors.Wrapf(idkg.ErrSignerNotAllowed, "signer %q", signer)
			}
		}
		if len(sd.Signers) < params.VerificationThreshold() {
			return nil, errors.Wrapf(idkg.ErrUnsatisfiedVerificationThreshold, "dealer %q: need %d, have %d", dealerID, params.VerificationThreshold(), len(sd.Signers))
		}

		combined, err := multisig.DecodeCombinedSig(sd.Signature)
		if err != nil {
			return nil, errors.Wrap(idkg.ErrInvalidMultisignature, err.Error())
		}
		if err := multisig.VerifyCombinedMultiSig(combined, dealingSigningPayload(sd.Dealing), sd.Signers, keys); err != nil {
			return nil, errors.Wrap(idkg.ErrInvalidMultisignature, err.Error())
		}

		if err := dealing.VerifyDealingPublic(params, sd.Dealing); err != nil {
			return nil, err
		}

		dealerIndex, _ := params.IndexForDealerID(dealerID)
		verified[dealerIndex] = sd
	}

	raw, err := aggregateTranscriptRaw(params, verified)
	if err != nil {
		return nil, errors.Wrap(idkg.ErrInvalidDealing, err.Error())
	}

	return &idkg.Transcript{
		TranscriptId:          params.TranscriptId,
		Receivers:             append([]idkg.NodeID(nil), params.Receivers...),
		RegistryVersion:       params.RegistryVersion,
		AlgorithmID:           params.AlgorithmID,
		Type:                  transcriptType(params),
		VerifiedDealings:      verified,
		InternalTranscriptRaw: raw,
		Verified:              true,
	}, nil
}

func transcriptType(params *idkg.TranscriptParams) idkg.TranscriptType {
	masked := params.Operation.Kind != idkg.OpReshareOfUnmasked
	return idkg.TranscriptType{Masked: masked, Origin: params.Operation}
}

// aggregateTranscriptRaw performs the deterministic homomorphic combination
// spec.md §4.2 describes: sum commitments in ascending dealer_index order,
// then encode the aggregate alongside the per-dealer commitment list.
func aggregateTranscriptRaw(params *idkg.TranscriptParams, verified map[int]idkg.SignedDealing) ([]byte, error) {
	indices := make([]int, 0, len(verified))
	for idx := range verified {
		indices = append(indices, idx)
	}
	sort.Ints(indices)

	commitments := make([]*primitives.Commitment, 0, len(indices))
	for _, idx := range indices {
		sd := verified[idx]
		commitment, err := dealing.ExtractCommitment(params, sd.Dealing)
		if err != nil {
			return nil, err
		}
		commitments = append(commitments, commitment)
	}

	aggregate, err := sumCommitments(commitments)
	if err != nil {
		return nil, err
	}
	return idkg.EncodeAggregateRaw(params.AlgorithmID, indices, commitments, aggregate)
}

// VerifyTranscript implements verify_transcript: re-run the deterministic
// aggregation and byte-compare against transcript.InternalTranscriptRaw,
// plus check id/algorithm/receivers/registry_version consistency. On
// success it marks t.Verified, which open_dealing requires before it will
// disclose a share against t.
func VerifyTranscript(params *idkg.TranscriptParams, t *idkg.Transcript) error {
	if t.TranscriptId != params.TranscriptId {
		return idkg.ErrInvalidTranscript
	}
	if t.AlgorithmID != params.AlgorithmID {
		return idkg.ErrInvalidTranscript
	}
	if t.RegistryVersion != params.RegistryVersion {
		return idkg.ErrInvalidTranscript
	}
	if len(t.Receivers) != len(params.Receivers) {
		return idkg.ErrInvalidTranscript
	}
	for i, r := range params.Receivers {
		if t.Receivers[i] != r {
			return idkg.ErrInvalidTranscript
		}
	}

	raw, err := aggregateTranscriptRaw(params, t.VerifiedDealings)
	if err != nil {
		return errors.Wrap(idkg.ErrInvalidTranscript, err.Error())
	}
	if string(raw) != string(t.InternalTranscriptRaw) {
		return idkg.ErrInvalidTranscript
	}
	t.Verified = true
	return nil
}
