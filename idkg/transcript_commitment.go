package idkg

import (
	"github.com/dkgmesh/idkg/common/scheme"
	"github.com/dkgmesh/idkg/primitives"
)

// transcriptWireV1 mirrors the cbor layout transcript.CreateTranscript
// writes into Transcript.InternalTranscriptRaw: the aggregated commitment
// plus the raw per-dealer commitments it was summed from. Kept here, rather
// than in transcript/ (which owns the rest of that wire format), so dealing/
// can read a prior transcript's aggregate commitment when building a
// reshare proof without an import cycle on transcript/.
type transcriptWireV1 struct {
	_ struct{} `cbor:",toarray"`

	CommitmentType   uint8
	CommitmentBase   []byte
	CommitmentMask   []byte
	AggregateCommits [][]byte

	DealerIndices    []int
	DealerCommitType []uint8
	DealerBase       [][]byte
	DealerMask       [][]byte
	DealerCommits    [][][]byte
}

// TranscriptWireVersion is the schema version transcript.CreateTranscript
// encodes InternalTranscriptRaw with.
const TranscriptWireVersion = 1

// AggregateCommitment decodes t's InternalTranscriptRaw and returns its
// aggregated public commitment, without re-verifying it against the
// underlying dealings. Used by signing/ to read the public parts of the
// four pre-signature transcripts (and the key transcript) at a signer's
// index, and by dealing/ to bind a reshare dealing to the transcript it
// reshares.
func AggregateCommitment(t *Transcript) (*primitives.Commitment, error) {
	env, err := primitives.DecodeRaw(t.InternalTranscriptRaw)
	if err != nil {
		return nil, err
	}
	if env.Version != TranscriptWireVersion || env.AlgorithmID != string(t.AlgorithmID) {
		return nil, ErrTranscodingError
	}
	var w transcriptWireV1
	if err := primitives.UnmarshalCBOR(env.Payload, &w); err != nil {
		return nil, ErrTranscodingError
	}
	return decodeCommitment(w.CommitmentType, w.CommitmentBase, w.CommitmentMask, w.AggregateCommits)
}

func encodeCommitment(c *primitives.Commitment) (commitmentType uint8, base, mask []byte, commits [][]byte) {
	commits = make([][]byte, len(c.Commits))
	for i, p := range c.Commits {
		commits[i] = p.Bytes()
	}
	base = c.Base.Bytes()
	if c.Type == primitives.CommitmentPedersen {
		return 1, base, c.Mask.Bytes(), commits
	}
	return 0, base, nil, commits
}

func decodeCommitment(commitmentType uint8, base, mask []byte, commits [][]byte) (*primitives.Commitment, error) {
	basePt, err := primitives.PointFromBytes(base)
	if err != nil {
		return nil, err
	}
	pts := make([]*primitives.Point, len(commits))
	for i, b := range commits {
		p, err := primitives.PointFromBytes(b)
		if err != nil {
			return nil, err
		}
		pts[i] = p
	}
	if commitmentType == 1 {
		maskPt, err := primitives.PointFromBytes(mask)
		if err != nil {
			return nil, err
		}
		return &primitives.Commitment{Type: primitives.CommitmentPedersen, Base: basePt, Mask: maskPt, Commits: pts}, nil
	}
	return &primitives.Commitment{Type: primitives.CommitmentSimple, Base: basePt, Commits: pts}, nil
}

// EncodeAggregateRaw cbor-encodes the full aggregation wire record (the
// aggregate commitment plus the per-dealer commitments it was summed from)
// into an InternalTranscriptRaw envelope. Used by transcript.CreateTranscript,
// the only writer of this format.
func EncodeAggregateRaw(algorithmID scheme.AlgorithmId, dealerIndices []int, dealerCommits []*primitives.Commitment, aggregate *primitives.Commitment) ([]byte, error) {
	w := transcriptWireV1{
		DealerIndices:    dealerIndices,
		DealerCommitType: make([]uint8, len(dealerCommits)),
		DealerBase:       make([][]byte, len(dealerCommits)),
		DealerMask:       make([][]byte, len(dealerCommits)),
		DealerCommits:    make([][][]byte, len(dealerCommits)),
	}
	for i, c := range dealerCommits {
		w.DealerCommitType[i], w.DealerBase[i], w.DealerMask[i], w.DealerCommits[i] = encodeCommitment(c)
	}
	w.CommitmentType, w.CommitmentBase, w.CommitmentMask, w.AggregateCommits = encodeCommitment(aggregate)

	payload, err := primitives.MarshalCBOR(w)
	if err != nil {
		return nil, err
	}
	return primitives.EncodeRaw(TranscriptWireVersion, string(algorithmID), payload)
}
