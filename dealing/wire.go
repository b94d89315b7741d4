package dealing

import (
	"github.com/dkgmesh/idkg/primitives"
)

// dealingWireV1 is the concrete payload cbor-marshaled into
// Dealing.InternalDealingRaw via primitives.EncodeRaw. Its shape depends on
// the operation: CommitmentMask/CiphertextPairs are nil for Simple-
// committed dealings (ReshareOfUnmasked), and ReshareProof is nil except
// for ReshareOfUnmasked/ReshareOfMasked.
type dealingWireV1 struct {
	_ struct{} `cbor:",toarray"`

	CommitmentType  uint8
	CommitmentBase  []byte
	CommitmentMask  []byte // empty for CommitmentSimple
	Commits         [][]byte

	EphemeralKey       []byte
	CiphertextSingle   [][]byte   // populated for CommitmentSimple dealings
	CiphertextPairsA   [][]byte   // value half, populated for CommitmentPedersen dealings
	CiphertextPairsB   [][]byte   // mask half, populated for CommitmentPedersen dealings

	// HasReshareProof through ReshareProofVH carry a DLEQProof{C,R,VG,VH}
	// proving the dealt value equals the dealer's share of the transcript
	// being reshared. Unlike xg/xh in a general DLEQ use, the two points this
	// proof is checked against (the prior transcript's commitment at this
	// dealer's index, minus this dealing's own commitment's constant term)
	// are both publicly derivable by the verifier, so they are recomputed at
	// verify time rather than trusted off the wire.
	HasReshareProof bool
	ReshareProofC   []byte
	ReshareProofR   []byte
	ReshareProofVG  []byte
	ReshareProofVH  []byte
}

const dealingWireVersion = 1

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
