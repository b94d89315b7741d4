package idkg

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/dkgmesh/idkg/common/scheme"
)

// transcriptIdNamespace seeds the deterministic UUIDv5 derivation in
// TranscriptId.UUID, so two nodes computing the same (subnet, counter) agree
// on the opaque key byte-for-byte without exchanging it.
var transcriptIdNamespace = uuid.MustParse("7f279b64-4b1a-4e7e-9f0a-7a6e7a9b2c31")

// TranscriptId globally identifies one IDKG instance: a subnet tag plus a
// monotonic counter, formatted so two subnets never collide even if their
// counters do.
type TranscriptId struct {
	SubnetTag string
	Counter   uint64
}

// NewTranscriptId mints an id scoped to subnetTag. The counter itself is
// caller-supplied (driven by the outer consensus layer, out of this
// package's scope) rather than generated here, and no random component is
// added: two calls with the same subnetTag and counter yield equal ids.
func NewTranscriptId(subnetTag string, counter uint64) TranscriptId {
	return TranscriptId{SubnetTag: subnetTag, Counter: counter}
}

func (t TranscriptId) String() string {
	return fmt.Sprintf("%s/%d", t.SubnetTag, t.Counter)
}

// UUID derives a stable, collision-resistant key for t, used as the
// key-material store's per-transcript namespace (keystore/).
func (t TranscriptId) UUID() uuid.UUID {
	return uuid.NewSHA1(transcriptIdNamespace, []byte(t.String()))
}

// OperationKind names the sharing operation a TranscriptParams describes.
type OperationKind int

const (
	OpRandom OperationKind = iota
	OpReshareOfMasked
	OpReshareOfUnmasked
	OpUnmaskedTimesMasked
)

func (k OperationKind) String() string {
	switch k {
	case OpRandom:
		return "Random"
	case OpReshareOfMasked:
		return "ReshareOfMasked"
	case OpReshareOfUnmasked:
		return "ReshareOfUnmasked"
	case OpUnmaskedTimesMasked:
		return "UnmaskedTimesMasked"
	default:
		return "Unknown"
	}
}

// OperationType is the tagged union spec.md §3 calls operation_type. Only
// the fields relevant to Kind are populated; ReshareOfMasked/Unmasked use
// Prev, UnmaskedTimesMasked uses both Unmasked and Masked.
type OperationType struct {
	Kind     OperationKind
	Prev     *Transcript
	Unmasked *Transcript
	Masked   *Transcript
}

// TranscriptParams is the immutable specification of one IDKG instance.
// Dealer and receiver indices are derived by sorting the id sets once, at
// construction, and never re-derived — see idkg/params.go.
type TranscriptParams struct {
	TranscriptId    TranscriptId
	RegistryVersion uint64
	AlgorithmID     scheme.AlgorithmId
	Dealers         []NodeID // sorted, index == dealer_index
	Receivers       []NodeID // sorted, index == receiver_index
	Operation       OperationType

	collectionThreshold     int
	verificationThreshold   int
	reconstructionThreshold int
}

// CollectionThreshold is the minimum distinct dealings needed to assemble a
// transcript: f+1 for Random, 2f+1 for reshare/product.
func (p *TranscriptParams) CollectionThreshold() int { return p.collectionThreshold }

// VerificationThreshold is the minimum multi-sig signers per dealing, 2f+1.
func (p *TranscriptParams) VerificationThreshold() int { return p.verificationThreshold }

// ReconstructionThreshold is the sharing polynomial's degree+1, f+1.
func (p *TranscriptParams) ReconstructionThreshold() int { return p.reconstructionThreshold }

// CorruptionBound returns f = floor((n-1)/3) for n = |receivers|.
func CorruptionBound(numReceivers int) int {
	if numReceivers == 0 {
		return 0
	}
	return (numReceivers - 1) / 3
}

// Dealing is one dealer's private share distribution, per spec.md §3.
type Dealing struct {
	TranscriptId      TranscriptId
	DealerID          NodeID
	InternalDealingRaw []byte
}

// SignedDealing certifies a Dealing with a combined multi-signature from a
// quorum of receivers.
type SignedDealing struct {
	Dealing   Dealing
	Signers   []NodeID
	Signature []byte // combined multisig, opaque to this package
}

// TranscriptType tags whether a Transcript's shared secret is Pedersen-
// masked or simple-unmasked, and records its provenance.
type TranscriptType struct {
	Masked bool // true: Masked(origin); false: Unmasked(origin)
	Origin OperationType
}

// Transcript is the canonical, immutable assembly of verified dealings for
// one TranscriptParams instance.
//
// Verified is true once transcript.VerifyTranscript has actually run against
// this object and accepted it — never set by decoding, unmarshaling, or
// constructing a Transcript by hand. A Transcript received over the wire (as
// opposed to one this node built itself via CreateTranscript) starts false
// and stays false until VerifyTranscript says otherwise; open_dealing
// refuses to run against an unverified transcript, since disclosing a share
// against a transcript nobody has checked would hand an attacker a correct
// opening for an attack they designed the "transcript" to enable.
type Transcript struct {
	TranscriptId        TranscriptId
	Receivers           []NodeID
	RegistryVersion     uint64
	AlgorithmID         scheme.AlgorithmId
	Type                TranscriptType
	VerifiedDealings    map[int]SignedDealing // dealer_index -> SignedDealing
	InternalTranscriptRaw []byte
	Verified            bool
}

// Complaint is a receiver's proof that a specific dealer's ciphertext to
// them does not open to a value consistent with the dealing's commitment.
type Complaint struct {
	TranscriptId        TranscriptId
	DealerID            NodeID
	ComplainerID         NodeID
	InternalComplaintRaw []byte
}

// Opening is another receiver's decrypted share for an accused dealing,
// published so the complainant can reconstruct via interpolation.
type Opening struct {
	TranscriptId       TranscriptId
	DealerID           NodeID
	OpenerID           NodeID
	InternalOpeningRaw []byte
}

// PreSignatureQuadruple bundles the four transcripts the Gennaro-Goldfeder
// threshold ECDSA protocol needs to sign without further interaction on the
// message: kappa (unmasked), lambda (masked), kappa*lambda (masked),
// key*lambda (masked).
type PreSignatureQuadruple struct {
	Kappa       *Transcript
	Lambda      *Transcript
	KappaTimesLambda *Transcript
	KeyTimesLambda   *Transcript
}

// ThresholdEcdsaSigInputs bundles everything one signing round needs.
type ThresholdEcdsaSigInputs struct {
	DerivationPath []uint32
	HashedMessage  [32]byte
	Seed           [32]byte
	Quadruple      PreSignatureQuadruple
	KeyTranscript  *Transcript
}

// SigShare is one signer's contribution to a combined ECDSA signature.
type SigShare struct {
	SignerID NodeID
	Value    []byte // opaque scalar encoding
}

// CombinedSignature is the final 64-byte (r, s) ECDSA signature.
type CombinedSignature struct {
	R [32]byte
	S [32]byte
}

// Bytes returns the 64-byte r||s wire encoding.
func (c CombinedSignature) Bytes() []byte {
	out := make([]byte, 64)
	copy(out[:32], c.R[:])
	copy(out[32:], c.S[:])
	return out
}
