package transcript

import (
	"crypto/rand"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dkgmesh/idkg/common/scheme"
	"github.com/dkgmesh/idkg/dealing"
	"github.com/dkgmesh/idkg/idkg"
	"github.com/dkgmesh/idkg/keystore"
	"github.com/dkgmesh/idkg/multisig"
	"github.com/dkgmesh/idkg/primitives"
	"github.com/dkgmesh/idkg/registry"
)

type node struct {
	id     idkg.NodeID
	secret *primitives.Scalar
}

func setupNodes(t *testing.T, n int) ([]node, *registry.MemoryRegistry) {
	t.Helper()
	reg, err := registry.NewMemoryRegistry(32)
	require.NoError(t, err)

	nodes := make([]node, n)
	identities := make([]*registry.Identity, n)
	for i := 0; i < n; i++ {
		secret, err := primitives.RandomScalar(rand.Reader)
		require.NoError(t, err)
		id := idkg.NodeID(string(rune('a' + i)))
		nodes[i] = node{id: id, secret: secret}
		identities[i] = &registry.Identity{
			NodeID:      id,
			AlgorithmID: string(scheme.DefaultAlgorithmId),
			Key:         primitives.MulBase(secret),
		}
	}
	reg.PublishVersion(1, identities)
	return nodes, reg
}

func nodeIDs(nodes []node) []idkg.NodeID {
	out := make([]idkg.NodeID, len(nodes))
	for i, n := range nodes {
		out[i] = n.id
	}
	return out
}

// buildSignedDealings runs CreateDealing for every dealer and has every
// node co-sign each resulting dealing, mirroring the quorum-signed
// SignedDealing spec.md's create_transcript expects as input.
func buildSignedDealings(t *testing.T, params *idkg.TranscriptParams, nodes []node, reg *registry.MemoryRegistry, seed [32]byte) map[idkg.NodeID]idkg.SignedDealing {
	t.Helper()
	sch, err := scheme.GetSchemeByIDWithDefault(scheme.DefaultAlgorithmId)
	require.NoError(t, err)
	store, err := keystore.Open("")
	require.NoError(t, err)
	defer store.Close()

	out := make(map[idkg.NodeID]idkg.SignedDealing, len(params.Dealers))
	for _, dealerID := range params.Dealers {
		d, err := dealing.CreateDealing(params, dealerID, seed, reg, store, sch)
		require.NoError(t, err)

		payload := dealingSigningPayload(d)
		var individuals []multisig.IndividualSig
		var signers []idkg.NodeID
		for _, n := range nodes {
			sig, err := multisig.SignMulti(rand.Reader, n.id, n.secret, payload)
			require.NoError(t, err)
			individuals = append(individuals, sig)
			signers = append(signers, n.id)
		}
		combined := multisig.CombineMultiSigIndividuals(individuals)
		sigBytes, err := multisig.EncodeCombinedSig(combined)
		require.NoError(t, err)

		out[dealerID] = idkg.SignedDealing{Dealing: d, Signers: signers, Signature: sigBytes}
	}
	return out
}

func TestCreateAndVerifyTranscriptRoundTrip(t *testing.T) {
	nodes, reg := setupNodes(t, 4)
	ids := nodeIDs(nodes)

	params, err := idkg.NewTranscriptParams(
		idkg.NewTranscriptId("subnet-t", 1), 1, scheme.DefaultAlgorithmId,
		ids, ids, idkg.OperationType{Kind: idkg.OpRandom},
	)
	require.NoError(t, err)

	var seed [32]byte
	copy(seed[:], []byte("transcript-seed-0000000000000000"))
	dealings := buildSignedDealings(t, params, nodes, reg, seed)

	tr, err := CreateTranscript(params, reg, dealings)
	require.NoError(t, err)
	require.NoError(t, VerifyTranscript(params, tr))
	require.Len(t, tr.VerifiedDealings, len(ids))
}

func TestCreateTranscriptRejectsInsufficientDealings(t *testing.T) {
	nodes, reg := setupNodes(t, 4)
	ids := nodeIDs(nodes)

	params, err := idkg.NewTranscriptParams(
		idkg.NewTranscriptId("subnet-t", 2), 1, scheme.DefaultAlgorithmId,
		ids, ids, idkg.OperationType{Kind: idkg.OpRandom},
	)
	require.NoError(t, err)

	var seed [32]byte
	copy(seed[:], []byte("insufficient-seed-00000000000000"))
	dealings := buildSignedDealings(t, params, nodes, reg, seed)
	for k := range dealings {
		if len(dealings) < params.CollectionThreshold() {
			break
		}
		delete(dealings, k)
	}

	_, err = CreateTranscript(params, reg, dealings)
	require.ErrorIs(t, err, idkg.ErrUnsatisfiedCollectionThreshold)
}

func TestLoadTranscriptAllConsistentNoComplaints(t *testing.T) {
	nodes, reg := setupNodes(t, 4)
	ids := nodeIDs(nodes)

	params, err := idkg.NewTranscriptParams(
		idkg.NewTranscriptId("subnet-t", 3), 1, scheme.DefaultAlgorithmId,
		ids, ids, idkg.OperationType{Kind: idkg.OpRandom},
	)
	require.NoError(t, err)

	var seed [32]byte
	copy(seed[:], []byte("load-seed-000000000000000000000"))
	dealings := buildSignedDealings(t, params, nodes, reg, seed)
	tr, err := CreateTranscript(params, reg, dealings)
	require.NoError(t, err)

	for _, n := range nodes {
		store, err := keystore.Open("")
		require.NoError(t, err)
		complaints, err := LoadTranscript(params, tr, n.id, n.secret, store)
		require.NoError(t, err)
		require.Empty(t, complaints)
		_, ok := store.LoadTranscriptShare(tr.TranscriptId)
		require.True(t, ok)
		store.Close()
	}
}

func TestLoadTranscriptFilesComplaintOnTamperedDealing(t *testing.T) {
	nodes, reg := setupNodes(t, 4)
	ids := nodeIDs(nodes)

	params, err := idkg.NewTranscriptParams(
		idkg.NewTranscriptId("subnet-t", 4), 1, scheme.DefaultAlgorithmId,
		ids, ids, idkg.OperationType{Kind: idkg.OpRandom},
	)
	require.NoError(t, err)

	var seed [32]byte
	copy(seed[:], []byte("complaint-seed-00000000000000000"))
	dealings := buildSignedDealings(t, params, nodes, reg, seed)

	// Tamper with dealer index 1's ciphertext for receiver 0 after signing
	// and before the transcript is assembled, to simulate a dealer who deals
	// a consistent-looking but individually-undecryptable ciphertext for one
	// receiver.
	victimDealerID := params.Dealers[1]
	sd := dealings[victimDealerID]
	tamperDealingCiphertext(t, params, &sd)
	dealings[victimDealerID] = sd

	// Re-sign the tampered payload so VerifyDealingPublic/multisig still
	// pass — this models a dealer that deliberately sends a bad share to
	// one receiver while keeping a valid public commitment and signature.
	resignDealing(t, nodes, &dealings, victimDealerID)

	tr, err := CreateTranscript(params, reg, dealings)
	require.NoError(t, err)

	victim := nodes[0]
	store, err := keystore.Open("")
	require.NoError(t, err)
	defer store.Close()
	complaints, err := LoadTranscript(params, tr, victim.id, victim.secret, store)
	require.NoError(t, err)
	require.Len(t, complaints, 1)
	require.Equal(t, victimDealerID, complaints[0].DealerID)

	require.NoError(t, VerifyComplaint(params, tr, reg, complaints[0]))
}

func TestVerifyComplaintRejectsUnfoundedComplaint(t *testing.T) {
	nodes, reg := setupNodes(t, 4)
	ids := nodeIDs(nodes)

	params, err := idkg.NewTranscriptParams(
		idkg.NewTranscriptId("subnet-t", 5), 1, scheme.DefaultAlgorithmId,
		ids, ids, idkg.OperationType{Kind: idkg.OpRandom},
	)
	require.NoError(t, err)

	var seed [32]byte
	copy(seed[:], []byte("unfounded-seed-00000000000000000"))
	dealings := buildSignedDealings(t, params, nodes, reg, seed)
	tr, err := CreateTranscript(params, reg, dealings)
	require.NoError(t, err)

	// Honestly file a complaint against a dealing whose share is actually
	// fine (manually, since LoadTranscript would never itself generate one
	// here) and confirm it's rejected as unfounded.
	complainer := nodes[0]
	dealerID := params.Dealers[1]
	complaint, err := fileComplaint(params, tr, dealerID, complainer.id, complainer.secret, tr.VerifiedDealings[1].Dealing)
	require.NoError(t, err)
	err = VerifyComplaint(params, tr, reg, complaint)
	require.ErrorIs(t, err, idkg.ErrInvalidComplaint)
}

func TestOpenDealingAndLoadTranscriptWithOpenings(t *testing.T) {
	nodes, reg := setupNodes(t, 4)
	ids := nodeIDs(nodes)

	params, err := idkg.NewTranscriptParams(
		idkg.NewTranscriptId("subnet-t", 6), 1, scheme.DefaultAlgorithmId,
		ids, ids, idkg.OperationType{Kind: idkg.OpRandom},
	)
	require.NoError(t, err)

	var seed [32]byte
	copy(seed[:], []byte("opening-seed-000000000000000000"))
	dealings := buildSignedDealings(t, params, nodes, reg, seed)

	victimDealerID := params.Dealers[1]
	sd := dealings[victimDealerID]
	tamperDealingCiphertext(t, params, &sd)
	dealings[victimDealerID] = sd
	resignDealing(t, nodes, &dealings, victimDealerID)

	tr, err := CreateTranscript(params, reg, dealings)
	require.NoError(t, err)

	victim := nodes[0]
	store, err := keystore.Open("")
	require.NoError(t, err)
	defer store.Close()
	complaints, err := LoadTranscript(params, tr, victim.id, victim.secret, store)
	require.NoError(t, err)
	require.Len(t, complaints, 1)

	// Reconstruction threshold for n=4 receivers is f+1 = 2: gather
	// openings from the other honest receivers.
	openings := make(map[idkg.NodeID]idkg.Opening, params.ReconstructionThreshold())
	for _, n := range nodes {
		if n.id == victim.id {
			continue
		}
		o, err := OpenDealing(params, tr, victimDealerID, n.id, n.secret)
		require.NoError(t, err)
		require.NoError(t, VerifyOpening(params, tr, o))
		openings[n.id] = o
		if len(openings) >= params.ReconstructionThreshold() {
			break
		}
	}

	require.NoError(t, LoadTranscriptWithOpenings(params, tr, victim.id, openings, store))
	_, ok := store.LoadTranscriptShare(tr.TranscriptId)
	require.True(t, ok)
}

func TestOpenDealingRejectsUnverifiedTranscript(t *testing.T) {
	nodes, reg := setupNodes(t, 4)
	ids := nodeIDs(nodes)

	params, err := idkg.NewTranscriptParams(
		idkg.NewTranscriptId("subnet-t", 7), 1, scheme.DefaultAlgorithmId,
		ids, ids, idkg.OperationType{Kind: idkg.OpRandom},
	)
	require.NoError(t, err)

	var seed [32]byte
	copy(seed[:], []byte("unverified-open-seed-00000000000"))
	dealings := buildSignedDealings(t, params, nodes, reg, seed)

	tr, err := CreateTranscript(params, reg, dealings)
	require.NoError(t, err)

	// A transcript received over the wire and decoded, rather than built by
	// this node's own CreateTranscript, starts out unverified until
	// VerifyTranscript actually runs against it.
	received := *tr
	received.Verified = false

	_, err = OpenDealing(params, &received, params.Dealers[0], nodes[1].id, nodes[1].secret)
	require.ErrorIs(t, err, idkg.ErrTranscriptNotVerified)

	require.NoError(t, VerifyTranscript(params, &received))
	_, err = OpenDealing(params, &received, params.Dealers[0], nodes[1].id, nodes[1].secret)
	require.NoError(t, err)
}

// tamperDealingCiphertext flips a byte in one receiver's ciphertext entry,
// leaving the public commitment (and hence VerifyDealingPublic) untouched.
func tamperDealingCiphertext(t *testing.T, params *idkg.TranscriptParams, sd *idkg.SignedDealing) {
	t.Helper()
	env, err := primitives.DecodeRaw(sd.Dealing.InternalDealingRaw)
	require.NoError(t, err)
	var w struct {
		_                struct{} `cbor:",toarray"`
		CommitmentType   uint8
		CommitmentBase   []byte
		CommitmentMask   []byte
		Commits          [][]byte
		EphemeralKey     []byte
		CiphertextSingle [][]byte
		CiphertextPairsA [][]byte
		CiphertextPairsB [][]byte
		HasReshareProof  bool
		ReshareProofC    []byte
		ReshareProofR    []byte
		ReshareProofVG   []byte
		ReshareProofVH   []byte
	}
	require.NoError(t, primitives.UnmarshalCBOR(env.Payload, &w))
	w.CiphertextPairsA[0][0] ^= 0xFF
	payload, err := primitives.MarshalCBOR(w)
	require.NoError(t, err)
	raw, err := primitives.EncodeRaw(1, string(params.AlgorithmID), payload)
	require.NoError(t, err)
	sd.Dealing.InternalDealingRaw = raw
}

// resignDealing recomputes the multisig over dealings[dealerID]'s current
// (tampered) bytes, modeling a dealer who signs off on the bad ciphertext
// it itself sent.
func resignDealing(t *testing.T, nodes []node, dealings *map[idkg.NodeID]idkg.SignedDealing, dealerID idkg.NodeID) {
	t.Helper()
	sd := (*dealings)[dealerID]
	payload := dealingSigningPayload(sd.Dealing)
	var individuals []multisig.IndividualSig
	var signers []idkg.NodeID
	for _, n := range nodes {
		sig, err := multisig.SignMulti(rand.Reader, n.id, n.secret, payload)
		require.NoError(t, err)
		individuals = append(individuals, sig)
		signers = append(signers, n.id)
	}
	combined := multisig.CombineMultiSigIndividuals(individuals)
	sigBytes, err := multisig.EncodeCombinedSig(combined)
	require.NoError(t, err)
	sd.Signers = signers
	sd.Signature = sigBytes
	(*dealings)[dealerID] = sd
}
