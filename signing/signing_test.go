package signing

import (
	"crypto/rand"
	"crypto/sha256"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dkgmesh/idkg/common/scheme"
	"github.com/dkgmesh/idkg/dealing"
	"github.com/dkgmesh/idkg/idkg"
	"github.com/dkgmesh/idkg/keystore"
	"github.com/dkgmesh/idkg/multisig"
	"github.com/dkgmesh/idkg/primitives"
	"github.com/dkgmesh/idkg/registry"
	"github.com/dkgmesh/idkg/transcript"
)

type node struct {
	id     idkg.NodeID
	secret *primitives.Scalar
	store  *keystore.Store
}

func setupNodes(t *testing.T, n int) ([]*node, *registry.MemoryRegistry) {
	t.Helper()
	reg, err := registry.NewMemoryRegistry(32)
	require.NoError(t, err)

	nodes := make([]*node, n)
	identities := make([]*registry.Identity, n)
	for i := 0; i < n; i++ {
		secret, err := primitives.RandomScalar(rand.Reader)
		require.NoError(t, err)
		id := idkg.NodeID(string(rune('a' + i)))
		store, err := keystore.Open("")
		require.NoError(t, err)
		nodes[i] = &node{id: id, secret: secret, store: store}
		identities[i] = &registry.Identity{
			NodeID:      id,
			AlgorithmID: string(scheme.DefaultAlgorithmId),
			Key:         primitives.MulBase(secret),
		}
	}
	reg.PublishVersion(1, identities)
	return nodes, reg
}

func closeNodes(nodes []*node) {
	for _, n := range nodes {
		n.store.Close()
	}
}

func nodeIDs(nodes []*node) []idkg.NodeID {
	out := make([]idkg.NodeID, len(nodes))
	for i, n := range nodes {
		out[i] = n.id
	}
	return out
}

// buildAndLoadTranscript runs create_dealing against every node's own
// persistent store (so reshare/product operations can resolve a prior
// share), assembles the transcript and has every receiver load it, leaving
// each node's store holding its value (and, for Pedersen-committed
// transcripts, mask) share for the next transcript in the quadruple to
// build on.
func buildAndLoadTranscript(t *testing.T, params *idkg.TranscriptParams, nodes []*node, reg *registry.MemoryRegistry, seed [32]byte) *idkg.Transcript {
	t.Helper()
	byID := make(map[idkg.NodeID]*node, len(nodes))
	for _, n := range nodes {
		byID[n.id] = n
	}
	sch, err := scheme.GetSchemeByIDWithDefault(scheme.DefaultAlgorithmId)
	require.NoError(t, err)

	dealings := make(map[idkg.NodeID]idkg.SignedDealing, len(params.Dealers))
	for _, dealerID := range params.Dealers {
		dealer := byID[dealerID]
		d, err := dealing.CreateDealing(params, dealerID, seed, reg, dealer.store, sch)
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
		dealings[dealerID] = idkg.SignedDealing{Dealing: d, Signers: signers, Signature: sigBytes}
	}

	tr, err := transcript.CreateTranscript(params, reg, dealings)
	require.NoError(t, err)
	require.NoError(t, transcript.VerifyTranscript(params, tr))

	for _, n := range nodes {
		complaints, err := transcript.LoadTranscript(params, tr, n.id, n.secret, n.store)
		require.NoError(t, err)
		require.Empty(t, complaints)
	}
	return tr
}

// buildQuadruple constructs a full PreSignatureQuadruple plus key transcript
// over nodes, following dealing.go's commitment-type mapping: kappa must be
// OpReshareOfUnmasked (the only operation producing a Simple commitment) of
// some masked seed, so kappa*G is readable in the clear for r.
func buildQuadruple(t *testing.T, nodes []*node, reg *registry.MemoryRegistry, subnetTag string) (*idkg.Transcript, idkg.PreSignatureQuadruple) {
	t.Helper()
	ids := nodeIDs(nodes)
	var counter uint64

	nextSeed := func(tag string) [32]byte {
		var seed [32]byte
		copy(seed[:], []byte(subnetTag+"/"+tag+"/000000000000000000000000"))
		return seed
	}

	newParams := func(op idkg.OperationType) *idkg.TranscriptParams {
		counter++
		p, err := idkg.NewTranscriptParams(
			idkg.NewTranscriptId(subnetTag, counter), 1, scheme.DefaultAlgorithmId,
			ids, ids, op,
		)
		require.NoError(t, err)
		return p
	}

	keyParams := newParams(idkg.OperationType{Kind: idkg.OpRandom})
	keyTranscript := buildAndLoadTranscript(t, keyParams, nodes, reg, nextSeed("key"))

	lambdaParams := newParams(idkg.OperationType{Kind: idkg.OpRandom})
	lambdaTranscript := buildAndLoadTranscript(t, lambdaParams, nodes, reg, nextSeed("lambda"))

	kappaSeedParams := newParams(idkg.OperationType{Kind: idkg.OpRandom})
	kappaSeedTranscript := buildAndLoadTranscript(t, kappaSeedParams, nodes, reg, nextSeed("kappa-seed"))

	kappaParams := newParams(idkg.OperationType{Kind: idkg.OpReshareOfUnmasked, Prev: kappaSeedTranscript})
	kappaTranscript := buildAndLoadTranscript(t, kappaParams, nodes, reg, nextSeed("kappa"))

	kappaTimesLambdaParams := newParams(idkg.OperationType{Kind: idkg.OpUnmaskedTimesMasked, Unmasked: kappaTranscript, Masked: lambdaTranscript})
	kappaTimesLambdaTranscript := buildAndLoadTranscript(t, kappaTimesLambdaParams, nodes, reg, nextSeed("kappa-times-lambda"))

	keyTimesLambdaParams := newParams(idkg.OperationType{Kind: idkg.OpUnmaskedTimesMasked, Unmasked: keyTranscript, Masked: lambdaTranscript})
	keyTimesLambdaTranscript := buildAndLoadTranscript(t, keyTimesLambdaParams, nodes, reg, nextSeed("key-times-lambda"))

	return keyTranscript, idkg.PreSignatureQuadruple{
		Kappa:            kappaTranscript,
		Lambda:           lambdaTranscript,
		KappaTimesLambda: kappaTimesLambdaTranscript,
		KeyTimesLambda:   keyTimesLambdaTranscript,
	}
}

// dealingSigningPayload mirrors transcript.go's unexported helper of the
// same name: the multisig payload is the dealer id, transcript id and raw
// dealing bytes, reproduced here rather than exported from transcript/ since
// nothing outside tests needs it.
func dealingSigningPayload(d idkg.Dealing) []byte {
	return append([]byte(d.DealerID+"/"+d.TranscriptId.String()), d.InternalDealingRaw...)
}

func TestSignShareVerifyCombineRoundTrip(t *testing.T) {
	nodes, reg := setupNodes(t, 4)
	defer closeNodes(nodes)

	keyTranscript, quadruple := buildQuadruple(t, nodes, reg, "subnet-sig-1")

	message := sha256.Sum256([]byte("hello threshold ecdsa"))
	inputs := &idkg.ThresholdEcdsaSigInputs{
		DerivationPath: nil,
		HashedMessage:  message,
		KeyTranscript:  keyTranscript,
		Quadruple:      quadruple,
	}

	threshold := reconstructionThreshold(keyTranscript)
	shares := make(map[idkg.NodeID]idkg.SigShare, threshold)
	for _, n := range nodes[:threshold] {
		share, err := SignShare(inputs, n.id, n.store)
		require.NoError(t, err)
		require.NoError(t, VerifySigShare(n.id, inputs, share))
		shares[n.id] = share
	}

	sig, err := CombineSigShares(inputs, shares)
	require.NoError(t, err)
	require.NoError(t, VerifyCombinedSig(inputs, sig))
}

func TestSignShareRejectsNonReceiver(t *testing.T) {
	nodes, reg := setupNodes(t, 4)
	defer closeNodes(nodes)

	keyTranscript, quadruple := buildQuadruple(t, nodes, reg, "subnet-sig-2")
	message := sha256.Sum256([]byte("not a receiver"))
	inputs := &idkg.ThresholdEcdsaSigInputs{
		HashedMessage: message,
		KeyTranscript: keyTranscript,
		Quadruple:     quadruple,
	}

	_, err := SignShare(inputs, idkg.NodeID("not-a-node"), nodes[0].store)
	require.ErrorIs(t, err, idkg.ErrNotAReceiver)
}

func TestVerifySigShareRejectsTamperedShare(t *testing.T) {
	nodes, reg := setupNodes(t, 4)
	defer closeNodes(nodes)

	keyTranscript, quadruple := buildQuadruple(t, nodes, reg, "subnet-sig-3")
	message := sha256.Sum256([]byte("tamper me"))
	inputs := &idkg.ThresholdEcdsaSigInputs{
		HashedMessage: message,
		KeyTranscript: keyTranscript,
		Quadruple:     quadruple,
	}

	signer := nodes[0]
	share, err := SignShare(inputs, signer.id, signer.store)
	require.NoError(t, err)

	sigma, v, maskCombo, err := decodeSigShare(share.Value)
	require.NoError(t, err)
	tampered := primitives.NewScalar().Add(sigma, primitives.ScalarFromInt(1))
	share.Value, err = encodeSigShare(tampered, v, maskCombo)
	require.NoError(t, err)

	err = VerifySigShare(signer.id, inputs, share)
	require.ErrorIs(t, err, idkg.ErrInvalidMultisignature)
}

func TestCombineSigSharesRejectsBelowThreshold(t *testing.T) {
	nodes, reg := setupNodes(t, 4)
	defer closeNodes(nodes)

	keyTranscript, quadruple := buildQuadruple(t, nodes, reg, "subnet-sig-4")
	message := sha256.Sum256([]byte("too few shares"))
	inputs := &idkg.ThresholdEcdsaSigInputs{
		HashedMessage: message,
		KeyTranscript: keyTranscript,
		Quadruple:     quadruple,
	}

	signer := nodes[0]
	share, err := SignShare(inputs, signer.id, signer.store)
	require.NoError(t, err)

	_, err = CombineSigShares(inputs, map[idkg.NodeID]idkg.SigShare{signer.id: share})
	require.ErrorIs(t, err, idkg.ErrUnsatisfiedReconstructionThreshold)
}

func TestDerivePublicKeyDeterministicAcrossPaths(t *testing.T) {
	nodes, reg := setupNodes(t, 4)
	defer closeNodes(nodes)

	keyTranscript, _ := buildQuadruple(t, nodes, reg, "subnet-sig-5")

	pk1, err := DerivePublicKey(keyTranscript, []uint32{1})
	require.NoError(t, err)
	pk2, err := DerivePublicKey(keyTranscript, []uint32{1})
	require.NoError(t, err)
	require.True(t, pk1.Equal(pk2))

	pk3, err := DerivePublicKey(keyTranscript, []uint32{2})
	require.NoError(t, err)
	require.False(t, pk1.Equal(pk3))
}

func TestSignShareWithDerivationPathVerifies(t *testing.T) {
	nodes, reg := setupNodes(t, 4)
	defer closeNodes(nodes)

	keyTranscript, quadruple := buildQuadruple(t, nodes, reg, "subnet-sig-6")
	message := sha256.Sum256([]byte("derived subkey message"))
	inputs := &idkg.ThresholdEcdsaSigInputs{
		DerivationPath: []uint32{1},
		HashedMessage:  message,
		KeyTranscript:  keyTranscript,
		Quadruple:      quadruple,
	}

	threshold := reconstructionThreshold(keyTranscript)
	shares := make(map[idkg.NodeID]idkg.SigShare, threshold)
	for _, n := range nodes[:threshold] {
		share, err := SignShare(inputs, n.id, n.store)
		require.NoError(t, err)
		require.NoError(t, VerifySigShare(n.id, inputs, share))
		shares[n.id] = share
	}

	sig, err := CombineSigShares(inputs, shares)
	require.NoError(t, err)
	require.NoError(t, VerifyCombinedSig(inputs, sig))
}
