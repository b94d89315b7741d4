package signing

import (
	"github.com/pkg/errors"

	"github.com/dkgmesh/idkg/idkg"
	"github.com/dkgmesh/idkg/keystore"
	"github.com/dkgmesh/idkg/primitives"
)

// errMissingShare names which of the five transcripts a signer has not yet
// loaded a local share for, so SecretSharesNotFound is precise enough for
// the caller to know what to retry loading.
func errMissingShare(name string) error {
	return errors.Wrap(idkg.ErrSecretSharesNotFound, "no locally stored share for "+name)
}

// SignShare implements sign_share: the caller's contribution to a combined
// ECDSA signature over inputs.HashedMessage, tweaked by
// inputs.DerivationPath. See common.go's derivedMessage for why the tweak
// is folded into the message rather than into kappa's r.
func SignShare(inputs *idkg.ThresholdEcdsaSigInputs, callerID idkg.NodeID, store *keystore.Store) (idkg.SigShare, error) {
	q := inputs.Quadruple
	if _, ok := receiverIndex(inputs.KeyTranscript, callerID); !ok {
		return idkg.SigShare{}, idkg.ErrNotAReceiver
	}

	// The key transcript's own aggregated share is never used in the sigma
	// formula below (key*lambda already folds it in), but spec.md still
	// requires it to be loaded before signing: it is this node's proof
	// that it actually completed the key transcript's DKG round, not just
	// received the quadruple's four derived transcripts.
	if _, ok := store.LoadTranscriptShare(inputs.KeyTranscript.TranscriptId); !ok {
		return idkg.SigShare{}, errMissingShare("key transcript")
	}

	lambdaValue, ok := store.LoadTranscriptShare(q.Lambda.TranscriptId)
	if !ok {
		return idkg.SigShare{}, errMissingShare("lambda")
	}
	lambdaMask, ok := store.LoadTranscriptMaskShare(q.Lambda.TranscriptId)
	if !ok {
		return idkg.SigShare{}, errMissingShare("lambda mask")
	}
	keyTimesLambdaValue, ok := store.LoadTranscriptShare(q.KeyTimesLambda.TranscriptId)
	if !ok {
		return idkg.SigShare{}, errMissingShare("key*lambda")
	}
	keyTimesLambdaMask, ok := store.LoadTranscriptMaskShare(q.KeyTimesLambda.TranscriptId)
	if !ok {
		return idkg.SigShare{}, errMissingShare("key*lambda mask")
	}
	kappaTimesLambdaValue, ok := store.LoadTranscriptShare(q.KappaTimesLambda.TranscriptId)
	if !ok {
		return idkg.SigShare{}, errMissingShare("kappa*lambda")
	}
	if _, ok := store.LoadTranscriptShare(q.Kappa.TranscriptId); !ok {
		return idkg.SigShare{}, errMissingShare("kappa")
	}

	r, err := kappaR(q.Kappa)
	if err != nil {
		return idkg.SigShare{}, err
	}
	master, err := masterPublicKey(inputs.KeyTranscript)
	if err != nil {
		return idkg.SigShare{}, err
	}
	tweak, err := primitives.DeriveTweak(master, inputs.DerivationPath)
	if err != nil {
		return idkg.SigShare{}, err
	}
	mPrime := derivedMessage(inputs.HashedMessage, r, tweak)

	sigma := primitives.NewScalar().Add(
		primitives.NewScalar().Mul(mPrime, lambdaValue),
		primitives.NewScalar().Mul(r, keyTimesLambdaValue),
	)
	maskCombo := primitives.NewScalar().Add(
		primitives.NewScalar().Mul(mPrime, lambdaMask),
		primitives.NewScalar().Mul(r, keyTimesLambdaMask),
	)

	payload, err := encodeSigShare(sigma, kappaTimesLambdaValue, maskCombo)
	if err != nil {
		return idkg.SigShare{}, errors.Wrap(idkg.ErrSerializationError, err.Error())
	}
	return idkg.SigShare{SignerID: callerID, Value: payload}, nil
}
