package signing

import (
	"github.com/pkg/errors"

	"github.com/dkgmesh/idkg/idkg"
	"github.com/dkgmesh/idkg/primitives"
	"github.com/dkgmesh/idkg/transcript"
)

// VerifySigShare implements verify_sig_share: recomputes the public image of
// signer's sigma from Lambda and KeyTimesLambda's Pedersen commitments at
// signer's index, and checks it against the disclosed (sigma, maskCombo)
// pair -- the homomorphic-linear-combination identity
//
//	m'*Lambda.Eval(i) + r*KeyTimesLambda.Eval(i) == sigma*Base + maskCombo*Mask
//
// which holds iff sigma and maskCombo are the value and mask halves of that
// same linear combination of Pedersen-committed shares, exactly like
// Commitment.CheckPedersen but against a derived right-hand side rather than
// a single commitment's own evaluation.
func VerifySigShare(signerID idkg.NodeID, inputs *idkg.ThresholdEcdsaSigInputs, share idkg.SigShare) error {
	if share.SignerID != signerID {
		return idkg.ErrInvalidMultisignature
	}
	idx, ok := receiverIndex(inputs.KeyTranscript, signerID)
	if !ok {
		return idkg.ErrNotAReceiver
	}

	sigma, _, maskCombo, err := decodeSigShare(share.Value)
	if err != nil {
		return errors.Wrap(idkg.ErrMalformedSignature, err.Error())
	}

	q := inputs.Quadruple
	r, err := kappaR(q.Kappa)
	if err != nil {
		return err
	}
	master, err := masterPublicKey(inputs.KeyTranscript)
	if err != nil {
		return err
	}
	tweak, err := primitives.DeriveTweak(master, inputs.DerivationPath)
	if err != nil {
		return err
	}
	mPrime := derivedMessage(inputs.HashedMessage, r, tweak)

	lambdaCommit, err := transcript.ExtractCommitment(q.Lambda)
	if err != nil {
		return errors.Wrap(idkg.ErrInvalidTranscript, err.Error())
	}
	keyTimesLambdaCommit, err := transcript.ExtractCommitment(q.KeyTimesLambda)
	if err != nil {
		return errors.Wrap(idkg.ErrInvalidTranscript, err.Error())
	}
	if lambdaCommit.Type != primitives.CommitmentPedersen || keyTimesLambdaCommit.Type != primitives.CommitmentPedersen {
		return errors.Wrap(idkg.ErrInvalidTranscript, "lambda and key*lambda must carry pedersen commitments")
	}

	lhs := primitives.NewPoint().Add(
		primitives.NewPoint().Mul(mPrime, lambdaCommit.Eval(idx)),
		primitives.NewPoint().Mul(r, keyTimesLambdaCommit.Eval(idx)),
	)
	rhs := primitives.NewPoint().Add(
		primitives.NewPoint().Mul(sigma, lambdaCommit.Base),
		primitives.NewPoint().Mul(maskCombo, lambdaCommit.Mask),
	)
	if !lhs.Equal(rhs) {
		return idkg.ErrInvalidMultisignature
	}
	return nil
}
