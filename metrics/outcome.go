package metrics

import (
	"errors"

	"github.com/dkgmesh/idkg/idkg"
)

var errorsIs = errors.Is

// sentinelsByName maps each idkg error sentinel to the label Observe
// reports it under, so a dashboard can alert on (say) a spike in
// invalid_dealing without grepping log text.
var sentinelsByName = map[string]error{
	"not_a_dealer":               idkg.ErrNotADealer,
	"not_a_receiver":             idkg.ErrNotAReceiver,
	"dealer_not_allowed":         idkg.ErrDealerNotAllowed,
	"signer_not_allowed":         idkg.ErrSignerNotAllowed,
	"public_key_not_found":       idkg.ErrPublicKeyNotFound,
	"unsatisfied_collection":     idkg.ErrUnsatisfiedCollectionThreshold,
	"unsatisfied_verification":   idkg.ErrUnsatisfiedVerificationThreshold,
	"unsatisfied_reconstruction": idkg.ErrUnsatisfiedReconstructionThreshold,
	"invalid_dealing":            idkg.ErrInvalidDealing,
	"invalid_transcript":         idkg.ErrInvalidTranscript,
	"invalid_complaint":          idkg.ErrInvalidComplaint,
	"invalid_opening":            idkg.ErrInvalidOpening,
	"invalid_multisignature":     idkg.ErrInvalidMultisignature,
	"malformed_signature":        idkg.ErrMalformedSignature,
	"secret_shares_not_found":    idkg.ErrSecretSharesNotFound,
	"serialization_error":        idkg.ErrSerializationError,
	"transcoding_error":          idkg.ErrTranscodingError,
	"registry_error":             idkg.ErrRegistryError,
	"invalid_state_transition":   idkg.ErrInvalidStateTransition,
	"transcript_not_verified":    idkg.ErrTranscriptNotVerified,
}
