package idkg

import "errors"

// Error kinds surface the failing invariant precisely enough that the
// consensus layer driving this engine can react (re-deal, eject, abandon)
// without inspecting error strings. Modeled on the teacher's
// internal/dkg/state_machine.go `var Err... = errors.New(...)` block, one
// sentinel per named failure rather than a single generic error type.
var (
	// Input validation.
	ErrNotADealer         = errors.New("idkg: caller is not a dealer for these params")
	ErrNotAReceiver       = errors.New("idkg: caller is not a receiver for these params")
	ErrDealerNotAllowed   = errors.New("idkg: dealer id is not in params.dealers")
	ErrSignerNotAllowed   = errors.New("idkg: signer id is not in params.receivers")
	ErrPublicKeyNotFound  = errors.New("idkg: no MEGa public key at the requested registry version")

	// Thresholds.
	ErrUnsatisfiedCollectionThreshold     = errors.New("idkg: fewer dealings than the collection threshold")
	ErrUnsatisfiedVerificationThreshold   = errors.New("idkg: fewer signers than the verification threshold")
	ErrUnsatisfiedReconstructionThreshold = errors.New("idkg: fewer shares than the reconstruction threshold")

	// Cryptographic.
	ErrInvalidDealing        = errors.New("idkg: dealing failed cryptographic verification")
	ErrInvalidTranscript     = errors.New("idkg: transcript failed cryptographic verification")
	ErrInvalidComplaint      = errors.New("idkg: complaint failed cryptographic verification")
	ErrInvalidOpening        = errors.New("idkg: opening failed cryptographic verification")
	ErrInvalidMultisignature = errors.New("idkg: combined multi-signature failed verification")
	ErrMalformedSignature    = errors.New("idkg: combined signature is malformed")

	// Local state.
	ErrSecretSharesNotFound = errors.New("idkg: no locally stored share for the referenced transcript")

	// Serialization / registry.
	ErrSerializationError = errors.New("idkg: failed to serialize internal wire representation")
	ErrTranscodingError    = errors.New("idkg: failed to decode internal wire representation, or unknown schema version")
	ErrRegistryError       = errors.New("idkg: registry adapter returned an error")

	// State machine.
	ErrInvalidStateTransition = errors.New("idkg: invalid transcript lifecycle transition")
	ErrTranscriptNotVerified  = errors.New("idkg: transcript has not been verified")
)

// Fault wraps an InternalError: an invariant the engine believes can never
// fail in practice. Its Description is the single audited exception to the
// "never leak secret material in error text" rule — callers constructing a
// Fault must redact any key material before attaching a description.
type Fault struct {
	Description string
}

func (f *Fault) Error() string {
	return "idkg: internal error: " + f.Description
}

// NewFault constructs an InternalError with a redacted description.
func NewFault(description string) error {
	return &Fault{Description: description}
}

// NodeID identifies a participant by opaque identifier, the unit the
// registry adapter and multi-signature adapter key their lookups on.
type NodeID string
