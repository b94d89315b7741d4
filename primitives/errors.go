package primitives

import "errors"

// Sentinel errors for the low-level cryptographic primitives. Higher layers
// (dealing, transcript, signing) wrap these with operation-specific context
// rather than inventing parallel error values.
var (
	ErrInsufficientShares = errors.New("primitives: fewer shares than threshold")
	ErrZeroDivision       = errors.New("primitives: division by zero scalar")
	ErrInvalidEncoding    = errors.New("primitives: malformed point or scalar encoding")
	ErrDecryptionFailed   = errors.New("primitives: MEGa decryption failed")
	ErrInvalidProof       = errors.New("primitives: NIZK proof failed verification")
	ErrLengthMismatch     = errors.New("primitives: mismatched slice lengths")
)
