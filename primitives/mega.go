package primitives

import (
	"io"

	"golang.org/x/crypto/hkdf"
)

// MEGa is the multi-recipient, verifiable encryption scheme dealings use to
// deliver shares: a single ephemeral key is shared across all receivers, and
// each receiver's plaintext(s) are masked by an HKDF-derived scalar bound to
// the receiver's own ECDH shared secret, the dealing's domain context and the
// receiver's index. Ported from the teacher's ecies/ecies.go (ephemeral-
// static ECDH + HKDF + symmetric encryption) generalized from a single
// recipient to many recipients sharing one ephemeral key, and from byte-
// string payloads to field-element payloads so the ciphertext composes
// algebraically with the polynomial commitment it accompanies.
//
// MEGaCiphertextSingle carries one masked scalar per receiver (Simple-
// committed ReshareOfUnmasked dealings); MEGaCiphertextPairs carries two
// (Pedersen-committed Random, ReshareOfMasked and UnmaskedTimesMasked
// dealings, which must deliver both a value share and a mask share to each
// receiver).

// MEGaCiphertextSingle is the one-scalar-per-receiver MEGa ciphertext.
type MEGaCiphertextSingle struct {
	EphemeralKey *Point
	Ciphertexts  [][]byte
}

// MEGaCiphertextPairs is the two-scalar-per-receiver MEGa ciphertext.
type MEGaCiphertextPairs struct {
	EphemeralKey *Point
	Ciphertexts  [][2][]byte
}

func dhShared(secret *Scalar, point *Point) *Point {
	return NewPoint().Mul(secret, point)
}

// DHShared computes the ECDH shared point secret*point. Exported for the
// complaint path (transcript/), which must reveal this point alongside a
// NIZK that it was honestly derived from the complainer's registered public
// key, rather than trusting the complainer's own secret key.
func DHShared(secret *Scalar, point *Point) *Point {
	return dhShared(secret, point)
}

func megaMask(sharedPoint *Point, context []byte, receiverIndex uint32, sub byte) ([]byte, error) {
	info := concatBytes(context, encodeUint32(receiverIndex), []byte{sub})
	h := hkdf.New(newBlake2b256, sharedPoint.Bytes(), nil, info)
	out := make([]byte, 32)
	if _, err := io.ReadFull(h, out); err != nil {
		return nil, err
	}
	return out, nil
}

func maskScalar(pt *Scalar, mask []byte) []byte {
	m := NewScalar().SetBytes(mask)
	return NewScalar().Add(pt, m).Bytes()
}

func unmaskScalar(ct []byte, mask []byte) *Scalar {
	m := NewScalar().SetBytes(mask)
	c := NewScalar().SetBytes(ct)
	return NewScalar().Sub(c, m)
}

// EncryptSingle encrypts one plaintext scalar per receiver public key under
// a freshly drawn ephemeral key, binding the encryption to context (the
// dealing's domain separation tag, typically the transcript id and algorithm
// id). It returns the ciphertext, which carries the ephemeral public key, and
// the ephemeral secret; create_dealing does not use the latter.
func EncryptSingle(rnd io.Reader, context []byte, receiverPubKeys []*Point, plaintexts []*Scalar) (*MEGaCiphertextSingle, *Scalar, error) {
	if len(receiverPubKeys) != len(plaintexts) {
		return nil, nil, ErrLengthMismatch
	}
	ephSecret, err := RandomScalar(rnd)
	if err != nil {
		return nil, nil, err
	}
	ephPub := MulBase(ephSecret)
	cts := make([][]byte, len(receiverPubKeys))
	for i, pk := range receiverPubKeys {
		mask, err := megaMask(dhShared(ephSecret, pk), context, uint32(i), 0)
		if err != nil {
			return nil, nil, err
		}
		cts[i] = maskScalar(plaintexts[i], mask)
	}
	return &MEGaCiphertextSingle{EphemeralKey: ephPub, Ciphertexts: cts}, ephSecret, nil
}

// DecryptSingle recovers the plaintext intended for receiverIndex using that
// receiver's static secret key.
func DecryptSingle(ct *MEGaCiphertextSingle, receiverIndex uint32, receiverSecret *Scalar, context []byte) (*Scalar, error) {
	return DecryptSingleFromSharedPoint(ct, receiverIndex, dhShared(receiverSecret, ct.EphemeralKey), context)
}

// DecryptSingleFromSharedPoint is DecryptSingle given the ECDH shared point
// directly rather than the receiver's secret key, used by the complaint path
// (transcript/) where a complainer reveals the shared point alongside a NIZK
// that it was honestly derived, so any other receiver can redo the
// commitment check without trusting the complainer's own secret key.
func DecryptSingleFromSharedPoint(ct *MEGaCiphertextSingle, receiverIndex uint32, sharedPoint *Point, context []byte) (*Scalar, error) {
	if int(receiverIndex) >= len(ct.Ciphertexts) {
		return nil, ErrInvalidEncoding
	}
	mask, err := megaMask(sharedPoint, context, receiverIndex, 0)
	if err != nil {
		return nil, err
	}
	return unmaskScalar(ct.Ciphertexts[receiverIndex], mask), nil
}

// EncryptPairs is EncryptSingle generalized to two plaintexts per receiver.
func EncryptPairs(rnd io.Reader, context []byte, receiverPubKeys []*Point, plaintexts [][2]*Scalar) (*MEGaCiphertextPairs, *Scalar, error) {
	if len(receiverPubKeys) != len(plaintexts) {
		return nil, nil, ErrLengthMismatch
	}
	ephSecret, err := RandomScalar(rnd)
	if err != nil {
		return nil, nil, err
	}
	ephPub := MulBase(ephSecret)
	cts := make([][2][]byte, len(receiverPubKeys))
	for i, pk := range receiverPubKeys {
		shared := dhShared(ephSecret, pk)
		mask0, err := megaMask(shared, context, uint32(i), 0)
		if err != nil {
			return nil, nil, err
		}
		mask1, err := megaMask(shared, context, uint32(i), 1)
		if err != nil {
			return nil, nil, err
		}
		cts[i] = [2][]byte{maskScalar(plaintexts[i][0], mask0), maskScalar(plaintexts[i][1], mask1)}
	}
	return &MEGaCiphertextPairs{EphemeralKey: ephPub, Ciphertexts: cts}, ephSecret, nil
}

// DecryptPairs recovers the (value, mask) plaintext pair intended for
// receiverIndex.
func DecryptPairs(ct *MEGaCiphertextPairs, receiverIndex uint32, receiverSecret *Scalar, context []byte) (value, mask *Scalar, err error) {
	return DecryptPairsFromSharedPoint(ct, receiverIndex, dhShared(receiverSecret, ct.EphemeralKey), context)
}

// DecryptPairsFromSharedPoint is DecryptPairs given the ECDH shared point
// directly; see DecryptSingleFromSharedPoint.
func DecryptPairsFromSharedPoint(ct *MEGaCiphertextPairs, receiverIndex uint32, shared *Point, context []byte) (value, mask *Scalar, err error) {
	if int(receiverIndex) >= len(ct.Ciphertexts) {
		return nil, nil, ErrInvalidEncoding
	}
	mask0, err := megaMask(shared, context, receiverIndex, 0)
	if err != nil {
		return nil, nil, err
	}
	mask1, err := megaMask(shared, context, receiverIndex, 1)
	if err != nil {
		return nil, nil, err
	}
	pair := ct.Ciphertexts[receiverIndex]
	value = unmaskScalar(pair[0], mask0)
	mask = unmaskScalar(pair[1], mask1)
	return value, mask, nil
}
