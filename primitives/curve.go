// Package primitives implements the elliptic-curve building blocks the IDKG
// engine is assembled from: scalars and points over secp256k1, Shamir
// polynomials and their public commitments (simple or Pedersen-masked), MEGa
// multi-recipient verifiable encryption, a Schnorr-style discrete-log
// equality NIZK, and the versioned wire codec for the internal_*_raw fields.
//
// None of this package is specific to any one dealing type; dealing/,
// transcript/ and signing/ compose it.
package primitives

import (
	"io"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
)

// Scalar is an element of Z_q, q the order of the secp256k1 group, backed by
// the constant-time field arithmetic of dcrec/secp256k1.
type Scalar struct {
	v secp256k1.ModNScalar
}

// NewScalar returns the zero scalar.
func NewScalar() *Scalar {
	return &Scalar{}
}

// ScalarFromInt returns the scalar representing a small non-negative integer.
// Used throughout to build the x-coordinate (index+1) of a share.
func ScalarFromInt(n uint32) *Scalar {
	s := &Scalar{}
	s.v.SetInt(n)
	return s
}

// RandomScalar draws a uniformly random scalar from rnd, which must be a
// cryptographic source (crypto/rand.Reader in production).
func RandomScalar(rnd io.Reader) (*Scalar, error) {
	var buf [32]byte
	for {
		if _, err := io.ReadFull(rnd, buf[:]); err != nil {
			return nil, err
		}
		s := &Scalar{}
		overflow := s.v.SetBytes((*[32]byte)(&buf))
		if overflow == 0 && !s.v.IsZero() {
			return s, nil
		}
		// Reject and resample on overflow or zero, matching the teacher's
		// rejection-sampling pattern for uniform field elements.
	}
}

// ScalarFromBytes decodes a big-endian, reduced 32-byte scalar.
func ScalarFromBytes(b []byte) (*Scalar, error) {
	if len(b) != 32 {
		return nil, ErrInvalidEncoding
	}
	s := &Scalar{}
	s.v.SetByteSlice(b)
	return s, nil
}

// SetBytes overwrites s with the reduction of b mod q and returns s.
func (s *Scalar) SetBytes(b []byte) *Scalar {
	s.v.SetByteSlice(b)
	return s
}

// Bytes returns the big-endian, 32-byte canonical encoding of s.
func (s *Scalar) Bytes() []byte {
	b := s.v.Bytes()
	out := make([]byte, 32)
	copy(out, b[:])
	return out
}

// Clone returns an independent copy of s.
func (s *Scalar) Clone() *Scalar {
	c := &Scalar{}
	c.v.Set(&s.v)
	return c
}

// Add sets s = a + b and returns s.
func (s *Scalar) Add(a, b *Scalar) *Scalar {
	s.v.Set(&a.v)
	s.v.Add(&b.v)
	return s
}

// Sub sets s = a - b and returns s.
func (s *Scalar) Sub(a, b *Scalar) *Scalar {
	var neg secp256k1.ModNScalar
	neg.Set(&b.v).Negate()
	s.v.Set(&a.v)
	s.v.Add(&neg)
	return s
}

// Mul sets s = a * b and returns s.
func (s *Scalar) Mul(a, b *Scalar) *Scalar {
	s.v.Set(&a.v)
	s.v.Mul(&b.v)
	return s
}

// Negate sets s = -a and returns s.
func (s *Scalar) Negate(a *Scalar) *Scalar {
	s.v.Set(&a.v)
	s.v.Negate()
	return s
}

// IsZero reports whether s is the additive identity.
func (s *Scalar) IsZero() bool {
	return s.v.IsZero()
}

// Equal reports whether s and o represent the same field element.
func (s *Scalar) Equal(o *Scalar) bool {
	return s.v.Equals(&o.v)
}

// IsOverHalfOrder reports whether s is greater than q/2 — ECDSA's low-S
// malleability check, applied to the combined signature's s value.
func (s *Scalar) IsOverHalfOrder() bool {
	return s.v.IsOverHalfOrder()
}

// NegateScalar returns q - s.
func NegateScalar(s *Scalar) *Scalar {
	return NewScalar().Negate(s)
}

// Point is a point on the secp256k1 curve, represented internally in
// Jacobian coordinates to avoid an inversion on every group operation.
type Point struct {
	v secp256k1.JacobianPoint
}

// NewPoint returns the point at infinity.
func NewPoint() *Point {
	p := &Point{}
	p.v.Z.SetInt(0)
	return p
}

// MulBase returns s*G, G the secp256k1 base point.
func MulBase(s *Scalar) *Point {
	p := &Point{}
	secp256k1.ScalarBaseMultNonConst(&s.v, &p.v)
	return p
}

// Mul sets p = s*base and returns p.
func (p *Point) Mul(s *Scalar, base *Point) *Point {
	secp256k1.ScalarMultNonConst(&s.v, &base.v, &p.v)
	return p
}

// Add sets p = a + b and returns p.
func (p *Point) Add(a, b *Point) *Point {
	secp256k1.AddNonConst(&a.v, &b.v, &p.v)
	return p
}

// Sub sets p = a - b and returns p.
func (p *Point) Sub(a, b *Point) *Point {
	negB := NewPoint().Mul(NegateScalar(ScalarFromInt(1)), b)
	secp256k1.AddNonConst(&a.v, &negB.v, &p.v)
	return p
}

// Clone returns an independent copy of p.
func (p *Point) Clone() *Point {
	c := &Point{}
	c.v.Set(&p.v)
	return c
}

// Equal reports whether p and o represent the same curve point.
func (p *Point) Equal(o *Point) bool {
	p.v.ToAffine()
	o.v.ToAffine()
	return p.v.X.Equals(&o.v.X) && p.v.Y.Equals(&o.v.Y) && p.v.Z.Equals(&o.v.Z)
}

// X returns p's affine x-coordinate reduced mod q (the group order), the
// conversion ECDSA's r = (k*G).x mod q requires, as opposed to the mod-p
// field element ToAffine itself produces.
func (p *Point) X() *Scalar {
	p.v.ToAffine()
	b := p.v.X.Bytes()
	return NewScalar().SetBytes(b[:])
}

// Bytes returns the SEC1 compressed encoding of p.
func (p *Point) Bytes() []byte {
	p.v.ToAffine()
	pub := secp256k1.NewPublicKey(&p.v.X, &p.v.Y)
	return pub.SerializeCompressed()
}

// PointFromBytes decodes a SEC1 compressed or uncompressed point.
func PointFromBytes(b []byte) (*Point, error) {
	pub, err := secp256k1.ParsePubKey(b)
	if err != nil {
		return nil, ErrInvalidEncoding
	}
	p := &Point{}
	pub.AsJacobian(&p.v)
	return p, nil
}

// HashHint derives a domain-separated secp256k1 base point distinct from G,
// used as the Pedersen mask generator H. It is deterministic in domain so
// every participant derives the identical point without a trusted setup.
func HashHint(domain string) *Point {
	// Hash-to-curve via try-and-increment over the domain tag; secp256k1's
	// field is large enough that this terminates in a handful of tries.
	ctr := uint32(0)
	for {
		digest := blake2bSum(append([]byte(domain), encodeUint32(ctr)...))
		x := digest[:32]
		if p, err := PointFromBytes(append([]byte{0x02}, x...)); err == nil {
			return p
		}
		ctr++
	}
}
