package primitives

import (
	"io"

	"github.com/cronokirby/saferith"
)

// curveOrder is the order q of the secp256k1 group, used as the saferith
// modulus for constant-time Lagrange-coefficient inversion. Plain
// math/big-based modular inverse (as kyber's share package uses for its
// generic Group) runs in variable time on the operand, which is share
// material here rather than public data, so inversion goes through
// saferith instead.
var curveOrder = saferith.ModulusFromBytes([]byte{
	0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF,
	0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFE,
	0xBA, 0xAE, 0xDC, 0xE6, 0xAF, 0x48, 0xA0, 0x3B,
	0xBF, 0xD2, 0x5E, 0x8C, 0xD0, 0x36, 0x41, 0x41,
})

func invertScalar(s *Scalar) (*Scalar, error) {
	if s.IsZero() {
		return nil, ErrZeroDivision
	}
	nat := new(saferith.Nat).SetBytes(s.Bytes())
	inv := new(saferith.Nat).ModInverse(nat, curveOrder)
	return ScalarFromBytes(padTo32(inv.Bytes()))
}

// Invert returns the multiplicative inverse of s mod q. Exported for
// signing/, which divides by the reconstructed kappa*lambda quantity to
// recover s = mu / v.
func Invert(s *Scalar) (*Scalar, error) {
	return invertScalar(s)
}

func padTo32(b []byte) []byte {
	if len(b) >= 32 {
		return b[len(b)-32:]
	}
	out := make([]byte, 32)
	copy(out[32-len(b):], b)
	return out
}

// shareX is the x-coordinate convention for a dealer/receiver index: index+1
// so that no share is evaluated at x=0, the secret's own coordinate.
func shareX(index uint32) *Scalar {
	return ScalarFromInt(index + 1)
}

// PriShare is a PriPoly's evaluation at receiver index I (x = I+1).
type PriShare struct {
	I uint32
	V *Scalar
}

// PriPoly is a secret-sharing polynomial over Z_q. Index 0 holds the secret.
type PriPoly struct {
	coeffs []*Scalar
}

// NewPriPoly returns a random polynomial of the given threshold (degree
// threshold-1) whose constant term is secret, or a fresh random secret when
// secret is nil.
func NewPriPoly(threshold int, secret *Scalar, rnd io.Reader) (*PriPoly, error) {
	if threshold < 1 {
		return nil, ErrInsufficientShares
	}
	coeffs := make([]*Scalar, threshold)
	if secret == nil {
		s, err := RandomScalar(rnd)
		if err != nil {
			return nil, err
		}
		coeffs[0] = s
	} else {
		coeffs[0] = secret.Clone()
	}
	for i := 1; i < threshold; i++ {
		c, err := RandomScalar(rnd)
		if err != nil {
			return nil, err
		}
		coeffs[i] = c
	}
	return &PriPoly{coeffs: coeffs}, nil
}

// Threshold returns the reconstruction threshold (degree + 1) of p.
func (p *PriPoly) Threshold() int { return len(p.coeffs) }

// Secret returns a copy of the polynomial's constant term.
func (p *PriPoly) Secret() *Scalar { return p.coeffs[0].Clone() }

// Eval evaluates p at the share coordinate belonging to receiver index i
// using Horner's method.
func (p *PriPoly) Eval(i uint32) *PriShare {
	xi := shareX(i)
	v := p.coeffs[len(p.coeffs)-1].Clone()
	for j := len(p.coeffs) - 2; j >= 0; j-- {
		v = NewScalar().Mul(v, xi)
		v = NewScalar().Add(v, p.coeffs[j])
	}
	return &PriShare{I: i, V: v}
}

// Shares evaluates p at indices 0..n-1.
func (p *PriPoly) Shares(n int) []*PriShare {
	out := make([]*PriShare, n)
	for i := 0; i < n; i++ {
		out[i] = p.Eval(uint32(i))
	}
	return out
}

// RecoverSecret reconstructs the polynomial's constant term from threshold
// or more shares via Lagrange interpolation at x=0.
func RecoverSecret(shares []*PriShare, threshold int) (*Scalar, error) {
	if len(shares) < threshold {
		return nil, ErrInsufficientShares
	}
	used := shares[:threshold]
	acc := NewScalar()
	for j, sj := range used {
		coeff, err := lagrangeCoeffAtZero(used, j)
		if err != nil {
			return nil, err
		}
		term := NewScalar().Mul(coeff, sj.V)
		acc = NewScalar().Add(acc, term)
	}
	return acc, nil
}

// lagrangeCoeffAtZero computes L_j(0) = prod_{k!=j} x_k/(x_k - x_j) for the
// share at position j within shares.
func lagrangeCoeffAtZero(shares []*PriShare, j int) (*Scalar, error) {
	return lagrangeCoeffAt(shares, j, ScalarFromInt(0))
}

// lagrangeCoeffAt computes L_j(at) = prod_{k!=j} (at-x_k)/(x_j-x_k) for the
// share at position j within shares.
func lagrangeCoeffAt(shares []*PriShare, j int, at *Scalar) (*Scalar, error) {
	xj := shareX(shares[j].I)
	num := ScalarFromInt(1)
	den := ScalarFromInt(1)
	for k, sk := range shares {
		if k == j {
			continue
		}
		xk := shareX(sk.I)
		num = NewScalar().Mul(num, NewScalar().Sub(at, xk))
		den = NewScalar().Mul(den, NewScalar().Sub(xj, xk))
	}
	denInv, err := invertScalar(den)
	if err != nil {
		return nil, err
	}
	return NewScalar().Mul(num, denInv), nil
}

// RecoverShareAt interpolates the polynomial implied by shares at the
// coordinate belonging to receiver index at, without reconstructing the
// constant term. Used by transcript.LoadTranscriptWithOpenings, where a
// complainant recovers its own share from a quorum of other receivers'
// openings rather than the shared secret itself.
func RecoverShareAt(shares []*PriShare, threshold int, at uint32) (*Scalar, error) {
	if len(shares) < threshold {
		return nil, ErrInsufficientShares
	}
	used := shares[:threshold]
	atX := shareX(at)
	acc := NewScalar()
	for j, sj := range used {
		coeff, err := lagrangeCoeffAt(used, j, atX)
		if err != nil {
			return nil, err
		}
		term := NewScalar().Mul(coeff, sj.V)
		acc = NewScalar().Add(acc, term)
	}
	return acc, nil
}

// PubShare is the public commitment to a single receiver's private share.
type PubShare struct {
	I uint32
	V *Point
}

// PubPoly is the public commitment to a PriPoly with respect to a single
// base point: coefficient k committed as coeffs[k]*Base.
type PubPoly struct {
	base    *Point
	commits []*Point
}

// Commit commits p's coefficients with respect to base.
func (p *PriPoly) Commit(base *Point) *PubPoly {
	commits := make([]*Point, len(p.coeffs))
	for i, c := range p.coeffs {
		commits[i] = NewPoint().Mul(c, base)
	}
	return &PubPoly{base: base, commits: commits}
}

// Threshold returns the reconstruction threshold committed to.
func (p *PubPoly) Threshold() int { return len(p.commits) }

// Commit returns the commitment to the polynomial's constant term (the
// "public key" when the constant term is a signing key).
func (p *PubPoly) Commit() *Point { return p.commits[0].Clone() }

// Eval evaluates the committed polynomial at receiver index i.
func (p *PubPoly) Eval(i uint32) *PubShare {
	xi := shareX(i)
	v := p.commits[len(p.commits)-1].Clone()
	for j := len(p.commits) - 2; j >= 0; j-- {
		v = NewPoint().Mul(xi, v)
		v = NewPoint().Add(v, p.commits[j])
	}
	return &PubShare{I: i, V: v}
}

// Check reports whether s is consistent with p, i.e. s.V*base == p.Eval(s.I).
func (p *PubPoly) Check(s *PriShare) bool {
	expect := p.Eval(s.I).V
	got := NewPoint().Mul(s.V, p.base)
	return expect.Equal(got)
}

// RecoverCommit reconstructs the committed constant term from threshold or
// more public shares via Lagrange interpolation in the exponent.
func RecoverCommit(shares []*PubShare, threshold int) (*Point, error) {
	if len(shares) < threshold {
		return nil, ErrInsufficientShares
	}
	used := shares[:threshold]
	priLike := make([]*PriShare, len(used))
	for i, s := range used {
		priLike[i] = &PriShare{I: s.I}
	}
	acc := NewPoint()
	for j, sj := range used {
		coeff, err := lagrangeCoeffAtZero(priLike, j)
		if err != nil {
			return nil, err
		}
		term := NewPoint().Mul(coeff, sj.V)
		acc = NewPoint().Add(acc, term)
	}
	return acc, nil
}
