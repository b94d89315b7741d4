package primitives

// CommitmentType distinguishes a simple (unmasked) polynomial commitment
// from a Pedersen (masked) one, matching spec.md's unmasked/masked dealing
// distinction: ReshareOfUnmasked dealings commit with Simple, while Random,
// ReshareOfMasked and UnmaskedTimesMasked dealings commit with Pedersen so
// the commitment alone leaks nothing about the shared value.
type CommitmentType int

const (
	CommitmentSimple CommitmentType = iota
	CommitmentPedersen
)

// Commitment is the public commitment to a dealer's sharing polynomial(s).
// For CommitmentPedersen, Commits[k] = valueCoeff_k*Base + maskCoeff_k*Mask;
// for CommitmentSimple, Commits[k] = valueCoeff_k*Base and Mask is nil.
type Commitment struct {
	Type    CommitmentType
	Base    *Point
	Mask    *Point
	Commits []*Point
}

// NewSimpleCommitment commits poly's coefficients with respect to base alone.
func NewSimpleCommitment(poly *PriPoly, base *Point) *Commitment {
	commits := make([]*Point, poly.Threshold())
	for i := range commits {
		commits[i] = NewPoint().Mul(poly.coeffs[i], base)
	}
	return &Commitment{Type: CommitmentSimple, Base: base, Commits: commits}
}

// NewPedersenCommitment commits valuePoly and maskPoly jointly with respect
// to base and mask. Both polynomials must share the same threshold.
func NewPedersenCommitment(valuePoly, maskPoly *PriPoly, base, mask *Point) (*Commitment, error) {
	if valuePoly.Threshold() != maskPoly.Threshold() {
		return nil, ErrLengthMismatch
	}
	n := valuePoly.Threshold()
	commits := make([]*Point, n)
	for i := 0; i < n; i++ {
		vg := NewPoint().Mul(valuePoly.coeffs[i], base)
		mh := NewPoint().Mul(maskPoly.coeffs[i], mask)
		commits[i] = NewPoint().Add(vg, mh)
	}
	return &Commitment{Type: CommitmentPedersen, Base: base, Mask: mask, Commits: commits}, nil
}

// Threshold returns the reconstruction threshold this commitment attests to.
func (c *Commitment) Threshold() int { return len(c.Commits) }

// ConstantTerm returns the commitment to the polynomial's constant term.
func (c *Commitment) ConstantTerm() *Point { return c.Commits[0].Clone() }

func (c *Commitment) eval(i uint32) *Point {
	xi := shareX(i)
	v := c.Commits[len(c.Commits)-1].Clone()
	for j := len(c.Commits) - 2; j >= 0; j-- {
		v = NewPoint().Mul(xi, v)
		v = NewPoint().Add(v, c.Commits[j])
	}
	return v
}

// Eval returns the commitment's public evaluation at receiver index i,
// i.e. the point any share consistent with c at i must open against. Used
// by signing/ to recompute a signer's public image against a Pedersen
// commitment directly, rather than through CheckPedersen's fixed equation.
func (c *Commitment) Eval(i uint32) *Point {
	return c.eval(i)
}

// CheckSimple verifies share against a CommitmentSimple.
func (c *Commitment) CheckSimple(share *PriShare) bool {
	if c.Type != CommitmentSimple {
		return false
	}
	expect := c.eval(share.I)
	got := NewPoint().Mul(share.V, c.Base)
	return expect.Equal(got)
}

// CheckPedersen verifies a (value, mask) share pair against a
// CommitmentPedersen.
func (c *Commitment) CheckPedersen(valueShare, maskShare *PriShare) bool {
	if c.Type != CommitmentPedersen || valueShare.I != maskShare.I {
		return false
	}
	expect := c.eval(valueShare.I)
	vg := NewPoint().Mul(valueShare.V, c.Base)
	mh := NewPoint().Mul(maskShare.V, c.Mask)
	got := NewPoint().Add(vg, mh)
	return expect.Equal(got)
}
