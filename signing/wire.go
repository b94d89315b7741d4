// Package signing implements spec.md §4.4's threshold-ECDSA signing
// engine: sign_share, verify_sig_share, combine_sig_shares and
// verify_combined_sig, built on top of the four transcripts of a
// PreSignatureQuadruple and a BIP32-unhardened subkey derivation.
package signing

import (
	"github.com/dkgmesh/idkg/primitives"
)

// sigShareWireV1 is SigShare.Value's opaque encoding: sigma is the signer's
// contribution to the combined s, V is the signer's opened kappa*lambda
// share (the second quantity combine_sig_shares needs to divide sigma's
// interpolated sum by), and MaskCombo is the homomorphic mask counterpart
// of sigma -- the quantity verify_sig_share needs to recompute sigma's
// public image against Lambda and KeyTimesLambda's Pedersen commitments,
// since a value share alone is only checkable against a Simple commitment.
type sigShareWireV1 struct {
	_ struct{} `cbor:",toarray"`

	Sigma     []byte
	V         []byte
	MaskCombo []byte
}

func encodeSigShare(sigma, v, maskCombo *primitives.Scalar) ([]byte, error) {
	w := sigShareWireV1{Sigma: sigma.Bytes(), V: v.Bytes(), MaskCombo: maskCombo.Bytes()}
	return primitives.MarshalCBOR(w)
}

func decodeSigShare(raw []byte) (sigma, v, maskCombo *primitives.Scalar, err error) {
	var w sigShareWireV1
	if err := primitives.UnmarshalCBOR(raw, &w); err != nil {
		return nil, nil, nil, err
	}
	if sigma, err = primitives.ScalarFromBytes(w.Sigma); err != nil {
		return nil, nil, nil, err
	}
	if v, err = primitives.ScalarFromBytes(w.V); err != nil {
		return nil, nil, nil, err
	}
	if maskCombo, err = primitives.ScalarFromBytes(w.MaskCombo); err != nil {
		return nil, nil, nil, err
	}
	return sigma, v, maskCombo, nil
}
