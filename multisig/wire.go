package multisig

import (
	"github.com/dkgmesh/idkg/idkg"
	"github.com/dkgmesh/idkg/primitives"
)

type individualSigWire struct {
	_        struct{} `cbor:",toarray"`
	SignerID string
	R        []byte
	S        []byte
}

type combinedSigWire struct {
	_           struct{} `cbor:",toarray"`
	Individuals []individualSigWire
}

// EncodeCombinedSig serializes sig for storage in SignedDealing.Signature.
func EncodeCombinedSig(sig CombinedSig) ([]byte, error) {
	w := combinedSigWire{Individuals: make([]individualSigWire, len(sig.Individuals))}
	for i, ind := range sig.Individuals {
		w.Individuals[i] = individualSigWire{
			SignerID: string(ind.SignerID),
			R:        ind.R.Bytes(),
			S:        ind.S.Bytes(),
		}
	}
	return primitives.MarshalCBOR(w)
}

// DecodeCombinedSig is the inverse of EncodeCombinedSig.
func DecodeCombinedSig(data []byte) (CombinedSig, error) {
	var w combinedSigWire
	if err := primitives.UnmarshalCBOR(data, &w); err != nil {
		return CombinedSig{}, err
	}
	out := CombinedSig{Individuals: make([]IndividualSig, len(w.Individuals))}
	for i, ind := range w.Individuals {
		r, err := primitives.PointFromBytes(ind.R)
		if err != nil {
			return CombinedSig{}, err
		}
		s, err := primitives.ScalarFromBytes(ind.S)
		if err != nil {
			return CombinedSig{}, err
		}
		out.Individuals[i] = IndividualSig{SignerID: idkg.NodeID(ind.SignerID), R: r, S: s}
	}
	return out, nil
}
