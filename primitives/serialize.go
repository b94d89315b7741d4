package primitives

import (
	"github.com/fxamacker/cbor/v2"
)

// RawEnvelope is the versioned, CBOR-tagged wire representation spec.md §6
// calls the "CBOR-like tagged fields" schema for every internal_*_raw field:
// Dealing.internal_dealing_raw, Transcript.internal_transcript_raw,
// Complaint.internal_complaint_raw, Opening.internal_opening_raw.
// SignedDealing's signature is plain CBOR from multisig, without this
// envelope. Version lets a future algorithm id change
// the payload shape without breaking older transcripts still on disk.
type RawEnvelope struct {
	_           struct{} `cbor:",toarray"`
	Version     uint32
	AlgorithmID string
	Payload     []byte
}

// EncodeRaw wraps payload, produced by cbor-marshaling a concrete type such
// as dealingWireV1, into a versioned envelope.
func EncodeRaw(version uint32, algorithmID string, payload []byte) ([]byte, error) {
	env := RawEnvelope{Version: version, AlgorithmID: algorithmID, Payload: payload}
	return cbor.Marshal(env)
}

// DecodeRaw unwraps an envelope produced by EncodeRaw.
func DecodeRaw(raw []byte) (RawEnvelope, error) {
	var env RawEnvelope
	if err := cbor.Unmarshal(raw, &env); err != nil {
		return RawEnvelope{}, err
	}
	return env, nil
}

// MarshalCBOR is a thin helper so callers outside this package don't import
// fxamacker/cbor directly; every concrete internal_*_raw payload type is
// cbor-(un)marshaled through here.
func MarshalCBOR(v interface{}) ([]byte, error) {
	return cbor.Marshal(v)
}

// UnmarshalCBOR is the inverse of MarshalCBOR.
func UnmarshalCBOR(data []byte, v interface{}) error {
	return cbor.Unmarshal(data, v)
}
