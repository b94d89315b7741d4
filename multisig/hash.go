package multisig

import (
	"golang.org/x/crypto/blake2b"

	"github.com/dkgmesh/idkg/primitives"
)

func hashChallenge(r, pub *primitives.Point, msg []byte) [32]byte {
	data := append(append(r.Bytes(), pub.Bytes()...), msg...)
	return blake2b.Sum256(data)
}
