package primitives

import (
	"encoding/binary"
	"hash"

	"golang.org/x/crypto/blake2b"
)

func newBlake2b256() hash.Hash {
	h, _ := blake2b.New256(nil)
	return h
}

// blake2bSum is the identity/domain hash used across MEGa key derivation,
// transcript hashing and hash-to-curve, following common/key's use of
// blake2b for identity hashes in the teacher repo.
func blake2bSum(data []byte) [32]byte {
	return blake2b.Sum256(data)
}

func encodeUint32(v uint32) []byte {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	return b[:]
}
