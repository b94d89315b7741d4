// Package keystore is the key-material store spec.md §4.3 specifies via its
// retention contract: the only process-wide mutable state in the engine.
// Adapted from the teacher's crypto/vault.Vault — a mutex-guarded holder of
// one node's live share — generalized from a single current share to a
// map keyed by (transcript_id, dealer_index) plus per-transcript aggregated
// shares, since this engine tracks many concurrently-active transcripts
// rather than one current DKG epoch.
package keystore

import (
	"strconv"
	"sync"

	"go.etcd.io/bbolt"

	"github.com/dkgmesh/idkg/idkg"
	"github.com/dkgmesh/idkg/primitives"
)

// Store holds every locally-decrypted share this node currently retains:
// per-dealer shares of a transcript's sharing polynomial (populated by
// load_transcript/load_transcript_with_openings) and the aggregated
// per-transcript threshold share (the sum of dealer shares, populated once
// loading finishes) that sign_share actually consumes.
//
// Locking discipline, per spec.md §5: individual Store/Load calls take the
// read lock on mu (so they serialize only against a concurrent retain, not
// against each other) and guard their own key with a per-key mutex drawn
// from keyLocks; RetainActiveTranscripts takes the write lock on mu for its
// entire duration, so no reader ever observes a partially-retained store.
type Store struct {
	mu   sync.RWMutex
	keyLocksMu sync.Mutex
	keyLocks   map[string]*sync.Mutex

	dealerShares     map[string]*primitives.Scalar
	transcriptShares map[string]*primitives.Scalar
	dealerMaskShares     map[string]*primitives.Scalar
	transcriptMaskShares map[string]*primitives.Scalar

	db *bbolt.DB // nil: pure in-memory, used by tests and cmd/idkgctl
}

var (
	dealerBucket     = []byte("dealer_shares")
	transcriptBucket = []byte("transcript_shares")

	// The mask-share buckets retain the second half of a Pedersen-committed
	// dealing's share pair (dealerShares/transcriptShares hold only the
	// value half). Mask shares are read back by sign_share (to build the mask
	// counterpart verify_sig_share checks), by a reshare dealing's equality
	// proof and by load_transcript_with_openings' re-aggregation, and they
	// live in a separate bucket pair
	// rather than widening every other call site's signature.
	dealerMaskBucket     = []byte("dealer_mask_shares")
	transcriptMaskBucket = []byte("transcript_mask_shares")
)

// Open constructs a Store. If path is empty the store is in-memory only;
// otherwise it is durably backed by a bbolt database at path, following the
// teacher's internal/dkg/store.go bolt usage.
func Open(path string) (*Store, error) {
	s := &Store{
		keyLocks:             make(map[string]*sync.Mutex),
		dealerShares:         make(map[string]*primitives.Scalar),
		transcriptShares:     make(map[string]*primitives.Scalar),
		dealerMaskShares:     make(map[string]*primitives.Scalar),
		transcriptMaskShares: make(map[string]*primitives.Scalar),
	}
	if path == "" {
		return s, nil
	}

	db, err := bbolt.Open(path, 0600, nil)
	if err != nil {
		return nil, err
	}
	if err := db.Update(func(tx *bbolt.Tx) error {
		for _, b := range [][]byte{dealerBucket, transcriptBucket, dealerMaskBucket, transcriptMaskBucket} {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return err
			}
		}
		return nil
	}); err != nil {
		db.Close()
		return nil, err
	}
	s.db = db

	if err := s.loadFromDisk(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close releases the backing database, if any.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) loadFromDisk() error {
	return s.db.View(func(tx *bbolt.Tx) error {
		db := tx.Bucket(dealerBucket)
		if err := db.ForEach(func(k, v []byte) error {
			sc, err := primitives.ScalarFromBytes(v)
			if err != nil {
				return err
			}
			s.dealerShares[string(k)] = sc
			return nil
		}); err != nil {
			return err
		}

		tb := tx.Bucket(transcriptBucket)
		if err := tb.ForEach(func(k, v []byte) error {
			sc, err := primitives.ScalarFromBytes(v)
			if err != nil {
				return err
			}
			s.transcriptShares[string(k)] = sc
			return nil
		}); err != nil {
			return err
		}

		dmb := tx.Bucket(dealerMaskBucket)
		if err := dmb.ForEach(func(k, v []byte) error {
			sc, err := primitives.ScalarFromBytes(v)
			if err != nil {
				return err
			}
			s.dealerMaskShares[string(k)] = sc
			return nil
		}); err != nil {
			return err
		}

		tmb := tx.Bucket(transcriptMaskBucket)
		return tmb.ForEach(func(k, v []byte) error {
			sc, err := primitives.ScalarFromBytes(v)
			if err != nil {
				return err
			}
			s.transcriptMaskShares[string(k)] = sc
			return nil
		})
	})
}

func dealerKey(id idkg.TranscriptId, dealerIndex int) string {
	return id.UUID().String() + "/" + strconv.Itoa(dealerIndex)
}

func transcriptKey(id idkg.TranscriptId) string {
	return id.UUID().String()
}

func (s *Store) lockFor(key string) *sync.Mutex {
	s.keyLocksMu.Lock()
	defer s.keyLocksMu.Unlock()
	l, ok := s.keyLocks[key]
	if !ok {
		l = &sync.Mutex{}
		s.keyLocks[key] = l
	}
	return l
}

// StoreDealerShare records the caller's decrypted share of dealer
// dealerIndex's sharing polynomial for transcript id.
func (s *Store) StoreDealerShare(id idkg.TranscriptId, dealerIndex int, share *primitives.Scalar) error {
	key := dealerKey(id, dealerIndex)
	s.mu.RLock()
	defer s.mu.RUnlock()
	l := s.lockFor(key)
	l.Lock()
	defer l.Unlock()

	if s.db != nil {
		if err := s.db.Update(func(tx *bbolt.Tx) error {
			return tx.Bucket(dealerBucket).Put([]byte(key), share.Bytes())
		}); err != nil {
			return err
		}
	}
	s.dealerShares[key] = share.Clone()
	return nil
}

// LoadDealerShare returns the previously stored share, if any.
func (s *Store) LoadDealerShare(id idkg.TranscriptId, dealerIndex int) (*primitives.Scalar, bool) {
	key := dealerKey(id, dealerIndex)
	s.mu.RLock()
	defer s.mu.RUnlock()
	l := s.lockFor(key)
	l.Lock()
	defer l.Unlock()

	sc, ok := s.dealerShares[key]
	if !ok {
		return nil, false
	}
	return sc.Clone(), true
}

// StoreTranscriptShare records the caller's aggregated threshold share of
// transcript id — the value sign_share actually reads.
func (s *Store) StoreTranscriptShare(id idkg.TranscriptId, share *primitives.Scalar) error {
	key := transcriptKey(id)
	s.mu.RLock()
	defer s.mu.RUnlock()
	l := s.lockFor(key)
	l.Lock()
	defer l.Unlock()

	if s.db != nil {
		if err := s.db.Update(func(tx *bbolt.Tx) error {
			return tx.Bucket(transcriptBucket).Put([]byte(key), share.Bytes())
		}); err != nil {
			return err
		}
	}
	s.transcriptShares[key] = share.Clone()
	return nil
}

// LoadTranscriptShare returns the previously aggregated share, if any.
func (s *Store) LoadTranscriptShare(id idkg.TranscriptId) (*primitives.Scalar, bool) {
	key := transcriptKey(id)
	s.mu.RLock()
	defer s.mu.RUnlock()
	l := s.lockFor(key)
	l.Lock()
	defer l.Unlock()

	sc, ok := s.transcriptShares[key]
	if !ok {
		return nil, false
	}
	return sc.Clone(), true
}

// StoreDealerMaskShare records the caller's decrypted mask share of dealer
// dealerIndex's sharing polynomial for transcript id. Only populated for
// Pedersen (masked) dealings; simple (unmasked) dealings never call this.
func (s *Store) StoreDealerMaskShare(id idkg.TranscriptId, dealerIndex int, share *primitives.Scalar) error {
	key := dealerKey(id, dealerIndex)
	s.mu.RLock()
	defer s.mu.RUnlock()
	l := s.lockFor(key)
	l.Lock()
	defer l.Unlock()

	if s.db != nil {
		if err := s.db.Update(func(tx *bbolt.Tx) error {
			return tx.Bucket(dealerMaskBucket).Put([]byte(key), share.Bytes())
		}); err != nil {
			return err
		}
	}
	s.dealerMaskShares[key] = share.Clone()
	return nil
}

// LoadDealerMaskShare returns the previously stored mask share, if any.
func (s *Store) LoadDealerMaskShare(id idkg.TranscriptId, dealerIndex int) (*primitives.Scalar, bool) {
	key := dealerKey(id, dealerIndex)
	s.mu.RLock()
	defer s.mu.RUnlock()
	l := s.lockFor(key)
	l.Lock()
	defer l.Unlock()

	sc, ok := s.dealerMaskShares[key]
	if !ok {
		return nil, false
	}
	return sc.Clone(), true
}

// StoreTranscriptMaskShare records the caller's aggregated mask share of
// transcript id, the value verify_sig_share needs to recompute a signer's
// Pedersen-committed public image alongside its value share.
func (s *Store) StoreTranscriptMaskShare(id idkg.TranscriptId, share *primitives.Scalar) error {
	key := transcriptKey(id)
	s.mu.RLock()
	defer s.mu.RUnlock()
	l := s.lockFor(key)
	l.Lock()
	defer l.Unlock()

	if s.db != nil {
		if err := s.db.Update(func(tx *bbolt.Tx) error {
			return tx.Bucket(transcriptMaskBucket).Put([]byte(key), share.Bytes())
		}); err != nil {
			return err
		}
	}
	s.transcriptMaskShares[key] = share.Clone()
	return nil
}

// LoadTranscriptMaskShare returns the previously aggregated mask share, if any.
func (s *Store) LoadTranscriptMaskShare(id idkg.TranscriptId) (*primitives.Scalar, bool) {
	key := transcriptKey(id)
	s.mu.RLock()
	defer s.mu.RUnlock()
	l := s.lockFor(key)
	l.Lock()
	defer l.Unlock()

	sc, ok := s.transcriptMaskShares[key]
	if !ok {
		return nil, false
	}
	return sc.Clone(), true
}

// RetainActiveTranscripts is the store's namesake contract: compute the set
// of (transcript_id, dealer_index) pairs still referenced by any transcript
// in active, plus each active transcript's aggregated share, and delete
// everything else. It takes an exclusive lock for its full duration so no
// reader ever sees a partially-retained store, and is atomic from a failure
// standpoint: on a persistence error the in-memory maps are left untouched.
func (s *Store) RetainActiveTranscripts(active []*idkg.Transcript) error {
	keepDealer := make(map[string]struct{})
	keepTranscript := make(map[string]struct{})
	for _, t := range active {
		keepTranscript[transcriptKey(t.TranscriptId)] = struct{}{}
		for dealerIndex := range t.VerifiedDealings {
			keepDealer[dealerKey(t.TranscriptId, dealerIndex)] = struct{}{}
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db != nil {
		if err := s.db.Update(func(tx *bbolt.Tx) error {
			if err := retainBucket(tx.Bucket(dealerBucket), keepDealer); err != nil {
				return err
			}
			if err := retainBucket(tx.Bucket(transcriptBucket), keepTranscript); err != nil {
				return err
			}
			if err := retainBucket(tx.Bucket(dealerMaskBucket), keepDealer); err != nil {
				return err
			}
			return retainBucket(tx.Bucket(transcriptMaskBucket), keepTranscript)
		}); err != nil {
			return err
		}
	}

	for k := range s.dealerShares {
		if _, ok := keepDealer[k]; !ok {
			delete(s.dealerShares, k)
		}
	}
	for k := range s.transcriptShares {
		if _, ok := keepTranscript[k]; !ok {
			delete(s.transcriptShares, k)
		}
	}
	for k := range s.dealerMaskShares {
		if _, ok := keepDealer[k]; !ok {
			delete(s.dealerMaskShares, k)
		}
	}
	for k := range s.transcriptMaskShares {
		if _, ok := keepTranscript[k]; !ok {
			delete(s.transcriptMaskShares, k)
		}
	}
	return nil
}

func retainBucket(b *bbolt.Bucket, keep map[string]struct{}) error {
	var toDelete [][]byte
	if err := b.ForEach(func(k, _ []byte) error {
		if _, ok := keep[string(k)]; !ok {
			toDelete = append(toDelete, append([]byte(nil), k...))
		}
		return nil
	}); err != nil {
		return err
	}
	for _, k := range toDelete {
		if err := b.Delete(k); err != nil {
			return err
		}
	}
	return nil
}
