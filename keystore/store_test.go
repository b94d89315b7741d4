package keystore

import (
	"crypto/rand"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dkgmesh/idkg/idkg"
	"github.com/dkgmesh/idkg/primitives"
)

func TestStoreDealerAndTranscriptShares(t *testing.T) {
	s, err := Open("")
	require.NoError(t, err)
	defer s.Close()

	id := idkg.NewTranscriptId("subnet-a", 1)
	share, err := primitives.RandomScalar(rand.Reader)
	require.NoError(t, err)

	require.NoError(t, s.StoreDealerShare(id, 2, share))
	got, ok := s.LoadDealerShare(id, 2)
	require.True(t, ok)
	require.True(t, got.Equal(share))

	_, ok = s.LoadDealerShare(id, 3)
	require.False(t, ok)

	require.NoError(t, s.StoreTranscriptShare(id, share))
	got, ok = s.LoadTranscriptShare(id)
	require.True(t, ok)
	require.True(t, got.Equal(share))
}

func TestStoreDealerAndTranscriptMaskShares(t *testing.T) {
	s, err := Open("")
	require.NoError(t, err)
	defer s.Close()

	id := idkg.NewTranscriptId("subnet-a", 1)
	mask, err := primitives.RandomScalar(rand.Reader)
	require.NoError(t, err)

	_, ok := s.LoadDealerMaskShare(id, 2)
	require.False(t, ok)

	require.NoError(t, s.StoreDealerMaskShare(id, 2, mask))
	got, ok := s.LoadDealerMaskShare(id, 2)
	require.True(t, ok)
	require.True(t, got.Equal(mask))

	require.NoError(t, s.StoreTranscriptMaskShare(id, mask))
	got, ok = s.LoadTranscriptMaskShare(id)
	require.True(t, ok)
	require.True(t, got.Equal(mask))
}

func TestRetainActiveTranscriptsPrunesInactive(t *testing.T) {
	s, err := Open("")
	require.NoError(t, err)
	defer s.Close()

	active := idkg.NewTranscriptId("subnet-a", 1)
	inactive := idkg.NewTranscriptId("subnet-a", 2)

	share, err := primitives.RandomScalar(rand.Reader)
	require.NoError(t, err)

	require.NoError(t, s.StoreDealerShare(active, 0, share))
	require.NoError(t, s.StoreTranscriptShare(active, share))
	require.NoError(t, s.StoreDealerMaskShare(active, 0, share))
	require.NoError(t, s.StoreTranscriptMaskShare(active, share))
	require.NoError(t, s.StoreDealerShare(inactive, 0, share))
	require.NoError(t, s.StoreTranscriptShare(inactive, share))
	require.NoError(t, s.StoreDealerMaskShare(inactive, 0, share))
	require.NoError(t, s.StoreTranscriptMaskShare(inactive, share))

	activeTranscript := &idkg.Transcript{
		TranscriptId:     active,
		VerifiedDealings: map[int]idkg.SignedDealing{0: {}},
	}

	require.NoError(t, s.RetainActiveTranscripts([]*idkg.Transcript{activeTranscript}))

	_, ok := s.LoadDealerShare(active, 0)
	require.True(t, ok)
	_, ok = s.LoadTranscriptShare(active)
	require.True(t, ok)
	_, ok = s.LoadDealerMaskShare(active, 0)
	require.True(t, ok)
	_, ok = s.LoadTranscriptMaskShare(active)
	require.True(t, ok)

	_, ok = s.LoadDealerShare(inactive, 0)
	require.False(t, ok)
	_, ok = s.LoadTranscriptShare(inactive)
	require.False(t, ok)
	_, ok = s.LoadDealerMaskShare(inactive, 0)
	require.False(t, ok)
	_, ok = s.LoadTranscriptMaskShare(inactive)
	require.False(t, ok)
}

func TestStorePersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "keystore.db")

	s, err := Open(path)
	require.NoError(t, err)

	id := idkg.NewTranscriptId("subnet-a", 7)
	share, err := primitives.RandomScalar(rand.Reader)
	require.NoError(t, err)
	require.NoError(t, s.StoreTranscriptShare(id, share))
	require.NoError(t, s.Close())

	reopened, err := Open(path)
	require.NoError(t, err)
	defer reopened.Close()

	got, ok := reopened.LoadTranscriptShare(id)
	require.True(t, ok)
	require.True(t, got.Equal(share))
}
