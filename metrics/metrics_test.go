package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"

	"github.com/dkgmesh/idkg/idkg"
)

func TestRecorderObservesOkOutcome(t *testing.T) {
	clock := clockwork.NewFakeClock()
	r := NewRecorder(clock)

	done := make(chan struct{})
	go func() {
		err := r.Observe(OpSignShare, func() error {
			clock.Sleep(2 * time.Second)
			return nil
		})
		require.NoError(t, err)
		close(done)
	}()
	clock.BlockUntil(1)
	clock.Advance(2 * time.Second)
	<-done
}

func TestRecorderPropagatesAndLabelsKnownError(t *testing.T) {
	r := NewRecorder(clockwork.NewFakeClock())
	err := r.Observe(OpVerifySigShare, func() error {
		return idkg.ErrInvalidMultisignature
	})
	require.ErrorIs(t, err, idkg.ErrInvalidMultisignature)
	require.Equal(t, "invalid_multisignature", outcome(err))
}

func TestOutcomeLabelsUnknownErrorGeneric(t *testing.T) {
	require.Equal(t, "error", outcome(errors.New("something unrelated")))
	require.Equal(t, "ok", outcome(nil))
}

func TestOutcomeLabelsEveryKnownSentinel(t *testing.T) {
	for name, sentinel := range sentinelsByName {
		require.Equal(t, name, outcome(sentinel))
	}
}
