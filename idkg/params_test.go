package idkg

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dkgmesh/idkg/common/scheme"
)

func nodes(ids ...string) []NodeID {
	out := make([]NodeID, len(ids))
	for i, id := range ids {
		out[i] = NodeID(id)
	}
	return out
}

func TestNewTranscriptParamsDerivesThresholds(t *testing.T) {
	id := NewTranscriptId("subnet-a", 1)
	dealers := nodes("n0", "n1", "n2", "n3")
	receivers := nodes("n3", "n1", "n0", "n2") // deliberately unsorted

	p, err := NewTranscriptParams(id, 1, scheme.DefaultAlgorithmId, dealers, receivers, OperationType{Kind: OpRandom})
	require.NoError(t, err)

	require.Equal(t, nodes("n0", "n1", "n2", "n3"), p.Receivers)
	// f = floor((4-1)/3) = 1
	require.Equal(t, 2, p.CollectionThreshold())     // f+1 for Random
	require.Equal(t, 3, p.VerificationThreshold())   // 2f+1
	require.Equal(t, 2, p.ReconstructionThreshold()) // f+1

	idx, ok := p.IndexForDealerID("n2")
	require.True(t, ok)
	require.Equal(t, 2, idx)

	back, ok := p.DealerIDForIndex(2)
	require.True(t, ok)
	require.Equal(t, NodeID("n2"), back)
}

func TestNewTranscriptParamsReshareRequiresPriorReceivers(t *testing.T) {
	id := NewTranscriptId("subnet-a", 2)
	prev := &Transcript{Receivers: nodes("n0", "n1")}

	_, err := NewTranscriptParams(id, 1, scheme.DefaultAlgorithmId, nodes("n0", "n2"), nodes("n0", "n1", "n2"),
		OperationType{Kind: OpReshareOfMasked, Prev: prev})
	require.Error(t, err) // n2 was never a receiver of prev
}

func TestNewTranscriptParamsRejectsEmptySets(t *testing.T) {
	id := NewTranscriptId("subnet-a", 3)
	_, err := NewTranscriptParams(id, 1, scheme.DefaultAlgorithmId, nil, nodes("n0"), OperationType{Kind: OpRandom})
	require.Error(t, err)
}
