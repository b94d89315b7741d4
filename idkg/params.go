package idkg

import (
	"sort"

	"github.com/dkgmesh/idkg/common/scheme"
)

// NewTranscriptParams constructs params with dealers/receivers sorted once
// so dealer_index/receiver_index are stable and derivable without
// re-sorting, and with the three thresholds derived from |receivers| and
// the corruption bound f, per spec.md §3/Glossary:
//   collection threshold:     f+1 for Random, 2f+1 for reshare/product
//   verification threshold:   2f+1
//   reconstruction threshold: f+1
func NewTranscriptParams(id TranscriptId, registryVersion uint64, algorithmID scheme.AlgorithmId, dealers, receivers []NodeID, op OperationType) (*TranscriptParams, error) {
	if len(dealers) == 0 || len(receivers) == 0 {
		return nil, NewFault("dealers and receivers must both be non-empty")
	}

	sortedDealers := append([]NodeID(nil), dealers...)
	sort.Slice(sortedDealers, func(i, j int) bool { return sortedDealers[i] < sortedDealers[j] })
	sortedReceivers := append([]NodeID(nil), receivers...)
	sort.Slice(sortedReceivers, func(i, j int) bool { return sortedReceivers[i] < sortedReceivers[j] })

	f := CorruptionBound(len(sortedReceivers))
	collection := f + 1
	if op.Kind != OpRandom {
		collection = 2*f + 1
	}

	p := &TranscriptParams{
		TranscriptId:            id,
		RegistryVersion:         registryVersion,
		AlgorithmID:             algorithmID,
		Dealers:                 sortedDealers,
		Receivers:               sortedReceivers,
		Operation:               op,
		collectionThreshold:     collection,
		verificationThreshold:   2*f + 1,
		reconstructionThreshold: f + 1,
	}

	if err := validateReshareReceivers(p); err != nil {
		return nil, err
	}
	return p, nil
}

// validateReshareReceivers enforces spec.md §3: for operations referencing a
// prior transcript, that transcript's receivers must be a superset of the
// new dealers (a node must hold the prior share to re-share it).
func validateReshareReceivers(p *TranscriptParams) error {
	check := func(prev *Transcript) error {
		if prev == nil {
			return NewFault("operation references a nil prior transcript")
		}
		prevReceivers := make(map[NodeID]struct{}, len(prev.Receivers))
		for _, r := range prev.Receivers {
			prevReceivers[r] = struct{}{}
		}
		for _, d := range p.Dealers {
			if _, ok := prevReceivers[d]; !ok {
				return NewFault("dealer " + string(d) + " did not receive the prior transcript being reshared")
			}
		}
		return nil
	}

	switch p.Operation.Kind {
	case OpReshareOfMasked, OpReshareOfUnmasked:
		return check(p.Operation.Prev)
	case OpUnmaskedTimesMasked:
		if err := check(p.Operation.Unmasked); err != nil {
			return err
		}
		return check(p.Operation.Masked)
	}
	return nil
}

// IndexForDealerID returns the zero-based dealer_index of id, and whether id
// is a dealer in p.
func (p *TranscriptParams) IndexForDealerID(id NodeID) (int, bool) {
	for i, d := range p.Dealers {
		if d == id {
			return i, true
		}
	}
	return 0, false
}

// DealerIDForIndex is the inverse of IndexForDealerID.
func (p *TranscriptParams) DealerIDForIndex(index int) (NodeID, bool) {
	if index < 0 || index >= len(p.Dealers) {
		return "", false
	}
	return p.Dealers[index], true
}

// IndexForReceiverID returns the zero-based receiver_index of id.
func (p *TranscriptParams) IndexForReceiverID(id NodeID) (int, bool) {
	for i, r := range p.Receivers {
		if r == id {
			return i, true
		}
	}
	return 0, false
}

// ReceiverIDForIndex is the inverse of IndexForReceiverID.
func (p *TranscriptParams) ReceiverIDForIndex(index int) (NodeID, bool) {
	if index < 0 || index >= len(p.Receivers) {
		return "", false
	}
	return p.Receivers[index], true
}

// IsDealer reports whether id is among p.Dealers.
func (p *TranscriptParams) IsDealer(id NodeID) bool {
	_, ok := p.IndexForDealerID(id)
	return ok
}

// IsReceiver reports whether id is among p.Receivers.
func (p *TranscriptParams) IsReceiver(id NodeID) bool {
	_, ok := p.IndexForReceiverID(id)
	return ok
}
