// Package engine wires the dealing, transcript, signing, registry and
// keystore packages into a single facade: one struct with one method per
// protocol operation, each wrapped in structured logging and a
// metrics.Recorder.Observe call. It plays the role the teacher's daemon.go
// and dkg/process.go play for beacon generation: the thing a CLI or an RPC
// handler calls instead of reaching into the inner packages directly.
package engine

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/dkgmesh/idkg/common/log"
	"github.com/dkgmesh/idkg/common/scheme"
	"github.com/dkgmesh/idkg/dealing"
	"github.com/dkgmesh/idkg/idkg"
	"github.com/dkgmesh/idkg/keystore"
	"github.com/dkgmesh/idkg/metrics"
	"github.com/dkgmesh/idkg/primitives"
	"github.com/dkgmesh/idkg/registry"
	"github.com/dkgmesh/idkg/signing"
	"github.com/dkgmesh/idkg/transcript"
)

// Engine bundles one node's view of the protocol: its own identity and
// secret key, the shared registry, its local key-material store, the
// signature scheme it deals and verifies with, and the logging/metrics
// surface every operation reports through.
type Engine struct {
	NodeID idkg.NodeID
	Secret *primitives.Scalar

	Registry registry.Registry
	Store    *keystore.Store
	Scheme   scheme.Scheme

	log      log.Logger
	recorder *metrics.Recorder

	monitors map[idkg.TranscriptId]*metrics.DealerHealthMonitor
}

// New builds an Engine for one node. logger and recorder must not be nil;
// callers that don't care about metrics should still pass
// metrics.NewRecorder(nil), never a nil *Recorder.
func New(
	nodeID idkg.NodeID,
	secret *primitives.Scalar,
	reg registry.Registry,
	store *keystore.Store,
	sch scheme.Scheme,
	logger log.Logger,
	recorder *metrics.Recorder,
) *Engine {
	return &Engine{
		NodeID:   nodeID,
		Secret:   secret,
		Registry: reg,
		Store:    store,
		Scheme:   sch,
		log:      logger.Named("engine").With("node_id", string(nodeID)),
		recorder: recorder,
		monitors: make(map[idkg.TranscriptId]*metrics.DealerHealthMonitor),
	}
}

func (e *Engine) monitorFor(id idkg.TranscriptId, numReceivers int) *metrics.DealerHealthMonitor {
	if m, ok := e.monitors[id]; ok {
		return m
	}
	m := metrics.NewDealerHealthMonitor(id, e.log, idkg.CorruptionBound(numReceivers))
	e.monitors[id] = m
	return m
}

// CreateDealing implements create_dealing: e.NodeID deals a fresh share set
// for params, keyed off seed.
func (e *Engine) CreateDealing(params *idkg.TranscriptParams, seed [32]byte) (idkg.Dealing, error) {
	var d idkg.Dealing
	err := e.recorder.Observe(metrics.OpCreateDealing, func() error {
		var err error
		d, err = dealing.CreateDealing(params, e.NodeID, seed, e.Registry, e.Store, e.Scheme)
		return err
	})
	if err != nil {
		e.log.Warnw("create_dealing failed", "transcript_id", params.TranscriptId.String(), "error", err.Error())
		return idkg.Dealing{}, err
	}
	e.log.Debugw("create_dealing ok", "transcript_id", params.TranscriptId.String())
	return d, nil
}

// VerifyDealingPublic implements verify_dealing_public: checks d's
// commitment and proofs without needing any receiver's secret key.
func (e *Engine) VerifyDealingPublic(params *idkg.TranscriptParams, d idkg.Dealing) error {
	return e.recorder.Observe(metrics.OpVerifyDealingPublic, func() error {
		return dealing.VerifyDealingPublic(params, d)
	})
}

// VerifyDealingPrivate implements verify_dealing_private: decrypts and
// persists e.NodeID's own share(s) from d, failing if they don't match d's
// commitment.
func (e *Engine) VerifyDealingPrivate(params *idkg.TranscriptParams, d idkg.Dealing) error {
	err := e.recorder.Observe(metrics.OpVerifyDealingPrivate, func() error {
		return dealing.VerifyDealingPrivate(params, d, e.NodeID, e.Secret, e.Store)
	})
	if err != nil {
		e.log.Warnw("verify_dealing_private failed", "dealer_id", string(d.DealerID), "error", err.Error())
	}
	return err
}

// CreateTranscript implements create_transcript: assembles dealings,
// already-signed by a collection-threshold quorum, into a transcript.
func (e *Engine) CreateTranscript(params *idkg.TranscriptParams, dealings map[idkg.NodeID]idkg.SignedDealing) (*idkg.Transcript, error) {
	var t *idkg.Transcript
	err := e.recorder.Observe(metrics.OpCreateTranscript, func() error {
		var err error
		t, err = transcript.CreateTranscript(params, e.Registry, dealings)
		return err
	})
	if err != nil {
		return nil, err
	}
	e.log.Infow("create_transcript ok", "transcript_id", params.TranscriptId.String(), "dealers", len(dealings))
	return t, nil
}

// VerifyTranscript implements verify_transcript: checks t's dealing set,
// quorum signatures and aggregated commitment against params.
func (e *Engine) VerifyTranscript(params *idkg.TranscriptParams, t *idkg.Transcript) error {
	return e.recorder.Observe(metrics.OpVerifyTranscript, func() error {
		return transcript.VerifyTranscript(params, t)
	})
}

// LoadTranscript implements load_transcript: opens e.NodeID's own shares
// from every dealing in t, filing a complaint for any dealing whose opened
// share doesn't match its commitment, and persists the combined share on
// success.
func (e *Engine) LoadTranscript(params *idkg.TranscriptParams, t *idkg.Transcript) ([]idkg.Complaint, error) {
	var complaints []idkg.Complaint
	err := e.recorder.Observe(metrics.OpLoadTranscript, func() error {
		var err error
		complaints, err = transcript.LoadTranscript(params, t, e.NodeID, e.Secret, e.Store)
		return err
	})
	if err != nil {
		return nil, err
	}
	if len(complaints) > 0 {
		m := e.monitorFor(t.TranscriptId, len(params.Receivers))
		for _, c := range complaints {
			m.ReportComplaint(c.DealerID)
		}
		e.log.Warnw("load_transcript filed complaints", "transcript_id", t.TranscriptId.String(), "count", len(complaints))
	} else {
		e.log.Debugw("load_transcript ok, no complaints", "transcript_id", t.TranscriptId.String())
	}
	return complaints, nil
}

// VerifyComplaint implements verify_complaint: checks that c's disclosed
// shared point really does contradict the dealer's commitment.
func (e *Engine) VerifyComplaint(params *idkg.TranscriptParams, t *idkg.Transcript, c idkg.Complaint) error {
	return e.recorder.Observe(metrics.OpVerifyComplaint, func() error {
		return transcript.VerifyComplaint(params, t, e.Registry, c)
	})
}

// OpenDealing implements open_dealing: e.NodeID, as dealerID's dealing's
// opener, discloses its own decrypted share of that dealing in the clear so
// third parties can adjudicate a complaint.
func (e *Engine) OpenDealing(params *idkg.TranscriptParams, t *idkg.Transcript, dealerID idkg.NodeID) (idkg.Opening, error) {
	var o idkg.Opening
	err := e.recorder.Observe(metrics.OpOpenDealing, func() error {
		var err error
		o, err = transcript.OpenDealing(params, t, dealerID, e.NodeID, e.Secret)
		return err
	})
	return o, err
}

// VerifyOpening implements verify_opening: checks one disclosed opening
// against the dealer's commitment.
func (e *Engine) VerifyOpening(params *idkg.TranscriptParams, t *idkg.Transcript, o idkg.Opening) error {
	return e.recorder.Observe(metrics.OpVerifyOpening, func() error {
		return transcript.VerifyOpening(params, t, o)
	})
}

// LoadTranscriptWithOpenings implements load_transcript_with_openings: once
// enough openings have resolved every complaint e.NodeID filed, recombines
// and persists e.NodeID's share from the adjudicated dealings.
func (e *Engine) LoadTranscriptWithOpenings(params *idkg.TranscriptParams, t *idkg.Transcript, openings map[idkg.NodeID]idkg.Opening) error {
	err := e.recorder.Observe(metrics.OpLoadTranscriptWithOpening, func() error {
		return transcript.LoadTranscriptWithOpenings(params, t, e.NodeID, openings, e.Store)
	})
	if err == nil {
		e.log.Infow("load_transcript_with_openings resolved complaints", "transcript_id", t.TranscriptId.String())
	}
	return err
}

// RetainActiveTranscripts implements retain_active_transcripts: prunes the
// store down to the shares active needs and updates the ActiveTranscripts
// gauge.
func (e *Engine) RetainActiveTranscripts(active []*idkg.Transcript) error {
	err := e.recorder.Observe(metrics.OpRetainActiveTranscripts, func() error {
		return e.Store.RetainActiveTranscripts(active)
	})
	if err != nil {
		return err
	}
	metrics.ActiveTranscripts.Set(float64(len(active)))
	return nil
}

// SignShare implements sign_share: produces e.NodeID's contribution to a
// threshold ECDSA signature over inputs.
func (e *Engine) SignShare(inputs *idkg.ThresholdEcdsaSigInputs) (idkg.SigShare, error) {
	var share idkg.SigShare
	err := e.recorder.Observe(metrics.OpSignShare, func() error {
		var err error
		share, err = signing.SignShare(inputs, e.NodeID, e.Store)
		return err
	})
	return share, err
}

// VerifySigShare implements verify_sig_share: checks signerID's share
// against the quadruple's public commitments without needing any secret
// key.
func (e *Engine) VerifySigShare(signerID idkg.NodeID, inputs *idkg.ThresholdEcdsaSigInputs, share idkg.SigShare) error {
	return e.recorder.Observe(metrics.OpVerifySigShare, func() error {
		return signing.VerifySigShare(signerID, inputs, share)
	})
}

// CombineSigShares implements combine_sig_shares: interpolates a
// reconstruction-threshold quorum of shares into one ECDSA signature.
func (e *Engine) CombineSigShares(inputs *idkg.ThresholdEcdsaSigInputs, shares map[idkg.NodeID]idkg.SigShare) (idkg.CombinedSignature, error) {
	var sig idkg.CombinedSignature
	err := e.recorder.Observe(metrics.OpCombineSigShares, func() error {
		var err error
		sig, err = signing.CombineSigShares(inputs, shares)
		return err
	})
	return sig, err
}

// VerifyCombinedSig implements verify_combined_sig: checks sig against the
// derived public key and the quadruple/message it was produced for.
func (e *Engine) VerifyCombinedSig(inputs *idkg.ThresholdEcdsaSigInputs, sig idkg.CombinedSignature) error {
	return e.recorder.Observe(metrics.OpVerifyCombinedSig, func() error {
		return signing.VerifyCombinedSig(inputs, sig)
	})
}

// DerivePublicKey implements derive_public_key: the BIP32-style unhardened
// derivation of a child public key from keyTranscript's master key.
func (e *Engine) DerivePublicKey(keyTranscript *idkg.Transcript, derivationPath []uint32) (*primitives.Point, error) {
	return signing.DerivePublicKey(keyTranscript, derivationPath)
}

// VerifyDealingsPublic runs VerifyDealingPublic over every dealing in
// dealings concurrently and returns the first failure once every
// verification has finished; ctx's cancellation is not observed, so no
// verification is cut short, per spec.md's "parallel threads, not
// cooperative" scheduling model (spec.md §5).
func (e *Engine) VerifyDealingsPublic(ctx context.Context, params *idkg.TranscriptParams, dealings map[idkg.NodeID]idkg.Dealing) error {
	g, _ := errgroup.WithContext(ctx)
	for dealerID, d := range dealings {
		dealerID, d := dealerID, d
		g.Go(func() error {
			if err := e.VerifyDealingPublic(params, d); err != nil {
				return fmt.Errorf("dealer %s: %w", dealerID, err)
			}
			return nil
		})
	}
	return g.Wait()
}

// VerifySigShares runs VerifySigShare over every share in shares
// concurrently, returning the first failure. Intended for a combiner node
// screening a batch of shares before calling CombineSigShares.
func (e *Engine) VerifySigShares(ctx context.Context, inputs *idkg.ThresholdEcdsaSigInputs, shares map[idkg.NodeID]idkg.SigShare) error {
	g, _ := errgroup.WithContext(ctx)
	for signerID, share := range shares {
		signerID, share := signerID, share
		g.Go(func() error {
			if err := e.VerifySigShare(signerID, inputs, share); err != nil {
				return fmt.Errorf("signer %s: %w", signerID, err)
			}
			return nil
		})
	}
	return g.Wait()
}
