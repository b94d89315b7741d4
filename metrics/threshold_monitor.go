package metrics

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/dkgmesh/idkg/common/log"
	"github.com/dkgmesh/idkg/idkg"
)

// DealerHealthMonitor watches, for one transcript, how many distinct
// dealers a receiver has filed a complaint against in the last period and
// compares that count to the transcript's corruption bound f: crossing f
// means more than f dealers are misbehaving, which is exactly the
// assumption the threshold scheme's security depends on never happening.
// Grounded on the teacher's ThresholdMonitor (metrics/threshold_monitor.go.bak),
// generalized from "failed outbound connections vs. group threshold" to
// "complained-against dealers vs. corruption bound" — the same
// periodic-reset, two-tier (warn at f/2, error at f) alerting shape applied
// to this domain's own notion of a threshold being approached.
type DealerHealthMonitor struct {
	lock             sync.RWMutex
	log              log.Logger
	transcriptID     idkg.TranscriptId
	corruptionBound  int
	complainedAgainst map[idkg.NodeID]bool
	ctx              context.Context
	cancel           func()
	period           time.Duration
}

// NewDealerHealthMonitor builds a monitor for one transcript's corruption
// bound f, as returned by idkg.CorruptionBound(len(receivers)).
func NewDealerHealthMonitor(transcriptID idkg.TranscriptId, l log.Logger, corruptionBound int) *DealerHealthMonitor {
	ctx, cancel := context.WithCancel(context.Background())
	return &DealerHealthMonitor{
		log:               l,
		transcriptID:      transcriptID,
		corruptionBound:   corruptionBound,
		complainedAgainst: make(map[idkg.NodeID]bool),
		ctx:               ctx,
		cancel:            cancel,
		period:            time.Minute,
	}
}

// Start runs the periodic report loop until Stop is called.
func (m *DealerHealthMonitor) Start() {
	m.log.Infow("starting dealer health monitor", "transcript_id", m.transcriptID.String())

	go func() {
		for {
			select {
			case <-m.ctx.Done():
				m.log.Infow("ending dealer health monitor", "transcript_id", m.transcriptID.String())
				return
			default:
				m.report()
				time.Sleep(m.period)
			}
		}
	}()
}

func (m *DealerHealthMonitor) report() {
	m.lock.RLock()
	var failing []string
	for d := range m.complainedAgainst {
		failing = append(failing, string(d))
	}
	m.lock.RUnlock()

	switch {
	case len(failing) >= m.corruptionBound && m.corruptionBound > 0:
		m.log.Errorw("complained-against dealers crossed the corruption bound in the last period",
			"transcript_id", m.transcriptID.String(),
			"corruption_bound", m.corruptionBound,
			"failures", len(failing),
			"dealers", strings.Join(failing, ","),
		)
	case len(failing)*2 >= m.corruptionBound && m.corruptionBound > 0:
		m.log.Warnw("complained-against dealers crossed half the corruption bound in the last period",
			"transcript_id", m.transcriptID.String(),
			"corruption_bound", m.corruptionBound,
			"failures", len(failing),
			"dealers", strings.Join(failing, ","),
		)
	default:
		m.log.Debugw("dealer health monitor: nominal",
			"transcript_id", m.transcriptID.String(),
			"corruption_bound", m.corruptionBound,
			"failures", len(failing),
		)
	}

	m.lock.Lock()
	m.complainedAgainst = make(map[idkg.NodeID]bool)
	m.lock.Unlock()
}

// Stop ends the report loop.
func (m *DealerHealthMonitor) Stop() {
	m.cancel()
}

// ReportComplaint records that a complaint was filed against dealerID for
// this monitor's transcript; the next report counts each complained-against
// dealer once, however many complaints name it.
func (m *DealerHealthMonitor) ReportComplaint(dealerID idkg.NodeID) {
	m.lock.Lock()
	m.complainedAgainst[dealerID] = true
	m.lock.Unlock()
}

// Update adjusts the corruption bound, e.g. after a receiver set resize.
func (m *DealerHealthMonitor) Update(corruptionBound int) {
	m.lock.Lock()
	m.corruptionBound = corruptionBound
	m.lock.Unlock()
}
