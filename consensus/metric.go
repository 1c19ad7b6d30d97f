package consensus

import (
	"sync"
	"time"

	jsoniter "github.com/json-iterator/go"
	tmbytes "github.com/tendermint/tendermint/libs/bytes"

	"permachain/libs/utils"
	"permachain/types"
)

// commitIntervalWindow bounds how many recent block intervals feed the
// interval statistics.
const commitIntervalWindow = 64

func newConsensusMetric() *consensusMetric {
	return &consensusMetric{}
}

type consensusMetric struct {
	mtx             sync.RWMutex
	Round           types.Round      `json:"round"`            // round currently running
	LockedRound     types.Round      `json:"locked_round"`     // round of the current lock, 0 when unlocked
	IsProposer      bool             `json:"is_proposer"`      // did we propose in the current height yet
	ProposesNum     int64            `json:"proposes_num"`     // proposes accepted since start
	CommittedHeight types.Height     `json:"committed_height"` // height of the last committed block
	CommittedHash   tmbytes.HexBytes `json:"committed_hash"`   // hash of the last committed block
	CommitsNum      int64            `json:"commits_num"`      // blocks committed since start

	AvgIntervalMs    float64 `json:"avg_interval_ms"`    // mean ms between commits over the window
	MedianIntervalMs float64 `json:"median_interval_ms"` // median ms between commits over the window

	lastCommitTime time.Time
	intervals      []float64
}

func (cm *consensusMetric) JSONString() string {
	cm.mtx.RLock()
	defer cm.mtx.RUnlock()
	s, _ := jsoniter.MarshalToString(cm)
	return s
}

func (cm *consensusMetric) MarkRound(round types.Round) {
	cm.mtx.Lock()
	defer cm.mtx.Unlock()
	cm.Round = round
}

func (cm *consensusMetric) MarkLocked(round types.Round) {
	cm.mtx.Lock()
	defer cm.mtx.Unlock()
	cm.LockedRound = round
}

func (cm *consensusMetric) MarkProposer(isProposer bool) {
	cm.mtx.Lock()
	defer cm.mtx.Unlock()
	cm.IsProposer = isProposer
}

func (cm *consensusMetric) MarkProposeReceived(hash tmbytes.HexBytes) {
	cm.mtx.Lock()
	defer cm.mtx.Unlock()
	cm.ProposesNum++
}

func (cm *consensusMetric) MarkCommitted(height types.Height, hash tmbytes.HexBytes) {
	cm.mtx.Lock()
	defer cm.mtx.Unlock()
	cm.CommittedHeight = height
	cm.CommittedHash = hash
	cm.CommitsNum++
	cm.LockedRound = types.RoundNone
	cm.IsProposer = false

	now := time.Now()
	if !cm.lastCommitTime.IsZero() {
		cm.intervals = append(cm.intervals, float64(now.Sub(cm.lastCommitTime).Milliseconds()))
		if len(cm.intervals) > commitIntervalWindow {
			cm.intervals = cm.intervals[len(cm.intervals)-commitIntervalWindow:]
		}
		cm.AvgIntervalMs = utils.Avg(cm.intervals...)
		cm.MedianIntervalMs = utils.Median(cm.intervals...)
	}
	cm.lastCommitTime = now
}
