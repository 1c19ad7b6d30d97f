package consensus

import (
	"fmt"
	"time"

	"github.com/tendermint/tendermint/libs/log"
	"github.com/tendermint/tendermint/libs/service"

	"permachain/types"
)

var (
	tickTockBufferSize = 10
)

// timeoutInfo tags a round timeout with the (height, round) it was armed
// for. Timers are never cancelled: a fired timeout whose tag no longer
// matches the current state is discarded by the receiver.
type timeoutInfo struct {
	Duration time.Duration `json:"duration"`
	Height   types.Height  `json:"height"`
	Round    types.Round   `json:"round"`
}

func (ti timeoutInfo) String() string {
	return fmt.Sprintf("%v ; %v/%v", ti.Duration, ti.Height, ti.Round)
}

// RoundTicker schedules round-advance timeouts. Scheduling a new timeout
// replaces any pending one, so only the most recently entered round can fire.
type RoundTicker interface {
	Start() error
	Stop() error
	Chan() <-chan timeoutInfo       // on which to receive a timeout
	ScheduleTimeout(ti timeoutInfo) // reset the timer

	SetLogger(log.Logger)
}

// roundTicker wraps time.Timer and relays fired timeouts through tockChan.
type roundTicker struct {
	service.BaseService

	timer    *time.Timer
	tickChan chan timeoutInfo // for scheduling timeouts
	tockChan chan timeoutInfo // for notifying about them
}

var _ RoundTicker = (*roundTicker)(nil)

func NewRoundTicker() RoundTicker {
	tt := &roundTicker{
		timer:    time.NewTimer(0),
		tickChan: make(chan timeoutInfo, tickTockBufferSize),
		tockChan: make(chan timeoutInfo, tickTockBufferSize),
	}
	tt.BaseService = *service.NewBaseService(nil, "RoundTicker", tt)
	tt.stopTimer()
	return tt
}

// OnStart implements service.Service. It starts the timeout routine.
func (t *roundTicker) OnStart() error {
	go t.timeoutRoutine()
	return nil
}

// OnStop implements service.Service. It stops the timeout routine.
func (t *roundTicker) OnStop() {
	t.BaseService.OnStop()
	t.stopTimer()
}

// Chan returns a channel on which timeouts are sent.
func (t *roundTicker) Chan() <-chan timeoutInfo {
	return t.tockChan
}

// ScheduleTimeout schedules a new timeout by sending on the internal
// tickChan. The timeoutRoutine is always available to read from tickChan, so
// this won't block.
func (t *roundTicker) ScheduleTimeout(ti timeoutInfo) {
	t.tickChan <- ti
}

//-------------------------------------------------------------

// stop the timer and drain if necessary
func (t *roundTicker) stopTimer() {
	if !t.timer.Stop() {
		select {
		case <-t.timer.C:
		default:
			t.Logger.Debug("Timer already stopped")
		}
	}
}

// send on tickChan to start a new timer.
// timers are interrupted and replaced by new ticks from later steps
// timeouts of 0 on the tickChan will be immediately relayed to the tockChan
func (t *roundTicker) timeoutRoutine() {
	t.Logger.Debug("Starting timeout routine")
	var ti timeoutInfo
	for {
		select {
		case newti := <-t.tickChan:
			t.Logger.Debug("Received tick", "old_ti", ti, "new_ti", newti)

			// stop the last timer
			t.stopTimer()

			// update timeoutInfo and reset timer
			ti = newti
			t.timer.Reset(ti.Duration)
			t.Logger.Debug("Scheduled timeout", "dur", ti.Duration, "height", ti.Height, "round", ti.Round)
		case <-t.timer.C:
			t.Logger.Info("Timed out", "dur", ti.Duration, "height", ti.Height, "round", ti.Round)
			// go routine here guarantees timeoutRoutine doesn't block.
			// Determinism comes from playback in the receiveRoutine.
			// We can eliminate it by merging the timeoutRoutine into receiveRoutine
			//  and managing the timeouts ourselves with a millisecond ticker
			go func(toi timeoutInfo) { t.tockChan <- toi }(ti)
		case <-t.Quit():
			return
		}
	}
}
