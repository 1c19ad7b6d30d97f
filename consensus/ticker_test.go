package consensus

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendermint/tendermint/libs/log"
)

func TestTickerFiresWithTags(t *testing.T) {
	ticker := NewRoundTicker()
	ticker.SetLogger(log.TestingLogger())
	require.NoError(t, ticker.Start())
	defer ticker.Stop() //nolint:errcheck

	ticker.ScheduleTimeout(timeoutInfo{Duration: 20 * time.Millisecond, Height: 3, Round: 2})

	select {
	case ti := <-ticker.Chan():
		assert.EqualValues(t, 3, ti.Height)
		assert.EqualValues(t, 2, ti.Round)
	case <-time.After(5 * time.Second):
		t.Fatal("timeout never fired")
	}
}

// Scheduling a new timeout replaces the pending one: only the latest round's
// tag may fire.
func TestTickerReplacesPendingTimeout(t *testing.T) {
	ticker := NewRoundTicker()
	ticker.SetLogger(log.TestingLogger())
	require.NoError(t, ticker.Start())
	defer ticker.Stop() //nolint:errcheck

	ticker.ScheduleTimeout(timeoutInfo{Duration: 10 * time.Second, Height: 1, Round: 1})
	ticker.ScheduleTimeout(timeoutInfo{Duration: 20 * time.Millisecond, Height: 1, Round: 2})

	select {
	case ti := <-ticker.Chan():
		assert.EqualValues(t, 2, ti.Round, "the replaced timeout must not fire")
	case <-time.After(5 * time.Second):
		t.Fatal("timeout never fired")
	}

	select {
	case ti := <-ticker.Chan():
		t.Fatalf("unexpected second timeout: %v", ti)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestTickerNothingScheduledNothingFires(t *testing.T) {
	ticker := NewRoundTicker()
	ticker.SetLogger(log.TestingLogger())
	require.NoError(t, ticker.Start())
	defer ticker.Stop() //nolint:errcheck

	select {
	case ti := <-ticker.Chan():
		t.Fatalf("unscheduled timeout fired: %v", ti)
	case <-time.After(200 * time.Millisecond):
	}
}
