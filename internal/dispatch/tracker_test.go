package dispatch

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/modemstack/smsdispatch/internal/anomaly"
	"github.com/modemstack/smsdispatch/internal/store"
)

func newPartTrackers(n int, sink ResultSink) []*Tracker {
	group := &partGroup{}
	group.unsent.Store(int32(n))
	trackers := make([]*Tracker, n)
	for i := range trackers {
		trackers[i] = &Tracker{
			Dest:           "+15550100",
			MessageID:      1,
			unitID:         int64(i + 1),
			fullText:       "the whole message",
			PersistMessage: true,
			sentSink:       sink,
			group:          group,
			partSeq:        i + 1,
		}
	}
	return trackers
}

func TestOutOfOrderCompletionFinalizesOnce(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	apps := StaticApps{}
	anoms := &recordedAnomalies{}

	var outcomes []Outcome
	trackers := newPartTrackers(3, func(o Outcome) { outcomes = append(outcomes, o) })

	// Parts complete 2, 3, 1 with part 3 failing.
	trackers[1].onSent(ctx, mem, apps)
	trackers[2].onFailed(ctx, mem, apps, anoms, ResultNetworkError, 0)
	trackers[0].onSent(ctx, mem, apps)

	require.Len(t, outcomes, 3)

	lastParts := 0
	var handle store.Handle
	for _, o := range outcomes {
		if o.LastPart {
			lastParts++
		}
		if o.StoreHandle != store.HandleNone {
			require.True(t, handle == store.HandleNone || handle == o.StoreHandle)
			handle = o.StoreHandle
		}
	}
	assert.Equal(t, 1, lastParts, "only the last observed completion settles the batch")
	assert.True(t, outcomes[2].LastPart, "part 1 completed last, so it carries the flag")

	require.NotEqual(t, store.HandleNone, handle)
	rec, ok := mem.Get(handle)
	require.True(t, ok)
	assert.Equal(t, store.StateFailed, rec.State, "a failed sibling fails the whole message")
	assert.Equal(t, "the whole message", rec.Body)
}

func TestSinkFiresAtMostOnce(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	apps := StaticApps{}
	anoms := &recordedAnomalies{}

	fires := 0
	tr := &Tracker{Dest: "+15550100", sentSink: func(Outcome) { fires++ }}

	tr.onSent(ctx, mem, apps)
	tr.onFailed(ctx, mem, apps, anoms, ResultNetworkError, 0)
	tr.onSent(ctx, mem, apps)

	assert.Equal(t, 1, fires)
}

func TestExpectedFailuresSkipAnomalyReporting(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	apps := StaticApps{}

	expected := []Result{
		ResultNoService, ResultRadioOff, ResultLimitExceeded,
		ResultShortCodeNotAllowed, ResultShortCodeNeverAllowed,
		ResultBlockedDuringEmergency,
	}
	for _, res := range expected {
		anoms := &recordedAnomalies{}
		tr := &Tracker{Dest: "+15550100"}
		tr.onFailed(ctx, mem, apps, anoms, res, 0)
		assert.Zero(t, anoms.countBase(anomaly.UnexpectedRadioError), res.String())
	}

	anoms := &recordedAnomalies{}
	tr := &Tracker{Dest: "+15550100"}
	tr.onFailed(ctx, mem, apps, anoms, ResultSimAbsent, 4)
	assert.Equal(t, 1, anoms.countBase(anomaly.UnexpectedRadioError))
}
