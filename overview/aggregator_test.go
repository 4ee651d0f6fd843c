package overview

import (
	"errors"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/aluiziolira/not200club/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAggregatorConcurrentRecordIsExact(t *testing.T) {
	agg := New()

	var outcomes [][]models.Issue
	for i := 0; i < 5; i++ {
		outcomes = append(outcomes, []models.Issue{models.TimedOut(time.Second)})
	}
	for i := 0; i < 3; i++ {
		outcomes = append(outcomes, []models.Issue{models.BadURL(errors.New("refused"))})
	}
	for i := 0; i < 2; i++ {
		outcomes = append(outcomes, nil)
	}

	const rounds = 50
	var wg sync.WaitGroup
	for r := 0; r < rounds; r++ {
		for i, issues := range outcomes {
			wg.Add(1)
			go func(slot models.Slot, issues []models.Issue) {
				defer wg.Done()
				time.Sleep(time.Duration(rand.Intn(500)) * time.Microsecond)
				agg.Record(slot, issues)
			}(models.Slots[i%models.NumSlots], issues)
		}
	}
	wg.Wait()

	snap := agg.Snapshot()
	assert.Equal(t, 5*rounds, snap.Count(models.KindTimeout).Total())
	assert.Equal(t, 3*rounds, snap.Count(models.KindBadURL).Total())
	assert.Zero(t, snap.Count(models.KindStatus).Total())
	assert.Zero(t, snap.Count(models.KindTime).Total())
	assert.Nil(t, snap.Latency)
}

func TestAggregatorRecordStatusAndTime(t *testing.T) {
	agg := New()
	agg.Record(models.Group, []models.Issue{models.Slow(15 * time.Second), models.BadStatus(503)})
	agg.Record(models.Solo, []models.Issue{models.NoLink()})
	agg.Inc(models.Capstone, models.KindStatus)
	agg.AddLatency(12 * time.Second)

	snap := agg.Snapshot()
	assert.Equal(t, models.SlotCounts{0, 0, 1}, snap.Count(models.KindTime))
	assert.Equal(t, models.SlotCounts{0, 1, 1}, snap.Count(models.KindStatus))
	assert.Equal(t, models.SlotCounts{1, 0, 0}, snap.Count(models.KindNoLink))
	assert.Equal(t, []float64{15, 12}, snap.Latencies)

	require.NotNil(t, snap.Latency)
	assert.InDelta(t, 13.5, snap.Latency.Mean, 1e-9)
}

func TestAggregatorMerge(t *testing.T) {
	global := New()
	global.SetTotalSeekers(10)
	global.Record(models.Solo, []models.Issue{models.NoLink()})

	coach := New()
	coach.Record(models.Solo, []models.Issue{models.NoLink()})
	coach.Record(models.Group, []models.Issue{models.Slow(11 * time.Second)})
	coach.AddSeekersWithIssue(2)

	global.Merge(coach)
	global.Merge(global)
	global.Merge(nil)

	snap := global.Snapshot()
	assert.Equal(t, 2, snap.Count(models.KindNoLink)[models.Solo])
	assert.Equal(t, 1, snap.Count(models.KindTime)[models.Group])
	assert.Equal(t, 2, snap.SeekersWithIssue)
	assert.Equal(t, 10, snap.TotalSeekers)
	assert.Equal(t, []float64{11}, snap.Latencies)
}

func TestAggregatorSnapshotIsCopy(t *testing.T) {
	agg := New()
	agg.AddLatency(11 * time.Second)

	snap := agg.Snapshot()
	snap.Latencies[0] = 99
	snap.Counts[models.KindTime][models.Solo] = 42

	again := agg.Snapshot()
	assert.Equal(t, []float64{11}, again.Latencies)
	assert.Zero(t, again.Count(models.KindTime)[models.Solo])
}

func TestAggregatorIgnoresOutOfRange(t *testing.T) {
	agg := New()
	agg.Inc(models.Slot(7), models.KindTime)
	agg.Inc(models.Solo, models.IssueKind(9))
	agg.AddSeekersWithIssue(-3)

	snap := agg.Snapshot()
	for _, kind := range models.Kinds {
		assert.Zero(t, snap.Count(kind).Total())
	}
	assert.Zero(t, snap.SeekersWithIssue)
}
