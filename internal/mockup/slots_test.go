package mockup

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTrackerDropsStaleResults(t *testing.T) {
	tr := NewTracker()

	old := tr.Begin(SlotModel2)
	fresh := tr.Begin(SlotModel2)
	require.NotEqual(t, old, fresh)

	assert.False(t, tr.Succeed(SlotModel2, old, part("late")))
	s, _ := tr.Slot(SlotModel2)
	assert.Equal(t, StateLoading, s.State)

	assert.True(t, tr.Succeed(SlotModel2, fresh, part("new")))
	assert.False(t, tr.Fail(SlotModel2, old, MessageGenerateFailed))
	assert.False(t, tr.SetVideoPrompt(SlotModel2, old, VideoPrompt{State: VideoReady, Text: "late"}))

	s, _ = tr.Slot(SlotModel2)
	assert.Equal(t, StateSuccess, s.State)
	assert.Equal(t, part("new"), s.Image)
	assert.Equal(t, VideoPending, s.Video.State)
}

func TestTrackerDownloadReadiness(t *testing.T) {
	tr := NewTracker()
	assert.False(t, tr.DownloadReady())

	epochs := map[SlotID]uint64{}
	for _, id := range ResultSlots {
		epochs[id] = tr.Begin(id)
	}
	for _, id := range ModelSlots {
		tr.Succeed(id, epochs[id], part(string(id)))
	}
	tr.Fail(SlotFlatlay, epochs[SlotFlatlay], MessageGenerateFailed)
	assert.False(t, tr.DownloadReady())

	e := tr.Begin(SlotFlatlay)
	assert.False(t, tr.DownloadReady())
	tr.Succeed(SlotFlatlay, e, part("flat"))
	assert.True(t, tr.DownloadReady())
	assert.True(t, tr.Snapshot().DownloadReady)

	tr.Reset()
	assert.False(t, tr.DownloadReady())
}

func TestTrackerSkippedCountsAsSuccess(t *testing.T) {
	tr := NewTracker()
	tr.MarkSkipped(SlotFlatlay)
	for _, id := range ModelSlots {
		tr.Succeed(id, tr.Begin(id), part(string(id)))
	}

	s, _ := tr.Slot(SlotFlatlay)
	assert.True(t, s.Skipped)
	assert.Equal(t, MessageFlatlaySkipped, s.Message)
	assert.False(t, s.HasImage())
	assert.True(t, tr.DownloadReady())
}

func TestTrackerNotifiesOnChange(t *testing.T) {
	tr := NewTracker()
	n := 0
	tr.OnChange(func() { n++ })

	tr.SetStatus("a")
	tr.SetStatus("a")
	e := tr.Begin(SlotModel1)
	tr.Succeed(SlotModel1, e+1, part("stale"))

	assert.Equal(t, 2, n)
}

func TestParseSlot(t *testing.T) {
	id, err := ParseSlot(" Model3 ")
	require.NoError(t, err)
	assert.Equal(t, SlotModel3, id)
	assert.True(t, id.IsModel())
	assert.False(t, SlotFlatlay.IsModel())
	assert.Equal(t, "mockup-flatlay.png", SlotFlatlay.FileName())

	_, err = ParseSlot("model5")
	assert.ErrorIs(t, err, ErrUnknownSlot)
}
