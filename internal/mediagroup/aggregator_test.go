package mediagroup

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAlbumFlushesOnceAfterDebounce(t *testing.T) {
	flushed := make(chan Album, 2)
	agg := New(Options{Debounce: 20 * time.Millisecond, OnFlush: func(a Album) { flushed <- a }})

	agg.Add(Photo{ChatID: 1, MediaGroupID: "g", FileID: "a"})
	agg.Add(Photo{ChatID: 1, MediaGroupID: "g", FileID: "b", Caption: "outfit"})
	assert.Equal(t, 1, agg.Pending())

	select {
	case album := <-flushed:
		assert.Equal(t, []string{"a", "b"}, album.FileIDs)
		assert.Equal(t, "outfit", album.Caption)
		assert.Zero(t, album.Dropped)
	case <-time.After(time.Second):
		t.Fatal("album was not flushed")
	}
	assert.Zero(t, agg.Pending())
	assert.Empty(t, flushed)
}

func TestAlbumLimit(t *testing.T) {
	flushed := make(chan Album, 1)
	agg := New(Options{Debounce: 10 * time.Millisecond, Limit: 2, OnFlush: func(a Album) { flushed <- a }})

	for _, id := range []string{"a", "b", "c", "d"} {
		agg.Add(Photo{ChatID: 1, MediaGroupID: "g", FileID: id})
	}

	var album Album
	require.Eventually(t, func() bool {
		select {
		case album = <-flushed:
			return true
		default:
			return false
		}
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"a", "b"}, album.FileIDs)
	assert.Equal(t, 2, album.Dropped)
}

func TestAddIgnoresLoosePhotos(t *testing.T) {
	agg := New(Options{})
	agg.Add(Photo{ChatID: 1, FileID: "a"})
	assert.Zero(t, agg.Pending())
}
