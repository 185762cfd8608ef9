package phonod

import (
	"time"

	"github.com/rs/xid"
)

// Song is the playback core's view of one queue entry. The library database
// owns richer metadata; the player only needs a URI, an id and whatever tag
// slice travels with the audio.
type Song struct {
	// ID identifies the song within the daemon.
	ID string
	// URI locates the audio: local path, http(s) URL or archive entry.
	URI string
	// Tag is the last known tag slice, nil when unscanned.
	Tag *Tag
	// Duration is the total play time, 0 when unknown.
	Duration time.Duration
	// ReplayGain is the per-song gain snapshot, nil when untagged.
	ReplayGain *ReplayGainInfo
}

// NewSong returns a song for the given URI with a fresh id.
func NewSong(uri string) *Song {
	return &Song{ID: xid.New().String(), URI: uri}
}

// Equals reports whether two songs refer to the same queue entry.
func (s *Song) Equals(other *Song) bool {
	if s == nil || other == nil {
		return s == other
	}
	return s.ID == other.ID
}
