package playlist

import (
	"bytes"
	"testing"

	"github.com/mogiioin/hls-m3u8/m3u8"
)

// TestEventPlaylistRoundTripsThroughM3U8Decoder parses our own rendered
// Scenario E event playlist with a standalone decoder, checking the
// semantics a player would actually observe rather than just string
// containment.
func TestEventPlaylistRoundTripsThroughM3U8Decoder(t *testing.T) {
	p := NewEventPlaylist(EventConfig{TargetDuration: 6})
	for i := uint64(0); i < 3; i++ {
		if err := p.AddSegment(eventSeg(i, 6.006)); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	out := p.EndStream()

	playlist, listType, err := m3u8.Decode(*bytes.NewBufferString(out), true)
	if err != nil {
		t.Fatalf("unexpected decode error: %v\n%s", err, out)
	}
	if listType != m3u8.MEDIA {
		t.Fatalf("expected a media playlist, got list type %v", listType)
	}

	media, ok := playlist.(*m3u8.MediaPlaylist)
	if !ok {
		t.Fatalf("expected *m3u8.MediaPlaylist, got %T", playlist)
	}
	if media.MediaType != m3u8.EVENT {
		t.Errorf("expected EVENT playlist type, got %v", media.MediaType)
	}
	if media.TargetDuration != 7 {
		t.Errorf("expected target duration 7, got %d", media.TargetDuration)
	}
	if media.SeqNo != 0 {
		t.Errorf("expected media sequence 0, got %d", media.SeqNo)
	}
	if len(media.Segments) != 3 {
		t.Fatalf("expected 3 segments, got %d", len(media.Segments))
	}
	for i, seg := range media.Segments {
		if seg == nil {
			t.Fatalf("expected segment %d to be non-nil", i)
		}
		if seg.Duration < 5.996 || seg.Duration > 6.016 {
			t.Errorf("expected segment %d duration within 0.01 of 6.006, got %f", i, seg.Duration)
		}
	}
}

// TestSlidingWindowPlaylistRoundTripsThroughM3U8Decoder matches Scenario A
// decoded by a standalone parser: after eviction only segments 3, 4, 5
// remain with media_sequence 3.
func TestSlidingWindowPlaylistRoundTripsThroughM3U8Decoder(t *testing.T) {
	p := NewSlidingWindowPlaylist(SlidingWindowConfig{WindowSize: 3, TargetDuration: 6, Version: 7})
	for i := uint64(0); i < 6; i++ {
		_ = p.AddSegment(slidingSeg(i, 6.0))
	}
	out := p.RenderPlaylist()

	playlist, listType, err := m3u8.Decode(*bytes.NewBufferString(out), true)
	if err != nil {
		t.Fatalf("unexpected decode error: %v\n%s", err, out)
	}
	if listType != m3u8.MEDIA {
		t.Fatalf("expected a media playlist")
	}
	media := playlist.(*m3u8.MediaPlaylist)
	if media.SeqNo != 3 {
		t.Errorf("expected media sequence 3, got %d", media.SeqNo)
	}
	if len(media.Segments) != 3 {
		t.Fatalf("expected 3 retained segments, got %d", len(media.Segments))
	}
}
