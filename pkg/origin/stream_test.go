package origin

import (
	"sync"
	"testing"
	"time"

	"github.com/aminofox/liveorigin/pkg/logger"
	"github.com/aminofox/liveorigin/pkg/model"
	"github.com/aminofox/liveorigin/pkg/playlist"
	"github.com/aminofox/liveorigin/pkg/segmenter"
)

func newTestStream(t *testing.T) *Stream {
	t.Helper()
	seg, err := segmenter.New(segmenter.Config{TargetDuration: 1.0, KeyframeAligned: true}, nil,
		logger.NewDefaultLogger(logger.ErrorLevel, "text"))
	if err != nil {
		t.Fatalf("unexpected error constructing segmenter: %v", err)
	}
	pl := playlist.NewSlidingWindowPlaylist(playlist.SlidingWindowConfig{WindowSize: 5, TargetDuration: 1.0})
	return NewStream("live", nil, seg, pl, nil, nil, logger.NewDefaultLogger(logger.ErrorLevel, "text"))
}

// waitUntil polls cond every 5ms up to 200ms, long enough for the ingest
// loop's goroutine to catch up with a handful of synchronously-ingested
// frames without hard-coding a fixed sleep.
func waitUntil(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(200 * time.Millisecond)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	if !cond() {
		t.Fatalf("condition not met before deadline")
	}
}

func TestStreamIngestFilesSegmentForHTTPLookup(t *testing.T) {
	s := newTestStream(t)

	if err := s.Ingest(model.EncodedFrame{
		Data:       []byte{0, 0, 0, 1},
		Timestamp:  model.NewMediaTimestamp(0, 90000),
		Duration:   model.NewMediaTimestamp(90000, 90000),
		IsKeyframe: true,
		Codec:      model.CodecH264,
	}); err != nil {
		t.Fatalf("unexpected ingest error: %v", err)
	}
	s.Finish()

	waitUntil(t, func() bool {
		_, err := s.Segment("segment_0.m4s")
		return err == nil
	})

	out := s.RenderPlaylist()
	if out == "" {
		t.Fatalf("expected a non-empty rendered playlist")
	}
}

// recordingPlaylist wraps a SlidingWindowPlaylist, counts AddPartialSegment
// calls and records the last SetPreloadHint URI, so the forwarding test does not
// race against the part being dropped once its parent segment completes.
type recordingPlaylist struct {
	*playlist.SlidingWindowPlaylist
	mu         sync.Mutex
	partsAdded int
	lastHint   string
}

func (r *recordingPlaylist) AddPartialSegment(part *model.LivePartialSegment) error {
	r.mu.Lock()
	r.partsAdded++
	r.mu.Unlock()
	return r.SlidingWindowPlaylist.AddPartialSegment(part)
}

func (r *recordingPlaylist) SetPreloadHint(uri string) {
	r.mu.Lock()
	r.lastHint = uri
	r.mu.Unlock()
	r.SlidingWindowPlaylist.SetPreloadHint(uri)
}

func (r *recordingPlaylist) snapshot() (int, string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.partsAdded, r.lastHint
}

func TestStreamForwardsPartialSegmentsToPlaylist(t *testing.T) {
	seg, err := segmenter.New(segmenter.Config{
		TargetDuration:     2.0,
		KeyframeAligned:    true,
		PartTargetDuration: 0.5,
	}, nil, logger.NewDefaultLogger(logger.ErrorLevel, "text"))
	if err != nil {
		t.Fatalf("unexpected error constructing segmenter: %v", err)
	}
	pl := &recordingPlaylist{SlidingWindowPlaylist: playlist.NewSlidingWindowPlaylist(playlist.SlidingWindowConfig{
		WindowSize: 5, TargetDuration: 2.0, PartTargetDuration: 0.5,
	})}
	s := NewStream("live", nil, seg, pl, nil, nil, logger.NewDefaultLogger(logger.ErrorLevel, "text"))

	for i := 0; i < 60; i++ { // 2.0s at 30fps, well past one 0.5s part boundary
		if err := s.Ingest(model.EncodedFrame{
			Data:       []byte{0, 0, 0, 1},
			Timestamp:  model.NewMediaTimestamp(int64(i)*3000, 90000),
			Duration:   model.NewMediaTimestamp(3000, 90000),
			IsKeyframe: i == 0,
			Codec:      model.CodecH264,
		}); err != nil {
			t.Fatalf("unexpected ingest error at frame %d: %v", i, err)
		}
	}
	s.Finish()

	waitUntil(t, func() bool {
		count, _ := pl.snapshot()
		return count >= 3
	})
}

func TestStreamSegmentLookupMissReturnsError(t *testing.T) {
	s := newTestStream(t)
	if _, err := s.Segment("does-not-exist.m4s"); err == nil {
		t.Fatalf("expected an error looking up an unknown segment")
	}
}

func TestRegistryAddGetRemove(t *testing.T) {
	r := NewRegistry()
	s := newTestStream(t)

	r.Add(s)
	got, ok := r.Get("live")
	if !ok || got != s {
		t.Fatalf("expected to find the registered stream")
	}

	keys := r.Keys()
	if len(keys) != 1 || keys[0] != "live" {
		t.Fatalf("expected exactly one registered key, got %v", keys)
	}

	r.Remove("live")
	if _, ok := r.Get("live"); ok {
		t.Fatalf("expected the stream to be gone after Remove")
	}
}
