package segmenter

import (
	"testing"

	"github.com/aminofox/liveorigin/pkg/logger"
	"github.com/aminofox/liveorigin/pkg/model"
)

func videoFrame(tsTicks int64, durationTicks int64, keyframe bool) model.EncodedFrame {
	return model.EncodedFrame{
		Data:       []byte{0x00, 0x00, 0x00, 0x01},
		Timestamp:  model.NewMediaTimestamp(tsTicks, 90000),
		Duration:   model.NewMediaTimestamp(durationTicks, 90000),
		IsKeyframe: keyframe,
		Codec:      model.CodecH264,
	}
}

func newTestSegmenter(t *testing.T, cfg Config) *Segmenter {
	t.Helper()
	s, err := New(cfg, nil, logger.NewDefaultLogger(logger.ErrorLevel, "text"))
	if err != nil {
		t.Fatalf("unexpected error constructing segmenter: %v", err)
	}
	return s
}

// TestSingleFrameThenFinish matches the boundary behavior: a segmenter
// ingesting one frame and then Finish()'d emits exactly one segment with
// frame_count 1.
func TestSingleFrameThenFinish(t *testing.T) {
	s := newTestSegmenter(t, Config{TargetDuration: 6, KeyframeAligned: true})

	if err := s.Ingest(videoFrame(0, 3000, true)); err != nil {
		t.Fatalf("unexpected ingest error: %v", err)
	}

	final := s.Finish()
	if final == nil {
		t.Fatalf("expected a final segment")
	}
	if final.FrameCount != 1 {
		t.Errorf("expected frame_count 1, got %d", final.FrameCount)
	}
}

func TestFinishIsIdempotent(t *testing.T) {
	s := newTestSegmenter(t, Config{TargetDuration: 6, KeyframeAligned: true})
	_ = s.Ingest(videoFrame(0, 3000, true))

	first := s.Finish()
	if first == nil {
		t.Fatalf("expected a segment from the first Finish call")
	}
	second := s.Finish()
	if second != nil {
		t.Fatalf("expected nil from a second Finish call, got %+v", second)
	}
}

func TestNonMonotonicIngestFailsWithoutStateChange(t *testing.T) {
	s := newTestSegmenter(t, Config{TargetDuration: 6, KeyframeAligned: true})
	if err := s.Ingest(videoFrame(9000, 3000, true)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	before := s.BufferedSegmentCount()
	if err := s.Ingest(videoFrame(0, 3000, false)); err == nil {
		t.Fatalf("expected non-monotonic timestamp error")
	}
	if s.BufferedSegmentCount() != before {
		t.Fatalf("expected buffered segment count unchanged after failed ingest")
	}
}

// TestForceCutScenarioD matches Scenario D: target=1.0s, max=2.0s,
// keyframe_aligned=true, 90 frames at 30fps (3000 ticks/frame at 90kHz)
// with only frame 0 a keyframe. At least two segments are emitted; the
// second is not independent (it didn't start on a keyframe).
func TestForceCutScenarioD(t *testing.T) {
	s := newTestSegmenter(t, Config{TargetDuration: 1.0, MaxDuration: 2.0, KeyframeAligned: true})

	var emitted []*model.LiveSegment
	go func() {
		for seg := range s.Segments() {
			emitted = append(emitted, seg)
		}
	}()

	for i := 0; i < 90; i++ {
		frame := videoFrame(int64(i)*3000, 3000, i == 0)
		if err := s.Ingest(frame); err != nil {
			t.Fatalf("unexpected ingest error at frame %d: %v", i, err)
		}
	}
	s.Finish()

	recent := s.RecentSegments()
	if len(recent) < 2 {
		t.Fatalf("expected at least two segments, got %d", len(recent))
	}
	if recent[1].IsIndependent {
		t.Errorf("expected second segment to be non-independent (force-cut, no keyframe at boundary)")
	}
}

func TestForceSegmentBoundaryWithNoPendingFrames(t *testing.T) {
	s := newTestSegmenter(t, Config{TargetDuration: 6, KeyframeAligned: true})
	if err := s.ForceSegmentBoundary(); err == nil {
		t.Fatalf("expected NoFramesPending error")
	}
}

// TestAudioOnlySegmentIsIndependentWithoutAKeyframe matches invariant 6:
// an is_independent=true segment either starts with a keyframe or is
// audio-only. Audio frames never set IsKeyframe, so a non-keyframe-aligned
// segmenter fed pure audio must still mark every cut independent.
func TestAudioOnlySegmentIsIndependentWithoutAKeyframe(t *testing.T) {
	s := newTestSegmenter(t, Config{TargetDuration: 1.0, KeyframeAligned: false})

	for i := 0; i < 50; i++ {
		frame := model.EncodedFrame{
			Data:      []byte{0xFF, 0xF1},
			Timestamp: model.NewMediaTimestamp(int64(i*1024), 48000),
			Duration:  model.NewMediaTimestamp(1024, 48000),
			Codec:     model.CodecAAC,
		}
		if err := s.Ingest(frame); err != nil {
			t.Fatalf("unexpected ingest error: %v", err)
		}
	}
	final := s.Finish()
	if final == nil {
		t.Fatalf("expected a final segment")
	}

	for _, seg := range s.RecentSegments() {
		if !seg.IsIndependent {
			t.Errorf("expected every audio-only segment to be independent, segment %d was not", seg.Index)
		}
	}
}

// TestPartialSegmentsEmittedBelowParentTarget matches the LL-HLS supplement:
// with a part target well below the segment target, several partial
// segments are cut inside a single in-progress parent before the parent
// itself cuts.
func TestPartialSegmentsEmittedBelowParentTarget(t *testing.T) {
	s := newTestSegmenter(t, Config{
		TargetDuration:     2.0,
		KeyframeAligned:    true,
		PartTargetDuration: 0.5,
	})

	var parts []*model.LivePartialSegment
	done := make(chan struct{})
	go func() {
		for part := range s.Parts() {
			parts = append(parts, part)
		}
		close(done)
	}()

	for i := 0; i < 60; i++ { // 2.0s of frames at 30fps
		frame := videoFrame(int64(i)*3000, 3000, i == 0)
		if err := s.Ingest(frame); err != nil {
			t.Fatalf("unexpected ingest error at frame %d: %v", i, err)
		}
	}
	s.Finish()
	<-done

	if len(parts) < 3 {
		t.Fatalf("expected at least 3 partial segments ahead of the 2.0s parent cut, got %d", len(parts))
	}
	for _, p := range parts {
		if p.ParentIndex != 0 {
			t.Errorf("expected every partial segment to belong to parent 0, got %d", p.ParentIndex)
		}
	}
}

func TestNextPartHintEmptyWhenDisabledOrIdle(t *testing.T) {
	s := newTestSegmenter(t, Config{TargetDuration: 2.0, KeyframeAligned: true})
	if hint := s.NextPartHint(); hint != "" {
		t.Fatalf("expected empty hint when partial emission is disabled, got %q", hint)
	}

	withParts := newTestSegmenter(t, Config{TargetDuration: 2.0, KeyframeAligned: true, PartTargetDuration: 0.5})
	if hint := withParts.NextPartHint(); hint != "" {
		t.Fatalf("expected empty hint before any frame is pending, got %q", hint)
	}
	if err := withParts.Ingest(videoFrame(0, 3000, true)); err != nil {
		t.Fatalf("unexpected ingest error: %v", err)
	}
	if hint := withParts.NextPartHint(); hint == "" {
		t.Fatalf("expected a non-empty hint once a segment is in progress")
	}
}

// TestRingBufferCapacityDefaultsAndExplicitZeroDisables matches Config's
// RingBufferCapacity contract: leaving it nil (the Go zero value) picks up
// the default of 10, while IntPtr(0) explicitly disables buffering.
func TestRingBufferCapacityDefaultsAndExplicitZeroDisables(t *testing.T) {
	withDefault := newTestSegmenter(t, Config{TargetDuration: 1.0, KeyframeAligned: true})
	for i := 0; i < 3; i++ {
		if err := withDefault.Ingest(videoFrame(int64(i)*90000, 90000, true)); err != nil {
			t.Fatalf("unexpected ingest error: %v", err)
		}
	}
	withDefault.Finish()
	if withDefault.BufferedSegmentCount() == 0 {
		t.Fatalf("expected the default ring buffer capacity to retain emitted segments")
	}

	disabled := newTestSegmenter(t, Config{TargetDuration: 1.0, KeyframeAligned: true, RingBufferCapacity: IntPtr(0)})
	for i := 0; i < 3; i++ {
		if err := disabled.Ingest(videoFrame(int64(i)*90000, 90000, true)); err != nil {
			t.Fatalf("unexpected ingest error: %v", err)
		}
	}
	disabled.Finish()
	if count := disabled.BufferedSegmentCount(); count != 0 {
		t.Fatalf("expected RingBufferCapacity: IntPtr(0) to disable buffering, got %d buffered", count)
	}
}
